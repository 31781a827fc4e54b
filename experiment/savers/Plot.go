package savers

import (
	"fmt"
	"log"
	"os"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	ts "github.com/auxrl/auxdqn/timestep"
)

// plotMeanWindow is the number of trailing episodes averaged for the
// smoothed curve
const plotMeanWindow = 100

// RewardPlot renders the episodic return curve to a PNG file: the raw
// per-episode returns plus, once enough episodes have completed, their
// trailing mean.
type RewardPlot struct {
	returns  *Return
	filename string
}

// NewRewardPlot creates and returns a new *RewardPlot Saver rendering to
// filename
func NewRewardPlot(filename string) *RewardPlot {
	return &RewardPlot{
		returns:  NewReturn(""),
		filename: filename,
	}
}

// Track tracks the reward seen on a timestep
func (r *RewardPlot) Track(step ts.TimeStep) {
	r.returns.Track(step)
}

// Save renders the return curve to disk. Save may be called repeatedly;
// each call overwrites the previous image.
func (r *RewardPlot) Save() {
	returns := r.returns.Returns()
	if len(returns) == 0 {
		return
	}

	p := plot.New()
	p.Title.Text = "Training Returns"
	p.X.Label.Text = "Episode"
	p.Y.Label.Text = "Return"

	pts := make(plotter.XYs, len(returns))
	for i, ret := range returns {
		pts[i].X = float64(i)
		pts[i].Y = ret
	}
	line, err := plotter.NewLine(pts)
	if err != nil {
		log.Fatalf("could not create return line: %v", err)
	}
	p.Add(line)
	p.Legend.Add("return", line)

	if len(returns) >= plotMeanWindow {
		means := trailingMeans(returns, plotMeanWindow)
		meanLine, err := plotter.NewLine(means)
		if err != nil {
			log.Fatalf("could not create mean return line: %v", err)
		}
		meanLine.LineStyle.Width = vg.Points(2)
		p.Add(meanLine)
		p.Legend.Add(fmt.Sprintf("%v-episode mean", plotMeanWindow),
			meanLine)
	}

	if err := p.Save(6*vg.Inch, 6*vg.Inch, r.filename); err != nil {
		fmt.Fprintf(os.Stderr, "warning: could not save return plot: %v\n",
			err)
	}
}

// trailingMeans returns the mean of each trailing window of the argument
// returns, starting once a full window exists
func trailingMeans(returns []float64, window int) plotter.XYs {
	means := make(plotter.XYs, 0, len(returns)-window+1)
	sum := 0.0
	for i, ret := range returns {
		sum += ret
		if i >= window {
			sum -= returns[i-window]
		}
		if i >= window-1 {
			means = append(means, plotter.XY{
				X: float64(i),
				Y: sum / float64(window),
			})
		}
	}
	return means
}
