// Package progressbar implements functionality of printing a progress
// bar to the terminal window
package progressbar

import (
	"fmt"
	"io"
	"strings"
	"time"
)

// ProgressBar prints iteration progress as an in-place terminal bar.
// Updates are synchronous; each Increment redraws the bar.
type ProgressBar struct {
	w       io.Writer
	width   int
	max     int
	current int
	start   time.Time
}

// New returns a new progress bar that is width characters wide and
// reaches 100% after max Increment calls
func New(w io.Writer, width, max int) *ProgressBar {
	return &ProgressBar{
		w:     w,
		width: width,
		max:   max,
		start: time.Now(),
	}
}

// Increment advances the progress bar by one iteration and redraws it
func (p *ProgressBar) Increment() {
	if p.current < p.max {
		p.current++
	}
	p.draw()
}

// Close finishes the progress bar, jumping to the next terminal line
func (p *ProgressBar) Close() {
	fmt.Fprintln(p.w)
}

// draw redraws the progress bar in place
func (p *ProgressBar) draw() {
	filled := p.current * p.width / p.max

	var bar strings.Builder
	bar.WriteString("|")
	bar.WriteString(strings.Repeat("█", filled))
	bar.WriteString(strings.Repeat(" ", p.width-filled))
	bar.WriteString(fmt.Sprintf("| [%v/%v | %.1f%% | elapsed: %v]",
		p.current, p.max, float64(p.current)/float64(p.max)*100,
		time.Since(p.start).Round(time.Second)))

	fmt.Fprintf(p.w, "\r\033[K%v", bar.String())
}
