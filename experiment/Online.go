package experiment

import (
	"fmt"
	"os"

	"github.com/auxrl/auxdqn/agent"
	env "github.com/auxrl/auxdqn/environment"
	"github.com/auxrl/auxdqn/experiment/checkpointer"
	"github.com/auxrl/auxdqn/experiment/savers"
	ts "github.com/auxrl/auxdqn/timestep"
	"github.com/auxrl/auxdqn/utils/progressbar"
)

// progressBarWidth is the character width of the episode progress bar
const progressBarWidth = 40

// Online runs an agent online for a bounded number of episodes. A run
// ends early once the agent earns a return of exactly 1.0 for winStreak
// consecutive episodes; any other return resets the streak. Episodes
// are truncated after horizon environment steps. Registered savers
// persist every saveRatio episodes and once more when the run ends;
// checkpointers follow their own episode schedules plus a forced final
// snapshot.
type Online struct {
	environment env.Environment
	agent       *agent.AuxDQN

	maxEpisodes int
	horizon     int
	winStreak   int
	saveRatio   int

	savers        []savers.Saver
	checkpointers []checkpointer.Checkpointer
	bar           *progressbar.ProgressBar

	episodes int
	streak   int
}

// NewOnline creates and returns a new online experiment of at most
// maxEpisodes episodes of at most horizon steps each. A winStreak of 0
// disables early termination; a saveRatio of 0 disables periodic saves.
func NewOnline(e env.Environment, a *agent.AuxDQN, maxEpisodes, horizon,
	winStreak, saveRatio int, showProgress bool) *Online {
	online := &Online{
		environment: e,
		agent:       a,
		maxEpisodes: maxEpisodes,
		horizon:     horizon,
		winStreak:   winStreak,
		saveRatio:   saveRatio,
	}
	if showProgress {
		online.bar = progressbar.New(os.Stdout, progressBarWidth,
			maxEpisodes)
	}
	return online
}

// Register registers a Saver with the experiment so that data generated
// during the experiment is tracked and saved
func (o *Online) Register(s savers.Saver) {
	o.savers = append(o.savers, s)
}

// Checkpoint registers a Checkpointer with the experiment
func (o *Online) Checkpoint(c checkpointer.Checkpointer) {
	o.checkpointers = append(o.checkpointers, c)
}

// Episodes returns the number of episodes completed so far
func (o *Online) Episodes() int {
	return o.episodes
}

// Streak returns the current number of consecutive episodes with a
// return of exactly 1.0
func (o *Online) Streak() int {
	return o.streak
}

// RunEpisode runs a single episode and returns its undiscounted return.
// Environment errors propagate unmodified.
func (o *Online) RunEpisode() (float64, error) {
	obs, info, err := o.environment.Reset()
	if err != nil {
		return 0, err
	}
	o.agent.ObserveFirst(obs)
	o.track(ts.New(ts.First, 0, obs, 0, info))

	episodeReturn := 0.0
	for t := 0; ; t++ {
		action, err := o.agent.SelectAction(obs)
		if err != nil {
			return 0, fmt.Errorf("runepisode: %v", err)
		}

		next, reward, terminated, truncated, info, err :=
			o.environment.Step(action)
		if err != nil {
			return 0, err
		}
		episodeReturn += reward
		done := terminated || truncated || t > o.horizon

		err = o.agent.Observe(action, next, reward,
			info[env.VirtualReward], terminated)
		if err != nil {
			return 0, fmt.Errorf("runepisode: %v", err)
		}
		if err := o.agent.Step(); err != nil {
			return 0, fmt.Errorf("runepisode: %v", err)
		}

		stepType := ts.Mid
		if done {
			stepType = ts.Last
		}
		o.track(ts.New(stepType, reward, next, t+1, info))

		obs = next
		if done {
			break
		}
	}

	if err := o.agent.EndEpisode(); err != nil {
		return 0, fmt.Errorf("runepisode: %v", err)
	}
	return episodeReturn, nil
}

// Run runs the entire experiment. It returns once the agent has
// sustained a winning streak of winStreak episodes, or after maxEpisodes
// episodes, whichever comes first, saving all registered savers and
// checkpointers one final time.
func (o *Online) Run() error {
	for o.episodes < o.maxEpisodes {
		episodeReturn, err := o.RunEpisode()
		if err != nil {
			return err
		}
		o.episodes++

		if episodeReturn == 1.0 {
			o.streak++
		} else {
			o.streak = 0
		}

		if o.bar != nil {
			o.bar.Increment()
		}

		if o.saveRatio > 0 && o.episodes%o.saveRatio == 0 {
			o.Save()
		}
		for _, c := range o.checkpointers {
			if err := c.Checkpoint(o.episodes); err != nil {
				return fmt.Errorf("run: could not checkpoint: %v", err)
			}
		}

		if o.winStreak > 0 && o.streak >= o.winStreak {
			break
		}
	}
	if o.bar != nil {
		o.bar.Close()
	}

	for _, c := range o.checkpointers {
		if err := c.Force(); err != nil {
			return fmt.Errorf("run: could not checkpoint: %v", err)
		}
	}
	o.Save()
	return nil
}

// Save saves all the data cached by the registered Savers to disk
func (o *Online) Save() {
	for _, saver := range o.savers {
		saver.Save()
	}
}

// track caches the current timestep's data in each registered Saver
func (o *Online) track(t ts.TimeStep) {
	for _, saver := range o.savers {
		saver.Track(t)
	}
}
