package savers

import (
	"encoding/gob"
	"log"
	"os"

	ts "github.com/auxrl/auxdqn/timestep"
)

// Return tracks and saves the episodic return of every completed
// episode. Rewards accumulate from the first timestep of an episode to
// its last; an episode that never finishes is not recorded.
type Return struct {
	currentReturn  float64
	episodeReturns []float64
	filename       string
}

// NewReturn creates and returns a new *Return Saver saving to filename
func NewReturn(filename string) *Return {
	return &Return{filename: filename}
}

// Track tracks the reward seen on a timestep. The first timestep of an
// episode resets the accumulator, the last one records the episode's
// return.
func (r *Return) Track(step ts.TimeStep) {
	if step.First() {
		r.currentReturn = 0.0
		return
	}
	r.currentReturn += step.Reward
	if step.Last() {
		r.episodeReturns = append(r.episodeReturns, r.currentReturn)
	}
}

// Returns returns the episodic returns of all completed episodes
func (r *Return) Returns() []float64 {
	return r.episodeReturns
}

// Save saves the episodic returns tracked so far to disk. Save may be
// called repeatedly; each call overwrites the previous snapshot.
func (r *Return) Save() {
	file, err := os.Create(r.filename)
	if err != nil {
		log.Fatalf("could not open save file: %v", err)
	}
	defer file.Close()

	en := gob.NewEncoder(file)
	if err := en.Encode(r.episodeReturns); err != nil {
		log.Fatalf("could not encode return data: %v", err)
	}
}
