// Package savers implements tracking and persistence of training data.
// A Saver caches data from the timesteps it is shown and writes the
// accumulated data to disk on demand; the training loop saves both
// periodically and when a run finishes.
package savers

import (
	"encoding/gob"
	"log"
	"os"

	ts "github.com/auxrl/auxdqn/timestep"
)

// Saver tracks experiment data and saves the accumulated data to disk
type Saver interface {
	Track(t ts.TimeStep)
	Save()
}

// LoadReturns loads and returns the episodic returns saved by a Return
// or RewardPlot Saver
func LoadReturns(filename string) []float64 {
	file, err := os.Open(filename)
	if err != nil {
		log.Fatalf("could not open data file: %v", err)
	}
	defer file.Close()

	dec := gob.NewDecoder(file)
	var data []float64
	if err := dec.Decode(&data); err != nil {
		log.Fatalf("could not decode data: %v", err)
	}
	return data
}
