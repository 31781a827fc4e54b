// Package experiment implements running training experiments: the
// episode loop, periodic persistence of training data and model
// snapshots, and run identification.
package experiment

import (
	"time"

	"github.com/auxrl/auxdqn/experiment/savers"
)

// Experiment runs an agent in an environment and saves the generated
// data
type Experiment interface {
	Run() error
	Register(savers.Saver)
	Save()
}

// RunID returns a wall-clock identifier for a training run, used to key
// saved data and model snapshots
func RunID() string {
	return time.Now().Format("2006-01-02_15-04-05")
}
