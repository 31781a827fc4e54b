// Package timestep implements timesteps of the agent-environment interaction
package timestep

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// StepType denotes the type of step that a TimeStep can be, either the first
// environmental step, a middle step, or a last step
type StepType int

const (
	First StepType = iota
	Mid
	Last
)

func (s StepType) String() string {
	switch s {
	case First:
		return "First"
	case Last:
		return "Last"
	default:
		return "Mid"
	}
}

// TimeStep packages together a single timestep in an environment. The
// Observation is the flattened pixel state (channels × height × width).
// Info carries any auxiliary scalars emitted by the environment on this
// step, e.g. the virtual reward channel consumed by the virtual value
// function objectives.
type TimeStep struct {
	stepType    StepType
	Reward      float64
	Observation *mat.VecDense
	Number      int
	Info        map[string]float64
}

// New returns a new TimeStep
func New(t StepType, r float64, o *mat.VecDense, n int,
	info map[string]float64) TimeStep {
	return TimeStep{t, r, o, n, info}
}

// First returns whether a TimeStep is the first in an environment
func (t *TimeStep) First() bool {
	return t.stepType == First
}

// Mid returns whether a TimeStep is a middle step in an environment
func (t *TimeStep) Mid() bool {
	return t.stepType == Mid
}

// Last returns whether a TimeStep is the last step in an environment
func (t *TimeStep) Last() bool {
	return t.stepType == Last
}

func (t TimeStep) String() string {
	str := "TimeStep | Type: %v  |  Reward:  %.2f  |  Step Number:  %v"

	return fmt.Sprintf(str, t.stepType, t.Reward, t.Number)
}
