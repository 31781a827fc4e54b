// Package environment outlines the interface that simulated environments
// must satisfy to be used for training. Concrete environments live outside
// this module; the learning engine only depends on the reset/step contract
// defined here.
package environment

import (
	"gonum.org/v1/gonum/mat"

	"golang.org/x/exp/rand"
)

// VirtualReward is the Info key under which an environment reports its
// virtual reward channel, consumed by the virtual value function
// objectives
const VirtualReward = "virtual-reward"

// Cardinality indicates whether the associated type is continuous or discrete
type Cardinality int

const (
	Discrete Cardinality = iota
	Continuous
)

// Spec tells the shape and bounds of an environment's observations. For
// pixel observations the Shape is (channels, height, width) and
// observations are handed to the agent flattened in that order.
type Spec struct {
	Shape      []int
	LowerBound float64
	UpperBound float64
	Cardinality
}

// Len returns the total number of features in a single observation
func (s Spec) Len() int {
	n := 1
	for _, dim := range s.Shape {
		n *= dim
	}
	return n
}

// ActionSpace is a discrete action space of N actions enumerated from 0.
// Sample draws a uniformly random action.
type ActionSpace struct {
	N   int
	rng *rand.Rand
}

// NewActionSpace returns a new ActionSpace of n actions
func NewActionSpace(n int, seed uint64) *ActionSpace {
	return &ActionSpace{
		N:   n,
		rng: rand.New(rand.NewSource(seed)),
	}
}

// Sample returns a uniformly random action
func (a *ActionSpace) Sample() int {
	return a.rng.Intn(a.N)
}

// Contains returns whether action is a valid action in the space
func (a *ActionSpace) Contains(action int) bool {
	return action >= 0 && action < a.N
}

// Environment is the contract consumed by the training loop.
//
// Reset starts a new episode, returning the initial observation and any
// auxiliary info. Step applies a discrete action and returns the next
// observation, the reward, the terminated and truncated flags, and the
// auxiliary info for the step. Info may carry a "virtual-reward" scalar
// when a virtual value function objective is being trained.
//
// Any error from the environment propagates unmodified to the caller of
// the training loop; the learning engine performs no recovery.
type Environment interface {
	Reset() (*mat.VecDense, map[string]float64, error)
	Step(action int) (*mat.VecDense, float64, bool, bool,
		map[string]float64, error)
	ActionSpace() *ActionSpace
	ObservationSpec() Spec
}
