// Package policy implements action selection on top of a value network
package policy

import (
	"fmt"
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	G "gorgonia.org/gorgonia"

	"github.com/auxrl/auxdqn/environment"
	"github.com/auxrl/auxdqn/network"
	"github.com/auxrl/auxdqn/utils/floatutils"
)

// EGreedySchedule is an ε-greedy policy whose exploration rate anneals
// exponentially with the number of actions selected:
//
//	ε = εEnd + (εStart - εEnd)·exp(-stepsDone/εDecay)
//
// Every call to SelectAction advances stepsDone by exactly one, whether
// the action taken was greedy or exploratory, so the schedule measures
// total actions selected over the lifetime of the run, across episode
// boundaries.
type EGreedySchedule struct {
	net *network.QNetwork
	vm  G.VM

	epsStart  float64
	epsEnd    float64
	epsDecay  float64
	stepsDone int

	actions *environment.ActionSpace
	rng     *rand.Rand
}

// NewEGreedySchedule returns a new EGreedySchedule acting greedily with
// respect to net, which must predict on single observations. The policy
// owns the virtual machine that runs net's graph.
func NewEGreedySchedule(net *network.QNetwork, epsStart, epsEnd,
	epsDecay float64, actions *environment.ActionSpace,
	seed uint64) (*EGreedySchedule, error) {
	if net.BatchSize() != 1 {
		return nil, fmt.Errorf("newegreedyschedule: policy network must "+
			"predict on single observations \n\twant(1)\n\thave(%v)",
			net.BatchSize())
	}
	if epsDecay <= 0 {
		return nil, fmt.Errorf("newegreedyschedule: epsDecay must be > 0")
	}
	if epsStart < 0 || epsStart > 1 || epsEnd < 0 || epsEnd > 1 {
		return nil, fmt.Errorf("newegreedyschedule: exploration rates "+
			"must be in [0, 1], got start %v end %v", epsStart, epsEnd)
	}

	return &EGreedySchedule{
		net:      net,
		vm:       G.NewTapeMachine(net.Graph()),
		epsStart: epsStart,
		epsEnd:   epsEnd,
		epsDecay: epsDecay,
		actions:  actions,
		rng:      rand.New(rand.NewSource(seed)),
	}, nil
}

// Epsilon returns the current exploration rate
func (e *EGreedySchedule) Epsilon() float64 {
	return e.epsEnd + (e.epsStart-e.epsEnd)*
		math.Exp(-float64(e.stepsDone)/e.epsDecay)
}

// StepsDone returns the total number of actions the policy has selected
func (e *EGreedySchedule) StepsDone() int {
	return e.stepsDone
}

// Network returns the value network the policy acts greedily with
// respect to
func (e *EGreedySchedule) Network() *network.QNetwork {
	return e.net
}

// SelectAction selects an action for the argument observation and
// advances the exploration schedule by one step
func (e *EGreedySchedule) SelectAction(obs *mat.VecDense) (int, error) {
	eps := e.Epsilon()
	e.stepsDone++

	if e.rng.Float64() < eps {
		return e.actions.Sample(), nil
	}
	return e.GreedyAction(obs)
}

// GreedyAction returns an action of maximal predicted value for the
// argument observation, breaking ties randomly. The exploration
// schedule is not advanced.
func (e *EGreedySchedule) GreedyAction(obs *mat.VecDense) (int, error) {
	values, err := e.ActionValues(obs)
	if err != nil {
		return 0, fmt.Errorf("greedyaction: %v", err)
	}
	maxima := floatutils.ArgMaxAll(values)
	return maxima[e.rng.Intn(len(maxima))], nil
}

// ActionValues runs the policy network on a single observation and
// returns its predicted action values
func (e *EGreedySchedule) ActionValues(obs *mat.VecDense) ([]float64,
	error) {
	if err := e.net.SetInput(obs.RawVector().Data); err != nil {
		return nil, fmt.Errorf("actionvalues: could not set network "+
			"input: %v", err)
	}
	if err := e.vm.RunAll(); err != nil {
		return nil, fmt.Errorf("actionvalues: could not run policy "+
			"network: %v", err)
	}
	defer e.vm.Reset()

	values := e.net.Output().Data().([]float64)
	out := make([]float64, len(values))
	copy(out, values)
	return out, nil
}
