package timestep

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestTransitionTerminal(t *testing.T) {
	state := mat.NewVecDense(2, []float64{1, 2})
	next := mat.NewVecDense(2, []float64{3, 4})

	transition := NewTransition(state, 0, 1.0, next)
	require.False(t, transition.Terminal())

	terminal := NewTransition(state, 0, 1.0, nil)
	require.True(t, terminal.Terminal())
}

func TestSarsaTransitionCarriesLookahead(t *testing.T) {
	state := mat.NewVecDense(2, []float64{1, 2})
	next := mat.NewVecDense(2, []float64{3, 4})

	transition := NewSarsaTransition(state, 1, 0.0, next, 2, 0.5)
	require.Equal(t, 2, transition.NextAction)
	require.Equal(t, 0.5, transition.VirtualReward)
	require.False(t, transition.Terminal())
}

func TestStepTypePredicates(t *testing.T) {
	obs := mat.NewVecDense(1, []float64{0})

	first := New(First, 0, obs, 0, nil)
	require.True(t, first.First())
	require.False(t, first.Mid())
	require.False(t, first.Last())

	mid := New(Mid, 0.5, obs, 1, nil)
	require.True(t, mid.Mid())

	last := New(Last, 1, obs, 2, nil)
	require.True(t, last.Last())
}
