package expreplay

import (
	"golang.org/x/exp/rand"
)

// Selector chooses the buffer slots at which data should be sampled from
// an experience replay buffer
type Selector interface {
	// choose selects the slots at which data should be sampled from
	// the experience replay buffer
	choose(c *cache) []int

	// BatchSize returns the number of elements that will be selected
	BatchSize() int
}

// uniformSelector selects slots uniformly randomly without replacement,
// so a sampled batch always consists of distinct transitions.
type uniformSelector struct {
	samples int
	rng     *rand.Rand
}

// NewUniformSelector returns a new Selector which selects distinct slots
// uniformly randomly from an experience replay buffer
func NewUniformSelector(samples int, seed uint64) Selector {
	return &uniformSelector{
		samples: samples,
		rng:     rand.New(rand.NewSource(seed)),
	}
}

// BatchSize gets the number of samples in a batch drawn from the buffer
func (u *uniformSelector) BatchSize() int {
	return u.samples
}

// choose selects the slots at which to draw data from the buffer. The
// caller guarantees that the buffer holds at least BatchSize() samples.
//
// Only the first BatchSize() steps of a Fisher-Yates shuffle are run,
// with the displaced prefix tracked sparsely, so the cost depends on the
// batch size rather than on the buffer occupancy.
func (u *uniformSelector) choose(c *cache) []int {
	n := c.Capacity()
	chosen := make([]int, u.samples)
	displaced := make(map[int]int, u.samples)

	for i := 0; i < u.samples; i++ {
		j := i + u.rng.Intn(n-i)

		vi, ok := displaced[i]
		if !ok {
			vi = i
		}
		vj, ok := displaced[j]
		if !ok {
			vj = j
		}

		chosen[i] = vj
		displaced[j] = vi
	}
	return chosen
}
