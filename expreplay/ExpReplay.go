// Package expreplay implements the bounded experience replay buffer that
// the learning engine samples past transitions from.
package expreplay

import (
	"fmt"

	"github.com/auxrl/auxdqn/timestep"
)

// DefaultCapacity is the replay capacity used when a run does not
// configure one explicitly.
const DefaultCapacity = 1_000_000

// Batch holds a batch of sampled transitions as flat float64 slices, one
// row per transition. States and NextStates hold flattened pixel
// observations, Actions and NextActions hold one-hot action encodings.
// Discounts holds 1 for non-terminal transitions and 0 for terminal ones;
// the learner scales it by its discount factor, so a terminal transition
// bootstraps to exactly 0. NextActions and VirtualRewards are nil unless
// the buffer was configured to store them.
type Batch struct {
	Size           int
	States         []float64
	Actions        []float64
	Rewards        []float64
	Discounts      []float64
	NextStates     []float64
	NextActions    []float64
	VirtualRewards []float64
}

// ExperienceReplayer implements an experience replay buffer
type ExperienceReplayer interface {
	// Add adds a transition to the buffer, evicting the oldest stored
	// transition once the buffer is full
	Add(t timestep.Transition) error

	// Sample samples a batch of distinct transitions from the buffer
	Sample() (Batch, error)

	// Capacity returns the current number of samples in the buffer
	Capacity() int

	// MaxCapacity returns the maximum allowable samples in the buffer
	MaxCapacity() int

	// MinCapacity returns the number of samples required to be in
	// the buffer before the buffer can be sampled
	MinCapacity() int

	// BatchSize returns the number of samples returned by Sample()
	BatchSize() int
}

// cache implements a concrete ExperienceReplayer as a fixed-capacity ring.
// Data is stored in flat caches indexed by slot; once the ring is full,
// each insertion overwrites the oldest slot (FiFo eviction).
type cache struct {
	// storeNextAction and storeVirtualReward denote which optional
	// transition fields the active auxiliary configuration requires
	storeNextAction    bool
	storeVirtualReward bool

	stateCache         []float64
	actionCache        []float64
	rewardCache        []float64
	discountCache      []float64
	nextStateCache     []float64
	nextActionCache    []float64
	virtualRewardCache []float64

	currentInUsePos int
	isFull          bool

	sampler Selector

	minCapacity int
	maxCapacity int
	featureSize int
	actionSize  int
}

// New creates and returns a new ExperienceReplayer with FiFo eviction and
// uniform sampling without replacement. The featureSize parameter is the
// length of a flattened observation and actionSize the cardinality of the
// action space. The minCapacity parameter determines the number of samples
// that must be in the buffer before sampling is allowed. The
// storeNextAction and storeVirtualReward parameters determine which
// optional transition fields are stored; they are fixed for the lifetime
// of the buffer.
func New(minCapacity, maxCapacity, featureSize, actionSize, sampleSize int,
	storeNextAction, storeVirtualReward bool,
	seed uint64) (ExperienceReplayer, error) {
	if minCapacity <= 0 {
		return nil, fmt.Errorf("new: minCapacity must be > 0")
	}
	if maxCapacity < 1 {
		return nil, fmt.Errorf("new: maxCapacity must be >= 1")
	}
	if maxCapacity < sampleSize {
		return nil, fmt.Errorf("new: cannot have batch size (%v) > max "+
			"buffer capacity (%v)", sampleSize, maxCapacity)
	}
	if storeVirtualReward && !storeNextAction {
		return nil, fmt.Errorf("new: virtual rewards require next actions")
	}

	var nextActionCache, virtualRewardCache []float64
	if storeNextAction {
		nextActionCache = make([]float64, maxCapacity*actionSize)
	}
	if storeVirtualReward {
		virtualRewardCache = make([]float64, maxCapacity)
	}

	return &cache{
		storeNextAction:    storeNextAction,
		storeVirtualReward: storeVirtualReward,

		stateCache:         make([]float64, maxCapacity*featureSize),
		actionCache:        make([]float64, maxCapacity*actionSize),
		rewardCache:        make([]float64, maxCapacity),
		discountCache:      make([]float64, maxCapacity),
		nextStateCache:     make([]float64, maxCapacity*featureSize),
		nextActionCache:    nextActionCache,
		virtualRewardCache: virtualRewardCache,

		sampler: NewUniformSelector(sampleSize, seed),

		minCapacity: minCapacity,
		maxCapacity: maxCapacity,
		featureSize: featureSize,
		actionSize:  actionSize,
	}, nil
}

// String returns the string representation of the cache
func (c *cache) String() string {
	baseStr := "Capacity: %v/%v \nStates: %v \nActions: %v \nRewards: %v" +
		" \nDiscounts: %v \nNext States: %v"
	return fmt.Sprintf(baseStr, c.Capacity(), c.MaxCapacity(), c.stateCache,
		c.actionCache, c.rewardCache, c.discountCache, c.nextStateCache)
}

// BatchSize returns the number of samples sampled using Sample() -
// a.k.a the batch size
func (c *cache) BatchSize() int {
	return c.sampler.BatchSize()
}

// Capacity returns the current number of elements in the cache that
// are available for sampling
func (c *cache) Capacity() int {
	if c.isFull {
		return c.maxCapacity
	}
	return c.currentInUsePos
}

// MaxCapacity returns the maximum number of elements that are allowed
// in the cache
func (c *cache) MaxCapacity() int {
	return c.maxCapacity
}

// MinCapacity returns the minimum number of elements required in the
// cache before sampling is allowed
func (c *cache) MinCapacity() int {
	return c.minCapacity
}

// Add adds a transition to the cache, overwriting the oldest stored
// transition once the cache is full
func (c *cache) Add(t timestep.Transition) error {
	if t.State.Len() != c.featureSize {
		return fmt.Errorf("add: invalid feature size \n\twant(%v)"+
			"\n\thave(%v)", c.featureSize, t.State.Len())
	}
	if !t.Terminal() && t.NextState.Len() != c.featureSize {
		return fmt.Errorf("add: invalid next state feature size "+
			"\n\twant(%v)\n\thave(%v)", c.featureSize, t.NextState.Len())
	}
	if t.Action < 0 || t.Action >= c.actionSize {
		return fmt.Errorf("add: invalid action \n\twant(∈ [0, %v))"+
			"\n\thave(%v)", c.actionSize, t.Action)
	}

	index := c.currentInUsePos
	if !c.isFull && index+1 == c.maxCapacity {
		c.isFull = true
	}

	stateInd := index * c.featureSize
	copy(c.stateCache[stateInd:stateInd+c.featureSize],
		t.State.RawVector().Data)

	// A terminal transition has no next state; its slot stores zeros and
	// a zero discount so that bootstrap terms vanish.
	nextState := c.nextStateCache[stateInd : stateInd+c.featureSize]
	if t.Terminal() {
		zero(nextState)
		c.discountCache[index] = 0
	} else {
		copy(nextState, t.NextState.RawVector().Data)
		c.discountCache[index] = 1
	}

	actionInd := index * c.actionSize
	oneHot(c.actionCache[actionInd:actionInd+c.actionSize], t.Action)
	if c.storeNextAction {
		oneHot(c.nextActionCache[actionInd:actionInd+c.actionSize],
			t.NextAction)
	}

	c.rewardCache[index] = t.Reward
	if c.storeVirtualReward {
		c.virtualRewardCache[index] = t.VirtualReward
	}

	c.currentInUsePos = (c.currentInUsePos + 1) % c.maxCapacity
	return nil
}

// Sample samples and returns a batch of distinct transitions from the
// replay buffer
func (c *cache) Sample() (Batch, error) {
	if c.Capacity() == 0 {
		return Batch{}, &ExpReplayError{Op: "sample", Err: errEmptyCache}
	}
	if c.Capacity() < c.MinCapacity() || c.Capacity() < c.BatchSize() {
		return Batch{}, &ExpReplayError{
			Op:  "sample",
			Err: errInsufficientSamples,
		}
	}

	indices := c.sampler.choose(c)

	batch := Batch{
		Size:       c.BatchSize(),
		States:     make([]float64, c.BatchSize()*c.featureSize),
		Actions:    make([]float64, c.BatchSize()*c.actionSize),
		Rewards:    make([]float64, c.BatchSize()),
		Discounts:  make([]float64, c.BatchSize()),
		NextStates: make([]float64, c.BatchSize()*c.featureSize),
	}
	if c.storeNextAction {
		batch.NextActions = make([]float64, c.BatchSize()*c.actionSize)
	}
	if c.storeVirtualReward {
		batch.VirtualRewards = make([]float64, c.BatchSize())
	}

	for i, index := range indices {
		batchStartInd := i * c.featureSize
		expStartInd := index * c.featureSize
		copy(batch.States[batchStartInd:batchStartInd+c.featureSize],
			c.stateCache[expStartInd:expStartInd+c.featureSize])
		copy(batch.NextStates[batchStartInd:batchStartInd+c.featureSize],
			c.nextStateCache[expStartInd:expStartInd+c.featureSize])
	}

	for i, index := range indices {
		batchStartInd := i * c.actionSize
		expStartInd := index * c.actionSize
		copy(batch.Actions[batchStartInd:batchStartInd+c.actionSize],
			c.actionCache[expStartInd:expStartInd+c.actionSize])
		if c.storeNextAction {
			copy(batch.NextActions[batchStartInd:batchStartInd+c.actionSize],
				c.nextActionCache[expStartInd:expStartInd+c.actionSize])
		}
	}

	for i, index := range indices {
		batch.Rewards[i] = c.rewardCache[index]
		batch.Discounts[i] = c.discountCache[index]
		if c.storeVirtualReward {
			batch.VirtualRewards[i] = c.virtualRewardCache[index]
		}
	}

	return batch, nil
}

// oneHot writes the one-hot encoding of action into dst
func oneHot(dst []float64, action int) {
	zero(dst)
	dst[action] = 1.0
}

// zero zeroes dst in place
func zero(dst []float64) {
	for i := range dst {
		dst[i] = 0
	}
}
