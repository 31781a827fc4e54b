package agent

import (
	"fmt"

	G "gorgonia.org/gorgonia"

	"github.com/auxrl/auxdqn/expreplay"
	"github.com/auxrl/auxdqn/network"
)

// Config implements the configuration of an AuxDQN agent
type Config struct {
	// Aux selects the auxiliary objective trained alongside the
	// action-value head. It also decides the transition storage
	// protocol: objectives with an on-policy bootstrap store
	// transitions one step late, once the next action is known.
	Aux network.AuxTask

	// UseFTA widens the network's representation with the fuzzy tiling
	// transform
	UseFTA bool

	// Transfer suppresses every auxiliary loss term, fine-tuning the
	// action-value head alone on pretrained weights
	Transfer bool

	LearningRate  float64
	WeightDecay   float64
	BatchSize     int
	Gamma         float64
	AuxLossWeight float64

	// Exploration schedule
	EpsStart float64
	EpsEnd   float64
	EpsDecay float64

	// Target synchronization. Exactly one mode is active per run: soft
	// Polyak averaging after every environment step when
	// SoftTargetUpdate is set, otherwise a hard copy every TargetUpdate
	// episodes.
	TargetUpdate     int
	SoftTargetUpdate bool
	Tau              float64

	MinReplayCapacity int
	MaxReplayCapacity int

	// InitWFn initializes network weights. A nil value selects Glorot
	// uniform initialization.
	InitWFn G.InitWFn

	Seed uint64
}

// DefaultConfig returns a Config with default hyperparameters
func DefaultConfig() Config {
	return Config{
		Aux:               network.AuxNone,
		LearningRate:      1e-4,
		BatchSize:         128,
		Gamma:             0.99,
		AuxLossWeight:     1.0,
		EpsStart:          0.9,
		EpsEnd:            0.05,
		EpsDecay:          1000,
		TargetUpdate:      10,
		Tau:               0.005,
		MinReplayCapacity: 128,
		MaxReplayCapacity: expreplay.DefaultCapacity,
	}
}

// Validate checks whether the Config is valid
func (c Config) Validate() error {
	if _, err := network.ParseAuxTask(string(c.Aux)); err != nil {
		return fmt.Errorf("validate: %v", err)
	}
	if c.LearningRate <= 0 {
		return fmt.Errorf("validate: learning rate must be > 0")
	}
	if c.WeightDecay < 0 {
		return fmt.Errorf("validate: weight decay must be >= 0")
	}
	if c.BatchSize < 1 {
		return fmt.Errorf("validate: batch size must be > 0")
	}
	if c.Gamma < 0 || c.Gamma > 1 {
		return fmt.Errorf("validate: discount must be in [0, 1]")
	}
	if c.EpsDecay <= 0 {
		return fmt.Errorf("validate: epsilon decay must be > 0")
	}
	if c.SoftTargetUpdate && (c.Tau <= 0 || c.Tau > 1) {
		return fmt.Errorf("validate: tau must be in (0, 1] for soft "+
			"target updates, got %v", c.Tau)
	}
	if !c.SoftTargetUpdate && c.TargetUpdate < 1 {
		return fmt.Errorf("validate: target update period must be > 0 " +
			"for hard target updates")
	}
	if c.MaxReplayCapacity < c.BatchSize {
		return fmt.Errorf("validate: replay capacity (%v) must hold at "+
			"least one batch (%v)", c.MaxReplayCapacity, c.BatchSize)
	}
	return nil
}
