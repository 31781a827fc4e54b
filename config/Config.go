// Package config implements run configuration loaded from a YAML file
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/auxrl/auxdqn/agent"
	"github.com/auxrl/auxdqn/expreplay"
	"github.com/auxrl/auxdqn/network"
)

// Config is the full configuration of a training run
type Config struct {
	// UseAux selects the auxiliary objective: none, ir, reward, sf,
	// virtual-reward-1 or virtual-reward-5
	UseAux string `yaml:"use_aux"`
	UseFTA bool   `yaml:"use_fta"`

	// Transfer fine-tunes pretrained weights with every auxiliary loss
	// suppressed. LoadModel names the weight snapshot to start from.
	Transfer  bool   `yaml:"transfer"`
	LoadModel string `yaml:"load_model"`

	LearningRate  float64 `yaml:"learning_rate"`
	WeightDecay   float64 `yaml:"weight_decay"`
	BatchSize     int     `yaml:"batch_size"`
	Gamma         float64 `yaml:"gamma"`
	AuxLossWeight float64 `yaml:"aux_loss_weight"`

	EpsStart float64 `yaml:"eps_start"`
	EpsEnd   float64 `yaml:"eps_end"`
	EpsDecay float64 `yaml:"eps_decay"`

	TargetUpdate     int     `yaml:"target_update"`
	SoftTargetUpdate bool    `yaml:"soft_target_update"`
	Tau              float64 `yaml:"tau"`

	ReplayCapacity int `yaml:"replay_capacity"`

	Horizon             int `yaml:"horizon"`
	MaxEpisodes         int `yaml:"max_episodes"`
	ConsecutiveEpisodes int `yaml:"consecutive_episodes"`
	SaveRatio           int `yaml:"save_ratio"`

	SaveModel          bool   `yaml:"save_model"`
	SaveRewards        bool   `yaml:"save_rewards"`
	PlotDuringTraining bool   `yaml:"plot_during_training"`
	ModelDir           string `yaml:"model_dir"`
	RewardDir          string `yaml:"reward_dir"`

	Seed uint64 `yaml:"seed"`
}

// Default returns the default run configuration
func Default() Config {
	return Config{
		UseAux:              string(network.AuxNone),
		LearningRate:        1e-4,
		BatchSize:           128,
		Gamma:               0.99,
		AuxLossWeight:       1.0,
		EpsStart:            0.9,
		EpsEnd:              0.05,
		EpsDecay:            1000,
		TargetUpdate:        10,
		Tau:                 0.005,
		ReplayCapacity:      expreplay.DefaultCapacity,
		Horizon:             100,
		MaxEpisodes:         600,
		ConsecutiveEpisodes: 40,
		SaveRatio:           100,
		SaveModel:           true,
		SaveRewards:         true,
		ModelDir:            ".models",
		RewardDir:           ".rewards",
	}
}

// Load reads a run configuration from a YAML file. Fields absent from
// the file keep their defaults.
func Load(filename string) (Config, error) {
	c := Default()

	data, err := os.ReadFile(filename)
	if err != nil {
		return c, fmt.Errorf("load: could not read config file: %v", err)
	}
	if err := yaml.Unmarshal(data, &c); err != nil {
		return c, fmt.Errorf("load: could not parse config file: %v", err)
	}
	if err := c.Validate(); err != nil {
		return c, fmt.Errorf("load: %v", err)
	}
	return c, nil
}

// Validate checks whether the Config is valid
func (c Config) Validate() error {
	if _, err := network.ParseAuxTask(c.UseAux); err != nil {
		return fmt.Errorf("validate: %v", err)
	}
	if c.MaxEpisodes < 1 {
		return fmt.Errorf("validate: max episodes must be > 0")
	}
	if c.Horizon < 1 {
		return fmt.Errorf("validate: horizon must be > 0")
	}
	if c.ConsecutiveEpisodes < 0 {
		return fmt.Errorf("validate: consecutive episodes must be >= 0")
	}
	if c.SaveRatio < 0 {
		return fmt.Errorf("validate: save ratio must be >= 0")
	}
	if c.Transfer && c.LoadModel == "" {
		return fmt.Errorf("validate: transfer requires load_model")
	}
	return c.AgentConfig().Validate()
}

// AgentConfig returns the agent configuration described by the Config
func (c Config) AgentConfig() agent.Config {
	agentConfig := agent.DefaultConfig()
	agentConfig.Aux = network.AuxTask(c.UseAux)
	agentConfig.UseFTA = c.UseFTA
	agentConfig.Transfer = c.Transfer
	agentConfig.LearningRate = c.LearningRate
	agentConfig.WeightDecay = c.WeightDecay
	agentConfig.BatchSize = c.BatchSize
	agentConfig.Gamma = c.Gamma
	agentConfig.AuxLossWeight = c.AuxLossWeight
	agentConfig.EpsStart = c.EpsStart
	agentConfig.EpsEnd = c.EpsEnd
	agentConfig.EpsDecay = c.EpsDecay
	agentConfig.TargetUpdate = c.TargetUpdate
	agentConfig.SoftTargetUpdate = c.SoftTargetUpdate
	agentConfig.Tau = c.Tau
	agentConfig.MaxReplayCapacity = c.ReplayCapacity
	agentConfig.Seed = c.Seed
	return agentConfig
}
