package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/auxrl/auxdqn/network"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	filename := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(filename, []byte(contents), 0644))
	return filename
}

func TestLoadOverridesDefaults(t *testing.T) {
	filename := writeConfig(t, `
use_aux: sf
use_fta: true
learning_rate: 0.001
batch_size: 64
gamma: 0.9
eps_decay: 500
soft_target_update: true
tau: 0.01
horizon: 50
max_episodes: 200
consecutive_episodes: 10
`)

	c, err := Load(filename)
	require.NoError(t, err)

	require.Equal(t, "sf", c.UseAux)
	require.True(t, c.UseFTA)
	require.Equal(t, 0.001, c.LearningRate)
	require.Equal(t, 64, c.BatchSize)
	require.Equal(t, 0.9, c.Gamma)
	require.Equal(t, 500.0, c.EpsDecay)
	require.True(t, c.SoftTargetUpdate)
	require.Equal(t, 0.01, c.Tau)
	require.Equal(t, 50, c.Horizon)
	require.Equal(t, 200, c.MaxEpisodes)
	require.Equal(t, 10, c.ConsecutiveEpisodes)

	// Unset fields keep their defaults
	require.Equal(t, 0.9, c.EpsStart)
	require.Equal(t, 0.05, c.EpsEnd)
	require.Equal(t, ".models", c.ModelDir)
}

func TestLoadRejectsUnknownAux(t *testing.T) {
	filename := writeConfig(t, "use_aux: reward-prediction\n")
	_, err := Load(filename)
	require.Error(t, err)
}

func TestLoadRejectsTransferWithoutModel(t *testing.T) {
	filename := writeConfig(t, "transfer: true\n")
	_, err := Load(filename)
	require.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestAgentConfigMirrorsRunConfig(t *testing.T) {
	c := Default()
	c.UseAux = "virtual-reward-5"
	c.UseFTA = true
	c.BatchSize = 32
	c.Gamma = 0.95
	c.Seed = 9

	agentConfig := c.AgentConfig()
	require.Equal(t, network.AuxVirtualReward5, agentConfig.Aux)
	require.True(t, agentConfig.UseFTA)
	require.Equal(t, 32, agentConfig.BatchSize)
	require.Equal(t, 0.95, agentConfig.Gamma)
	require.Equal(t, uint64(9), agentConfig.Seed)
	require.NoError(t, agentConfig.Validate())
}

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}
