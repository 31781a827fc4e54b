package network

import "fmt"

// AuxTask enumerates the auxiliary objectives a value network can carry
// alongside its action-value head. The choice is process-wide and
// immutable: it is made once when the run is configured and decides both
// the network's auxiliary head and which optional transition fields the
// replay buffer stores.
type AuxTask string

const (
	// AuxNone trains the action-value head alone
	AuxNone AuxTask = "none"

	// AuxInputReconstruction decodes the representation back to the raw
	// input pixels as a regularizer
	AuxInputReconstruction AuxTask = "ir"

	// AuxRewardPrediction predicts the scalar reward from the
	// representation
	AuxRewardPrediction AuxTask = "reward"

	// AuxSuccessorFeatures predicts discounted future feature occupancy,
	// bootstrapped on-policy like a value function, and additionally
	// reconstructs the next state's pixels from the current
	// representation
	AuxSuccessorFeatures AuxTask = "sf"

	// AuxVirtualReward1 and AuxVirtualReward5 train a second action-value
	// surface on a virtual reward channel supplied by the environment,
	// bootstrapped on-policy. The two variants share one head; they
	// differ only in which channel the environment emits.
	AuxVirtualReward1 AuxTask = "virtual-reward-1"
	AuxVirtualReward5 AuxTask = "virtual-reward-5"
)

// ParseAuxTask parses an auxiliary objective from its configuration
// string. An unrecognized value is a configuration error and aborts the
// run at load time.
func ParseAuxTask(s string) (AuxTask, error) {
	task := AuxTask(s)
	switch task {
	case AuxNone, AuxInputReconstruction, AuxRewardPrediction,
		AuxSuccessorFeatures, AuxVirtualReward1, AuxVirtualReward5:
		return task, nil
	}
	return AuxNone, fmt.Errorf("parseauxtask: unknown auxiliary "+
		"objective %q", s)
}

// NeedsNextAction returns whether the objective's loss requires the
// action selected in the state following a stored transition. Such
// objectives force the one-step-delayed storage protocol.
func (a AuxTask) NeedsNextAction() bool {
	switch a {
	case AuxSuccessorFeatures, AuxVirtualReward1, AuxVirtualReward5:
		return true
	}
	return false
}

// NeedsVirtualReward returns whether the objective consumes the
// environment's virtual reward channel
func (a AuxTask) NeedsVirtualReward() bool {
	return a == AuxVirtualReward1 || a == AuxVirtualReward5
}

// HasHead returns whether the objective adds an auxiliary head to the
// network
func (a AuxTask) HasHead() bool {
	return a != AuxNone
}
