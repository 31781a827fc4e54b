package timestep

import "gonum.org/v1/gonum/mat"

// Transition is a single stored experience step. NextState is nil if and
// only if the transition ended the episode; no separate terminal flag
// exists, so the invariant cannot drift.
//
// NextAction is meaningful only when the configured auxiliary objective
// bootstraps on the action actually taken in the next state (successor
// features and the virtual value functions). VirtualReward is meaningful
// only for the virtual value function objectives. Whether these fields are
// populated is decided once per run by the auxiliary configuration, never
// per transition.
type Transition struct {
	State         *mat.VecDense
	Action        int
	Reward        float64
	NextState     *mat.VecDense
	NextAction    int
	VirtualReward float64
}

// NewTransition returns a Transition for objectives that do not need
// look-ahead action information. A nil nextState marks the transition as
// terminal.
func NewTransition(state *mat.VecDense, action int, reward float64,
	nextState *mat.VecDense) Transition {
	return Transition{
		State:     state,
		Action:    action,
		Reward:    reward,
		NextState: nextState,
	}
}

// NewSarsaTransition returns a Transition carrying the action selected in
// the next state, for objectives with an on-policy bootstrap. A nil
// nextState marks the transition as terminal.
func NewSarsaTransition(state *mat.VecDense, action int, reward float64,
	nextState *mat.VecDense, nextAction int,
	virtualReward float64) Transition {
	return Transition{
		State:         state,
		Action:        action,
		Reward:        reward,
		NextState:     nextState,
		NextAction:    nextAction,
		VirtualReward: virtualReward,
	}
}

// Terminal returns whether the transition ended its episode
func (t *Transition) Terminal() bool {
	return t.NextState == nil
}
