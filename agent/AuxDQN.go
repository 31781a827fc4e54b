// Package agent implements a deep Q-learning agent with auxiliary
// objectives. The agent owns three networks over shared architecture:
// a train network whose graph also carries the loss, a target network
// providing gradient-free bootstrap values, and a batch-1 selection
// network inside the ε-greedy policy. Weights flow train → selection
// after every solver step and train → target on the configured
// synchronization schedule.
package agent

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"

	"github.com/auxrl/auxdqn/environment"
	"github.com/auxrl/auxdqn/expreplay"
	"github.com/auxrl/auxdqn/network"
	"github.com/auxrl/auxdqn/policy"
	"github.com/auxrl/auxdqn/timestep"
)

// gradientClip bounds every gradient value fed to the solver
const gradientClip = 100.0

// AuxDQN is a deep Q-learning agent that trains an auxiliary objective
// alongside its action-value head.
//
// Transitions are stored through one of two protocols, fixed by the
// auxiliary objective. Objectives without an on-policy bootstrap store
// each transition as soon as it is observed. Objectives that bootstrap
// on the next selected action hold the latest transition pending and
// store it one step late, completed with the action chosen in its next
// state; EndEpisode flushes a still-pending transition as terminal.
type AuxDQN struct {
	config Config
	aux    network.AuxTask

	trainNet  *network.QNetwork
	targetNet *network.QNetwork
	policy    *policy.EGreedySchedule

	trainVM  G.VM
	targetVM G.VM
	solver   G.Solver

	// External input nodes of the train graph's loss
	selectedActions *G.Node
	rewards         *G.Node
	discounts       *G.Node
	nextQ           *G.Node
	reconTargets    *G.Node
	sfBootstrap     *G.Node
	nextStateRecs   *G.Node
	virtualTargets  *G.Node

	// The differentiated parameters; excludes auxiliary heads when the
	// auxiliary loss is suppressed
	learnables G.Nodes
	model      []G.ValueGrad

	replay   expreplay.ExperienceReplayer
	needNext bool

	prevObs  *mat.VecDense
	pending  *timestep.Transition
	episodes int

	features   int
	numActions int
}

// New creates and returns a new AuxDQN agent acting in env
func New(c Config, env environment.Environment) (*AuxDQN, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("new: invalid configuration: %v", err)
	}
	obsSpec := env.ObservationSpec()
	if len(obsSpec.Shape) != 3 {
		return nil, fmt.Errorf("new: observations must have shape "+
			"(channels, height, width), got %v", obsSpec.Shape)
	}
	channels, height, width := obsSpec.Shape[0], obsSpec.Shape[1],
		obsSpec.Shape[2]
	numActions := env.ActionSpace().N

	init := c.InitWFn
	if init == nil {
		init = G.GlorotU(1.0)
	}

	trainNet, err := network.NewQNetwork(channels, height, width,
		numActions, c.BatchSize, c.Aux, c.UseFTA, init)
	if err != nil {
		return nil, fmt.Errorf("new: could not create train network: %v",
			err)
	}
	targetNet, err := trainNet.Clone()
	if err != nil {
		return nil, fmt.Errorf("new: could not create target network: %v",
			err)
	}
	selectionNet, err := trainNet.CloneWithBatch(1)
	if err != nil {
		return nil, fmt.Errorf("new: could not create selection "+
			"network: %v", err)
	}

	pol, err := policy.NewEGreedySchedule(selectionNet, c.EpsStart,
		c.EpsEnd, c.EpsDecay, env.ActionSpace(), c.Seed)
	if err != nil {
		return nil, fmt.Errorf("new: could not create policy: %v", err)
	}

	agent := &AuxDQN{
		config:     c,
		aux:        c.Aux,
		trainNet:   trainNet,
		targetNet:  targetNet,
		policy:     pol,
		needNext:   c.Aux.NeedsNextAction(),
		features:   trainNet.Features(),
		numActions: numActions,
	}

	if err := agent.buildLoss(); err != nil {
		return nil, fmt.Errorf("new: could not build loss: %v", err)
	}

	for _, node := range agent.learnables {
		agent.model = append(agent.model, node)
	}

	agent.trainVM = G.NewTapeMachine(
		trainNet.Graph(),
		G.BindDualValues(agent.learnables...),
	)
	agent.targetVM = G.NewTapeMachine(targetNet.Graph())

	solverOpts := []G.SolverOpt{
		G.WithLearnRate(c.LearningRate),
		G.WithClip(gradientClip),
	}
	if c.WeightDecay > 0 {
		solverOpts = append(solverOpts, G.WithL2Reg(c.WeightDecay))
	}
	agent.solver = G.NewAdamSolver(solverOpts...)

	minCapacity := c.MinReplayCapacity
	if minCapacity < c.BatchSize {
		minCapacity = c.BatchSize
	}
	agent.replay, err = expreplay.New(
		minCapacity,
		c.MaxReplayCapacity,
		agent.features,
		numActions,
		c.BatchSize,
		c.Aux.NeedsNextAction(),
		c.Aux.NeedsVirtualReward(),
		c.Seed+1,
	)
	if err != nil {
		return nil, fmt.Errorf("new: could not create replay buffer: %v",
			err)
	}

	return agent, nil
}

// buildLoss adds the loss and its gradient to the train network's graph.
// External inputs (bootstrap values, targets) are computed outside the
// graph each optimization step, so no gradient flows into them; the one
// exception is the successor feature target, whose representation term
// deliberately stays inside the graph.
func (a *AuxDQN) buildLoss() error {
	g := a.trainNet.Graph()
	batch := a.config.BatchSize

	a.selectedActions = G.NewMatrix(
		g,
		tensor.Float64,
		G.WithShape(batch, a.numActions),
		G.WithName("selectedActions"),
	)
	a.rewards = G.NewVector(
		g,
		tensor.Float64,
		G.WithShape(batch),
		G.WithName("rewards"),
	)
	a.discounts = G.NewVector(
		g,
		tensor.Float64,
		G.WithShape(batch),
		G.WithName("discounts"),
	)
	a.nextQ = G.NewMatrix(
		g,
		tensor.Float64,
		G.WithShape(batch, a.numActions),
		G.WithName("nextStateActionValues"),
	)

	// TD target: r + discount·max_a' Q_target(s', a'). The discount is
	// zero at terminal transitions, killing the bootstrap term.
	bootstrap := G.Must(G.Max(a.nextQ, 1))
	bootstrap = G.Must(G.HadamardProd(bootstrap, a.discounts))
	target := G.Must(G.Add(bootstrap, a.rewards))

	prediction := G.Must(G.HadamardProd(a.trainNet.Prediction(),
		a.selectedActions))
	prediction = G.Must(G.Sum(prediction, 1))

	loss := G.Must(G.Mean(G.Must(G.Square(G.Must(G.Sub(prediction,
		target))))))

	if !a.config.Transfer && a.aux.HasHead() {
		auxLoss, err := a.buildAuxLoss(g, batch)
		if err != nil {
			return err
		}
		loss = G.Must(G.Add(loss, auxLoss))
	}

	// Gradients flow only into parameters the loss reaches: a transfer
	// run fine-tunes past an idle auxiliary head
	a.learnables = a.trainNet.Learnables()
	if a.config.Transfer && a.aux.HasHead() {
		a.learnables = a.trainNet.PrimaryLearnables()
	}
	_, err := G.Grad(loss, a.learnables...)
	return err
}

// buildAuxLoss adds the active auxiliary objective's loss terms to the
// train graph and returns their (possibly weighted) sum
func (a *AuxDQN) buildAuxLoss(g *G.ExprGraph, batch int) (*G.Node,
	error) {
	auxWeight := G.NewScalar(g, tensor.Float64, G.WithName("auxWeight"),
		G.WithValue(a.config.AuxLossWeight))

	switch a.aux {
	case network.AuxInputReconstruction:
		a.reconTargets = G.NewMatrix(
			g,
			tensor.Float64,
			G.WithShape(batch, a.features),
			G.WithName("reconstructionTargets"),
		)
		loss := mse(a.trainNet.AuxPrediction(), a.reconTargets)
		return G.Mul(auxWeight, loss)

	case network.AuxRewardPrediction:
		prediction := G.Must(G.Reshape(a.trainNet.AuxPrediction(),
			tensor.Shape{batch}))
		return mse(prediction, a.rewards), nil

	case network.AuxSuccessorFeatures:
		// ψ target: rep(s) + γ·ψ_target(s')[a'], the second term fed as
		// one gradient-free scalar per row, broadcast over the rep width
		a.sfBootstrap = G.NewMatrix(
			g,
			tensor.Float64,
			G.WithShape(batch, 1),
			G.WithName("sfBootstrap"),
		)
		sfTarget := G.Must(G.BroadcastAdd(a.trainNet.RepPrediction(),
			a.sfBootstrap, nil, []byte{1}))
		sfLoss := G.Must(G.Mul(auxWeight,
			mse(a.trainNet.AuxPrediction(), sfTarget)))

		a.nextStateRecs = G.NewMatrix(
			g,
			tensor.Float64,
			G.WithShape(batch, a.features),
			G.WithName("nextStateTargets"),
		)
		recLoss := mse(a.trainNet.NextStatePrediction(), a.nextStateRecs)
		return G.Add(sfLoss, recLoss)

	case network.AuxVirtualReward1, network.AuxVirtualReward5:
		a.virtualTargets = G.NewVector(
			g,
			tensor.Float64,
			G.WithShape(batch),
			G.WithName("virtualTargets"),
		)
		prediction := G.Must(G.HadamardProd(a.trainNet.AuxPrediction(),
			a.selectedActions))
		prediction = G.Must(G.Sum(prediction, 1))
		return mse(prediction, a.virtualTargets), nil
	}
	return nil, fmt.Errorf("buildauxloss: no loss for objective %v",
		a.aux)
}

// mse returns the mean squared error node between two nodes of equal
// shape
func mse(prediction, target *G.Node) *G.Node {
	return G.Must(G.Mean(G.Must(G.Square(G.Must(G.Sub(prediction,
		target))))))
}

// ObserveFirst observes the first observation of an episode
func (a *AuxDQN) ObserveFirst(obs *mat.VecDense) {
	a.prevObs = obs
}

// SelectAction selects an action for the argument observation, advancing
// the exploration schedule. For objectives with delayed storage, the
// transition held pending from the previous step is completed with the
// newly selected action, stored, and learned from.
func (a *AuxDQN) SelectAction(obs *mat.VecDense) (int, error) {
	action, err := a.policy.SelectAction(obs)
	if err != nil {
		return 0, fmt.Errorf("selectaction: %v", err)
	}

	if a.needNext && a.pending != nil {
		a.pending.NextAction = action
		if err := a.replay.Add(*a.pending); err != nil {
			return 0, fmt.Errorf("selectaction: could not store pending "+
				"transition: %v", err)
		}
		a.pending = nil
		if err := a.optimize(); err != nil {
			return 0, fmt.Errorf("selectaction: %v", err)
		}
	}
	return action, nil
}

// Observe observes the outcome of an action: the next observation, the
// reward, the environment's virtual reward channel, and whether the
// episode terminated
func (a *AuxDQN) Observe(action int, nextObs *mat.VecDense, reward,
	virtualReward float64, done bool) error {
	if a.prevObs == nil {
		return fmt.Errorf("observe: no first observation; call " +
			"ObserveFirst at episode start")
	}

	if a.needNext {
		transition := timestep.NewSarsaTransition(a.prevObs, action,
			reward, nextObs, 0, virtualReward)
		a.pending = &transition
	} else {
		storedNext := nextObs
		if done {
			storedNext = nil
		}
		transition := timestep.NewTransition(a.prevObs, action, reward,
			storedNext)
		if err := a.replay.Add(transition); err != nil {
			return fmt.Errorf("observe: could not store transition: %v",
				err)
		}
	}

	a.prevObs = nextObs
	return nil
}

// Step performs one learning step. Objectives with delayed storage learn
// inside SelectAction instead, when the pending transition completes.
// With soft synchronization active, the target network tracks the train
// network here on every environment step.
func (a *AuxDQN) Step() error {
	if !a.needNext {
		if err := a.optimize(); err != nil {
			return fmt.Errorf("step: %v", err)
		}
	}
	if a.config.SoftTargetUpdate {
		err := a.targetNet.Polyak(a.trainNet, a.config.Tau)
		if err != nil {
			return fmt.Errorf("step: could not update target network: %v",
				err)
		}
	}
	return nil
}

// EndEpisode finishes the current episode: a still-pending transition is
// stored as terminal and learned from, and with hard synchronization
// active the target network is refreshed on its episode schedule
func (a *AuxDQN) EndEpisode() error {
	if a.pending != nil {
		a.pending.NextState = nil
		if err := a.replay.Add(*a.pending); err != nil {
			return fmt.Errorf("endepisode: could not store terminal "+
				"transition: %v", err)
		}
		a.pending = nil
		if err := a.optimize(); err != nil {
			return fmt.Errorf("endepisode: %v", err)
		}
	}
	a.prevObs = nil

	// Episodes are indexed from zero, so the first refresh lands at the
	// end of the first episode
	if !a.config.SoftTargetUpdate &&
		a.episodes%a.config.TargetUpdate == 0 {
		if err := a.targetNet.Set(a.trainNet); err != nil {
			return fmt.Errorf("endepisode: could not update target "+
				"network: %v", err)
		}
	}
	a.episodes++
	return nil
}

// LoadWeights restores a weight snapshot into every network the agent
// holds, so that training and action selection resume from the saved
// parameters. Used to seed transfer runs.
func (a *AuxDQN) LoadWeights(filename string) error {
	if err := a.trainNet.Restore(filename); err != nil {
		return fmt.Errorf("loadweights: %v", err)
	}
	if err := a.targetNet.Set(a.trainNet); err != nil {
		return fmt.Errorf("loadweights: could not set target network: %v",
			err)
	}
	if err := a.policy.Network().Set(a.trainNet); err != nil {
		return fmt.Errorf("loadweights: could not set selection "+
			"network: %v", err)
	}
	return nil
}

// Epsilon returns the current exploration rate
func (a *AuxDQN) Epsilon() float64 {
	return a.policy.Epsilon()
}

// StepsDone returns the total number of actions selected over the
// agent's lifetime
func (a *AuxDQN) StepsDone() int {
	return a.policy.StepsDone()
}

// TargetNetwork returns the agent's target network, the network whose
// weights are checkpointed
func (a *AuxDQN) TargetNetwork() *network.QNetwork {
	return a.targetNet
}

// TrainNetwork returns the network the agent trains
func (a *AuxDQN) TrainNetwork() *network.QNetwork {
	return a.trainNet
}

// Replay returns the agent's replay buffer
func (a *AuxDQN) Replay() expreplay.ExperienceReplayer {
	return a.replay
}

// optimize performs a single batch update of the train network. An
// empty or underfilled replay buffer is a silent no-op.
func (a *AuxDQN) optimize() error {
	batch, err := a.replay.Sample()
	if expreplay.IsEmptyBuffer(err) ||
		expreplay.IsInsufficientSamples(err) {
		return nil
	} else if err != nil {
		return fmt.Errorf("optimize: could not sample replay buffer: %v",
			err)
	}

	// Bootstrap values come from the target network and carry no
	// gradient
	if err := a.targetNet.SetInput(batch.NextStates); err != nil {
		return fmt.Errorf("optimize: could not set target network "+
			"input: %v", err)
	}
	if err := a.targetVM.RunAll(); err != nil {
		return fmt.Errorf("optimize: could not run target network: %v",
			err)
	}
	nextQ := cloneData(a.targetNet.Output())
	var auxNext []float64
	if a.needNext && !a.config.Transfer {
		auxNext = cloneData(a.targetNet.AuxOutput())
	}
	a.targetVM.Reset()

	discounts := make([]float64, batch.Size)
	for i := range discounts {
		discounts[i] = a.config.Gamma * batch.Discounts[i]
	}

	type input struct {
		node    *G.Node
		backing []float64
		shape   tensor.Shape
	}
	lets := []input{
		{a.selectedActions, batch.Actions,
			tensor.Shape{batch.Size, a.numActions}},
		{a.rewards, batch.Rewards, tensor.Shape{batch.Size}},
		{a.discounts, discounts, tensor.Shape{batch.Size}},
		{a.nextQ, nextQ, tensor.Shape{batch.Size, a.numActions}},
	}

	if !a.config.Transfer {
		switch a.aux {
		case network.AuxInputReconstruction:
			lets = append(lets, input{a.reconTargets, batch.States,
				tensor.Shape{batch.Size, a.features}})

		case network.AuxSuccessorFeatures:
			repWidth := a.trainNet.RepWidth()
			boot := make([]float64, batch.Size)
			for i := range boot {
				action := oneHotIndex(batch.NextActions, i, a.numActions)
				// Terminal rows store a zero pseudo-state; the zero
				// discount keeps its features out of the target
				boot[i] = discounts[i] * auxNext[i*repWidth+action]
			}
			lets = append(lets,
				input{a.sfBootstrap, boot, tensor.Shape{batch.Size, 1}},
				input{a.nextStateRecs, batch.NextStates,
					tensor.Shape{batch.Size, a.features}})

		case network.AuxVirtualReward1, network.AuxVirtualReward5:
			targets := make([]float64, batch.Size)
			for i := range targets {
				action := oneHotIndex(batch.NextActions, i, a.numActions)
				targets[i] = batch.VirtualRewards[i] +
					discounts[i]*auxNext[i*a.numActions+action]
			}
			lets = append(lets, input{a.virtualTargets, targets,
				tensor.Shape{batch.Size}})
		}
	}

	for _, l := range lets {
		value := tensor.New(
			tensor.WithBacking(l.backing),
			tensor.WithShape(l.shape...),
		)
		if err := G.Let(l.node, value); err != nil {
			return fmt.Errorf("optimize: could not set %v: %v",
				l.node.Name(), err)
		}
	}

	if err := a.trainNet.SetInput(batch.States); err != nil {
		return fmt.Errorf("optimize: could not set train network "+
			"input: %v", err)
	}
	if err := a.trainVM.RunAll(); err != nil {
		return fmt.Errorf("optimize: could not run train network: %v",
			err)
	}
	if err := a.solver.Step(a.model); err != nil {
		return fmt.Errorf("optimize: could not step solver: %v", err)
	}
	a.trainVM.Reset()

	// The selection network acts on the newest weights
	if err := a.policy.Network().Set(a.trainNet); err != nil {
		return fmt.Errorf("optimize: could not update selection "+
			"network: %v", err)
	}
	return nil
}

// cloneData copies the float64 backing of a gorgonia value
func cloneData(value G.Value) []float64 {
	data := value.Data().([]float64)
	out := make([]float64, len(data))
	copy(out, data)
	return out
}

// oneHotIndex returns the index encoded by row i of a flat batch of
// one-hot rows of the argument width
func oneHotIndex(oneHot []float64, i, width int) int {
	row := oneHot[i*width : (i+1)*width]
	for j, v := range row {
		if v == 1 {
			return j
		}
	}
	return 0
}
