// Package network implements the multi-head value network: a shared
// convolutional encoder feeding an action-value head and, depending on
// the configured auxiliary objective, one of five auxiliary heads. All
// heads read the same representation; forward evaluation has no side
// effects.
package network

import (
	"fmt"

	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// Architecture constants shared by every variant. The encoder projects
// pixels down to a 32-unit representation; the fuzzy tiling transform
// expands it to 32*FTATiles when enabled.
const (
	encoderConv1Filters = 32
	encoderConv2Filters = 16
	projectionWidth     = 32
	qHiddenWidth        = 64
	rewardHidden1Width  = 1024
	rewardHidden2Width  = 128
)

// NeuralNet is the read-and-update surface a value network exposes to
// code that does not construct networks: target synchronization,
// checkpointing and tests.
type NeuralNet interface {
	Graph() *G.ExprGraph
	BatchSize() int
	Features() int
	SetInput([]float64) error
	Learnables() G.Nodes
	Model() []G.ValueGrad
	Output() G.Value
	Prediction() *G.Node
}

// QNetwork is a multi-head value network on a single gorgonia graph.
// Each instance owns its graph and parameters outright; two instances
// never alias, so copying weights between a policy and a target network
// is always an explicit Set or Polyak call.
//
// The forward pass maps a batch of flattened pixel observations to
//
//	(q values, auxiliary output, representation, next-state prediction)
//
// where the last three are only present for the auxiliary objectives
// that define them.
type QNetwork struct {
	g *G.ExprGraph

	channels, height, width int
	numActions              int
	batchSize               int
	aux                     AuxTask
	useFTA                  bool
	repWidth                int
	flatSize                int
	convHeight, convWidth   int

	input *G.Node

	encoder []Layer
	qHead   []Layer
	auxHead []Layer
	// nextHead is the second reconstruction decoder used by the
	// successor feature objective to predict the next state's pixels
	nextHead []Layer

	prediction     *G.Node
	auxPrediction  *G.Node
	repPrediction  *G.Node
	nextPrediction *G.Node

	predVal G.Value
	auxVal  G.Value
	repVal  G.Value
	nextVal G.Value

	learnables G.Nodes
	model      []G.ValueGrad
}

// NewQNetwork creates and returns a new QNetwork on its own graph for
// observations of shape (channels, height, width) and numActions
// discrete actions. The aux parameter selects the auxiliary head, fixed
// for the lifetime of the network. The useFTA parameter enables the
// fuzzy tiling transform on the representation, widening it from 32 to
// 640 units. Weights are initialized by init.
func NewQNetwork(channels, height, width, numActions, batch int,
	aux AuxTask, useFTA bool, init G.InitWFn) (*QNetwork, error) {
	if channels < 1 || height < 1 || width < 1 {
		return nil, fmt.Errorf("newqnetwork: invalid observation shape "+
			"(%v, %v, %v)", channels, height, width)
	}
	if numActions < 1 {
		return nil, fmt.Errorf("newqnetwork: numActions must be > 0")
	}
	if batch < 1 {
		return nil, fmt.Errorf("newqnetwork: batch must be > 0")
	}
	if _, err := ParseAuxTask(string(aux)); err != nil {
		return nil, fmt.Errorf("newqnetwork: %v", err)
	}

	g := G.NewGraph()
	features := channels * height * width

	net := &QNetwork{
		g:          g,
		channels:   channels,
		height:     height,
		width:      width,
		numActions: numActions,
		batchSize:  batch,
		aux:        aux,
		useFTA:     useFTA,
	}

	// Shared encoder: two convolutional stages, flatten, projection
	conv1 := newConv2dLayer(g, channels, encoderConv1Filters, 4, 1, 1,
		ReLU(), init, "encoderConv1")
	conv2 := newConv2dLayer(g, encoderConv1Filters, encoderConv2Filters,
		4, 2, 2, ReLU(), init, "encoderConv2")
	net.convHeight = conv2.outSize(conv1.outSize(height))
	net.convWidth = conv2.outSize(conv1.outSize(width))
	if net.convHeight < 1 || net.convWidth < 1 {
		return nil, fmt.Errorf("newqnetwork: observation %vx%v too small "+
			"for the encoder", height, width)
	}
	net.flatSize = encoderConv2Filters * net.convHeight * net.convWidth

	projectionAct := ReLU()
	if useFTA {
		// The tiling transform replaces the projection nonlinearity
		projectionAct = Identity()
	}
	net.encoder = []Layer{
		&reshapeLayer{dims: []int{channels, height, width}},
		conv1,
		conv2,
		&reshapeLayer{},
		newFCLayer(g, net.flatSize, projectionWidth, projectionAct, init,
			"encoderProjection"),
	}
	net.repWidth = projectionWidth
	if useFTA {
		fta := newFTALayer(FTATiles, FTABoundLow, FTABoundHigh, FTAEta)
		net.encoder = append(net.encoder, fta)
		net.repWidth = projectionWidth * fta.Expansion()
	}

	net.qHead = []Layer{
		newFCLayer(g, net.repWidth, qHiddenWidth, ReLU(), init, "q1"),
		newFCLayer(g, qHiddenWidth, qHiddenWidth, ReLU(), init, "q2"),
		newFCLayer(g, qHiddenWidth, numActions, Identity(), init, "q3"),
	}

	switch aux {
	case AuxInputReconstruction:
		head, err := net.newDecoder(g, init, "reconstruction")
		if err != nil {
			return nil, err
		}
		net.auxHead = head
	case AuxRewardPrediction:
		net.auxHead = []Layer{
			newFCLayer(g, net.repWidth, rewardHidden1Width, ReLU(), init,
				"reward1"),
			newFCLayer(g, rewardHidden1Width, rewardHidden2Width, ReLU(),
				init, "reward2"),
			newFCLayer(g, rewardHidden2Width, 1, Identity(), init,
				"reward3"),
		}
	case AuxSuccessorFeatures:
		net.auxHead = []Layer{
			newFCLayer(g, net.repWidth, net.repWidth, ReLU(), init, "sf1"),
			newFCLayer(g, net.repWidth, net.repWidth, Identity(), init,
				"sf2"),
		}
		head, err := net.newDecoder(g, init, "nextState")
		if err != nil {
			return nil, err
		}
		net.nextHead = head
	case AuxVirtualReward1, AuxVirtualReward5:
		net.auxHead = []Layer{
			newFCLayer(g, net.repWidth, qHiddenWidth, ReLU(), init,
				"virtualQ1"),
			newFCLayer(g, qHiddenWidth, qHiddenWidth, ReLU(), init,
				"virtualQ2"),
			newFCLayer(g, qHiddenWidth, numActions, Identity(), init,
				"virtualQ3"),
		}
	}

	net.input = G.NewMatrix(
		g,
		tensor.Float64,
		G.WithShape(batch, features),
		G.WithName("input"),
		G.WithInit(G.Zeroes()),
	)
	if err := net.fwd(net.input); err != nil {
		return nil, fmt.Errorf("newqnetwork: could not compute forward "+
			"pass: %v", err)
	}
	return net, nil
}

// newDecoder returns the upsampling decoder that maps a representation
// back to the raw spatial input shape
func (q *QNetwork) newDecoder(g *G.ExprGraph, init G.InitWFn,
	name string) ([]Layer, error) {
	// Upsampling doubles the encoder's spatial size; the following
	// unpadded 2x2 convolution takes off one pixel per dimension
	if 2*q.convHeight-1 != q.height || 2*q.convWidth-1 != q.width {
		return nil, fmt.Errorf("newdecoder: %vx%v observations cannot be "+
			"reconstructed from a %vx%v encoding; use odd spatial "+
			"dimensions", q.height, q.width, q.convHeight, q.convWidth)
	}
	return []Layer{
		newFCLayer(g, q.repWidth, q.flatSize, ReLU(), init, name+"Fc"),
		&reshapeLayer{dims: []int{encoderConv2Filters, q.convHeight,
			q.convWidth}},
		&upsampleLayer{scale: 2},
		newConv2dLayer(g, encoderConv2Filters, encoderConv1Filters, 2, 0,
			1, ReLU(), init, name+"Conv1"),
		newConv2dLayer(g, encoderConv1Filters, q.channels, 3, 1, 1,
			ReLU(), init, name+"Conv2"),
		&reshapeLayer{},
	}, nil
}

// fwd performs the forward pass of the QNetwork on the input node
func (q *QNetwork) fwd(input *G.Node) error {
	scale := G.NewScalar(q.g, tensor.Float64, G.WithName("obsScale"),
		G.WithValue(1.0/255.0))
	normalized := G.Must(G.Mul(input, scale))

	rep, err := forward(q.encoder, normalized)
	if err != nil {
		return fmt.Errorf("fwd: encoder: %v", err)
	}
	q.repPrediction = rep
	G.Read(q.repPrediction, &q.repVal)

	pred, err := forward(q.qHead, rep)
	if err != nil {
		return fmt.Errorf("fwd: action-value head: %v", err)
	}
	q.prediction = pred
	G.Read(q.prediction, &q.predVal)

	if q.auxHead != nil {
		aux, err := forward(q.auxHead, rep)
		if err != nil {
			return fmt.Errorf("fwd: auxiliary head: %v", err)
		}
		q.auxPrediction = aux
		G.Read(q.auxPrediction, &q.auxVal)
	}

	if q.nextHead != nil {
		next, err := forward(q.nextHead, rep)
		if err != nil {
			return fmt.Errorf("fwd: next-state head: %v", err)
		}
		q.nextPrediction = next
		G.Read(q.nextPrediction, &q.nextVal)
	}
	return nil
}

// Graph returns the computational graph of the QNetwork
func (q *QNetwork) Graph() *G.ExprGraph {
	return q.g
}

// Clone clones a QNetwork onto a fresh graph, copying all weights
func (q *QNetwork) Clone() (*QNetwork, error) {
	return q.CloneWithBatch(q.batchSize)
}

// CloneWithBatch clones a QNetwork onto a fresh graph with a new input
// batch size, copying all weights
func (q *QNetwork) CloneWithBatch(batch int) (*QNetwork, error) {
	if batch < 1 {
		return nil, fmt.Errorf("clonewithbatch: batch must be > 0")
	}
	graph := G.NewGraph()

	clone := &QNetwork{
		g:          graph,
		channels:   q.channels,
		height:     q.height,
		width:      q.width,
		numActions: q.numActions,
		batchSize:  batch,
		aux:        q.aux,
		useFTA:     q.useFTA,
		repWidth:   q.repWidth,
		flatSize:   q.flatSize,
		convHeight: q.convHeight,
		convWidth:  q.convWidth,

		encoder:  cloneLayersTo(q.encoder, graph),
		qHead:    cloneLayersTo(q.qHead, graph),
		auxHead:  cloneLayersTo(q.auxHead, graph),
		nextHead: cloneLayersTo(q.nextHead, graph),
	}

	clone.input = G.NewMatrix(
		graph,
		tensor.Float64,
		G.WithShape(batch, q.Features()),
		G.WithName("input"),
		G.WithInit(G.Zeroes()),
	)
	if err := clone.fwd(clone.input); err != nil {
		return nil, fmt.Errorf("clonewithbatch: could not compute "+
			"forward pass: %v", err)
	}
	return clone, nil
}

// BatchSize returns the batch size of inputs to the QNetwork
func (q *QNetwork) BatchSize() int {
	return q.batchSize
}

// Features returns the number of features in a single flattened
// observation
func (q *QNetwork) Features() int {
	return q.channels * q.height * q.width
}

// Outputs returns the number of action values predicted by the network
func (q *QNetwork) Outputs() int {
	return q.numActions
}

// RepWidth returns the width of the shared representation
func (q *QNetwork) RepWidth() int {
	return q.repWidth
}

// AuxTask returns the auxiliary objective the network was built with
func (q *QNetwork) AuxTask() AuxTask {
	return q.aux
}

// SetInput sets the value of the input node before running the forward
// pass. The input is a batch of flattened raw pixel observations.
func (q *QNetwork) SetInput(input []float64) error {
	if len(input) != q.Features()*q.batchSize {
		return fmt.Errorf("setinput: invalid number of inputs "+
			"\n\twant(%v)\n\thave(%v)", q.Features()*q.batchSize,
			len(input))
	}
	inputTensor := tensor.New(
		tensor.WithBacking(input),
		tensor.WithShape(q.input.Shape()...),
	)
	return G.Let(q.input, inputTensor)
}

// Set sets the weights of the QNetwork to be equal to the weights of
// another QNetwork
func (q *QNetwork) Set(source *QNetwork) error {
	sourceNodes := source.Learnables()
	nodes := q.Learnables()
	if len(nodes) != len(sourceNodes) {
		return fmt.Errorf("set: parameter count mismatch \n\twant(%v)"+
			"\n\thave(%v)", len(nodes), len(sourceNodes))
	}
	for i, destLearnable := range nodes {
		sourceLearnable := sourceNodes[i].Clone()
		err := G.Let(destLearnable, sourceLearnable.(*G.Node).Value())
		if err != nil {
			return err
		}
	}
	return nil
}

// Polyak sets the weights of the QNetwork to be a Polyak average between
// its existing weights and the weights of another QNetwork:
//
//	θ_dest ← τ·θ_source + (1-τ)·θ_dest
//
// applied parameter by parameter, in place.
func (q *QNetwork) Polyak(source *QNetwork, tau float64) error {
	sourceNodes := source.Learnables()
	nodes := q.Learnables()
	if len(nodes) != len(sourceNodes) {
		return fmt.Errorf("polyak: parameter count mismatch \n\twant(%v)"+
			"\n\thave(%v)", len(nodes), len(sourceNodes))
	}
	for i := range nodes {
		weights := nodes[i].Value().(*tensor.Dense)
		sourceWeights := sourceNodes[i].Value().(*tensor.Dense)

		weights, err := weights.MulScalar(1-tau, true)
		if err != nil {
			return err
		}

		sourceWeights, err = sourceWeights.MulScalar(tau, true)
		if err != nil {
			return err
		}

		newWeights, err := weights.Add(sourceWeights)
		if err != nil {
			return err
		}

		if err := G.Let(nodes[i], newWeights); err != nil {
			return err
		}
	}
	return nil
}

// Learnables returns the learnable nodes of the QNetwork in a fixed
// order shared by all clones
func (q *QNetwork) Learnables() G.Nodes {
	// Lazy instantiation
	if q.learnables == nil {
		q.learnables = append(q.learnables,
			layerLearnables(q.encoder)...)
		q.learnables = append(q.learnables, layerLearnables(q.qHead)...)
		q.learnables = append(q.learnables,
			layerLearnables(q.auxHead)...)
		q.learnables = append(q.learnables,
			layerLearnables(q.nextHead)...)
	}
	return q.learnables
}

// PrimaryLearnables returns the learnable nodes of the encoder and the
// action-value head, leaving out any auxiliary heads. Fine-tuning runs
// that suppress the auxiliary loss differentiate only these.
func (q *QNetwork) PrimaryLearnables() G.Nodes {
	learnables := append(G.Nodes{}, layerLearnables(q.encoder)...)
	return append(learnables, layerLearnables(q.qHead)...)
}

// Model returns the learnable nodes with their gradients
func (q *QNetwork) Model() []G.ValueGrad {
	// Lazy instantiation
	if q.model == nil {
		for _, node := range q.Learnables() {
			q.model = append(q.model, node)
		}
	}
	return q.model
}

// Prediction returns the node of the computational graph that stores the
// action-value output
func (q *QNetwork) Prediction() *G.Node {
	return q.prediction
}

// Output returns the action values from the last run of the
// computational graph
func (q *QNetwork) Output() G.Value {
	return q.predVal
}

// AuxPrediction returns the node storing the auxiliary head's output, or
// nil if the network carries no auxiliary head
func (q *QNetwork) AuxPrediction() *G.Node {
	return q.auxPrediction
}

// AuxOutput returns the auxiliary head's output from the last run of the
// computational graph, or nil if the network carries no auxiliary head
func (q *QNetwork) AuxOutput() G.Value {
	return q.auxVal
}

// RepPrediction returns the node storing the shared representation
func (q *QNetwork) RepPrediction() *G.Node {
	return q.repPrediction
}

// RepOutput returns the shared representation from the last run of the
// computational graph
func (q *QNetwork) RepOutput() G.Value {
	return q.repVal
}

// NextStatePrediction returns the node storing the next-state
// reconstruction, or nil unless the successor feature objective is
// active
func (q *QNetwork) NextStatePrediction() *G.Node {
	return q.nextPrediction
}

// NextStateOutput returns the next-state reconstruction from the last
// run of the computational graph, or nil unless the successor feature
// objective is active
func (q *QNetwork) NextStateOutput() G.Value {
	return q.nextVal
}
