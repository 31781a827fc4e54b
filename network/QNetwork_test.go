package network

import (
	"testing"

	"github.com/stretchr/testify/require"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// Small observation shape keeping test graphs cheap. 7 is odd, so the
// reconstruction decoders can invert the encoder.
const (
	testChannels = 3
	testHeight   = 7
	testWidth    = 7
	testActions  = 4
)

func newTestNet(t *testing.T, batch int, aux AuxTask,
	useFTA bool) *QNetwork {
	t.Helper()
	net, err := NewQNetwork(testChannels, testHeight, testWidth,
		testActions, batch, aux, useFTA, G.GlorotU(1.0))
	require.NoError(t, err)
	return net
}

// run runs the network's forward pass on an all-ones batch
func run(t *testing.T, net *QNetwork) {
	t.Helper()
	input := make([]float64, net.BatchSize()*net.Features())
	for i := range input {
		input[i] = 1.0
	}
	require.NoError(t, net.SetInput(input))

	vm := G.NewTapeMachine(net.Graph())
	defer vm.Close()
	require.NoError(t, vm.RunAll())
}

func TestQNetworkForwardShapes(t *testing.T) {
	features := testChannels * testHeight * testWidth
	batch := 2

	tests := []struct {
		aux     AuxTask
		auxLen  int
		nextLen int
	}{
		{AuxNone, 0, 0},
		{AuxInputReconstruction, batch * features, 0},
		{AuxRewardPrediction, batch * 1, 0},
		{AuxSuccessorFeatures, batch * projectionWidth, batch * features},
		{AuxVirtualReward1, batch * testActions, 0},
		{AuxVirtualReward5, batch * testActions, 0},
	}

	for _, test := range tests {
		t.Run(string(test.aux), func(t *testing.T) {
			net := newTestNet(t, batch, test.aux, false)
			run(t, net)

			q := net.Output().Data().([]float64)
			require.Len(t, q, batch*testActions)

			rep := net.RepOutput().Data().([]float64)
			require.Len(t, rep, batch*net.RepWidth())

			if test.auxLen == 0 {
				require.Nil(t, net.AuxPrediction())
			} else {
				aux := net.AuxOutput().Data().([]float64)
				require.Len(t, aux, test.auxLen)
			}

			if test.nextLen == 0 {
				require.Nil(t, net.NextStatePrediction())
			} else {
				next := net.NextStateOutput().Data().([]float64)
				require.Len(t, next, test.nextLen)
			}
		})
	}
}

func TestQNetworkRepWidth(t *testing.T) {
	narrow := newTestNet(t, 1, AuxNone, false)
	require.Equal(t, projectionWidth, narrow.RepWidth())

	wide := newTestNet(t, 1, AuxNone, true)
	require.Equal(t, projectionWidth*FTATiles, wide.RepWidth())
}

func TestQNetworkDecoderRequiresOddDims(t *testing.T) {
	_, err := NewQNetwork(testChannels, 8, 8, testActions, 1,
		AuxInputReconstruction, false, G.GlorotU(1.0))
	require.Error(t, err)

	_, err = NewQNetwork(testChannels, 8, 8, testActions, 1,
		AuxSuccessorFeatures, false, G.GlorotU(1.0))
	require.Error(t, err)

	// Only the reconstruction decoders constrain the spatial dims
	_, err = NewQNetwork(testChannels, 8, 8, testActions, 1, AuxNone,
		false, G.GlorotU(1.0))
	require.NoError(t, err)
}

func TestQNetworkRejectsUnknownAux(t *testing.T) {
	_, err := NewQNetwork(testChannels, testHeight, testWidth,
		testActions, 1, AuxTask("nope"), false, G.GlorotU(1.0))
	require.Error(t, err)
}

// fill sets every learnable weight of net to v
func fill(t *testing.T, net *QNetwork, v float64) {
	t.Helper()
	for _, node := range net.Learnables() {
		backing := make([]float64, node.Shape().TotalSize())
		for i := range backing {
			backing[i] = v
		}
		err := G.Let(node, tensor.New(
			tensor.WithShape(node.Shape()...),
			tensor.WithBacking(backing),
		))
		require.NoError(t, err)
	}
}

func TestQNetworkSet(t *testing.T) {
	dest := newTestNet(t, 1, AuxNone, false)
	source := newTestNet(t, 2, AuxNone, false)
	fill(t, dest, 0.1)
	fill(t, source, 1.0)

	require.NoError(t, dest.Set(source))

	for _, node := range dest.Learnables() {
		for _, v := range node.Value().Data().([]float64) {
			require.Equal(t, 1.0, v)
		}
	}
}

func TestQNetworkPolyak(t *testing.T) {
	dest := newTestNet(t, 1, AuxNone, false)
	source := newTestNet(t, 1, AuxNone, false)
	fill(t, dest, 0.1)
	fill(t, source, 1.0)

	require.NoError(t, dest.Polyak(source, 0.1))

	// 0.1·1.0 + 0.9·0.1 = 0.19 in every parameter
	for _, node := range dest.Learnables() {
		for _, v := range node.Value().Data().([]float64) {
			require.InDelta(t, 0.19, v, 1e-12)
		}
	}

	// The source is untouched
	for _, node := range source.Learnables() {
		for _, v := range node.Value().Data().([]float64) {
			require.Equal(t, 1.0, v)
		}
	}
}

func TestQNetworkCloneCopiesWeights(t *testing.T) {
	net := newTestNet(t, 2, AuxSuccessorFeatures, true)
	clone, err := net.CloneWithBatch(1)
	require.NoError(t, err)

	require.Equal(t, 1, clone.BatchSize())
	require.Equal(t, net.RepWidth(), clone.RepWidth())
	require.NotSame(t, net.Graph(), clone.Graph())

	original := net.Learnables()
	cloned := clone.Learnables()
	require.Equal(t, len(original), len(cloned))
	for i := range original {
		require.Equal(t,
			original[i].Value().Data().([]float64),
			cloned[i].Value().Data().([]float64))
	}
}

func TestQNetworkSetInputValidatesLength(t *testing.T) {
	net := newTestNet(t, 2, AuxNone, false)
	require.Error(t, net.SetInput(make([]float64, net.Features())))
	require.NoError(t, net.SetInput(make([]float64,
		2*net.Features())))
}
