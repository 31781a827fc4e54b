package network

import (
	"fmt"

	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// Layer is a single stage of a network's forward pass. Layers with no
// weights return nil Learnables.
type Layer interface {
	fwd(x *G.Node) (*G.Node, error)
	CloneTo(g *G.ExprGraph) Layer
	Learnables() G.Nodes
}

// forward runs x through a stack of layers
func forward(layers []Layer, x *G.Node) (*G.Node, error) {
	var err error
	for i, l := range layers {
		if x, err = l.fwd(x); err != nil {
			return nil, fmt.Errorf("forward: could not compute forward "+
				"pass of layer %v: %v", i, err)
		}
	}
	return x, nil
}

// cloneLayersTo clones a stack of layers to a new computational graph
func cloneLayersTo(layers []Layer, g *G.ExprGraph) []Layer {
	cloned := make([]Layer, len(layers))
	for i := range layers {
		cloned[i] = layers[i].CloneTo(g)
	}
	return cloned
}

// layerLearnables collects the learnable nodes of a stack of layers
func layerLearnables(layers []Layer) G.Nodes {
	var learnables G.Nodes
	for _, l := range layers {
		learnables = append(learnables, l.Learnables()...)
	}
	return learnables
}

// fcLayer implements a fully connected layer of a feed forward neural
// network
type fcLayer struct {
	weights *G.Node
	bias    *G.Node
	act     *Activation
}

// newFCLayer returns a new fully connected layer of out units on in
// inputs, with weights initialized by init
func newFCLayer(g *G.ExprGraph, in, out int, act *Activation,
	init G.InitWFn, name string) *fcLayer {
	weights := G.NewMatrix(
		g,
		tensor.Float64,
		G.WithShape(in, out),
		G.WithName(name+"W"),
		G.WithInit(init),
	)
	bias := G.NewMatrix(
		g,
		tensor.Float64,
		G.WithShape(1, out),
		G.WithName(name+"B"),
		G.WithInit(G.Zeroes()),
	)
	return &fcLayer{weights: weights, bias: bias, act: act}
}

// fwd adds the forward pass of the fcLayer to the computational graph
func (f *fcLayer) fwd(x *G.Node) (*G.Node, error) {
	x = G.Must(G.Mul(x, f.weights))

	// Broadcast the bias weights to all samples along the batch dimension
	x = G.Must(G.BroadcastAdd(x, f.bias, nil, []byte{0}))

	if f.act.IsIdentity() {
		return x, nil
	}
	return f.act.fwd(x)
}

// CloneTo clones an fcLayer to a new computational graph
func (f *fcLayer) CloneTo(g *G.ExprGraph) Layer {
	return &fcLayer{
		weights: f.weights.CloneTo(g),
		bias:    f.bias.CloneTo(g),
		act:     f.act,
	}
}

// Learnables returns the learnable nodes of the fcLayer
func (f *fcLayer) Learnables() G.Nodes {
	return G.Nodes{f.weights, f.bias}
}

// conv2dLayer implements a 2D convolutional layer on NCHW inputs
type conv2dLayer struct {
	kernel *G.Node
	bias   *G.Node
	act    *Activation

	kernelSize int
	pad        int
	stride     int
}

// newConv2dLayer returns a new square-kernel convolutional layer of out
// filters on in input channels
func newConv2dLayer(g *G.ExprGraph, in, out, kernelSize, pad, stride int,
	act *Activation, init G.InitWFn, name string) *conv2dLayer {
	kernel := G.NewTensor(
		g,
		tensor.Float64,
		4,
		G.WithShape(out, in, kernelSize, kernelSize),
		G.WithName(name+"W"),
		G.WithInit(init),
	)
	bias := G.NewTensor(
		g,
		tensor.Float64,
		4,
		G.WithShape(1, out, 1, 1),
		G.WithName(name+"B"),
		G.WithInit(G.Zeroes()),
	)
	return &conv2dLayer{
		kernel:     kernel,
		bias:       bias,
		act:        act,
		kernelSize: kernelSize,
		pad:        pad,
		stride:     stride,
	}
}

// fwd adds the forward pass of the conv2dLayer to the computational graph
func (c *conv2dLayer) fwd(x *G.Node) (*G.Node, error) {
	x, err := G.Conv2d(
		x,
		c.kernel,
		tensor.Shape{c.kernelSize, c.kernelSize},
		[]int{c.pad, c.pad},
		[]int{c.stride, c.stride},
		[]int{1, 1},
	)
	if err != nil {
		return nil, err
	}

	// Broadcast the per-filter bias over the batch and spatial dimensions
	x = G.Must(G.BroadcastAdd(x, c.bias, nil, []byte{0, 2, 3}))

	if c.act.IsIdentity() {
		return x, nil
	}
	return c.act.fwd(x)
}

// CloneTo clones a conv2dLayer to a new computational graph
func (c *conv2dLayer) CloneTo(g *G.ExprGraph) Layer {
	return &conv2dLayer{
		kernel:     c.kernel.CloneTo(g),
		bias:       c.bias.CloneTo(g),
		act:        c.act,
		kernelSize: c.kernelSize,
		pad:        c.pad,
		stride:     c.stride,
	}
}

// Learnables returns the learnable nodes of the conv2dLayer
func (c *conv2dLayer) Learnables() G.Nodes {
	return G.Nodes{c.kernel, c.bias}
}

// outSize returns the spatial output size of the conv2dLayer for a given
// spatial input size
func (c *conv2dLayer) outSize(in int) int {
	return (in+2*c.pad-c.kernelSize)/c.stride + 1
}

// reshapeLayer reshapes its input to (batch, dims...). A nil dims slice
// flattens the input to (batch, features).
type reshapeLayer struct {
	dims []int
}

// fwd adds the reshape to the computational graph
func (r *reshapeLayer) fwd(x *G.Node) (*G.Node, error) {
	batch := x.Shape()[0]
	if r.dims == nil {
		features := 1
		for _, dim := range x.Shape()[1:] {
			features *= dim
		}
		return G.Reshape(x, tensor.Shape{batch, features})
	}
	shape := append(tensor.Shape{batch}, r.dims...)
	return G.Reshape(x, shape)
}

// CloneTo implements the Layer interface; a reshapeLayer has no
// graph-bound state
func (r *reshapeLayer) CloneTo(*G.ExprGraph) Layer {
	return &reshapeLayer{dims: r.dims}
}

// Learnables implements the Layer interface
func (r *reshapeLayer) Learnables() G.Nodes { return nil }

// upsampleLayer doubles (or more) the spatial size of an NCHW input by
// repeating values, the upsampling stage of the reconstruction decoders
type upsampleLayer struct {
	scale int
}

// fwd adds the upsampling to the computational graph
func (u *upsampleLayer) fwd(x *G.Node) (*G.Node, error) {
	return G.Upsample2D(x, u.scale)
}

// CloneTo implements the Layer interface; an upsampleLayer has no
// graph-bound state
func (u *upsampleLayer) CloneTo(*G.ExprGraph) Layer {
	return &upsampleLayer{scale: u.scale}
}

// Learnables implements the Layer interface
func (u *upsampleLayer) Learnables() G.Nodes { return nil }
