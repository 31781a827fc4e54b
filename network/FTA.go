package network

import (
	"fmt"

	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// Default fuzzy tiling parameters, matching the representation widths the
// value network was tuned with: 20 tiles on [-2, 2] with fuzziness 0.4
// expand a 32-unit projection to a 640-unit representation.
const (
	FTATiles     = 20
	FTABoundLow  = -2.0
	FTABoundHigh = 2.0
	FTAEta       = 0.4
)

// ftaLayer implements the fuzzy tiling activation. Each input unit is
// soft-binned onto tiles fixed tiles spanning [low, high], expanding an
// input of width d to an output of width d*tiles. The tile response is
//
//	z(x) = 1 - I_η(max(c-x, 0) + max(x-c-δ, 0))
//
// where c are the tile centres, δ the tile width and I_η the fuzzy
// indicator I_η(u) = u·[u < η] + [u ≥ η]. The layer has no learnable
// parameters; its centres are graph constants recreated on every clone.
type ftaLayer struct {
	tiles     int
	low, high float64
	eta       float64
}

// newFTALayer returns a new fuzzy tiling activation layer
func newFTALayer(tiles int, low, high, eta float64) *ftaLayer {
	return &ftaLayer{tiles: tiles, low: low, high: high, eta: eta}
}

// Expansion returns the factor by which the layer expands its input width
func (f *ftaLayer) Expansion() int {
	return f.tiles
}

// fwd adds the tiling expansion to the computational graph. The input
// must be a matrix of shape (batch, d); the output has shape
// (batch, d*tiles).
func (f *ftaLayer) fwd(x *G.Node) (*G.Node, error) {
	if !x.IsMatrix() {
		return nil, fmt.Errorf("fta: input must be a matrix")
	}
	g := x.Graph()
	batch, d := x.Shape()[0], x.Shape()[1]
	delta := (f.high - f.low) / float64(f.tiles)

	centres := make([]float64, f.tiles)
	ones := make([]float64, f.tiles)
	for i := range centres {
		centres[i] = f.low + float64(i)*delta
		ones[i] = 1.0
	}
	centreNode := G.NewMatrix(
		g,
		tensor.Float64,
		G.WithShape(1, f.tiles),
		G.WithName("ftaCentres"),
		G.WithValue(tensor.New(
			tensor.WithShape(1, f.tiles),
			tensor.WithBacking(centres),
		)),
	)
	onesNode := G.NewMatrix(
		g,
		tensor.Float64,
		G.WithShape(1, f.tiles),
		G.WithName("ftaOnes"),
		G.WithValue(tensor.New(
			tensor.WithShape(1, f.tiles),
			tensor.WithBacking(ones),
		)),
	)
	deltaNode := G.NewScalar(g, tensor.Float64, G.WithName("ftaDelta"),
		G.WithValue(delta))
	etaNode := G.NewScalar(g, tensor.Float64, G.WithName("ftaEta"),
		G.WithValue(f.eta))
	oneNode := G.NewScalar(g, tensor.Float64, G.WithName("ftaOne"),
		G.WithValue(1.0))

	// Tile each input unit across the tiling dimension: (batch*d, tiles)
	column := G.Must(G.Reshape(x, tensor.Shape{batch * d, 1}))
	tiled := G.Must(G.Mul(column, onesNode))

	// Distance of each unit from the inside of each tile
	diff := G.Must(G.BroadcastSub(tiled, centreNode, nil, []byte{0}))
	below := G.Must(G.Rectify(G.Must(G.Neg(diff))))
	above := G.Must(G.Rectify(G.Must(G.Sub(diff, deltaNode))))
	u := G.Must(G.Add(below, above))

	// Fuzzy indicator: identity below eta, saturates to 1 above
	lt := G.Must(G.Lt(u, etaNode, true))
	gte := G.Must(G.Gte(u, etaNode, true))
	indicator := G.Must(G.Add(G.Must(G.HadamardProd(u, lt)), gte))

	z := G.Must(G.Sub(oneNode, indicator))
	return G.Reshape(z, tensor.Shape{batch, d * f.tiles})
}

// CloneTo implements the Layer interface. All graph-bound nodes are
// created in fwd, so the clone is a plain copy.
func (f *ftaLayer) CloneTo(*G.ExprGraph) Layer {
	clone := *f
	return &clone
}

// Learnables implements the Layer interface
func (f *ftaLayer) Learnables() G.Nodes { return nil }
