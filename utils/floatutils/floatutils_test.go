package floatutils

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMaxSlice(t *testing.T) {
	max, index := MaxSlice([]float64{1, 5, 3, 5})
	require.Equal(t, 5.0, max)
	require.Equal(t, 1, index)
}

func TestArgMaxAll(t *testing.T) {
	require.Equal(t, []int{1, 3}, ArgMaxAll([]float64{1, 5, 3, 5}))
	require.Equal(t, []int{0}, ArgMaxAll([]float64{2, 1}))
}

func TestMinMax(t *testing.T) {
	require.Equal(t, 3.0, Max(1, 3, 2))
	require.Equal(t, 1.0, Min(1, 3, 2))
}

func TestClip(t *testing.T) {
	require.Equal(t, 1.0, Clip(5, -1, 1))
	require.Equal(t, -1.0, Clip(-5, -1, 1))
	require.Equal(t, 0.5, Clip(0.5, -1, 1))
	require.Panics(t, func() { Clip(0, 1, -1) })
}
