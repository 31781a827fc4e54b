package environment

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestActionSpaceSample(t *testing.T) {
	space := NewActionSpace(4, 1)

	seen := map[int]bool{}
	for i := 0; i < 200; i++ {
		action := space.Sample()
		require.True(t, space.Contains(action))
		seen[action] = true
	}
	require.Len(t, seen, 4)
}

func TestActionSpaceContains(t *testing.T) {
	space := NewActionSpace(3, 1)
	require.True(t, space.Contains(0))
	require.True(t, space.Contains(2))
	require.False(t, space.Contains(3))
	require.False(t, space.Contains(-1))
}

func TestSpecLen(t *testing.T) {
	spec := Spec{Shape: []int{3, 15, 15}}
	require.Equal(t, 675, spec.Len())
}
