package congestion

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCubeRootOfPerfectCubes(t *testing.T) {
	for _, x := range []uint64{0, 1, 2, 3, 5, 10, 63, 64, 255, 1000, 2642245} {
		require.Equal(t, x, cubeRoot(x*x*x), "cbrt(%d^3)", x)
	}
}

func TestCubeRootTruncates(t *testing.T) {
	require.Equal(t, uint64(1), cubeRoot(7))
	require.Equal(t, uint64(2), cubeRoot(26))
	require.Equal(t, uint64(3), cubeRoot(27))
	require.Equal(t, uint64(12), cubeRoot(1920))
	require.Equal(t, uint64(15), cubeRoot(3840))
	require.Equal(t, uint64(99), cubeRoot(100*100*100-1))
}

func TestCubeRootLargeValues(t *testing.T) {
	// the largest cube representable in 64 bits
	require.Equal(t, uint64(2642245), cubeRoot(2642245*2642245*2642245))
	require.Equal(t, uint64(2642245), cubeRoot(1<<64-1))
}
