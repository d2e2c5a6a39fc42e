package distance

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCalculateL2(t *testing.T) {
	d, err := Calculate(L2, []float32{0, 0}, []float32{3, 4})
	require.NoError(t, err)
	require.InDelta(t, 5.0, d, 1e-6)
}

func TestCalculateCosineIdentical(t *testing.T) {
	s, err := Calculate(Cosine, []float32{1, 0, 0}, []float32{1, 0, 0})
	require.NoError(t, err)
	require.InDelta(t, 1.0, s, 1e-6)
}

func TestCalculateCosineZeroNorm(t *testing.T) {
	s, err := Calculate(Cosine, []float32{0, 0, 0}, []float32{1, 0, 0})
	require.NoError(t, err)
	require.Equal(t, float32(0), s)
}

func TestCalculateDimensionMismatch(t *testing.T) {
	_, err := Calculate(L2, []float32{1, 2}, []float32{1, 2, 3})
	require.Error(t, err)
}

func TestCosineClamped(t *testing.T) {
	// floating point drift should never push similarity outside [-1, 1]
	a := []float32{1, 1e-7, 0}
	s, err := Calculate(Cosine, a, a)
	require.NoError(t, err)
	require.LessOrEqual(t, s, float32(1.0))
	require.GreaterOrEqual(t, s, float32(-1.0))
}

func TestHeapScoreRoundTrip(t *testing.T) {
	require.InDelta(t, -2.5, HeapScore(L2, 2.5), 1e-6)
	require.InDelta(t, 2.5, OriginalScore(L2, HeapScore(L2, 2.5)), 1e-6)

	require.InDelta(t, 0.8, HeapScore(Cosine, 0.8), 1e-6)
	require.InDelta(t, 0.8, OriginalScore(Cosine, HeapScore(Cosine, 0.8)), 1e-6)
}

func TestHeapScoreOrdersBestFirst(t *testing.T) {
	// for L2, smaller distance must yield larger heap score
	require.Greater(t, HeapScore(L2, 1.0), HeapScore(L2, 2.0))
	// for Cosine, larger similarity must yield larger heap score
	require.Greater(t, HeapScore(Cosine, 0.9), HeapScore(Cosine, 0.1))
}
