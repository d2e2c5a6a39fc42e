package hnsw

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResultHeapOfferCapsAtEf(t *testing.T) {
	h := newResultHeap(3)
	require.True(t, h.Offer(Neighbor{ID: 1, Score: 1.0}, 2))
	require.True(t, h.Offer(Neighbor{ID: 2, Score: 2.0}, 2))
	// heap is full at ef=2; a worse candidate is rejected
	require.False(t, h.Offer(Neighbor{ID: 3, Score: 0.5}, 2))
	// a better candidate evicts the current worst
	require.True(t, h.Offer(Neighbor{ID: 4, Score: 5.0}, 2))
	require.Equal(t, 2, h.Len())
}

func TestResultHeapDrainBestFirst(t *testing.T) {
	h := newResultHeap(4)
	for _, n := range []Neighbor{{1, 0.5}, {2, 3.0}, {3, 1.5}} {
		h.Offer(n, 4)
	}
	drained := h.Drain()
	require.Len(t, drained, 3)
	require.Equal(t, uint64(2), drained[0].ID)
	require.Equal(t, uint64(3), drained[1].ID)
	require.Equal(t, uint64(1), drained[2].ID)
	require.Equal(t, 0, h.Len())
}

func TestFrontierHeapBestFirst(t *testing.T) {
	h := newFrontierHeap()
	h.PushNeighbor(Neighbor{ID: 1, Score: 1.0})
	h.PushNeighbor(Neighbor{ID: 2, Score: 9.0})
	h.PushNeighbor(Neighbor{ID: 3, Score: 5.0})

	require.Equal(t, uint64(2), h.PopNeighbor().ID)
	require.Equal(t, uint64(3), h.PopNeighbor().ID)
	require.Equal(t, uint64(1), h.PopNeighbor().ID)
}
