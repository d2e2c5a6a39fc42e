package hnsw

import "container/heap"

// Neighbor is a candidate encountered while exploring the graph, scored
// via distance.HeapScore so a single max-heap discipline serves both L2
// and Cosine: bigger Score is always locally better. Adapted from the
// teacher's candidateHeap (container/heap max-heap keyed on raw distance)
// by keying on heap_score instead of distance, and splitting it into the
// two heap shapes search_layer actually needs.
type Neighbor struct {
	ID    uint64
	Score float32
}

// resultHeap is a min-heap on Score: its root is the worst member of the
// current best-ef set, so a strictly better candidate can evict it in
// O(log n).
type resultHeap []Neighbor

func (h resultHeap) Len() int           { return len(h) }
func (h resultHeap) Less(i, j int) bool { return h[i].Score < h[j].Score }
func (h resultHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *resultHeap) Push(x any) { *h = append(*h, x.(Neighbor)) }

func (h *resultHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

func newResultHeap(capHint int) *resultHeap {
	h := make(resultHeap, 0, capHint)
	return &h
}

// Peek returns the current worst-of-best without removing it. Panics if
// empty, matching the teacher's Peek contract.
func (h *resultHeap) Peek() Neighbor {
	if h.Len() == 0 {
		panic("resultHeap: peek of empty heap")
	}
	return (*h)[0]
}

// Offer inserts cand if the heap has room (< ef) or cand beats the
// current worst; reports whether it was accepted and, if the heap was
// already full, trims back to ef automatically.
func (h *resultHeap) Offer(cand Neighbor, ef int) bool {
	if h.Len() < ef {
		heap.Push(h, cand)
		return true
	}
	if h.Len() > 0 && cand.Score > h.Peek().Score {
		heap.Pop(h)
		heap.Push(h, cand)
		return true
	}
	return false
}

// Drain pops every neighbor worst-first internally and returns them
// best-first, emptying the heap.
func (h *resultHeap) Drain() []Neighbor {
	n := h.Len()
	out := make([]Neighbor, n)
	for i := n - 1; i >= 0; i-- {
		out[i] = heap.Pop(h).(Neighbor)
	}
	return out
}

// frontierHeap is a max-heap on Score: its root is the best candidate
// still queued for exploration.
type frontierHeap []Neighbor

func (h frontierHeap) Len() int           { return len(h) }
func (h frontierHeap) Less(i, j int) bool { return h[i].Score > h[j].Score }
func (h frontierHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *frontierHeap) Push(x any) { *h = append(*h, x.(Neighbor)) }

func (h *frontierHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

func newFrontierHeap() *frontierHeap {
	h := make(frontierHeap, 0)
	return &h
}

func (h *frontierHeap) PushNeighbor(n Neighbor) { heap.Push(h, n) }
func (h *frontierHeap) PopNeighbor() Neighbor   { return heap.Pop(h).(Neighbor) }
