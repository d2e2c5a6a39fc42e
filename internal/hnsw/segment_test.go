package hnsw

import (
	"path/filepath"
	"testing"

	"github.com/monishSR/vortex/internal/distance"
	"github.com/stretchr/testify/require"
)

func newTestSegment(t *testing.T, dim int, metric distance.Metric, capacity uint64) *Segment {
	t.Helper()
	dir := t.TempDir()
	cfg := Config{M: 5, MMax0: 10, EfConstruction: 20, EfSearch: 10, Ml: 0.5, Seed: 123, Dim: dim}
	seg, err := Create(Paths{
		VectorsData: filepath.Join(dir, "v.vec"),
		VectorsDel:  filepath.Join(dir, "v.del"),
		Graph:       filepath.Join(dir, "g.graph"),
	}, metric, cfg, capacity)
	require.NoError(t, err)
	t.Cleanup(func() { _ = seg.Close() })
	return seg
}

// Scenario 1: create + insert + search (L2, dim=2).
func TestSegmentSearchL2Ordering(t *testing.T) {
	seg := newTestSegment(t, 2, distance.L2, 16)

	require.NoError(t, seg.Insert("v0", []float32{0, 0}))
	require.NoError(t, seg.Insert("v1", []float32{1, 1}))
	require.NoError(t, seg.Insert("v2", []float32{2, 2}))
	require.NoError(t, seg.Insert("v10", []float32{10, 10}))

	results, err := seg.Search([]float32{1.1, 1.1}, 2, 10)
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.Equal(t, "v1", results[0].ID)
	require.Less(t, results[0].Score, float32(1.0))
	require.Contains(t, []string{"v0", "v2"}, results[1].ID)
}

// Scenario 2: cosine ordering (dim=3).
func TestSegmentSearchCosineOrdering(t *testing.T) {
	seg := newTestSegment(t, 3, distance.Cosine, 16)

	require.NoError(t, seg.Insert("vA", []float32{1, 0, 0}))
	require.NoError(t, seg.Insert("vB", []float32{0.9, 0.1, 0}))
	require.NoError(t, seg.Insert("vC", []float32{0, 1, 0}))
	require.NoError(t, seg.Insert("vD", []float32{-1, 0, 0}))

	results, err := seg.Search([]float32{1, 0.01, 0}, 3, 10)
	require.NoError(t, err)
	require.Len(t, results, 3)
	require.Equal(t, "vA", results[0].ID)
	require.Greater(t, results[0].Score, float32(0.99))
	require.GreaterOrEqual(t, results[0].Score, results[1].Score)
	require.GreaterOrEqual(t, results[1].Score, results[2].Score)
}

// Scenario 3: delete then search.
func TestSegmentDeleteThenSearch(t *testing.T) {
	seg := newTestSegment(t, 2, distance.L2, 16)
	require.NoError(t, seg.Insert("v0", []float32{0, 0}))
	require.NoError(t, seg.Insert("v1", []float32{1, 1}))
	require.NoError(t, seg.Insert("v2", []float32{2, 2}))
	require.NoError(t, seg.Insert("v10", []float32{10, 10}))

	require.NoError(t, seg.Delete("v2"))

	results, err := seg.Search([]float32{1.1, 1.1}, 3, 10)
	require.NoError(t, err)
	ids := make([]string, 0, len(results))
	for _, r := range results {
		ids = append(ids, r.ID)
	}
	require.NotContains(t, ids, "v2")
	require.Contains(t, ids, "v1")
}

func TestSegmentInsertDuplicateID(t *testing.T) {
	seg := newTestSegment(t, 2, distance.L2, 4)
	require.NoError(t, seg.Insert("v0", []float32{0, 0}))
	err := seg.Insert("v0", []float32{1, 1})
	require.Error(t, err)
}

func TestSegmentInsertStorageFull(t *testing.T) {
	seg := newTestSegment(t, 2, distance.L2, 2)
	require.NoError(t, seg.Insert("v0", []float32{0, 0}))
	require.NoError(t, seg.Insert("v1", []float32{1, 1}))
	err := seg.Insert("v2", []float32{2, 2})
	require.Error(t, err)
}

func TestSegmentKZeroReturnsEmpty(t *testing.T) {
	seg := newTestSegment(t, 2, distance.L2, 4)
	require.NoError(t, seg.Insert("v0", []float32{0, 0}))
	results, err := seg.Search([]float32{0, 0}, 0, 10)
	require.NoError(t, err)
	require.Empty(t, results)
}

func TestSegmentSearchEmptyGraph(t *testing.T) {
	seg := newTestSegment(t, 2, distance.L2, 4)
	results, err := seg.Search([]float32{0, 0}, 2, 10)
	require.NoError(t, err)
	require.Empty(t, results)
}

func TestSegmentUpdateInPlace(t *testing.T) {
	seg := newTestSegment(t, 2, distance.L2, 4)
	require.NoError(t, seg.Insert("v0", []float32{0, 0}))
	require.NoError(t, seg.Update("v0", []float32{5, 5}))
	v, err := seg.Get("v0")
	require.NoError(t, err)
	require.Equal(t, []float32{5, 5}, v)
}

func TestSegmentIdenticalVectorsDifferentIDs(t *testing.T) {
	seg := newTestSegment(t, 2, distance.L2, 4)
	require.NoError(t, seg.Insert("a", []float32{1, 1}))
	require.NoError(t, seg.Insert("b", []float32{1, 1}))
	results, err := seg.Search([]float32{1, 1}, 2, 10)
	require.NoError(t, err)
	require.Len(t, results, 2)
}

func TestSegmentManifestRoundTrip(t *testing.T) {
	dir := t.TempDir()
	cfg := Config{M: 5, MMax0: 10, EfConstruction: 20, EfSearch: 10, Ml: 0.5, Seed: 123, Dim: 2}
	paths := Paths{
		VectorsData: filepath.Join(dir, "v.vec"),
		VectorsDel:  filepath.Join(dir, "v.del"),
		Graph:       filepath.Join(dir, "g.graph"),
	}
	seg, err := Create(paths, distance.L2, cfg, 16)
	require.NoError(t, err)
	require.NoError(t, seg.Insert("v0", []float32{0, 0}))
	require.NoError(t, seg.Insert("v1", []float32{1, 1}))
	seg.SetCheckpointLSN(42)
	require.NoError(t, seg.Flush())
	manifest := seg.Manifest()
	require.NoError(t, seg.Close())

	reopened, err := Open(paths, manifest)
	require.NoError(t, err)
	defer reopened.Close()

	results, err := reopened.Search([]float32{1, 1}, 1, 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, "v1", results[0].ID)
	lsn, ok := reopened.CheckpointLSN()
	require.True(t, ok)
	require.Equal(t, uint64(42), lsn)
}
