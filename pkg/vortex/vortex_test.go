package vortex

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/monishSR/vortex/internal/distance"
	"github.com/monishSR/vortex/internal/hnsw"
	"github.com/monishSR/vortex/internal/logging"
)

func testHnswConfig(dim int) hnsw.Config {
	return hnsw.Config{M: 5, MMax0: 10, EfConstruction: 20, EfSearch: 10, Ml: 0.5, Seed: 123, Dim: dim}
}

func testConfig(dataPath string) *Config {
	cfg := DefaultConfig(dataPath)
	cfg.Logger = logging.Nop()
	cfg.SegmentBytes = 4096
	cfg.SegmentQueue = 1
	return cfg
}

func TestCreateInsertSearch(t *testing.T) {
	root := t.TempDir()
	v, err := Open(testConfig(root))
	require.NoError(t, err)
	defer v.Close()

	col, err := v.CreateCollection("movies", 2, distance.L2, testHnswConfig(2), 100)
	require.NoError(t, err)

	require.NoError(t, col.InsertWithPayload("v1", []float32{0, 0}, []byte(`{"title":"dune"}`)))
	require.NoError(t, col.Insert("v2", []float32{10, 10}))

	results, err := col.Search([]float32{0, 0}, 1, 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, "v1", results[0].ID)

	p, found, err := col.Payload("v1")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, []byte(`{"title":"dune"}`), p)
}

func TestInsertDimensionMismatch(t *testing.T) {
	root := t.TempDir()
	v, err := Open(testConfig(root))
	require.NoError(t, err)
	defer v.Close()

	col, err := v.CreateCollection("movies", 3, distance.L2, testHnswConfig(3), 100)
	require.NoError(t, err)

	err = col.Insert("v1", []float32{1, 2})
	require.Error(t, err)
}

func TestSnapshotAndRestore(t *testing.T) {
	root := t.TempDir()
	v, err := Open(testConfig(root))
	require.NoError(t, err)

	col, err := v.CreateCollection("movies", 2, distance.L2, testHnswConfig(2), 100)
	require.NoError(t, err)
	require.NoError(t, col.Insert("v1", []float32{1, 1}))

	snapDir, err := v.Snapshot("movies", "snap1")
	require.NoError(t, err)
	require.NoError(t, v.DeleteCollection("movies"))
	v.Close()

	v2, err := Open(testConfig(root))
	require.NoError(t, err)
	defer v2.Close()

	restored, err := v2.Restore(snapDir, "movies")
	require.NoError(t, err)

	got, err := restored.Get("v1")
	require.NoError(t, err)
	require.Equal(t, []float32{1, 1}, got)
}

func TestDeleteVectorRemovesPayload(t *testing.T) {
	root := t.TempDir()
	v, err := Open(testConfig(root))
	require.NoError(t, err)
	defer v.Close()

	col, err := v.CreateCollection("movies", 2, distance.L2, testHnswConfig(2), 100)
	require.NoError(t, err)
	require.NoError(t, col.InsertWithPayload("v1", []float32{1, 1}, []byte("x")))
	require.NoError(t, col.Delete("v1"))

	_, found, err := col.Payload("v1")
	require.NoError(t, err)
	require.False(t, found)
}
