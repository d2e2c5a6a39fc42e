package registry

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/monishSR/vortex/internal/distance"
	"github.com/monishSR/vortex/internal/hnsw"
	"github.com/monishSR/vortex/internal/logging"
	"github.com/monishSR/vortex/internal/wal"
)

func testConfig(dim int) hnsw.Config {
	return hnsw.Config{M: 5, MMax0: 10, EfConstruction: 20, EfSearch: 10, Ml: 0.5, Seed: 123, Dim: dim}
}

func testWalOptions() wal.Options {
	return wal.Options{SegmentCapacity: 4096, SegmentQueueLen: 1}
}

func TestCreateGetDelete(t *testing.T) {
	root := t.TempDir()
	r := New(root, testWalOptions(), logging.Nop())

	c, err := r.Create("movies", distance.L2, testConfig(2), 100)
	require.NoError(t, err)
	require.NoError(t, c.Index.Insert("v1", []float32{1, 2}))

	got, ok := r.Get("movies")
	require.True(t, ok)
	require.Same(t, c, got)

	_, err = r.Create("movies", distance.L2, testConfig(2), 100)
	require.Error(t, err)

	require.NoError(t, r.Delete("movies"))
	_, ok = r.Get("movies")
	require.False(t, ok)
}

func TestCheckpointAllThenLoadAllRecoversData(t *testing.T) {
	root := t.TempDir()
	r := New(root, testWalOptions(), logging.Nop())

	c, err := r.Create("movies", distance.L2, testConfig(2), 100)
	require.NoError(t, err)
	lsn, err := c.Wal.LogAddVector("v1", []float32{1, 2}, nil)
	require.NoError(t, err)
	require.NoError(t, c.Index.Insert("v1", []float32{1, 2}))
	require.NoError(t, c.Payload.Put("v1", []byte(`{"title":"dune"}`)))

	saved, failed := r.CheckpointAll()
	require.Equal(t, 1, saved)
	require.Equal(t, 0, failed)
	r.Close()

	r2 := New(root, testWalOptions(), logging.Nop())
	loaded, failed := r2.LoadAll()
	require.Equal(t, 1, loaded)
	require.Equal(t, 0, failed)

	reopened, ok := r2.Get("movies")
	require.True(t, ok)
	v, err := reopened.Index.Get("v1")
	require.NoError(t, err)
	require.Equal(t, []float32{1, 2}, v)

	payloadVal, found, err := reopened.Payload.Get("v1")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, []byte(`{"title":"dune"}`), payloadVal)

	_ = lsn
	r2.Close()
}

// TestLoadAllReplaysDuplicateAddVectorAsUpdate simulates a crash where a
// vector's pre-crash value is already visible in the mmap segment file
// (no checkpoint ever ran) and a later AddVector WAL record for the same
// ID was appended but never applied before the crash. Replay must treat
// the AlreadyExists case as an update, landing on the WAL's last value,
// not silently drop the record and leave the stale pre-crash value.
func TestLoadAllReplaysDuplicateAddVectorAsUpdate(t *testing.T) {
	root := t.TempDir()
	r := New(root, testWalOptions(), logging.Nop())

	c, err := r.Create("movies", distance.L2, testConfig(2), 100)
	require.NoError(t, err)

	// Pre-crash value, already committed to the mmap segment.
	require.NoError(t, c.Index.Insert("v1", []float32{1, 1}))
	_, err = c.Wal.LogAddVector("v1", []float32{1, 1}, nil)
	require.NoError(t, err)

	// A later update appended to the WAL but never applied before the
	// crash (no checkpoint, so replay will start from LSN 0 again).
	_, err = c.Wal.LogAddVector("v1", []float32{9, 9}, nil)
	require.NoError(t, err)

	r.Close()

	r2 := New(root, testWalOptions(), logging.Nop())
	loaded, failed := r2.LoadAll()
	require.Equal(t, 1, loaded)
	require.Equal(t, 0, failed)

	reopened, ok := r2.Get("movies")
	require.True(t, ok)
	v, err := reopened.Index.Get("v1")
	require.NoError(t, err)
	require.Equal(t, []float32{9, 9}, v)

	r2.Close()
}

// TestLoadAllReplaysAddVectorMetadata confirms AddVector's optional
// metadata (framed in the same WAL record as the vector, per spec.md
// §4.6) is mirrored into the payload store during replay, not just on
// the live insert path.
func TestLoadAllReplaysAddVectorMetadata(t *testing.T) {
	root := t.TempDir()
	r := New(root, testWalOptions(), logging.Nop())

	c, err := r.Create("movies", distance.L2, testConfig(2), 100)
	require.NoError(t, err)
	_, err = c.Wal.LogAddVector("v1", []float32{1, 2}, []byte(`{"title":"dune"}`))
	require.NoError(t, err)

	r.Close()

	r2 := New(root, testWalOptions(), logging.Nop())
	loaded, failed := r2.LoadAll()
	require.Equal(t, 1, loaded)
	require.Equal(t, 0, failed)

	reopened, ok := r2.Get("movies")
	require.True(t, ok)
	v, err := reopened.Index.Get("v1")
	require.NoError(t, err)
	require.Equal(t, []float32{1, 2}, v)

	payloadVal, found, err := reopened.Payload.Get("v1")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, []byte(`{"title":"dune"}`), payloadVal)

	r2.Close()
}

func TestLoadAllWithEmptyDirectory(t *testing.T) {
	root := t.TempDir()
	r := New(root, testWalOptions(), logging.Nop())
	loaded, failed := r.LoadAll()
	require.Equal(t, 0, loaded)
	require.Equal(t, 0, failed)
}
