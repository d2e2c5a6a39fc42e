package snapshot

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/monishSR/vortex/internal/distance"
	"github.com/monishSR/vortex/internal/hnsw"
	"github.com/monishSR/vortex/internal/index"
)

func testConfig(dim int) hnsw.Config {
	return hnsw.Config{M: 5, MMax0: 10, EfConstruction: 20, EfSearch: 10, Ml: 0.5, Seed: 123, Dim: dim}
}

func TestCreateAndRestoreRoundTrip(t *testing.T) {
	root := t.TempDir()
	cfg := testConfig(2)

	idx, err := index.Create(root, "movies", distance.L2, cfg, 100)
	require.NoError(t, err)
	require.NoError(t, idx.Insert("v1", []float32{1, 2}))
	require.NoError(t, idx.Insert("v2", []float32{3, 4}))
	lsn := uint64(7)
	require.NoError(t, idx.Checkpoint(lsn))
	require.NoError(t, idx.Close())

	snapBase := filepath.Join(root, "snapshots")
	snapDir, err := Create(snapBase, "movies", "", cfg, &lsn, Source{
		CollectionDir: idx.CollectionDir(),
		WalDir:        filepath.Join(idx.CollectionDir(), "wal"),
		PayloadDBPath: filepath.Join(idx.CollectionDir(), "payload.db"),
	})
	require.NoError(t, err)

	manifest, err := ReadManifest(snapDir)
	require.NoError(t, err)
	require.Equal(t, "movies", manifest.CollectionName)
	require.NotNil(t, manifest.CheckpointLSN)
	require.Equal(t, lsn, *manifest.CheckpointLSN)

	restoreRoot := t.TempDir()
	dst := Target{
		CollectionDir: filepath.Join(restoreRoot, "movies"),
		WalDir:        filepath.Join(restoreRoot, "movies", "wal"),
		PayloadDBPath: filepath.Join(restoreRoot, "movies", "payload.db"),
	}
	restored, err := Restore(snapDir, dst)
	require.NoError(t, err)
	require.Equal(t, "movies", restored.CollectionName)

	reopened, err := index.Open(restoreRoot, "movies")
	require.NoError(t, err)
	defer reopened.Close()

	v, err := reopened.Get("v1")
	require.NoError(t, err)
	require.Equal(t, []float32{1, 2}, v)
}

func TestCreateDuplicateSnapshotFails(t *testing.T) {
	root := t.TempDir()
	cfg := testConfig(2)
	idx, err := index.Create(root, "movies", distance.L2, cfg, 100)
	require.NoError(t, err)
	require.NoError(t, idx.Insert("v1", []float32{1, 2}))
	require.NoError(t, idx.Checkpoint(0))
	require.NoError(t, idx.Close())

	snapBase := filepath.Join(root, "snapshots")
	src := Source{CollectionDir: idx.CollectionDir()}
	_, err = Create(snapBase, "movies", "fixed", cfg, nil, src)
	require.NoError(t, err)

	_, err = Create(snapBase, "movies", "fixed", cfg, nil, src)
	require.Error(t, err)
}

func TestRestoreMissingSnapshotFails(t *testing.T) {
	_, err := Restore(filepath.Join(t.TempDir(), "nope"), Target{CollectionDir: t.TempDir()})
	require.Error(t, err)
}
