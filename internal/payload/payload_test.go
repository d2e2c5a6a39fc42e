package payload

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPutGetDelete(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "payload.db"))
	require.NoError(t, err)
	defer s.Close()

	_, found, err := s.Get("v1")
	require.NoError(t, err)
	require.False(t, found)

	require.NoError(t, s.Put("v1", []byte(`{"title":"dune"}`)))
	got, found, err := s.Get("v1")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, []byte(`{"title":"dune"}`), got)

	require.NoError(t, s.Delete("v1"))
	_, found, err = s.Get("v1")
	require.NoError(t, err)
	require.False(t, found)
}

func TestCheckpointThenReopen(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "payload.db"))
	require.NoError(t, err)

	require.NoError(t, s.Put("a", []byte("1")))
	require.NoError(t, s.Put("b", []byte("2")))

	snapPath := filepath.Join(dir, "snapshot.db")
	require.NoError(t, s.Checkpoint(snapPath))
	require.NoError(t, s.Close())

	snap, err := Open(snapPath)
	require.NoError(t, err)
	defer snap.Close()

	v, found, err := snap.Get("a")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, []byte("1"), v)

	v, found, err = snap.Get("b")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, []byte("2"), v)
}

func TestReopenPersistsData(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "payload.db")

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Put("k", []byte("v")))
	require.NoError(t, s.Close())

	s2, err := Open(path)
	require.NoError(t, err)
	defer s2.Close()

	v, found, err := s2.Get("k")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, []byte("v"), v)
}
