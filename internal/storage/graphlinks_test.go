package storage

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestGraphLinks(t *testing.T, numNodes uint64, numLayers uint16, mMax0, m uint32) *MmapGraphLinks {
	t.Helper()
	path := filepath.Join(t.TempDir(), "g.graph")
	g, err := CreateGraphLinks(path, numNodes, numLayers, mMax0, m)
	require.NoError(t, err)
	t.Cleanup(func() { _ = g.Close() })
	return g
}

func TestGraphLinksEmptyEntryPoint(t *testing.T) {
	g := newTestGraphLinks(t, 10, 2, 16, 8)
	_, ok := g.EntryPoint()
	require.False(t, ok)
}

func TestGraphLinksSetGetConnections(t *testing.T) {
	g := newTestGraphLinks(t, 10, 2, 4, 2)

	conns, ok := g.GetConnections(0, 0)
	require.True(t, ok)
	require.Empty(t, conns)

	require.NoError(t, g.SetConnections(0, 0, []uint64{1, 2, 3}))
	conns, ok = g.GetConnections(0, 0)
	require.True(t, ok)
	require.Equal(t, []uint64{1, 2, 3}, conns)

	// overwriting with fewer neighbors must not leak the old tail
	require.NoError(t, g.SetConnections(0, 0, []uint64{9}))
	conns, ok = g.GetConnections(0, 0)
	require.True(t, ok)
	require.Equal(t, []uint64{9}, conns)
}

func TestGraphLinksCapacityExceeded(t *testing.T) {
	g := newTestGraphLinks(t, 4, 1, 2, 2)
	err := g.SetConnections(0, 0, []uint64{1, 2, 3})
	require.Error(t, err)
}

func TestGraphLinksOutOfRange(t *testing.T) {
	g := newTestGraphLinks(t, 4, 1, 2, 2)
	_, ok := g.GetConnections(100, 0)
	require.False(t, ok)
	_, ok = g.GetConnections(0, 5)
	require.False(t, ok)
}

func TestGraphLinksEntryPointAndLayers(t *testing.T) {
	g := newTestGraphLinks(t, 4, 3, 2, 2)
	g.SetEntryPoint(2)
	ep, ok := g.EntryPoint()
	require.True(t, ok)
	require.Equal(t, uint64(2), ep)

	require.NoError(t, g.SetNumLayers(2))
	require.Error(t, g.SetNumLayers(10))
}

func TestGraphLinksReopenRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "g.graph")
	g, err := CreateGraphLinks(path, 4, 2, 4, 2)
	require.NoError(t, err)
	require.NoError(t, g.SetConnections(1, 1, []uint64{0, 2}))
	g.SetEntryPoint(1)
	require.NoError(t, g.Flush())
	require.NoError(t, g.Close())

	reopened, err := OpenGraphLinks(path)
	require.NoError(t, err)
	defer reopened.Close()

	conns, ok := reopened.GetConnections(1, 1)
	require.True(t, ok)
	require.Equal(t, []uint64{0, 2}, conns)
	ep, ok := reopened.EntryPoint()
	require.True(t, ok)
	require.Equal(t, uint64(1), ep)
}
