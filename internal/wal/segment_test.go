package wal

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPaddingMatchesOriginal(t *testing.T) {
	require.Equal(t, 4, padding(0))
	require.Equal(t, 3, padding(1))
	require.Equal(t, 2, padding(2))
	require.Equal(t, 1, padding(3))
	require.Equal(t, 0, padding(4))
	require.Equal(t, 7, padding(5))
	require.Equal(t, 4, padding(8))
}

func TestSegmentCreateOpenEmpty(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "segment_empty.vxw")

	created, err := CreateSegment(path, 1024)
	require.NoError(t, err)
	require.Equal(t, 0, created.Len())
	require.True(t, created.IsEmpty())
	require.Equal(t, 1024, created.Capacity())
	require.Equal(t, segmentHeaderLen, created.CurrentSize())
	require.NoError(t, created.Close())

	reopened, err := OpenSegment(path)
	require.NoError(t, err)
	defer reopened.Close()
	require.Equal(t, 0, reopened.Len())
	require.Equal(t, 1024, reopened.Capacity())
}

func TestSegmentAppendAndReadEntries(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "segment_data.vxw")
	seg, err := CreateSegment(path, 1024)
	require.NoError(t, err)
	defer seg.Close()

	e1 := []byte("hello")
	e2 := []byte("vortex world")

	idx1, ok := seg.AppendRecordBytes(e1)
	require.True(t, ok)
	require.Equal(t, 0, idx1)

	idx2, ok := seg.AppendRecordBytes(e2)
	require.True(t, ok)
	require.Equal(t, 1, idx2)

	got1, ok := seg.Entry(0)
	require.True(t, ok)
	require.Equal(t, e1, got1)

	got2, ok := seg.Entry(1)
	require.True(t, ok)
	require.Equal(t, e2, got2)

	require.Equal(t, 56, seg.CurrentSize())
}

func TestSegmentReopenWithData(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "segment_reopen.vxw")
	e1 := []byte("test_data_1")
	e2 := []byte("another_entry_for_testing")

	var originalCRC uint32
	func() {
		seg, err := CreateSegment(path, 1024)
		require.NoError(t, err)
		defer seg.Close()
		_, ok := seg.AppendRecordBytes(e1)
		require.True(t, ok)
		_, ok = seg.AppendRecordBytes(e2)
		require.True(t, ok)
		originalCRC = seg.crc
		require.NoError(t, seg.Flush())
	}()

	reopened, err := OpenSegment(path)
	require.NoError(t, err)
	defer reopened.Close()
	require.Equal(t, 2, reopened.Len())
	got1, _ := reopened.Entry(0)
	require.Equal(t, e1, got1)
	got2, _ := reopened.Entry(1)
	require.Equal(t, e2, got2)
	require.Equal(t, originalCRC, reopened.crc)
}

func TestSegmentTruncate(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "segment_truncate.vxw")
	seg, err := CreateSegment(path, 1024)
	require.NoError(t, err)
	defer seg.Close()

	entries := [][]byte{[]byte("entry0"), []byte("entry1"), []byte("entry2"), []byte("entry3"), []byte("entry4")}
	for _, e := range entries {
		_, ok := seg.AppendRecordBytes(e)
		require.True(t, ok)
	}
	require.Equal(t, 5, seg.Len())

	seg.TruncateFromOrdinal(3)
	require.Equal(t, 3, seg.Len())
	_, ok := seg.Entry(3)
	require.False(t, ok)
	_, ok = seg.Entry(4)
	require.False(t, ok)
	got2, _ := seg.Entry(2)
	require.Equal(t, entries[2], got2)

	seg.TruncateFromOrdinal(0)
	require.Equal(t, 0, seg.Len())
	require.True(t, seg.IsEmpty())
}

func TestSegmentCRCMismatchTruncatesReplay(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "segment_corrupt.vxw")
	seg, err := CreateSegment(path, 1024)
	require.NoError(t, err)

	_, ok := seg.AppendRecordBytes([]byte("good"))
	require.True(t, ok)
	_, ok = seg.AppendRecordBytes([]byte("also-good"))
	require.True(t, ok)
	require.NoError(t, seg.Flush())

	// Corrupt the second record's data in place.
	loc := seg.index[1]
	seg.data[loc.offset] ^= 0xFF
	require.NoError(t, seg.Flush())
	require.NoError(t, seg.Close())

	reopened, err := OpenSegment(path)
	require.NoError(t, err)
	defer reopened.Close()
	require.Equal(t, 1, reopened.Len())
	got, _ := reopened.Entry(0)
	require.Equal(t, []byte("good"), got)
}
