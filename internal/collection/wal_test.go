package collection

import (
	"errors"
	"testing"

	"github.com/monishSR/vortex/internal/hnsw"
	"github.com/monishSR/vortex/internal/wal"
	"github.com/stretchr/testify/require"
)

func testOptions() wal.Options {
	return wal.Options{SegmentCapacity: 4096, SegmentQueueLen: 1}
}

func TestLogAndReplayInOrder(t *testing.T) {
	dir := t.TempDir()
	cw, err := Open(dir, testOptions())
	require.NoError(t, err)
	defer cw.Close()

	cfg := hnsw.DefaultConfig(2)
	_, err = cw.LogCreateIndex("movies", cfg, "l2", 2, 100)
	require.NoError(t, err)
	_, err = cw.LogAddVector("v0", []float32{0, 0}, nil)
	require.NoError(t, err)
	_, err = cw.LogAddVector("v1", []float32{1, 1}, nil)
	require.NoError(t, err)
	_, err = cw.LogDeleteVector("v0")
	require.NoError(t, err)

	var kinds []Kind
	err = cw.Replay(0, func(lsn uint64, rec Record) error {
		kinds = append(kinds, rec.Kind)
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, []Kind{KindCreateIndex, KindAddVector, KindAddVector, KindDeleteVector}, kinds)
}

func TestReplayPayloadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	cw, err := Open(dir, testOptions())
	require.NoError(t, err)
	defer cw.Close()

	_, err = cw.LogAddVector("vec1", []float32{0.1, 0.2}, []byte("meta"))
	require.NoError(t, err)

	var got *AddVectorPayload
	err = cw.Replay(0, func(lsn uint64, rec Record) error {
		got = rec.AddVector
		return nil
	})
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, "vec1", got.VectorID)
	require.Equal(t, []float32{0.1, 0.2}, got.Vector)
	require.Equal(t, []byte("meta"), got.Metadata)
}

func TestCheckpointThenReplayOnlyNewRecords(t *testing.T) {
	dir := t.TempDir()
	cw, err := Open(dir, testOptions())
	require.NoError(t, err)
	defer cw.Close()

	lsn1, err := cw.LogAddVector("v1", []float32{1, 1}, nil)
	require.NoError(t, err)
	_, err = cw.LogAddVector("v2", []float32{2, 2}, nil)
	require.NoError(t, err)
	require.NoError(t, cw.Checkpoint(lsn1))

	var ids []string
	err = cw.Replay(lsn1, func(lsn uint64, rec Record) error {
		if rec.AddVector != nil {
			ids = append(ids, rec.AddVector.VectorID)
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, []string{"v2"}, ids)
}

func TestReplayAppliesApplyFuncErrors(t *testing.T) {
	dir := t.TempDir()
	cw, err := Open(dir, testOptions())
	require.NoError(t, err)
	defer cw.Close()

	_, err = cw.LogAddVector("v1", []float32{1, 1}, nil)
	require.NoError(t, err)

	applyErr := errors.New("apply failed")
	err = cw.Replay(0, func(lsn uint64, rec Record) error {
		return applyErr
	})
	require.ErrorIs(t, err, applyErr)
}
