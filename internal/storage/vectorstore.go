package storage

import (
	"encoding/binary"
	"math"
	"os"
	"sync"

	mmap "github.com/blevesearch/mmap-go"
	"github.com/monishSR/vortex/internal/vortexerr"
)

// MmapVectorStore is a fixed-capacity slab of dense f32[dim] slots plus a
// parallel per-slot deletion flag, both memory-mapped. All slots start
// deleted; put() clears the flag, delete() sets it. Every operation here
// is O(1), matching spec.md's MmapVectorStore contract.
type MmapVectorStore struct {
	mu sync.RWMutex

	dim      int
	capacity uint64

	dataFile *os.File
	dataMap  mmap.MMap

	delFile *os.File
	delMap  mmap.MMap

	activeCount uint64
}

func vectorFileSize(dim int, capacity uint64) int64 {
	return int64(vectorHeaderLen) + int64(capacity)*int64(dim)*4
}

func deletionFileSize(capacity uint64) int64 {
	return int64(deletionHeaderLen) + int64(capacity)
}

// CreateVectorStore creates new, zeroed (all-deleted) backing files at
// dataPath/delPath sized for capacity vectors of the given dimension.
func CreateVectorStore(dataPath, delPath string, dim int, capacity uint64) (*MmapVectorStore, error) {
	if dim <= 0 {
		return nil, vortexerr.New(vortexerr.InvalidConfig, "dimension must be positive")
	}
	if capacity == 0 {
		return nil, vortexerr.New(vortexerr.InvalidConfig, "capacity must be positive")
	}

	dataFile, err := createSized(dataPath, vectorFileSize(dim, capacity))
	if err != nil {
		return nil, vortexerr.Wrap(vortexerr.Io, "create vector data file", err)
	}
	if _, err := dataFile.WriteAt(encodeVectorHeader(vectorHeader{
		dim: uint32(dim), capacity: capacity, activeCount: 0,
	}), 0); err != nil {
		dataFile.Close()
		return nil, vortexerr.Wrap(vortexerr.Io, "write vector header", err)
	}

	delFile, err := createSized(delPath, deletionFileSize(capacity))
	if err != nil {
		dataFile.Close()
		return nil, vortexerr.Wrap(vortexerr.Io, "create deletion file", err)
	}
	if _, err := delFile.WriteAt(encodeDeletionHeader(deletionHeader{capacity: capacity}), 0); err != nil {
		dataFile.Close()
		delFile.Close()
		return nil, vortexerr.Wrap(vortexerr.Io, "write deletion header", err)
	}
	// Initial state of all slots is deleted: set every bitmap byte to 1.
	allDeleted := make([]byte, capacity)
	for i := range allDeleted {
		allDeleted[i] = 1
	}
	if _, err := delFile.WriteAt(allDeleted, int64(deletionHeaderLen)); err != nil {
		dataFile.Close()
		delFile.Close()
		return nil, vortexerr.Wrap(vortexerr.Io, "initialize deletion flags", err)
	}

	dataFile.Close()
	delFile.Close()
	return OpenVectorStore(dataPath, delPath)
}

func createSized(path string, size int64) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, err
	}
	if err := f.Truncate(size); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}

// OpenVectorStore maps existing backing files. File size must exactly
// match the header-implied size, else Corrupt.
func OpenVectorStore(dataPath, delPath string) (*MmapVectorStore, error) {
	dataFile, err := os.OpenFile(dataPath, os.O_RDWR, 0o644)
	if err != nil {
		return nil, vortexerr.Wrap(vortexerr.Io, "open vector data file", err)
	}
	dataMap, err := mmap.Map(dataFile, mmap.RDWR, 0)
	if err != nil {
		dataFile.Close()
		return nil, vortexerr.Wrap(vortexerr.Io, "mmap vector data file", err)
	}
	hdr, err := decodeVectorHeader(dataMap)
	if err != nil {
		dataMap.Unmap()
		dataFile.Close()
		return nil, err
	}
	if int64(len(dataMap)) != vectorFileSize(int(hdr.dim), hdr.capacity) {
		dataMap.Unmap()
		dataFile.Close()
		return nil, vortexerr.New(vortexerr.Corrupt, "vector data file size mismatch against header")
	}

	delFile, err := os.OpenFile(delPath, os.O_RDWR, 0o644)
	if err != nil {
		dataMap.Unmap()
		dataFile.Close()
		return nil, vortexerr.Wrap(vortexerr.Io, "open deletion file", err)
	}
	delMap, err := mmap.Map(delFile, mmap.RDWR, 0)
	if err != nil {
		dataMap.Unmap()
		dataFile.Close()
		delFile.Close()
		return nil, vortexerr.Wrap(vortexerr.Io, "mmap deletion file", err)
	}
	delHdr, err := decodeDeletionHeader(delMap)
	if err != nil {
		dataMap.Unmap()
		dataFile.Close()
		delMap.Unmap()
		delFile.Close()
		return nil, err
	}
	if delHdr.capacity != hdr.capacity {
		dataMap.Unmap()
		dataFile.Close()
		delMap.Unmap()
		delFile.Close()
		return nil, vortexerr.New(vortexerr.Corrupt, "deletion file capacity disagrees with data file")
	}
	if int64(len(delMap)) != deletionFileSize(delHdr.capacity) {
		dataMap.Unmap()
		dataFile.Close()
		delMap.Unmap()
		delFile.Close()
		return nil, vortexerr.New(vortexerr.Corrupt, "deletion file size mismatch against header")
	}

	return &MmapVectorStore{
		dim:         int(hdr.dim),
		capacity:    hdr.capacity,
		dataFile:    dataFile,
		dataMap:     dataMap,
		delFile:     delFile,
		delMap:      delMap,
		activeCount: hdr.activeCount,
	}, nil
}

func (s *MmapVectorStore) vectorOffset(id uint64) int64 {
	return int64(vectorHeaderLen) + int64(id)*int64(s.dim)*4
}

func (s *MmapVectorStore) deletionOffset(id uint64) int64 {
	return int64(deletionHeaderLen) + int64(id)
}

// Dim returns the fixed vector dimensionality.
func (s *MmapVectorStore) Dim() int { return s.dim }

// Capacity returns the fixed slot capacity.
func (s *MmapVectorStore) Capacity() uint64 { return s.capacity }

// ActiveCount returns the number of currently-live (non-deleted) slots.
func (s *MmapVectorStore) ActiveCount() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeCount
}

// Put writes v at id, clears its deletion flag, and bumps ActiveCount if
// the slot was previously deleted.
func (s *MmapVectorStore) Put(id uint64, v []float32) error {
	if len(v) != s.dim {
		return vortexerr.New(vortexerr.DimensionMismatch, "vector length does not match store dimension")
	}
	if id >= s.capacity {
		return vortexerr.New(vortexerr.OutOfRange, "internal id exceeds capacity")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	off := s.vectorOffset(id)
	buf := s.dataMap[off : off+int64(s.dim)*4]
	for i, f := range v {
		putFloat32(buf[i*4:i*4+4], f)
	}

	wasDeleted := s.delMap[s.deletionOffset(id)] != 0
	s.delMap[s.deletionOffset(id)] = 0
	if wasDeleted {
		s.activeCount++
		putActiveCount(s.dataMap, s.activeCount)
	}
	return nil
}

// Get returns a copy of the vector at id, or (nil, false) if id is out of
// range or deleted.
func (s *MmapVectorStore) Get(id uint64) ([]float32, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if id >= s.capacity || s.delMap[s.deletionOffset(id)] != 0 {
		return nil, false
	}
	off := s.vectorOffset(id)
	buf := s.dataMap[off : off+int64(s.dim)*4]
	out := make([]float32, s.dim)
	for i := range out {
		out[i] = getFloat32(buf[i*4 : i*4+4])
	}
	return out, true
}

// Delete sets id's deletion flag and reports whether the slot had been
// active.
func (s *MmapVectorStore) Delete(id uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id >= s.capacity {
		return false
	}
	off := s.deletionOffset(id)
	if s.delMap[off] != 0 {
		return false
	}
	s.delMap[off] = 1
	s.activeCount--
	putActiveCount(s.dataMap, s.activeCount)
	return true
}

// IsDeleted reports the deletion flag for id. Out-of-range ids are
// reported as deleted.
func (s *MmapVectorStore) IsDeleted(id uint64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if id >= s.capacity {
		return true
	}
	return s.delMap[s.deletionOffset(id)] != 0
}

// FlushData forces an OS-level flush of the vector data mapping.
func (s *MmapVectorStore) FlushData() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dataMap.Flush()
}

// FlushFlags forces an OS-level flush of the deletion-bitmap mapping.
func (s *MmapVectorStore) FlushFlags() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.delMap.Flush()
}

// FlushHeader is an alias of FlushData: the header lives inside the data
// mapping, so flushing the data range also flushes the header bytes.
func (s *MmapVectorStore) FlushHeader() error { return s.FlushData() }

// Close unmaps and closes both backing files.
func (s *MmapVectorStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var firstErr error
	if err := s.dataMap.Unmap(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := s.dataFile.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := s.delMap.Unmap(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := s.delFile.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

func putFloat32(buf []byte, f float32) {
	binary.LittleEndian.PutUint32(buf, math.Float32bits(f))
}

func getFloat32(buf []byte) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(buf))
}
