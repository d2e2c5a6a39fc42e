// Package wal implements the write-ahead log: segmented append-only
// files with chained CRC32-C validation, and the directory-level log
// that rotates segments and assigns a monotonic LSN to every record
// (spec.md §4.5). Grounded on
// _examples/original_source/vortex-server/src/wal/segment.rs and
// wal/mod.rs.
package wal

import (
	"encoding/binary"
	"hash/crc32"
	"math/rand"
	"os"
	"path/filepath"

	"github.com/blevesearch/mmap-go"
	"github.com/monishSR/vortex/internal/vortexerr"
)

const (
	segmentMagic      = "VXW"
	segmentVersion    = uint8(0)
	segmentHeaderLen  = 8 // magic(3) + version(1) + crc seed(4)
	entryHeaderLen    = 8 // little-endian u64 data length
	entryCRCLen       = 4
	entryFixedOverhead = entryHeaderLen + entryCRCLen
)

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

// padding returns the number of zero bytes to append after a record's
// data so that header+data+padding is always ≡ 4 (mod 8); combined with
// the fixed 8B entry header and 4B trailing CRC, every on-disk entry
// ends on an 8-byte boundary.
func padding(dataLen int) int {
	return (4 - dataLen%8 + 8) % 8
}

func entryOnDiskSize(dataLen int) int {
	return entryHeaderLen + dataLen + padding(dataLen) + entryCRCLen
}

// index entry: byte offset of the record's data, and its length.
type entryLoc struct {
	offset int
	length int
}

// Segment is one fixed-capacity, memory-mapped append-only log file.
// Not safe for concurrent use; the owning Wal serializes all access.
type Segment struct {
	path     string
	file     *os.File
	data     mmap.MMap
	capacity int
	index    []entryLoc
	crc      uint32
	flushOff int
}

func alignDown8(n int) int { return n &^ 7 }

// CreateSegment allocates a new zero-filled segment file of the given
// capacity (rounded down to an 8-byte boundary), writes its header via
// a tmp-file-then-rename so a crash never leaves a half-written segment
// visible under its final name, and maps it.
func CreateSegment(path string, capacity int) (*Segment, error) {
	capacity = alignDown8(capacity)
	if capacity < segmentHeaderLen {
		return nil, vortexerr.New(vortexerr.InvalidConfig, "wal segment capacity too small")
	}
	dir := filepath.Dir(path)
	tmpPath := filepath.Join(dir, "tmp-"+filepath.Base(path))

	f, err := os.OpenFile(tmpPath, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, vortexerr.Wrap(vortexerr.Io, "create wal segment tmp file", err)
	}
	if err := f.Truncate(int64(capacity)); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return nil, vortexerr.Wrap(vortexerr.Io, "allocate wal segment", err)
	}

	seed := rand.Uint32()
	header := make([]byte, segmentHeaderLen)
	copy(header, segmentMagic)
	header[3] = segmentVersion
	binary.LittleEndian.PutUint32(header[4:8], seed)
	if _, err := f.WriteAt(header, 0); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return nil, vortexerr.Wrap(vortexerr.Io, "write wal segment header", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return nil, vortexerr.Wrap(vortexerr.Io, "sync wal segment header", err)
	}
	f.Close()

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return nil, vortexerr.Wrap(vortexerr.Io, "rename wal segment into place", err)
	}

	return OpenSegment(path)
}

// OpenSegment maps an existing segment file, validates its header, and
// replays its record chain to rebuild the in-memory index. A CRC
// mismatch at any record truncates the visible log at that point — per
// spec.md §9, a record that fails CRC was "never acknowledged" and is
// treated as if it had never been appended.
func OpenSegment(path string) (*Segment, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0o644)
	if err != nil {
		return nil, vortexerr.Wrap(vortexerr.Io, "open wal segment", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, vortexerr.Wrap(vortexerr.Io, "stat wal segment", err)
	}
	capacity := alignDown8(int(info.Size()))
	if capacity < segmentHeaderLen {
		f.Close()
		return nil, vortexerr.New(vortexerr.Corrupt, "wal segment smaller than header")
	}

	data, err := mmap.MapRegion(f, capacity, mmap.RDWR, 0, 0)
	if err != nil {
		f.Close()
		return nil, vortexerr.Wrap(vortexerr.Io, "mmap wal segment", err)
	}

	if string(data[0:3]) != segmentMagic {
		return nil, vortexerr.New(vortexerr.Corrupt, "bad wal segment magic: "+path)
	}
	if data[3] != segmentVersion {
		return nil, vortexerr.New(vortexerr.Corrupt, "unsupported wal segment version")
	}

	crc := binary.LittleEndian.Uint32(data[4:8])
	offset := segmentHeaderLen
	var index []entryLoc

	for offset+entryFixedOverhead <= capacity {
		dataLen := int(binary.LittleEndian.Uint64(data[offset : offset+entryHeaderLen]))
		pad := padding(dataLen)
		padded := dataLen + pad
		if offset+entryHeaderLen+padded+entryCRCLen > capacity {
			break
		}

		toCRC := data[offset : offset+entryHeaderLen+padded]
		computed := crc32.Update(crc, castagnoli, toCRC)

		crcOffset := offset + entryHeaderLen + padded
		stored := binary.LittleEndian.Uint32(data[crcOffset : crcOffset+entryCRCLen])
		if computed != stored {
			break
		}

		crc = computed
		index = append(index, entryLoc{offset: offset + entryHeaderLen, length: dataLen})
		offset += entryHeaderLen + padded + entryCRCLen
	}

	return &Segment{
		path:     path,
		file:     f,
		data:     data,
		capacity: capacity,
		index:    index,
		crc:      crc,
		flushOff: offset,
	}, nil
}

// Len returns the number of valid records in this segment.
func (s *Segment) Len() int { return len(s.index) }

// IsEmpty reports whether the segment has zero records.
func (s *Segment) IsEmpty() bool { return len(s.index) == 0 }

// Capacity returns the segment's allocated byte size.
func (s *Segment) Capacity() int { return s.capacity }

// CurrentSize returns the byte offset one past the end of the last
// valid record (or the header length, if empty).
func (s *Segment) CurrentSize() int {
	if len(s.index) == 0 {
		return segmentHeaderLen
	}
	last := s.index[len(s.index)-1]
	return last.offset + last.length + padding(last.length) + entryCRCLen
}

// SufficientCapacity reports whether a record of dataLen bytes fits in
// the segment's remaining capacity.
func (s *Segment) SufficientCapacity(dataLen int) bool {
	return s.capacity-s.CurrentSize() >= entryOnDiskSize(dataLen)
}

// Path returns the segment's current file path.
func (s *Segment) Path() string { return s.path }

// Entry returns a copy of the record data at the given ordinal, or
// false if out of range.
func (s *Segment) Entry(ordinal int) ([]byte, bool) {
	if ordinal < 0 || ordinal >= len(s.index) {
		return nil, false
	}
	loc := s.index[ordinal]
	out := make([]byte, loc.length)
	copy(out, s.data[loc.offset:loc.offset+loc.length])
	return out, true
}

// AppendRecordBytes writes one length-prefixed, padded, CRC-chained
// record, returning its ordinal within the segment, or false if the
// segment lacks capacity.
func (s *Segment) AppendRecordBytes(record []byte) (int, bool) {
	if !s.SufficientCapacity(len(record)) {
		return 0, false
	}

	dataLen := len(record)
	pad := padding(dataLen)
	padded := dataLen + pad
	writeOff := s.CurrentSize()

	binary.LittleEndian.PutUint64(s.data[writeOff:writeOff+entryHeaderLen], uint64(dataLen))
	dataOff := writeOff + entryHeaderLen
	copy(s.data[dataOff:dataOff+dataLen], record)
	for i := 0; i < pad; i++ {
		s.data[dataOff+dataLen+i] = 0
	}

	toCRC := s.data[writeOff : writeOff+entryHeaderLen+padded]
	newCRC := crc32.Update(s.crc, castagnoli, toCRC)
	crcOff := writeOff + entryHeaderLen + padded
	binary.LittleEndian.PutUint32(s.data[crcOff:crcOff+entryCRCLen], newCRC)

	s.crc = newCRC
	s.index = append(s.index, entryLoc{offset: dataOff, length: dataLen})
	return len(s.index) - 1, true
}

// TruncateFromOrdinal discards every record from the given ordinal
// onward, rewinds the chained CRC to that of the new last record (or
// the segment's seed, if now empty), and zeroes the discarded tail.
func (s *Segment) TruncateFromOrdinal(from int) {
	if from >= len(s.index) {
		return
	}
	s.index = s.index[:from]

	if len(s.index) == 0 {
		s.crc = binary.LittleEndian.Uint32(s.data[4:8])
	} else {
		last := s.index[len(s.index)-1]
		padded := last.length + padding(last.length)
		crcOff := last.offset + padded
		s.crc = binary.LittleEndian.Uint32(s.data[crcOff : crcOff+entryCRCLen])
	}

	newSize := s.CurrentSize()
	for i := newSize; i < s.capacity; i++ {
		s.data[i] = 0
	}
}

// EnsureCapacity grows the segment file (doubling, rounded to the next
// power of two and 8-byte aligned) if a record of the given data length
// would not currently fit.
func (s *Segment) EnsureCapacity(dataLen int) error {
	needed := s.CurrentSize() + entryOnDiskSize(dataLen)
	if needed <= s.capacity {
		return nil
	}
	if err := s.Flush(); err != nil {
		return err
	}

	newCapacity := nextPowerOfTwo(needed)
	if doubled := s.capacity * 2; doubled > newCapacity {
		newCapacity = doubled
	}
	newCapacity = alignDown8(newCapacity)

	if err := s.data.Unmap(); err != nil {
		return vortexerr.Wrap(vortexerr.Io, "unmap wal segment for growth", err)
	}
	if err := s.file.Truncate(int64(newCapacity)); err != nil {
		return vortexerr.Wrap(vortexerr.Io, "grow wal segment", err)
	}
	data, err := mmap.MapRegion(s.file, newCapacity, mmap.RDWR, 0, 0)
	if err != nil {
		return vortexerr.Wrap(vortexerr.Io, "remap grown wal segment", err)
	}
	s.data = data
	s.capacity = newCapacity
	return nil
}

func nextPowerOfTwo(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

// Flush persists outstanding writes to disk.
func (s *Segment) Flush() error {
	if err := s.data.Flush(); err != nil {
		return vortexerr.Wrap(vortexerr.Io, "flush wal segment", err)
	}
	s.flushOff = s.CurrentSize()
	return nil
}

// Rename moves the segment's backing file, used when an open segment
// is retired into a closed one.
func (s *Segment) Rename(newPath string) error {
	if err := os.Rename(s.path, newPath); err != nil {
		return vortexerr.Wrap(vortexerr.Io, "rename wal segment", err)
	}
	s.path = newPath
	return nil
}

// Delete unmaps and removes the segment's file.
func (s *Segment) Delete() error {
	if err := s.data.Unmap(); err != nil {
		return vortexerr.Wrap(vortexerr.Io, "unmap wal segment before delete", err)
	}
	if err := s.file.Close(); err != nil {
		return vortexerr.Wrap(vortexerr.Io, "close wal segment before delete", err)
	}
	if err := os.Remove(s.path); err != nil {
		return vortexerr.Wrap(vortexerr.Io, "delete wal segment", err)
	}
	return nil
}

// Close unmaps and closes the segment without deleting it.
func (s *Segment) Close() error {
	if err := s.data.Unmap(); err != nil {
		return vortexerr.Wrap(vortexerr.Io, "unmap wal segment", err)
	}
	return s.file.Close()
}
