// Package storage implements the mmap-backed segment substrate: a
// fixed-capacity vector slab with a soft-deletion bitmap (MmapVectorStore),
// and a per-layer adjacency list store (MmapGraphLinks). Both are grounded
// on original_source/vortex-core/src/storage/{mmap_vector_storage,mmap_hnsw_graph_links}.rs,
// reachable here through github.com/blevesearch/mmap-go rather than a raw
// syscall wrapper.
package storage

import (
	"encoding/binary"

	"github.com/monishSR/vortex/internal/vortexerr"
)

// Header sizes below are the literal sum of their documented fields. The
// original source's "(total 32 bytes)" comments on DeletionFileHeader and
// MmapGraphFileHeader undercount their own field lists (38 and 40 bytes
// respectively); we follow the real field layout, not the inaccurate
// comment, since that's what a byte-exact reader/writer must agree on.
const (
	vectorHeaderLen     = 32 // magic[6]+version u16+dim u32+capacity u64+active_count u64+reserved[4]
	deletionHeaderLen   = 38 // magic[6]+version u16+capacity u64+reserved[22]
	graphHeaderLen      = 40 // magic[6]+version u16+num_nodes u64+num_layers u16+entry_point u64+m_max0 u32+m u32+reserved[6]
	layerOffsetEntryLen = 16 // offset_in_data u64 + count u16 + pad[6]

	vectorMagic   = "VTXVEC"
	deletionMagic = "VEXDEL"
	graphMagic    = "VTXGRH"

	currentVersion uint16 = 1

	// NoEntryPoint is the sentinel for "graph is empty" in the graph header.
	NoEntryPoint uint64 = ^uint64(0)
)

// vectorHeader mirrors the on-disk vector data file header.
type vectorHeader struct {
	dim         uint32
	capacity    uint64
	activeCount uint64
}

func encodeVectorHeader(h vectorHeader) []byte {
	buf := make([]byte, vectorHeaderLen)
	copy(buf[0:6], vectorMagic)
	binary.LittleEndian.PutUint16(buf[6:8], currentVersion)
	binary.LittleEndian.PutUint32(buf[8:12], h.dim)
	binary.LittleEndian.PutUint64(buf[12:20], h.capacity)
	binary.LittleEndian.PutUint64(buf[20:28], h.activeCount)
	return buf
}

func decodeVectorHeader(buf []byte) (vectorHeader, error) {
	var h vectorHeader
	if len(buf) < vectorHeaderLen {
		return h, vortexerr.New(vortexerr.Corrupt, "vector header truncated")
	}
	if string(buf[0:6]) != vectorMagic {
		return h, vortexerr.New(vortexerr.Corrupt, "vector header magic mismatch")
	}
	version := binary.LittleEndian.Uint16(buf[6:8])
	if version > currentVersion {
		return h, vortexerr.New(vortexerr.Corrupt, "vector header version unsupported")
	}
	h.dim = binary.LittleEndian.Uint32(buf[8:12])
	h.capacity = binary.LittleEndian.Uint64(buf[12:20])
	h.activeCount = binary.LittleEndian.Uint64(buf[20:28])
	return h, nil
}

func putActiveCount(buf []byte, n uint64) {
	binary.LittleEndian.PutUint64(buf[20:28], n)
}

// deletionHeader mirrors the on-disk deletion-bitmap file header.
type deletionHeader struct {
	capacity uint64
}

func encodeDeletionHeader(h deletionHeader) []byte {
	buf := make([]byte, deletionHeaderLen)
	copy(buf[0:6], deletionMagic)
	binary.LittleEndian.PutUint16(buf[6:8], currentVersion)
	binary.LittleEndian.PutUint64(buf[8:16], h.capacity)
	return buf
}

func decodeDeletionHeader(buf []byte) (deletionHeader, error) {
	var h deletionHeader
	if len(buf) < deletionHeaderLen {
		return h, vortexerr.New(vortexerr.Corrupt, "deletion header truncated")
	}
	if string(buf[0:6]) != deletionMagic {
		return h, vortexerr.New(vortexerr.Corrupt, "deletion header magic mismatch")
	}
	version := binary.LittleEndian.Uint16(buf[6:8])
	if version > currentVersion {
		return h, vortexerr.New(vortexerr.Corrupt, "deletion header version unsupported")
	}
	h.capacity = binary.LittleEndian.Uint64(buf[8:16])
	return h, nil
}

// graphHeader mirrors the on-disk graph-links file header.
type graphHeader struct {
	numNodes   uint64
	numLayers  uint16
	entryPoint uint64
	mMax0      uint32
	m          uint32
}

func encodeGraphHeader(h graphHeader) []byte {
	buf := make([]byte, graphHeaderLen)
	copy(buf[0:6], graphMagic)
	binary.LittleEndian.PutUint16(buf[6:8], currentVersion)
	binary.LittleEndian.PutUint64(buf[8:16], h.numNodes)
	binary.LittleEndian.PutUint16(buf[16:18], h.numLayers)
	binary.LittleEndian.PutUint64(buf[18:26], h.entryPoint)
	binary.LittleEndian.PutUint32(buf[26:30], h.mMax0)
	binary.LittleEndian.PutUint32(buf[30:34], h.m)
	return buf
}

func decodeGraphHeader(buf []byte) (graphHeader, error) {
	var h graphHeader
	if len(buf) < graphHeaderLen {
		return h, vortexerr.New(vortexerr.Corrupt, "graph header truncated")
	}
	if string(buf[0:6]) != graphMagic {
		return h, vortexerr.New(vortexerr.Corrupt, "graph header magic mismatch")
	}
	version := binary.LittleEndian.Uint16(buf[6:8])
	if version > currentVersion {
		return h, vortexerr.New(vortexerr.Corrupt, "graph header version unsupported")
	}
	h.numNodes = binary.LittleEndian.Uint64(buf[8:16])
	h.numLayers = binary.LittleEndian.Uint16(buf[16:18])
	h.entryPoint = binary.LittleEndian.Uint64(buf[18:26])
	h.mMax0 = binary.LittleEndian.Uint32(buf[26:30])
	h.m = binary.LittleEndian.Uint32(buf[30:34])
	return h, nil
}

func putEntryPoint(buf []byte, n uint64) {
	binary.LittleEndian.PutUint64(buf[18:26], n)
}

func putNumLayers(buf []byte, n uint16) {
	binary.LittleEndian.PutUint16(buf[16:18], n)
}

// layerEntry mirrors one 16-byte offset-table slot: offset_in_data:u64,
// count:u16, pad[6].
type layerEntry struct {
	offset uint64
	count  uint16
}

func encodeLayerEntry(e layerEntry) []byte {
	buf := make([]byte, layerOffsetEntryLen)
	binary.LittleEndian.PutUint64(buf[0:8], e.offset)
	binary.LittleEndian.PutUint16(buf[8:10], e.count)
	return buf
}

func decodeLayerEntry(buf []byte) layerEntry {
	return layerEntry{
		offset: binary.LittleEndian.Uint64(buf[0:8]),
		count:  binary.LittleEndian.Uint16(buf[8:10]),
	}
}
