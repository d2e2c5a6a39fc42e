package storage

import (
	"encoding/binary"
	"os"
	"sync"

	mmap "github.com/blevesearch/mmap-go"
	"github.com/monishSR/vortex/internal/vortexerr"
)

// MmapGraphLinks holds the per-(layer, node) adjacency lists of the HNSW
// graph: for each layer, a fixed-size offset table (one entry per node)
// plus a fixed-size data block (one M_l-wide neighbor slot per node).
// Layer 0 caps fan-out at mMax0; every other layer caps at m.
type MmapGraphLinks struct {
	mu sync.RWMutex

	numNodes  uint64
	numLayers uint16
	mMax0     uint32
	m         uint32

	file *os.File
	data mmap.MMap

	layerOffsetTableStart []int64 // per layer, byte offset of its offset table
	layerDataBlockStart   []int64 // per layer, byte offset of its data block
}

func (g *MmapGraphLinks) capAt(layer int) uint32 {
	if layer == 0 {
		return g.mMax0
	}
	return g.m
}

func layerSectionSize(numNodes uint64, capM uint32) int64 {
	offsetTable := int64(numNodes) * layerOffsetEntryLen
	dataBlock := int64(numNodes) * int64(capM) * 8
	return offsetTable + dataBlock
}

func graphFileSize(numNodes uint64, numLayers uint16, mMax0, m uint32) int64 {
	total := int64(graphHeaderLen)
	for l := uint16(0); l < numLayers; l++ {
		capM := m
		if l == 0 {
			capM = mMax0
		}
		total += layerSectionSize(numNodes, capM)
	}
	return total
}

// CreateGraphLinks creates a new, zeroed graph-links file pre-sized for
// numNodes nodes across numLayers layers. The file is pre-sized for the
// max num_layers declared at creation time; it is never resized.
func CreateGraphLinks(path string, numNodes uint64, numLayers uint16, mMax0, m uint32) (*MmapGraphLinks, error) {
	if numLayers == 0 {
		return nil, vortexerr.New(vortexerr.InvalidConfig, "numLayers must be positive")
	}
	size := graphFileSize(numNodes, numLayers, mMax0, m)
	f, err := createSized(path, size)
	if err != nil {
		return nil, vortexerr.Wrap(vortexerr.Io, "create graph links file", err)
	}
	hdr := encodeGraphHeader(graphHeader{
		numNodes:   numNodes,
		numLayers:  numLayers,
		entryPoint: NoEntryPoint,
		mMax0:      mMax0,
		m:          m,
	})
	if _, err := f.WriteAt(hdr, 0); err != nil {
		f.Close()
		return nil, vortexerr.Wrap(vortexerr.Io, "write graph header", err)
	}
	f.Close()
	return OpenGraphLinks(path)
}

// OpenGraphLinks maps an existing graph-links file.
func OpenGraphLinks(path string) (*MmapGraphLinks, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0o644)
	if err != nil {
		return nil, vortexerr.Wrap(vortexerr.Io, "open graph links file", err)
	}
	data, err := mmap.Map(f, mmap.RDWR, 0)
	if err != nil {
		f.Close()
		return nil, vortexerr.Wrap(vortexerr.Io, "mmap graph links file", err)
	}
	hdr, err := decodeGraphHeader(data)
	if err != nil {
		data.Unmap()
		f.Close()
		return nil, err
	}
	// The header's num_layers is the active layer count, which SetNumLayers
	// may lower after creation; the pre-allocated layer count that fixes
	// the file layout is recovered from the file size.
	allocLayers := int64(hdr.numLayers)
	if upper := layerSectionSize(hdr.numNodes, hdr.m); upper > 0 {
		rest := int64(len(data)) - int64(graphHeaderLen) - layerSectionSize(hdr.numNodes, hdr.mMax0)
		if rest >= 0 && rest%upper == 0 {
			allocLayers = 1 + rest/upper
		}
	}
	if allocLayers > 0xFFFF || int64(hdr.numLayers) > allocLayers ||
		int64(len(data)) != graphFileSize(hdr.numNodes, uint16(allocLayers), hdr.mMax0, hdr.m) {
		data.Unmap()
		f.Close()
		return nil, vortexerr.New(vortexerr.Corrupt, "graph links file size mismatch against header")
	}

	g := &MmapGraphLinks{
		numNodes:  hdr.numNodes,
		numLayers: uint16(allocLayers),
		mMax0:     hdr.mMax0,
		m:         hdr.m,
		file:      f,
		data:      data,
	}
	g.layoutLayers()
	return g, nil
}

func (g *MmapGraphLinks) layoutLayers() {
	g.layerOffsetTableStart = make([]int64, g.numLayers)
	g.layerDataBlockStart = make([]int64, g.numLayers)
	cursor := int64(graphHeaderLen)
	for l := uint16(0); l < g.numLayers; l++ {
		capM := g.capAt(int(l))
		g.layerOffsetTableStart[l] = cursor
		offsetTableSize := int64(g.numNodes) * layerOffsetEntryLen
		g.layerDataBlockStart[l] = cursor + offsetTableSize
		cursor += layerSectionSize(g.numNodes, capM)
	}
}

func (g *MmapGraphLinks) offsetEntryAt(node uint64, layer int) []byte {
	start := g.layerOffsetTableStart[layer] + int64(node)*layerOffsetEntryLen
	return g.data[start : start+layerOffsetEntryLen]
}

func (g *MmapGraphLinks) slotAt(node uint64, layer int) []byte {
	capM := g.capAt(layer)
	start := g.layerDataBlockStart[layer] + int64(node)*int64(capM)*8
	return g.data[start : start+int64(capM)*8]
}

func (g *MmapGraphLinks) inRange(node uint64, layer int) bool {
	return layer >= 0 && layer < int(g.numLayers) && node < g.numNodes
}

// NumNodes, NumLayers, MMax0, M expose the fixed geometry of the file.
func (g *MmapGraphLinks) NumNodes() uint64  { return g.numNodes }
func (g *MmapGraphLinks) NumLayers() uint16 { return g.numLayers }
func (g *MmapGraphLinks) MMax0() uint32     { return g.mMax0 }
func (g *MmapGraphLinks) M() uint32         { return g.m }

// CapAt returns the neighbor-count cap for the given layer (mMax0 at
// layer 0, m otherwise).
func (g *MmapGraphLinks) CapAt(layer int) uint32 { return g.capAt(layer) }

// EntryPoint returns the current entry-point internal id, or
// (0, false) if the graph is empty.
func (g *MmapGraphLinks) EntryPoint() (uint64, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	hdr, _ := decodeGraphHeader(g.data)
	if hdr.entryPoint == NoEntryPoint {
		return 0, false
	}
	return hdr.entryPoint, true
}

// SetEntryPoint mutates the header's entry-point field.
func (g *MmapGraphLinks) SetEntryPoint(n uint64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	putEntryPoint(g.data, n)
}

// ClearEntryPoint resets the header to the empty-graph sentinel.
func (g *MmapGraphLinks) ClearEntryPoint() {
	g.mu.Lock()
	defer g.mu.Unlock()
	putEntryPoint(g.data, NoEntryPoint)
}

// SetNumLayers mutates the header's active-layer count. k must not exceed
// the file's pre-allocated NumLayers.
func (g *MmapGraphLinks) SetNumLayers(k uint16) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if k > g.numLayers {
		return vortexerr.New(vortexerr.OutOfRange, "num_layers exceeds pre-allocated file layout")
	}
	putNumLayers(g.data, k)
	return nil
}

// GetConnections returns the leading count neighbor ids of node at layer,
// or (nil, false) for an out-of-range (node, layer) pair. An empty-but-
// in-range slot returns an empty, non-nil slice.
func (g *MmapGraphLinks) GetConnections(node uint64, layer int) ([]uint64, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if !g.inRange(node, layer) {
		return nil, false
	}
	entry := decodeLayerEntry(g.offsetEntryAt(node, layer))
	if entry.count == 0 {
		return []uint64{}, true
	}
	slot := g.slotAt(node, layer)
	out := make([]uint64, entry.count)
	for i := range out {
		out[i] = binary.LittleEndian.Uint64(slot[i*8 : i*8+8])
	}
	return out, true
}

// SetConnections overwrites node's neighbor list at layer with ids,
// zero-filling the unused tail of the slot and updating the offset table.
func (g *MmapGraphLinks) SetConnections(node uint64, layer int, ids []uint64) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.inRange(node, layer) {
		return vortexerr.New(vortexerr.OutOfRange, "node or layer out of range")
	}
	capM := g.capAt(layer)
	if uint32(len(ids)) > capM {
		return vortexerr.New(vortexerr.InvalidConfig, "neighbor list exceeds layer capacity")
	}
	slot := g.slotAt(node, layer)
	for i := range slot {
		slot[i] = 0
	}
	for i, id := range ids {
		binary.LittleEndian.PutUint64(slot[i*8:i*8+8], id)
	}
	entryBuf := g.offsetEntryAt(node, layer)
	copy(entryBuf, encodeLayerEntry(layerEntry{
		offset: uint64(g.layerDataBlockStart[layer] + int64(node)*int64(capM)*8),
		count:  uint16(len(ids)),
	}))
	return nil
}

// Flush forces an OS-level flush of the graph links mapping.
func (g *MmapGraphLinks) Flush() error {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.data.Flush()
}

// Close unmaps and closes the backing file.
func (g *MmapGraphLinks) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	var firstErr error
	if err := g.data.Unmap(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := g.file.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
