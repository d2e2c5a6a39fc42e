// Package index implements HnswIndex: a collection = one or more
// HnswSegments plus index-level metadata, currently exposing a single
// active segment as the write target (spec.md §2/§4.4). File layout
// follows spec.md §6's on-disk layout under a collection directory.
// Grounded on the teacher's internal/index/index.go open-or-create
// dispatcher (NewIndex), generalized from a flat/ivf/hnsw type switch to
// a single-algorithm manifest-driven open-or-create.
package index

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/monishSR/vortex/internal/distance"
	"github.com/monishSR/vortex/internal/hnsw"
	"github.com/monishSR/vortex/internal/vortexerr"
)

const (
	manifestFileName = "hnsw_meta.json"
	vectorsFileName  = "segment_vectors.vec"
	deletionFileName = "segment_vectors.del"
	graphFileName    = "segment_graph.graph"
)

// Layout resolves the on-disk file paths for one collection's active
// segment, per spec.md §6:
//
//	<root>/<collection>/<collection>.hnsw_meta.json
//	<root>/<collection>/<collection>/segment_vectors.vec
//	<root>/<collection>/<collection>/segment_vectors.del
//	<root>/<collection>/<collection>/segment_graph.graph
type Layout struct {
	Root       string
	Collection string
}

func (l Layout) collectionDir() string  { return filepath.Join(l.Root, l.Collection) }
func (l Layout) segmentDir() string     { return filepath.Join(l.collectionDir(), l.Collection) }
func (l Layout) ManifestPath() string   { return filepath.Join(l.collectionDir(), l.Collection+"."+manifestFileName) }
func (l Layout) segmentPaths() hnsw.Paths {
	return hnsw.Paths{
		VectorsData: filepath.Join(l.segmentDir(), vectorsFileName),
		VectorsDel:  filepath.Join(l.segmentDir(), deletionFileName),
		Graph:       filepath.Join(l.segmentDir(), graphFileName),
	}
}

// Index binds one active Segment to the collection's on-disk layout
// (data root and collection name). Metric, capacity and HNSW settings
// live in the segment's own manifest.
type Index struct {
	layout  Layout
	active  *hnsw.Segment
}

// Create provisions a brand-new collection directory and segment.
func Create(root, collection string, metric distance.Metric, cfg hnsw.Config, capacity uint64) (*Index, error) {
	layout := Layout{Root: root, Collection: collection}
	if _, err := os.Stat(layout.ManifestPath()); err == nil {
		return nil, vortexerr.New(vortexerr.AlreadyExists, "collection already exists: "+collection)
	}
	if err := os.MkdirAll(layout.segmentDir(), 0o755); err != nil {
		return nil, vortexerr.Wrap(vortexerr.Io, "create collection directories", err)
	}

	seg, err := hnsw.Create(layout.segmentPaths(), metric, cfg, capacity)
	if err != nil {
		os.RemoveAll(layout.collectionDir())
		return nil, err
	}
	idx := &Index{layout: layout, active: seg}
	if err := idx.persistManifest(); err != nil {
		seg.Close()
		os.RemoveAll(layout.collectionDir())
		return nil, err
	}
	return idx, nil
}

// Open loads an existing collection's manifest and maps its segment
// files.
func Open(root, collection string) (*Index, error) {
	layout := Layout{Root: root, Collection: collection}
	buf, err := os.ReadFile(layout.ManifestPath())
	if err != nil {
		return nil, vortexerr.Wrap(vortexerr.NotFound, "collection manifest not found: "+collection, err)
	}
	var m hnsw.Manifest
	if err := json.Unmarshal(buf, &m); err != nil {
		return nil, vortexerr.Wrap(vortexerr.Corrupt, "parse collection manifest", err)
	}
	seg, err := hnsw.Open(layout.segmentPaths(), m)
	if err != nil {
		return nil, err
	}
	return &Index{layout: layout, active: seg}, nil
}

// Exists reports whether a collection manifest is present on disk.
func Exists(root, collection string) bool {
	_, err := os.Stat(Layout{Root: root, Collection: collection}.ManifestPath())
	return err == nil
}

func (idx *Index) persistManifest() error {
	return hnsw.SaveManifest(idx.layout.ManifestPath(), idx.active.Manifest())
}

// Active returns the single write-target segment.
func (idx *Index) Active() *hnsw.Segment { return idx.active }

// Name returns the collection name.
func (idx *Index) Name() string { return idx.layout.Collection }

// Insert, Update, Delete, Search, Get delegate to the active segment.
func (idx *Index) Insert(id string, v []float32) error      { return idx.active.Insert(id, v) }
func (idx *Index) Update(id string, v []float32) error      { return idx.active.Update(id, v) }
func (idx *Index) Delete(id string) error                   { return idx.active.Delete(id) }
func (idx *Index) Get(id string) ([]float32, error)         { return idx.active.Get(id) }
func (idx *Index) Search(v []float32, k, ef int) ([]hnsw.SearchResult, error) {
	return idx.active.Search(v, k, ef)
}

// Checkpoint flushes the active segment's mmaps and persists its
// manifest with the given WAL LSN recorded as the checkpoint boundary,
// per spec.md §4.7's Save flow.
func (idx *Index) Checkpoint(walLSN uint64) error {
	idx.active.SetCheckpointLSN(walLSN)
	if err := idx.active.Flush(); err != nil {
		return err
	}
	return idx.persistManifest()
}

// Close flushes nothing; callers that need durability should Checkpoint
// first. Close just releases the mmap handles.
func (idx *Index) Close() error { return idx.active.Close() }

// CollectionDir and SegmentDir expose the on-disk layout for the
// snapshot/recovery coordinator.
func (idx *Index) CollectionDir() string { return idx.layout.collectionDir() }
func (idx *Index) SegmentDir() string    { return idx.layout.segmentDir() }
func (idx *Index) ManifestPath() string  { return idx.layout.ManifestPath() }
