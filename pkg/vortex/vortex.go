// Package vortex is the embeddable public API: a process-local vector
// database instance wrapping internal/registry, the way the teacher's
// pkg/veclite.VecLite wraps a single internal/storage+internal/index
// pair. Where VecLite is a single flat/HNSW collection per instance,
// Vortex is multi-collection — one Vortex opens a whole data directory
// and hands back named collections, per spec.md §1/§5.
package vortex

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/monishSR/vortex/internal/distance"
	"github.com/monishSR/vortex/internal/hnsw"
	"github.com/monishSR/vortex/internal/logging"
	"github.com/monishSR/vortex/internal/registry"
	"github.com/monishSR/vortex/internal/snapshot"
	"github.com/monishSR/vortex/internal/vortexerr"
	"github.com/monishSR/vortex/internal/wal"
)

// Config holds configuration for a Vortex instance, the multi-
// collection analogue of veclite.Config.
type Config struct {
	DataPath     string
	SnapshotPath string
	SegmentBytes int
	SegmentQueue int
	Logger       zerolog.Logger
}

// DefaultConfig mirrors veclite.DefaultConfig's role: sane defaults for
// an embedder that doesn't want to think about WAL segment sizing.
func DefaultConfig(dataPath string) *Config {
	return &Config{
		DataPath:     dataPath,
		SnapshotPath: filepath.Join(dataPath, "snapshots"),
		SegmentBytes: wal.DefaultOptions().SegmentCapacity,
		SegmentQueue: wal.DefaultOptions().SegmentQueueLen,
		Logger:       logging.Default(),
	}
}

// Vortex is the top-level embeddable handle: one data directory, many
// named collections.
type Vortex struct {
	config *Config
	reg    *registry.Registry
}

// Open opens (creating if empty) a Vortex instance rooted at
// config.DataPath, loading every existing collection and replaying its
// WAL forward from its last checkpoint, per internal/registry.LoadAll.
func Open(config *Config) (*Vortex, error) {
	if config == nil {
		return nil, vortexerr.New(vortexerr.InvalidConfig, "config must not be nil")
	}
	if config.DataPath == "" {
		return nil, vortexerr.New(vortexerr.InvalidConfig, "data path must not be empty")
	}

	opts := wal.Options{SegmentCapacity: config.SegmentBytes, SegmentQueueLen: config.SegmentQueue}
	if opts.SegmentCapacity <= 0 {
		opts.SegmentCapacity = wal.DefaultOptions().SegmentCapacity
	}

	reg := registry.New(config.DataPath, opts, config.Logger)
	loaded, failed := reg.LoadAll()
	config.Logger.Info().Int("loaded", loaded).Int("failed", failed).Str("path", config.DataPath).Msg("opened vortex instance")

	return &Vortex{config: config, reg: reg}, nil
}

// CreateCollection provisions a new, empty collection with the given
// vector dimension, distance metric, and HNSW tuning parameters.
func (v *Vortex) CreateCollection(name string, dim int, metric distance.Metric, cfg hnsw.Config, capacity uint64) (*Collection, error) {
	if cfg.Dim == 0 {
		cfg.Dim = dim
	}
	if cfg.Dim != dim {
		return nil, vortexerr.New(vortexerr.InvalidConfig, fmt.Sprintf("config dim %d does not match requested dim %d", cfg.Dim, dim))
	}
	c, err := v.reg.Create(name, metric, cfg, capacity)
	if err != nil {
		return nil, err
	}
	return &Collection{c: c, dim: dim}, nil
}

// Collection returns a handle to an already-open collection.
func (v *Vortex) Collection(name string) (*Collection, bool) {
	c, ok := v.reg.Get(name)
	if !ok {
		return nil, false
	}
	return &Collection{c: c, dim: c.Index.Active().Dim()}, true
}

// DeleteCollection removes a collection's state and on-disk files
// entirely, logging the deletion to its WAL first so a crash mid-delete
// is still recoverable (the collection simply reappears on next
// LoadAll and can be deleted again).
func (v *Vortex) DeleteCollection(name string) error {
	if c, ok := v.reg.Get(name); ok {
		if _, err := c.Wal.LogDeleteCollection(name); err != nil {
			return err
		}
	}
	return v.reg.Delete(name)
}

// CheckpointAll flushes and checkpoints every open collection.
func (v *Vortex) CheckpointAll() (saved, failed int) {
	return v.reg.CheckpointAll()
}

// Snapshot creates a point-in-time copy of a collection under
// config.SnapshotPath, checkpointing it first so the copy is
// consistent. name may be empty for an auto-generated snapshot name.
func (v *Vortex) Snapshot(collectionName, name string) (string, error) {
	c, ok := v.reg.Get(collectionName)
	if !ok {
		return "", vortexerr.New(vortexerr.NotFound, "collection not found: "+collectionName)
	}
	lsn, ok := c.Wal.LastLSN()
	var lsnPtr *uint64
	if ok {
		if err := c.Index.Checkpoint(lsn); err != nil {
			return "", err
		}
		if err := c.Wal.Checkpoint(lsn); err != nil {
			return "", err
		}
		lsnPtr = &lsn
	}

	payloadDir, err := os.MkdirTemp("", "vortex-payload-")
	if err != nil {
		return "", vortexerr.Wrap(vortexerr.Io, "create payload checkpoint directory", err)
	}
	defer os.RemoveAll(payloadDir)
	payloadCopy := filepath.Join(payloadDir, "payload.db")
	if err := c.Payload.Checkpoint(payloadCopy); err != nil {
		return "", err
	}

	return snapshot.Create(v.config.SnapshotPath, collectionName, name, c.Index.Active().Config(), lsnPtr, snapshot.Source{
		CollectionDir: c.Index.CollectionDir(),
		WalDir:        filepath.Join(c.Index.CollectionDir(), "wal"),
		PayloadDBPath: payloadCopy,
	})
}

// Restore reconstitutes a collection from a snapshot directory under
// a new (or the original) collection name, then opens it.
func (v *Vortex) Restore(snapshotDir, collectionName string) (*Collection, error) {
	if _, ok := v.reg.Get(collectionName); ok {
		return nil, vortexerr.New(vortexerr.AlreadyExists, "collection already open: "+collectionName)
	}

	collectionDir := filepath.Join(v.config.DataPath, collectionName)
	dst := snapshot.Target{
		CollectionDir: collectionDir,
		WalDir:        filepath.Join(collectionDir, "wal"),
		PayloadDBPath: filepath.Join(collectionDir, "payload.db"),
	}
	manifest, err := snapshot.Restore(snapshotDir, dst)
	if err != nil {
		return nil, err
	}

	loaded, failed := v.reg.LoadAll()
	v.config.Logger.Info().Int("loaded", loaded).Int("failed", failed).
		Str("snapshot_name", manifest.SnapshotName).Str("original_collection", manifest.CollectionName).
		Msg("reloaded registry after restore")

	c, ok := v.reg.Get(collectionName)
	if !ok {
		return nil, vortexerr.New(vortexerr.NotFound, "restored collection failed to load: "+collectionName)
	}
	return &Collection{c: c, dim: c.Index.Active().Dim()}, nil
}

// Close closes every open collection without checkpointing. Callers
// that want durability should call CheckpointAll first.
func (v *Vortex) Close() {
	v.reg.Close()
}

// Collection is a handle to one open collection: its vector index, WAL,
// and payload store, bound together.
type Collection struct {
	c   *registry.Collection
	dim int
}

// Insert adds a vector under id, appending an AddVector WAL record
// before applying it to the index (append-before-apply, per spec.md
// §4.6).
func (c *Collection) Insert(id string, vector []float32) error {
	return c.insert(id, vector, nil)
}

// InsertWithPayload inserts a vector and its opaque metadata payload as
// one write: the metadata rides in the same AddVector WAL record as the
// vector, per spec.md §4.6's `AddVector { id, vector, metadata? }`
// schema, before being mirrored into the payload store.
func (c *Collection) InsertWithPayload(id string, vector []float32, payloadValue []byte) error {
	return c.insert(id, vector, payloadValue)
}

func (c *Collection) insert(id string, vector []float32, metadata []byte) error {
	if len(vector) != c.dim {
		return vortexerr.New(vortexerr.DimensionMismatch, fmt.Sprintf("vector dimension %d does not match collection dimension %d", len(vector), c.dim))
	}
	if _, err := c.c.Wal.LogAddVector(id, vector, metadata); err != nil {
		return err
	}
	if err := c.c.Index.Insert(id, vector); err != nil {
		return err
	}
	if metadata == nil {
		return nil
	}
	return c.c.Payload.Put(id, metadata)
}

// Search finds the k nearest neighbors of query, searching ef candidates.
func (c *Collection) Search(query []float32, k, ef int) ([]hnsw.SearchResult, error) {
	if len(query) != c.dim {
		return nil, vortexerr.New(vortexerr.DimensionMismatch, fmt.Sprintf("query dimension %d does not match collection dimension %d", len(query), c.dim))
	}
	return c.c.Index.Search(query, k, ef)
}

// Get retrieves a stored vector by id.
func (c *Collection) Get(id string) ([]float32, error) {
	return c.c.Index.Get(id)
}

// Payload retrieves a stored payload by id.
func (c *Collection) Payload(id string) ([]byte, bool, error) {
	return c.c.Payload.Get(id)
}

// Delete removes a vector and its payload (if any) by id.
func (c *Collection) Delete(id string) error {
	if _, err := c.c.Wal.LogDeleteVector(id); err != nil {
		return err
	}
	if err := c.c.Index.Delete(id); err != nil {
		return err
	}
	return c.c.Payload.Delete(id)
}

// Checkpoint flushes this collection's index and WAL. The payload
// store needs no separate checkpoint step here: bbolt fsyncs every
// committed Put/Delete immediately.
func (c *Collection) Checkpoint() error {
	lsn, ok := c.c.Wal.LastLSN()
	if !ok {
		lsn = 0
	}
	if err := c.c.Index.Checkpoint(lsn); err != nil {
		return err
	}
	return c.c.Wal.Checkpoint(lsn)
}
