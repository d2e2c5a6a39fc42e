// Package registry implements the process-wide collection registry:
// the RW-lock-guarded map of open collections, directory-scan startup
// recovery, and checkpoint-all/save-all orchestration. Grounded on
// _examples/original_source/vortex-server/src/persistence.rs's
// save_index/save_all_indices/load_all_indices_on_startup plus
// wal_manager.rs's recover_from_wal replay loop this package drives.
package registry

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"

	"github.com/monishSR/vortex/internal/collection"
	"github.com/monishSR/vortex/internal/distance"
	"github.com/monishSR/vortex/internal/hnsw"
	"github.com/monishSR/vortex/internal/index"
	"github.com/monishSR/vortex/internal/payload"
	"github.com/monishSR/vortex/internal/vortexerr"
	"github.com/monishSR/vortex/internal/wal"
)

const manifestSuffix = ".hnsw_meta.json"

// Collection bundles the three on-disk components that together make
// up one collection's durable state: the HNSW index, its WAL, and its
// payload store. Grouping them here (rather than leaving the registry
// to juggle three separate maps, as AppState does) keeps the
// checkpoint/replay sequencing for one collection in one place.
type Collection struct {
	Name        string
	Index       *index.Index
	Wal         *collection.CollectionWal
	Payload     payload.Store
	PayloadPath string
}

// checkpoint flushes the index and checkpoints the WAL up to the
// index's last applied LSN. Mirrors persistence.rs's save_index, minus
// the separate server-metadata file (checkpoint LSN lives in the HNSW
// manifest here, per internal/index.Index.Checkpoint, rather than in
// its own `*.meta.json` sidecar) and minus any payload-store step: bbolt
// fsyncs every committed transaction immediately, so there is nothing
// left to flush there on an ordinary checkpoint (unlike Payload.Checkpoint,
// which produces a point-in-time copy at a separate destination for
// internal/snapshot to use).
func (c *Collection) checkpoint(lsn uint64) error {
	if err := c.Index.Checkpoint(lsn); err != nil {
		return err
	}
	if c.Wal != nil {
		if err := c.Wal.Checkpoint(lsn); err != nil {
			return err
		}
	}
	return nil
}

// Close releases every component's file handles without checkpointing.
func (c *Collection) Close() error {
	var errs []error
	if err := c.Index.Close(); err != nil {
		errs = append(errs, err)
	}
	if c.Wal != nil {
		if err := c.Wal.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if c.Payload != nil {
		if err := c.Payload.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return errs[0]
	}
	return nil
}

// apply replays one WAL record into idx (and, for AddVector's optional
// metadata, ps). AddVector goes through the normal insert path per
// spec.md §4.6: a duplicate insert of an external ID already visible in
// the mmap segment (the crash-before-checkpoint case this replay exists
// for) is idempotent by becoming an update, not a dropped record.
func apply(idx *index.Index, ps payload.Store) collection.Apply {
	return func(lsn uint64, rec collection.Record) error {
		switch rec.Kind {
		case collection.KindCreateIndex:
			return nil
		case collection.KindAddVector:
			p := rec.AddVector
			if err := idx.Insert(p.VectorID, p.Vector); err != nil {
				if !vortexerr.Of(err, vortexerr.AlreadyExists) {
					return err
				}
				if err := idx.Update(p.VectorID, p.Vector); err != nil {
					return err
				}
			}
			if len(p.Metadata) > 0 {
				if err := ps.Put(p.VectorID, p.Metadata); err != nil {
					return err
				}
			}
			return nil
		case collection.KindDeleteVector:
			p := rec.DeleteVector
			if err := idx.Delete(p.VectorID); err != nil && !vortexerr.Of(err, vortexerr.NotFound) {
				return err
			}
			return nil
		case collection.KindDeleteCollection:
			return nil
		default:
			return nil
		}
	}
}

// Registry is the process-wide table of open collections.
type Registry struct {
	mu          sync.RWMutex
	root        string
	collections map[string]*Collection
	walOptions  wal.Options
	log         zerolog.Logger
}

// New creates an empty registry rooted at root.
func New(root string, walOptions wal.Options, log zerolog.Logger) *Registry {
	return &Registry{
		root:        root,
		collections: make(map[string]*Collection),
		walOptions:  walOptions,
		log:         log,
	}
}

// Create provisions a brand-new collection: an HNSW index, a WAL, and a
// payload store, all logged as one CreateIndex WAL record before the
// index itself is created on disk (append-before-apply, per spec.md
// §4.6).
func (r *Registry) Create(name string, metric distance.Metric, cfg hnsw.Config, capacity uint64) (*Collection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.collections[name]; exists {
		return nil, vortexerr.New(vortexerr.AlreadyExists, "collection already open: "+name)
	}
	if index.Exists(r.root, name) {
		return nil, vortexerr.New(vortexerr.AlreadyExists, "collection already exists: "+name)
	}

	cw, err := collection.Open(filepath.Join(r.root, name, "wal"), r.walOptions)
	if err != nil {
		return nil, err
	}
	if _, err := cw.LogCreateIndex(name, cfg, metric.String(), uint32(cfg.Dim), capacity); err != nil {
		cw.Close()
		return nil, err
	}

	idx, err := index.Create(r.root, name, metric, cfg, capacity)
	if err != nil {
		cw.Close()
		return nil, err
	}

	payloadPath := filepath.Join(r.root, name, "payload.db")
	ps, err := payload.Open(payloadPath)
	if err != nil {
		idx.Close()
		cw.Close()
		return nil, err
	}
	c := &Collection{Name: name, Index: idx, Wal: cw, Payload: ps, PayloadPath: payloadPath}
	r.collections[name] = c
	r.log.Info().Str("collection", name).Msg("created collection")
	return c, nil
}

// Get returns an already-open collection.
func (r *Registry) Get(name string) (*Collection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.collections[name]
	return c, ok
}

// Delete removes a collection's in-memory state, closes its files, and
// deletes its on-disk directory entirely.
func (r *Registry) Delete(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.collections[name]
	if ok {
		c.Close()
		delete(r.collections, name)
	}
	if err := os.RemoveAll(filepath.Join(r.root, name)); err != nil {
		return vortexerr.Wrap(vortexerr.Io, "delete collection directory", err)
	}
	return nil
}

// CheckpointAll flushes and checkpoints every open collection, logging
// (not failing outright on) individual errors, mirroring
// save_all_indices's saved_count/error_count accounting.
func (r *Registry) CheckpointAll() (saved, failed int) {
	r.mu.RLock()
	names := make([]*Collection, 0, len(r.collections))
	for _, c := range r.collections {
		names = append(names, c)
	}
	r.mu.RUnlock()

	for _, c := range names {
		lsn, ok := c.Wal.LastLSN()
		if !ok {
			continue
		}
		if err := c.checkpoint(lsn); err != nil {
			r.log.Error().Err(err).Str("collection", c.Name).Msg("failed to checkpoint collection")
			failed++
			continue
		}
		saved++
	}
	return saved, failed
}

// Close closes every open collection without checkpointing.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.collections {
		c.Close()
	}
	r.collections = make(map[string]*Collection)
}

// LoadAll scans root for collection manifests and opens each one,
// replaying its WAL from the manifest's recorded checkpoint LSN onward.
// Mirrors load_all_indices_on_startup's directory scan (identifying a
// collection by the `<name>/<name>.hnsw_meta.json` file inside each
// subdirectory of root) and WAL-replay-after-
// checkpoint-LSN recovery.
func (r *Registry) LoadAll() (loaded, failed int) {
	entries, err := os.ReadDir(r.root)
	if err != nil {
		r.log.Info().Str("root", r.root).Msg("persistence directory does not exist, nothing to load")
		return 0, 0
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		collectionName := e.Name()
		if _, err := os.Stat(filepath.Join(r.root, collectionName, collectionName+manifestSuffix)); err != nil {
			continue
		}

		idx, err := index.Open(r.root, collectionName)
		if err != nil {
			r.log.Error().Err(err).Str("collection", collectionName).Msg("failed to open index, skipping")
			failed++
			continue
		}

		cw, err := collection.Open(filepath.Join(r.root, collectionName, "wal"), r.walOptions)
		if err != nil {
			r.log.Error().Err(err).Str("collection", collectionName).Msg("failed to open wal, skipping")
			idx.Close()
			failed++
			continue
		}

		payloadPath := filepath.Join(r.root, collectionName, "payload.db")
		ps, err := payload.Open(payloadPath)
		if err != nil {
			r.log.Error().Err(err).Str("collection", collectionName).Msg("failed to open payload store, skipping")
			idx.Close()
			cw.Close()
			failed++
			continue
		}

		checkpointLSN, _ := idx.Active().CheckpointLSN()
		if err := cw.Replay(checkpointLSN, apply(idx, ps)); err != nil {
			r.log.Error().Err(err).Str("collection", collectionName).Msg("failed to replay wal, skipping")
			idx.Close()
			cw.Close()
			ps.Close()
			failed++
			continue
		}

		r.collections[collectionName] = &Collection{Name: collectionName, Index: idx, Wal: cw, Payload: ps, PayloadPath: payloadPath}
		loaded++
		r.log.Info().Str("collection", collectionName).Msg("loaded collection")
	}
	return loaded, failed
}
