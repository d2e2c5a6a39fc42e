// Package payload implements the opaque PayloadStore collaborator
// spec.md §1 carries as an external dependency of the HNSW/storage/WAL
// core: per-vector metadata keyed by the same external vector ID, kept
// out of the mmap vector/graph files entirely. spec.md treats its
// internals as out of scope; SPEC_FULL.md §4 supplements a concrete
// default implementation so snapshot/checkpoint flows have something
// real to drain and flush.
package payload

import (
	"bytes"
	"os"

	bolt "go.etcd.io/bbolt"

	"github.com/monishSR/vortex/internal/vortexerr"
)

var payloadBucket = []byte("payload")

// Store is the opaque per-vector metadata collaborator. Implementations
// must support being checkpointed into a single file so SnapshotManager
// can copy it alongside the HNSW segment files.
type Store interface {
	Put(id string, value []byte) error
	Get(id string) ([]byte, bool, error)
	Delete(id string) error
	// Checkpoint flushes any buffered state and ensures the store's
	// on-disk representation at path is current and consistent with
	// every Put/Delete acknowledged so far.
	Checkpoint(path string) error
	Close() error
}

// BoltStore is the default Store, an embedded single-file KV database.
type BoltStore struct {
	db *bolt.DB
}

// Open opens (creating if absent) a bbolt-backed payload store at path.
func Open(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0o644, nil)
	if err != nil {
		return nil, vortexerr.Wrap(vortexerr.Io, "open payload store", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(payloadBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, vortexerr.Wrap(vortexerr.Io, "initialize payload store bucket", err)
	}
	return &BoltStore{db: db}, nil
}

// Put writes (or overwrites) the payload for id.
func (s *BoltStore) Put(id string, value []byte) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(payloadBucket).Put([]byte(id), value)
	})
	if err != nil {
		return vortexerr.Wrap(vortexerr.Io, "put payload", err)
	}
	return nil
}

// Get reads the payload for id, returning false if absent.
func (s *BoltStore) Get(id string) ([]byte, bool, error) {
	var out []byte
	var found bool
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(payloadBucket).Get([]byte(id))
		if v != nil {
			out = bytes.Clone(v)
			found = true
		}
		return nil
	})
	if err != nil {
		return nil, false, vortexerr.Wrap(vortexerr.Io, "get payload", err)
	}
	return out, found, nil
}

// Delete removes the payload for id, if present.
func (s *BoltStore) Delete(id string) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(payloadBucket).Delete([]byte(id))
	})
	if err != nil {
		return vortexerr.Wrap(vortexerr.Io, "delete payload", err)
	}
	return nil
}

// Checkpoint snapshots the live bbolt database to path using bbolt's
// own consistent hot-backup API, matching spec.md §4.7's "drain and
// checkpoint the payload store" step of snapshot creation.
func (s *BoltStore) Checkpoint(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return vortexerr.Wrap(vortexerr.Io, "create payload checkpoint file", err)
	}
	defer f.Close()

	err = s.db.View(func(tx *bolt.Tx) error {
		_, werr := tx.WriteTo(f)
		return werr
	})
	if err != nil {
		return vortexerr.Wrap(vortexerr.Io, "checkpoint payload store", err)
	}
	return nil
}

// Close releases the underlying database handle.
func (s *BoltStore) Close() error {
	if err := s.db.Close(); err != nil {
		return vortexerr.Wrap(vortexerr.Io, "close payload store", err)
	}
	return nil
}
