// Package snapshot implements SnapshotManager: point-in-time copies of
// a collection's HNSW segment files, WAL, and payload store into a
// self-contained directory that Restore can later reconstitute as a
// fresh collection. Grounded on
// _examples/original_source/vortex-server/src/snapshot_manager.rs's
// create_collection_snapshot/restore_collection_snapshot.
package snapshot

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/monishSR/vortex/internal/hnsw"
	"github.com/monishSR/vortex/internal/vortexerr"
)

// ManifestFileName mirrors snapshot_manager.rs's SNAPSHOT_MANIFEST_FILE.
const ManifestFileName = "snapshot_manifest.json"

// EngineVersion is stamped into every manifest this build produces.
// snapshot_manager.rs uses the crate's Cargo package version for the
// same field; there is no equivalent build-time constant here, so a
// fixed string stands in for it.
const EngineVersion = "vortex-0.1.0"

// Manifest mirrors SnapshotManifest: identifying metadata plus the
// source segment's HNSW configuration, per spec.md §4.7. Reopening a
// restored collection still reads the hnsw_meta.json copied with it.
type Manifest struct {
	SnapshotVersion string      `json:"snapshot_version"`
	SnapshotName    string      `json:"snapshot_name"`
	CollectionName  string      `json:"collection_name"`
	TimestampUTC    string      `json:"timestamp_utc"`
	EngineVersion   string      `json:"engine_version"`
	CheckpointLSN   *uint64     `json:"checkpoint_lsn,omitempty"`
	HnswConfig      hnsw.Config `json:"hnsw_config"`
}

func writeManifest(path string, m Manifest) error {
	buf, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return vortexerr.Wrap(vortexerr.Io, "marshal snapshot manifest", err)
	}
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		return vortexerr.Wrap(vortexerr.Io, "write snapshot manifest", err)
	}
	return nil
}

// ReadManifest loads a snapshot directory's manifest without restoring
// it, e.g. to list available snapshots.
func ReadManifest(snapshotDir string) (Manifest, error) {
	var m Manifest
	buf, err := os.ReadFile(filepath.Join(snapshotDir, ManifestFileName))
	if err != nil {
		return m, vortexerr.Wrap(vortexerr.NotFound, "read snapshot manifest", err)
	}
	if err := json.Unmarshal(buf, &m); err != nil {
		return m, vortexerr.Wrap(vortexerr.Corrupt, "parse snapshot manifest", err)
	}
	return m, nil
}

// Source describes the live on-disk locations a snapshot is taken from
// — the caller (the registry) already knows these from its own
// index.Layout/collection.CollectionWal/payload.Store instances, so
// Create takes them as plain paths rather than owning those types
// itself.
type Source struct {
	CollectionDir string // root/<collection>, holds hnsw_meta.json + segment dir
	WalDir        string // root/<collection>/wal
	PayloadDBPath string // root/<collection>/payload.db, may not exist
}

// Create copies collectionName's current on-disk state into
// snapshotBaseDir/collectionName/name (name defaults to a timestamped
// identifier when empty) and writes a manifest alongside it. Returns
// the snapshot's directory. Mirrors create_collection_snapshot, minus
// the original's in-memory component locking: callers are expected to
// have already called Index.Checkpoint/CollectionWal.Checkpoint/
// payload.Store.Checkpoint so the files on disk are already quiesced
// before Create runs.
func Create(snapshotBaseDir, collectionName, name string, cfg hnsw.Config, checkpointLSN *uint64, src Source) (string, error) {
	if name == "" {
		name = collectionName + "_" + time.Now().UTC().Format("20060102T150405Z") + "_" + uuid.NewString()
	}
	snapshotDir := filepath.Join(snapshotBaseDir, collectionName, name)
	if _, err := os.Stat(snapshotDir); err == nil {
		return "", vortexerr.New(vortexerr.AlreadyExists, "snapshot already exists: "+snapshotDir)
	}
	if err := os.MkdirAll(snapshotDir, 0o755); err != nil {
		return "", vortexerr.Wrap(vortexerr.Io, "create snapshot directory", err)
	}

	if err := copyDirAll(src.CollectionDir, snapshotDir); err != nil {
		os.RemoveAll(snapshotDir)
		return "", vortexerr.Wrap(vortexerr.Io, "copy collection data into snapshot", err)
	}
	if _, err := os.Stat(src.WalDir); err == nil {
		if err := copyDirAll(src.WalDir, filepath.Join(snapshotDir, "wal")); err != nil {
			os.RemoveAll(snapshotDir)
			return "", vortexerr.Wrap(vortexerr.Io, "copy wal into snapshot", err)
		}
	}
	if _, err := os.Stat(src.PayloadDBPath); err == nil {
		if err := copyFile(src.PayloadDBPath, filepath.Join(snapshotDir, "payload.db")); err != nil {
			os.RemoveAll(snapshotDir)
			return "", vortexerr.Wrap(vortexerr.Io, "copy payload store into snapshot", err)
		}
	}

	manifest := Manifest{
		SnapshotVersion: "1.0.0",
		SnapshotName:    name,
		CollectionName:  collectionName,
		TimestampUTC:    time.Now().UTC().Format(time.RFC3339),
		EngineVersion:   EngineVersion,
		CheckpointLSN:   checkpointLSN,
		HnswConfig:      cfg,
	}
	if err := writeManifest(filepath.Join(snapshotDir, ManifestFileName), manifest); err != nil {
		os.RemoveAll(snapshotDir)
		return "", err
	}
	return snapshotDir, nil
}

// Target describes where Restore should materialize a collection's
// files, mirroring Source.
type Target struct {
	CollectionDir string
	WalDir        string
	PayloadDBPath string
}

// Restore reconstitutes a snapshot at snapshotDir into dst, failing if
// dst.CollectionDir already exists (matching restore_collection_snapshot's
// "fail if target collection dir already exists" policy; overwrite is
// left to the caller, which must remove the target first if that's
// wanted). Returns the loaded manifest so the caller can reopen the
// restored index/WAL/payload store with the recorded config and
// checkpoint LSN.
func Restore(snapshotDir string, dst Target) (Manifest, error) {
	var zero Manifest
	if _, err := os.Stat(snapshotDir); err != nil {
		return zero, vortexerr.Wrap(vortexerr.NotFound, "snapshot directory not found: "+snapshotDir, err)
	}
	manifest, err := ReadManifest(snapshotDir)
	if err != nil {
		return zero, err
	}
	if _, err := os.Stat(dst.CollectionDir); err == nil {
		return zero, vortexerr.New(vortexerr.AlreadyExists, "restore target already exists: "+dst.CollectionDir)
	}

	if err := os.MkdirAll(dst.CollectionDir, 0o755); err != nil {
		return zero, vortexerr.Wrap(vortexerr.Io, "create restore target directory", err)
	}
	if err := copyDirAllSkipping(snapshotDir, dst.CollectionDir, "wal", "payload.db", ManifestFileName); err != nil {
		return zero, vortexerr.Wrap(vortexerr.Io, "restore collection data from snapshot", err)
	}

	snapshotWalDir := filepath.Join(snapshotDir, "wal")
	if _, err := os.Stat(snapshotWalDir); err == nil {
		if err := copyDirAll(snapshotWalDir, dst.WalDir); err != nil {
			return zero, vortexerr.Wrap(vortexerr.Io, "restore wal from snapshot", err)
		}
	}
	snapshotPayloadDB := filepath.Join(snapshotDir, "payload.db")
	if _, err := os.Stat(snapshotPayloadDB); err == nil {
		if err := copyFile(snapshotPayloadDB, dst.PayloadDBPath); err != nil {
			return zero, vortexerr.Wrap(vortexerr.Io, "restore payload store from snapshot", err)
		}
	}
	return manifest, nil
}

// copyDirAll recursively copies src's contents into dst, creating dst
// if needed. Mirrors snapshot_manager.rs's copy_dir_all helper.
func copyDirAll(src, dst string) error {
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return err
	}
	entries, err := os.ReadDir(src)
	if err != nil {
		return err
	}
	for _, e := range entries {
		srcPath := filepath.Join(src, e.Name())
		dstPath := filepath.Join(dst, e.Name())
		if e.IsDir() {
			if err := copyDirAll(srcPath, dstPath); err != nil {
				return err
			}
			continue
		}
		if err := copyFile(srcPath, dstPath); err != nil {
			return err
		}
	}
	return nil
}

// copyDirAllSkipping is copyDirAll but ignores top-level entries whose
// name matches one of skip — used to keep the WAL/payload subtrees,
// which get their own destination, out of the plain collection-dir copy.
func copyDirAllSkipping(src, dst string, skip ...string) error {
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return err
	}
	entries, err := os.ReadDir(src)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if contains(skip, e.Name()) {
			continue
		}
		srcPath := filepath.Join(src, e.Name())
		dstPath := filepath.Join(dst, e.Name())
		if e.IsDir() {
			if err := copyDirAll(srcPath, dstPath); err != nil {
				return err
			}
			continue
		}
		if err := copyFile(srcPath, dstPath); err != nil {
			return err
		}
	}
	return nil
}

func contains(xs []string, v string) bool {
	for _, x := range xs {
		if x == v {
			return true
		}
	}
	return false
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()
	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
