package hnsw

import (
	"encoding/json"
	"os"

	"github.com/monishSR/vortex/internal/distance"
	"github.com/monishSR/vortex/internal/vortexerr"
)

// Manifest is the segment metadata spec.md §3 keeps separate from the
// mmap files: HnswConfig, metric, the external<->internal ID maps,
// next_internal_id, entry point, num_layers, and the last-checkpointed
// LSN. Node levels are carried alongside the ID maps: the graph file's
// per-layer offset tables can't distinguish "zero neighbors at a
// participating layer" from "doesn't participate here", so the level a
// node was assigned at insertion time has to live somewhere durable — the
// manifest is the natural place, next to the rest of the segment's
// in-memory-only bookkeeping.
type Manifest struct {
	Config   Config          `json:"config"`
	Metric   string          `json:"metric"`
	Capacity uint64          `json:"capacity"`
	MaxLayers uint16         `json:"max_layers"`

	ExtToInt map[string]uint64 `json:"ext_to_int"`
	NodeLevel map[uint64]int   `json:"node_level"`

	NextInternalID uint64 `json:"next_internal_id"`
	CheckpointLSN  uint64 `json:"checkpoint_lsn"`
	HasCheckpoint  bool   `json:"has_checkpoint"`
}

// SaveManifest persists m as JSON to path (the manifest format, unlike
// the mmap files, is JSON per spec.md §6).
func SaveManifest(path string, m Manifest) error {
	buf, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return vortexerr.Wrap(vortexerr.Io, "marshal segment manifest", err)
	}
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		return vortexerr.Wrap(vortexerr.Io, "write segment manifest", err)
	}
	return nil
}

// LoadManifest reads and parses a segment manifest.
func LoadManifest(path string) (Manifest, error) {
	var m Manifest
	buf, err := os.ReadFile(path)
	if err != nil {
		return m, vortexerr.Wrap(vortexerr.Io, "read segment manifest", err)
	}
	if err := json.Unmarshal(buf, &m); err != nil {
		return m, vortexerr.Wrap(vortexerr.Corrupt, "parse segment manifest", err)
	}
	return m, nil
}

func metricFromString(s string) (distance.Metric, error) {
	return distance.ParseMetric(s)
}
