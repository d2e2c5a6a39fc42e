package hnsw

import (
	"math"

	"github.com/monishSR/vortex/internal/vortexerr"
)

// Config mirrors original_source/vortex-core/src/config.rs's HnswConfig:
// the tunable parameters of one collection's graph, persisted verbatim
// into the segment manifest.
type Config struct {
	M              int     `json:"m"`
	MMax0          int     `json:"m_max0"`
	EfConstruction int     `json:"ef_construction"`
	EfSearch       int     `json:"ef_search"`
	Ml             float64 `json:"ml"`
	Seed           int64   `json:"seed"`
	Dim            int     `json:"dim"`
}

// DefaultConfig mirrors the Rust Default impl: m=16 (mMax0=2m), ef
// parameters generous enough for decent recall, ml = 1/ln(m).
func DefaultConfig(dim int) Config {
	m := 16
	return Config{
		M:              m,
		MMax0:          2 * m,
		EfConstruction: 200,
		EfSearch:       50,
		Ml:             1 / math.Log(float64(m)),
		Seed:           0,
		Dim:            dim,
	}
}

// Validate mirrors HnswConfig::validate(): m/ef parameters must be usable
// by the graph algorithms, dim must be positive. Bad config surfaces as
// InvalidConfig, recoverable by the caller (a 400-class error).
func (c Config) Validate() error {
	if c.Dim <= 0 {
		return vortexerr.New(vortexerr.InvalidConfig, "dim must be positive")
	}
	if c.M < 2 {
		return vortexerr.New(vortexerr.InvalidConfig, "m must be at least 2")
	}
	if c.MMax0 < c.M {
		return vortexerr.New(vortexerr.InvalidConfig, "m_max0 must be at least m")
	}
	if c.EfConstruction < 1 {
		return vortexerr.New(vortexerr.InvalidConfig, "ef_construction must be at least 1")
	}
	if c.EfSearch < 1 {
		return vortexerr.New(vortexerr.InvalidConfig, "ef_search must be at least 1")
	}
	if c.Ml <= 0 {
		return vortexerr.New(vortexerr.InvalidConfig, "ml must be positive")
	}
	return nil
}
