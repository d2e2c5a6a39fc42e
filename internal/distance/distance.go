// Package distance implements the metric family the HNSW engine is
// parameterized over: L2 (lower is better) and Cosine (higher is better),
// unified behind a single heap_score transform so a single max-heap
// implementation can serve both.
package distance

import (
	"math"

	"github.com/monishSR/vortex/internal/vortexerr"
)

// Metric selects the distance/similarity function used by a collection.
// It is a closed sum type, branched once per outer operation per the
// teacher's design notes, never per inner distance call on a hot path.
type Metric int

const (
	L2 Metric = iota
	Cosine
)

func (m Metric) String() string {
	switch m {
	case L2:
		return "l2"
	case Cosine:
		return "cosine"
	default:
		return "unknown"
	}
}

// ParseMetric maps a config string onto a Metric, for manifest/CLI parsing.
func ParseMetric(s string) (Metric, error) {
	switch s {
	case "l2", "L2":
		return L2, nil
	case "cosine", "Cosine":
		return Cosine, nil
	default:
		return 0, vortexerr.New(vortexerr.InvalidConfig, "unknown distance metric "+s)
	}
}

// Calculate returns the distance (L2) or similarity (Cosine) between a and
// b. Dimension mismatch is a hard error; zero-norm vectors under Cosine
// return similarity 0 rather than NaN; Cosine results are clamped to
// [-1, 1] to tame floating-point drift.
func Calculate(m Metric, a, b []float32) (float32, error) {
	if len(a) != len(b) {
		return 0, vortexerr.New(vortexerr.DimensionMismatch, "vector length mismatch")
	}
	switch m {
	case L2:
		return l2Distance(a, b), nil
	case Cosine:
		return cosineSimilarity(a, b), nil
	default:
		return 0, vortexerr.New(vortexerr.InvalidConfig, "unknown distance metric")
	}
}

func l2Distance(a, b []float32) float32 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return float32(math.Sqrt(sum))
}

func cosineSimilarity(a, b []float32) float32 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	sim := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	if sim > 1 {
		sim = 1
	} else if sim < -1 {
		sim = -1
	}
	return float32(sim)
}

// HeapScore unifies L2 and Cosine under one max-heap discipline: the
// result is always "bigger is locally better", so a single max-heap
// implementation serves search_layer for either metric.
func HeapScore(m Metric, value float32) float32 {
	if m == L2 {
		return -value
	}
	return value
}

// OriginalScore inverts HeapScore back to the user-facing distance or
// similarity value.
func OriginalScore(m Metric, score float32) float32 {
	if m == L2 {
		return -score
	}
	return score
}
