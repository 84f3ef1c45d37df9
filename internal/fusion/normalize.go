package fusion

import (
	"math"
	"strings"

	"github.com/sydlexius/confluence/internal/tables"
)

// Fixed confidences for curation-backed contributions.
const (
	// manualConfidence reflects human curation of override entries.
	manualConfidence = 0.95
	// heuristicConfidence applies when a curated label is not in the
	// score table and only the substring heuristics matched.
	heuristicConfidence = 0.75
)

// Config holds the tunable constants of normalization and fusion.
type Config struct {
	// Reliability weights one source's word against another's.
	Reliability map[Source]float64

	// SimilarityExponent is the power-law exponent applied to raw
	// algorithmic scores; raw score distributions cluster low, so
	// high scores are emphasized over middling ones.
	SimilarityExponent float64

	// DistanceScale and DistanceOffset define the score-to-distance
	// transform scale/(scaled+offset). The offset keeps the transform
	// away from division by zero; both are tunable, the shape is not.
	DistanceScale  float64
	DistanceOffset float64

	// FactualBoost multiplies the primary similarity when factual and
	// algorithmic contributions corroborate each other. Must be >1.
	FactualBoost float64

	// AgreementBonus is added once when more than one distinct source
	// contributed.
	AgreementBonus float64

	// VariancePenalty scales how much inter-source disagreement in
	// similarity lowers the fused confidence.
	VariancePenalty float64

	// ConfidenceFloor discards fused edges whose confidence lands
	// below it.
	ConfidenceFloor float64
}

// DefaultConfig returns the default fusion configuration.
func DefaultConfig() Config {
	return Config{
		Reliability: map[Source]float64{
			SourceMusicBrainz: 0.95,
			SourceManual:      0.90,
			SourceLastFM:      0.85,
			SourceSpotify:     0.80,
		},
		SimilarityExponent: 1.5,
		DistanceScale:      20,
		DistanceOffset:     0.01,
		FactualBoost:       1.1,
		AgreementBonus:     0.05,
		VariancePenalty:    1.0,
		ConfidenceFloor:    0.3,
	}
}

// TableSource supplies the current curated table snapshot.
type TableSource interface {
	Current() *tables.Snapshot
}

// Normalizer converts raw observations into EdgeContributions. It is
// pure: malformed input degrades to conservative defaults instead of
// erroring, so one bad upstream record cannot abort a batch run.
type Normalizer struct {
	cfg    Config
	tables TableSource
}

// NewNormalizer creates a normalizer over the given tables and config.
func NewNormalizer(tbl TableSource, cfg Config) *Normalizer {
	return &Normalizer{cfg: cfg, tables: tbl}
}

// Normalize maps one observation onto the common contribution tuple.
func (n *Normalizer) Normalize(obs Observation) EdgeContribution {
	switch o := obs.(type) {
	case CuratedObservation:
		return n.normalizeCurated(o)
	case AlgorithmicObservation:
		return n.normalizeAlgorithmic(o)
	case ManualObservation:
		return n.normalizeManual(o)
	default:
		// Unknown observation kind: weakest possible contribution.
		return n.finish(EdgeContribution{
			RelationshipLabel: "unknown",
			Distance:          n.maxDistance(),
		})
	}
}

// normalizeCurated maps a relationship label to its fixed scores.
// Labels missing from the table fall back to substring heuristics so
// new label text from the source never silently drops the signal.
func (n *Normalizer) normalizeCurated(o CuratedObservation) EdgeContribution {
	label := strings.ToLower(strings.TrimSpace(o.Label))
	c := EdgeContribution{
		Source:            o.Source,
		RelationshipLabel: label,
		IsFactual:         true,
	}

	if sc, ok := n.tables.Current().Score(label); ok {
		c.Similarity = sc.Similarity
		c.Distance = sc.Distance
		c.RawValue = sc.Similarity
		c.Confidence = n.reliability(o.Source)
		return n.finish(c)
	}

	switch {
	case strings.Contains(label, "member"), strings.Contains(label, "band"):
		c.Similarity, c.Distance = 0.90, 1.5
	case strings.Contains(label, "collab"):
		c.Similarity, c.Distance = 0.80, 2.5
	default:
		c.Similarity, c.Distance = 0.50, 8.0
	}
	c.RawValue = c.Similarity
	c.Confidence = heuristicConfidence
	return n.finish(c)
}

// normalizeAlgorithmic scales a raw match score and derives distance
// and confidence from it. Confidence is the log-scale midpoint of the
// source reliability and the scaled score: a strong score from a
// source is trusted more than a weak one, and a near-zero score takes
// the confidence down with it.
func (n *Normalizer) normalizeAlgorithmic(o AlgorithmicObservation) EdgeContribution {
	raw := o.Raw
	if math.IsNaN(raw) || raw < 0 {
		raw = 0
	}
	if raw > 1 {
		raw = 1
	}

	scaled := math.Pow(raw, n.cfg.SimilarityExponent)
	return n.finish(EdgeContribution{
		Source:            o.Source,
		RelationshipLabel: "similar",
		RawValue:          raw,
		Similarity:        scaled,
		Distance:          n.cfg.DistanceScale / (scaled + n.cfg.DistanceOffset),
		IsFactual:         false,
		Confidence:        math.Sqrt(n.reliability(o.Source) * scaled),
	})
}

// normalizeManual takes the override entry's values directly.
func (n *Normalizer) normalizeManual(o ManualObservation) EdgeContribution {
	label := strings.ToLower(strings.TrimSpace(o.Label))
	if label == "" {
		label = "manual"
	}
	return n.finish(EdgeContribution{
		Source:            SourceManual,
		RelationshipLabel: label,
		RawValue:          o.Similarity,
		Similarity:        o.Similarity,
		Distance:          o.Distance,
		IsFactual:         true,
		Confidence:        manualConfidence,
	})
}

// finish clamps a contribution into its declared ranges.
func (n *Normalizer) finish(c EdgeContribution) EdgeContribution {
	c.RawValue = clamp01(c.RawValue)
	c.Similarity = clamp01(c.Similarity)
	c.Confidence = clamp01(c.Confidence)
	if math.IsNaN(c.Distance) {
		c.Distance = n.maxDistance()
	}
	if c.Distance < 0.5 {
		c.Distance = 0.5
	}
	return c
}

// reliability returns the configured weight for a source, with a
// conservative default for sources missing from the table.
func (n *Normalizer) reliability(s Source) float64 {
	if w, ok := n.cfg.Reliability[s]; ok {
		return w
	}
	return 0.5
}

// maxDistance is the asymptote of the distance transform, used as the
// conservative distance for degenerate input.
func (n *Normalizer) maxDistance() float64 {
	if n.cfg.DistanceOffset <= 0 {
		return 2000
	}
	return n.cfg.DistanceScale / n.cfg.DistanceOffset
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
