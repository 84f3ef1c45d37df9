package fusion

import (
	"errors"
	"log/slog"
)

// Fusion method tags.
const (
	MethodFactualPrimary      = "factual_primary"
	MethodAlgorithmicWeighted = "algorithmic_weighted"
	MethodHybridBoosted       = "hybrid_boosted"
	multiSourceSuffix         = "_multi_source"
)

// Engine fuses all contributions for one artist pair into a single
// weighted edge.
type Engine struct {
	cfg    Config
	logger *slog.Logger
}

// NewEngine creates a fusion engine with the given configuration.
func NewEngine(cfg Config, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{cfg: cfg, logger: logger.With("component", "fusion")}
}

// Fuse combines the contributions for the ordered pair source->target.
// A single strong factual claim wins over averaged algorithmic noise;
// corroboration across kinds and across sources raises the result;
// disagreement lowers trust. Returns (nil, nil) when the fused
// confidence lands under the floor: that is expected control flow, not
// an error. Self-pairs must be rejected by the caller.
func (e *Engine) Fuse(sourceArtist, targetArtist string, contribs []EdgeContribution) (*WeightedEdge, error) {
	if len(contribs) == 0 {
		return nil, errors.New("fuse: no contributions")
	}

	var factual, algorithmic []EdgeContribution
	for _, c := range contribs {
		if c.IsFactual {
			factual = append(factual, c)
		} else {
			algorithmic = append(algorithmic, c)
		}
	}

	var sim float64
	var method string
	if len(factual) > 0 {
		for _, c := range factual {
			if c.Similarity > sim {
				sim = c.Similarity
			}
		}
		method = MethodFactualPrimary
	} else {
		sim = weightedAverage(algorithmic)
		method = MethodAlgorithmicWeighted
	}

	if len(factual) > 0 && len(algorithmic) > 0 {
		sim *= e.cfg.FactualBoost
		method = MethodHybridBoosted
	}

	if countSources(contribs) > 1 {
		sim += e.cfg.AgreementBonus
		method += multiSourceSuffix
	}

	dist := contribs[0].Distance
	for _, c := range contribs[1:] {
		if c.Distance < dist {
			dist = c.Distance
		}
	}

	conf := meanConfidence(contribs) - e.cfg.VariancePenalty*similarityVariance(contribs)

	sim = clamp01(sim)
	conf = clamp01(conf)
	if dist < 0.5 {
		dist = 0.5
	}

	if conf < e.cfg.ConfidenceFloor {
		e.logger.Debug("edge below confidence floor",
			slog.String("source", sourceArtist),
			slog.String("target", targetArtist),
			slog.Float64("confidence", conf),
			slog.Float64("floor", e.cfg.ConfidenceFloor),
		)
		return nil, nil
	}

	return &WeightedEdge{
		SourceArtist:  sourceArtist,
		TargetArtist:  targetArtist,
		Similarity:    sim,
		Distance:      dist,
		Confidence:    conf,
		IsFactual:     len(factual) > 0,
		Contributions: append([]EdgeContribution(nil), contribs...),
		FusionMethod:  method,
	}, nil
}

// weightedAverage averages similarities weighted by confidence,
// falling back to the plain mean when every confidence is zero.
func weightedAverage(contribs []EdgeContribution) float64 {
	var wsum, csum float64
	for _, c := range contribs {
		wsum += c.Similarity * c.Confidence
		csum += c.Confidence
	}
	if csum > 0 {
		return wsum / csum
	}
	var sum float64
	for _, c := range contribs {
		sum += c.Similarity
	}
	return sum / float64(len(contribs))
}

func meanConfidence(contribs []EdgeContribution) float64 {
	var sum float64
	for _, c := range contribs {
		sum += c.Confidence
	}
	return sum / float64(len(contribs))
}

// similarityVariance is the population variance of the contributions'
// similarities; it is zero for a single contribution.
func similarityVariance(contribs []EdgeContribution) float64 {
	if len(contribs) < 2 {
		return 0
	}
	var mean float64
	for _, c := range contribs {
		mean += c.Similarity
	}
	mean /= float64(len(contribs))

	var sum float64
	for _, c := range contribs {
		d := c.Similarity - mean
		sum += d * d
	}
	return sum / float64(len(contribs))
}

func countSources(contribs []EdgeContribution) int {
	seen := make(map[Source]bool, len(contribs))
	for _, c := range contribs {
		seen[c.Source] = true
	}
	return len(seen)
}
