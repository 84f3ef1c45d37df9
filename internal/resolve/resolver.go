package resolve

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sydlexius/confluence/internal/tables"
)

// Config holds resolver tuning.
type Config struct {
	// CatalogOverlapThreshold is the minimum Jaccard overlap between
	// two candidates' top-track sets before they are treated as
	// duplicate pages of the same artist.
	CatalogOverlapThreshold float64
}

// DefaultConfig returns the default resolver configuration.
func DefaultConfig() Config {
	return Config{CatalogOverlapThreshold: 0.3}
}

// TableSource supplies the current curated table snapshot.
type TableSource interface {
	Current() *tables.Snapshot
}

// Resolver picks one canonical catalog entry for an artist name.
type Resolver struct {
	source CandidateSource
	tables TableSource
	cfg    Config
	logger *slog.Logger
}

// NewResolver creates a resolver over the given candidate source and
// tables.
func NewResolver(source CandidateSource, tbl TableSource, cfg Config, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		source: source,
		tables: tbl,
		cfg:    cfg,
		logger: logger.With("component", "resolver"),
	}
}

// Resolve tries each variant of the query in order until one yields
// candidates that survive the relevance filter, then disambiguates.
// Failure is explicit: a *NotFoundError when no variant produces a
// relevant candidate. Lookup transport errors propagate unchanged in
// meaning; resolution is never retried with altered semantics.
func (r *Resolver) Resolve(ctx context.Context, query string) (*ResolvedArtist, error) {
	snap := r.tables.Current()
	variants := Variants(snap, query)

	for _, v := range variants {
		cands, err := r.source.Candidates(ctx, v)
		if err != nil {
			return nil, fmt.Errorf("candidate lookup for %q: %w", v, err)
		}

		var relevant []Candidate
		for _, c := range cands {
			if Relevant(snap, query, c.CanonicalName) {
				relevant = append(relevant, c)
			}
		}
		if len(relevant) == 0 {
			continue
		}

		r.logger.Debug("variant matched",
			slog.String("query", query),
			slog.String("variant", v),
			slog.Int("relevant", len(relevant)),
		)
		res, err := r.disambiguate(ctx, query, v, relevant)
		if err != nil {
			return nil, err
		}
		r.logger.Debug("resolved",
			slog.String("query", query),
			slog.String("canonical", res.CanonicalName),
			slog.String("method", string(res.Method)),
		)
		return res, nil
	}

	return nil, &NotFoundError{Query: query, TriedVariants: len(variants)}
}

// disambiguate applies the verification ladder to the relevant
// candidates of one variant. Popularity is deliberately the last
// resort: a correct but low-traffic page must not lose to an unrelated
// popular one when a higher-precision signal is available.
func (r *Resolver) disambiguate(ctx context.Context, query, variant string, cands []Candidate) (*ResolvedArtist, error) {
	if len(cands) == 1 {
		return newResolved(query, variant, cands[0], MethodSingle), nil
	}

	if c, ok := collapseByStableID(cands); ok {
		return newResolved(query, variant, c, MethodStableID), nil
	}

	if c, ok := r.collapseByCatalog(ctx, cands); ok {
		return newResolved(query, variant, c, MethodCatalogOverlap), nil
	}

	return newResolved(query, variant, mostPopular(cands), MethodPopularity), nil
}

func newResolved(query, variant string, c Candidate, m Method) *ResolvedArtist {
	return &ResolvedArtist{
		Query:          query,
		CanonicalName:  c.CanonicalName,
		MatchedVariant: variant,
		Method:         m,
		Listeners:      c.Listeners,
	}
}

// collapseByStableID collapses the first pair of candidates sharing a
// stable identifier, keeping the more popular entry.
func collapseByStableID(cands []Candidate) (Candidate, bool) {
	firstByID := make(map[string]int)
	for i, c := range cands {
		if c.StableID == "" {
			continue
		}
		j, dup := firstByID[c.StableID]
		if !dup {
			firstByID[c.StableID] = i
			continue
		}
		best := cands[j]
		if c.Listeners > best.Listeners {
			best = c
		}
		return best, true
	}
	return Candidate{}, false
}

// collapseByCatalog treats two candidates as the same artist when
// their top-track sets overlap above the threshold, keeping the more
// popular entry. Top tracks are fetched lazily and at most once per
// candidate; a failed fetch only disables this rung of the ladder.
func (r *Resolver) collapseByCatalog(ctx context.Context, cands []Candidate) (Candidate, bool) {
	tracks := make([][]string, len(cands))
	fetched := make([]bool, len(cands))
	get := func(i int) []string {
		if fetched[i] {
			return tracks[i]
		}
		fetched[i] = true
		if len(cands[i].TopTracks) > 0 {
			tracks[i] = cands[i].TopTracks
			return tracks[i]
		}
		ts, err := r.source.TopTracks(ctx, cands[i].CanonicalName)
		if err != nil {
			r.logger.Warn("top tracks unavailable",
				slog.String("artist", cands[i].CanonicalName), "error", err)
			return nil
		}
		tracks[i] = ts
		return ts
	}

	for i := 0; i < len(cands); i++ {
		for j := i + 1; j < len(cands); j++ {
			if trackOverlap(get(i), get(j)) > r.cfg.CatalogOverlapThreshold {
				best := cands[i]
				if cands[j].Listeners > best.Listeners {
					best = cands[j]
				}
				return best, true
			}
		}
	}
	return Candidate{}, false
}

func mostPopular(cands []Candidate) Candidate {
	best := cands[0]
	for _, c := range cands[1:] {
		if c.Listeners > best.Listeners {
			best = c
		}
	}
	return best
}

// trackOverlap computes the Jaccard overlap of two track lists on
// case-folded titles. Either list being empty yields zero.
func trackOverlap(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	as := make(map[string]bool, len(a))
	for _, t := range a {
		as[normalizeTrack(t)] = true
	}
	bs := make(map[string]bool, len(b))
	for _, t := range b {
		bs[normalizeTrack(t)] = true
	}
	inter := 0
	for t := range as {
		if bs[t] {
			inter++
		}
	}
	union := len(as) + len(bs) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

func normalizeTrack(t string) string {
	return strings.ToLower(strings.TrimSpace(t))
}
