// Package resolve maps raw artist-name strings onto canonical catalog
// entries. A query is expanded into spelling variants, each variant is
// tried against the candidate source, and surviving candidates are
// disambiguated through a verification ladder: stable-identifier match,
// shared-catalog overlap, then popularity as the last resort.
package resolve

import (
	"context"
	"errors"
	"fmt"
)

// Candidate is one catalog entry returned by the candidate source.
type Candidate struct {
	CanonicalName string
	StableID      string
	Listeners     int64
	TopTracks     []string
}

// Method describes how a resolution was decided, ordered by confidence.
type Method string

// Resolution methods.
const (
	MethodStableID       Method = "stable_id_match"
	MethodCatalogOverlap Method = "shared_catalog_overlap"
	MethodPopularity     Method = "popularity_fallback"
	MethodSingle         Method = "single_candidate"
)

// ResolvedArtist is the outcome of a successful resolution.
type ResolvedArtist struct {
	Query          string `json:"query"`
	CanonicalName  string `json:"canonical_name"`
	MatchedVariant string `json:"matched_variant"`
	Method         Method `json:"resolution_method"`
	Listeners      int64  `json:"listener_count"`
}

// CandidateSource supplies catalog entries for a name. Candidates
// returns an empty slice, not an error, when the name is unknown;
// errors are reserved for transport failure. TopTracks is consulted
// only when duplicate catalog pages need to be told apart.
type CandidateSource interface {
	Candidates(ctx context.Context, name string) ([]Candidate, error)
	TopTracks(ctx context.Context, name string) ([]string, error)
}

// NotFoundError indicates that no variant of a query produced a
// relevant candidate. The resolver never substitutes a best guess.
type NotFoundError struct {
	Query         string
	TriedVariants int
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no relevant catalog entry for %q (tried %d variants)", e.Query, e.TriedVariants)
}

// IsNotFound reports whether err is a resolution not-found failure.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}
