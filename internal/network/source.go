// Package network assembles a weighted artist similarity graph. A
// build run expands breadth-first from seed artists: each artist is
// resolved to its canonical catalog entry, every configured source is
// queried for similar and related artists, the raw observations are
// normalized and fused into weighted edges, and the surviving edges
// are collected into an exportable graph.
package network

import (
	"context"
	"errors"

	"github.com/sydlexius/confluence/internal/provider"
	"github.com/sydlexius/confluence/internal/resolve"
)

// CatalogSource adapts a provider catalog to the candidate source the
// resolver consumes. A name the catalog does not know yields an empty
// candidate list rather than an error.
type CatalogSource struct {
	catalog provider.CatalogProvider
}

// NewCatalogSource creates a CatalogSource backed by the given catalog
// provider.
func NewCatalogSource(catalog provider.CatalogProvider) *CatalogSource {
	return &CatalogSource{catalog: catalog}
}

// Candidates searches the catalog and maps hits to resolver candidates.
func (s *CatalogSource) Candidates(ctx context.Context, name string) ([]resolve.Candidate, error) {
	hits, err := s.catalog.SearchArtist(ctx, name)
	if err != nil {
		if isProviderNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	candidates := make([]resolve.Candidate, 0, len(hits))
	for _, h := range hits {
		candidates = append(candidates, resolve.Candidate{
			CanonicalName: h.Name,
			StableID:      h.MusicBrainzID,
			Listeners:     h.Listeners,
		})
	}
	return candidates, nil
}

// TopTracks returns the catalog's most popular track titles for the
// named artist. Unknown artists yield an empty list.
func (s *CatalogSource) TopTracks(ctx context.Context, name string) ([]string, error) {
	tracks, err := s.catalog.TopTracks(ctx, name)
	if err != nil {
		if isProviderNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return tracks, nil
}

func isProviderNotFound(err error) bool {
	var nf *provider.ErrNotFound
	return errors.As(err, &nf)
}
