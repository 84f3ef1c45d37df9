package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/sydlexius/confluence/internal/provider"
)

// responseCacher is the shared read-through logic for the provider
// decorators. Cache failures degrade to a live call, never to an
// error.
type responseCacher struct {
	name   string
	store  *Store
	logger *slog.Logger
}

func newResponseCacher(name provider.ProviderName, store *Store, logger *slog.Logger) responseCacher {
	return responseCacher{
		name:  string(name),
		store: store,
		logger: logger.With(
			slog.String("component", "cache"),
			slog.String("provider", string(name)),
		),
	}
}

func (r *responseCacher) lookup(ctx context.Context, key string, out any) bool {
	body, ok, err := r.store.Get(ctx, r.name, key)
	if err != nil {
		r.logger.Warn("cache read failed",
			slog.String("key", key),
			slog.String("error", err.Error()))
		return false
	}
	if !ok {
		return false
	}
	if err := json.Unmarshal(body, out); err != nil {
		r.logger.Warn("cache entry unreadable",
			slog.String("key", key),
			slog.String("error", err.Error()))
		return false
	}
	return true
}

func (r *responseCacher) save(ctx context.Context, key string, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := r.store.Put(ctx, r.name, key, body); err != nil {
		r.logger.Warn("cache write failed",
			slog.String("key", key),
			slog.String("error", err.Error()))
	}
}

func requestKey(op, name string) string {
	return op + ":" + strings.ToLower(strings.TrimSpace(name))
}

// CachedCatalog wraps a catalog provider with read-through response
// caching. Provider errors pass through uncached.
type CachedCatalog struct {
	responseCacher
	inner provider.CatalogProvider
}

// NewCatalog wraps a catalog provider.
func NewCatalog(inner provider.CatalogProvider, store *Store, logger *slog.Logger) *CachedCatalog {
	return &CachedCatalog{
		responseCacher: newResponseCacher(inner.Name(), store, logger),
		inner:          inner,
	}
}

// Name returns the wrapped provider's name.
func (c *CachedCatalog) Name() provider.ProviderName { return c.inner.Name() }

// RequiresAuth returns the wrapped provider's auth requirement.
func (c *CachedCatalog) RequiresAuth() bool { return c.inner.RequiresAuth() }

// SearchArtist returns cached hits when fresh, otherwise queries the
// wrapped provider and caches the result.
func (c *CachedCatalog) SearchArtist(ctx context.Context, name string) ([]provider.ArtistHit, error) {
	key := requestKey("search", name)
	var hits []provider.ArtistHit
	if c.lookup(ctx, key, &hits) {
		return hits, nil
	}
	hits, err := c.inner.SearchArtist(ctx, name)
	if err != nil {
		return nil, err
	}
	c.save(ctx, key, hits)
	return hits, nil
}

// TopTracks returns cached track titles when fresh, otherwise queries
// the wrapped provider and caches the result.
func (c *CachedCatalog) TopTracks(ctx context.Context, name string) ([]string, error) {
	key := requestKey("toptracks", name)
	var tracks []string
	if c.lookup(ctx, key, &tracks) {
		return tracks, nil
	}
	tracks, err := c.inner.TopTracks(ctx, name)
	if err != nil {
		return nil, err
	}
	c.save(ctx, key, tracks)
	return tracks, nil
}

// CachedSimilarity wraps a similarity provider with read-through
// response caching.
type CachedSimilarity struct {
	responseCacher
	inner provider.SimilarityProvider
}

// NewSimilarity wraps a similarity provider.
func NewSimilarity(inner provider.SimilarityProvider, store *Store, logger *slog.Logger) *CachedSimilarity {
	return &CachedSimilarity{
		responseCacher: newResponseCacher(inner.Name(), store, logger),
		inner:          inner,
	}
}

// Name returns the wrapped provider's name.
func (c *CachedSimilarity) Name() provider.ProviderName { return c.inner.Name() }

// RequiresAuth returns the wrapped provider's auth requirement.
func (c *CachedSimilarity) RequiresAuth() bool { return c.inner.RequiresAuth() }

// SimilarArtists returns cached observations when fresh, otherwise
// queries the wrapped provider and caches the result.
func (c *CachedSimilarity) SimilarArtists(ctx context.Context, name string) ([]provider.SimilarArtist, error) {
	key := requestKey("similar", name)
	var similar []provider.SimilarArtist
	if c.lookup(ctx, key, &similar) {
		return similar, nil
	}
	similar, err := c.inner.SimilarArtists(ctx, name)
	if err != nil {
		return nil, err
	}
	c.save(ctx, key, similar)
	return similar, nil
}

// CachedRelationships wraps a relationship provider with read-through
// response caching.
type CachedRelationships struct {
	responseCacher
	inner provider.RelationshipProvider
}

// NewRelationships wraps a relationship provider.
func NewRelationships(inner provider.RelationshipProvider, store *Store, logger *slog.Logger) *CachedRelationships {
	return &CachedRelationships{
		responseCacher: newResponseCacher(inner.Name(), store, logger),
		inner:          inner,
	}
}

// Name returns the wrapped provider's name.
func (c *CachedRelationships) Name() provider.ProviderName { return c.inner.Name() }

// RequiresAuth returns the wrapped provider's auth requirement.
func (c *CachedRelationships) RequiresAuth() bool { return c.inner.RequiresAuth() }

// Relationships returns cached relationships when fresh, otherwise
// queries the wrapped provider and caches the result.
func (c *CachedRelationships) Relationships(ctx context.Context, name string) ([]provider.Relationship, error) {
	key := requestKey("relationships", name)
	var rels []provider.Relationship
	if c.lookup(ctx, key, &rels) {
		return rels, nil
	}
	rels, err := c.inner.Relationships(ctx, name)
	if err != nil {
		return nil, err
	}
	c.save(ctx, key, rels)
	return rels, nil
}
