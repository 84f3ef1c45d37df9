package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sydlexius/confluence/internal/resolve"
)

// ResolutionStore persists resolution outcomes, including misses, so
// unknown names are not re-resolved on every run.
type ResolutionStore struct {
	db  *sql.DB
	ttl time.Duration
}

// NewResolutionStore creates a resolution cache store with the given
// entry lifetime.
func NewResolutionStore(db *sql.DB, ttl time.Duration) *ResolutionStore {
	return &ResolutionStore{db: db, ttl: ttl}
}

// cachedResolution is one stored outcome: either a resolved artist or
// an explicit miss.
type cachedResolution struct {
	resolved *resolve.ResolvedArtist
	notFound *resolve.NotFoundError
}

func (s *ResolutionStore) get(ctx context.Context, query string) (cachedResolution, bool, error) {
	var (
		canonical, variant, method, expiresAt string
		listeners                             int64
		notFound, tried                       int
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT canonical_name, matched_variant, method, listeners, not_found, tried_variants, expires_at
		FROM resolution_cache WHERE query = ?
	`, resolutionKey(query)).Scan(&canonical, &variant, &method, &listeners, &notFound, &tried, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return cachedResolution{}, false, nil
	}
	if err != nil {
		return cachedResolution{}, false, fmt.Errorf("reading cached resolution: %w", err)
	}
	expiry, perr := time.Parse(time.RFC3339, expiresAt)
	if perr != nil || time.Now().UTC().After(expiry) {
		return cachedResolution{}, false, nil
	}
	if notFound != 0 {
		return cachedResolution{notFound: &resolve.NotFoundError{Query: query, TriedVariants: tried}}, true, nil
	}
	return cachedResolution{resolved: &resolve.ResolvedArtist{
		Query:          query,
		CanonicalName:  canonical,
		MatchedVariant: variant,
		Method:         resolve.Method(method),
		Listeners:      listeners,
	}}, true, nil
}

func (s *ResolutionStore) putHit(ctx context.Context, res *resolve.ResolvedArtist) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO resolution_cache (query, canonical_name, matched_variant, method, listeners, not_found, tried_variants, resolved_at, expires_at)
		VALUES (?, ?, ?, ?, ?, 0, 0, ?, ?)
		ON CONFLICT(query) DO UPDATE SET
			canonical_name = excluded.canonical_name,
			matched_variant = excluded.matched_variant,
			method = excluded.method,
			listeners = excluded.listeners,
			not_found = 0,
			tried_variants = 0,
			resolved_at = excluded.resolved_at,
			expires_at = excluded.expires_at
	`, resolutionKey(res.Query), res.CanonicalName, res.MatchedVariant, string(res.Method),
		res.Listeners, now.Format(time.RFC3339), now.Add(s.ttl).Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("writing cached resolution: %w", err)
	}
	return nil
}

func (s *ResolutionStore) putMiss(ctx context.Context, query string, triedVariants int) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO resolution_cache (query, canonical_name, matched_variant, method, listeners, not_found, tried_variants, resolved_at, expires_at)
		VALUES (?, '', '', '', 0, 1, ?, ?, ?)
		ON CONFLICT(query) DO UPDATE SET
			canonical_name = '',
			matched_variant = '',
			method = '',
			listeners = 0,
			not_found = 1,
			tried_variants = excluded.tried_variants,
			resolved_at = excluded.resolved_at,
			expires_at = excluded.expires_at
	`, resolutionKey(query), triedVariants,
		now.Format(time.RFC3339), now.Add(s.ttl).Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("writing cached miss: %w", err)
	}
	return nil
}

// PurgeExpired removes entries past their expiry and returns the count
// removed.
func (s *ResolutionStore) PurgeExpired(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM resolution_cache WHERE expires_at < ?`,
		time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return 0, fmt.Errorf("purging expired resolutions: %w", err)
	}
	return res.RowsAffected()
}

// PurgeAll removes every cached resolution and returns the count
// removed.
func (s *ResolutionStore) PurgeAll(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM resolution_cache`)
	if err != nil {
		return 0, fmt.Errorf("purging resolutions: %w", err)
	}
	return res.RowsAffected()
}

func resolutionKey(query string) string {
	return strings.ToLower(strings.TrimSpace(query))
}

// ArtistResolver resolves one artist name to a canonical catalog
// entry. *resolve.Resolver satisfies it.
type ArtistResolver interface {
	Resolve(ctx context.Context, query string) (*resolve.ResolvedArtist, error)
}

// CachedResolver wraps a resolver with outcome caching. Successful
// resolutions and explicit misses are cached; transport failures are
// not.
type CachedResolver struct {
	inner  ArtistResolver
	store  *ResolutionStore
	logger *slog.Logger
}

// NewResolver wraps a resolver.
func NewResolver(inner ArtistResolver, store *ResolutionStore, logger *slog.Logger) *CachedResolver {
	return &CachedResolver{
		inner:  inner,
		store:  store,
		logger: logger.With(slog.String("component", "resolution_cache")),
	}
}

// Resolve returns the cached outcome for the query when fresh,
// otherwise resolves through the wrapped resolver and caches the
// outcome.
func (r *CachedResolver) Resolve(ctx context.Context, query string) (*resolve.ResolvedArtist, error) {
	cached, ok, err := r.store.get(ctx, query)
	if err != nil {
		r.logger.Warn("resolution cache read failed",
			slog.String("query", query),
			slog.String("error", err.Error()))
	} else if ok {
		if cached.notFound != nil {
			return nil, cached.notFound
		}
		return cached.resolved, nil
	}

	res, err := r.inner.Resolve(ctx, query)
	var nf *resolve.NotFoundError
	switch {
	case err == nil:
		if serr := r.store.putHit(ctx, res); serr != nil {
			r.logger.Warn("resolution cache write failed",
				slog.String("query", query),
				slog.String("error", serr.Error()))
		}
		return res, nil
	case errors.As(err, &nf):
		if serr := r.store.putMiss(ctx, query, nf.TriedVariants); serr != nil {
			r.logger.Warn("resolution cache write failed",
				slog.String("query", query),
				slog.String("error", serr.Error()))
		}
		return nil, err
	default:
		return nil, err
	}
}
