// Package cache persists provider responses and resolution outcomes in
// the local database so repeated builds stay off the upstream services.
package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Store reads and writes the raw provider response cache.
type Store struct {
	db  *sql.DB
	ttl time.Duration
}

// NewStore creates a response cache store with the given entry
// lifetime.
func NewStore(db *sql.DB, ttl time.Duration) *Store {
	return &Store{db: db, ttl: ttl}
}

// Get returns the cached body for a provider request key, or ok=false
// when absent or expired.
func (s *Store) Get(ctx context.Context, providerName, key string) ([]byte, bool, error) {
	var (
		body      []byte
		expiresAt string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT body, expires_at FROM response_cache WHERE cache_key = ?`,
		cacheKey(providerName, key),
	).Scan(&body, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("reading cached response: %w", err)
	}
	expiry, err := time.Parse(time.RFC3339, expiresAt)
	if err != nil || time.Now().UTC().After(expiry) {
		return nil, false, nil
	}
	return body, true, nil
}

// Put stores the body for a provider request key, replacing any
// previous entry.
func (s *Store) Put(ctx context.Context, providerName, key string, body []byte) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO response_cache (cache_key, provider, body, fetched_at, expires_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(cache_key) DO UPDATE SET
			body = excluded.body,
			fetched_at = excluded.fetched_at,
			expires_at = excluded.expires_at
	`, cacheKey(providerName, key), providerName, body,
		now.Format(time.RFC3339), now.Add(s.ttl).Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("writing cached response: %w", err)
	}
	return nil
}

// PurgeExpired removes entries past their expiry and returns the count
// removed.
func (s *Store) PurgeExpired(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM response_cache WHERE expires_at < ?`,
		time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return 0, fmt.Errorf("purging expired responses: %w", err)
	}
	return res.RowsAffected()
}

// PurgeAll removes every cached response and returns the count
// removed.
func (s *Store) PurgeAll(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM response_cache`)
	if err != nil {
		return 0, fmt.Errorf("purging responses: %w", err)
	}
	return res.RowsAffected()
}

func cacheKey(providerName, key string) string {
	return providerName + ":" + key
}
