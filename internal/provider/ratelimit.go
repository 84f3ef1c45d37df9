package provider

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// Default rate limits per provider (requests per second). MusicBrainz
// enforces its 1 rps limit server-side; staying under it avoids 503s.
var defaultRateLimits = map[ProviderName]rate.Limit{
	NameLastFM:      5,
	NameSpotify:     10,
	NameMusicBrainz: 1,
}

// RateLimiterMap holds one rate.Limiter per provider, created once at
// startup.
type RateLimiterMap struct {
	mu       sync.RWMutex
	limiters map[ProviderName]*rate.Limiter
}

// NewRateLimiterMap creates all provider rate limiters. Entries in
// overrides replace the default requests-per-second value; a nil map
// keeps the defaults.
func NewRateLimiterMap(overrides map[ProviderName]float64) *RateLimiterMap {
	m := &RateLimiterMap{
		limiters: make(map[ProviderName]*rate.Limiter, len(defaultRateLimits)),
	}
	for name, limit := range defaultRateLimits {
		if o, ok := overrides[name]; ok && o > 0 {
			limit = rate.Limit(o)
		}
		m.limiters[name] = rate.NewLimiter(limit, 1)
	}
	return m
}

// Wait blocks until the rate limiter for the given provider allows a
// request, or the context is canceled.
func (m *RateLimiterMap) Wait(ctx context.Context, name ProviderName) error {
	m.mu.RLock()
	limiter, ok := m.limiters[name]
	m.mu.RUnlock()
	if !ok {
		return nil
	}
	return limiter.Wait(ctx)
}
