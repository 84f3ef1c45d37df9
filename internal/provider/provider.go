// Package provider defines the metadata source adapters and their
// shared plumbing: typed errors, per-source rate limiting, credential
// storage, and the adapter registry.
package provider

import (
	"context"
	"fmt"
	"time"
)

// ProviderName uniquely identifies a metadata provider.
type ProviderName string

// Known provider names.
const (
	NameLastFM      ProviderName = "lastfm"
	NameSpotify     ProviderName = "spotify"
	NameMusicBrainz ProviderName = "musicbrainz"
)

// AllProviderNames returns all known provider names in display order.
func AllProviderNames() []ProviderName {
	return []ProviderName{
		NameLastFM,
		NameSpotify,
		NameMusicBrainz,
	}
}

// DisplayName returns a human-readable name for the provider.
func (n ProviderName) DisplayName() string {
	switch n {
	case NameLastFM:
		return "Last.fm"
	case NameSpotify:
		return "Spotify"
	case NameMusicBrainz:
		return "MusicBrainz"
	default:
		return string(n)
	}
}

// AccessTier classifies a provider's access model.
type AccessTier string

// Access tier constants for classifying a provider's access model.
const (
	TierFree    AccessTier = "free"     // No key, no limit known
	TierFreeKey AccessTier = "free_key" // Free account/sign-up required
)

// RateLimitInfo documents the known rate limits for a provider.
type RateLimitInfo struct {
	RequestsPerSecond float64 `json:"requests_per_second,omitempty"`
	RequestsPerDay    int     `json:"requests_per_day,omitempty"` // 0 = unknown/unlimited
}

// Capability describes a provider's access model and documented rate
// limits.
type Capability struct {
	Tier      AccessTier     `json:"tier"`
	HelpURL   string         `json:"help_url,omitempty"`
	RateLimit *RateLimitInfo `json:"rate_limit,omitempty"`
}

// Capabilities returns the known capability metadata for each provider.
func Capabilities() map[ProviderName]Capability {
	return map[ProviderName]Capability{
		NameLastFM: {
			Tier:      TierFreeKey,
			HelpURL:   "https://www.last.fm/api/account/create",
			RateLimit: &RateLimitInfo{RequestsPerSecond: 5},
		},
		NameSpotify: {
			Tier:      TierFreeKey,
			HelpURL:   "https://developer.spotify.com/dashboard",
			RateLimit: &RateLimitInfo{RequestsPerSecond: 10},
		},
		NameMusicBrainz: {
			Tier:      TierFree,
			RateLimit: &RateLimitInfo{RequestsPerSecond: 1},
		},
	}
}

// ArtistHit represents a single search hit from a provider's catalog.
type ArtistHit struct {
	ProviderID    string `json:"provider_id"`
	Name          string `json:"name"`
	MusicBrainzID string `json:"musicbrainz_id,omitempty"`
	Type          string `json:"type,omitempty"`
	Country       string `json:"country,omitempty"`
	Listeners     int64  `json:"listeners,omitempty"`
	Score         int    `json:"score,omitempty"`
}

// SimilarArtist is one similarity observation from a provider.
type SimilarArtist struct {
	Name          string  `json:"name"`
	MusicBrainzID string  `json:"musicbrainz_id,omitempty"`
	Match         float64 `json:"match"` // raw score in [0,1]
}

// Relationship is one curated artist-to-artist link from a provider.
type Relationship struct {
	TargetName    string `json:"target_name"`
	TargetMBID    string `json:"target_mbid,omitempty"`
	Label         string `json:"label"`
	Begin         string `json:"begin,omitempty"`
	End           string `json:"end,omitempty"`
	Ended         bool   `json:"ended,omitempty"`
	TargetIsGroup bool   `json:"target_is_group,omitempty"`
}

// Provider is the base interface all source adapters implement.
type Provider interface {
	// Name returns the unique provider identifier.
	Name() ProviderName

	// RequiresAuth returns true if this provider needs credentials to
	// function.
	RequiresAuth() bool
}

// CatalogProvider exposes a searchable artist catalog. SearchArtist
// returns zero or more hits; TopTracks returns the artist's most
// popular track titles for catalog-overlap checks.
type CatalogProvider interface {
	Provider
	SearchArtist(ctx context.Context, name string) ([]ArtistHit, error)
	TopTracks(ctx context.Context, name string) ([]string, error)
}

// SimilarityProvider exposes algorithmic artist-to-artist similarity
// scores.
type SimilarityProvider interface {
	Provider
	SimilarArtists(ctx context.Context, name string) ([]SimilarArtist, error)
}

// RelationshipProvider exposes curated artist relationships.
type RelationshipProvider interface {
	Provider
	Relationships(ctx context.Context, name string) ([]Relationship, error)
}

// TestableProvider is an optional interface providers implement so
// stored credentials can be verified before use.
type TestableProvider interface {
	Provider
	TestConnection(ctx context.Context) error
}

// ErrProviderUnavailable indicates a transient failure (rate-limited,
// timeout, server error).
type ErrProviderUnavailable struct {
	Provider   ProviderName
	Cause      error
	RetryAfter time.Duration
}

func (e *ErrProviderUnavailable) Error() string {
	return fmt.Sprintf("provider %s unavailable: %v", e.Provider, e.Cause)
}

func (e *ErrProviderUnavailable) Unwrap() error { return e.Cause }

// ErrNotFound indicates the provider has no data for the requested
// artist.
type ErrNotFound struct {
	Provider ProviderName
	Name     string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("provider %s: artist %q not found", e.Provider, e.Name)
}

// ErrAuthRequired indicates the provider needs credentials but none are
// configured.
type ErrAuthRequired struct {
	Provider ProviderName
}

func (e *ErrAuthRequired) Error() string {
	return fmt.Sprintf("provider %s: credentials not configured", e.Provider)
}
