// Package musicbrainz adapts the MusicBrainz web service. It serves
// curated artist-to-artist relationships (band membership,
// collaborations, tributes) keyed by relationship type.
package musicbrainz

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sydlexius/confluence/internal/provider"
)

const defaultBaseURL = "https://musicbrainz.org/ws/2"

// Adapter implements the relationship interface for MusicBrainz.
type Adapter struct {
	client  *http.Client
	limiter *provider.RateLimiterMap
	logger  *slog.Logger
	baseURL string
}

// New creates a MusicBrainz adapter with the default base URL.
func New(limiter *provider.RateLimiterMap, logger *slog.Logger) *Adapter {
	return NewWithBaseURL(limiter, logger, defaultBaseURL)
}

// NewWithBaseURL creates a MusicBrainz adapter with a custom base URL
// (for testing).
func NewWithBaseURL(limiter *provider.RateLimiterMap, logger *slog.Logger, baseURL string) *Adapter {
	return &Adapter{
		client:  &http.Client{Timeout: 10 * time.Second},
		limiter: limiter,
		logger:  logger.With(slog.String("provider", "musicbrainz")),
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// Name returns the provider name.
func (a *Adapter) Name() provider.ProviderName { return provider.NameMusicBrainz }

// RequiresAuth returns whether this provider needs an API key.
// MusicBrainz only asks for a meaningful User-Agent.
func (a *Adapter) RequiresAuth() bool { return false }

// Relationships resolves the artist on MusicBrainz and returns its
// artist-to-artist relationships.
func (a *Adapter) Relationships(ctx context.Context, name string) ([]provider.Relationship, error) {
	mbid, err := a.lookupMBID(ctx, name)
	if err != nil {
		return nil, err
	}

	params := url.Values{
		"inc": {"artist-rels"},
		"fmt": {"json"},
	}
	body, err := a.doRequest(ctx, a.baseURL+"/artist/"+url.PathEscape(mbid)+"?"+params.Encode())
	if err != nil {
		return nil, err
	}

	var artist MBArtist
	if err := json.Unmarshal(body, &artist); err != nil {
		return nil, fmt.Errorf("parsing artist response: %w", err)
	}

	rels := make([]provider.Relationship, 0, len(artist.Relations))
	for _, rel := range artist.Relations {
		if rel.Artist == nil || rel.Artist.Name == "" {
			continue
		}
		rels = append(rels, provider.Relationship{
			TargetName:    rel.Artist.Name,
			TargetMBID:    rel.Artist.ID,
			Label:         strings.ToLower(rel.Type),
			Begin:         rel.Begin,
			End:           rel.End,
			Ended:         rel.Ended,
			TargetIsGroup: rel.Artist.Type == "Group",
		})
	}

	a.logger.Debug("relationships fetched",
		slog.String("artist", name),
		slog.String("mbid", mbid),
		slog.Int("count", len(rels)))

	return rels, nil
}

// TestConnection verifies connectivity to the MusicBrainz API.
func (a *Adapter) TestConnection(ctx context.Context) error {
	params := url.Values{
		"query": {"test"},
		"fmt":   {"json"},
		"limit": {"1"},
	}
	_, err := a.doRequest(ctx, a.baseURL+"/artist?"+params.Encode())
	return err
}

// lookupMBID searches for the artist by name and returns the MBID of
// the best-scoring hit.
func (a *Adapter) lookupMBID(ctx context.Context, name string) (string, error) {
	params := url.Values{
		"query": {name},
		"fmt":   {"json"},
		"limit": {"5"},
	}
	body, err := a.doRequest(ctx, a.baseURL+"/artist?"+params.Encode())
	if err != nil {
		return "", err
	}

	var resp SearchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("parsing search response: %w", err)
	}
	if len(resp.Artists) == 0 {
		return "", &provider.ErrNotFound{Provider: provider.NameMusicBrainz, Name: name}
	}
	// Search results arrive sorted by score.
	return resp.Artists[0].ID, nil
}

// doRequest executes an HTTP GET with rate limiting and standard
// headers.
func (a *Adapter) doRequest(ctx context.Context, reqURL string) ([]byte, error) {
	if err := a.limiter.Wait(ctx, provider.NameMusicBrainz); err != nil {
		return nil, &provider.ErrProviderUnavailable{
			Provider: provider.NameMusicBrainz,
			Cause:    fmt.Errorf("rate limiter: %w", err),
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", provider.UserAgent())
	req.Header.Set("Accept", "application/json")

	a.logger.Debug("requesting", slog.String("url", reqURL))

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, &provider.ErrProviderUnavailable{
			Provider: provider.NameMusicBrainz,
			Cause:    err,
		}
	}
	defer resp.Body.Close() //nolint:errcheck

	switch {
	case resp.StatusCode == http.StatusNotFound:
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &provider.ErrNotFound{Provider: provider.NameMusicBrainz, Name: reqURL}
	case resp.StatusCode == http.StatusServiceUnavailable || resp.StatusCode == http.StatusTooManyRequests:
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &provider.ErrProviderUnavailable{
			Provider:   provider.NameMusicBrainz,
			Cause:      fmt.Errorf("HTTP %d", resp.StatusCode),
			RetryAfter: retryAfter(resp),
		}
	case resp.StatusCode != http.StatusOK:
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &provider.ErrProviderUnavailable{
			Provider: provider.NameMusicBrainz,
			Cause:    fmt.Errorf("unexpected HTTP %d", resp.StatusCode),
		}
	}

	return io.ReadAll(io.LimitReader(resp.Body, 512*1024))
}

// retryAfter reads the server's Retry-After header, falling back to
// the 2 seconds MusicBrainz suggests for throttled clients.
func retryAfter(resp *http.Response) time.Duration {
	if v := resp.Header.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return 2 * time.Second
}
