// Package lastfm adapts the Last.fm web service. It serves the artist
// catalog (search, top tracks) and algorithmic similarity scores.
package lastfm

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

const defaultBaseURL = "https://ws.audioscrobbler.com/2.0"

// Error code the API uses for an unknown artist.
const errCodeInvalidParams = 6

// Adapter implements the catalog and similarity interfaces for
// Last.fm.
type Adapter struct {
	client   *http.Client
	limiter  *provider.RateLimiterMap
	settings *provider.SettingsService
	logger   *slog.Logger
	baseURL  string
}

// New creates a Last.fm adapter with the default base URL.
func New(limiter *provider.RateLimiterMap, settings *provider.SettingsService, logger *slog.Logger) *Adapter {
	return NewWithBaseURL(limiter, settings, logger, defaultBaseURL)
}

// NewWithBaseURL creates a Last.fm adapter with a custom base URL (for
// testing).
func NewWithBaseURL(limiter *provider.RateLimiterMap, settings *provider.SettingsService, logger *slog.Logger, baseURL string) *Adapter {
	return &Adapter{
		client:   &http.Client{Timeout: 10 * time.Second},
		limiter:  limiter,
		settings: settings,
		logger:   logger.With(slog.String("provider", "lastfm")),
		baseURL:  strings.TrimRight(baseURL, "/"),
	}
}

// Name returns the provider name.
func (a *Adapter) Name() provider.ProviderName { return provider.NameLastFM }

// RequiresAuth returns whether this provider needs an API key.
func (a *Adapter) RequiresAuth() bool { return true }

// SearchArtist searches Last.fm for artists matching the given name.
func (a *Adapter) SearchArtist(ctx context.Context, name string) ([]provider.ArtistHit, error) {
	body, err := a.call(ctx, url.Values{
		"method": {"artist.search"},
		"artist": {name},
		"limit":  {"25"},
	})
	if err != nil {
		return nil, err
	}

	var resp SearchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parsing search response: %w", err)
	}

	hits := make([]provider.ArtistHit, 0, len(resp.Results.ArtistMatches.Artist))
	for _, art := range resp.Results.ArtistMatches.Artist {
		listeners, _ := strconv.ParseInt(art.Listeners, 10, 64)
		hits = append(hits, provider.ArtistHit{
			ProviderID:    art.Name,
			Name:          art.Name,
			MusicBrainzID: art.MBID,
			Listeners:     listeners,
		})
	}
	return hits, nil
}

// TopTracks returns the artist's most popular track titles.
func (a *Adapter) TopTracks(ctx context.Context, name string) ([]string, error) {
	body, err := a.call(ctx, url.Values{
		"method": {"artist.gettoptracks"},
		"artist": {name},
		"limit":  {"10"},
	})
	if err != nil {
		return nil, err
	}

	var resp TopTracksResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parsing top tracks response: %w", err)
	}
	if resp.Error == errCodeInvalidParams {
		return nil, &provider.ErrNotFound{Provider: provider.NameLastFM, Name: name}
	}

	tracks := make([]string, 0, len(resp.TopTracks.Track))
	for _, tr := range resp.TopTracks.Track {
		if tr.Name != "" {
			tracks = append(tracks, tr.Name)
		}
	}
	return tracks, nil
}

// SimilarArtists returns Last.fm's similar artists with match scores.
func (a *Adapter) SimilarArtists(ctx context.Context, name string) ([]provider.SimilarArtist, error) {
	body, err := a.call(ctx, url.Values{
		"method": {"artist.getsimilar"},
		"artist": {name},
		"limit":  {"50"},
	})
	if err != nil {
		return nil, err
	}

	var resp SimilarResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parsing similar artists response: %w", err)
	}
	if resp.Error == errCodeInvalidParams {
		return nil, &provider.ErrNotFound{Provider: provider.NameLastFM, Name: name}
	}
	if resp.Error != 0 {
		return nil, &provider.ErrProviderUnavailable{
			Provider: provider.NameLastFM,
			Cause:    fmt.Errorf("API error %d: %s", resp.Error, resp.Message),
		}
	}

	similar := make([]provider.SimilarArtist, 0, len(resp.SimilarArtists.Artist))
	for _, art := range resp.SimilarArtists.Artist {
		if art.Name == "" {
			continue
		}
		match, err := strconv.ParseFloat(art.Match, 64)
		if err != nil {
			continue
		}
		similar = append(similar, provider.SimilarArtist{
			Name:          art.Name,
			MusicBrainzID: art.MBID,
			Match:         match,
		})
	}
	return similar, nil
}

// TestConnection verifies the API key is valid.
func (a *Adapter) TestConnection(ctx context.Context) error {
	_, err := a.call(ctx, url.Values{
		"method": {"artist.search"},
		"artist": {"test"},
		"limit":  {"1"},
	})
	return err
}

// call signs the request with the API key, waits for the rate limiter,
// and performs it.
func (a *Adapter) call(ctx context.Context, params url.Values) ([]byte, error) {
	apiKey, err := a.getAPIKey(ctx)
	if err != nil {
		return nil, err
	}

	if err := a.limiter.Wait(ctx, provider.NameLastFM); err != nil {
		return nil, &provider.ErrProviderUnavailable{
			Provider: provider.NameLastFM,
			Cause:    fmt.Errorf("rate limiter: %w", err),
		}
	}

	params.Set("api_key", apiKey)
	params.Set("format", "json")
	return a.doRequest(ctx, a.baseURL+"/?"+params.Encode())
}

func (a *Adapter) getAPIKey(ctx context.Context) (string, error) {
	apiKey, err := a.settings.GetAPIKey(ctx, provider.NameLastFM)
	if err != nil {
		return "", fmt.Errorf("getting API key: %w", err)
	}
	if apiKey == "" {
		return "", &provider.ErrAuthRequired{Provider: provider.NameLastFM}
	}
	return apiKey, nil
}

func (a *Adapter) doRequest(ctx context.Context, reqURL string) ([]byte, error) {
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
			Provider: provider.NameLastFM,
			Cause:    err,
		}
	}
	defer resp.Body.Close() //nolint:errcheck

	switch {
	case resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusUnauthorized:
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &provider.ErrAuthRequired{Provider: provider.NameLastFM}
	case resp.StatusCode == http.StatusTooManyRequests:
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &provider.ErrProviderUnavailable{
			Provider:   provider.NameLastFM,
			Cause:      fmt.Errorf("HTTP %d", resp.StatusCode),
			RetryAfter: retryAfter(resp),
		}
	case resp.StatusCode != http.StatusOK:
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &provider.ErrProviderUnavailable{
			Provider: provider.NameLastFM,
			Cause:    fmt.Errorf("HTTP %d", resp.StatusCode),
		}
	}

	return io.ReadAll(io.LimitReader(resp.Body, 512*1024))
}

func retryAfter(resp *http.Response) time.Duration {
	if v := resp.Header.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return 0
}
