// Package spotify adapts the Spotify Web API as a similarity source.
// Spotify orders related artists by relevance without exposing a
// numeric score, so match values are derived from list position.
package spotify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/sydlexius/confluence/internal/provider"
)

const (
	defaultBaseURL  = "https://api.spotify.com/v1"
	defaultTokenURL = "https://accounts.spotify.com/api/token" //nolint:gosec // G101: OAuth endpoint URL, not a credential
)

// Adapter implements the similarity interface for Spotify.
type Adapter struct {
	limiter  *provider.RateLimiterMap
	settings *provider.SettingsService
	logger   *slog.Logger
	baseURL  string
	tokenURL string

	mu     sync.Mutex
	client *http.Client // token-bearing client, rebuilt when credentials change
	creds  [2]string
}

// New creates a Spotify adapter with the default endpoints.
func New(limiter *provider.RateLimiterMap, settings *provider.SettingsService, logger *slog.Logger) *Adapter {
	return NewWithBaseURL(limiter, settings, logger, defaultBaseURL, defaultTokenURL)
}

// NewWithBaseURL creates a Spotify adapter with custom API and token
// endpoints (for testing).
func NewWithBaseURL(limiter *provider.RateLimiterMap, settings *provider.SettingsService, logger *slog.Logger, baseURL, tokenURL string) *Adapter {
	return &Adapter{
		limiter:  limiter,
		settings: settings,
		logger:   logger.With(slog.String("provider", "spotify")),
		baseURL:  strings.TrimRight(baseURL, "/"),
		tokenURL: tokenURL,
	}
}

// Name returns the provider name.
func (a *Adapter) Name() provider.ProviderName { return provider.NameSpotify }

// RequiresAuth returns whether this provider needs credentials.
func (a *Adapter) RequiresAuth() bool { return true }

// SimilarArtists resolves the artist on Spotify and returns its related
// artists with position-derived match scores.
func (a *Adapter) SimilarArtists(ctx context.Context, name string) ([]provider.SimilarArtist, error) {
	id, err := a.lookupArtistID(ctx, name)
	if err != nil {
		return nil, err
	}

	body, err := a.call(ctx, a.baseURL+"/artists/"+url.PathEscape(id)+"/related-artists")
	if err != nil {
		return nil, err
	}

	var resp RelatedResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parsing related artists response: %w", err)
	}

	similar := make([]provider.SimilarArtist, 0, len(resp.Artists))
	for rank, art := range resp.Artists {
		if art.Name == "" {
			continue
		}
		similar = append(similar, provider.SimilarArtist{
			Name:  art.Name,
			Match: rankScore(rank),
		})
	}
	return similar, nil
}

// TestConnection verifies the stored client credentials by performing a
// token exchange and a minimal search.
func (a *Adapter) TestConnection(ctx context.Context) error {
	params := url.Values{
		"q":     {"test"},
		"type":  {"artist"},
		"limit": {"1"},
	}
	_, err := a.call(ctx, a.baseURL+"/search?"+params.Encode())
	return err
}

// lookupArtistID searches for the artist by name and returns the ID of
// the most relevant hit.
func (a *Adapter) lookupArtistID(ctx context.Context, name string) (string, error) {
	params := url.Values{
		"q":     {name},
		"type":  {"artist"},
		"limit": {"25"},
	}
	body, err := a.call(ctx, a.baseURL+"/search?"+params.Encode())
	if err != nil {
		return "", err
	}

	var resp SearchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("parsing search response: %w", err)
	}
	if len(resp.Artists.Items) == 0 {
		return "", &provider.ErrNotFound{Provider: provider.NameSpotify, Name: name}
	}
	return resp.Artists.Items[0].ID, nil
}

// call waits for the rate limiter and performs an authenticated GET.
func (a *Adapter) call(ctx context.Context, reqURL string) ([]byte, error) {
	client, err := a.httpClient(ctx)
	if err != nil {
		return nil, err
	}

	if err := a.limiter.Wait(ctx, provider.NameSpotify); err != nil {
		return nil, &provider.ErrProviderUnavailable{
			Provider: provider.NameSpotify,
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

	resp, err := client.Do(req)
	if err != nil {
		// A failed token exchange surfaces here through the oauth2
		// transport.
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) {
			return nil, &provider.ErrAuthRequired{Provider: provider.NameSpotify}
		}
		return nil, &provider.ErrProviderUnavailable{
			Provider: provider.NameSpotify,
			Cause:    err,
		}
	}
	defer resp.Body.Close() //nolint:errcheck

	switch {
	case resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusUnauthorized:
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &provider.ErrAuthRequired{Provider: provider.NameSpotify}
	case resp.StatusCode == http.StatusNotFound:
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &provider.ErrNotFound{Provider: provider.NameSpotify, Name: reqURL}
	case resp.StatusCode == http.StatusTooManyRequests:
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &provider.ErrProviderUnavailable{
			Provider:   provider.NameSpotify,
			Cause:      fmt.Errorf("HTTP %d", resp.StatusCode),
			RetryAfter: retryAfter(resp),
		}
	case resp.StatusCode != http.StatusOK:
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &provider.ErrProviderUnavailable{
			Provider: provider.NameSpotify,
			Cause:    fmt.Errorf("HTTP %d", resp.StatusCode),
		}
	}

	return io.ReadAll(io.LimitReader(resp.Body, 512*1024))
}

// httpClient returns a client that attaches a bearer token via the
// client-credentials flow. The client is cached across calls so tokens
// are reused until they expire, and rebuilt if the stored credentials
// change.
func (a *Adapter) httpClient(ctx context.Context) (*http.Client, error) {
	clientID, err := a.settings.GetCredential(ctx, provider.NameSpotify, provider.FieldClientID)
	if err != nil {
		return nil, fmt.Errorf("getting client id: %w", err)
	}
	clientSecret, err := a.settings.GetCredential(ctx, provider.NameSpotify, provider.FieldClientSecret)
	if err != nil {
		return nil, fmt.Errorf("getting client secret: %w", err)
	}
	if clientID == "" || clientSecret == "" {
		return nil, &provider.ErrAuthRequired{Provider: provider.NameSpotify}
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	creds := [2]string{clientID, clientSecret}
	if a.client != nil && a.creds == creds {
		return a.client, nil
	}

	conf := &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     a.tokenURL,
	}
	// The token source outlives any single request, so it gets its own
	// context carrying a timeout-bearing base client.
	tokenCtx := context.WithValue(context.Background(), oauth2.HTTPClient, &http.Client{
		Timeout: 10 * time.Second,
	})
	client := conf.Client(tokenCtx)
	client.Timeout = 10 * time.Second

	a.client = client
	a.creds = creds
	return client, nil
}

// rankScore converts a position in the related-artists list into a
// similarity score in [0.2, 0.9].
func rankScore(rank int) float64 {
	score := 0.9 - 0.03*float64(rank)
	if score < 0.2 {
		return 0.2
	}
	return score
}

func retryAfter(resp *http.Response) time.Duration {
	if v := resp.Header.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return 0
}
