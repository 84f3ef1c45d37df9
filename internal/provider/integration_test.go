//go:build integration

package provider_test

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/sydlexius/confluence/internal/encryption"
	"github.com/sydlexius/confluence/internal/provider"
	"github.com/sydlexius/confluence/internal/provider/lastfm"
	"github.com/sydlexius/confluence/internal/provider/musicbrainz"
	"github.com/sydlexius/confluence/internal/provider/spotify"

	_ "modernc.org/sqlite"
)

const (
	radioheadName = "Radiohead"
	beatlesName   = "The Beatles"

	// testTimeout bounds each integration test so network stalls surface quickly.
	testTimeout = 30 * time.Second
)

// setupIntegrationSettings creates an in-memory settings service with
// credentials read from environment variables.
func setupIntegrationSettings(t *testing.T) *provider.SettingsService {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	_, err = db.ExecContext(context.Background(),
		`CREATE TABLE IF NOT EXISTS settings (key TEXT PRIMARY KEY, value TEXT NOT NULL, updated_at TEXT NOT NULL DEFAULT (datetime('now')))`)
	if err != nil {
		t.Fatalf("creating settings table: %v", err)
	}

	key, err := encryption.GenerateKey()
	if err != nil {
		t.Fatalf("generating key: %v", err)
	}
	enc, err := encryption.NewEncryptor(key)
	if err != nil {
		t.Fatalf("creating encryptor: %v", err)
	}
	svc := provider.NewSettingsService(db, enc)

	store := func(name provider.ProviderName, field, envVar string) {
		value := os.Getenv(envVar)
		if value == "" {
			return
		}
		if err := svc.SetCredential(context.Background(), name, field, value); err != nil {
			t.Fatalf("storing %s %s: %v", name, field, err)
		}
	}

	store(provider.NameLastFM, provider.FieldAPIKey, "LASTFM_API_KEY")
	store(provider.NameSpotify, provider.FieldClientID, "SPOTIFY_CLIENT_ID")
	store(provider.NameSpotify, provider.FieldClientSecret, "SPOTIFY_CLIENT_SECRET")

	return svc
}

func newLimiter() *provider.RateLimiterMap {
	return provider.NewRateLimiterMap(nil)
}

func silentLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	t.Cleanup(cancel)
	return ctx
}

func TestIntegration_MusicBrainz_Beatles(t *testing.T) {
	mb := musicbrainz.New(newLimiter(), silentLogger())

	rels, err := mb.Relationships(testCtx(t), beatlesName)
	if err != nil {
		t.Fatalf("Relationships: %v", err)
	}
	if len(rels) == 0 {
		t.Fatal("expected at least one relationship")
	}

	var hasMember bool
	for _, rel := range rels {
		if rel.Label == "member of band" {
			hasMember = true
			break
		}
	}
	if !hasMember {
		t.Error("expected a member of band relationship")
	}
}

func TestIntegration_LastFM_Radiohead(t *testing.T) {
	settings := setupIntegrationSettings(t)
	has, err := settings.HasCredentials(context.Background(), provider.NameLastFM)
	if err != nil {
		t.Fatalf("checking key: %v", err)
	}
	if !has {
		t.Skip("LASTFM_API_KEY not set")
	}

	lfm := lastfm.New(newLimiter(), settings, silentLogger())
	ctx := testCtx(t)

	hits, err := lfm.SearchArtist(ctx, radioheadName)
	if err != nil {
		t.Fatalf("SearchArtist: %v", err)
	}
	if len(hits) == 0 {
		t.Fatal("expected at least one search hit")
	}
	if hits[0].Listeners == 0 {
		t.Error("expected a listener count on the top hit")
	}

	similar, err := lfm.SimilarArtists(ctx, radioheadName)
	if err != nil {
		t.Fatalf("SimilarArtists: %v", err)
	}
	if len(similar) == 0 {
		t.Fatal("expected at least one similar artist")
	}
	for _, s := range similar {
		if s.Match < 0 || s.Match > 1 {
			t.Errorf("match %f for %s outside [0,1]", s.Match, s.Name)
		}
	}
}

func TestIntegration_Spotify_Radiohead(t *testing.T) {
	settings := setupIntegrationSettings(t)
	has, err := settings.HasCredentials(context.Background(), provider.NameSpotify)
	if err != nil {
		t.Fatalf("checking credentials: %v", err)
	}
	if !has {
		t.Skip("SPOTIFY_CLIENT_ID / SPOTIFY_CLIENT_SECRET not set")
	}

	sp := spotify.New(newLimiter(), settings, silentLogger())
	similar, err := sp.SimilarArtists(testCtx(t), radioheadName)
	if err != nil {
		t.Fatalf("SimilarArtists: %v", err)
	}
	if len(similar) == 0 {
		t.Fatal("expected at least one related artist")
	}
	for _, s := range similar {
		if s.Match < 0.2 || s.Match > 0.9 {
			t.Errorf("rank score %f for %s outside [0.2,0.9]", s.Match, s.Name)
		}
	}
}

func TestIntegration_Orchestrator_Radiohead(t *testing.T) {
	settings := setupIntegrationSettings(t)
	limiter := newLimiter()
	logger := silentLogger()

	registry := provider.NewRegistry()
	registry.Register(musicbrainz.New(limiter, logger))
	registry.Register(lastfm.New(limiter, settings, logger))
	registry.Register(spotify.New(limiter, settings, logger))

	orch := provider.NewOrchestrator(registry, settings, logger)
	obs, err := orch.FetchObservations(testCtx(t), radioheadName)
	if err != nil {
		t.Fatalf("FetchObservations: %v", err)
	}

	// MusicBrainz needs no key, so even an unconfigured run yields data.
	if obs.Empty() {
		t.Error("expected at least one source to return observations")
	}
	if len(obs.Errors) != 0 {
		t.Errorf("expected no source errors, got %v", obs.Errors)
	}
}
