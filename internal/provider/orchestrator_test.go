package provider

import (
	"context"
	"log/slog"
	"os"
	"sync/atomic"
	"testing"
)

// mockSimilarity implements SimilarityProvider for testing.
type mockSimilarity struct {
	name    ProviderName
	similar []SimilarArtist
	err     error
	calls   atomic.Int64
}

func (m *mockSimilarity) Name() ProviderName { return m.name }
func (m *mockSimilarity) RequiresAuth() bool { return m.name != NameMusicBrainz }
func (m *mockSimilarity) SimilarArtists(_ context.Context, _ string) ([]SimilarArtist, error) {
	m.calls.Add(1)
	if m.err != nil {
		return nil, m.err
	}
	return m.similar, nil
}

// mockRelationship implements RelationshipProvider for testing.
type mockRelationship struct {
	name ProviderName
	rels []Relationship
	err  error
}

func (m *mockRelationship) Name() ProviderName { return m.name }
func (m *mockRelationship) RequiresAuth() bool { return m.name != NameMusicBrainz }
func (m *mockRelationship) Relationships(_ context.Context, _ string) ([]Relationship, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.rels, nil
}

func orchestratorLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// configureAll stores credentials for lastfm and spotify so every
// source counts as available.
func configureAll(t *testing.T, svc *SettingsService) {
	t.Helper()
	ctx := context.Background()
	if err := svc.SetCredential(ctx, NameLastFM, FieldAPIKey, "key"); err != nil {
		t.Fatalf("SetCredential: %v", err)
	}
	if err := svc.SetCredential(ctx, NameSpotify, FieldClientID, "id"); err != nil {
		t.Fatalf("SetCredential: %v", err)
	}
	if err := svc.SetCredential(ctx, NameSpotify, FieldClientSecret, "secret"); err != nil {
		t.Fatalf("SetCredential: %v", err)
	}
}

func TestFetchObservationsMergesAllSources(t *testing.T) {
	svc := NewSettingsService(setupTestDB(t), setupTestEncryptor(t))
	configureAll(t, svc)

	reg := NewRegistry()
	reg.Register(&mockSimilarity{name: NameLastFM, similar: []SimilarArtist{
		{Name: "Portishead", Match: 0.53},
		{Name: "Thom Yorke", Match: 1.0},
	}})
	reg.Register(&mockSimilarity{name: NameSpotify, similar: []SimilarArtist{
		{Name: "Massive Attack", Match: 0.9},
	}})
	reg.Register(&mockRelationship{name: NameMusicBrainz, rels: []Relationship{
		{TargetName: "Thom Yorke", Label: "member of band"},
	}})

	orch := NewOrchestrator(reg, svc, orchestratorLogger())
	obs, err := orch.FetchObservations(context.Background(), "Radiohead")
	if err != nil {
		t.Fatalf("FetchObservations: %v", err)
	}

	if len(obs.Similar[NameLastFM]) != 2 {
		t.Errorf("expected 2 lastfm observations, got %d", len(obs.Similar[NameLastFM]))
	}
	if len(obs.Similar[NameSpotify]) != 1 {
		t.Errorf("expected 1 spotify observation, got %d", len(obs.Similar[NameSpotify]))
	}
	if len(obs.Relationships[NameMusicBrainz]) != 1 {
		t.Errorf("expected 1 musicbrainz relationship, got %d", len(obs.Relationships[NameMusicBrainz]))
	}
	if len(obs.Errors) != 0 {
		t.Errorf("expected no errors, got %v", obs.Errors)
	}
	if obs.Empty() {
		t.Error("expected non-empty observations")
	}
}

func TestFetchObservationsSkipsUnconfigured(t *testing.T) {
	svc := NewSettingsService(setupTestDB(t), setupTestEncryptor(t))

	lastfm := &mockSimilarity{name: NameLastFM, similar: []SimilarArtist{{Name: "Portishead", Match: 0.5}}}
	reg := NewRegistry()
	reg.Register(lastfm)
	reg.Register(&mockRelationship{name: NameMusicBrainz, rels: []Relationship{
		{TargetName: "Thom Yorke", Label: "member of band"},
	}})

	orch := NewOrchestrator(reg, svc, orchestratorLogger())
	obs, err := orch.FetchObservations(context.Background(), "Radiohead")
	if err != nil {
		t.Fatalf("FetchObservations: %v", err)
	}

	if lastfm.calls.Load() != 0 {
		t.Error("expected unconfigured lastfm source to be skipped")
	}
	if _, ok := obs.Similar[NameLastFM]; ok {
		t.Error("expected no lastfm entry in result")
	}
	// MusicBrainz needs no key, so its data still arrives.
	if len(obs.Relationships[NameMusicBrainz]) != 1 {
		t.Errorf("expected 1 musicbrainz relationship, got %d", len(obs.Relationships[NameMusicBrainz]))
	}
	if len(obs.Errors) != 0 {
		t.Errorf("expected no errors for skipped sources, got %v", obs.Errors)
	}
}

func TestFetchObservationsSourceFailureDegrades(t *testing.T) {
	svc := NewSettingsService(setupTestDB(t), setupTestEncryptor(t))
	configureAll(t, svc)

	reg := NewRegistry()
	reg.Register(&mockSimilarity{name: NameLastFM, similar: []SimilarArtist{{Name: "Portishead", Match: 0.5}}})
	reg.Register(&mockSimilarity{name: NameSpotify, err: &ErrProviderUnavailable{
		Provider: NameSpotify,
		Cause:    context.DeadlineExceeded,
	}})

	orch := NewOrchestrator(reg, svc, orchestratorLogger())
	obs, err := orch.FetchObservations(context.Background(), "Radiohead")
	if err != nil {
		t.Fatalf("FetchObservations: %v", err)
	}

	if len(obs.Similar[NameLastFM]) != 1 {
		t.Errorf("expected lastfm data despite spotify failure, got %d", len(obs.Similar[NameLastFM]))
	}
	if len(obs.Errors) != 1 {
		t.Fatalf("expected 1 recorded error, got %v", obs.Errors)
	}
}

func TestFetchObservationsNotFoundIsSilent(t *testing.T) {
	svc := NewSettingsService(setupTestDB(t), setupTestEncryptor(t))
	configureAll(t, svc)

	reg := NewRegistry()
	reg.Register(&mockSimilarity{name: NameLastFM, err: &ErrNotFound{
		Provider: NameLastFM,
		Name:     "Obscure Act",
	}})

	orch := NewOrchestrator(reg, svc, orchestratorLogger())
	obs, err := orch.FetchObservations(context.Background(), "Obscure Act")
	if err != nil {
		t.Fatalf("FetchObservations: %v", err)
	}

	if len(obs.Errors) != 0 {
		t.Errorf("expected no recorded errors for a miss, got %v", obs.Errors)
	}
	if !obs.Empty() {
		t.Error("expected empty observations")
	}
}
