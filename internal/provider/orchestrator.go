package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// SourceObservations holds the raw similarity and relationship data
// gathered for one artist across all configured sources, keyed by
// provider.
type SourceObservations struct {
	Similar       map[ProviderName][]SimilarArtist
	Relationships map[ProviderName][]Relationship
	Errors        []string
}

// Empty reports whether no source returned any data.
func (o *SourceObservations) Empty() bool {
	for _, s := range o.Similar {
		if len(s) > 0 {
			return false
		}
	}
	for _, r := range o.Relationships {
		if len(r) > 0 {
			return false
		}
	}
	return true
}

// Orchestrator fans one artist query out across every configured
// similarity and relationship source. A failing source degrades the
// result instead of failing it.
type Orchestrator struct {
	registry *Registry
	settings *SettingsService
	logger   *slog.Logger
}

// NewOrchestrator creates a new Orchestrator.
func NewOrchestrator(registry *Registry, settings *SettingsService, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		registry: registry,
		settings: settings,
		logger:   logger.With(slog.String("component", "orchestrator")),
	}
}

// FetchObservations queries all configured sources concurrently and
// gathers their raw observations for the named artist. Sources without
// stored credentials are skipped.
func (o *Orchestrator) FetchObservations(ctx context.Context, name string) (*SourceObservations, error) {
	available, err := o.settings.AvailableProviderNames(ctx)
	if err != nil {
		return nil, fmt.Errorf("checking configured providers: %w", err)
	}

	result := &SourceObservations{
		Similar:       make(map[ProviderName][]SimilarArtist),
		Relationships: make(map[ProviderName][]Relationship),
	}

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)

	for _, p := range o.registry.SimilaritySources() {
		p := p
		if !available[p.Name()] {
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			similar, err := p.SimilarArtists(ctx, name)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				o.recordError(result, p.Name(), "similar", err)
				return
			}
			result.Similar[p.Name()] = similar
		}()
	}

	for _, p := range o.registry.RelationshipSources() {
		p := p
		if !available[p.Name()] {
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			rels, err := p.Relationships(ctx, name)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				o.recordError(result, p.Name(), "relationships", err)
				return
			}
			result.Relationships[p.Name()] = rels
		}()
	}

	wg.Wait()
	return result, nil
}

// recordError classifies a source failure. A source with no data for
// the artist is normal and logged at debug; anything else is surfaced
// in the result. Callers hold the result mutex.
func (o *Orchestrator) recordError(result *SourceObservations, name ProviderName, op string, err error) {
	var notFound *ErrNotFound
	if errors.As(err, &notFound) {
		o.logger.Debug("source has no data",
			slog.String("provider", string(name)),
			slog.String("op", op))
		return
	}
	o.logger.Warn("source query failed",
		slog.String("provider", string(name)),
		slog.String("op", op),
		slog.String("error", err.Error()))
	result.Errors = append(result.Errors, fmt.Sprintf("%s %s: %s", name, op, err.Error()))
}
