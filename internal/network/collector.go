package network

import (
	"context"
	"log/slog"
	"strings"

	"github.com/sydlexius/confluence/internal/fusion"
	"github.com/sydlexius/confluence/internal/provider"
	"github.com/sydlexius/confluence/internal/tables"
)

// ObservationSource supplies the raw per-artist observations gathered
// from the configured upstream sources. *provider.Orchestrator
// satisfies it.
type ObservationSource interface {
	FetchObservations(ctx context.Context, name string) (*provider.SourceObservations, error)
}

// TableSource supplies the current curation snapshot. *tables.Store
// satisfies it.
type TableSource interface {
	Current() *tables.Snapshot
}

// Neighbor is one potential edge target together with everything the
// sources said about the pair.
type Neighbor struct {
	Name         string
	Observations []fusion.Observation
}

// Collector turns raw source observations for one artist into
// per-neighbor observation groups ready for normalization. Manual
// overrides from the curation tables are folded in alongside the
// provider data.
type Collector struct {
	sources ObservationSource
	tables  TableSource
	logger  *slog.Logger
}

// NewCollector creates a Collector.
func NewCollector(sources ObservationSource, tbl TableSource, logger *slog.Logger) *Collector {
	return &Collector{
		sources: sources,
		tables:  tbl,
		logger:  logger.With(slog.String("component", "collector")),
	}
}

// Collect gathers every observation the sources hold about the named
// artist, grouped by neighbor. Neighbors appear in a deterministic
// order: provider display order first, manual overrides last, each
// preserving its source's own ranking. The second return value lists
// degraded sources in human-readable form.
func (c *Collector) Collect(ctx context.Context, artist string) ([]Neighbor, []string, error) {
	obs, err := c.sources.FetchObservations(ctx, artist)
	if err != nil {
		return nil, nil, err
	}

	set := newNeighborSet(artist)
	for _, name := range provider.AllProviderNames() {
		src, ok := fusionSource(name)
		if !ok {
			continue
		}
		for _, s := range obs.Similar[name] {
			set.add(s.Name, fusion.AlgorithmicObservation{Source: src, Raw: s.Match})
		}
		for _, r := range obs.Relationships[name] {
			set.add(r.TargetName, fusion.CuratedObservation{Source: src, Label: r.Label})
		}
	}

	snap := c.tables.Current()
	for _, ov := range snap.Overrides {
		var other string
		switch {
		case strings.EqualFold(ov.ArtistA, artist):
			other = ov.ArtistB
		case strings.EqualFold(ov.ArtistB, artist):
			other = ov.ArtistA
		default:
			continue
		}
		set.add(other, fusion.ManualObservation{
			Label:      ov.Label,
			Similarity: ov.Similarity,
			Distance:   ov.Distance,
		})
	}

	neighbors := set.neighbors()
	c.logger.Debug("collected observations",
		slog.String("artist", artist),
		slog.Int("neighbors", len(neighbors)),
		slog.Int("degraded_sources", len(obs.Errors)))
	return neighbors, obs.Errors, nil
}

// fusionSource maps a provider name onto its fusion source identity.
func fusionSource(name provider.ProviderName) (fusion.Source, bool) {
	switch name {
	case provider.NameLastFM:
		return fusion.SourceLastFM, true
	case provider.NameSpotify:
		return fusion.SourceSpotify, true
	case provider.NameMusicBrainz:
		return fusion.SourceMusicBrainz, true
	default:
		return "", false
	}
}

// neighborSet groups observations by neighbor name, case-insensitively,
// keeping the first spelling seen and dropping self references.
type neighborSet struct {
	self  string
	order []string
	byKey map[string]*Neighbor
}

func newNeighborSet(self string) *neighborSet {
	return &neighborSet{
		self:  strings.ToLower(strings.TrimSpace(self)),
		byKey: make(map[string]*Neighbor),
	}
}

func (ns *neighborSet) add(name string, obs fusion.Observation) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" || key == ns.self {
		return
	}
	n, ok := ns.byKey[key]
	if !ok {
		n = &Neighbor{Name: strings.TrimSpace(name)}
		ns.byKey[key] = n
		ns.order = append(ns.order, key)
	}
	n.Observations = append(n.Observations, obs)
}

func (ns *neighborSet) neighbors() []Neighbor {
	out := make([]Neighbor, 0, len(ns.order))
	for _, key := range ns.order {
		out = append(out, *ns.byKey[key])
	}
	return out
}
