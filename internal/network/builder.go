package network

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sydlexius/confluence/internal/event"
	"github.com/sydlexius/confluence/internal/fusion"
	"github.com/sydlexius/confluence/internal/resolve"
)

// Config bounds a build run.
type Config struct {
	// MaxArtists caps the total number of artists in the graph.
	MaxArtists int
	// MaxDepth caps how many hops from a seed the expansion reaches.
	MaxDepth int
	// NeighborsPerArtist caps how many neighbors of one artist are
	// considered for edges.
	NeighborsPerArtist int
}

// DefaultConfig returns the default build bounds.
func DefaultConfig() Config {
	return Config{
		MaxArtists:         200,
		MaxDepth:           2,
		NeighborsPerArtist: 15,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MaxArtists <= 0 {
		c.MaxArtists = d.MaxArtists
	}
	if c.MaxDepth <= 0 {
		c.MaxDepth = d.MaxDepth
	}
	if c.NeighborsPerArtist <= 0 {
		c.NeighborsPerArtist = d.NeighborsPerArtist
	}
	return c
}

// Resolver maps a raw artist name onto its canonical catalog entry.
// *resolve.Resolver and the caching wrapper both satisfy it.
type Resolver interface {
	Resolve(ctx context.Context, query string) (*resolve.ResolvedArtist, error)
}

// Builder assembles a similarity graph breadth-first from seed
// artists. Each expanded artist is resolved, its neighbors are
// collected from every configured source, and the observations are
// fused into weighted edges. Failing sources and unresolvable
// neighbors degrade the graph instead of failing the run.
type Builder struct {
	resolver   Resolver
	collector  *Collector
	normalizer *fusion.Normalizer
	engine     *fusion.Engine
	cfg        Config
	logger     *slog.Logger
	runs       *RunStore
	bus        *event.Bus
}

// NewBuilder creates a Builder. Zero config fields fall back to the
// defaults.
func NewBuilder(resolver Resolver, collector *Collector, normalizer *fusion.Normalizer, engine *fusion.Engine, cfg Config, logger *slog.Logger) *Builder {
	return &Builder{
		resolver:   resolver,
		collector:  collector,
		normalizer: normalizer,
		engine:     engine,
		cfg:        cfg.withDefaults(),
		logger:     logger.With(slog.String("component", "builder")),
	}
}

// SetRunStore wires a store that records build runs.
func (b *Builder) SetRunStore(runs *RunStore) {
	b.runs = runs
}

// SetEventBus wires an event bus for build lifecycle notifications.
func (b *Builder) SetEventBus(bus *event.Bus) {
	b.bus = bus
}

type queueItem struct {
	name  string
	depth int
}

// Build expands the graph from the given seeds until the configured
// bounds are reached. It fails only when no seed resolves or the
// context is canceled; individual source or neighbor failures are
// logged and skipped.
func (b *Builder) Build(ctx context.Context, seeds []string) (*Graph, error) {
	if len(seeds) == 0 {
		return nil, errors.New("at least one seed artist is required")
	}

	runID := uuid.NewString()
	start := time.Now()
	g := NewGraph(runID)

	if b.runs != nil {
		if err := b.runs.Begin(ctx, runID, seeds); err != nil {
			b.logger.Warn("recording build run start",
				slog.String("run_id", runID),
				slog.String("error", err.Error()))
		}
	}
	b.publish(event.BuildStarted, map[string]any{
		"run_id": runID,
		"seeds":  seeds,
	})

	queue := make([]queueItem, 0, len(seeds))
	for _, seed := range seeds {
		res, err := b.resolver.Resolve(ctx, seed)
		if err != nil {
			b.publish(event.ResolveFailed, map[string]any{
				"query": seed,
				"error": err.Error(),
			})
			b.logger.Warn("seed did not resolve",
				slog.String("seed", seed),
				slog.String("error", err.Error()))
			continue
		}
		b.publish(event.ResolveCompleted, map[string]any{
			"query":     seed,
			"canonical": res.CanonicalName,
			"method":    string(res.Method),
		})
		if g.AddNode(res.CanonicalName, res.Listeners) {
			queue = append(queue, queueItem{name: res.CanonicalName})
		}
	}
	if g.NodeCount() == 0 {
		b.failRun(ctx, runID)
		return nil, fmt.Errorf("none of the %d seed artists could be resolved", len(seeds))
	}

	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			b.failRun(context.WithoutCancel(ctx), runID)
			return nil, err
		}
		item := queue[0]
		queue = queue[1:]
		if item.depth >= b.cfg.MaxDepth {
			continue
		}
		queue = append(queue, b.expand(ctx, g, item)...)
	}

	if b.runs != nil {
		if err := b.runs.Complete(ctx, runID, g.NodeCount(), g.EdgeCount()); err != nil {
			b.logger.Warn("recording build run finish",
				slog.String("run_id", runID),
				slog.String("error", err.Error()))
		}
	}
	b.publish(event.BuildCompleted, map[string]any{
		"run_id":  runID,
		"artists": g.NodeCount(),
		"edges":   g.EdgeCount(),
	})
	b.logger.Info("build completed",
		slog.String("run_id", runID),
		slog.Int("artists", g.NodeCount()),
		slog.Int("edges", g.EdgeCount()),
		slog.Duration("elapsed", time.Since(start)))
	return g, nil
}

// expand fuses edges from one artist to its strongest neighbors and
// returns the newly added artists for the next wave.
func (b *Builder) expand(ctx context.Context, g *Graph, item queueItem) []queueItem {
	neighbors, degraded, err := b.collector.Collect(ctx, item.name)
	if err != nil {
		b.logger.Warn("collecting observations failed",
			slog.String("artist", item.name),
			slog.String("error", err.Error()))
		return nil
	}
	for _, d := range degraded {
		b.publish(event.ProviderDegraded, map[string]any{
			"artist": item.name,
			"detail": d,
		})
	}

	ranked := rankNeighbors(neighbors)
	if len(ranked) > b.cfg.NeighborsPerArtist {
		ranked = ranked[:b.cfg.NeighborsPerArtist]
	}

	var next []queueItem
	for _, n := range ranked {
		res, err := b.resolver.Resolve(ctx, n.Name)
		if err != nil {
			if resolve.IsNotFound(err) {
				b.logger.Debug("neighbor not in catalog", slog.String("neighbor", n.Name))
			} else {
				b.logger.Warn("neighbor resolution failed",
					slog.String("neighbor", n.Name),
					slog.String("error", err.Error()))
			}
			continue
		}
		canonical := res.CanonicalName
		if strings.EqualFold(canonical, item.name) {
			continue
		}
		if g.HasEdge(item.name, canonical) {
			continue
		}

		contribs := make([]fusion.EdgeContribution, 0, len(n.Observations))
		for _, o := range n.Observations {
			contribs = append(contribs, b.normalizer.Normalize(o))
		}
		edge, err := b.engine.Fuse(item.name, canonical, contribs)
		if err != nil {
			b.logger.Warn("fusing edge failed",
				slog.String("source", item.name),
				slog.String("target", canonical),
				slog.String("error", err.Error()))
			continue
		}
		if edge == nil {
			b.publish(event.EdgeDiscarded, map[string]any{
				"source": item.name,
				"target": canonical,
			})
			continue
		}

		isNew := !g.HasNode(canonical)
		if isNew && g.NodeCount() >= b.cfg.MaxArtists {
			continue
		}
		if isNew {
			g.AddNode(canonical, res.Listeners)
			next = append(next, queueItem{name: canonical, depth: item.depth + 1})
		}
		g.AddEdge(edge)
		b.publish(event.EdgeFused, map[string]any{
			"source": item.name,
			"target": canonical,
			"weight": edge.Similarity,
			"method": edge.FusionMethod,
		})
	}
	return next
}

func (b *Builder) publish(t event.Type, data map[string]any) {
	if b.bus == nil {
		return
	}
	b.bus.Publish(event.Event{Type: t, Data: data})
}

func (b *Builder) failRun(ctx context.Context, runID string) {
	if b.runs == nil {
		return
	}
	if err := b.runs.Fail(ctx, runID); err != nil {
		b.logger.Warn("recording failed build run",
			slog.String("run_id", runID),
			slog.String("error", err.Error()))
	}
}

// rankNeighbors orders neighbors by the strength of their raw
// evidence so the per-artist cap keeps the most promising pairs.
// Manual overrides outrank curated links, which outrank any
// algorithmic score. Ties break on name for a stable order.
func rankNeighbors(neighbors []Neighbor) []Neighbor {
	out := make([]Neighbor, len(neighbors))
	copy(out, neighbors)
	sort.SliceStable(out, func(i, j int) bool {
		si, sj := rawStrength(out[i]), rawStrength(out[j])
		if si != sj {
			return si > sj
		}
		return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
	})
	return out
}

func rawStrength(n Neighbor) float64 {
	var best float64
	for _, o := range n.Observations {
		var s float64
		switch o := o.(type) {
		case fusion.ManualObservation:
			s = 3
		case fusion.CuratedObservation:
			s = 2
		case fusion.AlgorithmicObservation:
			s = o.Raw
		}
		if s > best {
			best = s
		}
	}
	return best
}
