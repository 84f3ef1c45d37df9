// Command confluence resolves artist names against public music
// metadata sources, fuses their similarity signals, and assembles
// weighted artist networks.
package main

import (
	"bufio"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"golang.org/x/term"

	"github.com/sydlexius/confluence/internal/cache"
	"github.com/sydlexius/confluence/internal/config"
	"github.com/sydlexius/confluence/internal/database"
	"github.com/sydlexius/confluence/internal/encryption"
	"github.com/sydlexius/confluence/internal/event"
	"github.com/sydlexius/confluence/internal/fusion"
	"github.com/sydlexius/confluence/internal/logging"
	"github.com/sydlexius/confluence/internal/network"
	"github.com/sydlexius/confluence/internal/provider"
	"github.com/sydlexius/confluence/internal/provider/lastfm"
	"github.com/sydlexius/confluence/internal/provider/musicbrainz"
	"github.com/sydlexius/confluence/internal/provider/spotify"
	"github.com/sydlexius/confluence/internal/resolve"
	"github.com/sydlexius/confluence/internal/settingsio"
	"github.com/sydlexius/confluence/internal/tables"
	"github.com/sydlexius/confluence/internal/version"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) == 0 {
		usage()
		return errors.New("a command is required")
	}

	// Offline commands need no wiring.
	switch args[0] {
	case "version":
		fmt.Printf("confluence %s (commit %s)\n", version.Version, version.Commit)
		return nil
	case "help", "-h", "--help":
		usage()
		return nil
	}

	configPath := os.Getenv("CF_CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	app, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch args[0] {
	case "build":
		return app.cmdBuild(ctx, args[1:])
	case "resolve":
		return app.cmdResolve(ctx, args[1:])
	case "similar":
		return app.cmdSimilar(ctx, args[1:])
	case "keys":
		return app.cmdKeys(ctx, args[1:])
	case "cache":
		return app.cmdCache(ctx, args[1:])
	default:
		usage()
		return fmt.Errorf("unknown command %q", args[0])
	}
}

// app wires the services shared by the online subcommands.
type app struct {
	cfg         *config.Config
	logManager  *logging.Manager
	logger      *slog.Logger
	db          *sql.DB
	bus         *event.Bus
	tables      *tables.Store
	settings    *provider.SettingsService
	adapters    *provider.Registry
	resolver    network.Resolver
	collector   *network.Collector
	normalizer  *fusion.Normalizer
	engine      *fusion.Engine
	responses   *cache.Store
	resolutions *cache.ResolutionStore
	transfer    *settingsio.Service
	stdin       *bufio.Reader
}

func newApp(cfg *config.Config) (*app, error) {
	logManager, logger := logging.NewManager(cfg.Logging)
	slog.SetDefault(logger)

	fail := func(err error) (*app, error) {
		logManager.Close()
		return nil, err
	}

	db, err := database.Open(context.Background(), cfg.Database.Path)
	if err != nil {
		return fail(fmt.Errorf("opening database: %w", err))
	}
	if err := database.Migrate(db); err != nil {
		db.Close() //nolint:errcheck
		return fail(fmt.Errorf("migrating database: %w", err))
	}

	key, err := resolveEncryptionKey(cfg, logger)
	if err != nil {
		db.Close() //nolint:errcheck
		return fail(err)
	}
	encryptor, err := encryption.NewEncryptor(key)
	if err != nil {
		db.Close() //nolint:errcheck
		return fail(fmt.Errorf("initializing encryption: %w", err))
	}
	settings := provider.NewSettingsService(db, encryptor)

	tablesStore, err := tables.NewStore(cfg.Tables.Path, logger)
	if err != nil {
		db.Close() //nolint:errcheck
		return fail(fmt.Errorf("loading curated tables: %w", err))
	}

	bus := event.NewBus(logger, 256)
	go bus.Start()
	tablesStore.SetEventBus(bus)

	limiters := provider.NewRateLimiterMap(map[provider.ProviderName]float64{
		provider.NameLastFM:      cfg.Providers.LastFM.RateLimit,
		provider.NameSpotify:     cfg.Providers.Spotify.RateLimit,
		provider.NameMusicBrainz: cfg.Providers.MusicBrainz.RateLimit,
	})

	lfm := lastfm.New(limiters, settings, logger)
	sp := spotify.New(limiters, settings, logger)
	mb := musicbrainz.New(limiters, logger)

	// Raw adapters back the credential commands; the data path goes
	// through the cache decorators registered below.
	adapters := provider.NewRegistry()
	adapters.Register(lfm)
	adapters.Register(sp)
	adapters.Register(mb)

	responses := cache.NewStore(db, time.Duration(cfg.Cache.ResponseTTLHours)*time.Hour)
	sources := provider.NewRegistry()
	if cfg.Providers.LastFM.Enabled {
		sources.Register(cache.NewSimilarity(lfm, responses, logger))
	}
	if cfg.Providers.Spotify.Enabled {
		sources.Register(cache.NewSimilarity(sp, responses, logger))
	}
	if cfg.Providers.MusicBrainz.Enabled {
		sources.Register(cache.NewRelationships(mb, responses, logger))
	}
	orchestrator := provider.NewOrchestrator(sources, settings, logger)

	fusionCfg := fusionConfig(cfg.Fusion)
	normalizer := fusion.NewNormalizer(tablesStore, fusionCfg)
	engine := fusion.NewEngine(fusionCfg, logger)

	catalog := cache.NewCatalog(lfm, responses, logger)
	base := resolve.NewResolver(network.NewCatalogSource(catalog), tablesStore, resolve.Config{
		CatalogOverlapThreshold: cfg.Resolver.CatalogOverlapThreshold,
	}, logger)
	resolutions := cache.NewResolutionStore(db, time.Duration(cfg.Cache.ResolutionTTLHours)*time.Hour)
	resolver := cache.NewResolver(base, resolutions, logger)

	collector := network.NewCollector(orchestrator, tablesStore, logger)

	return &app{
		cfg:         cfg,
		logManager:  logManager,
		logger:      logger,
		db:          db,
		bus:         bus,
		tables:      tablesStore,
		settings:    settings,
		adapters:    adapters,
		resolver:    resolver,
		collector:   collector,
		normalizer:  normalizer,
		engine:      engine,
		responses:   responses,
		resolutions: resolutions,
		transfer:    settingsio.NewService(db, settings),
		stdin:       bufio.NewReader(os.Stdin),
	}, nil
}

func (a *app) Close() {
	a.bus.Stop()
	if err := a.db.Close(); err != nil {
		a.logger.Warn("closing database", slog.Any("error", err))
	}
	a.logManager.Close()
}

// fusionConfig overlays file settings onto the fusion defaults. Zero
// values mean "not set" and keep the default.
func fusionConfig(c config.FusionConfig) fusion.Config {
	fc := fusion.DefaultConfig()
	if c.SimilarityExponent > 0 {
		fc.SimilarityExponent = c.SimilarityExponent
	}
	if c.DistanceScale > 0 {
		fc.DistanceScale = c.DistanceScale
	}
	if c.FactualBoost > 0 {
		fc.FactualBoost = c.FactualBoost
	}
	if c.AgreementBonus > 0 {
		fc.AgreementBonus = c.AgreementBonus
	}
	if c.VariancePenalty > 0 {
		fc.VariancePenalty = c.VariancePenalty
	}
	if c.ConfidenceFloor > 0 {
		fc.ConfidenceFloor = c.ConfidenceFloor
	}
	for name, weight := range c.Reliability {
		fc.Reliability[fusion.Source(name)] = weight
	}
	return fc
}

// resolveEncryptionKey finds the credential encryption key, generating
// and persisting one on first run.
func resolveEncryptionKey(cfg *config.Config, logger *slog.Logger) (string, error) {
	if cfg.Encryption.Key != "" {
		return cfg.Encryption.Key, nil
	}
	keyFile := cfg.Encryption.KeyFile
	if data, err := os.ReadFile(keyFile); err == nil { //nolint:gosec // path from local config
		if key := strings.TrimSpace(string(data)); key != "" {
			return key, nil
		}
	}
	key, err := encryption.GenerateKey()
	if err != nil {
		return "", fmt.Errorf("generating encryption key: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(keyFile), 0o750); err != nil {
		return "", fmt.Errorf("creating key directory: %w", err)
	}
	if err := os.WriteFile(keyFile, []byte(key+"\n"), 0o600); err != nil {
		return "", fmt.Errorf("writing encryption key: %w", err)
	}
	logger.Warn("generated new encryption key -- back up this file",
		slog.String("path", keyFile))
	return key, nil
}

func (a *app) cmdBuild(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("build", flag.ContinueOnError)
	out := fs.String("out", a.cfg.Build.Output, "graph output path, or - for stdout")
	maxArtists := fs.Int("max-artists", a.cfg.Build.MaxArtists, "stop adding artists once the graph reaches this size")
	maxDepth := fs.Int("max-depth", a.cfg.Build.MaxDepth, "maximum hops from a seed")
	neighbors := fs.Int("neighbors", a.cfg.Build.NeighborsPerArtist, "neighbors considered per artist")
	verbose := fs.Bool("verbose", false, "log at debug level for this build")
	if err := fs.Parse(args); err != nil {
		return err
	}
	seeds := fs.Args()
	if len(seeds) == 0 {
		return errors.New("build requires at least one seed artist")
	}

	if *verbose {
		lcfg := a.logManager.Config()
		lcfg.Level = "debug"
		a.logManager.Reconfigure(lcfg)
	}

	if a.cfg.Tables.Watch {
		go a.tables.Watch(ctx)
	}

	builder := network.NewBuilder(a.resolver, a.collector, a.normalizer, a.engine, network.Config{
		MaxArtists:         *maxArtists,
		MaxDepth:           *maxDepth,
		NeighborsPerArtist: *neighbors,
	}, a.logger)
	builder.SetRunStore(network.NewRunStore(a.db))
	builder.SetEventBus(a.bus)

	g, err := builder.Build(ctx, seeds)
	if err != nil {
		return err
	}

	if *out == "-" {
		return g.WriteJSON(os.Stdout)
	}
	f, err := os.Create(*out) //nolint:gosec // path from flag or local config
	if err != nil {
		return fmt.Errorf("creating output file: %w", err)
	}
	if err := g.WriteJSON(f); err != nil {
		f.Close() //nolint:errcheck
		return fmt.Errorf("writing graph: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing output file: %w", err)
	}
	fmt.Printf("wrote %d artists and %d edges to %s (run %s)\n",
		g.NodeCount(), g.EdgeCount(), *out, g.RunID())
	return nil
}

func (a *app) cmdResolve(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("resolve", flag.ContinueOnError)
	asJSON := fs.Bool("json", false, "print the resolution record as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	name := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if name == "" {
		return errors.New("resolve requires an artist name")
	}
	res, err := a.resolver.Resolve(ctx, name)
	if err != nil {
		return err
	}
	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	fmt.Printf("%s -> %s\n", res.Query, res.CanonicalName)
	fmt.Printf("  matched variant: %s\n", res.MatchedVariant)
	fmt.Printf("  method:          %s\n", res.Method)
	if res.Listeners > 0 {
		fmt.Printf("  listeners:       %d\n", res.Listeners)
	}
	return nil
}

func (a *app) cmdSimilar(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("similar", flag.ContinueOnError)
	asJSON := fs.Bool("json", false, "print fused edges as JSON")
	limit := fs.Int("limit", 20, "maximum neighbors to print")
	if err := fs.Parse(args); err != nil {
		return err
	}
	name := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if name == "" {
		return errors.New("similar requires an artist name")
	}

	res, err := a.resolver.Resolve(ctx, name)
	if err != nil {
		return err
	}
	neighbors, degraded, err := a.collector.Collect(ctx, res.CanonicalName)
	if err != nil {
		return err
	}
	for _, d := range degraded {
		a.logger.Warn("similarity source degraded", slog.String("detail", d))
	}

	// Fuse each neighbor's evidence as reported, without resolving the
	// neighbors themselves. This is a read-only view, not a graph build.
	edges := make([]*fusion.WeightedEdge, 0, len(neighbors))
	for _, n := range neighbors {
		contribs := make([]fusion.EdgeContribution, 0, len(n.Observations))
		for _, obs := range n.Observations {
			contribs = append(contribs, a.normalizer.Normalize(obs))
		}
		edge, err := a.engine.Fuse(res.CanonicalName, n.Name, contribs)
		if err != nil || edge == nil {
			continue
		}
		edges = append(edges, edge)
	}
	sort.SliceStable(edges, func(i, j int) bool {
		if edges[i].Similarity != edges[j].Similarity {
			return edges[i].Similarity > edges[j].Similarity
		}
		return edges[i].TargetArtist < edges[j].TargetArtist
	})
	if *limit > 0 && len(edges) > *limit {
		edges = edges[:*limit]
	}

	if *asJSON {
		out := make([]network.Edge, 0, len(edges))
		for _, e := range edges {
			out = append(out, network.ExportEdge(e))
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}
	if len(edges) == 0 {
		fmt.Printf("no similar artists found for %s\n", res.CanonicalName)
		return nil
	}
	fmt.Printf("similar to %s (* = factual link):\n", res.CanonicalName)
	for _, e := range edges {
		marker := " "
		if e.IsFactual {
			marker = "*"
		}
		fmt.Printf("%s %-32s %.3f  conf %.2f  %s\n",
			marker, e.TargetArtist, e.Similarity, e.Confidence, e.FusionMethod)
	}
	return nil
}

func (a *app) cmdKeys(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New("keys requires a subcommand: set, status, export, import")
	}
	switch args[0] {
	case "set":
		return a.keysSet(ctx, args[1:])
	case "status":
		return a.keysStatus(ctx)
	case "export":
		return a.keysExport(ctx, args[1:])
	case "import":
		return a.keysImport(ctx, args[1:])
	default:
		return fmt.Errorf("unknown keys subcommand %q", args[0])
	}
}

func (a *app) keysSet(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: keys set <provider>")
	}
	name := provider.ProviderName(strings.ToLower(args[0]))
	if a.adapters.Get(name) == nil {
		return fmt.Errorf("unknown provider %q (expected lastfm, spotify, or musicbrainz)", args[0])
	}
	fields := provider.CredentialFields(name)
	if len(fields) == 0 {
		fmt.Printf("%s does not require credentials\n", name.DisplayName())
		return nil
	}

	values := make(map[string]string, len(fields))
	for _, field := range fields {
		label := strings.ReplaceAll(field, "_", " ")
		v, err := a.promptSecret(fmt.Sprintf("%s %s: ", name.DisplayName(), label))
		if err != nil {
			return err
		}
		if v == "" {
			return fmt.Errorf("%s must not be empty", label)
		}
		values[field] = v
	}
	for _, field := range fields {
		if err := a.settings.SetCredential(ctx, name, field, values[field]); err != nil {
			return fmt.Errorf("storing credential: %w", err)
		}
	}

	// Verify against the live API so the status table reflects reality.
	testable, ok := a.adapters.Get(name).(provider.TestableProvider)
	if !ok {
		fmt.Printf("saved credentials for %s\n", name.DisplayName())
		return nil
	}
	if err := testable.TestConnection(ctx); err != nil {
		var authErr *provider.ErrAuthRequired
		if errors.As(err, &authErr) {
			if serr := a.settings.SetKeyStatus(ctx, name, "invalid"); serr != nil {
				a.logger.Warn("persisting key status", slog.Any("error", serr))
			}
			return fmt.Errorf("%s rejected the credentials", name.DisplayName())
		}
		a.logger.Warn("could not verify credentials",
			slog.String("provider", string(name)), slog.Any("error", err))
		fmt.Printf("saved credentials for %s (verification unavailable)\n", name.DisplayName())
		return nil
	}
	if err := a.settings.SetKeyStatus(ctx, name, "ok"); err != nil {
		a.logger.Warn("persisting key status", slog.Any("error", err))
	}
	fmt.Printf("saved credentials for %s (verified)\n", name.DisplayName())
	return nil
}

func (a *app) keysStatus(ctx context.Context) error {
	statuses, err := a.settings.ListKeyStatuses(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("%-14s %-13s %s\n", "PROVIDER", "STATUS", "NOTES")
	for _, s := range statuses {
		note := ""
		if s.RequiresKey && !s.HasKey && s.HelpURL != "" {
			note = "get a key at " + s.HelpURL
		}
		fmt.Printf("%-14s %-13s %s\n", s.Name, s.Status, note)
	}
	return nil
}

func (a *app) keysExport(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("keys export", flag.ContinueOnError)
	out := fs.String("out", "confluence-settings.json", "export file path")
	if err := fs.Parse(args); err != nil {
		return err
	}
	pass, err := a.promptSecret("export passphrase: ")
	if err != nil {
		return err
	}
	if pass == "" {
		return errors.New("passphrase must not be empty")
	}
	confirm, err := a.promptSecret("confirm passphrase: ")
	if err != nil {
		return err
	}
	if pass != confirm {
		return errors.New("passphrases do not match")
	}
	env, err := a.transfer.Export(ctx, pass)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(*out, append(data, '\n'), 0o600); err != nil {
		return fmt.Errorf("writing export: %w", err)
	}
	fmt.Printf("exported settings to %s\n", *out)
	return nil
}

func (a *app) keysImport(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("keys import", flag.ContinueOnError)
	in := fs.String("in", "", "export file to import")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *in == "" {
		return errors.New("keys import requires -in <file>")
	}
	data, err := os.ReadFile(*in) //nolint:gosec // path from flag
	if err != nil {
		return fmt.Errorf("reading export: %w", err)
	}
	var env settingsio.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("parsing export: %w", err)
	}
	pass, err := a.promptSecret("import passphrase: ")
	if err != nil {
		return err
	}
	result, err := a.transfer.Import(ctx, &env, pass)
	if err != nil {
		return err
	}
	fmt.Printf("imported %d settings and %d credentials\n", result.Settings, result.Credentials)
	return nil
}

func (a *app) cmdCache(ctx context.Context, args []string) error {
	if len(args) == 0 || args[0] != "purge" {
		return errors.New("usage: cache purge [-all]")
	}
	fs := flag.NewFlagSet("cache purge", flag.ContinueOnError)
	all := fs.Bool("all", false, "drop every cached entry, not just expired ones")
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}
	var responses, resolutions int64
	var err error
	if *all {
		responses, err = a.responses.PurgeAll(ctx)
	} else {
		responses, err = a.responses.PurgeExpired(ctx)
	}
	if err != nil {
		return fmt.Errorf("purging response cache: %w", err)
	}
	if *all {
		resolutions, err = a.resolutions.PurgeAll(ctx)
	} else {
		resolutions, err = a.resolutions.PurgeExpired(ctx)
	}
	if err != nil {
		return fmt.Errorf("purging resolution cache: %w", err)
	}
	fmt.Printf("purged %d cached responses and %d cached resolutions\n", responses, resolutions)
	return nil
}

// promptSecret reads a secret without echo when stdin is a terminal,
// falling back to plain line input otherwise.
func (a *app) promptSecret(label string) (string, error) {
	fmt.Fprint(os.Stderr, label)
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(b)), nil
	}
	line, err := a.stdin.ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func usage() {
	fmt.Fprint(os.Stderr, `confluence builds weighted artist similarity networks from public
music metadata sources.

Usage:
  confluence <command> [flags] [args]

Commands:
  build [flags] <seed> ...   expand a similarity graph outward from seed artists
  resolve [-json] <name>     resolve a name to its canonical catalog entry
  similar [flags] <name>     show fused similarity scores for one artist
  keys set <provider>        store and verify provider credentials
  keys status                show credential status for every provider
  keys export [-out file]    export settings to a passphrase-protected file
  keys import -in <file>     import a settings export
  cache purge [-all]         drop expired (or all) cached provider data
  version                    print version information

The config file path is read from CF_CONFIG_PATH (default config.yaml).
`)
}
