// Package config loads the application configuration from an optional
// YAML file with environment overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/sydlexius/confluence/internal/logging"
)

// Config holds all application configuration.
type Config struct {
	DataDir    string           `yaml:"data_dir"`
	Database   DatabaseConfig   `yaml:"database"`
	Encryption EncryptionConfig `yaml:"encryption"`
	Logging    logging.Config   `yaml:"logging"`
	Providers  ProvidersConfig  `yaml:"providers"`
	Cache      CacheConfig      `yaml:"cache"`
	Tables     TablesConfig     `yaml:"tables"`
	Resolver   ResolverConfig   `yaml:"resolver"`
	Fusion     FusionConfig     `yaml:"fusion"`
	Build      BuildConfig      `yaml:"build"`
}

// DatabaseConfig holds SQLite settings.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// EncryptionConfig holds encryption key settings. A literal key takes
// precedence over the key file.
type EncryptionConfig struct {
	Key     string `yaml:"key"`
	KeyFile string `yaml:"key_file"`
}

// ProvidersConfig holds per-provider settings.
type ProvidersConfig struct {
	LastFM      ProviderConfig `yaml:"lastfm"`
	Spotify     ProviderConfig `yaml:"spotify"`
	MusicBrainz ProviderConfig `yaml:"musicbrainz"`
}

// ProviderConfig holds settings for a single provider.
type ProviderConfig struct {
	Enabled   bool    `yaml:"enabled"`
	RateLimit float64 `yaml:"rate_limit"` // requests per second
}

// CacheConfig holds provider cache lifetimes.
type CacheConfig struct {
	ResponseTTLHours   int `yaml:"response_ttl_hours"`
	ResolutionTTLHours int `yaml:"resolution_ttl_hours"`
}

// TablesConfig points at the curated table overlay.
type TablesConfig struct {
	Path  string `yaml:"path"`
	Watch bool   `yaml:"watch"`
}

// ResolverConfig holds resolver tuning.
type ResolverConfig struct {
	CatalogOverlapThreshold float64 `yaml:"catalog_overlap_threshold"`
}

// FusionConfig holds fusion engine tuning. Reliability maps a source
// name to its trust weight.
type FusionConfig struct {
	SimilarityExponent float64            `yaml:"similarity_exponent"`
	DistanceScale      float64            `yaml:"distance_scale"`
	FactualBoost       float64            `yaml:"factual_boost"`
	AgreementBonus     float64            `yaml:"agreement_bonus"`
	VariancePenalty    float64            `yaml:"variance_penalty"`
	ConfidenceFloor    float64            `yaml:"confidence_floor"`
	Reliability        map[string]float64 `yaml:"reliability"`
}

// BuildConfig bounds a network build run.
type BuildConfig struct {
	MaxArtists         int    `yaml:"max_artists"`
	MaxDepth           int    `yaml:"max_depth"`
	NeighborsPerArtist int    `yaml:"neighbors_per_artist"`
	Output             string `yaml:"output"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		DataDir: "data",
		Logging: logging.DefaultConfig(),
		Providers: ProvidersConfig{
			LastFM:      ProviderConfig{Enabled: true, RateLimit: 5},
			Spotify:     ProviderConfig{Enabled: true, RateLimit: 10},
			MusicBrainz: ProviderConfig{Enabled: true, RateLimit: 1},
		},
		Cache: CacheConfig{
			ResponseTTLHours:   24,
			ResolutionTTLHours: 168,
		},
		Resolver: ResolverConfig{
			CatalogOverlapThreshold: 0.3,
		},
		Fusion: FusionConfig{
			SimilarityExponent: 1.5,
			DistanceScale:      20,
			FactualBoost:       1.1,
			AgreementBonus:     0.05,
			VariancePenalty:    1.0,
			ConfidenceFloor:    0.3,
			Reliability: map[string]float64{
				"musicbrainz": 0.95,
				"manual":      0.90,
				"lastfm":      0.85,
				"spotify":     0.80,
			},
		},
		Build: BuildConfig{
			MaxArtists:         200,
			MaxDepth:           2,
			NeighborsPerArtist: 15,
		},
	}
}

// Load reads config from a YAML file (if it exists) and overrides with
// environment variables. Environment variables take precedence.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.loadFromFile(path); err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
	}

	cfg.loadFromEnv()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func (c *Config) loadFromFile(path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path comes from the command line
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return yaml.Unmarshal(data, c)
}

func (c *Config) loadFromEnv() {
	if v := os.Getenv("CF_DATA_DIR"); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv("CF_DB_PATH"); v != "" {
		c.Database.Path = v
	}
	if v := os.Getenv("CF_ENCRYPTION_KEY"); v != "" {
		c.Encryption.Key = v
	}
	if v := os.Getenv("CF_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("CF_LOG_FORMAT"); v != "" {
		c.Logging.Format = v
	}
	if v := os.Getenv("CF_TABLES_PATH"); v != "" {
		c.Tables.Path = v
	}
	if v := os.Getenv("CF_OUTPUT"); v != "" {
		c.Build.Output = v
	}
	if v := os.Getenv("CF_MAX_ARTISTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Build.MaxArtists = n
		}
	}
}

// validate checks ranges and fills paths derived from the data dir.
func (c *Config) validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}
	if c.Database.Path == "" {
		c.Database.Path = filepath.Join(c.DataDir, "confluence.db")
	}
	if c.Encryption.KeyFile == "" {
		c.Encryption.KeyFile = filepath.Join(c.DataDir, "confluence.key")
	}
	if c.Build.Output == "" {
		c.Build.Output = filepath.Join(c.DataDir, "network.json")
	}

	if !logging.ValidLevel(c.Logging.Level) {
		return fmt.Errorf("invalid log level: %q", c.Logging.Level)
	}
	if !logging.ValidFormat(c.Logging.Format) {
		return fmt.Errorf("invalid log format: %q", c.Logging.Format)
	}

	for name, p := range map[string]ProviderConfig{
		"lastfm":      c.Providers.LastFM,
		"spotify":     c.Providers.Spotify,
		"musicbrainz": c.Providers.MusicBrainz,
	} {
		if p.Enabled && p.RateLimit <= 0 {
			return fmt.Errorf("provider %s: rate_limit must be positive", name)
		}
	}

	if c.Cache.ResponseTTLHours <= 0 || c.Cache.ResolutionTTLHours <= 0 {
		return fmt.Errorf("cache TTLs must be positive")
	}
	if c.Resolver.CatalogOverlapThreshold <= 0 || c.Resolver.CatalogOverlapThreshold > 1 {
		return fmt.Errorf("catalog_overlap_threshold %v out of (0,1]", c.Resolver.CatalogOverlapThreshold)
	}
	if c.Fusion.ConfidenceFloor < 0 || c.Fusion.ConfidenceFloor >= 1 {
		return fmt.Errorf("confidence_floor %v out of [0,1)", c.Fusion.ConfidenceFloor)
	}
	if c.Fusion.FactualBoost < 1 {
		return fmt.Errorf("factual_boost %v must be at least 1", c.Fusion.FactualBoost)
	}
	for src, r := range c.Fusion.Reliability {
		if r < 0 || r > 1 {
			return fmt.Errorf("reliability for %s: %v out of [0,1]", src, r)
		}
	}
	if c.Build.MaxArtists < 1 || c.Build.MaxDepth < 1 || c.Build.NeighborsPerArtist < 1 {
		return fmt.Errorf("build bounds must be at least 1")
	}
	return nil
}
