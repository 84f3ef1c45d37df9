package tables

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// overlay is the YAML shape of a table overlay file. Every section is
// optional; map sections replace per key, list sections append.
type overlay struct {
	KnownNames      map[string][]string      `yaml:"known_names"`
	KoreanArtists   []string                 `yaml:"korean_artists"`
	JapaneseArtists []string                 `yaml:"japanese_artists"`
	Denylist        []DenyPair               `yaml:"denylist"`
	RelationScores  map[string]RelationScore `yaml:"relation_scores"`
	Overrides       []Override               `yaml:"overrides"`
}

// Load returns the built-in tables merged with the overlay file at
// path. An empty path or a missing file yields the defaults unchanged.
func Load(path string) (*Snapshot, error) {
	snap := Defaults()
	if path == "" {
		return snap, nil
	}

	data, err := os.ReadFile(path) //nolint:gosec // G304: path comes from trusted config
	if err != nil {
		if os.IsNotExist(err) {
			return snap, nil
		}
		return nil, fmt.Errorf("reading table overlay: %w", err)
	}

	var ov overlay
	if err := yaml.Unmarshal(data, &ov); err != nil {
		return nil, fmt.Errorf("parsing table overlay: %w", err)
	}
	if err := ov.validate(); err != nil {
		return nil, fmt.Errorf("invalid table overlay: %w", err)
	}

	for k, v := range ov.KnownNames {
		snap.KnownNames[strings.ToUpper(strings.TrimSpace(k))] = v
	}
	snap.KoreanArtists = append(snap.KoreanArtists, ov.KoreanArtists...)
	snap.JapaneseArtists = append(snap.JapaneseArtists, ov.JapaneseArtists...)
	snap.Denylist = append(snap.Denylist, ov.Denylist...)
	for k, v := range ov.RelationScores {
		snap.RelationScores[strings.ToLower(strings.TrimSpace(k))] = v
	}
	snap.Overrides = append(snap.Overrides, ov.Overrides...)

	snap.index()
	return snap, nil
}

func (ov *overlay) validate() error {
	for label, sc := range ov.RelationScores {
		if sc.Similarity < 0 || sc.Similarity > 1 {
			return fmt.Errorf("relation score %q: similarity %v out of [0,1]", label, sc.Similarity)
		}
		if sc.Distance <= 0 {
			return fmt.Errorf("relation score %q: distance %v must be positive", label, sc.Distance)
		}
	}
	for i, o := range ov.Overrides {
		if o.ArtistA == "" || o.ArtistB == "" {
			return fmt.Errorf("override %d: both artists are required", i)
		}
		if o.Similarity < 0 || o.Similarity > 1 {
			return fmt.Errorf("override %d: similarity %v out of [0,1]", i, o.Similarity)
		}
	}
	for i, p := range ov.Denylist {
		if p.Query == "" || p.Candidate == "" {
			return fmt.Errorf("denylist entry %d: query and candidate are required", i)
		}
	}
	return nil
}
