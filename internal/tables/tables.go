// Package tables holds the curated lookup tables that steer name
// resolution and relationship scoring: known catalog spellings,
// romanized-name classification keywords, the relevance denylist,
// relationship label scores, and manual overrides.
//
// Tables are immutable snapshots. Consumers receive a *Snapshot and
// never mutate it; reloads build a fresh snapshot and swap it in
// atomically (see Store).
package tables

import "strings"

// Snapshot is one immutable bundle of curated tables.
type Snapshot struct {
	// KnownNames maps an uppercased query form to catalog spellings
	// known to work for that artist.
	KnownNames map[string][]string

	// KoreanArtists and JapaneseArtists list romanized names whose
	// script gives no classification signal.
	KoreanArtists   []string
	JapaneseArtists []string

	// Denylist holds query/candidate pairs that must never be treated
	// as the same artist, regardless of how similar the names look.
	Denylist []DenyPair

	// RelationScores maps a curated relationship label to its fixed
	// similarity and distance.
	RelationScores map[string]RelationScore

	// Overrides are hand-curated relationships that bypass resolution.
	Overrides []Override

	koreanSet   map[string]bool
	japaneseSet map[string]bool
	denySet     map[string]bool
}

// DenyPair is one known-confusable query/candidate pair.
type DenyPair struct {
	Query     string `yaml:"query"`
	Candidate string `yaml:"candidate"`
}

// RelationScore is the fixed similarity/distance for a curated
// relationship label.
type RelationScore struct {
	Similarity float64 `yaml:"similarity"`
	Distance   float64 `yaml:"distance"`
}

// Override is one manual relationship entry.
type Override struct {
	ArtistA    string  `yaml:"artist_a"`
	ArtistB    string  `yaml:"artist_b"`
	Label      string  `yaml:"label"`
	Similarity float64 `yaml:"similarity"`
	Distance   float64 `yaml:"distance"`
}

// KnownVariants returns the curated catalog spellings for a query, or
// nil when the query has no entry. Lookup is on the uppercased form.
func (s *Snapshot) KnownVariants(query string) []string {
	return s.KnownNames[strings.ToUpper(strings.TrimSpace(query))]
}

// IsKoreanArtist reports whether a romanized name is in the curated
// Korean keyword list.
func (s *Snapshot) IsKoreanArtist(name string) bool {
	return s.koreanSet[strings.ToLower(strings.TrimSpace(name))]
}

// IsJapaneseArtist reports whether a romanized name is in the curated
// Japanese keyword list.
func (s *Snapshot) IsJapaneseArtist(name string) bool {
	return s.japaneseSet[strings.ToLower(strings.TrimSpace(name))]
}

// Denied reports whether a query/candidate pair is on the denylist.
// Comparison is case-insensitive in both positions.
func (s *Snapshot) Denied(query, candidate string) bool {
	return s.denySet[denyKey(query, candidate)]
}

// Score returns the fixed scores for a curated relationship label.
// Lookup is case-insensitive; ok is false for unknown labels.
func (s *Snapshot) Score(label string) (RelationScore, bool) {
	sc, ok := s.RelationScores[strings.ToLower(strings.TrimSpace(label))]
	return sc, ok
}

// OverrideFor returns the manual override for an unordered artist
// pair, if one exists.
func (s *Snapshot) OverrideFor(a, b string) (Override, bool) {
	la, lb := strings.ToLower(strings.TrimSpace(a)), strings.ToLower(strings.TrimSpace(b))
	for _, o := range s.Overrides {
		oa, ob := strings.ToLower(o.ArtistA), strings.ToLower(o.ArtistB)
		if (oa == la && ob == lb) || (oa == lb && ob == la) {
			return o, true
		}
	}
	return Override{}, false
}

// index builds the lowercase lookup sets. Called once after a snapshot
// is assembled; the snapshot is immutable afterwards.
func (s *Snapshot) index() {
	s.koreanSet = make(map[string]bool, len(s.KoreanArtists))
	for _, n := range s.KoreanArtists {
		s.koreanSet[strings.ToLower(strings.TrimSpace(n))] = true
	}
	s.japaneseSet = make(map[string]bool, len(s.JapaneseArtists))
	for _, n := range s.JapaneseArtists {
		s.japaneseSet[strings.ToLower(strings.TrimSpace(n))] = true
	}
	s.denySet = make(map[string]bool, len(s.Denylist))
	for _, p := range s.Denylist {
		s.denySet[denyKey(p.Query, p.Candidate)] = true
	}
}

func denyKey(query, candidate string) string {
	return strings.ToLower(strings.TrimSpace(query)) + "\x00" + strings.ToLower(strings.TrimSpace(candidate))
}

// Defaults returns the built-in tables. An overlay file can extend or
// replace individual entries (see Load).
func Defaults() *Snapshot {
	s := &Snapshot{
		KnownNames: map[string][]string{
			"BEYONCE":          {"Beyoncé"},
			"BIGBANG":          {"BIGBANG", "Big Bang"},
			"BTS":              {"BTS", "방탄소년단"},
			"CHUNGHA":          {"CHUNG HA", "Chungha"},
			"G-DRAGON":         {"G-Dragon", "GD"},
			"GIRLS GENERATION": {"Girls' Generation", "소녀시대"},
			"MOTORHEAD":        {"Motörhead"},
			"SUNMI":            {"Sunmi", "선미"},
		},
		KoreanArtists: []string{
			"aespa", "blackpink", "bts", "chungha", "itzy", "iu",
			"loona", "mamamoo", "seventeen", "stray kids", "sunmi",
			"twice",
		},
		JapaneseArtists: []string{
			"babymetal", "kyary pamyu pamyu", "one ok rock", "perfume",
			"radwimps", "scandal", "utada hikaru",
		},
		Denylist: []DenyPair{
			{Query: "blackbear", Candidate: "Blackbeard"},
			{Query: "blackbear", Candidate: "Blackbeard's Tea Party"},
			{Query: "keshi", Candidate: "Kesha"},
			{Query: "sunmi", Candidate: "SunMin"},
		},
		RelationScores: map[string]RelationScore{
			"is person":           {Similarity: 0.97, Distance: 0.7},
			"legal name":          {Similarity: 0.97, Distance: 0.7},
			"member of band":      {Similarity: 0.95, Distance: 1.0},
			"founder":             {Similarity: 0.92, Distance: 1.2},
			"collaboration":       {Similarity: 0.85, Distance: 2.0},
			"supporting musician": {Similarity: 0.82, Distance: 2.5},
			"influenced by":       {Similarity: 0.68, Distance: 4.5},
			"tribute":             {Similarity: 0.65, Distance: 5.0},
			"subgroup":            {Similarity: 0.55, Distance: 6.0},
			"parent group":        {Similarity: 0.50, Distance: 6.5},
		},
		Overrides: nil,
	}
	s.index()
	return s
}
