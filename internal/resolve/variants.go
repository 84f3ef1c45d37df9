package resolve

import (
	"strings"
	"unicode"

	"github.com/sydlexius/confluence/internal/tables"
)

// ArtistType is the script/region classification used to pick variant
// suffixes for a name.
type ArtistType string

// Artist types.
const (
	TypeWestern  ArtistType = "western"
	TypeKorean   ArtistType = "korean"
	TypeJapanese ArtistType = "japanese"
)

// Classify determines the artist type for a name. Hangul code points
// classify as Korean; Kana and Kanji as Japanese. Romanized names fall
// back to the curated keyword lists, then to Western.
func Classify(t *tables.Snapshot, name string) ArtistType {
	for _, r := range name {
		switch {
		case unicode.Is(unicode.Hangul, r):
			return TypeKorean
		case unicode.Is(unicode.Hiragana, r), unicode.Is(unicode.Katakana, r), unicode.Is(unicode.Han, r):
			return TypeJapanese
		}
	}
	switch {
	case t.IsKoreanArtist(name):
		return TypeKorean
	case t.IsJapaneseArtist(name):
		return TypeJapanese
	default:
		return TypeWestern
	}
}

// Variants expands a query into the ordered list of spellings to try
// against the catalog. Priority order:
//
//  1. the query verbatim
//  2. curated known-name spellings
//  3. script/region suffixes from the artist-type classification
//  4. abbreviations (initials, first word, last word)
//  5. orthographic transforms (leading "The", punctuation, "&")
//
// The result is deduplicated preserving order and always contains at
// least the verbatim query.
func Variants(t *tables.Snapshot, query string) []string {
	name := strings.TrimSpace(query)
	out := []string{name}
	seen := map[string]bool{name: true}
	add := func(v string) {
		if v == "" || seen[v] {
			return
		}
		seen[v] = true
		out = append(out, v)
	}

	if name == "" {
		return out
	}

	for _, v := range t.KnownVariants(name) {
		add(v)
	}

	switch Classify(t, name) {
	case TypeKorean:
		add(name + " (K-pop)")
		add(name + " (Korea)")
		add(name + " (band)")
	case TypeJapanese:
		add(name + " (JP)")
		add(name + " (band)")
	default:
		add(name + " (band)")
		add(name + " (group)")
	}

	words := strings.Fields(name)
	if len(words) > 1 {
		add(initials(words))
		add(words[0])
		add(words[len(words)-1])
	}

	add(toggleThe(name))
	add(stripPunctuation(name))
	add(strings.ReplaceAll(name, "&", "and"))

	return out
}

// initials builds an acronym from the first rune of each word, e.g.
// "Machine Gun Kelly" -> "MGK".
func initials(words []string) string {
	var b strings.Builder
	for _, w := range words {
		for _, r := range w {
			b.WriteRune(unicode.ToUpper(r))
			break
		}
	}
	return b.String()
}

// toggleThe removes a leading "The " or adds one when absent.
func toggleThe(name string) string {
	if len(name) > 4 && strings.EqualFold(name[:4], "the ") {
		return strings.TrimSpace(name[4:])
	}
	return "The " + name
}

// stripPunctuation keeps letters, digits, and spaces, collapsing runs
// of whitespace.
func stripPunctuation(name string) string {
	var b strings.Builder
	for _, r := range name {
		if unicode.IsLetter(r) || unicode.IsNumber(r) || unicode.IsSpace(r) {
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
