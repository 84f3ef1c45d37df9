package resolve

import (
	"testing"

	"github.com/sydlexius/confluence/internal/tables"
)

func TestVariants_VerbatimFirst(t *testing.T) {
	snap := tables.Defaults()
	got := Variants(snap, "Radiohead")
	if len(got) == 0 {
		t.Fatal("Variants returned no entries")
	}
	if got[0] != "Radiohead" {
		t.Errorf("Variants[0] = %q, want %q", got[0], "Radiohead")
	}
}

func TestVariants_KnownNames(t *testing.T) {
	snap := tables.Defaults()
	got := Variants(snap, "bts")
	if !containsVariant(got, "방탄소년단") {
		t.Errorf("Variants(%q) = %v, want hangul alias included", "bts", got)
	}
	got = Variants(snap, "MOTORHEAD")
	if !containsVariant(got, "Motörhead") {
		t.Errorf("Variants(%q) = %v, want diacritic form included", "MOTORHEAD", got)
	}
}

func TestVariants_RegionSuffixes(t *testing.T) {
	snap := tables.Defaults()

	got := Variants(snap, "TWICE")
	if !containsVariant(got, "TWICE (K-pop)") {
		t.Errorf("Variants(TWICE) = %v, want K-pop suffix", got)
	}

	got = Variants(snap, "Perfume")
	if !containsVariant(got, "Perfume (JP)") {
		t.Errorf("Variants(Perfume) = %v, want JP suffix", got)
	}

	got = Variants(snap, "Radiohead")
	if !containsVariant(got, "Radiohead (band)") {
		t.Errorf("Variants(Radiohead) = %v, want band suffix", got)
	}
}

func TestVariants_Abbreviations(t *testing.T) {
	snap := tables.Defaults()
	got := Variants(snap, "Machine Gun Kelly")
	for _, want := range []string{"MGK", "Machine", "Kelly"} {
		if !containsVariant(got, want) {
			t.Errorf("Variants(Machine Gun Kelly) missing %q: %v", want, got)
		}
	}
}

func TestVariants_Orthographic(t *testing.T) {
	snap := tables.Defaults()

	got := Variants(snap, "The Beatles")
	if !containsVariant(got, "Beatles") {
		t.Errorf("Variants(The Beatles) = %v, want article-stripped form", got)
	}

	got = Variants(snap, "Beatles")
	if !containsVariant(got, "The Beatles") {
		t.Errorf("Variants(Beatles) = %v, want article-prefixed form", got)
	}

	got = Variants(snap, "Simon & Garfunkel")
	if !containsVariant(got, "Simon and Garfunkel") {
		t.Errorf("Variants(Simon & Garfunkel) = %v, want ampersand expansion", got)
	}

	got = Variants(snap, "P!nk")
	if !containsVariant(got, "Pnk") {
		t.Errorf("Variants(P!nk) = %v, want punctuation-stripped form", got)
	}
}

func TestVariants_NeverEmpty(t *testing.T) {
	snap := tables.Defaults()
	cases := []string{"", "   ", "x", "글", "The The"}
	for _, q := range cases {
		got := Variants(snap, q)
		if len(got) == 0 {
			t.Errorf("Variants(%q) returned no entries", q)
		}
	}
}

func TestVariants_Deduplicated(t *testing.T) {
	snap := tables.Defaults()
	got := Variants(snap, "BTS")
	seen := make(map[string]bool)
	for _, v := range got {
		if seen[v] {
			t.Errorf("Variants(BTS) contains duplicate %q: %v", v, got)
		}
		seen[v] = true
	}
}

func TestClassify(t *testing.T) {
	snap := tables.Defaults()
	cases := []struct {
		name string
		want ArtistType
	}{
		{"방탄소년단", TypeKorean},
		{"선미", TypeKorean},
		{"ヨルシカ", TypeJapanese},
		{"宇多田ヒカル", TypeJapanese},
		{"sunmi", TypeKorean},
		{"Stray Kids", TypeKorean},
		{"BABYMETAL", TypeJapanese},
		{"Radiohead", TypeWestern},
		{"", TypeWestern},
	}
	for _, c := range cases {
		got := Classify(snap, c.name)
		if got != c.want {
			t.Errorf("Classify(%q) = %q, want %q", c.name, got, c.want)
		}
	}
}

func containsVariant(list []string, want string) bool {
	for _, v := range list {
		if v == want {
			return true
		}
	}
	return false
}
