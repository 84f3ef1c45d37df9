package tables

import "testing"

func TestKnownVariants(t *testing.T) {
	s := Defaults()

	got := s.KnownVariants("bts")
	if len(got) == 0 {
		t.Fatal("KnownVariants(bts) returned no entries")
	}
	found := false
	for _, v := range got {
		if v == "방탄소년단" {
			found = true
		}
	}
	if !found {
		t.Errorf("KnownVariants(bts) = %v, want hangul alias included", got)
	}

	if got := s.KnownVariants("Totally Unknown Act"); got != nil {
		t.Errorf("KnownVariants(unknown) = %v, want nil", got)
	}
}

func TestDenied(t *testing.T) {
	s := Defaults()

	cases := []struct {
		query     string
		candidate string
		want      bool
	}{
		{"blackbear", "Blackbeard's Tea Party", true},
		{"BLACKBEAR", "blackbeard's tea party", true},
		{"sunmi", "SunMin", true},
		{"blackbear", "Machine Gun Kelly", false},
		{"sunmi", "Sunmi", false},
	}
	for _, c := range cases {
		got := s.Denied(c.query, c.candidate)
		if got != c.want {
			t.Errorf("Denied(%q, %q) = %v, want %v", c.query, c.candidate, got, c.want)
		}
	}
}

func TestScore(t *testing.T) {
	s := Defaults()

	sc, ok := s.Score("Member of Band")
	if !ok {
		t.Fatal("Score(Member of Band) not found")
	}
	if sc.Similarity != 0.95 || sc.Distance != 1.0 {
		t.Errorf("Score(Member of Band) = %+v, want {0.95 1}", sc)
	}

	if _, ok := s.Score("remixer"); ok {
		t.Error("Score(remixer) found, want miss for an uncurated label")
	}
}

func TestOverrideFor(t *testing.T) {
	s := Defaults()
	s.Overrides = []Override{
		{ArtistA: "Iron Maiden", ArtistB: "The Iron Maidens", Label: "tribute", Similarity: 0.65, Distance: 5.0},
	}

	o, ok := s.OverrideFor("the iron maidens", "IRON MAIDEN")
	if !ok {
		t.Fatal("OverrideFor missed a reversed-order pair")
	}
	if o.Label != "tribute" {
		t.Errorf("Override.Label = %q, want tribute", o.Label)
	}

	if _, ok := s.OverrideFor("Iron Maiden", "Judas Priest"); ok {
		t.Error("OverrideFor matched a pair with no entry")
	}
}

func TestClassificationLists(t *testing.T) {
	s := Defaults()

	if !s.IsKoreanArtist("  TWICE ") {
		t.Error("IsKoreanArtist(TWICE) = false, want case and space insensitive hit")
	}
	if !s.IsJapaneseArtist("Babymetal") {
		t.Error("IsJapaneseArtist(Babymetal) = false, want true")
	}
	if s.IsKoreanArtist("Radiohead") {
		t.Error("IsKoreanArtist(Radiohead) = true, want false")
	}
}
