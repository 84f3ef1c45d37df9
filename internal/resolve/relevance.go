package resolve

import (
	"regexp"
	"strings"

	"github.com/sydlexius/confluence/internal/tables"
)

// Relevant decides whether a candidate catalog name plausibly denotes
// the same artist as the original query. Rules run in order, first
// match wins; cheap high-precision rules come first and the fuzzy ones
// are gated tightly so a short edit distance alone cannot pull in an
// unrelated artist.
//
//  1. exact case-insensitive match
//  2. curated denylist pair -> never relevant
//  3. original appears in the candidate as a whole word
//     (collaboration credits such as "BoyWithUke, blackbear")
//  4. near-identity: both >=4 runes, length within 1, edit distance <=1
//  5. word overlap: >=80% of a multi-word original's words, or the
//     exact word for single-word originals
//  6. character-set overlap >=95% for names of nearly equal length
func Relevant(t *tables.Snapshot, original, candidate string) bool {
	orig := strings.TrimSpace(original)
	cand := strings.TrimSpace(candidate)
	if orig == "" || cand == "" {
		return false
	}

	if strings.EqualFold(orig, cand) {
		return true
	}
	if t.Denied(orig, cand) {
		return false
	}
	if containsWholeWord(cand, orig) {
		return true
	}

	ro := []rune(strings.ToLower(orig))
	rc := []rune(strings.ToLower(cand))
	if len(ro) >= 4 && len(rc) >= 4 && absInt(len(ro)-len(rc)) <= 1 && levenshtein(ro, rc) <= 1 {
		return true
	}
	if wordOverlap(string(ro), string(rc)) {
		return true
	}
	return charSetSimilar(ro, rc)
}

// containsWholeWord reports whether needle occurs in haystack bounded
// by word boundaries, ignoring case.
func containsWholeWord(haystack, needle string) bool {
	re := regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(needle) + `\b`)
	return re.MatchString(haystack)
}

// wordOverlap applies rule 5. Single-word originals get no fuzzy
// credit: the exact word must appear in the candidate.
func wordOverlap(orig, cand string) bool {
	ow := strings.Fields(stripPunctuation(orig))
	cw := strings.Fields(stripPunctuation(cand))
	if len(ow) == 0 || len(cw) == 0 {
		return false
	}

	cset := make(map[string]bool, len(cw))
	for _, w := range cw {
		cset[w] = true
	}

	if len(ow) == 1 {
		return cset[ow[0]]
	}

	matched := 0
	for _, w := range ow {
		if cset[w] {
			matched++
		}
	}
	return float64(matched)/float64(len(ow)) >= 0.8
}

// charSetSimilar applies rule 6: both names >=3 runes, lengths within
// 2, and >=95% overlap between their rune sets.
func charSetSimilar(a, b []rune) bool {
	if len(a) < 3 || len(b) < 3 {
		return false
	}
	if absInt(len(a)-len(b)) > 2 {
		return false
	}

	as := runeSet(a)
	bs := runeSet(b)
	inter := 0
	for r := range as {
		if bs[r] {
			inter++
		}
	}
	union := len(as) + len(bs) - inter
	if union == 0 {
		return false
	}
	return float64(inter)/float64(union) >= 0.95
}

func runeSet(rs []rune) map[rune]bool {
	set := make(map[rune]bool, len(rs))
	for _, r := range rs {
		if r == ' ' {
			continue
		}
		set[r] = true
	}
	return set
}

// levenshtein computes the edit distance between two rune slices.
func levenshtein(a, b []rune) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	matrix := make([][]int, len(a)+1)
	for i := range matrix {
		matrix[i] = make([]int, len(b)+1)
		matrix[i][0] = i
	}
	for j := range matrix[0] {
		matrix[0][j] = j
	}

	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			matrix[i][j] = min(
				matrix[i-1][j]+1,      // deletion
				matrix[i][j-1]+1,      // insertion
				matrix[i-1][j-1]+cost, // substitution
			)
		}
	}

	return matrix[len(a)][len(b)]
}

func absInt(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
