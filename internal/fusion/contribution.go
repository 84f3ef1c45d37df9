// Package fusion turns per-source relationship observations into
// normalized contributions and fuses the contributions for one artist
// pair into a single weighted edge with similarity, distance,
// confidence, and a provenance trail.
package fusion

// Source identifies where a relationship observation came from.
type Source string

// Contribution sources.
const (
	SourceLastFM      Source = "lastfm"
	SourceSpotify     Source = "spotify"
	SourceMusicBrainz Source = "musicbrainz"
	SourceManual      Source = "manual"
)

// EdgeContribution is one source's normalized opinion about a
// relationship between two already-resolved artists. Immutable once
// created.
type EdgeContribution struct {
	Source            Source  `json:"source"`
	RelationshipLabel string  `json:"relationship_label"`
	RawValue          float64 `json:"raw_value"`
	Similarity        float64 `json:"similarity"`
	Distance          float64 `json:"distance"`
	IsFactual         bool    `json:"is_factual"`
	Confidence        float64 `json:"confidence"`
}

// WeightedEdge is the fused result for one ordered artist pair.
// Similarity and confidence are always in [0,1]; distance is never
// below 0.5. FusionMethod names the policy branch that produced the
// result, e.g. "hybrid_boosted_multi_source".
type WeightedEdge struct {
	SourceArtist  string
	TargetArtist  string
	Similarity    float64
	Distance      float64
	Confidence    float64
	IsFactual     bool
	Contributions []EdgeContribution
	FusionMethod  string
}

// Sources returns the distinct contribution sources in first-seen
// order.
func (e *WeightedEdge) Sources() []Source {
	seen := make(map[Source]bool, len(e.Contributions))
	var out []Source
	for _, c := range e.Contributions {
		if seen[c.Source] {
			continue
		}
		seen[c.Source] = true
		out = append(out, c.Source)
	}
	return out
}

// RelationshipTypes returns the distinct relationship labels in
// first-seen order.
func (e *WeightedEdge) RelationshipTypes() []string {
	seen := make(map[string]bool, len(e.Contributions))
	var out []string
	for _, c := range e.Contributions {
		if c.RelationshipLabel == "" || seen[c.RelationshipLabel] {
			continue
		}
		seen[c.RelationshipLabel] = true
		out = append(out, c.RelationshipLabel)
	}
	return out
}
