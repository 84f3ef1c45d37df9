package musicbrainz

// MusicBrainz API response types.

// SearchResponse is the top-level response from the artist search
// endpoint.
type SearchResponse struct {
	Created string     `json:"created"`
	Count   int        `json:"count"`
	Offset  int        `json:"offset"`
	Artists []MBArtist `json:"artists"`
}

// MBArtist represents a MusicBrainz artist entity.
type MBArtist struct {
	ID             string       `json:"id"`
	Name           string       `json:"name"`
	SortName       string       `json:"sort-name"`
	Type           string       `json:"type"`
	Disambiguation string       `json:"disambiguation"`
	Country        string       `json:"country"`
	Score          int          `json:"score"`
	Relations      []MBRelation `json:"relations"`
}

// MBRelation represents a relationship between two artists.
type MBRelation struct {
	Type       string    `json:"type"`
	TargetType string    `json:"target-type"`
	Direction  string    `json:"direction"`
	Attributes []string  `json:"attributes"`
	Begin      string    `json:"begin"`
	End        string    `json:"end"`
	Ended      bool      `json:"ended"`
	Artist     *MBArtist `json:"artist,omitempty"`
}
