package lastfm

// Last.fm API response types.

// SearchResponse is the top-level response from artist.search.
type SearchResponse struct {
	Results SearchResults `json:"results"`
}

// SearchResults holds the search result set.
type SearchResults struct {
	ArtistMatches ArtistMatches `json:"artistmatches"`
	TotalResults  string        `json:"opensearch:totalResults"`
}

// ArtistMatches wraps the artist array.
type ArtistMatches struct {
	Artist []SearchArtist `json:"artist"`
}

// SearchArtist is a single search result. Numeric fields arrive as
// strings.
type SearchArtist struct {
	Name      string `json:"name"`
	Listeners string `json:"listeners"`
	MBID      string `json:"mbid"`
	URL       string `json:"url"`
}

// SimilarResponse is the top-level response from artist.getsimilar.
// Error is non-zero when the API reports a failure in the body.
type SimilarResponse struct {
	SimilarArtists SimilarGroup `json:"similarartists"`
	Error          int          `json:"error,omitempty"`
	Message        string       `json:"message,omitempty"`
}

// SimilarGroup wraps the similar artists array.
type SimilarGroup struct {
	Artist []SimilarArtist `json:"artist"`
}

// SimilarArtist is a single similar artist with its match score.
type SimilarArtist struct {
	Name  string `json:"name"`
	MBID  string `json:"mbid"`
	Match string `json:"match"`
	URL   string `json:"url"`
}

// TopTracksResponse is the top-level response from artist.gettoptracks.
type TopTracksResponse struct {
	TopTracks TopTrackGroup `json:"toptracks"`
	Error     int           `json:"error,omitempty"`
	Message   string        `json:"message,omitempty"`
}

// TopTrackGroup wraps the track array.
type TopTrackGroup struct {
	Track []TopTrack `json:"track"`
}

// TopTrack is a single top track.
type TopTrack struct {
	Name      string `json:"name"`
	Playcount string `json:"playcount"`
	MBID      string `json:"mbid"`
}
