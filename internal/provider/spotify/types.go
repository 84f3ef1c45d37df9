package spotify

// Spotify Web API response types.

// SearchResponse is the top-level response from the search endpoint.
type SearchResponse struct {
	Artists ArtistPage `json:"artists"`
}

// ArtistPage is one page of artist results.
type ArtistPage struct {
	Items []Artist `json:"items"`
	Total int      `json:"total"`
}

// Artist represents a Spotify artist object.
type Artist struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Popularity int       `json:"popularity"`
	Genres     []string  `json:"genres"`
	Followers  Followers `json:"followers"`
}

// Followers holds the follower count for an artist.
type Followers struct {
	Total int64 `json:"total"`
}

// RelatedResponse is the top-level response from the related-artists
// endpoint. The list is ordered by relevance.
type RelatedResponse struct {
	Artists []Artist `json:"artists"`
}

// APIError is the error envelope Spotify returns on failed requests.
type APIError struct {
	Error struct {
		Status  int    `json:"status"`
		Message string `json:"message"`
	} `json:"error"`
}
