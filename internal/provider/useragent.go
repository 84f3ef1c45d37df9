package provider

import "github.com/sydlexius/confluence/internal/version"

// UserAgent returns the User-Agent for outbound provider requests.
// MusicBrainz asks clients to identify themselves with a contact URL.
func UserAgent() string {
	return "confluence/" + version.Version + " (+https://github.com/sydlexius/confluence)"
}
