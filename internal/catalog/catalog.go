// Package catalog defines the unified content model, the chunked normalizer
// that maps raw panel records into it, the per-account in-memory cache, and
// the all-settled loader joining the three content classes.
package catalog

import "strings"

// Class partitions the catalog and selects the stream URL template.
type Class string

const (
	ClassLive   Class = "live"
	ClassMovie  Class = "movie"
	ClassSeries Class = "series"
)

// Classes lists every content class in listing order (live, movies, series).
var Classes = []Class{ClassLive, ClassMovie, ClassSeries}

// ContentItem is one normalized catalog entry. ID is namespaced by class
// ("live-42", "movie-42", "series-7") or carries the "m3u-" prefix for
// imported playlist channels, and is unique within one loaded catalog.
// Class never changes after creation. StreamURL stays empty for series:
// episode URLs are resolved on demand and never written back here.
type ContentItem struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	LogoURL     string `json:"logo,omitempty"`
	Category    string `json:"category"`
	StreamURL   string `json:"url,omitempty"`
	IsFavorite  bool   `json:"isFavorite"`
	Class       Class  `json:"type"`
	Description string `json:"description,omitempty"`
}

// SourceID returns the upstream identifier with the class prefix stripped,
// e.g. "series-7" → "7". Used to build panel detail queries.
func (c ContentItem) SourceID() string {
	return strings.TrimPrefix(c.ID, string(c.Class)+"-")
}

// Credential identifies one panel account. Opaque to the core: it only feeds
// query strings and cache keys, and the panel itself decides validity.
type Credential struct {
	OriginURL string `json:"url"`
	Username  string `json:"username"`
	Password  string `json:"password"`
}

// BaseURL returns the origin with any trailing slash removed.
func (c Credential) BaseURL() string {
	return strings.TrimSuffix(strings.TrimSpace(c.OriginURL), "/")
}

// Empty reports whether any field is missing. The only validation the core
// performs.
func (c Credential) Empty() bool {
	return c.BaseURL() == "" || c.Username == "" || c.Password == ""
}

// Season is one season of a series, fetched lazily and never cached across
// sessions.
type Season struct {
	Name     string    `json:"name"`
	Number   int       `json:"number"`
	Episodes []Episode `json:"episodes"`
}

// Episode is one playable entry of a season.
type Episode struct {
	ID                 string `json:"id"`
	Title              string `json:"title,omitempty"`
	ContainerExtension string `json:"container_extension,omitempty"`
	SeasonNumber       int    `json:"season"`
	EpisodeNumber      int    `json:"episode_num"`
}

// Extension returns the episode container extension, defaulting to mp4.
func (e Episode) Extension() string {
	if e.ContainerExtension == "" {
		return "mp4"
	}
	return e.ContainerExtension
}

// RawRecord is one untyped upstream record. Field presence varies by panel,
// so records stay key-value maps at the boundary and every read goes through
// the coalescing helpers below.
type RawRecord map[string]any
