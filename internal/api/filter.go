package api

import (
	"net/url"
	"strings"

	"github.com/iptvplus/iptv-plus/internal/catalog"
)

// Filter mirrors the UI's view model: free-text search on the name, exact
// category match, and a view narrowing to one class or to favorites.
type Filter struct {
	Query    string `json:"q"`
	Category string `json:"category"`
	View     string `json:"view"` // dashboard (all), live, movies, series, favorites
}

func filterFromQuery(q url.Values) Filter {
	return Filter{
		Query:    q.Get("q"),
		Category: q.Get("category"),
		View:     q.Get("view"),
	}
}

// Apply returns the ordered subset of items matching f. The result is the
// snapshot next/previous stepping operates on, so ordering is stable.
func (f Filter) Apply(items []catalog.ContentItem) []catalog.ContentItem {
	needle := strings.ToLower(f.Query)
	out := make([]catalog.ContentItem, 0, len(items))
	for _, item := range items {
		if needle != "" && !strings.Contains(strings.ToLower(item.Name), needle) {
			continue
		}
		if f.Category != "" && f.Category != "Tudo" && item.Category != f.Category {
			continue
		}
		if !f.viewMatches(item) {
			continue
		}
		out = append(out, item)
	}
	return out
}

func (f Filter) viewMatches(item catalog.ContentItem) bool {
	switch f.View {
	case "", "dashboard":
		return true
	case "favorites":
		return item.IsFavorite
	case "live":
		return item.Class == catalog.ClassLive
	case "movies":
		return item.Class == catalog.ClassMovie
	case "series":
		return item.Class == catalog.ClassSeries
	default:
		return true
	}
}
