package search

import (
	"time"
)

// SearchOptions contains search parameters
type SearchOptions struct {
	Limit     int               // Maximum results to return
	Offset    int               // Pagination offset
	Filters   map[string]string // Field filters, exact match
	Facets    []string          // Facet fields to return; DefaultFacets if nil
	Fuzziness int               // Edit distance for a single-term fuzzy match; 0 disables
	Highlight bool              // Return matched fragments
}

// DefaultFacets are returned when SearchOptions.Facets is nil.
var DefaultFacets = []string{"measurement_types", "technology_types", "organisms"}

// SearchResult represents search results
type SearchResult struct {
	Query     string                  `json:"query"`
	TotalHits int                     `json:"total_hits"`
	Hits      []Hit                   `json:"hits"`
	Facets    map[string][]FacetValue `json:"facets,omitempty"`
	TimeMs    int64                   `json:"time_ms"`
}

// Hit represents a single search result
type Hit struct {
	ID         string              `json:"id"`
	Score      float64             `json:"score,omitempty"`
	Identifier string              `json:"identifier"`
	Title      string              `json:"title"`
	Highlights map[string][]string `json:"highlights,omitempty"`
}

// FacetValue represents a facet value and count
type FacetValue struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// IndexStats contains index statistics
type IndexStats struct {
	DocumentCount uint64    `json:"document_count"`
	Path          string    `json:"path"`
	LastModified  time.Time `json:"last_modified"`
}
