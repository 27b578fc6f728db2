package service

import (
	"context"
	"time"
)

// SearchRequest represents a catalog search with all parameters
type SearchRequest struct {
	Query   string            `json:"query"`
	Filters map[string]string `json:"filters,omitempty"`

	// Pagination
	Limit  int `json:"limit,omitempty"`
	Offset int `json:"offset,omitempty"`

	Fuzzy     bool `json:"fuzzy,omitempty"`
	Highlight bool `json:"highlight,omitempty"`
}

// SearchResponse represents search results
type SearchResponse struct {
	Results      []*SearchResult         `json:"results"`
	TotalResults int                     `json:"total_results"`
	Query        string                  `json:"query"`
	TimeTaken    int64                   `json:"time_taken_ms"`
	Facets       map[string][]FacetCount `json:"facets,omitempty"`
}

// SearchResult represents a single search result
type SearchResult struct {
	ID         string              `json:"id"`
	Identifier string              `json:"identifier,omitempty"`
	Title      string              `json:"title,omitempty"`
	Score      float64             `json:"score,omitempty"`
	Highlights map[string][]string `json:"highlights,omitempty"`
}

// FacetCount is one facet term and the number of matching investigations.
type FacetCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// StatsResponse reports the size of the catalog.
type StatsResponse struct {
	TotalInvestigations int       `json:"total_investigations"`
	TotalStudies        int       `json:"total_studies"`
	TotalAssays         int       `json:"total_assays"`
	IndexedDocuments    uint64    `json:"indexed_documents"`
	DatabaseSize        int64     `json:"database_size"`
	LastUpdate          time.Time `json:"last_update"`
}

// BaseService is implemented by every service.
type BaseService interface {
	// Health checks if the service is operational
	Health(ctx context.Context) error

	// Close releases any resources
	Close() error
}
