package service

import (
	"context"

	isaerr "github.com/nishad/isakit/internal/errors"
	"github.com/nishad/isakit/internal/search"
)

// maxSearchLimit caps the page size of a single search.
const maxSearchLimit = 1000

// SearchService handles search operations
type SearchService struct {
	index        *search.BleveIndex
	defaultLimit int
}

// NewSearchService creates a search service over index. defaultLimit applies
// when a request carries no limit.
func NewSearchService(index *search.BleveIndex, defaultLimit int) *SearchService {
	if defaultLimit <= 0 {
		defaultLimit = 20
	}
	return &SearchService{index: index, defaultLimit: defaultLimit}
}

// Search runs the request against the index.
func (s *SearchService) Search(ctx context.Context, req *SearchRequest) (*SearchResponse, error) {
	const op isaerr.Op = "service.Search"
	if s.index == nil {
		return nil, isaerr.E(op, isaerr.KindConfig, "no search index configured")
	}
	if err := ctx.Err(); err != nil {
		return nil, isaerr.E(op, isaerr.KindSearch, err)
	}

	limit := req.Limit
	if limit <= 0 {
		limit = s.defaultLimit
	}
	if limit > maxSearchLimit {
		limit = maxSearchLimit
	}
	opts := search.SearchOptions{
		Limit:     limit,
		Offset:    req.Offset,
		Filters:   req.Filters,
		Highlight: req.Highlight,
	}
	if req.Fuzzy {
		opts.Fuzziness = 1
	}

	result, err := s.index.Search(req.Query, opts)
	if err != nil {
		return nil, isaerr.Wrap(op, err)
	}

	resp := &SearchResponse{
		Results:      make([]*SearchResult, 0, len(result.Hits)),
		TotalResults: result.TotalHits,
		Query:        req.Query,
		TimeTaken:    result.TimeMs,
	}
	for _, hit := range result.Hits {
		resp.Results = append(resp.Results, &SearchResult{
			ID:         hit.ID,
			Identifier: hit.Identifier,
			Title:      hit.Title,
			Score:      hit.Score,
			Highlights: hit.Highlights,
		})
	}
	if len(result.Facets) > 0 {
		resp.Facets = make(map[string][]FacetCount, len(result.Facets))
		for name, values := range result.Facets {
			counts := make([]FacetCount, 0, len(values))
			for _, v := range values {
				counts = append(counts, FacetCount{Name: v.Value, Count: v.Count})
			}
			resp.Facets[name] = counts
		}
	}
	return resp, nil
}

// Health checks that the index answers.
func (s *SearchService) Health(ctx context.Context) error {
	if s.index == nil {
		return nil
	}
	if _, err := s.index.GetDocCount(); err != nil {
		return isaerr.E(isaerr.Op("service.SearchHealth"), isaerr.KindSearch, err)
	}
	return nil
}

// Close is a no-op; the index is owned by the catalog service.
func (s *SearchService) Close() error { return nil }
