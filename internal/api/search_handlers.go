package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	"github.com/tabvault/tabvault-server/internal/search"
)

func (s *Server) registerSearchRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "search",
		Method:      http.MethodGet,
		Path:        "/api/v1/search",
		Summary:     "Search saved tabs",
		Description: "Full-text search across saved tab titles, URLs, and collection names",
		Tags:        []string{"Search"},
	}, s.handleSearch)
}

// === DTOs ===

// SearchInput contains parameters for searching saved tabs.
type SearchInput struct {
	Query        string `query:"q" validate:"omitempty,max=200" doc:"Search query. Omit to browse with filters only."`
	CollectionID string `query:"collection_id" validate:"omitempty,max=64" doc:"Restrict to one collection"`
	Tags         string `query:"tags" validate:"omitempty,max=200" doc:"Comma-separated collection tags to filter by"`
	Pinned       bool   `query:"pinned" doc:"Only pinned tabs"`
	Limit        int    `query:"limit" validate:"omitempty,gte=1,lte=100" doc:"Max results (default 20)"`
	Offset       int    `query:"offset" validate:"omitempty,gte=0" doc:"Pagination offset (default 0)"`
	Sort         string `query:"sort" validate:"omitempty,oneof=relevance title recent" doc:"Sort order: relevance, title, or recent (default relevance)"`
	Order        string `query:"order" validate:"omitempty,oneof=asc desc" doc:"Sort direction (default desc)"`
}

// SearchHitResult contains a single matched tab.
type SearchHitResult struct {
	ID             string            `json:"id" doc:"Tab ID"`
	Score          float64           `json:"score" doc:"Search relevance score"`
	Title          string            `json:"title"`
	URL            string            `json:"url"`
	Host           string            `json:"host,omitempty"`
	CollectionID   string            `json:"collection_id"`
	CollectionName string            `json:"collection_name"`
	Tags           []string          `json:"tags,omitempty" doc:"Tags of the owning collection"`
	Pinned         bool              `json:"pinned"`
	Highlights     map[string]string `json:"highlights,omitempty" doc:"Highlighted matches"`
}

// SearchResponse contains search results.
type SearchResponse struct {
	Query  string            `json:"query" doc:"Original search query"`
	Total  int64             `json:"total" doc:"Total matches"`
	TookMs int64             `json:"took_ms" doc:"Search duration in milliseconds"`
	Hits   []SearchHitResult `json:"hits"`
}

// SearchOutput wraps the search response for Huma.
type SearchOutput struct {
	Body SearchResponse
}

// === Handlers ===

func (s *Server) handleSearch(ctx context.Context, input *SearchInput) (*SearchOutput, error) {
	params := search.DefaultSearchParams()
	params.Query = input.Query
	params.CollectionID = input.CollectionID
	params.PinnedOnly = input.Pinned
	if input.Limit > 0 {
		params.Limit = input.Limit
	}
	params.Offset = input.Offset
	if input.Sort != "" {
		params.SortBy = input.Sort
	}
	if input.Order != "" {
		params.SortOrder = input.Order
	}
	if input.Tags != "" {
		for t := range strings.SplitSeq(input.Tags, ",") {
			t = strings.TrimSpace(t)
			if t != "" {
				params.Tags = append(params.Tags, t)
			}
		}
	}

	result, err := s.services.Search.Search(ctx, params)
	if err != nil {
		s.logger.Error("search failed", "error", err, "query", input.Query)
		return nil, err
	}

	s.logger.Debug("search completed",
		"query", input.Query,
		"total", result.Total,
		"took_ms", result.TookMs,
	)

	resp := SearchResponse{
		Query:  result.Query,
		Total:  int64(result.Total), //nolint:gosec // Safe: total count won't exceed int64
		TookMs: result.TookMs,
		Hits:   make([]SearchHitResult, 0, len(result.Hits)),
	}
	for i := range result.Hits {
		hit := &result.Hits[i]
		resp.Hits = append(resp.Hits, SearchHitResult{
			ID:             hit.ID,
			Score:          hit.Score,
			Title:          hit.Title,
			URL:            hit.URL,
			Host:           hit.Host,
			CollectionID:   hit.CollectionID,
			CollectionName: hit.CollectionName,
			Tags:           hit.Tags,
			Pinned:         hit.Pinned,
			Highlights:     hit.Highlights,
		})
	}

	return &SearchOutput{Body: resp}, nil
}
