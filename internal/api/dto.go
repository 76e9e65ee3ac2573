package api

import (
	"github.com/starford/nbmark/internal/index"
	"github.com/starford/nbmark/internal/notebookservice"
)

// NotebookDetail is the full notebook response type (aliased from the domain layer).
type NotebookDetail = notebookservice.NotebookDetail

// NotebookListItem is a lightweight item in a list response (aliased from the domain layer).
type NotebookListItem = notebookservice.NotebookListItem

// NotebookListResponse wraps paginated notebook listings.
type NotebookListResponse struct {
	Notebooks []NotebookListItem `json:"notebooks" validate:"required"`
	Total     int                `json:"total" example:"42" validate:"required"`
}

// SearchResult is a single search hit in the API response.
type SearchResult = index.SearchResult

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []SearchResult `json:"results" validate:"required"`
}

// ExportResponse is returned after a notebook was exported to Markdown.
type ExportResponse struct {
	Path   string `json:"path" example:"reports/q3.ipynb" validate:"required"`
	Output string `json:"output" example:"reports/q3.md" validate:"required"`
}
