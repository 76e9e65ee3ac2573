package api

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/starford/nbmark/internal/notebook"
	"github.com/starford/nbmark/internal/notebookservice"
)

// Handler holds API route handlers.
type Handler struct {
	svc *notebookservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *notebookservice.Service) *Handler {
	return &Handler{svc: svc}
}

// notebookPath extracts the notebook path from the URL wildcard.
// Supports encoded slashes from OpenAPI clients (e.g. reports%2Fq3.ipynb).
func notebookPath(r *http.Request) string {
	raw := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if raw == "" {
		return ""
	}
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

// ListNotebooks handles GET /api/notebooks.
//
//	@Summary		List indexed notebooks with optional pagination
//	@Tags			notebooks
//	@Produce		json
//	@Param			limit	query		int		false	"Page size"
//	@Param			offset	query		int		false	"Page offset"
//	@Param			sort	query		string	false	"Sort field"	Enums(path, title, updated)
//	@Success		200		{object}	NotebookListResponse
//	@Failure		422		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notebooks [get]
func (h *Handler) ListNotebooks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	sort := q.Get("sort")

	items, total, err := h.svc.ListNotebooks(r.Context(), limit, offset, sort)
	if err != nil {
		writeError(w, r, "list notebooks", "", err)
		return
	}
	writeJSON(w, http.StatusOK, NotebookListResponse{Notebooks: items, Total: total})
}

// GetNotebook handles GET /api/notebooks/*.
//
//	@Summary		Get a notebook as JSON, or rendered Markdown with format=markdown
//	@Tags			notebooks
//	@Produce		json
//	@Produce		text/markdown
//	@Param			path	path		string	true	"Notebook path"
//	@Param			format	query		string	false	"Response format"	Enums(json, markdown)
//	@Success		200		{object}	NotebookDetail
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notebooks/{path} [get]
func (h *Handler) GetNotebook(w http.ResponseWriter, r *http.Request) {
	path := notebookPath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}

	if f := r.URL.Query().Get("format"); f != "" && f != "json" {
		if _, err := notebook.ParseFormat(f); err != nil {
			writeError(w, r, "get notebook", path, err)
			return
		}
		md, err := h.svc.RenderMarkdown(r.Context(), path)
		if err != nil {
			writeError(w, r, "render notebook", path, err)
			return
		}
		writeMarkdown(w, http.StatusOK, md)
		return
	}

	nb, err := h.svc.GetNotebook(r.Context(), path)
	if err != nil {
		writeError(w, r, "get notebook", path, err)
		return
	}
	w.Header().Set("ETag", `"`+nb.Checksum+`"`)
	writeJSON(w, http.StatusOK, nb)
}

// ExportNotebook handles POST /api/export/*.
//
//	@Summary		Write the Markdown rendering of a notebook into the workspace
//	@Tags			render
//	@Produce		json
//	@Param			path	path		string	true	"Notebook path"
//	@Success		200		{object}	ExportResponse
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/export/{path} [post]
func (h *Handler) ExportNotebook(w http.ResponseWriter, r *http.Request) {
	path := notebookPath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	out, err := h.svc.ExportNotebook(r.Context(), path)
	if err != nil {
		writeError(w, r, "export notebook", path, err)
		return
	}
	writeJSON(w, http.StatusOK, ExportResponse{Path: path, Output: out})
}

// Search handles GET /api/search.
//
//	@Summary		Full-text search across notebook cells
//	@Tags			search
//	@Produce		json
//	@Param			q		query		string	true	"Search query"
//	@Param			limit	query		int		false	"Max results"
//	@Success		200		{object}	SearchResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	results, err := h.svc.Search(r.Context(), q, limit)
	if err != nil {
		writeError(w, r, "search", "", err)
		return
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: results})
}

func writeMarkdown(w http.ResponseWriter, status int, md string) {
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(md))
}
