package api

import (
	"fmt"
	"io"
	"net/http"
	"path"
	"path/filepath"
	"strings"

	"github.com/starford/nbmark/internal/storage"
)

const (
	uploadDir      = "uploads"
	maxUploadBytes = 50 << 20 // 50 MB
)

// safeName validates that the filename is a plain notebook name (no path
// separators, no traversal).
func safeName(name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("filename is required")
	}
	cleaned := filepath.Clean(name)
	if cleaned != filepath.Base(cleaned) || strings.Contains(cleaned, "..") || strings.ContainsAny(cleaned, `/\`) {
		return "", fmt.Errorf("invalid filename: %s", name)
	}
	if !storage.IsNotebook(cleaned) {
		return "", fmt.Errorf("invalid filename: %s (must end with %s)", name, storage.NotebookExt)
	}
	return cleaned, nil
}

// readUpload returns the notebook bytes of a request: the "file" field of a
// multipart form, or the raw body otherwise. name is the uploaded file name
// when there is one.
func readUpload(w http.ResponseWriter, r *http.Request) (data []byte, name string, err error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		data, err = io.ReadAll(r.Body)
		if err != nil {
			return nil, "", fmt.Errorf("file too large or unreadable body")
		}
		return data, "", nil
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		return nil, "", fmt.Errorf("file too large or invalid multipart")
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, "", fmt.Errorf("missing 'file' field in multipart form")
	}
	defer file.Close()

	data, err = io.ReadAll(file)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read uploaded file")
	}
	return data, header.Filename, nil
}

// UploadNotebook handles POST /api/notebooks (multipart/form-data, field "file").
//
//	@Summary		Upload a notebook into the workspace
//	@Tags			notebooks
//	@Accept			multipart/form-data
//	@Produce		json
//	@Param			file	formData	file	true	"Notebook file (.ipynb)"
//	@Success		201		{object}	NotebookDetail
//	@Failure		400		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notebooks [post]
func (h *Handler) UploadNotebook(w http.ResponseWriter, r *http.Request) {
	data, filename, err := readUpload(w, r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	name, err := safeName(filename)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}

	p := path.Join(uploadDir, name)
	nb, err := h.svc.ImportNotebook(r.Context(), p, data)
	if err != nil {
		writeError(w, r, "upload notebook", p, err)
		return
	}
	writeJSON(w, http.StatusCreated, nb)
}

// Convert handles POST /api/convert.
//
//	@Summary		Render an uploaded notebook to Markdown without storing it
//	@Tags			render
//	@Accept			json
//	@Accept			multipart/form-data
//	@Produce		text/markdown
//	@Success		200		{string}	string	"Rendered Markdown"
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/convert [post]
func (h *Handler) Convert(w http.ResponseWriter, r *http.Request) {
	data, filename, err := readUpload(w, r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	if filename == "" {
		filename = "upload" + storage.NotebookExt
	}
	md, err := h.svc.ConvertBytes(r.Context(), filename, data)
	if err != nil {
		writeError(w, r, "convert", filename, err)
		return
	}
	writeMarkdown(w, http.StatusOK, md)
}
