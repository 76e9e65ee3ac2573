// Package storage defines the workspace file-system abstraction.
package storage

import "github.com/starford/nbmark/internal/models"

// NotebookExt is the file extension of notebook documents.
const NotebookExt = ".ipynb"

// FileIO reads and writes whole files.
type FileIO interface {
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// Write atomically replaces the file at path with content.
	Write(path string, content []byte) error
}

// Provider is the interface for workspace file operations.
type Provider interface {
	FileIO
	// List returns metadata for every notebook under dir (relative to the workspace root).
	List(dir string) ([]models.NotebookMetadata, error)
}
