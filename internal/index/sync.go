package index

import (
	"log/slog"
	"time"

	"github.com/starford/nbmark/internal/checksum"
	"github.com/starford/nbmark/internal/parser"
	"github.com/starford/nbmark/internal/storage"
)

// SyncResult summarises one Sync pass.
type SyncResult struct {
	Indexed   int
	Unchanged int
	Removed   int
	Failed    int
}

// Sync walks the workspace and brings the index up to date:
//   - new/changed notebooks are parsed and upserted
//   - notebooks that fail to parse are logged and skipped
//   - notebooks removed from disk are deleted from the index
func Sync(db *DB, store storage.Provider, logger *slog.Logger) (SyncResult, error) {
	var res SyncResult

	metas, err := store.List("")
	if err != nil {
		return res, err
	}

	checksums, err := db.AllChecksums()
	if err != nil {
		return res, err
	}

	disk := make(map[string]struct{}, len(metas))
	for _, m := range metas {
		disk[m.Path] = struct{}{}

		if checksums[m.Path] == m.Checksum {
			res.Unchanged++
			continue
		}

		data, err := store.Read(m.Path)
		if err != nil {
			res.Failed++
			logger.Warn("sync: read failed", slog.String("path", m.Path), slog.String("error", err.Error()))
			continue
		}
		if err := indexFile(db, m.Path, data, m.UpdatedAt); err != nil {
			res.Failed++
			logger.Warn("sync: index failed", slog.String("path", m.Path), slog.String("error", err.Error()))
		} else {
			res.Indexed++
			logger.Debug("sync: indexed", slog.String("path", m.Path))
		}
	}

	// Remove stale entries.
	for p := range checksums {
		if _, ok := disk[p]; !ok {
			if err := db.DeleteNotebook(p); err != nil {
				logger.Warn("sync: delete failed", slog.String("path", p), slog.String("error", err.Error()))
			} else {
				res.Removed++
				logger.Debug("sync: removed stale", slog.String("path", p))
			}
		}
	}

	return res, nil
}

// indexFile parses data and upserts it into the DB.
func indexFile(db *DB, path string, data []byte, updatedAt time.Time) error {
	nb, err := parser.Parse(path, data)
	if err != nil {
		return err
	}
	row, cells := Rows(nb, checksum.Sum(data), updatedAt)
	return db.UpsertNotebook(row, cells)
}
