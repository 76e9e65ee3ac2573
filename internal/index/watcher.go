package index

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/starford/nbmark/internal/checksum"
	"github.com/starford/nbmark/internal/storage"
)

// Event kinds reported to an EventCallback.
const (
	EventCreated  = "created"
	EventUpdated  = "updated"
	EventDeleted  = "deleted"
	EventExported = "exported"
)

// EventCallback is called after a watcher-driven index change or export.
// kind is one of the Event* constants; path is workspace-relative. For
// EventExported, path is the notebook and the callback fires once the
// Markdown file has been written.
type EventCallback func(kind string, path string)

// ExportFunc renders the notebook at the workspace-relative path and writes
// its Markdown somewhere, returning where.
type ExportFunc func(path string) (string, error)

// WatchOption configures Watch.
type WatchOption func(*watchConfig)

type watchConfig struct {
	export ExportFunc
}

// WithExport re-exports every notebook the watcher (re)indexes.
func WithExport(fn ExportFunc) WatchOption {
	return func(c *watchConfig) { c.export = fn }
}

// Watch starts an fsnotify watcher on the workspace root and processes file
// change events until ctx is cancelled. It calls cb (if non-nil) after
// each successful index mutation.
//
// New directories created at runtime are automatically added to the watch
// list. Rename events trigger a reconciliation pass that removes stale
// index entries whose files no longer exist on disk.
func Watch(ctx context.Context, db *DB, store storage.Provider, root string, logger *slog.Logger, cb EventCallback, opts ...WatchOption) error {
	var cfg watchConfig
	for _, o := range opts {
		o(&cfg)
	}
	if cb == nil {
		cb = func(string, string) {}
	}
	h := &handler{db: db, store: store, logger: logger, cb: cb, export: cfg.export}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := addDirsRecursive(w, root); err != nil {
		return err
	}

	logger.Info("watcher: started", slog.String("root", root))

	// reconcileTimer is used to debounce rename reconciliation.
	var reconcileTimer *time.Timer
	var reconcileCh <-chan time.Time

	scheduleReconcile := func() {
		if reconcileTimer == nil {
			reconcileTimer = time.NewTimer(200 * time.Millisecond)
			reconcileCh = reconcileTimer.C
		} else {
			reconcileTimer.Reset(200 * time.Millisecond)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if reconcileTimer != nil {
				reconcileTimer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-reconcileCh:
			h.reconcile()

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}

			absPath := ev.Name
			rel, relErr := filepath.Rel(root, absPath)
			if relErr != nil || ignored(rel) {
				continue
			}
			rel = filepath.ToSlash(rel)

			// --- Handle new directories: add to watcher ---
			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(absPath); statErr == nil && info.IsDir() {
					if storage.SkipDir(info.Name()) {
						continue
					}
					if addErr := addDirsRecursive(w, absPath); addErr != nil {
						logger.Warn("watcher: add new dir failed",
							slog.String("path", absPath),
							slog.String("error", addErr.Error()))
					} else {
						logger.Debug("watcher: watching new dir", slog.String("path", absPath))
					}
					// Index any notebooks already in the new directory.
					h.indexNewDir(root, absPath)
					continue
				}
			}

			// Only process notebooks from here on.
			if !storage.IsNotebook(absPath) {
				continue
			}

			switch {
			case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
				h.index(rel)

			case ev.Op&fsnotify.Remove != 0:
				h.remove(rel)

			case ev.Op&fsnotify.Rename != 0:
				// fsnotify fires Rename on the OLD path only. The new
				// path will arrive as a separate Create event (if it
				// stays within a watched dir). We delete the old entry
				// immediately and schedule a short reconciliation pass
				// to catch any stragglers.
				h.remove(rel)
				scheduleReconcile()
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

type handler struct {
	db     *DB
	store  storage.Provider
	logger *slog.Logger
	cb     EventCallback
	export ExportFunc
}

// index reads, parses and upserts one notebook, then re-exports it if
// exporting is enabled. Content whose checksum is already indexed is skipped.
func (h *handler) index(rel string) {
	data, err := h.store.Read(rel)
	if err != nil {
		h.logger.Warn("watcher: read failed", slog.String("path", rel), slog.String("error", err.Error()))
		return
	}
	prev, err := h.db.GetChecksum(rel)
	if err != nil {
		h.logger.Warn("watcher: checksum lookup failed", slog.String("path", rel), slog.String("error", err.Error()))
		return
	}
	if prev == checksum.Sum(data) {
		return
	}
	kind := EventUpdated
	if prev == "" {
		kind = EventCreated
	}
	if err := indexFile(h.db, rel, data, time.Now()); err != nil {
		h.logger.Warn("watcher: index failed", slog.String("path", rel), slog.String("error", err.Error()))
		return
	}
	h.logger.Debug("watcher: indexed", slog.String("path", rel), slog.String("op", kind))
	h.cb(kind, rel)

	if h.export == nil {
		return
	}
	out, err := h.export(rel)
	if err != nil {
		h.logger.Warn("watcher: export failed", slog.String("path", rel), slog.String("error", err.Error()))
		return
	}
	h.logger.Debug("watcher: exported", slog.String("path", rel), slog.String("output", out))
	h.cb(EventExported, rel)
}

func (h *handler) remove(rel string) {
	if prev, _ := h.db.GetChecksum(rel); prev == "" {
		return
	}
	if err := h.db.DeleteNotebook(rel); err != nil {
		h.logger.Warn("watcher: delete failed", slog.String("path", rel), slog.String("error", err.Error()))
		return
	}
	h.logger.Debug("watcher: deleted", slog.String("path", rel))
	h.cb(EventDeleted, rel)
}

// reconcile does a lightweight sync using batch lookups: finds index entries
// without a corresponding file on disk and removes them, and finds on-disk
// notebooks that are not indexed and indexes them.
func (h *handler) reconcile() {
	checksums, err := h.db.AllChecksums()
	if err != nil {
		h.logger.Warn("reconcile: all checksums failed", slog.String("error", err.Error()))
		return
	}

	metas, err := h.store.List("")
	if err != nil {
		h.logger.Warn("reconcile: list failed", slog.String("error", err.Error()))
		return
	}

	disk := make(map[string]string, len(metas))
	for _, m := range metas {
		disk[m.Path] = m.Checksum
	}

	for p := range checksums {
		if _, ok := disk[p]; !ok {
			h.remove(p)
		}
	}

	for p, cs := range disk {
		if checksums[p] == cs {
			continue
		}
		h.index(p)
	}
}

// indexNewDir indexes any notebooks found in a newly created directory.
func (h *handler) indexNewDir(root, dirPath string) {
	_ = filepath.WalkDir(dirPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if path != dirPath && storage.SkipDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if !storage.IsNotebook(path) {
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return nil
		}
		h.index(filepath.ToSlash(rel))
		return nil
	})
}

// ignored reports whether rel lies inside a skipped directory.
func ignored(rel string) bool {
	dir := filepath.Dir(rel)
	if dir == "." {
		return false
	}
	for _, part := range strings.Split(filepath.ToSlash(dir), "/") {
		if storage.SkipDir(part) {
			return true
		}
	}
	return false
}

// addDirsRecursive adds root and all its non-hidden subdirectories to the watcher.
func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && storage.SkipDir(d.Name()) {
			return filepath.SkipDir
		}
		return w.Add(path)
	})
}
