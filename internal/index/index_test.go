package index

import (
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/starford/nbmark/internal/apperr"
	"github.com/starford/nbmark/internal/checksum"
	"github.com/starford/nbmark/internal/parser"
	"github.com/starford/nbmark/internal/storage"
	"github.com/starford/nbmark/internal/testutil/fixture"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	f, err := os.CreateTemp("", "nbmark-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	f.Close()
	t.Cleanup(func() { os.Remove(f.Name()) })

	db, err := Open(f.Name())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func row(path, title, cs string) NotebookRow {
	return NotebookRow{Path: path, Title: title, Checksum: cs, NBFormat: 4, NBFormatMinor: 5, UpdatedAt: time.Now()}
}

func TestSchemaCreation(t *testing.T) {
	db := testDB(t)
	var count int
	if err := db.conn.QueryRow(`SELECT count(*) FROM notebooks`).Scan(&count); err != nil {
		t.Fatalf("notebooks table missing: %v", err)
	}
	if err := db.conn.QueryRow(`SELECT count(*) FROM cells`).Scan(&count); err != nil {
		t.Fatalf("cells table missing: %v", err)
	}
}

func TestUpsertAndGetChecksum(t *testing.T) {
	db := testDB(t)
	cells := []CellRow{{Position: 0, ID: "a", Type: "markdown", Source: "# Hello"}}
	if err := db.UpsertNotebook(row("hello.ipynb", "Hello", "abc123"), cells); err != nil {
		t.Fatalf("UpsertNotebook: %v", err)
	}
	cs, err := db.GetChecksum("hello.ipynb")
	if err != nil {
		t.Fatalf("GetChecksum: %v", err)
	}
	if cs != "abc123" {
		t.Errorf("checksum = %q, want %q", cs, "abc123")
	}
}

func TestGetChecksum_NotFound(t *testing.T) {
	db := testDB(t)
	cs, err := db.GetChecksum("nonexistent.ipynb")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cs != "" {
		t.Errorf("expected empty checksum, got %q", cs)
	}
}

func TestUpsertReplacesCells(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertNotebook(row("up.ipynb", "Old", "1"), []CellRow{
		{Position: 0, ID: "a", Type: "code", Source: "old"},
		{Position: 1, ID: "b", Type: "code", Source: "old too"},
	})
	_ = db.UpsertNotebook(row("up.ipynb", "New", "2"), []CellRow{
		{Position: 0, ID: "c", Type: "markdown", Source: "new"},
	})

	var n int
	if err := db.conn.QueryRow(`SELECT count(*) FROM cells WHERE path = ?`, "up.ipynb").Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("cells = %d, want 1 after replace", n)
	}
	got, err := db.GetNotebook("up.ipynb")
	if err != nil {
		t.Fatalf("GetNotebook: %v", err)
	}
	if got.Title != "New" || got.Checksum != "2" {
		t.Errorf("row not updated: %+v", got)
	}
}

func TestDeleteNotebook(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertNotebook(row("del.ipynb", "Del", "x"), []CellRow{{Position: 0, ID: "a", Type: "code", Source: "goodbye"}})

	if err := db.DeleteNotebook("del.ipynb"); err != nil {
		t.Fatalf("DeleteNotebook: %v", err)
	}
	if cs, _ := db.GetChecksum("del.ipynb"); cs != "" {
		t.Errorf("deleted notebook still has checksum %q", cs)
	}
	if _, err := db.GetNotebook("del.ipynb"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("GetNotebook after delete: err = %v, want ErrNotFound", err)
	}
	results, _ := db.Search("goodbye", 10)
	if len(results) != 0 {
		t.Errorf("cells survived delete: %+v", results)
	}
}

func TestGetNotebook_RoundTrip(t *testing.T) {
	db := testDB(t)
	want := NotebookRow{
		Path: "rt.ipynb", Title: "Round trip", Checksum: "cs",
		NBFormat: 4, NBFormatMinor: 5,
		Cells: 3, CodeCells: 2, Outputs: 4, ErrorOutputs: 1,
		UpdatedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	if err := db.UpsertNotebook(want, nil); err != nil {
		t.Fatalf("UpsertNotebook: %v", err)
	}
	got, err := db.GetNotebook("rt.ipynb")
	if err != nil {
		t.Fatalf("GetNotebook: %v", err)
	}
	if diff := cmp.Diff(want, *got, cmp.Comparer(func(a, b time.Time) bool { return a.Equal(b) })); diff != "" {
		t.Errorf("row mismatch (-want +got):\n%s", diff)
	}
}

func TestListNotebooks(t *testing.T) {
	db := testDB(t)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, p := range []string{"b.ipynb", "a.ipynb", "c.ipynb"} {
		r := row(p, map[string]string{"a.ipynb": "Zeta", "b.ipynb": "alpha", "c.ipynb": "Mid"}[p], "cs")
		r.UpdatedAt = base.Add(time.Duration(i) * time.Hour)
		if err := db.UpsertNotebook(r, nil); err != nil {
			t.Fatal(err)
		}
	}

	paths := func(rows []NotebookRow) []string {
		out := make([]string, len(rows))
		for i, r := range rows {
			out[i] = r.Path
		}
		return out
	}

	tests := []struct {
		sort          string
		limit, offset int
		want          []string
	}{
		{"", 10, 0, []string{"a.ipynb", "b.ipynb", "c.ipynb"}},
		{"title", 10, 0, []string{"b.ipynb", "c.ipynb", "a.ipynb"}},
		{"updated", 10, 0, []string{"c.ipynb", "a.ipynb", "b.ipynb"}},
		{"path", 1, 1, []string{"b.ipynb"}},
	}
	for _, tt := range tests {
		rows, total, err := db.ListNotebooks(tt.limit, tt.offset, tt.sort)
		if err != nil {
			t.Fatalf("ListNotebooks(%q): %v", tt.sort, err)
		}
		if total != 3 {
			t.Errorf("total = %d, want 3", total)
		}
		if diff := cmp.Diff(tt.want, paths(rows)); diff != "" {
			t.Errorf("sort=%q limit=%d offset=%d (-want +got):\n%s", tt.sort, tt.limit, tt.offset, diff)
		}
	}

	if _, _, err := db.ListNotebooks(10, 0, "size"); !errors.Is(err, apperr.ErrUnsupported) {
		t.Errorf("unknown sort: err = %v, want ErrUnsupported", err)
	}
}

func TestSearch_Basic(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertNotebook(row("s.ipynb", "Search Me", "1"), []CellRow{
		{Position: 0, ID: "intro", Type: "markdown", Source: "# Search Me"},
		{Position: 1, ID: "calc", Type: "code", Source: "uniqueword = 1"},
	})

	results, err := db.Search("uniqueword", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].Path != "s.ipynb" || results[0].CellID != "calc" {
		t.Errorf("search results = %+v, want 1 hit for s.ipynb#calc", results)
	}
	if results[0].Title != "Search Me" {
		t.Errorf("title = %q", results[0].Title)
	}
}

func TestAllChecksums(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertNotebook(row("a.ipynb", "A", "1"), nil)
	_ = db.UpsertNotebook(row("b.ipynb", "B", "2"), nil)

	got, err := db.AllChecksums()
	if err != nil {
		t.Fatalf("AllChecksums: %v", err)
	}
	if diff := cmp.Diff(map[string]string{"a.ipynb": "1", "b.ipynb": "2"}, got); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
}

func TestRows(t *testing.T) {
	nb, err := parser.Parse("reports/sample.ipynb", []byte(fixture.Sample))
	if err != nil {
		t.Fatal(err)
	}
	now := time.Now()
	r, cells := Rows(nb, "cs", now)
	want := NotebookRow{
		Path: "reports/sample.ipynb", Title: "Sales analysis", Checksum: "cs",
		NBFormat: 4, NBFormatMinor: 5,
		Cells: 7, CodeCells: 4, Outputs: 3, ErrorOutputs: 1,
		UpdatedAt: now,
	}
	if diff := cmp.Diff(want, r); diff != "" {
		t.Errorf("row (-want +got):\n%s", diff)
	}
	if len(cells) != 7 || cells[1].ID != "load" || cells[1].Type != "code" || cells[6].Source != "The end.\nThanks." {
		t.Errorf("cells = %+v", cells)
	}

	untitled, err := parser.Parse("dir/scratch.ipynb", []byte(fixture.Minimal))
	if err != nil {
		t.Fatal(err)
	}
	if r, _ := Rows(untitled, "cs", now); r.Title != "scratch" {
		t.Errorf("fallback title = %q, want scratch", r.Title)
	}
}

func TestSync(t *testing.T) {
	dir := t.TempDir()
	store, err := storage.NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	db := testDB(t)
	logger := quietLogger()

	fixture.Write(t, dir, "sample.ipynb", fixture.Sample)
	fixture.Write(t, dir, "nested/min.ipynb", fixture.Minimal)
	fixture.Write(t, dir, "broken.ipynb", `{"nbformat": 4}`)

	res, err := Sync(db, store, logger)
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if diff := cmp.Diff(SyncResult{Indexed: 2, Failed: 1}, res); diff != "" {
		t.Errorf("first sync (-want +got):\n%s", diff)
	}
	cs, _ := db.GetChecksum("sample.ipynb")
	if cs != checksum.Sum([]byte(fixture.Sample)) {
		t.Errorf("sample checksum = %q", cs)
	}
	if _, err := db.GetNotebook("broken.ipynb"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("broken notebook indexed: err = %v", err)
	}

	if err := os.Remove(dir + "/nested/min.ipynb"); err != nil {
		t.Fatal(err)
	}
	res, err = Sync(db, store, logger)
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if diff := cmp.Diff(SyncResult{Unchanged: 1, Removed: 1, Failed: 1}, res); diff != "" {
		t.Errorf("second sync (-want +got):\n%s", diff)
	}
}
