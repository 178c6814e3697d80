package database

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nao1215/commentcrawl/internal/model"
)

// setupTestDB creates a temporary database for testing.
func setupTestDB(t *testing.T) (*CrawlDB, func()) {
	t.Helper()

	tmpDir := t.TempDir()

	db, err := Open(tmpDir, DefaultOptions())
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}

	cleanup := func() {
		_ = db.Close()
	}

	return db, cleanup
}

var testTarget = model.Target{URL: "https://www.bilibili.com/video/BV1GJ411x7h7/", ID: "BV1GJ411x7h7"}

// TestOpen tests database opening and creation.
func TestOpen(t *testing.T) {
	t.Parallel()

	t.Run("creates database in new directory", func(t *testing.T) {
		t.Parallel()

		dbDir := filepath.Join(t.TempDir(), "newdir", "subdir")
		db, err := Open(dbDir, DefaultOptions())
		if err != nil {
			t.Fatalf("failed to open database: %v", err)
		}
		defer db.Close()

		if _, err := os.Stat(filepath.Join(dbDir, DefaultFileName)); os.IsNotExist(err) {
			t.Error("database file was not created")
		}
	})

	t.Run("CreateIfNotExists=false fails for missing database", func(t *testing.T) {
		t.Parallel()

		opts := DefaultOptions()
		opts.CreateIfNotExists = false

		_, err := OpenFile(filepath.Join(t.TempDir(), "missing.db"), opts)
		if err == nil {
			t.Error("expected error for missing database")
		}
	})

	t.Run("reopens existing database", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "c.db")
		db, err := OpenFile(path, DefaultOptions())
		if err != nil {
			t.Fatal(err)
		}
		_ = db.Close()

		opts := DefaultOptions()
		opts.CreateIfNotExists = false
		db, err = OpenFile(path, opts)
		if err != nil {
			t.Fatalf("failed to reopen database: %v", err)
		}
		defer db.Close()

		if db.Path() != path {
			t.Errorf("Path() = %q, want %q", db.Path(), path)
		}
	})
}

// TestRunLifecycle tests storing a run with comments and finishing it.
func TestRunLifecycle(t *testing.T) {
	t.Parallel()

	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	started := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	if err := db.BeginRun(ctx, "run-1", testTarget, started); err != nil {
		t.Fatalf("BeginRun() error = %v", err)
	}

	batches := [][]model.CommentRecord{
		{
			{ID: 1, Contents: "A", PubDate: "2025-03-01", LikeCount: "3"},
			{ID: 2, Contents: "a1", ParentID: 1, PubDate: "2025-03-01", LikeCount: ""},
		},
		{
			{ID: 3, Contents: "B", PubDate: "昨天", LikeCount: "1.2万"},
		},
	}
	for _, b := range batches {
		if err := db.InsertComments(ctx, "run-1", b); err != nil {
			t.Fatalf("InsertComments() error = %v", err)
		}
	}

	got, err := db.Comments(ctx, "run-1")
	if err != nil {
		t.Fatalf("Comments() error = %v", err)
	}
	want := append(batches[0], batches[1]...)
	if len(got) != len(want) {
		t.Fatalf("got %d comments, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("comment %d = %+v, want %+v", i, got[i], want[i])
		}
	}

	report := model.NewCrawlReport(testTarget)
	report.RunID = "run-1"
	report.FinishedAt = started.Add(time.Minute)
	report.Stats = model.CrawlStats{Threads: 2, Replies: 1, Rows: 3}
	if err := db.FinishRun(ctx, report); err != nil {
		t.Fatalf("FinishRun() error = %v", err)
	}

	run, err := db.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetRun() error = %v", err)
	}
	if run.Rows != 3 || run.Threads != 2 || run.TargetID != testTarget.ID {
		t.Errorf("run = %+v", run)
	}
	if !run.StartedAt.Equal(started) {
		t.Errorf("StartedAt = %v, want %v", run.StartedAt, started)
	}
	if !run.FinishedAt.Equal(started.Add(time.Minute)) {
		t.Errorf("FinishedAt = %v", run.FinishedAt)
	}

	stored, err := db.GetReport(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetReport() error = %v", err)
	}
	if stored == nil || stored.Stats.Rows != 3 {
		t.Errorf("GetReport() = %+v", stored)
	}
}

// TestDuplicateCommentID tests that ids are unique per run.
func TestDuplicateCommentID(t *testing.T) {
	t.Parallel()

	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	if err := db.BeginRun(ctx, "run-1", testTarget, time.Now()); err != nil {
		t.Fatal(err)
	}

	rec := []model.CommentRecord{{ID: 1, Contents: "A"}}
	if err := db.InsertComments(ctx, "run-1", rec); err != nil {
		t.Fatal(err)
	}
	if err := db.InsertComments(ctx, "run-1", rec); err == nil {
		t.Error("expected error inserting a duplicate id")
	}

	comments, err := db.Comments(ctx, "run-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(comments) != 1 {
		t.Errorf("failed batch left %d rows, want 1", len(comments))
	}
}

// TestListRuns tests run listing order and filtering.
func TestListRuns(t *testing.T) {
	t.Parallel()

	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	other := model.Target{URL: "https://www.bilibili.com/video/BV1xx411c7mD/", ID: "BV1xx411c7mD"}

	if err := db.BeginRun(ctx, "old", testTarget, base); err != nil {
		t.Fatal(err)
	}
	if err := db.BeginRun(ctx, "new", testTarget, base.Add(500*time.Millisecond)); err != nil {
		t.Fatal(err)
	}
	if err := db.BeginRun(ctx, "other", other, base.Add(time.Hour)); err != nil {
		t.Fatal(err)
	}

	runs, err := db.ListRuns(ctx, testTarget.ID, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 2 || runs[0].ID != "new" || runs[1].ID != "old" {
		t.Errorf("ListRuns() = %+v, want [new old]", runs)
	}

	latest, err := db.LatestRun(ctx, "")
	if err != nil {
		t.Fatal(err)
	}
	if latest.ID != "other" {
		t.Errorf("LatestRun() = %s, want other", latest.ID)
	}

	if _, err := db.LatestRun(ctx, "BV0000000000"); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("LatestRun() error = %v, want ErrRunNotFound", err)
	}
	if _, err := db.GetRun(ctx, "missing"); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("GetRun() error = %v, want ErrRunNotFound", err)
	}
}

// TestParseTimestamp tests the timestamp fallback formats.
func TestParseTimestamp(t *testing.T) {
	t.Parallel()

	want := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	for _, s := range []string{"2025-01-02 03:04:05", "2025-01-02T03:04:05Z", formatTimestamp(want)} {
		if got := parseTimestamp(s); !got.Equal(want) {
			t.Errorf("parseTimestamp(%q) = %v, want %v", s, got, want)
		}
	}
	if got := parseTimestamp("garbage"); !got.IsZero() {
		t.Errorf("parseTimestamp(garbage) = %v, want zero", got)
	}
}
