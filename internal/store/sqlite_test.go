package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/skypro1111/live-summary-service/internal/session"
	"github.com/skypro1111/live-summary-service/internal/summary"
	"github.com/skypro1111/live-summary-service/internal/transcript"
)

func openTestStore(t *testing.T) *SQLite {
	t.Helper()

	path := filepath.Join(t.TempDir(), "snapshots.sqlite")
	s, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSessionRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	sess := session.Session{
		ID:        "sess-1",
		Status:    session.StatusInProgress,
		Title:     "Weekly sync",
		Attendees: []string{"ana", "bo"},
		CreatedAt: time.Now().Truncate(time.Millisecond),
		UpdatedAt: time.Now().Truncate(time.Millisecond),
	}
	if err := s.SaveSession(ctx, sess); err != nil {
		t.Fatalf("SaveSession failed: %v", err)
	}

	got, err := s.LoadSession(ctx, "sess-1")
	if err != nil {
		t.Fatalf("LoadSession failed: %v", err)
	}
	if got.Status != session.StatusInProgress {
		t.Errorf("Expected status in_progress, got %s", got.Status)
	}
	if got.Title != "Weekly sync" {
		t.Errorf("Expected title preserved, got %q", got.Title)
	}
	if len(got.Attendees) != 2 || got.Attendees[0] != "ana" {
		t.Errorf("Expected attendees preserved, got %v", got.Attendees)
	}

	// Upsert replaces the row.
	sess.Status = session.StatusCompleted
	if err := s.SaveSession(ctx, sess); err != nil {
		t.Fatalf("SaveSession upsert failed: %v", err)
	}
	got, err = s.LoadSession(ctx, "sess-1")
	if err != nil {
		t.Fatalf("LoadSession after upsert failed: %v", err)
	}
	if got.Status != session.StatusCompleted {
		t.Errorf("Expected upserted status completed, got %s", got.Status)
	}
}

func TestLoadSessionNotFound(t *testing.T) {
	s := openTestStore(t)

	_, err := s.LoadSession(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestSegmentsRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	segments := []transcript.Segment{
		{Index: 0, Start: 0, End: 2 * time.Second, Text: "Hello everyone.", Speaker: "spk0"},
		{Index: 1, Start: 2 * time.Second, End: 5 * time.Second, Text: "Let's begin."},
	}
	if err := s.SaveSegments(ctx, "sess-1", segments); err != nil {
		t.Fatalf("SaveSegments failed: %v", err)
	}

	got, err := s.LoadSegments(ctx, "sess-1")
	if err != nil {
		t.Fatalf("LoadSegments failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Expected 2 segments, got %d", len(got))
	}
	if got[0].Text != "Hello everyone." || got[0].Speaker != "spk0" {
		t.Errorf("Segment 0 mismatch: %+v", got[0])
	}
	if got[1].Start != 2*time.Second {
		t.Errorf("Expected segment 1 start 2s, got %v", got[1].Start)
	}
}

func TestSummaryRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	state := summary.State{
		Streaming:                 "partial tail",
		Draft:                     "pending topic text",
		Done:                      "finalized transcript",
		Interim:                   "current topic summary",
		Summarized:                "finalized summaries",
		LastProcessedSegmentIndex: 7,
		UpdatedAt:                 time.Now().Truncate(time.Millisecond),
	}
	if err := s.SaveSummary(ctx, "sess-1", state); err != nil {
		t.Fatalf("SaveSummary failed: %v", err)
	}

	got, err := s.LoadSummary(ctx, "sess-1")
	if err != nil {
		t.Fatalf("LoadSummary failed: %v", err)
	}
	if got.Streaming != state.Streaming || got.Draft != state.Draft ||
		got.Done != state.Done || got.Interim != state.Interim ||
		got.Summarized != state.Summarized {
		t.Errorf("Summary buffers not preserved: %+v", got)
	}
	if got.LastProcessedSegmentIndex != 7 {
		t.Errorf("Expected watermark 7, got %d", got.LastProcessedSegmentIndex)
	}

	_, err = s.LoadSummary(ctx, "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound for missing summary, got %v", err)
	}
}
