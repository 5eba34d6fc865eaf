package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ironsheep/coin-counter/internal/coins"
	"github.com/ironsheep/coin-counter/internal/detection"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "history", "runs.db"))
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleResult() *coins.Result {
	ellipse := func(x, y float64) detection.Candidate {
		return detection.Candidate{Ellipse: detection.Ellipse{
			Center: detection.Point{X: x, Y: y}, Major: 80, Minor: 79,
		}}
	}
	return &coins.Result{
		Width:  640,
		Height: 480,
		Scale:  1,
		Detections: []coins.Detection{
			{Candidate: ellipse(100, 100), Coin: &coins.ClassifiedCoin{Denomination: coins.Quarter, Side: coins.Heads, MatchPercent: 45.2}},
			{Candidate: ellipse(300, 100)},
			{Candidate: ellipse(500, 300), Coin: &coins.ClassifiedCoin{Denomination: coins.Penny, Side: coins.Tails, MatchPercent: 39.1}},
		},
		Total: 26,
	}
}

func TestOpen_CreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "runs.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
	if s.Path() != path {
		t.Errorf("Path() = %q, want %q", s.Path(), path)
	}

	// Reopening an existing database keeps the schema.
	s.Close()
	s2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	s2.Close()
}

func TestRecordAndRecent(t *testing.T) {
	s := openTestStore(t)
	fixed := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }
	ctx := context.Background()

	id, err := s.Record(ctx, "coins.jpg", sampleResult())
	if err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if id <= 0 {
		t.Errorf("run id = %d, want positive", id)
	}

	runs, err := s.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("got %d runs, want 1", len(runs))
	}

	r := runs[0]
	if r.ID != id || r.Image != "coins.jpg" {
		t.Errorf("run = %d %q, want %d coins.jpg", r.ID, r.Image, id)
	}
	if !r.CreatedAt.Equal(fixed) {
		t.Errorf("CreatedAt = %v, want %v", r.CreatedAt, fixed)
	}
	if r.Width != 640 || r.Height != 480 || r.Candidates != 3 {
		t.Errorf("run dims/candidates = %dx%d/%d", r.Width, r.Height, r.Candidates)
	}
	if r.Total != 26 {
		t.Errorf("Total = %d, want 26", r.Total)
	}

	if len(r.Coins) != 2 {
		t.Fatalf("got %d coins, want 2", len(r.Coins))
	}
	first, second := r.Coins[0], r.Coins[1]
	if first.Position != 0 || first.Denomination != coins.Quarter || first.Side != coins.Heads {
		t.Errorf("first coin = %+v", first)
	}
	if first.MatchPercent != 45.2 || first.CenterX != 100 || first.Major != 80 {
		t.Errorf("first coin geometry = %+v", first)
	}
	if second.Position != 2 || second.Denomination != coins.Penny || second.Side != coins.Tails {
		t.Errorf("second coin = %+v", second)
	}
}

func TestRecent_NewestFirstAndLimit(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for _, name := range []string{"a.jpg", "b.jpg", "c.jpg"} {
		if _, err := s.Record(ctx, name, &coins.Result{}); err != nil {
			t.Fatalf("Record(%s) failed: %v", name, err)
		}
	}

	runs, err := s.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("got %d runs, want 2", len(runs))
	}
	if runs[0].Image != "c.jpg" || runs[1].Image != "b.jpg" {
		t.Errorf("order = %s, %s; want c.jpg, b.jpg", runs[0].Image, runs[1].Image)
	}
	if len(runs[0].Coins) != 0 {
		t.Errorf("empty result should have no coins, got %d", len(runs[0].Coins))
	}

	none, err := s.Recent(ctx, 0)
	if err != nil {
		t.Fatalf("Recent(0) failed: %v", err)
	}
	if len(none) != 0 {
		t.Errorf("Recent(0) returned %d runs", len(none))
	}
}

func TestRecord_NilResult(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.Record(context.Background(), "x.jpg", nil); err == nil {
		t.Error("expected error for nil result")
	}
}

func TestRecord_CancelledContext(t *testing.T) {
	s := openTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := s.Record(ctx, "x.jpg", sampleResult()); err == nil {
		t.Error("expected error for cancelled context")
	}

	runs, err := s.Recent(context.Background(), 10)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(runs) != 0 {
		t.Errorf("cancelled record left %d runs behind", len(runs))
	}
}
