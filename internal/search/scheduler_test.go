package search

import (
	"context"
	"testing"
	"time"
)

func TestSchedulerRejectsBadSpec(t *testing.T) {
	if _, err := NewScheduler(&Gateway{}, "not a cron"); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestSchedulerIsDue(t *testing.T) {
	s, err := NewScheduler(&Gateway{}, "0 * * * *")
	if err != nil {
		t.Fatalf("NewScheduler: %v", err)
	}
	now := time.Date(2026, 3, 1, 10, 30, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	if !s.IsDue(nil) {
		t.Fatalf("never-run schedule must be due")
	}
	recent := time.Date(2026, 3, 1, 10, 5, 0, 0, time.UTC)
	if s.IsDue(&recent) {
		t.Fatalf("next run is 11:00, must not be due at 10:30")
	}
	old := time.Date(2026, 3, 1, 9, 55, 0, 0, time.UTC)
	if !s.IsDue(&old) {
		t.Fatalf("10:00 run was missed, must be due")
	}
	if next := s.Next(now); !next.Equal(time.Date(2026, 3, 1, 11, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected next run %s", next)
	}
}

func TestSchedulerShorthand(t *testing.T) {
	s, err := NewScheduler(&Gateway{}, "@daily")
	if err != nil {
		t.Fatalf("NewScheduler: %v", err)
	}
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	if next := s.Next(base); !next.Equal(time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected next daily run %s", next)
	}
}

func TestSchedulerRunsReindex(t *testing.T) {
	dir := t.TempDir()
	writeSnapshot(t, dir, "", testChunks)
	eng := NewBleve("")
	defer eng.Close()
	g := &Gateway{Engine: eng, Index: "chunks", WorkingDir: dir}

	// cronexpr supports a seconds field when given 7 fields
	s, err := NewScheduler(g, "* * * * * * *")
	if err != nil {
		t.Fatalf("NewScheduler: %v", err)
	}
	s.Start(context.Background())
	defer s.Stop()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		st, err := g.Stats(context.Background())
		if err == nil && st.Count == int64(len(testChunks)) {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatalf("scheduler did not reindex within deadline")
}

func TestSchedulerStopWithoutStart(t *testing.T) {
	s, err := NewScheduler(&Gateway{}, "@hourly")
	if err != nil {
		t.Fatal(err)
	}
	s.Stop()
}
