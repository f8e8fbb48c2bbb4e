package engine_test

import (
	"context"
	"testing"
	"time"

	"github.com/parquedb/parquedb/engine"
	"github.com/parquedb/parquedb/storage/memory"
)

func TestCompactSkipsWhenNothingEligible(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	if _, err := e.Create(ctx, "docs", map[string]any{}, engine.CreateOptions{}); err != nil {
		t.Fatalf("create: %v", err)
	}
	res, err := e.Compact(ctx, "docs")
	if err != nil {
		t.Fatalf("compact: %v", err)
	}
	if res.Compacted {
		t.Fatalf("expected no-op compaction since no age/count threshold is configured, got %+v", res)
	}
}

func TestCompactByMaxPendingIgnoresAge(t *testing.T) {
	cur := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	e := engine.New(engine.Config{
		Backend:              memory.New(),
		Clock:                func() time.Time { return cur },
		CompactionMaxPending: 3,
	})
	t.Cleanup(e.Dispose)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := e.Create(ctx, "docs", map[string]any{"n": float64(i)}, engine.CreateOptions{}); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	res, err := e.Compact(ctx, "docs")
	if err != nil {
		t.Fatalf("compact: %v", err)
	}
	if !res.Compacted {
		t.Fatalf("expected compaction to run once pending count reached the threshold, got %+v", res)
	}
	if res.AbsorbedPending != 3 || res.RowCount != 3 {
		t.Fatalf("expected 3 absorbed entries folded into 3 rows, got %+v", res)
	}

	found, err := e.Find(ctx, "docs", engine.Filter{}, engine.FindOptions{})
	if err != nil {
		t.Fatalf("find after compact: %v", err)
	}
	if len(found.Items) != 3 {
		t.Fatalf("expected all 3 entities still readable post-compaction, got %d", len(found.Items))
	}
}

func TestCompactByMinAge(t *testing.T) {
	cur := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	e := engine.New(engine.Config{
		Backend:          memory.New(),
		Clock:            func() time.Time { return cur },
		CompactionMinAge: time.Hour,
	})
	t.Cleanup(e.Dispose)
	ctx := context.Background()

	if _, err := e.Create(ctx, "docs", map[string]any{}, engine.CreateOptions{}); err != nil {
		t.Fatalf("create: %v", err)
	}

	res, err := e.Compact(ctx, "docs")
	if err != nil {
		t.Fatalf("compact: %v", err)
	}
	if res.Compacted {
		t.Fatalf("expected compaction to skip a pending entry younger than CompactionMinAge, got %+v", res)
	}

	cur = cur.Add(2 * time.Hour)
	res, err = e.Compact(ctx, "docs")
	if err != nil {
		t.Fatalf("compact after aging: %v", err)
	}
	if !res.Compacted || res.AbsorbedPending != 1 {
		t.Fatalf("expected the now-aged pending entry to be absorbed, got %+v", res)
	}
}

func TestCompactMergesHighestSequencePerID(t *testing.T) {
	cur := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	e := engine.New(engine.Config{
		Backend:              memory.New(),
		Clock:                func() time.Time { return cur },
		CompactionMaxPending: 1,
	})
	t.Cleanup(e.Dispose)
	ctx := context.Background()

	ent, err := e.Create(ctx, "docs", map[string]any{"v": float64(1)}, engine.CreateOptions{})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := e.Compact(ctx, "docs"); err != nil {
		t.Fatalf("first compact: %v", err)
	}

	if _, err := e.Update(ctx, "docs", ent.ID, engine.UpdateOps{Set: map[string]any{"v": float64(2)}}, engine.UpdateOptions{}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if _, err := e.Compact(ctx, "docs"); err != nil {
		t.Fatalf("second compact: %v", err)
	}

	got, err := e.Get(ctx, "docs", ent.ID, engine.GetOptions{})
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil || got.Fields["v"] != float64(2) {
		t.Fatalf("expected the updated value to survive merge-by-highest-sequence, got %+v", got)
	}

	found, err := e.Find(ctx, "docs", engine.Filter{}, engine.FindOptions{})
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(found.Items) != 1 {
		t.Fatalf("expected exactly one live row for the entity after merge, got %d", len(found.Items))
	}
}

func TestHealthReportsPendingBacklog(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	if _, err := e.Create(ctx, "docs", map[string]any{}, engine.CreateOptions{}); err != nil {
		t.Fatalf("create: %v", err)
	}
	h, err := e.Health(ctx, "docs")
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	if h.TotalPendingFiles != 1 {
		t.Fatalf("expected 1 pending file, got %d", h.TotalPendingFiles)
	}
	if h.WindowsStuckInProcessing != 0 {
		t.Fatalf("expected windowsStuckInProcessing always 0, got %d", h.WindowsStuckInProcessing)
	}
	if h.Status != "healthy" {
		t.Fatalf("expected healthy status with no CompactionMinAge configured, got %s", h.Status)
	}
}
