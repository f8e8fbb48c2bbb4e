package engine_test

import (
	"context"
	"testing"
	"time"

	"github.com/parquedb/parquedb/engine"
	"github.com/parquedb/parquedb/storage/memory"
	"github.com/parquedb/parquedb/wal"
)

func TestGetHistoryRecordsCreateAndUpdate(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	e := engine.New(engine.Config{Backend: memory.New(), Clock: func() time.Time { return now }})
	t.Cleanup(e.Dispose)
	ctx := context.Background()

	ent, err := e.Create(ctx, "docs", map[string]any{"v": float64(1)}, engine.CreateOptions{Actor: "alice"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := e.Update(ctx, "docs", ent.ID, engine.UpdateOps{Set: map[string]any{"v": float64(2)}},
		engine.UpdateOptions{Actor: "bob"}); err != nil {
		t.Fatalf("update: %v", err)
	}

	history, err := e.GetHistory(ctx, "docs", ent.ID, engine.HistoryOptions{})
	if err != nil {
		t.Fatalf("getHistory: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 events, got %d", len(history))
	}
	if history[0].Op != string(wal.OpCreate) || history[0].Actor != "alice" {
		t.Fatalf("expected first event to be the create by alice, got %+v", history[0])
	}
	if history[1].Op != string(wal.OpUpdate) || history[1].Actor != "bob" {
		t.Fatalf("expected second event to be the update by bob, got %+v", history[1])
	}
}

func TestGetHistoryLimit(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	ent, err := e.Create(ctx, "docs", map[string]any{}, engine.CreateOptions{})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	for i := 0; i < 5; i++ {
		if _, err := e.Update(ctx, "docs", ent.ID, engine.UpdateOps{Set: map[string]any{"n": float64(i)}}, engine.UpdateOptions{}); err != nil {
			t.Fatalf("update: %v", err)
		}
	}
	history, err := e.GetHistory(ctx, "docs", ent.ID, engine.HistoryOptions{Limit: 2})
	if err != nil {
		t.Fatalf("getHistory: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected limit to cap at 2 events, got %d", len(history))
	}
}

func TestAsOfReconstructsPastState(t *testing.T) {
	t1 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Hour)
	cur := t1

	e := engine.New(engine.Config{Backend: memory.New(), Clock: func() time.Time { return cur }})
	t.Cleanup(e.Dispose)
	ctx := context.Background()

	ent, err := e.Create(ctx, "docs", map[string]any{"status": "draft"}, engine.CreateOptions{})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	cur = t2
	if _, err := e.Update(ctx, "docs", ent.ID, engine.UpdateOps{Set: map[string]any{"status": "published"}}, engine.UpdateOptions{}); err != nil {
		t.Fatalf("update: %v", err)
	}

	past, err := e.AsOf(ctx, "docs", ent.ID, t1.Add(time.Minute), false)
	if err != nil {
		t.Fatalf("asOf past: %v", err)
	}
	if past == nil || past.Fields["status"] != "draft" {
		t.Fatalf("expected draft at t1, got %+v", past)
	}

	now, err := e.AsOf(ctx, "docs", ent.ID, t2.Add(time.Minute), false)
	if err != nil {
		t.Fatalf("asOf now: %v", err)
	}
	if now == nil || now.Fields["status"] != "published" {
		t.Fatalf("expected published at t2, got %+v", now)
	}

	before, err := e.AsOf(ctx, "docs", ent.ID, t1.Add(-time.Minute), false)
	if err != nil {
		t.Fatalf("asOf before creation: %v", err)
	}
	if before != nil {
		t.Fatalf("expected nil before creation, got %+v", before)
	}
}

func TestAsOfHardDeleteLeavesNothingToReconstruct(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	ent, err := e.Create(ctx, "docs", map[string]any{}, engine.CreateOptions{})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := e.Delete(ctx, "docs", ent.ID, engine.DeleteOptions{Hard: true}); err != nil {
		t.Fatalf("delete: %v", err)
	}

	got, err := e.AsOf(ctx, "docs", ent.ID, time.Now().Add(time.Hour), true)
	if err != nil {
		t.Fatalf("asOf: %v", err)
	}
	if got != nil {
		t.Fatalf("expected hard-deleted entity unreconstructable, got %+v", got)
	}
}
