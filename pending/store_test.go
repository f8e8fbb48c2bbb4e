package pending_test

import (
	"context"
	"testing"
	"time"

	"github.com/parquedb/parquedb/pending"
	"github.com/parquedb/parquedb/storage/memory"
)

func TestAddAndByNamespace(t *testing.T) {
	ctx := context.Background()
	backend := memory.New()
	store := pending.New(backend)

	e1, err := store.Add(ctx, pending.Entry{
		Namespace: "posts", Path: "data/posts/pending/a.parquet",
		RowCount: 10, FirstSeq: 1, LastSeq: 10, CreatedAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if e1.PendingID == "" {
		t.Fatalf("expected assigned pending id")
	}

	_, err = store.Add(ctx, pending.Entry{
		Namespace: "posts", Path: "data/posts/pending/b.parquet",
		RowCount: 5, FirstSeq: 11, LastSeq: 15, CreatedAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("add: %v", err)
	}

	entries, err := store.ByNamespace(ctx, "posts", 0, 0)
	if err != nil {
		t.Fatalf("by namespace: %v", err)
	}
	if len(entries) != 2 || entries[0].FirstSeq != 1 || entries[1].FirstSeq != 11 {
		t.Fatalf("unexpected entries: %+v", entries)
	}
}

func TestRemoveAndPersistenceAcrossInstances(t *testing.T) {
	ctx := context.Background()
	backend := memory.New()
	store1 := pending.New(backend)
	e, _ := store1.Add(ctx, pending.Entry{
		Namespace: "posts", Path: "data/posts/pending/a.parquet",
		RowCount: 10, FirstSeq: 1, LastSeq: 10, CreatedAt: time.Now(),
	})

	store2 := pending.New(backend)
	entries, err := store2.ByNamespace(ctx, "posts", 0, 0)
	if err != nil {
		t.Fatalf("by namespace: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected persisted entry to be visible from a fresh store, got %d", len(entries))
	}

	if err := store2.Remove(ctx, e.PendingID); err != nil {
		t.Fatalf("remove: %v", err)
	}
	entries, _ = store2.ByNamespace(ctx, "posts", 0, 0)
	if len(entries) != 0 {
		t.Fatalf("expected entry removed, got %d", len(entries))
	}

	store3 := pending.New(backend)
	entries, _ = store3.ByNamespace(ctx, "posts", 0, 0)
	if len(entries) != 0 {
		t.Fatalf("expected removal to persist, got %d", len(entries))
	}
}

func TestMaxLastSeq(t *testing.T) {
	ctx := context.Background()
	backend := memory.New()
	store := pending.New(backend)
	store.Add(ctx, pending.Entry{Namespace: "posts", FirstSeq: 1, LastSeq: 10, CreatedAt: time.Now()})
	store.Add(ctx, pending.Entry{Namespace: "posts", FirstSeq: 11, LastSeq: 20, CreatedAt: time.Now()})

	max, err := store.MaxLastSeq(ctx, "posts")
	if err != nil {
		t.Fatalf("max last seq: %v", err)
	}
	if max != 20 {
		t.Fatalf("want 20, got %d", max)
	}
}
