package engine_test

import (
	"context"
	"testing"

	"github.com/parquedb/parquedb/engine"
	"github.com/parquedb/parquedb/entity"
)

func TestFindFiltersSortsAndPaginates(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if _, err := e.Create(ctx, "items", map[string]any{"n": float64(i)}, engine.CreateOptions{}); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	res, err := e.Find(ctx, "items", engine.Filter{"n": map[string]any{"$gte": float64(2)}}, engine.FindOptions{
		Sort:  []engine.SortField{{Field: "n", Desc: true}},
		Limit: 2,
	})
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(res.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(res.Items))
	}
	if res.Items[0].Fields["n"] != float64(4) || res.Items[1].Fields["n"] != float64(3) {
		t.Fatalf("expected descending order 4,3, got %v, %v", res.Items[0].Fields["n"], res.Items[1].Fields["n"])
	}
	if !res.HasMore {
		t.Fatalf("expected hasMore since n=2 also matches")
	}

	next, err := e.Find(ctx, "items", engine.Filter{"n": map[string]any{"$gte": float64(2)}}, engine.FindOptions{
		Sort:   []engine.SortField{{Field: "n", Desc: true}},
		Limit:  2,
		Cursor: res.NextCursor,
	})
	if err != nil {
		t.Fatalf("find with cursor: %v", err)
	}
	if len(next.Items) != 1 || next.Items[0].Fields["n"] != float64(2) {
		t.Fatalf("expected cursor to resume with n=2, got %+v", next.Items)
	}
}

func TestFindExcludesSoftDeletedByDefault(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	ent, err := e.Create(ctx, "items", map[string]any{}, engine.CreateOptions{})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := e.Delete(ctx, "items", ent.ID, engine.DeleteOptions{}); err != nil {
		t.Fatalf("delete: %v", err)
	}

	res, err := e.Find(ctx, "items", engine.Filter{}, engine.FindOptions{})
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(res.Items) != 0 {
		t.Fatalf("expected soft-deleted item excluded, got %d items", len(res.Items))
	}

	res, err = e.Find(ctx, "items", engine.Filter{}, engine.FindOptions{IncludeDeleted: true})
	if err != nil {
		t.Fatalf("find with includeDeleted: %v", err)
	}
	if len(res.Items) != 1 {
		t.Fatalf("expected 1 item with includeDeleted, got %d", len(res.Items))
	}
}

func TestCountAndExists(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := e.Create(ctx, "items", map[string]any{"tag": "a"}, engine.CreateOptions{}); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	if _, err := e.Create(ctx, "items", map[string]any{"tag": "b"}, engine.CreateOptions{}); err != nil {
		t.Fatalf("create: %v", err)
	}

	n, err := e.Count(ctx, "items", engine.Filter{"tag": "a"}, false)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3, got %d", n)
	}

	ok, err := e.Exists(ctx, "items", engine.Filter{"tag": "c"}, false)
	if err != nil {
		t.Fatalf("exists: %v", err)
	}
	if ok {
		t.Fatalf("expected no match for tag c")
	}
}

func TestGetProjectKeepsOnlyRequestedFields(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	ent, err := e.Create(ctx, "items", map[string]any{"a": 1, "b": 2}, engine.CreateOptions{})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := e.Get(ctx, "items", ent.ID, engine.GetOptions{Project: []string{"a"}})
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if _, ok := got.Fields["a"]; !ok {
		t.Fatalf("expected field a kept, got %v", got.Fields)
	}
	if _, ok := got.Fields["b"]; ok {
		t.Fatalf("expected field b dropped by projection, got %v", got.Fields)
	}
}

func TestGetHydratePopulatesLinkedEntity(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	author, err := e.Create(ctx, "users", map[string]any{"name": "alice"}, engine.CreateOptions{})
	if err != nil {
		t.Fatalf("create author: %v", err)
	}
	post, err := e.Create(ctx, "posts", map[string]any{}, engine.CreateOptions{})
	if err != nil {
		t.Fatalf("create post: %v", err)
	}
	if _, err := e.Update(ctx, "posts", post.ID, engine.UpdateOps{
		Link: map[string]any{"author": author.ID},
	}, engine.UpdateOptions{}); err != nil {
		t.Fatalf("link author: %v", err)
	}

	got, err := e.Get(ctx, "posts", post.ID, engine.GetOptions{Hydrate: []string{"author"}})
	if err != nil {
		t.Fatalf("get with hydrate: %v", err)
	}
	resolved, ok := got.Fields["author"].(map[string]*entity.Entity)
	if !ok {
		t.Fatalf("expected author field hydrated into resolved entities, got %T", got.Fields["author"])
	}
	found, ok := resolved[author.ID]
	if !ok || found == nil || found.Fields["name"] != "alice" {
		t.Fatalf("expected resolved author alice, got %+v", resolved)
	}
}
