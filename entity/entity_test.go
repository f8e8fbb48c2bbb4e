package entity

import (
	"testing"
	"time"
)

func TestDeriveTypeAndName(t *testing.T) {
	e := New("posts", "001", map[string]any{"title": "Hello"}, "actor1", time.Now())
	if e.Type != "Post" {
		t.Fatalf("expected Post, got %q", e.Type)
	}
	if e.Name != "Hello" {
		t.Fatalf("expected Hello, got %q", e.Name)
	}
	if e.ID != "posts/001" {
		t.Fatalf("unexpected id %q", e.ID)
	}
	if e.CreatedAt != e.UpdatedAt {
		t.Fatalf("createdAt must equal updatedAt on first write")
	}
}

func TestNamespaceValidation(t *testing.T) {
	cases := map[string]bool{
		"posts":   true,
		"Posts":   false,
		"_posts":  false,
		"$posts":  false,
		"a":       true,
		"":        false,
		"a/b":     false,
		"a-b_c9":  true,
		"9posts":  false,
	}
	for ns, want := range cases {
		err := ValidateNamespace(ns)
		if (err == nil) != want {
			t.Errorf("ValidateNamespace(%q) = %v, want ok=%v", ns, err, want)
		}
	}
}

func TestRelSetOrderingAndDedup(t *testing.T) {
	r := NewRelSet()
	r.Set("a", "users/1")
	r.Set("b", "users/2")
	r.Set("a", "users/1") // idempotent
	if r.Len() != 2 {
		t.Fatalf("expected 2 entries, got %d", r.Len())
	}
	if got := r.Labels(); got[0] != "a" || got[1] != "b" {
		t.Fatalf("unexpected label order: %v", got)
	}
	r.RemoveID("users/2")
	if r.Len() != 1 {
		t.Fatalf("expected 1 entry after RemoveID, got %d", r.Len())
	}
}

func TestEncodeLocalIDSortable(t *testing.T) {
	a := EncodeLocalID(1)
	b := EncodeLocalID(2)
	c := EncodeLocalID(100000)
	if !(a < b && b < c) {
		t.Fatalf("expected lexicographic order to match numeric order: %q %q %q", a, b, c)
	}
}
