package storage_test

import (
	"context"
	"os"
	"testing"

	"github.com/parquedb/parquedb/storage"
	"github.com/parquedb/parquedb/storage/fs"
	"github.com/parquedb/parquedb/storage/memory"
)

func backends(t *testing.T) map[string]storage.Backend {
	dir := t.TempDir()
	fsBackend, err := fs.New(dir)
	if err != nil {
		t.Fatalf("fs.New: %v", err)
	}
	return map[string]storage.Backend{
		"memory": memory.New(),
		"fs":     fsBackend,
	}
}

func TestWriteReadRoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			if _, err := b.Write(ctx, "a/b.txt", []byte("hello"), nil); err != nil {
				t.Fatalf("write: %v", err)
			}
			got, err := b.Read(ctx, "a/b.txt")
			if err != nil {
				t.Fatalf("read: %v", err)
			}
			if string(got) != "hello" {
				t.Fatalf("got %q", got)
			}
		})
	}
}

func TestReadNotFound(t *testing.T) {
	ctx := context.Background()
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, err := b.Read(ctx, "missing")
			if !storage.IsNotFound(err) {
				t.Fatalf("expected NotFound, got %v", err)
			}
		})
	}
}

func TestConditionalWrite(t *testing.T) {
	ctx := context.Background()
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			res, err := b.Write(ctx, "x", []byte("v1"), &storage.WriteOptions{IfNoneMatch: "*"})
			if err != nil {
				t.Fatalf("first write: %v", err)
			}
			if _, err := b.Write(ctx, "x", []byte("v1b"), &storage.WriteOptions{IfNoneMatch: "*"}); err == nil {
				t.Fatalf("expected AlreadyExists on second IfNoneMatch write")
			}
			if _, err := b.Write(ctx, "x", []byte("v2"), &storage.WriteOptions{IfMatch: "wrong"}); err == nil {
				t.Fatalf("expected ETagMismatch for wrong IfMatch")
			}
			if _, err := b.Write(ctx, "x", []byte("v2"), &storage.WriteOptions{IfMatch: res.ETag}); err != nil {
				t.Fatalf("expected IfMatch write to succeed: %v", err)
			}
		})
	}
}

func TestReadRangeClamps(t *testing.T) {
	ctx := context.Background()
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			b.Write(ctx, "r", []byte("0123456789"), nil)
			got, err := b.ReadRange(ctx, "r", 5, 100)
			if err != nil {
				t.Fatalf("readrange: %v", err)
			}
			if string(got) != "56789" {
				t.Fatalf("got %q", got)
			}
			got, err = b.ReadRange(ctx, "r", 50, 10)
			if err != nil {
				t.Fatalf("readrange past end: %v", err)
			}
			if len(got) != 0 {
				t.Fatalf("expected empty slice, got %q", got)
			}
		})
	}
}

func TestDeleteAndExists(t *testing.T) {
	ctx := context.Background()
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			b.Write(ctx, "d", []byte("x"), nil)
			ok, err := b.Delete(ctx, "d")
			if err != nil || !ok {
				t.Fatalf("delete: ok=%v err=%v", ok, err)
			}
			ok, err = b.Delete(ctx, "d")
			if err != nil || ok {
				t.Fatalf("second delete should return false, got ok=%v err=%v", ok, err)
			}
			exists, _ := b.Exists(ctx, "d")
			if exists {
				t.Fatalf("expected not to exist")
			}
		})
	}
}

func TestList(t *testing.T) {
	ctx := context.Background()
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			b.Write(ctx, "ns/a.parquet", []byte("1"), nil)
			b.Write(ctx, "ns/b.parquet", []byte("2"), nil)
			b.Write(ctx, "ns2/c.parquet", []byte("3"), nil)
			res, err := b.List(ctx, "ns/", storage.ListOptions{})
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if len(res.Files) != 2 {
				t.Fatalf("expected 2 files, got %v", res.Files)
			}
		})
	}
}

func TestMain(m *testing.M) {
	os.Exit(m.Run())
}
