package objectstore_test

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"testing"

	"github.com/parquedb/parquedb/storage"
	"github.com/parquedb/parquedb/storage/objectstore"
)

// fakeClient is an in-memory objectstore.Client used to exercise Backend
// without any concrete cloud SDK. conditional toggles whether it reports
// native conditional-write support, so both Backend code paths run.
type fakeClient struct {
	conditional bool
	objects     map[string][]byte
	gen         map[string]int
}

func newFakeClient(conditional bool) *fakeClient {
	return &fakeClient{conditional: conditional, objects: make(map[string][]byte), gen: make(map[string]int)}
}

func (f *fakeClient) etag(key string) string { return strconv.Itoa(f.gen[key]) }

func (f *fakeClient) Get(_ context.Context, key string) ([]byte, error) {
	data, ok := f.objects[key]
	if !ok {
		return nil, fmt.Errorf("not found: %s", key)
	}
	return data, nil
}

func (f *fakeClient) GetRange(ctx context.Context, key string, offset, length int64) ([]byte, error) {
	data, err := f.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	end := offset + length
	if end > int64(len(data)) {
		end = int64(len(data))
	}
	return data[offset:end], nil
}

func (f *fakeClient) Head(_ context.Context, key string) (*objectstore.Object, error) {
	data, ok := f.objects[key]
	if !ok {
		return nil, nil
	}
	return &objectstore.Object{Key: key, Size: int64(len(data)), ETag: f.etag(key)}, nil
}

func (f *fakeClient) Put(_ context.Context, key string, data []byte) (string, error) {
	f.objects[key] = append([]byte(nil), data...)
	f.gen[key]++
	return f.etag(key), nil
}

func (f *fakeClient) Delete(_ context.Context, key string) error {
	delete(f.objects, key)
	delete(f.gen, key)
	return nil
}

func (f *fakeClient) List(_ context.Context, prefix, _, _ string, _ int) ([]objectstore.Object, []string, string, bool, error) {
	var out []objectstore.Object
	for k, v := range f.objects {
		if strings.HasPrefix(k, prefix) {
			out = append(out, objectstore.Object{Key: k, Size: int64(len(v)), ETag: f.etag(k)})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil, "", false, nil
}

func (f *fakeClient) SupportsConditional() bool { return f.conditional }

func (f *fakeClient) PutIfMatch(ctx context.Context, key string, data []byte, etag string) (string, error) {
	if f.etag(key) != etag {
		return "", fmt.Errorf("etag mismatch")
	}
	return f.Put(ctx, key, data)
}

func (f *fakeClient) PutIfAbsent(ctx context.Context, key string, data []byte) (string, error) {
	if _, ok := f.objects[key]; ok {
		return "", fmt.Errorf("already exists")
	}
	return f.Put(ctx, key, data)
}

func TestWriteReadRoundTrip(t *testing.T) {
	b := objectstore.New(newFakeClient(true))
	ctx := context.Background()

	if _, err := b.Write(ctx, "ns/doc", []byte("hello"), nil); err != nil {
		t.Fatalf("write: %v", err)
	}
	data, err := b.Read(ctx, "ns/doc")
	if err != nil || string(data) != "hello" {
		t.Fatalf("read mismatch: %q, %v", data, err)
	}
}

func TestConditionalWriteDetectsConflict(t *testing.T) {
	for _, conditional := range []bool{true, false} {
		t.Run(fmt.Sprintf("conditional=%v", conditional), func(t *testing.T) {
			b := objectstore.New(newFakeClient(conditional))
			ctx := context.Background()

			res, err := b.Write(ctx, "p", []byte("v1"), &storage.WriteOptions{IfNoneMatch: "*"})
			if err != nil {
				t.Fatalf("initial create: %v", err)
			}
			if _, err := b.Write(ctx, "p", []byte("v1-again"), &storage.WriteOptions{IfNoneMatch: "*"}); err == nil {
				t.Fatalf("expected create-if-absent to fail on existing object")
			}
			if _, err := b.Write(ctx, "p", []byte("v2"), &storage.WriteOptions{IfMatch: "stale-etag"}); err == nil {
				t.Fatalf("expected write with stale etag to fail")
			}
			if _, err := b.Write(ctx, "p", []byte("v2"), &storage.WriteOptions{IfMatch: res.ETag}); err != nil {
				t.Fatalf("expected write with current etag to succeed: %v", err)
			}
		})
	}
}

func TestListPrefix(t *testing.T) {
	b := objectstore.New(newFakeClient(true))
	ctx := context.Background()
	b.WriteAtomic(ctx, "ns/a", []byte("1"))
	b.WriteAtomic(ctx, "ns/b", []byte("2"))
	b.WriteAtomic(ctx, "other/c", []byte("3"))

	res, err := b.List(ctx, "ns/", storage.ListOptions{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(res.Files) != 2 {
		t.Fatalf("expected 2 files under ns/, got %v", res.Files)
	}
}

func TestDeleteAndExists(t *testing.T) {
	b := objectstore.New(newFakeClient(true))
	ctx := context.Background()
	b.WriteAtomic(ctx, "p", []byte("v"))

	ok, err := b.Exists(ctx, "p")
	if err != nil || !ok {
		t.Fatalf("expected p to exist: %v, %v", ok, err)
	}
	if _, err := b.Delete(ctx, "p"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	ok, _ = b.Exists(ctx, "p")
	if ok {
		t.Fatalf("expected p to be gone after delete")
	}
}

func TestAppendEmulatesConcatenation(t *testing.T) {
	b := objectstore.New(newFakeClient(true))
	ctx := context.Background()
	b.WriteAtomic(ctx, "log", []byte("a"))
	if _, err := b.Append(ctx, "log", []byte("b")); err != nil {
		t.Fatalf("append: %v", err)
	}
	data, _ := b.Read(ctx, "log")
	if string(data) != "ab" {
		t.Fatalf("expected concatenated log, got %q", data)
	}
}
