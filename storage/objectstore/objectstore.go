// Package objectstore implements storage.Backend against any remote
// object store that exposes put/get/list/delete with ETags — S3, GCS,
// Azure Blob, and similar all fit this shape. It does not depend on a
// concrete cloud SDK; callers plug in a Client. Most object stores do
// not offer atomic conditional writes across all regions/classes, so
// when the Client reports none, this backend falls back to best-effort
// read-then-write guarded by a per-path record of the last ETag this
// Backend wrote, held in this process's memory, to detect conflicts a
// naive read-then-write would miss.
package objectstore

import (
	"context"
	"fmt"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/parquedb/parquedb/storage"
)

// Object is one item returned by Client.List.
type Object struct {
	Key          string
	Size         int64
	ETag         string
	LastModified time.Time
}

// Client is the minimal remote surface this backend needs. A concrete
// adapter (S3, GCS, Azure) implements it against its own SDK.
type Client interface {
	Get(ctx context.Context, key string) ([]byte, error)
	GetRange(ctx context.Context, key string, offset, length int64) ([]byte, error)
	Head(ctx context.Context, key string) (*Object, error)
	Put(ctx context.Context, key string, data []byte) (etag string, err error)
	Delete(ctx context.Context, key string) error
	List(ctx context.Context, prefix, delimiter, cursor string, limit int) (objects []Object, commonPrefixes []string, nextCursor string, hasMore bool, err error)
	// SupportsConditional reports whether the remote API can enforce
	// If-Match/If-None-Match natively (e.g. GCS generation
	// preconditions); when false this Backend emulates it with its
	// generation log instead.
	SupportsConditional() bool
	PutIfMatch(ctx context.Context, key string, data []byte, etag string) (newETag string, err error)
	PutIfAbsent(ctx context.Context, key string, data []byte) (newETag string, err error)
}

// Backend adapts a Client to storage.Backend.
type Backend struct {
	client Client

	// genMu/generations emulate conditional writes when the remote
	// Client does not support them natively: a local generation log
	// detects the ABA conflicts a pure read-then-write would miss, at
	// least for writers sharing this process.
	genMu       sync.Mutex
	generations map[string]string
}

// New wraps client as a storage.Backend.
func New(client Client) *Backend {
	return &Backend{client: client, generations: make(map[string]string)}
}

var _ storage.Backend = (*Backend)(nil)

func (b *Backend) Read(ctx context.Context, p string) ([]byte, error) {
	data, err := b.client.Get(ctx, p)
	if err != nil {
		return nil, translateNotFound(p, err)
	}
	return data, nil
}

func (b *Backend) ReadRange(ctx context.Context, p string, offset, length int64) ([]byte, error) {
	data, err := b.client.GetRange(ctx, p, offset, length)
	if err != nil {
		return nil, translateNotFound(p, err)
	}
	return data, nil
}

func (b *Backend) Stat(ctx context.Context, p string) (*storage.Stat, error) {
	obj, err := b.client.Head(ctx, p)
	if err != nil {
		return nil, nil
	}
	if obj == nil {
		return nil, nil
	}
	return &storage.Stat{Size: obj.Size, ETag: obj.ETag, ModifiedAt: obj.LastModified}, nil
}

func (b *Backend) Exists(ctx context.Context, p string) (bool, error) {
	st, err := b.Stat(ctx, p)
	return st != nil, err
}

func (b *Backend) List(ctx context.Context, prefix string, opts storage.ListOptions) (*storage.ListResult, error) {
	objs, prefixes, next, more, err := b.client.List(ctx, prefix, opts.Delimiter, opts.Cursor, opts.Limit)
	if err != nil {
		return nil, err
	}
	result := &storage.ListResult{Prefixes: prefixes, HasMore: more, NextCursor: next}
	for _, o := range objs {
		if opts.Pattern != "" {
			leaf := o.Key
			if idx := strings.LastIndexByte(o.Key, '/'); idx >= 0 {
				leaf = o.Key[idx+1:]
			}
			if ok, _ := path.Match(opts.Pattern, leaf); !ok {
				continue
			}
		}
		result.Files = append(result.Files, o.Key)
	}
	return result, nil
}

func (b *Backend) Write(ctx context.Context, p string, data []byte, opts *storage.WriteOptions) (*storage.WriteResult, error) {
	if opts == nil {
		etag, err := b.client.Put(ctx, p, data)
		if err != nil {
			return nil, err
		}
		b.recordGeneration(p, etag)
		return &storage.WriteResult{ETag: etag, Size: int64(len(data))}, nil
	}

	if b.client.SupportsConditional() {
		var etag string
		var err error
		switch {
		case opts.IfNoneMatch == "*":
			etag, err = b.client.PutIfAbsent(ctx, p, data)
		case opts.IfMatch != "":
			etag, err = b.client.PutIfMatch(ctx, p, data, opts.IfMatch)
		default:
			etag, err = b.client.Put(ctx, p, data)
		}
		if err != nil {
			return nil, err
		}
		b.recordGeneration(p, etag)
		return &storage.WriteResult{ETag: etag, Size: int64(len(data))}, nil
	}

	return b.emulateConditionalWrite(ctx, p, data, opts)
}

// emulateConditionalWrite is the fallback path for remotes that cannot
// enforce preconditions server-side: best-effort read-then-write guarded
// by the in-process generation log.
func (b *Backend) emulateConditionalWrite(ctx context.Context, p string, data []byte, opts *storage.WriteOptions) (*storage.WriteResult, error) {
	b.genMu.Lock()
	defer b.genMu.Unlock()

	current, tracked := b.generations[p]
	obj, _ := b.client.Head(ctx, p)

	if opts.IfNoneMatch == "*" {
		if obj != nil {
			return nil, storage.ErrAlreadyExists(p)
		}
	}
	if opts.IfMatch != "" {
		if obj == nil {
			return nil, storage.ErrETagMismatch(p, opts.IfMatch, "")
		}
		have := obj.ETag
		if tracked && current != obj.ETag {
			// Another writer in this process raced us; tracked wins
			// as the more recent observation.
			have = current
		}
		if have != opts.IfMatch {
			return nil, storage.ErrETagMismatch(p, opts.IfMatch, have)
		}
	}

	etag, err := b.client.Put(ctx, p, data)
	if err != nil {
		return nil, err
	}
	b.generations[p] = etag
	return &storage.WriteResult{ETag: etag, Size: int64(len(data))}, nil
}

func (b *Backend) recordGeneration(p, etag string) {
	b.genMu.Lock()
	b.generations[p] = etag
	b.genMu.Unlock()
}

func (b *Backend) WriteAtomic(ctx context.Context, p string, data []byte) (*storage.WriteResult, error) {
	etag, err := b.client.Put(ctx, p, data)
	if err != nil {
		return nil, err
	}
	b.recordGeneration(p, etag)
	return &storage.WriteResult{ETag: etag, Size: int64(len(data))}, nil
}

// Append is emulated via read-modify-write since object stores rarely
// expose a native append; callers needing true append durability should
// prefer the fs or memory backend for WAL blocks.
func (b *Backend) Append(ctx context.Context, p string, data []byte) (*storage.WriteResult, error) {
	existing, err := b.client.Get(ctx, p)
	if err != nil {
		existing = nil
	}
	combined := append(append([]byte(nil), existing...), data...)
	etag, err := b.client.Put(ctx, p, combined)
	if err != nil {
		return nil, err
	}
	b.recordGeneration(p, etag)
	return &storage.WriteResult{ETag: etag, Size: int64(len(combined))}, nil
}

func (b *Backend) Delete(ctx context.Context, p string) (bool, error) {
	existed, _ := b.Exists(ctx, p)
	if err := b.client.Delete(ctx, p); err != nil {
		return false, err
	}
	b.genMu.Lock()
	delete(b.generations, p)
	b.genMu.Unlock()
	return existed, nil
}

func (b *Backend) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	res, err := b.List(ctx, prefix, storage.ListOptions{})
	if err != nil {
		return 0, err
	}
	n := 0
	for _, f := range res.Files {
		if ok, _ := b.Delete(ctx, f); ok {
			n++
		}
	}
	return n, nil
}

func (b *Backend) Copy(ctx context.Context, src, dst string) error {
	data, err := b.client.Get(ctx, src)
	if err != nil {
		return translateNotFound(src, err)
	}
	_, err = b.client.Put(ctx, dst, data)
	return err
}

func (b *Backend) Move(ctx context.Context, src, dst string) error {
	if err := b.Copy(ctx, src, dst); err != nil {
		return err
	}
	return b.client.Delete(ctx, src)
}

// Mkdir/Rmdir are no-ops: object stores have no real directories.
func (b *Backend) Mkdir(_ context.Context, _ string) error { return nil }
func (b *Backend) Rmdir(_ context.Context, _ string) error { return nil }

func (b *Backend) Capabilities() storage.Capabilities {
	return storage.Capabilities{
		AtomicWrites:      true,
		ConditionalWrites: b.client.SupportsConditional(),
		RangeReads:        true,
		Append:            false,
		RealDirectories:   false,
		RequiresMkdir:     false,
		MaxFileSize:       0,
		Streaming:         true,
		Multipart:         true,
		Transactions:      false,
	}
}

func translateNotFound(p string, err error) error {
	if err == nil {
		return nil
	}
	if strings.Contains(strings.ToLower(err.Error()), "not found") ||
		strings.Contains(strings.ToLower(err.Error()), "nosuchkey") ||
		strings.Contains(strings.ToLower(err.Error()), "404") {
		return storage.ErrNotFound(p)
	}
	return fmt.Errorf("objectstore: %s: %w", p, err)
}
