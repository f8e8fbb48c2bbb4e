// Package memory implements storage.Backend entirely in process memory,
// useful for tests and for embedding ParqueDB without any durability
// guarantee.
package memory

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/parquedb/parquedb/storage"
)

type object struct {
	data       []byte
	etag       string
	modifiedAt time.Time
}

// Backend is a concurrency-safe in-memory object namespace.
type Backend struct {
	mu      sync.RWMutex
	objects map[string]*object
}

// New returns an empty in-memory Backend.
func New() *Backend {
	return &Backend{objects: make(map[string]*object)}
}

var _ storage.Backend = (*Backend)(nil)

func etagOf(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:8])
}

func (b *Backend) Read(_ context.Context, p string) ([]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	o, ok := b.objects[p]
	if !ok {
		return nil, storage.ErrNotFound(p)
	}
	out := make([]byte, len(o.data))
	copy(out, o.data)
	return out, nil
}

func (b *Backend) ReadRange(ctx context.Context, p string, offset, length int64) ([]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	o, ok := b.objects[p]
	if !ok {
		return nil, storage.ErrNotFound(p)
	}
	if offset >= int64(len(o.data)) {
		return []byte{}, nil
	}
	end := offset + length
	if length < 0 || end > int64(len(o.data)) {
		end = int64(len(o.data))
	}
	out := make([]byte, end-offset)
	copy(out, o.data[offset:end])
	return out, nil
}

func (b *Backend) Stat(_ context.Context, p string) (*storage.Stat, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	o, ok := b.objects[p]
	if !ok {
		return nil, nil
	}
	return &storage.Stat{Size: int64(len(o.data)), ETag: o.etag, ModifiedAt: o.modifiedAt}, nil
}

func (b *Backend) Exists(_ context.Context, p string) (bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.objects[p]
	return ok, nil
}

func (b *Backend) List(_ context.Context, prefix string, opts storage.ListOptions) (*storage.ListResult, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var names []string
	for p := range b.objects {
		if strings.HasPrefix(p, prefix) {
			names = append(names, p)
		}
	}
	sort.Strings(names)

	result := &storage.ListResult{}
	prefixSeen := make(map[string]bool)

	started := opts.Cursor == ""
	count := 0
	for _, name := range names {
		if !started {
			if name == opts.Cursor {
				started = true
			}
			continue
		}
		rest := name[len(prefix):]
		if opts.Delimiter != "" {
			if idx := strings.Index(rest, opts.Delimiter); idx >= 0 {
				commonPrefix := prefix + rest[:idx+len(opts.Delimiter)]
				if !prefixSeen[commonPrefix] {
					prefixSeen[commonPrefix] = true
					result.Prefixes = append(result.Prefixes, commonPrefix)
				}
				continue
			}
		}
		if opts.Pattern != "" {
			leaf := path.Base(name)
			if ok, _ := path.Match(opts.Pattern, leaf); !ok {
				continue
			}
		}
		if opts.Limit > 0 && count >= opts.Limit {
			result.HasMore = true
			result.NextCursor = name
			break
		}
		result.Files = append(result.Files, name)
		count++
	}
	return result, nil
}

func (b *Backend) Write(_ context.Context, p string, data []byte, opts *storage.WriteOptions) (*storage.WriteResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	existing, ok := b.objects[p]
	if opts != nil {
		if opts.IfNoneMatch == "*" && ok {
			return nil, storage.ErrAlreadyExists(p)
		}
		if opts.IfMatch != "" {
			if !ok {
				return nil, storage.ErrETagMismatch(p, opts.IfMatch, "")
			}
			if existing.etag != opts.IfMatch {
				return nil, storage.ErrETagMismatch(p, opts.IfMatch, existing.etag)
			}
		}
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	o := &object{data: cp, etag: etagOf(cp), modifiedAt: time.Now()}
	b.objects[p] = o
	return &storage.WriteResult{ETag: o.etag, Size: int64(len(cp))}, nil
}

func (b *Backend) WriteAtomic(ctx context.Context, p string, data []byte) (*storage.WriteResult, error) {
	return b.Write(ctx, p, data, nil)
}

// SupportsAppend implements storage.Appender: this backend's Append is a
// true atomic append under its single mutex.
func (b *Backend) SupportsAppend() bool { return true }

func (b *Backend) Append(_ context.Context, p string, data []byte) (*storage.WriteResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	o, ok := b.objects[p]
	if !ok {
		o = &object{}
		b.objects[p] = o
	}
	o.data = append(o.data, data...)
	o.etag = etagOf(o.data)
	o.modifiedAt = time.Now()
	return &storage.WriteResult{ETag: o.etag, Size: int64(len(o.data))}, nil
}

func (b *Backend) Delete(_ context.Context, p string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.objects[p]
	if ok {
		delete(b.objects, p)
	}
	return ok, nil
}

func (b *Backend) DeletePrefix(_ context.Context, prefix string) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for p := range b.objects {
		if strings.HasPrefix(p, prefix) {
			delete(b.objects, p)
			n++
		}
	}
	return n, nil
}

func (b *Backend) Copy(_ context.Context, src, dst string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	o, ok := b.objects[src]
	if !ok {
		return storage.ErrNotFound(src)
	}
	cp := make([]byte, len(o.data))
	copy(cp, o.data)
	b.objects[dst] = &object{data: cp, etag: etagOf(cp), modifiedAt: time.Now()}
	return nil
}

func (b *Backend) Move(ctx context.Context, src, dst string) error {
	if err := b.Copy(ctx, src, dst); err != nil {
		return err
	}
	_, err := b.Delete(ctx, src)
	return err
}

func (b *Backend) Mkdir(_ context.Context, _ string) error { return nil }
func (b *Backend) Rmdir(_ context.Context, _ string) error { return nil }

func (b *Backend) Capabilities() storage.Capabilities {
	return storage.Capabilities{
		AtomicWrites:      true,
		ConditionalWrites: true,
		RangeReads:        true,
		Append:            true,
		RealDirectories:   false,
		RequiresMkdir:     false,
		MaxFileSize:       0,
		Streaming:         false,
		Multipart:         false,
		Transactions:      false,
	}
}
