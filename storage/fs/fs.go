// Package fs implements storage.Backend over a POSIX filesystem rooted
// at a base directory, writing files with os.OpenFile/os.Rename for
// atomicity.
package fs

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/parquedb/parquedb/storage"
)

// Backend stores objects as regular files under Root, using logical
// forward-slash paths translated to OS paths.
type Backend struct {
	Root string
	mu   sync.Mutex // serializes conditional-write check-then-act
}

// New returns a Backend rooted at root, creating it if absent.
func New(root string) (*Backend, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	return &Backend{Root: root}, nil
}

var _ storage.Backend = (*Backend)(nil)

func (b *Backend) native(p string) string {
	cleaned := filepath.Clean("/" + p)
	return filepath.Join(b.Root, cleaned)
}

func etagOf(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:8])
}

func (b *Backend) Read(_ context.Context, p string) ([]byte, error) {
	data, err := os.ReadFile(b.native(p))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, storage.ErrNotFound(p)
		}
		return nil, err
	}
	return data, nil
}

func (b *Backend) ReadRange(_ context.Context, p string, offset, length int64) ([]byte, error) {
	f, err := os.Open(b.native(p))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, storage.ErrNotFound(p)
		}
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if offset >= info.Size() {
		return []byte{}, nil
	}
	end := offset + length
	if length < 0 || end > info.Size() {
		end = info.Size()
	}
	buf := make([]byte, end-offset)
	if _, err := f.ReadAt(buf, offset); err != nil && err != io.EOF {
		return nil, err
	}
	return buf, nil
}

func (b *Backend) Stat(_ context.Context, p string) (*storage.Stat, error) {
	info, err := os.Stat(b.native(p))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	data, err := os.ReadFile(b.native(p))
	if err != nil {
		return nil, err
	}
	return &storage.Stat{Size: info.Size(), ETag: etagOf(data), ModifiedAt: info.ModTime()}, nil
}

func (b *Backend) Exists(_ context.Context, p string) (bool, error) {
	_, err := os.Stat(b.native(p))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

func (b *Backend) List(_ context.Context, prefix string, opts storage.ListOptions) (*storage.ListResult, error) {
	root := b.native(prefix)
	baseDir := root
	leafPattern := ""
	if info, err := os.Stat(root); err != nil || !info.IsDir() {
		baseDir = filepath.Dir(root)
		leafPattern = filepath.Base(root) + "*"
	}

	var names []string
	err := filepath.WalkDir(baseDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(b.Root, path)
		if err != nil {
			return err
		}
		logical := filepath.ToSlash(rel)
		if !strings.HasPrefix(logical, strings.TrimPrefix(prefix, "/")) {
			return nil
		}
		if leafPattern != "" {
			ok, _ := filepath.Match(leafPattern, filepath.Base(path))
			if !ok {
				return nil
			}
		}
		names = append(names, logical)
		return nil
	})
	if err != nil {
		return nil, err
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
		rest := strings.TrimPrefix(name, prefix)
		if opts.Delimiter != "" {
			if idx := strings.Index(rest, opts.Delimiter); idx >= 0 {
				cp := prefix + rest[:idx+len(opts.Delimiter)]
				if !prefixSeen[cp] {
					prefixSeen[cp] = true
					result.Prefixes = append(result.Prefixes, cp)
				}
				continue
			}
		}
		if opts.Pattern != "" {
			if ok, _ := filepath.Match(opts.Pattern, filepath.Base(name)); !ok {
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

func (b *Backend) writeFile(p string, data []byte) (*storage.WriteResult, error) {
	native := b.native(p)
	if err := os.MkdirAll(filepath.Dir(native), 0o755); err != nil {
		return nil, err
	}
	if err := os.WriteFile(native, data, 0o644); err != nil {
		return nil, err
	}
	return &storage.WriteResult{ETag: etagOf(data), Size: int64(len(data))}, nil
}

func (b *Backend) Write(_ context.Context, p string, data []byte, opts *storage.WriteOptions) (*storage.WriteResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if opts != nil {
		exists, err := b.Exists(context.Background(), p)
		if err != nil {
			return nil, err
		}
		if opts.IfNoneMatch == "*" && exists {
			return nil, storage.ErrAlreadyExists(p)
		}
		if opts.IfMatch != "" {
			st, err := b.Stat(context.Background(), p)
			if err != nil {
				return nil, err
			}
			if st == nil {
				return nil, storage.ErrETagMismatch(p, opts.IfMatch, "")
			}
			if st.ETag != opts.IfMatch {
				return nil, storage.ErrETagMismatch(p, opts.IfMatch, st.ETag)
			}
		}
	}
	return b.writeFile(p, data)
}

// WriteAtomic writes to a temp file in the same directory and renames it
// into place, so a crash mid-write never exposes a partial file.
func (b *Backend) WriteAtomic(_ context.Context, p string, data []byte) (*storage.WriteResult, error) {
	native := b.native(p)
	if err := os.MkdirAll(filepath.Dir(native), 0o755); err != nil {
		return nil, err
	}
	tmp, err := os.CreateTemp(filepath.Dir(native), ".tmp-*")
	if err != nil {
		return nil, err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return nil, err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return nil, err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return nil, err
	}
	if err := os.Rename(tmpName, native); err != nil {
		os.Remove(tmpName)
		return nil, err
	}
	return &storage.WriteResult{ETag: etagOf(data), Size: int64(len(data))}, nil
}

// SupportsAppend implements storage.Appender: POSIX append via O_APPEND
// is atomic for writes smaller than the filesystem's atomic write unit,
// which WAL blocks are engineered to respect.
func (b *Backend) SupportsAppend() bool { return true }

func (b *Backend) Append(_ context.Context, p string, data []byte) (*storage.WriteResult, error) {
	native := b.native(p)
	if err := os.MkdirAll(filepath.Dir(native), 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(native, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	if _, err := f.Write(data); err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	full, err := os.ReadFile(native)
	if err != nil {
		return nil, err
	}
	return &storage.WriteResult{ETag: etagOf(full), Size: info.Size()}, nil
}

func (b *Backend) Delete(_ context.Context, p string) (bool, error) {
	err := os.Remove(b.native(p))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (b *Backend) DeletePrefix(_ context.Context, prefix string) (int, error) {
	root := b.native(prefix)
	n := 0
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if !d.IsDir() {
			if rmErr := os.Remove(path); rmErr == nil {
				n++
			}
		}
		return nil
	})
	if err != nil && !os.IsNotExist(err) {
		return n, err
	}
	os.RemoveAll(root)
	return n, nil
}

func (b *Backend) Copy(_ context.Context, src, dst string) error {
	data, err := os.ReadFile(b.native(src))
	if err != nil {
		if os.IsNotExist(err) {
			return storage.ErrNotFound(src)
		}
		return err
	}
	_, err = b.writeFile(dst, data)
	return err
}

func (b *Backend) Move(_ context.Context, src, dst string) error {
	nativeSrc, nativeDst := b.native(src), b.native(dst)
	if err := os.MkdirAll(filepath.Dir(nativeDst), 0o755); err != nil {
		return err
	}
	if err := os.Rename(nativeSrc, nativeDst); err != nil {
		if os.IsNotExist(err) {
			return storage.ErrNotFound(src)
		}
		return err
	}
	return nil
}

func (b *Backend) Mkdir(_ context.Context, p string) error {
	return os.MkdirAll(b.native(p), 0o755)
}

func (b *Backend) Rmdir(_ context.Context, p string) error {
	return os.Remove(b.native(p))
}

func (b *Backend) Capabilities() storage.Capabilities {
	return storage.Capabilities{
		AtomicWrites:      true,
		ConditionalWrites: true,
		RangeReads:        true,
		Append:            true,
		RealDirectories:   true,
		RequiresMkdir:     false,
		MaxFileSize:       0,
		Streaming:         true,
		Multipart:         false,
		Transactions:      false,
	}
}
