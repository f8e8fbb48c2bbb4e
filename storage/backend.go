// Package storage defines ParqueDB's abstract blob namespace: an atomic,
// conditionally-writable, range-readable backend that every other
// component addresses through this one contract, whether the bytes live
// in memory, on a POSIX filesystem, or in an object store.
package storage

import (
	"context"
	"time"

	"github.com/parquedb/parquedb/internal/parqueerr"
)

// Stat describes a stored object's metadata.
type Stat struct {
	Size       int64
	ETag       string
	ModifiedAt time.Time
}

// WriteOptions carries the conditional-write predicates a caller can
// ask a backend to enforce.
type WriteOptions struct {
	// IfMatch requires the current ETag to equal this value.
	IfMatch string
	// IfNoneMatch, when "*", requires the object to be absent.
	IfNoneMatch string
}

// WriteResult is returned by Write/WriteAtomic/Append.
type WriteResult struct {
	ETag string
	Size int64
}

// ListOptions configures List.
type ListOptions struct {
	Delimiter string
	Pattern   string
	Cursor    string
	Limit     int
}

// ListResult is the paginated result of List.
type ListResult struct {
	Files      []string
	Prefixes   []string
	HasMore    bool
	NextCursor string
}

// Capabilities describes what a backend can do without the caller
// probing behavior at runtime.
type Capabilities struct {
	AtomicWrites      bool
	ConditionalWrites bool
	RangeReads        bool
	Append            bool
	RealDirectories   bool
	RequiresMkdir     bool
	MaxFileSize       int64
	Streaming         bool
	Multipart         bool
	Transactions      bool
}

// Backend is the storage contract every ParqueDB component addresses.
// Every method either succeeds with the stated post-condition or returns
// an error; no method returns a partial result. A missing path is
// reported with the NotFound error; other failures may be the
// underlying OS or client error as returned.
type Backend interface {
	Read(ctx context.Context, path string) ([]byte, error)
	ReadRange(ctx context.Context, path string, offset, length int64) ([]byte, error)
	Stat(ctx context.Context, path string) (*Stat, error)
	Exists(ctx context.Context, path string) (bool, error)
	List(ctx context.Context, prefix string, opts ListOptions) (*ListResult, error)
	Write(ctx context.Context, path string, data []byte, opts *WriteOptions) (*WriteResult, error)
	WriteAtomic(ctx context.Context, path string, data []byte) (*WriteResult, error)
	Append(ctx context.Context, path string, data []byte) (*WriteResult, error)
	Delete(ctx context.Context, path string) (bool, error)
	DeletePrefix(ctx context.Context, prefix string) (int, error)
	Copy(ctx context.Context, src, dst string) error
	Move(ctx context.Context, src, dst string) error
	Mkdir(ctx context.Context, path string) error
	Rmdir(ctx context.Context, path string) error
	Capabilities() Capabilities
}

// Appender is implemented by backends whose Append is a true atomic
// append rather than a read-modify-write emulation; callers that care
// type-assert for it before relying on append-heavy write paths.
type Appender interface {
	SupportsAppend() bool
}

// ErrNotFound constructs the NotFound error every backend returns for a
// missing path on Read/ReadRange.
func ErrNotFound(path string) error {
	return parqueerr.Newf(parqueerr.NotFound, "no such object: %s", path).WithPath(path)
}

// ErrAlreadyExists constructs the AlreadyExists error for a failed
// IfNoneMatch: "*" write.
func ErrAlreadyExists(path string) error {
	return parqueerr.Newf(parqueerr.AlreadyExists, "object already exists: %s", path).WithPath(path)
}

// ErrETagMismatch constructs the ETagMismatch error for a failed IfMatch
// write.
func ErrETagMismatch(path, want, got string) error {
	return parqueerr.Newf(parqueerr.ETagMismatch, "etag mismatch for %s: want %s, have %s", path, want, got).WithPath(path)
}

// IsNotFound reports whether err is the NotFound error this package
// returns for a missing path.
func IsNotFound(err error) bool {
	return parqueerr.Is(err, parqueerr.NotFound)
}

// clampRange clamps a requested byte range to the available data:
// offsets past end of file return an empty slice rather than failing.
func clampRange(data []byte, offset, length int64) []byte {
	if offset < 0 {
		offset = 0
	}
	if offset >= int64(len(data)) {
		return []byte{}
	}
	end := offset + length
	if length < 0 || end > int64(len(data)) {
		end = int64(len(data))
	}
	return data[offset:end]
}
