package wal

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/parquedb/parquedb/eventid"
	"github.com/parquedb/parquedb/internal/parqueerr"
	"github.com/parquedb/parquedb/storage"
)

// pendingSeqSource is the subset of pending.Store's API the log needs to
// reconcile counter recovery against row groups already flushed out of
// the WAL. It's an interface, not a direct pending.Store dependency, so
// this package never imports pending (which itself has no need to
// import wal).
type pendingSeqSource interface {
	MaxLastSeq(ctx context.Context, ns string) (int64, error)
}

// Log is the append-only per-namespace event log.
type Log struct {
	backend storage.Backend
	blockID *eventid.Generator
	pending pendingSeqSource
	log     *slog.Logger

	mu       sync.Mutex
	counters map[string]int64 // next sequence to allocate, per namespace
	primed   map[string]bool
}

// New builds a Log over backend. Counters are recovered lazily, the
// first time a namespace is touched, rather than up front, so opening a
// store with many namespaces is cheap.
func New(backend storage.Backend) *Log {
	return &Log{
		backend:  backend,
		blockID:  eventid.NewGenerator(),
		counters: make(map[string]int64),
		primed:   make(map[string]bool),
		log:      slog.Default(),
	}
}

// WithPendingSource attaches the pending-row-group index so counter
// recovery also accounts for sequences already flushed out of the WAL
// and into a pending Parquet file. Once a row group is written its
// backing WAL blocks may be reclaimed, so the WAL tail alone can
// understate the true next sequence; this closes that gap.
func (l *Log) WithPendingSource(p pendingSeqSource) *Log {
	l.pending = p
	return l
}

// WithLogger attaches logger, replacing the slog.Default() instance
// New installs.
func (l *Log) WithLogger(logger *slog.Logger) *Log {
	l.log = logger
	return l
}

func blockPath(ns, blockID string) string {
	return fmt.Sprintf(".wal/%s/%s.blob", ns, blockID)
}

// recover scans the WAL block file names (and, when attached, the
// pending index) for ns and primes the in-memory counter; there is no
// counter file. It keeps the invariant that next-seq equals one past the
// highest lastSeq observed in the WAL (or 1 if the namespace is new).
func (l *Log) recover(ctx context.Context, ns string) (int64, error) {
	result, err := l.backend.List(ctx, ".wal/"+ns+"/", storage.ListOptions{})
	if err != nil {
		return 0, err
	}
	var maxLastSeq int64
	for _, f := range result.Files {
		base := strings.TrimSuffix(f[strings.LastIndexByte(f, '/')+1:], ".blob")
		parts := strings.SplitN(base, "-", 3)
		if len(parts) != 3 {
			continue
		}
		last, err := strconv.ParseInt(parts[1], 10, 64)
		if err != nil {
			continue
		}
		if last > maxLastSeq {
			maxLastSeq = last
		}
	}
	if l.pending != nil {
		pendingMax, err := l.pending.MaxLastSeq(ctx, ns)
		if err != nil {
			return 0, err
		}
		if pendingMax > maxLastSeq {
			maxLastSeq = pendingMax
		}
	}
	return maxLastSeq + 1, nil
}

// ensurePrimed loads the counter for ns exactly once.
func (l *Log) ensurePrimed(ctx context.Context, ns string) error {
	if l.primed[ns] {
		return nil
	}
	next, err := l.recover(ctx, ns)
	if err != nil {
		return err
	}
	l.counters[ns] = next
	l.primed[ns] = true
	return nil
}

// Allocate atomically reserves a contiguous sequence range of size n for
// ns and returns its first value. The range is never released even if
// the caller subsequently fails, matching the documented "holes are
// permitted, strict monotonicity is required" contract.
func (l *Log) Allocate(ctx context.Context, ns string, n int64) (int64, error) {
	if n <= 0 {
		return 0, parqueerr.New(parqueerr.InvalidArgument, "allocation size must be positive")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.ensurePrimed(ctx, ns); err != nil {
		return 0, err
	}
	first := l.counters[ns]
	l.counters[ns] = first + n
	return first, nil
}

// Append writes a block of events covering [firstSeq, lastSeq] to
// storage, durably. The caller must have already allocated the range via
// Allocate.
func (l *Log) Append(ctx context.Context, ns string, events []Event) error {
	if len(events) == 0 {
		return nil
	}
	first := events[0].Seq
	last := events[len(events)-1].Seq
	block := &Block{Namespace: ns, FirstSeq: first, LastSeq: last, Events: events}
	data, err := EncodeBlock(block)
	if err != nil {
		return parqueerr.Wrap(parqueerr.Internal, err, "encode wal block")
	}
	id := l.blockID.Next().String()
	path := blockPath(ns, fmt.Sprintf("%020d-%020d-%s", first, last, id))
	if _, err := l.backend.WriteAtomic(ctx, path, data); err != nil {
		return err
	}
	l.log.Info("wal block appended", "ns", ns, "firstSeq", first, "lastSeq", last, "events", len(events))
	return nil
}

// Events returns every event for ns with seq in [fromSeq, toSeq], read
// from the WAL blocks in ascending sequence order. toSeq of 0 means
// unbounded.
func (l *Log) Events(ctx context.Context, ns string, fromSeq, toSeq int64) ([]Event, error) {
	result, err := l.backend.List(ctx, ".wal/"+ns+"/", storage.ListOptions{})
	if err != nil {
		return nil, err
	}
	files := append([]string(nil), result.Files...)
	sort.Strings(files)

	var out []Event
	for _, f := range files {
		data, err := l.backend.Read(ctx, f)
		if err != nil {
			if storage.IsNotFound(err) {
				continue
			}
			return nil, err
		}
		block, err := DecodeBlock(data)
		if err != nil {
			return nil, parqueerr.Wrap(parqueerr.Internal, err, "decode wal block "+f)
		}
		if toSeq != 0 && block.FirstSeq > toSeq {
			continue
		}
		if block.LastSeq < fromSeq {
			continue
		}
		for _, e := range block.Events {
			if e.Seq < fromSeq {
				continue
			}
			if toSeq != 0 && e.Seq > toSeq {
				continue
			}
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out, nil
}

// EventsForTarget returns every event whose Target equals target, in
// time-sortable id order, used by the history/as-of engine.
func (l *Log) EventsForTarget(ctx context.Context, ns, target string) ([]Event, error) {
	all, err := l.Events(ctx, ns, 0, 0)
	if err != nil {
		return nil, err
	}
	var out []Event
	for _, e := range all {
		if e.Target == target {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.Less(out[j].ID) })
	return out, nil
}
