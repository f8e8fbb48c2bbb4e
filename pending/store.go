// Package pending implements the durable index of row groups written
// but not yet compacted: entries keyed by pendingId, persisted at
// .meta/pending.index, looked up by namespace and filtered by sequence
// range.
package pending

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/parquedb/parquedb/internal/parqueerr"
	"github.com/parquedb/parquedb/storage"
)

// Entry is one pending row group: a Parquet file holding freshly-written
// entities not yet absorbed into a compacted file.
type Entry struct {
	PendingID string    `json:"pendingId"`
	Namespace string    `json:"ns"`
	Path      string    `json:"path"`
	RowCount  int       `json:"rowCount"`
	FirstSeq  int64     `json:"firstSeq"`
	LastSeq   int64     `json:"lastSeq"`
	CreatedAt time.Time `json:"createdAt"`
}

const indexPath = ".meta/pending.index"

// Store is the durable, in-memory-cached index of pending entries.
type Store struct {
	backend storage.Backend
	log     *slog.Logger

	mu      sync.RWMutex
	entries map[string]*Entry
	loaded  bool
}

func New(backend storage.Backend) *Store {
	return &Store{backend: backend, entries: make(map[string]*Entry), log: slog.Default()}
}

// WithLogger attaches logger, replacing the slog.Default() instance New
// installs.
func (s *Store) WithLogger(logger *slog.Logger) *Store {
	s.log = logger
	return s
}

func (s *Store) ensureLoaded(ctx context.Context) error {
	if s.loaded {
		return nil
	}
	data, err := s.backend.Read(ctx, indexPath)
	if err != nil {
		if storage.IsNotFound(err) {
			s.loaded = true
			return nil
		}
		return err
	}
	var all []*Entry
	if err := json.Unmarshal(data, &all); err != nil {
		return parqueerr.Wrap(parqueerr.Internal, err, "decode pending index")
	}
	for _, e := range all {
		s.entries[e.PendingID] = e
	}
	s.loaded = true
	return nil
}

func (s *Store) persistLocked(ctx context.Context) error {
	all := make([]*Entry, 0, len(s.entries))
	for _, e := range s.entries {
		all = append(all, e)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].Namespace != all[j].Namespace {
			return all[i].Namespace < all[j].Namespace
		}
		return all[i].FirstSeq < all[j].FirstSeq
	})
	data, err := json.Marshal(all)
	if err != nil {
		return parqueerr.Wrap(parqueerr.Internal, err, "encode pending index")
	}
	_, err = s.backend.WriteAtomic(ctx, indexPath, data)
	return err
}

// Add records a new pending entry and persists the index atomically.
// PendingID is assigned if empty.
func (s *Store) Add(ctx context.Context, e Entry) (*Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLoaded(ctx); err != nil {
		return nil, err
	}
	if e.PendingID == "" {
		e.PendingID = uuid.NewString()
	}
	cp := e
	s.entries[cp.PendingID] = &cp
	if err := s.persistLocked(ctx); err != nil {
		delete(s.entries, cp.PendingID)
		return nil, err
	}
	s.log.Debug("pending entry added", "ns", cp.Namespace, "pendingId", cp.PendingID, "firstSeq", cp.FirstSeq, "lastSeq", cp.LastSeq)
	return &cp, nil
}

// ByNamespace returns every entry for ns, ordered by FirstSeq ascending,
// optionally filtered to [fromSeq, toSeq] (0 means unbounded on that
// side).
func (s *Store) ByNamespace(ctx context.Context, ns string, fromSeq, toSeq int64) ([]*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.ensureLoaded(ctx); err != nil {
		return nil, err
	}
	var out []*Entry
	for _, e := range s.entries {
		if e.Namespace != ns {
			continue
		}
		if fromSeq != 0 && e.LastSeq < fromSeq {
			continue
		}
		if toSeq != 0 && e.FirstSeq > toSeq {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FirstSeq < out[j].FirstSeq })
	return out, nil
}

// Remove deletes entries by pendingId and persists the index, used by
// the compactor once their sequence range is absorbed into a compacted
// file.
func (s *Store) Remove(ctx context.Context, pendingIDs ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLoaded(ctx); err != nil {
		return err
	}
	removed := make(map[string]*Entry, len(pendingIDs))
	for _, id := range pendingIDs {
		if e, ok := s.entries[id]; ok {
			removed[id] = e
			delete(s.entries, id)
		}
	}
	if err := s.persistLocked(ctx); err != nil {
		for id, e := range removed {
			s.entries[id] = e
		}
		return err
	}
	s.log.Debug("pending entries removed", "count", len(removed))
	return nil
}

// MaxLastSeq returns the highest LastSeq recorded for ns, or 0 if none,
// used by the WAL's counter-recovery invariant.
func (s *Store) MaxLastSeq(ctx context.Context, ns string) (int64, error) {
	entries, err := s.ByNamespace(ctx, ns, 0, 0)
	if err != nil {
		return 0, err
	}
	var max int64
	for _, e := range entries {
		if e.LastSeq > max {
			max = e.LastSeq
		}
	}
	return max, nil
}
