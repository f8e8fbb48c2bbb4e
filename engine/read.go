package engine

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"time"

	"github.com/parquedb/parquedb/cache"
	"github.com/parquedb/parquedb/entity"
	"github.com/parquedb/parquedb/internal/parqueerr"
	"github.com/parquedb/parquedb/parquetfile"
	"github.com/parquedb/parquedb/storage"
)

// GetOptions configures Get.
type GetOptions struct {
	IncludeDeleted bool
	AsOf           *time.Time
	Hydrate        []string
	Project        []string
	CacheBypass    bool
}

// FindOptions configures Find.
type FindOptions struct {
	Sort           []SortField
	Limit          int
	Skip           int
	Cursor         string
	Project        []string
	Populate       []string
	IncludeDeleted bool
	AsOf           *time.Time
	CacheBypass    bool
}

// FindResult is returned by Find.
type FindResult struct {
	Items      []*entity.Entity
	HasMore    bool
	NextCursor string
}

// mergedRow pairs one live entity with the flattened field view Matches
// and sortRows operate over.
type mergedRow struct {
	ent    *entity.Entity
	seq    int64
	fields map[string]any
}

func asTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case *time.Time:
		if t == nil {
			return time.Time{}, false
		}
		return *t, true
	case string:
		parsed, err := time.Parse(time.RFC3339, t)
		return parsed, err == nil
	default:
		return time.Time{}, false
	}
}

// Get returns the entity ns/id, or nil if it does not exist (or is
// hidden by soft-delete and IncludeDeleted was not requested).
func (e *Engine) Get(ctx context.Context, ns, id string, opts GetOptions) (*entity.Entity, error) {
	if err := withContext(ctx); err != nil {
		return nil, err
	}
	if err := entity.ValidateNamespace(ns); err != nil {
		return nil, err
	}
	ent, err := e.getLocked(ctx, ns, id, opts)
	if err != nil {
		return nil, err
	}
	if ent == nil {
		return nil, nil
	}
	if len(opts.Hydrate) > 0 {
		if err := e.hydrate(ctx, []*entity.Entity{ent}, opts.Hydrate, opts.IncludeDeleted); err != nil {
			return nil, err
		}
	}
	if len(opts.Project) > 0 {
		ent = project(ent, opts.Project)
	}
	return ent, nil
}

// getLocked is Get without the namespace serializer: used both
// externally (read-only, no lock needed) and internally by write.go,
// which already holds the namespace lock.
func (e *Engine) getLocked(ctx context.Context, ns, id string, opts GetOptions) (*entity.Entity, error) {
	if opts.AsOf != nil {
		return e.getAsOf(ctx, ns, id, *opts.AsOf, opts.IncludeDeleted)
	}
	rows, err := e.liveRows(ctx, ns, opts.CacheBypass)
	if err != nil {
		return nil, err
	}
	row, ok := rows[id]
	if !ok {
		return nil, nil
	}
	if row.ent.IsDeleted() && !opts.IncludeDeleted {
		return nil, nil
	}
	return row.ent, nil
}

// Find returns entities in ns matching filter.
func (e *Engine) Find(ctx context.Context, ns string, filter Filter, opts FindOptions) (*FindResult, error) {
	if err := withContext(ctx); err != nil {
		return nil, err
	}
	if err := entity.ValidateNamespace(ns); err != nil {
		return nil, err
	}

	var rows []mergedRow
	if opts.AsOf != nil {
		all, err := e.allRowsAsOf(ctx, ns, *opts.AsOf)
		if err != nil {
			return nil, err
		}
		rows = all
	} else {
		live, err := e.liveRows(ctx, ns, opts.CacheBypass)
		if err != nil {
			return nil, err
		}
		rows = make([]mergedRow, 0, len(live))
		for _, r := range live {
			rows = append(rows, r)
		}
	}

	filtered := rows[:0:0]
	for _, r := range rows {
		if r.ent.IsDeleted() && !opts.IncludeDeleted {
			continue
		}
		if Matches(r.fields, filter) {
			filtered = append(filtered, r)
		}
	}

	sortSpec := opts.Sort
	if len(sortSpec) == 0 {
		sortSpec = []SortField{{Field: entity.FieldID}}
	}
	sortRows(filtered, sortSpec)

	start := 0
	if cur, ok := decodeCursor(opts.Cursor); ok {
		for i, r := range filtered {
			if r.ent.ID == cur.lastID {
				start = i + 1
				break
			}
		}
	}
	filtered = filtered[start:]

	if opts.Skip > 0 {
		if opts.Skip >= len(filtered) {
			filtered = nil
		} else {
			filtered = filtered[opts.Skip:]
		}
	}

	hasMore := false
	if opts.Limit > 0 && len(filtered) > opts.Limit {
		filtered = filtered[:opts.Limit]
		hasMore = true
	}

	items := make([]*entity.Entity, len(filtered))
	for i, r := range filtered {
		items[i] = r.ent
	}

	if len(opts.Populate) > 0 {
		if err := e.hydrate(ctx, items, opts.Populate, opts.IncludeDeleted); err != nil {
			return nil, err
		}
	}
	if len(opts.Project) > 0 {
		for i, it := range items {
			items[i] = project(it, opts.Project)
		}
	}

	result := &FindResult{Items: items, HasMore: hasMore}
	if hasMore && len(items) > 0 {
		result.NextCursor = encodeCursor(items[len(items)-1].ID)
	}
	return result, nil
}

// FindOne returns the first match of Find, or nil.
func (e *Engine) FindOne(ctx context.Context, ns string, filter Filter, opts FindOptions) (*entity.Entity, error) {
	opts.Limit = 1
	res, err := e.Find(ctx, ns, filter, opts)
	if err != nil {
		return nil, err
	}
	if len(res.Items) == 0 {
		return nil, nil
	}
	return res.Items[0], nil
}

// Count returns the number of entities matching filter.
func (e *Engine) Count(ctx context.Context, ns string, filter Filter, includeDeleted bool) (int, error) {
	res, err := e.Find(ctx, ns, filter, FindOptions{IncludeDeleted: includeDeleted})
	if err != nil {
		return 0, err
	}
	return len(res.Items), nil
}

// Exists reports whether any entity matches filter.
func (e *Engine) Exists(ctx context.Context, ns string, filter Filter, includeDeleted bool) (bool, error) {
	found, err := e.FindOne(ctx, ns, filter, FindOptions{IncludeDeleted: includeDeleted})
	if err != nil {
		return false, err
	}
	return found != nil, nil
}

// liveRows returns, for every entity id in ns, the highest-sequence row
// across compacted files and pending entries. There is no separate
// "in-memory, not yet durable" tier to merge in: every mutation commits
// synchronously through the WAL before returning, so there is never an
// un-flushed event outside what pending/compacted already reflect.
func (e *Engine) liveRows(ctx context.Context, ns string, bypassCache bool) (map[string]mergedRow, error) {
	physical, err := e.readAllPhysicalRows(ctx, ns, bypassCache)
	if err != nil {
		return nil, err
	}
	live := make(map[string]mergedRow, len(physical))
	for _, r := range physical {
		cur, ok := live[r.ent.ID]
		if !ok || r.seq > cur.seq {
			live[r.ent.ID] = r
		}
	}
	return live, nil
}

func (e *Engine) readAllPhysicalRows(ctx context.Context, ns string, bypassCache bool) ([]mergedRow, error) {
	var out []mergedRow

	compactedFiles, err := e.backend.List(ctx, compactedPrefix(ns), storage.ListOptions{})
	if err != nil && !storage.IsNotFound(err) {
		return nil, err
	}
	if compactedFiles != nil {
		for _, f := range compactedFiles.Files {
			rows, err := e.readParquetRows(ctx, f, bypassCache)
			if err != nil {
				return nil, err
			}
			out = append(out, rows...)
		}
	}

	pendingEntries, err := e.pending.ByNamespace(ctx, ns, 0, 0)
	if err != nil {
		return nil, err
	}
	for _, pe := range pendingEntries {
		rows, err := e.readParquetRows(ctx, pe.Path, bypassCache)
		if err != nil {
			return nil, err
		}
		out = append(out, rows...)
	}
	return out, nil
}

func (e *Engine) readParquetRows(ctx context.Context, path string, bypassCache bool) ([]mergedRow, error) {
	stat, err := e.backend.Stat(ctx, path)
	if err != nil {
		if storage.IsNotFound(err) {
			return nil, nil // deleted between list and read; tolerate the race
		}
		return nil, err
	}
	key := cache.Key{Path: path, ETag: stat.ETag}

	cached, ok := e.cache.Get(key, bypassCache)
	if e.metrics != nil && !bypassCache {
		if ok {
			e.metrics.cacheHits.Inc()
		} else {
			e.metrics.cacheMisses.Inc()
		}
	}
	if ok {
		return cached.([]mergedRow), nil
	}

	data, err := e.backend.Read(ctx, path)
	if err != nil {
		if storage.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	f, err := parquetfile.OpenFile(data)
	if err != nil {
		return nil, parqueerr.Wrap(parqueerr.Internal, err, "parse parquet file "+path)
	}
	prows, err := f.ReadAll(entitySchema)
	if err != nil {
		return nil, parqueerr.Wrap(parqueerr.Internal, err, "decode parquet rows "+path)
	}

	rows := make([]mergedRow, 0, len(prows))
	for _, pr := range prows {
		ent, seq, err := rowToEntity(pr)
		if err != nil {
			return nil, err
		}
		rows = append(rows, mergedRow{ent: ent, seq: seq, fields: snapshotFields(ent)})
	}
	if !bypassCache {
		e.cache.Put(key, rows, len(data))
	}
	return rows, nil
}

func project(e *entity.Entity, fields []string) *entity.Entity {
	c := e.Clone()
	keep := make(map[string]any, len(fields))
	wanted := make(map[string]bool, len(fields))
	for _, f := range fields {
		wanted[f] = true
	}
	for k, v := range c.Fields {
		if wanted[k] {
			keep[k] = v
		}
	}
	c.Fields = keep
	return c
}

// hydrate replaces RelSet-valued fields named in fields with the
// resolved target entities where possible, bounded to one level of
// relationship resolution and visiting each (ns,id) at most once per
// call so cyclic relationships terminate.
func (e *Engine) hydrate(ctx context.Context, entities []*entity.Entity, fields []string, includeDeleted bool) error {
	visited := make(map[string]bool)
	wanted := make(map[string]bool, len(fields))
	for _, f := range fields {
		wanted[f] = true
	}
	for _, ent := range entities {
		for fieldName, v := range ent.Fields {
			if !wanted[fieldName] {
				continue
			}
			rs, ok := v.(*entity.RelSet)
			if !ok {
				continue
			}
			resolved := make(map[string]*entity.Entity, rs.Len())
			for _, label := range rs.Labels() {
				id, _ := rs.Get(label)
				if visited[id] {
					continue
				}
				visited[id] = true
				targetNS := entity.Namespace(id)
				if targetNS == "" || targetNS == id {
					continue
				}
				target, err := e.getLocked(ctx, targetNS, id, GetOptions{IncludeDeleted: includeDeleted})
				if err != nil {
					return err
				}
				resolved[label] = target
			}
			ent.Fields[fieldName] = resolved
		}
	}
	return nil
}

type cursor struct {
	lastID string
}

func encodeCursor(lastID string) string {
	payload, _ := json.Marshal(map[string]string{"lastId": lastID})
	return base64.URLEncoding.EncodeToString(payload)
}

func decodeCursor(s string) (cursor, bool) {
	if s == "" {
		return cursor{}, false
	}
	data, err := base64.URLEncoding.DecodeString(s)
	if err != nil {
		return cursor{}, false
	}
	var payload struct {
		LastID string `json:"lastId"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return cursor{}, false
	}
	return cursor{lastID: payload.LastID}, true
}

