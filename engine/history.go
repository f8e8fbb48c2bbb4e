package engine

import (
	"context"
	"strings"
	"time"

	"github.com/parquedb/parquedb/entity"
	"github.com/parquedb/parquedb/wal"
)

// HistoryOptions bounds a GetHistory call to a time window and count.
type HistoryOptions struct {
	From  *time.Time
	To    *time.Time
	Limit int
}

// HistoryEntry is one event recorded against an entity, as returned by
// GetHistory.
type HistoryEntry struct {
	Seq     int64
	EventID string
	TS      time.Time
	Op      string
	Actor   string
	Before  map[string]any
	After   map[string]any
}

// GetHistory returns every event recorded against ns/id, oldest first,
// optionally bounded to [From, To] and truncated to Limit.
func (e *Engine) GetHistory(ctx context.Context, ns, id string, opts HistoryOptions) ([]HistoryEntry, error) {
	if err := withContext(ctx); err != nil {
		return nil, err
	}
	if err := entity.ValidateNamespace(ns); err != nil {
		return nil, err
	}
	events, err := e.wal.EventsForTarget(ctx, ns, targetFor(ns, entity.LocalID(id)))
	if err != nil {
		return nil, err
	}
	out := make([]HistoryEntry, 0, len(events))
	for _, ev := range events {
		if opts.From != nil && ev.TS.Before(*opts.From) {
			continue
		}
		if opts.To != nil && ev.TS.After(*opts.To) {
			continue
		}
		out = append(out, HistoryEntry{
			Seq:     ev.Seq,
			EventID: ev.ID.String(),
			TS:      ev.TS,
			Op:      string(ev.Op),
			Actor:   ev.Actor,
			Before:  ev.Before,
			After:   ev.After,
		})
	}
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

// AsOf reconstructs ns/id's state as of instant at, replaying the event
// log alone (never touching pending/compacted files, which only ever
// hold the current state).
func (e *Engine) AsOf(ctx context.Context, ns, id string, at time.Time, includeDeleted bool) (*entity.Entity, error) {
	if err := withContext(ctx); err != nil {
		return nil, err
	}
	if err := entity.ValidateNamespace(ns); err != nil {
		return nil, err
	}
	return e.getAsOf(ctx, ns, id, at, includeDeleted)
}

func (e *Engine) getAsOf(ctx context.Context, ns, id string, at time.Time, includeDeleted bool) (*entity.Entity, error) {
	target := targetFor(ns, entity.LocalID(id))
	events, err := e.wal.EventsForTarget(ctx, ns, target)
	if err != nil {
		return nil, err
	}
	var last *wal.Event
	for i := range events {
		if events[i].TS.After(at) {
			continue
		}
		if last == nil || events[i].Seq > last.Seq {
			last = &events[i]
		}
	}
	if last == nil {
		return nil, nil
	}
	if last.Op == wal.OpDelete && last.After == nil {
		return nil, nil // hard-deleted as of this instant: nothing survives to reconstruct
	}
	snapshot := last.After
	if snapshot == nil {
		snapshot = last.Before
	}
	ent := fieldsToEntity(id, snapshot)
	if ent.IsDeleted() && !includeDeleted {
		return nil, nil
	}
	return ent, nil
}

// allRowsAsOf reconstructs every entity in ns as of instant at, by
// replaying the full namespace event log and keeping each target's
// highest-sequence event at or before at.
func (e *Engine) allRowsAsOf(ctx context.Context, ns string, at time.Time) ([]mergedRow, error) {
	events, err := e.wal.Events(ctx, ns, 0, 0)
	if err != nil {
		return nil, err
	}
	latest := make(map[string]wal.Event, len(events))
	for _, ev := range events {
		if ev.TS.After(at) {
			continue
		}
		cur, ok := latest[ev.Target]
		if !ok || ev.Seq > cur.Seq {
			latest[ev.Target] = ev
		}
	}
	rows := make([]mergedRow, 0, len(latest))
	for target, ev := range latest {
		if ev.Op == wal.OpDelete && ev.After == nil {
			continue
		}
		snapshot := ev.After
		if snapshot == nil {
			snapshot = ev.Before
		}
		id := idFromTarget(target)
		if id == "" {
			continue
		}
		ent := fieldsToEntity(id, snapshot)
		rows = append(rows, mergedRow{ent: ent, seq: ev.Seq, fields: snapshotFields(ent)})
	}
	return rows, nil
}

func targetFor(ns, localID string) string {
	return "entity:" + ns + ":" + localID
}

// idFromTarget is targetFor's inverse, parsing "entity:<ns>:<localId>"
// back into "<ns>/<localId>".
func idFromTarget(target string) string {
	parts := strings.SplitN(target, ":", 3)
	if len(parts) != 3 {
		return ""
	}
	return parts[1] + "/" + parts[2]
}

// fieldsToEntity rebuilds an Entity from a JSON-round-tripped snapshot
// of snapshotFields' output (an Event's Before/After), the inverse
// needed because WAL events persist through JSON and so lose their
// native Go types (time.Time becomes a string, *entity.RelSet becomes
// its tagged map shape) the same way the $data Parquet column does.
func fieldsToEntity(id string, fields map[string]any) *entity.Entity {
	e := &entity.Entity{ID: id, Fields: make(map[string]any, len(fields))}
	for k, v := range fields {
		switch k {
		case entity.FieldID:
		case entity.FieldType:
			if s, ok := v.(string); ok {
				e.Type = s
			}
		case entity.FieldName:
			if s, ok := v.(string); ok {
				e.Name = s
			}
		case entity.FieldVersion:
			if n, ok := v.(float64); ok {
				e.Version = int64(n)
			}
		case entity.FieldCreatedAt:
			if t, ok := asTime(v); ok {
				e.CreatedAt = t
			}
		case entity.FieldUpdatedAt:
			if t, ok := asTime(v); ok {
				e.UpdatedAt = t
			}
		case entity.FieldCreatedBy:
			if s, ok := v.(string); ok {
				e.CreatedBy = s
			}
		case entity.FieldUpdatedBy:
			if s, ok := v.(string); ok {
				e.UpdatedBy = s
			}
		case entity.FieldDeletedAt:
			if t, ok := asTime(v); ok {
				e.DeletedAt = &t
			}
		case entity.FieldDeletedBy:
			if s, ok := v.(string); ok {
				e.DeletedBy = s
			}
		default:
			if entity.IsRelSetJSON(v) {
				e.Fields[k] = entity.RelSetFromJSON(v)
			} else {
				e.Fields[k] = v
			}
		}
	}
	return e
}
