package engine

import (
	"context"
	"fmt"

	"github.com/parquedb/parquedb/entity"
	"github.com/parquedb/parquedb/internal/parqueerr"
	"github.com/parquedb/parquedb/parquetfile"
	"github.com/parquedb/parquedb/pending"
	"github.com/parquedb/parquedb/schema"
	"github.com/parquedb/parquedb/wal"
)

// CreateOptions configures Create/CreateMany.
type CreateOptions struct {
	Actor          string
	SkipValidation bool
}

// UpdateOptions configures Update.
type UpdateOptions struct {
	Actor           string
	ExpectedVersion *int64
	Upsert          bool
	ReturnDocument  bool
}

// DeleteOptions configures Delete/DeleteMany.
type DeleteOptions struct {
	Actor           string
	Hard            bool
	ExpectedVersion *int64
}

// DeleteResult is returned by Delete/DeleteMany.
type DeleteResult struct {
	DeletedCount int
}

const maxDeleteManyBatch = 10000

// Create inserts one new entity into ns.
func (e *Engine) Create(ctx context.Context, ns string, data map[string]any, opts CreateOptions) (*entity.Entity, error) {
	entities, err := e.CreateMany(ctx, ns, []map[string]any{data}, opts)
	if err != nil {
		return nil, err
	}
	return entities[0], nil
}

// CreateMany validates, sequences, and durably commits N new entities to
// ns as a single pending row group and a single WAL block.
func (e *Engine) CreateMany(ctx context.Context, ns string, data []map[string]any, opts CreateOptions) ([]*entity.Entity, error) {
	if err := withContext(ctx); err != nil {
		return nil, err
	}
	if err := entity.ValidateNamespace(ns); err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, parqueerr.New(parqueerr.InvalidArgument, "createMany requires at least one document")
	}

	if !opts.SkipValidation {
		if err := e.validateAll(ns, data); err != nil {
			return nil, err
		}
	}

	mu := e.nsLock(ns)
	mu.Lock()
	defer mu.Unlock()

	n := int64(len(data))
	first, err := e.wal.Allocate(ctx, ns, n)
	if err != nil {
		return nil, err
	}

	now := e.now()
	entities := make([]*entity.Entity, len(data))
	rows := make([]parquetfile.Row, len(data))
	events := make([]wal.Event, len(data))
	gen := e.eventGen()

	for i, d := range data {
		seq := first + int64(i)
		localID := entity.EncodeLocalID(seq)
		ent := entity.New(ns, localID, d, opts.Actor, now)
		entities[i] = ent

		row, err := entityToRow(ent, seq)
		if err != nil {
			return nil, err
		}
		rows[i] = row

		events[i] = wal.Event{
			ID:     gen.Next(),
			Seq:    seq,
			TS:     now,
			Op:     wal.OpCreate,
			Target: "entity:" + ns + ":" + localID,
			After:  snapshotFields(ent),
			Actor:  opts.Actor,
		}
	}

	if err := e.commitRowGroup(ctx, ns, first, first+n-1, int(n), rows, events); err != nil {
		return nil, err
	}
	e.recordMutation(ns, "create")
	return entities, nil
}

// Update resolves the current entity, applies ops, and commits the
// result as a new pending row plus an UPDATE event.
func (e *Engine) Update(ctx context.Context, ns, id string, ops UpdateOps, opts UpdateOptions) (*entity.Entity, error) {
	if err := withContext(ctx); err != nil {
		return nil, err
	}
	if err := entity.ValidateNamespace(ns); err != nil {
		return nil, err
	}

	mu := e.nsLock(ns)
	mu.Lock()
	defer mu.Unlock()

	current, err := e.getLocked(ctx, ns, id, GetOptions{IncludeDeleted: true})
	if err != nil {
		return nil, err
	}
	if current == nil {
		if opts.Upsert {
			created, err := e.CreateMany(ctx, ns, []map[string]any{{}}, CreateOptions{Actor: opts.Actor})
			if err != nil {
				return nil, err
			}
			current = created[0]
		} else {
			return nil, nil
		}
	}
	if opts.ExpectedVersion != nil && *opts.ExpectedVersion != current.Version {
		return nil, parqueerr.Newf(parqueerr.ConcurrencyConflict,
			"expected version %d, have %d", *opts.ExpectedVersion, current.Version)
	}

	before := snapshotFields(current)
	updated := current.Clone()
	nowMicros := e.now().UnixMicro()
	if err := applyOperators(updated.Fields, ops, nowMicros, e.linkResolver(ctx)); err != nil {
		return nil, err
	}
	updated.Version++
	updated.UpdatedAt = e.now()
	updated.UpdatedBy = opts.Actor

	after := snapshotFields(updated)
	if err := e.commitSingle(ctx, ns, updated, wal.OpUpdate, before, after, opts.Actor); err != nil {
		return nil, err
	}
	e.recordMutation(ns, "update")
	return updated, nil
}

// Delete removes one entity, soft by default.
func (e *Engine) Delete(ctx context.Context, ns, id string, opts DeleteOptions) (*DeleteResult, error) {
	if err := withContext(ctx); err != nil {
		return nil, err
	}
	if err := entity.ValidateNamespace(ns); err != nil {
		return nil, err
	}

	mu := e.nsLock(ns)
	mu.Lock()
	defer mu.Unlock()

	current, err := e.getLocked(ctx, ns, id, GetOptions{IncludeDeleted: true})
	if err != nil {
		return nil, err
	}
	if current == nil || current.IsDeleted() {
		return &DeleteResult{DeletedCount: 0}, nil
	}
	if opts.ExpectedVersion != nil && *opts.ExpectedVersion != current.Version {
		return nil, parqueerr.Newf(parqueerr.ConcurrencyConflict,
			"expected version %d, have %d", *opts.ExpectedVersion, current.Version)
	}

	before := snapshotFields(current)
	now := e.now()
	deleted := current.Clone()
	deleted.Version++
	deleted.UpdatedAt = now
	deleted.UpdatedBy = opts.Actor
	deleted.DeletedAt = &now
	deleted.DeletedBy = opts.Actor

	var after map[string]any
	if !opts.Hard {
		after = snapshotFields(deleted)
	}
	if err := e.commitDelete(ctx, ns, deleted, before, after, opts.Actor, opts.Hard); err != nil {
		return nil, err
	}
	e.recordMutation(ns, "delete")
	return &DeleteResult{DeletedCount: 1}, nil
}

// DeleteMany deletes every entity matching filter, up to a bounded batch
// size, as independent per-entity events behind one logical call.
func (e *Engine) DeleteMany(ctx context.Context, ns string, filter Filter, opts DeleteOptions) (*DeleteResult, error) {
	if err := withContext(ctx); err != nil {
		return nil, err
	}
	found, err := e.Find(ctx, ns, filter, FindOptions{Limit: maxDeleteManyBatch})
	if err != nil {
		return nil, err
	}
	count := 0
	for _, ent := range found.Items {
		res, err := e.Delete(ctx, ns, ent.ID, opts)
		if err != nil {
			return nil, err
		}
		count += res.DeletedCount
	}
	return &DeleteResult{DeletedCount: count}, nil
}

// commitRowGroup performs the three-part durable commit for a batch of
// new rows: write the pending Parquet file, append the pending-store
// entry, append the WAL block. The Parquet file is written first so a
// crash before the index entry exists only orphans a blob (reclaimable),
// never a half-visible entity.
func (e *Engine) commitRowGroup(ctx context.Context, ns string, firstSeq, lastSeq int64, rowCount int, rows []parquetfile.Row, events []wal.Event) error {
	data, err := parquetfile.Write(entitySchema, rows, parquetfile.WriteOptions{
		RowGroupSize: e.effectiveRowGroupSize(),
		CreatedBy:    "ParqueDB",
		KeyValues:    map[string]string{"creator": "ParqueDB", "version": EngineVersion},
	})
	if err != nil {
		return parqueerr.Wrap(parqueerr.Internal, err, "encode pending row group")
	}

	pendingID := fmt.Sprintf("%s-%020d", ns, firstSeq)
	path := pendingPath(ns, pendingID)
	if _, err := e.backend.WriteAtomic(ctx, path, data); err != nil {
		return parqueerr.Wrap(parqueerr.StorageUnavailable, err, "write pending parquet file").WithRetry(true)
	}

	if _, err := e.pending.Add(ctx, pending.Entry{
		PendingID: pendingID,
		Namespace: ns,
		Path:      path,
		RowCount:  rowCount,
		FirstSeq:  firstSeq,
		LastSeq:   lastSeq,
		CreatedAt: e.now(),
	}); err != nil {
		return err
	}

	if err := e.wal.Append(ctx, ns, events); err != nil {
		return err
	}
	e.cache.Invalidate(path)
	e.log.Info("row group committed", "ns", ns, "firstSeq", firstSeq, "lastSeq", lastSeq, "rows", rowCount)
	return nil
}

func (e *Engine) commitSingle(ctx context.Context, ns string, updated *entity.Entity, op wal.Op, before, after map[string]any, actor string) error {
	first, err := e.wal.Allocate(ctx, ns, 1)
	if err != nil {
		return err
	}
	row, err := entityToRow(updated, first)
	if err != nil {
		return err
	}
	ev := wal.Event{
		ID:     e.eventGen().Next(),
		Seq:    first,
		TS:     e.now(),
		Op:     op,
		Target: "entity:" + ns + ":" + entity.LocalID(updated.ID),
		Before: before,
		After:  after,
		Actor:  actor,
	}
	return e.commitRowGroup(ctx, ns, first, first, 1, []parquetfile.Row{row}, []wal.Event{ev})
}

func (e *Engine) commitDelete(ctx context.Context, ns string, deleted *entity.Entity, before, after map[string]any, actor string, hard bool) error {
	if hard {
		return e.commitSingle(ctx, ns, deleted, wal.OpDelete, before, nil, actor)
	}
	return e.commitSingle(ctx, ns, deleted, wal.OpDelete, before, after, actor)
}

func (e *Engine) effectiveRowGroupSize() int {
	return e.rowGroupSize
}

// eventGen returns the package-level monotonic generator shared by every
// Engine and namespace; the generator does its own locking, so callers
// need no extra serialization around it.
func (e *Engine) eventGen() *eventGenerator {
	return sharedEventGen
}

// linkResolver returns a function validating that a $link target exists,
// used by Update's applyOperators call. Existence is checked via a plain
// get against the target's namespace, derived from the id's own "ns/local"
// shape rather than the schema (so dangling-but-referenced namespaces
// still validate existence, not just shape).
func (e *Engine) linkResolver(ctx context.Context) func(id string) error {
	return func(id string) error {
		ns := entity.Namespace(id)
		if ns == "" || ns == id {
			return nil
		}
		found, err := e.getLocked(ctx, ns, id, GetOptions{})
		if err != nil {
			return err
		}
		if found == nil {
			return parqueerr.Newf(parqueerr.NotFound, "link target %q does not exist", id).WithPath(id)
		}
		return nil
	}
}

// validateAll runs schema validation (if a registry is configured) over
// every candidate document, aggregating violations across the whole
// batch rather than failing on the first document.
func (e *Engine) validateAll(ns string, data []map[string]any) error {
	if e.registry == nil {
		return nil
	}
	coll, ok := e.registry.Collection(ns)
	if !ok {
		return nil
	}
	var violations []parqueerr.Violation
	for i, d := range data {
		res, err := schema.Validate(coll, d, schema.ValidateOptions{Policy: schema.Permissive})
		if err != nil {
			return err
		}
		for _, v := range res.Violations {
			violations = append(violations, parqueerr.Violation{
				Path:    fmt.Sprintf("[%d].%s", i, v.Path),
				Message: v.Message,
			})
		}
	}
	if len(violations) > 0 {
		return parqueerr.Validation(violations)
	}
	return nil
}

func snapshotFields(e *entity.Entity) map[string]any {
	out := map[string]any{
		entity.FieldID:        e.ID,
		entity.FieldType:      e.Type,
		entity.FieldName:      e.Name,
		entity.FieldVersion:   e.Version,
		entity.FieldCreatedAt: e.CreatedAt,
		entity.FieldUpdatedAt: e.UpdatedAt,
		entity.FieldCreatedBy: e.CreatedBy,
		entity.FieldUpdatedBy: e.UpdatedBy,
	}
	if e.DeletedAt != nil {
		out[entity.FieldDeletedAt] = *e.DeletedAt
		out[entity.FieldDeletedBy] = e.DeletedBy
	}
	for k, v := range e.Fields {
		out[k] = v
	}
	return out
}
