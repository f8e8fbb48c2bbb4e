package engine

import (
	"encoding/json"
	"fmt"

	"github.com/parquedb/parquedb/entity"
	"github.com/parquedb/parquedb/internal/parqueerr"
)

// UpdateOps is the set of update operators applied atomically to an
// entity's current fields in a single update call.
type UpdateOps struct {
	Set         map[string]any
	Unset       []string
	Inc         map[string]float64
	Mul         map[string]float64
	Min         map[string]any
	Max         map[string]any
	Push        map[string]any
	Pull        map[string]any
	AddToSet    map[string]any
	CurrentDate []string
	// Link maps a relationship field name to a target id or slice of
	// target ids to union into the field's RelSet.
	Link map[string]any
	// Unlink maps a relationship field name to a target id, slice of
	// ids, or nil (meaning: clear every target).
	Unlink map[string]any
}

// IsEmpty reports whether ops has no operators set, used to reject a
// no-op update request.
func (ops UpdateOps) IsEmpty() bool {
	return len(ops.Set) == 0 && len(ops.Unset) == 0 && len(ops.Inc) == 0 &&
		len(ops.Mul) == 0 && len(ops.Min) == 0 && len(ops.Max) == 0 &&
		len(ops.Push) == 0 && len(ops.Pull) == 0 && len(ops.AddToSet) == 0 &&
		len(ops.CurrentDate) == 0 && len(ops.Link) == 0 && len(ops.Unlink) == 0
}

// applyOperators mutates fields in place per ops. nowMicros is used for
// $currentDate. resolveTarget validates a $link target's existence; it
// may be nil, in which case no existence check is performed.
func applyOperators(fields map[string]any, ops UpdateOps, nowMicros int64, resolveTarget func(id string) error) error {
	for k, v := range ops.Set {
		fields[k] = v
	}
	for _, k := range ops.Unset {
		delete(fields, k)
	}
	for k, delta := range ops.Inc {
		cur, err := numericOf(fields[k])
		if err != nil {
			return parqueerr.Wrap(parqueerr.InvalidArgument, err, "$inc on "+k).WithPath(k)
		}
		fields[k] = cur + delta
	}
	for k, factor := range ops.Mul {
		cur, err := numericOf(fields[k])
		if err != nil {
			return parqueerr.Wrap(parqueerr.InvalidArgument, err, "$mul on "+k).WithPath(k)
		}
		fields[k] = cur * factor
	}
	for k, v := range ops.Min {
		if !fieldExists(fields, k) || lessValue(v, fields[k]) {
			fields[k] = v
		}
	}
	for k, v := range ops.Max {
		if !fieldExists(fields, k) || lessValue(fields[k], v) {
			fields[k] = v
		}
	}
	for k, v := range ops.Push {
		arr, _ := fields[k].([]any)
		fields[k] = append(arr, v)
	}
	for k, v := range ops.Pull {
		arr, _ := fields[k].([]any)
		fields[k] = pullValue(arr, v)
	}
	for k, v := range ops.AddToSet {
		arr, _ := fields[k].([]any)
		if !containsValue(arr, v) {
			fields[k] = append(arr, v)
		} else {
			fields[k] = arr
		}
	}
	for _, k := range ops.CurrentDate {
		fields[k] = nowMicros
	}
	for field, targets := range ops.Link {
		rs := relSetOf(fields[field])
		for _, id := range normalizeIDs(targets) {
			if resolveTarget != nil {
				if err := resolveTarget(id); err != nil {
					return err
				}
			}
			rs.Set(id, id)
		}
		fields[field] = rs
	}
	for field, targets := range ops.Unlink {
		rs := relSetOf(fields[field])
		if targets == nil {
			for _, l := range rs.Labels() {
				rs.Remove(l)
			}
		} else {
			for _, id := range normalizeIDs(targets) {
				rs.RemoveID(id)
			}
		}
		fields[field] = rs
	}
	return nil
}

func relSetOf(v any) *entity.RelSet {
	switch rs := v.(type) {
	case *entity.RelSet:
		return rs
	default:
		if entity.IsRelSetJSON(v) {
			return entity.RelSetFromJSON(v)
		}
		return entity.NewRelSet()
	}
}

func normalizeIDs(v any) []string {
	switch t := v.(type) {
	case string:
		return []string{t}
	case []string:
		return t
	case []any:
		out := make([]string, 0, len(t))
		for _, e := range t {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func fieldExists(fields map[string]any, key string) bool {
	_, ok := fields[key]
	return ok
}

func numericOf(v any) (float64, error) {
	switch n := v.(type) {
	case nil:
		return 0, nil
	case int:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case float32:
		return float64(n), nil
	case float64:
		return n, nil
	default:
		return 0, fmt.Errorf("expected a number, got %T", v)
	}
}

// lessValue orders two JSON-shaped scalars for $min/$max; numbers
// compare numerically, everything else falls back to string comparison
// of their fmt.Sprint renderings.
func lessValue(a, b any) bool {
	an, aErr := numericOf(a)
	bn, bErr := numericOf(b)
	if aErr == nil && bErr == nil {
		return an < bn
	}
	return fmt.Sprint(a) < fmt.Sprint(b)
}

// valuesEqual implements $addToSet/$pull matching as deep equality by
// comparing canonical JSON encodings rather than requiring identical Go
// types (callers may pass map[string]any from JSON or a native
// struct-shaped value).
func valuesEqual(a, b any) bool {
	aj, aErr := json.Marshal(a)
	bj, bErr := json.Marshal(b)
	if aErr != nil || bErr != nil {
		return false
	}
	return string(aj) == string(bj)
}

func containsValue(arr []any, v any) bool {
	for _, e := range arr {
		if valuesEqual(e, v) {
			return true
		}
	}
	return false
}

func pullValue(arr []any, v any) []any {
	out := arr[:0:0]
	for _, e := range arr {
		if !valuesEqual(e, v) {
			out = append(out, e)
		}
	}
	return out
}
