package engine

import (
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strings"
)

// Filter is a predicate over an entity's fields (system and user fields
// alike). A field key maps to either a literal (implicit $eq) or an
// operator map ({"$gt": 10}); the reserved keys $and, $or, $not compose
// sub-filters.
type Filter map[string]any

// comparisonOps lists the operator keys recognized inside a field's
// predicate map, distinguishing "$gt" from a literal map value the
// caller actually wants to equality-match. A user field literally named
// like an operator is vanishingly unlikely and not specially handled.
var comparisonOps = map[string]bool{
	"$eq": true, "$ne": true, "$gt": true, "$gte": true, "$lt": true, "$lte": true,
	"$in": true, "$nin": true, "$exists": true, "$regex": true,
}

// Matches reports whether fields (a merged view of system + user fields,
// as produced by snapshotFields) satisfies f.
func Matches(fields map[string]any, f Filter) bool {
	if len(f) == 0 {
		return true
	}
	for key, cond := range f {
		switch key {
		case "$and":
			for _, sub := range toFilterSlice(cond) {
				if !Matches(fields, sub) {
					return false
				}
			}
		case "$or":
			subs := toFilterSlice(cond)
			if len(subs) == 0 {
				continue
			}
			ok := false
			for _, sub := range subs {
				if Matches(fields, sub) {
					ok = true
					break
				}
			}
			if !ok {
				return false
			}
		case "$not":
			sub, ok := cond.(Filter)
			if !ok {
				if m, isMap := cond.(map[string]any); isMap {
					sub = Filter(m)
				}
			}
			if Matches(fields, sub) {
				return false
			}
		default:
			if !matchesField(fields[key], fieldPresent(fields, key), cond) {
				return false
			}
		}
	}
	return true
}

func fieldPresent(fields map[string]any, key string) bool {
	_, ok := fields[key]
	return ok
}

func toFilterSlice(v any) []Filter {
	switch t := v.(type) {
	case []Filter:
		return t
	case []any:
		out := make([]Filter, 0, len(t))
		for _, e := range t {
			if f, ok := e.(Filter); ok {
				out = append(out, f)
			} else if m, ok := e.(map[string]any); ok {
				out = append(out, Filter(m))
			}
		}
		return out
	default:
		return nil
	}
}

func matchesField(value any, present bool, cond any) bool {
	opMap, isOpMap := asOperatorMap(cond)
	if !isOpMap {
		return present && valuesEqual(value, cond)
	}
	for op, want := range opMap {
		if !evalOp(op, value, present, want) {
			return false
		}
	}
	return true
}

// asOperatorMap reports whether cond looks like {"$gt": v, ...} rather
// than a literal value the caller wants equality-matched.
func asOperatorMap(cond any) (map[string]any, bool) {
	var m map[string]any
	switch t := cond.(type) {
	case Filter:
		m = t
	case map[string]any:
		m = t
	default:
		return nil, false
	}
	for k := range m {
		if !comparisonOps[k] {
			return nil, false
		}
	}
	return m, len(m) > 0
}

func evalOp(op string, value any, present bool, want any) bool {
	switch op {
	case "$eq":
		return present && valuesEqual(value, want)
	case "$ne":
		return !present || !valuesEqual(value, want)
	case "$gt":
		return present && compareOrdered(value, want) > 0
	case "$gte":
		return present && compareOrdered(value, want) >= 0
	case "$lt":
		return present && compareOrdered(value, want) < 0
	case "$lte":
		return present && compareOrdered(value, want) <= 0
	case "$exists":
		wantExists, _ := want.(bool)
		return present == wantExists
	case "$in":
		return present && containsValue(toAnySlice(want), value)
	case "$nin":
		return !present || !containsValue(toAnySlice(want), value)
	case "$regex":
		pattern, _ := want.(string)
		s, ok := value.(string)
		if !present || !ok {
			return false
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return false
		}
		return re.MatchString(s)
	default:
		return false
	}
}

func toAnySlice(v any) []any {
	switch t := v.(type) {
	case []any:
		return t
	default:
		rv := reflect.ValueOf(v)
		if rv.Kind() != reflect.Slice {
			return nil
		}
		out := make([]any, rv.Len())
		for i := range out {
			out[i] = rv.Index(i).Interface()
		}
		return out
	}
}

// compareOrdered orders two field values numerically, lexicographically,
// or as time instants, whichever applies; used by $gt/$gte/$lt/$lte.
func compareOrdered(a, b any) int {
	if an, aErr := numericOf(a); aErr == nil {
		if bn, bErr := numericOf(b); bErr == nil {
			switch {
			case an < bn:
				return -1
			case an > bn:
				return 1
			default:
				return 0
			}
		}
	}
	if at, ok := asTime(a); ok {
		if bt, ok := asTime(b); ok {
			switch {
			case at.Before(bt):
				return -1
			case at.After(bt):
				return 1
			default:
				return 0
			}
		}
	}
	as, bs := fmt.Sprint(a), fmt.Sprint(b)
	return strings.Compare(as, bs)
}

// SortField is one (field, direction) pair in a stable multi-key sort.
type SortField struct {
	Field string
	Desc  bool
}

// sortRows applies a stable multi-key sort over rows (each a merged
// system+user field view paired with its owning entity id).
func sortRows(rows []mergedRow, sortSpec []SortField) {
	if len(sortSpec) == 0 {
		return
	}
	sort.SliceStable(rows, func(i, j int) bool {
		for _, s := range sortSpec {
			vi, vj := rows[i].fields[s.Field], rows[j].fields[s.Field]
			c := compareOrdered(vi, vj)
			if c == 0 {
				continue
			}
			if s.Desc {
				return c > 0
			}
			return c < 0
		}
		return false
	})
}
