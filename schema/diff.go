package schema

import (
	"fmt"
	"sort"
	"strings"

	"github.com/hexops/gotextdiff"
	"github.com/hexops/gotextdiff/myers"
	"github.com/hexops/gotextdiff/span"
)

// ChangeKind classifies one field- or collection-level difference
// between two snapshots.
type ChangeKind string

const (
	ChangeCollectionAdded   ChangeKind = "collection_added"
	ChangeCollectionDropped ChangeKind = "collection_dropped"
	ChangeFieldAdded        ChangeKind = "field_added"
	ChangeFieldRemoved      ChangeKind = "field_removed"
	ChangeRequiredRelaxed   ChangeKind = "required_to_optional"
	ChangeOptionalTightened ChangeKind = "optional_to_required"
	ChangeTypeChanged       ChangeKind = "type_changed"
	ChangeScalarToArray     ChangeKind = "scalar_to_array"
	ChangeArrayToScalar     ChangeKind = "array_to_scalar"
	ChangeIndexAdded        ChangeKind = "index_added"
	ChangeIndexRemoved      ChangeKind = "index_removed"
)

// Severity ranks how disruptive a change is to existing readers/writers.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Change is one classified difference between two snapshots.
type Change struct {
	Collection string
	Field      string
	Kind       ChangeKind
	Before     string
	After      string
	Breaking   bool
	Severity   Severity
	Impact     string
}

// DiffResult is the full output of Diff: every change plus a rendered
// unified-diff migration hint.
type DiffResult struct {
	Changes       []Change
	MigrationHint string
}

// Diff compares two snapshots and classifies every collection- and
// field-level change. It never mutates either snapshot; applying any
// resulting change is the caller's responsibility.
func Diff(before, after *Snapshot) *DiffResult {
	var changes []Change

	names := make(map[string]bool)
	for ns := range before.Collections {
		names[ns] = true
	}
	for ns := range after.Collections {
		names[ns] = true
	}
	sortedNames := make([]string, 0, len(names))
	for ns := range names {
		sortedNames = append(sortedNames, ns)
	}
	sort.Strings(sortedNames)

	for _, ns := range sortedNames {
		b, inBefore := before.Collections[ns]
		a, inAfter := after.Collections[ns]
		switch {
		case !inBefore && inAfter:
			changes = append(changes, Change{
				Collection: ns, Kind: ChangeCollectionAdded, Breaking: false,
				Severity: SeverityLow, Impact: fmt.Sprintf("collection %q is new; existing clients are unaffected", ns),
			})
		case inBefore && !inAfter:
			changes = append(changes, Change{
				Collection: ns, Kind: ChangeCollectionDropped, Breaking: true,
				Severity: SeverityCritical, Impact: fmt.Sprintf("collection %q was dropped; reads and writes against it will fail", ns),
			})
		default:
			changes = append(changes, diffCollection(ns, b, a)...)
		}
	}

	return &DiffResult{
		Changes:       changes,
		MigrationHint: renderMigrationHint(before, after),
	}
}

func diffCollection(ns string, b, a *Collection) []Change {
	var changes []Change

	fieldNames := make(map[string]bool)
	for f := range b.Fields {
		fieldNames[f] = true
	}
	for f := range a.Fields {
		fieldNames[f] = true
	}
	sorted := make([]string, 0, len(fieldNames))
	for f := range fieldNames {
		sorted = append(sorted, f)
	}
	sort.Strings(sorted)

	for _, f := range sorted {
		bft, inBefore := b.Fields[f]
		aft, inAfter := a.Fields[f]

		switch {
		case !inBefore && inAfter:
			kind, breaking, sev := ChangeFieldAdded, false, SeverityLow
			if aft.Required && !aft.HasDefault {
				breaking, sev = true, SeverityHigh
			}
			changes = append(changes, Change{
				Collection: ns, Field: f, Kind: kind, After: aft.Raw,
				Breaking: breaking, Severity: sev,
				Impact: fieldAddedImpact(f, aft),
			})
		case inBefore && !inAfter:
			changes = append(changes, Change{
				Collection: ns, Field: f, Kind: ChangeFieldRemoved, Before: bft.Raw,
				Breaking: true, Severity: SeverityHigh,
				Impact: fmt.Sprintf("field %q was removed; readers projecting it will see it absent", f),
			})
		default:
			changes = append(changes, diffField(ns, f, bft, aft)...)
		}
	}
	return changes
}

func fieldAddedImpact(f string, ft *FieldType) string {
	if ft.Required && !ft.HasDefault {
		return fmt.Sprintf("field %q is required with no default; existing writers must be updated before writing", f)
	}
	return fmt.Sprintf("field %q is new and optional; existing data is unaffected", f)
}

func diffField(ns, f string, b, a *FieldType) []Change {
	var changes []Change

	if b.Array != a.Array {
		kind := ChangeScalarToArray
		if b.Array {
			kind = ChangeArrayToScalar
		}
		changes = append(changes, Change{
			Collection: ns, Field: f, Kind: kind, Before: b.Raw, After: a.Raw,
			Breaking: true, Severity: SeverityCritical,
			Impact: fmt.Sprintf("field %q changed cardinality; existing readers will misinterpret stored values", f),
		})
	}

	if b.Atom != a.Atom {
		changes = append(changes, Change{
			Collection: ns, Field: f, Kind: ChangeTypeChanged, Before: b.Raw, After: a.Raw,
			Breaking: true, Severity: SeverityHigh,
			Impact: fmt.Sprintf("field %q's underlying type changed from %s to %s", f, b.Atom, a.Atom),
		})
	}

	if b.Required && !a.Required {
		changes = append(changes, Change{
			Collection: ns, Field: f, Kind: ChangeRequiredRelaxed, Before: b.Raw, After: a.Raw,
			Breaking: false, Severity: SeverityLow,
			Impact: fmt.Sprintf("field %q became optional; existing writers are unaffected", f),
		})
	}
	if !b.Required && a.Required {
		sev := SeverityHigh
		breaking := true
		if a.HasDefault {
			sev = SeverityMedium
		}
		changes = append(changes, Change{
			Collection: ns, Field: f, Kind: ChangeOptionalTightened, Before: b.Raw, After: a.Raw,
			Breaking: breaking, Severity: sev,
			Impact: fmt.Sprintf("field %q became required; writers omitting it will now fail validation", f),
		})
	}

	if !b.Indexed && a.Indexed {
		changes = append(changes, Change{
			Collection: ns, Field: f, Kind: ChangeIndexAdded, Breaking: false, Severity: SeverityLow,
			Impact: fmt.Sprintf("field %q gained an index; no reader-visible change", f),
		})
	}
	if b.Indexed && !a.Indexed {
		changes = append(changes, Change{
			Collection: ns, Field: f, Kind: ChangeIndexRemoved, Breaking: false, Severity: SeverityLow,
			Impact: fmt.Sprintf("field %q lost its index; queries may slow down but remain correct", f),
		})
	}

	return changes
}

// renderMigrationHint formats both snapshots as sorted "collection.field:
// type" lines and renders a unified diff between them, giving a reader
// a concrete before/after listing alongside the classified Changes.
func renderMigrationHint(before, after *Snapshot) string {
	b := renderSnapshotLines(before)
	a := renderSnapshotLines(after)
	edits := myers.ComputeEdits(span.URIFromPath("schema.before"), b, a)
	return fmt.Sprint(gotextdiff.ToUnified("schema.before", "schema.after", b, edits))
}

func renderSnapshotLines(s *Snapshot) string {
	names := make([]string, 0, len(s.Collections))
	for ns := range s.Collections {
		names = append(names, ns)
	}
	sort.Strings(names)

	var b strings.Builder
	for _, ns := range names {
		c := s.Collections[ns]
		fields := make([]string, 0, len(c.Fields))
		for f := range c.Fields {
			fields = append(fields, f)
		}
		sort.Strings(fields)
		for _, f := range fields {
			fmt.Fprintf(&b, "%s.%s: %s\n", ns, f, c.Fields[f].Raw)
		}
	}
	return b.String()
}
