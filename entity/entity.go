// Package entity defines ParqueDB's logical document model: the system
// fields every stored entity carries, namespaces, and relationship
// values.
package entity

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/parquedb/parquedb/internal/parqueerr"
)

var namespacePattern = regexp.MustCompile(`^[a-z][a-z0-9_-]*$`)

// ValidateNamespace enforces the namespace naming rule and rejects
// reserved prefixes.
func ValidateNamespace(ns string) error {
	if ns == "" || !namespacePattern.MatchString(ns) {
		return parqueerr.Newf(parqueerr.InvalidArgument, "invalid namespace %q", ns)
	}
	if strings.Contains(ns, "/") {
		return parqueerr.Newf(parqueerr.InvalidArgument, "namespace %q must not contain '/'", ns)
	}
	if IsReserved(ns) {
		return parqueerr.Newf(parqueerr.InvalidArgument, "namespace %q is reserved", ns)
	}
	return nil
}

// IsReserved reports whether ns starts with '_' or '$'.
func IsReserved(ns string) bool {
	return strings.HasPrefix(ns, "_") || strings.HasPrefix(ns, "$")
}

// RelSet is an ordered mapping from display label to entity id,
// representing a single- or multi-valued relationship.
type RelSet struct {
	labels []string
	ids    map[string]string
}

// NewRelSet builds an empty RelSet.
func NewRelSet() *RelSet {
	return &RelSet{ids: make(map[string]string)}
}

// Set inserts or updates the target id for label, preserving insertion
// order for new labels.
func (r *RelSet) Set(label, id string) {
	if _, ok := r.ids[label]; !ok {
		r.labels = append(r.labels, label)
	}
	r.ids[label] = id
}

// Remove deletes label from the set, if present.
func (r *RelSet) Remove(label string) {
	if _, ok := r.ids[label]; !ok {
		return
	}
	delete(r.ids, label)
	for i, l := range r.labels {
		if l == label {
			r.labels = append(r.labels[:i], r.labels[i+1:]...)
			break
		}
	}
}

// RemoveID deletes every label pointing at id, used by $unlink.
func (r *RelSet) RemoveID(id string) {
	for _, l := range r.Labels() {
		if r.ids[l] == id {
			r.Remove(l)
		}
	}
}

// Get returns the id bound to label, if any.
func (r *RelSet) Get(label string) (string, bool) {
	v, ok := r.ids[label]
	return v, ok
}

// HasID reports whether any label points at id.
func (r *RelSet) HasID(id string) bool {
	for _, v := range r.ids {
		if v == id {
			return true
		}
	}
	return false
}

// Labels returns labels in insertion order.
func (r *RelSet) Labels() []string {
	out := make([]string, len(r.labels))
	copy(out, r.labels)
	return out
}

// Len returns the number of targets in the set.
func (r *RelSet) Len() int {
	if r == nil {
		return 0
	}
	return len(r.labels)
}

func (r *RelSet) isEmpty() bool {
	return r == nil || len(r.labels) == 0
}

// IDs returns the target ids in label-insertion order.
func (r *RelSet) IDs() []string {
	out := make([]string, 0, len(r.labels))
	for _, l := range r.labels {
		out = append(out, r.ids[l])
	}
	return out
}

// relSetTag marks a RelSet's JSON encoding so the read path can tell it
// apart from a plain nested object when decoding the generic $data
// column back into a map[string]any.
const relSetTag = "$relset"

type relEntry struct {
	Label string `json:"label"`
	ID    string `json:"id"`
}

// MarshalJSON encodes r as a tagged, order-preserving entry list.
func (r *RelSet) MarshalJSON() ([]byte, error) {
	entries := make([]relEntry, 0, r.Len())
	for _, l := range r.Labels() {
		id, _ := r.Get(l)
		entries = append(entries, relEntry{Label: l, ID: id})
	}
	return json.Marshal(map[string]any{
		"$type":   relSetTag,
		"entries": entries,
	})
}

// UnmarshalJSON decodes r from the tagged form MarshalJSON produces.
func (r *RelSet) UnmarshalJSON(data []byte) error {
	var payload struct {
		Entries []relEntry `json:"entries"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return err
	}
	*r = *NewRelSet()
	for _, e := range payload.Entries {
		r.Set(e.Label, e.ID)
	}
	return nil
}

// IsRelSetJSON reports whether v is the generic map[string]any shape
// produced by decoding a MarshalJSON'd RelSet through encoding/json into
// an untyped map (as happens when the whole $data column is decoded
// generically), so the read path can re-hydrate it into a *RelSet.
func IsRelSetJSON(v any) bool {
	m, ok := v.(map[string]any)
	if !ok {
		return false
	}
	t, ok := m["$type"].(string)
	return ok && t == relSetTag
}

// RelSetFromJSON converts the generic map form back into a *RelSet.
func RelSetFromJSON(v any) *RelSet {
	m, ok := v.(map[string]any)
	if !ok {
		return NewRelSet()
	}
	rs := NewRelSet()
	entries, _ := m["entries"].([]any)
	for _, raw := range entries {
		entry, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		label, _ := entry["label"].(string)
		id, _ := entry["id"].(string)
		if label != "" {
			rs.Set(label, id)
		}
	}
	return rs
}

// Clone returns a deep copy of r.
func (r *RelSet) Clone() *RelSet {
	if r == nil {
		return NewRelSet()
	}
	c := &RelSet{
		labels: append([]string(nil), r.labels...),
		ids:    make(map[string]string, len(r.ids)),
	}
	for k, v := range r.ids {
		c.ids[k] = v
	}
	return c
}

// Equal reports whether r and other contain the same label->id bindings,
// regardless of order.
func (r *RelSet) Equal(other *RelSet) bool {
	if r == nil || other == nil {
		return r.isEmpty() && other.isEmpty()
	}
	if len(r.ids) != len(other.ids) {
		return false
	}
	for k, v := range r.ids {
		if ov, ok := other.ids[k]; !ok || ov != v {
			return false
		}
	}
	return true
}

// System fields carry reserved names that user data may never shadow.
const (
	FieldID        = "$id"
	FieldType      = "$type"
	FieldName      = "name"
	FieldVersion   = "version"
	FieldCreatedAt = "createdAt"
	FieldUpdatedAt = "updatedAt"
	FieldCreatedBy = "createdBy"
	FieldUpdatedBy = "updatedBy"
	FieldDeletedAt = "deletedAt"
	FieldDeletedBy = "deletedBy"
)

// Entity is the fundamental ParqueDB document: system fields plus an
// arbitrary bag of user fields, which may include RelSet values.
type Entity struct {
	ID        string
	Type      string
	Name      string
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
	CreatedBy string
	UpdatedBy string
	DeletedAt *time.Time
	DeletedBy string

	Fields map[string]any
}

// New constructs an Entity with system fields applied and fields copied
// (shallow) from data.
func New(ns string, localID string, data map[string]any, actor string, now time.Time) *Entity {
	e := &Entity{
		ID:        ns + "/" + localID,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
		CreatedBy: actor,
		UpdatedBy: actor,
		Fields:    make(map[string]any, len(data)),
	}
	for k, v := range data {
		if k == FieldType {
			continue
		}
		e.Fields[k] = v
	}
	e.Type = deriveType(ns, data)
	e.Name = deriveName(data)
	return e
}

// Namespace extracts the namespace prefix of id ("ns/local" -> "ns").
func Namespace(id string) string {
	if i := strings.IndexByte(id, '/'); i >= 0 {
		return id[:i]
	}
	return id
}

// LocalID extracts the local-id suffix of id ("ns/local" -> "local").
func LocalID(id string) string {
	if i := strings.IndexByte(id, '/'); i >= 0 {
		return id[i+1:]
	}
	return ""
}

// EncodeLocalID renders an engine-assigned namespace-local sequence
// number as a lexicographically sortable local id.
func EncodeLocalID(seq int64) string {
	// Fixed-width zero-padded base36 keeps ordering stable well past
	// 2^53 while staying shorter than decimal for large sequences.
	s := strconv.FormatInt(seq, 36)
	const width = 13 // covers sequences up to 36^13, far beyond int64 range
	if len(s) < width {
		s = strings.Repeat("0", width-len(s)) + s
	}
	return s
}

func deriveType(ns string, data map[string]any) string {
	if t, ok := data[FieldType].(string); ok && t != "" {
		return t
	}
	return singularizeCapitalize(ns)
}

func deriveName(data map[string]any) string {
	if n, ok := data[FieldName].(string); ok && n != "" {
		return n
	}
	if t, ok := data["title"].(string); ok && t != "" {
		return t
	}
	for _, v := range data {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return ""
}

// singularizeCapitalize derives a default $type from a namespace when
// the caller did not supply one: singularized and capitalized.
func singularizeCapitalize(ns string) string {
	s := ns
	switch {
	case strings.HasSuffix(s, "ies") && len(s) > 3:
		s = s[:len(s)-3] + "y"
	case strings.HasSuffix(s, "ses") && len(s) > 3:
		s = s[:len(s)-2]
	case strings.HasSuffix(s, "s") && !strings.HasSuffix(s, "ss") && len(s) > 1:
		s = s[:len(s)-1]
	}
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// IsDeleted reports whether the entity has been soft-deleted.
func (e *Entity) IsDeleted() bool {
	return e.DeletedAt != nil
}

// Clone deep-copies e, including RelSet-valued fields.
func (e *Entity) Clone() *Entity {
	c := *e
	c.Fields = make(map[string]any, len(e.Fields))
	for k, v := range e.Fields {
		if rs, ok := v.(*RelSet); ok {
			c.Fields[k] = rs.Clone()
		} else {
			c.Fields[k] = v
		}
	}
	if e.DeletedAt != nil {
		t := *e.DeletedAt
		c.DeletedAt = &t
	}
	return &c
}
