// Package schema implements ParqueDB's per-collection type system: type
// expression parsing, default/required/unique/indexed modifiers,
// document validation under strict/warn/permissive policies, and
// snapshot diffing with breaking-change classification.
package schema

import (
	"fmt"
	"strconv"
	"strings"
)

// Atom is a recognized scalar or structured type name.
type Atom string

const (
	AtomString    Atom = "string"
	AtomText      Atom = "text"
	AtomMarkdown  Atom = "markdown"
	AtomInt       Atom = "int"
	AtomLong      Atom = "long"
	AtomFloat     Atom = "float"
	AtomDouble    Atom = "double"
	AtomBoolean   Atom = "boolean"
	AtomDate      Atom = "date"
	AtomDatetime  Atom = "datetime"
	AtomTimestamp Atom = "timestamp"
	AtomJSON      Atom = "json"
	AtomVariant   Atom = "variant"
	AtomAny       Atom = "any"
	AtomURL       Atom = "url"
	AtomEmail     Atom = "email"
	AtomUUID      Atom = "uuid"
	AtomVarchar   Atom = "varchar"
	AtomChar      Atom = "char"
	AtomDecimal   Atom = "decimal"
	AtomVector    Atom = "vector"
	AtomEnum      Atom = "enum"
	AtomRelOut    Atom = "relation-out"
	AtomRelIn     Atom = "relation-in"
)

var aliases = map[string]Atom{
	"string":    AtomString,
	"text":      AtomText,
	"markdown":  AtomMarkdown,
	"int":       AtomInt,
	"integer":   AtomInt,
	"long":      AtomLong,
	"float":     AtomFloat,
	"double":    AtomDouble,
	"number":    AtomDouble,
	"boolean":   AtomBoolean,
	"bool":      AtomBoolean,
	"date":      AtomDate,
	"datetime":  AtomDatetime,
	"timestamp": AtomTimestamp,
	"json":      AtomJSON,
	"variant":   AtomVariant,
	"any":       AtomAny,
	"url":       AtomURL,
	"email":     AtomEmail,
	"uuid":      AtomUUID,
}

// FieldType is a fully parsed type expression.
type FieldType struct {
	Atom        Atom
	Array       bool
	Length      int      // varchar(n), char(n)
	Precision   int      // decimal(p,s)
	Scale       int      // decimal(p,s)
	Dimensions  int      // vector(d)
	EnumValues  []string // enum(a,b,c)
	RelTarget   string   // -> Target / <- Target.field
	RelField    string   // <- Target.field's field part
	Required    bool
	Optional    bool
	Indexed     bool
	Unique      bool
	HasDefault  bool
	Default     any
	Raw         string
}

// ParseTypeExpression parses a type expression string, e.g.
// "varchar(120)!", "enum(draft,published)?", "-> Author[]", "int = 0".
func ParseTypeExpression(expr string) (*FieldType, error) {
	s := strings.TrimSpace(expr)
	raw := s
	ft := &FieldType{Required: true, Raw: raw}

	if idx := strings.Index(s, "="); idx >= 0 {
		defLit := strings.TrimSpace(s[idx+1:])
		s = strings.TrimSpace(s[:idx])
		ft.HasDefault = true
		ft.Default = parseLiteral(defLit)
	}

	for len(s) > 0 {
		switch s[len(s)-1] {
		case '!':
			ft.Required = true
			s = strings.TrimSpace(s[:len(s)-1])
			continue
		case '?':
			ft.Required = false
			ft.Optional = true
			s = strings.TrimSpace(s[:len(s)-1])
			continue
		case '#':
			ft.Indexed = true
			s = strings.TrimSpace(s[:len(s)-1])
			continue
		case '@':
			ft.Unique = true
			s = strings.TrimSpace(s[:len(s)-1])
			continue
		}
		break
	}

	if strings.HasPrefix(s, "->") {
		target := strings.TrimSpace(s[2:])
		ft.Atom = AtomRelOut
		if strings.HasSuffix(target, "[]") {
			ft.Array = true
			target = target[:len(target)-2]
		}
		ft.RelTarget = strings.TrimSpace(target)
		return ft, nil
	}
	if strings.HasPrefix(s, "<-") {
		target := strings.TrimSpace(s[2:])
		ft.Atom = AtomRelIn
		if dot := strings.LastIndexByte(target, '.'); dot >= 0 {
			ft.RelTarget = target[:dot]
			ft.RelField = target[dot+1:]
		} else {
			return nil, fmt.Errorf("schema: inbound relation %q missing .field", raw)
		}
		return ft, nil
	}

	if strings.HasSuffix(s, "[]") {
		ft.Array = true
		s = s[:len(s)-2]
	}

	switch {
	case strings.HasPrefix(s, "varchar("):
		n, err := parseParen1(s, "varchar(")
		if err != nil {
			return nil, err
		}
		ft.Atom = AtomVarchar
		ft.Length = n
	case strings.HasPrefix(s, "char("):
		n, err := parseParen1(s, "char(")
		if err != nil {
			return nil, err
		}
		ft.Atom = AtomChar
		ft.Length = n
	case strings.HasPrefix(s, "decimal("):
		p, sc, err := parseParen2(s, "decimal(")
		if err != nil {
			return nil, err
		}
		ft.Atom = AtomDecimal
		ft.Precision = p
		ft.Scale = sc
	case strings.HasPrefix(s, "vector("):
		n, err := parseParen1(s, "vector(")
		if err != nil {
			return nil, err
		}
		ft.Atom = AtomVector
		ft.Dimensions = n
	case strings.HasPrefix(s, "enum("):
		inner := strings.TrimSuffix(strings.TrimPrefix(s, "enum("), ")")
		var values []string
		for _, v := range strings.Split(inner, ",") {
			values = append(values, strings.TrimSpace(v))
		}
		ft.Atom = AtomEnum
		ft.EnumValues = values
	default:
		atom, ok := aliases[s]
		if !ok {
			return nil, fmt.Errorf("schema: unrecognized type atom %q in %q", s, raw)
		}
		ft.Atom = atom
	}
	return ft, nil
}

func parseParen1(s, prefix string) (int, error) {
	inner := strings.TrimSuffix(strings.TrimPrefix(s, prefix), ")")
	n, err := strconv.Atoi(strings.TrimSpace(inner))
	if err != nil {
		return 0, fmt.Errorf("schema: invalid parameter in %q: %w", s, err)
	}
	return n, nil
}

func parseParen2(s, prefix string) (int, int, error) {
	inner := strings.TrimSuffix(strings.TrimPrefix(s, prefix), ")")
	parts := strings.SplitN(inner, ",", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("schema: expected two parameters in %q", s)
	}
	p, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, 0, err
	}
	sc, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return 0, 0, err
	}
	return p, sc, nil
}

func parseLiteral(s string) any {
	if s == "null" {
		return nil
	}
	if s == "true" {
		return true
	}
	if s == "false" {
		return false
	}
	if n, err := strconv.ParseFloat(s, 64); err == nil {
		return n
	}
	return strings.Trim(s, `"'`)
}

// IsRelationship reports whether ft is an outbound or inbound relation.
func (ft *FieldType) IsRelationship() bool {
	return ft.Atom == AtomRelOut || ft.Atom == AtomRelIn
}
