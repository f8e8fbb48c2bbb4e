package schema

import (
	"fmt"
	"net/mail"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/parquedb/parquedb/internal/parqueerr"
)

// Policy controls how a violated field is handled.
type Policy int

const (
	// Strict fails the whole write with every violated path.
	Strict Policy = iota
	// Warn records violations but lets the write proceed.
	Warn
	// Permissive returns violations to the caller; writes proceed.
	Permissive
)

// ValidateOptions configures Validate.
type ValidateOptions struct {
	Policy            Policy
	RejectUnknown     bool
	applyDefaultsOnly bool
}

// Result is the outcome of validating one document.
type Result struct {
	Violations []parqueerr.Violation
	// Applied holds the document after defaults have been applied.
	Applied map[string]any
}

// Validate checks data against c's field map, applying defaults for
// missing fields and collecting every violation rather than stopping at
// the first (the aggregation behavior every Policy needs before
// deciding what to do with it).
func Validate(c *Collection, data map[string]any, opts ValidateOptions) (*Result, error) {
	res := &Result{Applied: make(map[string]any, len(data))}
	for k, v := range data {
		res.Applied[k] = v
	}

	for name, ft := range c.Fields {
		v, present := res.Applied[name]
		if !present || v == nil {
			if ft.HasDefault {
				res.Applied[name] = ft.Default
				continue
			}
			if ft.Required && !ft.Optional {
				res.Violations = append(res.Violations, parqueerr.Violation{
					Path:    c.Namespace + "." + name,
					Message: fmt.Sprintf("field %q is required", name),
				})
			}
			continue
		}
		if err := validateValue(ft, v); err != "" {
			res.Violations = append(res.Violations, parqueerr.Violation{
				Path:    c.Namespace + "." + name,
				Message: err,
			})
		}
	}

	if opts.RejectUnknown {
		for name := range res.Applied {
			if _, ok := c.Fields[name]; !ok {
				res.Violations = append(res.Violations, parqueerr.Violation{
					Path:    c.Namespace + "." + name,
					Message: fmt.Sprintf("field %q is not declared in the schema", name),
				})
			}
		}
	}

	if len(res.Violations) > 0 && opts.Policy == Strict {
		return res, parqueerr.Validation(res.Violations)
	}
	return res, nil
}

func validateValue(ft *FieldType, v any) string {
	if ft.Array {
		arr, ok := v.([]any)
		if !ok {
			return "expected an array value"
		}
		for _, elem := range arr {
			if msg := validateScalar(ft, elem); msg != "" {
				return msg
			}
		}
		return ""
	}
	return validateScalar(ft, v)
}

func validateScalar(ft *FieldType, v any) string {
	switch ft.Atom {
	case AtomString, AtomText, AtomMarkdown:
		if _, ok := v.(string); !ok {
			return "expected a string"
		}
	case AtomVarchar, AtomChar:
		s, ok := v.(string)
		if !ok {
			return "expected a string"
		}
		if ft.Length > 0 && len(s) > ft.Length {
			return fmt.Sprintf("value exceeds maximum length %d", ft.Length)
		}
	case AtomInt, AtomLong:
		switch v.(type) {
		case int, int32, int64, float64:
		default:
			return "expected an integer"
		}
	case AtomFloat, AtomDouble:
		switch v.(type) {
		case float32, float64, int, int64:
		default:
			return "expected a number"
		}
	case AtomBoolean:
		if _, ok := v.(bool); !ok {
			return "expected a boolean"
		}
	case AtomDate, AtomDatetime, AtomTimestamp:
		switch t := v.(type) {
		case time.Time:
		case string:
			if _, err := time.Parse(time.RFC3339, t); err != nil {
				return "expected an ISO-8601 date/time string"
			}
		default:
			return "expected a date/time value"
		}
	case AtomJSON, AtomVariant, AtomAny:
		// any JSON-representable value is accepted.
	case AtomURL:
		s, ok := v.(string)
		if !ok {
			return "expected a URL string"
		}
		if _, err := url.ParseRequestURI(s); err != nil {
			return "invalid URL"
		}
	case AtomEmail:
		s, ok := v.(string)
		if !ok {
			return "expected an email string"
		}
		if _, err := mail.ParseAddress(s); err != nil {
			return "invalid email address"
		}
	case AtomUUID:
		s, ok := v.(string)
		if !ok {
			return "expected a UUID string"
		}
		if _, err := uuid.Parse(s); err != nil {
			return "invalid UUID"
		}
	case AtomDecimal:
		switch v.(type) {
		case float64, string:
		default:
			return "expected a decimal value"
		}
	case AtomVector:
		arr, ok := v.([]any)
		if !ok {
			return "expected a vector (array of numbers)"
		}
		if ft.Dimensions > 0 && len(arr) != ft.Dimensions {
			return fmt.Sprintf("vector must have %d dimensions, got %d", ft.Dimensions, len(arr))
		}
	case AtomEnum:
		s, ok := v.(string)
		if !ok {
			return "expected an enum string"
		}
		found := false
		for _, allowed := range ft.EnumValues {
			if allowed == s {
				found = true
				break
			}
		}
		if !found {
			return fmt.Sprintf("value %q is not a member of the enum", s)
		}
	case AtomRelOut, AtomRelIn:
		// relationship values are RelSet-typed; structural checks happen
		// in the engine where the RelSet type is visible.
	}
	return ""
}
