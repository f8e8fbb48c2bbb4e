package schema_test

import (
	"strings"
	"testing"

	"github.com/parquedb/parquedb/schema"
)

func TestParseTypeExpression(t *testing.T) {
	cases := []struct {
		expr string
		want schema.Atom
	}{
		{"string", schema.AtomString},
		{"varchar(120)!", schema.AtomVarchar},
		{"decimal(10,2)", schema.AtomDecimal},
		{"enum(draft,published,archived)?", schema.AtomEnum},
		{"int[]", schema.AtomInt},
		{"-> Author", schema.AtomRelOut},
		{"<- Comment.postId", schema.AtomRelIn},
	}
	for _, c := range cases {
		ft, err := schema.ParseTypeExpression(c.expr)
		if err != nil {
			t.Fatalf("%q: %v", c.expr, err)
		}
		if ft.Atom != c.want {
			t.Errorf("%q: want atom %s got %s", c.expr, c.want, ft.Atom)
		}
	}

	ft, err := schema.ParseTypeExpression("varchar(120)!")
	if err != nil || ft.Length != 120 || !ft.Required {
		t.Fatalf("varchar(120)!: %+v %v", ft, err)
	}

	ft, err = schema.ParseTypeExpression("int = 0")
	if err != nil || !ft.HasDefault || ft.Default != float64(0) {
		t.Fatalf("default parse: %+v %v", ft, err)
	}
}

func TestValidateRequiredAndDefaults(t *testing.T) {
	reg := schema.NewRegistry()
	if err := reg.Register("posts", map[string]string{
		"title":  "string!",
		"status": "enum(draft,published) = draft",
		"views":  "int = 0",
	}); err != nil {
		t.Fatalf("register: %v", err)
	}
	col, _ := reg.Collection("posts")

	res, err := schema.Validate(col, map[string]any{}, schema.ValidateOptions{Policy: schema.Strict})
	if err == nil {
		t.Fatalf("expected validation error for missing required field")
	}
	if len(res.Violations) == 0 {
		t.Fatalf("expected at least one violation")
	}

	res, err = schema.Validate(col, map[string]any{"title": "hello"}, schema.ValidateOptions{Policy: schema.Strict})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Applied["status"] != "draft" || res.Applied["views"] != 0.0 {
		t.Fatalf("defaults not applied: %+v", res.Applied)
	}
}

func TestValidateEnumAndUUID(t *testing.T) {
	reg := schema.NewRegistry()
	reg.Register("posts", map[string]string{"status": "enum(draft,published)!", "ownerId": "uuid!"})
	col, _ := reg.Collection("posts")

	_, err := schema.Validate(col, map[string]any{
		"status":  "archived",
		"ownerId": "not-a-uuid",
	}, schema.ValidateOptions{Policy: schema.Strict})
	if err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestDiffClassifiesBreakingChanges(t *testing.T) {
	reg := schema.NewRegistry()
	reg.Register("posts", map[string]string{"title": "string!", "views": "int?"})
	before := reg.Snapshot()

	reg.Register("posts", map[string]string{"title": "string!", "views": "int!", "slug": "string!"})
	after := reg.Snapshot()

	result := schema.Diff(before, after)
	var sawRequired, sawAdded bool
	for _, c := range result.Changes {
		if c.Kind == schema.ChangeOptionalTightened && c.Field == "views" {
			sawRequired = true
			if !c.Breaking {
				t.Errorf("optional->required should be breaking when there's no default")
			}
		}
		if c.Kind == schema.ChangeFieldAdded && c.Field == "slug" {
			sawAdded = true
			if !c.Breaking {
				t.Errorf("required field with no default added should be breaking")
			}
		}
	}
	if !sawRequired || !sawAdded {
		t.Fatalf("missing expected changes: %+v", result.Changes)
	}
	if !strings.Contains(result.MigrationHint, "posts.") {
		t.Fatalf("expected migration hint to reference collection fields: %q", result.MigrationHint)
	}
}
