package facets

import (
	"calheat/internal/models"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestOptions(t *testing.T) {
	records := []models.Record{
		{"date": models.String("2024-01-02"), "type": typeA, "author": models.String("kim")},
		{"date": models.String("2024-01-03"), "type": typeB, "author": models.String("lee")},
	}
	categories := []models.FilterCategory{
		{ID: "type", Label: "Type", IncludeAny: true},
		{ID: "author", Label: "Author"},
	}
	e := newEngine(t, records, categories)
	e.AddFilter("author", models.String("kim"))
	e.AddFilter("type", typeB)

	opts := e.Options("type")
	if len(opts) != 3 {
		t.Fatalf("got %d options, want 3", len(opts))
	}

	want := []FilterOption{
		{Value: models.AnyValue, Label: "Any type", Count: 1},
		{Value: typeB, Label: "B", Count: 0, Checked: true},
		{Value: typeA, Label: "A", Count: 1},
	}
	for i := range want {
		if opts[i] != want[i] {
			t.Errorf("option %d = %+v, want %+v", i, opts[i], want[i])
		}
	}

	authors := e.Options("author")
	// author counts honor type=B only: lee 1, kim 0 but checked.
	if authors[0].Value != models.String("lee") || authors[0].Count != 1 {
		t.Errorf("first author option = %+v", authors[0])
	}
	if authors[1].Disabled || !authors[1].Checked {
		t.Errorf("a checked option with zero count stays enabled: %+v", authors[1])
	}
}

func TestOptionsDisabledWhenEmpty(t *testing.T) {
	records := []models.Record{
		{"type": typeA, "author": models.String("kim")},
		{"type": typeB, "author": models.String("lee")},
	}
	categories := []models.FilterCategory{{ID: "type", Label: "Type"}, {ID: "author", Label: "Author"}}
	e := newEngine(t, records, categories)
	e.AddFilter("author", models.String("kim"))

	for _, opt := range e.Options("type") {
		wantDisabled := opt.Value == typeB
		if opt.Disabled != wantDisabled {
			t.Errorf("option %s disabled = %v, want %v", opt.Label, opt.Disabled, wantDisabled)
		}
	}
}

func TestSummary(t *testing.T) {
	categories := []models.FilterCategory{{ID: "type", Label: "Type", IncludeAny: true}}
	e := newEngine(t, nil, categories)

	if got := e.Summary("type"); got != "Showing all" {
		t.Errorf("no filters: %q", got)
	}
	e.AddFilter("type", typeA)
	if got := e.Summary("type"); got != "Showing 1 type" {
		t.Errorf("one filter: %q", got)
	}
	e.AddFilter("type", typeB)
	if got := e.Summary("type"); got != "Showing 2 types" {
		t.Errorf("two filters: %q", got)
	}
	e.AddFilter("type", models.AnyValue)
	if got := e.Summary("type"); got != "Showing any type" {
		t.Errorf("any filter: %q", got)
	}
}

func TestView(t *testing.T) {
	e := newEngine(t, exampleRecords(), exampleCategories())
	views := e.View()
	if len(views) != 1 {
		t.Fatalf("got %d views, want 1", len(views))
	}
	v := views[0]
	if v.ID != "type" || v.Summary != "Showing all" || len(v.Options) != 3 {
		t.Errorf("view = %+v", v)
	}
	if v.Options[0].Count != 3 {
		t.Errorf("any option count = %d, want 3", v.Options[0].Count)
	}
}

func TestParseCategoriesYAML(t *testing.T) {
	data := []byte(`
categories:
  - id: type
    label: Type
    includeAny: true
  - id: author
`)
	categories, err := ParseCategories(data, ".yaml")
	if err != nil {
		t.Fatalf("ParseCategories failed: %v", err)
	}
	if len(categories) != 2 {
		t.Fatalf("got %d categories, want 2", len(categories))
	}
	if !categories[0].IncludeAny || categories[0].Label != "Type" {
		t.Errorf("first category = %+v", categories[0])
	}
	if categories[1].Label != "author" {
		t.Errorf("missing label should default to the id, got %q", categories[1].Label)
	}
}

func TestParseCategoriesJSONList(t *testing.T) {
	data := []byte(`[{"id":"type","label":"Type","includeAny":true}]`)
	categories, err := ParseCategories(data, ".json")
	if err != nil {
		t.Fatalf("ParseCategories failed: %v", err)
	}
	if len(categories) != 1 || categories[0].ID != "type" {
		t.Errorf("categories = %+v", categories)
	}
}

func TestParseCategoriesYAMLListAfterHeader(t *testing.T) {
	inputs := map[string]string{
		"comment":         "# filter categories\n- id: type\n  includeAny: true\n",
		"document marker": "---\n- id: type\n  includeAny: true\n",
		"both":            "# filter categories\n---\n- id: type\n  includeAny: true\n",
	}
	for name, input := range inputs {
		t.Run(name, func(t *testing.T) {
			categories, err := ParseCategories([]byte(input), ".yaml")
			if err != nil {
				t.Fatalf("ParseCategories failed: %v", err)
			}
			if len(categories) != 1 || categories[0].ID != "type" || !categories[0].IncludeAny {
				t.Errorf("categories = %+v", categories)
			}
		})
	}
}

func TestParseCategoriesInvalid(t *testing.T) {
	_, err := ParseCategories([]byte("- id: type\n- id: type\n"), ".yml")
	if !errors.Is(err, ErrInvalidCategory) {
		t.Errorf("error = %v, want ErrInvalidCategory", err)
	}
}

func TestLoadCategories(t *testing.T) {
	path := filepath.Join(t.TempDir(), "categories.yaml")
	if err := os.WriteFile(path, []byte("- id: type\n  label: Type\n"), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	categories, err := LoadCategories(path)
	if err != nil {
		t.Fatalf("LoadCategories failed: %v", err)
	}
	if len(categories) != 1 || categories[0].Label != "Type" {
		t.Errorf("categories = %+v", categories)
	}

	if _, err := LoadCategories(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected an error for a missing file")
	}
}
