package facets

import (
	"calheat/internal/calendar"
	"calheat/internal/models"
	"errors"
	"fmt"
	"log/slog"
	"sort"
)

// ErrInvalidCategory is returned for a category configuration the engine cannot use.
var ErrInvalidCategory = errors.New("invalid filter category")

// Option configures an Engine.
type Option func(*Engine)

// WithDateField sets the record field used to order option values most-recent-first.
func WithDateField(field string) Option {
	return func(e *Engine) {
		if field != "" {
			e.dateField = field
		}
	}
}

// WithLogger sets the engine's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// Engine evaluates a set of active (category, value) filters over a fixed record set.
// Values within one category are OR-combined; categories are AND-combined.
// An Engine is not safe for concurrent use.
type Engine struct {
	logger     *slog.Logger
	dateField  string
	records    []models.Record
	categories []models.FilterCategory
	byID       map[string]models.FilterCategory
	active     []models.ActiveFilter
	unique     map[string][]models.Value
}

// New creates an Engine over records for the given categories.
// It fails only when a category has an empty or duplicate ID.
func New(records []models.Record, categories []models.FilterCategory, opts ...Option) (*Engine, error) {
	if err := ValidateCategories(categories); err != nil {
		return nil, err
	}

	e := &Engine{
		logger:     slog.New(slog.DiscardHandler),
		dateField:  calendar.DefaultDateField,
		categories: append([]models.FilterCategory(nil), categories...),
		byID:       make(map[string]models.FilterCategory, len(categories)),
	}
	for _, c := range categories {
		e.byID[c.ID] = c
	}
	for _, opt := range opts {
		opt(e)
	}

	e.SetRecords(records)
	return e, nil
}

// ValidateCategories checks that every category has a unique, non-empty ID.
func ValidateCategories(categories []models.FilterCategory) error {
	seen := make(map[string]bool, len(categories))
	for i, c := range categories {
		if c.ID == "" {
			return fmt.Errorf("%w: category %d has no id", ErrInvalidCategory, i)
		}
		if seen[c.ID] {
			return fmt.Errorf("%w: duplicate id %q", ErrInvalidCategory, c.ID)
		}
		seen[c.ID] = true
	}
	return nil
}

// SetRecords replaces the record set and re-derives each category's values.
// Active filters are kept.
func (e *Engine) SetRecords(records []models.Record) {
	e.records = records
	e.unique = uniqueValues(records, e.categories, e.dateField)
	e.logger.Debug("Derived filter values", "records", len(records), "categories", len(e.categories))
}

// Categories returns the configured categories in order.
func (e *Engine) Categories() []models.FilterCategory {
	return append([]models.FilterCategory(nil), e.categories...)
}

// Category returns the category with id, if configured.
func (e *Engine) Category(id string) (models.FilterCategory, bool) {
	c, ok := e.byID[id]
	return c, ok
}

// UniqueValues returns the distinct non-empty values of a category, values of
// the most recently dated records first.
func (e *Engine) UniqueValues(categoryID string) []models.Value {
	return append([]models.Value(nil), e.unique[categoryID]...)
}

// AddFilter activates value for a category. Selecting AnyValue clears the
// category's concrete values and selecting a concrete value clears AnyValue.
// Unknown categories, empty values and AnyValue on a category without
// IncludeAny are ignored.
func (e *Engine) AddFilter(categoryID string, value models.Value) {
	cat, ok := e.byID[categoryID]
	if !ok {
		e.logger.Debug("Ignoring filter for unknown category", "category", categoryID)
		return
	}
	if value.IsEmpty() {
		return
	}

	if value == models.AnyValue {
		if !cat.IncludeAny {
			e.logger.Debug("Category does not offer an any option", "category", categoryID)
			return
		}
		e.removeWhere(func(f models.ActiveFilter) bool {
			return f.CategoryID == categoryID && f.Value != models.AnyValue
		})
	} else {
		e.removeWhere(func(f models.ActiveFilter) bool {
			return f.CategoryID == categoryID && f.Value == models.AnyValue
		})
	}

	if e.IsActive(categoryID, value) {
		return
	}
	e.active = append(e.active, models.ActiveFilter{CategoryID: categoryID, Value: value})
}

// RemoveFilter deactivates value for a category if it is active.
func (e *Engine) RemoveFilter(categoryID string, value models.Value) {
	e.removeWhere(func(f models.ActiveFilter) bool {
		return f.CategoryID == categoryID && f.Value == value
	})
}

// ClearCategory deactivates every value of one category.
func (e *Engine) ClearCategory(categoryID string) {
	e.removeWhere(func(f models.ActiveFilter) bool {
		return f.CategoryID == categoryID
	})
}

// ClearAll deactivates every filter.
func (e *Engine) ClearAll() {
	e.active = nil
}

func (e *Engine) removeWhere(match func(models.ActiveFilter) bool) {
	kept := e.active[:0]
	for _, f := range e.active {
		if !match(f) {
			kept = append(kept, f)
		}
	}
	e.active = kept
}

// ActiveFilters returns a copy of the active filters in the order they were added.
func (e *Engine) ActiveFilters() []models.ActiveFilter {
	return append([]models.ActiveFilter(nil), e.active...)
}

// ActiveValues returns the active values of one category.
func (e *Engine) ActiveValues(categoryID string) []models.Value {
	var values []models.Value
	for _, f := range e.active {
		if f.CategoryID == categoryID {
			values = append(values, f.Value)
		}
	}
	return values
}

// IsActive reports whether value is selected for the category.
func (e *Engine) IsActive(categoryID string, value models.Value) bool {
	for _, f := range e.active {
		if f.CategoryID == categoryID && f.Value == value {
			return true
		}
	}
	return false
}

// ValueMatches reports whether record's field for categoryID satisfies value.
// AnyValue matches any non-empty field; other values must be equal in kind and payload.
func (e *Engine) ValueMatches(record models.Record, categoryID string, value models.Value) bool {
	field := record.Get(categoryID)
	if value == models.AnyValue {
		return !field.IsEmpty()
	}
	return !field.IsEmpty() && field == value
}

// RecordPasses reports whether record satisfies at least one active value in
// every category that has active filters. With no active filters every record passes.
func (e *Engine) RecordPasses(record models.Record) bool {
	return e.passes(record, e.grouped(), "")
}

// CellFiltered reports whether a calendar cell should be shown as filtered out:
// filters are active and none of the cell's records pass them.
func (e *Engine) CellFiltered(cell *models.DayCell) bool {
	if cell == nil || len(e.active) == 0 {
		return false
	}
	groups := e.grouped()
	for _, r := range cell.Records {
		if e.passes(r, groups, "") {
			return false
		}
	}
	return true
}

// FacetCounts returns, for every category C, how many records carry each
// value of C among the records passing every category's filters except C's
// own. For categories with IncludeAny, AnyValue counts those records whose C
// field is non-empty.
func (e *Engine) FacetCounts() models.FacetCounts {
	groups := e.grouped()
	counts := make(models.FacetCounts, len(e.categories))

	for _, cat := range e.categories {
		values := make(models.ValueCounts)
		anyCount := 0
		for _, r := range e.records {
			if !e.passes(r, groups, cat.ID) {
				continue
			}
			v := r.Get(cat.ID)
			if v.IsEmpty() {
				continue
			}
			// a record holding the sentinel literally counts only toward any
			if v != models.AnyValue {
				values[v]++
			}
			anyCount++
		}
		if cat.IncludeAny {
			values[models.AnyValue] = anyCount
		}
		counts[cat.ID] = values
	}
	return counts
}

// grouped returns the active values keyed by category, in first-activated order.
func (e *Engine) grouped() []filterGroup {
	var groups []filterGroup
	index := make(map[string]int)
	for _, f := range e.active {
		i, ok := index[f.CategoryID]
		if !ok {
			i = len(groups)
			index[f.CategoryID] = i
			groups = append(groups, filterGroup{categoryID: f.CategoryID})
		}
		groups[i].values = append(groups[i].values, f.Value)
	}
	return groups
}

type filterGroup struct {
	categoryID string
	values     []models.Value
}

// passes checks record against every group except the one for skip.
func (e *Engine) passes(record models.Record, groups []filterGroup, skip string) bool {
	for _, g := range groups {
		if g.categoryID == skip {
			continue
		}
		matched := false
		for _, v := range g.values {
			if e.ValueMatches(record, g.categoryID, v) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	return true
}

// uniqueValues orders records by date descending (undated last, ties in input
// order) and collects each category's distinct non-empty values in that order.
func uniqueValues(records []models.Record, categories []models.FilterCategory, dateField string) map[string][]models.Value {
	type dated struct {
		date   string
		record models.Record
	}
	ordered := make([]dated, len(records))
	for i, r := range records {
		date := ""
		if raw, ok := r.Get(dateField).Str(); ok {
			if iso, err := calendar.NormalizeDate(raw); err == nil {
				date = iso
			}
		}
		ordered[i] = dated{date: date, record: r}
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].date > ordered[j].date
	})

	out := make(map[string][]models.Value, len(categories))
	for _, cat := range categories {
		seen := make(map[models.Value]bool)
		values := []models.Value{}
		for _, d := range ordered {
			v := d.record.Get(cat.ID)
			if v.IsEmpty() || v == models.AnyValue || seen[v] {
				continue
			}
			seen[v] = true
			values = append(values, v)
		}
		out[cat.ID] = values
	}
	return out
}
