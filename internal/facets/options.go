package facets

import (
	"calheat/internal/models"
	"fmt"
	"strings"
)

// FilterOption is one selectable entry of a category's option list.
type FilterOption struct {
	Value    models.Value `json:"value"`
	Label    string       `json:"label"`
	Count    int          `json:"count"`
	Checked  bool         `json:"checked"`
	Disabled bool         `json:"disabled"`
}

// CategoryView is a category with its option list and selection summary.
type CategoryView struct {
	ID      string         `json:"id"`
	Label   string         `json:"label"`
	Summary string         `json:"summary"`
	Options []FilterOption `json:"options"`
}

// Options returns the category's option list: the any option first when the
// category offers it, then its unique values. Counts come from FacetCounts;
// an option with no matching records that is not selected is disabled.
func (e *Engine) Options(categoryID string) []FilterOption {
	return e.options(categoryID, e.FacetCounts())
}

func (e *Engine) options(categoryID string, all models.FacetCounts) []FilterOption {
	cat, ok := e.byID[categoryID]
	if !ok {
		return nil
	}
	counts := all[categoryID]

	var opts []FilterOption
	add := func(v models.Value, label string) {
		checked := e.IsActive(categoryID, v)
		n := counts[v]
		opts = append(opts, FilterOption{
			Value:    v,
			Label:    label,
			Count:    n,
			Checked:  checked,
			Disabled: n == 0 && !checked,
		})
	}

	if cat.IncludeAny {
		add(models.AnyValue, "Any "+strings.ToLower(cat.Label))
	}
	for _, v := range e.unique[categoryID] {
		add(v, v.String())
	}
	return opts
}

// Summary describes the category's selection the way a filter button shows it:
// "Showing all", "Showing any <label>" or "Showing N <label>(s)".
func (e *Engine) Summary(categoryID string) string {
	cat, ok := e.byID[categoryID]
	if !ok {
		return ""
	}
	active := e.ActiveValues(categoryID)
	if len(active) == 0 {
		return "Showing all"
	}

	singular := strings.ToLower(cat.Label)
	for _, v := range active {
		if v == models.AnyValue {
			return "Showing any " + singular
		}
	}
	if len(active) == 1 {
		return fmt.Sprintf("Showing 1 %s", singular)
	}
	return fmt.Sprintf("Showing %d %ss", len(active), singular)
}

// View returns every category with its options and summary, computing the
// facet counts once.
func (e *Engine) View() []CategoryView {
	counts := e.FacetCounts()
	views := make([]CategoryView, 0, len(e.categories))
	for _, cat := range e.categories {
		views = append(views, CategoryView{
			ID:      cat.ID,
			Label:   cat.Label,
			Summary: e.Summary(cat.ID),
			Options: e.options(cat.ID, counts),
		})
	}
	return views
}
