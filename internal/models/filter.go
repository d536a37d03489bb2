package models

import "encoding/json"

// AnyValue is the pseudo-value matching any non-empty value of a category.
var AnyValue = String("__ANY__")

// FilterCategory declares a record field as a filter dimension.
type FilterCategory struct {
	ID         string `json:"id" yaml:"id"`                 // record field name
	Label      string `json:"label" yaml:"label"`           // display name
	IncludeAny bool   `json:"includeAny" yaml:"includeAny"` // offer the "any non-empty value" option
}

// ActiveFilter is one selected (category, value) pair.
type ActiveFilter struct {
	CategoryID string `json:"categoryId"`
	Value      Value  `json:"value"`
}

// ValueCounts maps a category value to the number of matching records.
type ValueCounts map[Value]int

// MarshalJSON encodes the counts keyed by the display form of each value.
func (c ValueCounts) MarshalJSON() ([]byte, error) {
	out := make(map[string]int, len(c))
	for v, n := range c {
		out[v.String()] = n
	}
	return json.Marshal(out)
}

// FacetCounts maps a category ID to its per-value counts.
type FacetCounts map[string]ValueCounts
