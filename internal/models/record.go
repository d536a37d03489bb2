package models

import (
	"encoding/json"
	"sort"
	"strconv"
)

// Record is a single dated data row: an open mapping from field name to a scalar value.
// Exactly one field (configured by the caller) holds the record's date.
type Record map[string]Value

// Get returns the value of field, or the empty Value when the field is absent.
func (r Record) Get(field string) Value {
	if r == nil {
		return Value{}
	}
	return r[field]
}

// Text returns the display form of field, or "" when absent.
func (r Record) Text(field string) string {
	return r.Get(field).String()
}

// Keys returns the record's field names in sorted order.
func (r Record) Keys() []string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// DayCell holds every record that falls on one calendar date.
type DayCell struct {
	Date    string   `json:"date"` // yyyy-mm-dd
	Records []Record `json:"records"`
}

// Count returns the number of records on the day.
func (c *DayCell) Count() int {
	if c == nil {
		return 0
	}
	return len(c.Records)
}

// YearGrid is a weekday-aligned sequence of days for one year.
// Leading nil entries are placeholders before Jan 1 and are never real days.
type YearGrid []*DayCell

// Days returns the number of real (non-placeholder) days in the grid.
func (g YearGrid) Days() int {
	n := 0
	for _, c := range g {
		if c != nil {
			n++
		}
	}
	return n
}

// CalendarData maps a year to its grid.
type CalendarData map[int]YearGrid

// Years returns the years present, newest first.
func (d CalendarData) Years() []int {
	years := make([]int, 0, len(d))
	for y := range d {
		years = append(years, y)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(years)))
	return years
}

// MarshalJSON encodes the data with decimal year keys.
func (d CalendarData) MarshalJSON() ([]byte, error) {
	out := make(map[string]YearGrid, len(d))
	for y, g := range d {
		out[strconv.Itoa(y)] = g
	}
	return json.Marshal(out)
}
