package calendar

import (
	"calheat/internal/models"
	"fmt"
	"strings"
	"time"
)

// ColorThreshold assigns ColorClass to any day with at least MinRecords records.
type ColorThreshold struct {
	MinRecords int    `json:"minRecords"`
	ColorClass string `json:"colorClass"`
}

// DefaultColorScale derives four color buckets from the busiest day in data.
// With q = ceil(max/4) the thresholds are 3q, 2q, q and 0, highest first.
// An empty calendar gets a single color-1 bucket.
func DefaultColorScale(data models.CalendarData) []ColorThreshold {
	maxCount := 0
	for _, grid := range data {
		for _, cell := range grid {
			if n := cell.Count(); n > maxCount {
				maxCount = n
			}
		}
	}
	q := (maxCount + 3) / 4
	if q == 0 {
		return []ColorThreshold{{MinRecords: 0, ColorClass: "color-1"}}
	}
	return []ColorThreshold{
		{MinRecords: q * 3, ColorClass: "color-4"},
		{MinRecords: q * 2, ColorClass: "color-3"},
		{MinRecords: q, ColorClass: "color-2"},
		{MinRecords: 0, ColorClass: "color-1"},
	}
}

// ColorFor returns the class of the first threshold cell meets, or "" for a placeholder.
func ColorFor(scale []ColorThreshold, cell *models.DayCell) string {
	if cell == nil {
		return ""
	}
	n := cell.Count()
	for _, t := range scale {
		if n >= t.MinRecords {
			return t.ColorClass
		}
	}
	return ""
}

// MonthPosition is the grid column (1-based, after the weekday label column)
// where a month label is drawn.
type MonthPosition struct {
	Month  time.Month `json:"month"`
	Label  string     `json:"label"`
	Column int        `json:"column"`
}

// MonthPositions returns label columns for every month of year whose first day
// is not after today.
func MonthPositions(year int, today string) []MonthPosition {
	var positions []MonthPosition
	dayCount := firstDayOffset(year)
	for month := time.January; month <= time.December; month++ {
		first := fmt.Sprintf("%04d-%02d-01", year, int(month))
		if first > today {
			break
		}
		positions = append(positions, MonthPosition{
			Month:  month,
			Label:  month.String()[:3],
			Column: dayCount/7 + 2,
		})
		dayCount += daysIn(year, month)
	}
	return positions
}

// GridPosition returns the grid row and column of the cell at index in a YearGrid.
// Row 1 and column 1 hold labels.
func GridPosition(index int) (row, col int) {
	return index%7 + 2, index/7 + 2
}

// DefaultTooltip renders a cell as its date followed by one line per record
// listing the record's non-empty fields other than dateField.
func DefaultTooltip(cell *models.DayCell, dateField string) string {
	if cell == nil {
		return ""
	}
	var b strings.Builder
	b.WriteString(cell.Date)
	for _, record := range cell.Records {
		var fields []string
		for _, key := range record.Keys() {
			v := record[key]
			if key == dateField || v.IsEmpty() {
				continue
			}
			fields = append(fields, key+": "+v.String())
		}
		b.WriteString("\n")
		b.WriteString(strings.Join(fields, ", "))
	}
	return b.String()
}
