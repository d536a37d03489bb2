package main

import (
	"calheat/internal/calendar"
	"calheat/internal/facets"
	"fmt"
	"io"
	"strings"
)

var (
	weekdayLabels = []string{"Sun", "", "Tue", "", "Thu", "", "Sat"}
	shades        = map[string]string{"color-1": "░", "color-2": "▒", "color-3": "▓", "color-4": "█"}
	ansiShades    = map[string]string{"color-1": "\x1b[48;5;22m", "color-2": "\x1b[48;5;28m", "color-3": "\x1b[48;5;34m", "color-4": "\x1b[48;5;40m"}
)

const (
	emptyDay    = "·"
	filteredDay = "x"
	ansiEmpty   = "\x1b[48;5;236m"
	ansiReset   = "\x1b[0m"
)

// renderCalendar draws each year as a 7-row grid, one column per week,
// with month labels above and a shade per color bucket.
func renderCalendar(w io.Writer, result *calendar.Result, scale []calendar.ColorThreshold, engine *facets.Engine, colors bool) {
	summary := result.Summary()
	for _, year := range result.Data.Years() {
		grid := result.Data[year]
		weeks := (len(grid) + 6) / 7

		rows := make([][]string, 7)
		for r := range rows {
			rows[r] = make([]string, weeks)
			for c := range rows[r] {
				rows[r][c] = " "
			}
		}
		for i, cell := range grid {
			if cell == nil {
				continue
			}
			row, col := calendar.GridPosition(i)
			rows[row-2][col-2] = dayGlyph(cell.Count(), calendar.ColorFor(scale, cell), engine != nil && engine.CellFiltered(cell), colors)
		}

		fmt.Fprintf(w, "%d  (%d records)\n", year, summary.PerYear[year])

		header := []rune(strings.Repeat(" ", weeks+1))
		for _, m := range calendar.MonthPositions(year, result.Today) {
			for j, r := range m.Label {
				if at := m.Column - 2 + j; at < len(header) {
					header[at] = r
				}
			}
		}
		fmt.Fprintf(w, "    %s\n", strings.TrimRight(string(header), " "))

		for r, cells := range rows {
			fmt.Fprintf(w, "%-3s %s\n", weekdayLabels[r], strings.Join(cells, ""))
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "%d records on %d days, busiest day %d\n", summary.Placed, summary.ActiveDays, summary.MaxPerDay)
	if len(result.Skipped) > 0 {
		fmt.Fprintf(w, "%d records skipped:\n", len(result.Skipped))
		for _, s := range result.Skipped {
			fmt.Fprintf(w, "  #%d: %s\n", s.Index, s.Reason)
		}
	}
}

func dayGlyph(count int, class string, filtered, colors bool) string {
	switch {
	case filtered:
		if colors {
			return ansiEmpty + filteredDay + ansiReset
		}
		return filteredDay
	case count == 0:
		if colors {
			return ansiEmpty + " " + ansiReset
		}
		return emptyDay
	case colors:
		return ansiShades[class] + " " + ansiReset
	default:
		return shades[class]
	}
}

func renderFacets(w io.Writer, views []facets.CategoryView, total, matching int) {
	fmt.Fprintf(w, "%d of %d records match\n", matching, total)
	for _, v := range views {
		fmt.Fprintf(w, "\n%s: %s\n", v.Label, v.Summary)
		for _, opt := range v.Options {
			box := "[ ]"
			if opt.Checked {
				box = "[x]"
			}
			line := fmt.Sprintf("  %s %s (%d)", box, opt.Label, opt.Count)
			if opt.Disabled {
				line += " -"
			}
			fmt.Fprintln(w, line)
		}
	}
}
