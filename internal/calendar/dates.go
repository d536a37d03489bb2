package calendar

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const isoLayout = "2006-01-02"

var (
	// ErrMissingDate is reported for a record without a date field.
	ErrMissingDate = errors.New("missing date field")
	// ErrUnparseableDate is reported for a date in neither yyyy-mm-dd nor mm/dd/yyyy form.
	ErrUnparseableDate = errors.New("unparseable date")
	// ErrFutureDate is reported for a date later than today in the current year.
	ErrFutureDate = errors.New("date after today")
)

// RecordDateError describes a record that could not be placed on the calendar.
type RecordDateError struct {
	Index int    // position of the record in the input
	Field string // configured date field
	Raw   string // raw field value
	Err   error  // ErrMissingDate, ErrUnparseableDate or ErrFutureDate
}

func (e *RecordDateError) Error() string {
	if errors.Is(e.Err, ErrMissingDate) {
		return fmt.Sprintf("record %d: %v %q", e.Index, e.Err, e.Field)
	}
	return fmt.Sprintf("record %d: %v %q in field %q", e.Index, e.Err, e.Raw, e.Field)
}

func (e *RecordDateError) Unwrap() error { return e.Err }

// NormalizeDate converts a yyyy-mm-dd or m/d/yyyy date to zero-padded yyyy-mm-dd.
// ISO input is returned unchanged. Any other shape, or a date that does not
// exist on the calendar, yields ErrUnparseableDate.
func NormalizeDate(raw string) (string, error) {
	s := strings.TrimSpace(raw)

	if strings.Contains(s, "/") {
		parts := strings.Split(s, "/")
		if len(parts) != 3 || !digits(parts[0], 1, 2) || !digits(parts[1], 1, 2) || !digits(parts[2], 4, 4) {
			return "", fmt.Errorf("%w: %q", ErrUnparseableDate, raw)
		}
		month, _ := strconv.Atoi(parts[0])
		day, _ := strconv.Atoi(parts[1])
		s = fmt.Sprintf("%s-%02d-%02d", parts[2], month, day)
	}

	if len(s) != len(isoLayout) {
		return "", fmt.Errorf("%w: %q", ErrUnparseableDate, raw)
	}
	if _, err := time.Parse(isoLayout, s); err != nil {
		return "", fmt.Errorf("%w: %q", ErrUnparseableDate, raw)
	}
	return s, nil
}

// digits reports whether s is lo to hi ASCII digits long.
func digits(s string, lo, hi int) bool {
	if len(s) < lo || len(s) > hi {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// yearOf returns the year of a normalized ISO date.
func yearOf(iso string) int {
	y, _ := strconv.Atoi(iso[:4])
	return y
}

// daysIn returns the number of days in month of year.
func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// firstDayOffset returns the weekday of Jan 1 (0 = Sunday).
func firstDayOffset(year int) int {
	return int(time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC).Weekday())
}
