package calendar

import (
	"calheat/internal/models"
	"fmt"
	"log/slog"
	"sort"
	"time"
)

// DefaultDateField is the record field read when no other is configured.
const DefaultDateField = "date"

// Buckets maps year -> ISO date -> the cell collecting that date's records.
type Buckets map[int]map[string]*models.DayCell

// SkippedRecord is an input record left off the calendar because of its date.
type SkippedRecord struct {
	Index  int           `json:"index"`
	Record models.Record `json:"record"`
	Err    error         `json:"-"`
	Reason string        `json:"reason"`
}

// Result is the output of one aggregation: the calendar plus the records it could not place.
type Result struct {
	Data    models.CalendarData `json:"data"`
	Skipped []SkippedRecord     `json:"skipped,omitempty"`
	Today   string              `json:"today"`
}

// Summary describes a Result in aggregate.
type Summary struct {
	Placed      int         `json:"placed"`
	Skipped     int         `json:"skipped"`
	PerYear     map[int]int `json:"perYear"`
	MaxPerDay   int         `json:"maxPerDay"`
	ActiveDays  int         `json:"activeDays"`
	CurrentYear int         `json:"currentYear"`
}

// Summary returns per-year record totals and the busiest day's count.
func (r *Result) Summary() Summary {
	s := Summary{
		Skipped: len(r.Skipped),
		PerYear: make(map[int]int, len(r.Data)),
	}
	if len(r.Today) >= 4 {
		s.CurrentYear = yearOf(r.Today)
	}
	for year, grid := range r.Data {
		s.PerYear[year] = 0
		for _, cell := range grid {
			n := cell.Count()
			if n == 0 {
				continue
			}
			s.PerYear[year] += n
			s.Placed += n
			s.ActiveDays++
			if n > s.MaxPerDay {
				s.MaxPerDay = n
			}
		}
	}
	return s
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithDateField sets the record field holding each record's date.
func WithDateField(field string) Option {
	return func(a *Aggregator) {
		if field != "" {
			a.dateField = field
		}
	}
}

// WithClock replaces time.Now as the source of "today".
func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) {
		if now != nil {
			a.now = now
		}
	}
}

// WithLocation sets the time zone in which "today" is determined.
func WithLocation(loc *time.Location) Option {
	return func(a *Aggregator) {
		if loc != nil {
			a.loc = loc
		}
	}
}

// Aggregator turns dated records into per-year calendar grids.
type Aggregator struct {
	logger    *slog.Logger
	dateField string
	now       func() time.Time
	loc       *time.Location
}

// NewAggregator creates an Aggregator. A nil logger discards log output.
func NewAggregator(logger *slog.Logger, opts ...Option) *Aggregator {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	a := &Aggregator{
		logger:    logger,
		dateField: DefaultDateField,
		now:       time.Now,
		loc:       time.Local,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// DateField returns the configured date field.
func (a *Aggregator) DateField() string { return a.dateField }

// Today returns the current date in the aggregator's location as yyyy-mm-dd.
func (a *Aggregator) Today() string {
	return a.now().In(a.loc).Format(isoLayout)
}

// Aggregate builds the calendar for records. Records with a missing or
// unparseable date, or dated after today in the current year, are skipped
// and reported in Result.Skipped; they never affect the cells of other
// records. The current year is always present.
func (a *Aggregator) Aggregate(records []models.Record) *Result {
	today := a.Today()
	currentYear := yearOf(today)

	buckets, skipped := bucket(records, a.dateField, today)
	for _, s := range skipped {
		a.logger.Warn("Skipping record with bad date", "index", s.Index, "field", a.dateField, "reason", s.Reason)
	}

	years := make([]int, 0, len(buckets)+1)
	for year := range buckets {
		years = append(years, year)
	}
	if _, ok := buckets[currentYear]; !ok {
		years = append(years, currentYear)
	}
	sort.Ints(years)

	data := make(models.CalendarData, len(years))
	for _, year := range years {
		data[year] = BuildGrid(year, buckets, today)
	}

	a.logger.Info("Aggregated records into calendar",
		"records", len(records), "placed", len(records)-len(skipped), "skipped", len(skipped), "years", len(data))

	return &Result{Data: data, Skipped: skipped, Today: today}
}

// Bucket groups records by year and normalized date, preserving input order
// within each day. Records whose date cannot be read are returned as skipped.
func Bucket(records []models.Record, dateField string) (Buckets, []SkippedRecord) {
	return bucket(records, dateField, "")
}

// bucket is Bucket that also skips records of today's year dated after
// today, which BuildGrid never emits. An empty today disables the check.
func bucket(records []models.Record, dateField, today string) (Buckets, []SkippedRecord) {
	buckets := make(Buckets)
	var skipped []SkippedRecord

	for i, record := range records {
		date, err := recordDate(record, dateField)
		if err == nil && today != "" && date > today && yearOf(date) == yearOf(today) {
			err = ErrFutureDate
		}
		if err != nil {
			dateErr := &RecordDateError{Index: i, Field: dateField, Raw: record.Text(dateField), Err: err}
			skipped = append(skipped, SkippedRecord{Index: i, Record: record, Err: dateErr, Reason: dateErr.Error()})
			continue
		}

		year := yearOf(date)
		days, ok := buckets[year]
		if !ok {
			days = make(map[string]*models.DayCell)
			buckets[year] = days
		}
		cell, ok := days[date]
		if !ok {
			cell = &models.DayCell{Date: date, Records: []models.Record{}}
			days[date] = cell
		}
		cell.Records = append(cell.Records, record)
	}
	return buckets, skipped
}

func recordDate(record models.Record, dateField string) (string, error) {
	v := record.Get(dateField)
	if v.IsEmpty() {
		return "", ErrMissingDate
	}
	raw, ok := v.Str()
	if !ok {
		return "", fmt.Errorf("%w: %s is not a string", ErrUnparseableDate, v)
	}
	date, err := NormalizeDate(raw)
	if err != nil {
		return "", ErrUnparseableDate
	}
	return date, nil
}

// BuildGrid lays out year as a weekday-aligned grid: one nil placeholder per
// weekday before Jan 1, then one cell per day. Days with no bucket get an
// empty cell. If year is today's year, days after today are not emitted.
func BuildGrid(year int, buckets Buckets, today string) models.YearGrid {
	offset := firstDayOffset(year)
	current := len(today) == len(isoLayout) && yearOf(today) == year
	days := buckets[year]

	grid := make(models.YearGrid, offset, offset+366)
	for month := time.January; month <= time.December; month++ {
		for day := 1; day <= daysIn(year, month); day++ {
			date := fmt.Sprintf("%04d-%02d-%02d", year, int(month), day)
			if current && date > today {
				return grid
			}
			if cell, ok := days[date]; ok {
				grid = append(grid, cell)
			} else {
				grid = append(grid, &models.DayCell{Date: date, Records: []models.Record{}})
			}
		}
	}
	return grid
}
