// Package export writes aggregated calendar data in formats other tools can read.
package export

import (
	"calheat/internal/calendar"
	"calheat/internal/models"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/emersion/go-ical"
	"github.com/google/uuid"
)

const productID = "-//calheat//EN"

// ErrNothingToExport is returned when no day has a record to export.
var ErrNothingToExport = errors.New("no records to export")

// uidNamespace seeds day UIDs. A date always maps to the same UID.
var uidNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("calheat"))

// Options configures an ICS export.
type Options struct {
	Logger    *slog.Logger
	DateField string                   // Field left out of event descriptions
	Filter    func(models.Record) bool // Only records passing Filter are counted; nil keeps all
	Now       func() time.Time         // DTSTAMP clock
	Summary   func(count int) string   // Event title; defaults to "N records"
}

// ICS writes one all-day VEVENT per day that has at least one (passing)
// record. The event runs from the day to the next, is titled with the
// record count and describes the day's records the way the calendar
// tooltip does. It returns the number of events written.
func ICS(w io.Writer, data models.CalendarData, opts Options) (int, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	dateField := opts.DateField
	if dateField == "" {
		dateField = calendar.DefaultDateField
	}
	summary := opts.Summary
	if summary == nil {
		summary = defaultSummary
	}

	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, productID)

	stamp := now().UTC()
	for _, year := range data.Years() {
		for _, cell := range data[year] {
			if cell == nil || len(cell.Records) == 0 {
				continue
			}
			day := cell
			if opts.Filter != nil {
				day = &models.DayCell{Date: cell.Date}
				for _, r := range cell.Records {
					if opts.Filter(r) {
						day.Records = append(day.Records, r)
					}
				}
				if len(day.Records) == 0 {
					continue
				}
			}

			event, err := dayEvent(day, dateField, stamp, summary)
			if err != nil {
				return 0, err
			}
			cal.Children = append(cal.Children, event)
		}
	}

	if len(cal.Children) == 0 {
		return 0, ErrNothingToExport
	}
	if err := ical.NewEncoder(w).Encode(cal); err != nil {
		return 0, fmt.Errorf("failed to encode calendar to iCal format: %w", err)
	}

	logger.Info("Exported calendar", "events", len(cal.Children))
	return len(cal.Children), nil
}

// dayEvent converts a day cell to an all-day VEVENT.
func dayEvent(cell *models.DayCell, dateField string, stamp time.Time, summary func(int) string) (*ical.Component, error) {
	start, err := time.Parse("2006-01-02", cell.Date)
	if err != nil {
		return nil, fmt.Errorf("invalid cell date %q: %w", cell.Date, err)
	}

	ve := ical.NewComponent(ical.CompEvent)
	ve.Props.SetText(ical.PropUID, DayUID(cell.Date))
	ve.Props.SetDateTime(ical.PropDateTimeStamp, stamp)
	ve.Props.SetDate(ical.PropDateTimeStart, start)
	ve.Props.SetDate(ical.PropDateTimeEnd, start.AddDate(0, 0, 1))
	ve.Props.SetText(ical.PropSummary, summary(len(cell.Records)))
	ve.Props.SetText(ical.PropDescription, calendar.DefaultTooltip(cell, dateField))
	return ve, nil
}

// DayUID returns the stable event UID of an ISO date.
func DayUID(date string) string {
	return uuid.NewSHA1(uidNamespace, []byte(date)).String()
}

func defaultSummary(count int) string {
	if count == 1 {
		return "1 record"
	}
	return fmt.Sprintf("%d records", count)
}
