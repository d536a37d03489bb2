package source

import (
	"calheat/internal/models"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-ical"
	"github.com/teambition/rrule-go"
)

// maxInstances bounds the occurrences generated for one recurring event.
const maxInstances = 5000

// Window limits the occurrences generated for recurring events. A zero Since
// starts at the event's first occurrence and a zero Until ends now.
type Window struct {
	Since time.Time
	Until time.Time
}

// ParseICS decodes every calendar in r and converts its VEVENTs into records.
// Each record carries the event's start date in loc under dateField, plus
// summary, location, status, category, organizer and uid when present.
// A recurring event yields one record per occurrence inside window.
func ParseICS(r io.Reader, dateField string, loc *time.Location, source string, window Window) ([]models.Record, error) {
	dec := ical.NewDecoder(r)

	var records []models.Record
	for {
		cal, err := dec.Decode()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to decode iCalendar data: %w", err)
		}
		for _, event := range eventsFromCalendar(cal, loc, source, window) {
			records = append(records, event.Record(dateField, loc))
		}
	}
	return records, nil
}

// eventsFromCalendar converts the VEVENTs of cal to the internal Event model.
// Events whose start cannot be read are kept without a start time. Recurring
// events are expanded over window, leaving out EXDATE occurrences and those
// replaced by a VEVENT carrying a RECURRENCE-ID.
func eventsFromCalendar(cal *ical.Calendar, loc *time.Location, source string, window Window) []*models.Event {
	if cal == nil {
		return nil
	}

	overridden := make(map[string]map[int64]bool)
	for _, ev := range cal.Events() {
		if ev.Props.Get(ical.PropRecurrenceID) == nil {
			continue
		}
		id, err := ev.Props.DateTime(ical.PropRecurrenceID, loc)
		if err != nil {
			continue
		}
		uid := propText(ev.Props, ical.PropUID)
		if overridden[uid] == nil {
			overridden[uid] = make(map[int64]bool)
		}
		overridden[uid][id.Unix()] = true
	}

	var events []*models.Event
	for _, ev := range cal.Events() {
		event := &models.Event{
			UID:       propText(ev.Props, ical.PropUID),
			Title:     propText(ev.Props, ical.PropSummary),
			Location:  propText(ev.Props, ical.PropLocation),
			Status:    strings.ToUpper(propText(ev.Props, ical.PropStatus)),
			Organizer: mailAddress(propText(ev.Props, ical.PropOrganizer)),
			Source:    source,
		}
		event.ID = event.UID

		if start, err := ev.DateTimeStart(loc); err == nil {
			event.StartTime = start
		}

		if prop := ev.Props.Get(ical.PropCategories); prop != nil {
			if categories, err := prop.TextList(); err == nil && len(categories) > 0 {
				event.Category = strings.TrimSpace(categories[0])
			}
		}

		starts, err := occurrences(ev, event.StartTime, loc, window, overridden[event.UID])
		if err != nil || starts == nil {
			events = append(events, event)
			continue
		}
		for _, start := range starts {
			instance := *event
			instance.StartTime = start
			events = append(events, &instance)
		}
	}
	return events
}

// occurrences returns the start times of a recurring event inside window,
// or nil when the event has no RRULE.
func occurrences(ev ical.Event, start time.Time, loc *time.Location, window Window, skip map[int64]bool) ([]time.Time, error) {
	if ev.Props.Get(ical.PropRecurrenceID) != nil || start.IsZero() {
		return nil, nil
	}
	option, err := ev.Props.RecurrenceRule()
	if err != nil || option == nil {
		return nil, err
	}
	option.Dtstart = start
	rule, err := rrule.NewRRule(*option)
	if err != nil {
		return nil, fmt.Errorf("invalid recurrence rule: %w", err)
	}

	set := &rrule.Set{}
	set.RRule(rule)
	for _, t := range dateList(ev.Props, ical.PropRecurrenceDates, loc) {
		set.RDate(t)
	}
	for _, t := range dateList(ev.Props, ical.PropExceptionDates, loc) {
		set.ExDate(t)
	}

	until := window.Until
	if until.IsZero() {
		until = time.Now()
	}

	starts := []time.Time{}
	next := set.Iterator()
	for len(starts) < maxInstances {
		t, ok := next()
		if !ok || t.After(until) {
			break
		}
		if t.Before(window.Since) || skip[t.Unix()] {
			continue
		}
		starts = append(starts, t)
	}
	return starts, nil
}

// dateList reads every value of a multi-valued date property such as
// EXDATE, which may repeat and may hold comma-separated values.
func dateList(props ical.Props, name string, loc *time.Location) []time.Time {
	var out []time.Time
	for _, prop := range props[name] {
		for _, v := range strings.Split(prop.Value, ",") {
			single := prop
			single.Value = strings.TrimSpace(v)
			t, err := single.DateTime(loc)
			if err != nil {
				continue
			}
			out = append(out, t)
		}
	}
	return out
}

func propText(props ical.Props, name string) string {
	prop := props.Get(name)
	if prop == nil {
		return ""
	}
	text, err := prop.Text()
	if err != nil {
		return strings.TrimSpace(prop.Value)
	}
	return strings.TrimSpace(text)
}

// mailAddress strips a "mailto:" scheme from an organizer or attendee value.
func mailAddress(v string) string {
	if len(v) >= 7 && strings.EqualFold(v[:7], "mailto:") {
		return v[7:]
	}
	return v
}
