package models

import "time"

// Event is a calendar event read from an external calendar provider.
// Sources convert events into Records so the engine never sees provider types.
type Event struct {
	ID        string    // Provider identifier of the event
	UID       string    // The iCalendar UID
	Title     string    // Summary or title of the event
	StartTime time.Time // Start of the event; its date becomes the record date
	Location  string    // Location of the event
	Status    string    // CONFIRMED, TENTATIVE, CANCELLED, ...
	Category  string    // First category, if any
	Organizer string    // Organizer's email
	Source    string    // Where the event came from (e.g., "caldav:Work")
}

// Record converts the event into a Record. The start time is converted to loc
// before its date is taken, so all-day and timed events land on the local day.
// An event without a start time yields a record without a date field.
func (e *Event) Record(dateField string, loc *time.Location) Record {
	if loc == nil {
		loc = time.Local
	}
	r := Record{}
	if !e.StartTime.IsZero() {
		r[dateField] = String(e.StartTime.In(loc).Format("2006-01-02"))
	}
	set := func(field, value string) {
		if value != "" {
			r[field] = String(value)
		}
	}
	set("uid", e.UID)
	set("summary", e.Title)
	set("location", e.Location)
	set("status", e.Status)
	set("category", e.Category)
	set("organizer", e.Organizer)
	set("source", e.Source)
	return r
}
