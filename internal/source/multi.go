package source

import (
	"calheat/internal/models"
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// Multi merges the records of several sources in order.
type Multi struct {
	logger  *slog.Logger
	sources []Source
	names   []string
	// dedupeField drops a record when a different, earlier source had a
	// record with the same non-empty value in this field on the same date
	// (e.g. the iCalendar "uid" of an event shared by two calendars).
	// Records repeating a key within one source, such as the instances of
	// a recurring event, are all kept.
	dedupeField string
	dateField   string
}

type dedupeKey struct {
	id, date models.Value
}

// NewMulti creates a merged source. names label the sources in log output
// and may be shorter than sources. dateField defaults to "date".
func NewMulti(logger *slog.Logger, sources []Source, names []string, dedupeField, dateField string) *Multi {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if dateField == "" {
		dateField = "date"
	}
	return &Multi{logger: logger, sources: sources, names: names, dedupeField: dedupeField, dateField: dateField}
}

// Load loads every source. A failing source is logged and skipped so one
// unreachable calendar does not hide the rest; Load fails only when every
// source fails.
func (m *Multi) Load(ctx context.Context) ([]models.Record, error) {
	var all []models.Record
	var errs []error
	// first source index holding each key
	owner := make(map[dedupeKey]int)
	duplicates := 0

	for i, src := range m.sources {
		name := fmt.Sprintf("source %d", i+1)
		if i < len(m.names) {
			name = m.names[i]
		}

		records, err := src.Load(ctx)
		if err != nil {
			m.logger.Error("Could not load records from a source", "source", name, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			continue
		}

		for _, r := range records {
			if m.dedupeField != "" {
				if id := r.Get(m.dedupeField); !id.IsEmpty() {
					key := dedupeKey{id: id, date: r.Get(m.dateField)}
					if first, ok := owner[key]; ok && first != i {
						duplicates++
						continue
					}
					owner[key] = i
				}
			}
			all = append(all, r)
		}
		m.logger.Debug("Loaded source", "source", name, "count", len(records))
	}

	if len(m.sources) > 0 && len(errs) == len(m.sources) {
		return nil, errors.Join(errs...)
	}
	if duplicates > 0 {
		m.logger.Info("Dropped duplicate records", "field", m.dedupeField, "count", duplicates)
	}
	m.logger.Info("Loaded all sources", "sources", len(m.sources), "records", len(all))
	return all, nil
}
