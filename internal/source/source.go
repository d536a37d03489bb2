package source

import (
	"bytes"
	"calheat/internal/models"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ErrInputFormat is returned when loaded data is not a list of records.
var ErrInputFormat = errors.New("input is not a list of records")

// Source loads a record set.
type Source interface {
	Load(ctx context.Context) ([]models.Record, error)
}

// Config carries the settings shared by every kind of source.
type Config struct {
	Logger         *slog.Logger
	DateField      string         // Field that receives event dates
	Location       *time.Location // Zone event start times are converted to
	NumericColumns []string       // CSV columns parsed as numbers
	HTTPClient     *http.Client

	// Range of events fetched from calendar servers and of the occurrences
	// generated for recurring events.
	Since time.Time
	Until time.Time

	CalDAV CalDAVConfig
	Google GoogleConfig
}

func (c Config) logger() *slog.Logger {
	if c.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return c.Logger
}

func (c Config) dateField() string {
	if c.DateField == "" {
		return "date"
	}
	return c.DateField
}

func (c Config) location() *time.Location {
	if c.Location == nil {
		return time.Local
	}
	return c.Location
}

func (c Config) window() Window {
	return Window{Since: c.Since, Until: c.Until}
}

func (c Config) httpClient() *http.Client {
	if c.HTTPClient == nil {
		return http.DefaultClient
	}
	return c.HTTPClient
}

// Open resolves a source reference:
//
//	caldav:<calendar name>      a calendar on the configured CalDAV server
//	google:<id>[,<id>...]       one or more Google calendars
//	http://... or https://...   a JSON document fetched over HTTP
//	anything else               a local .json, .csv or .ics file
func Open(ctx context.Context, ref string, cfg Config) (Source, error) {
	switch {
	case strings.HasPrefix(ref, "caldav:"):
		name := strings.TrimPrefix(ref, "caldav:")
		if name == "" {
			return nil, fmt.Errorf("caldav source needs a calendar name")
		}
		return NewCalDAV(name, cfg), nil
	case strings.HasPrefix(ref, "google:"):
		ids := splitList(strings.TrimPrefix(ref, "google:"))
		if len(ids) == 0 {
			return nil, fmt.Errorf("google source needs at least one calendar id")
		}
		return NewGoogle(ctx, ids, cfg)
	case strings.HasPrefix(ref, "http://"), strings.HasPrefix(ref, "https://"):
		return &URL{URL: ref, Client: cfg.httpClient(), Logger: cfg.logger()}, nil
	case ref == "":
		return nil, fmt.Errorf("no source given")
	default:
		return &File{Path: ref, Config: cfg}, nil
	}
}

// Decode reads a JSON document whose root is either an array of records or
// an object with a "records" array.
func Decode(r io.Reader) ([]models.Record, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read input: %w", err)
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty document", ErrInputFormat)
	}

	switch data[0] {
	case '[':
		var records []models.Record
		if err := json.Unmarshal(data, &records); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInputFormat, err)
		}
		return records, nil
	case '{':
		var doc struct {
			Records *[]models.Record `json:"records"`
		}
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInputFormat, err)
		}
		if doc.Records == nil {
			return nil, fmt.Errorf("%w: object has no records array", ErrInputFormat)
		}
		return *doc.Records, nil
	default:
		return nil, fmt.Errorf("%w: root must be an array or an object", ErrInputFormat)
	}
}

// File loads records from a local file, picking the format from its extension.
type File struct {
	Path   string
	Config Config
}

// Load reads and decodes the file.
func (f *File) Load(ctx context.Context) ([]models.Record, error) {
	fh, err := os.Open(f.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", f.Path, err)
	}
	defer fh.Close()

	var records []models.Record
	switch ext := strings.ToLower(filepath.Ext(f.Path)); ext {
	case ".csv":
		var skipped int
		records, skipped, err = ParseCSV(fh, f.Config.NumericColumns)
		if skipped > 0 {
			f.Config.logger().Warn("Skipped malformed CSV rows", "file", f.Path, "rows", skipped)
		}
	case ".ics", ".ical":
		records, err = ParseICS(fh, f.Config.dateField(), f.Config.location(), "file:"+filepath.Base(f.Path), f.Config.window())
	case ".json", "":
		records, err = Decode(fh)
	default:
		return nil, fmt.Errorf("unsupported file type %q", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", f.Path, err)
	}

	f.Config.logger().Debug("Loaded records from file", "file", f.Path, "count", len(records))
	return records, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
