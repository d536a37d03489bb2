package source

import (
	"calheat/internal/models"
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/emersion/go-webdav/caldav"
)

// DefaultCalDAVEndpoint is used when no endpoint is configured.
const DefaultCalDAVEndpoint = "https://caldav.icloud.com/"

// CalDAVConfig holds the server credentials for CalDAV sources.
type CalDAVConfig struct {
	Endpoint string
	Username string
	Password string
}

// customTransport handles adding Basic Auth and custom headers to requests.
type customTransport struct {
	Username  string
	Password  string
	Transport http.RoundTripper
}

// RoundTrip adds required headers and authentication to each request.
func (t *customTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	if t.Username != "" || t.Password != "" {
		req.SetBasicAuth(t.Username, t.Password)
	}
	req.Header.Set("User-Agent", "calheat/1.0")
	return t.Transport.RoundTrip(req)
}

// CalDAV loads the events of one named calendar from a CalDAV server.
type CalDAV struct {
	name string
	cfg  Config
}

// NewCalDAV returns a source for the calendar with the given display name.
// Nothing is contacted until Load.
func NewCalDAV(name string, cfg Config) *CalDAV {
	return &CalDAV{name: name, cfg: cfg}
}

func (c *CalDAV) endpoint() string {
	if c.cfg.CalDAV.Endpoint == "" {
		return DefaultCalDAVEndpoint
	}
	return c.cfg.CalDAV.Endpoint
}

// Load discovers the calendar and queries its events in the configured range.
func (c *CalDAV) Load(ctx context.Context) ([]models.Record, error) {
	logger := c.cfg.logger()

	base := c.cfg.httpClient()
	transport := base.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	httpClient := &http.Client{
		Transport: &customTransport{
			Username:  c.cfg.CalDAV.Username,
			Password:  c.cfg.CalDAV.Password,
			Transport: transport,
		},
		Timeout: base.Timeout,
	}

	client, err := caldav.NewClient(httpClient, c.endpoint())
	if err != nil {
		return nil, fmt.Errorf("failed to create caldav client: %w", err)
	}

	logger.Info("Finding CalDAV calendar", "calendarName", c.name)
	calendarPath, err := findCalendar(ctx, client, c.name)
	if err != nil {
		return nil, fmt.Errorf("could not find calendar '%s': %w", c.name, err)
	}
	logger.Debug("Found CalDAV calendar", "path", calendarPath)

	objects, err := client.QueryCalendar(ctx, calendarPath, eventQuery(c.cfg.Since, c.cfg.Until))
	if err != nil {
		return nil, fmt.Errorf("failed to query calendar '%s': %w", c.name, err)
	}

	loc := c.cfg.location()
	var records []models.Record
	for _, obj := range objects {
		for _, event := range eventsFromCalendar(obj.Data, loc, "caldav:"+c.name, c.cfg.window()) {
			if event.ID == "" {
				event.ID = obj.Path
			}
			records = append(records, event.Record(c.cfg.dateField(), loc))
		}
	}

	logger.Info("Successfully fetched events from CalDAV", "count", len(records), "calendarName", c.name)
	return records, nil
}

// eventQuery requests every VEVENT overlapping [since, until). Zero bounds are open.
func eventQuery(since, until time.Time) *caldav.CalendarQuery {
	return &caldav.CalendarQuery{
		CompRequest: caldav.CalendarCompRequest{
			Name: "VCALENDAR",
			Comps: []caldav.CalendarCompRequest{{
				Name:     "VEVENT",
				AllProps: true,
			}},
		},
		CompFilter: caldav.CompFilter{
			Name: "VCALENDAR",
			Comps: []caldav.CompFilter{{
				Name:  "VEVENT",
				Start: since,
				End:   until,
			}},
		},
	}
}

// findCalendar discovers the user's calendars and returns the path of the one with the matching name.
func findCalendar(ctx context.Context, client *caldav.Client, name string) (string, error) {
	principalPath, err := client.FindCurrentUserPrincipal(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to find principal path: %w", err)
	}

	homeSetPath, err := client.FindCalendarHomeSet(ctx, principalPath)
	if err != nil {
		return "", fmt.Errorf("failed to find calendar home set: %w", err)
	}

	calendars, err := client.FindCalendars(ctx, homeSetPath)
	if err != nil {
		return "", fmt.Errorf("failed to find calendars: %w", err)
	}

	for _, cal := range calendars {
		if cal.Name == name || strings.EqualFold(strings.Trim(cal.Path, "/"), strings.Trim(name, "/")) {
			return cal.Path, nil
		}
	}

	return "", fmt.Errorf("no calendar found with name '%s'", name)
}
