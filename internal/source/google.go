package source

import (
	"calheat/internal/models"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

const (
	credentialsFile = "credentials.json"
	oobRedirectURL  = "urn:ietf:wg:oauth:2.0:oob"
)

// GoogleConfig holds the OAuth settings for Google Calendar sources.
// Tokens are stored per account as token-<account>.json in TokenDir.
type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	Account      string
	TokenDir     string
}

// TokenPath returns the token file of account.
func (g GoogleConfig) TokenPath(account string) string {
	dir := g.TokenDir
	if dir == "" {
		dir = "."
	}
	return filepath.Join(dir, fmt.Sprintf("token-%s.json", account))
}

// Google loads events from one or more Google calendars.
type Google struct {
	service     *calendar.Service
	calendarIDs []string
	cfg         Config
}

// NewGoogle creates a Google Calendar source authenticated with the stored
// token of the configured account. When no account is configured and exactly
// one token file exists, that account is used.
func NewGoogle(ctx context.Context, calendarIDs []string, cfg Config) (*Google, error) {
	oauthConfig, err := GetOAuthConfig(cfg.Google.ClientID, cfg.Google.ClientSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to get OAuth config: %w", err)
	}

	account := cfg.Google.Account
	if account == "" {
		accounts, err := GetTokenAccounts(cfg.Google.TokenDir)
		if err != nil {
			return nil, fmt.Errorf("could not list google accounts: %w", err)
		}
		if len(accounts) != 1 {
			return nil, fmt.Errorf("found %d google accounts, set GOOGLE_ACCOUNT to choose one", len(accounts))
		}
		account = accounts[0]
	}

	token, err := tokenFromFile(cfg.Google.TokenPath(account))
	if err != nil {
		return nil, fmt.Errorf("could not load token for account %s: %w. Please run the 'auth' command first", account, err)
	}

	if cfg.HTTPClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, cfg.HTTPClient)
	}
	service, err := calendar.NewService(ctx, option.WithHTTPClient(oauthConfig.Client(ctx, token)))
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar service: %w", err)
	}

	return newGoogleWithService(service, calendarIDs, cfg), nil
}

func newGoogleWithService(service *calendar.Service, calendarIDs []string, cfg Config) *Google {
	return &Google{service: service, calendarIDs: calendarIDs, cfg: cfg}
}

// Load lists the single (expanded) events of every calendar in the configured
// range. A calendar that fails is logged and skipped; Load fails only when
// every calendar fails.
func (g *Google) Load(ctx context.Context) ([]models.Record, error) {
	logger := g.cfg.logger()
	loc := g.cfg.location()

	var records []models.Record
	var errs []error
	for _, id := range g.calendarIDs {
		events, err := g.events(ctx, id)
		if err != nil {
			logger.Error("Could not fetch events for a google calendar", "calendarID", id, "error", err)
			errs = append(errs, err)
			continue
		}
		for _, event := range events {
			r := event.Record(g.cfg.dateField(), loc)
			r["calendar"] = models.String(id)
			records = append(records, r)
		}
		logger.Info("Successfully fetched events from Google Calendar", "count", len(events), "calendarID", id)
	}

	if len(errs) == len(g.calendarIDs) && len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return records, nil
}

func (g *Google) events(ctx context.Context, calendarID string) ([]*models.Event, error) {
	call := g.service.Events.List(calendarID).
		ShowDeleted(false).
		SingleEvents(true).
		OrderBy("startTime")
	if !g.cfg.Since.IsZero() {
		call = call.TimeMin(g.cfg.Since.Format(time.RFC3339))
	}
	if !g.cfg.Until.IsZero() {
		call = call.TimeMax(g.cfg.Until.Format(time.RFC3339))
	}

	var events []*models.Event
	err := call.Pages(ctx, func(page *calendar.Events) error {
		events = append(events, toInternalEvents(page.Items, calendarID, g.cfg.location())...)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve events: %w", err)
	}
	return events, nil
}

// toInternalEvents converts Google Calendar events to the internal Event model.
// All-day events start at midnight in loc.
func toInternalEvents(items []*calendar.Event, calendarID string, loc *time.Location) []*models.Event {
	var events []*models.Event
	for _, item := range items {
		if item == nil || item.Status == "cancelled" {
			continue
		}

		event := &models.Event{
			ID:       item.Id,
			UID:      item.ICalUID,
			Title:    item.Summary,
			Location: item.Location,
			Status:   strings.ToUpper(item.Status),
			Source:   fmt.Sprintf("google:%s", calendarID),
		}
		if item.Organizer != nil {
			event.Organizer = item.Organizer.Email
		}

		if item.Start != nil {
			switch {
			case item.Start.DateTime != "":
				if t, err := time.Parse(time.RFC3339, item.Start.DateTime); err == nil {
					event.StartTime = t
				}
			case item.Start.Date != "":
				if t, err := time.ParseInLocation("2006-01-02", item.Start.Date, loc); err == nil {
					event.StartTime = t
				}
			}
		}

		events = append(events, event)
	}
	return events
}

// GetOAuthConfig returns the read-only OAuth2 config used by sources and the auth flow.
// It prioritizes the given client credentials over a local credentials.json file.
func GetOAuthConfig(clientID, clientSecret string) (*oauth2.Config, error) {
	if clientID != "" && clientSecret != "" {
		return &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  oobRedirectURL,
			Scopes:       []string{calendar.CalendarReadonlyScope},
			Endpoint:     google.Endpoint,
		}, nil
	}

	b, err := os.ReadFile(credentialsFile)
	if err != nil {
		var pathErr *fs.PathError
		if errors.As(err, &pathErr) {
			return nil, fmt.Errorf("credentials.json not found. Please provide GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET env vars or place credentials.json in the working directory")
		}
		return nil, fmt.Errorf("unable to read client secret file: %w", err)
	}

	config, err := google.ConfigFromJSON(b, calendar.CalendarReadonlyScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse client secret file to config: %w", err)
	}
	config.RedirectURL = oobRedirectURL
	return config, nil
}

// TokenFromWeb exchanges an authorization code for a token.
func TokenFromWeb(ctx context.Context, config *oauth2.Config, authCode string) (*oauth2.Token, error) {
	return config.Exchange(ctx, authCode)
}

// SaveToken saves a token to a file path.
func SaveToken(path string, token *oauth2.Token) error {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("unable to create token file: %w", err)
	}
	defer f.Close()
	return json.NewEncoder(f).Encode(token)
}

// tokenFromFile retrieves a token from a local file.
func tokenFromFile(file string) (*oauth2.Token, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	tok := &oauth2.Token{}
	err = json.NewDecoder(f).Decode(tok)
	return tok, err
}

// GetTokenAccounts lists the accounts that have a token file in dir.
func GetTokenAccounts(dir string) ([]string, error) {
	if dir == "" {
		dir = "."
	}
	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var accounts []string
	for _, file := range files {
		if strings.HasPrefix(file.Name(), "token-") && strings.HasSuffix(file.Name(), ".json") {
			accountName := strings.TrimSuffix(strings.TrimPrefix(file.Name(), "token-"), ".json")
			accounts = append(accounts, accountName)
		}
	}
	return accounts, nil
}
