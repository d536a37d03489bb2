package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"golang.org/x/oauth2"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

func TestToInternalEvents(t *testing.T) {
	loc := time.FixedZone("UTC-5", -5*3600)
	items := []*calendar.Event{
		{
			Id:        "g1",
			ICalUID:   "uid-1",
			Summary:   "Standup",
			Status:    "confirmed",
			Start:     &calendar.EventDateTime{DateTime: "2024-03-02T02:00:00Z"},
			Organizer: &calendar.EventOrganizer{Email: "lead@example.com"},
		},
		{Id: "g2", Summary: "Offsite", Start: &calendar.EventDateTime{Date: "2024-03-04"}},
		{Id: "g3", Summary: "Dropped", Status: "cancelled", Start: &calendar.EventDateTime{Date: "2024-03-05"}},
		{Id: "g4", Summary: "No start"},
		nil,
	}

	events := toInternalEvents(items, "primary", loc)
	if len(events) != 3 {
		t.Fatalf("got %d events, want 3", len(events))
	}

	r := events[0].Record("date", loc)
	if r.Text("date") != "2024-03-01" || r.Text("organizer") != "lead@example.com" || r.Text("status") != "CONFIRMED" {
		t.Errorf("timed event record = %v", r)
	}
	if r.Text("source") != "google:primary" || r.Text("uid") != "uid-1" {
		t.Errorf("timed event record = %v", r)
	}
	if got := events[1].Record("date", loc).Text("date"); got != "2024-03-04" {
		t.Errorf("all-day date = %q", got)
	}
	if !events[2].StartTime.IsZero() {
		t.Error("an event without a start should keep a zero start time")
	}
}

func TestGoogleLoad(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/events") {
			http.NotFound(w, r)
			return
		}
		if strings.Contains(r.URL.Path, "broken") {
			http.Error(w, `{"error":{"code":500,"message":"boom"}}`, http.StatusInternalServerError)
			return
		}
		gotQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"items":[
			{"id":"a","summary":"One","start":{"date":"2024-01-02"}},
			{"id":"b","summary":"Two","start":{"dateTime":"2024-01-03T10:00:00Z"}}
		]}`))
	}))
	defer srv.Close()

	ctx := context.Background()
	service, err := calendar.NewService(ctx, option.WithHTTPClient(srv.Client()), option.WithEndpoint(srv.URL+"/"))
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}

	cfg := Config{
		Location: time.UTC,
		Since:    time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Until:    time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
	}
	g := newGoogleWithService(service, []string{"team", "broken"}, cfg)
	records, err := g.Load(ctx)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	if records[0].Text("calendar") != "team" || records[1].Text("date") != "2024-01-03" {
		t.Errorf("records = %v", records)
	}
	if !strings.Contains(gotQuery, "singleEvents=true") || !strings.Contains(gotQuery, "timeMin=") {
		t.Errorf("query = %q", gotQuery)
	}

	g = newGoogleWithService(service, []string{"broken"}, cfg)
	if _, err := g.Load(ctx); err == nil {
		t.Error("expected an error when every calendar fails")
	}
}

func TestTokenFiles(t *testing.T) {
	dir := t.TempDir()
	cfg := GoogleConfig{TokenDir: dir}

	token := &oauth2.Token{AccessToken: "access", RefreshToken: "refresh", TokenType: "Bearer"}
	if err := SaveToken(cfg.TokenPath("work"), token); err != nil {
		t.Fatalf("SaveToken failed: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.json"), []byte("{}"), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	accounts, err := GetTokenAccounts(dir)
	if err != nil {
		t.Fatalf("GetTokenAccounts failed: %v", err)
	}
	if len(accounts) != 1 || accounts[0] != "work" {
		t.Errorf("accounts = %v, want [work]", accounts)
	}

	got, err := tokenFromFile(cfg.TokenPath("work"))
	if err != nil {
		t.Fatalf("tokenFromFile failed: %v", err)
	}
	if got.AccessToken != "access" || got.RefreshToken != "refresh" {
		t.Errorf("token = %+v", got)
	}
}

func TestGetOAuthConfigFromCredentials(t *testing.T) {
	config, err := GetOAuthConfig("id", "secret")
	if err != nil {
		t.Fatalf("GetOAuthConfig failed: %v", err)
	}
	if config.ClientID != "id" || len(config.Scopes) != 1 || config.Scopes[0] != calendar.CalendarReadonlyScope {
		t.Errorf("config = %+v", config)
	}
}
