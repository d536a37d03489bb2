package source

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestCustomTransport(t *testing.T) {
	var gotUser, gotPass, gotAgent string
	var gotAuth bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser, gotPass, gotAuth = r.BasicAuth()
		gotAgent = r.UserAgent()
	}))
	defer srv.Close()

	client := &http.Client{Transport: &customTransport{
		Username:  "kim",
		Password:  "app-secret",
		Transport: http.DefaultTransport,
	}}
	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	if err != nil {
		t.Fatalf("NewRequest failed: %v", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()

	if !gotAuth || gotUser != "kim" || gotPass != "app-secret" {
		t.Errorf("basic auth = %q/%q (%v)", gotUser, gotPass, gotAuth)
	}
	if gotAgent != "calheat/1.0" {
		t.Errorf("User-Agent = %q", gotAgent)
	}
	if req.Header.Get("Authorization") != "" {
		t.Error("the caller's request must not be modified")
	}
}

func TestEventQuery(t *testing.T) {
	since := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	until := time.Date(2024, 3, 16, 0, 0, 0, 0, time.UTC)
	q := eventQuery(since, until)

	if q.CompFilter.Name != "VCALENDAR" || len(q.CompFilter.Comps) != 1 {
		t.Fatalf("unexpected filter %+v", q.CompFilter)
	}
	ev := q.CompFilter.Comps[0]
	if ev.Name != "VEVENT" || !ev.Start.Equal(since) || !ev.End.Equal(until) {
		t.Errorf("event filter = %+v", ev)
	}
	if len(q.CompRequest.Comps) != 1 || !q.CompRequest.Comps[0].AllProps {
		t.Errorf("event request = %+v", q.CompRequest)
	}
}

func TestCalDAVEndpoint(t *testing.T) {
	if got := NewCalDAV("Work", Config{}).endpoint(); got != DefaultCalDAVEndpoint {
		t.Errorf("endpoint = %q", got)
	}
	cfg := Config{CalDAV: CalDAVConfig{Endpoint: "https://dav.example.com/"}}
	if got := NewCalDAV("Work", cfg).endpoint(); got != "https://dav.example.com/" {
		t.Errorf("endpoint = %q", got)
	}
}
