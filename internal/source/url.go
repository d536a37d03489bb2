package source

import (
	"calheat/internal/models"
	"context"
	"fmt"
	"log/slog"
	"net/http"
)

// URL loads a JSON record document over HTTP.
type URL struct {
	URL    string
	Client *http.Client
	Logger *slog.Logger
}

// Load fetches the document and decodes it. Any non-2xx status is an error.
func (u *URL) Load(ctx context.Context) ([]models.Record, error) {
	client := u.Client
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", u.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("failed to fetch %s: unexpected status %s", u.URL, resp.Status)
	}

	records, err := Decode(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", u.URL, err)
	}

	if u.Logger != nil {
		u.Logger.Debug("Fetched records", "url", u.URL, "count", len(records))
	}
	return records, nil
}
