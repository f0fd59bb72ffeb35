package ui

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/abelbrown/dealfeed/internal/httpapi"
	"github.com/abelbrown/dealfeed/internal/model"
)

// Client talks to a running dealfeed service.
type Client struct {
	base string
	http *http.Client
}

// NewClient creates a client for the service at base, e.g.
// "http://localhost:8080".
func NewClient(base string, timeout time.Duration) *Client {
	return &Client{
		base: strings.TrimRight(base, "/"),
		http: &http.Client{Timeout: timeout},
	}
}

// Feed fetches the current feed.
func (c *Client) Feed(ctx context.Context) (model.Feed, bool, error) {
	return c.do(ctx, http.MethodGet, "/feed")
}

// Refresh asks the service to rebuild and returns the resulting feed.
func (c *Client) Refresh(ctx context.Context) (model.Feed, bool, error) {
	return c.do(ctx, http.MethodPost, "/refresh")
}

func (c *Client) do(ctx context.Context, method, path string) (model.Feed, bool, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, nil)
	if err != nil {
		return model.Feed{}, false, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return model.Feed{}, false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return model.Feed{}, false, fmt.Errorf("%s %s: %s", method, path, resp.Status)
	}

	var feed model.Feed
	if err := json.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return model.Feed{}, false, fmt.Errorf("decode feed: %w", err)
	}
	return feed, resp.Header.Get(httpapi.StaleHeader) == "true", nil
}

// LoadCmd returns a command that fetches the current feed.
func (c *Client) LoadCmd() tea.Cmd {
	return func() tea.Msg {
		feed, stale, err := c.Feed(context.Background())
		return FeedLoaded{Feed: feed, Stale: stale, Err: err}
	}
}

// RefreshCmd returns a command that triggers a rebuild.
func (c *Client) RefreshCmd() tea.Cmd {
	return func() tea.Msg {
		feed, stale, err := c.Refresh(context.Background())
		return FeedLoaded{Feed: feed, Stale: stale, Err: err}
	}
}
