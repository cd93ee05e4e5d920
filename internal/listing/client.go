package listing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/MrAlexPushkin/LetsGoDuel/internal/filter"
	"github.com/MrAlexPushkin/LetsGoDuel/pkg/duel"
)

// ErrNotFound is returned by GetDuel for an unknown duel ID.
var ErrNotFound = errors.New("duel not found")

// Client reads the duelsync REST API.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a client for the server at baseURL, e.g. http://localhost:8080.
func NewClient(baseURL string, timeout time.Duration) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid server URL %q", baseURL)
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}, nil
}

// ListDuels fetches GET /api/duels with the criteria as query parameters.
func (c *Client) ListDuels(ctx context.Context, criteria filter.Criteria) ([]*duel.State, error) {
	endpoint := c.baseURL + "/api/duels"
	if q := criteria.Query(); len(q) > 0 {
		endpoint += "?" + q.Encode()
	}

	var duels []*duel.State
	if err := c.get(ctx, endpoint, &duels); err != nil {
		return nil, err
	}
	return duels, nil
}

// GetDuel fetches GET /api/duels/{id}.
func (c *Client) GetDuel(ctx context.Context, id string) (*duel.State, error) {
	var d duel.State
	if err := c.get(ctx, c.baseURL+"/api/duels/"+url.PathEscape(id), &d); err != nil {
		return nil, err
	}
	return &d, nil
}

func (c *Client) get(ctx context.Context, endpoint string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach duelsync: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&apiErr)
		if apiErr.Error == "" {
			apiErr.Error = http.StatusText(resp.StatusCode)
		}
		return fmt.Errorf("duelsync returned %d: %s", resp.StatusCode, apiErr.Error)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
