// Package ledger talks to the snapshot collaborator that decodes on-chain
// duel accounts into duel.State values.
package ledger

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

	"github.com/MrAlexPushkin/LetsGoDuel/pkg/duel"
)

// ErrNotFound is returned when the ledger has no account for the duel.
var ErrNotFound = errors.New("duel not found on ledger")

// maxSnapshotBytes caps the response body read from the collaborator.
const maxSnapshotBytes = 1 << 20

// Fetcher returns the authoritative state of a duel.
// Implementations must be idempotent and side-effect free.
type Fetcher interface {
	FetchState(ctx context.Context, duelID string) (*duel.State, error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, duelID string) (*duel.State, error)

// FetchState calls f.
func (f FetcherFunc) FetchState(ctx context.Context, duelID string) (*duel.State, error) {
	return f(ctx, duelID)
}

// HTTPFetcher fetches snapshots with GET {baseURL}/duels/{id}.
type HTTPFetcher struct {
	baseURL string
	client  *http.Client
}

// NewHTTPFetcher creates a fetcher for the collaborator at baseURL.
func NewHTTPFetcher(baseURL string, timeout time.Duration) (*HTTPFetcher, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid snapshot URL %q", baseURL)
	}

	return &HTTPFetcher{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}, nil
}

// FetchState implements Fetcher.
// A 404 maps to ErrNotFound; every other failure is transient.
func (f *HTTPFetcher) FetchState(ctx context.Context, duelID string) (*duel.State, error) {
	endpoint := f.baseURL + "/duels/" + url.PathEscape(duelID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build snapshot request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch duel %s: %w", duelID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("duel %s: %w", duelID, ErrNotFound)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("snapshot collaborator returned %d for duel %s", resp.StatusCode, duelID)
	}

	var state duel.State
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxSnapshotBytes)).Decode(&state); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot for duel %s: %w", duelID, err)
	}

	if state.ID != duelID {
		return nil, fmt.Errorf("snapshot collaborator returned duel %q for %q", state.ID, duelID)
	}

	return &state, nil
}
