package challenge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/MrAlexPushkin/LetsGoDuel/pkg/duel"
	"github.com/google/uuid"
)

// CreateRequest describes a matched duel to initialize on-chain.
type CreateRequest struct {
	ChallengeID string         `json:"challenge_id"`
	A           duel.TokenSide `json:"a"`
	B           duel.TokenSide `json:"b"`
	Target      uint64         `json:"target"`
}

// Creator initializes a duel on-chain and returns its initial state.
type Creator interface {
	CreateDuel(ctx context.Context, req CreateRequest) (*duel.State, error)
}

// HTTPCreator asks the on-chain collaborator to create duels with POST {baseURL}/duels.
type HTTPCreator struct {
	baseURL string
	client  *http.Client
}

// NewHTTPCreator creates a Creator for the collaborator at baseURL.
func NewHTTPCreator(baseURL string, timeout time.Duration) (*HTTPCreator, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid creator URL %q", baseURL)
	}

	return &HTTPCreator{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}, nil
}

// CreateDuel implements Creator.
func (c *HTTPCreator) CreateDuel(ctx context.Context, req CreateRequest) (*duel.State, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal create request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/duels", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to create duel: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("creator returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var state duel.State
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&state); err != nil {
		return nil, fmt.Errorf("failed to decode created duel: %w", err)
	}
	return &state, nil
}

// LocalCreator creates duels in-process with random IDs, for development
// runs without an on-chain collaborator.
type LocalCreator struct {
	now func() time.Time
}

// NewLocalCreator creates a LocalCreator.
func NewLocalCreator() *LocalCreator {
	return &LocalCreator{now: time.Now}
}

// CreateDuel implements Creator.
func (c *LocalCreator) CreateDuel(_ context.Context, req CreateRequest) (*duel.State, error) {
	if req.Target == 0 {
		return nil, fmt.Errorf("target must be > 0")
	}

	a, b := req.A, req.B
	a.Mint = uuid.NewString()
	b.Mint = uuid.NewString()
	a.Raised, b.Raised = 0, 0

	return &duel.State{
		ID:        uuid.NewString(),
		A:         a,
		B:         b,
		Target:    req.Target,
		Active:    true,
		CreatedAt: c.now().UnixMilli(),
	}, nil
}
