package challenge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/MrAlexPushkin/LetsGoDuel/internal/announce"
	"github.com/MrAlexPushkin/LetsGoDuel/pkg/duel"
)

// ErrAmbiguousMatch is returned when an accept matches several pending
// challenges that cannot be told apart.
var ErrAmbiguousMatch = errors.New("ambiguous match: several challenges created at the same time")

// Defaults for Config.
const (
	DefaultTTL             = 24 * time.Hour
	DefaultSweepInterval   = time.Minute
	DefaultAnnounceTimeout = 15 * time.Second
)

// Registrar accepts newly created duels into the state store.
type Registrar interface {
	Register(ctx context.Context, state *duel.State) error
}

// Broadcaster sends global notices to every observer.
type Broadcaster interface {
	Broadcast(msg *duel.Message)
}

// ResultKind tags what HandlePost did with a post.
type ResultKind string

const (
	ResultIgnored  ResultKind = "ignored"
	ResultProposed ResultKind = "proposed"
	ResultMatched  ResultKind = "matched"
)

// Result describes the effect of one post.
type Result struct {
	Kind      ResultKind
	Challenge *duel.Challenge // set for proposed and matched
	Duel      *duel.State     // set for matched
}

// Config holds matcher settings and collaborators.
type Config struct {
	InstanceName    string
	BotHandle       string
	Target          uint64
	TTL             time.Duration
	SweepInterval   time.Duration
	AnnounceTimeout time.Duration

	Creator     Creator
	Registrar   Registrar
	Broadcaster Broadcaster
	Announcer   announce.Sink

	// Clock defaults to time.Now.
	Clock func() time.Time
}

// Matcher tracks proposed challenges and materializes accepted ones.
type Matcher struct {
	instanceName    string
	botHandle       string
	target          uint64
	ttl             time.Duration
	sweepInterval   time.Duration
	announceTimeout time.Duration

	creator     Creator
	registrar   Registrar
	broadcaster Broadcaster
	announcer   announce.Sink
	now         func() time.Time

	mu      sync.Mutex
	pending map[string]*duel.Challenge
}

// NewMatcher creates a Matcher.
func NewMatcher(cfg Config) (*Matcher, error) {
	if strings.TrimPrefix(strings.TrimSpace(cfg.BotHandle), "@") == "" {
		return nil, fmt.Errorf("bot handle is required")
	}
	if cfg.Target == 0 {
		return nil, fmt.Errorf("target must be > 0")
	}
	if cfg.TTL < 0 {
		return nil, fmt.Errorf("ttl must be >= 0, got %s", cfg.TTL)
	}
	if cfg.Creator == nil {
		return nil, fmt.Errorf("creator is required")
	}
	if cfg.Registrar == nil {
		return nil, fmt.Errorf("registrar is required")
	}
	if cfg.Broadcaster == nil {
		return nil, fmt.Errorf("broadcaster is required")
	}
	if cfg.Announcer == nil {
		return nil, fmt.Errorf("announcer is required")
	}

	m := &Matcher{
		instanceName:    cfg.InstanceName,
		botHandle:       cfg.BotHandle,
		target:          cfg.Target,
		ttl:             cfg.TTL,
		sweepInterval:   cfg.SweepInterval,
		announceTimeout: cfg.AnnounceTimeout,
		creator:         cfg.Creator,
		registrar:       cfg.Registrar,
		broadcaster:     cfg.Broadcaster,
		announcer:       cfg.Announcer,
		now:             cfg.Clock,
		pending:         make(map[string]*duel.Challenge),
	}

	if m.ttl == 0 {
		m.ttl = DefaultTTL
	}
	if m.sweepInterval <= 0 {
		m.sweepInterval = DefaultSweepInterval
	}
	if m.announceTimeout <= 0 {
		m.announceTimeout = DefaultAnnounceTimeout
	}
	if m.now == nil {
		m.now = time.Now
	}

	return m, nil
}

// HandlePost processes one mention from the social feed.
func (m *Matcher) HandlePost(ctx context.Context, post duel.Post) (Result, error) {
	intent := Parse(post.Text, m.botHandle)

	switch intent.Kind {
	case IntentChallenge:
		return m.propose(post, intent), nil
	case IntentAccept:
		return m.accept(ctx, post, intent)
	default:
		return Result{Kind: ResultIgnored}, nil
	}
}

func (m *Matcher) propose(post duel.Post, intent Intent) Result {
	if strings.EqualFold(intent.Opponent, post.AuthorHandle) || post.AuthorID == "" {
		return Result{Kind: ResultIgnored}
	}

	createdAt := post.CreatedAt
	if createdAt.IsZero() {
		createdAt = m.now()
	}

	c := &duel.Challenge{
		ID:               duel.ChallengeKey(post.AuthorID, intent.Opponent),
		ChallengerID:     post.AuthorID,
		ChallengerHandle: post.AuthorHandle,
		OpponentHandle:   intent.Opponent,
		TokenName:        duel.TokenName(intent.Symbol, post.AuthorHandle),
		TokenSymbol:      intent.Symbol,
		PostID:           post.ID,
		CreatedAt:        createdAt,
	}

	m.mu.Lock()
	_, replaced := m.pending[c.ID]
	m.pending[c.ID] = c
	m.mu.Unlock()

	m.broadcaster.Broadcast(&duel.Message{Type: duel.MessagePendingDuel, Challenge: c.Notice()})
	m.logEvent("challenge_proposed", map[string]interface{}{
		"challenge_id": c.ID,
		"opponent":     c.OpponentHandle,
		"symbol":       c.TokenSymbol,
		"replaced":     replaced,
	})

	out := *c
	return Result{Kind: ResultProposed, Challenge: &out}
}

func (m *Matcher) accept(ctx context.Context, post duel.Post, intent Intent) (Result, error) {
	c, expired, err := m.claim(post)
	m.announceExpired(expired)
	if err != nil {
		m.logEvent("match_ambiguous", map[string]interface{}{
			"level":    "error",
			"accepter": post.AuthorHandle,
			"error":    err.Error(),
		})
		return Result{Kind: ResultIgnored}, err
	}
	if c == nil {
		m.logEvent("accept_unmatched", map[string]interface{}{
			"accepter": post.AuthorHandle,
			"symbol":   intent.Symbol,
		})
		return Result{Kind: ResultIgnored}, nil
	}

	req := CreateRequest{
		ChallengeID: c.ID,
		A: duel.TokenSide{
			Name:    c.TokenName,
			Symbol:  c.TokenSymbol,
			Founder: c.ChallengerHandle,
		},
		B: duel.TokenSide{
			Name:    duel.TokenName(intent.Symbol, post.AuthorHandle),
			Symbol:  intent.Symbol,
			Founder: post.AuthorHandle,
		},
		Target: m.target,
	}

	state, err := m.creator.CreateDuel(ctx, req)
	if err != nil {
		m.restore(c)
		return Result{Kind: ResultIgnored}, fmt.Errorf("failed to create duel for challenge %s: %w", c.ID, err)
	}

	if err := m.registrar.Register(ctx, state); err != nil {
		// The duel exists on-chain, so the challenge is consumed either way.
		return Result{Kind: ResultIgnored, Challenge: c}, fmt.Errorf("failed to register duel %s: %w", state.ID, err)
	}

	m.logEvent("duel_materialized", map[string]interface{}{
		"challenge_id": c.ID,
		"duel_id":      state.ID,
		"symbol_a":     state.A.Symbol,
		"symbol_b":     state.B.Symbol,
	})

	announceCtx, cancel := context.WithTimeout(ctx, m.announceTimeout)
	defer cancel()
	if err := m.announcer.Announce(announceCtx, NewDuelText(state)); err != nil {
		log.Printf("[Challenge] Failed to announce duel %s: %v", state.ID, err)
	}

	return Result{Kind: ResultMatched, Challenge: c, Duel: state}, nil
}

// claim picks the challenge an accept refers to and removes it from the
// pending set. Expired entries found on the way are removed and returned.
func (m *Matcher) claim(post duel.Post) (*duel.Challenge, []*duel.Challenge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	expired := m.sweepLocked(m.now())

	var candidates []*duel.Challenge
	for _, c := range m.pending {
		if strings.EqualFold(c.OpponentHandle, post.AuthorHandle) && c.ChallengerID != post.AuthorID {
			candidates = append(candidates, c)
		}
	}
	if len(candidates) == 0 {
		return nil, expired, nil
	}

	chosen, err := pick(candidates, post.ReferencedPostID)
	if err != nil || chosen == nil {
		return nil, expired, err
	}

	delete(m.pending, chosen.ID)
	return chosen, expired, nil
}

// pick returns the challenge the accept replied to. An accept that replies
// to anything else (an expired challenge, an unrelated post) matches nothing.
// Only accepts without a reference fall back to the newest challenge.
func pick(candidates []*duel.Challenge, referencedPostID string) (*duel.Challenge, error) {
	if referencedPostID != "" {
		for _, c := range candidates {
			if c.PostID == referencedPostID {
				return c, nil
			}
		}
		return nil, nil
	}

	var latest *duel.Challenge
	tied := false
	for _, c := range candidates {
		switch {
		case latest == nil || c.CreatedAt.After(latest.CreatedAt):
			latest, tied = c, false
		case c.CreatedAt.Equal(latest.CreatedAt):
			tied = true
		}
	}
	if tied {
		return nil, ErrAmbiguousMatch
	}
	return latest, nil
}

// restore puts a claimed challenge back unless it was re-issued meanwhile.
func (m *Matcher) restore(c *duel.Challenge) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.pending[c.ID]; !exists {
		m.pending[c.ID] = c
	}
}

// Sweep removes expired challenges, notifies observers and returns how many were removed.
func (m *Matcher) Sweep() int {
	m.mu.Lock()
	expired := m.sweepLocked(m.now())
	m.mu.Unlock()

	m.announceExpired(expired)
	return len(expired)
}

func (m *Matcher) sweepLocked(now time.Time) []*duel.Challenge {
	var expired []*duel.Challenge
	for id, c := range m.pending {
		if c.Expired(now, m.ttl) {
			delete(m.pending, id)
			expired = append(expired, c)
		}
	}
	return expired
}

func (m *Matcher) announceExpired(expired []*duel.Challenge) {
	for _, c := range expired {
		m.broadcaster.Broadcast(&duel.Message{Type: duel.MessageChallengeExpired, Challenge: c.Notice()})
		m.logEvent("challenge_expired", map[string]interface{}{
			"challenge_id": c.ID,
		})
	}
}

// Pending returns the live challenges, oldest first.
func (m *Matcher) Pending() []duel.Challenge {
	now := m.now()

	m.mu.Lock()
	out := make([]duel.Challenge, 0, len(m.pending))
	for _, c := range m.pending {
		if !c.Expired(now, m.ttl) {
			out = append(out, *c)
		}
	}
	m.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Run consumes posts until ctx is cancelled or posts is closed, sweeping
// expired challenges on every tick.
func (m *Matcher) Run(ctx context.Context, posts <-chan duel.Post) error {
	ticker := time.NewTicker(m.sweepInterval)
	defer ticker.Stop()

	log.Printf("[Challenge] Matcher running (bot=@%s, ttl=%s)", strings.TrimPrefix(m.botHandle, "@"), m.ttl)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case post, ok := <-posts:
			if !ok {
				return nil
			}
			if _, err := m.HandlePost(ctx, post); err != nil {
				log.Printf("[Challenge] Failed to handle post %s: %v", post.ID, err)
			}

		case <-ticker.C:
			m.Sweep()
		}
	}
}

// NewDuelText renders the announcement for a freshly materialized duel.
func NewDuelText(state *duel.State) string {
	return fmt.Sprintf("🔥 NEW DUEL LIVE! $%s (@%s) vs $%s (@%s). First to %s SOL wins",
		state.A.Symbol, state.A.Founder, state.B.Symbol, state.B.Founder, duel.FormatSOL(state.Target))
}

// logEvent logs a structured event in JSON format.
func (m *Matcher) logEvent(eventType string, data map[string]interface{}) {
	data["timestamp"] = time.Now().UTC().Format(time.RFC3339)
	if _, ok := data["level"]; !ok {
		data["level"] = "info"
	}
	data["component"] = "challenge"
	data["event_type"] = eventType
	data["instance"] = m.instanceName

	jsonData, err := json.Marshal(data)
	if err != nil {
		log.Printf("[Challenge] Failed to marshal log event: %v", err)
		return
	}

	log.Println(string(jsonData))
}
