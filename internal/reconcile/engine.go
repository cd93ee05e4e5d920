// Package reconcile turns untrusted ledger webhook events into validated,
// store-committed duel state transitions.
//
// An event is only a change notification: the engine re-fetches the duel
// from the ledger snapshot collaborator and never trusts amounts carried in
// the event body. Each duel is reconciled inside its own serialization
// domain (store.Lock), which is released while the snapshot fetch is in
// flight and re-checked afterwards.
package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/MrAlexPushkin/LetsGoDuel/internal/ledger"
	"github.com/MrAlexPushkin/LetsGoDuel/internal/store"
	"github.com/MrAlexPushkin/LetsGoDuel/pkg/duel"
)

var (
	// ErrInvariantViolation marks a snapshot that would break a duel invariant,
	// e.g. reverting a winner or naming a winner below target.
	ErrInvariantViolation = errors.New("duel invariant violation")

	// ErrAmbiguousCompletion marks a snapshot where both sides reached the
	// target with exactly equal raised amounts. The engine does not guess.
	ErrAmbiguousCompletion = errors.New("ambiguous completion: both sides reached target with equal amounts")

	// ErrDuplicateDuel is returned when registering a duel ID that already exists.
	ErrDuplicateDuel = errors.New("duel already registered")
)

// DefaultFetchTimeout bounds a single ledger snapshot fetch.
const DefaultFetchTimeout = 10 * time.Second

// Outcome describes what happened to one ingested event.
type Outcome string

const (
	OutcomeIgnored   Outcome = "ignored"   // unrelated, malformed or inactive duel
	OutcomeDuplicate Outcome = "duplicate" // signature already processed or in flight
	OutcomeApplied   Outcome = "applied"   // routine update committed and published
	OutcomeCompleted Outcome = "completed" // completion transition committed and published
	OutcomeFailed    Outcome = "failed"    // transient dependency failure, nothing written
	OutcomeStale     Outcome = "stale"     // another event committed during the fetch
	OutcomeRejected  Outcome = "rejected"  // snapshot violated an invariant
	OutcomeAmbiguous Outcome = "ambiguous" // dual threshold crossing with equal amounts
)

// SignatureLedger records which transaction signatures were processed per duel.
// Reserve must return false for a signature that is committed or currently reserved.
type SignatureLedger interface {
	Reserve(ctx context.Context, duelID, signature string) (bool, error)
	Commit(ctx context.Context, duelID, signature string) error
	Release(ctx context.Context, duelID, signature string) error
}

// Publisher pushes committed state to observers.
type Publisher interface {
	Publish(duelID string, state *duel.State, trade *duel.TradeRef)
	PublishCompletion(duelID string, state *duel.State, winner duel.Side)
	Broadcast(msg *duel.Message)
}

// CompletionSignaler receives the one-time completion transition of a duel.
type CompletionSignaler interface {
	Signal(state *duel.State)
}

// Config holds the collaborators of an Engine.
type Config struct {
	InstanceName string
	Store        *store.Store
	Fetcher      ledger.Fetcher
	Publisher    Publisher
	Completions  CompletionSignaler

	// Optional. Signatures defaults to an in-memory ledger and FetchTimeout
	// to DefaultFetchTimeout.
	Signatures   SignatureLedger
	FetchTimeout time.Duration
}

// Engine reconciles ledger events into the state store.
type Engine struct {
	instanceName string
	store        *store.Store
	fetcher      ledger.Fetcher
	signatures   SignatureLedger
	publisher    Publisher
	completions  CompletionSignaler
	fetchTimeout time.Duration
}

// NewEngine creates a reconciliation engine.
func NewEngine(cfg Config) (*Engine, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if cfg.Fetcher == nil {
		return nil, fmt.Errorf("fetcher is required")
	}
	if cfg.Publisher == nil {
		return nil, fmt.Errorf("publisher is required")
	}
	if cfg.Completions == nil {
		return nil, fmt.Errorf("completion signaler is required")
	}

	signatures := cfg.Signatures
	if signatures == nil {
		signatures = NewMemorySignatures()
	}

	timeout := cfg.FetchTimeout
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}

	return &Engine{
		instanceName: cfg.InstanceName,
		store:        cfg.Store,
		fetcher:      cfg.Fetcher,
		signatures:   signatures,
		publisher:    cfg.Publisher,
		completions:  cfg.Completions,
		fetchTimeout: timeout,
	}, nil
}

// Ingest reconciles a single ledger event.
//
// Ignorable input returns an outcome and a nil error. Transient failures,
// invariant violations and ambiguous snapshots return a non-nil error
// alongside the outcome; in every error case the store is left untouched and
// nothing is published.
func (e *Engine) Ingest(ctx context.Context, ev duel.LedgerEvent) (Outcome, error) {
	duelID, ok := e.recognise(ev)
	if !ok {
		return OutcomeIgnored, nil
	}

	prev, revision, outcome, err := e.reserve(ctx, duelID, ev.Signature)
	if outcome != "" {
		return outcome, err
	}

	startTime := time.Now()
	fetchCtx, cancel := context.WithTimeout(ctx, e.fetchTimeout)
	next, fetchErr := e.fetcher.FetchState(fetchCtx, duelID)
	cancel()

	unlock := e.store.Lock(duelID)
	defer unlock()

	if fetchErr != nil {
		e.release(ctx, duelID, ev.Signature)
		e.logEvent("fetch_failed", map[string]interface{}{
			"duel_id":   duelID,
			"signature": ev.Signature,
			"error":     fetchErr.Error(),
		})
		return OutcomeFailed, fmt.Errorf("failed to fetch duel %s: %w", duelID, fetchErr)
	}

	if e.store.Revision(duelID) != revision {
		e.release(ctx, duelID, ev.Signature)
		e.logEvent("stale_snapshot_discarded", map[string]interface{}{
			"duel_id":   duelID,
			"signature": ev.Signature,
		})
		return OutcomeStale, nil
	}

	winner, err := checkTransition(prev, next)
	if err != nil {
		e.release(ctx, duelID, ev.Signature)
		outcome := OutcomeRejected
		if errors.Is(err, ErrAmbiguousCompletion) {
			outcome = OutcomeAmbiguous
		}
		e.logEvent("snapshot_"+string(outcome), map[string]interface{}{
			"duel_id":   duelID,
			"signature": ev.Signature,
			"level":     "error",
			"error":     err.Error(),
		})
		return outcome, err
	}

	e.store.Put(next)
	if err := e.signatures.Commit(ctx, duelID, ev.Signature); err != nil {
		// State is already committed; a redelivery will re-fetch the same
		// snapshot and apply an identical update.
		log.Printf("[Reconcile] Failed to commit signature %s for duel %s: %v", ev.Signature, duelID, err)
	}

	data := map[string]interface{}{
		"duel_id":    duelID,
		"signature":  ev.Signature,
		"raised_a":   next.A.Raised,
		"raised_b":   next.B.Raised,
		"latency_ms": time.Since(startTime).Milliseconds(),
	}

	e.publisher.Publish(duelID, next, &duel.TradeRef{
		Type:      ev.Type,
		Signature: ev.Signature,
		Timestamp: ev.Timestamp,
	})

	if winner == duel.SideNone {
		e.logEvent("duel_updated", data)
		return OutcomeApplied, nil
	}

	e.publisher.PublishCompletion(duelID, next, winner)
	e.completions.Signal(next.Clone())
	data["winner"] = string(winner)
	e.logEvent("duel_completed", data)
	return OutcomeCompleted, nil
}

// Register adds a newly materialized duel to the store and tells every observer.
func (e *Engine) Register(ctx context.Context, state *duel.State) error {
	if err := state.Validate(); err != nil {
		return fmt.Errorf("invalid duel: %w", err)
	}
	if !state.Active || state.Completed() {
		return fmt.Errorf("%w: new duel %s must be active without a winner", ErrInvariantViolation, state.ID)
	}

	unlock := e.store.Lock(state.ID)
	defer unlock()

	if _, exists := e.store.Get(state.ID); exists {
		return fmt.Errorf("%w: %s", ErrDuplicateDuel, state.ID)
	}

	e.store.Put(state)
	e.publisher.Broadcast(&duel.Message{
		Type:   duel.MessageDuelCreated,
		DuelID: state.ID,
		Duel:   state.Clone(),
	})

	e.logEvent("duel_registered", map[string]interface{}{
		"duel_id":  state.ID,
		"symbol_a": state.A.Symbol,
		"symbol_b": state.B.Symbol,
	})
	return nil
}

// recognise applies the input filter: a supported event type, a signature,
// and at least one account the store knows as an active duel.
func (e *Engine) recognise(ev duel.LedgerEvent) (string, bool) {
	switch strings.ToUpper(ev.Type) {
	case duel.LedgerEventTransfer, duel.LedgerEventTokenMint, duel.LedgerEventTokenBurn:
	default:
		return "", false
	}

	if strings.TrimSpace(ev.Signature) == "" {
		return "", false
	}

	for _, account := range ev.Accounts {
		if state, ok := e.store.Get(account); ok && state.Active {
			return account, true
		}
	}
	return "", false
}

// reserve runs the first half of the serialization domain: it checks the duel
// is still active, reserves the signature and snapshots what the commit step
// must re-check. A non-empty outcome means processing stops here.
func (e *Engine) reserve(ctx context.Context, duelID, signature string) (*duel.State, uint64, Outcome, error) {
	unlock := e.store.Lock(duelID)
	defer unlock()

	prev, ok := e.store.Get(duelID)
	if !ok || !prev.Active || prev.Completed() {
		return nil, 0, OutcomeIgnored, nil
	}

	reserved, err := e.signatures.Reserve(ctx, duelID, signature)
	if err != nil {
		return nil, 0, OutcomeFailed, fmt.Errorf("failed to check signature %s: %w", signature, err)
	}
	if !reserved {
		e.logEvent("duplicate_signature", map[string]interface{}{
			"duel_id":   duelID,
			"signature": signature,
		})
		return nil, 0, OutcomeDuplicate, nil
	}

	return prev, e.store.Revision(duelID), "", nil
}

func (e *Engine) release(ctx context.Context, duelID, signature string) {
	if err := e.signatures.Release(ctx, duelID, signature); err != nil {
		log.Printf("[Reconcile] Failed to release signature %s for duel %s: %v", signature, duelID, err)
	}
}

// checkTransition validates next against prev and returns the winner if this
// snapshot is the completion transition. prev is always an active duel.
func checkTransition(prev, next *duel.State) (duel.Side, error) {
	if next == nil {
		return duel.SideNone, fmt.Errorf("%w: empty snapshot", ErrInvariantViolation)
	}
	if next.ID != prev.ID {
		return duel.SideNone, fmt.Errorf("%w: snapshot for %q returned for duel %q", ErrInvariantViolation, next.ID, prev.ID)
	}
	if err := next.Validate(); err != nil {
		return duel.SideNone, fmt.Errorf("%w: %v", ErrInvariantViolation, err)
	}
	if prev.CreatedAt != 0 && next.CreatedAt != prev.CreatedAt {
		return duel.SideNone, fmt.Errorf("%w: created_at changed from %d to %d", ErrInvariantViolation, prev.CreatedAt, next.CreatedAt)
	}
	// Raised amounts never decrease; a lower snapshot lags what is stored.
	if next.A.Raised < prev.A.Raised || next.B.Raised < prev.B.Raised {
		return duel.SideNone, fmt.Errorf("%w: raised went from %d/%d to %d/%d",
			ErrInvariantViolation, prev.A.Raised, prev.B.Raised, next.A.Raised, next.B.Raised)
	}

	if next.Winner == duel.SideNone {
		return duel.SideNone, nil
	}

	if next.A.Raised >= next.Target && next.B.Raised >= next.Target {
		switch {
		case next.A.Raised == next.B.Raised:
			return duel.SideNone, ErrAmbiguousCompletion
		case next.A.Raised > next.B.Raised && next.Winner != duel.SideA,
			next.B.Raised > next.A.Raised && next.Winner != duel.SideB:
			return duel.SideNone, fmt.Errorf("%w: ledger winner %s raised less than side %s",
				ErrInvariantViolation, next.Winner, next.Winner.Other())
		}
	}

	return next.Winner, nil
}

// logEvent logs a structured event in JSON format.
func (e *Engine) logEvent(eventType string, data map[string]interface{}) {
	data["timestamp"] = time.Now().UTC().Format(time.RFC3339)
	if _, ok := data["level"]; !ok {
		data["level"] = "info"
	}
	data["component"] = "reconcile"
	data["event_type"] = eventType
	data["instance"] = e.instanceName

	jsonData, err := json.Marshal(data)
	if err != nil {
		log.Printf("[Reconcile] Failed to marshal log event: %v", err)
		return
	}

	log.Println(string(jsonData))
}
