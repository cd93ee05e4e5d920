package duel

import (
	"fmt"
	"strings"
	"time"
)

// LamportsPerSOL is the number of lamports in one SOL.
const LamportsPerSOL uint64 = 1_000_000_000

// DefaultTargetLamports is the raise threshold duels are created with (85 SOL).
const DefaultTargetLamports uint64 = 85 * LamportsPerSOL

// Side identifies one half of a duel. The zero value means "no side".
type Side string

const (
	// SideNone is used for the winner of a duel that is still running
	SideNone Side = ""

	// SideA is the challenger's token
	SideA Side = "A"

	// SideB is the accepting opponent's token
	SideB Side = "B"
)

// Validate checks if the Side is a valid enum value.
func (s Side) Validate() error {
	switch s {
	case SideNone, SideA, SideB:
		return nil
	default:
		return fmt.Errorf("unknown side: %q", s)
	}
}

// Other returns the opposing side. SideNone has no opposite.
func (s Side) Other() Side {
	switch s {
	case SideA:
		return SideB
	case SideB:
		return SideA
	default:
		return SideNone
	}
}

// TokenSide holds one side of a duel as reported by the ledger.
type TokenSide struct {
	Mint    string `json:"mint"`    // Token mint address
	Name    string `json:"name"`    // Display name, e.g. "FOO by alice"
	Symbol  string `json:"symbol"`  // Ticker without the leading $
	Supply  uint64 `json:"supply"`  // Tokens minted on this side's curve
	Raised  uint64 `json:"raised"`  // Lamports raised on this side's curve
	Founder string `json:"founder"` // Identity of the founder who launched this side
}

// State is the full snapshot of a single duel.
// A State is replaced as a whole; fields are never merged from partial updates.
type State struct {
	ID         string    `json:"id"`                    // Duel account address
	A          TokenSide `json:"a"`                     // Challenger side
	B          TokenSide `json:"b"`                     // Opponent side
	Target     uint64    `json:"target"`                // Lamports either side must raise to win
	Winner     Side      `json:"winner"`                // SideNone until the duel completes
	Active     bool      `json:"active"`                // false exactly when Winner is set
	CreatedAt  int64     `json:"created_at"`            // Unix milliseconds, immutable
	FinishedAt int64     `json:"finished_at,omitempty"` // Unix milliseconds, set by the ledger on completion
}

// Side returns the requested side of the duel.
func (s *State) Side(side Side) *TokenSide {
	switch side {
	case SideA:
		return &s.A
	case SideB:
		return &s.B
	default:
		return nil
	}
}

// Completed reports whether a winner has been decided.
func (s *State) Completed() bool {
	return s.Winner != SideNone
}

// Clone returns an independent copy of the state.
func (s *State) Clone() *State {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}

// Validate checks the structural invariants of a duel snapshot.
// It does not compare against a previous state; that is the engine's job.
func (s *State) Validate() error {
	if strings.TrimSpace(s.ID) == "" {
		return fmt.Errorf("duel ID cannot be empty")
	}

	if err := s.Winner.Validate(); err != nil {
		return fmt.Errorf("invalid winner: %w", err)
	}

	if s.Target == 0 {
		return fmt.Errorf("target must be > 0")
	}

	if s.Winner == SideNone {
		if !s.Active {
			return fmt.Errorf("duel %s is inactive without a winner", s.ID)
		}
		return nil
	}

	if s.Active {
		return fmt.Errorf("duel %s has winner %s but is still active", s.ID, s.Winner)
	}

	if won := s.Side(s.Winner); won.Raised < s.Target {
		return fmt.Errorf("duel %s winner %s raised %d below target %d", s.ID, s.Winner, won.Raised, s.Target)
	}

	return nil
}

// Challenge is a proposed duel waiting for the opponent to accept.
// Challenges are keyed by ChallengerID + opponent handle, so re-issuing a
// challenge to the same opponent replaces the earlier one.
type Challenge struct {
	ID               string    `json:"id"`                // ChallengeKey(ChallengerID, OpponentHandle)
	ChallengerID     string    `json:"challenger_id"`     // Author identity of the challenge post
	ChallengerHandle string    `json:"challenger_handle"` // Display handle of the challenger
	OpponentHandle   string    `json:"opponent_handle"`   // Handle that must post the accept
	TokenName        string    `json:"token_name"`        // Proposed side A token name
	TokenSymbol      string    `json:"token_symbol"`      // Proposed side A token symbol
	PostID           string    `json:"post_id,omitempty"` // Post the challenge was parsed from
	CreatedAt        time.Time `json:"created_at"`
}

// ChallengeKey returns the composite key for a pending challenge.
// Handles are case-insensitive on social platforms, so the opponent handle is lowered.
func ChallengeKey(challengerID, opponentHandle string) string {
	return challengerID + "_" + strings.ToLower(opponentHandle)
}

// TokenName returns the display name used for a token proposed in a post.
func TokenName(symbol, handle string) string {
	return fmt.Sprintf("%s by %s", symbol, handle)
}

// Expired reports whether the challenge has outlived ttl at time now.
// A zero or negative ttl means challenges never expire.
func (c *Challenge) Expired(now time.Time, ttl time.Duration) bool {
	if ttl <= 0 {
		return false
	}
	return now.Sub(c.CreatedAt) >= ttl
}

// LedgerEvent is a transfer notification delivered by the transaction-indexing webhook.
// Only Signature and Accounts are load-bearing; amounts in the payload are never trusted.
type LedgerEvent struct {
	Type        string   `json:"type"`        // e.g. TRANSFER, TOKEN_MINT, TOKEN_BURN
	Description string   `json:"description"` // Free text from the indexer
	Signature   string   `json:"signature"`   // Transaction signature, used for deduplication
	Timestamp   int64    `json:"timestamp"`   // Unix seconds
	Accounts    []string `json:"accounts"`    // Accounts touched by the transaction
}

// Ledger event types that can move a duel's raised amounts.
const (
	LedgerEventTransfer  = "TRANSFER"
	LedgerEventTokenMint = "TOKEN_MINT"
	LedgerEventTokenBurn = "TOKEN_BURN"
)

// Post is a single mention from the social feed.
type Post struct {
	ID               string    `json:"id"`
	AuthorID         string    `json:"author_id"`
	AuthorHandle     string    `json:"author_handle"`
	Text             string    `json:"text"`
	ReferencedPostID string    `json:"referenced_post_id,omitempty"` // Post this one replies to or quotes
	CreatedAt        time.Time `json:"created_at"`
}

// FormatSOL renders a lamport amount as SOL with up to two decimals.
func FormatSOL(lamports uint64) string {
	whole := lamports / LamportsPerSOL
	frac := (lamports % LamportsPerSOL) / (LamportsPerSOL / 100)
	if frac == 0 {
		return fmt.Sprintf("%d", whole)
	}
	return strings.TrimRight(fmt.Sprintf("%d.%02d", whole, frac), "0")
}
