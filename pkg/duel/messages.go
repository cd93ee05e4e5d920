package duel

// MessageType names a notification pushed to observers.
type MessageType string

const (
	// MessageActiveDuels carries the full duel list, sent once on connect
	MessageActiveDuels MessageType = "active_duels"

	// MessageDuelState replays the current snapshot of one duel on subscribe
	MessageDuelState MessageType = "duel_state"

	// MessageTradeUpdate is a routine update after an accepted reconciliation
	MessageTradeUpdate MessageType = "trade_update"

	// MessageDuelWon is the completion notification, sent once per duel
	MessageDuelWon MessageType = "duel_won"

	// MessageDuelCreated announces a newly materialized duel to every observer
	MessageDuelCreated MessageType = "duel_created"

	// MessagePendingDuel announces a new proposed challenge to every observer
	MessagePendingDuel MessageType = "pending_duel"

	// MessageChallengeExpired tells observers a proposed challenge lapsed
	MessageChallengeExpired MessageType = "challenge_expired"
)

// Message is the envelope pushed to observers and mirrored to Redis.
// Only the fields relevant to Type are populated.
type Message struct {
	Type      MessageType      `json:"type"`
	DuelID    string           `json:"duel_id,omitempty"`
	Duel      *State           `json:"duel,omitempty"`
	Duels     []*State         `json:"duels,omitempty"`
	Winner    Side             `json:"winner,omitempty"`
	Trade     *TradeRef        `json:"trade,omitempty"`
	Challenge *ChallengeNotice `json:"challenge,omitempty"`
	AtMs      int64            `json:"at_ms"`
}

// TradeRef identifies the ledger event that triggered a trade_update.
type TradeRef struct {
	Type      string `json:"type"`
	Signature string `json:"signature"`
	Timestamp int64  `json:"timestamp"`
}

// ChallengeNotice is the observer-facing view of a pending challenge.
type ChallengeNotice struct {
	ID               string `json:"id"`
	ChallengerHandle string `json:"challenger_handle"`
	OpponentHandle   string `json:"opponent_handle"`
	TokenSymbol      string `json:"token_symbol"`
}

// Notice returns the observer-facing view of the challenge.
func (c *Challenge) Notice() *ChallengeNotice {
	return &ChallengeNotice{
		ID:               c.ID,
		ChallengerHandle: c.ChallengerHandle,
		OpponentHandle:   c.OpponentHandle,
		TokenSymbol:      c.TokenSymbol,
	}
}
