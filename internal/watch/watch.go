// Package watch renders the live duel event stream mirrored to Redis.
package watch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/MrAlexPushkin/LetsGoDuel/pkg/duel"
)

// OutputFormat specifies how streamed events are written.
type OutputFormat string

const (
	// OutputFormatDefault is human-readable output with timestamps and emojis
	OutputFormatDefault OutputFormat = "default"

	// OutputFormatJSON is one JSON object per line
	OutputFormatJSON OutputFormat = "json"
)

// Source is a live stream of duel messages, e.g. a duelboard.Subscription.
type Source interface {
	Events() <-chan *duel.Message
	Errors() <-chan error
}

type formatter interface {
	FormatMessage(msg *duel.Message) error
}

// StreamActivity writes every message from src until ctx is cancelled or
// the stream ends.
func StreamActivity(ctx context.Context, src Source, format OutputFormat, w io.Writer) error {
	var f formatter
	switch format {
	case OutputFormatJSON:
		f = &jsonFormatter{encoder: json.NewEncoder(w)}
	case OutputFormatDefault, "":
		f = &defaultFormatter{writer: w}
	default:
		return fmt.Errorf("unknown output format: %s", format)
	}

	events := src.Events()
	errs := src.Errors()

	for {
		select {
		case <-ctx.Done():
			return nil

		case msg, ok := <-events:
			if !ok {
				return nil
			}
			if err := f.FormatMessage(msg); err != nil {
				return fmt.Errorf("failed to write event: %w", err)
			}

		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			// Malformed payloads are reported inline; the stream keeps going.
			if _, werr := fmt.Fprintf(w, "⚠️  %v\n", err); werr != nil {
				return werr
			}
		}
	}
}

type jsonFormatter struct {
	encoder *json.Encoder
}

func (f *jsonFormatter) FormatMessage(msg *duel.Message) error {
	return f.encoder.Encode(msg)
}

type defaultFormatter struct {
	writer io.Writer
}

func (f *defaultFormatter) FormatMessage(msg *duel.Message) error {
	line := describe(msg)
	if line == "" {
		return nil
	}

	ts := time.Now()
	if msg.AtMs > 0 {
		ts = time.UnixMilli(msg.AtMs)
	}

	_, err := fmt.Fprintf(f.writer, "[%s] %s\n", ts.Format("15:04:05"), line)
	return err
}

func describe(msg *duel.Message) string {
	switch msg.Type {
	case duel.MessageTradeUpdate:
		if msg.Duel == nil {
			return ""
		}
		return fmt.Sprintf("💱 Trade: duel=%s %s %s SOL | %s %s SOL%s",
			msg.DuelID,
			msg.Duel.A.Symbol, duel.FormatSOL(msg.Duel.A.Raised),
			msg.Duel.B.Symbol, duel.FormatSOL(msg.Duel.B.Raised),
			tradeSuffix(msg.Trade))

	case duel.MessageDuelWon:
		symbol := ""
		if msg.Duel != nil {
			if side := msg.Duel.Side(msg.Winner); side != nil {
				symbol = " " + side.Symbol
			}
		}
		return fmt.Sprintf("🏆 Duel won: duel=%s winner=%s%s", msg.DuelID, msg.Winner, symbol)

	case duel.MessageDuelCreated:
		if msg.Duel == nil {
			return fmt.Sprintf("🔥 Duel created: duel=%s", msg.DuelID)
		}
		return fmt.Sprintf("🔥 Duel created: duel=%s %s vs %s", msg.DuelID, msg.Duel.A.Symbol, msg.Duel.B.Symbol)

	case duel.MessagePendingDuel:
		if msg.Challenge == nil {
			return ""
		}
		return fmt.Sprintf("⚔️  Challenge: @%s → @%s with $%s",
			msg.Challenge.ChallengerHandle, msg.Challenge.OpponentHandle, msg.Challenge.TokenSymbol)

	case duel.MessageChallengeExpired:
		if msg.Challenge == nil {
			return ""
		}
		return fmt.Sprintf("⌛ Challenge expired: %s", msg.Challenge.ID)

	default:
		// Snapshots (active_duels, duel_state) are per-observer and not interesting here.
		return ""
	}
}

func tradeSuffix(trade *duel.TradeRef) string {
	if trade == nil || trade.Signature == "" {
		return ""
	}
	sig := trade.Signature
	if len(sig) > 12 {
		sig = sig[:12] + "…"
	}
	return " (" + sig + ")"
}
