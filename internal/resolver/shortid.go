// Package resolver expands the short duel IDs shown by 'duelsync duels'.
package resolver

import (
	"context"
	"fmt"
	"strings"

	"github.com/MrAlexPushkin/LetsGoDuel/internal/filter"
	"github.com/MrAlexPushkin/LetsGoDuel/pkg/duel"
)

// MinShortIDLength is the minimum required length for short ID prefixes.
const MinShortIDLength = 6

// Lister lists the duels a server knows about.
type Lister interface {
	ListDuels(ctx context.Context, criteria filter.Criteria) ([]*duel.State, error)
}

// ResolveDuelID resolves a duel ID prefix to a full duel ID.
// An exact match always wins; otherwise exactly one duel must start with
// shortID.
func ResolveDuelID(ctx context.Context, lister Lister, shortID string) (string, error) {
	if len(shortID) < MinShortIDLength {
		return "", fmt.Errorf("short ID must be at least %d characters (got %d)", MinShortIDLength, len(shortID))
	}

	duels, err := lister.ListDuels(ctx, filter.Criteria{})
	if err != nil {
		return "", fmt.Errorf("failed to search for duel: %w", err)
	}

	var matches []string
	for _, d := range duels {
		if d.ID == shortID {
			return d.ID, nil
		}
		if strings.HasPrefix(d.ID, shortID) {
			matches = append(matches, d.ID)
		}
	}

	switch len(matches) {
	case 0:
		return "", &NotFoundError{ShortID: shortID}
	case 1:
		return matches[0], nil
	default:
		return "", &AmbiguousError{ShortID: shortID, Matches: matches}
	}
}

// NotFoundError indicates no duels matched the short ID.
type NotFoundError struct {
	ShortID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no duels found matching '%s'", e.ShortID)
}

// AmbiguousError indicates multiple duels matched the short ID.
type AmbiguousError struct {
	ShortID string
	Matches []string
}

func (e *AmbiguousError) Error() string {
	return fmt.Sprintf("ambiguous short ID '%s' matches %d duels", e.ShortID, len(e.Matches))
}

// FormatMatches lists matching IDs, up to 10, then "...and N more".
func (e *AmbiguousError) FormatMatches() string {
	var b strings.Builder

	displayCount := len(e.Matches)
	if displayCount > 10 {
		displayCount = 10
	}
	for _, id := range e.Matches[:displayCount] {
		fmt.Fprintf(&b, "  %s\n", id)
	}
	if len(e.Matches) > 10 {
		fmt.Fprintf(&b, "  ...and %d more\n", len(e.Matches)-10)
	}

	return b.String()
}
