// Package filter selects duels for listings.
package filter

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/MrAlexPushkin/LetsGoDuel/internal/timespec"
	"github.com/MrAlexPushkin/LetsGoDuel/pkg/duel"
)

// Criteria defines filtering criteria for duels.
// All filters are ANDed together - a duel must match ALL criteria to pass.
type Criteria struct {
	SinceMs    int64  // Unix milliseconds, 0 = no filter
	UntilMs    int64  // Unix milliseconds, 0 = no filter
	SymbolGlob string // Glob matched against either side's symbol, empty = no filter
	ActiveOnly bool
}

// Matches returns true if the duel matches all filter criteria.
// Empty/zero criteria values are treated as "match all" for that criterion.
func (c *Criteria) Matches(d *duel.State) bool {
	if c.SinceMs > 0 && d.CreatedAt < c.SinceMs {
		return false
	}
	if c.UntilMs > 0 && d.CreatedAt > c.UntilMs {
		return false
	}

	if c.ActiveOnly && !d.Active {
		return false
	}

	if c.SymbolGlob != "" {
		pattern := strings.ToUpper(c.SymbolGlob)
		if !symbolMatches(pattern, d.A.Symbol) && !symbolMatches(pattern, d.B.Symbol) {
			return false
		}
	}

	return true
}

func symbolMatches(pattern, symbol string) bool {
	matched, err := filepath.Match(pattern, strings.ToUpper(symbol))
	return err == nil && matched
}

// Apply returns the duels that match, preserving order.
func (c *Criteria) Apply(duels []*duel.State) []*duel.State {
	out := make([]*duel.State, 0, len(duels))
	for _, d := range duels {
		if c.Matches(d) {
			out = append(out, d)
		}
	}
	return out
}

// HasFilters returns true if any filters are active.
func (c *Criteria) HasFilters() bool {
	return c.SinceMs > 0 || c.UntilMs > 0 || c.SymbolGlob != "" || c.ActiveOnly
}

// Query encodes the criteria as /api/duels query parameters.
// Times are sent as RFC3339 so the server does not re-resolve relative specs.
func (c *Criteria) Query() url.Values {
	q := url.Values{}
	if c.SymbolGlob != "" {
		q.Set("symbol", c.SymbolGlob)
	}
	if c.ActiveOnly {
		q.Set("active", "true")
	}
	if c.SinceMs > 0 {
		q.Set("since", timespec.Format(c.SinceMs))
	}
	if c.UntilMs > 0 {
		q.Set("until", timespec.Format(c.UntilMs))
	}
	return q
}

// FromQuery parses symbol, active, since and until query parameters.
func FromQuery(q url.Values) (Criteria, error) {
	var c Criteria

	c.SymbolGlob = q.Get("symbol")
	if c.SymbolGlob != "" {
		if _, err := filepath.Match(c.SymbolGlob, ""); err != nil {
			return Criteria{}, fmt.Errorf("invalid symbol pattern %q: %w", c.SymbolGlob, err)
		}
	}

	if raw := q.Get("active"); raw != "" {
		active, err := strconv.ParseBool(raw)
		if err != nil {
			return Criteria{}, fmt.Errorf("invalid active flag %q", raw)
		}
		c.ActiveOnly = active
	}

	since, until, err := timespec.ParseRange(q.Get("since"), q.Get("until"))
	if err != nil {
		return Criteria{}, err
	}
	c.SinceMs, c.UntilMs = since, until

	return c, nil
}
