// Package listing fetches duels from a running duelsync server and formats
// them for the terminal.
package listing

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/MrAlexPushkin/LetsGoDuel/pkg/duel"
)

// OutputFormat specifies how to format the duel list output.
type OutputFormat string

const (
	// OutputFormatDefault uses a table format
	OutputFormatDefault OutputFormat = "default"

	// OutputFormatJSONL outputs complete duels as line-delimited JSON
	OutputFormatJSONL OutputFormat = "jsonl"
)

// FormatTable writes duels as a formatted table to the provided writer.
// The table includes columns: ID, STATUS, SIDE A, RAISED, SIDE B, RAISED and AGE.
// Returns the number of duels formatted.
func FormatTable(w io.Writer, duels []*duel.State, source string) int {
	if len(duels) == 0 {
		fmt.Fprintf(w, "No duels found on %s\n", source)
		return 0
	}

	fmt.Fprintf(w, "Duels on %s:\n\n", source)

	fmt.Fprintf(w, "%-10s %-8s %-10s %10s %-10s %10s %s\n",
		"ID", "STATUS", "SIDE A", "RAISED", "SIDE B", "RAISED", "AGE")
	fmt.Fprintf(w, "%-10s %-8s %-10s %10s %-10s %10s %s\n",
		"----------", "--------", "----------", "----------", "----------", "----------", "--------")

	for _, d := range duels {
		fmt.Fprintf(w, "%-10s %-8s %-10s %10s %-10s %10s %s\n",
			formatID(d.ID),
			formatStatus(d),
			formatSymbol(d.A.Symbol),
			duel.FormatSOL(d.A.Raised),
			formatSymbol(d.B.Symbol),
			duel.FormatSOL(d.B.Raised),
			formatTimestamp(d.CreatedAt),
		)
	}

	countMsg := "duel"
	if len(duels) != 1 {
		countMsg = "duels"
	}
	fmt.Fprintf(w, "\n%d %s found\n", len(duels), countMsg)

	return len(duels)
}

// FormatJSONL writes duels as line-delimited JSON (JSONL) to the provided writer.
func FormatJSONL(w io.Writer, duels []*duel.State) error {
	for _, d := range duels {
		data, err := json.Marshal(d)
		if err != nil {
			return fmt.Errorf("failed to marshal duel to JSON: %w", err)
		}

		if _, err := fmt.Fprintf(w, "%s\n", data); err != nil {
			return fmt.Errorf("failed to write JSONL output: %w", err)
		}
	}

	return nil
}

// FormatSingleJSON writes a single duel as pretty-printed JSON.
func FormatSingleJSON(w io.Writer, d *duel.State) error {
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal duel to JSON: %w", err)
	}

	if _, err := fmt.Fprintf(w, "%s\n", data); err != nil {
		return fmt.Errorf("failed to write JSON output: %w", err)
	}
	return nil
}

// formatID truncates duel IDs to the first 8 characters for compact display.
func formatID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func formatStatus(d *duel.State) string {
	switch {
	case d.Winner != duel.SideNone:
		return "WON " + string(d.Winner)
	case d.Active:
		return "LIVE"
	default:
		return "ENDED"
	}
}

func formatSymbol(symbol string) string {
	if symbol == "" {
		return "-"
	}
	return "$" + symbol
}

// formatTimestamp formats Unix milliseconds as relative time like "2m ago".
func formatTimestamp(timestampMs int64) string {
	if timestampMs == 0 {
		return "-"
	}

	diff := time.Since(time.UnixMilli(timestampMs))

	if diff < time.Minute {
		return fmt.Sprintf("%ds ago", int(diff.Seconds()))
	} else if diff < time.Hour {
		return fmt.Sprintf("%dm ago", int(diff.Minutes()))
	} else if diff < 24*time.Hour {
		return fmt.Sprintf("%dh ago", int(diff.Hours()))
	}
	return fmt.Sprintf("%dd ago", int(diff.Hours()/24))
}
