package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/MrAlexPushkin/LetsGoDuel/internal/filter"
	"github.com/MrAlexPushkin/LetsGoDuel/internal/listing"
	"github.com/MrAlexPushkin/LetsGoDuel/internal/printer"
	"github.com/MrAlexPushkin/LetsGoDuel/internal/resolver"
	"github.com/MrAlexPushkin/LetsGoDuel/internal/timespec"
	"github.com/spf13/cobra"
)

const duelsRequestTimeout = 10 * time.Second

var (
	duelsServerURL    string
	duelsSymbol       string
	duelsSince        string
	duelsUntil        string
	duelsActiveOnly   bool
	duelsOutputFormat string
)

var duelsCmd = &cobra.Command{
	Use:   "duels [DUEL_ID]",
	Short: "List duels or show one duel",
	Long: `List the duels a running duelsync server knows about, newest first.
With a duel ID, print that duel as JSON. A unique prefix of at least six
characters, like the IDs in the table, is enough.

Filters:
  --symbol  glob on either side's symbol, e.g. 'PEP*'
  --since   duration ago (1h30m) or RFC3339 timestamp
  --until   duration ago (1h30m) or RFC3339 timestamp
  --active  only duels still running

Examples:
  duelsync duels
  duelsync duels --active --symbol 'DOG*'
  duelsync duels --since 2h -o jsonl
  duelsync duels 7xKXtg2CW87d97TXJSDpbD5jBkheTqA83TZRuJosgAsU`,
	Args: cobra.MaximumNArgs(1),
	RunE: runDuels,
}

func init() {
	duelsCmd.Flags().StringVar(&duelsServerURL, "server", "http://localhost:8080", "duelsync server URL")
	duelsCmd.Flags().StringVar(&duelsSymbol, "symbol", "", "Filter by token symbol (glob)")
	duelsCmd.Flags().StringVar(&duelsSince, "since", "", "Only duels created after this time")
	duelsCmd.Flags().StringVar(&duelsUntil, "until", "", "Only duels created before this time")
	duelsCmd.Flags().BoolVar(&duelsActiveOnly, "active", false, "Only running duels")
	duelsCmd.Flags().StringVarP(&duelsOutputFormat, "output", "o", "default", "Output format (default or jsonl)")
	rootCmd.AddCommand(duelsCmd)
}

func runDuels(cmd *cobra.Command, args []string) error {
	client, err := listing.NewClient(duelsServerURL, duelsRequestTimeout)
	if err != nil {
		return printer.Error(
			"invalid server URL",
			err.Error(),
			[]string{"Use the form:\n  --server http://host:8080"},
		)
	}

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	if len(args) == 1 {
		return showDuel(ctx, client, args[0], out)
	}

	var outputFormat listing.OutputFormat
	switch duelsOutputFormat {
	case "default":
		outputFormat = listing.OutputFormatDefault
	case "jsonl":
		outputFormat = listing.OutputFormatJSONL
	default:
		return printer.Error(
			"invalid output format",
			fmt.Sprintf("Unknown format: %s", duelsOutputFormat),
			[]string{"Valid formats: default, jsonl"},
		)
	}

	sinceMs, untilMs, err := timespec.ParseRange(duelsSince, duelsUntil)
	if err != nil {
		return printer.Error(
			"invalid time filter",
			err.Error(),
			[]string{"Use a duration like 1h30m or an RFC3339 timestamp"},
		)
	}

	criteria := filter.Criteria{
		SinceMs:    sinceMs,
		UntilMs:    untilMs,
		SymbolGlob: duelsSymbol,
		ActiveOnly: duelsActiveOnly,
	}

	duels, err := client.ListDuels(ctx, criteria)
	if err != nil {
		return unreachable(err)
	}

	if outputFormat == listing.OutputFormatJSONL {
		return listing.FormatJSONL(out, duels)
	}
	listing.FormatTable(out, duels, duelsServerURL)
	return nil
}

// showDuel prints one duel. IDs that are not known verbatim are treated as
// prefixes, as shown in the table view.
func showDuel(ctx context.Context, client *listing.Client, id string, out io.Writer) error {
	d, err := client.GetDuel(ctx, id)
	if errors.Is(err, listing.ErrNotFound) {
		fullID, rerr := resolver.ResolveDuelID(ctx, client, id)
		var ambiguous *resolver.AmbiguousError
		var notFound *resolver.NotFoundError
		switch {
		case errors.As(rerr, &ambiguous):
			return printer.Error(
				"ambiguous duel ID",
				fmt.Sprintf("'%s' matches %d duels:\n%s", id, len(ambiguous.Matches), ambiguous.FormatMatches()),
				[]string{"Use a longer prefix to uniquely identify the duel."},
			)
		case errors.As(rerr, &notFound) || len(id) < resolver.MinShortIDLength:
			return printer.Error(
				"duel not found",
				fmt.Sprintf("%s does not know duel %s.", duelsServerURL, id),
				[]string{"List known duels:\n  duelsync duels"},
			)
		case rerr != nil:
			return unreachable(rerr)
		}
		d, err = client.GetDuel(ctx, fullID)
	}
	if err != nil {
		return unreachable(err)
	}
	return listing.FormatSingleJSON(out, d)
}

func unreachable(err error) error {
	return printer.ErrorWithContext(
		"request failed",
		err.Error(),
		map[string]string{"Server": duelsServerURL},
		[]string{"Start a server first:\n  duelsync serve"},
	)
}
