package commands

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/MrAlexPushkin/LetsGoDuel/internal/printer"
	"github.com/MrAlexPushkin/LetsGoDuel/internal/watch"
	"github.com/MrAlexPushkin/LetsGoDuel/pkg/duelboard"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

var (
	watchInstanceName string
	watchRedisURL     string
	watchOutputFormat string
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Monitor real-time duel activity",
	Long: `Monitor trades, new duels, challenges and winners as a duelsync
instance publishes them. Requires the instance to run with redis_url set.

Output Formats:
  default - Human-readable output with timestamps and emojis
  json    - Line-delimited JSON for programmatic processing

Examples:
  # Watch the default instance on a local Redis
  duelsync watch

  # Watch a specific instance
  duelsync watch --name prod --redis-url redis://redis:6379/0

  # Export events as JSON
  duelsync watch --output=json > events.jsonl`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVarP(&watchInstanceName, "name", "n", "default", "Instance name to watch")
	watchCmd.Flags().StringVar(&watchRedisURL, "redis-url", "redis://localhost:6379", "Redis URL the instance mirrors to")
	watchCmd.Flags().StringVarP(&watchOutputFormat, "output", "o", "default", "Output format (default or json)")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	var outputFormat watch.OutputFormat
	switch watchOutputFormat {
	case "default":
		outputFormat = watch.OutputFormatDefault
	case "json":
		outputFormat = watch.OutputFormatJSON
	default:
		return printer.Error(
			"invalid output format",
			fmt.Sprintf("Unknown format: %s", watchOutputFormat),
			[]string{"Valid formats: default, json"},
		)
	}

	redisOpts, err := redis.ParseURL(watchRedisURL)
	if err != nil {
		return printer.Error(
			"invalid Redis URL",
			fmt.Sprintf("Could not parse %s: %v", watchRedisURL, err),
			[]string{"Use the form:\n  redis://host:6379/0"},
		)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return streamInstance(ctx, redisOpts, watchInstanceName, outputFormat, cmd)
}

func streamInstance(ctx context.Context, redisOpts *redis.Options, instanceName string, format watch.OutputFormat, cmd *cobra.Command) error {
	board, err := duelboard.NewClient(redisOpts, instanceName)
	if err != nil {
		return fmt.Errorf("failed to create duelboard client: %w", err)
	}
	defer board.Close()

	if err := board.Ping(ctx); err != nil {
		return printer.ErrorWithContext(
			"Redis connection failed",
			fmt.Sprintf("Could not connect to Redis at %s", redisOpts.Addr),
			map[string]string{"Instance": instanceName},
			[]string{"Check that Redis is running and that the instance has redis_url set"},
		)
	}

	sub, err := board.SubscribeMessages(ctx)
	if err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}
	defer sub.Close()

	return watch.StreamActivity(ctx, sub, format, cmd.OutOrStdout())
}
