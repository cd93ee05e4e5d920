package commands

import (
	"fmt"

	"github.com/MrAlexPushkin/LetsGoDuel/internal/config"
	"github.com/MrAlexPushkin/LetsGoDuel/internal/printer"
	"github.com/spf13/cobra"
)

var (
	version string
	commit  string
	date    string

	configPath string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "duelsync",
	Short: "duelsync - live state sync for token duels",
	Long: `duelsync keeps an authoritative view of every running token duel.

It reconciles ledger webhooks into duel snapshots, pushes updates to
websocket observers, turns social-post challenges into new duels, and
announces each winner exactly once.`,
	Version: version,
	// Prevent silent success when unknown flags are passed to root command
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		printer.SetOutput(cmd.OutOrStdout(), cmd.ErrOrStderr())
	},
	FParseErrWhitelist: cobra.FParseErrWhitelist{},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	// We print formatted colored errors directly in the printer package
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true
	return rootCmd.Execute()
}

// SetVersionInfo sets the version information for the CLI
func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", v, c, d)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultPath, "Path to duelsync.yml")
}
