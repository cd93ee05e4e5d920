package commands

import (
	"bytes"
	"testing"

	"github.com/MrAlexPushkin/LetsGoDuel/internal/config"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// execute runs the real root command with args and returns what it wrote.
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()

	prevNoColor := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = prevNoColor })

	// Flag variables outlive a single Execute, so start every run from defaults.
	configPath = config.DefaultPath
	duelsServerURL = "http://localhost:8080"
	duelsSymbol, duelsSince, duelsUntil = "", "", ""
	duelsActiveOnly = false
	duelsOutputFormat = "default"
	watchInstanceName = "default"
	watchRedisURL = "redis://localhost:6379"
	watchOutputFormat = "default"
	forceInit = false

	stdout, stderr := new(bytes.Buffer), new(bytes.Buffer)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)
	rootCmd.SetArgs(args)
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})

	err := rootCmd.Execute()
	return stdout.String(), stderr.String(), err
}

// TestRootCommand_ShowsHelpWhenNoSubcommand tests that the root command
// shows help instead of silently succeeding when invoked without a subcommand
func TestRootCommand_ShowsHelpWhenNoSubcommand(t *testing.T) {
	stdout, _, err := execute(t)

	assert.NoError(t, err)
	assert.Contains(t, stdout, "Usage:", "Help should be displayed")
	assert.Contains(t, stdout, "duelsync", "Help should show command name")
	for _, sub := range []string{"serve", "watch", "duels", "validate", "init"} {
		assert.Contains(t, stdout, sub)
	}
}

// TestRootCommand_RejectsUnknownFlags tests that unknown flags
// passed to the root command cause an error instead of being silently ignored
func TestRootCommand_RejectsUnknownFlags(t *testing.T) {
	testRoot := &cobra.Command{
		Use:   "duelsync",
		Short: "Test root command",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
		FParseErrWhitelist: cobra.FParseErrWhitelist{},
	}
	testRoot.SetArgs([]string{"--unknown-flag", "value"})

	buf := new(bytes.Buffer)
	testRoot.SetOut(buf)
	testRoot.SetErr(buf)

	err := testRoot.Execute()
	require.Error(t, err, "Unknown flags should cause an error")
	assert.Contains(t, err.Error(), "unknown flag")
}

func TestSetVersionInfo(t *testing.T) {
	SetVersionInfo("1.2.3", "abc123", "2026-01-01")
	t.Cleanup(func() { SetVersionInfo("dev", "none", "unknown") })

	assert.Equal(t, "1.2.3 (commit: abc123, built: 2026-01-01)", rootCmd.Version)
	assert.Equal(t, "1.2.3", version)
	assert.Equal(t, "abc123", commit)
	assert.Equal(t, "2026-01-01", date)
}
