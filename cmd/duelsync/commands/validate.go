package commands

import (
	"errors"
	"fmt"
	"os"

	"github.com/MrAlexPushkin/LetsGoDuel/internal/config"
	"github.com/MrAlexPushkin/LetsGoDuel/internal/printer"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check a duelsync.yml file",
	Long: `Load duelsync.yml, apply DUELSYNC_* environment overrides and report
whether the result is a usable configuration.

Examples:
  duelsync validate
  duelsync validate --config /etc/duelsync/prod.yml`,
	Args: cobra.NoArgs,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return printer.Error(
				"config file not found",
				fmt.Sprintf("No configuration at %s.", configPath),
				[]string{"Pass the file explicitly:\n  duelsync validate --config <path>"},
			)
		}
		return printer.Error(
			"invalid configuration",
			err.Error(),
			nil,
		)
	}

	printer.Success("%s is valid\n", configPath)
	printer.Info("  instance:   %s\n", cfg.Instance)
	printer.Info("  http_addr:  %s\n", cfg.HTTPAddr)
	printer.Info("  bot:        @%s\n", cfg.BotHandle)
	printer.Info("  creator:    %s\n", cfg.Creator)
	printer.Info("  announce:   %s\n", cfg.Announce)
	if cfg.RedisURL == "" {
		printer.Warning("redis_url not set: signature dedup and announcements stay in this process\n")
	}
	return nil
}
