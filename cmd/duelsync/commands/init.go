package commands

import (
	"fmt"

	"github.com/MrAlexPushkin/LetsGoDuel/internal/printer"
	"github.com/MrAlexPushkin/LetsGoDuel/internal/scaffold"
	"github.com/spf13/cobra"
)

var forceInit bool

var initCmd = &cobra.Command{
	Use:   "init [DIR]",
	Short: "Write a starter duelsync.yml",
	Long: `Write a commented duelsync.yml with every default spelled out.

The file goes into DIR, or the current directory when omitted.
Use --force to overwrite an existing duelsync.yml.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&forceInit, "force", false, "Overwrite an existing duelsync.yml")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	dir := "."
	if len(args) == 1 {
		dir = args[0]
	}

	if !forceInit {
		if err := scaffold.CheckExisting(dir); err != nil {
			return printer.Error(
				"already initialized",
				err.Error(),
				nil,
			)
		}
	}

	path, err := scaffold.Initialize(dir, forceInit)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	printer.Success("Created %s\n", path)
	printer.Info("\nNext steps:\n")
	printer.Info("  1. Point snapshot_url at your ledger snapshot service\n")
	printer.Info("  2. Set redis_url to share dedup across instances\n")
	printer.Info("  3. Run 'duelsync serve --config %s'\n", path)
	return nil
}
