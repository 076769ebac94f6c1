// Package cli implements the deliverctl operator commands.
package cli

import (
	"fmt"
	"log/slog"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/deliver-app/deliver/internal/app"
	"github.com/deliver-app/deliver/internal/platform/db"
)

// NewRootCommand assembles the deliverctl command tree.
func NewRootCommand() *cobra.Command {
	var envFile string
	root := &cobra.Command{
		Use:           "deliverctl",
		Short:         "Operator tooling for the Deliver back office",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := godotenv.Load(envFile); err != nil && cmd.Flags().Changed("env-file") {
				return fmt.Errorf("load %s: %w", envFile, err)
			}
			return nil
		},
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before reading configuration")

	root.AddCommand(newMigrateCommand(), newSeedCommand(), newJobsCommand())
	return root
}

type runtimeDeps struct {
	cfg    *app.Config
	logger *slog.Logger
}

func loadRuntime() (runtimeDeps, error) {
	cfg, err := app.LoadConfig()
	if err != nil {
		return runtimeDeps{}, fmt.Errorf("load config: %w", err)
	}
	return runtimeDeps{cfg: cfg, logger: app.NewLogger(cfg)}, nil
}

// dbOptions keeps operator commands from holding the full API pool size.
func dbOptions(cfg *app.Config) db.Options {
	return db.Options{MaxConns: max(min(cfg.PGMaxConns, 2), 1)}
}
