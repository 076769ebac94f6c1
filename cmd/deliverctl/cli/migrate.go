package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/deliver-app/deliver/internal/migrations"
	"github.com/deliver-app/deliver/internal/platform/db"
)

func newMigrateCommand() *cobra.Command {
	migrate := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}

	withManager := func(run func(cmd *cobra.Command, m *migrations.Manager) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			rt, err := loadRuntime()
			if err != nil {
				return err
			}
			pool, err := db.New(cmd.Context(), rt.cfg.PGDSN, dbOptions(rt.cfg))
			if err != nil {
				return err
			}
			defer pool.Close()
			return run(cmd, migrations.NewManager(pool, rt.logger))
		}
	}

	migrate.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply pending migrations",
			RunE: withManager(func(cmd *cobra.Command, m *migrations.Manager) error {
				applied, err := m.Up(cmd.Context())
				if err != nil {
					return err
				}
				if len(applied) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "schema up to date")
				}
				for _, name := range applied {
					fmt.Fprintf(cmd.OutOrStdout(), "applied %s\n", name)
				}
				return nil
			}),
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back the latest migration",
			RunE: withManager(func(cmd *cobra.Command, m *migrations.Manager) error {
				name, err := m.Down(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "rolled back %s\n", name)
				return nil
			}),
		},
		&cobra.Command{
			Use:   "status",
			Short: "List applied migrations",
			RunE: withManager(func(cmd *cobra.Command, m *migrations.Manager) error {
				applied, err := m.Status(cmd.Context())
				if err != nil {
					return err
				}
				for _, name := range applied {
					fmt.Fprintln(cmd.OutOrStdout(), name)
				}
				return nil
			}),
		},
	)
	return migrate
}
