package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"whatsrelay/internal/database"
	"whatsrelay/internal/migrations"
)

func newMigrateCmd(opts *cliOptions) *cobra.Command {
	var statusOnly bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			logger := newLogger(cfg, opts.verbose)
			out := cmd.OutOrStdout()

			store, err := openStore(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer store.Close()

			if statusOnly {
				pending, err := migrations.Pending(cmd.Context(), store, store.Driver())
				if err != nil {
					return fmt.Errorf("failed to read migration status: %w", err)
				}
				if len(pending) == 0 {
					fmt.Fprintln(out, "Database schema is up to date")
					return nil
				}
				for _, m := range pending {
					fmt.Fprintf(out, "Pending: %03d %s\n", m.Version, m.Name)
				}
				return nil
			}

			applied, err := database.Migrate(cmd.Context(), store)
			if err != nil {
				return fmt.Errorf("failed to apply migrations: %w", err)
			}
			if len(applied) == 0 {
				fmt.Fprintln(out, "No pending migrations")
				return nil
			}
			for _, v := range applied {
				fmt.Fprintf(out, "Applied migration %03d\n", v)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&statusOnly, "status", false, "List pending migrations without applying them")
	return cmd
}
