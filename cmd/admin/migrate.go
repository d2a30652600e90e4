package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/skaet/ussd_bank/internal/infra"
)

func migrateCmd() *cobra.Command {
	var (
		databaseURL string
		printOnly   bool
	)
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply the embedded Postgres schema",
		Long: `Apply the embedded schema to the configured database. Every statement is
idempotent, so running migrate against an up-to-date database is a no-op.

Examples:
  ussd-admin migrate
  ussd-admin migrate --database-url postgres://localhost/ussd
  ussd-admin migrate --print`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if printOnly {
				fmt.Fprint(cmd.OutOrStdout(), infra.Schema())
				return nil
			}
			if databaseURL == "" {
				return fmt.Errorf("DATABASE_URL or --database-url is required")
			}
			db, err := infra.NewPostgresPool(cmd.Context(), databaseURL)
			if err != nil {
				return fmt.Errorf("connect postgres: %w", err)
			}
			defer db.Close()

			if err := infra.Migrate(cmd.Context(), db); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "schema applied")
			return nil
		},
	}

	cmd.Flags().StringVar(&databaseURL, "database-url", os.Getenv("DATABASE_URL"), "Postgres connection string")
	cmd.Flags().BoolVar(&printOnly, "print", false, "print the schema instead of applying it")

	return cmd
}
