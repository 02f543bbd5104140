package cmd

import (
	"github.com/spf13/cobra"

	"github.com/99minutos/access-control/internal/infrastructure/db/postgres"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the users, roles and tenant_roles schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := postgres.Connect(cmd.Context(), postgres.Config{DSN: cfg.Postgres.DSN, Timeout: cfg.Postgres.Timeout})
		if err != nil {
			return err
		}
		defer db.Close()

		if err := postgres.Migrate(cmd.Context(), db); err != nil {
			return err
		}
		log.Info().Msg("schema is up to date")
		return nil
	},
}
