package cmd

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/99minutos/access-control/internal/infrastructure/config"
	"github.com/99minutos/access-control/pkg/logger"
)

var (
	cfg *config.Config
	log zerolog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "authz",
	Short: "Multi-tenant authentication and role-based access control",
	Long: `authz issues and verifies access/refresh tokens, resolves global and
tenant-scoped roles, and keeps a Redis role cache in step with the database.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cmd.Context())
		if err != nil {
			return err
		}
		if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
			cfg.LogLevel = lvl
		}
		log = logger.Init(logger.Options{Level: cfg.LogLevel, Env: cfg.Env, Service: "authz"})
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("log-level", "", "Override log level (env: LOG_LEVEL)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(workerCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(hashPasswordCmd)
	rootCmd.AddCommand(failedJobsCmd)
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
