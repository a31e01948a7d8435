// Command evctl is the operator CLI: schema migrations, reference data seeds,
// the subscription expiry sweep and admin account creation.
package main

import (
	"database/sql"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/iliyamo/ev-charging-backend/internal/config"
	"github.com/iliyamo/ev-charging-backend/internal/database"
	"github.com/iliyamo/ev-charging-backend/internal/logger"
)

var (
	cfg config.Config
	log *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:           "evctl",
	Short:         "Operate the EV charging backend",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg = config.LoadDatabase()
		l, err := logger.Init(logger.LogConfig{Level: cfg.LogLevel, Environment: cfg.Env, ServiceName: "evctl"})
		if err != nil {
			return err
		}
		log = l
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd, seedCmd, subscriptionsCmd, usersCmd)
}

func openDB() (*sql.DB, error) {
	return database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
