package main

import (
	"github.com/spf13/cobra"

	"racecrew/import-service/internal/config"
	"racecrew/import-service/internal/db"
	"racecrew/import-service/internal/logging"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending catalog migrations and exit",
	RunE:  runMigrate,
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := logging.Component(logging.New(cfg.LogLevel, cfg.LogFormat), "migrate")

	if err := db.Migrate(cmd.Context(), cfg.DatabaseURL); err != nil {
		return err
	}
	log.Info("catalog migrations applied")
	return nil
}
