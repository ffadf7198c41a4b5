package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"ascend/internal/gateway/repository/schema"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the Postgres tables",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, log, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is not set")
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
		defer cancel()

		db, err := schema.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := schema.Migrate(ctx, db); err != nil {
			return err
		}
		for _, m := range schema.All() {
			log.Info("migration applied", map[string]any{"name": m.Name})
		}
		return nil
	},
}
