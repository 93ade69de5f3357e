package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gwngames/persister/internal/db"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the persister schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		pool, err := db.NewPool(ctx, cfg.DB)
		if err != nil {
			return err
		}
		defer pool.Close()

		if err := db.Migrate(ctx, pool); err != nil {
			return err
		}

		zap.L().Info("schema migration complete", zap.String("database", cfg.DB.Name))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
