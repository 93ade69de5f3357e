package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gwngames/persister/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "persister",
	Short: "Persistence tier for the bibliographic scraping pipeline",
	Long:  "Receives newline-delimited JSON from scrapers over TCP, routes each message to its parser and persists authors, publications, venues and citations with fuzzy entity matching.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
