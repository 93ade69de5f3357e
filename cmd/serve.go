package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gwngames/persister/internal/db"
	"github.com/gwngames/persister/internal/deadletter"
	"github.com/gwngames/persister/internal/dispatch"
	"github.com/gwngames/persister/internal/parser"
	"github.com/gwngames/persister/internal/server"
	"github.com/gwngames/persister/internal/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the scraper intake server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		zap.L().Info("connecting to database",
			zap.String("host", cfg.DB.URL),
			zap.Int("port", cfg.DB.Port),
			zap.String("database", cfg.DB.Name))

		pool, err := db.NewPool(ctx, cfg.DB)
		if err != nil {
			return err
		}
		defer pool.Close()

		st := store.New(cfg.Similarity)
		registry := parser.NewRegistry(pool, st)
		sink := deadletter.NewSink(cfg.DeadLetterFile)
		dispatcher := dispatch.New(registry, sink, cfg.Dispatch)

		srv := server.New(cfg.Server, dispatcher.Dispatch)

		zap.L().Info("starting intake server", zap.String("addr", cfg.Server.Addr()))
		return srv.Run(ctx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
