package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/transparency-atlas/backend/internal/api"
	"github.com/transparency-atlas/backend/internal/metrics"
	appLogger "github.com/transparency-atlas/backend/pkg/logger"
)

func newServeCmd(load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve stored evaluations, scores and version history over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			if err := initLogger(cfg); err != nil {
				return err
			}
			defer appLogger.Sync()

			appLogger.Info("Starting Transparency Atlas API Server")

			r, _, err := loadInputs(cfg)
			if err != nil {
				return err
			}

			store, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			metrics.Init()
			app, limiter := api.New(cfg.Server, store, r)
			defer limiter.Stop()

			addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
			appLogger.Info("Server starting", zap.String("address", addr))

			errCh := make(chan error, 1)
			go func() {
				errCh <- app.Listen(addr)
			}()

			quit := make(chan os.Signal, 1)
			signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

			select {
			case err := <-errCh:
				return fmt.Errorf("server failed: %w", err)
			case <-quit:
			}

			appLogger.Info("Server shutting down gracefully...")
			if err := app.Shutdown(); err != nil {
				return fmt.Errorf("failed to shut down: %w", err)
			}
			appLogger.Info("Server stopped")
			return nil
		},
	}
}
