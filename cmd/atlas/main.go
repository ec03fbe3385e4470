package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/transparency-atlas/backend/pkg/config"
	appLogger "github.com/transparency-atlas/backend/pkg/logger"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:           "atlas",
		Short:         "Evaluate how completely AI models are documented",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default: ./config.yaml, ./config/config.yaml, /etc/atlas/config.yaml)")

	load := func() (*config.Config, error) {
		if configPath != "" {
			return config.LoadFile(configPath)
		}
		return config.Load()
	}

	rootCmd.AddCommand(
		newScrapeCmd(load),
		newServeCmd(load),
		newScoreCmd(load),
		newImportCmd(load),
	)
	return rootCmd
}

type configLoader func() (*config.Config, error)

func initLogger(cfg *config.Config) error {
	if err := appLogger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.OutputPath); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	return nil
}
