package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/transparency-atlas/backend/internal/cache/redis"
	"github.com/transparency-atlas/backend/internal/catalog"
	"github.com/transparency-atlas/backend/internal/classifier"
	"github.com/transparency-atlas/backend/internal/collector"
	"github.com/transparency-atlas/backend/internal/evaluation"
	"github.com/transparency-atlas/backend/internal/llm"
	"github.com/transparency-atlas/backend/internal/metrics"
	"github.com/transparency-atlas/backend/internal/pipeline"
	"github.com/transparency-atlas/backend/internal/rubric"
	"github.com/transparency-atlas/backend/internal/runlog"
	"github.com/transparency-atlas/backend/internal/search/perplexity"
	"github.com/transparency-atlas/backend/internal/storage/sqlite"
	"github.com/transparency-atlas/backend/internal/throttle"
	"github.com/transparency-atlas/backend/pkg/config"
	appLogger "github.com/transparency-atlas/backend/pkg/logger"
)

func newScrapeCmd(load configLoader) *cobra.Command {
	var (
		only  []string
		limit int
	)

	cmd := &cobra.Command{
		Use:   "scrape",
		Short: "Collect evidence, classify it and write a results file and a run log",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			// Nothing may touch the network or the filesystem before this.
			if err := cfg.RequireCredentials(); err != nil {
				return err
			}
			if err := initLogger(cfg); err != nil {
				return err
			}
			defer appLogger.Sync()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runScrape(ctx, cfg, only, limit, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringSliceVar(&only, "model", nil, "only evaluate these model ids (repeatable)")
	cmd.Flags().IntVar(&limit, "limit", 0, "evaluate at most this many models")
	return cmd
}

func loadInputs(cfg *config.Config) (*rubric.Rubric, []catalog.Model, error) {
	r := rubric.Default()
	if cfg.Pipeline.RubricPath != "" {
		loaded, err := rubric.Load(cfg.Pipeline.RubricPath)
		if err != nil {
			return nil, nil, err
		}
		r = loaded
	}

	list := catalog.Default()
	if cfg.Pipeline.ModelsPath != "" {
		loaded, err := catalog.Load(cfg.Pipeline.ModelsPath)
		if err != nil {
			return nil, nil, err
		}
		list = loaded
	}
	return r, list, nil
}

func selectModels(list []catalog.Model, only []string, limit int) ([]catalog.Model, error) {
	if len(only) > 0 {
		byID := make(map[string]catalog.Model, len(list))
		for _, m := range list {
			byID[m.ID()] = m
		}
		selected := make([]catalog.Model, 0, len(only))
		for _, id := range only {
			m, ok := byID[id]
			if !ok {
				return nil, fmt.Errorf("unknown model %q", id)
			}
			selected = append(selected, m)
		}
		list = selected
	}
	if limit > 0 && limit < len(list) {
		list = list[:limit]
	}
	return list, nil
}

func runScrape(ctx context.Context, cfg *config.Config, only []string, limit int, out io.Writer) error {
	r, list, err := loadInputs(cfg)
	if err != nil {
		return err
	}
	list, err = selectModels(list, only, limit)
	if err != nil {
		return err
	}

	metrics.Init()
	log := runlog.NewBuffer()

	searcher := perplexity.NewClient(perplexity.Options{
		BaseURL: cfg.Search.BaseURL,
		APIKey:  cfg.Search.APIKey,
		Timeout: time.Duration(cfg.Search.TimeoutSec) * time.Second,
	})
	completer := llm.NewClient(llm.Options{
		APIKey:      cfg.LLM.APIKey,
		BaseURL:     cfg.LLM.BaseURL,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
		Timeout:     time.Duration(cfg.LLM.TimeoutSec) * time.Second,
	})

	collOpts := collector.Options{
		MaxResults:       cfg.Search.MaxResults,
		MaxTokensPerPage: cfg.Search.MaxTokensPerPage,
		Recorder:         log,
	}
	if cfg.Redis.Enabled {
		cache, err := redis.NewClient(ctx, cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.TTL())
		if err != nil {
			appLogger.Warn("Search cache unavailable, continuing without it", zap.Error(err))
		} else {
			defer cache.Close()
			collOpts.Cache = cache
		}
	}

	runOpts := pipeline.Options{
		Scheduler:                throttle.New(cfg.Pipeline.InterSectionDelay(), cfg.Pipeline.InterModelDelay()),
		DegradeOnCollectionError: cfg.Pipeline.DegradeOnCollectionError,
	}
	if cfg.Pipeline.PersistSnapshots {
		store, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer store.Close()
		runOpts.Sink = store
	}

	runner := pipeline.NewRunner(
		r,
		collector.New(searcher, collOpts),
		classifier.New(completer, classifier.Options{
			Recorder:    log,
			Temperature: &cfg.LLM.Temperature,
			Model:       completer.Model(),
		}),
		runOpts,
	)

	snapshots, err := runner.Run(ctx, list)
	if err != nil {
		return err
	}

	now := time.Now()
	resultsPath, err := pipeline.WriteResults(cfg.Pipeline.ResultsDir, snapshots, now)
	if err != nil {
		return err
	}
	logPath := filepath.Join(cfg.Pipeline.LogsDir, pipeline.LogFileName(now))
	if err := log.Flush(logPath); err != nil {
		return err
	}

	appLogger.Info("Scrape finished",
		zap.String("results", resultsPath),
		zap.String("log", logPath),
		zap.Int("api_calls", log.Len()),
	)
	fmt.Fprintf(out, "Evaluated %d models\nResults: %s\nRun log: %s\n", len(snapshots), resultsPath, logPath)
	fmt.Fprint(out, evaluation.GenerateReport(evaluation.Summarize(r, snapshots)))
	return nil
}

func openStore(cfg *config.Config) (*sqlite.Client, error) {
	if dir := filepath.Dir(cfg.SQLite.Path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	store, err := sqlite.NewClient(cfg.SQLite.Path)
	if err != nil {
		return nil, err
	}
	if err := store.InitSchema(); err != nil {
		store.Close()
		return nil, err
	}
	return store, nil
}
