package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/transparency-atlas/backend/internal/pipeline"
	"github.com/transparency-atlas/backend/internal/storage/models"
	appLogger "github.com/transparency-atlas/backend/pkg/logger"
)

func newImportCmd(load configLoader) *cobra.Command {
	var snapshotsPath, historyPath string

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Load a results file and/or a version history document into the database",
		RunE: func(cmd *cobra.Command, args []string) error {
			if snapshotsPath == "" && historyPath == "" {
				return errors.New("nothing to import: pass --snapshots and/or --history")
			}

			cfg, err := load()
			if err != nil {
				return err
			}
			if err := initLogger(cfg); err != nil {
				return err
			}
			defer appLogger.Sync()

			store, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			out := cmd.OutOrStdout()

			if snapshotsPath != "" {
				snapshots, err := pipeline.ReadResults(snapshotsPath)
				if err != nil {
					return err
				}
				for _, s := range snapshots {
					if _, err := store.SaveSnapshot(s); err != nil {
						return err
					}
				}
				fmt.Fprintf(out, "Imported %d snapshots\n", len(snapshots))
			}

			if historyPath != "" {
				data, err := os.ReadFile(historyPath)
				if err != nil {
					return fmt.Errorf("failed to read history: %w", err)
				}
				var doc map[string][]models.VersionHistoryEntry
				if err := json.Unmarshal(data, &doc); err != nil {
					return fmt.Errorf("failed to parse history: %w", err)
				}
				n, err := store.ImportHistory(doc)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Imported %d history entries for %d models\n", n, len(doc))
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&snapshotsPath, "snapshots", "", "results file written by scrape")
	cmd.Flags().StringVar(&historyPath, "history", "", "version history document keyed by model id")
	return cmd
}
