package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/transparency-atlas/backend/internal/evaluation"
	"github.com/transparency-atlas/backend/internal/pipeline"
	"github.com/transparency-atlas/backend/internal/rubric"
	"github.com/transparency-atlas/backend/internal/scoring"
)

func newScoreCmd(load configLoader) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "score <results.json>",
		Short: "Print section and overall scores for a results file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			r, _, err := loadInputs(cfg)
			if err != nil {
				return err
			}

			snapshots, err := pipeline.ReadResults(args[0])
			if err != nil {
				return err
			}

			reports := make([]scoring.Report, len(snapshots))
			for i, s := range snapshots {
				reports[i] = scoring.BuildReport(r, s)
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(reports)
			}
			if err := printReports(cmd.OutOrStdout(), r, reports); err != nil {
				return err
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), evaluation.GenerateReport(evaluation.Summarize(r, snapshots)))
			return err
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print reports as JSON")
	return cmd
}

func printReports(out io.Writer, r *rubric.Rubric, reports []scoring.Report) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)

	fmt.Fprint(w, "MODEL\tPROVIDER")
	for _, s := range r.Sections {
		fmt.Fprintf(w, "\t%s", s.ID)
	}
	fmt.Fprint(w, "\tOVERALL\n")

	for _, report := range reports {
		fmt.Fprintf(w, "%s\t%s", report.Model, report.Provider)
		for _, s := range report.Sections {
			fmt.Fprintf(w, "\t%.1f%%", s.Percentage)
		}
		fmt.Fprintf(w, "\t%.1f%% (%s)\n", report.OverallScore, report.Band)
	}

	return w.Flush()
}
