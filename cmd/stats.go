package main

import (
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/prihlasky/admissions-cli/internal/model"
	"github.com/prihlasky/admissions-cli/internal/normalize"
	"github.com/prihlasky/admissions-cli/internal/store"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarize the normalized dataset",
	RunE: func(cmd *cobra.Command, _ []string) error {
		defs, err := model.LoadMetricDefinitions(cfg.Extract.MetricsFile)
		if err != nil {
			return err
		}

		records, err := store.LoadNormalized(normalizedPath(), defs)
		if err != nil {
			return err
		}
		if len(records) == 0 {
			fmt.Fprintln(os.Stderr, "Normalized store is empty; run normalize first.")
			return nil
		}

		stats := normalize.Summarize(records, defs)

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Metric", "Round", "Present", "Min", "Max", "Mean"})
		for _, s := range stats {
			if s.Present == 0 {
				t.AppendRow(table.Row{s.Metric, s.Round, 0, "", "", ""})
				continue
			}
			t.AppendRow(table.Row{
				s.Metric, s.Round, s.Present,
				fmt.Sprintf("%.2f", s.Min),
				fmt.Sprintf("%.2f", s.Max),
				fmt.Sprintf("%.2f", s.Mean),
			})
		}
		t.SetStyle(table.StyleLight)
		t.Render()

		fmt.Printf("\n%d records across %d schools\n", len(records), countSchools(records))
		return nil
	},
}

func countSchools(records []model.NormalizedRecord) int {
	seen := make(map[string]bool)
	for _, r := range records {
		seen[r.SchoolID] = true
	}
	return len(seen)
}

func init() {
	rootCmd.AddCommand(statsCmd)
}
