package main

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/prihlasky/admissions-cli/internal/model"
	"github.com/prihlasky/admissions-cli/internal/normalize"
	"github.com/prihlasky/admissions-cli/internal/store"
)

var normalizeCmd = &cobra.Command{
	Use:   "normalize",
	Short: "Normalize the raw store into the typed dataset",
	RunE: func(cmd *cobra.Command, _ []string) error {
		_, err := runNormalize(cmd.Context())
		return err
	},
}

func runNormalize(_ context.Context) ([]model.NormalizedRecord, error) {
	defs, err := model.LoadMetricDefinitions(cfg.Extract.MetricsFile)
	if err != nil {
		return nil, err
	}

	raw, err := store.LoadRaw(rawPath(), defs)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		zap.L().Warn("normalize: raw store is empty", zap.String("path", rawPath()))
	}

	records, _ := normalize.New(defs).Run(raw)

	if err := store.WriteNormalized(normalizedPath(), records, defs); err != nil {
		return nil, err
	}
	return records, nil
}

func init() {
	rootCmd.AddCommand(normalizeCmd)
}
