package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var pipelineCmd = &cobra.Command{
	Use:   "pipeline",
	Short: "Run extract, normalize, and enrich in sequence",
	Long:  "Runs the three stages back to back. Each stage persists its output before the next starts, so a failed stage can be rerun on its own.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		sum, err := runExtract(ctx)
		if err != nil {
			return err
		}
		zap.L().Info("pipeline: extraction done",
			zap.Int("queried", sum.Queried),
			zap.Int("skipped", sum.Skipped),
			zap.Int("failed", sum.Failed),
		)

		records, err := runNormalize(ctx)
		if err != nil {
			return err
		}

		return runEnrich(ctx, records)
	},
}

func init() {
	pipelineCmd.Flags().StringVar(&extractToken, "token", "", "dashboard resource key")
	pipelineCmd.Flags().StringVar(&enrichOriginStop, "origin-stop", "", "origin transit stop (default from config)")
	pipelineCmd.Flags().BoolVar(&enrichBypassCache, "bypass-cache", false, "force fresh lookups")
	rootCmd.AddCommand(pipelineCmd)
}
