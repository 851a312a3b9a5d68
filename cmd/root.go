package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/prihlasky/admissions-cli/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "admissions-cli",
	Short: "Secondary-school admission statistics pipeline",
	Long:  "Extracts per-school admission statistics from a published analytics dashboard, normalizes them into a typed flat dataset, and enriches each row with transport and contact data.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if outDir != "" {
			cfg.Output.Dir = outDir
		}

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

var outDir string

func init() {
	rootCmd.PersistentFlags().StringVar(&outDir, "out-dir", "", "output directory (default from config)")
}

func rawPath() string        { return filepath.Join(cfg.Output.Dir, "raw.csv") }
func normalizedPath() string { return filepath.Join(cfg.Output.Dir, "normalized.csv") }
func enrichedPath() string   { return filepath.Join(cfg.Output.Dir, "enriched.csv") }
func enrichedXLSX() string   { return filepath.Join(cfg.Output.Dir, "enriched.xlsx") }
func statusLogPath() string  { return filepath.Join(cfg.Output.Dir, "enrich_status.jsonl") }

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
