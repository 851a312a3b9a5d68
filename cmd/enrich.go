package main

import (
	"context"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/prihlasky/admissions-cli/internal/cache"
	"github.com/prihlasky/admissions-cli/internal/config"
	"github.com/prihlasky/admissions-cli/internal/enrich"
	"github.com/prihlasky/admissions-cli/internal/model"
	"github.com/prihlasky/admissions-cli/internal/store"
	"github.com/prihlasky/admissions-cli/internal/transport"
)

var (
	enrichOriginStop  string
	enrichTimeoutSecs int
	enrichBypassCache bool
)

var enrichCmd = &cobra.Command{
	Use:   "enrich",
	Short: "Enrich the normalized dataset with transport and contact data",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runEnrich(cmd.Context(), nil)
	},
}

// runEnrich enriches records, loading them from the normalized store when
// the caller passes none.
func runEnrich(ctx context.Context, records []model.NormalizedRecord) error {
	if enrichOriginStop != "" {
		cfg.Enrich.OriginStop = enrichOriginStop
		// An overridden stop name invalidates the configured stop code.
		cfg.Enrich.OriginStopCode = ""
	}
	if enrichTimeoutSecs > 0 {
		cfg.Enrich.TimeoutSecs = enrichTimeoutSecs
	}

	defs, err := model.LoadMetricDefinitions(cfg.Extract.MetricsFile)
	if err != nil {
		return err
	}

	if records == nil {
		records, err = store.LoadNormalized(normalizedPath(), defs)
		if err != nil {
			return err
		}
	}
	if len(records) == 0 {
		return eris.Errorf("enrich: normalized store %s is empty, run normalize first", normalizedPath())
	}

	weekday, err := config.ParseWeekday(cfg.Enrich.Weekday)
	if err != nil {
		return err
	}

	lookupCache, err := cache.Open(cfg.Cache.Path, cfg.Cache.FailedTTL())
	if err != nil {
		return err
	}
	defer lookupCache.Close() //nolint:errcheck

	planner := transport.New(transport.Options{
		BaseURL:        cfg.Enrich.PlannerBaseURL,
		OriginStop:     cfg.Enrich.OriginStop,
		OriginStopCode: cfg.Enrich.OriginStopCode,
		ArrivalTime:    cfg.Enrich.ArrivalTime,
		Weekday:        weekday,
		Timeout:        cfg.Enrich.Timeout(),
	})

	var directory *enrich.Directory
	if cfg.Enrich.DirectoryFile != "" {
		directory, err = enrich.LoadDirectory(cfg.Enrich.DirectoryFile)
		if err != nil {
			zap.L().Warn("enrich: contact directory unavailable, continuing without contacts",
				zap.String("path", cfg.Enrich.DirectoryFile),
				zap.Error(err),
			)
			directory = nil
		}
	}

	engine := enrich.New(planner, directory, lookupCache, enrich.Options{
		OriginStop:  cfg.Enrich.OriginStop,
		ArrivalTime: cfg.Enrich.ArrivalTime,
		Weekday:     weekday,
		Concurrency: cfg.Enrich.Concurrency,
		Delay:       cfg.Enrich.Delay(),
		BypassCache: enrichBypassCache,
	})

	enriched, statuses, _, err := engine.Run(ctx, records)
	if err != nil {
		return err
	}

	if err := store.WriteEnriched(enrichedPath(), enriched, defs); err != nil {
		return err
	}
	if err := store.WriteEnrichedXLSX(enrichedXLSX(), enriched, defs); err != nil {
		return err
	}
	return store.AppendStatusLog(statusLogPath(), statuses)
}

func init() {
	enrichCmd.Flags().StringVar(&enrichOriginStop, "origin-stop", "", "origin transit stop (default from config)")
	enrichCmd.Flags().IntVar(&enrichTimeoutSecs, "timeout", 0, "lookup timeout in seconds")
	enrichCmd.Flags().BoolVar(&enrichBypassCache, "bypass-cache", false, "force fresh lookups, still writing results back")
	rootCmd.AddCommand(enrichCmd)
}
