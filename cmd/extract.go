package main

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/prihlasky/admissions-cli/internal/extract"
	"github.com/prihlasky/admissions-cli/internal/model"
	"github.com/prihlasky/admissions-cli/internal/powerbi"
	"github.com/prihlasky/admissions-cli/internal/store"
)

var (
	extractToken         string
	extractResourceQuery string
	extractSchoolsFile   string
	extractDelaySecs     = -1.0
	extractNoFilter      bool
)

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Extract raw admission statistics from the dashboard",
	RunE: func(cmd *cobra.Command, _ []string) error {
		_, err := runExtract(cmd.Context())
		return err
	},
}

// csvSink adapts the raw CSV store to the extractor's sink.
type csvSink struct {
	raw *store.RawCSV
}

func (s csvSink) Append(_ context.Context, records []model.RawRecord) error {
	return s.raw.Append(records)
}

func (s csvSink) Flush() error { return s.raw.Flush() }

func runExtract(ctx context.Context) (extract.Summary, error) {
	if extractToken != "" {
		cfg.PowerBI.ResourceKey = extractToken
	}
	if extractResourceQuery != "" {
		cfg.PowerBI.ResourceQuery = extractResourceQuery
	}
	// The published report's share key doubles as the resource key when no
	// explicit credential is given.
	if cfg.PowerBI.ResourceKey == "" {
		cfg.PowerBI.ResourceKey = cfg.PowerBI.ResourceQuery
	}
	if cfg.PowerBI.ResourceKey == "" {
		return extract.Summary{}, eris.New("no resource key: set --token or PRIHLASKY_POWERBI_RESOURCE_KEY")
	}
	if extractSchoolsFile != "" {
		cfg.Extract.SchoolsFile = extractSchoolsFile
	}
	if extractDelaySecs >= 0 {
		cfg.Extract.DelaySecs = extractDelaySecs
	}

	defs, err := model.LoadMetricDefinitions(cfg.Extract.MetricsFile)
	if err != nil {
		return extract.Summary{}, err
	}
	schema := powerbi.BuildSchema(defs)

	schools, err := extract.LoadSchools(cfg.Extract.SchoolsFile)
	if err != nil {
		return extract.Summary{}, err
	}
	curricula, err := extract.LoadCurriculums(cfg.Extract.CurriculumsFile)
	if err != nil {
		return extract.Summary{}, err
	}

	done, err := store.RawSchools(rawPath())
	if err != nil {
		return extract.Summary{}, err
	}

	raw, err := store.OpenRawCSV(rawPath(), defs)
	if err != nil {
		return extract.Summary{}, err
	}
	defer raw.Close() //nolint:errcheck

	client := powerbi.NewClient(powerbi.ClientOptions{
		Endpoint:    cfg.PowerBI.Endpoint,
		ResourceKey: cfg.PowerBI.ResourceKey,
		Timeout:     cfg.PowerBI.Timeout(),
	})
	runner := &extract.Runner{
		Client: client,
		Schema: schema,
		Options: powerbi.QueryOptions{
			DatasetID: cfg.PowerBI.DatasetID,
			ReportID:  cfg.PowerBI.ReportID,
			VisualID:  cfg.PowerBI.VisualID,
			ModelID:   cfg.PowerBI.ModelID,
			Curricula: curriculumLiterals(curricula),
			NoFilter:  extractNoFilter,
		},
	}

	zap.L().Info("extract: starting",
		zap.Int("schools", len(schools)),
		zap.Int("already_done", len(done)),
		zap.Duration("delay", cfg.Extract.Delay()),
	)

	ex := extract.New(runner, schema, cfg.Extract.Delay())
	sum, err := ex.Run(ctx, schools, done, csvSink{raw})
	if err != nil {
		return sum, err
	}
	return sum, nil
}

// curriculumLiterals renders curricula back to the "Name (CODE)" literals
// the dashboard filter expects.
func curriculumLiterals(curricula []model.Curriculum) []string {
	literals := make([]string, 0, len(curricula))
	for _, c := range curricula {
		if c.Code == "" {
			literals = append(literals, c.Name)
			continue
		}
		literals = append(literals, fmt.Sprintf("%s (%s)", c.Name, c.Code))
	}
	return literals
}

func init() {
	extractCmd.Flags().StringVar(&extractToken, "token", "", "dashboard resource key")
	extractCmd.Flags().StringVar(&extractResourceQuery, "resource-query", "", "published report share key")
	extractCmd.Flags().StringVar(&extractSchoolsFile, "schools", "", "schools JSON file (default from config)")
	extractCmd.Flags().Float64Var(&extractDelaySecs, "delay", -1, "seconds between school queries")
	extractCmd.Flags().BoolVar(&extractNoFilter, "no-filter", false, "query without the curriculum filter")
	rootCmd.AddCommand(extractCmd)
}
