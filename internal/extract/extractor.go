package extract

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/prihlasky/admissions-cli/internal/model"
	"github.com/prihlasky/admissions-cli/internal/powerbi"
)

// QueryClient fetches decoded rows for one school. *powerbi.Client satisfies
// this through Runner below; tests substitute a fake.
type QueryClient interface {
	FetchSchool(ctx context.Context, school model.School) ([][]string, error)
}

// Runner adapts a powerbi.Client plus query options into a QueryClient.
type Runner struct {
	Client  *powerbi.Client
	Schema  []powerbi.SchemaColumn
	Options powerbi.QueryOptions
}

// FetchSchool implements QueryClient.
func (r *Runner) FetchSchool(ctx context.Context, school model.School) ([][]string, error) {
	q := powerbi.BuildQuery(school.Name, r.Schema, r.Options)
	return r.Client.FetchRows(ctx, q)
}

// Summary counts the per-entity outcomes of one extraction run.
type Summary struct {
	Queried int
	Skipped int
	Failed  int
	Records int
}

// Extractor runs the per-school extraction loop.
type Extractor struct {
	client  QueryClient
	schema  []powerbi.SchemaColumn
	limiter *rate.Limiter
	now     func() time.Time
}

// New creates an Extractor. delay is the fixed pause between entity queries.
func New(client QueryClient, schema []powerbi.SchemaColumn, delay time.Duration) *Extractor {
	limit := rate.Limit(rate.Inf)
	if delay > 0 {
		limit = rate.Every(delay)
	}
	return &Extractor{
		client:  client,
		schema:  schema,
		limiter: rate.NewLimiter(limit, 1),
		now:     time.Now,
	}
}

// WithNow sets a fixed clock for testing.
func (e *Extractor) WithNow(now func() time.Time) *Extractor {
	e.now = now
	return e
}

// Run queries every school not already in done, appending decoded records to
// the sink and flushing after each school. Per-entity fetch or decode
// failures are logged and skipped; a rejected credential aborts the run.
func (e *Extractor) Run(ctx context.Context, schools []model.School, done map[string]bool, sink Sink) (Summary, error) {
	var sum Summary
	log := zap.L()

	for i, school := range schools {
		if done[school.ID] {
			log.Debug("extract: school already in raw store, skipping",
				zap.String("school", school.Name),
			)
			sum.Skipped++
			continue
		}

		if err := e.limiter.Wait(ctx); err != nil {
			return sum, eris.Wrap(err, "extract: rate limiter wait")
		}

		log.Info("extract: querying school",
			zap.Int("index", i+1),
			zap.Int("total", len(schools)),
			zap.String("school", school.Name),
		)

		rows, err := e.client.FetchSchool(ctx, school)
		if err != nil {
			if errors.Is(err, powerbi.ErrAuth) {
				return sum, eris.Wrap(err, "extract: authentication failed")
			}
			// Ordinary per-entity failure: record and move on. The school
			// stays absent from the raw store so a later run retries it.
			log.Warn("extract: school query failed, continuing",
				zap.String("school", school.Name),
				zap.Error(err),
			)
			sum.Failed++
			continue
		}

		records := e.toRecords(school, rows)
		if len(records) == 0 {
			log.Warn("extract: no records decoded for school",
				zap.String("school", school.Name),
			)
			sum.Failed++
			continue
		}

		if err := sink.Append(ctx, records); err != nil {
			return sum, eris.Wrapf(err, "extract: append records for %s", school.Name)
		}
		if err := sink.Flush(); err != nil {
			return sum, eris.Wrapf(err, "extract: flush records for %s", school.Name)
		}

		sum.Queried++
		sum.Records += len(records)
	}

	log.Info("extract: run complete",
		zap.Int("queried", sum.Queried),
		zap.Int("skipped", sum.Skipped),
		zap.Int("failed", sum.Failed),
		zap.Int("records", sum.Records),
	)
	return sum, nil
}

// toRecords maps decoded rows onto one RawRecord per (curriculum, round).
// Rows with no curriculum name carry no usable data and are dropped.
func (e *Extractor) toRecords(school model.School, rows [][]string) []model.RawRecord {
	extractedAt := e.now().UTC()
	var records []model.RawRecord

	for _, row := range rows {
		byRound := make(map[int]map[string]string)
		var code, name, detail string

		for i, col := range e.schema {
			var value string
			if i < len(row) {
				value = row[i]
			}
			switch col.Role {
			case powerbi.RoleCurriculumCode:
				code = value
			case powerbi.RoleCurriculumName:
				name = value
			case powerbi.RoleCurriculumDetail:
				detail = value
			case powerbi.RoleMetric:
				m := byRound[col.Metric.Round]
				if m == nil {
					m = make(map[string]string)
					byRound[col.Metric.Round] = m
				}
				m[col.Metric.Name] = value
			}
		}

		if name == "" {
			continue
		}

		for _, round := range sortedRounds(byRound) {
			records = append(records, model.RawRecord{
				SchoolID:         school.ID,
				SchoolName:       school.Name,
				Region:           school.Region,
				City:             school.City,
				CurriculumCode:   code,
				CurriculumName:   name,
				CurriculumDetail: detail,
				Round:            round,
				ExtractedAt:      extractedAt,
				Metrics:          byRound[round],
			})
		}
	}
	return records
}

func sortedRounds(byRound map[int]map[string]string) []int {
	rounds := make([]int, 0, len(byRound))
	for r := range byRound {
		rounds = append(rounds, r)
	}
	sort.Ints(rounds)
	return rounds
}
