package enrich

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/prihlasky/admissions-cli/internal/cache"
	"github.com/prihlasky/admissions-cli/internal/model"
)

// TransportProvider resolves the best connection to a destination. An error
// is a transient transport failure; a confirmed lack of connection comes
// back as a LookupResult with the absent outcome.
type TransportProvider interface {
	FindJourney(ctx context.Context, destination string) (*model.LookupResult, error)
}

// Cache is the persistent lookup cache the engine reads through.
type Cache interface {
	Get(ctx context.Context, key string) (*model.LookupResult, bool, error)
	Put(ctx context.Context, key string, result *model.LookupResult) error
}

// Options configures the enrichment engine.
type Options struct {
	OriginStop  string
	ArrivalTime string
	Weekday     time.Weekday
	// Concurrency bounds how many schools are enriched at once.
	Concurrency int
	// Delay is the minimum spacing between routing-provider requests,
	// shared across workers.
	Delay time.Duration
	// BypassCache forces fresh lookups; fresh results still get written
	// back to the cache.
	BypassCache bool
}

// Engine enriches normalized records with transport and contact data. One
// school's lookup failure never blocks the rest of the batch.
type Engine struct {
	transport TransportProvider
	directory *Directory
	store     Cache
	limiter   *rate.Limiter
	opts      Options
	runID     string
	now       func() time.Time
}

// New creates an enrichment engine. directory may be nil when no contact
// directory is configured.
func New(transport TransportProvider, directory *Directory, store Cache, opts Options) *Engine {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if opts.Delay > 0 {
		limiter = rate.NewLimiter(rate.Every(opts.Delay), 1)
	}

	return &Engine{
		transport: transport,
		directory: directory,
		store:     store,
		limiter:   limiter,
		opts:      opts,
		runID:     uuid.NewString(),
		now:       time.Now,
	}
}

// WithNow sets a fixed clock for testing.
func (e *Engine) WithNow(now func() time.Time) *Engine {
	e.now = now
	return e
}

// RunID identifies this engine run in the status log.
func (e *Engine) RunID() string { return e.runID }

// StatusEntry is one line of the enrichment status log.
type StatusEntry struct {
	RunID      string             `json:"run_id"`
	SchoolID   string             `json:"school_id"`
	Curriculum string             `json:"curriculum"`
	Detail     string             `json:"detail,omitempty"`
	Round      int                `json:"round"`
	Status     model.EnrichStatus `json:"status"`
	Timestamp  time.Time          `json:"timestamp"`
}

// Summary reports the outcome of one enrichment run.
type Summary struct {
	Schools   int
	Records   int
	Completed int
	Partial   int
	Failed    int
	CacheHits int
}

// schoolLookups is the per-school join payload shared by all of the
// school's records.
type schoolLookups struct {
	transport *model.LookupResult
	contact   *model.LookupResult
	cacheHits int
}

// Run enriches records. Lookups execute once per unique school and the
// results fan out to every record of that school. Every input record is
// emitted exactly once, in input order, regardless of lookup outcomes.
func (e *Engine) Run(ctx context.Context, records []model.NormalizedRecord) ([]model.EnrichedRecord, []StatusEntry, Summary, error) {
	schoolIDs := make([]string, 0)
	bySchool := make(map[string][]int)
	for i, r := range records {
		if _, ok := bySchool[r.SchoolID]; !ok {
			schoolIDs = append(schoolIDs, r.SchoolID)
		}
		bySchool[r.SchoolID] = append(bySchool[r.SchoolID], i)
	}

	zap.L().Info("enrich: run starting",
		zap.String("run_id", e.runID),
		zap.Int("records", len(records)),
		zap.Int("schools", len(schoolIDs)),
		zap.Bool("bypass_cache", e.opts.BypassCache),
	)

	lookups := make(map[string]*schoolLookups, len(schoolIDs))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.Concurrency)
	for _, id := range schoolIDs {
		rec := records[bySchool[id][0]]
		g.Go(func() error {
			result, err := e.lookupSchool(gctx, rec)
			if err != nil {
				// Only context cancellation aborts the batch; lookup
				// failures are already folded into the result.
				return err
			}
			mu.Lock()
			lookups[id] = result
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, Summary{}, eris.Wrap(err, "enrich: run aborted")
	}

	summary := Summary{Schools: len(schoolIDs), Records: len(records)}
	enriched := make([]model.EnrichedRecord, 0, len(records))
	statuses := make([]StatusEntry, 0, len(records))
	for _, r := range records {
		l := lookups[r.SchoolID]
		rec := e.join(r, l)
		enriched = append(enriched, rec)
		statuses = append(statuses, StatusEntry{
			RunID:      e.runID,
			SchoolID:   r.SchoolID,
			Curriculum: r.CurriculumName,
			Detail:     r.CurriculumDetail,
			Round:      r.Round,
			Status:     rec.Status,
			Timestamp:  e.now().UTC(),
		})
		switch rec.Status {
		case model.EnrichCompleted:
			summary.Completed++
		case model.EnrichPartial:
			summary.Partial++
		default:
			summary.Failed++
		}
	}
	for _, l := range lookups {
		summary.CacheHits += l.cacheHits
	}

	zap.L().Info("enrich: run complete",
		zap.String("run_id", e.runID),
		zap.Int("completed", summary.Completed),
		zap.Int("partial", summary.Partial),
		zap.Int("failed", summary.Failed),
		zap.Int("cache_hits", summary.CacheHits),
	)
	return enriched, statuses, summary, nil
}

// lookupSchool performs the external lookups for one school. The returned
// error is non-nil only for context cancellation.
func (e *Engine) lookupSchool(ctx context.Context, rec model.NormalizedRecord) (*schoolLookups, error) {
	result := &schoolLookups{}

	if e.directory != nil {
		result.contact = e.directory.Lookup(rec.SchoolID)
	}

	// The journey planner resolves a street address best; fall back to the
	// school name, which doubles as a stop-search term.
	destination := rec.SchoolName
	if result.contact != nil && result.contact.Contact != nil && result.contact.Contact.Address != "" {
		destination = result.contact.Contact.Address
	}
	if destination == "" {
		result.transport = &model.LookupResult{
			Kind:    model.LookupTransport,
			Outcome: model.LookupAbsent,
			Detail:  "no destination for school",
		}
		return result, nil
	}

	transport, err := e.cachedTransport(ctx, rec.SchoolID, destination, &result.cacheHits)
	if err != nil {
		return nil, err
	}
	result.transport = transport
	return result, nil
}

// cachedTransport reads the transport lookup through the cache. Provider
// failures become a cached failed result rather than an error, so a flaky
// destination is not retried within the same run.
func (e *Engine) cachedTransport(ctx context.Context, schoolID, destination string, hits *int) (*model.LookupResult, error) {
	key := cache.Key(string(model.LookupTransport),
		e.opts.OriginStop, destination, e.opts.ArrivalTime, e.opts.Weekday.String())

	if !e.opts.BypassCache {
		cached, ok, err := e.store.Get(ctx, key)
		if err != nil {
			zap.L().Warn("enrich: cache read failed", zap.String("school", schoolID), zap.Error(err))
		} else if ok {
			*hits++
			return cached, nil
		}
	}

	if err := e.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	result, err := e.transport.FindJourney(ctx, destination)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		zap.L().Warn("enrich: transport lookup failed",
			zap.String("school", schoolID),
			zap.String("destination", destination),
			zap.Error(err),
		)
		result = &model.LookupResult{
			Kind:    model.LookupTransport,
			Outcome: model.LookupFailed,
			Detail:  eris.ToString(err, false),
		}
	}

	if err := e.store.Put(ctx, key, result); err != nil {
		zap.L().Warn("enrich: cache write failed", zap.String("school", schoolID), zap.Error(err))
	}
	return result, nil
}

// join merges one record with its school's lookup payloads and classifies
// the outcome. A lookup counts as resolved when it answered, found or
// confirmed-absent alike; only failed lookups degrade the status.
func (e *Engine) join(r model.NormalizedRecord, l *schoolLookups) model.EnrichedRecord {
	rec := model.EnrichedRecord{NormalizedRecord: r}

	resolved, failed := 0, 0

	if l.transport != nil {
		switch l.transport.Outcome {
		case model.LookupFound:
			resolved++
			rec.TransportAvailable = true
			if j := l.transport.Journey; j != nil {
				rec.TransportInfo = j.Summary()
				rec.TransportDuration = model.Num(float64(j.DurationMinutes))
				if j.Transfers != nil {
					rec.TransportTransfers = model.Num(float64(*j.Transfers))
				}
			}
		case model.LookupAbsent:
			resolved++
		default:
			failed++
		}
	}

	if l.contact != nil {
		switch l.contact.Outcome {
		case model.LookupFound:
			resolved++
			if c := l.contact.Contact; c != nil {
				rec.Website = c.Website
				rec.Phone = c.Phone
				rec.Email = c.Email
				rec.StreetAddress = c.Address
			}
		case model.LookupAbsent:
			resolved++
		default:
			failed++
		}
	}

	switch {
	case failed == 0:
		rec.Status = model.EnrichCompleted
	case resolved > 0:
		rec.Status = model.EnrichPartial
	default:
		rec.Status = model.EnrichFailed
	}
	return rec
}
