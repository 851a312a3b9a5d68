package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/prihlasky/admissions-cli/internal/model"
)

// Store is the shared lookup cache. database/sql serializes access, so it is
// safe for the enrichment engine's concurrent readers and writers; a
// same-key write race resolves last-write-wins, which is fine because
// results per key are stable.
type Store struct {
	db        *sql.DB
	failedTTL time.Duration
	now       func() time.Time
}

// Open opens (or creates) the cache database at the given path. failedTTL
// bounds how long a failed lookup is served from cache before the next run
// retries it.
func Open(path string, failedTTL time.Duration) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, eris.Wrap(err, "cache: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "cache: exec %s", pragma)
		}
	}

	s := &Store{db: db, failedTTL: failedTTL, now: time.Now}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

const migration = `
CREATE TABLE IF NOT EXISTS lookup_cache (
	key       TEXT PRIMARY KEY,
	kind      TEXT NOT NULL,
	outcome   TEXT NOT NULL,
	payload   TEXT NOT NULL,
	cached_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_lookup_cache_kind ON lookup_cache(kind);
`

func (s *Store) migrate() error {
	_, err := s.db.Exec(migration)
	return eris.Wrap(err, "cache: migrate")
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// WithNow sets a fixed clock for testing.
func (s *Store) WithNow(now func() time.Time) *Store {
	s.now = now
	return s
}

// Get returns the cached result for key. Found and confirmed-absent entries
// are returned for as long as they exist; a failed entry older than the
// failure TTL reads as a miss so the next run retries the lookup.
func (s *Store) Get(ctx context.Context, key string) (*model.LookupResult, bool, error) {
	var payload string
	var cachedAt time.Time
	err := s.db.QueryRowContext(ctx,
		`SELECT payload, cached_at FROM lookup_cache WHERE key = ?`, key,
	).Scan(&payload, &cachedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, eris.Wrapf(err, "cache: get %s", key)
	}

	var result model.LookupResult
	if err := json.Unmarshal([]byte(payload), &result); err != nil {
		return nil, false, eris.Wrapf(err, "cache: decode %s", key)
	}
	result.CachedAt = cachedAt

	if result.Outcome == model.LookupFailed && s.now().Sub(cachedAt) > s.failedTTL {
		zap.L().Debug("cache: failed entry expired", zap.String("key", shortKey(key)))
		return nil, false, nil
	}

	zap.L().Debug("cache: hit",
		zap.String("key", shortKey(key)),
		zap.String("outcome", string(result.Outcome)),
	)
	return &result, true, nil
}

// Put upserts the result for key.
func (s *Store) Put(ctx context.Context, key string, result *model.LookupResult) error {
	result.CachedAt = s.now().UTC()
	payload, err := json.Marshal(result)
	if err != nil {
		return eris.Wrapf(err, "cache: encode %s", key)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO lookup_cache (key, kind, outcome, payload, cached_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (key) DO UPDATE SET
			kind = excluded.kind,
			outcome = excluded.outcome,
			payload = excluded.payload,
			cached_at = excluded.cached_at`,
		key, string(result.Kind), string(result.Outcome), string(payload), result.CachedAt,
	)
	if err != nil {
		return eris.Wrapf(err, "cache: put %s", key)
	}
	return nil
}

func shortKey(key string) string {
	if len(key) > 12 {
		return key[:12]
	}
	return key
}
