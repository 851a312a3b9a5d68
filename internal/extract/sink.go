package extract

import (
	"context"

	"github.com/prihlasky/admissions-cli/internal/model"
)

// Sink receives extracted records. Decoupling the per-entity loop from
// storage lets tests substitute an in-memory sink for the CSV store.
type Sink interface {
	// Append adds records to the store.
	Append(ctx context.Context, records []model.RawRecord) error
	// Flush makes everything appended so far durable.
	Flush() error
}

// MemorySink collects records in memory.
type MemorySink struct {
	Records []model.RawRecord
	Flushes int
}

// Append implements Sink.
func (s *MemorySink) Append(_ context.Context, records []model.RawRecord) error {
	s.Records = append(s.Records, records...)
	return nil
}

// Flush implements Sink.
func (s *MemorySink) Flush() error {
	s.Flushes++
	return nil
}
