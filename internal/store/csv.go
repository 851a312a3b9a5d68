// Package store persists the pipeline stages as flat files: append-only CSV
// for the raw and enriched stores, whole-file CSV for the normalized store,
// a spreadsheet export, and a JSONL status log. CSV column order is fixed by
// the metric definitions so restarted runs append compatible rows.
package store

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/prihlasky/admissions-cli/internal/model"
)

const timeLayout = time.RFC3339

var identityColumns = []string{
	"school_id", "school_name", "region", "city",
	"curriculum_code", "curriculum_name", "curriculum_detail",
	"round", "extracted_at",
}

var enrichmentColumns = []string{
	"transport_available", "transport_info", "transport_duration_min", "transport_transfers",
	"website", "phone", "email", "street_address", "status",
}

// RawCSV is the append-only raw store. Rows are written per school and
// flushed after each school so a crashed run loses at most the school in
// flight.
type RawCSV struct {
	path    string
	metrics []string
	file    *os.File
	w       *csv.Writer
}

// OpenRawCSV opens the raw store for appending, writing the header when the
// file is new. The metric definitions fix the column order.
func OpenRawCSV(path string, defs []model.MetricDefinition) (*RawCSV, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, eris.Wrapf(err, "store: mkdir for %s", path)
	}

	info, err := os.Stat(path)
	fresh := os.IsNotExist(err) || (err == nil && info.Size() == 0)

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, eris.Wrapf(err, "store: open %s", path)
	}

	s := &RawCSV{
		path:    path,
		metrics: model.MetricNames(defs),
		file:    file,
		w:       csv.NewWriter(file),
	}
	if fresh {
		if err := s.w.Write(append(append([]string{}, identityColumns...), s.metrics...)); err != nil {
			file.Close()
			return nil, eris.Wrapf(err, "store: write header %s", path)
		}
	}
	return s, nil
}

// Append writes records to the raw store.
func (s *RawCSV) Append(records []model.RawRecord) error {
	for _, r := range records {
		row := []string{
			r.SchoolID, r.SchoolName, r.Region, r.City,
			r.CurriculumCode, r.CurriculumName, r.CurriculumDetail,
			strconv.Itoa(r.Round), r.ExtractedAt.UTC().Format(timeLayout),
		}
		for _, name := range s.metrics {
			row = append(row, r.Metrics[name])
		}
		if err := s.w.Write(row); err != nil {
			return eris.Wrapf(err, "store: append %s", s.path)
		}
	}
	return nil
}

// Flush commits buffered rows to disk.
func (s *RawCSV) Flush() error {
	s.w.Flush()
	if err := s.w.Error(); err != nil {
		return eris.Wrapf(err, "store: flush %s", s.path)
	}
	return eris.Wrapf(s.file.Sync(), "store: sync %s", s.path)
}

// Close flushes and closes the store.
func (s *RawCSV) Close() error {
	if err := s.Flush(); err != nil {
		s.file.Close()
		return err
	}
	return s.file.Close()
}

// LoadRaw reads the whole raw store. A missing file is an empty store, which
// lets the first run and a restarted run share one code path.
func LoadRaw(path string, defs []model.MetricDefinition) ([]model.RawRecord, error) {
	file, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "store: open %s", path)
	}
	defer file.Close()

	r := csv.NewReader(file)
	header, err := r.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "store: read header %s", path)
	}

	col := make(map[string]int, len(header))
	for i, name := range header {
		col[name] = i
	}
	metrics := model.MetricNames(defs)

	var records []model.RawRecord
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrapf(err, "store: read %s", path)
		}

		round, err := strconv.Atoi(row[col["round"]])
		if err != nil {
			return nil, eris.Wrapf(err, "store: bad round in %s", path)
		}
		extractedAt, err := time.Parse(timeLayout, row[col["extracted_at"]])
		if err != nil {
			return nil, eris.Wrapf(err, "store: bad timestamp in %s", path)
		}

		rec := model.RawRecord{
			SchoolID:         row[col["school_id"]],
			SchoolName:       row[col["school_name"]],
			Region:           row[col["region"]],
			City:             row[col["city"]],
			CurriculumCode:   row[col["curriculum_code"]],
			CurriculumName:   row[col["curriculum_name"]],
			CurriculumDetail: row[col["curriculum_detail"]],
			Round:            round,
			ExtractedAt:      extractedAt,
			Metrics:          make(map[string]string, len(metrics)),
		}
		for _, name := range metrics {
			if i, ok := col[name]; ok && i < len(row) {
				rec.Metrics[name] = row[i]
			}
		}
		records = append(records, rec)
	}

	zap.L().Debug("store: raw loaded", zap.String("path", path), zap.Int("records", len(records)))
	return records, nil
}

// RawSchools returns the set of school IDs already present in the raw store.
// The extractor skips these on restart.
func RawSchools(path string) (map[string]bool, error) {
	file, err := os.Open(path)
	if os.IsNotExist(err) {
		return map[string]bool{}, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "store: open %s", path)
	}
	defer file.Close()

	r := csv.NewReader(file)
	header, err := r.Read()
	if err == io.EOF {
		return map[string]bool{}, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "store: read header %s", path)
	}
	idCol := -1
	for i, name := range header {
		if name == "school_id" {
			idCol = i
			break
		}
	}
	if idCol < 0 {
		return nil, eris.Errorf("store: %s has no school_id column", path)
	}

	done := make(map[string]bool)
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrapf(err, "store: read %s", path)
		}
		done[row[idCol]] = true
	}
	return done, nil
}

// WriteNormalized rewrites the normalized store in full. Normalization is a
// pure function of the raw store, so the file is replaced, not appended.
func WriteNormalized(path string, records []model.NormalizedRecord, defs []model.MetricDefinition) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrapf(err, "store: mkdir for %s", path)
	}
	file, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "store: create %s", path)
	}
	defer file.Close()

	metrics := model.MetricNames(defs)
	w := csv.NewWriter(file)
	header := append(append([]string{}, identityColumns...), metrics...)
	header = append(header, "acceptance_rate")
	if err := w.Write(header); err != nil {
		return eris.Wrapf(err, "store: write header %s", path)
	}

	for _, r := range records {
		row := []string{
			r.SchoolID, r.SchoolName, r.Region, r.City,
			r.CurriculumCode, r.CurriculumName, r.CurriculumDetail,
			strconv.Itoa(r.Round), r.ExtractedAt.UTC().Format(timeLayout),
		}
		for _, name := range metrics {
			row = append(row, r.Metrics[name].String())
		}
		row = append(row, r.AcceptanceRate.String())
		if err := w.Write(row); err != nil {
			return eris.Wrapf(err, "store: write %s", path)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return eris.Wrapf(err, "store: flush %s", path)
	}
	zap.L().Info("store: normalized written", zap.String("path", path), zap.Int("records", len(records)))
	return nil
}

// LoadNormalized reads the normalized store back for enrichment.
func LoadNormalized(path string, defs []model.MetricDefinition) ([]model.NormalizedRecord, error) {
	file, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "store: open %s", path)
	}
	defer file.Close()

	r := csv.NewReader(file)
	header, err := r.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "store: read header %s", path)
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[name] = i
	}
	metrics := model.MetricNames(defs)

	var records []model.NormalizedRecord
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrapf(err, "store: read %s", path)
		}

		round, err := strconv.Atoi(row[col["round"]])
		if err != nil {
			return nil, eris.Wrapf(err, "store: bad round in %s", path)
		}
		extractedAt, err := time.Parse(timeLayout, row[col["extracted_at"]])
		if err != nil {
			return nil, eris.Wrapf(err, "store: bad timestamp in %s", path)
		}

		rec := model.NormalizedRecord{
			SchoolID:         row[col["school_id"]],
			SchoolName:       row[col["school_name"]],
			Region:           row[col["region"]],
			City:             row[col["city"]],
			CurriculumCode:   row[col["curriculum_code"]],
			CurriculumName:   row[col["curriculum_name"]],
			CurriculumDetail: row[col["curriculum_detail"]],
			Round:            round,
			ExtractedAt:      extractedAt,
			Metrics:          make(map[string]model.Number, len(metrics)),
		}
		for _, name := range metrics {
			if i, ok := col[name]; ok && i < len(row) {
				rec.Metrics[name] = parseStored(row[i])
			}
		}
		if i, ok := col["acceptance_rate"]; ok && i < len(row) {
			rec.AcceptanceRate = parseStored(row[i])
		}
		records = append(records, rec)
	}
	return records, nil
}

func parseStored(v string) model.Number {
	if v == "" {
		return model.Number{}
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return model.Number{}
	}
	return model.Num(f)
}

// WriteEnriched rewrites the enriched store in full.
func WriteEnriched(path string, records []model.EnrichedRecord, defs []model.MetricDefinition) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrapf(err, "store: mkdir for %s", path)
	}
	file, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "store: create %s", path)
	}
	defer file.Close()

	metrics := model.MetricNames(defs)
	w := csv.NewWriter(file)
	header := append(append([]string{}, identityColumns...), metrics...)
	header = append(header, "acceptance_rate")
	header = append(header, enrichmentColumns...)
	if err := w.Write(header); err != nil {
		return eris.Wrapf(err, "store: write header %s", path)
	}

	for _, r := range records {
		row := []string{
			r.SchoolID, r.SchoolName, r.Region, r.City,
			r.CurriculumCode, r.CurriculumName, r.CurriculumDetail,
			strconv.Itoa(r.Round), r.ExtractedAt.UTC().Format(timeLayout),
		}
		for _, name := range metrics {
			row = append(row, r.Metrics[name].String())
		}
		row = append(row, r.AcceptanceRate.String())
		row = append(row,
			strconv.FormatBool(r.TransportAvailable),
			r.TransportInfo,
			r.TransportDuration.String(),
			r.TransportTransfers.String(),
			r.Website, r.Phone, r.Email, r.StreetAddress,
			string(r.Status),
		)
		if err := w.Write(row); err != nil {
			return eris.Wrapf(err, "store: write %s", path)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return eris.Wrapf(err, "store: flush %s", path)
	}
	zap.L().Info("store: enriched written", zap.String("path", path), zap.Int("records", len(records)))
	return nil
}
