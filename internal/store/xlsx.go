package store

import (
	"os"
	"path/filepath"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/prihlasky/admissions-cli/internal/model"
)

// WriteEnrichedXLSX exports the enriched store as a spreadsheet. Numeric
// columns are written as numbers so the sheet sorts and filters correctly;
// missing values stay as empty cells.
func WriteEnrichedXLSX(path string, records []model.EnrichedRecord, defs []model.MetricDefinition) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrapf(err, "store: mkdir for %s", path)
	}

	file := xlsx.NewFile()
	sheet, err := file.AddSheet("admissions")
	if err != nil {
		return eris.Wrap(err, "store: add sheet")
	}

	metrics := model.MetricNames(defs)

	header := sheet.AddRow()
	for _, name := range identityColumns {
		header.AddCell().Value = name
	}
	for _, name := range metrics {
		header.AddCell().Value = name
	}
	header.AddCell().Value = "acceptance_rate"
	for _, name := range enrichmentColumns {
		header.AddCell().Value = name
	}

	for _, r := range records {
		row := sheet.AddRow()
		for _, v := range []string{
			r.SchoolID, r.SchoolName, r.Region, r.City,
			r.CurriculumCode, r.CurriculumName, r.CurriculumDetail,
		} {
			row.AddCell().Value = v
		}
		row.AddCell().SetInt(r.Round)
		row.AddCell().Value = r.ExtractedAt.UTC().Format(timeLayout)
		for _, name := range metrics {
			addNumberCell(row, r.Metrics[name])
		}
		addNumberCell(row, r.AcceptanceRate)
		row.AddCell().Value = strconv.FormatBool(r.TransportAvailable)
		row.AddCell().Value = r.TransportInfo
		addIntCell(row, r.TransportDuration)
		addIntCell(row, r.TransportTransfers)
		for _, v := range []string{r.Website, r.Phone, r.Email, r.StreetAddress, string(r.Status)} {
			row.AddCell().Value = v
		}
	}

	if err := file.Save(path); err != nil {
		return eris.Wrapf(err, "store: save %s", path)
	}
	zap.L().Info("store: spreadsheet written", zap.String("path", path), zap.Int("records", len(records)))
	return nil
}

func addNumberCell(row *xlsx.Row, n model.Number) {
	cell := row.AddCell()
	if n.Valid {
		cell.SetFloat(n.Value)
	}
}

// addIntCell writes whole-minute and count columns as integer cells.
func addIntCell(row *xlsx.Row, n model.Number) {
	cell := row.AddCell()
	if v := n.IntOrNil(); v != nil {
		cell.SetInt(*v)
	}
}
