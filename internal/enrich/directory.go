// Package enrich joins external lookups (transport connection, contact
// directory) onto the normalized records. Lookups run per unique school, not
// per record, and results fan back out to every record of that school.
package enrich

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/prihlasky/admissions-cli/internal/model"
)

// Directory is an offline school contact directory loaded from a JSON file
// keyed by school ID. A school missing from the directory is a confirmed
// absence, not a failure.
type Directory struct {
	entries map[string]model.Contact
}

type directoryEntry struct {
	ID      string `json:"id"`
	Website string `json:"website"`
	Phone   string `json:"phone"`
	Email   string `json:"email"`
	Address string `json:"address"`
}

// LoadDirectory reads the contact directory from path.
func LoadDirectory(path string) (*Directory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "enrich: read directory %s", path)
	}

	var entries []directoryEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, eris.Wrapf(err, "enrich: decode directory %s", path)
	}

	d := &Directory{entries: make(map[string]model.Contact, len(entries))}
	for _, e := range entries {
		if e.ID == "" {
			continue
		}
		d.entries[e.ID] = model.Contact{
			Website: e.Website,
			Phone:   e.Phone,
			Email:   e.Email,
			Address: e.Address,
		}
	}

	zap.L().Info("enrich: directory loaded",
		zap.String("path", path),
		zap.Int("schools", len(d.entries)),
	)
	return d, nil
}

// Lookup returns the contact record for a school ID, found or
// confirmed-absent. The directory is local, so it never fails.
func (d *Directory) Lookup(schoolID string) *model.LookupResult {
	contact, ok := d.entries[schoolID]
	if !ok {
		return &model.LookupResult{
			Kind:    model.LookupContact,
			Outcome: model.LookupAbsent,
			Detail:  "school not in directory",
		}
	}
	c := contact
	return &model.LookupResult{
		Kind:    model.LookupContact,
		Outcome: model.LookupFound,
		Contact: &c,
	}
}
