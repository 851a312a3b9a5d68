package store

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"

	"github.com/prihlasky/admissions-cli/internal/enrich"
)

// AppendStatusLog appends one line of JSON per status entry. The log is
// append-only across runs; entries carry the run ID that produced them.
func AppendStatusLog(path string, entries []enrich.StatusEntry) error {
	if len(entries) == 0 {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrapf(err, "store: mkdir for %s", path)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return eris.Wrapf(err, "store: open %s", path)
	}
	defer file.Close()

	w := bufio.NewWriter(file)
	enc := json.NewEncoder(w)
	for _, e := range entries {
		if err := enc.Encode(e); err != nil {
			return eris.Wrapf(err, "store: encode status entry")
		}
	}
	if err := w.Flush(); err != nil {
		return eris.Wrapf(err, "store: flush %s", path)
	}
	return nil
}
