package powerbi

import (
	"encoding/json"
	"strconv"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// The querydata response is not a flat table: row values live in a C array
// indexed against a schema, with bitmasks marking null and repeated columns
// and categorical values dereferenced through per-dictionary value arrays.
// decode.go reconstructs plain string rows from that shape. Malformed pieces
// (short C array, out-of-range dictionary index, missing schema) degrade to
// missing values or zero rows, never to an error; only a payload that is not
// the expected envelope at all, or one carrying an odata.error, fails.

type queryResponse struct {
	Results []struct {
		Result struct {
			Data struct {
				DSR dsr `json:"dsr"`
			} `json:"data"`
		} `json:"result"`
	} `json:"results"`
}

type dsr struct {
	DataShapes []map[string]json.RawMessage `json:"DataShapes"`
	DS         []dataSet                    `json:"DS"`
}

type dataSet struct {
	PH         []projectionHit  `json:"PH"`
	ValueDicts map[string][]any `json:"ValueDicts"`
}

type projectionHit struct {
	DM0 []dataRow `json:"DM0"`
}

type dataRow struct {
	S []schemaEntry `json:"S"`
	C []any         `json:"C"`
	R uint64        `json:"R"`
	// The null bitmask key really is the character Ø in the wire format.
	Null uint64 `json:"Ø"`
}

type schemaEntry struct {
	N  string `json:"N"`
	T  int    `json:"T"`
	DN string `json:"DN"`
}

type odataError struct {
	Message struct {
		Value string `json:"value"`
	} `json:"message"`
}

// DecodeRows decodes a querydata response body into rows of string values in
// schema (select) order. Absent values decode as "".
func DecodeRows(body []byte) ([][]string, error) {
	var resp queryResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, eris.Wrap(err, "powerbi: decode response envelope")
	}
	if len(resp.Results) == 0 {
		return nil, eris.New("powerbi: response has no results")
	}

	d := resp.Results[0].Result.Data.DSR

	// Semantic errors come back inside DataShapes with HTTP 200.
	for _, shape := range d.DataShapes {
		if raw, ok := shape["odata.error"]; ok {
			var oe odataError
			if err := json.Unmarshal(raw, &oe); err == nil && oe.Message.Value != "" {
				return nil, eris.Errorf("powerbi: semantic error: %s", oe.Message.Value)
			}
			return nil, eris.New("powerbi: semantic error")
		}
	}

	if len(d.DS) == 0 {
		return nil, nil
	}
	ds := d.DS[0]
	if len(ds.PH) == 0 {
		return nil, nil
	}

	// The schema rides on the first row of the first projection hit and
	// applies to every row that follows.
	schema := firstSchema(ds.PH)
	if len(schema) == 0 {
		zap.L().Debug("powerbi: response carries no row schema")
		return nil, nil
	}

	var rows [][]string
	for _, ph := range ds.PH {
		previous := make([]string, len(schema))
		for _, dm := range ph.DM0 {
			if dm.C == nil {
				continue
			}
			row := decodeRow(dm, schema, ds.ValueDicts, previous)
			rows = append(rows, row)
			previous = row
		}
	}
	return rows, nil
}

func firstSchema(hits []projectionHit) []schemaEntry {
	for _, ph := range hits {
		for _, dm := range ph.DM0 {
			if len(dm.S) > 0 {
				return dm.S
			}
		}
	}
	return nil
}

// decodeRow resolves one DM0 entry against the schema. The C array holds
// values only for columns that are neither null (Ø bit) nor repeated from
// the previous row (R bit), consumed left to right in schema order.
func decodeRow(dm dataRow, schema []schemaEntry, dicts map[string][]any, previous []string) []string {
	row := make([]string, len(schema))
	next := 0
	for i, col := range schema {
		if dm.Null&(1<<uint(i)) != 0 {
			row[i] = ""
			continue
		}
		if dm.R&(1<<uint(i)) != 0 {
			if i < len(previous) {
				row[i] = previous[i]
			}
			continue
		}
		if next >= len(dm.C) {
			// Referenced value array is shorter than the schema: missing,
			// never an error.
			row[i] = ""
			continue
		}
		row[i] = resolveValue(dm.C[next], col, dicts)
		next++
	}
	return row
}

func resolveValue(v any, col schemaEntry, dicts map[string][]any) string {
	if col.DN == "" {
		return rawString(v)
	}
	// Categorical column: the value is an index into the named dictionary.
	idx, ok := asIndex(v)
	if !ok {
		return ""
	}
	dict, ok := dicts[col.DN]
	if !ok || idx < 0 || idx >= len(dict) {
		return ""
	}
	return rawString(dict[idx])
}

func asIndex(v any) (int, bool) {
	f, ok := v.(float64)
	if !ok || f != float64(int(f)) {
		return 0, false
	}
	return int(f), true
}

func rawString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return ""
	}
}
