package importer

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"routeengine/internal/domain"
	"routeengine/internal/utils"
)

// record is one source row keyed by normalized column name. A non-empty
// parseErr marks a row that could not be decoded at all.
type record struct {
	index    int
	values   map[string]string
	parseErr string
}

func (r record) pick(keys ...string) string {
	for _, k := range keys {
		if v, ok := r.values[k]; ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func parseRecords(format domain.Format, dataType domain.DataType, payload []byte) ([]record, error) {
	payload = bytes.TrimPrefix(payload, []byte("\xef\xbb\xbf"))
	if len(bytes.TrimSpace(payload)) == 0 {
		return nil, domain.ValidationError{Field: "file", Msg: "payload is empty"}
	}
	switch format {
	case domain.FormatCSV:
		return parseCSV(payload)
	case domain.FormatJSON:
		return parseJSON(dataType, payload)
	}
	return nil, domain.ValidationError{Field: "format", Msg: "must be csv or json"}
}

func parseCSV(payload []byte) ([]record, error) {
	r := csv.NewReader(bytes.NewReader(payload))
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		return nil, domain.ValidationError{Field: "file", Msg: "csv header row is missing or unreadable", Err: err}
	}
	cols := make([]string, len(header))
	for i, h := range header {
		cols[i] = utils.NormalizeKey(h)
	}

	var out []record
	idx := 0
	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		idx++
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				out = append(out, record{index: idx, parseErr: fmt.Sprintf("malformed csv row: %v", perr.Err)})
				continue
			}
			return nil, domain.ValidationError{Field: "file", Msg: "csv could not be read", Err: err}
		}
		rec := record{index: idx, values: make(map[string]string, len(cols))}
		for i, col := range cols {
			if i < len(row) {
				rec.values[col] = row[i]
			}
		}
		out = append(out, rec)
	}
	return out, nil
}

// parseJSON accepts a bare array or an envelope {"data": [...]} / {"<dataType>": [...]}.
func parseJSON(dataType domain.DataType, payload []byte) ([]record, error) {
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()

	var root any
	if err := dec.Decode(&root); err != nil {
		return nil, domain.ValidationError{Field: "file", Msg: "invalid json payload", Err: err}
	}

	var items []any
	switch v := root.(type) {
	case []any:
		items = v
	case map[string]any:
		for key, val := range v {
			k := utils.NormalizeKey(key)
			if k != "data" && k != utils.NormalizeKey(string(dataType)) {
				continue
			}
			if arr, ok := val.([]any); ok {
				items = arr
				break
			}
		}
		if items == nil {
			return nil, domain.ValidationError{Field: "file", Msg: "json object must wrap rows in \"data\" or \"" + string(dataType) + "\""}
		}
	default:
		return nil, domain.ValidationError{Field: "file", Msg: "json payload must be an array of rows"}
	}

	out := make([]record, 0, len(items))
	for i, item := range items {
		rec := record{index: i + 1}
		obj, ok := item.(map[string]any)
		if !ok {
			rec.parseErr = "row is not an object"
			out = append(out, rec)
			continue
		}
		rec.values = make(map[string]string, len(obj))
		for key, val := range obj {
			s, err := stringify(val)
			if err != nil {
				rec.parseErr = fmt.Sprintf("unsupported value for field: %s", key)
				break
			}
			rec.values[utils.NormalizeKey(key)] = s
		}
		out = append(out, rec)
	}
	return out, nil
}

func stringify(v any) (string, error) {
	switch t := v.(type) {
	case nil:
		return "", nil
	case string:
		return t, nil
	case json.Number:
		return t.String(), nil
	case bool:
		return strconv.FormatBool(t), nil
	case []any:
		parts := make([]string, 0, len(t))
		for _, e := range t {
			s, err := stringify(e)
			if err != nil {
				return "", err
			}
			parts = append(parts, s)
		}
		return strings.Join(parts, ","), nil
	}
	return "", fmt.Errorf("unsupported json value %T", v)
}
