package source

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/JonMunkholm/enclave/internal/core"
)

// ReadCSV decodes a headed CSV document into a table named name.
// Every cell is kept as a string; typing happens during validation.
func ReadCSV(r io.Reader, name string) (*core.Table, error) {
	cr := csv.NewReader(r)
	cr.ReuseRecord = false

	header, err := cr.Read()
	if err == io.EOF {
		return nil, &core.SourceError{Key: name, Op: "decode", Err: errors.New("empty csv: no header row")}
	}
	if err != nil {
		return nil, &core.SourceError{Key: name, Op: "decode", Err: err}
	}

	t := core.NewTable(name, header...)
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, &core.SourceError{Key: name, Op: "decode", Err: err}
		}
		row := make(core.Row, len(header))
		for i, col := range header {
			row[col] = rec[i]
		}
		t.Append(row)
	}
	return t, nil
}

// eventDocument is the envelope of an event export.
type eventDocument struct {
	Data []map[string]any `json:"data"`
}

// ReadEvents decodes an event export shaped {"data": [...]}. Columns are the
// union of keys across all events, sorted. Numbers stay json.Number so
// integer timestamps keep full precision.
func ReadEvents(r io.Reader, name string) (*core.Table, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	var doc eventDocument
	if err := dec.Decode(&doc); err != nil {
		return nil, &core.SourceError{Key: name, Op: "decode", Err: err}
	}
	if doc.Data == nil {
		return nil, &core.SourceError{Key: name, Op: "decode", Err: errors.New(`missing "data" array`)}
	}

	seen := map[string]struct{}{}
	for _, ev := range doc.Data {
		for k := range ev {
			seen[k] = struct{}{}
		}
	}
	columns := make([]string, 0, len(seen))
	for k := range seen {
		columns = append(columns, k)
	}
	sort.Strings(columns)

	t := core.NewTable(name, columns...)
	for _, ev := range doc.Data {
		t.Append(core.Row(ev))
	}
	return t, nil
}

// ResponseField is the pset attempt column carrying a response union.
const ResponseField = "response"

// NormalizeResponses collapses the {"string": s, "array": [...]} union of
// every response cell: a non-empty string wins, otherwise the array is used.
func NormalizeResponses(t *core.Table) error {
	for i, row := range t.Rows {
		v, err := collapseResponse(row[ResponseField])
		if err != nil {
			return &core.ShapeError{Source: t.Name, Key: fmt.Sprintf("%s[%d]", ResponseField, i), Detail: err.Error()}
		}
		row[ResponseField] = v
	}
	return nil
}

func collapseResponse(v any) (any, error) {
	union, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("response is %T, want object with string and array members", v)
	}
	if s, ok := union["string"].(string); ok && s != "" {
		return s, nil
	}
	return union["array"], nil
}
