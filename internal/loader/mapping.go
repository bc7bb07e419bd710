//-------------------------------------------------------------------------
//
// pgEdge Song Warehouse Loader
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package loader

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/goccy/go-json"

	"github.com/pgEdge/pgedge-songdwh/internal/warehouse"
)

// Mapping selects values for a table's columns from a JSON record.
type Mapping struct {
	paths *JSONPaths
}

// Auto maps top-level keys to columns of the same name, ignoring case.
func Auto() Mapping {
	return Mapping{}
}

// FromJSONPaths maps the Nth path to the Nth loaded column.
func FromJSONPaths(jp *JSONPaths) Mapping {
	return Mapping{paths: jp}
}

// IsAuto reports whether the mapping matches columns by name.
func (m Mapping) IsAuto() bool {
	return m.paths == nil
}

// binding is a mapping checked against a table.
type binding struct {
	cols  []warehouse.Column
	paths []Path
}

func (m Mapping) bind(t warehouse.Table) (*binding, error) {
	cols := t.LoadColumns()
	b := &binding{cols: cols}
	if m.paths == nil {
		return b, nil
	}
	if len(m.paths.Paths) != len(cols) {
		return nil, fmt.Errorf("%w: %d paths for %d columns of %s",
			ErrJSONPathMismatch, len(m.paths.Paths), len(cols), t.Name)
	}
	b.paths = m.paths.Paths
	return b, nil
}

// extract returns the raw values of one record in column order.
func (b *binding) extract(record map[string]any) []any {
	values := make([]any, len(b.cols))
	if b.paths != nil {
		for i, p := range b.paths {
			if v, ok := p.Lookup(record); ok {
				values[i] = v
			}
		}
		return values
	}

	lower := make(map[string]any, len(record))
	for k, v := range record {
		lower[strings.ToLower(k)] = v
	}
	for i, c := range b.cols {
		values[i] = lower[strings.ToLower(c.Name)]
	}
	return values
}

// decodeRows reads concatenated or newline-delimited JSON objects and
// converts each into a row.
func decodeRows(r io.Reader, b *binding) ([][]any, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	var rows [][]any
	for n := 1; ; n++ {
		var raw any
		err := dec.Decode(&raw)
		if errors.Is(err, io.EOF) {
			return rows, nil
		}
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", n, err)
		}
		record, ok := raw.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("record %d: expected a JSON object, got %T", n, raw)
		}
		row, err := convertRow(b.cols, b.extract(record))
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", n, err)
		}
		rows = append(rows, row)
	}
}

// CountRecords counts the JSON objects in a stream without converting them.
func CountRecords(r io.Reader) (int64, error) {
	dec := json.NewDecoder(r)
	var n int64
	for {
		var raw json.RawMessage
		err := dec.Decode(&raw)
		if errors.Is(err, io.EOF) {
			return n, nil
		}
		if err != nil {
			return n, fmt.Errorf("record %d: %w", n+1, err)
		}
		n++
	}
}
