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
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/pgEdge/pgedge-songdwh/internal/warehouse"
)

// Convert turns a decoded JSON value into the Go value written to a column.
// JSON null and missing values become SQL NULL. TIMESTAMP columns expect
// epoch milliseconds, the time format of the event logs.
func Convert(c warehouse.Column, v any) (any, error) {
	if v == nil {
		return nil, nil
	}

	var (
		out any
		err error
	)
	switch c.Type {
	case warehouse.Varchar:
		out, err = toText(v)
	case warehouse.Integer:
		var n int64
		n, err = toInt(v)
		if err == nil {
			if n < math.MinInt32 || n > math.MaxInt32 {
				err = fmt.Errorf("%d out of range for INTEGER", n)
			} else {
				out = int32(n)
			}
		}
	case warehouse.BigInt:
		out, err = toInt(v)
	case warehouse.Float:
		out, err = toFloat(v)
	case warehouse.Timestamp:
		out, err = toTimestamp(v)
	default:
		err = fmt.Errorf("unsupported column type %s", c.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("column %s: %w", c.Name, err)
	}
	return out, nil
}

func toText(v any) (any, error) {
	switch t := v.(type) {
	case string:
		return t, nil
	case json.Number:
		return t.String(), nil
	case bool:
		return strconv.FormatBool(t), nil
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), nil
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return nil, err
		}
		return string(b), nil
	}
}

// blank reports whether a string value should load as NULL into a
// numeric column.
func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}

func toInt(v any) (int64, error) {
	switch t := v.(type) {
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return n, nil
		}
		f, err := t.Float64()
		if err != nil {
			return 0, err
		}
		return floatToInt(f)
	case float64:
		return floatToInt(t)
	case string:
		if n, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64); err == nil {
			return n, nil
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, fmt.Errorf("invalid integer %q", t)
		}
		return floatToInt(f)
	case bool:
		if t {
			return 1, nil
		}
		return 0, nil
	default:
		return 0, fmt.Errorf("cannot load %T as an integer", v)
	}
}

func floatToInt(f float64) (int64, error) {
	if f != math.Trunc(f) || math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, fmt.Errorf("%v is not an integer", f)
	}
	return int64(f), nil
}

func toFloat(v any) (float64, error) {
	switch t := v.(type) {
	case json.Number:
		return t.Float64()
	case float64:
		return t, nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, fmt.Errorf("invalid number %q", t)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("cannot load %T as a number", v)
	}
}

func toTimestamp(v any) (time.Time, error) {
	if s, ok := v.(string); ok {
		if ts, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(s)); err == nil {
			return ts.UTC(), nil
		}
	}
	ms, err := toInt(v)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid epoch milliseconds: %w", err)
	}
	return time.UnixMilli(ms).UTC(), nil
}

// convertRow converts one extracted row. Empty strings in numeric and
// timestamp columns load as NULL.
func convertRow(cols []warehouse.Column, values []any) ([]any, error) {
	row := make([]any, len(cols))
	for i, c := range cols {
		v := values[i]
		if s, ok := v.(string); ok && c.Type != warehouse.Varchar && blank(s) {
			v = nil
		}
		out, err := Convert(c, v)
		if err != nil {
			return nil, err
		}
		row[i] = out
	}
	return row, nil
}
