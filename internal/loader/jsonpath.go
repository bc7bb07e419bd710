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
	"strconv"
	"strings"

	"github.com/goccy/go-json"
)

// ErrJSONPathMismatch is returned when a jsonpaths file does not have one
// path per loaded column.
var ErrJSONPathMismatch = errors.New("jsonpaths count does not match column count")

type pathElem struct {
	key     string
	index   int
	isIndex bool
}

// Path is a parsed JSONPath expression such as $['user']['id'] or $.items[0].
type Path struct {
	expr  string
	elems []pathElem
}

// ParsePath parses a JSONPath expression in dot or bracket notation.
func ParsePath(expr string) (Path, error) {
	s := strings.TrimSpace(expr)
	if !strings.HasPrefix(s, "$") {
		return Path{}, fmt.Errorf("jsonpath %q must start with $", expr)
	}
	s = s[1:]

	var elems []pathElem
	for len(s) > 0 {
		switch s[0] {
		case '.':
			s = s[1:]
			end := strings.IndexAny(s, ".[")
			if end < 0 {
				end = len(s)
			}
			if end == 0 {
				return Path{}, fmt.Errorf("jsonpath %q has an empty field name", expr)
			}
			elems = append(elems, pathElem{key: s[:end]})
			s = s[end:]

		case '[':
			end := strings.IndexByte(s, ']')
			if end < 0 {
				return Path{}, fmt.Errorf("jsonpath %q has an unclosed bracket", expr)
			}
			inner := strings.TrimSpace(s[1:end])
			s = s[end+1:]

			if len(inner) >= 2 && (inner[0] == '\'' || inner[0] == '"') && inner[len(inner)-1] == inner[0] {
				elems = append(elems, pathElem{key: inner[1 : len(inner)-1]})
				continue
			}
			idx, err := strconv.Atoi(inner)
			if err != nil || idx < 0 {
				return Path{}, fmt.Errorf("jsonpath %q has an invalid subscript %q", expr, inner)
			}
			elems = append(elems, pathElem{index: idx, isIndex: true})

		default:
			return Path{}, fmt.Errorf("jsonpath %q: unexpected %q", expr, s[0])
		}
	}

	if len(elems) == 0 {
		return Path{}, fmt.Errorf("jsonpath %q selects the whole record", expr)
	}
	return Path{expr: expr, elems: elems}, nil
}

// String returns the expression the path was parsed from.
func (p Path) String() string {
	return p.expr
}

// Lookup walks the path through a decoded JSON value. Missing fields,
// out of range indexes and type mismatches report false.
func (p Path) Lookup(v any) (any, bool) {
	cur := v
	for _, e := range p.elems {
		if e.isIndex {
			arr, ok := cur.([]any)
			if !ok || e.index >= len(arr) {
				return nil, false
			}
			cur = arr[e.index]
			continue
		}
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = obj[e.key]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// JSONPaths is a parsed jsonpaths document.
type JSONPaths struct {
	Paths []Path
}

// ParseJSONPaths parses a document of the form {"jsonpaths": ["$['a']", ...]}.
func ParseJSONPaths(data []byte) (*JSONPaths, error) {
	var doc struct {
		JSONPaths []string `json:"jsonpaths"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse jsonpaths file: %w", err)
	}
	if len(doc.JSONPaths) == 0 {
		return nil, errors.New("jsonpaths file has no paths")
	}

	jp := &JSONPaths{Paths: make([]Path, 0, len(doc.JSONPaths))}
	for _, expr := range doc.JSONPaths {
		p, err := ParsePath(expr)
		if err != nil {
			return nil, err
		}
		jp.Paths = append(jp.Paths, p)
	}
	return jp, nil
}
