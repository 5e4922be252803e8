// Package store persists pipeline output: layered CSV tables and markdown
// results on disk, and run records in an embedded badgerhold database.
package store

import (
	"strconv"
	"strings"
)

// Table is a rectangular set of string cells with a header row.
type Table struct {
	Columns []string
	Rows    [][]string
}

// NewTable returns an empty table with the given header.
func NewTable(columns ...string) *Table {
	return &Table{Columns: columns}
}

// Add appends a row. Short rows are padded and long rows truncated to the
// header width.
func (t *Table) Add(cells ...string) {
	row := make([]string, len(t.Columns))
	copy(row, cells)
	t.Rows = append(t.Rows, row)
}

// Len returns the number of data rows.
func (t *Table) Len() int { return len(t.Rows) }

// ── Cell formatting ──

// Float renders an optional number; nil becomes an empty cell.
func Float(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

// Int renders an optional integer.
func Int(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

// Bool renders an optional boolean.
func Bool(v *bool) string {
	if v == nil {
		return ""
	}
	return strconv.FormatBool(*v)
}

// Str renders an optional string.
func Str(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

// List joins values with sep.
func List(values []string, sep string) string {
	return strings.Join(values, sep)
}
