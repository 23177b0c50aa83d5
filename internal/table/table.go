package table

// Package table holds prediction tables: the typed rows parsed out of a
// NetMHCpan response, their CSV persistence and the hit filter applied on
// top of them.

import (
	"fmt"
	"strconv"

	"netmhc/internal/schema"
)

// NullMarker fills missing fields and stands in for values that failed to
// coerce.
const NullMarker = "None"

// Value is one coerced field. Raw always keeps the token as read.
type Value struct {
	Raw   string
	Kind  schema.Kind
	Int   int64
	Float float64
	Valid bool
}

// Coerce converts raw into a value of kind k. Strings are valid unless they
// are the null marker; numbers are valid only when they parse.
func Coerce(raw string, k schema.Kind) Value {
	v := Value{Raw: raw, Kind: k}
	if raw == NullMarker || raw == "" {
		return v
	}
	switch k {
	case schema.Int:
		if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
			v.Int, v.Valid = n, true
		} else if f, err := strconv.ParseFloat(raw, 64); err == nil && f == float64(int64(f)) {
			v.Int, v.Valid = int64(f), true
		}
	case schema.Float:
		if f, err := strconv.ParseFloat(raw, 64); err == nil {
			v.Float, v.Valid = f, true
		}
	default:
		v.Valid = true
	}
	return v
}

// Number returns the value as a float64 for numeric kinds.
func (v Value) Number() (float64, bool) {
	if !v.Valid {
		return 0, false
	}
	switch v.Kind {
	case schema.Int:
		return float64(v.Int), true
	case schema.Float:
		return v.Float, true
	}
	if f, err := strconv.ParseFloat(v.Raw, 64); err == nil {
		return f, true
	}
	return 0, false
}

// String renders the value; invalid values render as the null marker.
func (v Value) String() string {
	if !v.Valid {
		return NullMarker
	}
	switch v.Kind {
	case schema.Int:
		return strconv.FormatInt(v.Int, 10)
	case schema.Float:
		return strconv.FormatFloat(v.Float, 'f', -1, 64)
	}
	return v.Raw
}

// Row is one record, with exactly one value per schema column.
type Row []Value

// Table is an ordered list of rows under one schema. A Table with no rows is
// a finished job without data, which differs from having no table at all.
type Table struct {
	Schema schema.Schema
	Rows   []Row
}

// New returns an empty table.
func New(s schema.Schema) *Table {
	return &Table{Schema: s}
}

// FromRecords builds a table from normalised string records, coercing each
// field to its column kind. Records must already have s.Len() fields.
func FromRecords(s schema.Schema, records [][]string) (*Table, error) {
	t := New(s)
	for i, rec := range records {
		if len(rec) != s.Len() {
			return nil, fmt.Errorf("record %d has %d fields, schema has %d", i, len(rec), s.Len())
		}
		t.Append(rec)
	}
	return t, nil
}

// Append coerces rec and adds it as a row. rec must have s.Len() fields.
func (t *Table) Append(rec []string) {
	row := make(Row, t.Schema.Len())
	for j := range row {
		row[j] = Coerce(rec[j], t.Schema.Column(j).Kind)
	}
	t.Rows = append(t.Rows, row)
}

// Len returns the number of rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// Get returns the named field of row i.
func (t *Table) Get(i int, col string) (Value, bool) {
	j := t.Schema.Index(col)
	if j < 0 || i < 0 || i >= len(t.Rows) {
		return Value{}, false
	}
	return t.Rows[i][j], true
}

// Concat appends the rows of every table to a new table. All tables must
// share the same class.
func Concat(tables ...*Table) (*Table, error) {
	if len(tables) == 0 {
		return nil, fmt.Errorf("concat: no tables")
	}
	out := New(tables[0].Schema)
	for _, t := range tables {
		if t.Schema.Class() != out.Schema.Class() {
			return nil, fmt.Errorf("concat: class %s table mixed with class %s", t.Schema.Class(), out.Schema.Class())
		}
		out.Rows = append(out.Rows, t.Rows...)
	}
	return out, nil
}
