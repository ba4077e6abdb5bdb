// Package storage provides the in-memory tables the edit engine works on.
//
// What: An ordered, header-named columnar table. Every column carries a
// schema-level ColType so callers can tell textual columns from numeric ones
// without looking at cells, and every row carries a stable integer label that
// survives masking and rewriting.
// How: Columns store their cells as []any (nil, int64, float64, bool, string,
// time.Time). Tables are treated as immutable values: WithColumn returns a new
// table that shares untouched columns and swaps in the replacement.
// Why: Column-at-a-time replacement keeps the caller's table intact, so a
// result can always be compared against (or rolled back to) its input.
package storage

import (
	"fmt"
	"strings"
)

// ColType enumerates supported column data types.
type ColType int

const (
	// Integer types
	IntType ColType = iota

	// Floating point types
	Float64Type

	// String and character types
	StringType
	TextType // alias for StringType

	// Boolean type
	BoolType

	// Time types
	TimeType
	DateType

	// Complex types
	JsonType

	// InterfaceType holds mixed values, like an untyped spreadsheet column.
	InterfaceType
)

var colTypeToString = map[ColType]string{
	IntType:       "INT",
	Float64Type:   "FLOAT64",
	StringType:    "STRING",
	TextType:      "TEXT",
	BoolType:      "BOOL",
	TimeType:      "TIME",
	DateType:      "DATE",
	JsonType:      "JSON",
	InterfaceType: "INTERFACE",
}

func (t ColType) String() string {
	if s, ok := colTypeToString[t]; ok {
		return s
	}
	return "UNKNOWN"
}

// IsText reports whether cells of this type are treated as text by default.
// Mixed (INTERFACE) columns count as text, like an object column in a frame.
func (t ColType) IsText() bool {
	switch t {
	case StringType, TextType, InterfaceType:
		return true
	}
	return false
}

// IsNumeric reports whether the column stores numbers.
func (t ColType) IsNumeric() bool {
	return t == IntType || t == Float64Type
}

// Column holds column schema information and its cells.
type Column struct {
	Name   string
	Type   ColType
	Values []any
}

// Table stores columns along with row labels and a name index.
type Table struct {
	Name   string
	Cols   []*Column
	Labels []int
	colPos map[string]int
	exact  map[string]int
}

// NewTable creates a new Table. All columns must have the same length; nil
// labels default to 0..n-1.
func NewTable(name string, cols []Column, labels []int) (*Table, error) {
	n := -1
	out := make([]*Column, len(cols))
	for i := range cols {
		c := cols[i]
		if n == -1 {
			n = len(c.Values)
		} else if len(c.Values) != n {
			return nil, fmt.Errorf("column %q has %d rows, expected %d", c.Name, len(c.Values), n)
		}
		out[i] = &c
	}
	if n == -1 {
		n = len(labels)
	}
	if labels == nil {
		labels = make([]int, n)
		for i := range labels {
			labels[i] = i
		}
	} else if len(labels) != n {
		return nil, fmt.Errorf("table %q has %d labels for %d rows", name, len(labels), n)
	}
	t := &Table{Name: name, Cols: out, Labels: labels}
	t.reindex()
	return t, nil
}

// MustTable is NewTable for fixtures and tests; it panics on error.
func MustTable(name string, cols []Column) *Table {
	t, err := NewTable(name, cols, nil)
	if err != nil {
		panic(err)
	}
	return t
}

func (t *Table) reindex() {
	t.colPos = make(map[string]int, len(t.Cols))
	t.exact = make(map[string]int, len(t.Cols))
	for i, c := range t.Cols {
		lc := strings.ToLower(c.Name)
		if _, dup := t.colPos[lc]; !dup {
			t.colPos[lc] = i
		}
		t.exact[c.Name] = i
	}
}

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.Labels) }

// Headers returns the column names in order.
func (t *Table) Headers() []string {
	out := make([]string, len(t.Cols))
	for i, c := range t.Cols {
		out[i] = c.Name
	}
	return out
}

// Column returns the column with exactly this name.
func (t *Table) Column(name string) (*Column, bool) {
	i, ok := t.exact[name]
	if !ok {
		return nil, false
	}
	return t.Cols[i], true
}

// ColIndex returns the zero-based index of the named column, ignoring case.
func (t *Table) ColIndex(name string) (int, error) {
	if i, ok := t.exact[name]; ok {
		return i, nil
	}
	i, ok := t.colPos[strings.ToLower(name)]
	if !ok {
		return -1, fmt.Errorf("unknown column %q on table %q", name, t.Name)
	}
	return i, nil
}

// TextColumns returns the names of columns whose type is textual.
func (t *Table) TextColumns() []string {
	var out []string
	for _, c := range t.Cols {
		if c.Type.IsText() {
			out = append(out, c.Name)
		}
	}
	return out
}

// WithColumn returns a copy of t in which the named column is replaced by a
// new column holding values. The receiver is left untouched.
func (t *Table) WithColumn(name string, typ ColType, values []any) (*Table, error) {
	i, ok := t.exact[name]
	if !ok {
		return nil, fmt.Errorf("unknown column %q on table %q", name, t.Name)
	}
	if len(values) != t.Len() {
		return nil, fmt.Errorf("column %q: got %d values for %d rows", name, len(values), t.Len())
	}
	cols := make([]*Column, len(t.Cols))
	copy(cols, t.Cols)
	cols[i] = &Column{Name: name, Type: typ, Values: values}
	nt := &Table{Name: t.Name, Cols: cols, Labels: t.Labels}
	nt.reindex()
	return nt, nil
}

// Record returns row i as a header -> JSON-safe value map.
func (t *Table) Record(i int) map[string]any {
	rec := make(map[string]any, len(t.Cols))
	for _, c := range t.Cols {
		rec[c.Name] = JSONSafe(c.Values[i])
	}
	return rec
}

// Head returns up to n leading rows as records.
func (t *Table) Head(n int) []map[string]any {
	if n > t.Len() {
		n = t.Len()
	}
	if n < 0 {
		n = 0
	}
	out := make([]map[string]any, n)
	for i := 0; i < n; i++ {
		out[i] = t.Record(i)
	}
	return out
}
