package core

// table.go provides the generic tabular container used for raw sources and
// flattened candidate tables.
//
// A Table always carries its column set, even when it holds no rows, so joins
// against an empty source fail on data rather than on a missing column.

import "fmt"

// Row maps column names to cell values.
type Row map[string]any

// Table is a named, column-ordered collection of rows.
type Table struct {
	Name    string
	Columns []string
	Rows    []Row
}

// NewTable creates an empty table with the given column set.
func NewTable(name string, columns ...string) *Table {
	return &Table{
		Name:    name,
		Columns: columns,
		Rows:    []Row{},
	}
}

// Append adds a row to the table.
func (t *Table) Append(row Row) {
	t.Rows = append(t.Rows, row)
}

// Len returns the number of rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// HasColumn reports whether the column is part of the table's column set.
func (t *Table) HasColumn(name string) bool {
	for _, c := range t.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// Require returns a ShapeError naming the first column missing from the table.
func (t *Table) Require(columns ...string) error {
	if t == nil {
		return &ShapeError{Source: "", Key: "", Detail: "table is absent"}
	}
	for _, c := range columns {
		if !t.HasColumn(c) {
			return &ShapeError{Source: t.Name, Key: c, Detail: "missing column"}
		}
	}
	return nil
}

// Select projects the table onto the given columns, in the given order.
// Columns not listed are dropped. A listed column that the table lacks is a shape error.
func (t *Table) Select(columns ...string) (*Table, error) {
	if err := t.Require(columns...); err != nil {
		return nil, err
	}

	out := NewTable(t.Name, columns...)
	out.Rows = make([]Row, 0, len(t.Rows))
	for _, row := range t.Rows {
		projected := make(Row, len(columns))
		for _, c := range columns {
			projected[c] = row[c]
		}
		out.Rows = append(out.Rows, projected)
	}
	return out, nil
}

// Tables maps logical source names to tables.
type Tables map[string]*Table

// Lookup returns the named table or a shape error when it is absent.
func (ts Tables) Lookup(name string) (*Table, error) {
	t, ok := ts[name]
	if !ok || t == nil {
		return nil, &ShapeError{Source: name, Detail: "source table is absent"}
	}
	return t, nil
}

// String implements fmt.Stringer for log output.
func (t *Table) String() string {
	return fmt.Sprintf("%s(%d cols, %d rows)", t.Name, len(t.Columns), len(t.Rows))
}
