// Package table is the column store the reassembler writes into: named,
// typed columns of nullable cells, all of the same length.
package table

import (
	"errors"
	"fmt"
	"strings"
)

// ErrShape is returned when columns cannot form a rectangular table or two
// tables cannot be stacked.
var ErrShape = errors.New("table shape mismatch")

// DType is the declared type of a column. Cells are always kept in their
// textual form; the type only governs which columns may be stacked.
type DType int

const (
	// Null is the type of a column whose type is unknown. It stacks with anything.
	Null DType = iota
	String
	Float
	Time
)

func (d DType) String() string {
	switch d {
	case String:
		return "string"
	case Float:
		return "float"
	case Time:
		return "time"
	default:
		return "null"
	}
}

// ParseDType maps a service field type (e.g. "DOUBLE", "DATE") to a DType.
func ParseDType(s string) DType {
	switch strings.ToUpper(s) {
	case "DOUBLE", "FLOAT", "LONG", "INTEGER", "INT", "NUMBER", "DECIMAL":
		return Float
	case "DATE", "DATETIME", "TIME", "TIMESTAMP":
		return Time
	case "":
		return Null
	default:
		return String
	}
}

// Compatible reports whether columns of types a and b may be stacked.
func Compatible(a, b DType) bool {
	return a == b || a == Null || b == Null
}

// Cell is one nullable value.
type Cell struct {
	Value string
	Valid bool
}

// Str returns a non-null cell.
func Str(s string) Cell {
	return Cell{Value: s, Valid: true}
}

// NullCell returns a null cell.
func NullCell() Cell {
	return Cell{}
}

func (c Cell) String() string {
	if !c.Valid {
		return ""
	}
	return c.Value
}

// Column is a named, typed sequence of cells.
type Column struct {
	Name  string
	Type  DType
	Cells []Cell
}

// NullColumn returns a column of n null cells.
func NullColumn(name string, typ DType, n int) Column {
	return Column{Name: name, Type: typ, Cells: make([]Cell, n)}
}

// Table is an immutable set of equal-length columns.
type Table struct {
	cols  []Column
	index map[string]int
	rows  int
}

// New builds a table. Column names must be unique and non-empty, and every
// column must have the same number of cells.
func New(cols ...Column) (*Table, error) {
	t := &Table{
		cols:  make([]Column, len(cols)),
		index: make(map[string]int, len(cols)),
	}
	for i, c := range cols {
		if c.Name == "" {
			return nil, fmt.Errorf("%w: column %d has no name", ErrShape, i)
		}
		if _, dup := t.index[c.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate column %q", ErrShape, c.Name)
		}
		if i == 0 {
			t.rows = len(c.Cells)
		} else if len(c.Cells) != t.rows {
			return nil, fmt.Errorf("%w: column %q has %d rows, want %d",
				ErrShape, c.Name, len(c.Cells), t.rows)
		}
		cells := make([]Cell, len(c.Cells))
		copy(cells, c.Cells)
		t.cols[i] = Column{Name: c.Name, Type: c.Type, Cells: cells}
		t.index[c.Name] = i
	}
	return t, nil
}

// NumRows returns the number of rows.
func (t *Table) NumRows() int { return t.rows }

// NumCols returns the number of columns.
func (t *Table) NumCols() int { return len(t.cols) }

// Names returns the column names in order.
func (t *Table) Names() []string {
	names := make([]string, len(t.cols))
	for i, c := range t.cols {
		names[i] = c.Name
	}
	return names
}

// Has reports whether the table has a column with the given name.
func (t *Table) Has(name string) bool {
	_, ok := t.index[name]
	return ok
}

// Column returns the named column.
func (t *Table) Column(name string) (Column, bool) {
	i, ok := t.index[name]
	if !ok {
		return Column{}, false
	}
	return t.cols[i], true
}

// ColumnAt returns the i-th column.
func (t *Table) ColumnAt(i int) Column {
	return t.cols[i]
}

// Row returns the cells of row i in column order.
func (t *Table) Row(i int) []Cell {
	row := make([]Cell, len(t.cols))
	for j, c := range t.cols {
		row[j] = c.Cells[i]
	}
	return row
}

// CSV returns row i as strings, nulls rendered empty.
func (t *Table) CSV(i int) []string {
	row := make([]string, len(t.cols))
	for j, c := range t.cols {
		row[j] = c.Cells[i].String()
	}
	return row
}

// WithColumns returns a new table with the given columns appended.
func (t *Table) WithColumns(cols ...Column) (*Table, error) {
	all := make([]Column, 0, len(t.cols)+len(cols))
	all = append(all, t.cols...)
	all = append(all, cols...)
	return New(all...)
}

// Select returns a new table with exactly the named columns in that order.
func (t *Table) Select(names ...string) (*Table, error) {
	cols := make([]Column, len(names))
	for i, name := range names {
		c, ok := t.Column(name)
		if !ok {
			return nil, fmt.Errorf("%w: no column %q", ErrShape, name)
		}
		cols[i] = c
	}
	return New(cols...)
}

// VStack concatenates b below a. Both tables must have the same column
// names in the same order and compatible column types.
func VStack(a, b *Table) (*Table, error) {
	if a.NumCols() != b.NumCols() {
		return nil, fmt.Errorf("%w: %d columns vs %d", ErrShape, a.NumCols(), b.NumCols())
	}
	cols := make([]Column, a.NumCols())
	for i, ca := range a.cols {
		cb := b.cols[i]
		if ca.Name != cb.Name {
			return nil, fmt.Errorf("%w: column %d is %q vs %q", ErrShape, i, ca.Name, cb.Name)
		}
		if !Compatible(ca.Type, cb.Type) {
			return nil, fmt.Errorf("%w: column %q is %s vs %s", ErrShape, ca.Name, ca.Type, cb.Type)
		}
		typ := ca.Type
		if typ == Null {
			typ = cb.Type
		}
		cells := make([]Cell, 0, len(ca.Cells)+len(cb.Cells))
		cells = append(cells, ca.Cells...)
		cells = append(cells, cb.Cells...)
		cols[i] = Column{Name: ca.Name, Type: typ, Cells: cells}
	}
	return New(cols...)
}
