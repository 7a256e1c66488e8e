// Package datasets holds the small tables the case studies generate or enumerate,
// with summary statistics and CSV/XLSX export.
package datasets

import (
	"fmt"

	"github.com/YuminosukeSato/casebook/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Frame is a flat table of named float64 columns of equal length.
type Frame struct {
	names []string
	cols  [][]float64
	index map[string]int
}

// NewFrame builds a frame from parallel name and column slices. Columns are copied.
func NewFrame(names []string, columns [][]float64) (*Frame, error) {
	if len(names) != len(columns) {
		return nil, errors.NewDimensionError("NewFrame", len(names), len(columns), 1)
	}
	f := &Frame{index: make(map[string]int, len(names))}
	for j, name := range names {
		if err := f.AddColumn(name, columns[j]); err != nil {
			return nil, err
		}
	}
	return f, nil
}

// FromMatrix builds a frame from the columns of m.
func FromMatrix(names []string, m mat.Matrix) (*Frame, error) {
	r, c := m.Dims()
	if len(names) != c {
		return nil, errors.NewDimensionError("FromMatrix", c, len(names), 1)
	}
	cols := make([][]float64, c)
	for j := range cols {
		cols[j] = make([]float64, r)
		mat.Col(cols[j], j, m)
	}
	return NewFrame(names, cols)
}

// AddColumn appends a column. The name must be new and the length must match.
func (f *Frame) AddColumn(name string, values []float64) error {
	if f.index == nil {
		f.index = make(map[string]int)
	}
	if _, dup := f.index[name]; dup {
		return errors.NewValidationError("name", "duplicate column", name)
	}
	if len(f.cols) > 0 && len(values) != f.NRows() {
		return errors.NewDimensionError(fmt.Sprintf("AddColumn(%s)", name), f.NRows(), len(values), 0)
	}
	f.index[name] = len(f.names)
	f.names = append(f.names, name)
	f.cols = append(f.cols, append([]float64(nil), values...))
	return nil
}

// Names returns the column names in order.
func (f *Frame) Names() []string {
	return append([]string(nil), f.names...)
}

// NRows returns the number of rows.
func (f *Frame) NRows() int {
	if len(f.cols) == 0 {
		return 0
	}
	return len(f.cols[0])
}

// NCols returns the number of columns.
func (f *Frame) NCols() int {
	return len(f.cols)
}

// Column returns a copy of the named column.
func (f *Frame) Column(name string) ([]float64, error) {
	j, ok := f.index[name]
	if !ok {
		return nil, errors.NewValueError("Frame.Column", fmt.Sprintf("no column %q", name))
	}
	return append([]float64(nil), f.cols[j]...), nil
}

// Matrix returns the named columns as an n×k matrix. With no names every column is used.
func (f *Frame) Matrix(names ...string) (*mat.Dense, error) {
	if len(names) == 0 {
		names = f.names
	}
	n := f.NRows()
	if n == 0 {
		return nil, errors.NewModelError("Frame.Matrix", "empty frame", errors.ErrEmptyData)
	}
	m := mat.NewDense(n, len(names), nil)
	for k, name := range names {
		j, ok := f.index[name]
		if !ok {
			return nil, errors.NewValueError("Frame.Matrix", fmt.Sprintf("no column %q", name))
		}
		m.SetCol(k, f.cols[j])
	}
	return m, nil
}

// Head returns a frame with the first n rows.
func (f *Frame) Head(n int) *Frame {
	n = max(0, min(n, f.NRows()))
	out := &Frame{index: make(map[string]int, len(f.names))}
	for j, name := range f.names {
		out.index[name] = j
		out.names = append(out.names, name)
		out.cols = append(out.cols, append([]float64(nil), f.cols[j][:n]...))
	}
	return out
}

// Row returns the values of row i in column order.
func (f *Frame) Row(i int) []float64 {
	row := make([]float64, len(f.cols))
	for j, col := range f.cols {
		row[j] = col[i]
	}
	return row
}

// Categorical is a named column of string levels.
type Categorical struct {
	Name   string
	Values []string
}

// Levels returns the distinct values in order of first appearance.
func (c Categorical) Levels() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, v := range c.Values {
		if _, ok := seen[v]; !ok {
			seen[v] = struct{}{}
			out = append(out, v)
		}
	}
	return out
}

// CategoricalTable is a table whose columns all hold string levels.
type CategoricalTable struct {
	Columns []Categorical
}

// Column returns the named column.
func (t *CategoricalTable) Column(name string) (Categorical, error) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, nil
		}
	}
	return Categorical{}, errors.NewValueError("CategoricalTable.Column", fmt.Sprintf("no column %q", name))
}

// Names returns the column names in order.
func (t *CategoricalTable) Names() []string {
	out := make([]string, len(t.Columns))
	for j, c := range t.Columns {
		out[j] = c.Name
	}
	return out
}

// NRows returns the number of rows.
func (t *CategoricalTable) NRows() int {
	if len(t.Columns) == 0 {
		return 0
	}
	return len(t.Columns[0].Values)
}
