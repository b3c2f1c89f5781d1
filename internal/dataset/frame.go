// Package dataset holds the sales table in memory and hands out independent
// copies of it.
package dataset

import (
	"fmt"
	"math"
	"time"
)

// Kind is the storage type of a column.
type Kind int

const (
	KindText Kind = iota
	KindInt
	KindFloat
	KindDate
	KindBool
)

// String returns the dtype label shown to the model.
func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int64"
	case KindFloat:
		return "float64"
	case KindDate:
		return "datetime64[ns]"
	case KindBool:
		return "bool"
	default:
		return "object"
	}
}

// Column is a named vector. Values hold nil, float64, string, time.Time or
// bool; integer columns store integral float64 values.
type Column struct {
	Name   string
	Kind   Kind
	Values []any
}

// NewColumn builds a column and infers its kind from values.
func NewColumn(name string, values []any) *Column {
	return &Column{Name: name, Kind: InferKind(values), Values: values}
}

func (c *Column) Len() int {
	return len(c.Values)
}

// Copy returns a column with its own backing slice. Elements are immutable
// scalars so a shallow slice copy is a deep copy.
func (c *Column) Copy() *Column {
	values := make([]any, len(c.Values))
	copy(values, c.Values)
	return &Column{Name: c.Name, Kind: c.Kind, Values: values}
}

// NonNull counts values that are not missing.
func (c *Column) NonNull() int {
	n := 0
	for _, v := range c.Values {
		if !IsNull(v) {
			n++
		}
	}
	return n
}

// Unique returns the distinct non-null values in order of first appearance.
func (c *Column) Unique() []any {
	seen := make(map[any]struct{}, len(c.Values))
	out := make([]any, 0)
	for _, v := range c.Values {
		if IsNull(v) {
			continue
		}
		key := v
		if t, ok := v.(time.Time); ok {
			key = t.UnixNano()
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, v)
	}
	return out
}

// IsNull reports whether v is a missing value.
func IsNull(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case float64:
		return math.IsNaN(x)
	}
	return false
}

// InferKind picks the narrowest kind that holds every non-null value.
func InferKind(values []any) Kind {
	kind := Kind(-1)
	for _, v := range values {
		var k Kind
		switch x := v.(type) {
		case nil:
			continue
		case float64:
			if math.IsNaN(x) {
				continue
			}
			if x == math.Trunc(x) && !math.IsInf(x, 0) {
				k = KindInt
			} else {
				k = KindFloat
			}
		case time.Time:
			k = KindDate
		case bool:
			k = KindBool
		default:
			return KindText
		}
		switch {
		case kind == -1:
			kind = k
		case kind == k:
		case (kind == KindInt && k == KindFloat) || (kind == KindFloat && k == KindInt):
			kind = KindFloat
		default:
			return KindText
		}
	}
	if kind == -1 {
		return KindFloat
	}
	return kind
}

// Frame is a column-oriented table with a fixed row count.
type Frame struct {
	cols  []*Column
	index map[string]int
	rows  int
}

// NewFrame assembles columns of equal length.
func NewFrame(cols ...*Column) (*Frame, error) {
	f := &Frame{index: make(map[string]int, len(cols))}
	for _, c := range cols {
		if err := f.Set(c); err != nil {
			return nil, err
		}
	}
	return f, nil
}

// MustFrame is NewFrame for literals in tests and fixtures.
func MustFrame(cols ...*Column) *Frame {
	f, err := NewFrame(cols...)
	if err != nil {
		panic(err)
	}
	return f
}

func (f *Frame) Len() int {
	return f.rows
}

// Width is the number of columns.
func (f *Frame) Width() int {
	return len(f.cols)
}

// Names returns the column names in order.
func (f *Frame) Names() []string {
	names := make([]string, len(f.cols))
	for i, c := range f.cols {
		names[i] = c.Name
	}
	return names
}

// Columns returns the frame's columns. Callers must not modify them.
func (f *Frame) Columns() []*Column {
	out := make([]*Column, len(f.cols))
	copy(out, f.cols)
	return out
}

func (f *Frame) Column(name string) (*Column, bool) {
	i, ok := f.index[name]
	if !ok {
		return nil, false
	}
	return f.cols[i], true
}

// Set replaces the column with the same name or appends a new one.
func (f *Frame) Set(c *Column) error {
	if len(f.cols) > 0 && c.Len() != f.rows {
		return fmt.Errorf("column %q has %d rows, frame has %d", c.Name, c.Len(), f.rows)
	}
	if len(f.cols) == 0 {
		f.rows = c.Len()
	}
	if i, ok := f.index[c.Name]; ok {
		f.cols[i] = c
		return nil
	}
	f.index[c.Name] = len(f.cols)
	f.cols = append(f.cols, c)
	return nil
}

// Copy returns a frame that shares nothing mutable with f.
func (f *Frame) Copy() *Frame {
	out := &Frame{
		cols:  make([]*Column, len(f.cols)),
		index: make(map[string]int, len(f.cols)),
		rows:  f.rows,
	}
	for i, c := range f.cols {
		out.cols[i] = c.Copy()
		out.index[c.Name] = i
	}
	return out
}

// Take returns the rows at idx, in that order.
func (f *Frame) Take(idx []int) *Frame {
	out := &Frame{
		cols:  make([]*Column, len(f.cols)),
		index: make(map[string]int, len(f.cols)),
		rows:  len(idx),
	}
	for i, c := range f.cols {
		values := make([]any, len(idx))
		for j, r := range idx {
			values[j] = c.Values[r]
		}
		out.cols[i] = &Column{Name: c.Name, Kind: c.Kind, Values: values}
		out.index[c.Name] = i
	}
	return out
}

// Head returns the first n rows.
func (f *Frame) Head(n int) *Frame {
	if n > f.rows {
		n = f.rows
	}
	if n < 0 {
		n = 0
	}
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	return f.Take(idx)
}

// Row returns row i keyed by column name.
func (f *Frame) Row(i int) map[string]any {
	row := make(map[string]any, len(f.cols))
	for _, c := range f.cols {
		row[c.Name] = c.Values[i]
	}
	return row
}
