package analysis

import (
	"math"
	"time"

	"sales-insight-workers/internal/dataset"
)

// indexer is the .iloc / .loc accessor of a Series or Frame.
type indexer struct {
	label  bool
	target any
}

func getItem(v, key any) (any, error) {
	switch x := v.(type) {
	case *Frame:
		return frameItem(x, key)
	case *Series:
		return seriesItem(x, key)
	case *GroupBy:
		return x.selectColumns(key)
	case *indexer:
		if x.label {
			return locItem(x.target, key)
		}
		return ilocItem(x.target, key)
	case *Dict:
		if !hashable(key) {
			return nil, typeErrorf("unhashable type: '%s'", typeName(key))
		}
		val, ok := x.Get(key)
		if !ok {
			return nil, newError("KeyError", "%s", pyRepr(key))
		}
		return val, nil
	case []any:
		return sequenceItem(x, key, func(items []any) any { return items })
	case Tuple:
		return sequenceItem(x, key, func(items []any) any { return Tuple(items) })
	case string:
		runes := []rune(x)
		items := make([]any, len(runes))
		for i, r := range runes {
			items[i] = string(r)
		}
		return sequenceItem(items, key, func(items []any) any {
			s := ""
			for _, c := range items {
				s += c.(string)
			}
			return s
		})
	}
	return nil, typeErrorf("'%s' object is not subscriptable", typeName(v))
}

func sequenceItem(items []any, key any, wrap func([]any) any) (any, error) {
	if s, ok := key.(slice); ok {
		lo, hi := s.resolve(len(items))
		return wrap(append([]any(nil), items[lo:hi]...)), nil
	}
	i, err := asInt(key)
	if err != nil {
		return nil, typeErrorf("indices must be integers or slices, not %s", typeName(key))
	}
	if i < 0 {
		i += len(items)
	}
	if i < 0 || i >= len(items) {
		return nil, newError("IndexError", "index out of range")
	}
	return items[i], nil
}

func frameItem(f *Frame, key any) (any, error) {
	switch k := key.(type) {
	case string:
		return f.column(k)
	case []any:
		return f.project(k)
	case *Series:
		rows, err := maskRows(k, f.index)
		if err != nil {
			return nil, err
		}
		return f.take(rows), nil
	case slice:
		return f.take(k.rows(f.Len())), nil
	}
	return nil, newError("KeyError", "%s", pyRepr(key))
}

func (f *Frame) project(names []any) (*Frame, error) {
	cols := make([]*dataset.Column, len(names))
	for i, n := range names {
		name, ok := n.(string)
		if !ok {
			return nil, newError("KeyError", "%s", pyRepr(n))
		}
		col, ok := f.data.Column(name)
		if !ok {
			return nil, newError("KeyError", "\"['%s'] not in index\"", name)
		}
		cols[i] = col
	}
	data, err := dataset.NewFrame(cols...)
	if err != nil {
		return nil, valueErrorf("%s", err.Error())
	}
	return &Frame{data: data, index: f.index}, nil
}

// maskRows returns the positions where mask is true.
func maskRows(mask *Series, index *Index) ([]int, error) {
	values := mask.Values
	if mask.Len() != index.Len() {
		return nil, valueErrorf("Item wrong length %d instead of %d.", mask.Len(), index.Len())
	}
	if !sameLabels(mask.Index, index) {
		aligned := make([]any, index.Len())
		for i, l := range index.Labels {
			if p, ok := mask.Index.position(l); ok {
				aligned[i] = mask.Values[p]
			}
		}
		values = aligned
	}
	rows := make([]int, 0, len(values))
	for i, v := range values {
		switch b := v.(type) {
		case bool:
			if b {
				rows = append(rows, i)
			}
		case nil:
		default:
			if isNull(v) {
				continue
			}
			return nil, newError("IndexError", "boolean index did not match: found %s values", typeName(v))
		}
	}
	return rows, nil
}

func isMask(v any) bool {
	s, ok := v.(*Series)
	if !ok {
		return false
	}
	for _, e := range s.Values {
		if _, ok := e.(bool); !ok && e != nil {
			return false
		}
	}
	return true
}

func seriesItem(s *Series, key any) (any, error) {
	switch k := key.(type) {
	case *Series:
		if isMask(k) {
			rows, err := maskRows(k, s.Index)
			if err != nil {
				return nil, err
			}
			return s.take(rows), nil
		}
	case slice:
		return s.take(k.rows(s.Len())), nil
	case []any:
		rows := make([]int, len(k))
		for i, label := range k {
			p, ok := s.Index.position(label)
			if !ok {
				return nil, newError("KeyError", "%s", pyRepr(label))
			}
			rows[i] = p
		}
		return s.take(rows), nil
	}
	if p, ok := s.Index.position(key); ok {
		return s.Values[p], nil
	}
	if f, ok := key.(float64); ok && f == math.Trunc(f) && !numericLabels(s.Index) {
		return ilocItem(s, key)
	}
	return nil, newError("KeyError", "%s", pyRepr(key))
}

func numericLabels(ix *Index) bool {
	for _, l := range ix.Labels {
		if _, ok := l.(float64); ok {
			return true
		}
	}
	return false
}

// positions resolves an iloc row or column spec against n entries. scalar
// reports whether spec selected a single entry.
func positions(spec any, n int) (rows []int, scalar bool, err error) {
	switch s := spec.(type) {
	case slice:
		return s.rows(n), false, nil
	case []any:
		out := make([]int, len(s))
		for i, v := range s {
			p, err := asInt(v)
			if err != nil {
				return nil, false, err
			}
			if p < 0 {
				p += n
			}
			if p < 0 || p >= n {
				return nil, false, newError("IndexError", "positional indexers are out-of-bounds")
			}
			out[i] = p
		}
		return out, false, nil
	}
	p, err := asInt(spec)
	if err != nil {
		return nil, false, typeErrorf("cannot index by location with %s", typeName(spec))
	}
	if p < 0 {
		p += n
	}
	if p < 0 || p >= n {
		return nil, false, newError("IndexError", "single positional indexer is out-of-bounds")
	}
	return []int{p}, true, nil
}

func ilocItem(target, key any) (any, error) {
	switch t := target.(type) {
	case *Series:
		rows, scalar, err := positions(key, t.Len())
		if err != nil {
			return nil, err
		}
		if scalar {
			return t.Values[rows[0]], nil
		}
		return t.take(rows), nil
	case *Frame:
		rowSpec, colSpec := key, any(slice{})
		if tup, ok := key.(Tuple); ok {
			if len(tup) != 2 {
				return nil, newError("IndexError", "too many indexers")
			}
			rowSpec, colSpec = tup[0], tup[1]
		}
		rows, rowScalar, err := positions(rowSpec, t.Len())
		if err != nil {
			return nil, err
		}
		cols, colScalar, err := positions(colSpec, t.data.Width())
		if err != nil {
			return nil, err
		}
		return t.selectBlock(rows, rowScalar, cols, colScalar)
	}
	return nil, typeErrorf("'%s' object has no positional indexer", typeName(target))
}

// selectBlock returns a value, a row Series, a column Series or a Frame.
func (f *Frame) selectBlock(rows []int, rowScalar bool, cols []int, colScalar bool) (any, error) {
	all := f.data.Columns()
	switch {
	case rowScalar && colScalar:
		return all[cols[0]].Values[rows[0]], nil
	case rowScalar:
		labels := make([]any, len(cols))
		values := make([]any, len(cols))
		for i, c := range cols {
			labels[i] = all[c].Name
			values[i] = all[c].Values[rows[0]]
		}
		return &Series{Name: f.index.Labels[rows[0]], Index: &Index{Names: []string{""}, Labels: labels}, Values: values}, nil
	case colScalar:
		s := &Series{Name: all[cols[0]].Name, Index: f.index, Values: all[cols[0]].Values}
		return s.take(rows), nil
	}
	names := make([]any, len(cols))
	for i, c := range cols {
		names[i] = all[c].Name
	}
	projected, err := f.project(names)
	if err != nil {
		return nil, err
	}
	return projected.take(rows), nil
}

func locItem(target, key any) (any, error) {
	switch t := target.(type) {
	case *Series:
		return seriesItem(t, key)
	case *Frame:
		rowSpec, colSpec := key, any(nil)
		if tup, ok := key.(Tuple); ok {
			if len(tup) != 2 {
				return nil, newError("IndexError", "too many indexers")
			}
			rowSpec, colSpec = tup[0], tup[1]
		}
		rows, rowScalar, err := t.labelRows(rowSpec)
		if err != nil {
			return nil, err
		}
		cols, colScalar, err := t.labelColumns(colSpec)
		if err != nil {
			return nil, err
		}
		return t.selectBlock(rows, rowScalar, cols, colScalar)
	}
	return nil, typeErrorf("'%s' object has no label indexer", typeName(target))
}

func (f *Frame) labelRows(spec any) ([]int, bool, error) {
	switch s := spec.(type) {
	case slice:
		return s.rows(f.Len()), false, nil
	case *Series:
		rows, err := maskRows(s, f.index)
		return rows, false, err
	case []any:
		rows := make([]int, len(s))
		for i, label := range s {
			p, ok := f.index.position(label)
			if !ok {
				return nil, false, newError("KeyError", "%s", pyRepr(label))
			}
			rows[i] = p
		}
		return rows, false, nil
	}
	p, ok := f.index.position(spec)
	if !ok {
		return nil, false, newError("KeyError", "%s", pyRepr(spec))
	}
	return []int{p}, true, nil
}

func (f *Frame) labelColumns(spec any) ([]int, bool, error) {
	names := f.names()
	find := func(v any) (int, error) {
		name, _ := v.(string)
		for i, n := range names {
			if n == name {
				return i, nil
			}
		}
		return 0, newError("KeyError", "%s", pyRepr(v))
	}
	switch s := spec.(type) {
	case nil:
		return slice{}.rows(len(names)), false, nil
	case slice:
		return s.rows(len(names)), false, nil
	case []any:
		out := make([]int, len(s))
		for i, v := range s {
			p, err := find(v)
			if err != nil {
				return nil, false, err
			}
			out[i] = p
		}
		return out, false, nil
	}
	p, err := find(spec)
	if err != nil {
		return nil, false, err
	}
	return []int{p}, true, nil
}

func setItem(container, key, value any) error {
	switch c := container.(type) {
	case *Frame:
		name, ok := key.(string)
		if !ok {
			return typeErrorf("column names must be strings")
		}
		values, err := broadcast(value, c.index)
		if err != nil {
			return err
		}
		if err := c.data.Set(dataset.NewColumn(name, values)); err != nil {
			return valueErrorf("%s", err.Error())
		}
		return nil
	case *Dict:
		if !hashable(key) {
			return typeErrorf("unhashable type: '%s'", typeName(key))
		}
		c.Set(key, value)
		return nil
	case []any:
		i, err := asInt(key)
		if err != nil {
			return typeErrorf("list indices must be integers")
		}
		if i < 0 {
			i += len(c)
		}
		if i < 0 || i >= len(c) {
			return newError("IndexError", "list assignment index out of range")
		}
		c[i] = value
		return nil
	case *indexer:
		return typeErrorf("assignment through .loc/.iloc is not supported; assign a whole column instead")
	}
	return typeErrorf("'%s' object does not support item assignment", typeName(container))
}

// broadcast shapes value into one cell per row of index.
func broadcast(value any, index *Index) ([]any, error) {
	n := index.Len()
	switch v := value.(type) {
	case *Series:
		if sameLabels(v.Index, index) {
			return append([]any(nil), v.Values...), nil
		}
		out := make([]any, n)
		for i, l := range index.Labels {
			if p, ok := v.Index.position(l); ok {
				out[i] = v.Values[p]
			}
		}
		return out, nil
	case []any:
		if len(v) != n {
			return nil, valueErrorf("Length of values (%d) does not match length of index (%d)", len(v), n)
		}
		return append([]any(nil), v...), nil
	case *Frame, *Dict, *GroupBy:
		return nil, typeErrorf("cannot assign a %s to a column", typeName(value))
	}
	out := make([]any, n)
	for i := range out {
		out[i] = value
	}
	return out, nil
}

func getAttr(v any, name string) (any, error) {
	switch x := v.(type) {
	case *Frame:
		switch name {
		case "shape":
			return Tuple{float64(x.Len()), float64(x.data.Width())}, nil
		case "columns":
			names := x.names()
			out := make([]any, len(names))
			for i, n := range names {
				out[i] = n
			}
			return out, nil
		case "index":
			return append([]any(nil), x.index.Labels...), nil
		case "empty":
			return x.Len() == 0 || x.data.Width() == 0, nil
		case "size":
			return float64(x.Len() * x.data.Width()), nil
		case "iloc":
			return &indexer{target: x}, nil
		case "loc":
			return &indexer{label: true, target: x}, nil
		}
		if _, ok := x.data.Column(name); ok {
			return x.column(name)
		}
	case *Series:
		switch name {
		case "shape":
			return Tuple{float64(x.Len())}, nil
		case "index":
			return append([]any(nil), x.Index.Labels...), nil
		case "values":
			return append([]any(nil), x.Values...), nil
		case "name":
			return x.Name, nil
		case "empty":
			return x.Len() == 0, nil
		case "size":
			return float64(x.Len()), nil
		case "iloc":
			return &indexer{target: x}, nil
		case "loc":
			return &indexer{label: true, target: x}, nil
		case "str":
			return &strAccessor{s: x}, nil
		case "dt":
			return newDtAccessor(x)
		}
	case *GroupBy:
		switch name {
		case "ngroups":
			return float64(len(x.groups)), nil
		}
		if _, ok := x.frame.data.Column(name); ok {
			return x.selectColumns(name)
		}
	case *dtAccessor:
		return x.field(name)
	case time.Time:
		return timeAttr(x, name)
	}
	return nil, attributeError(v, name)
}
