package analysis

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"sales-insight-workers/internal/dataset"
)

// Runtime values are nil, bool, float64, string, time.Time, []any (list),
// Tuple, *Dict, *Series, *Frame, *GroupBy and the accessor types below.

// Tuple is an immutable sequence, used for multi-level labels and shapes.
type Tuple []any

// Index labels the rows of a Series or Frame. Labels are scalars, or Tuples
// when the index has more than one level.
type Index struct {
	Names  []string
	Labels []any
}

func rangeIndex(n int) *Index {
	labels := make([]any, n)
	for i := range labels {
		labels[i] = float64(i)
	}
	return &Index{Names: []string{""}, Labels: labels}
}

func (ix *Index) Len() int { return len(ix.Labels) }

func (ix *Index) take(rows []int) *Index {
	labels := make([]any, len(rows))
	for i, r := range rows {
		labels[i] = ix.Labels[r]
	}
	return &Index{Names: append([]string(nil), ix.Names...), Labels: labels}
}

// position returns the row holding label.
func (ix *Index) position(label any) (int, bool) {
	key := hashKey(label)
	for i, l := range ix.Labels {
		if hashKey(l) == key {
			return i, true
		}
	}
	return 0, false
}

// Series is a labelled vector.
type Series struct {
	Name   any
	Index  *Index
	Values []any
}

func newSeries(name any, values []any) *Series {
	return &Series{Name: name, Index: rangeIndex(len(values)), Values: values}
}

func (s *Series) Len() int { return len(s.Values) }

func (s *Series) take(rows []int) *Series {
	values := make([]any, len(rows))
	for i, r := range rows {
		values[i] = s.Values[r]
	}
	return &Series{Name: s.Name, Index: s.Index.take(rows), Values: values}
}

func (s *Series) withValues(values []any) *Series {
	return &Series{Name: s.Name, Index: s.Index, Values: values}
}

// Frame is a table value: a dataset frame plus its row labels.
type Frame struct {
	data  *dataset.Frame
	index *Index
}

func wrapFrame(f *dataset.Frame) *Frame {
	return &Frame{data: f, index: rangeIndex(f.Len())}
}

func (f *Frame) Len() int { return f.data.Len() }

func (f *Frame) take(rows []int) *Frame {
	return &Frame{data: f.data.Take(rows), index: f.index.take(rows)}
}

func (f *Frame) column(name string) (*Series, error) {
	col, ok := f.data.Column(name)
	if !ok {
		return nil, newError("KeyError", "%s", pyRepr(name))
	}
	return &Series{Name: name, Index: f.index, Values: col.Values}, nil
}

func (f *Frame) names() []string { return f.data.Names() }

// copyFrame returns a frame whose columns can be replaced without touching f.
func (f *Frame) copyFrame() *Frame {
	return &Frame{data: f.data.Copy(), index: f.index}
}

func frameFromSeries(index *Index, cols []*Series) (*Frame, error) {
	dcols := make([]*dataset.Column, len(cols))
	for i, c := range cols {
		dcols[i] = dataset.NewColumn(labelString(c.Name), c.Values)
	}
	data, err := dataset.NewFrame(dcols...)
	if err != nil {
		return nil, newError("ValueError", "%s", err.Error())
	}
	if index == nil {
		index = rangeIndex(data.Len())
	}
	return &Frame{data: data, index: index}, nil
}

// Dict is an insertion-ordered mapping.
type Dict struct {
	keys   []any
	values []any
	pos    map[string]int
}

func NewDict() *Dict {
	return &Dict{pos: make(map[string]int)}
}

func (d *Dict) Set(k, v any) {
	h := hashKey(k)
	if i, ok := d.pos[h]; ok {
		d.values[i] = v
		return
	}
	d.pos[h] = len(d.keys)
	d.keys = append(d.keys, k)
	d.values = append(d.values, v)
}

func (d *Dict) Get(k any) (any, bool) {
	i, ok := d.pos[hashKey(k)]
	if !ok {
		return nil, false
	}
	return d.values[i], true
}

func (d *Dict) Len() int      { return len(d.keys) }
func (d *Dict) Keys() []any   { return append([]any(nil), d.keys...) }
func (d *Dict) Values() []any { return append([]any(nil), d.values...) }

func (d *Dict) copyDict() *Dict {
	out := NewDict()
	for i, k := range d.keys {
		out.Set(k, d.values[i])
	}
	return out
}

// hashKey gives equal Python-style keys equal strings. True and 1 are
// distinct here.
func hashKey(v any) string {
	switch x := v.(type) {
	case nil:
		return "n"
	case bool:
		if x {
			return "b1"
		}
		return "b0"
	case float64:
		if math.IsNaN(x) {
			return "fNaN"
		}
		return "f" + strconv.FormatFloat(x, 'g', -1, 64)
	case string:
		return "s" + x
	case time.Time:
		return "t" + strconv.FormatInt(x.UnixNano(), 10)
	case Tuple:
		parts := make([]string, len(x))
		for i, e := range x {
			parts[i] = hashKey(e)
		}
		return "(" + strings.Join(parts, ",") + ")"
	}
	return fmt.Sprintf("%T:%p", v, v)
}

func isNull(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case float64:
		return math.IsNaN(x)
	}
	return false
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case bool:
		if x {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

// compareValues orders a and b. ok is false for incomparable kinds.
func compareValues(a, b any) (int, bool) {
	if fa, ok := toFloat(a); ok {
		if fb, ok := toFloat(b); ok {
			switch {
			case fa < fb:
				return -1, true
			case fa > fb:
				return 1, true
			}
			return 0, true
		}
	}
	switch x := a.(type) {
	case string:
		if y, ok := b.(string); ok {
			return strings.Compare(x, y), true
		}
		if y, ok := b.(time.Time); ok {
			if t, ok := parseTimestamp(x); ok {
				return compareTimes(t, y), true
			}
		}
	case time.Time:
		switch y := b.(type) {
		case time.Time:
			return compareTimes(x, y), true
		case string:
			if t, ok := parseTimestamp(y); ok {
				return compareTimes(x, t), true
			}
		}
	case Tuple:
		if y, ok := b.(Tuple); ok {
			for i := 0; i < len(x) && i < len(y); i++ {
				if c, ok := compareValues(x[i], y[i]); !ok || c != 0 {
					return c, ok
				}
			}
			return len(x) - len(y), true
		}
	}
	return 0, false
}

func compareTimes(a, b time.Time) int {
	switch {
	case a.Before(b):
		return -1
	case a.After(b):
		return 1
	}
	return 0
}

var timestampLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"2006-01",
	"2006",
}

func parseTimestamp(s string) (time.Time, bool) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, strings.TrimSpace(s)); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func valueEqual(a, b any) bool {
	if isNull(a) || isNull(b) {
		return false
	}
	if c, ok := compareValues(a, b); ok {
		return c == 0
	}
	return hashKey(a) == hashKey(b)
}

func truthy(v any) (bool, error) {
	switch x := v.(type) {
	case nil:
		return false, nil
	case bool:
		return x, nil
	case float64:
		return x != 0, nil
	case string:
		return x != "", nil
	case time.Time:
		return true, nil
	case []any:
		return len(x) > 0, nil
	case Tuple:
		return len(x) > 0, nil
	case *Dict:
		return x.Len() > 0, nil
	case *Series, *Frame:
		return false, newError("ValueError", "The truth value of a %s is ambiguous. Use a.empty, a.any() or a.all().", typeName(v))
	}
	return true, nil
}

func typeName(v any) string {
	switch v.(type) {
	case nil:
		return "NoneType"
	case bool:
		return "bool"
	case float64:
		return "float"
	case string:
		return "str"
	case time.Time:
		return "Timestamp"
	case []any:
		return "list"
	case Tuple:
		return "tuple"
	case *Dict:
		return "dict"
	case *Series:
		return "Series"
	case *Frame:
		return "DataFrame"
	case *GroupBy:
		return "DataFrameGroupBy"
	case pandasModule:
		return "module"
	case *strAccessor:
		return "StringMethods"
	case *dtAccessor:
		return "DatetimeProperties"
	case *indexer:
		return "Indexer"
	}
	return fmt.Sprintf("%T", v)
}

// pyStr renders v the way str() would.
func pyStr(v any) string {
	switch x := v.(type) {
	case nil:
		return "None"
	case bool:
		if x {
			return "True"
		}
		return "False"
	case float64:
		return formatFloat(x)
	case string:
		return x
	case time.Time:
		return x.Format("2006-01-02 15:04:05")
	case []any:
		return "[" + joinRepr(x) + "]"
	case Tuple:
		if len(x) == 1 {
			return "(" + pyRepr(x[0]) + ",)"
		}
		return "(" + joinRepr(x) + ")"
	case *Dict:
		parts := make([]string, x.Len())
		for i, k := range x.keys {
			parts[i] = pyRepr(k) + ": " + pyRepr(x.values[i])
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case *Series:
		lines := make([]string, x.Len())
		for i, v := range x.Values {
			lines[i] = pyStr(x.Index.Labels[i]) + "    " + pyStr(v)
		}
		return strings.Join(lines, "\n")
	case *Frame:
		return fmt.Sprintf("DataFrame(%d rows x %d columns)", x.Len(), x.data.Width())
	}
	return "<" + typeName(v) + ">"
}

func pyRepr(v any) string {
	if s, ok := v.(string); ok {
		return "'" + strings.ReplaceAll(s, "'", "\\'") + "'"
	}
	if t, ok := v.(time.Time); ok {
		return "Timestamp('" + t.Format("2006-01-02 15:04:05") + "')"
	}
	return pyStr(v)
}

func joinRepr(items []any) string {
	parts := make([]string, len(items))
	for i, v := range items {
		parts[i] = pyRepr(v)
	}
	return strings.Join(parts, ", ")
}

func formatFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return "nan"
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	}
	abs := math.Abs(f)
	if abs != 0 && (abs < 1e-4 || abs >= 1e16) {
		return strconv.FormatFloat(f, 'e', -1, 64)
	}
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.ContainsAny(s, ".e") {
		s += ".0"
	}
	return s
}

// labelString renders an index label or column name as a mapping key.
func labelString(v any) string {
	switch x := v.(type) {
	case nil:
		return "None"
	case string:
		return x
	case float64:
		if x == math.Trunc(x) && !math.IsInf(x, 0) {
			return strconv.FormatFloat(x, 'f', -1, 64)
		}
		return formatFloat(x)
	case time.Time:
		return x.Format("2006-01-02T15:04:05")
	case Tuple:
		parts := make([]string, len(x))
		for i, e := range x {
			if s, ok := e.(string); ok {
				parts[i] = "'" + s + "'"
			} else {
				parts[i] = labelString(e)
			}
		}
		return "(" + strings.Join(parts, ", ") + ")"
	}
	return pyStr(v)
}
