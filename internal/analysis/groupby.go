package analysis

import (
	"sales-insight-workers/internal/dataset"
)

// GroupBy is the result of df.groupby(...), optionally narrowed to some
// columns.
type GroupBy struct {
	frame     *Frame
	keyNames  []string
	keyValues [][]any
	groups    []group
	selected  []string
	single    bool
	asIndex   bool
}

type group struct {
	key  Tuple
	rows []int
}

func newGroupBy(f *Frame, by any, asIndex, sorted, dropna bool) (*GroupBy, error) {
	var specs []any
	switch x := by.(type) {
	case []any:
		specs = x
	case Tuple:
		specs = x
	default:
		specs = []any{by}
	}
	if len(specs) == 0 {
		return nil, valueErrorf("No group keys passed!")
	}

	g := &GroupBy{frame: f, asIndex: asIndex}
	for _, spec := range specs {
		switch k := spec.(type) {
		case string:
			col, ok := f.data.Column(k)
			if !ok {
				return nil, newError("KeyError", "%s", pyRepr(k))
			}
			g.keyNames = append(g.keyNames, k)
			g.keyValues = append(g.keyValues, col.Values)
		case *Series:
			values, err := broadcast(k, f.index)
			if err != nil {
				return nil, err
			}
			g.keyNames = append(g.keyNames, labelString(k.Name))
			g.keyValues = append(g.keyValues, values)
		default:
			return nil, typeErrorf("cannot group by %s", typeName(spec))
		}
	}

	pos := make(map[string]int)
rows:
	for r := 0; r < f.Len(); r++ {
		key := make(Tuple, len(g.keyValues))
		for i, values := range g.keyValues {
			if dropna && isNull(values[r]) {
				continue rows
			}
			key[i] = values[r]
		}
		h := hashKey(key)
		if p, ok := pos[h]; ok {
			g.groups[p].rows = append(g.groups[p].rows, r)
			continue
		}
		pos[h] = len(g.groups)
		g.groups = append(g.groups, group{key: key, rows: []int{r}})
	}

	if sorted {
		keys := make([][]any, len(g.keyNames))
		asc := make([]bool, len(g.keyNames))
		for i := range keys {
			keys[i] = make([]any, len(g.groups))
			for j, grp := range g.groups {
				keys[i][j] = grp.key[i]
			}
			asc[i] = true
		}
		order, err := sortRows(len(g.groups), keys, asc)
		if err != nil {
			return nil, err
		}
		ordered := make([]group, len(order))
		for i, p := range order {
			ordered[i] = g.groups[p]
		}
		g.groups = ordered
	}
	return g, nil
}

func (g *GroupBy) isKey(name string) bool {
	return contains(g.keyNames, name)
}

// selectColumns narrows the groupby to one column (g['x']) or several
// (g[['x', 'y']]).
func (g *GroupBy) selectColumns(key any) (any, error) {
	out := *g
	switch k := key.(type) {
	case string:
		if _, ok := g.frame.data.Column(k); !ok {
			return nil, newError("KeyError", "Column not found: %s", k)
		}
		out.selected, out.single = []string{k}, true
	case []any, Tuple:
		names, err := stringList(k, "column selection")
		if err != nil {
			return nil, err
		}
		for _, n := range names {
			if _, ok := g.frame.data.Column(n); !ok {
				return nil, newError("KeyError", "Columns not found: %s", pyRepr(n))
			}
		}
		out.selected, out.single = names, false
	default:
		return nil, newError("KeyError", "%s", pyRepr(key))
	}
	return &out, nil
}

func (g *GroupBy) index() *Index {
	labels := make([]any, len(g.groups))
	for i, grp := range g.groups {
		if len(grp.key) == 1 {
			labels[i] = grp.key[0]
		} else {
			labels[i] = grp.key
		}
	}
	return &Index{Names: append([]string(nil), g.keyNames...), Labels: labels}
}

// valueColumns are the columns an aggregation runs over.
func (g *GroupBy) valueColumns(numericOnly bool) []*dataset.Column {
	var out []*dataset.Column
	if g.selected != nil {
		for _, n := range g.selected {
			col, _ := g.frame.data.Column(n)
			out = append(out, col)
		}
		return out
	}
	for _, col := range g.frame.data.Columns() {
		if g.isKey(col.Name) {
			continue
		}
		if numericOnly && !isNumericColumn(col) {
			continue
		}
		out = append(out, col)
	}
	return out
}

func isNumericColumn(col *dataset.Column) bool {
	switch col.Kind {
	case dataset.KindInt, dataset.KindFloat, dataset.KindBool:
		return true
	}
	return false
}

func (g *GroupBy) reduce(col *dataset.Column, fn string) (*Series, error) {
	out := make([]any, len(g.groups))
	for i, grp := range g.groups {
		values := make([]any, len(grp.rows))
		for j, r := range grp.rows {
			values[j] = col.Values[r]
		}
		v, err := aggregate(fn, values)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return &Series{Name: col.Name, Index: g.index(), Values: out}, nil
}

func (g *GroupBy) size() (any, error) {
	out := make([]any, len(g.groups))
	for i, grp := range g.groups {
		out[i] = float64(len(grp.rows))
	}
	s := &Series{Name: nil, Index: g.index(), Values: out}
	if !g.asIndex {
		s.Name = "size"
		return g.finish(s)
	}
	return s, nil
}

// aggregate applies one named reduction to every value column.
func (g *GroupBy) aggregate(fn string) (any, error) {
	if fn == "size" {
		return g.size()
	}
	cols := g.valueColumns(numericOnly[fn])
	if g.single {
		s, err := g.reduce(cols[0], fn)
		if err != nil {
			return nil, err
		}
		return g.finish(s)
	}
	series := make([]*Series, 0, len(cols))
	for _, col := range cols {
		s, err := g.reduce(col, fn)
		if err != nil {
			return nil, err
		}
		series = append(series, s)
	}
	f, err := frameFromSeries(g.index(), series)
	if err != nil {
		return nil, err
	}
	return g.finish(f)
}

// agg handles a name, a list of names, a column-to-function dict, or
// named aggregations given as keyword=(column, function).
func (g *GroupBy) agg(a arguments) (any, error) {
	if len(a.kw) > 0 && len(a.pos) == 0 {
		return g.namedAgg(a.kw)
	}
	b, err := a.bind("func")
	if err != nil {
		return nil, err
	}
	switch spec := b["func"].(type) {
	case string, builtinFunc:
		fn, err := aggName(spec)
		if err != nil {
			return nil, err
		}
		return g.aggregate(fn)
	case []any, Tuple:
		fns, err := aggNames(spec)
		if err != nil {
			return nil, err
		}
		var series []*Series
		for _, col := range g.valueColumns(false) {
			for _, fn := range fns {
				s, err := g.reduce(col, fn)
				if err != nil {
					return nil, err
				}
				if g.single {
					s.Name = fn
				} else {
					s.Name = col.Name + "_" + fn
				}
				series = append(series, s)
			}
		}
		f, err := frameFromSeries(g.index(), series)
		if err != nil {
			return nil, err
		}
		return g.finish(f)
	case *Dict:
		var series []*Series
		for i, k := range spec.keys {
			name, ok := k.(string)
			if !ok {
				return nil, newError("KeyError", "%s", pyRepr(k))
			}
			col, ok := g.frame.data.Column(name)
			if !ok {
				return nil, newError("KeyError", "Column(s) ['%s'] do not exist", name)
			}
			switch spec.values[i].(type) {
			case []any, Tuple:
				fns, err := aggNames(spec.values[i])
				if err != nil {
					return nil, err
				}
				for _, fn := range fns {
					s, err := g.reduce(col, fn)
					if err != nil {
						return nil, err
					}
					s.Name = name + "_" + fn
					series = append(series, s)
				}
			default:
				fn, err := aggName(spec.values[i])
				if err != nil {
					return nil, err
				}
				s, err := g.reduce(col, fn)
				if err != nil {
					return nil, err
				}
				series = append(series, s)
			}
		}
		f, err := frameFromSeries(g.index(), series)
		if err != nil {
			return nil, err
		}
		return g.finish(f)
	}
	return nil, typeErrorf("unsupported aggregation %s", describe(b["func"]))
}

func (g *GroupBy) namedAgg(kw []kwarg) (any, error) {
	series := make([]*Series, 0, len(kw))
	for _, k := range kw {
		pair, ok := k.value.(Tuple)
		if !ok || len(pair) != 2 {
			return nil, typeErrorf("named aggregation %s must be a (column, function) tuple", k.name)
		}
		name, ok := pair[0].(string)
		if !ok {
			return nil, typeErrorf("named aggregation column must be a string")
		}
		col, ok := g.frame.data.Column(name)
		if !ok {
			return nil, newError("KeyError", "Column(s) ['%s'] do not exist", name)
		}
		fn, err := aggName(pair[1])
		if err != nil {
			return nil, err
		}
		s, err := g.reduce(col, fn)
		if err != nil {
			return nil, err
		}
		s.Name = k.name
		series = append(series, s)
	}
	f, err := frameFromSeries(g.index(), series)
	if err != nil {
		return nil, err
	}
	return g.finish(f)
}

func aggNames(v any) ([]string, error) {
	items, err := iterate(v)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(items))
	for i, item := range items {
		if out[i], err = aggName(item); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// finish moves the group keys back into columns when as_index=False.
func (g *GroupBy) finish(v any) (any, error) {
	if g.asIndex {
		return v, nil
	}
	switch x := v.(type) {
	case *Series:
		return resetIndex(x.Index, []*Series{x})
	case *Frame:
		return x.resetIndex(false)
	}
	return v, nil
}

// head keeps the first n rows of every group, in original row order.
func (g *GroupBy) head(n int, tail bool) *Frame {
	var rows []int
	keep := make(map[int]bool)
	for _, grp := range g.groups {
		pick := grp.rows
		if len(pick) > n {
			if tail {
				pick = pick[len(pick)-n:]
			} else {
				pick = pick[:n]
			}
		}
		for _, r := range pick {
			keep[r] = true
		}
	}
	for r := 0; r < g.frame.Len(); r++ {
		if keep[r] {
			rows = append(rows, r)
		}
	}
	return g.frame.take(rows)
}

func callGroupBy(g *GroupBy, name string, a arguments) (any, error) {
	switch name {
	case "sum", "mean", "median", "min", "max", "count", "std", "var", "nunique", "first", "last":
		if _, err := a.bind("numeric_only"); err != nil {
			return nil, err
		}
		return g.aggregate(name)
	case "size":
		if _, err := a.bind(); err != nil {
			return nil, err
		}
		return g.size()
	case "agg", "aggregate":
		return g.agg(a)
	case "head", "tail":
		b, err := a.bind("n")
		if err != nil {
			return nil, err
		}
		n, err := b.integer("n", 5)
		if err != nil {
			return nil, err
		}
		return g.head(n, name == "tail"), nil
	}
	return nil, attributeError(g, name)
}
