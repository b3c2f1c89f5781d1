package analysis

import (
	"strconv"

	"sales-insight-workers/internal/dataset"
)

func callFrame(f *Frame, name string, a arguments) (any, error) {
	switch name {
	case "groupby":
		b, err := a.bind("by", "axis", "level", "as_index", "sort", "dropna")
		if err != nil {
			return nil, err
		}
		if !b.has("by") {
			return nil, typeErrorf("You have to supply one of 'by' and 'level'")
		}
		asIndex, err := b.boolean("as_index", true)
		if err != nil {
			return nil, err
		}
		sorted, err := b.boolean("sort", true)
		if err != nil {
			return nil, err
		}
		dropna, err := b.boolean("dropna", true)
		if err != nil {
			return nil, err
		}
		return newGroupBy(f, b["by"], asIndex, sorted, dropna)
	case "sum", "mean", "median", "min", "max", "count", "std", "var", "nunique":
		if _, err := a.bind("axis", "skipna", "numeric_only"); err != nil {
			return nil, err
		}
		return f.reduce(name)
	case "agg", "aggregate":
		return f.agg(a)
	case "sort_values":
		b, err := a.bind("by", "axis", "ascending", "inplace", "kind", "na_position", "ignore_index")
		if err != nil {
			return nil, err
		}
		if err := b.rejectInplace(); err != nil {
			return nil, err
		}
		by, err := b.strings("by")
		if err != nil {
			return nil, err
		}
		if len(by) == 0 {
			return nil, typeErrorf("sort_values() missing 1 required positional argument: 'by'")
		}
		asc, err := b.ascending(len(by))
		if err != nil {
			return nil, err
		}
		out, err := f.sortBy(by, asc)
		if err != nil {
			return nil, err
		}
		if ignore, _ := b.boolean("ignore_index", false); ignore {
			out.index = rangeIndex(out.Len())
		}
		return out, nil
	case "sort_index":
		b, err := a.bind("axis", "level", "ascending", "inplace")
		if err != nil {
			return nil, err
		}
		if err := b.rejectInplace(); err != nil {
			return nil, err
		}
		asc, err := b.ascending(1)
		if err != nil {
			return nil, err
		}
		order, err := sortRows(f.Len(), [][]any{f.index.Labels}, asc)
		if err != nil {
			return nil, err
		}
		return f.take(order), nil
	case "nlargest", "nsmallest":
		b, err := a.bind("n", "columns", "keep")
		if err != nil {
			return nil, err
		}
		n, err := b.integer("n", 5)
		if err != nil {
			return nil, err
		}
		cols, err := b.strings("columns")
		if err != nil {
			return nil, err
		}
		if len(cols) == 0 {
			return nil, typeErrorf("%s() missing 1 required positional argument: 'columns'", name)
		}
		asc := make([]bool, len(cols))
		for i := range asc {
			asc[i] = name == "nsmallest"
		}
		sorted, err := f.sortBy(cols, asc)
		if err != nil {
			return nil, err
		}
		keep := make([]int, 0, n)
		first, _ := sorted.data.Column(cols[0])
		for r := 0; r < sorted.Len() && len(keep) < n; r++ {
			if !isNull(first.Values[r]) {
				keep = append(keep, r)
			}
		}
		return sorted.take(keep), nil
	case "head", "tail":
		b, err := a.bind("n")
		if err != nil {
			return nil, err
		}
		n, err := b.integer("n", 5)
		if err != nil {
			return nil, err
		}
		return f.take(headRows(f.Len(), n, name == "tail")), nil
	case "reset_index":
		b, err := a.bind("level", "drop", "inplace")
		if err != nil {
			return nil, err
		}
		if err := b.rejectInplace(); err != nil {
			return nil, err
		}
		drop, err := b.boolean("drop", false)
		if err != nil {
			return nil, err
		}
		return f.resetIndex(drop)
	case "set_index":
		b, err := a.bind("keys", "drop", "append", "inplace")
		if err != nil {
			return nil, err
		}
		if err := b.rejectInplace(); err != nil {
			return nil, err
		}
		keys, err := b.strings("keys")
		if err != nil {
			return nil, err
		}
		drop, err := b.boolean("drop", true)
		if err != nil {
			return nil, err
		}
		return f.setIndex(keys, drop)
	case "to_dict":
		b, err := a.bind("orient")
		if err != nil {
			return nil, err
		}
		orient, err := b.str("orient", "dict")
		if err != nil {
			return nil, err
		}
		return f.toDict(orient)
	case "round":
		b, err := a.bind("decimals")
		if err != nil {
			return nil, err
		}
		n, err := b.integer("decimals", 0)
		if err != nil {
			return nil, err
		}
		return roundValue(f, n)
	case "copy":
		if _, err := a.bind("deep"); err != nil {
			return nil, err
		}
		return f.copyFrame(), nil
	case "rename":
		b, err := a.bind("mapper", "index", "columns", "axis", "inplace")
		if err != nil {
			return nil, err
		}
		if err := b.rejectInplace(); err != nil {
			return nil, err
		}
		mapping, ok := b["columns"].(*Dict)
		if !ok {
			return nil, typeErrorf("rename() expects columns= as a dict")
		}
		return f.rename(mapping)
	case "drop_duplicates":
		b, err := a.bind("subset", "keep", "inplace", "ignore_index")
		if err != nil {
			return nil, err
		}
		if err := b.rejectInplace(); err != nil {
			return nil, err
		}
		subset, err := b.strings("subset")
		if err != nil {
			return nil, err
		}
		keep, err := b.str("keep", "first")
		if err != nil {
			return nil, err
		}
		return f.dropDuplicates(subset, keep == "last")
	case "dropna":
		b, err := a.bind("axis", "how", "subset", "inplace")
		if err != nil {
			return nil, err
		}
		if err := b.rejectInplace(); err != nil {
			return nil, err
		}
		subset, err := b.strings("subset")
		if err != nil {
			return nil, err
		}
		how, err := b.str("how", "any")
		if err != nil {
			return nil, err
		}
		return f.dropNulls(subset, how == "all")
	case "fillna":
		b, err := a.bind("value", "inplace")
		if err != nil {
			return nil, err
		}
		if err := b.rejectInplace(); err != nil {
			return nil, err
		}
		return f.fillNulls(b["value"])
	case "assign":
		out := f.copyFrame()
		for _, kw := range a.kw {
			if err := setItem(out, kw.name, kw.value); err != nil {
				return nil, err
			}
		}
		if len(a.pos) > 0 {
			return nil, typeErrorf("assign() takes only keyword arguments")
		}
		return out, nil
	}
	return nil, attributeError(f, name)
}

func headRows(n, k int, tail bool) []int {
	if k < 0 {
		k = max(n+k, 0)
	}
	k = min(k, n)
	start := 0
	if tail {
		start = n - k
	}
	rows := make([]int, k)
	for i := range rows {
		rows[i] = start + i
	}
	return rows
}

// reduce collapses every eligible column into one value, keyed by column.
func (f *Frame) reduce(fn string) (*Series, error) {
	var labels, values []any
	for _, col := range f.data.Columns() {
		if numericOnly[fn] && !isNumericColumn(col) {
			continue
		}
		v, err := aggregate(fn, col.Values)
		if err != nil {
			return nil, err
		}
		labels = append(labels, col.Name)
		values = append(values, v)
	}
	return &Series{Index: &Index{Names: []string{""}, Labels: labels}, Values: values}, nil
}

func (f *Frame) agg(a arguments) (any, error) {
	b, err := a.bind("func", "axis")
	if err != nil {
		return nil, err
	}
	switch spec := b["func"].(type) {
	case string, builtinFunc:
		fn, err := aggName(spec)
		if err != nil {
			return nil, err
		}
		return f.reduce(fn)
	case []any, Tuple:
		fns, err := aggNames(spec)
		if err != nil {
			return nil, err
		}
		labels := make([]any, len(fns))
		for i, fn := range fns {
			labels[i] = fn
		}
		var cols []*Series
		for _, col := range f.data.Columns() {
			values := make([]any, len(fns))
			for i, fn := range fns {
				if values[i], err = aggregate(fn, col.Values); err != nil {
					return nil, err
				}
			}
			cols = append(cols, &Series{Name: col.Name, Values: values})
		}
		return frameFromSeries(&Index{Names: []string{""}, Labels: labels}, cols)
	case *Dict:
		var labels, values []any
		for i, k := range spec.keys {
			name, _ := k.(string)
			col, ok := f.data.Column(name)
			if !ok {
				return nil, newError("KeyError", "Column(s) [%s] do not exist", pyRepr(k))
			}
			fn, err := aggName(spec.values[i])
			if err != nil {
				return nil, err
			}
			v, err := aggregate(fn, col.Values)
			if err != nil {
				return nil, err
			}
			labels = append(labels, name)
			values = append(values, v)
		}
		return &Series{Index: &Index{Names: []string{""}, Labels: labels}, Values: values}, nil
	}
	return nil, typeErrorf("unsupported aggregation %s", describe(b["func"]))
}

func (f *Frame) sortBy(by []string, asc []bool) (*Frame, error) {
	keys := make([][]any, len(by))
	for i, name := range by {
		col, ok := f.data.Column(name)
		if !ok {
			return nil, newError("KeyError", "%s", pyRepr(name))
		}
		keys[i] = col.Values
	}
	order, err := sortRows(f.Len(), keys, asc)
	if err != nil {
		return nil, err
	}
	return f.take(order), nil
}

func (f *Frame) series() []*Series {
	cols := f.data.Columns()
	out := make([]*Series, len(cols))
	for i, c := range cols {
		out[i] = &Series{Name: c.Name, Index: f.index, Values: c.Values}
	}
	return out
}

func (f *Frame) resetIndex(drop bool) (*Frame, error) {
	if drop {
		return &Frame{data: f.data, index: rangeIndex(f.Len())}, nil
	}
	return resetIndex(f.index, f.series())
}

// resetIndex turns the index levels into leading columns.
func resetIndex(index *Index, cols []*Series) (*Frame, error) {
	levels := len(index.Names)
	names := make([]string, levels)
	for i, n := range index.Names {
		switch {
		case n != "":
			names[i] = n
		case levels == 1:
			names[i] = "index"
		default:
			names[i] = "level_" + strconv.Itoa(i)
		}
	}
	out := make([]*Series, 0, levels+len(cols))
	for lvl := range names {
		values := make([]any, index.Len())
		for r, label := range index.Labels {
			if t, ok := label.(Tuple); ok && levels > 1 {
				values[r] = t[lvl]
			} else {
				values[r] = label
			}
		}
		out = append(out, &Series{Name: names[lvl], Values: values})
	}
	for _, c := range cols {
		name := c.Name
		if name == nil {
			name = "0"
		}
		out = append(out, &Series{Name: name, Values: c.Values})
	}
	return frameFromSeries(nil, out)
}

func (f *Frame) setIndex(keys []string, drop bool) (*Frame, error) {
	if len(keys) == 0 {
		return nil, typeErrorf("set_index() missing 1 required positional argument: 'keys'")
	}
	levels := make([][]any, len(keys))
	for i, k := range keys {
		col, ok := f.data.Column(k)
		if !ok {
			return nil, newError("KeyError", "\"None of ['%s'] are in the columns\"", k)
		}
		levels[i] = col.Values
	}
	labels := make([]any, f.Len())
	for r := range labels {
		if len(keys) == 1 {
			labels[r] = levels[0][r]
			continue
		}
		t := make(Tuple, len(keys))
		for i := range keys {
			t[i] = levels[i][r]
		}
		labels[r] = t
	}
	var kept []*dataset.Column
	for _, c := range f.data.Columns() {
		if drop && contains(keys, c.Name) {
			continue
		}
		kept = append(kept, c)
	}
	data, err := dataset.NewFrame(kept...)
	if err != nil {
		return nil, valueErrorf("%s", err.Error())
	}
	return &Frame{data: data, index: &Index{Names: append([]string(nil), keys...), Labels: labels}}, nil
}

func (f *Frame) toDict(orient string) (any, error) {
	cols := f.data.Columns()
	switch orient {
	case "dict":
		out := NewDict()
		for _, c := range cols {
			inner := NewDict()
			for r, label := range f.index.Labels {
				inner.Set(label, c.Values[r])
			}
			out.Set(c.Name, inner)
		}
		return out, nil
	case "list":
		out := NewDict()
		for _, c := range cols {
			out.Set(c.Name, append([]any{}, c.Values...))
		}
		return out, nil
	case "records":
		out := make([]any, f.Len())
		for r := range out {
			row := NewDict()
			for _, c := range cols {
				row.Set(c.Name, c.Values[r])
			}
			out[r] = row
		}
		return out, nil
	case "index":
		out := NewDict()
		for r, label := range f.index.Labels {
			row := NewDict()
			for _, c := range cols {
				row.Set(c.Name, c.Values[r])
			}
			out.Set(label, row)
		}
		return out, nil
	}
	return nil, valueErrorf("orient '%s' not understood", orient)
}

// mapNumeric applies fn to every non-null numeric cell.
func (f *Frame) mapNumeric(fn func(float64) float64) *Frame {
	out := f.copyFrame()
	for _, c := range out.data.Columns() {
		if c.Kind != dataset.KindFloat && c.Kind != dataset.KindInt {
			continue
		}
		for i, v := range c.Values {
			if x, ok := v.(float64); ok {
				c.Values[i] = fn(x)
			}
		}
	}
	return out
}

func (f *Frame) rename(mapping *Dict) (*Frame, error) {
	cols := f.data.Columns()
	out := make([]*dataset.Column, len(cols))
	for i, c := range cols {
		name := c.Name
		if v, ok := mapping.Get(c.Name); ok {
			s, ok := v.(string)
			if !ok {
				return nil, typeErrorf("new column names must be strings")
			}
			name = s
		}
		out[i] = &dataset.Column{Name: name, Kind: c.Kind, Values: c.Values}
	}
	data, err := dataset.NewFrame(out...)
	if err != nil {
		return nil, valueErrorf("%s", err.Error())
	}
	return &Frame{data: data, index: f.index}, nil
}

func (f *Frame) dropDuplicates(subset []string, keepLast bool) (*Frame, error) {
	if len(subset) == 0 {
		subset = f.names()
	}
	cols := make([]*dataset.Column, len(subset))
	for i, name := range subset {
		col, ok := f.data.Column(name)
		if !ok {
			return nil, newError("KeyError", "Index([%s], dtype='object')", pyRepr(name))
		}
		cols[i] = col
	}
	rowKey := func(r int) string {
		t := make(Tuple, len(cols))
		for i, c := range cols {
			t[i] = c.Values[r]
		}
		return hashKey(t)
	}
	seen := make(map[string]int)
	var rows []int
	for r := 0; r < f.Len(); r++ {
		k := rowKey(r)
		if p, ok := seen[k]; ok {
			if keepLast {
				rows[p] = -1
				seen[k] = len(rows)
				rows = append(rows, r)
			}
			continue
		}
		seen[k] = len(rows)
		rows = append(rows, r)
	}
	kept := rows[:0]
	for _, r := range rows {
		if r >= 0 {
			kept = append(kept, r)
		}
	}
	return f.take(kept), nil
}

func (f *Frame) dropNulls(subset []string, all bool) (*Frame, error) {
	var cols []*dataset.Column
	if len(subset) == 0 {
		cols = f.data.Columns()
	}
	for _, name := range subset {
		col, ok := f.data.Column(name)
		if !ok {
			return nil, newError("KeyError", "%s", pyRepr(name))
		}
		cols = append(cols, col)
	}
	var rows []int
	for r := 0; r < f.Len(); r++ {
		nulls := 0
		for _, c := range cols {
			if isNull(c.Values[r]) {
				nulls++
			}
		}
		if (all && nulls < len(cols)) || (!all && nulls == 0) {
			rows = append(rows, r)
		}
	}
	return f.take(rows), nil
}

func (f *Frame) fillNulls(value any) (*Frame, error) {
	out := f.copyFrame()
	for _, c := range out.data.Columns() {
		fill := value
		if d, ok := value.(*Dict); ok {
			v, found := d.Get(c.Name)
			if !found {
				continue
			}
			fill = v
		}
		for i, v := range c.Values {
			if isNull(v) {
				c.Values[i] = fill
			}
		}
		c.Kind = dataset.InferKind(c.Values)
	}
	return out, nil
}
