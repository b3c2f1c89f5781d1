package analysis

import (
	"math"
	"sort"
	"strings"
	"time"
)

func callSeries(s *Series, name string, a arguments) (any, error) {
	switch name {
	case "sum", "mean", "median", "min", "max", "count", "std", "var", "nunique":
		if _, err := a.bind("axis", "skipna", "numeric_only", "dropna"); err != nil {
			return nil, err
		}
		return aggregate(name, s.Values)
	case "agg", "aggregate":
		b, err := a.bind("func")
		if err != nil {
			return nil, err
		}
		if _, ok := b["func"].([]any); ok {
			fns, err := aggNames(b["func"])
			if err != nil {
				return nil, err
			}
			labels := make([]any, len(fns))
			values := make([]any, len(fns))
			for i, fn := range fns {
				labels[i] = fn
				if values[i], err = aggregate(fn, s.Values); err != nil {
					return nil, err
				}
			}
			return &Series{Name: s.Name, Index: &Index{Names: []string{""}, Labels: labels}, Values: values}, nil
		}
		fn, err := aggName(b["func"])
		if err != nil {
			return nil, err
		}
		return aggregate(fn, s.Values)
	case "unique":
		if _, err := a.bind(); err != nil {
			return nil, err
		}
		seen := make(map[string]bool)
		var out []any
		for _, v := range s.Values {
			if k := hashKey(v); !seen[k] {
				seen[k] = true
				out = append(out, v)
			}
		}
		return append([]any{}, out...), nil
	case "tolist", "to_list", "keys", "items":
		if _, err := a.bind(); err != nil {
			return nil, err
		}
		switch name {
		case "keys":
			return append([]any{}, s.Index.Labels...), nil
		case "items":
			out := make([]any, s.Len())
			for i, v := range s.Values {
				out[i] = Tuple{s.Index.Labels[i], v}
			}
			return out, nil
		}
		return append([]any{}, s.Values...), nil
	case "to_dict":
		if _, err := a.bind(); err != nil {
			return nil, err
		}
		out := NewDict()
		for i, l := range s.Index.Labels {
			out.Set(l, s.Values[i])
		}
		return out, nil
	case "to_frame":
		b, err := a.bind("name")
		if err != nil {
			return nil, err
		}
		col := *s
		if b.has("name") {
			col.Name = b["name"]
		}
		if col.Name == nil {
			col.Name = "0"
		}
		return frameFromSeries(s.Index, []*Series{&col})
	case "value_counts":
		b, err := a.bind("normalize", "sort", "ascending", "bins", "dropna")
		if err != nil {
			return nil, err
		}
		normalize, _ := b.boolean("normalize", false)
		sorted, _ := b.boolean("sort", true)
		ascending, _ := b.boolean("ascending", false)
		dropna, _ := b.boolean("dropna", true)
		return s.valueCounts(normalize, sorted, ascending, dropna)
	case "sort_values", "sort_index":
		b, err := a.bind("ascending", "inplace", "na_position", "kind", "ignore_index")
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
		keys := s.Values
		if name == "sort_index" {
			keys = s.Index.Labels
		}
		order, err := sortRows(s.Len(), [][]any{keys}, asc)
		if err != nil {
			return nil, err
		}
		return s.take(order), nil
	case "head", "tail":
		b, err := a.bind("n")
		if err != nil {
			return nil, err
		}
		n, err := b.integer("n", 5)
		if err != nil {
			return nil, err
		}
		return s.take(headRows(s.Len(), n, name == "tail")), nil
	case "nlargest", "nsmallest":
		b, err := a.bind("n", "keep")
		if err != nil {
			return nil, err
		}
		n, err := b.integer("n", 5)
		if err != nil {
			return nil, err
		}
		order, err := sortRows(s.Len(), [][]any{s.Values}, []bool{name == "nsmallest"})
		if err != nil {
			return nil, err
		}
		keep := make([]int, 0, n)
		for _, r := range order {
			if len(keep) == n {
				break
			}
			if !isNull(s.Values[r]) {
				keep = append(keep, r)
			}
		}
		return s.take(keep), nil
	case "round":
		b, err := a.bind("decimals")
		if err != nil {
			return nil, err
		}
		n, err := b.integer("decimals", 0)
		if err != nil {
			return nil, err
		}
		return roundValue(s, n)
	case "abs":
		if _, err := a.bind(); err != nil {
			return nil, err
		}
		return absValue(s)
	case "isin":
		b, err := a.bind("values")
		if err != nil {
			return nil, err
		}
		items, err := iterate(b["values"])
		if err != nil {
			return nil, typeErrorf("only list-like objects are allowed to be passed to isin(), you passed a '%s'", typeName(b["values"]))
		}
		set := make(map[string]bool, len(items))
		for _, v := range items {
			set[hashKey(v)] = true
		}
		return mapSeries(s, func(v any) (any, error) { return set[hashKey(v)], nil })
	case "between":
		b, err := a.bind("left", "right", "inclusive")
		if err != nil {
			return nil, err
		}
		inclusive, err := b.str("inclusive", "both")
		if err != nil {
			return nil, err
		}
		return s.between(b["left"], b["right"], inclusive)
	case "cumsum":
		if _, err := a.bind("axis", "skipna"); err != nil {
			return nil, err
		}
		total := 0.0
		return mapSeries(s, func(v any) (any, error) {
			if isNull(v) {
				return math.NaN(), nil
			}
			f, ok := toFloat(v)
			if !ok {
				return nil, typeErrorf("cumsum is not supported for %s values", typeName(v))
			}
			total += f
			return total, nil
		})
	case "diff", "pct_change", "shift":
		b, err := a.bind("periods", "fill_value", "fill_method")
		if err != nil {
			return nil, err
		}
		periods, err := b.integer("periods", 1)
		if err != nil {
			return nil, err
		}
		return s.lagged(name, periods, b["fill_value"])
	case "idxmax", "idxmin":
		if _, err := a.bind("axis", "skipna"); err != nil {
			return nil, err
		}
		sign := 1
		if name == "idxmin" {
			sign = -1
		}
		p, err := argExtremum(s.Values, sign)
		if err != nil {
			return nil, err
		}
		return s.Index.Labels[p], nil
	case "reset_index":
		b, err := a.bind("level", "drop", "name", "inplace")
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
		if drop {
			return &Series{Name: s.Name, Index: rangeIndex(s.Len()), Values: s.Values}, nil
		}
		col := *s
		if b.has("name") {
			col.Name = b["name"]
		}
		return resetIndex(s.Index, []*Series{&col})
	case "fillna":
		b, err := a.bind("value", "inplace")
		if err != nil {
			return nil, err
		}
		if err := b.rejectInplace(); err != nil {
			return nil, err
		}
		return mapSeries(s, func(v any) (any, error) {
			if isNull(v) {
				return b["value"], nil
			}
			return v, nil
		})
	case "dropna":
		b, err := a.bind("inplace")
		if err != nil {
			return nil, err
		}
		if err := b.rejectInplace(); err != nil {
			return nil, err
		}
		var rows []int
		for i, v := range s.Values {
			if !isNull(v) {
				rows = append(rows, i)
			}
		}
		return s.take(rows), nil
	case "astype":
		b, err := a.bind("dtype")
		if err != nil {
			return nil, err
		}
		return s.astype(b["dtype"])
	case "any", "all":
		if _, err := a.bind("axis", "skipna"); err != nil {
			return nil, err
		}
		for _, v := range s.Values {
			if isNull(v) {
				continue
			}
			t, err := truthy(v)
			if err != nil {
				return nil, err
			}
			if name == "any" && t {
				return true, nil
			}
			if name == "all" && !t {
				return false, nil
			}
		}
		return name == "all", nil
	case "corr":
		b, err := a.bind("other", "method")
		if err != nil {
			return nil, err
		}
		other, ok := b["other"].(*Series)
		if !ok {
			return nil, typeErrorf("corr() expects a Series")
		}
		return correlation(s, other), nil
	case "quantile":
		b, err := a.bind("q")
		if err != nil {
			return nil, err
		}
		q := 0.5
		if b.has("q") {
			f, ok := toFloat(b["q"])
			if !ok || f < 0 || f > 1 {
				return nil, valueErrorf("percentiles should all be in the interval [0, 1]")
			}
			q = f
		}
		xs, err := numbers(s.Values, "quantile")
		if err != nil {
			return nil, err
		}
		return quantile(xs, q), nil
	case "map":
		b, err := a.bind("arg", "na_action")
		if err != nil {
			return nil, err
		}
		return s.mapValues(b["arg"])
	case "rename":
		b, err := a.bind("index")
		if err != nil {
			return nil, err
		}
		out := *s
		out.Name = b["index"]
		return &out, nil
	case "clip":
		b, err := a.bind("lower", "upper")
		if err != nil {
			return nil, err
		}
		lo, hasLo := toFloat(b["lower"])
		hi, hasHi := toFloat(b["upper"])
		return mapSeries(s, func(v any) (any, error) {
			f, ok := v.(float64)
			if !ok || math.IsNaN(f) {
				return v, nil
			}
			if hasLo && f < lo {
				f = lo
			}
			if hasHi && f > hi {
				f = hi
			}
			return f, nil
		})
	case "copy":
		if _, err := a.bind("deep"); err != nil {
			return nil, err
		}
		return s.withValues(append([]any(nil), s.Values...)), nil
	}
	return nil, attributeError(s, name)
}

func (s *Series) valueCounts(normalize, sorted, ascending, dropna bool) (*Series, error) {
	pos := make(map[string]int)
	var labels []any
	var counts []float64
	total := 0.0
	for _, v := range s.Values {
		if dropna && isNull(v) {
			continue
		}
		total++
		k := hashKey(v)
		if p, ok := pos[k]; ok {
			counts[p]++
			continue
		}
		pos[k] = len(labels)
		labels = append(labels, v)
		counts = append(counts, 1)
	}
	order := make([]int, len(labels))
	for i := range order {
		order[i] = i
	}
	if sorted {
		sort.SliceStable(order, func(i, j int) bool {
			if ascending {
				return counts[order[i]] < counts[order[j]]
			}
			return counts[order[i]] > counts[order[j]]
		})
	}
	outLabels := make([]any, len(order))
	values := make([]any, len(order))
	for i, p := range order {
		outLabels[i] = labels[p]
		if normalize {
			values[i] = counts[p] / total
		} else {
			values[i] = counts[p]
		}
	}
	name := "count"
	if normalize {
		name = "proportion"
	}
	return &Series{
		Name:   name,
		Index:  &Index{Names: []string{labelString(s.Name)}, Labels: outLabels},
		Values: values,
	}, nil
}

func (s *Series) between(left, right any, inclusive string) (*Series, error) {
	switch inclusive {
	case "both", "neither", "left", "right":
	default:
		return nil, valueErrorf("Inclusive has to be either string of 'both', 'left', 'right', or 'neither'.")
	}
	return mapSeries(s, func(v any) (any, error) {
		if isNull(v) {
			return false, nil
		}
		lo, ok := compareValues(v, left)
		if !ok {
			return nil, typeErrorf("'>=' not supported between instances of '%s' and '%s'", typeName(v), typeName(left))
		}
		hi, ok := compareValues(v, right)
		if !ok {
			return nil, typeErrorf("'<=' not supported between instances of '%s' and '%s'", typeName(v), typeName(right))
		}
		lowOK := lo > 0 || (lo == 0 && (inclusive == "both" || inclusive == "left"))
		highOK := hi < 0 || (hi == 0 && (inclusive == "both" || inclusive == "right"))
		return lowOK && highOK, nil
	})
}

// lagged implements diff, pct_change and shift over a positional lag.
func (s *Series) lagged(op string, periods int, fill any) (*Series, error) {
	n := s.Len()
	out := make([]any, n)
	for i := range out {
		j := i - periods
		if j < 0 || j >= n {
			if op == "shift" && fill != nil {
				out[i] = fill
			} else {
				out[i] = math.NaN()
			}
			continue
		}
		if op == "shift" {
			out[i] = s.Values[j]
			continue
		}
		cur, prev := s.Values[i], s.Values[j]
		if isNull(cur) || isNull(prev) {
			out[i] = math.NaN()
			continue
		}
		c, ok1 := toFloat(cur)
		p, ok2 := toFloat(prev)
		if !ok1 || !ok2 {
			return nil, typeErrorf("unsupported operand type(s) for -: '%s' and '%s'", typeName(cur), typeName(prev))
		}
		if op == "diff" {
			out[i] = c - p
			continue
		}
		switch {
		case p != 0:
			out[i] = c/p - 1
		case c == 0:
			out[i] = math.NaN()
		case c > 0:
			out[i] = math.Inf(1)
		default:
			out[i] = math.Inf(-1)
		}
	}
	return s.withValues(out), nil
}

func (s *Series) astype(dtype any) (*Series, error) {
	name := ""
	switch d := dtype.(type) {
	case string:
		name = strings.ToLower(d)
	case builtinFunc:
		name = string(d)
	default:
		return nil, typeErrorf("data type %s not understood", describe(dtype))
	}
	var conv func(any) (any, error)
	switch name {
	case "int", "int64", "int32":
		conv = func(v any) (any, error) {
			if isNull(v) {
				return nil, newError("IntCastingNaNError", "Cannot convert non-finite values (NA or inf) to integer")
			}
			return builtinInt(arguments{fn: "int", pos: []any{v}})
		}
	case "float", "float64", "float32":
		conv = func(v any) (any, error) {
			if v == nil {
				return math.NaN(), nil
			}
			return builtinFloat(arguments{fn: "float", pos: []any{v}})
		}
	case "str", "string", "object":
		conv = func(v any) (any, error) {
			if v == nil {
				return nil, nil
			}
			if t, ok := v.(time.Time); ok {
				return t.Format("2006-01-02"), nil
			}
			return pyStr(v), nil
		}
	case "bool":
		conv = func(v any) (any, error) { return truthy(v) }
	default:
		return nil, typeErrorf("data type '%s' not understood", name)
	}
	return mapSeries(s, conv)
}

func (s *Series) mapValues(arg any) (*Series, error) {
	lookup := func(v any) any { return nil }
	switch m := arg.(type) {
	case *Dict:
		lookup = func(v any) any {
			if r, ok := m.Get(v); ok {
				return r
			}
			return math.NaN()
		}
	case *Series:
		lookup = func(v any) any {
			if p, ok := m.Index.position(v); ok {
				return m.Values[p]
			}
			return math.NaN()
		}
	default:
		return nil, typeErrorf("map() expects a dict or Series, not %s", typeName(arg))
	}
	return mapSeries(s, func(v any) (any, error) { return lookup(v), nil })
}

// correlation is the Pearson coefficient over label-aligned, complete pairs.
func correlation(a, b *Series) float64 {
	_, av, bv := align(a, b)
	var xs, ys []float64
	for i := range av {
		x, ok1 := toFloat(av[i])
		y, ok2 := toFloat(bv[i])
		if !ok1 || !ok2 || math.IsNaN(x) || math.IsNaN(y) {
			continue
		}
		xs = append(xs, x)
		ys = append(ys, y)
	}
	if len(xs) < 2 {
		return math.NaN()
	}
	mx, my := mean(xs), mean(ys)
	var sxy, sxx, syy float64
	for i := range xs {
		dx, dy := xs[i]-mx, ys[i]-my
		sxy += dx * dy
		sxx += dx * dx
		syy += dy * dy
	}
	if sxx == 0 || syy == 0 {
		return math.NaN()
	}
	return sxy / math.Sqrt(sxx*syy)
}

// quantile uses linear interpolation between closest ranks.
func quantile(xs []float64, q float64) float64 {
	if len(xs) == 0 {
		return math.NaN()
	}
	s := append([]float64(nil), xs...)
	sort.Float64s(s)
	pos := q * float64(len(s)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	return s[lo] + (s[hi]-s[lo])*(pos-float64(lo))
}
