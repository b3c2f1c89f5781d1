package analysis

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// builtinFunc is a global function value such as len or round.
type builtinFunc string

var builtins = map[string]func(arguments) (any, error){
	"len":    builtinLen,
	"round":  builtinRound,
	"abs":    builtinAbs,
	"min":    func(a arguments) (any, error) { return builtinExtremum(a, -1) },
	"max":    func(a arguments) (any, error) { return builtinExtremum(a, 1) },
	"sum":    builtinSum,
	"float":  builtinFloat,
	"int":    builtinInt,
	"str":    builtinStr,
	"bool":   builtinBool,
	"list":   builtinList,
	"tuple":  builtinTuple,
	"dict":   builtinDict,
	"sorted": builtinSorted,
	"print":  func(arguments) (any, error) { return nil, nil },
}

func single(a arguments) (any, error) {
	if len(a.pos) != 1 || len(a.kw) != 0 {
		return nil, typeErrorf("%s() takes exactly one argument (%d given)", a.fn, len(a.pos)+len(a.kw))
	}
	return a.pos[0], nil
}

func builtinLen(a arguments) (any, error) {
	v, err := single(a)
	if err != nil {
		return nil, err
	}
	switch x := v.(type) {
	case string:
		return float64(len([]rune(x))), nil
	case *Frame:
		return float64(x.Len()), nil
	case *GroupBy:
		return float64(len(x.groups)), nil
	case *Dict:
		return float64(x.Len()), nil
	}
	items, err := iterate(v)
	if err != nil {
		return nil, typeErrorf("object of type '%s' has no len()", typeName(v))
	}
	return float64(len(items)), nil
}

// roundHalfEven rounds to ndigits decimals, ties to even.
func roundHalfEven(f float64, ndigits int) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return f
	}
	scale := math.Pow(10, float64(ndigits))
	return math.RoundToEven(f*scale) / scale
}

func builtinRound(a arguments) (any, error) {
	b, err := a.bind("number", "ndigits")
	if err != nil {
		return nil, err
	}
	n, err := b.integer("ndigits", 0)
	if err != nil {
		return nil, err
	}
	return roundValue(b["number"], n)
}

func roundValue(v any, ndigits int) (any, error) {
	switch x := v.(type) {
	case *Series:
		return mapSeries(x, func(e any) (any, error) {
			if isNull(e) {
				return e, nil
			}
			return roundValue(e, ndigits)
		})
	case *Frame:
		return x.mapNumeric(func(f float64) float64 { return roundHalfEven(f, ndigits) }), nil
	}
	f, ok := toFloat(v)
	if !ok {
		return nil, typeErrorf("type %s doesn't define __round__ method", typeName(v))
	}
	return roundHalfEven(f, ndigits), nil
}

func builtinAbs(a arguments) (any, error) {
	v, err := single(a)
	if err != nil {
		return nil, err
	}
	return absValue(v)
}

func absValue(v any) (any, error) {
	if s, ok := v.(*Series); ok {
		return mapSeries(s, func(e any) (any, error) {
			if isNull(e) {
				return math.NaN(), nil
			}
			return absValue(e)
		})
	}
	f, ok := toFloat(v)
	if !ok {
		return nil, typeErrorf("bad operand type for abs(): '%s'", typeName(v))
	}
	return math.Abs(f), nil
}

func builtinExtremum(a arguments, sign int) (any, error) {
	if len(a.kw) != 0 {
		return nil, typeErrorf("%s() keyword arguments are not supported", a.fn)
	}
	items := a.pos
	if len(a.pos) == 1 {
		var err error
		if items, err = iterate(a.pos[0]); err != nil {
			return nil, err
		}
	}
	var best any
	found := false
	for _, v := range items {
		if isNull(v) {
			continue
		}
		if !found {
			best, found = v, true
			continue
		}
		c, ok := compareValues(v, best)
		if !ok {
			return nil, typeErrorf("'>' not supported between instances of '%s' and '%s'", typeName(v), typeName(best))
		}
		if c*sign > 0 {
			best = v
		}
	}
	if !found {
		return nil, valueErrorf("%s() arg is an empty sequence", a.fn)
	}
	return best, nil
}

func builtinSum(a arguments) (any, error) {
	b, err := a.bind("iterable", "start")
	if err != nil {
		return nil, err
	}
	items, err := iterate(b["iterable"])
	if err != nil {
		return nil, err
	}
	total := 0.0
	if b.has("start") {
		s, ok := toFloat(b["start"])
		if !ok {
			return nil, typeErrorf("sum() start must be a number")
		}
		total = s
	}
	for _, v := range items {
		f, ok := toFloat(v)
		if !ok {
			if v == nil {
				f = math.NaN()
			} else {
				return nil, typeErrorf("unsupported operand type(s) for +: 'float' and '%s'", typeName(v))
			}
		}
		total += f
	}
	return total, nil
}

func builtinFloat(a arguments) (any, error) {
	if len(a.pos) == 0 {
		return 0.0, nil
	}
	v, err := single(a)
	if err != nil {
		return nil, err
	}
	if s, ok := v.(string); ok {
		t := strings.ToLower(strings.TrimSpace(s))
		switch t {
		case "nan":
			return math.NaN(), nil
		case "inf", "infinity":
			return math.Inf(1), nil
		case "-inf", "-infinity":
			return math.Inf(-1), nil
		}
		f, err := strconv.ParseFloat(strings.ReplaceAll(t, "_", ""), 64)
		if err != nil {
			return nil, valueErrorf("could not convert string to float: %s", pyRepr(s))
		}
		return f, nil
	}
	if v == nil {
		return nil, typeErrorf("float() argument must be a string or a real number, not 'NoneType'")
	}
	f, ok := toFloat(v)
	if !ok {
		return nil, typeErrorf("float() argument must be a string or a real number, not '%s'", typeName(v))
	}
	return f, nil
}

func builtinInt(a arguments) (any, error) {
	if len(a.pos) == 0 {
		return 0.0, nil
	}
	v, err := single(a)
	if err != nil {
		return nil, err
	}
	if s, ok := v.(string); ok {
		n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
		if err != nil {
			return nil, valueErrorf("invalid literal for int() with base 10: %s", pyRepr(s))
		}
		return float64(n), nil
	}
	f, ok := toFloat(v)
	if !ok {
		return nil, typeErrorf("int() argument must be a string or a real number, not '%s'", typeName(v))
	}
	if math.IsNaN(f) {
		return nil, valueErrorf("cannot convert float NaN to integer")
	}
	if math.IsInf(f, 0) {
		return nil, newError("OverflowError", "cannot convert float infinity to integer")
	}
	return math.Trunc(f), nil
}

func builtinStr(a arguments) (any, error) {
	if len(a.pos) == 0 {
		return "", nil
	}
	v, err := single(a)
	if err != nil {
		return nil, err
	}
	return pyStr(v), nil
}

func builtinBool(a arguments) (any, error) {
	if len(a.pos) == 0 {
		return false, nil
	}
	v, err := single(a)
	if err != nil {
		return nil, err
	}
	return truthy(v)
}

func builtinList(a arguments) (any, error) {
	if len(a.pos) == 0 {
		return []any{}, nil
	}
	v, err := single(a)
	if err != nil {
		return nil, err
	}
	items, err := iterate(v)
	if err != nil {
		return nil, err
	}
	return append([]any{}, items...), nil
}

func builtinTuple(a arguments) (any, error) {
	if len(a.pos) == 0 {
		return Tuple{}, nil
	}
	v, err := single(a)
	if err != nil {
		return nil, err
	}
	items, err := iterate(v)
	if err != nil {
		return nil, err
	}
	return append(Tuple{}, items...), nil
}

func builtinDict(a arguments) (any, error) {
	if len(a.pos) > 1 {
		return nil, typeErrorf("dict expected at most 1 argument, got %d", len(a.pos))
	}
	out := NewDict()
	if len(a.pos) == 1 {
		switch x := a.pos[0].(type) {
		case *Dict:
			out = x.copyDict()
		case *Series:
			for i, l := range x.Index.Labels {
				out.Set(l, x.Values[i])
			}
		default:
			items, err := iterate(x)
			if err != nil {
				return nil, err
			}
			for i, item := range items {
				pair, err := iterate(item)
				if err != nil || len(pair) != 2 {
					return nil, valueErrorf("dictionary update sequence element #%d has the wrong length", i)
				}
				if !hashable(pair[0]) {
					return nil, typeErrorf("unhashable type: '%s'", typeName(pair[0]))
				}
				out.Set(pair[0], pair[1])
			}
		}
	}
	for _, kw := range a.kw {
		out.Set(kw.name, kw.value)
	}
	return out, nil
}

func builtinSorted(a arguments) (any, error) {
	b, err := a.bind("iterable", "reverse")
	if err != nil {
		return nil, err
	}
	reverse, err := b.boolean("reverse", false)
	if err != nil {
		return nil, err
	}
	items, err := iterate(b["iterable"])
	if err != nil {
		return nil, err
	}
	order, err := sortRows(len(items), [][]any{items}, []bool{!reverse})
	if err != nil {
		return nil, err
	}
	out := make([]any, len(order))
	for i, p := range order {
		out[i] = items[p]
	}
	return out, nil
}

// pandasModule is the value bound to pd.
type pandasModule struct{}

func pandasCall(name string, a arguments) (any, error) {
	switch name {
	case "DataFrame":
		return newDataFrame(a)
	case "Series":
		return newSeriesValue(a)
	case "to_datetime":
		return toDatetime(a)
	case "isna", "isnull":
		v, err := single(a)
		if err != nil {
			return nil, err
		}
		return nullMask(v, false), nil
	case "notna", "notnull":
		v, err := single(a)
		if err != nil {
			return nil, err
		}
		return nullMask(v, true), nil
	}
	return nil, newError("AttributeError", "module 'pandas' has no attribute '%s'", name)
}

func nullMask(v any, negate bool) any {
	if s, ok := v.(*Series); ok {
		out := make([]any, s.Len())
		for i, e := range s.Values {
			out[i] = isNull(e) != negate
		}
		return s.withValues(out)
	}
	return isNull(v) != negate
}

func newDataFrame(a arguments) (any, error) {
	b, err := a.bind("data", "index", "columns")
	if err != nil {
		return nil, err
	}
	columns, err := b.strings("columns")
	if err != nil {
		return nil, err
	}
	var cols []*Series
	switch data := b["data"].(type) {
	case nil:
		for _, c := range columns {
			cols = append(cols, newSeries(c, []any{}))
		}
	case *Frame:
		f := data.copyFrame()
		if len(columns) > 0 {
			names := make([]any, len(columns))
			for i, c := range columns {
				names[i] = c
			}
			return f.project(names)
		}
		return f, nil
	case *Dict:
		n := -1
		for _, v := range data.values {
			if items, err := columnValues(v); err == nil {
				if n >= 0 && len(items) != n {
					return nil, valueErrorf("All arrays must be of the same length")
				}
				n = len(items)
			}
		}
		if n < 0 {
			return nil, valueErrorf("If using all scalar values, you must pass an index")
		}
		for i, k := range data.keys {
			items, err := columnValues(data.values[i])
			if err != nil {
				items = make([]any, n)
				for j := range items {
					items[j] = data.values[i]
				}
			}
			cols = append(cols, newSeries(labelString(k), items))
		}
	case []any:
		if cols, err = recordColumns(data, columns); err != nil {
			return nil, err
		}
		columns = nil
	default:
		return nil, valueErrorf("DataFrame constructor not properly called!")
	}

	f, err := frameFromSeries(nil, cols)
	if err != nil {
		return nil, err
	}
	if len(columns) > 0 && b["data"] != nil {
		names := make([]any, len(columns))
		for i, c := range columns {
			names[i] = c
		}
		if f, err = f.project(names); err != nil {
			return nil, err
		}
	}
	if b.has("index") && b["index"] != nil {
		labels, err := iterate(b["index"])
		if err != nil {
			return nil, err
		}
		if len(labels) != f.Len() {
			return nil, valueErrorf("Length of values (%d) does not match length of index (%d)", f.Len(), len(labels))
		}
		f.index = &Index{Names: []string{""}, Labels: append([]any(nil), labels...)}
	}
	return f, nil
}

func columnValues(v any) ([]any, error) {
	switch x := v.(type) {
	case []any:
		return append([]any(nil), x...), nil
	case Tuple:
		return append([]any(nil), x...), nil
	case *Series:
		return append([]any(nil), x.Values...), nil
	}
	return nil, typeErrorf("not a column")
}

// recordColumns builds columns from a list of dicts or a list of rows.
func recordColumns(rows []any, columns []string) ([]*Series, error) {
	if len(rows) == 0 {
		out := make([]*Series, len(columns))
		for i, c := range columns {
			out[i] = newSeries(c, []any{})
		}
		return out, nil
	}
	if _, ok := rows[0].(*Dict); ok {
		names := append([]string(nil), columns...)
		if len(names) == 0 {
			seen := make(map[string]bool)
			for _, r := range rows {
				d, ok := r.(*Dict)
				if !ok {
					return nil, typeErrorf("mixed records in DataFrame data")
				}
				for _, k := range d.keys {
					if name := labelString(k); !seen[name] {
						seen[name] = true
						names = append(names, name)
					}
				}
			}
		}
		out := make([]*Series, len(names))
		for i, name := range names {
			values := make([]any, len(rows))
			for j, r := range rows {
				d, ok := r.(*Dict)
				if !ok {
					return nil, typeErrorf("mixed records in DataFrame data")
				}
				values[j], _ = d.Get(name)
			}
			out[i] = newSeries(name, values)
		}
		return out, nil
	}

	width := 0
	table := make([][]any, len(rows))
	for i, r := range rows {
		items, err := iterate(r)
		if err != nil {
			items = []any{r}
		}
		table[i] = items
		width = max(width, len(items))
	}
	names := columns
	if len(names) == 0 {
		for i := 0; i < width; i++ {
			names = append(names, strconv.Itoa(i))
		}
	}
	if len(names) != width {
		return nil, valueErrorf("%d columns passed, passed data had %d columns", len(names), width)
	}
	out := make([]*Series, width)
	for c := 0; c < width; c++ {
		values := make([]any, len(table))
		for r, row := range table {
			if c < len(row) {
				values[r] = row[c]
			}
		}
		out[c] = newSeries(names[c], values)
	}
	return out, nil
}

func newSeriesValue(a arguments) (any, error) {
	b, err := a.bind("data", "index", "name")
	if err != nil {
		return nil, err
	}
	var s *Series
	switch data := b["data"].(type) {
	case nil:
		s = newSeries(nil, []any{})
	case *Series:
		s = &Series{Name: data.Name, Index: data.Index, Values: append([]any(nil), data.Values...)}
	case *Dict:
		s = &Series{Index: &Index{Names: []string{""}, Labels: data.Keys()}, Values: data.Values()}
	default:
		values, err := columnValues(data)
		if err != nil {
			if !b.has("index") {
				return nil, typeErrorf("Series data must be list-like")
			}
			labels, err := iterate(b["index"])
			if err != nil {
				return nil, err
			}
			values = make([]any, len(labels))
			for i := range values {
				values[i] = data
			}
		}
		s = newSeries(nil, values)
	}
	if idx, ok := b["index"]; ok && idx != nil {
		labels, err := iterate(idx)
		if err != nil {
			return nil, err
		}
		if len(labels) != s.Len() {
			return nil, valueErrorf("Length of values (%d) does not match length of index (%d)", s.Len(), len(labels))
		}
		s.Index = &Index{Names: []string{""}, Labels: append([]any(nil), labels...)}
	}
	if b.has("name") {
		s.Name = b["name"]
	}
	return s, nil
}

func toDatetime(a arguments) (any, error) {
	b, err := a.bind("arg", "errors", "format")
	if err != nil {
		return nil, err
	}
	mode, err := b.str("errors", "raise")
	if err != nil {
		return nil, err
	}
	layout, err := b.str("format", "")
	if err != nil {
		return nil, err
	}
	convert := func(v any) (any, error) {
		switch x := v.(type) {
		case nil:
			return nil, nil
		case time.Time:
			return x, nil
		case string:
			var t time.Time
			ok := false
			if layout != "" {
				var perr error
				t, perr = time.Parse(strftimeLayout(layout), strings.TrimSpace(x))
				ok = perr == nil
			} else {
				t, ok = parseTimestamp(x)
			}
			if ok {
				return t, nil
			}
			if mode == "coerce" {
				return nil, nil
			}
			return nil, valueErrorf("time data %s doesn't match format", pyRepr(x))
		}
		if isNull(v) {
			return nil, nil
		}
		if mode == "coerce" {
			return nil, nil
		}
		return nil, typeErrorf("<class '%s'> is not convertible to datetime", typeName(v))
	}
	if s, ok := b["arg"].(*Series); ok {
		return mapSeries(s, convert)
	}
	if items, ok := b["arg"].([]any); ok {
		out := make([]any, len(items))
		for i, v := range items {
			if out[i], err = convert(v); err != nil {
				return nil, err
			}
		}
		return out, nil
	}
	return convert(b["arg"])
}

// strftimeLayout translates the common strftime directives to a Go layout.
func strftimeLayout(format string) string {
	r := strings.NewReplacer(
		"%Y", "2006", "%m", "01", "%d", "02",
		"%H", "15", "%M", "04", "%S", "05",
		"%y", "06", "%b", "Jan", "%B", "January",
	)
	return r.Replace(format)
}
