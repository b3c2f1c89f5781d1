package analysis

import (
	"math"
	"sort"
	"strings"
)

type aggFunc func(values []any) (any, error)

// aggregations are the reductions available to Series, Frame and GroupBy.
var aggregations = map[string]aggFunc{
	"sum":     aggSum,
	"mean":    numericAgg("mean", mean),
	"median":  numericAgg("median", median),
	"std":     numericAgg("std", func(xs []float64) float64 { return math.Sqrt(variance(xs)) }),
	"var":     numericAgg("var", variance),
	"min":     extremum(-1),
	"max":     extremum(1),
	"count":   aggCount,
	"nunique": aggNunique,
	"size":    func(values []any) (any, error) { return float64(len(values)), nil },
	"first":   func(values []any) (any, error) { return firstNonNull(values, false), nil },
	"last":    func(values []any) (any, error) { return firstNonNull(values, true), nil },
}

// numericOnly lists reductions that skip text and date columns of a Frame.
var numericOnly = map[string]bool{"sum": true, "mean": true, "median": true, "std": true, "var": true}

func aggregate(name string, values []any) (any, error) {
	fn, ok := aggregations[name]
	if !ok {
		return nil, newError("AttributeError", "'%s' is not a valid function for aggregation", name)
	}
	return fn(values)
}

func numbers(values []any, op string) ([]float64, error) {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		if isNull(v) {
			continue
		}
		f, ok := toFloat(v)
		if !ok {
			return nil, typeErrorf("Could not convert %s to numeric for %s", pyRepr(v), op)
		}
		out = append(out, f)
	}
	return out, nil
}

func numericAgg(op string, fn func([]float64) float64) aggFunc {
	return func(values []any) (any, error) {
		xs, err := numbers(values, op)
		if err != nil {
			return nil, err
		}
		return fn(xs), nil
	}
}

func aggSum(values []any) (any, error) {
	var sb strings.Builder
	texts, nums := 0, 0
	total := 0.0
	for _, v := range values {
		if isNull(v) {
			continue
		}
		if s, ok := v.(string); ok {
			sb.WriteString(s)
			texts++
			continue
		}
		f, ok := toFloat(v)
		if !ok {
			return nil, typeErrorf("unsupported operand type(s) for +: '%s'", typeName(v))
		}
		total += f
		nums++
	}
	if texts > 0 {
		if nums > 0 {
			return nil, typeErrorf("unsupported operand type(s) for +: 'float' and 'str'")
		}
		return sb.String(), nil
	}
	return total, nil
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return math.NaN()
	}
	total := 0.0
	for _, x := range xs {
		total += x
	}
	return total / float64(len(xs))
}

func median(xs []float64) float64 {
	if len(xs) == 0 {
		return math.NaN()
	}
	s := append([]float64(nil), xs...)
	sort.Float64s(s)
	mid := len(s) / 2
	if len(s)%2 == 1 {
		return s[mid]
	}
	return (s[mid-1] + s[mid]) / 2
}

// variance is the sample variance (ddof=1).
func variance(xs []float64) float64 {
	if len(xs) < 2 {
		return math.NaN()
	}
	m := mean(xs)
	ss := 0.0
	for _, x := range xs {
		ss += (x - m) * (x - m)
	}
	return ss / float64(len(xs)-1)
}

func extremum(sign int) aggFunc {
	return func(values []any) (any, error) {
		var best any
		for _, v := range values {
			if isNull(v) {
				continue
			}
			if best == nil {
				best = v
				continue
			}
			c, ok := compareValues(v, best)
			if !ok {
				return nil, typeErrorf("'<' not supported between instances of '%s' and '%s'", typeName(v), typeName(best))
			}
			if c*sign > 0 {
				best = v
			}
		}
		if best == nil {
			return math.NaN(), nil
		}
		return best, nil
	}
}

func aggCount(values []any) (any, error) {
	n := 0
	for _, v := range values {
		if !isNull(v) {
			n++
		}
	}
	return float64(n), nil
}

func aggNunique(values []any) (any, error) {
	seen := make(map[string]bool)
	for _, v := range values {
		if !isNull(v) {
			seen[hashKey(v)] = true
		}
	}
	return float64(len(seen)), nil
}

func firstNonNull(values []any, last bool) any {
	if last {
		for i := len(values) - 1; i >= 0; i-- {
			if !isNull(values[i]) {
				return values[i]
			}
		}
		return nil
	}
	for _, v := range values {
		if !isNull(v) {
			return v
		}
	}
	return nil
}

// argExtremum returns the position of the first max (sign 1) or min (-1).
func argExtremum(values []any, sign int) (int, error) {
	best := -1
	for i, v := range values {
		if isNull(v) {
			continue
		}
		if best < 0 {
			best = i
			continue
		}
		c, ok := compareValues(v, values[best])
		if !ok {
			return 0, typeErrorf("cannot compare %s and %s", typeName(v), typeName(values[best]))
		}
		if c*sign > 0 {
			best = i
		}
	}
	if best < 0 {
		return 0, valueErrorf("attempt to get argmax of an empty sequence")
	}
	return best, nil
}

// sortRows orders row positions by keys, nulls last, stable.
func sortRows(n int, keys [][]any, ascending []bool) ([]int, error) {
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	var cmpErr error
	sort.SliceStable(order, func(a, b int) bool {
		ra, rb := order[a], order[b]
		for k, col := range keys {
			va, vb := col[ra], col[rb]
			na, nb := isNull(va), isNull(vb)
			switch {
			case na && nb:
				continue
			case na:
				return false
			case nb:
				return true
			}
			c, ok := compareValues(va, vb)
			if !ok {
				cmpErr = typeErrorf("'<' not supported between instances of '%s' and '%s'", typeName(va), typeName(vb))
				return false
			}
			if c == 0 {
				continue
			}
			if ascending[k] {
				return c < 0
			}
			return c > 0
		}
		return false
	})
	return order, cmpErr
}
