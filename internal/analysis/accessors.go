package analysis

import (
	"math"
	"regexp"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

// strAccessor is Series.str.
type strAccessor struct {
	s *Series
}

func (sa *strAccessor) apply(fn func(string) (any, error)) (*Series, error) {
	return mapSeries(sa.s, func(v any) (any, error) {
		str, ok := v.(string)
		if !ok {
			if isNull(v) {
				return math.NaN(), nil
			}
			return nil, newError("AttributeError", "Can only use .str accessor with string values!")
		}
		return fn(str)
	})
}

func callStr(sa *strAccessor, name string, a arguments) (any, error) {
	switch name {
	case "lower", "upper", "strip", "title", "len":
		if _, err := a.bind(); err != nil {
			return nil, err
		}
		return sa.apply(func(s string) (any, error) {
			switch name {
			case "lower":
				return strings.ToLower(s), nil
			case "upper":
				return strings.ToUpper(s), nil
			case "strip":
				return strings.TrimSpace(s), nil
			case "title":
				return titleCase(s), nil
			}
			return float64(utf8.RuneCountInString(s)), nil
		})
	case "contains":
		b, err := a.bind("pat", "case", "flags", "na", "regex")
		if err != nil {
			return nil, err
		}
		pat, err := b.str("pat", "")
		if err != nil {
			return nil, err
		}
		caseSensitive, err := b.boolean("case", true)
		if err != nil {
			return nil, err
		}
		useRegex, err := b.boolean("regex", true)
		if err != nil {
			return nil, err
		}
		match, err := matcher(pat, caseSensitive, useRegex)
		if err != nil {
			return nil, err
		}
		na, hasNA := b["na"]
		out := make([]any, sa.s.Len())
		for i, v := range sa.s.Values {
			str, ok := v.(string)
			switch {
			case ok:
				out[i] = match(str)
			case hasNA:
				out[i] = na
			default:
				out[i] = nil
			}
		}
		return sa.s.withValues(out), nil
	case "startswith", "endswith":
		b, err := a.bind("pat", "na")
		if err != nil {
			return nil, err
		}
		pat, err := b.str("pat", "")
		if err != nil {
			return nil, err
		}
		return sa.apply(func(s string) (any, error) {
			if name == "startswith" {
				return strings.HasPrefix(s, pat), nil
			}
			return strings.HasSuffix(s, pat), nil
		})
	case "replace":
		b, err := a.bind("pat", "repl", "n", "case", "flags", "regex")
		if err != nil {
			return nil, err
		}
		pat, err := b.str("pat", "")
		if err != nil {
			return nil, err
		}
		repl, err := b.str("repl", "")
		if err != nil {
			return nil, err
		}
		useRegex, err := b.boolean("regex", false)
		if err != nil {
			return nil, err
		}
		if useRegex {
			re, err := regexp.Compile(pat)
			if err != nil {
				return nil, newError("error", "%s", err.Error())
			}
			return sa.apply(func(s string) (any, error) {
				// A $ reference in repl expands to at most the whole input.
				n := len(re.FindAllStringIndex(s, -1))
				if n > 0 && len(repl) > 0 && n > maxValueSize/(len(repl)*(len(s)+1)) {
					return nil, memoryError()
				}
				return re.ReplaceAllString(s, repl), nil
			})
		}
		return sa.apply(func(s string) (any, error) {
			if err := checkSize(replacedSize(s, pat, repl)); err != nil {
				return nil, err
			}
			return strings.ReplaceAll(s, pat, repl), nil
		})
	}
	return nil, attributeError(sa, name)
}

func matcher(pat string, caseSensitive, useRegex bool) (func(string) bool, error) {
	if !useRegex {
		if caseSensitive {
			return func(s string) bool { return strings.Contains(s, pat) }, nil
		}
		lp := strings.ToLower(pat)
		return func(s string) bool { return strings.Contains(strings.ToLower(s), lp) }, nil
	}
	if !caseSensitive {
		pat = "(?i)" + pat
	}
	re, err := regexp.Compile(pat)
	if err != nil {
		return nil, newError("error", "%s", err.Error())
	}
	return re.MatchString, nil
}

func titleCase(s string) string {
	var sb strings.Builder
	start := true
	for _, r := range s {
		isLetter := unicode.IsLetter(r)
		switch {
		case isLetter && start:
			sb.WriteRune(unicode.ToUpper(r))
			start = false
		case isLetter:
			sb.WriteRune(unicode.ToLower(r))
		default:
			sb.WriteRune(r)
			start = true
		}
	}
	return sb.String()
}

// dtAccessor is Series.dt.
type dtAccessor struct {
	s *Series
}

func newDtAccessor(s *Series) (any, error) {
	for _, v := range s.Values {
		if _, ok := v.(time.Time); !ok && !isNull(v) {
			return nil, newError("AttributeError", "Can only use .dt accessor with datetimelike values")
		}
	}
	return &dtAccessor{s: s}, nil
}

func (d *dtAccessor) field(name string) (any, error) {
	var get func(t time.Time) any
	switch name {
	case "year":
		get = func(t time.Time) any { return float64(t.Year()) }
	case "month":
		get = func(t time.Time) any { return float64(t.Month()) }
	case "day":
		get = func(t time.Time) any { return float64(t.Day()) }
	case "quarter":
		get = func(t time.Time) any { return float64((int(t.Month())-1)/3 + 1) }
	case "dayofweek", "weekday":
		get = func(t time.Time) any { return float64((int(t.Weekday()) + 6) % 7) }
	case "dayofyear":
		get = func(t time.Time) any { return float64(t.YearDay()) }
	case "date":
		get = func(t time.Time) any { return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location()) }
	case "month_name":
		return nil, typeErrorf("month_name is a method; call it with ()")
	default:
		return nil, attributeError(d, name)
	}
	return mapSeries(d.s, func(v any) (any, error) {
		t, ok := v.(time.Time)
		if !ok {
			return math.NaN(), nil
		}
		return get(t), nil
	})
}

func callDt(d *dtAccessor, name string, a arguments) (any, error) {
	switch name {
	case "month_name", "day_name":
		if _, err := a.bind(); err != nil {
			return nil, err
		}
		return mapSeries(d.s, func(v any) (any, error) {
			t, ok := v.(time.Time)
			if !ok {
				return math.NaN(), nil
			}
			if name == "month_name" {
				return t.Month().String(), nil
			}
			return t.Weekday().String(), nil
		})
	case "strftime":
		b, err := a.bind("date_format")
		if err != nil {
			return nil, err
		}
		format, err := b.str("date_format", "")
		if err != nil {
			return nil, err
		}
		layout := strftimeLayout(format)
		return mapSeries(d.s, func(v any) (any, error) {
			t, ok := v.(time.Time)
			if !ok {
				return math.NaN(), nil
			}
			return t.Format(layout), nil
		})
	}
	return nil, attributeError(d, name)
}
