package analysis

import (
	"strconv"
	"strings"
	"time"
)

// callMethod dispatches recv.name(args...).
func callMethod(recv any, name string, a arguments) (any, error) {
	switch r := recv.(type) {
	case *Frame:
		return callFrame(r, name, a)
	case *Series:
		return callSeries(r, name, a)
	case *GroupBy:
		return callGroupBy(r, name, a)
	case *strAccessor:
		return callStr(r, name, a)
	case *dtAccessor:
		return callDt(r, name, a)
	case pandasModule:
		return pandasCall(name, a)
	case *Dict:
		return callDict(r, name, a)
	case []any:
		return callSequence(r, name, a)
	case Tuple:
		return callSequence(r, name, a)
	case string:
		return callString(r, name, a)
	}
	if _, err := getAttr(recv, name); err == nil {
		return nil, typeErrorf("'%s' attribute '%s' is not callable", typeName(recv), name)
	}
	return nil, attributeError(recv, name)
}

func callDict(d *Dict, name string, a arguments) (any, error) {
	switch name {
	case "keys", "values", "items", "copy":
		if _, err := a.bind(); err != nil {
			return nil, err
		}
		switch name {
		case "keys":
			return d.Keys(), nil
		case "values":
			return d.Values(), nil
		case "copy":
			return d.copyDict(), nil
		}
		out := make([]any, d.Len())
		for i, k := range d.keys {
			out[i] = Tuple{k, d.values[i]}
		}
		return out, nil
	case "get":
		b, err := a.bind("key", "default")
		if err != nil {
			return nil, err
		}
		if !hashable(b["key"]) {
			return nil, typeErrorf("unhashable type: '%s'", typeName(b["key"]))
		}
		if v, ok := d.Get(b["key"]); ok {
			return v, nil
		}
		return b["default"], nil
	case "update":
		b, err := a.bind("other")
		if err != nil {
			return nil, err
		}
		if other, ok := b["other"].(*Dict); ok {
			for i, k := range other.keys {
				d.Set(k, other.values[i])
			}
		}
		for _, kw := range a.kw {
			if kw.name != "other" {
				d.Set(kw.name, kw.value)
			}
		}
		return nil, nil
	}
	return nil, attributeError(d, name)
}

func callSequence(items []any, name string, a arguments) (any, error) {
	switch name {
	case "tolist", "copy":
		if _, err := a.bind(); err != nil {
			return nil, err
		}
		return append([]any{}, items...), nil
	case "index":
		b, err := a.bind("value")
		if err != nil {
			return nil, err
		}
		for i, v := range items {
			if valueEqual(v, b["value"]) {
				return float64(i), nil
			}
		}
		return nil, valueErrorf("%s is not in list", pyRepr(b["value"]))
	case "count":
		b, err := a.bind("value")
		if err != nil {
			return nil, err
		}
		n := 0
		for _, v := range items {
			if valueEqual(v, b["value"]) {
				n++
			}
		}
		return float64(n), nil
	}
	return nil, attributeError(items, name)
}

func callString(s, name string, a arguments) (any, error) {
	switch name {
	case "upper", "lower", "strip", "title", "isdigit":
		if _, err := a.bind(); err != nil {
			return nil, err
		}
		switch name {
		case "upper":
			return strings.ToUpper(s), nil
		case "lower":
			return strings.ToLower(s), nil
		case "strip":
			return strings.TrimSpace(s), nil
		case "title":
			return titleCase(s), nil
		}
		_, err := strconv.ParseUint(s, 10, 64)
		return err == nil, nil
	case "replace":
		b, err := a.bind("old", "new")
		if err != nil {
			return nil, err
		}
		old, err := b.str("old", "")
		if err != nil {
			return nil, err
		}
		repl, err := b.str("new", "")
		if err != nil {
			return nil, err
		}
		if err := checkSize(replacedSize(s, old, repl)); err != nil {
			return nil, err
		}
		return strings.ReplaceAll(s, old, repl), nil
	case "startswith", "endswith":
		b, err := a.bind("prefix")
		if err != nil {
			return nil, err
		}
		p, err := b.str("prefix", "")
		if err != nil {
			return nil, err
		}
		if name == "startswith" {
			return strings.HasPrefix(s, p), nil
		}
		return strings.HasSuffix(s, p), nil
	case "split":
		b, err := a.bind("sep")
		if err != nil {
			return nil, err
		}
		sep, err := b.str("sep", "")
		if err != nil {
			return nil, err
		}
		var parts []string
		if sep == "" {
			parts = strings.Fields(s)
		} else {
			parts = strings.Split(s, sep)
		}
		out := make([]any, len(parts))
		for i, p := range parts {
			out[i] = p
		}
		return out, nil
	case "join":
		b, err := a.bind("iterable")
		if err != nil {
			return nil, err
		}
		items, err := iterate(b["iterable"])
		if err != nil {
			return nil, err
		}
		parts := make([]string, len(items))
		size := len(s) * max(len(items)-1, 0)
		for i, item := range items {
			str, ok := item.(string)
			if !ok {
				return nil, typeErrorf("sequence item %d: expected str instance, %s found", i, typeName(item))
			}
			parts[i] = str
			size += len(str)
		}
		if err := checkSize(size); err != nil {
			return nil, err
		}
		return strings.Join(parts, s), nil
	case "format":
		return formatString(s, a)
	}
	return nil, attributeError(s, name)
}

// formatString implements str.format for {}, {0} and {name} fields with
// an optional ",", ".Nf" or ".N%" spec.
func formatString(tmpl string, a arguments) (any, error) {
	var sb strings.Builder
	next := 0
	for i := 0; i < len(tmpl); i++ {
		c := tmpl[i]
		if c == '}' && i+1 < len(tmpl) && tmpl[i+1] == '}' {
			sb.WriteByte('}')
			i++
			continue
		}
		if c != '{' {
			sb.WriteByte(c)
			continue
		}
		if i+1 < len(tmpl) && tmpl[i+1] == '{' {
			sb.WriteByte('{')
			i++
			continue
		}
		end := strings.IndexByte(tmpl[i:], '}')
		if end < 0 {
			return nil, valueErrorf("Single '{' encountered in format string")
		}
		field, spec, _ := strings.Cut(tmpl[i+1:i+end], ":")
		var v any
		switch {
		case field == "":
			if next >= len(a.pos) {
				return nil, newError("IndexError", "Replacement index %d out of range for positional args tuple", next)
			}
			v = a.pos[next]
			next++
		default:
			if n, err := strconv.Atoi(field); err == nil {
				if n >= len(a.pos) {
					return nil, newError("IndexError", "Replacement index %d out of range for positional args tuple", n)
				}
				v = a.pos[n]
				break
			}
			found := false
			for _, kw := range a.kw {
				if kw.name == field {
					v, found = kw.value, true
				}
			}
			if !found {
				return nil, newError("KeyError", "%s", pyRepr(field))
			}
		}
		out, err := formatSpec(v, spec)
		if err != nil {
			return nil, err
		}
		sb.WriteString(out)
		i += end
	}
	return sb.String(), nil
}

func formatSpec(v any, spec string) (string, error) {
	if spec == "" {
		return pyStr(v), nil
	}
	f, ok := toFloat(v)
	if !ok {
		return "", valueErrorf("Unknown format code for object of type '%s'", typeName(v))
	}
	grouping := strings.HasPrefix(spec, ",")
	spec = strings.TrimPrefix(spec, ",")
	precision := -1
	verb := byte('g')
	if strings.HasPrefix(spec, ".") && len(spec) >= 3 {
		n, err := strconv.Atoi(spec[1 : len(spec)-1])
		if err != nil {
			return "", valueErrorf("Invalid format specifier")
		}
		precision, verb = n, spec[len(spec)-1]
	} else if spec == "f" || spec == "%" || spec == "d" {
		precision, verb = 6, spec[0]
		if spec == "d" {
			precision = 0
		}
	} else if spec != "" {
		return "", valueErrorf("Invalid format specifier")
	}
	suffix := ""
	switch verb {
	case '%':
		f *= 100
		suffix = "%"
	case 'f', 'd', 'g':
	default:
		return "", valueErrorf("Unknown format code '%c'", verb)
	}
	var s string
	if precision >= 0 {
		s = strconv.FormatFloat(f, 'f', precision, 64)
	} else {
		s = formatFloat(f)
	}
	if grouping {
		s = groupThousands(s)
	}
	return s + suffix, nil
}

func groupThousands(s string) string {
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	intPart, frac, hasFrac := strings.Cut(s, ".")
	var sb strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			sb.WriteByte(',')
		}
		sb.WriteRune(r)
	}
	if hasFrac {
		return sign + sb.String() + "." + frac
	}
	return sign + sb.String()
}

func timeAttr(t time.Time, name string) (any, error) {
	switch name {
	case "year":
		return float64(t.Year()), nil
	case "month":
		return float64(t.Month()), nil
	case "day":
		return float64(t.Day()), nil
	case "quarter":
		return float64((int(t.Month())-1)/3 + 1), nil
	case "dayofweek":
		return float64((int(t.Weekday()) + 6) % 7), nil
	}
	return nil, attributeError(t, name)
}
