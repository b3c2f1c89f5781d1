package analysis

import (
	"fmt"
	"strings"
)

type kwarg struct {
	name  string
	value any
}

// arguments are the evaluated arguments of one call.
type arguments struct {
	fn  string
	pos []any
	kw  []kwarg
}

// bound maps parameter names to the values supplied for them.
type bound map[string]any

// bind matches positional arguments to params in order and keyword
// arguments by name. Unknown keywords and surplus positionals are errors.
func (a arguments) bind(params ...string) (bound, error) {
	if len(a.pos) > len(params) {
		return nil, typeErrorf("%s() takes at most %d positional arguments (%d given)", a.fn, len(params), len(a.pos))
	}
	b := make(bound, len(a.pos)+len(a.kw))
	for i, v := range a.pos {
		b[params[i]] = v
	}
	for _, kw := range a.kw {
		if !contains(params, kw.name) {
			return nil, typeErrorf("%s() got an unexpected keyword argument '%s'", a.fn, kw.name)
		}
		if _, dup := b[kw.name]; dup {
			return nil, typeErrorf("%s() got multiple values for argument '%s'", a.fn, kw.name)
		}
		b[kw.name] = kw.value
	}
	return b, nil
}

func (b bound) has(name string) bool {
	_, ok := b[name]
	return ok
}

func (b bound) str(name, def string) (string, error) {
	v, ok := b[name]
	if !ok || v == nil {
		return def, nil
	}
	s, ok := v.(string)
	if !ok {
		return "", typeErrorf("%s must be a string, not %s", name, typeName(v))
	}
	return s, nil
}

func (b bound) integer(name string, def int) (int, error) {
	v, ok := b[name]
	if !ok || v == nil {
		return def, nil
	}
	n, err := asInt(v)
	if err != nil {
		return 0, typeErrorf("%s must be an integer, not %s", name, typeName(v))
	}
	return n, nil
}

func (b bound) boolean(name string, def bool) (bool, error) {
	v, ok := b[name]
	if !ok || v == nil {
		return def, nil
	}
	t, ok := v.(bool)
	if !ok {
		return false, typeErrorf("%s must be a bool, not %s", name, typeName(v))
	}
	return t, nil
}

// strings accepts a single string or a list of strings.
func (b bound) strings(name string) ([]string, error) {
	v, ok := b[name]
	if !ok || v == nil {
		return nil, nil
	}
	return stringList(v, name)
}

func stringList(v any, what string) ([]string, error) {
	switch x := v.(type) {
	case string:
		return []string{x}, nil
	case []any, Tuple:
		items, _ := iterate(x)
		out := make([]string, len(items))
		for i, item := range items {
			s, ok := item.(string)
			if !ok {
				return nil, typeErrorf("%s must contain strings, found %s", what, typeName(item))
			}
			out[i] = s
		}
		return out, nil
	}
	return nil, typeErrorf("%s must be a string or list of strings, not %s", what, typeName(v))
}

// ascending reads the ascending flag(s) for n sort keys.
func (b bound) ascending(n int) ([]bool, error) {
	out := make([]bool, n)
	for i := range out {
		out[i] = true
	}
	v, ok := b["ascending"]
	if !ok || v == nil {
		return out, nil
	}
	switch x := v.(type) {
	case bool:
		for i := range out {
			out[i] = x
		}
		return out, nil
	case []any:
		if len(x) != n {
			return nil, valueErrorf("Length of ascending (%d) != length of by (%d)", len(x), n)
		}
		for i, item := range x {
			t, ok := item.(bool)
			if !ok {
				return nil, typeErrorf("ascending must contain bools")
			}
			out[i] = t
		}
		return out, nil
	}
	return nil, typeErrorf("ascending must be a bool or list of bools")
}

// rejectInplace refuses inplace=True, which would mutate an aliased value.
func (b bound) rejectInplace() error {
	if v, ok := b["inplace"]; ok && v == true {
		return valueErrorf("inplace=True is not supported; assign the returned value instead")
	}
	return nil
}

// aggName turns an aggregation spec ("sum", the builtin sum) into its name.
func aggName(v any) (string, error) {
	switch x := v.(type) {
	case string:
		name := strings.ToLower(x)
		if name == "average" {
			name = "mean"
		}
		if _, ok := aggregations[name]; ok {
			return name, nil
		}
		return "", newError("AttributeError", "'%s' is not a valid function for aggregation", x)
	case builtinFunc:
		switch x {
		case "sum", "min", "max", "len":
			if x == "len" {
				return "size", nil
			}
			return string(x), nil
		}
	}
	return "", typeErrorf("unsupported aggregation %s", describe(v))
}

func describe(v any) string {
	if s, ok := v.(string); ok {
		return fmt.Sprintf("'%s'", s)
	}
	return typeName(v)
}
