package analysis

import (
	"fmt"
	"sort"
	"strings"
)

// DefaultMaxStatements caps program length when no limit is configured.
const DefaultMaxStatements = 64

const minCodeLength = 5

type deniedPattern struct {
	pattern string
	reason  string
}

// denylist is matched case-insensitively against the raw source, in order.
var denylist = []deniedPattern{
	{"import os", "OS operations not allowed"},
	{"import sys", "System operations not allowed"},
	{"import subprocess", "Subprocess not allowed"},
	{"__import__", "Dynamic imports not allowed"},
	{"eval(", "eval() not allowed"},
	{"exec(", "exec() not allowed"},
	{"open(", "File operations not allowed"},
	{"write(", "Write operations not allowed"},
	{"delete", "Delete operations not allowed"},
	{"drop(", "DataFrame drop operations should be avoided"},
	{"to_csv", "File write operations not allowed"},
	{"to_excel", "File write operations not allowed"},
	{"to_sql", "Database operations not allowed"},
	{"seasonal_decompose", "Advanced statistical functions not available - use basic pandas operations only"},
}

// allowedCalls is every function or method name a program may call.
var allowedCalls = setOf(
	// builtins
	"len", "round", "abs", "min", "max", "sum", "float", "int", "str", "bool",
	"list", "tuple", "dict", "sorted", "print",
	// pd
	"DataFrame", "Series", "to_datetime", "isna", "isnull", "notna", "notnull",
	// reductions
	"mean", "median", "count", "std", "var", "nunique", "size", "first", "last",
	"agg", "aggregate", "idxmax", "idxmin", "any", "all", "corr", "quantile",
	// reshaping
	"groupby", "sort_values", "sort_index", "nlargest", "nsmallest", "head", "tail",
	"reset_index", "set_index", "rename", "drop_duplicates", "dropna", "fillna",
	"copy", "assign", "to_frame",
	// conversion
	"to_dict", "tolist", "to_list", "unique", "value_counts", "astype", "keys",
	"values", "items", "get", "update", "index",
	// elementwise
	"isin", "between", "pct_change", "cumsum", "diff", "shift", "map", "clip",
	// strings and dates
	"contains", "lower", "upper", "strip", "title", "startswith", "endswith",
	"replace", "split", "join", "format", "isdigit", "month_name", "day_name",
	"strftime",
)

func setOf(names ...string) map[string]bool {
	out := make(map[string]bool, len(names))
	for _, n := range names {
		out[n] = true
	}
	return out
}

// Validate checks generated code before it runs and returns the parsed
// program. Rejections are *ValidationError values whose text is shown to
// the caller.
func Validate(code string, maxStatements int) (*Program, error) {
	trimmed := strings.TrimSpace(code)
	if len(trimmed) < minCodeLength {
		return nil, &ValidationError{Reason: "Generated code is empty or too short"}
	}

	lower := strings.ToLower(code)
	for _, d := range denylist {
		if strings.Contains(lower, d.pattern) {
			return nil, &ValidationError{Reason: d.reason}
		}
	}

	if reason := checkBalance(code); reason != "" {
		return nil, &ValidationError{Reason: reason}
	}

	prog, err := Parse(code)
	if err != nil {
		return nil, &ValidationError{Reason: "Syntax error in generated code: " + err.Error()}
	}

	if denied := disallowedNames(prog); len(denied) > 0 {
		return nil, &ValidationError{Reason: "Operation not allowed: " + denied[0]}
	}

	if maxStatements <= 0 {
		maxStatements = DefaultMaxStatements
	}
	if n := len(prog.Stmts); n > maxStatements {
		return nil, &ValidationError{Reason: fmt.Sprintf("Generated code is too long: %d statements (limit %d)", n, maxStatements)}
	}
	return prog, nil
}

// checkBalance compares opening and closing delimiter counts. A surplus of
// either kind usually means the model's output was cut off.
func checkBalance(code string) string {
	pairs := []struct {
		open, close string
		name        string
	}{
		{"(", ")", "parentheses"},
		{"[", "]", "brackets"},
		{"{", "}", "braces"},
	}
	for _, p := range pairs {
		if strings.Count(code, p.open) != strings.Count(code, p.close) {
			return fmt.Sprintf("Incomplete code detected: unmatched %s. Code appears to be truncated.", p.name)
		}
	}
	return ""
}

// disallowedNames lists called names outside allowedCalls and any dunder
// attribute access, sorted by first appearance.
func disallowedNames(prog *Program) []string {
	var out []string
	seen := make(map[string]bool)
	add := func(name string) {
		if !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}
	for _, st := range prog.Stmts {
		walk(st, func(e Expr) {
			switch x := e.(type) {
			case *CallExpr:
				switch fn := x.Func.(type) {
				case *NameExpr:
					if !allowedCalls[fn.Name] {
						add(fn.Name)
					}
				case *AttributeExpr:
					if !allowedCalls[fn.Attr] {
						add(fn.Attr)
					}
				default:
					add("<dynamic call>")
				}
			case *AttributeExpr:
				if strings.HasPrefix(x.Attr, "_") {
					add(x.Attr)
				}
			case *NameExpr:
				if strings.HasPrefix(x.Name, "__") {
					add(x.Name)
				}
			}
		})
	}
	return out
}

// AllowedCalls returns the callable names accepted by Validate, sorted.
func AllowedCalls() []string {
	out := make([]string, 0, len(allowedCalls))
	for n := range allowedCalls {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
