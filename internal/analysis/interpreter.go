package analysis

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"sales-insight-workers/internal/dataset"
)

// ResultName is the variable a program must bind.
const ResultName = "result"

// Interpreter evaluates parsed programs. It holds no state between runs.
type Interpreter struct{}

func NewInterpreter() *Interpreter {
	return &Interpreter{}
}

// Bind returns the initial namespace for a run: the table as df and the
// pandas-style module as pd.
func Bind(frame *dataset.Frame) map[string]any {
	return map[string]any{
		"df": wrapFrame(frame),
		"pd": pandasModule{},
	}
}

// Run executes prog against bindings and normalizes the value bound to
// result. Runtime failures come back as *ExecutionError; a program that
// never binds result returns ErrNoResult.
func (in *Interpreter) Run(ctx context.Context, prog *Program, bindings map[string]any) (res Result, err error) {
	env := make(map[string]any, len(bindings)+8)
	for k, v := range bindings {
		env[k] = v
	}
	ev := &evaluator{env: env}

	line := 0
	defer func() {
		if r := recover(); r != nil {
			err = newError("InternalError", "%v", r).withTrace(prog, line)
		}
	}()

	for _, st := range prog.Stmts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		line = st.Line()
		if err := ev.exec(st); err != nil {
			execErr, ok := err.(*ExecutionError)
			if !ok {
				execErr = newError("RuntimeError", "%s", err.Error())
			}
			return nil, execErr.withTrace(prog, line)
		}
	}

	value, ok := env[ResultName]
	if !ok || value == nil {
		return nil, ErrNoResult
	}
	return Normalize(value), nil
}

type evaluator struct {
	env map[string]any
}

func (ev *evaluator) exec(st Stmt) error {
	switch s := st.(type) {
	case *AssignStmt:
		v, err := ev.eval(s.Value)
		if err != nil {
			return err
		}
		return ev.assign(s.Target, v)
	case *AugAssignStmt:
		cur, err := ev.eval(s.Target)
		if err != nil {
			return err
		}
		rhs, err := ev.eval(s.Value)
		if err != nil {
			return err
		}
		v, err := binaryOp(s.Op, cur, rhs)
		if err != nil {
			return err
		}
		return ev.assign(s.Target, v)
	case *ExprStmt:
		_, err := ev.eval(s.X)
		return err
	case *ImportStmt:
		return ev.importModule(s)
	}
	return fmt.Errorf("unknown statement %T", st)
}

func (ev *evaluator) importModule(s *ImportStmt) error {
	switch s.Module {
	case "pandas":
		name := s.Alias
		if name == "" {
			name = "pandas"
		}
		ev.env[name] = pandasModule{}
		return nil
	}
	return newError("ImportError", "No module named '%s'", s.Module)
}

func (ev *evaluator) assign(target Expr, v any) error {
	switch t := target.(type) {
	case *NameExpr:
		ev.env[t.Name] = v
		return nil
	case *TupleExpr:
		items, err := iterate(v)
		if err != nil {
			return err
		}
		if len(items) != len(t.Items) {
			return valueErrorf("not enough values to unpack (expected %d, got %d)", len(t.Items), len(items))
		}
		for i, item := range t.Items {
			if err := ev.assign(item, items[i]); err != nil {
				return err
			}
		}
		return nil
	case *IndexExpr:
		container, err := ev.eval(t.Value)
		if err != nil {
			return err
		}
		key, err := ev.eval(t.Index)
		if err != nil {
			return err
		}
		return setItem(container, key, v)
	}
	return typeErrorf("cannot assign to %T", target)
}

func (ev *evaluator) eval(e Expr) (any, error) {
	switch x := e.(type) {
	case *NumberLit:
		return x.Value, nil
	case *StringLit:
		return x.Value, nil
	case *BoolLit:
		return x.Value, nil
	case *NoneLit:
		return nil, nil
	case *NameExpr:
		if v, ok := ev.env[x.Name]; ok {
			return v, nil
		}
		if _, ok := builtins[x.Name]; ok {
			return builtinFunc(x.Name), nil
		}
		return nil, newError("NameError", "name '%s' is not defined", x.Name)
	case *ListExpr:
		return ev.evalAll(x.Items)
	case *TupleExpr:
		items, err := ev.evalAll(x.Items)
		return Tuple(items), err
	case *DictExpr:
		d := NewDict()
		for i := range x.Keys {
			k, err := ev.eval(x.Keys[i])
			if err != nil {
				return nil, err
			}
			if !hashable(k) {
				return nil, typeErrorf("unhashable type: '%s'", typeName(k))
			}
			v, err := ev.eval(x.Values[i])
			if err != nil {
				return nil, err
			}
			d.Set(k, v)
		}
		return d, nil
	case *UnaryExpr:
		v, err := ev.eval(x.Operand)
		if err != nil {
			return nil, err
		}
		return unaryOp(x.Op, v)
	case *BinaryExpr:
		l, err := ev.eval(x.Left)
		if err != nil {
			return nil, err
		}
		r, err := ev.eval(x.Right)
		if err != nil {
			return nil, err
		}
		return binaryOp(x.Op, l, r)
	case *BoolExpr:
		l, err := ev.eval(x.Left)
		if err != nil {
			return nil, err
		}
		t, err := truthy(l)
		if err != nil {
			return nil, err
		}
		if (x.Op == "and" && !t) || (x.Op == "or" && t) {
			return l, nil
		}
		return ev.eval(x.Right)
	case *CompareExpr:
		l, err := ev.eval(x.Left)
		if err != nil {
			return nil, err
		}
		r, err := ev.eval(x.Right)
		if err != nil {
			return nil, err
		}
		return compareOp(x.Op, l, r)
	case *CondExpr:
		c, err := ev.eval(x.Cond)
		if err != nil {
			return nil, err
		}
		t, err := truthy(c)
		if err != nil {
			return nil, err
		}
		if t {
			return ev.eval(x.Then)
		}
		return ev.eval(x.Else)
	case *AttributeExpr:
		v, err := ev.eval(x.Value)
		if err != nil {
			return nil, err
		}
		return getAttr(v, x.Attr)
	case *IndexExpr:
		v, err := ev.eval(x.Value)
		if err != nil {
			return nil, err
		}
		key, err := ev.eval(x.Index)
		if err != nil {
			return nil, err
		}
		return getItem(v, key)
	case *SliceExpr:
		return ev.evalSlice(x)
	case *CallExpr:
		return ev.call(x)
	}
	return nil, fmt.Errorf("unknown expression %T", e)
}

func (ev *evaluator) evalAll(exprs []Expr) ([]any, error) {
	out := make([]any, len(exprs))
	for i, e := range exprs {
		v, err := ev.eval(e)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// slice is an evaluated a[lo:hi] bound.
type slice struct {
	lo, hi *int
}

func (ev *evaluator) evalSlice(x *SliceExpr) (any, error) {
	var s slice
	bound := func(e Expr) (*int, error) {
		if e == nil {
			return nil, nil
		}
		v, err := ev.eval(e)
		if err != nil || v == nil {
			return nil, err
		}
		n, err := asInt(v)
		if err != nil {
			return nil, typeErrorf("slice indices must be integers or None")
		}
		return &n, nil
	}
	var err error
	if s.lo, err = bound(x.Lo); err != nil {
		return nil, err
	}
	if s.hi, err = bound(x.Hi); err != nil {
		return nil, err
	}
	return s, nil
}

// resolve clamps the slice to a sequence of length n.
func (s slice) resolve(n int) (int, int) {
	lo, hi := 0, n
	if s.lo != nil {
		lo = *s.lo
		if lo < 0 {
			lo += n
		}
	}
	if s.hi != nil {
		hi = *s.hi
		if hi < 0 {
			hi += n
		}
	}
	lo = max(0, min(lo, n))
	hi = max(lo, min(hi, n))
	return lo, hi
}

func (s slice) rows(n int) []int {
	lo, hi := s.resolve(n)
	out := make([]int, 0, hi-lo)
	for i := lo; i < hi; i++ {
		out = append(out, i)
	}
	return out
}

func (ev *evaluator) call(x *CallExpr) (any, error) {
	args := arguments{}
	var err error
	if args.pos, err = ev.evalAll(x.Args); err != nil {
		return nil, err
	}
	for _, kw := range x.Keywords {
		v, err := ev.eval(kw.Value)
		if err != nil {
			return nil, err
		}
		args.kw = append(args.kw, kwarg{name: kw.Name, value: v})
	}

	if attr, ok := x.Func.(*AttributeExpr); ok {
		recv, err := ev.eval(attr.Value)
		if err != nil {
			return nil, err
		}
		args.fn = attr.Attr
		return callMethod(recv, attr.Attr, args)
	}

	fn, err := ev.eval(x.Func)
	if err != nil {
		return nil, err
	}
	if b, ok := fn.(builtinFunc); ok {
		args.fn = string(b)
		return builtins[string(b)](args)
	}
	return nil, typeErrorf("'%s' object is not callable", typeName(fn))
}

func hashable(v any) bool {
	switch v.(type) {
	case nil, bool, float64, string, time.Time, Tuple:
		return true
	}
	return false
}

func asInt(v any) (int, error) {
	f, ok := toFloat(v)
	if !ok || f != math.Trunc(f) || math.IsInf(f, 0) {
		return 0, typeErrorf("'%s' object cannot be interpreted as an integer", typeName(v))
	}
	return int(f), nil
}

// iterate returns the elements a for-loop would visit.
func iterate(v any) ([]any, error) {
	switch x := v.(type) {
	case []any:
		return x, nil
	case Tuple:
		return x, nil
	case *Dict:
		return x.Keys(), nil
	case *Series:
		return x.Values, nil
	case *Frame:
		names := x.names()
		out := make([]any, len(names))
		for i, n := range names {
			out[i] = n
		}
		return out, nil
	case string:
		out := make([]any, 0, len(x))
		for _, r := range x {
			out = append(out, string(r))
		}
		return out, nil
	}
	return nil, typeErrorf("'%s' object is not iterable", typeName(v))
}

func unaryOp(op string, v any) (any, error) {
	if op == "not" {
		t, err := truthy(v)
		return !t, err
	}
	if s, ok := v.(*Series); ok {
		out := make([]any, s.Len())
		for i, e := range s.Values {
			r, err := unaryScalar(op, e)
			if err != nil {
				return nil, err
			}
			out[i] = r
		}
		return s.withValues(out), nil
	}
	return unaryScalar(op, v)
}

func unaryScalar(op string, v any) (any, error) {
	switch x := v.(type) {
	case nil:
		if op == "~" {
			return nil, nil
		}
		return math.NaN(), nil
	case bool:
		if op == "~" {
			return !x, nil
		}
		f, _ := toFloat(x)
		v = f
	}
	f, ok := v.(float64)
	if !ok {
		return nil, typeErrorf("bad operand type for unary %s: '%s'", op, typeName(v))
	}
	switch op {
	case "-":
		return -f, nil
	case "+":
		return f, nil
	case "~":
		return float64(^int64(f)), nil
	}
	return nil, typeErrorf("unknown unary operator %s", op)
}

// binaryOp applies an arithmetic or logical operator, elementwise when a
// Series is involved.
func binaryOp(op string, a, b any) (any, error) {
	sa, aSeries := a.(*Series)
	sb, bSeries := b.(*Series)
	switch {
	case aSeries && bSeries:
		idx, av, bv := align(sa, sb)
		out := make([]any, len(av))
		var budget textBudget
		for i := range av {
			r, err := elementBinary(op, av[i], bv[i])
			if err != nil {
				return nil, err
			}
			if err := budget.add(r); err != nil {
				return nil, err
			}
			out[i] = r
		}
		return &Series{Name: commonName(sa, sb), Index: idx, Values: out}, nil
	case aSeries:
		return mapSeries(sa, func(v any) (any, error) { return elementBinary(op, v, b) })
	case bSeries:
		return mapSeries(sb, func(v any) (any, error) { return elementBinary(op, a, v) })
	}
	if _, ok := a.(*Frame); ok {
		return nil, typeErrorf("arithmetic on whole DataFrames is not supported; select a column first")
	}
	if _, ok := b.(*Frame); ok {
		return nil, typeErrorf("arithmetic on whole DataFrames is not supported; select a column first")
	}
	return scalarBinary(op, a, b)
}

func commonName(a, b *Series) any {
	if hashKey(a.Name) == hashKey(b.Name) {
		return a.Name
	}
	return nil
}

func mapSeries(s *Series, fn func(any) (any, error)) (*Series, error) {
	out := make([]any, s.Len())
	var budget textBudget
	for i, v := range s.Values {
		r, err := fn(v)
		if err != nil {
			return nil, err
		}
		if err := budget.add(r); err != nil {
			return nil, err
		}
		out[i] = r
	}
	return s.withValues(out), nil
}

// elementBinary is scalarBinary with missing values propagating as NaN.
func elementBinary(op string, a, b any) (any, error) {
	if op == "&" || op == "|" {
		ta, tb := a == true, b == true
		if op == "&" {
			return ta && tb, nil
		}
		return ta || tb, nil
	}
	if isNull(a) || isNull(b) {
		return math.NaN(), nil
	}
	r, err := scalarBinary(op, a, b)
	if err != nil {
		if e, ok := err.(*ExecutionError); ok && e.Kind == "ZeroDivisionError" {
			fa, _ := toFloat(a)
			switch {
			case fa > 0:
				return math.Inf(1), nil
			case fa < 0:
				return math.Inf(-1), nil
			}
			return math.NaN(), nil
		}
	}
	return r, err
}

// maxValueSize bounds the bytes of a string and the length of a list or
// tuple a program can build. Go aborts on allocation failure, so growth is
// checked before it happens.
const maxValueSize = 1 << 20

func memoryError() *ExecutionError {
	return newError("MemoryError", "value exceeds the %d element limit", maxValueSize)
}

func checkSize(n int) error {
	if n < 0 || n > maxValueSize {
		return memoryError()
	}
	return nil
}

// maxSeriesText bounds the string bytes one elementwise operation produces.
const maxSeriesText = 64 << 20

type textBudget int

func (b *textBudget) add(v any) error {
	if str, ok := v.(string); ok {
		*b += textBudget(len(str))
		if *b > maxSeriesText {
			return newError("MemoryError", "elementwise result exceeds %d bytes", maxSeriesText)
		}
	}
	return nil
}

// replacedSize is the length of strings.ReplaceAll(s, old, repl).
func replacedSize(s, old, repl string) int {
	n := strings.Count(s, old)
	if n == 0 {
		return len(s)
	}
	if d := len(repl) - len(old); d > 0 {
		if n > (maxValueSize+1)/d {
			return maxValueSize + 1
		}
		return len(s) + n*d
	}
	return len(s)
}

func scalarBinary(op string, a, b any) (any, error) {
	if op == "&" || op == "|" {
		ba, aok := a.(bool)
		bb, bok := b.(bool)
		if aok && bok {
			if op == "&" {
				return ba && bb, nil
			}
			return ba || bb, nil
		}
	}

	if op == "+" {
		switch x := a.(type) {
		case string:
			if y, ok := b.(string); ok {
				if err := checkSize(len(x) + len(y)); err != nil {
					return nil, err
				}
				return x + y, nil
			}
		case []any:
			if y, ok := b.([]any); ok {
				if err := checkSize(len(x) + len(y)); err != nil {
					return nil, err
				}
				return append(append([]any{}, x...), y...), nil
			}
		case Tuple:
			if y, ok := b.(Tuple); ok {
				if err := checkSize(len(x) + len(y)); err != nil {
					return nil, err
				}
				return append(append(Tuple{}, x...), y...), nil
			}
		}
	}
	if op == "*" {
		if s, ok := a.(string); ok {
			if n, err := asInt(b); err == nil {
				if n <= 0 || s == "" {
					return "", nil
				}
				if n > maxValueSize/len(s) {
					return nil, memoryError()
				}
				return strings.Repeat(s, n), nil
			}
		}
	}

	fa, aok := toFloat(a)
	fb, bok := toFloat(b)
	if !aok || !bok {
		return nil, typeErrorf("unsupported operand type(s) for %s: '%s' and '%s'", op, typeName(a), typeName(b))
	}

	switch op {
	case "+":
		return fa + fb, nil
	case "-":
		return fa - fb, nil
	case "*":
		return fa * fb, nil
	case "/":
		if fb == 0 {
			return nil, newError("ZeroDivisionError", "float division by zero")
		}
		return fa / fb, nil
	case "//":
		if fb == 0 {
			return nil, newError("ZeroDivisionError", "float floor division by zero")
		}
		return math.Floor(fa / fb), nil
	case "%":
		if fb == 0 {
			return nil, newError("ZeroDivisionError", "float modulo")
		}
		m := math.Mod(fa, fb)
		if m != 0 && (m < 0) != (fb < 0) {
			m += fb
		}
		return m, nil
	case "**":
		return math.Pow(fa, fb), nil
	case "&":
		return float64(int64(fa) & int64(fb)), nil
	case "|":
		return float64(int64(fa) | int64(fb)), nil
	}
	return nil, typeErrorf("unknown operator %s", op)
}

// align pairs two series by label. Identical indexes pair by position.
func align(a, b *Series) (*Index, []any, []any) {
	if sameLabels(a.Index, b.Index) {
		return a.Index, a.Values, b.Values
	}
	labels := make([]any, 0, a.Len()+b.Len())
	seen := make(map[string]bool, a.Len())
	for _, l := range a.Index.Labels {
		if k := hashKey(l); !seen[k] {
			seen[k] = true
			labels = append(labels, l)
		}
	}
	for _, l := range b.Index.Labels {
		if k := hashKey(l); !seen[k] {
			seen[k] = true
			labels = append(labels, l)
		}
	}
	lookup := func(s *Series) []any {
		pos := make(map[string]int, s.Len())
		for i, l := range s.Index.Labels {
			pos[hashKey(l)] = i
		}
		out := make([]any, len(labels))
		for i, l := range labels {
			if p, ok := pos[hashKey(l)]; ok {
				out[i] = s.Values[p]
			}
		}
		return out
	}
	return &Index{Names: a.Index.Names, Labels: labels}, lookup(a), lookup(b)
}

func sameLabels(a, b *Index) bool {
	if a == b {
		return true
	}
	if a.Len() != b.Len() {
		return false
	}
	for i := range a.Labels {
		if hashKey(a.Labels[i]) != hashKey(b.Labels[i]) {
			return false
		}
	}
	return true
}

func compareOp(op string, a, b any) (any, error) {
	if op == "in" || op == "not in" {
		in, err := membership(a, b)
		if op == "not in" {
			in = !in
		}
		return in, err
	}

	sa, aSeries := a.(*Series)
	sb, bSeries := b.(*Series)
	switch {
	case aSeries && bSeries:
		idx, av, bv := align(sa, sb)
		out := make([]any, len(av))
		for i := range av {
			r, err := elementCompare(op, av[i], bv[i])
			if err != nil {
				return nil, err
			}
			out[i] = r
		}
		return &Series{Name: nil, Index: idx, Values: out}, nil
	case aSeries:
		return mapSeries(sa, func(v any) (any, error) { return elementCompare(op, v, b) })
	case bSeries:
		return mapSeries(sb, func(v any) (any, error) { return elementCompare(op, a, v) })
	}
	return scalarCompare(op, a, b)
}

func elementCompare(op string, a, b any) (any, error) {
	if isNull(a) || isNull(b) {
		return op == "!=", nil
	}
	return scalarCompare(op, a, b)
}

func scalarCompare(op string, a, b any) (any, error) {
	switch op {
	case "==":
		if a == nil || b == nil {
			return a == nil && b == nil, nil
		}
		return valueEqual(a, b), nil
	case "!=":
		if a == nil || b == nil {
			return !(a == nil && b == nil), nil
		}
		return !valueEqual(a, b), nil
	}
	c, ok := compareValues(a, b)
	if !ok {
		return nil, typeErrorf("'%s' not supported between instances of '%s' and '%s'", op, typeName(a), typeName(b))
	}
	if isNull(a) || isNull(b) {
		return false, nil
	}
	switch op {
	case "<":
		return c < 0, nil
	case "<=":
		return c <= 0, nil
	case ">":
		return c > 0, nil
	case ">=":
		return c >= 0, nil
	}
	return nil, typeErrorf("unknown comparison %s", op)
}

func membership(item, container any) (bool, error) {
	switch c := container.(type) {
	case string:
		s, ok := item.(string)
		if !ok {
			return false, typeErrorf("'in <string>' requires string as left operand, not %s", typeName(item))
		}
		return strings.Contains(c, s), nil
	case *Dict:
		_, ok := c.Get(item)
		return ok, nil
	case *Series:
		_, ok := c.Index.position(item)
		return ok, nil
	case *Frame:
		name, ok := item.(string)
		if !ok {
			return false, nil
		}
		_, found := c.data.Column(name)
		return found, nil
	}
	items, err := iterate(container)
	if err != nil {
		return false, err
	}
	for _, v := range items {
		if valueEqual(item, v) || (item == nil && v == nil) {
			return true, nil
		}
	}
	return false, nil
}
