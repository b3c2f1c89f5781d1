package analysis

import (
	"fmt"
	"strings"
)

var unsupportedKeywords = map[string]string{
	"for":    "loops are not supported",
	"while":  "loops are not supported",
	"def":    "function definitions are not supported",
	"class":  "class definitions are not supported",
	"lambda": "lambda expressions are not supported",
	"try":    "exception handling is not supported",
	"with":   "with statements are not supported",
	"if":     "if statements are not supported; use a conditional expression",
	"return": "return is not supported; assign to result",
	"del":    "del is not supported",
	"global": "global is not supported",
	"yield":  "yield is not supported",
	"raise":  "raise is not supported",
	"assert": "assert is not supported",
	"async":  "async is not supported",
	"await":  "await is not supported",
	"from":   "from-imports are not supported",
}

var reserved = map[string]bool{
	"and": true, "or": true, "not": true, "in": true, "is": true,
	"True": true, "False": true, "None": true, "import": true, "as": true,
	"if": true, "else": true, "elif": true, "pass": true,
}

type parser struct {
	toks []token
	pos  int
}

// Parse turns source text into a Program without evaluating anything.
func Parse(src string) (*Program, error) {
	toks, err := tokenize(src)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	prog := &Program{lines: strings.Split(src, "\n")}
	for p.cur().kind != tokEOF {
		if p.cur().kind == tokNewline {
			p.pos++
			continue
		}
		st, err := p.statement()
		if err != nil {
			return nil, err
		}
		if st != nil {
			prog.Stmts = append(prog.Stmts, st)
		}
		if k := p.cur().kind; k != tokNewline && k != tokEOF {
			return nil, p.errorf("unexpected %s after statement", p.cur())
		}
	}
	return prog, nil
}

func (p *parser) cur() token {
	return p.toks[p.pos]
}

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) isOp(op string) bool {
	t := p.cur()
	return t.kind == tokOp && t.text == op
}

func (p *parser) isKeyword(kw string) bool {
	t := p.cur()
	return t.kind == tokName && t.text == kw
}

func (p *parser) acceptOp(op string) bool {
	if p.isOp(op) {
		p.pos++
		return true
	}
	return false
}

func (p *parser) expectOp(op string) error {
	if !p.acceptOp(op) {
		return p.errorf("expected %q, found %s", op, p.cur())
	}
	return nil
}

func (p *parser) errorf(format string, args ...any) error {
	t := p.cur()
	return &SyntaxError{Line: t.line, Col: t.col, Msg: fmt.Sprintf(format, args...)}
}

func (p *parser) statement() (Stmt, error) {
	t := p.cur()
	if t.kind == tokName {
		if msg, ok := unsupportedKeywords[t.text]; ok {
			return nil, p.errorf("%s", msg)
		}
		switch t.text {
		case "import":
			return p.importStmt()
		case "pass":
			p.next()
			return nil, nil
		}
	}

	lhs, err := p.exprList()
	if err != nil {
		return nil, err
	}

	if p.isOp("=") {
		p.next()
		if err := checkTarget(lhs); err != nil {
			return nil, err
		}
		rhs, err := p.exprList()
		if err != nil {
			return nil, err
		}
		if p.isOp("=") {
			return nil, p.errorf("chained assignment is not supported")
		}
		return &AssignStmt{pos: pos{t.line}, Target: lhs, Value: rhs}, nil
	}

	if c := p.cur(); c.kind == tokOp && len(c.text) >= 2 && strings.HasSuffix(c.text, "=") && c.text != "==" && c.text != "!=" && c.text != "<=" && c.text != ">=" {
		p.next()
		switch lhs.(type) {
		case *NameExpr, *IndexExpr:
		default:
			return nil, &SyntaxError{Line: t.line, Col: t.col, Msg: "illegal target for augmented assignment"}
		}
		rhs, err := p.expr()
		if err != nil {
			return nil, err
		}
		return &AugAssignStmt{pos: pos{t.line}, Target: lhs, Op: strings.TrimSuffix(c.text, "="), Value: rhs}, nil
	}

	return &ExprStmt{pos: pos{t.line}, X: lhs}, nil
}

func checkTarget(e Expr) error {
	switch x := e.(type) {
	case *NameExpr:
		if reserved[x.Name] {
			return &SyntaxError{Line: x.line, Msg: fmt.Sprintf("cannot assign to %s", x.Name)}
		}
		return nil
	case *IndexExpr:
		return nil
	case *TupleExpr:
		for _, item := range x.Items {
			if _, ok := item.(*NameExpr); !ok {
				return &SyntaxError{Line: x.line, Msg: "only names can be unpacked"}
			}
			if err := checkTarget(item); err != nil {
				return err
			}
		}
		return nil
	}
	return &SyntaxError{Line: e.Line(), Msg: "cannot assign to expression"}
}

func (p *parser) importStmt() (Stmt, error) {
	t := p.next()
	var parts []string
	for {
		name := p.next()
		if name.kind != tokName {
			return nil, p.errorf("expected module name")
		}
		parts = append(parts, name.text)
		if !p.acceptOp(".") {
			break
		}
	}
	st := &ImportStmt{pos: pos{t.line}, Module: strings.Join(parts, ".")}
	if p.isKeyword("as") {
		p.next()
		alias := p.next()
		if alias.kind != tokName {
			return nil, p.errorf("expected alias after 'as'")
		}
		st.Alias = alias.text
	}
	if p.isOp(",") {
		return nil, p.errorf("import one module per statement")
	}
	return st, nil
}

// exprList parses "a" or "a, b, ..." (a tuple).
func (p *parser) exprList() (Expr, error) {
	first, err := p.expr()
	if err != nil {
		return nil, err
	}
	if !p.isOp(",") {
		return first, nil
	}
	items := []Expr{first}
	for p.acceptOp(",") {
		if p.atExprEnd() {
			break
		}
		e, err := p.expr()
		if err != nil {
			return nil, err
		}
		items = append(items, e)
	}
	return &TupleExpr{pos: pos{first.Line()}, Items: items}, nil
}

func (p *parser) atExprEnd() bool {
	t := p.cur()
	if t.kind == tokNewline || t.kind == tokEOF {
		return true
	}
	return t.kind == tokOp && (t.text == "=" || t.text == ")" || t.text == "]" || t.text == "}")
}

func (p *parser) expr() (Expr, error) {
	if p.isKeyword("lambda") {
		return nil, p.errorf("%s", unsupportedKeywords["lambda"])
	}
	x, err := p.orExpr()
	if err != nil {
		return nil, err
	}
	if !p.isKeyword("if") {
		return x, nil
	}
	line := p.next().line
	cond, err := p.orExpr()
	if err != nil {
		return nil, err
	}
	if !p.isKeyword("else") {
		return nil, p.errorf("expected 'else' in conditional expression")
	}
	p.next()
	alt, err := p.expr()
	if err != nil {
		return nil, err
	}
	return &CondExpr{pos: pos{line}, Cond: cond, Then: x, Else: alt}, nil
}

func (p *parser) orExpr() (Expr, error) {
	left, err := p.andExpr()
	if err != nil {
		return nil, err
	}
	for p.isKeyword("or") {
		t := p.next()
		right, err := p.andExpr()
		if err != nil {
			return nil, err
		}
		left = &BoolExpr{pos: pos{t.line}, Op: "or", Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) andExpr() (Expr, error) {
	left, err := p.notExpr()
	if err != nil {
		return nil, err
	}
	for p.isKeyword("and") {
		t := p.next()
		right, err := p.notExpr()
		if err != nil {
			return nil, err
		}
		left = &BoolExpr{pos: pos{t.line}, Op: "and", Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) notExpr() (Expr, error) {
	if p.isKeyword("not") {
		t := p.next()
		operand, err := p.notExpr()
		if err != nil {
			return nil, err
		}
		return &UnaryExpr{pos: pos{t.line}, Op: "not", Operand: operand}, nil
	}
	return p.comparison()
}

func (p *parser) compareOp() (string, bool) {
	t := p.cur()
	if t.kind == tokOp {
		switch t.text {
		case "==", "!=", "<", "<=", ">", ">=":
			p.next()
			return t.text, true
		}
		return "", false
	}
	if t.kind != tokName {
		return "", false
	}
	switch t.text {
	case "in":
		p.next()
		return "in", true
	case "not":
		if n := p.toks[p.pos+1]; n.kind == tokName && n.text == "in" {
			p.pos += 2
			return "not in", true
		}
	case "is":
		p.next()
		if p.isKeyword("not") {
			p.next()
			return "!=", true
		}
		return "==", true
	}
	return "", false
}

// comparison folds chains such as a < b < c into (a < b) and (b < c).
func (p *parser) comparison() (Expr, error) {
	left, err := p.bitOr()
	if err != nil {
		return nil, err
	}
	var result Expr
	for {
		line := p.cur().line
		op, ok := p.compareOp()
		if !ok {
			break
		}
		right, err := p.bitOr()
		if err != nil {
			return nil, err
		}
		cmp := &CompareExpr{pos: pos{line}, Op: op, Left: left, Right: right}
		if result == nil {
			result = cmp
		} else {
			result = &BoolExpr{pos: pos{line}, Op: "and", Left: result, Right: cmp}
		}
		left = right
	}
	if result == nil {
		return left, nil
	}
	return result, nil
}

func (p *parser) binaryLevel(ops []string, next func() (Expr, error)) (Expr, error) {
	left, err := next()
	if err != nil {
		return nil, err
	}
	for {
		t := p.cur()
		if t.kind != tokOp || !contains(ops, t.text) {
			return left, nil
		}
		p.next()
		right, err := next()
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{pos: pos{t.line}, Op: t.text, Left: left, Right: right}
	}
}

func contains(list []string, s string) bool {
	for _, x := range list {
		if x == s {
			return true
		}
	}
	return false
}

func (p *parser) bitOr() (Expr, error) {
	return p.binaryLevel([]string{"|"}, p.bitAnd)
}

func (p *parser) bitAnd() (Expr, error) {
	return p.binaryLevel([]string{"&"}, p.arith)
}

func (p *parser) arith() (Expr, error) {
	return p.binaryLevel([]string{"+", "-"}, p.term)
}

func (p *parser) term() (Expr, error) {
	return p.binaryLevel([]string{"*", "/", "//", "%"}, p.factor)
}

func (p *parser) factor() (Expr, error) {
	t := p.cur()
	if t.kind == tokOp && (t.text == "-" || t.text == "+" || t.text == "~") {
		p.next()
		operand, err := p.factor()
		if err != nil {
			return nil, err
		}
		if num, ok := operand.(*NumberLit); ok && t.text == "-" {
			return &NumberLit{pos: pos{t.line}, Value: -num.Value}, nil
		}
		return &UnaryExpr{pos: pos{t.line}, Op: t.text, Operand: operand}, nil
	}
	return p.power()
}

func (p *parser) power() (Expr, error) {
	base, err := p.postfix()
	if err != nil {
		return nil, err
	}
	if p.isOp("**") {
		t := p.next()
		exp, err := p.factor()
		if err != nil {
			return nil, err
		}
		return &BinaryExpr{pos: pos{t.line}, Op: "**", Left: base, Right: exp}, nil
	}
	return base, nil
}

func (p *parser) postfix() (Expr, error) {
	x, err := p.atom()
	if err != nil {
		return nil, err
	}
	for {
		t := p.cur()
		switch {
		case p.isOp("."):
			p.next()
			name := p.next()
			if name.kind != tokName {
				return nil, p.errorf("expected attribute name after '.'")
			}
			x = &AttributeExpr{pos: pos{t.line}, Value: x, Attr: name.text}
		case p.isOp("("):
			p.next()
			call, err := p.callArgs(x, t.line)
			if err != nil {
				return nil, err
			}
			x = call
		case p.isOp("["):
			p.next()
			idx, err := p.subscript()
			if err != nil {
				return nil, err
			}
			x = &IndexExpr{pos: pos{t.line}, Value: x, Index: idx}
		default:
			return x, nil
		}
	}
}

func (p *parser) callArgs(fn Expr, line int) (Expr, error) {
	call := &CallExpr{pos: pos{line}, Func: fn}
	for !p.isOp(")") {
		if p.isOp("*") || p.isOp("**") {
			return nil, p.errorf("argument unpacking is not supported")
		}
		t := p.cur()
		if t.kind == tokName && p.toks[p.pos+1].kind == tokOp && p.toks[p.pos+1].text == "=" {
			p.pos += 2
			v, err := p.expr()
			if err != nil {
				return nil, err
			}
			call.Keywords = append(call.Keywords, Keyword{Name: t.text, Value: v})
		} else {
			if len(call.Keywords) > 0 {
				return nil, p.errorf("positional argument follows keyword argument")
			}
			v, err := p.expr()
			if err != nil {
				return nil, err
			}
			if p.isKeyword("for") {
				return nil, p.errorf("comprehensions are not supported")
			}
			call.Args = append(call.Args, v)
		}
		if !p.acceptOp(",") {
			break
		}
	}
	if err := p.expectOp(")"); err != nil {
		return nil, err
	}
	return call, nil
}

func (p *parser) subscript() (Expr, error) {
	line := p.cur().line
	var items []Expr
	for {
		item, err := p.sliceItem()
		if err != nil {
			return nil, err
		}
		items = append(items, item)
		if !p.acceptOp(",") || p.isOp("]") {
			break
		}
	}
	if err := p.expectOp("]"); err != nil {
		return nil, err
	}
	if len(items) == 1 {
		return items[0], nil
	}
	return &TupleExpr{pos: pos{line}, Items: items}, nil
}

func (p *parser) sliceItem() (Expr, error) {
	line := p.cur().line
	var lo Expr
	if !p.isOp(":") {
		e, err := p.expr()
		if err != nil {
			return nil, err
		}
		if !p.isOp(":") {
			return e, nil
		}
		lo = e
	}
	p.next()
	s := &SliceExpr{pos: pos{line}, Lo: lo}
	if !p.isOp("]") && !p.isOp(",") && !p.isOp(":") {
		hi, err := p.expr()
		if err != nil {
			return nil, err
		}
		s.Hi = hi
	}
	if p.isOp(":") {
		return nil, p.errorf("slice steps are not supported")
	}
	return s, nil
}

func (p *parser) atom() (Expr, error) {
	t := p.cur()
	switch t.kind {
	case tokNumber:
		p.next()
		return &NumberLit{pos: pos{t.line}, Value: t.num}, nil
	case tokString:
		p.next()
		s := t.text
		for p.cur().kind == tokString {
			s += p.next().text
		}
		return &StringLit{pos: pos{t.line}, Value: s}, nil
	case tokName:
		switch t.text {
		case "True", "False":
			p.next()
			return &BoolLit{pos: pos{t.line}, Value: t.text == "True"}, nil
		case "None":
			p.next()
			return &NoneLit{pos: pos{t.line}}, nil
		}
		if msg, ok := unsupportedKeywords[t.text]; ok {
			return nil, p.errorf("%s", msg)
		}
		if reserved[t.text] {
			return nil, p.errorf("unexpected keyword %q", t.text)
		}
		p.next()
		return &NameExpr{pos: pos{t.line}, Name: t.text}, nil
	case tokOp:
		switch t.text {
		case "(":
			p.next()
			return p.parenthesized(t.line)
		case "[":
			p.next()
			items, err := p.sequence("]")
			if err != nil {
				return nil, err
			}
			return &ListExpr{pos: pos{t.line}, Items: items}, nil
		case "{":
			p.next()
			return p.dict(t.line)
		}
	}
	return nil, p.errorf("unexpected %s", t)
}

func (p *parser) parenthesized(line int) (Expr, error) {
	if p.acceptOp(")") {
		return &TupleExpr{pos: pos{line}}, nil
	}
	first, err := p.expr()
	if err != nil {
		return nil, err
	}
	if p.isKeyword("for") {
		return nil, p.errorf("comprehensions are not supported")
	}
	if p.acceptOp(")") {
		return first, nil
	}
	if err := p.expectOp(","); err != nil {
		return nil, err
	}
	rest, err := p.sequence(")")
	if err != nil {
		return nil, err
	}
	return &TupleExpr{pos: pos{line}, Items: append([]Expr{first}, rest...)}, nil
}

// sequence parses comma separated expressions up to and including close.
func (p *parser) sequence(close string) ([]Expr, error) {
	var items []Expr
	for !p.isOp(close) {
		e, err := p.expr()
		if err != nil {
			return nil, err
		}
		if p.isKeyword("for") {
			return nil, p.errorf("comprehensions are not supported")
		}
		items = append(items, e)
		if !p.acceptOp(",") {
			break
		}
	}
	if err := p.expectOp(close); err != nil {
		return nil, err
	}
	return items, nil
}

func (p *parser) dict(line int) (Expr, error) {
	d := &DictExpr{pos: pos{line}}
	for !p.isOp("}") {
		k, err := p.expr()
		if err != nil {
			return nil, err
		}
		if !p.isOp(":") {
			return nil, p.errorf("set literals are not supported")
		}
		p.next()
		v, err := p.expr()
		if err != nil {
			return nil, err
		}
		if p.isKeyword("for") {
			return nil, p.errorf("comprehensions are not supported")
		}
		d.Keys = append(d.Keys, k)
		d.Values = append(d.Values, v)
		if !p.acceptOp(",") {
			break
		}
	}
	if err := p.expectOp("}"); err != nil {
		return nil, err
	}
	return d, nil
}
