package analysis

// Node is any element of a parsed program.
type Node interface {
	Line() int
}

// Expr is an expression node.
type Expr interface {
	Node
	expr()
}

// Stmt is a statement node.
type Stmt interface {
	Node
	stmt()
}

type pos struct{ line int }

func (p pos) Line() int { return p.line }

type (
	NameExpr struct {
		pos
		Name string
	}

	NumberLit struct {
		pos
		Value float64
	}

	StringLit struct {
		pos
		Value string
	}

	BoolLit struct {
		pos
		Value bool
	}

	NoneLit struct {
		pos
	}

	ListExpr struct {
		pos
		Items []Expr
	}

	TupleExpr struct {
		pos
		Items []Expr
	}

	DictExpr struct {
		pos
		Keys   []Expr
		Values []Expr
	}

	UnaryExpr struct {
		pos
		Op      string // "-", "+", "~", "not"
		Operand Expr
	}

	BinaryExpr struct {
		pos
		Op    string
		Left  Expr
		Right Expr
	}

	// BoolExpr is a short-circuit "and" / "or".
	BoolExpr struct {
		pos
		Op    string
		Left  Expr
		Right Expr
	}

	CompareExpr struct {
		pos
		Op    string // "==", "!=", "<", "<=", ">", ">=", "in", "not in"
		Left  Expr
		Right Expr
	}

	AttributeExpr struct {
		pos
		Value Expr
		Attr  string
	}

	IndexExpr struct {
		pos
		Value Expr
		Index Expr
	}

	SliceExpr struct {
		pos
		Lo, Hi Expr // nil when omitted
	}

	// CondExpr is "Then if Cond else Else".
	CondExpr struct {
		pos
		Cond, Then, Else Expr
	}

	Keyword struct {
		Name  string
		Value Expr
	}

	CallExpr struct {
		pos
		Func     Expr
		Args     []Expr
		Keywords []Keyword
	}
)

type (
	// AssignStmt binds Target, a NameExpr or an IndexExpr, to Value.
	AssignStmt struct {
		pos
		Target Expr
		Value  Expr
	}

	// AugAssignStmt is "target op= value".
	AugAssignStmt struct {
		pos
		Target Expr
		Op     string
		Value  Expr
	}

	ExprStmt struct {
		pos
		X Expr
	}

	// ImportStmt is only accepted for modules already bound in the namespace.
	ImportStmt struct {
		pos
		Module string
		Alias  string
	}
)

func (*NameExpr) expr()      {}
func (*NumberLit) expr()     {}
func (*StringLit) expr()     {}
func (*BoolLit) expr()       {}
func (*NoneLit) expr()       {}
func (*ListExpr) expr()      {}
func (*TupleExpr) expr()     {}
func (*DictExpr) expr()      {}
func (*UnaryExpr) expr()     {}
func (*BinaryExpr) expr()    {}
func (*BoolExpr) expr()      {}
func (*CompareExpr) expr()   {}
func (*AttributeExpr) expr() {}
func (*IndexExpr) expr()     {}
func (*SliceExpr) expr()     {}
func (*CallExpr) expr()      {}
func (*CondExpr) expr()      {}

func (*AssignStmt) stmt()    {}
func (*AugAssignStmt) stmt() {}
func (*ExprStmt) stmt()      {}
func (*ImportStmt) stmt()    {}

// Program is a parsed analysis snippet.
type Program struct {
	Stmts []Stmt
	lines []string
}

// Source returns the text of line n (1-based).
func (p *Program) Source(n int) string {
	if n < 1 || n > len(p.lines) {
		return ""
	}
	return p.lines[n-1]
}

// walk calls fn for every expression below n, depth first.
func walk(n Node, fn func(Expr)) {
	switch x := n.(type) {
	case *AssignStmt:
		walk(x.Target, fn)
		walk(x.Value, fn)
	case *AugAssignStmt:
		walk(x.Target, fn)
		walk(x.Value, fn)
	case *ExprStmt:
		walk(x.X, fn)
	case *ImportStmt:
	case Expr:
		fn(x)
		switch e := x.(type) {
		case *ListExpr:
			walkAll(e.Items, fn)
		case *TupleExpr:
			walkAll(e.Items, fn)
		case *DictExpr:
			walkAll(e.Keys, fn)
			walkAll(e.Values, fn)
		case *UnaryExpr:
			walk(e.Operand, fn)
		case *BinaryExpr:
			walk(e.Left, fn)
			walk(e.Right, fn)
		case *BoolExpr:
			walk(e.Left, fn)
			walk(e.Right, fn)
		case *CompareExpr:
			walk(e.Left, fn)
			walk(e.Right, fn)
		case *AttributeExpr:
			walk(e.Value, fn)
		case *IndexExpr:
			walk(e.Value, fn)
			walk(e.Index, fn)
		case *SliceExpr:
			if e.Lo != nil {
				walk(e.Lo, fn)
			}
			if e.Hi != nil {
				walk(e.Hi, fn)
			}
		case *CondExpr:
			walk(e.Cond, fn)
			walk(e.Then, fn)
			walk(e.Else, fn)
		case *CallExpr:
			walk(e.Func, fn)
			walkAll(e.Args, fn)
			for _, kw := range e.Keywords {
				walk(kw.Value, fn)
			}
		}
	}
}

func walkAll(exprs []Expr, fn func(Expr)) {
	for _, e := range exprs {
		walk(e, fn)
	}
}
