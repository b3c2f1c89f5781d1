package analysis

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokNewline
	tokName
	tokNumber
	tokString
	tokOp
)

type token struct {
	kind tokenKind
	text string
	num  float64
	line int
	col  int
}

func (t token) String() string {
	switch t.kind {
	case tokEOF:
		return "end of input"
	case tokNewline:
		return "end of line"
	case tokString:
		return strconv.Quote(t.text)
	}
	return fmt.Sprintf("%q", t.text)
}

// SyntaxError is a lexing or parsing failure.
type SyntaxError struct {
	Line int
	Col  int
	Msg  string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("line %d, column %d: %s", e.Line, e.Col, e.Msg)
}

var operators = []string{
	"**=", "//=",
	"==", "!=", "<=", ">=", "**", "//", "+=", "-=", "*=", "/=", "%=",
	"+", "-", "*", "/", "%", "<", ">", "=", "&", "|", "~",
	"(", ")", "[", "]", "{", "}", ",", ":", ".", ";",
}

type lexer struct {
	src   []rune
	pos   int
	line  int
	col   int
	depth int
	toks  []token
}

func tokenize(src string) ([]token, error) {
	lx := &lexer{src: []rune(src), line: 1, col: 1}
	if err := lx.run(); err != nil {
		return nil, err
	}
	return lx.toks, nil
}

func (lx *lexer) peek(off int) rune {
	if lx.pos+off >= len(lx.src) {
		return 0
	}
	return lx.src[lx.pos+off]
}

func (lx *lexer) advance() rune {
	r := lx.src[lx.pos]
	lx.pos++
	if r == '\n' {
		lx.line++
		lx.col = 1
	} else {
		lx.col++
	}
	return r
}

func (lx *lexer) emit(kind tokenKind, text string, line, col int) {
	lx.toks = append(lx.toks, token{kind: kind, text: text, line: line, col: col})
}

func (lx *lexer) newline(line, col int) {
	if n := len(lx.toks); n == 0 || lx.toks[n-1].kind == tokNewline {
		return
	}
	lx.emit(tokNewline, "", line, col)
}

func (lx *lexer) errorf(format string, args ...any) error {
	return &SyntaxError{Line: lx.line, Col: lx.col, Msg: fmt.Sprintf(format, args...)}
}

func (lx *lexer) run() error {
	for lx.pos < len(lx.src) {
		r := lx.peek(0)
		line, col := lx.line, lx.col

		switch {
		case r == '\n':
			lx.advance()
			if lx.depth == 0 {
				lx.newline(line, col)
			}
		case r == '\\' && lx.peek(1) == '\n':
			lx.advance()
			lx.advance()
		case r == ' ' || r == '\t' || r == '\r':
			lx.advance()
		case r == '#':
			for lx.pos < len(lx.src) && lx.peek(0) != '\n' {
				lx.advance()
			}
		case r == '\'' || r == '"':
			s, err := lx.readString(r)
			if err != nil {
				return err
			}
			lx.emit(tokString, s, line, col)
		case unicode.IsDigit(r) || (r == '.' && unicode.IsDigit(lx.peek(1))):
			if err := lx.readNumber(line, col); err != nil {
				return err
			}
		case r == '_' || unicode.IsLetter(r):
			start := lx.pos
			for lx.pos < len(lx.src) && (lx.peek(0) == '_' || unicode.IsLetter(lx.peek(0)) || unicode.IsDigit(lx.peek(0))) {
				lx.advance()
			}
			name := string(lx.src[start:lx.pos])
			if (lx.peek(0) == '\'' || lx.peek(0) == '"') && isStringPrefix(name) {
				return lx.errorf("string prefix %q is not supported", name)
			}
			lx.emit(tokName, name, line, col)
		default:
			op := lx.matchOperator()
			if op == "" {
				return lx.errorf("unexpected character %q", r)
			}
			switch op {
			case "(", "[", "{":
				lx.depth++
			case ")", "]", "}":
				if lx.depth > 0 {
					lx.depth--
				}
			}
			if op == ";" {
				lx.newline(line, col)
				continue
			}
			lx.emit(tokOp, op, line, col)
		}
	}
	lx.newline(lx.line, lx.col)
	lx.emit(tokEOF, "", lx.line, lx.col)
	return nil
}

func isStringPrefix(s string) bool {
	switch strings.ToLower(s) {
	case "f", "r", "b", "u", "rb", "br", "fr", "rf":
		return true
	}
	return false
}

func (lx *lexer) matchOperator() string {
	for _, op := range operators {
		n := len(op)
		if lx.pos+n > len(lx.src) {
			continue
		}
		if string(lx.src[lx.pos:lx.pos+n]) == op {
			for i := 0; i < n; i++ {
				lx.advance()
			}
			return op
		}
	}
	return ""
}

func (lx *lexer) readNumber(line, col int) error {
	start := lx.pos
	for lx.pos < len(lx.src) {
		r := lx.peek(0)
		if unicode.IsDigit(r) || r == '.' || r == '_' {
			lx.advance()
			continue
		}
		if (r == 'e' || r == 'E') && (unicode.IsDigit(lx.peek(1)) || ((lx.peek(1) == '-' || lx.peek(1) == '+') && unicode.IsDigit(lx.peek(2)))) {
			lx.advance()
			lx.advance()
			continue
		}
		break
	}
	text := string(lx.src[start:lx.pos])
	f, err := strconv.ParseFloat(strings.ReplaceAll(text, "_", ""), 64)
	if err != nil {
		return &SyntaxError{Line: line, Col: col, Msg: fmt.Sprintf("invalid number %q", text)}
	}
	lx.toks = append(lx.toks, token{kind: tokNumber, text: text, num: f, line: line, col: col})
	return nil
}

func (lx *lexer) readString(quote rune) (string, error) {
	triple := lx.peek(1) == quote && lx.peek(2) == quote
	n := 1
	if triple {
		n = 3
	}
	for i := 0; i < n; i++ {
		lx.advance()
	}

	var sb strings.Builder
	for {
		if lx.pos >= len(lx.src) {
			return "", lx.errorf("unterminated string literal")
		}
		r := lx.peek(0)
		if r == quote && (!triple || (lx.peek(1) == quote && lx.peek(2) == quote)) {
			for i := 0; i < n; i++ {
				lx.advance()
			}
			return sb.String(), nil
		}
		if r == '\n' && !triple {
			return "", lx.errorf("unterminated string literal")
		}
		if r == '\\' {
			lx.advance()
			if lx.pos >= len(lx.src) {
				return "", lx.errorf("unterminated string literal")
			}
			esc := lx.advance()
			switch esc {
			case 'n':
				sb.WriteRune('\n')
			case 't':
				sb.WriteRune('\t')
			case '\\', '\'', '"':
				sb.WriteRune(esc)
			case '\n':
			default:
				sb.WriteRune('\\')
				sb.WriteRune(esc)
			}
			continue
		}
		sb.WriteRune(lx.advance())
	}
}
