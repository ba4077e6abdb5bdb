// Package engine provides a hand-written parser for row-filter expressions.
//
// What: It parses the column-oriented filter dialect (comparisons, membership,
// string predicates via the .str accessor, casts, & | ~ and the keywords
// and/or/not) into a small AST evaluated by Eval.
// How: A straightforward recursive-descent parser over the token slice from
// the lexer. & and | bind looser than comparisons so "a == 1 & b == 2" needs
// no parentheses; comparison chains such as "1 < x < 5" expand to a
// conjunction.
// Why: A small, readable parser is easy to extend and keeps error messages
// precise without a generator toolchain.
package engine

import (
	"fmt"
	"strconv"
	"strings"
)

// Parser walks a token slice produced by the lexer.
type Parser struct {
	toks []token
	i    int
}

// NewParser tokenizes expr and returns a parser positioned at the first token.
func NewParser(expr string) (*Parser, error) {
	toks, err := newLexer(expr).tokenize()
	if err != nil {
		return nil, err
	}
	return &Parser{toks: toks}, nil
}

func (p *Parser) cur() token { return p.toks[p.i] }
func (p *Parser) peek() token {
	if p.i+1 < len(p.toks) {
		return p.toks[p.i+1]
	}
	return p.toks[len(p.toks)-1]
}
func (p *Parser) next() {
	if p.i < len(p.toks)-1 {
		p.i++
	}
}
func (p *Parser) isSymbol(sym string) bool {
	t := p.cur()
	return t.Typ == tSymbol && t.Val == sym
}
func (p *Parser) isKeyword(kw string) bool {
	t := p.cur()
	return t.Typ == tKeyword && strings.EqualFold(t.Val, kw)
}
func (p *Parser) expectSymbol(sym string) error {
	if p.isSymbol(sym) {
		p.next()
		return nil
	}
	return p.errf("expected %q", sym)
}
func (p *Parser) errf(format string, a ...any) error {
	t := p.cur()
	near := t.Val
	if t.Typ == tEOF {
		near = "end of input"
	}
	return fmt.Errorf("%w near %q at %d: %s", ErrSyntax, near, t.Pos, fmt.Sprintf(format, a...))
}

// ------------------------------ AST ------------------------------

type Expr interface{}

type (
	// Ident refers to a column by its exact header.
	Ident struct{ Name string }
	// Literal holds a constant (string, int64, float64, bool or nil).
	Literal struct{ Val any }
	// List is a bracketed or parenthesised list of literals.
	List struct{ Items []Expr }
	// Unary covers -, + and ~ plus the keyword not.
	Unary struct {
		Op   string
		Expr Expr
	}
	// Binary covers arithmetic, comparisons, & | and the keywords and/or.
	Binary struct {
		Op          string
		Left, Right Expr
	}
	// In is membership: x in [..] / x not in [..].
	In struct {
		Expr   Expr
		List   Expr
		Negate bool
	}
	// Method is a method call on a column value, optionally through the
	// .str accessor (Accessor == "str").
	Method struct {
		Recv     Expr
		Accessor string
		Name     string
		Args     []Expr
		Kwargs   map[string]Expr
	}
)

// Parse parses a complete filter expression.
func Parse(expr string) (Expr, error) {
	if strings.TrimSpace(expr) == "" {
		return nil, fmt.Errorf("%w: empty expression", ErrSyntax)
	}
	p, err := NewParser(expr)
	if err != nil {
		return nil, err
	}
	e, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if p.cur().Typ != tEOF {
		return nil, p.errf("unexpected trailing input")
	}
	return e, nil
}

// ------------------------------ Parse ------------------------------

func (p *Parser) parseExpr() (Expr, error) { return p.parseKwOr() }

func (p *Parser) parseKwOr() (Expr, error) {
	l, err := p.parseKwAnd()
	if err != nil {
		return nil, err
	}
	for p.isKeyword("or") {
		p.next()
		r, err := p.parseKwAnd()
		if err != nil {
			return nil, err
		}
		l = &Binary{Op: "or", Left: l, Right: r}
	}
	return l, nil
}

func (p *Parser) parseKwAnd() (Expr, error) {
	l, err := p.parseKwNot()
	if err != nil {
		return nil, err
	}
	for p.isKeyword("and") {
		p.next()
		r, err := p.parseKwNot()
		if err != nil {
			return nil, err
		}
		l = &Binary{Op: "and", Left: l, Right: r}
	}
	return l, nil
}

func (p *Parser) parseKwNot() (Expr, error) {
	if p.isKeyword("not") {
		p.next()
		e, err := p.parseKwNot()
		if err != nil {
			return nil, err
		}
		return &Unary{Op: "not", Expr: e}, nil
	}
	return p.parseBitOr()
}

func (p *Parser) parseBitOr() (Expr, error) {
	l, err := p.parseBitAnd()
	if err != nil {
		return nil, err
	}
	for p.isSymbol("|") {
		p.next()
		r, err := p.parseBitAnd()
		if err != nil {
			return nil, err
		}
		l = &Binary{Op: "|", Left: l, Right: r}
	}
	return l, nil
}

func (p *Parser) parseBitAnd() (Expr, error) {
	l, err := p.parseCmp()
	if err != nil {
		return nil, err
	}
	for p.isSymbol("&") {
		p.next()
		r, err := p.parseCmp()
		if err != nil {
			return nil, err
		}
		l = &Binary{Op: "&", Left: l, Right: r}
	}
	return l, nil
}

func isCmpOp(t token) bool {
	if t.Typ != tSymbol {
		return false
	}
	switch t.Val {
	case "==", "!=", "<", "<=", ">", ">=":
		return true
	}
	return false
}

// parseCmp handles comparison chains; "a < b < c" becomes (a < b) & (b < c).
func (p *Parser) parseCmp() (Expr, error) {
	l, err := p.parseAddSub()
	if err != nil {
		return nil, err
	}
	var out Expr
	for {
		var cmp Expr
		switch {
		case isCmpOp(p.cur()):
			op := p.cur().Val
			p.next()
			r, err := p.parseAddSub()
			if err != nil {
				return nil, err
			}
			cmp, l = &Binary{Op: op, Left: l, Right: r}, r
		case p.isKeyword("in"):
			p.next()
			r, err := p.parseAddSub()
			if err != nil {
				return nil, err
			}
			cmp, l = &In{Expr: l, List: r}, r
		case p.isKeyword("not") && p.peek().Typ == tKeyword && strings.EqualFold(p.peek().Val, "in"):
			p.next()
			p.next()
			r, err := p.parseAddSub()
			if err != nil {
				return nil, err
			}
			cmp, l = &In{Expr: l, List: r, Negate: true}, r
		case p.cur().Typ == tSymbol && p.cur().Val == "=":
			return nil, p.errf("use '==' for comparison")
		}
		if cmp == nil {
			break
		}
		if out == nil {
			out = cmp
		} else {
			out = &Binary{Op: "&", Left: out, Right: cmp}
		}
	}
	if out == nil {
		return l, nil
	}
	return out, nil
}

func (p *Parser) parseAddSub() (Expr, error) {
	l, err := p.parseMulDiv()
	if err != nil {
		return nil, err
	}
	for p.isSymbol("+") || p.isSymbol("-") {
		op := p.cur().Val
		p.next()
		r, err := p.parseMulDiv()
		if err != nil {
			return nil, err
		}
		l = &Binary{Op: op, Left: l, Right: r}
	}
	return l, nil
}

func (p *Parser) parseMulDiv() (Expr, error) {
	l, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.isSymbol("*") || p.isSymbol("/") || p.isSymbol("%") {
		op := p.cur().Val
		p.next()
		r, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		l = &Binary{Op: op, Left: l, Right: r}
	}
	return l, nil
}

func (p *Parser) parseUnary() (Expr, error) {
	if p.isSymbol("-") || p.isSymbol("+") || p.isSymbol("~") {
		op := p.cur().Val
		p.next()
		e, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &Unary{Op: op, Expr: e}, nil
	}
	return p.parsePostfix()
}

func (p *Parser) parsePostfix() (Expr, error) {
	e, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for p.isSymbol(".") {
		p.next()
		if p.cur().Typ != tIdent {
			return nil, p.errf("expected attribute name")
		}
		m := &Method{Recv: e, Name: p.cur().Val}
		p.next()
		if m.Name == "str" {
			if err := p.expectSymbol("."); err != nil {
				return nil, err
			}
			if p.cur().Typ != tIdent {
				return nil, p.errf("expected string method name")
			}
			m.Accessor, m.Name = "str", p.cur().Val
			p.next()
		}
		if err := p.expectSymbol("("); err != nil {
			return nil, err
		}
		if err := p.parseArgs(m); err != nil {
			return nil, err
		}
		e = m
	}
	return e, nil
}

// parseArgs reads "arg, ..., name=value)" after the opening parenthesis.
func (p *Parser) parseArgs(m *Method) error {
	for !p.isSymbol(")") {
		if p.cur().Typ == tIdent && p.peek().Typ == tSymbol && p.peek().Val == "=" {
			name := p.cur().Val
			p.next()
			p.next()
			v, err := p.parseExpr()
			if err != nil {
				return err
			}
			if m.Kwargs == nil {
				m.Kwargs = map[string]Expr{}
			}
			m.Kwargs[name] = v
		} else {
			if len(m.Kwargs) > 0 {
				return p.errf("positional argument follows keyword argument")
			}
			v, err := p.parseExpr()
			if err != nil {
				return err
			}
			m.Args = append(m.Args, v)
		}
		if p.isSymbol(",") {
			p.next()
			continue
		}
		if !p.isSymbol(")") {
			return p.errf("expected ',' or ')'")
		}
	}
	p.next()
	return nil
}

func (p *Parser) parsePrimary() (Expr, error) {
	t := p.cur()
	switch t.Typ {
	case tNumber:
		p.next()
		if n, err := strconv.ParseInt(t.Val, 10, 64); err == nil {
			return &Literal{Val: n}, nil
		}
		f, err := strconv.ParseFloat(t.Val, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid number %q", ErrSyntax, t.Val)
		}
		return &Literal{Val: f}, nil
	case tString:
		// Adjacent literals concatenate.
		var b strings.Builder
		for p.cur().Typ == tString {
			b.WriteString(p.cur().Val)
			p.next()
		}
		return &Literal{Val: b.String()}, nil
	case tKeyword:
		switch t.Val {
		case "True":
			p.next()
			return &Literal{Val: true}, nil
		case "False":
			p.next()
			return &Literal{Val: false}, nil
		case "None":
			p.next()
			return &Literal{Val: nil}, nil
		}
		return nil, p.errf("unexpected keyword %q", t.Val)
	case tIdent:
		p.next()
		return &Ident{Name: t.Val}, nil
	case tSymbol:
		switch t.Val {
		case "(":
			p.next()
			if p.isSymbol(")") {
				p.next()
				return &List{}, nil
			}
			e, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			if p.isSymbol(",") {
				return p.parseListTail(e, ")")
			}
			if err := p.expectSymbol(")"); err != nil {
				return nil, err
			}
			return e, nil
		case "[":
			p.next()
			if p.isSymbol("]") {
				p.next()
				return &List{}, nil
			}
			e, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			if p.isSymbol(",") {
				return p.parseListTail(e, "]")
			}
			if err := p.expectSymbol("]"); err != nil {
				return nil, err
			}
			return &List{Items: []Expr{e}}, nil
		}
	}
	return nil, p.errf("unexpected token")
}

func (p *Parser) parseListTail(first Expr, closer string) (Expr, error) {
	l := &List{Items: []Expr{first}}
	for p.isSymbol(",") {
		p.next()
		if p.isSymbol(closer) {
			break
		}
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		l.Items = append(l.Items, e)
	}
	if err := p.expectSymbol(closer); err != nil {
		return nil, err
	}
	return l, nil
}
