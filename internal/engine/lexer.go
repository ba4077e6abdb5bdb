// Package engine contains the lexer used by the filter-expression parser.
//
// What: A small tokenizer for the row-filter dialect: identifiers (bare or
// backticked), numbers, quoted strings with an optional r prefix, the
// keywords and/or/not/in plus True/False/None, and operator symbols.
// How: Single-pass byte scanner; keywords are a fixed allow-list and keep
// their original spelling in Val so error messages read naturally.
// Why: Keeping tokenization separate from parsing keeps the grammar small
// and makes error positions precise.
package engine

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

type tokenType int

const (
	tEOF tokenType = iota
	tIdent
	tNumber
	tString
	tSymbol
	tKeyword
)

func (t tokenType) String() string {
	switch t {
	case tIdent:
		return "identifier"
	case tNumber:
		return "number"
	case tString:
		return "string"
	case tSymbol:
		return "symbol"
	case tKeyword:
		return "keyword"
	}
	return "end of input"
}

type token struct {
	Typ tokenType
	Val string
	Pos int
	// Quoted marks backtick identifiers.
	Quoted bool
}

type lexer struct {
	s   string
	pos int
}

func newLexer(s string) *lexer { return &lexer{s: s} }

func (lx *lexer) peekN(n int) byte {
	p := lx.pos + n
	if p >= len(lx.s) {
		return 0
	}
	return lx.s[p]
}

func (lx *lexer) skipWS() {
	for lx.pos < len(lx.s) {
		r, size := utf8.DecodeRuneInString(lx.s[lx.pos:])
		if !unicode.IsSpace(r) {
			return
		}
		lx.pos += size
	}
}

// tokenize scans the whole input. The final token is always tEOF.
func (lx *lexer) tokenize() ([]token, error) {
	var out []token
	for {
		tok, err := lx.nextToken()
		if err != nil {
			return nil, err
		}
		out = append(out, tok)
		if tok.Typ == tEOF {
			return out, nil
		}
	}
}

func (lx *lexer) nextToken() (token, error) {
	lx.skipWS()
	start := lx.pos
	if start >= len(lx.s) {
		return token{Typ: tEOF, Pos: start}, nil
	}
	c := lx.s[start]
	switch {
	case c == '\'' || c == '"':
		return lx.tokenizeString(start, false)
	case (c == 'r' || c == 'R') && (lx.peekN(1) == '\'' || lx.peekN(1) == '"'):
		lx.pos++
		return lx.tokenizeString(start, true)
	case c == '`':
		return lx.tokenizeBacktick(start)
	case c >= '0' && c <= '9', c == '.' && isDigit(lx.peekN(1)):
		return lx.tokenizeNumber(start), nil
	}
	r, _ := utf8.DecodeRuneInString(lx.s[start:])
	if unicode.IsLetter(r) || r == '_' {
		return lx.tokenizeIdentOrKeyword(start), nil
	}
	return lx.tokenizeSymbol(start)
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

// tokenizeString reads a quoted literal. Raw strings keep backslashes; in
// both forms a backslash protects the following quote from closing.
func (lx *lexer) tokenizeString(start int, raw bool) (token, error) {
	q := lx.s[lx.pos]
	lx.pos++
	var val strings.Builder
	for lx.pos < len(lx.s) {
		ch := lx.s[lx.pos]
		lx.pos++
		if ch == q {
			return token{Typ: tString, Val: val.String(), Pos: start}, nil
		}
		if ch != '\\' || lx.pos >= len(lx.s) {
			val.WriteByte(ch)
			continue
		}
		nx := lx.s[lx.pos]
		lx.pos++
		if raw {
			val.WriteByte('\\')
			val.WriteByte(nx)
			continue
		}
		switch nx {
		case 'n':
			val.WriteByte('\n')
		case 't':
			val.WriteByte('\t')
		case 'r':
			val.WriteByte('\r')
		case '\\', '\'', '"':
			val.WriteByte(nx)
		default:
			val.WriteByte('\\')
			val.WriteByte(nx)
		}
	}
	return token{}, fmt.Errorf("%w: unterminated string starting at %d", ErrSyntax, start)
}

func (lx *lexer) tokenizeBacktick(start int) (token, error) {
	end := strings.IndexByte(lx.s[start+1:], '`')
	if end < 0 {
		return token{}, fmt.Errorf("%w: unterminated backtick identifier at %d", ErrSyntax, start)
	}
	name := lx.s[start+1 : start+1+end]
	lx.pos = start + end + 2
	return token{Typ: tIdent, Val: name, Pos: start, Quoted: true}, nil
}

func (lx *lexer) tokenizeNumber(start int) token {
	dot, exp := false, false
	for lx.pos < len(lx.s) {
		ch := lx.s[lx.pos]
		switch {
		case isDigit(ch) || ch == '_':
		case ch == '.' && !dot && !exp:
			dot = true
		case (ch == 'e' || ch == 'E') && !exp:
			exp = true
			if n := lx.peekN(1); n == '+' || n == '-' {
				lx.pos++
			}
		default:
			return token{Typ: tNumber, Val: strings.ReplaceAll(lx.s[start:lx.pos], "_", ""), Pos: start}
		}
		lx.pos++
	}
	return token{Typ: tNumber, Val: strings.ReplaceAll(lx.s[start:lx.pos], "_", ""), Pos: start}
}

// tokenizeIdentOrKeyword reads letters, digits and '_'. A '.' always ends the
// identifier because it introduces an accessor.
func (lx *lexer) tokenizeIdentOrKeyword(start int) token {
	for lx.pos < len(lx.s) {
		r, size := utf8.DecodeRuneInString(lx.s[lx.pos:])
		if !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_') {
			break
		}
		lx.pos += size
	}
	val := lx.s[start:lx.pos]
	if isKeyword(val) {
		return token{Typ: tKeyword, Val: val, Pos: start}
	}
	return token{Typ: tIdent, Val: val, Pos: start}
}

func (lx *lexer) tokenizeSymbol(start int) (token, error) {
	c := lx.s[start]
	switch c {
	case '(', ')', '[', ']', ',', '.', '&', '|', '~', '+', '-', '*', '/', '%':
		lx.pos++
		return token{Typ: tSymbol, Val: string(c), Pos: start}, nil
	case '=', '<', '>', '!':
		lx.pos++
		if lx.peekN(0) == '=' {
			lx.pos++
			return token{Typ: tSymbol, Val: string(c) + "=", Pos: start}, nil
		}
		if c == '!' {
			return token{}, fmt.Errorf("%w: unexpected '!' at %d", ErrSyntax, start)
		}
		return token{Typ: tSymbol, Val: string(c), Pos: start}, nil
	}
	r, _ := utf8.DecodeRuneInString(lx.s[start:])
	return token{}, fmt.Errorf("%w: unexpected character %q at %d", ErrSyntax, r, start)
}

// isKeyword matches and/or/not/in case-insensitively and True/False/None
// with their exact spelling.
func isKeyword(v string) bool {
	switch strings.ToLower(v) {
	case "and", "or", "not", "in":
		return true
	}
	switch v {
	case "True", "False", "None":
		return true
	}
	return false
}
