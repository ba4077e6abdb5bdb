package plan

import (
	"regexp"
	"strings"
)

// Flags is the set of regex flags a plan may carry.
type Flags uint8

const (
	FlagIgnoreCase Flags = 1 << iota
	FlagMultiline
	FlagDotAll
	FlagVerbose
	FlagUnicode
	FlagLocale
)

// AllowedFlags lists every accepted flag letter. u/U are implicit in Go's
// regexp and l has no effect.
const AllowedFlags = "imsluxU"

// DefaultFlags is used when a plan carries no valid flag.
const DefaultFlags = "i"

// MatchAll is the whole-cell pattern.
const MatchAll = "^.*$"

var matchAllRx = regexp.MustCompile(`^\s*\^?\.\*\$?\s*$`)

// IsMatchAll reports whether pattern is empty or a trivial match-all form
// such as ^.*$ or .*.
func IsMatchAll(pattern string) bool {
	return strings.TrimSpace(pattern) == "" || matchAllRx.MatchString(pattern)
}

// ParseFlags converts flag letters into a set. Unknown letters are ignored.
func ParseFlags(s string) Flags {
	var f Flags
	for _, r := range s {
		switch r {
		case 'i':
			f |= FlagIgnoreCase
		case 'm':
			f |= FlagMultiline
		case 's':
			f |= FlagDotAll
		case 'x':
			f |= FlagVerbose
		case 'u', 'U':
			f |= FlagUnicode
		case 'l':
			f |= FlagLocale
		}
	}
	return f
}

// String renders the set in canonical letter order.
func (f Flags) String() string {
	var b strings.Builder
	for _, x := range []struct {
		flag   Flags
		letter byte
	}{{FlagIgnoreCase, 'i'}, {FlagMultiline, 'm'}, {FlagDotAll, 's'}, {FlagLocale, 'l'}, {FlagUnicode, 'u'}, {FlagVerbose, 'x'}} {
		if f&x.flag != 0 {
			b.WriteByte(x.letter)
		}
	}
	return b.String()
}

// CompilePattern builds the regular expression for a plan pattern. A set
// without any of i, m, s or x compiles case-insensitively.
func CompilePattern(pattern string, flags Flags) (*regexp.Regexp, error) {
	if flags&(FlagIgnoreCase|FlagMultiline|FlagDotAll|FlagVerbose) == 0 {
		flags |= FlagIgnoreCase
	}
	if flags&FlagVerbose != 0 {
		pattern = stripVerbose(pattern)
	}
	var inline strings.Builder
	if flags&FlagIgnoreCase != 0 {
		inline.WriteByte('i')
	}
	if flags&FlagMultiline != 0 {
		inline.WriteByte('m')
	}
	if flags&FlagDotAll != 0 {
		inline.WriteByte('s')
	}
	src := pattern
	if inline.Len() > 0 {
		src = "(?" + inline.String() + ")" + pattern
	}
	return regexp.Compile(src)
}

// stripVerbose removes unescaped whitespace and #-comments outside character
// classes.
func stripVerbose(p string) string {
	var b strings.Builder
	inClass := false
	for i := 0; i < len(p); i++ {
		c := p[i]
		switch {
		case c == '\\' && i+1 < len(p):
			b.WriteByte(c)
			b.WriteByte(p[i+1])
			i++
		case inClass:
			if c == ']' {
				inClass = false
			}
			b.WriteByte(c)
		case c == '[':
			inClass = true
			b.WriteByte(c)
			// A leading ] (or ^]) is literal.
			if i+1 < len(p) && p[i+1] == '^' {
				b.WriteByte('^')
				i++
			}
			if i+1 < len(p) && p[i+1] == ']' {
				b.WriteByte(']')
				i++
			}
		case c == '#':
			for i+1 < len(p) && p[i+1] != '\n' {
				i++
			}
		case c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f' || c == '\v':
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}
