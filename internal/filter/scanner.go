// Package filter turns a loosely written row-filter string into a row mask.
//
// What: Normalization of column references, top-level OR grouping, row-number
// clauses and an ordered chain of evaluation strategies with safety nets, so
// that evaluation is total: every input yields a mask plus a trace that
// explains how it was obtained.
// How: A small quote-aware scanner splits the text into code, string and
// backtick segments; every rewrite works on those segments so quoted text is
// never touched by accident. Each OR-group runs through the strategies until
// one produces a mask.
// Why: Filters come from people and planners, not compilers; degrading
// gracefully and reporting what happened beats failing the whole edit.
package filter

import "strings"

type segKind int

const (
	segCode segKind = iota
	segString
	segBacktick
)

// segment is a contiguous run of the input. For strings, text holds the full
// literal including any r prefix and both quotes, body the raw content.
type segment struct {
	kind  segKind
	start int
	text  string
	body  string
	quote byte
	raw   bool
}

func isWordByte(c byte) bool {
	return c == '_' || c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= 0x80
}

// scan splits s into segments. Unterminated strings and backticks run to the
// end of the input.
func scan(s string) []segment {
	var out []segment
	codeStart := 0
	flush := func(end int) {
		if end > codeStart {
			out = append(out, segment{kind: segCode, start: codeStart, text: s[codeStart:end]})
		}
	}
	i := 0
	for i < len(s) {
		c := s[i]
		switch {
		case c == '`':
			flush(i)
			end := strings.IndexByte(s[i+1:], '`')
			stop := len(s)
			if end >= 0 {
				stop = i + 1 + end + 1
			}
			body := s[i+1 : stop]
			if end >= 0 {
				body = s[i+1 : stop-1]
			}
			out = append(out, segment{kind: segBacktick, start: i, text: s[i:stop], body: body})
			i = stop
			codeStart = i
		case c == '\'' || c == '"':
			start := i
			raw := false
			if i > codeStart && (s[i-1] == 'r' || s[i-1] == 'R') && (i-1 == 0 || !isWordByte(s[i-2])) {
				start = i - 1
				raw = true
			}
			flush(start)
			j := i + 1
			for j < len(s) && s[j] != c {
				if s[j] == '\\' {
					j++
				}
				j++
			}
			stop := len(s)
			bodyEnd := len(s)
			if j < len(s) {
				stop = j + 1
				bodyEnd = j
			}
			out = append(out, segment{kind: segString, start: start, text: s[start:stop], body: s[i+1 : bodyEnd], quote: c, raw: raw})
			i = stop
			codeStart = i
		default:
			i++
		}
	}
	flush(len(s))
	return out
}

// join concatenates segment texts.
func join(segs []segment) string {
	var b strings.Builder
	for _, sg := range segs {
		b.WriteString(sg.text)
	}
	return b.String()
}

// segmentAt returns the segment containing byte offset pos.
func segmentAt(segs []segment, pos int) (segment, bool) {
	for _, sg := range segs {
		if pos >= sg.start && pos < sg.start+len(sg.text) {
			return sg, true
		}
	}
	return segment{}, false
}

// unescape resolves backslash escapes of a non-raw literal body.
func unescape(body string) string {
	if !strings.Contains(body, `\`) {
		return body
	}
	var b strings.Builder
	for i := 0; i < len(body); i++ {
		c := body[i]
		if c != '\\' || i+1 >= len(body) {
			b.WriteByte(c)
			continue
		}
		i++
		switch body[i] {
		case 'n':
			b.WriteByte('\n')
		case 't':
			b.WriteByte('\t')
		case '\\', '\'', '"':
			b.WriteByte(body[i])
		default:
			b.WriteByte('\\')
			b.WriteByte(body[i])
		}
	}
	return b.String()
}

// Identifiers returns the names of backtick identifiers in expr, in order.
// Backticks inside string literals are ignored.
func Identifiers(expr string) []string {
	var out []string
	for _, sg := range scan(expr) {
		if sg.kind == segBacktick {
			out = append(out, sg.body)
		}
	}
	return out
}
