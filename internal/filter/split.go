package filter

import "strings"

// symbolFor maps a logical word to the operator symbol that splits with it.
var symbolFor = map[string]byte{"or": '|', "and": '&'}

// SplitTopLevel splits expr on the standalone word (case-insensitive) and on
// its symbol ('|' for "or", '&' for "and") wherever they appear outside
// quotes, backticks and parentheses. A backslash protects the next
// character. Empty parts are dropped.
func SplitTopLevel(expr, word string) []string {
	word = strings.ToLower(word)
	sym, hasSym := symbolFor[word]
	var out []string
	var buf strings.Builder
	emit := func() {
		if p := strings.TrimSpace(buf.String()); p != "" {
			out = append(out, p)
		}
		buf.Reset()
	}
	depth := 0
	var quote byte
	for i := 0; i < len(expr); i++ {
		c := expr[i]
		if c == '\\' && i+1 < len(expr) {
			buf.WriteByte(c)
			buf.WriteByte(expr[i+1])
			i++
			continue
		}
		if quote != 0 {
			if c == quote {
				quote = 0
			}
			buf.WriteByte(c)
			continue
		}
		switch c {
		case '\'', '"', '`':
			quote = c
		case '(', '[':
			depth++
		case ')', ']':
			if depth > 0 {
				depth--
			}
		}
		if depth == 0 {
			if hasSym && c == sym {
				emit()
				continue
			}
			if n := len(word); n > 0 && i+n <= len(expr) && strings.EqualFold(expr[i:i+n], word) &&
				(i == 0 || !isWordByte(expr[i-1])) && (i+n == len(expr) || !isWordByte(expr[i+n])) {
				emit()
				i += n - 1
				continue
			}
		}
		buf.WriteByte(c)
	}
	emit()
	return out
}
