package filter

import (
	"log/slog"
	"regexp"
	"strings"

	"golang.org/x/text/cases"

	"github.com/SimonWaldherr/tinyedit/internal/storage"
)

const quotedLit = `(?:'((?:[^'\\]|\\.)*)'|"((?:[^"\\]|\\.)*)")`

var (
	eqClauseRx  = regexp.MustCompile("`([^`]+)`\\s*==\\s*(r?)" + quotedLit)
	numClauseRx = regexp.MustCompile("`([^`]+)`\\s*(>=|<=|>|<)\\s*(-?[0-9]+(?:\\.[0-9]+)?)")
	strClauseRx = regexp.MustCompile("(?i)`([^`]+)`\\s*" +
		`(?:\.astype\(\s*(?:str|'(?:str|string)'|"(?:str|string)")\s*\))?\s*` +
		`\.str\.(contains|match|fullmatch|startswith|endswith)\(` +
		`\s*(r?)` + quotedLit +
		`((?:\s*,\s*\w+\s*=\s*\w+)*)\s*,?\s*\)`)
	kwargRx = regexp.MustCompile(`(\w+)\s*=\s*(\w+)`)
)

// fold case-folds s. A Caser is stateful, so each call gets its own.
func fold(s string) string { return cases.Fold().String(s) }

// literal picks the matched alternative of quotedLit and resolves escapes
// unless the literal was raw.
func literal(m []string, raw string, single, double int) string {
	body := m[single]
	if body == "" && m[double] != "" {
		body = m[double]
	}
	if raw != "" {
		return body
	}
	return unescape(body)
}

// HasStringEquality reports whether expr contains a `col` == 'literal' clause.
func HasStringEquality(expr string) bool {
	return eqClauseRx.MatchString(expr)
}

// MatchClauses is the AND-only clause matcher. It recognizes string
// equality (case-folded), numeric comparisons with numeric coercion and
// .str predicates (case-insensitive and null-safe by default), ignores every
// other clause, and reports ok=false when nothing was recognized.
func MatchClauses(expr string, t *storage.Table, logger *slog.Logger) (storage.Mask, bool) {
	if logger == nil {
		logger = discardLogger
	}
	var mask storage.Mask
	and := func(cur storage.Mask) {
		if mask == nil {
			mask = cur
			return
		}
		mask = mask.And(cur)
	}
	n := t.Len()

	for _, m := range eqClauseRx.FindAllStringSubmatch(expr, -1) {
		col, ok := t.Column(m[1])
		if !ok {
			continue
		}
		want := fold(literal(m, m[2], 3, 4))
		cur := make(storage.Mask, n)
		for i, v := range col.Values {
			if s, ok := storage.AsString(v); ok {
				cur[i] = fold(s) == want
			}
		}
		and(cur)
	}

	for _, m := range numClauseRx.FindAllStringSubmatch(expr, -1) {
		col, ok := t.Column(m[1])
		if !ok {
			continue
		}
		bound, _ := storage.ToFloat(m[3])
		cur := make(storage.Mask, n)
		for i, v := range col.Values {
			f, ok := storage.ToFloat(v)
			if !ok {
				continue
			}
			switch m[2] {
			case ">=":
				cur[i] = f >= bound
			case "<=":
				cur[i] = f <= bound
			case ">":
				cur[i] = f > bound
			default:
				cur[i] = f < bound
			}
		}
		and(cur)
	}

	for _, m := range strClauseRx.FindAllStringSubmatch(expr, -1) {
		col, ok := t.Column(m[1])
		if !ok {
			continue
		}
		op := strings.ToLower(m[2])
		pat := literal(m, m[3], 4, 5)
		caseSensitive, naValue := false, false
		for _, kv := range kwargRx.FindAllStringSubmatch(m[6], -1) {
			on := strings.EqualFold(kv[2], "true")
			switch strings.ToLower(kv[1]) {
			case "case":
				caseSensitive = on
			case "na":
				naValue = on
			}
		}
		test, err := stringTest(op, pat, caseSensitive)
		if err != nil {
			logger.Debug("clause skipped", "op", op, "column", m[1], "err", err)
			continue
		}
		cur := make(storage.Mask, n)
		for i, v := range col.Values {
			s, ok := storage.AsString(v)
			if !ok {
				cur[i] = naValue
				continue
			}
			cur[i] = test(s)
		}
		and(cur)
	}

	if mask == nil {
		return nil, false
	}
	return mask, true
}

func stringTest(op, pat string, caseSensitive bool) (func(string) bool, error) {
	switch op {
	case "startswith", "endswith":
		fn := strings.HasPrefix
		if op == "endswith" {
			fn = strings.HasSuffix
		}
		if caseSensitive {
			return func(s string) bool { return fn(s, pat) }, nil
		}
		lp := strings.ToLower(pat)
		return func(s string) bool { return fn(strings.ToLower(s), lp) }, nil
	}
	src := pat
	switch op {
	case "match":
		src = `^(?:` + pat + `)`
	case "fullmatch":
		src = `^(?:` + pat + `)$`
	}
	if !caseSensitive {
		src = `(?i)` + src
	}
	rx, err := regexp.Compile(src)
	if err != nil {
		return nil, err
	}
	return rx.MatchString, nil
}
