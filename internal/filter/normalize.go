package filter

import (
	"regexp"
	"sort"
	"strings"
)

var (
	// quotedTail is what may follow a quoted header for it to count as a
	// column reference rather than a literal.
	quotedTail = regexp.MustCompile(`^\s*(?:\.(?:str|astype|isin|isna|notna|isnull|notnull)\b|==|!=|>=|<=|>|<)`)
	// bareTail is what may follow a bare header name.
	bareTail = regexp.MustCompile(`^\s*(?:\.(?:str|astype|isin|isna|notna|isnull|notnull)\b|\)|\]|==|!=|>=|<=|>|<|(?i:in|not\s+in)\b)`)

	rawCallTail   = regexp.MustCompile(`\.str\.(?:contains|match|fullmatch|replace)\(\s*$`)
	astypeBare    = regexp.MustCompile(`\.astype\(\s*str\s*\)`)
	astypeOpen    = regexp.MustCompile(`\.astype\(\s*$`)
	closeParen    = regexp.MustCompile(`^\s*\)`)
	prefixCall    = regexp.MustCompile(`\.str\.(?:startswith|endswith)\(`)
	caseKwAfter   = regexp.MustCompile(`\s*,\s*case\s*=\s*(?:True|False)`)
	caseKwBefore  = regexp.MustCompile(`case\s*=\s*(?:True|False)\s*,\s*`)
	caseKwOnly    = regexp.MustCompile(`^\s*case\s*=\s*(?:True|False)\s*$`)
)

// Normalize rewrites a raw filter into canonical form for the given headers:
// column names (quoted or bare) become backtick identifiers, longest header
// first; the first argument of .str.contains/match/fullmatch/replace becomes a
// raw string; astype(str) is spelled astype('string'); case= is dropped from
// .str.startswith/endswith.
func Normalize(expr string, headers []string) string {
	if strings.TrimSpace(expr) == "" {
		return expr
	}
	sorted := append([]string(nil), headers...)
	sort.SliceStable(sorted, func(i, j int) bool { return len(sorted[i]) > len(sorted[j]) })

	s := quoteHeaders(expr, sorted)
	s = backtickBareHeaders(s, sorted)
	s = rawPatternArgs(s)
	s = canonicalAstype(s)
	s = stripPrefixCase(s)
	return s
}

func quoteHeaders(s string, headers []string) string {
	segs := scan(s)
	known := make(map[string]bool, len(headers))
	for _, h := range headers {
		known[h] = true
	}
	for i, sg := range segs {
		if sg.kind != segString || sg.raw || strings.Contains(sg.body, "`") {
			continue
		}
		name := unescape(sg.body)
		if !known[name] {
			continue
		}
		if !quotedTail.MatchString(s[sg.start+len(sg.text):]) {
			continue
		}
		segs[i] = segment{kind: segBacktick, start: sg.start, text: "`" + name + "`", body: name}
	}
	return join(segs)
}

type span struct{ start, end int }

func overlaps(spans []span, a, b int) bool {
	for _, sp := range spans {
		if a < sp.end && b > sp.start {
			return true
		}
	}
	return false
}

func backtickBareHeaders(s string, headers []string) string {
	segs := scan(s)
	var claimed []span
	for _, h := range headers {
		if strings.TrimSpace(h) == "" {
			continue
		}
		for _, sg := range segs {
			if sg.kind != segCode {
				continue
			}
			from := 0
			for {
				k := strings.Index(sg.text[from:], h)
				if k < 0 {
					break
				}
				a := sg.start + from + k
				b := a + len(h)
				from += k + 1
				if overlaps(claimed, a, b) {
					continue
				}
				if a > 0 {
					prev := s[a-1]
					if isWordByte(prev) || prev == '`' || prev == '"' || prev == '\'' {
						continue
					}
				}
				if isWordByte(h[len(h)-1]) && b < len(s) && isWordByte(s[b]) {
					continue
				}
				if !bareTail.MatchString(s[b:]) {
					continue
				}
				claimed = append(claimed, span{a, b})
			}
		}
	}
	if len(claimed) == 0 {
		return s
	}
	sort.Slice(claimed, func(i, j int) bool { return claimed[i].start < claimed[j].start })
	var out strings.Builder
	last := 0
	for _, sp := range claimed {
		out.WriteString(s[last:sp.start])
		out.WriteString("`" + s[sp.start:sp.end] + "`")
		last = sp.end
	}
	out.WriteString(s[last:])
	return out.String()
}

func rawPatternArgs(s string) string {
	segs := scan(s)
	for i := 1; i < len(segs); i++ {
		sg := segs[i]
		if sg.kind != segString || sg.raw || segs[i-1].kind != segCode {
			continue
		}
		if rawCallTail.MatchString(segs[i-1].text) {
			segs[i].text = "r" + sg.text
			segs[i].raw = true
		}
	}
	return join(segs)
}

func canonicalAstype(s string) string {
	segs := scan(s)
	for i, sg := range segs {
		switch sg.kind {
		case segCode:
			segs[i].text = astypeBare.ReplaceAllString(sg.text, ".astype('string')")
		case segString:
			if sg.body != "str" || i == 0 || i+1 >= len(segs) {
				continue
			}
			if astypeOpen.MatchString(segs[i-1].text) && segs[i+1].kind == segCode && closeParen.MatchString(segs[i+1].text) {
				segs[i].text = "'string'"
			}
		}
	}
	return join(segs)
}

// closingParen returns the offset of the ')' matching the '(' at open,
// ignoring parentheses inside strings and backticks, or -1.
func closingParen(s string, open int) int {
	depth := 0
	for _, sg := range scan(s) {
		if sg.kind != segCode || sg.start+len(sg.text) <= open {
			continue
		}
		for k := 0; k < len(sg.text); k++ {
			pos := sg.start + k
			if pos < open {
				continue
			}
			switch sg.text[k] {
			case '(':
				depth++
			case ')':
				depth--
				if depth == 0 {
					return pos
				}
			}
		}
	}
	return -1
}

func stripPrefixCase(s string) string {
	// Walk calls from the end so earlier offsets stay valid.
	locs := prefixCall.FindAllStringIndex(s, -1)
	for i := len(locs) - 1; i >= 0; i-- {
		open := locs[i][1] - 1
		if sg, ok := segmentAt(scan(s), open); !ok || sg.kind != segCode {
			continue
		}
		end := closingParen(s, open)
		if end < 0 {
			continue
		}
		inner := scan(s[open+1 : end])
		for k, sg := range inner {
			if sg.kind != segCode {
				continue
			}
			t := caseKwAfter.ReplaceAllString(sg.text, "")
			t = caseKwBefore.ReplaceAllString(t, "")
			t = caseKwOnly.ReplaceAllString(t, "")
			inner[k].text = t
		}
		s = s[:open+1] + join(inner) + s[end:]
	}
	return s
}
