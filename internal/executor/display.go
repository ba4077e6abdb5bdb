package executor

import (
	"html"
	"regexp"
	"strings"
)

const quoted = `(?:'((?:[^'\\]|\\.)*)'|"((?:[^"\\]|\\.)*)")`

var (
	strPredRx = regexp.MustCompile("`([^`]+)`\\s*" +
		`(?:\.astype\(\s*(?:str|'(?:str|string)'|"(?:str|string)")\s*\))?\s*` +
		`\.str\.(contains|match|fullmatch|startswith|endswith)\(\s*[rR]?` + quoted)
	strEqRx  = regexp.MustCompile("`([^`]+)`\\s*==\\s*" + quoted)
	numCmpRx = regexp.MustCompile("`([^`]+)`\\s*(?:>=|<=|>|<)\\s*[0-9]+(?:\\.[0-9]+)?")
	spacesRx = regexp.MustCompile(`\s+`)
)

// looseToken escapes token and lets its whitespace match any run of common
// separators.
func looseToken(token string) string {
	return spacesRx.ReplaceAllString(regexp.QuoteMeta(token), `[-_.:/\s]*`)
}

// displayFromFilter derives a display regex and the referenced columns from
// a normalized row filter. The regex is empty when no literal was found.
func displayFromFilter(normalized string) (string, []string) {
	if normalized == "" {
		return "", nil
	}
	var tokens, cols []string
	for _, m := range strPredRx.FindAllStringSubmatchIndex(normalized, -1) {
		cols = append(cols, normalized[m[2]:m[3]])
		val := groupText(normalized, m[6:10])
		if val == "" {
			continue
		}
		switch op := normalized[m[4]:m[5]]; op {
		case "startswith":
			tokens = append(tokens, "^"+regexp.QuoteMeta(val))
		case "endswith":
			tokens = append(tokens, regexp.QuoteMeta(val)+"$")
		case "match", "fullmatch":
			tokens = append(tokens, val)
		default:
			tokens = append(tokens, looseToken(val))
		}
	}
	for _, m := range strEqRx.FindAllStringSubmatchIndex(normalized, -1) {
		cols = append(cols, normalized[m[2]:m[3]])
		if val := groupText(normalized, m[4:8]); val != "" {
			tokens = append(tokens, regexp.QuoteMeta(val))
		}
	}
	for _, m := range numCmpRx.FindAllStringSubmatch(normalized, -1) {
		cols = append(cols, m[1])
	}
	cols = dedupe(cols)
	if len(tokens) == 0 {
		return "", cols
	}
	return "(?:" + strings.Join(tokens, "|") + ")", cols
}

// groupText returns the first participating group of the two quote
// alternatives given as index pairs.
func groupText(s string, idx []int) string {
	for i := 0; i+1 < len(idx); i += 2 {
		if idx[i] >= 0 {
			return s[idx[i]:idx[i+1]]
		}
	}
	return ""
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := in[:0:0]
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

// highlight escapes text and wraps every match of rx in <mark>. It returns
// the HTML and the number of matches.
func highlight(text string, rx *regexp.Regexp) (string, int) {
	locs := rx.FindAllStringIndex(text, -1)
	if len(locs) == 0 {
		return html.EscapeString(text), 0
	}
	var b strings.Builder
	last := 0
	for _, loc := range locs {
		b.WriteString(html.EscapeString(text[last:loc[0]]))
		b.WriteString("<mark>")
		b.WriteString(html.EscapeString(text[loc[0]:loc[1]]))
		b.WriteString("</mark>")
		last = loc[1]
	}
	b.WriteString(html.EscapeString(text[last:]))
	return b.String(), len(locs)
}
