package filter

import (
	"regexp"
	"strconv"
	"strings"
)

// rowNumRx recognizes "row identity equals N" clauses.
var rowNumRx = regexp.MustCompile("(?i)(?:`__rownum__`|__rownum__|`row_?number`|row_?number|`row`|row|`index`|index)\\s*==\\s*(\\d+)")

// RowNumberPlaceholder replaces each removed row-number clause.
const RowNumberPlaceholder = "True"

// RemoveRowNumbers strips row-number clauses from expr, replacing each with
// the True placeholder, and returns the requested 1-based positions in order
// of appearance. Matches inside string literals are ignored.
func RemoveRowNumbers(expr string) (string, []int) {
	locs := rowNumRx.FindAllStringSubmatchIndex(expr, -1)
	if len(locs) == 0 {
		return expr, nil
	}
	segs := scan(expr)
	var (
		b    strings.Builder
		ns   []int
		last int
	)
	for _, loc := range locs {
		a, z := loc[0], loc[1]
		sg, ok := segmentAt(segs, a)
		if !ok || sg.kind == segString || (sg.kind == segBacktick && sg.start != a) {
			continue
		}
		if a > 0 && (isWordByte(expr[a-1]) || expr[a-1] == '.') {
			continue
		}
		if z < len(expr) && (isWordByte(expr[z]) || expr[z] == '.') {
			continue
		}
		n, err := strconv.Atoi(expr[loc[2]:loc[3]])
		if err != nil {
			continue
		}
		ns = append(ns, n)
		b.WriteString(expr[last:a])
		b.WriteString(RowNumberPlaceholder)
		last = z
	}
	if len(ns) == 0 {
		return expr, nil
	}
	b.WriteString(expr[last:])
	return b.String(), ns
}

var trueOnlyRx = regexp.MustCompile(`(?i)\bTrue\b|\band\b|[\s()&]`)

// isTrueOnly reports whether expr is nothing but True placeholders joined
// by AND.
func isTrueOnly(expr string) bool {
	return strings.TrimSpace(expr) != "" && trueOnlyRx.ReplaceAllString(expr, "") == ""
}

// IsRowNumberMarker reports whether name is one of the row-number spellings.
func IsRowNumberMarker(name string) bool {
	switch strings.ToLower(name) {
	case "__rownum__", "row", "row_number", "rownumber", "index":
		return true
	}
	return false
}
