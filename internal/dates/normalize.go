package dates

import (
	"math"
	"regexp"
	"strings"
	"time"

	"golang.org/x/text/width"

	"github.com/SimonWaldherr/tinyedit/internal/storage"
)

// tokenRx finds date-like substrings in width-narrowed text. The CJK form is
// listed first and has no trailing boundary because 日 is not an ASCII word
// character.
var tokenRx = regexp.MustCompile(
	`\d{4}年\d{1,2}月\d{1,2}日?` +
		`|\b\d{4}[-/.]\d{1,2}[-/.]\d{1,2}\b` +
		`|\b\d{1,2}[-/.]\d{1,2}[-/.]\d{2,4}\b` +
		`|\b\d{8}\b`)

var serialEpoch = time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)

const (
	serialMin = 10000
	serialMax = 80000
)

// narrowed returns the width-narrowed form of text and, for every byte of
// it plus one past the end, the byte offset in text it came from.
func narrowed(text string) (string, []int) {
	var b strings.Builder
	offs := make([]int, 0, len(text)+1)
	for i, r := range text {
		nr := width.Narrow.String(string(r))
		b.WriteString(nr)
		for j := 0; j < len(nr); j++ {
			offs = append(offs, i)
		}
	}
	offs = append(offs, len(text))
	return b.String(), offs
}

// NormalizeDateText rewrites every date-like token in text to format and
// reports how many tokens parsed. Tokens that fail to parse and all text
// between tokens are left byte for byte as they were. Full-width digits
// are recognized inside tokens.
func NormalizeDateText(text, format string, dayFirst bool) (string, int) {
	if text == "" {
		return text, 0
	}
	scan, offs := narrowed(text)
	locs := tokenRx.FindAllStringIndex(scan, -1)
	if len(locs) == 0 {
		return text, 0
	}
	var b strings.Builder
	n, last := 0, 0
	for _, loc := range locs {
		t, ok := parseOne(scan[loc[0]:loc[1]], dayFirst)
		if !ok {
			continue
		}
		start, end := offs[loc[0]], offs[loc[1]]
		b.WriteString(text[last:start])
		b.WriteString(Format(t, format))
		last = end
		n++
	}
	if n == 0 {
		return text, 0
	}
	b.WriteString(text[last:])
	return b.String(), n
}

// NormalizeCellAsWhole parses an entire cell as one date. Numeric cells in
// the spreadsheet serial range are converted from the 1899-12-30 epoch;
// other numbers are parsed from their text, so 20240501 is a date. When the
// cell does not parse, its text is returned unchanged with ok=false.
func NormalizeCellAsWhole(v any, format string, dayFirst bool) (string, bool) {
	if storage.IsNull(v) {
		return "", false
	}
	if f, isNum := serialValue(v); isNum && f >= serialMin && f <= serialMax {
		days := math.Floor(f)
		frac := f - days
		t := serialEpoch.AddDate(0, 0, int(days)).Add(time.Duration(frac * float64(24*time.Hour)).Round(time.Second))
		return Format(t, format), true
	}
	if t, isTime := v.(time.Time); isTime {
		return Format(t, format), true
	}
	text := storage.FormatValue(v)
	if _, isBool := v.(bool); isBool {
		return text, false
	}
	t, ok := parseOne(text, dayFirst)
	if !ok {
		return text, false
	}
	return Format(t, format), true
}

// serialValue reports whether v holds a Go numeric type and returns it as a
// float. Numeric-looking text is not treated as a serial.
func serialValue(v any) (float64, bool) {
	switch x := v.(type) {
	case int:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case float32:
		return float64(x), true
	case float64:
		return x, true
	}
	return 0, false
}
