// Package dates finds date-like text and rewrites it to a canonical format.
//
// What: Token scanning for common numeric date shapes, whole-cell parsing
// (including spreadsheet serial numbers), a day-first guesser that votes over
// sampled values, and the __DATE_NORMALIZE__ replacement directive.
// How: Tokens are located with one regular expression, then each token runs
// through an ordered chain of parsers; the first success wins. Output formats
// use the human tokens YYYY, YY, MM, DD, HH, mm and ss.
// Why: Dates in user data rarely share one layout; a fixed chain keeps the
// result deterministic for a given (text, format, day-first) triple.
package dates

import (
	"fmt"
	"strings"
	"time"
)

// DefaultFormat is the output format used when none is given.
const DefaultFormat = "YYYY-MM-DD"

var formatTokens = []string{"YYYY", "YY", "MM", "DD", "HH", "mm", "ss"}

// Format renders t using the human format tokens. Anything that is not a
// token is copied through literally.
func Format(t time.Time, format string) string {
	if format == "" {
		format = DefaultFormat
	}
	var b strings.Builder
	for i := 0; i < len(format); {
		tok := ""
		for _, ft := range formatTokens {
			if strings.HasPrefix(format[i:], ft) {
				tok = ft
				break
			}
		}
		switch tok {
		case "YYYY":
			fmt.Fprintf(&b, "%04d", t.Year())
		case "YY":
			fmt.Fprintf(&b, "%02d", t.Year()%100)
		case "MM":
			fmt.Fprintf(&b, "%02d", int(t.Month()))
		case "DD":
			fmt.Fprintf(&b, "%02d", t.Day())
		case "HH":
			fmt.Fprintf(&b, "%02d", t.Hour())
		case "mm":
			fmt.Fprintf(&b, "%02d", t.Minute())
		case "ss":
			fmt.Fprintf(&b, "%02d", t.Second())
		default:
			b.WriteByte(format[i])
			i++
			continue
		}
		i += len(tok)
	}
	return b.String()
}
