package dates

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"golang.org/x/text/width"
)

var (
	ordinalRx  = regexp.MustCompile(`(?i)\b(\d{1,2})(st|nd|rd|th)\b`)
	compact8Rx = regexp.MustCompile(`^\d{8}$`)
	cjkRx      = regexp.MustCompile(`^(\d{4})年(\d{1,2})月(\d{1,2})日?$`)
)

// parser turns one date token into a time. ok is false when it cannot.
type parser interface {
	name() string
	parse(token string, dayFirst bool) (time.Time, bool)
}

// parseChain is tried in order; the first parser that succeeds wins.
var parseChain = []parser{
	localizedParser{},
	generalParser{},
	layoutParser{},
}

// parseOne runs a token through the parse chain after light cleanup.
func parseOne(token string, dayFirst bool) (time.Time, bool) {
	token = strings.TrimSpace(width.Narrow.String(token))
	token = ordinalRx.ReplaceAllString(token, "$1")
	if token == "" {
		return time.Time{}, false
	}
	for _, p := range parseChain {
		if t, ok := p.parse(token, dayFirst); ok {
			return t, true
		}
	}
	return time.Time{}, false
}

// civil builds a date and rejects values that time.Date would normalize
// (for example February 30th).
func civil(y, m, d int) (time.Time, bool) {
	if m < 1 || m > 12 || d < 1 || d > 31 {
		return time.Time{}, false
	}
	t := time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
	if t.Year() != y || int(t.Month()) != m || t.Day() != d {
		return time.Time{}, false
	}
	return t, true
}

// localizedParser handles the compact YYYYMMDD form and YYYY年M月D日.
type localizedParser struct{}

func (localizedParser) name() string { return "localized" }

func (localizedParser) parse(token string, _ bool) (time.Time, bool) {
	if compact8Rx.MatchString(token) {
		y, _ := strconv.Atoi(token[:4])
		m, _ := strconv.Atoi(token[4:6])
		d, _ := strconv.Atoi(token[6:])
		return civil(y, m, d)
	}
	if m := cjkRx.FindStringSubmatch(token); m != nil {
		y, _ := strconv.Atoi(m[1])
		mo, _ := strconv.Atoi(m[2])
		d, _ := strconv.Atoi(m[3])
		return civil(y, mo, d)
	}
	return time.Time{}, false
}

// generalParser delegates to dateparse, which understands month names,
// weekdays and most numeric layouts.
type generalParser struct{}

func (generalParser) name() string { return "dateparse" }

func (generalParser) parse(token string, dayFirst bool) (time.Time, bool) {
	t, err := dateparse.ParseIn(token, time.UTC,
		dateparse.PreferMonthFirst(!dayFirst),
		dateparse.RetryAmbiguousDateWithSwap(true),
	)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

var (
	dayFirstLayouts = []string{
		"2/1/2006", "2/1/06", "2-1-2006", "2-1-06", "2.1.2006",
	}
	monthFirstLayouts = []string{
		"1/2/2006", "1/2/06", "1-2-2006", "1-2-06", "1.2.2006",
	}
	fixedLayouts = []string{
		"2006-1-2", "2006/1/2", "2006.1.2",
		"2-Jan-2006", "2-January-2006",
		"Jan 2, 2006", "January 2, 2006",
		"2 Jan 2006", "2 January 2006",
	}
)

// layoutParser is the last resort: a fixed list of explicit layouts. The
// ambiguous numeric layouts are tried in the preferred order first.
type layoutParser struct{}

func (layoutParser) name() string { return "layouts" }

func (layoutParser) parse(token string, dayFirst bool) (time.Time, bool) {
	first, second := monthFirstLayouts, dayFirstLayouts
	if dayFirst {
		first, second = dayFirstLayouts, monthFirstLayouts
	}
	for _, set := range [][]string{fixedLayouts, first, second} {
		for _, layout := range set {
			if t, err := time.Parse(layout, token); err == nil {
				return t, true
			}
		}
	}
	return time.Time{}, false
}
