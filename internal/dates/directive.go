package dates

import (
	"fmt"
	"regexp"
	"strings"
)

// Sentinel is the replacement prefix that switches a plan into date mode.
const Sentinel = "__DATE_NORMALIZE__"

// DayFirstMode is the dayfirst= option of a directive.
type DayFirstMode int

const (
	DayFirstAuto DayFirstMode = iota
	DayFirstOn
	DayFirstOff
)

func (m DayFirstMode) String() string {
	switch m {
	case DayFirstOn:
		return "true"
	case DayFirstOff:
		return "false"
	}
	return "auto"
}

// Directive is a parsed __DATE_NORMALIZE__(...) replacement.
type Directive struct {
	Format   string
	DayFirst DayFirstMode
}

var formatArgRx = regexp.MustCompile(`^[YMDHms:/._\- ]+$`)

// IsDirective reports whether a replacement string is a date directive.
func IsDirective(s string) bool {
	return strings.HasPrefix(strings.TrimSpace(s), Sentinel)
}

// ParseDirective parses "__DATE_NORMALIZE__" or
// "__DATE_NORMALIZE__(FORMAT; dayfirst=auto|true|false)". Arguments may be
// separated by ';' or ',' and appear in any order.
func ParseDirective(s string) (Directive, error) {
	d := Directive{Format: DefaultFormat, DayFirst: DayFirstAuto}
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, Sentinel) {
		return d, fmt.Errorf("not a date directive: %q", s)
	}
	rest := strings.TrimSpace(strings.TrimPrefix(s, Sentinel))
	if rest == "" {
		return d, nil
	}
	if !strings.HasPrefix(rest, "(") || !strings.HasSuffix(rest, ")") {
		return d, fmt.Errorf("malformed date directive: %q", s)
	}
	args := rest[1 : len(rest)-1]
	for _, part := range strings.FieldsFunc(args, func(r rune) bool { return r == ';' || r == ',' }) {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if k, v, ok := strings.Cut(part, "="); ok {
			if !strings.EqualFold(strings.TrimSpace(k), "dayfirst") {
				return d, fmt.Errorf("unknown date directive option %q", strings.TrimSpace(k))
			}
			switch strings.ToLower(strings.TrimSpace(v)) {
			case "auto", "":
				d.DayFirst = DayFirstAuto
			case "true", "1", "yes":
				d.DayFirst = DayFirstOn
			case "false", "0", "no":
				d.DayFirst = DayFirstOff
			default:
				return d, fmt.Errorf("invalid dayfirst value %q", strings.TrimSpace(v))
			}
			continue
		}
		if !formatArgRx.MatchString(part) {
			return d, fmt.Errorf("invalid date format %q", part)
		}
		d.Format = part
	}
	return d, nil
}

// Resolve turns the directive's day-first mode into a concrete choice,
// guessing from samples in auto mode. Undetermined falls back to month-first.
func (d Directive) Resolve(samples []string) bool {
	switch d.DayFirst {
	case DayFirstOn:
		return true
	case DayFirstOff:
		return false
	}
	return GuessDayFirst(samples) == DayFirst
}
