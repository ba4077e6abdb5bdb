package plan

import (
	"fmt"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/SimonWaldherr/tinyedit/internal/dates"
	"github.com/SimonWaldherr/tinyedit/internal/filter"
)

// ValidationError lists every problem found in a plan.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string { return strings.Join(e.Errors, "\n") }

// Validate checks a normalized plan against headers and returns a
// *ValidationError holding all violations, or nil.
func Validate(p Plan, headers []string) error {
	var errs []string
	if p.Intent != IntentFind && p.Intent != IntentReplace {
		errs = append(errs, "intent must be 'find' or 'replace'.")
	}
	for _, r := range p.Flags {
		if !strings.ContainsRune(AllowedFlags, r) {
			errs = append(errs, fmt.Sprintf("unsupported flag '%c'", r))
		}
	}
	if _, err := CompilePattern(p.Pattern, p.FlagSet()); err != nil {
		errs = append(errs, fmt.Sprintf("pattern not compilable: %v", err))
	}

	known := make(map[string]bool, len(headers))
	for _, h := range headers {
		known[h] = true
	}
	var unknown []string
	for _, c := range p.Columns {
		if !known[c] {
			unknown = append(unknown, c)
		}
	}
	if len(unknown) > 0 {
		msg := "unknown columns: " + strings.Join(unknown, ", ")
		if hints := suggest(unknown, headers); len(hints) > 0 {
			msg += " (did you mean " + strings.Join(hints, ", ") + "?)"
		}
		errs = append(errs, msg)
	}

	if p.Intent == IntentReplace {
		switch p.Replacement.Kind {
		case ReplacementNone:
			errs = append(errs, "replacement is required for replace intent.")
		case ReplacementLiteral:
			if dates.IsDirective(p.Replacement.Text) {
				if _, err := dates.ParseDirective(p.Replacement.Text); err != nil {
					errs = append(errs, fmt.Sprintf("invalid date directive: %v", err))
				}
			}
		}
	}

	for _, name := range filter.Identifiers(p.RowFilter) {
		if !known[name] && !filter.IsRowNumberMarker(name) {
			errs = append(errs, fmt.Sprintf("row_filter references unknown column `%s`", name))
		}
	}

	if len(errs) > 0 {
		return &ValidationError{Errors: errs}
	}
	return nil
}

// suggest returns close header names for each unknown column.
func suggest(unknown, headers []string) []string {
	var out []string
	seen := map[string]bool{}
	for _, u := range unknown {
		hint := ""
		if ranks := fuzzy.RankFindFold(u, headers); len(ranks) > 0 {
			hint = ranks[0].Target
		} else {
			best := 3
			for _, h := range headers {
				if d := fuzzy.LevenshteinDistance(strings.ToLower(u), strings.ToLower(h)); d < best {
					best, hint = d, h
				}
			}
		}
		if hint != "" && !seen[hint] {
			seen[hint] = true
			out = append(out, hint)
		}
	}
	return out
}
