// Package plan defines the find/replace plan and its normalization and
// validation against dataset headers.
//
// What: The Plan type, the Replacement tagged variant (literal text or a
// date-normalize directive), flag sanitation, case-insensitive column
// alignment, a validator that reports every violation at once, and plan
// file decoding from JSON or YAML.
// How: Normalize is a pure function returning a copy; Validate never
// mutates and collects messages into a ValidationError.
// Why: Plans usually come from a planner that may be repaired and retried;
// a complete list of violations lets the caller fix everything in one pass.
package plan

import (
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/SimonWaldherr/tinyedit/internal/dates"
)

// Intent is what a plan does with matches.
type Intent string

const (
	IntentFind    Intent = "find"
	IntentReplace Intent = "replace"
)

// MissingPlaceholder replaces null-like replacement text.
const MissingPlaceholder = "N/A (missing)"

var nullLike = map[string]bool{"NA": true, "N/A": true, "NaN": true, "nan": true, "na": true}

// ReplacementKind tags a Replacement.
type ReplacementKind int

const (
	ReplacementNone ReplacementKind = iota
	ReplacementLiteral
	ReplacementDate
)

// Replacement is either absent, literal text, or a date-normalize directive.
type Replacement struct {
	Kind ReplacementKind
	Text string
	Date dates.Directive
}

// Literal returns a literal replacement.
func Literal(text string) Replacement { return Replacement{Kind: ReplacementLiteral, Text: text} }

// DateNormalize returns a date-normalize replacement.
func DateNormalize(format string, mode dates.DayFirstMode) Replacement {
	if format == "" {
		format = dates.DefaultFormat
	}
	return Replacement{Kind: ReplacementDate, Date: dates.Directive{Format: format, DayFirst: mode}}
}

// IsZero reports whether no replacement is set.
func (r Replacement) IsZero() bool { return r.Kind == ReplacementNone }

// String returns the replacement as plan text.
func (r Replacement) String() string {
	switch r.Kind {
	case ReplacementLiteral:
		return r.Text
	case ReplacementDate:
		return fmt.Sprintf("%s(%s; dayfirst=%s)", dates.Sentinel, r.Date.Format, r.Date.DayFirst)
	}
	return ""
}

func (r Replacement) MarshalJSON() ([]byte, error) {
	if r.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(r.String())
}

func (r *Replacement) UnmarshalJSON(b []byte) error {
	var s *string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("replacement must be a string or null: %w", err)
	}
	if s == nil {
		*r = Replacement{}
		return nil
	}
	*r = Literal(*s)
	return nil
}

func (r Replacement) MarshalYAML() (any, error) {
	if r.IsZero() {
		return nil, nil
	}
	return r.String(), nil
}

func (r *Replacement) UnmarshalYAML(n *yaml.Node) error {
	if n.ShortTag() == "!!null" {
		*r = Replacement{}
		return nil
	}
	var s string
	if err := n.Decode(&s); err != nil {
		return fmt.Errorf("replacement must be a string or null: %w", err)
	}
	*r = Literal(s)
	return nil
}

// Plan describes one find or replace over a table. Columns nil means
// "not specified".
type Plan struct {
	Intent      Intent      `json:"intent" yaml:"intent"`
	Pattern     string      `json:"pattern" yaml:"pattern"`
	Flags       string      `json:"flags" yaml:"flags"`
	Columns     []string    `json:"columns,omitempty" yaml:"columns,omitempty"`
	Replacement Replacement `json:"replacement" yaml:"replacement"`
	RowFilter   string      `json:"row_filter,omitempty" yaml:"row_filter,omitempty"`
}

// FlagSet returns the parsed flags.
func (p Plan) FlagSet() Flags { return ParseFlags(p.Flags) }

// Normalize returns a sanitized copy of p: flags restricted to the allowed
// letters (deduplicated, default "i"), replacement trimmed with null-like
// text guarded and date directives turned into the date variant, and an
// empty pattern replaced by the match-all pattern.
func Normalize(p Plan) Plan {
	out := p
	out.Intent = Intent(strings.ToLower(strings.TrimSpace(string(p.Intent))))
	out.Flags = sanitizeFlags(p.Flags)
	out.Pattern = strings.TrimSpace(p.Pattern)
	if out.Pattern == "" {
		out.Pattern = MatchAll
	}
	if p.Columns != nil {
		out.Columns = append([]string{}, p.Columns...)
	}
	out.Replacement = normalizeReplacement(p.Replacement)
	out.RowFilter = strings.TrimSpace(p.RowFilter)
	return out
}

func sanitizeFlags(s string) string {
	var b strings.Builder
	seen := map[rune]bool{}
	for _, r := range s {
		if !strings.ContainsRune(AllowedFlags, r) || seen[r] {
			continue
		}
		seen[r] = true
		b.WriteRune(r)
	}
	if b.Len() == 0 {
		return DefaultFlags
	}
	return b.String()
}

func normalizeReplacement(r Replacement) Replacement {
	if r.Kind != ReplacementLiteral {
		return r
	}
	t := strings.TrimSpace(r.Text)
	switch {
	case t == "":
		return Replacement{}
	case nullLike[t]:
		return Literal(MissingPlaceholder)
	case dates.IsDirective(t):
		d, err := dates.ParseDirective(t)
		if err != nil {
			// Left literal so Validate reports it.
			return Literal(t)
		}
		return Replacement{Kind: ReplacementDate, Date: d}
	}
	return Literal(t)
}

// AlignColumns maps column names case-insensitively to their header
// spelling, keeping only the ones that resolve. When none resolve the
// original list is kept so validation fails.
func AlignColumns(p Plan, headers []string) Plan {
	if len(p.Columns) == 0 {
		return p
	}
	canonical := make(map[string]string, len(headers))
	for _, h := range headers {
		if _, dup := canonical[strings.ToLower(h)]; !dup {
			canonical[strings.ToLower(h)] = h
		}
	}
	var mapped []string
	for _, c := range p.Columns {
		if h, ok := canonical[strings.ToLower(strings.TrimSpace(c))]; ok {
			mapped = append(mapped, h)
		}
	}
	if len(mapped) == 0 {
		return p
	}
	p.Columns = mapped
	return p
}

// Prepare normalizes, aligns and validates p.
func Prepare(p Plan, headers []string) (Plan, error) {
	p = AlignColumns(Normalize(p), headers)
	if err := Validate(p, headers); err != nil {
		return p, err
	}
	return p, nil
}
