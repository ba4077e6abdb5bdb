package executor

import (
	"fmt"

	"github.com/SimonWaldherr/tinyedit/internal/dates"
	"github.com/SimonWaldherr/tinyedit/internal/plan"
	"github.com/SimonWaldherr/tinyedit/internal/storage"
)

// replace substitutes every match of the plan pattern inside the mask. The
// filter-derived regex is only reported for display; it never decides which
// cells are rewritten.
func (r *run) replace() (*storage.Table, *Payload, error) {
	pl := r.basePayload(ModeReplace)
	pl.Regex, pl.RegexSource = r.p.Pattern, SourceRegex
	pl.DisplayRegex, pl.DisplayRegexSource = r.p.Pattern, SourceRegex
	pl.DisplayColumns = r.cols
	whole := plan.IsMatchAll(r.p.Pattern)
	if derived, derivedCols := displayFromFilter(r.fr.Normalized); derived != "" && whole {
		pl.DisplayRegex, pl.DisplayRegexSource = derived, SourceRowFilter
		if ex := r.existing(derivedCols); r.p.Columns == nil && len(ex) > 0 {
			pl.DisplayColumns = ex
		}
	}

	rx, err := plan.CompilePattern(r.p.Pattern, r.p.FlagSet())
	if err != nil {
		return nil, nil, fmt.Errorf("executor: compile pattern: %w", err)
	}
	tmpl := ""
	if r.p.Replacement.Kind == plan.ReplacementLiteral {
		tmpl = expandTemplate(r.p.Replacement.Text)
	}

	stats := &ReplaceStats{PerColumn: make(map[string]int, len(r.cols))}
	changed := map[int]bool{}
	out := r.t
	for _, name := range r.cols {
		col, _ := r.t.Column(name)
		values := append([]any(nil), col.Values...)
		n := 0
		for i, v := range col.Values {
			if !r.mask[i] {
				continue
			}
			s, ok := storage.AsString(v)
			if !ok && !whole {
				continue
			}
			c := len(rx.FindAllStringIndex(s, -1))
			if c == 0 {
				continue
			}
			n += c
			values[i] = rx.ReplaceAllString(s, tmpl)
			changed[i] = true
		}
		stats.PerColumn[name] = n
		stats.Replacements += n
		r.log.Debug("replace column", "column", name, "replacements", n)
		if n == 0 {
			continue
		}
		if out, err = rewriteColumn(out, name, values); err != nil {
			return nil, nil, err
		}
	}
	r.finishReplace(pl, stats, changed)
	return out, pl, nil
}

// normalizeDates rewrites dates to the directive's format. A match-all
// pattern treats each cell as one value; any other pattern selects cells
// whose date-shaped substrings are rewritten in place.
func (r *run) normalizeDates() (*storage.Table, *Payload, error) {
	pl := r.basePayload(ModeReplace)
	pl.Regex, pl.RegexSource = r.p.Pattern, SourceRegex
	d := r.p.Replacement.Date
	whole := plan.IsMatchAll(r.p.Pattern)

	rx, err := plan.CompilePattern(r.p.Pattern, r.p.FlagSet())
	if err != nil {
		return nil, nil, fmt.Errorf("executor: compile pattern: %w", err)
	}
	dayFirst := d.Resolve(r.dateSamples())
	r.log.Debug("date normalize", "format", d.Format, "dayfirst_mode", d.DayFirst.String(), "dayfirst", dayFirst, "whole_cell", whole)

	stats := &ReplaceStats{PerColumn: make(map[string]int, len(r.cols))}
	changed := map[int]bool{}
	out := r.t
	for _, name := range r.cols {
		col, _ := r.t.Column(name)
		values := append([]any(nil), col.Values...)
		n := 0
		for i, v := range col.Values {
			if !r.mask[i] || storage.IsNull(v) {
				continue
			}
			if whole {
				if s, ok := dates.NormalizeCellAsWhole(v, d.Format, dayFirst); ok {
					values[i] = s
					n++
					changed[i] = true
				}
				continue
			}
			s, _ := storage.AsString(v)
			if !rx.MatchString(s) {
				continue
			}
			if ns, c := dates.NormalizeDateText(s, d.Format, dayFirst); c > 0 {
				values[i] = ns
				n += c
				changed[i] = true
			}
		}
		stats.PerColumn[name] = n
		stats.Replacements += n
		if n == 0 {
			continue
		}
		if out, err = rewriteColumn(out, name, values); err != nil {
			return nil, nil, err
		}
	}
	r.finishReplace(pl, stats, changed)
	return out, pl, nil
}

// dateSamples collects up to DateSampleSize non-null masked values per
// selected column.
func (r *run) dateSamples() []string {
	var out []string
	for _, name := range r.cols {
		col, _ := r.t.Column(name)
		taken := 0
		for i, v := range col.Values {
			if taken >= r.opts.DateSampleSize {
				break
			}
			if !r.mask[i] {
				continue
			}
			if s, ok := storage.AsString(v); ok {
				out = append(out, s)
				taken++
			}
		}
	}
	return out
}

func (r *run) finishReplace(pl *Payload, stats *ReplaceStats, changed map[int]bool) {
	rows := sortedPositions(changed)
	stats.ChangedRowIndices = r.labels(rows, r.opts.IndexCap)
	stats.HeadHitRowIndices = r.headLabels(rows)
	pl.ReplaceStats = stats
	pl.ResultRowsDescription = DescribeFilterAndHits
	pl.ResultRowsCount = len(rows)
	pl.ResultRowsIndices = stats.ChangedRowIndices
}
