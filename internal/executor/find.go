package executor

import (
	"fmt"
	"regexp"

	"github.com/SimonWaldherr/tinyedit/internal/plan"
	"github.com/SimonWaldherr/tinyedit/internal/storage"
)

// find counts and highlights matches inside the mask. When the plan pattern
// is trivial and the row filter names literals, the filter-derived regex
// replaces it and the result rows are exactly the filtered rows.
func (r *run) find() (*storage.Table, *Payload, error) {
	pl := r.basePayload(ModeFind)
	pattern, source := r.p.Pattern, SourceRegex
	derived, derivedCols := displayFromFilter(r.fr.Normalized)
	filterOnly := false

	rx, err := plan.CompilePattern(pattern, r.p.FlagSet())
	if err != nil {
		return nil, nil, fmt.Errorf("executor: compile pattern: %w", err)
	}
	if derived != "" && plan.IsMatchAll(pattern) {
		if drx, err := plan.CompilePattern(derived, r.p.FlagSet()); err != nil {
			r.log.Warn("derived regex not compilable", "regex", derived, "err", err)
		} else {
			rx, pattern, source, filterOnly = drx, derived, SourceRowFilter, true
			if ex := r.existing(derivedCols); r.p.Columns == nil && len(ex) > 0 {
				r.cols = ex
				pl.ColumnsApplied = ex
			}
		}
	}
	pl.Regex, pl.RegexSource = pattern, source
	if derived != "" {
		pl.DisplayRegex, pl.DisplayRegexSource = derived, SourceRowFilter
	} else {
		pl.DisplayRegex, pl.DisplayRegexSource = pattern, source
	}

	stats := &FindStats{PerColumn: make(map[string]int, len(r.cols))}
	hits := map[int]bool{}
	for _, name := range r.cols {
		col, _ := r.t.Column(name)
		n := 0
		for i, v := range col.Values {
			if !r.mask[i] {
				continue
			}
			s, ok := storage.AsString(v)
			if !ok {
				continue
			}
			if c := len(rx.FindAllStringIndex(s, -1)); c > 0 {
				n += c
				hits[i] = true
			}
		}
		stats.PerColumn[name] = n
		stats.TotalMatches += n
		r.log.Debug("find column", "column", name, "matches", n)
	}

	hitRows := sortedPositions(hits)
	pl.Examples = r.examples(hitRows, rx)

	resultRows := hitRows
	pl.ResultRowsDescription = DescribeFilterAndHits
	if filterOnly {
		resultRows = r.mask.Positions()
		pl.ResultRowsDescription = DescribeFilterOnly
	}
	stats.RowsWithHits = len(resultRows)
	stats.ChangedRowIndices = r.labels(resultRows, r.opts.IndexCap)
	stats.HeadHitRowIndices = r.headLabels(resultRows)
	pl.Stats = stats
	pl.ResultRowsCount = len(resultRows)
	pl.ResultRowsIndices = stats.ChangedRowIndices
	return r.t, pl, nil
}

// examples highlights up to ExampleLimit hit rows.
func (r *run) examples(rows []int, rx *regexp.Regexp) []Example {
	var out []Example
	for _, pos := range rows {
		if len(out) >= r.opts.ExampleLimit {
			break
		}
		ex := Example{Index: r.t.Labels[pos], Cells: map[string]Highlight{}}
		for _, name := range r.cols {
			col, _ := r.t.Column(name)
			s, ok := storage.AsString(col.Values[pos])
			if !ok {
				continue
			}
			if html, n := highlight(s, rx); n > 0 {
				ex.Cells[name] = Highlight{Count: n, HTML: html}
			}
		}
		if len(ex.Cells) > 0 {
			out = append(out, ex)
		}
	}
	return out
}

// existing keeps the names that are columns of the table.
func (r *run) existing(names []string) []string {
	var out []string
	for _, n := range names {
		if _, ok := r.t.Column(n); ok {
			out = append(out, n)
		}
	}
	return out
}
