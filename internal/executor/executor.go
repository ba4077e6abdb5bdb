// Package executor runs a validated plan over a table.
//
// What: Row selection through the filter interpreter, column auto-selection,
// and the three execution modes: find (count and highlight), literal
// replace (regex substitution) and date normalization.
// How: Each run evaluates the row filter once, then walks the selected
// columns cell by cell inside the mask. Replacements are built in a fresh
// value slice per column and swapped in with Table.WithColumn, so the input
// table is never modified. Every run returns a Payload that explains the
// result: which regex was used and where it came from, how the filter was
// understood, counts and row identities.
// Why: Callers show results to people. The payload has to answer "why did
// these rows change" without re-running anything.
package executor

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"

	"github.com/google/uuid"

	"github.com/SimonWaldherr/tinyedit/internal/filter"
	"github.com/SimonWaldherr/tinyedit/internal/plan"
	"github.com/SimonWaldherr/tinyedit/internal/storage"
)

// Defaults applied to zero Options fields.
const (
	DefaultPreviewRows    = 1000
	DefaultExampleLimit   = 50
	DefaultIndexCap       = 2000
	DefaultDateSampleSize = 200
)

// ErrNilTable is returned when Execute is called without a table.
var ErrNilTable = errors.New("executor: nil table")

// Options tune an execution. Zero values select the defaults.
type Options struct {
	MaxPreviewRows int
	ExampleLimit   int
	IndexCap       int
	DateSampleSize int
	Logger         *slog.Logger
	// Interpreter overrides the row-filter interpreter.
	Interpreter *filter.Interpreter
}

func (o Options) withDefaults() Options {
	if o.MaxPreviewRows <= 0 {
		o.MaxPreviewRows = DefaultPreviewRows
	}
	if o.ExampleLimit <= 0 {
		o.ExampleLimit = DefaultExampleLimit
	}
	if o.IndexCap <= 0 {
		o.IndexCap = DefaultIndexCap
	}
	if o.DateSampleSize <= 0 {
		o.DateSampleSize = DefaultDateSampleSize
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if o.Interpreter == nil {
		o.Interpreter = filter.New(o.Logger)
	}
	return o
}

// run carries the state shared by the execution modes.
type run struct {
	t    *storage.Table
	p    plan.Plan
	opts Options
	log  *slog.Logger
	mask storage.Mask
	fr   filter.Result
	cols []string
}

// Execute applies p to t and returns the resulting table with a payload. For
// find the returned table is t itself. The plan is expected to have passed
// plan.Prepare; errors only report a nil table, unknown columns or a
// pattern that does not compile.
func Execute(t *storage.Table, p plan.Plan, opts Options) (*storage.Table, *Payload, error) {
	if t == nil {
		return nil, nil, ErrNilTable
	}
	opts = opts.withDefaults()
	if p.Pattern == "" {
		p.Pattern = plan.MatchAll
	}
	r := &run{t: t, p: p, opts: opts, log: opts.Logger}
	r.fr = opts.Interpreter.Evaluate(p.RowFilter, t)
	r.mask = r.fr.Mask
	cols, err := selectColumns(t, p)
	if err != nil {
		return nil, nil, err
	}
	r.cols = cols

	var (
		out *storage.Table
		pl  *Payload
	)
	switch p.Intent {
	case plan.IntentFind:
		out, pl, err = r.find()
	case plan.IntentReplace:
		if p.Replacement.Kind == plan.ReplacementDate {
			out, pl, err = r.normalizeDates()
		} else {
			out, pl, err = r.replace()
		}
	default:
		return nil, nil, fmt.Errorf("executor: unsupported intent %q", p.Intent)
	}
	if err != nil {
		return nil, nil, err
	}
	pl.Head = out.Head(opts.MaxPreviewRows)
	pl.RunID = uuid.NewString()
	r.log.Info("plan executed", "run_id", pl.RunID, "mode", pl.Mode, "regex_source", pl.RegexSource,
		"columns", len(pl.ColumnsApplied), "result_rows", pl.ResultRowsCount)
	return out, pl, nil
}

// selectColumns picks the target columns: explicit ones first, all columns
// for a whole-cell replace, textual columns otherwise.
func selectColumns(t *storage.Table, p plan.Plan) ([]string, error) {
	if len(p.Columns) > 0 {
		for _, c := range p.Columns {
			if _, ok := t.Column(c); !ok {
				return nil, fmt.Errorf("executor: unknown column %q", c)
			}
		}
		return append([]string{}, p.Columns...), nil
	}
	if p.Intent == plan.IntentReplace && plan.IsMatchAll(p.Pattern) {
		return t.Headers(), nil
	}
	return t.TextColumns(), nil
}

// basePayload fills the fields every mode shares.
func (r *run) basePayload(mode string) *Payload {
	return &Payload{
		Mode:                mode,
		Flags:               r.p.Flags,
		ColumnsApplied:      r.cols,
		RowFilter:           r.p.RowFilter,
		RowFilterNormalized: r.fr.Normalized,
		RowFilterPaths:      r.fr.Paths(),
		RowFilterGroups:     r.fr.Groups,
		RowFilterRecognized: r.fr.Recognized(),
		RowFilterSoftRecall: r.fr.SoftRecall,
		MaskRowIndices:      r.t.LabelsOf(r.mask, r.opts.IndexCap),
	}
}

// labels converts row positions into sorted row labels, capped at limit
// (0 = no cap).
func (r *run) labels(positions []int, limit int) []int {
	out := make([]int, 0, len(positions))
	for _, p := range positions {
		out = append(out, r.t.Labels[p])
	}
	sort.Ints(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// headLabels returns the labels of positions that fall into the preview.
func (r *run) headLabels(positions []int) []int {
	var in []int
	for _, p := range positions {
		if p < r.opts.MaxPreviewRows {
			in = append(in, p)
		}
	}
	return r.labels(in, 0)
}

// sortedPositions returns the set members in ascending order.
func sortedPositions(set map[int]bool) []int {
	out := make([]int, 0, len(set))
	for p := range set {
		out = append(out, p)
	}
	sort.Ints(out)
	return out
}

// rewriteColumn returns t with column name replaced by values, rendered as
// text. Null cells stay null.
func rewriteColumn(t *storage.Table, name string, values []any) (*storage.Table, error) {
	out := make([]any, len(values))
	for i, v := range values {
		if storage.IsNull(v) {
			continue
		}
		out[i] = storage.FormatValue(v)
	}
	return t.WithColumn(name, storage.TextType, out)
}
