package filter

import (
	"io"
	"log/slog"
	"regexp"
	"strings"

	"github.com/SimonWaldherr/tinyedit/internal/storage"
)

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func logOr(l *slog.Logger) *slog.Logger {
	if l == nil {
		return discardLogger
	}
	return l
}

// Path tags recorded in GroupTrace.Path.
const (
	PathAllTrue       = "all_true"
	PathRowNumberOnly = "rownum_only"
	SuffixZeroHit     = "_zero_and_fallback"
	SuffixRowNumber   = "+rownum"
)

// GroupTrace explains how one OR-group was evaluated.
type GroupTrace struct {
	Expr       string `json:"expr"`
	Path       string `json:"path"`
	RowNumbers []int  `json:"row_numbers,omitempty"`
	Recognized bool   `json:"recognized"`
	Rows       int    `json:"rows"`
}

// Result is the outcome of Evaluate.
type Result struct {
	Mask       storage.Mask
	Normalized string
	Groups     []GroupTrace
	SoftRecall bool
}

// Recognized reports whether every group was understood by some strategy.
func (r Result) Recognized() bool {
	for _, g := range r.Groups {
		if !g.Recognized {
			return false
		}
	}
	return true
}

// Paths lists the group paths in order.
func (r Result) Paths() []string {
	out := make([]string, 0, len(r.Groups))
	for _, g := range r.Groups {
		out = append(out, g.Path)
	}
	return out
}

// Interpreter evaluates row filters. The zero value uses the default
// strategies and discards logs.
type Interpreter struct {
	Logger     *slog.Logger
	Strategies []Strategy
}

// New returns an interpreter with the default strategy chain.
func New(logger *slog.Logger) *Interpreter {
	return &Interpreter{Logger: logger, Strategies: DefaultStrategies(logger)}
}

func (in *Interpreter) logger() *slog.Logger { return logOr(in.Logger) }

func (in *Interpreter) strategies() []Strategy {
	if len(in.Strategies) > 0 {
		return in.Strategies
	}
	return DefaultStrategies(in.Logger)
}

// Evaluate turns expr into a mask over t. It never fails: an empty filter
// selects every row, and groups nothing understands select every row and
// are flagged unrecognized.
func (in *Interpreter) Evaluate(expr string, t *storage.Table) Result {
	n := t.Len()
	if strings.TrimSpace(expr) == "" {
		return Result{Mask: storage.NewMask(n, true)}
	}
	norm := Normalize(expr, t.Headers())
	log := in.logger()
	log.Debug("row filter normalized", "filter", norm)

	res := Result{Normalized: norm, Mask: storage.NewMask(n, false)}
	parts := SplitTopLevel(norm, "or")
	if len(parts) == 0 {
		parts = []string{norm}
	}
	for _, part := range parts {
		m, g := in.evalGroup(part, t)
		res.Mask = res.Mask.Or(m)
		res.Groups = append(res.Groups, g)
		log.Debug("row filter group", "expr", part, "path", g.Path, "rows", g.Rows)
	}

	if res.Mask.Count() == 0 {
		if m, ok := softRecall(expr, t); ok {
			log.Debug("row filter soft recall", "rows", m.Count())
			res.Mask, res.SoftRecall = m, true
		}
	}
	log.Info("row filter result", "rows", res.Mask.Count(), "total", n, "paths", strings.Join(res.Paths(), ","))
	return res
}

// evalGroup evaluates one OR-group including its row-number clauses.
func (in *Interpreter) evalGroup(group string, t *storage.Table) (storage.Mask, GroupTrace) {
	stripped, ns := RemoveRowNumbers(group)
	stripped = strings.TrimSpace(stripped)
	if stripped == "" {
		stripped = RowNumberPlaceholder
	}
	g := GroupTrace{Expr: group, RowNumbers: ns}
	n := t.Len()

	if len(ns) > 0 && isTrueOnly(stripped) {
		picks := make([]int, 0, len(ns))
		for _, k := range ns {
			picks = append(picks, k-1)
		}
		m := storage.Pick(n, picks)
		g.Path, g.Recognized, g.Rows = PathRowNumberOnly, true, m.Count()
		return m, g
	}

	base, path, ok := in.evalBasic(stripped, t)
	g.Path, g.Recognized = path, ok
	if len(ns) == 0 {
		g.Rows = base.Count()
		return base, g
	}
	within := base.Positions()
	picks := make([]int, 0, len(ns))
	for _, k := range ns {
		if k >= 1 && k <= len(within) {
			picks = append(picks, within[k-1])
		}
	}
	m := storage.Pick(n, picks)
	g.Path += SuffixRowNumber
	g.Rows = m.Count()
	return m, g
}

// evalBasic runs the strategy chain. A zero-row result from a strategy is
// replaced by the clause matcher's result when the expression has a string
// equality and the matcher selects something.
func (in *Interpreter) evalBasic(expr string, t *storage.Table) (storage.Mask, string, bool) {
	for _, s := range in.strategies() {
		m, ok := s.Attempt(expr, t)
		if !ok {
			continue
		}
		if m.Count() == 0 && HasStringEquality(expr) {
			if ci, ok := MatchClauses(expr, t, in.Logger); ok && ci.Count() > 0 {
				return ci, s.Name() + SuffixZeroHit, true
			}
		}
		return m, s.Name(), true
	}
	in.logger().Warn("row filter not understood, selecting all rows", "expr", expr)
	return storage.NewMask(t.Len(), true), PathAllTrue, false
}

var singleEqRx = regexp.MustCompile("^\\s*`?([A-Za-z0-9_ ]+)`?\\s*==\\s*['\"](.+?)['\"]\\s*$")

// softRecall retries a filter that is a single col == 'literal' with
// case-folded comparison.
func softRecall(expr string, t *storage.Table) (storage.Mask, bool) {
	m := singleEqRx.FindStringSubmatch(expr)
	if m == nil {
		return nil, false
	}
	col, ok := t.Column(strings.TrimSpace(m[1]))
	if !ok {
		return nil, false
	}
	want := fold(m[2])
	out := make(storage.Mask, t.Len())
	for i, v := range col.Values {
		if s, ok := storage.AsString(v); ok {
			out[i] = fold(s) == want
		}
	}
	if out.Count() == 0 {
		return nil, false
	}
	return out, true
}
