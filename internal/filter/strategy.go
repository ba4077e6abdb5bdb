package filter

import (
	"log/slog"
	"regexp"

	"github.com/SimonWaldherr/tinyedit/internal/engine"
	"github.com/SimonWaldherr/tinyedit/internal/storage"
)

// Strategy is one tier of group evaluation. Attempt returns ok=false when the
// strategy cannot produce a mask for expr.
type Strategy interface {
	Name() string
	Attempt(expr string, t *storage.Table) (storage.Mask, bool)
}

// QueryStrategy evaluates the expression strictly with the engine.
type QueryStrategy struct{ Logger *slog.Logger }

func (QueryStrategy) Name() string { return "query" }

func (s QueryStrategy) Attempt(expr string, t *storage.Table) (storage.Mask, bool) {
	m, err := engine.Query(expr, t)
	if err != nil {
		logOr(s.Logger).Debug("strict evaluation failed", "expr", expr, "err", err)
		return nil, false
	}
	return m, true
}

var (
	andWordRx = regexp.MustCompile(`(?i)\band\b`)
	orWordRx  = regexp.MustCompile(`(?i)\bor\b`)
)

// RewriteOperators replaces the standalone words and/or with & and |
// outside string literals and backtick identifiers.
func RewriteOperators(expr string) string {
	segs := scan(expr)
	for i, sg := range segs {
		if sg.kind != segCode {
			continue
		}
		t := andWordRx.ReplaceAllString(sg.text, "&")
		segs[i].text = orWordRx.ReplaceAllString(t, "|")
	}
	return join(segs)
}

// RewriteStrategy retries strict evaluation after RewriteOperators. It
// declines when the rewrite changes nothing.
type RewriteStrategy struct{ Logger *slog.Logger }

func (RewriteStrategy) Name() string { return "query_rewrite" }

func (s RewriteStrategy) Attempt(expr string, t *storage.Table) (storage.Mask, bool) {
	rew := RewriteOperators(expr)
	if rew == expr {
		return nil, false
	}
	m, err := engine.Query(rew, t)
	if err != nil {
		logOr(s.Logger).Debug("rewritten evaluation failed", "expr", rew, "err", err)
		return nil, false
	}
	logOr(s.Logger).Debug("row filter rewrite", "expr", rew)
	return m, true
}

// ClauseStrategy is the AND-only clause matcher.
type ClauseStrategy struct{ Logger *slog.Logger }

func (ClauseStrategy) Name() string { return "fallback_and" }

func (s ClauseStrategy) Attempt(expr string, t *storage.Table) (storage.Mask, bool) {
	return MatchClauses(expr, t, s.Logger)
}

// DefaultStrategies returns the standard chain: strict, rewritten, clauses.
func DefaultStrategies(logger *slog.Logger) []Strategy {
	return []Strategy{
		QueryStrategy{Logger: logger},
		RewriteStrategy{Logger: logger},
		ClauseStrategy{Logger: logger},
	}
}
