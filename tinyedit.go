// Package tinyedit runs declarative find/replace plans over tabular data.
//
// A plan names an intent (find or replace), a regular expression, flags,
// target columns, a replacement and an optional row filter. The engine
// resolves which rows the filter means, picks the columns to scan, then
// counts and highlights matches or rewrites them. It never modifies the
// input table and explains every run in a JSON-safe payload.
//
// # Basic Usage
//
//	tbl, _, _ := tinyedit.LoadDataset("people.csv", nil)
//
//	p := tinyedit.Plan{
//	    Intent:      tinyedit.IntentReplace,
//	    Pattern:     `@example\.com$`,
//	    Columns:     []string{"email"},
//	    Replacement: tinyedit.Literal("@example.org"),
//	    RowFilter:   "`Country` == 'US' or __rownum__ == 1",
//	}
//	out, payload, err := tinyedit.Run(tbl, p, tinyedit.Options{})
//
// # Date Normalization
//
// A replacement of the form __DATE_NORMALIZE__(YYYY-MM-DD; dayfirst=auto)
// rewrites date-like text, or whole date cells when the pattern matches
// everything, to one canonical format:
//
//	p.Replacement = tinyedit.DateNormalize("YYYY-MM-DD", tinyedit.DayFirstAuto)
//
// # Row Filters
//
// Filters use backtick-quoted column names, comparison operators, string
// predicates (.str.contains, .str.startswith, .str.endswith), and/or and
// __rownum__ clauses (1-based). Filters that the strict evaluator rejects
// fall back to operator rewrites and clause matching; the payload lists
// which path produced the mask.
package tinyedit

import (
	"github.com/SimonWaldherr/tinyedit/internal/dates"
	"github.com/SimonWaldherr/tinyedit/internal/executor"
	"github.com/SimonWaldherr/tinyedit/internal/filter"
	"github.com/SimonWaldherr/tinyedit/internal/importer"
	"github.com/SimonWaldherr/tinyedit/internal/plan"
	"github.com/SimonWaldherr/tinyedit/internal/storage"
)

// ============================================================================
// Core Types - Re-exported from internal packages for public API
// ============================================================================

// Table is a columnar dataset with stable row labels.
type Table = storage.Table

// Column is one named, typed column of a Table.
type Column = storage.Column

// ColType is the schema-level type of a column.
type ColType = storage.ColType

// Plan describes one find or replace operation.
type Plan = plan.Plan

// Intent is find or replace.
type Intent = plan.Intent

// Replacement is literal text or a date-normalize directive.
type Replacement = plan.Replacement

// ValidationError lists every problem found in a plan.
type ValidationError = plan.ValidationError

// Options tunes an execution.
type Options = executor.Options

// Payload explains an execution.
type Payload = executor.Payload

// Interpreter turns row-filter expressions into row masks.
type Interpreter = filter.Interpreter

// DayFirstMode selects day/month order for ambiguous dates.
type DayFirstMode = dates.DayFirstMode

// LoadOptions configures dataset loading.
type LoadOptions = importer.Options

// LoadResult describes what the loader detected.
type LoadResult = importer.Result

const (
	IntentFind    = plan.IntentFind
	IntentReplace = plan.IntentReplace

	DayFirstAuto = dates.DayFirstAuto
	DayFirstOn   = dates.DayFirstOn
	DayFirstOff  = dates.DayFirstOff
)

// Column types.
const (
	IntType       = storage.IntType
	Float64Type   = storage.Float64Type
	BoolType      = storage.BoolType
	TextType      = storage.TextType
	InterfaceType = storage.InterfaceType
)

// ============================================================================
// Constructors
// ============================================================================

// NewTable builds a table from equally long columns.
func NewTable(name string, cols []Column) (*Table, error) {
	return storage.NewTable(name, cols, nil)
}

// Literal returns a literal replacement.
func Literal(text string) Replacement { return plan.Literal(text) }

// DateNormalize returns a date-normalize replacement.
func DateNormalize(format string, mode DayFirstMode) Replacement {
	return plan.DateNormalize(format, mode)
}

// ============================================================================
// Plan Handling
// ============================================================================

// Validate reports every violation of p against headers, or nil.
func Validate(p Plan, headers []string) error { return plan.Validate(p, headers) }

// Prepare normalizes p, aligns its columns to headers and validates it.
func Prepare(p Plan, headers []string) (Plan, error) { return plan.Prepare(p, headers) }

// LoadPlan reads a plan from a .json, .yaml or .yml file.
func LoadPlan(path string) (Plan, error) { return plan.LoadFile(path) }

// ============================================================================
// Execution
// ============================================================================

// Execute runs an already prepared plan.
func Execute(t *Table, p Plan, opts Options) (*Table, *Payload, error) {
	return executor.Execute(t, p, opts)
}

// Run prepares p against the table headers and executes it.
func Run(t *Table, p Plan, opts Options) (*Table, *Payload, error) {
	if t == nil {
		return nil, nil, executor.ErrNilTable
	}
	prepared, err := plan.Prepare(p, t.Headers())
	if err != nil {
		return nil, nil, err
	}
	return executor.Execute(t, prepared, opts)
}

// LoadDataset loads a CSV, TSV, XLSX or JSON file.
func LoadDataset(path string, opts *LoadOptions) (*Table, *LoadResult, error) {
	return importer.LoadFile(path, opts)
}
