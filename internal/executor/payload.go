package executor

import (
	"encoding/json"

	"github.com/SimonWaldherr/tinyedit/internal/filter"
)

// Mode values of Payload.Mode.
const (
	ModeFind    = "find"
	ModeReplace = "replace"
)

// Regex provenance values.
const (
	SourceRegex     = "regex"
	SourceRowFilter = "row_filter-derived"
)

// Result row descriptions.
const (
	DescribeFilterOnly    = "Result rows = rows where row_filter is true."
	DescribeFilterAndHits = "Result rows = rows where row_filter is true AND at least one of the selected columns matches the pattern."
)

// FindStats are the counters of a find run.
type FindStats struct {
	TotalMatches      int            `json:"total_matches"`
	PerColumn         map[string]int `json:"per_column"`
	RowsWithHits      int            `json:"rows_with_hits"`
	ChangedRowIndices []int          `json:"changed_row_indices"`
	HeadHitRowIndices []int          `json:"head_hit_row_indices"`
}

// ReplaceStats are the counters of a replace run. They are flattened into
// the payload.
type ReplaceStats struct {
	Replacements      int            `json:"replacements"`
	PerColumn         map[string]int `json:"per_column"`
	ChangedRowIndices []int          `json:"changed_row_indices"`
	HeadHitRowIndices []int          `json:"head_hit_row_indices"`
}

// Highlight is one cell of an example row.
type Highlight struct {
	Count int    `json:"count"`
	HTML  string `json:"html"`
}

// Example is a hit row with its highlighted cells. It marshals as a flat
// object: {"_index": label, "<column>": {"count": n, "html": "..."}}.
type Example struct {
	Index int
	Cells map[string]Highlight
}

func (e Example) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(e.Cells)+1)
	for k, v := range e.Cells {
		m[k] = v
	}
	m["_index"] = e.Index
	return json.Marshal(m)
}

// Payload describes one execution for callers and user interfaces.
type Payload struct {
	Mode                string              `json:"mode"`
	Regex               string              `json:"regex"`
	RegexSource         string              `json:"regex_source"`
	DisplayRegex        string              `json:"display_regex,omitempty"`
	DisplayRegexSource  string              `json:"display_regex_source,omitempty"`
	DisplayColumns      []string            `json:"display_columns,omitempty"`
	Flags               string              `json:"flags"`
	ColumnsApplied      []string            `json:"columns_applied"`
	RowFilter           string              `json:"row_filter"`
	RowFilterNormalized string              `json:"row_filter_normalized"`
	RowFilterPaths      []string            `json:"row_filter_paths"`
	RowFilterGroups     []filter.GroupTrace `json:"row_filter_groups,omitempty"`
	RowFilterRecognized bool                `json:"row_filter_recognized"`
	RowFilterSoftRecall bool                `json:"row_filter_soft_recall,omitempty"`
	MaskRowIndices      []int               `json:"mask_row_indices"`

	Stats *FindStats `json:"stats,omitempty"`
	*ReplaceStats

	Examples []Example       `json:"examples,omitempty"`
	Head     []map[string]any `json:"head"`

	ResultRowsDescription string `json:"result_rows_description"`
	ResultRowsCount       int    `json:"result_rows_count"`
	ResultRowsIndices     []int  `json:"result_rows_indices"`

	RunID string `json:"run_id"`
}
