package executor

import (
	"encoding/json"
	"math"
	"reflect"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"

	"github.com/SimonWaldherr/tinyedit/internal/dates"
	"github.com/SimonWaldherr/tinyedit/internal/plan"
	"github.com/SimonWaldherr/tinyedit/internal/storage"
)

func staffTable() *storage.Table {
	return storage.MustTable("staff", []storage.Column{
		{Name: "Name", Type: storage.TextType, Values: []any{"Alice Smith", "Bob <Jones>", "Carol White", "Dave Brown", nil}},
		{Name: "Gender", Type: storage.TextType, Values: []any{"Female", "Male", "Female", "Male", "Female"}},
		{Name: "Country", Type: storage.TextType, Values: []any{"United States", "Great Britain", "US", "United States", "DE"}},
		{Name: "Age", Type: storage.IntType, Values: []any{int64(31), int64(45), int64(28), int64(52), int64(39)}},
		{Name: "Joined", Type: storage.TextType, Values: []any{"joined 2024-5-1", "03/04/2021", "31/12/2020", "15/01/2021", "n/a"}},
		{Name: "Score", Type: storage.Float64Type, Values: []any{1.5, math.NaN(), 2.0, math.Inf(1), 0.0}},
	})
}

func mustPrepare(t *testing.T, p plan.Plan, tbl *storage.Table) plan.Plan {
	t.Helper()
	out, err := plan.Prepare(p, tbl.Headers())
	if err != nil {
		t.Fatalf("Prepare failed: %v", err)
	}
	return out
}

func TestFindCountsAndHighlights(t *testing.T) {
	tbl := staffTable()
	p := mustPrepare(t, plan.Plan{Intent: "find", Pattern: "o"}, tbl)
	out, pl, err := Execute(tbl, p, Options{})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if out != tbl {
		t.Fatalf("find must return the input table")
	}
	if !reflect.DeepEqual(pl.ColumnsApplied, []string{"Name", "Gender", "Country", "Joined"}) {
		t.Fatalf("auto columns = %v", pl.ColumnsApplied)
	}
	// "Bob <Jones>" has 2, "Carol White" 1, "Dave Brown" 1, "Great Britain" 0.
	if pl.Stats.PerColumn["Name"] != 4 {
		t.Fatalf("Name matches = %d", pl.Stats.PerColumn["Name"])
	}
	if pl.ResultRowsDescription != DescribeFilterAndHits {
		t.Fatalf("description = %q", pl.ResultRowsDescription)
	}
	var bob *Example
	for i := range pl.Examples {
		if pl.Examples[i].Index == 1 {
			bob = &pl.Examples[i]
		}
	}
	if bob == nil {
		t.Fatalf("row 1 missing from examples: %+v", pl.Examples)
	}
	cell := bob.Cells["Name"]
	if cell.Count != 2 || !strings.Contains(cell.HTML, "&lt;J<mark>o</mark>nes&gt;") {
		t.Fatalf("highlight = %+v", cell)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(cell.HTML))
	if err != nil {
		t.Fatalf("parse highlight html: %v", err)
	}
	if n := doc.Find("mark").Length(); n != 2 {
		t.Fatalf("mark elements = %d", n)
	}
	if got := doc.Text(); got != "Bob <Jones>" {
		t.Fatalf("unescaped text = %q", got)
	}
	if pl.RunID == "" {
		t.Fatalf("run id missing")
	}
}

func TestFindFilterOnly(t *testing.T) {
	tbl := staffTable()
	p := mustPrepare(t, plan.Plan{Intent: "find", Pattern: "^.*$", Columns: []string{}, RowFilter: "`Gender` == 'Female'"}, tbl)
	_, pl, err := Execute(tbl, p, Options{})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if pl.ResultRowsDescription != DescribeFilterOnly {
		t.Fatalf("description = %q", pl.ResultRowsDescription)
	}
	if pl.RegexSource != SourceRowFilter || pl.Regex != "(?:Female)" {
		t.Fatalf("regex = %q from %q", pl.Regex, pl.RegexSource)
	}
	if !reflect.DeepEqual(pl.ResultRowsIndices, []int{0, 2, 4}) || pl.ResultRowsCount != 3 {
		t.Fatalf("result rows = %v", pl.ResultRowsIndices)
	}
}

func TestFindDerivedColumns(t *testing.T) {
	tbl := staffTable()
	p := mustPrepare(t, plan.Plan{Intent: "find", RowFilter: "Country.str.contains('United States') and Age > 40"}, tbl)
	_, pl, err := Execute(tbl, p, Options{})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if !reflect.DeepEqual(pl.ColumnsApplied, []string{"Country", "Age"}) {
		t.Fatalf("columns = %v", pl.ColumnsApplied)
	}
	if pl.Regex != `(?:United[-_.:/\s]*States)` {
		t.Fatalf("regex = %q", pl.Regex)
	}
	if !reflect.DeepEqual(pl.ResultRowsIndices, []int{3}) {
		t.Fatalf("rows = %v via %v", pl.ResultRowsIndices, pl.RowFilterPaths)
	}
}

func TestReplaceWholeCellOverwrites(t *testing.T) {
	tbl := staffTable()
	p := mustPrepare(t, plan.Plan{Intent: "replace", Pattern: "^.*$", Columns: []string{"Name", "Age"},
		Replacement: plan.Literal("REDACTED"), RowFilter: "`Gender` == 'Female'"}, tbl)
	out, pl, err := Execute(tbl, p, Options{})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	name, _ := out.Column("Name")
	age, _ := out.Column("Age")
	want := []any{"REDACTED", "Bob <Jones>", "REDACTED", "Dave Brown", "REDACTED"}
	if !reflect.DeepEqual(name.Values, want) {
		t.Fatalf("Name = %v", name.Values)
	}
	if age.Values[0] != "REDACTED" || age.Values[1] != "45" || age.Type != storage.TextType {
		t.Fatalf("Age = %v (%s)", age.Values, age.Type)
	}
	if pl.Replacements != 6 || pl.PerColumn["Age"] != 3 {
		t.Fatalf("replacements = %d per column %v", pl.Replacements, pl.PerColumn)
	}
	if pl.Regex != "^.*$" || pl.DisplayRegexSource != SourceRowFilter {
		t.Fatalf("regex = %q display from %q", pl.Regex, pl.DisplayRegexSource)
	}
	orig, _ := tbl.Column("Name")
	if orig.Values[0] != "Alice Smith" {
		t.Fatalf("input table was modified")
	}
}

func TestReplaceGroupsAndDollar(t *testing.T) {
	tbl := staffTable()
	p := mustPrepare(t, plan.Plan{Intent: "replace", Pattern: `(\w+) (\w+)`, Flags: "i", Columns: []string{"Name"},
		Replacement: plan.Literal(`\2, \g<1> $`)}, tbl)
	out, pl, err := Execute(tbl, p, Options{})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	name, _ := out.Column("Name")
	if name.Values[0] != "Smith, Alice $" {
		t.Fatalf("Name[0] = %q", name.Values[0])
	}
	if name.Values[4] != nil {
		t.Fatalf("null cell must stay null, got %v", name.Values[4])
	}
	if !reflect.DeepEqual(pl.ChangedRowIndices, []int{0, 2, 3}) {
		t.Fatalf("changed = %v", pl.ChangedRowIndices)
	}
}

func TestReplaceAutoColumnsAll(t *testing.T) {
	tbl := staffTable()
	p := mustPrepare(t, plan.Plan{Intent: "replace", Pattern: "", Replacement: plan.Literal("x"), RowFilter: "__rownum__ == 1"}, tbl)
	out, pl, err := Execute(tbl, p, Options{})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if len(pl.ColumnsApplied) != len(tbl.Cols) {
		t.Fatalf("whole-cell replace should select all columns, got %v", pl.ColumnsApplied)
	}
	for _, c := range out.Cols {
		if c.Values[0] != "x" {
			t.Fatalf("%s[0] = %v", c.Name, c.Values[0])
		}
	}
	if !reflect.DeepEqual(pl.MaskRowIndices, []int{0}) {
		t.Fatalf("mask = %v", pl.MaskRowIndices)
	}
}

func TestDateNormalizeSubstring(t *testing.T) {
	tbl := staffTable()
	p := mustPrepare(t, plan.Plan{Intent: "replace", Pattern: `\d`, Columns: []string{"Joined"},
		Replacement: plan.DateNormalize("YYYY-MM-DD", dates.DayFirstAuto)}, tbl)
	out, pl, err := Execute(tbl, p, Options{})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	joined, _ := out.Column("Joined")
	want := []any{"joined 2024-05-01", "2021-04-03", "2020-12-31", "2021-01-15", "n/a"}
	if !reflect.DeepEqual(joined.Values, want) {
		t.Fatalf("Joined = %v", joined.Values)
	}
	if pl.Replacements != 4 {
		t.Fatalf("replacements = %d", pl.Replacements)
	}
}

func TestDateNormalizeWholeCell(t *testing.T) {
	tbl := storage.MustTable("d", []storage.Column{
		{Name: "When", Type: storage.InterfaceType, Values: []any{int64(45292), "2024/02/03", "soon", nil}},
	})
	p := mustPrepare(t, plan.Plan{Intent: "replace", Pattern: "^.*$",
		Replacement: plan.Literal("__DATE_NORMALIZE__(DD.MM.YYYY; dayfirst=false)")}, tbl)
	out, pl, err := Execute(tbl, p, Options{})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	when, _ := out.Column("When")
	want := []any{"01.01.2024", "03.02.2024", "soon", nil}
	if !reflect.DeepEqual(when.Values, want) {
		t.Fatalf("When = %v", when.Values)
	}
	if pl.Replacements != 2 || pl.DisplayRegex != "" {
		t.Fatalf("payload = %+v", pl)
	}
}

func TestDateNormalizeCompactIntsAndCounts(t *testing.T) {
	tbl := storage.MustTable("d", []storage.Column{
		{Name: "Day", Type: storage.IntType, Values: []any{int64(20240501), int64(20231231), nil}},
		{Name: "Note", Type: storage.TextType, Values: []any{"2024-05-01", "due 2024-5-2 ＡＢＣ", "none"}},
	})
	repl := plan.DateNormalize("YYYY-MM-DD", dates.DayFirstOff)

	p := mustPrepare(t, plan.Plan{Intent: "replace", Pattern: "^.*$", Columns: []string{"Day"}, Replacement: repl}, tbl)
	out, pl, err := Execute(tbl, p, Options{})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	day, _ := out.Column("Day")
	if want := []any{"2024-05-01", "2023-12-31", nil}; !reflect.DeepEqual(day.Values, want) {
		t.Fatalf("Day = %v", day.Values)
	}
	if pl.Replacements != 2 {
		t.Fatalf("whole-cell replacements = %d", pl.Replacements)
	}

	// An already canonical date still counts, the same as in whole-cell mode.
	sub := mustPrepare(t, plan.Plan{Intent: "replace", Pattern: `\d`, Columns: []string{"Note"}, Replacement: repl}, tbl)
	sout, spl, err := Execute(tbl, sub, Options{})
	if err != nil {
		t.Fatalf("Execute substring failed: %v", err)
	}
	if spl.PerColumn["Note"] != 2 || !reflect.DeepEqual(spl.ChangedRowIndices, []int{0, 1}) {
		t.Fatalf("per_column %v changed %v", spl.PerColumn, spl.ChangedRowIndices)
	}
	note, _ := sout.Column("Note")
	if want := []any{"2024-05-01", "due 2024-05-02 ＡＢＣ", "none"}; !reflect.DeepEqual(note.Values, want) {
		t.Fatalf("Note = %v", note.Values)
	}
}

func TestPayloadJSONSafe(t *testing.T) {
	tbl := staffTable()
	p := mustPrepare(t, plan.Plan{Intent: "find", Pattern: "a"}, tbl)
	_, pl, err := Execute(tbl, p, Options{MaxPreviewRows: 2, ExampleLimit: 1})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if len(pl.Head) != 2 || len(pl.Examples) != 1 {
		t.Fatalf("head %d examples %d", len(pl.Head), len(pl.Examples))
	}
	b, err := json.Marshal(pl)
	if err != nil {
		t.Fatalf("payload must marshal: %v", err)
	}
	s := string(b)
	for _, key := range []string{`"mode":"find"`, `"stats":{`, `"_index":0`, `"Score":null`, `"run_id":"`} {
		if !strings.Contains(s, key) {
			t.Fatalf("payload json missing %s: %s", key, s)
		}
	}
	if strings.Contains(s, `"replacements"`) {
		t.Fatalf("find payload must not carry replace stats")
	}
}

func TestIndexCap(t *testing.T) {
	tbl := staffTable()
	p := mustPrepare(t, plan.Plan{Intent: "find", Pattern: "e"}, tbl)
	_, pl, err := Execute(tbl, p, Options{IndexCap: 2})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if len(pl.MaskRowIndices) != 2 || len(pl.ResultRowsIndices) != 2 {
		t.Fatalf("caps not applied: %v %v", pl.MaskRowIndices, pl.ResultRowsIndices)
	}
	if pl.ResultRowsCount != 5 {
		t.Fatalf("count must not be capped, got %d", pl.ResultRowsCount)
	}
}

func TestExecuteErrors(t *testing.T) {
	if _, _, err := Execute(nil, plan.Plan{}, Options{}); err != ErrNilTable {
		t.Fatalf("got %v", err)
	}
	tbl := staffTable()
	if _, _, err := Execute(tbl, plan.Plan{Intent: "find", Pattern: "(", Flags: "i"}, Options{}); err == nil {
		t.Fatalf("expected compile error")
	}
	if _, _, err := Execute(tbl, plan.Plan{Intent: "find", Pattern: "a", Columns: []string{"nope"}}, Options{}); err == nil {
		t.Fatalf("expected unknown column error")
	}
}

func TestExpandTemplate(t *testing.T) {
	cases := map[string]string{
		`plain`:          `plain`,
		`\1-\2`:          `${1}-${2}`,
		`\g<year>/\g<1>`: `${year}/${1}`,
		`cost $5`:        `cost $$5`,
		`a\\b\tc`:        "a\\b\tc",
		`\q`:             `\q`,
	}
	for in, want := range cases {
		if got := expandTemplate(in); got != want {
			t.Fatalf("expandTemplate(%q) = %q; want %q", in, got, want)
		}
	}
}

func TestDisplayFromFilter(t *testing.T) {
	rx, cols := displayFromFilter("`Name`.str.startswith('Al') & `Tag`.astype('string').str.endswith(\"x.y\") | `City` == 'New York' & `Age` > 3")
	if rx != `(?:^Al|x\.y$|New York)` {
		t.Fatalf("regex = %q", rx)
	}
	if !reflect.DeepEqual(cols, []string{"Name", "Tag", "City", "Age"}) {
		t.Fatalf("cols = %v", cols)
	}
	if rx, cols := displayFromFilter("`Age` > 3"); rx != "" || !reflect.DeepEqual(cols, []string{"Age"}) {
		t.Fatalf("numeric only = %q %v", rx, cols)
	}
}
