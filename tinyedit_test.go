package tinyedit_test

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/SimonWaldherr/tinyedit"
)

func people(t testing.TB) *tinyedit.Table {
	t.Helper()
	tbl, err := tinyedit.NewTable("people", []tinyedit.Column{
		{Name: "Name", Type: tinyedit.TextType, Values: []any{"Alice", "Bob", "Rob"}},
		{Name: "Email", Type: tinyedit.TextType, Values: []any{"alice@example.com", "bob@example.com", "rob@example.net"}},
		{Name: "Country", Type: tinyedit.TextType, Values: []any{"US", "DE", "US"}},
	})
	if err != nil {
		t.Fatalf("NewTable: %v", err)
	}
	return tbl
}

func TestRunFind(t *testing.T) {
	tbl := people(t)
	_, payload, err := tinyedit.Run(tbl, tinyedit.Plan{Intent: tinyedit.IntentFind, Pattern: "ob", Columns: []string{"name"}}, tinyedit.Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if payload.Stats == nil || payload.Stats.TotalMatches != 2 {
		t.Fatalf("stats = %+v", payload.Stats)
	}
	if fmt.Sprint(payload.ResultRowsIndices) != "[1 2]" {
		t.Fatalf("result rows = %v", payload.ResultRowsIndices)
	}
	if fmt.Sprint(payload.ColumnsApplied) != "[Name]" {
		t.Fatalf("columns = %v", payload.ColumnsApplied)
	}
}

func TestRunReplaceLeavesInputUntouched(t *testing.T) {
	tbl := people(t)
	p := tinyedit.Plan{
		Intent:      tinyedit.IntentReplace,
		Pattern:     `@example\.com$`,
		Columns:     []string{"Email"},
		Replacement: tinyedit.Literal("@example.org"),
		RowFilter:   "`Country` == 'US'",
	}
	out, payload, err := tinyedit.Run(tbl, p, tinyedit.Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if payload.Replacements != 1 {
		t.Fatalf("replacements = %d", payload.Replacements)
	}
	got, _ := out.Column("Email")
	if got.Values[0] != "alice@example.org" || got.Values[1] != "bob@example.com" {
		t.Fatalf("emails = %v", got.Values)
	}
	orig, _ := tbl.Column("Email")
	if orig.Values[0] != "alice@example.com" {
		t.Fatalf("input table modified: %v", orig.Values)
	}
}

func TestRunRejectsInvalidPlan(t *testing.T) {
	_, _, err := tinyedit.Run(people(t), tinyedit.Plan{Intent: "delete", Pattern: "(", Columns: []string{"Salary"}}, tinyedit.Options{})
	var verr *tinyedit.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if len(verr.Errors) < 3 {
		t.Fatalf("expected every violation, got %v", verr.Errors)
	}
	if _, _, err := tinyedit.Run(nil, tinyedit.Plan{}, tinyedit.Options{}); err == nil {
		t.Fatalf("expected error for nil table")
	}
}

func TestLoadDatasetAndPlan(t *testing.T) {
	dir := t.TempDir()
	data := filepath.Join(dir, "people.csv")
	if err := os.WriteFile(data, []byte("Name,Joined\nAlice,31/12/2020\nBob,15/01/2021\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	planFile := filepath.Join(dir, "plan.yaml")
	planYAML := "intent: replace\npattern: '^.*$'\ncolumns: [joined]\nreplacement: '__DATE_NORMALIZE__(YYYY-MM-DD; dayfirst=auto)'\n"
	if err := os.WriteFile(planFile, []byte(planYAML), 0o644); err != nil {
		t.Fatal(err)
	}

	tbl, _, err := tinyedit.LoadDataset(data, nil)
	if err != nil {
		t.Fatalf("LoadDataset: %v", err)
	}
	p, err := tinyedit.LoadPlan(planFile)
	if err != nil {
		t.Fatalf("LoadPlan: %v", err)
	}
	out, _, err := tinyedit.Run(tbl, p, tinyedit.Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	c, _ := out.Column("Joined")
	if c.Values[0] != "2020-12-31" || c.Values[1] != "2021-01-15" {
		t.Fatalf("dates = %v", c.Values)
	}
}

func ExampleRun() {
	tbl, _ := tinyedit.NewTable("people", []tinyedit.Column{
		{Name: "Name", Type: tinyedit.TextType, Values: []any{"Alice", "Bob", "Rob"}},
		{Name: "Country", Type: tinyedit.TextType, Values: []any{"US", "DE", "US"}},
	})
	out, payload, err := tinyedit.Run(tbl, tinyedit.Plan{
		Intent:      tinyedit.IntentReplace,
		Pattern:     "ob",
		Columns:     []string{"Name"},
		Replacement: tinyedit.Literal("OB"),
		RowFilter:   "`Country` == 'US'",
	}, tinyedit.Options{})
	if err != nil {
		fmt.Println(err)
		return
	}
	names, _ := out.Column("Name")
	fmt.Println(payload.Replacements, names.Values)
	// Output: 1 [Alice Bob ROB]
}
