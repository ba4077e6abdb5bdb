package plan

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/SimonWaldherr/tinyedit/internal/dates"
)

var headers = []string{"Name", "Email", "Order ID", "Joined"}

func TestNormalize(t *testing.T) {
	p := Normalize(Plan{
		Intent:      " Replace ",
		Pattern:     "  ",
		Flags:       "iiqmZ",
		Replacement: Literal(" NaN "),
	})
	if p.Intent != IntentReplace {
		t.Fatalf("intent = %q", p.Intent)
	}
	if p.Pattern != MatchAll {
		t.Fatalf("pattern = %q", p.Pattern)
	}
	if p.Flags != "im" {
		t.Fatalf("flags = %q", p.Flags)
	}
	if p.Replacement != Literal(MissingPlaceholder) {
		t.Fatalf("replacement = %#v", p.Replacement)
	}

	if got := Normalize(Plan{Flags: "q"}).Flags; got != DefaultFlags {
		t.Fatalf("empty flags should default to %q, got %q", DefaultFlags, got)
	}
	if got := Normalize(Plan{Replacement: Literal("   ")}).Replacement; !got.IsZero() {
		t.Fatalf("blank replacement should be absent, got %#v", got)
	}
}

func TestNormalizeDateDirective(t *testing.T) {
	p := Normalize(Plan{Intent: IntentReplace, Replacement: Literal("__DATE_NORMALIZE__(DD.MM.YYYY; dayfirst=true)")})
	if p.Replacement.Kind != ReplacementDate {
		t.Fatalf("expected date variant, got %#v", p.Replacement)
	}
	want := dates.Directive{Format: "DD.MM.YYYY", DayFirst: dates.DayFirstOn}
	if p.Replacement.Date != want {
		t.Fatalf("directive = %#v; want %#v", p.Replacement.Date, want)
	}
	bare := Normalize(Plan{Replacement: Literal("__DATE_NORMALIZE__")})
	if bare.Replacement.Date.Format != dates.DefaultFormat || bare.Replacement.Date.DayFirst != dates.DayFirstAuto {
		t.Fatalf("bare directive defaults wrong: %#v", bare.Replacement.Date)
	}
}

func TestAlignColumns(t *testing.T) {
	p := AlignColumns(Plan{Columns: []string{"name", " EMAIL", "ghost"}}, headers)
	if !reflect.DeepEqual(p.Columns, []string{"Name", "Email"}) {
		t.Fatalf("columns = %v", p.Columns)
	}
	p = AlignColumns(Plan{Columns: []string{"ghost"}}, headers)
	if !reflect.DeepEqual(p.Columns, []string{"ghost"}) {
		t.Fatalf("unresolvable list must be kept, got %v", p.Columns)
	}
	if p := AlignColumns(Plan{}, headers); p.Columns != nil {
		t.Fatalf("nil columns must stay nil")
	}
}

func TestValidateCollectsAll(t *testing.T) {
	p := Plan{
		Intent:    "delete",
		Pattern:   "(",
		Flags:     "iq",
		Columns:   []string{"Emial"},
		RowFilter: "`Nmae` == 'x' and `__rownum__` == 2",
	}
	err := Validate(p, headers)
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected *ValidationError, got %v", err)
	}
	want := []string{
		"intent must be",
		"unsupported flag 'q'",
		"pattern not compilable",
		"unknown columns: Emial (did you mean Email?)",
		"row_filter references unknown column `Nmae`",
	}
	if len(ve.Errors) != len(want) {
		t.Fatalf("errors = %q", ve.Errors)
	}
	for i, w := range want {
		if !strings.Contains(ve.Errors[i], w) {
			t.Fatalf("error %d = %q; want it to contain %q", i, ve.Errors[i], w)
		}
	}
	if !strings.Contains(err.Error(), "\n") {
		t.Fatalf("Error() should join messages by newline")
	}
}

func TestValidateReplacement(t *testing.T) {
	err := Validate(Normalize(Plan{Intent: IntentReplace, Pattern: "x"}), headers)
	if err == nil || !strings.Contains(err.Error(), "replacement is required") {
		t.Fatalf("got %v", err)
	}
	err = Validate(Normalize(Plan{Intent: IntentReplace, Pattern: "x", Replacement: Literal("__DATE_NORMALIZE__(YYYY; bogus=1)")}), headers)
	if err == nil || !strings.Contains(err.Error(), "invalid date directive") {
		t.Fatalf("got %v", err)
	}
}

func TestValidateDoesNotMutate(t *testing.T) {
	p := Plan{Intent: "find", Pattern: "a", Flags: "i", Columns: []string{"Name"}}
	before := p
	before.Columns = append([]string{}, p.Columns...)
	if err := Validate(p, headers); err != nil {
		t.Fatalf("valid plan rejected: %v", err)
	}
	if !reflect.DeepEqual(p, before) {
		t.Fatalf("Validate mutated plan")
	}
}

func TestPrepare(t *testing.T) {
	p, err := Prepare(Plan{Intent: "FIND", Pattern: "@example", Columns: []string{"email"}, RowFilter: "`Order ID` == 'A1'"}, headers)
	if err != nil {
		t.Fatalf("Prepare failed: %v", err)
	}
	if p.Intent != IntentFind || p.Columns[0] != "Email" || p.Flags != "i" {
		t.Fatalf("prepared = %#v", p)
	}
}

func TestCompilePattern(t *testing.T) {
	cases := []struct {
		pattern string
		flags   string
		input   string
		want    bool
	}{
		{"abc", "", "ABC", true},
		{"abc", "i", "xAbCx", true},
		{"^b", "m", "a\nb", true},
		{"^b", "m", "a\nB", false},
		{"a.b", "s", "a\nb", true},
		{"a.b", "i", "a\nb", false},
		{"a b c  # letters", "x", "abc", true},
		{`[ ]x`, "x", " x", true},
		{`a\ b`, "x", "a b", true},
		{"abc", "u", "ABC", true},
	}
	for _, c := range cases {
		rx, err := CompilePattern(c.pattern, ParseFlags(c.flags))
		if err != nil {
			t.Fatalf("CompilePattern(%q, %q): %v", c.pattern, c.flags, err)
		}
		if got := rx.MatchString(c.input); got != c.want {
			t.Fatalf("%q/%q on %q = %v; want %v", c.pattern, c.flags, c.input, got, c.want)
		}
	}
}

func TestIsMatchAll(t *testing.T) {
	for _, p := range []string{"", "^.*$", ".*", " ^.* ", ".*$"} {
		if !IsMatchAll(p) {
			t.Fatalf("%q should be match-all", p)
		}
	}
	for _, p := range []string{"^.+$", "a.*", "^.*x$"} {
		if IsMatchAll(p) {
			t.Fatalf("%q should not be match-all", p)
		}
	}
}

func TestDecode(t *testing.T) {
	yml := `
intent: replace
pattern: '(\d+)-(\d+)'
flags: i
columns: [Order ID]
replacement: '\2-\1'
row_filter: "Name == 'x'"
`
	p, err := Decode(strings.NewReader(yml), FormatYAML)
	if err != nil {
		t.Fatalf("Decode yaml: %v", err)
	}
	if p.Intent != IntentReplace || p.Replacement != Literal(`\2-\1`) || p.RowFilter != "Name == 'x'" {
		t.Fatalf("decoded = %#v", p)
	}

	p, err = Decode(strings.NewReader(`{"intent":"find","pattern":"x","replacement":null}`), FormatJSON)
	if err != nil || !p.Replacement.IsZero() {
		t.Fatalf("json decode: %#v %v", p, err)
	}
	if _, err := Decode(strings.NewReader(`{"intent":"find","bogus":1}`), FormatJSON); err == nil {
		t.Fatalf("unknown json field must be rejected")
	}
	if _, err := Decode(strings.NewReader("intent: find\nbogus: 1\n"), FormatYAML); err == nil {
		t.Fatalf("unknown yaml field must be rejected")
	}
}

func TestEncodeRoundTripsDirective(t *testing.T) {
	p := Normalize(Plan{Intent: IntentReplace, Pattern: MatchAll, Replacement: DateNormalize("", dates.DayFirstOff)})
	var buf bytes.Buffer
	if err := Encode(&buf, p, FormatJSON); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if !strings.Contains(buf.String(), `"__DATE_NORMALIZE__(YYYY-MM-DD; dayfirst=false)"`) {
		t.Fatalf("encoded = %s", buf.String())
	}
	back, err := Decode(&buf, FormatJSON)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got := Normalize(back).Replacement; got != p.Replacement {
		t.Fatalf("round trip = %#v; want %#v", got, p.Replacement)
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "plan.yml")
	if err := os.WriteFile(path, []byte("intent: find\npattern: foo\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	p, err := LoadFile(path)
	if err != nil || p.Pattern != "foo" {
		t.Fatalf("LoadFile = %#v, %v", p, err)
	}
	if _, err := LoadFile(filepath.Join(dir, "missing.json")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
