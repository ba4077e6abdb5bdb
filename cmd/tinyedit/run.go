package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/SimonWaldherr/tinyedit/internal/executor"
	"github.com/SimonWaldherr/tinyedit/internal/exporter"
	"github.com/SimonWaldherr/tinyedit/internal/importer"
	"github.com/SimonWaldherr/tinyedit/internal/plan"
	"github.com/SimonWaldherr/tinyedit/internal/storage"
)

type runFlags struct {
	planFile string

	intent      string
	pattern     string
	flags       string
	columns     []string
	replacement string
	rowFilter   string

	out           string
	outDir        string
	format        string
	payload       string
	payloadFormat string
	show          int

	header   string
	sheet    string
	jsonPath string
}

func newRunCmd(a *app) *cobra.Command {
	f := &runFlags{}
	cmd := &cobra.Command{
		Use:   "run [flags] DATA...",
		Short: "Execute a find/replace plan over one or more datasets",
		Long: `run loads each dataset, prepares the plan against its headers and executes it.

DATA arguments may be glob patterns, including ** for recursive matches.
Flags such as --pattern or --filter override the matching plan file fields.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, f, args)
		},
	}

	fl := cmd.Flags()
	fl.StringVarP(&f.planFile, "plan", "p", "", "Plan file (.yaml, .yml or .json)")
	fl.StringVar(&f.intent, "intent", "", "Plan intent: find or replace")
	fl.StringVar(&f.pattern, "pattern", "", "Regular expression")
	fl.StringVar(&f.flags, "flags", "", "Regex flags from "+plan.AllowedFlags)
	fl.StringSliceVarP(&f.columns, "columns", "c", nil, "Target columns (comma separated)")
	fl.StringVar(&f.replacement, "replace", "", "Replacement text or __DATE_NORMALIZE__(...) directive")
	fl.StringVar(&f.rowFilter, "filter", "", "Row filter expression")

	fl.StringVarP(&f.out, "out", "o", "", "Write the result table to this file (- for stdout)")
	fl.StringVar(&f.outDir, "out-dir", "", "Write result tables and payloads for every input into this directory")
	fl.StringVar(&f.format, "format", "", "Output table format: csv, json, xml, xlsx (default from config or --out extension)")
	fl.StringVar(&f.payload, "payload", "", "Write the run payload to this file (- for stdout)")
	fl.StringVar(&f.payloadFormat, "payload-format", "json", "Payload format: json or yaml")
	fl.IntVar(&f.show, "show", 0, "Print up to N result rows")

	fl.StringVar(&f.header, "header", "auto", "Header row: auto, present or absent")
	fl.StringVar(&f.sheet, "sheet", "", "XLSX worksheet (default first sheet)")
	fl.StringVar(&f.jsonPath, "json-path", "", "JSONPath selecting the records of a JSON input")
	return cmd
}

func (a *app) run(cmd *cobra.Command, f *runFlags, args []string) error {
	base, err := planFromFlags(cmd, f)
	if err != nil {
		return err
	}
	base = a.cfg.ApplyDefaultFlags(base)

	inputs, err := expandInputs(args)
	if err != nil {
		return err
	}
	if len(inputs) > 1 && f.outDir == "" && ((f.out != "" && f.out != "-") || (f.payload != "" && f.payload != "-")) {
		return fmt.Errorf("%d inputs matched: use --out-dir instead of --out/--payload", len(inputs))
	}

	tableFormat, err := a.tableFormat(cmd, f)
	if err != nil {
		return err
	}
	payloadFormat, err := exporter.ParseFormat(f.payloadFormat)
	if err != nil {
		return err
	}
	if payloadFormat != exporter.FormatJSON && payloadFormat != exporter.FormatYAML {
		return fmt.Errorf("payload format must be json or yaml, got %q", f.payloadFormat)
	}
	if f.outDir != "" {
		if err := os.MkdirAll(f.outDir, 0o755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
	}

	var failed int
	for _, in := range inputs {
		if err := a.runOne(in, base, f, tableFormat, payloadFormat); err != nil {
			failed++
			if len(inputs) == 1 {
				return err
			}
			fmt.Fprintf(a.stderr, "%s %s: %v\n", color.RedString("✗"), in, err)
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d inputs failed", failed, len(inputs))
	}
	return nil
}

func (a *app) runOne(path string, base plan.Plan, f *runFlags, tableFormat, payloadFormat exporter.Format) error {
	tbl, res, err := importer.LoadFile(path, &importer.Options{HeaderMode: f.header, Sheet: f.sheet, JSONPath: f.jsonPath})
	if err != nil {
		return err
	}
	a.logger.Debug("loaded dataset", "path", path, "rows", res.Rows, "delimiter", string(res.Delimiter),
		"encoding", res.Encoding, "compression", res.Compression, "header", res.HadHeader)
	for _, e := range res.Errors {
		a.logger.Warn("load", "path", path, "error", e)
	}

	p, err := plan.Prepare(base, tbl.Headers())
	if err != nil {
		var verr *plan.ValidationError
		if errors.As(err, &verr) {
			printValidation(a.stderr, path, verr)
			return fmt.Errorf("plan rejected for %s", path)
		}
		return err
	}

	out, payload, err := executor.Execute(tbl, p, a.cfg.ExecutorOptions(a.logger))
	if err != nil {
		return err
	}
	printSummary(a.stdout, path, payload)
	if f.show > 0 {
		renderRows(a.stdout, out, payload.ResultRowsIndices, f.show)
	}

	tableOut, payloadOut := f.out, f.payload
	if f.outDir != "" {
		stem := datasetStem(path)
		tableOut = filepath.Join(f.outDir, stem+".edited."+string(tableFormat))
		payloadOut = filepath.Join(f.outDir, stem+".payload."+string(payloadFormat))
	}
	if tableOut != "" {
		err := writeTo(a.stdout, tableOut, func(w io.Writer) error {
			return exporter.Write(w, out, tableFormat, exporter.Options{PrettyJSON: true})
		})
		if err != nil {
			return fmt.Errorf("write result: %w", err)
		}
	}
	if payloadOut != "" {
		err := writeTo(a.stdout, payloadOut, func(w io.Writer) error {
			return exporter.ExportPayload(w, payload, payloadFormat, exporter.Options{PrettyJSON: true})
		})
		if err != nil {
			return fmt.Errorf("write payload: %w", err)
		}
	}
	return nil
}

// planFromFlags loads the plan file, if any, and applies explicitly set
// plan flags on top.
func planFromFlags(cmd *cobra.Command, f *runFlags) (plan.Plan, error) {
	var p plan.Plan
	if f.planFile != "" {
		loaded, err := plan.LoadFile(f.planFile)
		if err != nil {
			return p, err
		}
		p = loaded
	}
	set := cmd.Flags().Changed
	if set("intent") {
		p.Intent = plan.Intent(f.intent)
	}
	if set("pattern") {
		p.Pattern = f.pattern
	}
	if set("flags") {
		p.Flags = f.flags
	}
	if set("columns") {
		p.Columns = f.columns
	}
	if set("replace") {
		p.Replacement = plan.Literal(f.replacement)
	}
	if set("filter") {
		p.RowFilter = f.rowFilter
	}
	if p.Intent == "" {
		if p.Replacement.IsZero() {
			p.Intent = plan.IntentFind
		} else {
			p.Intent = plan.IntentReplace
		}
	}
	if f.planFile == "" && !set("pattern") {
		p.Pattern = plan.MatchAll
	}
	return p, nil
}

func (a *app) tableFormat(cmd *cobra.Command, f *runFlags) (exporter.Format, error) {
	switch {
	case cmd.Flags().Changed("format"):
		return exporter.ParseFormat(f.format)
	case f.out != "" && f.out != "-" && filepath.Ext(f.out) != "":
		return exporter.ParseFormat(filepath.Ext(f.out))
	}
	return exporter.ParseFormat(a.cfg.OutputFormat)
}

// expandInputs resolves glob patterns and plain paths into a sorted,
// de-duplicated file list.
func expandInputs(args []string) ([]string, error) {
	seen := make(map[string]bool)
	var out []string
	for _, arg := range args {
		var matches []string
		if hasMeta(arg) {
			m, err := doublestar.FilepathGlob(arg, doublestar.WithFilesOnly())
			if err != nil {
				return nil, fmt.Errorf("bad pattern %q: %w", arg, err)
			}
			if len(m) == 0 {
				return nil, fmt.Errorf("no files match %q", arg)
			}
			matches = m
		} else {
			if _, err := os.Stat(arg); err != nil {
				return nil, err
			}
			matches = []string{arg}
		}
		for _, m := range matches {
			if !seen[m] {
				seen[m] = true
				out = append(out, m)
			}
		}
	}
	sort.Strings(out)
	return out, nil
}

func hasMeta(s string) bool {
	return strings.ContainsAny(s, "*?[{")
}

// datasetStem strips directories, compression and format extensions.
func datasetStem(path string) string {
	base := filepath.Base(path)
	for _, ext := range []string{".gz", ".xz"} {
		base = strings.TrimSuffix(base, ext)
	}
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// writeTo writes to stdout for "-" and to a new file otherwise.
func writeTo(stdout io.Writer, path string, write func(io.Writer) error) error {
	if path == "-" {
		return write(stdout)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func printSummary(w io.Writer, path string, p *executor.Payload) {
	ok := color.New(color.FgGreen).SprintFunc()
	dim := color.New(color.Faint).SprintFunc()
	warn := color.New(color.FgYellow).SprintFunc()

	cols := strings.Join(p.ColumnsApplied, ", ")
	switch p.Mode {
	case executor.ModeFind:
		fmt.Fprintf(w, "%s %s: %d matches in %d rows %s\n", ok("✓"), path,
			p.Stats.TotalMatches, p.Stats.RowsWithHits, dim("(columns: "+cols+")"))
	case executor.ModeReplace:
		fmt.Fprintf(w, "%s %s: %d replacements in %d rows %s\n", ok("✓"), path,
			p.Replacements, len(p.ChangedRowIndices), dim("(columns: "+cols+")"))
	}
	fmt.Fprintf(w, "  regex %s %s\n", p.Regex, dim("["+p.RegexSource+"]"))
	if p.RowFilter != "" {
		fmt.Fprintf(w, "  row filter %s %s\n", p.RowFilterNormalized, dim("["+strings.Join(p.RowFilterPaths, ", ")+"]"))
		if !p.RowFilterRecognized {
			fmt.Fprintf(w, "  %s\n", warn("row filter was only partly recognized"))
		}
		if p.RowFilterSoftRecall {
			fmt.Fprintf(w, "  %s\n", warn("row filter matched nothing; using case-insensitive recall"))
		}
	}
	fmt.Fprintf(w, "  %s: %d\n", p.ResultRowsDescription, p.ResultRowsCount)
}

// renderRows prints the rows with the given labels in aligned columns.
func renderRows(w io.Writer, t *storage.Table, labels []int, limit int) {
	pos := make(map[int]int, t.Len())
	for i, l := range t.Labels {
		pos[l] = i
	}
	var rows []int
	for _, l := range labels {
		if len(rows) >= limit {
			break
		}
		if i, ok := pos[l]; ok {
			rows = append(rows, i)
		}
	}
	renderColumn(w, t, rows)
}
