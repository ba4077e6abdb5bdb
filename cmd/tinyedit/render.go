package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/fatih/color"

	"github.com/SimonWaldherr/tinyedit/internal/plan"
	"github.com/SimonWaldherr/tinyedit/internal/storage"
)

const maxCellWidth = 40

// renderColumn prints the rows at the given positions with a header line.
// The first column is the row label.
func renderColumn(out io.Writer, t *storage.Table, rows []int) {
	headers := append([]string{"#"}, t.Headers()...)
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = utf8.RuneCountInString(h)
	}
	cells := make([][]string, len(rows))
	for r, pos := range rows {
		line := make([]string, len(headers))
		line[0] = strconv.Itoa(t.Labels[pos])
		for i, c := range t.Cols {
			line[i+1] = formatCell(c.Values[pos])
		}
		for i, v := range line {
			if n := utf8.RuneCountInString(v); n > widths[i] {
				widths[i] = n
			}
		}
		cells[r] = line
	}

	for i, h := range headers {
		fmt.Fprintf(out, "%s  ", padRight(h, widths[i]))
	}
	fmt.Fprintln(out)
	for i := range headers {
		fmt.Fprintf(out, "%s  ", strings.Repeat("-", widths[i]))
	}
	fmt.Fprintln(out)
	for _, line := range cells {
		for i, v := range line {
			fmt.Fprintf(out, "%s  ", padRight(v, widths[i]))
		}
		fmt.Fprintln(out)
	}
}

func formatCell(v any) string {
	if storage.IsNull(v) {
		return "NULL"
	}
	s := strings.ReplaceAll(storage.FormatValue(v), "\n", `\n`)
	if utf8.RuneCountInString(s) > maxCellWidth {
		s = string([]rune(s)[:maxCellWidth-1]) + "…"
	}
	return s
}

func padRight(s string, width int) string {
	n := utf8.RuneCountInString(s)
	if n >= width {
		return s
	}
	return s + strings.Repeat(" ", width-n)
}

// printValidation lists every plan violation.
func printValidation(w io.Writer, source string, verr *plan.ValidationError) {
	fmt.Fprintf(w, "%s %s: plan is invalid\n", color.RedString("✗"), source)
	for _, e := range verr.Errors {
		fmt.Fprintf(w, "  - %s\n", e)
	}
}
