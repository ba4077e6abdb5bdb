// Package exporter writes edited tables and run payloads.
//
// Tables can be written as CSV, JSON (array of records), XML or XLSX;
// payloads as JSON or YAML with the JSON field order preserved.
package exporter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
	"gopkg.in/yaml.v3"

	"github.com/SimonWaldherr/tinyedit/internal/storage"
)

// Format names an output encoding.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
	FormatXML  Format = "xml"
	FormatXLSX Format = "xlsx"
	FormatYAML Format = "yaml"
)

// ParseFormat accepts a format name or a file extension.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), ".")) {
	case "csv", "":
		return FormatCSV, nil
	case "json":
		return FormatJSON, nil
	case "xml":
		return FormatXML, nil
	case "xlsx":
		return FormatXLSX, nil
	case "yaml", "yml":
		return FormatYAML, nil
	}
	return "", fmt.Errorf("unsupported output format %q", s)
}

// Options controls exporter behavior.
type Options struct {
	PrettyJSON   bool
	CSVNoHeader  bool
	CSVDelimiter rune
	SheetName    string
}

func valueToString(v any) string {
	if v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case int:
		return strconv.FormatInt(int64(t), 10)
	case int64:
		return strconv.FormatInt(t, 10)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case float64:
		if storage.IsNull(t) {
			return ""
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	case time.Time:
		return storage.FormatValue(t)
	case []byte:
		return string(t)
	default:
		return fmt.Sprint(t)
	}
}

// Write dispatches on format. YAML is not a table format.
func Write(w io.Writer, tbl *storage.Table, format Format, opts Options) error {
	switch format {
	case FormatCSV:
		return ExportCSV(w, tbl, opts)
	case FormatJSON:
		return ExportJSON(w, tbl, opts)
	case FormatXML:
		return ExportXML(w, tbl)
	case FormatXLSX:
		return ExportXLSX(w, tbl, opts)
	}
	return fmt.Errorf("cannot write a table as %q", format)
}

// ExportCSV writes table rows as CSV to w. Column order is preserved.
func ExportCSV(w io.Writer, tbl *storage.Table, opts Options) error {
	csvw := csv.NewWriter(w)
	if opts.CSVDelimiter != 0 {
		csvw.Comma = opts.CSVDelimiter
	}
	if !opts.CSVNoHeader {
		if err := csvw.Write(tbl.Headers()); err != nil {
			return err
		}
	}
	row := make([]string, len(tbl.Cols))
	for r := 0; r < tbl.Len(); r++ {
		for i, c := range tbl.Cols {
			row[i] = valueToString(c.Values[r])
		}
		if err := csvw.Write(row); err != nil {
			return err
		}
	}
	csvw.Flush()
	return csvw.Error()
}

// ExportJSON writes table rows as a JSON array of objects. Keys follow the
// column order; NaN and infinities become null.
func ExportJSON(w io.Writer, tbl *storage.Table, opts Options) error {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for r := 0; r < tbl.Len(); r++ {
		if r > 0 {
			buf.WriteByte(',')
		}
		buf.WriteByte('{')
		for i, c := range tbl.Cols {
			if i > 0 {
				buf.WriteByte(',')
			}
			k, _ := json.Marshal(c.Name)
			v, err := storage.JSONMarshal(c.Values[r])
			if err != nil {
				return fmt.Errorf("row %d column %s: %w", r, c.Name, err)
			}
			buf.Write(k)
			buf.WriteByte(':')
			buf.Write(v)
		}
		buf.WriteByte('}')
	}
	buf.WriteString("]")

	out := buf.Bytes()
	if opts.PrettyJSON {
		var pretty bytes.Buffer
		if err := json.Indent(&pretty, out, "", "  "); err != nil {
			return err
		}
		out = pretty.Bytes()
	}
	if _, err := w.Write(append(out, '\n')); err != nil {
		return err
	}
	return nil
}

type xmlField struct {
	XMLName xml.Name
	Value   string `xml:",chardata"`
}

type xmlRow struct {
	Fields []xmlField `xml:",any"`
}

type xmlRows struct {
	XMLName xml.Name `xml:"rows"`
	Rows    []xmlRow `xml:"row"`
}

// ExportXML writes the table as simple XML: <rows><row><col>value</col>...</row>...</rows>
// Column names are turned into valid element names.
func ExportXML(w io.Writer, tbl *storage.Table) error {
	names := make([]string, len(tbl.Cols))
	for i, c := range tbl.Cols {
		names[i] = xmlName(c.Name)
	}
	xr := xmlRows{XMLName: xml.Name{Local: "rows"}, Rows: make([]xmlRow, 0, tbl.Len())}
	for r := 0; r < tbl.Len(); r++ {
		xrRow := xmlRow{Fields: make([]xmlField, 0, len(tbl.Cols))}
		for i, c := range tbl.Cols {
			xrRow.Fields = append(xrRow.Fields, xmlField{XMLName: xml.Name{Local: names[i]}, Value: valueToString(c.Values[r])})
		}
		xr.Rows = append(xr.Rows, xrRow)
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(xr); err != nil {
		return err
	}
	return enc.Flush()
}

func xmlName(s string) string {
	out := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '-' || r == '.' {
			return r
		}
		return '_'
	}, s)
	first, _ := utf8.DecodeRuneInString(out)
	if out == "" || !(unicode.IsLetter(first) || first == '_') {
		out = "_" + out
	}
	return out
}

// ExportXLSX writes the table to a single worksheet. Numbers and booleans
// keep their cell types; everything else is written as text.
func ExportXLSX(w io.Writer, tbl *storage.Table, opts Options) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := opts.SheetName
	if sheet == "" {
		sheet = tbl.Name
	}
	if sheet == "" {
		sheet = "Sheet1"
	}
	if r := []rune(sheet); len(r) > 31 {
		sheet = string(r[:31])
	}
	if sheet != "Sheet1" {
		if err := f.SetSheetName("Sheet1", sheet); err != nil {
			return fmt.Errorf("name sheet: %w", err)
		}
	}

	header := make([]any, len(tbl.Cols))
	for i, c := range tbl.Cols {
		header[i] = c.Name
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	row := make([]any, len(tbl.Cols))
	for r := 0; r < tbl.Len(); r++ {
		for i, c := range tbl.Cols {
			switch v := storage.JSONSafe(c.Values[r]).(type) {
			case nil, bool, int, int64, float64:
				row[i] = v
			default:
				row[i] = valueToString(v)
			}
		}
		cell, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", r, err)
		}
	}
	_, err := f.WriteTo(w)
	return err
}

// ExportPayload writes any JSON-serializable value (a run payload) as JSON
// or YAML. YAML output keeps the JSON field order.
func ExportPayload(w io.Writer, v any, format Format, opts Options) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	switch format {
	case FormatJSON:
		if opts.PrettyJSON {
			var pretty bytes.Buffer
			if err := json.Indent(&pretty, raw, "", "  "); err != nil {
				return err
			}
			raw = pretty.Bytes()
		}
		_, err := w.Write(append(raw, '\n'))
		return err
	case FormatYAML:
		// JSON is a YAML subset; decoding into a node keeps key order.
		var node yaml.Node
		if err := yaml.Unmarshal(raw, &node); err != nil {
			return fmt.Errorf("convert payload: %w", err)
		}
		resetStyle(&node)
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(&node); err != nil {
			return err
		}
		return enc.Close()
	}
	return fmt.Errorf("cannot write a payload as %q", format)
}

// resetStyle drops the flow style and quoting inherited from JSON; the
// encoder still quotes strings that would otherwise read as other types.
func resetStyle(n *yaml.Node) {
	n.Style = 0
	for _, c := range n.Content {
		resetStyle(c)
	}
}
