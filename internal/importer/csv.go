// Package importer loads datasets into tinyedit tables with type detection.
//
// This package reads delimited text (CSV/TSV), spreadsheets (XLSX) and JSON
// records into a storage.Table. It auto-detects delimiters, headers,
// encodings, compression and column types to minimize manual configuration.
//
// Features:
//   - Auto-detect delimiter: ',', ';', '\t', '|' (configurable)
//   - Auto-detect header row (configurable override)
//   - Encoding: UTF-8, UTF-8 BOM, UTF-16LE/BE (BOM-based), Windows-1252 fallback
//   - Transparent GZIP and XZ input
//   - Smart type inference (INT, FLOAT, BOOL, TEXT, optional TIME)
//   - Header names are kept as written, so plans can reference them
//   - XLSX cells are read raw: date cells stay spreadsheet serial numbers
//
// Example:
//
//	f, _ := os.Open("data.csv")
//	tbl, res, err := importer.ReadCSV(f, nil)
//	fmt.Printf("Loaded %d rows with %d columns\n", tbl.Len(), len(res.ColumnNames))
package importer

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/ulikunitz/xz"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/SimonWaldherr/tinyedit/internal/storage"
)

// ============================================================================
// Public API Types
// ============================================================================

// Options configures the importer behavior. All fields are optional.
type Options struct {
	// NullLiterals are loaded as null cells (case-insensitive, trimmed).
	// Defaults: "", "null", "na", "n/a", "nan", "none", "#n/a"
	NullLiterals []string

	// HeaderMode controls header detection:
	//   "auto" (default)  → heuristic decides based on data analysis
	//   "present"         → first row is always treated as header
	//   "absent"          → first row is data, synthetic column names generated (col_1, col_2, ...)
	HeaderMode string

	// DelimiterCandidates tested during auto-detection. Default: , ; \t |
	// Override to force specific delimiter(s).
	DelimiterCandidates []rune

	// TableName names the resulting table (default "dataset").
	TableName string

	// Sheet selects the XLSX worksheet (default: first sheet).
	Sheet string

	// SampleBytes caps the amount of data used for detection (default 128KB).
	SampleBytes int

	// SampleRecords caps the number of records analyzed for detection (default 500).
	SampleRecords int

	// RawText disables type inference; every column is TEXT.
	RawText bool

	// DateTimeFormats enables TIME inference for the given layouts. Empty by
	// default so that date text reaches the date normalizer unchanged.
	DateTimeFormats []string

	// JSONPath selects the records of a JSON document, e.g. "$.data.items".
	// A single array result is expanded into its elements. Columns of
	// selected records are sorted by name.
	JSONPath string
}

// Result returns metadata about the load.
type Result struct {
	Delimiter   rune              // Detected or configured delimiter
	HadHeader   bool              // Whether a header row was detected/configured
	Encoding    string            // Detected encoding: "utf-8", "utf-8-bom", "utf-16le", "utf-16be", "windows-1252"
	Compression string            // "none", "gzip" or "xz"
	ColumnNames []string          // Final column names used
	ColumnTypes []storage.ColType // Detected column types
	Rows        int               // Data rows loaded
	Errors      []string          // Non-fatal errors encountered during the load
}

// ============================================================================
// CSV/TSV Import
// ============================================================================

// ReadCSV loads delimited data (CSV/TSV) from a reader into a table.
//
// It handles compressed input (gzip, xz), BOM-marked encodings and ragged
// rows. Cells that do not fit the inferred column type keep their text and
// turn the column into a mixed (INTERFACE) column.
func ReadCSV(src io.Reader, opts *Options) (*storage.Table, *Result, error) {
	if opts == nil {
		opts = &Options{}
	}
	applyDefaults(opts)

	result := &Result{Errors: make([]string, 0)}

	// Step 1: Handle compression if present
	r, compression, err := maybeDecompress(src)
	if err != nil {
		return nil, nil, err
	}
	result.Compression = compression

	// Step 2: Detect encoding and convert to UTF-8
	br := bufio.NewReader(r)
	sampleBytes, _ := br.Peek(maxInt(opts.SampleBytes, 16))
	enc, hasBOM := detectEncoding(sampleBytes)
	result.Encoding = enc

	var rr io.Reader
	switch enc {
	case "utf-16le", "utf-16be":
		endian := unicode.LittleEndian
		if enc == "utf-16be" {
			endian = unicode.BigEndian
		}
		rr = transform.NewReader(br, unicode.UTF16(endian, unicode.ExpectBOM).NewDecoder())
	case "windows-1252":
		rr = transform.NewReader(br, charmap.Windows1252.NewDecoder())
	default:
		if hasBOM {
			if _, err := br.Discard(3); err != nil {
				return nil, nil, fmt.Errorf("discard UTF-8 BOM: %w", err)
			}
		}
		rr = br
	}

	// Step 3: Sample data for delimiter and header detection
	sr := bufio.NewReaderSize(rr, maxInt(opts.SampleBytes, 4096))
	peek := peekN(sr, opts.SampleBytes)
	lines := splitUniversal(string(peek))

	delim := detectDelimiter(lines, candidateDelims(opts.DelimiterCandidates))
	result.Delimiter = delim

	records := parseRecords(lines, delim, opts.SampleRecords)
	hasHeader := decideHeader(records, opts.HeaderMode)
	result.HadHeader = hasHeader

	// Step 4: Read every record with the detected settings
	csvr := csv.NewReader(sr)
	csvr.Comma = delim
	csvr.FieldsPerRecord = -1 // allow ragged rows
	csvr.LazyQuotes = true

	var all [][]string
	for {
		rec, err := csvr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("read error: %v", err))
			continue
		}
		all = append(all, rec)
	}
	if len(all) == 0 {
		return nil, nil, fmt.Errorf("empty input")
	}

	tbl, err := buildTable(all, hasHeader, opts, result)
	if err != nil {
		return nil, nil, err
	}
	return tbl, result, nil
}

// buildTable turns raw records into a typed table. The first record is the
// header when hasHeader is set.
func buildTable(all [][]string, hasHeader bool, opts *Options, result *Result) (*storage.Table, error) {
	var colNames []string
	body := all
	if hasHeader {
		colNames = sanitizeColumnNames(all[0])
		body = all[1:]
	}
	width := len(colNames)
	for _, rec := range body {
		width = maxInt(width, len(rec))
	}
	if !hasHeader {
		colNames = generateColumnNames(width)
	}
	for len(colNames) < width {
		colNames = append(colNames, fmt.Sprintf("col_%d", len(colNames)+1))
	}
	colNames = uniqueColumnNames(colNames)
	result.ColumnNames = colNames

	// Analyze sample data for type inference
	colTypes := make([]storage.ColType, len(colNames))
	if opts.RawText {
		for i := range colTypes {
			colTypes[i] = storage.TextType
		}
	} else {
		sample := body
		if len(sample) > opts.SampleRecords {
			sample = sample[:opts.SampleRecords]
		}
		colTypes = inferColumnTypes(sample, len(colNames), opts)
	}

	cols := make([]storage.Column, len(colNames))
	for i, name := range colNames {
		cols[i] = storage.Column{Name: name, Type: colTypes[i], Values: make([]any, len(body))}
	}
	for r, rec := range body {
		for c := range cols {
			var raw string
			if c < len(rec) {
				raw = rec[c]
			}
			v, err := convertValue(raw, colTypes[c], opts.DateTimeFormats, opts.NullLiterals)
			if err != nil {
				// Keep the text; the column no longer has one type.
				result.Errors = append(result.Errors, fmt.Sprintf("row %d, col %s: %v", r+1, cols[c].Name, err))
				cols[c].Type = storage.InterfaceType
				v = strings.TrimSpace(raw)
			}
			cols[c].Values[r] = v
		}
	}
	for i := range cols {
		colTypes[i] = cols[i].Type
	}
	result.ColumnTypes = colTypes
	result.Rows = len(body)
	return storage.NewTable(opts.TableName, cols, nil)
}

// ============================================================================
// Helper Functions - Encoding & Detection
// ============================================================================

func applyDefaults(o *Options) {
	if len(o.NullLiterals) == 0 {
		o.NullLiterals = []string{"", "null", "na", "n/a", "nan", "none", "#n/a"}
	}
	if o.HeaderMode == "" {
		o.HeaderMode = "auto"
	}
	if len(o.DelimiterCandidates) == 0 {
		o.DelimiterCandidates = []rune{',', ';', '\t', '|'}
	}
	if o.SampleBytes <= 0 {
		o.SampleBytes = 128 * 1024
	}
	if o.SampleRecords <= 0 {
		o.SampleRecords = 500
	}
	if o.TableName == "" {
		o.TableName = "dataset"
	}
}

var xzMagic = []byte{0xfd, 0x37, 0x7a, 0x58, 0x5a, 0x00}

// maybeDecompress sniffs gzip and xz magic bytes and wraps r accordingly.
func maybeDecompress(r io.Reader) (io.Reader, string, error) {
	br := bufio.NewReader(r)
	magic, _ := br.Peek(len(xzMagic))
	switch {
	case len(magic) >= 2 && magic[0] == 0x1F && magic[1] == 0x8B:
		gr, err := gzip.NewReader(br)
		if err != nil {
			return nil, "", fmt.Errorf("open gzip stream: %w", err)
		}
		return gr, "gzip", nil
	case bytes.Equal(magic, xzMagic):
		xr, err := xz.NewReader(br)
		if err != nil {
			return nil, "", fmt.Errorf("open xz stream: %w", err)
		}
		return xr, "xz", nil
	}
	return br, "none", nil
}

func detectEncoding(b []byte) (enc string, hasUTF8BOM bool) {
	if len(b) >= 3 && b[0] == 0xEF && b[1] == 0xBB && b[2] == 0xBF {
		return "utf-8-bom", true
	}
	if len(b) >= 2 && b[0] == 0xFF && b[1] == 0xFE {
		return "utf-16le", false
	}
	if len(b) >= 2 && b[0] == 0xFE && b[1] == 0xFF {
		return "utf-16be", false
	}
	if !validUTF8Prefix(b) {
		return "windows-1252", false
	}
	return "utf-8", false
}

// validUTF8Prefix reports whether b is UTF-8, tolerating a rune cut off
// by the sample boundary.
func validUTF8Prefix(b []byte) bool {
	for len(b) > 0 {
		r, size := utf8.DecodeRune(b)
		if r == utf8.RuneError && size <= 1 {
			return len(b) < utf8.UTFMax && !utf8.FullRune(b)
		}
		b = b[size:]
	}
	return true
}

func candidateDelims(c []rune) []rune {
	out := make([]rune, 0, len(c))
	for _, r := range c {
		if r != 0 {
			out = append(out, r)
		}
	}
	if len(out) == 0 {
		return []rune{',', ';', '\t', '|'}
	}
	return out
}

func peekN(br *bufio.Reader, n int) []byte {
	if n <= 0 {
		n = 1
	}
	b, _ := br.Peek(n)
	return b
}

func splitUniversal(s string) []string {
	var out []string
	start := 0
	for i := 0; i < len(s); {
		switch s[i] {
		case '\r':
			out = append(out, s[start:i])
			i++
			if i < len(s) && s[i] == '\n' {
				i++
			}
			start = i
		case '\n':
			out = append(out, s[start:i])
			i++
			start = i
		default:
			i++
		}
	}
	out = append(out, s[start:])
	// Drop trailing empty line
	if len(out) > 0 && out[len(out)-1] == "" {
		out = out[:len(out)-1]
	}
	return out
}

func parseRecords(lines []string, delim rune, maxRecs int) [][]string {
	var out [][]string
	for _, ln := range lines {
		if strings.TrimSpace(ln) == "" {
			continue
		}
		out = append(out, naiveSplitOutsideQuotes(ln, delim))
		if maxRecs > 0 && len(out) >= maxRecs {
			break
		}
	}
	return out
}

func detectDelimiter(lines []string, cands []rune) rune {
	type score struct {
		cand   rune
		stdev  float64
		fields int
	}
	var best *score

	for _, cand := range cands {
		var counts []int
		for _, ln := range lines {
			if strings.TrimSpace(ln) == "" {
				continue
			}
			if len(counts) >= 200 {
				break
			}
			counts = append(counts, countDelimsOutsideQuotes(ln, cand)+1)
		}
		if len(counts) == 0 {
			continue
		}
		_, sd := meanStd(counts)
		fields := mode(counts)
		if fields <= 1 {
			continue
		}
		sc := score{cand: cand, stdev: sd, fields: fields}
		if best == nil || sc.stdev < best.stdev ||
			(math.Abs(sc.stdev-best.stdev) < 1e-9 && sc.fields > best.fields) {
			cp := sc
			best = &cp
		}
	}
	if best != nil {
		return best.cand
	}
	if len(cands) == 1 {
		return cands[0]
	}
	return ','
}

func countDelimsOutsideQuotes(ln string, delim rune) int {
	inQ := false
	count := 0
	for i, w := 0, 0; i < len(ln); i += w {
		r, size := utf8.DecodeRuneInString(ln[i:])
		w = size
		if r == '"' {
			peek, _ := utf8.DecodeRuneInString(ln[i+w:])
			if inQ && peek == '"' {
				i += w
				continue
			}
			inQ = !inQ
			continue
		}
		if !inQ && r == delim {
			count++
		}
	}
	return count
}

func naiveSplitOutsideQuotes(ln string, delim rune) []string {
	var out []string
	var sb strings.Builder
	inQ := false

	for i := 0; i < len(ln); {
		r, w := utf8.DecodeRuneInString(ln[i:])
		i += w
		if r == '\r' || r == '\n' {
			break
		}
		if r == '"' {
			if inQ {
				if i < len(ln) {
					r2, w2 := utf8.DecodeRuneInString(ln[i:])
					if r2 == '"' {
						i += w2
						sb.WriteRune('"')
						continue
					}
				}
				inQ = false
				continue
			} else if sb.Len() == 0 {
				inQ = true
				continue
			}
		}
		if !inQ && r == delim {
			out = append(out, sb.String())
			sb.Reset()
			continue
		}
		sb.WriteRune(r)
	}
	out = append(out, sb.String())
	return out
}

func decideHeader(records [][]string, mode string) bool {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "present":
		return true
	case "absent":
		return false
	}

	if len(records) < 2 {
		return len(records) == 1
	}

	first := records[0]
	body := records[1:]
	cols := len(first)
	headerish := 0
	textCols := 0

	for c := 0; c < cols; c++ {
		headNum := looksNumeric(first[c])
		dataNum := 0
		rows := 0
		for _, r := range body {
			if c >= len(r) {
				continue
			}
			if looksNumeric(r[c]) {
				dataNum++
			}
			rows++
		}
		if rows > 0 && !headNum && float64(dataNum)/float64(rows) > 0.6 {
			headerish++
		}
		if !headNum && strings.TrimSpace(first[c]) != "" {
			textCols++
		}
	}
	// A first row that is fully textual and unique is taken as a header even
	// when the body is textual too, which is the common case for edit data.
	if textCols == cols && uniqueFold(first) {
		return true
	}
	return float64(headerish)/float64(cols) >= 0.5
}

func uniqueFold(rec []string) bool {
	seen := make(map[string]bool, len(rec))
	for _, s := range rec {
		k := strings.ToLower(strings.TrimSpace(s))
		if seen[k] {
			return false
		}
		seen[k] = true
	}
	return true
}

func looksNumeric(s string) bool {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
	if s == "" {
		return false
	}
	if _, err := strconv.ParseInt(s, 10, 64); err == nil {
		return true
	}
	if _, err := strconv.ParseFloat(s, 64); err == nil {
		return true
	}
	return false
}

func meanStd(vals []int) (float64, float64) {
	if len(vals) == 0 {
		return 0, 0
	}
	var sum float64
	for _, v := range vals {
		sum += float64(v)
	}
	avg := sum / float64(len(vals))
	var ss float64
	for _, v := range vals {
		d := float64(v) - avg
		ss += d * d
	}
	return avg, math.Sqrt(ss / float64(len(vals)))
}

func mode(vals []int) int {
	if len(vals) == 0 {
		return 0
	}
	m := map[int]int{}
	for _, v := range vals {
		m[v]++
	}
	type kv struct{ v, c int }
	var arr []kv
	for v, c := range m {
		arr = append(arr, kv{v, c})
	}
	sort.Slice(arr, func(i, j int) bool {
		if arr[i].c == arr[j].c {
			return arr[i].v > arr[j].v
		}
		return arr[i].c > arr[j].c
	})
	return arr[0].v
}

// sanitizeColumnNames trims header cells and names blank ones col_N. The
// remaining text is kept verbatim.
func sanitizeColumnNames(h []string) []string {
	out := make([]string, len(h))
	for i, s := range h {
		s = strings.TrimSpace(s)
		if s == "" {
			s = fmt.Sprintf("col_%d", i+1)
		}
		out[i] = s
	}
	return out
}

// uniqueColumnNames suffixes repeated names with .1, .2, ...
func uniqueColumnNames(names []string) []string {
	used := make(map[string]bool, len(names))
	out := make([]string, len(names))
	for i, n := range names {
		name := n
		for k := 1; used[name]; k++ {
			name = fmt.Sprintf("%s.%d", n, k)
		}
		used[name] = true
		out[i] = name
	}
	return out
}

func generateColumnNames(n int) []string {
	out := make([]string, n)
	for i := 0; i < n; i++ {
		out[i] = fmt.Sprintf("col_%d", i+1)
	}
	return out
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
