package importer

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ohler55/ojg/jp"
	"github.com/ohler55/ojg/oj"

	"github.com/SimonWaldherr/tinyedit/internal/storage"
)

// ============================================================================
// File Format Detection
// ============================================================================

// LoadFile detects the file format from the extension and loads it.
// Supports: CSV, TSV, TXT, XLSX, JSON, NDJSON, each CSV-family format
// optionally compressed with gzip or xz.
//
// When opts.TableName is empty it is derived from the file name.
func LoadFile(path string, opts *Options) (*storage.Table, *Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	if opts == nil {
		opts = &Options{}
	}
	ext := strings.ToLower(filepath.Ext(path))
	base := filepath.Base(path)
	// Compression suffix does not decide the format.
	if ext == ".gz" || ext == ".xz" {
		base = strings.TrimSuffix(base, filepath.Ext(base))
		ext = strings.ToLower(filepath.Ext(base))
	}
	if opts.TableName == "" {
		opts.TableName = sanitizeTableName(strings.TrimSuffix(base, filepath.Ext(base)))
	}

	switch ext {
	case ".csv":
		return ReadCSV(f, opts)
	case ".tsv", ".tab":
		opts.DelimiterCandidates = []rune{'\t'}
		return ReadCSV(f, opts)
	case ".xlsx", ".xlsm":
		return ReadXLSX(f, opts)
	case ".json", ".ndjson", ".jsonl":
		return ReadJSON(f, opts)
	default:
		return loadByContent(f, opts)
	}
}

// loadByContent picks JSON when the data starts with '[' or '{', CSV otherwise.
func loadByContent(src io.Reader, opts *Options) (*storage.Table, *Result, error) {
	br := bufio.NewReader(src)
	peek, _ := br.Peek(512)
	trimmed := strings.TrimSpace(strings.TrimPrefix(string(peek), "\uFEFF"))
	if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") {
		return ReadJSON(br, opts)
	}
	return ReadCSV(br, opts)
}

// sanitizeTableName converts a filename to a valid table name.
func sanitizeTableName(name string) string {
	name = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
			(r >= '0' && r <= '9') || r == '_' {
			return r
		}
		return '_'
	}, name)
	name = strings.TrimLeftFunc(name, func(r rune) bool {
		return r >= '0' && r <= '9'
	})
	if name == "" {
		name = "dataset"
	}
	return name
}

// ============================================================================
// JSON Import
// ============================================================================

// ReadJSON loads JSON records into a table.
// Supports:
//   - Array of objects: [{"id": 1, "name": "Alice"}, ...]
//   - JSON Lines format: {"id": 1, "name": "Alice"}\n{"id": 2, "name": "Bob"}
//
// Columns appear in first-seen key order. Nested values are kept as their
// JSON text.
func ReadJSON(src io.Reader, opts *Options) (*storage.Table, *Result, error) {
	if opts == nil {
		opts = &Options{}
	}
	applyDefaults(opts)

	result := &Result{Encoding: "utf-8", Compression: "none", HadHeader: true, Errors: make([]string, 0)}

	r, compression, err := maybeDecompress(src)
	if err != nil {
		return nil, nil, err
	}
	result.Compression = compression

	if opts.JSONPath != "" {
		all, err := selectJSONPath(r, opts.JSONPath)
		if err != nil {
			return nil, nil, err
		}
		tbl, err := buildTable(all, true, opts, result)
		if err != nil {
			return nil, nil, err
		}
		return tbl, result, nil
	}

	dec := json.NewDecoder(r)
	dec.UseNumber()

	token, err := dec.Token()
	if err != nil {
		return nil, nil, fmt.Errorf("read JSON: %w", err)
	}

	var records []map[string]json.RawMessage
	var order []string
	seen := make(map[string]bool)
	add := func(rec map[string]json.RawMessage, keys []string) {
		for _, k := range keys {
			if !seen[k] {
				seen[k] = true
				order = append(order, k)
			}
		}
		records = append(records, rec)
	}

	switch token {
	case json.Delim('['):
		for dec.More() {
			var raw json.RawMessage
			if err := dec.Decode(&raw); err != nil {
				return nil, nil, fmt.Errorf("decode record %d: %w", len(records)+1, err)
			}
			rec, keys, err := decodeObject(raw)
			if err != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("record %d: %v", len(records)+1, err))
				continue
			}
			add(rec, keys)
		}
	case json.Delim('{'):
		// JSON Lines: the first object is already open, so re-read the
		// stream as a sequence of whole objects.
		first, err := readOpenObject(dec)
		if err != nil {
			return nil, nil, fmt.Errorf("decode record 1: %w", err)
		}
		rec, keys, _ := decodeObject(first)
		add(rec, keys)
		for {
			var raw json.RawMessage
			err := dec.Decode(&raw)
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				return nil, nil, fmt.Errorf("decode record %d: %w", len(records)+1, err)
			}
			rec, keys, err := decodeObject(raw)
			if err != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("record %d: %v", len(records)+1, err))
				continue
			}
			add(rec, keys)
		}
	default:
		return nil, nil, fmt.Errorf("unsupported JSON format: expected objects or an array of objects")
	}

	if len(records) == 0 {
		return nil, nil, fmt.Errorf("no records found in JSON")
	}

	all := make([][]string, 0, len(records)+1)
	all = append(all, order)
	for _, rec := range records {
		row := make([]string, len(order))
		for i, k := range order {
			row[i] = jsonText(rec[k])
		}
		all = append(all, row)
	}
	tbl, err := buildTable(all, true, opts, result)
	if err != nil {
		return nil, nil, err
	}
	return tbl, result, nil
}

// decodeObject decodes one JSON object and returns its keys in document order.
func decodeObject(raw json.RawMessage) (map[string]json.RawMessage, []string, error) {
	if s := strings.TrimSpace(string(raw)); !strings.HasPrefix(s, "{") {
		return nil, nil, fmt.Errorf("expected object, got %s", s)
	}
	return decodeMembers(raw)
}

// readOpenObject reads the members of an object whose '{' was consumed and
// returns the object re-encoded as raw JSON.
func readOpenObject(dec *json.Decoder) (json.RawMessage, error) {
	var b strings.Builder
	b.WriteByte('{')
	first := true
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("invalid object key %v", tok)
		}
		var val json.RawMessage
		if err := dec.Decode(&val); err != nil {
			return nil, err
		}
		if !first {
			b.WriteByte(',')
		}
		first = false
		kb, _ := json.Marshal(key)
		b.Write(kb)
		b.WriteByte(':')
		b.Write(val)
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	b.WriteByte('}')
	return json.RawMessage(b.String()), nil
}

// decodeMembers splits an object into members, keeping key order.
func decodeMembers(raw json.RawMessage) (map[string]json.RawMessage, []string, error) {
	dec := json.NewDecoder(strings.NewReader(string(raw)))
	if _, err := dec.Token(); err != nil {
		return nil, nil, err
	}
	rec := make(map[string]json.RawMessage)
	var keys []string
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, nil, err
		}
		key := tok.(string)
		var val json.RawMessage
		if err := dec.Decode(&val); err != nil {
			return nil, nil, err
		}
		if _, dup := rec[key]; !dup {
			keys = append(keys, key)
		}
		rec[key] = val
	}
	return rec, keys, nil
}

// jsonText renders a JSON value as cell text: strings unquoted, null and
// missing values empty, everything else verbatim.
func jsonText(raw json.RawMessage) string {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return ""
	}
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(raw, &str); err == nil {
			return str
		}
	}
	return s
}

// selectJSONPath applies a JSONPath expression to a whole document and
// returns a header row followed by one row per selected object.
func selectJSONPath(r io.Reader, expr string) ([][]string, error) {
	x, err := jp.ParseString(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid JSONPath %q: %w", expr, err)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read JSON: %w", err)
	}
	doc, err := oj.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse JSON: %w", err)
	}

	found := x.Get(doc)
	if len(found) == 1 {
		if arr, ok := found[0].([]any); ok {
			found = arr
		}
	}
	var records []map[string]any
	seen := make(map[string]bool)
	var order []string
	for i, v := range found {
		obj, ok := v.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("JSONPath %q: result %d is %T, not an object", expr, i+1, v)
		}
		for k := range obj {
			if !seen[k] {
				seen[k] = true
				order = append(order, k)
			}
		}
		records = append(records, obj)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("JSONPath %q selected no records", expr)
	}
	sort.Strings(order)

	all := make([][]string, 0, len(records)+1)
	all = append(all, order)
	for _, rec := range records {
		row := make([]string, len(order))
		for i, k := range order {
			switch v := rec[k].(type) {
			case nil:
			case string:
				row[i] = v
			default:
				row[i] = oj.JSON(v, &oj.Options{Sort: true})
			}
		}
		all = append(all, row)
	}
	return all, nil
}
