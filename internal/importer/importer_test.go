// Tests for the importer package. These exercises cover common CSV, JSON
// and XLSX load scenarios: delimiter detection, header handling, type
// inference, null handling and compressed input.
package importer

import (
	"bytes"
	"compress/gzip"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/ulikunitz/xz"
	"github.com/xuri/excelize/v2"

	"github.com/SimonWaldherr/tinyedit/internal/storage"
)

func column(t *testing.T, tbl *storage.Table, name string) *storage.Column {
	t.Helper()
	c, ok := tbl.Column(name)
	if !ok {
		t.Fatalf("missing column %q in %v", name, tbl.Headers())
	}
	return c
}

// TestReadCSV_Basic verifies a simple CSV with header is loaded and
// rows/columns are recorded as expected.
func TestReadCSV_Basic(t *testing.T) {
	csvData := `id,name,age
1,Alice,30
2,Bob,25
3,Charlie,35`

	tbl, result, err := ReadCSV(strings.NewReader(csvData), nil)
	if err != nil {
		t.Fatalf("ReadCSV failed: %v", err)
	}
	if result.Rows != 3 || tbl.Len() != 3 {
		t.Errorf("Expected 3 rows, got %d/%d", result.Rows, tbl.Len())
	}
	if !result.HadHeader {
		t.Errorf("Expected header to be detected")
	}
	if result.Delimiter != ',' {
		t.Errorf("Expected comma delimiter, got %c", result.Delimiter)
	}
	if !reflect.DeepEqual(tbl.Headers(), []string{"id", "name", "age"}) {
		t.Errorf("headers = %v", tbl.Headers())
	}
	if tbl.Name != "dataset" {
		t.Errorf("table name = %q", tbl.Name)
	}
}

// TestReadCSV_NoHeader verifies synthetic column names (col_1, col_2, ...).
func TestReadCSV_NoHeader(t *testing.T) {
	csvData := `1,Alice,30
2,Bob,25
3,Charlie,35`

	_, result, err := ReadCSV(strings.NewReader(csvData), &Options{HeaderMode: "absent"})
	if err != nil {
		t.Fatalf("ReadCSV failed: %v", err)
	}
	if result.Rows != 3 {
		t.Errorf("Expected 3 rows, got %d", result.Rows)
	}
	expected := []string{"col_1", "col_2", "col_3"}
	if !reflect.DeepEqual(result.ColumnNames, expected) {
		t.Errorf("column names = %v; want %v", result.ColumnNames, expected)
	}
}

// TestReadCSV_TextualHeader keeps a fully textual first row as header
// even when the body is textual too.
func TestReadCSV_TextualHeader(t *testing.T) {
	csvData := "Name;Country\nAlice;US\nBob;DE\n"
	tbl, result, err := ReadCSV(strings.NewReader(csvData), nil)
	if err != nil {
		t.Fatalf("ReadCSV failed: %v", err)
	}
	if result.Delimiter != ';' || !result.HadHeader {
		t.Fatalf("delimiter %q header %v", result.Delimiter, result.HadHeader)
	}
	if got := column(t, tbl, "Country").Values; !reflect.DeepEqual(got, []any{"US", "DE"}) {
		t.Fatalf("Country = %v", got)
	}
}

// TestReadCSV_TypeInference checks INT, FLOAT, BOOL and TEXT detection.
func TestReadCSV_TypeInference(t *testing.T) {
	csvData := `id,price,active,name
1,9.5,true,Alice
2,10,false,Bob
3,,yes,Carol`

	tbl, result, err := ReadCSV(strings.NewReader(csvData), &Options{HeaderMode: "present"})
	if err != nil {
		t.Fatalf("ReadCSV failed: %v", err)
	}
	want := []storage.ColType{storage.IntType, storage.Float64Type, storage.BoolType, storage.TextType}
	if !reflect.DeepEqual(result.ColumnTypes, want) {
		t.Fatalf("types = %v; want %v", result.ColumnTypes, want)
	}
	if v := column(t, tbl, "id").Values[2]; v != int64(3) {
		t.Errorf("id[2] = %v (%T)", v, v)
	}
	if v := column(t, tbl, "price").Values[1]; v != float64(10) {
		t.Errorf("price[1] = %v (%T)", v, v)
	}
	if v := column(t, tbl, "price").Values[2]; v != nil {
		t.Errorf("price[2] = %v; want nil", v)
	}
}

// TestReadCSV_DatesStayText keeps date-looking text untouched unless
// TIME layouts are configured.
func TestReadCSV_DatesStayText(t *testing.T) {
	csvData := "joined\n2024-05-01\n2024-06-01\n"
	tbl, _, err := ReadCSV(strings.NewReader(csvData), &Options{HeaderMode: "present"})
	if err != nil {
		t.Fatalf("ReadCSV failed: %v", err)
	}
	c := column(t, tbl, "joined")
	if c.Type != storage.TextType || c.Values[0] != "2024-05-01" {
		t.Fatalf("joined = %v %v", c.Type, c.Values)
	}

	tbl, _, err = ReadCSV(strings.NewReader(csvData), &Options{HeaderMode: "present", DateTimeFormats: []string{"2006-01-02"}})
	if err != nil {
		t.Fatalf("ReadCSV failed: %v", err)
	}
	if c := column(t, tbl, "joined"); c.Type != storage.TimeType {
		t.Fatalf("joined type = %v; want TIME", c.Type)
	}
}

// TestReadCSV_NullHandling verifies that null literals become nil cells.
func TestReadCSV_NullHandling(t *testing.T) {
	csvData := `id,name,age
1,Alice,30
2,,25
3,N/A,`

	tbl, _, err := ReadCSV(strings.NewReader(csvData), &Options{HeaderMode: "present", RawText: true})
	if err != nil {
		t.Fatalf("ReadCSV failed: %v", err)
	}
	names := column(t, tbl, "name").Values
	if names[1] != nil || names[2] != nil {
		t.Errorf("expected nil names, got %v", names)
	}
	if v := column(t, tbl, "age").Values[2]; v != nil {
		t.Errorf("expected nil age, got %v", v)
	}
	if c := column(t, tbl, "id"); c.Type != storage.TextType || c.Values[0] != "1" {
		t.Errorf("RawText id = %v %v", c.Type, c.Values[0])
	}
}

// TestReadCSV_MixedColumn keeps unparsable cells as text.
func TestReadCSV_MixedColumn(t *testing.T) {
	var b strings.Builder
	b.WriteString("n\n")
	for i := 0; i < 5; i++ {
		b.WriteString("1\n")
	}
	b.WriteString("abc\n")

	tbl, result, err := ReadCSV(strings.NewReader(b.String()), &Options{HeaderMode: "present", SampleRecords: 5})
	if err != nil {
		t.Fatalf("ReadCSV failed: %v", err)
	}
	c := column(t, tbl, "n")
	if c.Type != storage.InterfaceType {
		t.Fatalf("type = %v; want INTERFACE", c.Type)
	}
	if c.Values[0] != int64(1) || c.Values[5] != "abc" {
		t.Fatalf("values = %v", c.Values)
	}
	if len(result.Errors) != 1 {
		t.Fatalf("errors = %v", result.Errors)
	}
}

// TestReadCSV_TSV ensures a tab delimiter is detected.
func TestReadCSV_TSV(t *testing.T) {
	tsvData := "id\tname\tage\n1\tAlice\t30\n2\tBob\t25\n"
	_, result, err := ReadCSV(strings.NewReader(tsvData), nil)
	if err != nil {
		t.Fatalf("ReadCSV failed: %v", err)
	}
	if result.Delimiter != '\t' {
		t.Errorf("Expected tab delimiter, got %q", result.Delimiter)
	}
}

// TestReadCSV_QuotedFields handles embedded delimiters and quotes.
func TestReadCSV_QuotedFields(t *testing.T) {
	csvData := `id,note
1,"Hello, world"
2,"She said ""hi"""`

	tbl, _, err := ReadCSV(strings.NewReader(csvData), &Options{HeaderMode: "present"})
	if err != nil {
		t.Fatalf("ReadCSV failed: %v", err)
	}
	want := []any{"Hello, world", `She said "hi"`}
	if got := column(t, tbl, "note").Values; !reflect.DeepEqual(got, want) {
		t.Fatalf("note = %q; want %q", got, want)
	}
}

// TestReadCSV_CRLFAndBOM strips the UTF-8 BOM from the first header.
func TestReadCSV_CRLFAndBOM(t *testing.T) {
	csvData := "\xEF\xBB\xBFid,name\r\n1,Alice\r\n2,Bob\r\n"
	tbl, result, err := ReadCSV(strings.NewReader(csvData), &Options{HeaderMode: "present"})
	if err != nil {
		t.Fatalf("ReadCSV failed: %v", err)
	}
	if result.Encoding != "utf-8-bom" {
		t.Errorf("encoding = %q", result.Encoding)
	}
	if !reflect.DeepEqual(tbl.Headers(), []string{"id", "name"}) {
		t.Fatalf("headers = %q", tbl.Headers())
	}
	if v := column(t, tbl, "name").Values[1]; v != "Bob" {
		t.Fatalf("name[1] = %q", v)
	}
}

// TestReadCSV_DuplicateHeaders deduplicates repeated names.
func TestReadCSV_DuplicateHeaders(t *testing.T) {
	csvData := "name,name,name\na,b,c\n"
	tbl, _, err := ReadCSV(strings.NewReader(csvData), &Options{HeaderMode: "present"})
	if err != nil {
		t.Fatalf("ReadCSV failed: %v", err)
	}
	want := []string{"name", "name.1", "name.2"}
	if !reflect.DeepEqual(tbl.Headers(), want) {
		t.Fatalf("headers = %v; want %v", tbl.Headers(), want)
	}
}

func TestReadCSV_Compressed(t *testing.T) {
	raw := []byte("id,name\n1,A\n2,B\n")

	var gz bytes.Buffer
	gw := gzip.NewWriter(&gz)
	_, _ = gw.Write(raw)
	gw.Close()

	var xzBuf bytes.Buffer
	xw, err := xz.NewWriter(&xzBuf)
	if err != nil {
		t.Fatalf("xz writer: %v", err)
	}
	_, _ = xw.Write(raw)
	xw.Close()

	for name, tc := range map[string]struct {
		data []byte
		want string
	}{
		"gzip": {gz.Bytes(), "gzip"},
		"xz":   {xzBuf.Bytes(), "xz"},
	} {
		t.Run(name, func(t *testing.T) {
			tbl, res, err := ReadCSV(bytes.NewReader(tc.data), &Options{HeaderMode: "present"})
			if err != nil {
				t.Fatalf("ReadCSV failed: %v", err)
			}
			if res.Compression != tc.want || tbl.Len() != 2 {
				t.Fatalf("compression %q rows %d", res.Compression, tbl.Len())
			}
		})
	}
}

func TestReadCSV_Empty(t *testing.T) {
	if _, _, err := ReadCSV(strings.NewReader(""), nil); err == nil {
		t.Fatalf("expected error for empty input")
	}
}

// TestReadJSON_ArrayOfObjects keeps first-seen key order across records.
func TestReadJSON_ArrayOfObjects(t *testing.T) {
	jsonData := `[
		{"id": 1, "name": "Alice", "tags": ["a"]},
		{"id": 2, "name": null, "age": 30}
	]`
	tbl, res, err := ReadJSON(strings.NewReader(jsonData), nil)
	if err != nil {
		t.Fatalf("ReadJSON failed: %v", err)
	}
	if !reflect.DeepEqual(tbl.Headers(), []string{"id", "name", "tags", "age"}) {
		t.Fatalf("headers = %v", tbl.Headers())
	}
	if res.Rows != 2 {
		t.Fatalf("rows = %d", res.Rows)
	}
	if v := column(t, tbl, "id").Values[1]; v != int64(2) {
		t.Errorf("id[1] = %v (%T)", v, v)
	}
	if v := column(t, tbl, "name").Values[1]; v != nil {
		t.Errorf("name[1] = %v; want nil", v)
	}
	if v := column(t, tbl, "tags").Values[0]; v != `["a"]` {
		t.Errorf("tags[0] = %v", v)
	}
	if v := column(t, tbl, "age").Values[0]; v != nil {
		t.Errorf("age[0] = %v; want nil", v)
	}
}

func TestReadJSON_NDJSON(t *testing.T) {
	jsonData := "{\"id\": 1, \"name\": \"Alice\"}\n{\"id\": 2, \"name\": \"Bob\"}\n"
	tbl, _, err := ReadJSON(strings.NewReader(jsonData), nil)
	if err != nil {
		t.Fatalf("ReadJSON failed: %v", err)
	}
	if got := column(t, tbl, "name").Values; !reflect.DeepEqual(got, []any{"Alice", "Bob"}) {
		t.Fatalf("name = %v", got)
	}
}

func TestReadJSON_JSONPath(t *testing.T) {
	doc := `{"meta": {"count": 2}, "data": {"items": [
		{"name": "Alice", "id": 1, "tags": {"b": 2, "a": 1}},
		{"name": "Bob", "id": 2}
	]}}`
	tbl, res, err := ReadJSON(strings.NewReader(doc), &Options{JSONPath: "$.data.items"})
	if err != nil {
		t.Fatalf("ReadJSON failed: %v", err)
	}
	if !reflect.DeepEqual(tbl.Headers(), []string{"id", "name", "tags"}) {
		t.Fatalf("headers = %v", tbl.Headers())
	}
	if res.Rows != 2 {
		t.Fatalf("rows = %d", res.Rows)
	}
	if got := column(t, tbl, "name").Values; !reflect.DeepEqual(got, []any{"Alice", "Bob"}) {
		t.Fatalf("name = %v", got)
	}
	if v := column(t, tbl, "tags").Values[0]; v != `{"a":1,"b":2}` {
		t.Errorf("tags[0] = %v", v)
	}

	if _, _, err := ReadJSON(strings.NewReader(doc), &Options{JSONPath: "$.meta.count"}); err == nil {
		t.Fatalf("expected error for a scalar selection")
	}
	if _, _, err := ReadJSON(strings.NewReader(doc), &Options{JSONPath: "$.missing"}); err == nil {
		t.Fatalf("expected error for an empty selection")
	}
}

func TestReadJSON_Unsupported(t *testing.T) {
	if _, _, err := ReadJSON(strings.NewReader(`"just a string"`), nil); err == nil {
		t.Fatalf("expected error for scalar JSON")
	}
	if _, _, err := ReadJSON(strings.NewReader(`[]`), nil); err == nil {
		t.Fatalf("expected error for empty array")
	}
}

func TestReadXLSX(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	rows := [][]any{
		{"Name", "Age", "City"},
		{"Alice", 31, "Berlin"},
		{"Bob", 45, nil},
	}
	for i, r := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(sheet, cell, &r); err != nil {
			t.Fatalf("SetSheetRow: %v", err)
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("WriteToBuffer: %v", err)
	}

	tbl, res, err := ReadXLSX(bytes.NewReader(buf.Bytes()), nil)
	if err != nil {
		t.Fatalf("ReadXLSX failed: %v", err)
	}
	if !res.HadHeader || !reflect.DeepEqual(tbl.Headers(), []string{"Name", "Age", "City"}) {
		t.Fatalf("headers = %v", tbl.Headers())
	}
	if v := column(t, tbl, "Age").Values[1]; v != int64(45) {
		t.Errorf("Age[1] = %v (%T)", v, v)
	}
	if v := column(t, tbl, "City").Values[1]; v != nil {
		t.Errorf("City[1] = %v; want nil", v)
	}

	if _, _, err := ReadXLSX(bytes.NewReader(buf.Bytes()), &Options{Sheet: "Missing"}); err == nil {
		t.Fatalf("expected error for unknown sheet")
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string) string {
		p := filepath.Join(dir, name)
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
		return p
	}

	tbl, res, err := LoadFile(write("2024 people.tsv", "a\tb\n1\t2\n"), nil)
	if err != nil {
		t.Fatalf("LoadFile tsv: %v", err)
	}
	if res.Delimiter != '\t' || tbl.Name != "_people" {
		t.Fatalf("tsv: delimiter %q name %q", res.Delimiter, tbl.Name)
	}

	tbl, _, err = LoadFile(write("rows.json", `[{"x": "1"}]`), nil)
	if err != nil || tbl.Len() != 1 {
		t.Fatalf("LoadFile json: %v", err)
	}

	tbl, _, err = LoadFile(write("records.dat", `{"x": 1}`+"\n"), nil)
	if err != nil || !reflect.DeepEqual(tbl.Headers(), []string{"x"}) {
		t.Fatalf("LoadFile by content: %v", err)
	}

	if _, _, err := LoadFile(filepath.Join(dir, "missing.csv"), nil); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestSanitizeTableName(t *testing.T) {
	cases := map[string]string{
		"people":      "people",
		"123abc":      "abc",
		"my-data.set": "my_data_set",
		"42":          "dataset",
	}
	for in, want := range cases {
		if got := sanitizeTableName(in); got != want {
			t.Errorf("sanitizeTableName(%q) = %q; want %q", in, got, want)
		}
	}
}
