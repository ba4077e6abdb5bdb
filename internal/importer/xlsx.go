package importer

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/SimonWaldherr/tinyedit/internal/storage"
)

// ============================================================================
// XLSX Import
// ============================================================================

// ReadXLSX loads one worksheet (opts.Sheet, default the first) into a table.
// Cells are read as raw values, so dates arrive as spreadsheet serial
// numbers and are typed numeric by inference.
func ReadXLSX(src io.Reader, opts *Options) (*storage.Table, *Result, error) {
	if opts == nil {
		opts = &Options{}
	}
	applyDefaults(opts)

	f, err := excelize.OpenReader(src)
	if err != nil {
		return nil, nil, fmt.Errorf("open xlsx: %w", err)
	}
	defer f.Close()

	sheet := opts.Sheet
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, nil, fmt.Errorf("no sheets found in XLSX data")
		}
		sheet = sheets[0]
	}
	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	if len(rows) == 0 {
		return nil, nil, fmt.Errorf("no rows found in sheet %q", sheet)
	}

	result := &Result{Encoding: "utf-8", Compression: "none", Errors: make([]string, 0)}
	result.HadHeader = decideHeader(rows, opts.HeaderMode)
	tbl, err := buildTable(rows, result.HadHeader, opts, result)
	if err != nil {
		return nil, nil, err
	}
	return tbl, result, nil
}
