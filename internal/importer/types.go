package importer

import (
	"strconv"
	"strings"
	"time"

	"github.com/SimonWaldherr/tinyedit/internal/storage"
)

// ============================================================================
// Type Inference - Detect column types from sample data
// ============================================================================

// inferColumnTypes analyzes sample data to determine the best column type
// for each column. It tries in order: BOOL → INT → FLOAT → TIME → TEXT.
func inferColumnTypes(sampleData [][]string, numCols int, opts *Options) []storage.ColType {
	types := make([]storage.ColType, numCols)

	// Initialize type vote counters per column
	votes := make([]map[storage.ColType]int, numCols)
	for i := range votes {
		votes[i] = make(map[storage.ColType]int)
	}

	for _, row := range sampleData {
		for colIdx := 0; colIdx < numCols; colIdx++ {
			var val string
			if colIdx < len(row) {
				val = strings.TrimSpace(row[colIdx])
			}

			// Skip null values in type inference
			if isNullValue(val, opts.NullLiterals) {
				continue
			}
			votes[colIdx][detectValueType(val, opts.DateTimeFormats)]++
		}
	}

	for colIdx := 0; colIdx < numCols; colIdx++ {
		types[colIdx] = determineColumnType(votes[colIdx])
	}
	return types
}

// detectValueType attempts to parse a single value and returns its most specific type.
func detectValueType(val string, dateFormats []string) storage.ColType {
	if val == "" {
		return storage.TextType
	}

	// Only spelled-out booleans; 0/1 stay numeric.
	switch strings.ToLower(val) {
	case "true", "false", "yes", "no":
		return storage.BoolType
	}

	if _, err := strconv.ParseInt(val, 10, 64); err == nil {
		return storage.IntType
	}
	if _, err := strconv.ParseFloat(val, 64); err == nil {
		return storage.Float64Type
	}
	for _, layout := range dateFormats {
		if _, err := time.Parse(layout, val); err == nil {
			return storage.TimeType
		}
	}
	return storage.TextType
}

// determineColumnType picks the final type based on vote counts.
// Strategy: a single type must cover every non-null value, ints widen to
// FLOAT when mixed with floats, anything else is TEXT.
func determineColumnType(votes map[storage.ColType]int) storage.ColType {
	total := 0
	for _, count := range votes {
		total += count
	}
	if total == 0 {
		return storage.TextType
	}

	switch {
	case votes[storage.BoolType] == total:
		return storage.BoolType
	case votes[storage.TimeType] == total:
		return storage.TimeType
	case votes[storage.IntType] == total:
		return storage.IntType
	case votes[storage.IntType]+votes[storage.Float64Type] == total:
		return storage.Float64Type
	}
	return storage.TextType
}

// isNullValue checks if a value should be treated as null.
func isNullValue(val string, nullLiterals []string) bool {
	trimmed := strings.ToLower(strings.TrimSpace(val))
	for _, nl := range nullLiterals {
		if trimmed == strings.ToLower(strings.TrimSpace(nl)) {
			return true
		}
	}
	return false
}

// convertValue converts a string value to the Go type of the column. Text
// is kept verbatim.
func convertValue(val string, colType storage.ColType, dateFormats []string, nullLiterals []string) (any, error) {
	if isNullValue(val, nullLiterals) {
		return nil, nil
	}
	trimmed := strings.TrimSpace(val)

	switch colType {
	case storage.BoolType:
		return parseBool(trimmed)
	case storage.IntType:
		return strconv.ParseInt(trimmed, 10, 64)
	case storage.Float64Type:
		return strconv.ParseFloat(trimmed, 64)
	case storage.TimeType, storage.DateType:
		return parseDateTime(trimmed, dateFormats)
	default:
		return val, nil
	}
}

// parseBool handles various boolean representations.
func parseBool(val string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(val)) {
	case "true", "t", "yes", "y", "1":
		return true, nil
	case "false", "f", "no", "n", "0":
		return false, nil
	default:
		return strconv.ParseBool(val)
	}
}

// parseDateTime tries multiple datetime formats.
func parseDateTime(val string, formats []string) (time.Time, error) {
	for _, layout := range formats {
		if t, err := time.Parse(layout, val); err == nil {
			return t, nil
		}
	}
	return time.Time{}, strconv.ErrSyntax
}
