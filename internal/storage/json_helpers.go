package storage

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

// JSONSafe converts a cell value to something json.Marshal always accepts.
// NaN and ±Inf become nil; times become RFC 3339 strings (dates without a
// clock component are rendered as YYYY-MM-DD).
func JSONSafe(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return nil
		}
		return x
	case float32:
		f := float64(x)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil
		}
		return f
	case time.Time:
		if x.Hour() == 0 && x.Minute() == 0 && x.Second() == 0 && x.Nanosecond() == 0 {
			return x.Format("2006-01-02")
		}
		return x.Format(time.RFC3339)
	case map[string]any:
		m := make(map[string]any, len(x))
		for k, vv := range x {
			m[k] = JSONSafe(vv)
		}
		return m
	case []any:
		out := make([]any, len(x))
		for i, vv := range x {
			out[i] = JSONSafe(vv)
		}
		return out
	default:
		return v
	}
}

// JSONMarshal marshals v after converting cell values to JSON-safe
// representations.
func JSONMarshal(v any) ([]byte, error) {
	return json.Marshal(JSONSafe(v))
}

// FormatValue renders a cell as text. nil renders as "".
func FormatValue(v any) string {
	if v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case bool:
		if t {
			return "True"
		}
		return "False"
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case time.Time:
		if s, ok := JSONSafe(t).(string); ok {
			return s
		}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}

// AsString returns the text of a cell and false for null cells.
func AsString(v any) (string, bool) {
	if IsNull(v) {
		return "", false
	}
	return FormatValue(v), true
}

// IsNull reports whether v is a missing value (nil or NaN).
func IsNull(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case float64:
		return math.IsNaN(x)
	}
	return false
}

// ToFloat coerces a cell to a number the way a lenient numeric conversion
// does: numbers pass through, numeric text is parsed, anything else fails.
func ToFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case float64:
		if math.IsNaN(x) {
			return 0, false
		}
		return x, true
	case bool:
		if x {
			return 1, true
		}
		return 0, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil || math.IsNaN(f) {
			return 0, false
		}
		return f, true
	}
	return 0, false
}
