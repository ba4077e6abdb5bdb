package plan

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Format names a plan file encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatForPath picks the encoding from a file extension; anything that is
// not .json is read as YAML, which also accepts JSON.
func FormatForPath(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return FormatJSON
	}
	return FormatYAML
}

// Decode reads a single plan. Unknown fields are rejected.
func Decode(r io.Reader, format Format) (Plan, error) {
	var p Plan
	switch format {
	case FormatJSON:
		dec := json.NewDecoder(r)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&p); err != nil {
			return Plan{}, fmt.Errorf("decode plan json: %w", err)
		}
	case FormatYAML, "":
		dec := yaml.NewDecoder(r)
		dec.KnownFields(true)
		if err := dec.Decode(&p); err != nil {
			if err == io.EOF {
				return Plan{}, fmt.Errorf("decode plan yaml: empty document")
			}
			return Plan{}, fmt.Errorf("decode plan yaml: %w", err)
		}
	default:
		return Plan{}, fmt.Errorf("unsupported plan format %q", format)
	}
	return p, nil
}

// LoadFile reads a plan from a .json, .yaml or .yml file.
func LoadFile(path string) (Plan, error) {
	f, err := os.Open(path)
	if err != nil {
		return Plan{}, fmt.Errorf("open plan: %w", err)
	}
	defer f.Close()
	return Decode(f, FormatForPath(path))
}

// Encode writes p in the given format.
func Encode(w io.Writer, p Plan, format Format) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(p)
	case FormatYAML, "":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(p); err != nil {
			return err
		}
		return enc.Close()
	}
	return fmt.Errorf("unsupported plan format %q", format)
}
