// Package config loads tinyedit settings.
//
// Settings come from built-in defaults, then an optional tinyedit.yaml
// (current directory or $HOME/.config/tinyedit), then TINYEDIT_* environment
// variables. Command-line flags are applied by the caller on top.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/SimonWaldherr/tinyedit/internal/executor"
	"github.com/SimonWaldherr/tinyedit/internal/exporter"
	"github.com/SimonWaldherr/tinyedit/internal/plan"
)

// EnvPrefix prefixes environment overrides, e.g. TINYEDIT_PREVIEW_ROWS.
const EnvPrefix = "TINYEDIT"

// Config holds engine and CLI settings.
type Config struct {
	PreviewRows    int    `mapstructure:"preview_rows"`
	ExampleLimit   int    `mapstructure:"example_limit"`
	IndexCap       int    `mapstructure:"index_cap"`
	DateSampleSize int    `mapstructure:"date_sample_size"`
	DefaultFlags   string `mapstructure:"default_flags"`
	OutputFormat   string `mapstructure:"output_format"`

	// File is the config file that was read, empty when none was found.
	File string `mapstructure:"-"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		PreviewRows:    executor.DefaultPreviewRows,
		ExampleLimit:   executor.DefaultExampleLimit,
		IndexCap:       executor.DefaultIndexCap,
		DateSampleSize: executor.DefaultDateSampleSize,
		DefaultFlags:   plan.DefaultFlags,
		OutputFormat:   string(exporter.FormatCSV),
	}
}

// Load reads settings. An empty path searches for tinyedit.yaml; a missing
// file is not an error unless path names it explicitly.
func Load(path string) (Config, error) {
	def := Default()

	v := viper.New()
	v.SetDefault("preview_rows", def.PreviewRows)
	v.SetDefault("example_limit", def.ExampleLimit)
	v.SetDefault("index_cap", def.IndexCap)
	v.SetDefault("date_sample_size", def.DateSampleSize)
	v.SetDefault("default_flags", def.DefaultFlags)
	v.SetDefault("output_format", def.OutputFormat)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("tinyedit")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "tinyedit"))
		}
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	cfg.File = v.ConfigFileUsed()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects settings the engine cannot use.
func (c Config) Validate() error {
	var errs []error
	for _, f := range []struct {
		name string
		n    int
	}{
		{"preview_rows", c.PreviewRows},
		{"example_limit", c.ExampleLimit},
		{"index_cap", c.IndexCap},
		{"date_sample_size", c.DateSampleSize},
	} {
		if f.n <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %d", f.name, f.n))
		}
	}
	for _, r := range c.DefaultFlags {
		if !strings.ContainsRune(plan.AllowedFlags, r) {
			errs = append(errs, fmt.Errorf("default_flags: unsupported flag '%c'", r))
		}
	}
	if _, err := exporter.ParseFormat(c.OutputFormat); err != nil {
		errs = append(errs, fmt.Errorf("output_format: %w", err))
	}
	return errors.Join(errs...)
}

// ExecutorOptions maps the settings onto executor options.
func (c Config) ExecutorOptions(logger *slog.Logger) executor.Options {
	return executor.Options{
		MaxPreviewRows: c.PreviewRows,
		ExampleLimit:   c.ExampleLimit,
		IndexCap:       c.IndexCap,
		DateSampleSize: c.DateSampleSize,
		Logger:         logger,
	}
}

// ApplyDefaultFlags fills an empty plan flag string from the settings.
func (c Config) ApplyDefaultFlags(p plan.Plan) plan.Plan {
	if strings.TrimSpace(p.Flags) == "" {
		p.Flags = c.DefaultFlags
	}
	return p
}
