// Package main provides the tinyedit command line tool.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/SimonWaldherr/tinyedit/internal/config"
)

// version is set at build time via ldflags
var version = "dev"

// app carries the state shared by all subcommands.
type app struct {
	stdout io.Writer
	stderr io.Writer

	configPath string
	verbose    bool

	cfg    config.Config
	logger *slog.Logger
}

func main() {
	if err := newRootCmd(os.Stdout, os.Stderr).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("tinyedit:"), err)
		os.Exit(1)
	}
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	a := &app{stdout: stdout, stderr: stderr}

	root := &cobra.Command{
		Use:   "tinyedit",
		Short: "Find and replace text in tabular data with declarative plans",
		Long: `tinyedit applies find/replace plans to CSV, TSV, XLSX and JSON datasets.

A plan names an intent (find or replace), a regular expression, target
columns, a replacement and an optional row filter. Plans come from a YAML or
JSON file or from flags.

Examples:
  tinyedit run --plan fix-emails.yaml people.csv --out people.fixed.csv
  tinyedit run --pattern 'example\.com' --filter "Country == 'US'" people.csv
  tinyedit run --plan dates.yaml 'exports/**/*.csv' --out-dir cleaned
  tinyedit filter "Age >= 30 and __rownum__ == 2" people.csv
  tinyedit dates --dayfirst auto "paid 03/04/2021" "31/12/2020"`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	root.PersistentFlags().StringVar(&a.configPath, "config", "", "Config file (default ./tinyedit.yaml)")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Log filter and execution details to stderr")

	root.AddCommand(
		newRunCmd(a),
		newValidateCmd(a),
		newFilterCmd(a),
		newDatesCmd(a),
	)
	return root
}

// setup loads the configuration and builds the logger.
func (a *app) setup() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	a.cfg = cfg

	level := slog.LevelWarn
	if a.verbose {
		level = slog.LevelDebug
	}
	a.logger = slog.New(slog.NewTextHandler(a.stderr, &slog.HandlerOptions{Level: level}))
	if cfg.File != "" {
		a.logger.Debug("loaded config", "file", cfg.File)
	}
	return nil
}
