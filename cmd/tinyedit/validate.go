package main

import (
	"errors"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/SimonWaldherr/tinyedit/internal/importer"
	"github.com/SimonWaldherr/tinyedit/internal/plan"
)

func newValidateCmd(a *app) *cobra.Command {
	var headers []string
	var header string
	cmd := &cobra.Command{
		Use:   "validate PLAN [DATA]",
		Short: "Check a plan file against dataset headers",
		Long: `validate normalizes the plan and reports every problem at once.

Headers come from DATA or from --headers.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := plan.LoadFile(args[0])
			if err != nil {
				return err
			}
			p = a.cfg.ApplyDefaultFlags(p)

			cols := headers
			if len(args) == 2 {
				tbl, _, err := importer.LoadFile(args[1], &importer.Options{HeaderMode: header})
				if err != nil {
					return err
				}
				cols = tbl.Headers()
			}
			if len(cols) == 0 {
				return fmt.Errorf("no headers: pass DATA or --headers")
			}

			prepared, err := plan.Prepare(p, cols)
			var verr *plan.ValidationError
			if errors.As(err, &verr) {
				printValidation(a.stdout, args[0], verr)
				return fmt.Errorf("%d problems found", len(verr.Errors))
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "%s %s: plan is valid\n", color.GreenString("✓"), args[0])
			return plan.Encode(a.stdout, prepared, plan.FormatYAML)
		},
	}
	cmd.Flags().StringSliceVar(&headers, "headers", nil, "Dataset headers (comma separated)")
	cmd.Flags().StringVar(&header, "header", "auto", "Header row: auto, present or absent")
	return cmd
}
