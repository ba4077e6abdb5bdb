package main

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/SimonWaldherr/tinyedit/internal/filter"
	"github.com/SimonWaldherr/tinyedit/internal/importer"
)

func newFilterCmd(a *app) *cobra.Command {
	var show int
	var header string
	cmd := &cobra.Command{
		Use:   "filter EXPR DATA",
		Short: "Show which rows a row filter selects and how it was understood",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			tbl, _, err := importer.LoadFile(args[1], &importer.Options{HeaderMode: header})
			if err != nil {
				return err
			}
			res := filter.New(a.logger).Evaluate(args[0], tbl)

			dim := color.New(color.Faint).SprintFunc()
			fmt.Fprintf(a.stdout, "normalized: %s\n", res.Normalized)
			for _, g := range res.Groups {
				mark := color.GreenString("✓")
				if !g.Recognized {
					mark = color.YellowString("?")
				}
				fmt.Fprintf(a.stdout, "  %s %s %s rows=%d\n", mark, g.Expr, dim("["+g.Path+"]"), g.Rows)
			}
			if res.SoftRecall {
				fmt.Fprintln(a.stdout, color.YellowString("  case-insensitive recall applied"))
			}
			labels := tbl.LabelsOf(res.Mask, 0)
			strs := make([]string, len(labels))
			for i, l := range labels {
				strs[i] = fmt.Sprint(l)
			}
			fmt.Fprintf(a.stdout, "selected %d of %d rows: [%s]\n", res.Mask.Count(), tbl.Len(), strings.Join(strs, " "))
			if show > 0 {
				pos := res.Mask.Positions()
				if len(pos) > show {
					pos = pos[:show]
				}
				renderColumn(a.stdout, tbl, pos)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&show, "show", 0, "Print up to N selected rows")
	cmd.Flags().StringVar(&header, "header", "auto", "Header row: auto, present or absent")
	return cmd
}
