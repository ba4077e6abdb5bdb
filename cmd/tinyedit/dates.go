package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/SimonWaldherr/tinyedit/internal/dates"
)

func newDatesCmd(a *app) *cobra.Command {
	var format, dayFirst string
	var whole bool
	cmd := &cobra.Command{
		Use:   "dates [flags] TEXT...",
		Short: "Normalize dates inside text snippets",
		Long: `dates rewrites every date-like token in each TEXT to one format.

With --dayfirst auto the day/month order is guessed from all TEXT arguments
together, the same way a replace run samples a column.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := dates.ParseDirective(fmt.Sprintf("%s(%s; dayfirst=%s)", dates.Sentinel, format, dayFirst))
			if err != nil {
				return err
			}
			df := d.Resolve(args)
			a.logger.Debug("date settings", "format", d.Format, "mode", d.DayFirst.String(), "dayfirst", df)

			for _, text := range args {
				var out string
				var n int
				if whole {
					if s, ok := dates.NormalizeCellAsWhole(text, d.Format, df); ok {
						out, n = s, 1
					} else {
						out = text
					}
				} else {
					out, n = dates.NormalizeDateText(text, d.Format, df)
				}
				if n == 0 {
					fmt.Fprintf(a.stdout, "%s %s\n", color.New(color.Faint).Sprint("="), out)
					continue
				}
				fmt.Fprintf(a.stdout, "%s %s\n", color.GreenString("→"), out)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", dates.DefaultFormat, "Output format using YYYY, MM, DD, HH, mm, ss")
	cmd.Flags().StringVar(&dayFirst, "dayfirst", "auto", "Day/month order: auto, true or false")
	cmd.Flags().BoolVar(&whole, "whole", false, "Treat each TEXT as one date cell (serial numbers included)")
	return cmd
}
