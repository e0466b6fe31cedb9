package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"tally/internal/dataset"
	"tally/internal/format"
)

func newInspectCmd(_ *app) *cobra.Command {
	var (
		limit     int
		fileFmt   string
		tableMode string
		width     int
	)
	cmd := &cobra.Command{
		Use:   "inspect <file>",
		Short: "Print a dataset's columns and first records",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var f dataset.Format
			if fileFmt != "" {
				var err error
				if f, err = dataset.ParseFormat(fileFmt); err != nil {
					return err
				}
			}
			mode, err := format.ParseMode(tableMode)
			if err != nil {
				return err
			}
			ds, err := dataset.LoadFile(args[0], f)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Records: %d\n", ds.Len())
			fmt.Fprintf(out, "Columns: %d\n", len(ds.Columns))
			if guess := dataset.SuggestTextColumn(ds.Columns); guess != "" {
				fmt.Fprintf(out, "Text field: %s\n", guess)
			}
			fmt.Fprintln(out)

			cols := []format.Column{{Title: "#", Numeric: true}}
			for _, c := range ds.Columns {
				cols = append(cols, format.Column{Title: c, Width: width})
			}
			tb := format.NewTable(mode, cols...)
			for _, rec := range ds.Head(limit) {
				row := []any{rec.Index}
				for _, c := range ds.Columns {
					row = append(row, rec.Value(c))
				}
				tb.Add(row...)
			}
			_, err = tb.WriteTo(out)
			return err
		},
	}
	f := cmd.Flags()
	f.IntVarP(&limit, "limit", "n", 5, "number of records to show (-1 for all)")
	f.StringVar(&fileFmt, "format", "", "dataset format: csv, tsv or jsonl (default: by extension)")
	f.StringVar(&tableMode, "table", "ascii", "table style: ascii or markdown")
	f.IntVar(&width, "width", 40, "truncate cells to this many characters")
	return cmd
}
