package main

import (
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"tally/internal/tui"
)

func newReviewCmd(a *app) *cobra.Command {
	var sf sessionFlags
	var output string
	cmd := &cobra.Command{
		Use:   "review",
		Short: "Review a dataset in the terminal",
		Long: `Opens the terminal front end on a dataset. Digits pick a label or rating,
space toggles a multi-label option, e edits free-form answers, enter commits,
←/→ move between records, s saves the output file and q quits.

Commits are journaled, so running review again with the same --session
resumes where the last run stopped.`,
		Example: `  tally review --dataset reviews.csv --type label --labels pos,neg
  tally review --dataset notes.jsonl --text-field body --type text`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sf.apply(cmd.Flags(), a.cfg)
			if cmd.Flags().Changed("output") {
				a.cfg.Output = output
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			st, err := a.openStore()
			if err != nil {
				return err
			}
			defer st.Close()
			up, err := a.uploader()
			if err != nil {
				return err
			}
			wb, err := a.openWorkbench(ctx, st, up)
			if err != nil {
				return err
			}
			return tui.Run(ctx, wb, a.cfg.Output)
		},
	}
	sf.register(cmd.Flags())
	cmd.Flags().StringVarP(&output, "output", "o", "", "file written by s (csv, jsonl or md by extension)")
	return cmd
}
