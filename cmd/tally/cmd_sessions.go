package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"tally/internal/display"
	"tally/internal/format"
)

func newSessionsCmd(a *app) *cobra.Command {
	var tableMode string
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List sessions stored in the journal",
		RunE: func(cmd *cobra.Command, _ []string) error {
			mode, err := format.ParseMode(tableMode)
			if err != nil {
				return err
			}
			st, err := a.openStore()
			if err != nil {
				return err
			}
			defer st.Close()
			sessions, err := st.ListSessions(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(sessions) == 0 {
				fmt.Fprintln(out, "No stored sessions. Start one with 'tally review' or 'tally serve'.")
				return nil
			}
			cols := format.Titles("Session", "Dataset", "Question", "Labels", "Committed", "Created")
			cols[3].Width = 30
			cols[4].Numeric = true
			tb := format.NewTable(mode, cols...)
			for _, s := range sessions {
				created := ""
				if !s.CreatedAt.IsZero() {
					created = s.CreatedAt.Local().Format("2006-01-02 15:04")
				}
				tb.Add(s.Name, s.DatasetPath, display.QuestionType(string(s.QuestionType)),
					display.LabelList(s.Labels), s.Committed, created)
			}
			_, err = tb.WriteTo(out)
			return err
		},
	}
	cmd.Flags().StringVar(&tableMode, "table", "ascii", "table style: ascii or markdown")
	return cmd
}
