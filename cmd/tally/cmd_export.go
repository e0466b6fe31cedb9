package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"tally/internal/export"
	"tally/internal/format"
	"tally/internal/review"
	"tally/internal/store"
)

func newExportCmd(a *app) *cobra.Command {
	var (
		session string
		outFmt  string
		output  string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write a stored session's annotations as CSV, JSONL or a table",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if session == "" {
				session = a.cfg.Session
			}
			examples, err := a.storedExamples(cmd, session)
			if err != nil {
				return err
			}

			var w io.Writer = cmd.OutOrStdout()
			if output != "" {
				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("create output: %w", err)
				}
				defer f.Close()
				w = f
				if !cmd.Flags().Changed("format") {
					outFmt = string(export.FormatForPath(output))
				}
			}

			switch outFmt {
			case "table", "ascii":
				err = export.WriteTable(w, examples, format.ASCII)
			default:
				var f export.Format
				if f, err = export.ParseFormat(outFmt); err != nil {
					return err
				}
				err = export.Write(w, f, examples)
			}
			if err != nil {
				return err
			}
			if output != "" {
				fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %d annotations to %s\n", len(examples), output)
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&session, "session", "", "stored session name (default from config)")
	f.StringVar(&outFmt, "format", "csv", "csv, jsonl, md or table")
	f.StringVarP(&output, "output", "o", "", "write to this file instead of stdout")
	return cmd
}

// storedExamples reads a session's commit log from the journal.
func (a *app) storedExamples(cmd *cobra.Command, session string) ([]review.AnnotatedExample, error) {
	st, err := a.openStore()
	if err != nil {
		return nil, err
	}
	defer st.Close()
	if _, err := st.GetSession(cmd.Context(), session); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("no stored session %q (see tally sessions)", session)
		}
		return nil, err
	}
	return st.Examples(cmd.Context(), session)
}
