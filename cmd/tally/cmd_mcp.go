package main

import (
	"context"

	"github.com/spf13/cobra"

	"tally/internal/logging"
	mcpserver "tally/internal/mcp"
)

func newMCPCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the review loop as MCP tools over stdio",
		Long: `Starts an MCP server over stdin/stdout. An MCP client (an editor or an
agent) calls start_session, get_record, select, commit and the other tools
to review a dataset.

The server watches its parent process and exits when the client goes away.
Logs go to stderr so stdout stays reserved for the protocol.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := a.openStore()
			if err != nil {
				return err
			}
			defer st.Close()
			up, err := a.uploader()
			if err != nil {
				return err
			}
			log := logging.New("mcp")
			srv := mcpserver.NewServer(mcpserver.Options{
				Settings: a.cfg,
				Store:    st,
				Uploader: up,
				Logger:   log,
				Version:  version,
			})

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			mcpserver.WatchParent(ctx, log, cancel)
			return srv.Run(ctx)
		},
	}
}
