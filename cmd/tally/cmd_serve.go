package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"tally/internal/config"
	"tally/internal/logging"
	"tally/internal/web"
)

const shutdownTimeout = 5 * time.Second

func newServeCmd(a *app) *cobra.Command {
	var addr string
	var sf sessionFlags
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the web review UI",
		Long: `Starts the browser front end. Open the printed URL, upload a dataset and
pick a question, then label records one at a time.

When the configuration (or --dataset and --type) names a dataset, the
session is opened at startup and the setup form is skipped.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("addr") {
				a.cfg.Server.Addr = addr
			}
			sf.apply(cmd.Flags(), a.cfg)
			return runServe(cmd.Context(), a, cmd)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default "+config.DefaultAddr+")")
	sf.register(cmd.Flags())
	return cmd
}

func runServe(parent context.Context, a *app, cmd *cobra.Command) error {
	log := logging.New("serve")
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
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

	srv, err := web.NewServer(web.Config{
		Settings: a.cfg,
		Store:    st,
		Uploader: up,
		Logger:   logging.New("web"),
	})
	if err != nil {
		return err
	}
	if a.cfg.Dataset.Path != "" && a.cfg.Question.Type != "" {
		wb, err := a.openWorkbench(ctx, st, up)
		if err != nil {
			return fmt.Errorf("open session: %w", err)
		}
		srv.Attach(wb)
		log.Info("session preloaded", slog.String("session", wb.Name()), slog.String("dataset", wb.DatasetPath()))
	}

	ln, err := net.Listen("tcp", a.cfg.Server.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", a.cfg.Server.Addr, err)
	}
	httpSrv := &http.Server{Handler: srv.Handler(), ReadHeaderTimeout: 10 * time.Second}
	fmt.Fprintf(cmd.OutOrStdout(), "tally is running at http://%s\n", ln.Addr())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("web server listening", slog.String("addr", ln.Addr().String()))
		if err := httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
