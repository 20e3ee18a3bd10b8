package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	"github.com/hazyhaar/eriflow/report"
)

func (a *app) serveCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the run journal over a read-only HTTP API.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := a.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			if addr == "" {
				addr = a.cfg.Serve.Addr
			}
			srv := &http.Server{
				Addr:              addr,
				Handler:           report.Handler(st, a.logger),
				ReadHeaderTimeout: 10 * time.Second,
			}
			errc := make(chan error, 1)
			go func() { errc <- srv.ListenAndServe() }()
			a.logger.Info("eriflow: serving journal", "addr", addr)

			select {
			case err := <-errc:
				return err
			case <-cmd.Context().Done():
			}
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(sctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default serve.addr)")
	return cmd
}

func (a *app) mcpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve eri_lookup and eri_results as MCP tools over stdio.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := a.buildStack(cmd.Context(), stackOptions{})
			if err != nil {
				return err
			}
			defer st.Close()

			srv := mcp.NewServer(&mcp.Implementation{Name: "eriflow", Version: "0.1.0"}, nil)
			st.runner.RegisterMCP(srv, a.cfg.Session.CredentialStore, st.store)
			return srv.Run(cmd.Context(), &mcp.StdioTransport{})
		},
	}
}
