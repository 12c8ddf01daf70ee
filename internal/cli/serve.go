package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	"github.com/wagnerlima/memory-cloud/memory-store/internal/api"
	"github.com/wagnerlima/memory-cloud/memory-store/internal/config"
	"github.com/wagnerlima/memory-cloud/memory-store/internal/observe"
	"github.com/wagnerlima/memory-cloud/memory-store/internal/server"
	"github.com/wagnerlima/memory-cloud/memory-store/internal/session"
	"github.com/wagnerlima/memory-cloud/memory-store/internal/storage"
)

var (
	serveHost   string
	servePort   int
	maxSessions int
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the JSON API and the MCP streamable HTTP transport",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		obs := newObserver(cfg, os.Stderr)

		ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		store, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		return serve(ctx, cfg, store, obs)
	},
}

var stdioCmd = &cobra.Command{
	Use:   "stdio",
	Short: "Serve MCP over stdin and stdout",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		// stdout carries the protocol.
		obs := newObserver(cfg, os.Stderr)

		ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		store, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		obs.Log().Info().Str("db", store.Path()).Msg("memory-store starting (stdio)")
		srv := server.New(store, session.New("", cfg.DefaultProject), obs)
		return srv.Run(ctx, &mcp.StdioTransport{})
	},
}

// newHTTPHandler mounts the MCP transport under the API server.
func newHTTPHandler(cfg config.Config, store *storage.Store, obs *observe.Observer) http.Handler {
	mcpHandler := server.NewHTTPHandler(store, obs, server.HTTPOptions{
		DefaultProject: cfg.DefaultProject,
		Registry:       session.NewRegistry(cfg.MaxSessions, cfg.SessionIdleTimeout),
	})
	return api.New(store, obs, api.Options{
		DefaultProject: cfg.DefaultProject,
		MCP:            mcpHandler,
	})
}

func serve(ctx context.Context, cfg config.Config, store *storage.Store, obs *observe.Observer) error {
	httpServer := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           newHTTPHandler(cfg, store, obs),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		obs.Log().Info().Str("addr", cfg.Addr()).Str("db", store.Path()).Msg("memory-store listening")
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	obs.Log().Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

func init() {
	RootCmd.AddCommand(serveCmd)
	RootCmd.AddCommand(stdioCmd)
	serveCmd.Flags().StringVar(&serveHost, "host", "", "Listen host (default 127.0.0.1)")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Listen port (default 3789)")
	serveCmd.Flags().IntVar(&maxSessions, "max-sessions", 0, "Maximum concurrent MCP sessions (default 3)")
}
