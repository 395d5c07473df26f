package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/roach88/chartsync/internal/apperr"
	"github.com/roach88/chartsync/internal/server"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Addr string
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the sync server",
		Long: `Run the diagram sync server.

The server stores users, diagrams and their version history in SQLite
(SERVER_DB_PATH) and signs sessions with JWT_SECRET, which is required.

Example:
  JWT_SECRET=change-me-0123456789 chartsync serve --addr localhost:8080`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(opts.RootOptions, cmd, func(ctx context.Context, e *appEnv) error {
				return runServe(ctx, opts, e, cmd)
			})
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", "", "listen address (defaults to SERVER_ADDR)")

	return cmd
}

func runServe(ctx context.Context, opts *ServeOptions, e *appEnv, cmd *cobra.Command) error {
	if e.cfg.JWTSecret == "" {
		return WrapExitError(ExitCommandError, "JWT_SECRET is required to serve",
			apperr.New(apperr.CodeInvalid, "missing JWT_SECRET"))
	}

	if err := os.MkdirAll(filepath.Dir(e.cfg.ServerDBPath), 0o700); err != nil {
		return WrapExitError(ExitCommandError, "failed to create server database directory", err)
	}
	db, err := server.OpenDB(e.cfg.ServerDBPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open server database", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open server database", err)
	}
	defer sqlDB.Close()

	srv, err := server.New(db, server.Config{
		JWTSecret:      e.cfg.JWTSecret,
		VersionLimit:   e.cfg.VersionLimit,
		RateLimitRPS:   e.cfg.RateLimitRPS,
		RateLimitBurst: e.cfg.RateLimitBurst,
		AllowOrigins:   e.cfg.AllowOrigins(),
	}, e.log)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to build server", err)
	}

	addr := opts.Addr
	if addr == "" {
		addr = e.cfg.ServerAddr
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to listen on "+addr, err)
	}

	hs := &http.Server{
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		if err := hs.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	e.log.Info("sync server listening",
		zap.String("addr", ln.Addr().String()),
		zap.String("db", e.cfg.ServerDBPath))
	if e.out.Format == "text" {
		fmt.Fprintf(cmd.OutOrStdout(), "Listening on %s\n", ln.Addr())
		fmt.Fprintln(cmd.OutOrStdout(), "Press Ctrl-C to stop.")
	}

	select {
	case <-ctx.Done():
		e.log.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			return WrapExitError(ExitFailure, "server error", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := hs.Shutdown(shutdownCtx); err != nil {
		e.log.Error("server shutdown error", zap.Error(err))
	}
	e.log.Info("sync server stopped")
	return nil
}
