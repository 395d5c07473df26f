package cli

import (
	"context"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/roach88/chartsync/internal/config"
	"github.com/roach88/chartsync/internal/logger"
	"github.com/roach88/chartsync/internal/remote"
	"github.com/roach88/chartsync/internal/store"
	"github.com/roach88/chartsync/internal/syncer"
)

// appEnv is what a command runs against: configuration, logger, output and
// lazily opened local store.
type appEnv struct {
	cfg   *config.Config
	log   *zap.Logger
	out   *OutputFormatter
	prefs *syncer.PrefsFile

	st *store.Store
}

func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
}

// run loads the environment, calls fn and reports its error through the
// formatter.
func run(opts *RootOptions, cmd *cobra.Command, fn func(ctx context.Context, e *appEnv) error) error {
	out := newFormatter(opts, cmd)

	cfg, err := config.Load(opts.ConfigDir)
	if err != nil {
		return out.Fail(WrapExitError(ExitCommandError, "failed to load configuration", err))
	}
	level := cfg.LogLevel
	if opts.Verbose {
		level = "debug"
	}
	log, err := logger.NewWithWriter(level, cfg.LogFormat, cmd.ErrOrStderr())
	if err != nil {
		return out.Fail(WrapExitError(ExitCommandError, "failed to build logger", err))
	}
	defer func() { _ = log.Sync() }()

	e := &appEnv{
		cfg:   cfg,
		log:   log,
		out:   out,
		prefs: &syncer.PrefsFile{Path: cfg.PrefsPath},
	}
	defer e.close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if err := fn(ctx, e); err != nil {
		return out.Fail(err)
	}
	return nil
}

// store opens the local store on first use.
func (e *appEnv) store() (*store.Store, error) {
	if e.st != nil {
		return e.st, nil
	}
	if err := os.MkdirAll(filepath.Dir(e.cfg.DBPath), 0o700); err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to create store directory", err)
	}
	st, err := store.Open(e.cfg.DBPath, store.WithLogger(e.log))
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open local store", err)
	}
	e.out.VerboseLog("Opened local store %s", e.cfg.DBPath)
	e.st = st
	return st, nil
}

// client builds a remote client. CHARTSYNC_TOKEN wins over the token saved
// by login; a server URL saved by login wins over the configured one.
func (e *appEnv) client() (*remote.Client, error) {
	prefs, err := e.prefs.Load()
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to read preferences", err)
	}
	base := e.cfg.ServerURL
	if prefs.ServerURL != "" {
		base = prefs.ServerURL
	}
	token := e.cfg.Token
	if token == "" {
		token = prefs.Token
	}
	e.out.VerboseLog("Using sync server %s", base)
	return remote.New(base, remote.WithToken(token)), nil
}

func (e *appEnv) close() {
	if e.st == nil {
		return
	}
	if err := e.st.Close(); err != nil {
		e.log.Error("error closing local store", zap.Error(err))
	}
}
