package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/chartsync/internal/apperr"
	"github.com/roach88/chartsync/internal/clock"
	"github.com/roach88/chartsync/internal/syncer"
)

// WatchOptions holds flags for the watch command.
type WatchOptions struct {
	*RootOptions
	Now bool
}

// NewWatchCommand creates the watch command.
func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WatchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "watch [location]",
		Short: "Sync the active diagram to the server as it changes",
		Long: `Sync the active diagram to the server as it changes.

The active diagram is named by a location such as /diagrams/<id>; without
one the local default diagram is used. Local writes are debounced
(CHARTSYNC_DEBOUNCE) and pushed as an overwrite of the latest server
version. Writes by other processes are picked up by polling
(CHARTSYNC_POLL_INTERVAL), which also applies changes made with the
autosync command. Send SIGUSR1 to sync immediately. Runs until
interrupted.

Example:
  chartsync watch /diagrams/0b4c9f3e
  chartsync watch --now`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			location := ""
			if len(args) == 1 {
				location = args[0]
			}
			return run(opts.RootOptions, cmd, func(ctx context.Context, e *appEnv) error {
				return runWatch(ctx, opts, e, location, cmd.OutOrStdout())
			})
		},
	}

	cmd.Flags().BoolVar(&opts.Now, "now", false, "sync once immediately on start")

	return cmd
}

func runWatch(ctx context.Context, opts *WatchOptions, e *appEnv, location string, w io.Writer) error {
	st, err := e.store()
	if err != nil {
		return err
	}
	client, err := e.client()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	sw := &syncWriter{w: w}
	e.out.Writer = sw
	printf := func(format string, args ...any) {
		fmt.Fprintf(sw, format+"\n", args...)
	}

	sess, err := syncer.New(syncer.Env{
		Store:  st,
		Remote: client,
		Clock:  clock.Real{},
		Logger: e.log,
		Prefs:  e.prefs,
	}, syncer.Options{
		Debounce:     e.cfg.Debounce,
		SyncedWindow: e.cfg.SyncedWindow,
		ErrorWindow:  e.cfg.ErrorWindow,
		OnStateChange: func(s syncer.Status) {
			if e.out.Format == "text" {
				printf("%s", statusLine(s))
			}
		},
		OnUnauthorized: func() {
			printf("Session expired. Run chartsync login and restart watch.")
		},
	})
	if err != nil {
		return err
	}
	defer sess.Close()

	user, err := sess.Authenticate(ctx)
	if err != nil {
		return err
	}
	if err := sess.SetLocation(ctx, location); err != nil {
		return err
	}
	if sess.DiagramID() == "" {
		return apperr.New(apperr.CodeInvalid, "no diagram to watch: pass /diagrams/<id> or import one with --default")
	}

	detach := sess.Attach(st)
	defer detach()

	poller := syncer.NewPoller(sess, st, e.cfg.PollInterval)
	poller.Start(ctx)
	defer poller.Stop()

	e.out.VerboseLog("Watching %s as %s", sess.DiagramID(), user.Email)
	if opts.Now {
		sess.SyncNow()
	}

	syncNow := make(chan os.Signal, 1)
	if len(syncNowSignals) > 0 {
		signal.Notify(syncNow, syncNowSignals...)
		defer signal.Stop(syncNow)
	}

	for {
		select {
		case <-syncNow:
			if !sess.SyncNow() {
				e.out.VerboseLog("Sync request ignored: a sync is in progress or the session is logged out")
			}
		case <-ctx.Done():
			sess.Close()
			return e.out.Success(watchSummary(sess.Status()))
		}
	}
}

// syncWriter serializes status lines written from session hooks.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

func statusLine(s syncer.Status) string {
	line := fmt.Sprintf("%s %s %s", time.Now().Format("15:04:05"), s.DiagramID, s.State)
	switch s.State {
	case syncer.StateSynced:
		line += fmt.Sprintf(" (version %d)", s.LastVersion)
	case syncer.StateError:
		if s.LastError != nil {
			line += ": " + s.LastError.Error()
		}
	}
	return line
}

type watchResult struct {
	DiagramID    string `json:"diagram_id"`
	State        string `json:"state"`
	LastVersion  int    `json:"last_version,omitempty"`
	LastSyncedAt string `json:"last_synced_at,omitempty"`
	Dirty        bool   `json:"dirty"`
}

func watchSummary(s syncer.Status) watchResult {
	r := watchResult{
		DiagramID:   s.DiagramID,
		State:       string(s.State),
		LastVersion: s.LastVersion,
		Dirty:       s.Dirty,
	}
	if !s.LastSyncedAt.IsZero() {
		r.LastSyncedAt = s.LastSyncedAt.UTC().Format(time.RFC3339)
	}
	return r
}

func (r watchResult) String() string {
	if r.LastVersion == 0 {
		return fmt.Sprintf("Stopped watching %s", r.DiagramID)
	}
	return fmt.Sprintf("Stopped watching %s, last synced version %d", r.DiagramID, r.LastVersion)
}

// NewAutoSyncCommand creates the autosync command.
func NewAutoSyncCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "autosync [on|off]",
		Short: "Show or change the auto-sync preference",
		Long: `Show or change the auto-sync preference used by watch.

With auto-sync off, watch records changes but only syncs on request.`,
		Args:          cobra.MaximumNArgs(1),
		ValidArgs:     []string{"on", "off"},
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(rootOpts, cmd, func(ctx context.Context, e *appEnv) error {
				if len(args) == 1 {
					var enabled bool
					switch args[0] {
					case "on":
						enabled = true
					case "off":
					default:
						return WrapExitError(ExitCommandError, "invalid argument "+args[0],
							apperr.New(apperr.CodeInvalid, "expected on or off"))
					}
					if err := e.prefs.Update(func(p *syncer.Prefs) { p.AutoSync = enabled }); err != nil {
						return WrapExitError(ExitCommandError, "failed to save preferences", err)
					}
				}
				prefs, err := e.prefs.Load()
				if err != nil {
					return WrapExitError(ExitCommandError, "failed to read preferences", err)
				}
				return e.out.Success(autoSyncResult{AutoSync: prefs.AutoSync})
			})
		},
	}
}

type autoSyncResult struct {
	AutoSync bool `json:"auto_sync"`
}

func (r autoSyncResult) String() string {
	if r.AutoSync {
		return "Auto-sync is on"
	}
	return "Auto-sync is off"
}
