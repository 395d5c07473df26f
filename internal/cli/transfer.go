package cli

import (
	"context"
	"errors"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/roach88/chartsync/internal/clone"
	"github.com/roach88/chartsync/internal/syncer"
)

func cloneLogger(log *zap.Logger) clone.Option {
	return clone.WithLogger(log)
}

// PushOptions holds flags for the push command.
type PushOptions struct {
	*RootOptions
	Message string
}

// NewPushCommand creates the push command.
func NewPushCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PushOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "push <diagram-id>",
		Short: "Upload a local diagram as a new server version",
		Long: `Upload a local diagram as a new server version.

Unlike the automatic sync performed by watch, which overwrites the latest
version, every push adds a version. The server keeps the newest
VERSION_LIMIT versions.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(opts.RootOptions, cmd, func(ctx context.Context, e *appEnv) error {
				return runPush(ctx, opts, e, args[0])
			})
		},
	}

	cmd.Flags().StringVarP(&opts.Message, "message", "m", "", "version description")

	return cmd
}

func runPush(ctx context.Context, opts *PushOptions, e *appEnv, id string) error {
	st, err := e.store()
	if err != nil {
		return err
	}
	client, err := e.client()
	if err != nil {
		return err
	}

	d, err := st.ReadFull(ctx, id)
	if err != nil {
		return err
	}
	res, err := clone.Clone(d, clone.PreserveRoot, cloneLogger(e.log))
	if err != nil {
		return err
	}
	ack, err := client.PushDiagram(ctx, res.Diagram, opts.Message)
	if err != nil {
		return err
	}
	e.log.Info("diagram pushed", zap.String("diagram_id", id), zap.Int("version", ack.Version))
	return e.out.Success(diagramResult{
		Action:    "Pushed",
		DiagramID: id,
		Name:      d.Name,
		Tables:    len(res.Diagram.Tables),
		Version:   ack.Version,
	})
}

// NewPullCommand creates the pull command.
func NewPullCommand(rootOpts *RootOptions) *cobra.Command {
	var version int

	cmd := &cobra.Command{
		Use:   "pull <diagram-id>",
		Short: "Replace a local diagram with the server's copy",
		Long: `Replace a local diagram with the server's copy.

The latest version is fetched unless --version is given. The local diagram
keeps its id; every child entity gets a new one.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(rootOpts, cmd, func(ctx context.Context, e *appEnv) error {
				p, err := newPuller(e)
				if err != nil {
					return err
				}
				d, pulledVersion, err := p.Pull(ctx, args[0], version)
				if err != nil {
					return err
				}
				return e.out.Success(diagramResult{
					Action:    "Pulled",
					DiagramID: d.ID,
					Name:      d.Name,
					Tables:    len(d.Tables),
					Version:   pulledVersion,
				})
			})
		},
	}

	cmd.Flags().IntVar(&version, "version", 0, "version to fetch (default latest)")

	return cmd
}

// NewPullAllCommand creates the pull-all command.
func NewPullAllCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "pull-all",
		Short:         "Fetch the latest version of every server diagram",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(rootOpts, cmd, func(ctx context.Context, e *appEnv) error {
				p, err := newPuller(e)
				if err != nil {
					return err
				}
				ids, err := p.PullAll(ctx)
				res := pullAllResult{DiagramIDs: ids}
				if err != nil {
					if ids == nil {
						return err
					}
					res.Failed = failures(err)
					_ = e.out.Success(res)
					return WrapExitError(ExitFailure, "some diagrams failed to pull", err)
				}
				return e.out.Success(res)
			})
		},
	}
}

func newPuller(e *appEnv) (*syncer.Puller, error) {
	st, err := e.store()
	if err != nil {
		return nil, err
	}
	client, err := e.client()
	if err != nil {
		return nil, err
	}
	return syncer.NewPuller(st, client, e.log), nil
}

// failures lists the messages of a joined error.
func failures(err error) []string {
	var joined interface{ Unwrap() []error }
	if errors.As(err, &joined) {
		out := []string{}
		for _, e := range joined.Unwrap() {
			out = append(out, e.Error())
		}
		return out
	}
	return []string{err.Error()}
}
