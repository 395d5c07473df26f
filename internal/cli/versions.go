package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/roach88/chartsync/internal/apperr"
)

// NewVersionsCommand creates the versions command and its subcommands.
func NewVersionsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "versions",
		Short: "Inspect and manage a diagram's server-side versions",
	}

	cmd.AddCommand(newVersionsListCommand(rootOpts))
	cmd.AddCommand(newVersionsSnapshotCommand(rootOpts))
	cmd.AddCommand(newVersionsDeleteCommand(rootOpts))

	return cmd
}

func newVersionsListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "list <diagram-id>",
		Short:         "List stored versions, newest first",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(rootOpts, cmd, func(ctx context.Context, e *appEnv) error {
				client, err := e.client()
				if err != nil {
					return err
				}
				vs, err := client.ListVersions(ctx, args[0])
				if err != nil {
					return err
				}
				return e.out.Success(versionList(vs))
			})
		},
	}
}

func newVersionsSnapshotCommand(rootOpts *RootOptions) *cobra.Command {
	var description string

	cmd := &cobra.Command{
		Use:           "snapshot <diagram-id>",
		Short:         "Copy the latest version into a new version",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(rootOpts, cmd, func(ctx context.Context, e *appEnv) error {
				client, err := e.client()
				if err != nil {
					return err
				}
				ack, err := client.CreateSnapshot(ctx, args[0], description)
				if err != nil {
					return err
				}
				return e.out.Success(message{Message: fmt.Sprintf("Created version %d of %s", ack.Version, args[0])})
			})
		},
	}

	cmd.Flags().StringVarP(&description, "message", "m", "", "snapshot description")

	return cmd
}

func newVersionsDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <diagram-id> <version>",
		Short: "Delete one stored version",
		Long: `Delete one stored version.

The server refuses to delete the latest version and the only remaining
version.`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(rootOpts, cmd, func(ctx context.Context, e *appEnv) error {
				version, err := strconv.Atoi(args[1])
				if err != nil || version < 1 {
					return WrapExitError(ExitCommandError, "invalid version "+args[1],
						apperr.New(apperr.CodeInvalid, "version must be a positive integer"))
				}
				client, err := e.client()
				if err != nil {
					return err
				}
				if err := client.DeleteVersion(ctx, args[0], version); err != nil {
					return err
				}
				return e.out.Success(message{Message: fmt.Sprintf("Deleted version %d of %s", version, args[0])})
			})
		},
	}
}
