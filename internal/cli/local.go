package cli

import (
	"context"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/roach88/chartsync/internal/exchange"
)

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	var remoteOnly bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List local diagrams, or the server's with --remote",
		Args:  cobra.NoArgs,
		Example: `  chartsync list
  chartsync list --remote --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(rootOpts, cmd, func(ctx context.Context, e *appEnv) error {
				if remoteOnly {
					client, err := e.client()
					if err != nil {
						return err
					}
					infos, err := client.ListDiagrams(ctx)
					if err != nil {
						return err
					}
					return e.out.Success(remoteList(infos))
				}

				st, err := e.store()
				if err != nil {
					return err
				}
				sums, err := st.ListSummaries(ctx)
				if err != nil {
					return err
				}
				return e.out.Success(localList(sums))
			})
		},
	}

	cmd.Flags().BoolVar(&remoteOnly, "remote", false, "list diagrams stored on the sync server")

	return cmd
}

// ExportOptions holds flags for the export command.
type ExportOptions struct {
	*RootOptions
	Output string
}

// NewExportCommand creates the export command.
func NewExportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "export <diagram-id>",
		Short: "Write a local diagram as a portable JSON document",
		Long: `Write a local diagram as a portable JSON document.

Entity ids are renumbered 0, 1, 2, ... so exporting unchanged content twice
produces identical files. Without --output the document goes to stdout.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(opts.RootOptions, cmd, func(ctx context.Context, e *appEnv) error {
				return runExport(ctx, opts, e, args[0], cmd.OutOrStdout())
			})
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file")

	return cmd
}

func runExport(ctx context.Context, opts *ExportOptions, e *appEnv, id string, stdout io.Writer) error {
	st, err := e.store()
	if err != nil {
		return err
	}
	d, err := st.ReadFull(ctx, id)
	if err != nil {
		return err
	}
	data, err := exchange.Export(d, cloneLogger(e.log))
	if err != nil {
		return err
	}

	if opts.Output == "" {
		_, err := stdout.Write(data)
		return err
	}
	if err := os.WriteFile(opts.Output, data, 0o644); err != nil {
		return WrapExitError(ExitCommandError, "failed to write "+opts.Output, err)
	}
	return e.out.Success(diagramResult{Action: "Exported", DiagramID: d.ID, Name: d.Name, Tables: len(d.Tables)})
}

// ImportOptions holds flags for the import command.
type ImportOptions struct {
	*RootOptions
	Default bool
}

// NewImportCommand creates the import command.
func NewImportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ImportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "import <file|->",
		Short: "Store a JSON diagram document as a new local diagram",
		Long: `Store a JSON diagram document as a new local diagram.

The document is validated first; every entity, the diagram included, gets
a new id so importing the same file twice yields two diagrams.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(opts.RootOptions, cmd, func(ctx context.Context, e *appEnv) error {
				return runImport(ctx, opts, e, args[0], cmd.InOrStdin())
			})
		},
	}

	cmd.Flags().BoolVar(&opts.Default, "default", false, "make the imported diagram the default")

	return cmd
}

func runImport(ctx context.Context, opts *ImportOptions, e *appEnv, path string, stdin io.Reader) error {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read "+path, err)
	}

	d, err := exchange.Import(data, cloneLogger(e.log))
	if err != nil {
		return err
	}

	st, err := e.store()
	if err != nil {
		return err
	}
	if err := st.WriteFull(ctx, d); err != nil {
		return err
	}
	if opts.Default {
		if err := st.SetDefaultDiagramID(ctx, d.ID); err != nil {
			return err
		}
	}
	e.log.Info("diagram imported", zap.String("diagram_id", d.ID), zap.String("source", path))
	return e.out.Success(diagramResult{Action: "Imported", DiagramID: d.ID, Name: d.Name, Tables: len(d.Tables)})
}

// NewDeleteCommand creates the delete command.
func NewDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	var remoteOnly bool

	cmd := &cobra.Command{
		Use:           "delete <diagram-id>",
		Short:         "Delete a local diagram, or the server's copy with --remote",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(rootOpts, cmd, func(ctx context.Context, e *appEnv) error {
				id := args[0]
				if remoteOnly {
					client, err := e.client()
					if err != nil {
						return err
					}
					if err := client.DeleteDiagram(ctx, id); err != nil {
						return err
					}
					return e.out.Success(message{Message: "Deleted " + id + " from the server"})
				}

				st, err := e.store()
				if err != nil {
					return err
				}
				if err := st.DeleteFull(ctx, id); err != nil {
					return err
				}
				return e.out.Success(message{Message: "Deleted " + id})
			})
		},
	}

	cmd.Flags().BoolVar(&remoteOnly, "remote", false, "delete the diagram on the sync server")

	return cmd
}
