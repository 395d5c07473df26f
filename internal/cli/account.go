package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// NewAccountCommand creates the account command and its subcommands.
func NewAccountCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Show or change the logged-in account",
	}

	cmd.AddCommand(newAccountShowCommand(rootOpts))
	cmd.AddCommand(newAccountUpdateCommand(rootOpts))
	cmd.AddCommand(newAccountPasswordCommand(rootOpts))

	return cmd
}

func newAccountShowCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "show",
		Short:         "Show the logged-in account",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(rootOpts, cmd, func(ctx context.Context, e *appEnv) error {
				client, err := e.client()
				if err != nil {
					return err
				}
				u, err := client.Me(ctx)
				if err != nil {
					return err
				}
				return e.out.Success(accountResult(*u))
			})
		},
	}
}

func newAccountUpdateCommand(rootOpts *RootOptions) *cobra.Command {
	var name, email string

	cmd := &cobra.Command{
		Use:   "update",
		Short: "Change the account name or email",
		Example: `  chartsync account update --name "Ada Lovelace"
  chartsync account update --email ada@example.org`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(rootOpts, cmd, func(ctx context.Context, e *appEnv) error {
				if name == "" && email == "" {
					return NewExitError(ExitCommandError, "pass --name or --email")
				}
				client, err := e.client()
				if err != nil {
					return err
				}
				u, err := client.UpdateMe(ctx, name, email)
				if err != nil {
					return err
				}
				return e.out.Success(accountResult(*u))
			})
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "new display name")
	cmd.Flags().StringVar(&email, "email", "", "new email")

	return cmd
}

func newAccountPasswordCommand(rootOpts *RootOptions) *cobra.Command {
	var current, next string

	cmd := &cobra.Command{
		Use:           "password",
		Short:         "Change the account password",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(rootOpts, cmd, func(ctx context.Context, e *appEnv) error {
				client, err := e.client()
				if err != nil {
					return err
				}
				if err := client.ChangePassword(ctx, current, next); err != nil {
					return err
				}
				return e.out.Success(message{Message: "Password changed"})
			})
		},
	}

	cmd.Flags().StringVar(&current, "current", "", "current password (required)")
	cmd.Flags().StringVar(&next, "new", "", "new password, at least 6 characters (required)")
	_ = cmd.MarkFlagRequired("current")
	_ = cmd.MarkFlagRequired("new")

	return cmd
}

type accountResult struct {
	ID    uint   `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

func (r accountResult) String() string {
	return fmt.Sprintf("%s <%s>", r.Name, r.Email)
}
