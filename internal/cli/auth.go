package cli

import (
	"context"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/chartsync/internal/remote"
	"github.com/roach88/chartsync/internal/syncer"
)

// LoginOptions holds flags for the login command.
type LoginOptions struct {
	*RootOptions
	Email    string
	Password string
	Name     string
	Signup   bool
	Server   string
}

// NewLoginCommand creates the login command.
func NewLoginCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LoginOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in to the sync server",
		Long: `Log in (or sign up with --signup) and save the session token.

Logging in anywhere else ends this session: the server keeps one active
token per account.

Example:
  chartsync login --email me@example.com --password secret123
  chartsync login --signup --name Me --email me@example.com --password secret123`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(opts.RootOptions, cmd, func(ctx context.Context, e *appEnv) error {
				return runLogin(ctx, opts, e)
			})
		},
	}

	cmd.Flags().StringVar(&opts.Email, "email", "", "account email (required)")
	cmd.Flags().StringVar(&opts.Password, "password", "", "account password (required)")
	cmd.Flags().StringVar(&opts.Name, "name", "", "display name (required with --signup)")
	cmd.Flags().BoolVar(&opts.Signup, "signup", false, "create the account first")
	cmd.Flags().StringVar(&opts.Server, "server", "", "sync server API base URL, saved for later commands")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")

	return cmd
}

func runLogin(ctx context.Context, opts *LoginOptions, e *appEnv) error {
	if opts.Signup && strings.TrimSpace(opts.Name) == "" {
		return NewExitError(ExitCommandError, "--name is required with --signup")
	}
	if opts.Server != "" {
		if err := e.prefs.Update(func(p *syncer.Prefs) { p.ServerURL = opts.Server }); err != nil {
			return WrapExitError(ExitCommandError, "failed to save preferences", err)
		}
	}
	client, err := e.client()
	if err != nil {
		return err
	}

	var res *remote.AuthResponse
	if opts.Signup {
		res, err = client.Signup(ctx, opts.Email, opts.Password, opts.Name)
	} else {
		res, err = client.Login(ctx, opts.Email, opts.Password)
	}
	if err != nil {
		return err
	}

	if err := e.prefs.Update(func(p *syncer.Prefs) { p.Token = res.Token }); err != nil {
		return WrapExitError(ExitCommandError, "failed to save session token", err)
	}

	prefs, _ := e.prefs.Load()
	server := e.cfg.ServerURL
	if prefs.ServerURL != "" {
		server = prefs.ServerURL
	}
	return e.out.Success(loginResult{User: res.User, Server: server, Signup: opts.Signup})
}

// NewLogoutCommand creates the logout command.
func NewLogoutCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "logout",
		Short:         "Forget the saved session token",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(rootOpts, cmd, func(ctx context.Context, e *appEnv) error {
				if err := e.prefs.Update(func(p *syncer.Prefs) { p.Token = "" }); err != nil {
					return WrapExitError(ExitCommandError, "failed to save preferences", err)
				}
				return e.out.Success(message{Message: "Logged out"})
			})
		},
	}
}
