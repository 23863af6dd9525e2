package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"taskmanager/internal/apiclient"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const (
	msgLoginFailed    = "Login failed. Please try again."
	msgRegisterFailed = "Registration failed. Please try again."
)

func newLoginCommand(opts *rootOptions) *cobra.Command {
	var username, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Login to the task manager",
		Long:  "Login to the task manager. On success the session is stored locally (or in Redis) and reused by other commands.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				return errors.New("password is required, pass --password or set TM_PASSWORD")
			}
			return withApp(cmd, opts, func(ctx context.Context, a *app, out io.Writer) error {
				confirmed, err := a.client.Login(ctx, username, password)
				if err != nil {
					a.logger.Warn("Login failed", zap.String("username", username), zap.Error(err))
					return errors.New(apiclient.Detail(err, msgLoginFailed))
				}
				if err := a.sessions.Begin(ctx, confirmed); err != nil {
					return err
				}
				fmt.Fprintf(out, "Logged in as %s\n", confirmed)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&username, "username", "u", "", "Username (required)")
	_ = cmd.MarkFlagRequired("username")
	cmd.Flags().StringVarP(
		&password,
		"password",
		"p",
		os.Getenv("TM_PASSWORD"),
		"Password, could be passed as environment variable `TM_PASSWORD` (required)",
	)
	return cmd
}

func newRegisterCommand(opts *rootOptions) *cobra.Command {
	var reg apiclient.Registration

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create a new task manager account",
		Long:  "Create a new task manager account. Run `taskctl login` afterwards to start a session.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if reg.Password == "" {
				return errors.New("password is required, pass --password or set TM_PASSWORD")
			}
			if reg.ConfirmPassword == "" {
				reg.ConfirmPassword = reg.Password
			}
			return withApp(cmd, opts, func(ctx context.Context, a *app, out io.Writer) error {
				if err := a.client.Register(ctx, reg); err != nil {
					a.logger.Warn("Registration failed", zap.String("username", reg.Username), zap.Error(err))
					return errors.New(apiclient.Detail(err, msgRegisterFailed))
				}
				fmt.Fprintf(out, "Registration successful! Run `taskctl login --username %s` to log in.\n", reg.Username)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&reg.Username, "username", "u", "", "Username (required)")
	_ = cmd.MarkFlagRequired("username")
	cmd.Flags().StringVarP(&reg.FirstName, "first-name", "f", "", "First name (required)")
	_ = cmd.MarkFlagRequired("first-name")
	cmd.Flags().StringVarP(
		&reg.Password,
		"password",
		"p",
		os.Getenv("TM_PASSWORD"),
		"Password, could be passed as environment variable `TM_PASSWORD` (required)",
	)
	cmd.Flags().StringVar(&reg.ConfirmPassword, "confirm-password", "", "Password confirmation, defaults to --password")
	return cmd
}

func newLogoutCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Logout and forget the local session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app, out io.Writer) error {
				nav := &navigator{logger: a.logger}
				a.newView(nav).Logout(ctx)
				fmt.Fprintln(out, "Logged out")
				return nil
			})
		},
	}
}
