package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wrale/authsession/internal/autherr"
	"github.com/wrale/authsession/internal/deviceflow"
	"github.com/wrale/authsession/internal/session"
)

// runWithApp wires a detached application for a one-shot command. The
// command context is canceled on SIGINT so in-flight polling stops.
func runWithApp(flags *globalFlags, fn func(ctx context.Context, cmd *cobra.Command, a *app) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, err := setup(ctx, flags, false)
		if err != nil {
			return err
		}
		defer func() {
			if err := a.Close(); err != nil {
				a.log.Error().Err(err).Msg("closing")
			}
		}()

		if err := fn(ctx, cmd, a); err != nil {
			return describe(err)
		}
		return nil
	}
}

// describe replaces err with the user-facing message for its kind
func describe(err error) error {
	code, message := autherr.Describe(err)
	return fmt.Errorf("%s: %s", code, message)
}

func newLoginCommand(flags *globalFlags) *cobra.Command {
	var username, password, role string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in with a username and password",
		RunE: runWithApp(flags, func(ctx context.Context, cmd *cobra.Command, a *app) error {
			sess, err := a.manager.Login(ctx, username, password, role)
			if err != nil {
				return err
			}
			return printLoggedIn(cmd.OutOrStdout(), sess)
		}),
	}
	cmd.Flags().StringVar(&username, "username", "", "Account username")
	cmd.Flags().StringVar(&password, "password", "", "Account password")
	cmd.Flags().StringVar(&role, "role", "", "Requested role")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func newRegisterCommand(flags *globalFlags) *cobra.Command {
	var username, email, password, role string

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and log in",
		RunE: runWithApp(flags, func(ctx context.Context, cmd *cobra.Command, a *app) error {
			sess, err := a.manager.Register(ctx, username, email, password, role)
			if err != nil {
				return err
			}
			return printLoggedIn(cmd.OutOrStdout(), sess)
		}),
	}
	cmd.Flags().StringVar(&username, "username", "", "Account username")
	cmd.Flags().StringVar(&email, "email", "", "Account email")
	cmd.Flags().StringVar(&password, "password", "", "Account password")
	cmd.Flags().StringVar(&role, "role", "", "Requested role")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func newDeviceCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "device",
		Short: "Log in by approving a device code",
		RunE: runWithApp(flags, func(ctx context.Context, cmd *cobra.Command, a *app) error {
			login, err := a.manager.StartDeviceLogin(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Device code: %s\n", login.Code)
			if !login.ExpiresAt.IsZero() {
				fmt.Fprintf(out, "Expires at:  %s\n", login.ExpiresAt.Local().Format("15:04:05"))
			}

			events := login.Events()
			for {
				select {
				case <-ctx.Done():
					login.Cancel()
					<-login.Done()
					return fmt.Errorf("device login: %w", autherr.ErrCanceled)

				case e, ok := <-events:
					if !ok {
						events = nil
						continue
					}
					if e.Kind == deviceflow.EventTransient {
						_, msg := autherr.Describe(e.Err)
						fmt.Fprintf(out, "  %s (retrying)\n", msg)
					}

				case <-login.Done():
					sess, err := login.Result()
					if err != nil {
						return err
					}
					return printLoggedIn(out, sess)
				}
			}
		}),
	}
}

func newGoogleCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "google",
		Short: "Log in through the external identity provider",
		RunE: runWithApp(flags, func(ctx context.Context, cmd *cobra.Command, a *app) error {
			fmt.Fprintln(cmd.OutOrStdout(), "Complete the login in your browser...")
			sess, err := a.manager.LoginWithProvider(ctx)
			if err != nil {
				return err
			}
			return printLoggedIn(cmd.OutOrStdout(), sess)
		}),
	}
}

func newStatusCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print the current authentication status",
		RunE: runWithApp(flags, func(ctx context.Context, cmd *cobra.Command, a *app) error {
			status, err := a.manager.Status(ctx)
			if err != nil {
				a.log.Warn().Err(err).Msg("reading session")
			}
			return printJSON(cmd.OutOrStdout(), status)
		}),
	}
}

func newLogoutCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Discard the stored session",
		RunE: runWithApp(flags, func(ctx context.Context, cmd *cobra.Command, a *app) error {
			if err := a.manager.Logout(ctx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
			return nil
		}),
	}
}

func printLoggedIn(w io.Writer, sess *session.Session) error {
	if sess.User != nil && sess.User.Username != "" {
		_, err := fmt.Fprintf(w, "Logged in as %s\n", sess.User.Username)
		return err
	}
	_, err := fmt.Fprintln(w, "Logged in")
	return err
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
