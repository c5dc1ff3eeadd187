package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wrale/authsession/internal/logging"
)

// Version is set by the build process
var Version = "dev"

// globalFlags are shared by every command
type globalFlags struct {
	envFile  string
	logLevel string
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:   "authsession",
		Short: "Client-side session authentication agent",
		Long: `Keeps one authenticated session against the backend API.

Logins run through username/password, device code, or an external provider
window. The serve command exposes the same operations to a local UI over HTTP.`,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&flags.envFile, "env-file", ".env", "Path to a .env file")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "Log level (debug, info, warn, error)")

	root.AddCommand(
		newServeCommand(flags),
		newLoginCommand(flags),
		newRegisterCommand(flags),
		newDeviceCommand(flags),
		newGoogleCommand(flags),
		newStatusCommand(flags),
		newLogoutCommand(flags),
		newVersionCommand(),
	)
	return root
}

// setup loads configuration and wires the application
func setup(ctx context.Context, flags *globalFlags, relayed bool) (*app, error) {
	cfg, err := loadConfig(flags.envFile)
	if err != nil {
		return nil, err
	}
	if flags.logLevel != "" {
		cfg.LogLevel = flags.logLevel
	}
	return newApp(ctx, cfg, logging.New(cfg.Env, cfg.LogLevel), relayed)
}

func newServeCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the session API to a local UI",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(cmd.Context(), flags, true)
			if err != nil {
				return err
			}
			defer func() {
				if err := a.Close(); err != nil {
					a.log.Error().Err(err).Msg("closing")
				}
			}()
			return serve(a)
		},
	}
}

// serve runs the HTTP server until it fails or receives SIGINT/SIGTERM
func serve(a *app) error {
	httpServer := &http.Server{
		Addr:              a.cfg.ListenAddr,
		Handler:           newServer(a).router,
		ReadHeaderTimeout: a.cfg.ReadHeaderTimeout,
	}

	serverErrors := make(chan error, 1)
	go func() {
		a.log.Info().Str("addr", a.cfg.ListenAddr).Str("version", Version).Msg("server listening")
		serverErrors <- httpServer.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(shutdown)

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("starting server: %w", err)

	case <-shutdown:
		a.log.Info().Msg("starting shutdown")

		// in-flight logins are abandoned, the stored session is kept
		a.manager.Cancel()

		ctx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
		defer cancel()

		if err := httpServer.Shutdown(ctx); err != nil {
			a.log.Error().Err(err).Msg("shutting down server")
			if err := httpServer.Close(); err != nil {
				a.log.Error().Err(err).Msg("closing server")
			}
		}
	}
	return nil
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), Version)
		},
	}
}
