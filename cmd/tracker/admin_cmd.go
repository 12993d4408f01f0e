package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nhle/tracker/internal/app"
	"github.com/nhle/tracker/internal/seed"
	"github.com/nhle/tracker/internal/theme"
)

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				v, err := a.Store.SchemaVersion(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), theme.SuccessStyle.Render(fmt.Sprintf("schema at version %d", v)))
				return nil
			})
		},
	}
}

func newSeedCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "seed <file.yaml>",
		Short: "Load departments and users from a YAML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := seed.Load(args[0])
			if err != nil {
				return err
			}
			return opts.withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				res, err := seed.Apply(ctx, a.Store, f)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), theme.SuccessStyle.Render(
					fmt.Sprintf("seeded %d departments and %d users", res.Departments, res.Users)))
				return nil
			})
		},
	}
}

func newServeCmd(opts *rootOptions) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API, websocket feed and metrics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return opts.withApp(ctx, func(ctx context.Context, a *app.App) error {
				if addr == "" {
					addr = a.Config.HTTP.Addr
				}
				srv := &http.Server{
					Addr:              addr,
					Handler:           a.Handler(),
					ReadHeaderTimeout: 10 * time.Second,
				}

				errCh := make(chan error, 1)
				go func() { errCh <- srv.ListenAndServe() }()
				a.Logger.WithField("addr", addr).Info("listening")

				select {
				case err := <-errCh:
					return err
				case <-ctx.Done():
				}

				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				a.Logger.Info("shutting down")
				return srv.Shutdown(shutdownCtx)
			})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from config)")
	return cmd
}
