package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/nhle/tracker/internal/app"
	"github.com/nhle/tracker/internal/model"
)

type rootOptions struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:          "tracker",
		Short:        "Departmental task tracker",
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", model.DefaultConfigPath(), "Path to the YAML config file")

	cmd.AddCommand(
		newMigrateCmd(opts),
		newSeedCmd(opts),
		newServeCmd(opts),
		newSubordinatesCmd(opts),
		newTasksCmd(opts),
		newNotificationsCmd(opts),
		newOverdueCmd(opts),
	)
	return cmd
}

// withApp loads config, opens the app, runs fn and closes the app.
func (o *rootOptions) withApp(ctx context.Context, fn func(context.Context, *app.App) error) error {
	cfg, err := model.LoadConfig(o.configPath)
	if err != nil {
		return err
	}
	a, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}
