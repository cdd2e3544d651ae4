package main

import (
	"context"
	"fmt"
	"log/slog"

	"dockwatch/cmd/dockwatch/ui"

	"github.com/spf13/cobra"
)

func versionCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Ping the docker daemon and print its version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd.Context(), opts.configPath)
			if err != nil {
				return err
			}
			client, err := connect(cfg, opts.host)
			if err != nil {
				return err
			}
			defer func() {
				if err := client.Close(); err != nil {
					slog.Debug("Close docker client.", "err", err)
				}
			}()

			provider, steps := startTelemetry()
			defer func() { _ = provider.Shutdown(context.Background()) }()

			version, err := startup(cmd.Context(), provider, client, opts.wait)
			steps.Close()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), ui.Banner(version, cfg.Display.Colors))
			return nil
		},
	}
}
