package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"dockwatch/cmd/dockwatch/ui"
	"dockwatch/config"
	"dockwatch/internal/buildinfo"
	"dockwatch/internal/logging"

	"github.com/spf13/cobra"
)

// errReported marks a failure already printed to the user.
var errReported = errors.New("reported")

type options struct {
	configPath string
	host       string
	wait       time.Duration
}

func main() {
	var (
		debug     bool
		logFormat string
		opts      options
	)
	if err := logging.Configure(logging.LevelWarn); err != nil {
		_, _ = os.Stderr.WriteString("configure logger: " + err.Error() + "\n")
		os.Exit(1)
	}

	root := &cobra.Command{
		Use:           "dockwatch",
		Short:         "Follow the lifecycle events and logs of Docker containers",
		Version:       buildinfo.Current(),
		Args:          cobra.NoArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level := logging.LevelWarn
			if debug {
				level = logging.LevelDebug
			}
			if err := logging.ConfigureWriter(os.Stderr, level, logFormat); err != nil {
				return err
			}
			ui.ConfigureInteraction(false)
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd.Context(), opts)
		},
	}
	root.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
	root.PersistentFlags().StringVar(&logFormat, "log-format", logging.FormatText, "Diagnostic log format: text or json")
	root.PersistentFlags().StringVar(&opts.configPath, "config", config.DefaultPath, "Path to the watch configuration")
	root.PersistentFlags().StringVar(&opts.host, "host", "", "Docker daemon URL (overrides DOCKER_HOST)")
	root.PersistentFlags().DurationVar(&opts.wait, "wait", 0, "Keep retrying an unreachable daemon for up to this long")

	root.AddCommand(versionCmd(&opts))
	root.AddCommand(configCmd(&opts))

	ctx, stop := signalContext()
	err := root.ExecuteContext(ctx)
	stop()
	if err != nil {
		if !errors.Is(err, errReported) {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		os.Exit(1)
	}
}
