package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"dockwatch/cmd/dockwatch/ui"
	"dockwatch/config"
	"dockwatch/internal/docker"
	"dockwatch/internal/watchdog"

	"github.com/spf13/cobra"
)

func configCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the resolved watch configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd.Context(), opts.configPath)
			if err != nil {
				return err
			}
			endpoint := "unresolved"
			if ep, err := docker.EndpointFromEnv(hostOverride(opts.host, os.LookupEnv)); err == nil {
				endpoint = ep.String()
			} else {
				fmt.Fprintln(cmd.ErrOrStderr(), ui.WarnMsg("%v", err))
			}
			fmt.Fprint(cmd.OutOrStdout(), describeConfig(opts.configPath, endpoint, cfg))
			return nil
		},
	}
}

// describeConfig renders the settings block followed by the container table.
func describeConfig(path, endpoint string, cfg *config.Config) string {
	apiVersion := cfg.APIVersion
	if apiVersion == "" {
		apiVersion = docker.DefaultAPIVersion + " (default)"
	}
	workers := "GOMAXPROCS"
	if cfg.Workers > 0 {
		workers = strconv.Itoa(cfg.Workers)
	}
	filters := ui.Muted("none")
	if len(cfg.Filter) > 0 {
		filters = strings.Join(cfg.Filter, ", ")
	}

	var sb strings.Builder
	sb.WriteString(ui.KeyValues("",
		ui.KV("Config", path),
		ui.KV("Endpoint", endpoint),
		ui.KV("API version", apiVersion),
		ui.KV("Workers", workers),
		ui.KV("Remove prefix", ui.Bool(cfg.Display.StripPrefix())),
		ui.KV("Prefix end", string(cfg.Display.Delimiter())),
		ui.KV("Emojis", ui.Bool(cfg.Display.Emojis)),
		ui.KV("Colors", ui.Bool(cfg.Display.Colors)),
		ui.KV("Filters", filters),
	))
	if cfg.ComposeFile != "" {
		sb.WriteString(ui.KeyValues("", ui.KV("Compose file", cfg.ComposeFile)))
	}

	names := watchdog.NewAllocator(displayOptions(cfg.Display))
	rows := make([][]string, 0, len(cfg.Containers))
	for _, c := range cfg.Containers {
		rows = append(rows, []string{c, names.DisplayName(c)})
	}
	sb.WriteString("\n" + ui.Table([]string{"CONTAINER", "DISPLAY NAME"}, rows) + "\n")
	return sb.String()
}
