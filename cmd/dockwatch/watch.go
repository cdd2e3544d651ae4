package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dockwatch/cmd/dockwatch/ui"
	"dockwatch/config"
	"dockwatch/internal/docker"
	"dockwatch/internal/stream"
	"dockwatch/internal/telemetry"
	"dockwatch/internal/watchdog"

	"github.com/docker/docker/api/types"
	dockerclient "github.com/docker/docker/client"
	"github.com/muesli/termenv"
)

const (
	tracerName   = "dockwatch/cmd/dockwatch"
	pingInterval = time.Second
)

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)
}

func runWatch(ctx context.Context, opts options) error {
	cfg, err := loadConfig(ctx, opts.configPath)
	if err != nil {
		return err
	}
	client, err := connect(cfg, opts.host)
	if err != nil {
		return err
	}
	defer func() {
		if n := client.OpenStreams(); n > 0 {
			slog.Debug("Closing docker client with streams still open.", "streams", n)
		}
		if err := client.Close(); err != nil {
			slog.Debug("Close docker client.", "err", err)
		}
	}()

	provider, steps := startTelemetry()
	defer func() { _ = provider.Shutdown(context.Background()) }()

	var extra []startupStep
	if len(cfg.Networks) > 0 {
		extra = append(extra, networkStep(client, cfg))
	}

	var (
		engine *watchdog.Engine
		out    *stream.Stream[watchdog.Record]
	)
	defer func() {
		if engine != nil {
			engine.Shutdown()
		}
	}()
	extra = append(extra, startupStep{id: "watch", title: "attach to containers", run: func(context.Context) error {
		engine = watchdog.New(watchdog.DockerRuntime(client), watchdog.Config{
			Containers: cfg.Containers,
			Filters:    cfg.Filter,
			Display:    displayOptions(cfg.Display),
			Workers:    cfg.Workers,
		})
		var err error
		out, err = engine.Watch(ctx)
		return err
	}})

	version, err := startup(ctx, provider, client, opts.wait, extra...)
	steps.Close()
	if err != nil {
		return err
	}
	fmt.Println(ui.Banner(version, cfg.Display.Colors))
	slog.Info("Watching containers.", "containers", cfg.Containers, "endpoint", client.Endpoint().String())

	if err := printRecords(ctx, out, os.Stdout); err != nil {
		msg := fmt.Sprintf("Watchdog Error:\n%v", err)
		if cfg.Display.Colors {
			msg = termenv.String(msg).Foreground(termenv.ANSIRed).String()
		}
		fmt.Println(msg)
		return errReported
	}
	if ctx.Err() != nil {
		fmt.Fprintln(os.Stderr, "Quit Docker Watch")
	}
	return nil
}

// printRecords writes each record's text to w until ctx is cancelled or the
// stream ends. It returns the stream's terminal error.
func printRecords(ctx context.Context, out *stream.Stream[watchdog.Record], w io.Writer) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case rec, ok := <-out.C():
			if !ok {
				return out.Err()
			}
			fmt.Fprintln(w, rec.Text())
		}
	}
}

func loadConfig(ctx context.Context, path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if cfg.ComposeFile != "" {
		names, err := config.ComposeContainers(ctx, cfg.ComposeFile, cfg.Display.Delimiter())
		if err != nil {
			return nil, fmt.Errorf("compose file %s: %w", cfg.ComposeFile, err)
		}
		cfg.AddContainers(names...)
	}
	if len(cfg.Containers) == 0 {
		slog.Warn("No containers configured; only the event feed is watched.", "config", path)
	}
	return cfg, nil
}

func connect(cfg *config.Config, host string) (*docker.Client, error) {
	endpoint, err := docker.EndpointFromEnv(hostOverride(host, os.LookupEnv))
	if err != nil {
		return nil, err
	}
	var clientOpts []docker.Option
	if cfg.APIVersion != "" {
		clientOpts = append(clientOpts, docker.WithAPIVersion(cfg.APIVersion))
	}
	return docker.NewClient(endpoint, clientOpts...)
}

// hostOverride makes a non-empty host win over DOCKER_HOST.
func hostOverride(host string, lookup func(string) (string, bool)) func(string) (string, bool) {
	return func(key string) (string, bool) {
		if key == dockerclient.EnvOverrideHost && host != "" {
			return host, true
		}
		return lookup(key)
	}
}

func displayOptions(d config.Display) watchdog.DisplayOptions {
	return watchdog.DisplayOptions{
		RemovePrefix: d.StripPrefix(),
		PrefixEnd:    d.Delimiter(),
		Emojis:       d.Emojis,
		Colors:       d.Colors,
	}
}

func startTelemetry() (*telemetry.Provider, *ui.StepOutput) {
	steps := ui.NewStepOutput(os.Stderr)
	provider := telemetry.NewProvider(steps.Reporter())
	provider.Install()
	return provider, steps
}

type startupStep struct {
	id    string
	title string
	run   func(context.Context) error
}

// startup pings the daemon and reads its version as a traced operation,
// then runs extra steps in order. A positive wait keeps pinging an
// unreachable daemon for that long.
func startup(ctx context.Context, provider *telemetry.Provider, client *docker.Client, wait time.Duration, extra ...startupStep) (version types.Version, err error) {
	steps := append([]startupStep{
		{id: "ping", title: "ping docker daemon", run: func(ctx context.Context) error {
			var ping types.Ping
			var err error
			if wait > 0 {
				waitCtx, cancel := context.WithTimeout(ctx, wait)
				ping, err = client.WaitReady(waitCtx, pingInterval)
				cancel()
			} else {
				ping, err = client.Ping(ctx)
			}
			if err != nil {
				return fmt.Errorf("can not ping the docker daemon at %s: %w", client.Endpoint(), err)
			}
			slog.Debug("Pinged docker daemon.", "api_version", ping.APIVersion, "os_type", ping.OSType)
			return nil
		}},
		{id: "version", title: "read daemon version", run: func(ctx context.Context) error {
			var err error
			version, err = client.Version(ctx)
			return err
		}},
	}, extra...)

	plan := telemetry.Plan{Steps: make([]telemetry.PlannedStep, 0, len(steps))}
	for _, s := range steps {
		plan.Steps = append(plan.Steps, telemetry.PlannedStep{ID: s.id, Title: s.title})
	}
	op, err := telemetry.Start(ctx, provider.Tracer(tracerName), "startup", plan)
	if err != nil {
		return version, err
	}
	defer func() { op.End(err) }()

	for _, s := range steps {
		if err = op.Step(s.id, s.run); err != nil {
			return version, err
		}
	}
	return version, nil
}

// networkStep adds the containers attached to each configured network.
func networkStep(client *docker.Client, cfg *config.Config) startupStep {
	return startupStep{id: "networks", title: "resolve network members", run: func(ctx context.Context) error {
		for _, name := range cfg.Networks {
			members, err := client.NetworkContainers(ctx, name)
			if err != nil {
				return err
			}
			slog.Debug("Resolved network members.", "network", name, "containers", members)
			cfg.AddContainers(members...)
		}
		return nil
	}}
}
