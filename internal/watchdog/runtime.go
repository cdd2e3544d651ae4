package watchdog

import (
	"context"

	"dockwatch/internal/docker"
	"dockwatch/internal/stream"
)

// LogStream is an open follow-logs feed for one container.
type LogStream interface {
	Lines() *stream.Stream[string]
	Active() bool
	Close() error
}

// EventStream is the runtime's lifecycle event feed.
type EventStream interface {
	Events() *stream.Stream[docker.Event]
	Active() bool
	Close() error
}

// Runtime is the container runtime the engine watches.
type Runtime interface {
	Inspect(ctx context.Context, name string) (docker.ContainerSnapshot, error)
	Logs(ctx context.Context, name string, tty bool) (LogStream, error)
	Events(ctx context.Context) (EventStream, error)
}

type dockerRuntime struct {
	client *docker.Client
}

// DockerRuntime adapts a docker.Client to Runtime.
func DockerRuntime(client *docker.Client) Runtime {
	return dockerRuntime{client: client}
}

func (r dockerRuntime) Inspect(ctx context.Context, name string) (docker.ContainerSnapshot, error) {
	return r.client.Inspect(ctx, name)
}

func (r dockerRuntime) Logs(ctx context.Context, name string, tty bool) (LogStream, error) {
	s, err := r.client.Logs(ctx, name, tty)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (r dockerRuntime) Events(ctx context.Context) (EventStream, error) {
	s, err := r.client.Events(ctx)
	if err != nil {
		return nil, err
	}
	return s, nil
}
