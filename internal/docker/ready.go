package docker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/docker/docker/api/types"
)

// WaitReady pings the daemon until it answers, retrying every interval
// while the daemon cannot be reached. Any other failure is returned at once.
func (c *Client) WaitReady(ctx context.Context, interval time.Duration) (types.Ping, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		ping, err := c.Ping(ctx)
		if err == nil {
			return ping, nil
		}
		if !errors.Is(err, ErrTransport) {
			return types.Ping{}, err
		}
		slog.Debug("Docker daemon not reachable yet.", "endpoint", c.Endpoint().String(), "err", err)

		select {
		case <-ctx.Done():
			return types.Ping{}, fmt.Errorf("wait for docker daemon: %w (last error: %v)", ctx.Err(), err)
		case <-ticker.C:
		}
	}
}
