package docker

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/containerd/errdefs"
	"github.com/docker/docker/api/types/container"
)

// Inspect fetches the current state of the named container.
func (c *Client) Inspect(ctx context.Context, name string) (ContainerSnapshot, error) {
	resp, err := c.get(ctx, c.request(c.path("/containers/%s/json", url.PathEscape(name)), nil))
	if err != nil {
		return ContainerSnapshot{}, fmt.Errorf("inspect container %q: %w", name, err)
	}

	switch resp.Head.StatusCode {
	case http.StatusOK:
		var info container.InspectResponse
		if err := json.Unmarshal([]byte(resp.Body), &info); err != nil {
			return ContainerSnapshot{}, fmt.Errorf("inspect container %q: %w: %v", name, ErrDecode, err)
		}
		return snapshotFromInspect(info), nil
	case http.StatusNotFound:
		return ContainerSnapshot{}, fmt.Errorf("inspect container %q: %w", name, errdefs.ErrNotFound)
	default:
		return ContainerSnapshot{}, fmt.Errorf("inspect container %q: %w", name, apiError(resp))
	}
}

// Logs follows the named container's stdout and stderr from now on. tty
// tells the client how the container was started, for daemons that do not
// label the log stream's framing.
func (c *Client) Logs(ctx context.Context, name string, tty bool) (*LiveStream, error) {
	req := c.request(c.path("/containers/%s/logs", url.PathEscape(name)), map[string]string{
		"follow": "true",
		"stdout": "true",
		"stderr": "true",
		"tail":   "0",
	})
	s, err := c.open(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("follow logs of %q: %w", name, err)
	}

	switch s.head.StatusCode {
	case http.StatusOK:
		s.demux = isMultiplexed(s.head, tty)
		return s, nil
	case http.StatusNotFound:
		_ = s.Close()
		return nil, fmt.Errorf("follow logs of %q: %w", name, errdefs.ErrNotFound)
	default:
		_ = s.Close()
		return nil, fmt.Errorf("follow logs of %q: %w", name, &APIError{StatusCode: s.head.StatusCode})
	}
}
