package docker

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/docker/docker/api/types"
)

// Version returns the daemon's version information.
func (c *Client) Version(ctx context.Context) (types.Version, error) {
	resp, err := c.get(ctx, c.request(c.path("/version"), nil))
	if err != nil {
		return types.Version{}, fmt.Errorf("docker version: %w", err)
	}
	if resp.Head.StatusCode != http.StatusOK {
		return types.Version{}, fmt.Errorf("docker version: %w", apiError(resp))
	}

	var v types.Version
	if err := json.Unmarshal([]byte(resp.Body), &v); err != nil {
		return types.Version{}, fmt.Errorf("docker version: %w: %v", ErrDecode, err)
	}
	return v, nil
}

// Ping checks that the daemon answers and reports the headers it returns.
func (c *Client) Ping(ctx context.Context) (types.Ping, error) {
	resp, err := c.get(ctx, c.request(c.path("/_ping"), nil))
	if err != nil {
		return types.Ping{}, fmt.Errorf("ping docker daemon: %w", err)
	}
	if resp.Head.StatusCode != http.StatusOK {
		return types.Ping{}, fmt.Errorf("ping docker daemon: %w", apiError(resp))
	}

	h := resp.Head.Header
	return types.Ping{
		APIVersion:   h.Get("Api-Version"),
		OSType:       h.Get("Ostype"),
		Experimental: strings.EqualFold(h.Get("Docker-Experimental"), "true"),
	}, nil
}

// Events opens the daemon's lifecycle event feed.
func (c *Client) Events(ctx context.Context) (*EventStream, error) {
	s, err := c.open(ctx, c.request(c.path("/events"), nil))
	if err != nil {
		return nil, fmt.Errorf("stream docker events: %w", err)
	}
	if s.head.StatusCode != http.StatusOK {
		_ = s.Close()
		return nil, fmt.Errorf("stream docker events: %w", &APIError{StatusCode: s.head.StatusCode})
	}
	return &EventStream{live: s}, nil
}
