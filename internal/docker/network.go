package docker

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"

	"github.com/containerd/errdefs"
	dockernetwork "github.com/docker/docker/api/types/network"
)

// NetworkContainers returns the names of the containers currently attached
// to the named network, sorted.
func (c *Client) NetworkContainers(ctx context.Context, name string) ([]string, error) {
	resp, err := c.get(ctx, c.request(c.path("/networks/%s", url.PathEscape(name)), nil))
	if err != nil {
		return nil, fmt.Errorf("inspect docker network %q: %w", name, err)
	}

	switch resp.Head.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, fmt.Errorf("inspect docker network %q: %w", name, errdefs.ErrNotFound)
	default:
		return nil, fmt.Errorf("inspect docker network %q: %w", name, apiError(resp))
	}

	var nw dockernetwork.Inspect
	if err := json.Unmarshal([]byte(resp.Body), &nw); err != nil {
		return nil, fmt.Errorf("inspect docker network %q: %w: %v", name, ErrDecode, err)
	}
	names := make([]string, 0, len(nw.Containers))
	for id, ep := range nw.Containers {
		if ep.Name == "" {
			names = append(names, id)
			continue
		}
		names = append(names, ep.Name)
	}
	sort.Strings(names)
	return names, nil
}
