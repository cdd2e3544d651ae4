package docker

import (
	"strings"

	"github.com/docker/docker/api/types/container"
)

// ContainerSnapshot is the inspected state of one container at the time it
// was fetched. Snapshots are replaced, never updated.
type ContainerSnapshot struct {
	ID         string
	Name       string
	Image      string
	Status     string
	Running    bool
	Paused     bool
	Restarting bool
	Dead       bool
	ExitCode   int
	TTY        bool
}

func snapshotFromInspect(resp container.InspectResponse) ContainerSnapshot {
	var snap ContainerSnapshot
	if base := resp.ContainerJSONBase; base != nil {
		snap.ID = base.ID
		snap.Name = strings.TrimPrefix(base.Name, "/")
		snap.Image = base.Image
		if st := base.State; st != nil {
			snap.Status = string(st.Status)
			snap.Running = st.Running
			snap.Paused = st.Paused
			snap.Restarting = st.Restarting
			snap.Dead = st.Dead
			snap.ExitCode = st.ExitCode
		}
	}
	if cfg := resp.Config; cfg != nil {
		snap.TTY = cfg.Tty
		if cfg.Image != "" {
			snap.Image = cfg.Image
		}
	}
	return snap
}
