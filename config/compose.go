package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/compose-spec/compose-go/v2/loader"
	compose "github.com/compose-spec/compose-go/v2/types"
)

// ComposeContainers lists the container names a compose project creates:
// a service's container_name when set, otherwise
// <project><sep><service><sep>1. The project name is the file's top-level
// name, falling back to the directory the file lives in.
func ComposeContainers(ctx context.Context, path string, sep rune) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read compose file: %w", err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve compose file path: %w", err)
	}
	dir := filepath.Dir(abs)

	details := compose.ConfigDetails{
		WorkingDir:  dir,
		ConfigFiles: []compose.ConfigFile{{Filename: abs, Content: data}},
		Environment: environment(),
	}
	project, err := loader.LoadWithContext(ctx, details, func(o *loader.Options) {
		o.SetProjectName(loader.NormalizeProjectName(filepath.Base(dir)), false)
		o.SkipConsistencyCheck = true
		o.SkipResolveEnvironment = true
	})
	if err != nil {
		return nil, fmt.Errorf("parse compose spec: %w", err)
	}
	if len(project.Services) == 0 {
		return nil, fmt.Errorf("compose spec has no services")
	}

	s := string(sep)
	names := make([]string, 0, len(project.Services))
	for _, service := range project.ServiceNames() {
		svc := project.Services[service]
		if svc.ContainerName != "" {
			names = append(names, svc.ContainerName)
			continue
		}
		names = append(names, project.Name+s+service+s+"1")
	}
	return names, nil
}

func environment() map[string]string {
	env := make(map[string]string)
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			env[k] = v
		}
	}
	return env
}
