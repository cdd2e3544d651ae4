package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
containers:
  - shop_web_1
  - shop_db_1
filter:
  - healthcheck
`))
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if strings.Join(cfg.Containers, ",") != "shop_web_1,shop_db_1" {
		t.Fatalf("Containers = %v", cfg.Containers)
	}
	if !cfg.Display.StripPrefix() {
		t.Fatal("StripPrefix() = false, want default true")
	}
	if cfg.Display.Delimiter() != '_' {
		t.Fatalf("Delimiter() = %q, want '_'", cfg.Display.Delimiter())
	}
	if cfg.Display.Emojis || cfg.Display.Colors {
		t.Fatalf("Display = %+v, want emojis and colors off", cfg.Display)
	}
}

func TestParseDisplay(t *testing.T) {
	cfg, err := Parse([]byte(`
containers: [api]
networks: [backend]
display:
  remove_prefix: false
  prefix_end: "-"
  emojis: true
  colors: true
`))
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	d := cfg.Display
	if d.StripPrefix() || d.Delimiter() != '-' || !d.Emojis || !d.Colors {
		t.Fatalf("Display = %+v", d)
	}
	if len(cfg.Networks) != 1 || cfg.Networks[0] != "backend" {
		t.Fatalf("Networks = %v", cfg.Networks)
	}
}

func TestParseRejects(t *testing.T) {
	testCases := []struct {
		name string
		yaml string
	}{
		{name: "non-string container", yaml: "containers:\n  - {name: web}\n"},
		{name: "non-bool emojis", yaml: "display:\n  emojis: sometimes\n"},
		{name: "long prefix end", yaml: "display:\n  prefix_end: \"__\"\n"},
		{name: "empty prefix end", yaml: "display:\n  prefix_end: \"\"\n"},
		{name: "unknown key", yaml: "containerz: [web]\n"},
		{name: "empty filter", yaml: "filter: [\"\"]\n"},
		{name: "negative workers", yaml: "workers: -1\n"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Parse([]byte(tc.yaml)); !errors.Is(err, ErrInvalid) {
				t.Fatalf("Parse() error = %v, want ErrInvalid", err)
			}
		})
	}
}

func TestParseRejectsEmptyPrefixEnd(t *testing.T) {
	_, err := Parse([]byte("containers: [api]\ndisplay:\n  prefix_end: \"\"\n"))
	if !errors.Is(err, ErrInvalid) {
		t.Fatalf("Parse() error = %v, want ErrInvalid", err)
	}
	if !strings.Contains(err.Error(), "single character") {
		t.Fatalf("Parse() error = %q, want a single character complaint", err)
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()

	if _, err := Load(filepath.Join(dir, DefaultPath)); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Load(missing) error = %v, want ErrNotFound", err)
	}

	path := filepath.Join(dir, DefaultPath)
	if err := os.WriteFile(path, []byte("containers: [web]\napi_version: v1.43\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.APIVersion != "v1.43" || len(cfg.Containers) != 1 {
		t.Fatalf("Load() = %+v", cfg)
	}
}

func TestLoadUnreadable(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root can read any file")
	}
	path := filepath.Join(t.TempDir(), DefaultPath)
	if err := os.WriteFile(path, []byte("containers: [web]\n"), 0o200); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); !errors.Is(err, ErrNotReadable) {
		t.Fatalf("Load() error = %v, want ErrNotReadable", err)
	}
}

func TestAddContainersDeduplicates(t *testing.T) {
	cfg := &Config{Containers: []string{"web", "db"}}
	cfg.AddContainers("db", "cache", "cache")
	if got := strings.Join(cfg.Containers, ","); got != "web,db,cache" {
		t.Fatalf("Containers = %s, want web,db,cache", got)
	}
}

func TestComposeContainers(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "Shop")
	if err := os.Mkdir(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, "compose.yaml")
	spec := `
services:
  web:
    image: nginx:alpine
  db:
    image: postgres:16
    container_name: shop-postgres
`
	if err := os.WriteFile(path, []byte(spec), 0o600); err != nil {
		t.Fatal(err)
	}

	names, err := ComposeContainers(context.Background(), path, '_')
	if err != nil {
		t.Fatalf("ComposeContainers() error: %v", err)
	}
	if got := strings.Join(names, ","); got != "shop-postgres,shop_web_1" {
		t.Fatalf("names = %s, want shop-postgres,shop_web_1", got)
	}
}

func TestComposeContainersUsesProjectName(t *testing.T) {
	path := filepath.Join(t.TempDir(), "compose.yaml")
	spec := `
name: storefront
services:
  api:
    image: ghcr.io/example/api:1
`
	if err := os.WriteFile(path, []byte(spec), 0o600); err != nil {
		t.Fatal(err)
	}

	names, err := ComposeContainers(context.Background(), path, '-')
	if err != nil {
		t.Fatalf("ComposeContainers() error: %v", err)
	}
	if len(names) != 1 || names[0] != "storefront-api-1" {
		t.Fatalf("names = %v, want [storefront-api-1]", names)
	}
}
