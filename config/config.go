// Package config loads the watch configuration.
//
// The file is YAML, read from docker-watch.yml in the working directory
// unless another path is given. It names the containers to follow, how
// they are displayed, and which log lines to drop.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"golang.org/x/sys/unix"
	"gopkg.in/yaml.v3"
)

// DefaultPath is the config file looked up in the working directory.
const DefaultPath = "docker-watch.yml"

const defaultPrefixEnd = "_"

var (
	ErrNotFound    = errors.New("config file not found")
	ErrNotReadable = errors.New("config file not readable")
	ErrInvalid     = errors.New("invalid config")
)

// Display controls how container names and records are rendered.
type Display struct {
	RemovePrefix *bool   `yaml:"remove_prefix,omitempty"`
	PrefixEnd    *string `yaml:"prefix_end,omitempty"`
	Emojis       bool    `yaml:"emojis,omitempty"`
	Colors       bool    `yaml:"colors,omitempty"`
}

// StripPrefix reports whether project prefixes are removed. Defaults to true.
func (d Display) StripPrefix() bool {
	return d.RemovePrefix == nil || *d.RemovePrefix
}

// Delimiter returns the prefix delimiter. Defaults to '_'.
func (d Display) Delimiter() rune {
	s := defaultPrefixEnd
	if d.PrefixEnd != nil && *d.PrefixEnd != "" {
		s = *d.PrefixEnd
	}
	r, _ := utf8.DecodeRuneInString(s)
	return r
}

// Config is the watch configuration.
type Config struct {
	Containers  []string `yaml:"containers"`
	Networks    []string `yaml:"networks,omitempty"`
	ComposeFile string   `yaml:"compose_file,omitempty"`
	APIVersion  string   `yaml:"api_version,omitempty"`
	Workers     int      `yaml:"workers,omitempty"`
	Display     Display  `yaml:"display"`
	Filter      []string `yaml:"filter,omitempty"`
}

// Load reads and validates the config at path.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := unix.Access(path, unix.R_OK); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrNotReadable, path, err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes and validates YAML config data. Unknown keys are rejected.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks field values the YAML types cannot express.
func (c *Config) Validate() error {
	if p := c.Display.PrefixEnd; p != nil && utf8.RuneCountInString(*p) != 1 {
		return fmt.Errorf("%w: display.prefix_end must be a single character, got %q", ErrInvalid, *p)
	}
	for i, name := range c.Containers {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("%w: containers[%d] is empty", ErrInvalid, i)
		}
	}
	for i, f := range c.Filter {
		if f == "" {
			return fmt.Errorf("%w: filter[%d] is empty", ErrInvalid, i)
		}
	}
	if c.Workers < 0 {
		return fmt.Errorf("%w: workers must not be negative", ErrInvalid)
	}
	return nil
}

// AddContainers appends names not already listed, keeping order.
func (c *Config) AddContainers(names ...string) {
	seen := make(map[string]struct{}, len(c.Containers))
	for _, n := range c.Containers {
		seen[n] = struct{}{}
	}
	for _, n := range names {
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		c.Containers = append(c.Containers, n)
	}
}
