// Copyright 2026 The AgentFS Authors
// SPDX-License-Identifier: Apache-2.0

package daemon

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/agentfs-foundation/agentfs/vfs"
)

// Config is the daemon configuration. Loaded from a single YAML file
// named by AGENTFS_CONFIG or the --config flag; there is no search
// path or automatic discovery, so the effective configuration is
// always auditable from one file.
type Config struct {
	// ControlSocket is the unix socket for trusted local tooling.
	ControlSocket string `yaml:"control_socket"`

	// GatedSocket is the unix socket for interposition shims. Empty
	// disables the gated listener entirely.
	GatedSocket string `yaml:"gated_socket"`

	// Allowlist admits shim processes on the gated socket. Entries
	// match the process's executable basename (case-insensitive
	// equality), a substring of its executable path, a literal PID,
	// or "*" for everything. An empty list admits nothing.
	Allowlist []string `yaml:"allowlist"`

	// Limits bounds the engine's resource tables.
	Limits vfs.Limits `yaml:"limits"`

	// LogLevel is debug, info, warn, or error.
	LogLevel string `yaml:"log_level"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		ControlSocket: "/run/agentfs/control.sock",
		GatedSocket:   "/run/agentfs/shim.sock",
		Limits:        vfs.DefaultLimits(),
		LogLevel:      "info",
	}
}

// Load reads and validates a config file. Missing fields fall back
// to Default values; unknown fields are rejected so typos fail loud.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config %s: %w", path, err)
	}
	cfg := Default()
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the configuration for contradictions.
func (c Config) Validate() error {
	if c.ControlSocket == "" {
		return fmt.Errorf("control_socket must not be empty")
	}
	if c.GatedSocket == c.ControlSocket {
		return fmt.Errorf("gated_socket must differ from control_socket")
	}
	if _, err := parseLogLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// SlogLevel maps the configured log level to its slog value.
func (c Config) SlogLevel() slog.Level {
	level, err := parseLogLevel(c.LogLevel)
	if err != nil {
		return slog.LevelInfo
	}
	return level
}

func parseLogLevel(name string) (slog.Level, error) {
	switch name {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log_level %q", name)
	}
}
