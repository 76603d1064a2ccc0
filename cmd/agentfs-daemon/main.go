// Copyright 2026 The AgentFS Authors
// SPDX-License-Identifier: Apache-2.0

// Command agentfs-daemon serves the AgentFS engine over local unix
// sockets: a control socket for trusted tooling and an optional
// gated socket for interposition shims.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/agentfs-foundation/agentfs/daemon"
	"github.com/agentfs-foundation/agentfs/lib/clock"
	"github.com/agentfs-foundation/agentfs/vfs"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath    string
		controlSocket string
		gatedSocket   string
		showVersion   bool
	)

	flag.StringVar(&configPath, "config", "", "path to YAML config (defaults to AGENTFS_CONFIG)")
	flag.StringVar(&controlSocket, "control-socket", "", "control socket path (overrides config)")
	flag.StringVar(&gatedSocket, "gated-socket", "", "gated shim socket path (overrides config; empty string in config disables)")
	flag.BoolVar(&showVersion, "version", false, "print version information and exit")
	flag.Parse()

	if showVersion {
		fmt.Printf("agentfs-daemon %s\n", daemon.Version)
		return nil
	}

	if configPath == "" {
		configPath = os.Getenv("AGENTFS_CONFIG")
	}
	cfg := daemon.Default()
	if configPath != "" {
		loaded, err := daemon.Load(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if controlSocket != "" {
		cfg.ControlSocket = controlSocket
	}
	if gatedSocket != "" {
		cfg.GatedSocket = gatedSocket
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	engine := vfs.NewEngine(vfs.Config{Limits: cfg.Limits}, clock.Real())
	d := daemon.New(cfg, engine, logger)

	controlListener, err := daemon.ListenSocket(cfg.ControlSocket)
	if err != nil {
		return fmt.Errorf("control socket: %w", err)
	}
	logger.Info("control socket listening", "path", cfg.ControlSocket)

	errs := make(chan error, 2)
	go func() { errs <- d.Serve(ctx, controlListener, false) }()

	if cfg.GatedSocket != "" {
		gatedListener, err := daemon.ListenSocket(cfg.GatedSocket)
		if err != nil {
			return fmt.Errorf("gated socket: %w", err)
		}
		logger.Info("gated socket listening",
			"path", cfg.GatedSocket,
			"allowlist_entries", len(cfg.Allowlist),
		)
		go func() { errs <- d.Serve(ctx, gatedListener, true) }()
	}

	logger.Info("agentfs-daemon started",
		"version", daemon.Version,
		"root_snapshot", engine.RootSnapshot().String(),
	)

	select {
	case <-ctx.Done():
		logger.Info("shutting down", "reason", "signal")
		return nil
	case err := <-errs:
		return err
	}
}
