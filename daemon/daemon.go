// Copyright 2026 The AgentFS Authors
// SPDX-License-Identifier: Apache-2.0

package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/agentfs-foundation/agentfs/vfs"
)

// Version is the daemon's reported version. Overridden at build time
// via -ldflags.
var Version = "dev"

// Daemon serves one vfs engine over any number of listeners.
type Daemon struct {
	cfg    Config
	engine *vfs.Engine
	gate   *Gate
	logger *slog.Logger

	nextSession atomic.Uint64

	mu       sync.Mutex
	sessions map[string]*session
}

// New wires a daemon around an engine. The gate is built from the
// config's allowlist.
func New(cfg Config, engine *vfs.Engine, logger *slog.Logger) *Daemon {
	return &Daemon{
		cfg:      cfg,
		engine:   engine,
		gate:     NewGate(cfg.Allowlist),
		logger:   logger,
		sessions: make(map[string]*session),
	}
}

// Engine exposes the underlying engine, for in-process callers that
// share the daemon's state (mount adapters running in the same
// process).
func (d *Daemon) Engine() *vfs.Engine { return d.engine }

// ListenSocket creates a unix socket listener, removing any stale
// socket file from a previous run.
func ListenSocket(socketPath string) (net.Listener, error) {
	socketDir := filepath.Dir(socketPath)
	if err := os.MkdirAll(socketDir, 0755); err != nil {
		return nil, fmt.Errorf("creating socket directory %s: %w", socketDir, err)
	}

	if err := os.Remove(socketPath); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("removing stale socket %s: %w", socketPath, err)
	}

	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return nil, err
	}

	// Group access for local tooling running as a different user.
	if err := os.Chmod(socketPath, 0660); err != nil {
		listener.Close()
		return nil, fmt.Errorf("setting socket permissions: %w", err)
	}

	return listener, nil
}

// Serve accepts connections until ctx is cancelled. gated marks the
// listener as shim-facing: every connection must handshake before
// any other request. Serve closes the listener on cancellation and
// returns nil.
func (d *Daemon) Serve(ctx context.Context, listener net.Listener, gated bool) error {
	go func() {
		<-ctx.Done()
		listener.Close()
	}()

	if gated && d.gate.Empty() {
		d.logger.Warn("gated listener has an empty allowlist; every shim will be rejected",
			"addr", listener.Addr().String(),
		)
	}

	for {
		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			d.logger.Error("accept error", "error", err)
			continue
		}
		go d.handleConnection(ctx, conn, gated)
	}
}

// SessionCount returns the number of live connections.
func (d *Daemon) SessionCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.sessions)
}

func (d *Daemon) register(s *session) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sessions[s.id] = s
}

func (d *Daemon) unregister(s *session) {
	d.mu.Lock()
	delete(d.sessions, s.id)
	d.mu.Unlock()

	// Reclaim everything the session holds: open handles and any
	// branch binding targeting the session itself.
	d.engine.CloseSession(s.id)
}
