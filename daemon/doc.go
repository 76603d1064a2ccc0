// Copyright 2026 The AgentFS Authors
// SPDX-License-Identifier: Apache-2.0

// Package daemon serves the vfs engine over local unix sockets using
// the proto wire protocol.
//
// Two listener roles exist. The control socket is for trusted local
// tooling (the CLI, mount adapters): connections are ready for
// requests immediately. The gated socket is for interposition shims
// loaded into arbitrary agent processes: a connection's first frame
// must be a handshake that passes the daemon's allowlist and
// matches the socket's kernel-verified peer credentials, or the
// connection is closed.
//
// Each connection is one session: handles opened on it are invisible
// to other connections and reclaimed on disconnect, along with any
// branch binding the session made for itself.
package daemon
