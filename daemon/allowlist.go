// Copyright 2026 The AgentFS Authors
// SPDX-License-Identifier: Apache-2.0

package daemon

import (
	"strconv"
	"strings"

	"github.com/agentfs-foundation/agentfs/proto"
)

// Gate evaluates the daemon-side allowlist for handshaking shim
// processes. The shim carries its own allowlist evaluation in the
// handshake for audit, but the daemon never trusts it: admission is
// decided here, against the daemon's configuration.
type Gate struct {
	entries []string
}

// NewGate builds a gate from configured entries. Entries are
// trimmed; empty entries are dropped. A gate with no entries admits
// nothing.
func NewGate(entries []string) *Gate {
	kept := make([]string, 0, len(entries))
	for _, entry := range entries {
		if trimmed := strings.TrimSpace(entry); trimmed != "" {
			kept = append(kept, trimmed)
		}
	}
	return &Gate{entries: kept}
}

// Admit checks a process against the allowlist and returns the
// matching entry. Matching rules, first match wins:
//
//   - "*" admits every process
//   - a numeric entry admits the process with that exact PID
//   - any other entry admits a process whose executable basename
//     equals it (case-insensitive), or whose executable path
//     contains it (case-insensitive substring)
func (g *Gate) Admit(process proto.ProcessInfo) (string, bool) {
	exeName := strings.ToLower(process.ExeName)
	exePath := strings.ToLower(process.ExePath)

	for _, entry := range g.entries {
		if entry == "*" {
			return entry, true
		}
		if pid, err := strconv.ParseInt(entry, 10, 32); err == nil {
			if int32(pid) == process.PID {
				return entry, true
			}
			continue
		}
		lowered := strings.ToLower(entry)
		if lowered == exeName {
			return entry, true
		}
		if exePath != "" && strings.Contains(exePath, lowered) {
			return entry, true
		}
	}
	return "", false
}

// Empty reports whether the gate has no entries at all, which the
// daemon logs prominently at startup: a gated socket with an empty
// allowlist rejects every shim.
func (g *Gate) Empty() bool { return len(g.entries) == 0 }
