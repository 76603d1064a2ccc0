// Copyright 2026 The AgentFS Authors
// SPDX-License-Identifier: Apache-2.0

//go:build !linux

package daemon

import (
	"fmt"
	"net"

	"github.com/agentfs-foundation/agentfs/proto"
	"github.com/agentfs-foundation/agentfs/vfs"
)

// peerCredentials has no portable implementation off Linux. The
// daemon degrades to allowlist-only gating: the handshake's
// self-reported identity is not cross-checked.
func peerCredentials(conn net.Conn) (proto.PeerInfo, error) {
	return proto.PeerInfo{}, fmt.Errorf("peer credentials: %w", vfs.ErrUnsupported)
}
