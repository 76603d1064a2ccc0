// Copyright 2026 The AgentFS Authors
// SPDX-License-Identifier: Apache-2.0

package daemon

import (
	"fmt"

	"github.com/agentfs-foundation/agentfs/lib/codec"
	"github.com/agentfs-foundation/agentfs/proto"
	"github.com/agentfs-foundation/agentfs/vfs"
)

// maxStatePayload bounds the encoded introspection body so the full
// response envelope still fits in one frame. The envelope wraps the
// body in a few dozen bytes; 4 KiB of headroom is far more than it
// needs.
const maxStatePayload = proto.MaxFrameSize - 4096

// daemonState assembles the introspection view for one request:
// aggregate counters, the requesting connection's kernel-verified
// identity, and optionally a recursive listing of one tree.
func (s *session) daemonState(request proto.DaemonStateRequest) (proto.DaemonStateResponse, error) {
	engine := s.daemon.engine
	stats := engine.Stats()

	response := proto.DaemonStateResponse{
		Version: Version,
		Stats: proto.Stats{
			Sessions:    s.daemon.SessionCount(),
			OpenHandles: stats.OpenHandles,
			Branches:    stats.Branches,
			Snapshots:   stats.Snapshots,
			Nodes:       stats.Nodes,
		},
		Peer: s.peer,
	}

	// The tree listing is optional: a zero ref means counters only.
	if request.Tree == (vfs.TreeRef{}) {
		return response, nil
	}

	entries, err := engine.ListTree(request.Tree, request.MaxFileSize)
	if err != nil {
		return proto.DaemonStateResponse{}, err
	}
	response.Entries = make([]proto.FilesystemEntry, len(entries))
	for i, entry := range entries {
		response.Entries[i] = proto.FilesystemEntry{
			Path:    entry.Path,
			Kind:    uint8(entry.Kind),
			Size:    entry.Size,
			Target:  entry.Target,
			Content: entry.Content,
		}
	}

	// A listing that cannot fit in one frame answers a typed error
	// instead of failing the frame write and tearing the connection
	// down.
	encoded, err := codec.Marshal(response)
	if err != nil {
		return proto.DaemonStateResponse{}, fmt.Errorf("encoding state listing: %w", err)
	}
	if len(encoded) > maxStatePayload {
		return proto.DaemonStateResponse{}, fmt.Errorf(
			"state listing is %d bytes, exceeding the %d-byte frame payload; lower max_file_size: %w",
			len(encoded), maxStatePayload, vfs.ErrNoSpace)
	}
	return response, nil
}
