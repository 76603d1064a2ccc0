// Copyright 2026 The AgentFS Authors
// SPDX-License-Identifier: Apache-2.0

//go:build linux

package daemon

import (
	"fmt"
	"net"

	"golang.org/x/sys/unix"

	"github.com/agentfs-foundation/agentfs/proto"
)

// peerCredentials returns the kernel-verified identity of the
// process on the other end of a unix socket (SO_PEERCRED). Unlike
// the handshake's self-reported ProcessInfo, these values cannot be
// forged by the peer.
func peerCredentials(conn net.Conn) (proto.PeerInfo, error) {
	unixConn, ok := conn.(*net.UnixConn)
	if !ok {
		return proto.PeerInfo{}, fmt.Errorf("peer credentials need a unix socket, got %T", conn)
	}
	raw, err := unixConn.SyscallConn()
	if err != nil {
		return proto.PeerInfo{}, fmt.Errorf("raw connection: %w", err)
	}

	var cred *unix.Ucred
	var credErr error
	controlErr := raw.Control(func(fd uintptr) {
		cred, credErr = unix.GetsockoptUcred(int(fd), unix.SOL_SOCKET, unix.SO_PEERCRED)
	})
	if controlErr != nil {
		return proto.PeerInfo{}, fmt.Errorf("socket control: %w", controlErr)
	}
	if credErr != nil {
		return proto.PeerInfo{}, fmt.Errorf("SO_PEERCRED: %w", credErr)
	}
	return proto.PeerInfo{PID: cred.Pid, UID: cred.Uid, GID: cred.Gid}, nil
}
