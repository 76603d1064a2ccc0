// Copyright 2026 The AgentFS Authors
// SPDX-License-Identifier: Apache-2.0

package daemon

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"

	"github.com/agentfs-foundation/agentfs/proto"
	"github.com/agentfs-foundation/agentfs/vfs"
)

// sessionState tracks a connection through its lifecycle. Gated
// connections start awaiting a handshake; control connections start
// ready.
type sessionState int

const (
	stateAwaitingHandshake sessionState = iota
	stateReady
	stateClosed
)

// session is one live connection. Requests on a connection are
// processed strictly in order; concurrency comes from multiple
// connections sharing the engine.
type session struct {
	id     string
	daemon *Daemon
	conn   net.Conn
	logger *slog.Logger
	state  sessionState
	gated  bool

	peer    proto.PeerInfo // kernel-verified; zero when unavailable
	shim    proto.ShimInfo // from the handshake, gated sessions only
	matched string         // allowlist entry that admitted the shim
}

func (d *Daemon) handleConnection(ctx context.Context, conn net.Conn, gated bool) {
	s := &session{
		id:     fmt.Sprintf("conn-%d", d.nextSession.Add(1)),
		daemon: d,
		conn:   conn,
		gated:  gated,
		state:  stateReady,
	}
	if gated {
		s.state = stateAwaitingHandshake
	}
	s.logger = d.logger.With("session", s.id, "gated", gated)

	if peer, err := peerCredentials(conn); err == nil {
		s.peer = peer
		s.logger = s.logger.With("peer_pid", peer.PID, "peer_uid", peer.UID)
	} else if gated {
		// Gated admission wants the kernel's view; without it the
		// allowlist is the only line, which is worth seeing in logs.
		s.logger.Warn("peer credentials unavailable", "error", err)
	}

	d.register(s)
	defer func() {
		s.state = stateClosed
		d.unregister(s)
		conn.Close()
		s.logger.Info("session closed")
	}()
	s.logger.Info("session opened")

	// Stop blocking reads when the daemon shuts down.
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	for {
		var request proto.Request
		if err := proto.ReadMessage(conn, &request); err != nil {
			if !errors.Is(err, io.EOF) && ctx.Err() == nil {
				s.logger.Warn("malformed request, closing connection", "error", err)
			}
			return
		}

		response, fatal := s.dispatch(request)
		if err := proto.WriteMessage(conn, response); err != nil {
			s.logger.Warn("writing response", "error", err)
			return
		}
		if fatal {
			return
		}
	}
}

// dispatch routes one request. The second result closes the
// connection after the response is written: protocol violations are
// fatal, engine errors are not.
func (s *session) dispatch(request proto.Request) (proto.Response, bool) {
	op := request.Op

	if !op.Known() {
		return proto.ErrorResponse(op, proto.Errf(proto.KindInvalidArgument, "unknown operation %d", uint16(op))), true
	}

	if s.state == stateAwaitingHandshake && op != proto.OpHandshake {
		s.logger.Warn("request before handshake", "op", op.String())
		return proto.ErrorResponse(op, proto.Errf(proto.KindAccessDenied, "handshake required before %s", op)), true
	}
	if op == proto.OpHandshake {
		return s.handleHandshake(request)
	}

	response, err := s.handleRequest(request)
	if err != nil {
		s.logger.Debug("request failed", "op", op.String(), "error", err)
		return proto.ErrorResponse(op, err), false
	}
	return response, false
}

// handleHandshake gates a shim connection: protocol version check,
// daemon-side allowlist evaluation, and a cross-check of the shim's
// self-reported identity against the socket's peer credentials. Any
// failure closes the connection after the rejection is written.
func (s *session) handleHandshake(request proto.Request) (proto.Response, bool) {
	reject := func(format string, args ...any) (proto.Response, bool) {
		message := fmt.Sprintf(format, args...)
		s.logger.Warn("handshake rejected", "reason", message)
		response, err := proto.OKResponse(proto.OpHandshake, proto.HandshakeResponse{Error: message})
		if err != nil {
			return proto.ErrorResponse(proto.OpHandshake, err), true
		}
		return response, true
	}

	var hello proto.HandshakeRequest
	if err := request.DecodeBody(&hello); err != nil {
		return proto.ErrorResponse(proto.OpHandshake, err), true
	}

	if s.state == stateReady && !s.gated {
		// Control connections need no handshake; accept it anyway so
		// a shim pointed at the control socket by mistake still works.
		response, err := proto.OKResponse(proto.OpHandshake, proto.HandshakeResponse{OK: true})
		if err != nil {
			return proto.ErrorResponse(proto.OpHandshake, err), true
		}
		return response, false
	}
	if s.state == stateReady {
		return reject("handshake already completed")
	}

	if hello.Version != proto.Version {
		return reject("protocol version %d, daemon speaks %d", hello.Version, proto.Version)
	}

	// The kernel's peer credentials outrank anything the shim claims
	// about itself.
	if s.peer.PID != 0 && hello.Process.PID != 0 && s.peer.PID != hello.Process.PID {
		return reject("claimed pid %d, socket peer is pid %d", hello.Process.PID, s.peer.PID)
	}
	if s.peer.PID != 0 && hello.Process.UID != s.peer.UID {
		return reject("claimed uid %d, socket peer is uid %d", hello.Process.UID, s.peer.UID)
	}

	matched, ok := s.daemon.gate.Admit(hello.Process)
	if !ok {
		return reject("process %q (pid %d) not in allowlist", hello.Process.ExeName, hello.Process.PID)
	}

	s.state = stateReady
	s.shim = hello.Shim
	s.matched = matched
	s.logger.Info("handshake accepted",
		"shim", hello.Shim.Name,
		"shim_version", hello.Shim.Version,
		"exe", hello.Process.ExeName,
		"pid", hello.Process.PID,
		"matched_entry", matched,
	)

	response, err := proto.OKResponse(proto.OpHandshake, proto.HandshakeResponse{OK: true, MatchedEntry: matched})
	if err != nil {
		return proto.ErrorResponse(proto.OpHandshake, err), true
	}
	return response, false
}

// handleRequest executes one ready-state operation against the
// engine and encodes its result.
func (s *session) handleRequest(request proto.Request) (proto.Response, error) {
	engine := s.daemon.engine
	op := request.Op

	switch op {
	case proto.OpOpen:
		var body proto.OpenRequest
		if err := request.DecodeBody(&body); err != nil {
			return proto.Response{}, err
		}
		handle, err := engine.Open(s.id, body.Tree, body.Path, vfs.OpenFlags(body.Flags), body.Mode)
		if err != nil {
			return proto.Response{}, err
		}
		return proto.OKResponse(op, proto.OpenResponse{Handle: handle})

	case proto.OpCreate:
		var body proto.CreateRequest
		if err := request.DecodeBody(&body); err != nil {
			return proto.Response{}, err
		}
		handle, err := engine.Create(s.id, body.Branch, body.Path, body.Mode)
		if err != nil {
			return proto.Response{}, err
		}
		return proto.OKResponse(op, proto.OpenResponse{Handle: handle})

	case proto.OpRead:
		var body proto.ReadRequest
		if err := request.DecodeBody(&body); err != nil {
			return proto.Response{}, err
		}
		if body.Length > proto.MaxFrameSize/2 {
			return proto.Response{}, proto.Errf(proto.KindInvalidArgument,
				"read length %d exceeds maximum frame payload", body.Length)
		}
		data, eof, err := engine.Read(s.id, body.Handle, int(body.Length))
		if err != nil {
			return proto.Response{}, err
		}
		return proto.OKResponse(op, proto.ReadResponse{Data: data, EOF: eof})

	case proto.OpWrite:
		var body proto.WriteRequest
		if err := request.DecodeBody(&body); err != nil {
			return proto.Response{}, err
		}
		written, err := engine.Write(s.id, body.Handle, body.Data)
		if err != nil {
			return proto.Response{}, err
		}
		return proto.OKResponse(op, proto.WriteResponse{Written: uint32(written)})

	case proto.OpClose:
		var body proto.CloseRequest
		if err := request.DecodeBody(&body); err != nil {
			return proto.Response{}, err
		}
		if err := engine.Close(s.id, body.Handle); err != nil {
			return proto.Response{}, err
		}
		return proto.OKResponse(op, proto.Empty{})

	case proto.OpGetAttr:
		var body proto.GetAttrRequest
		if err := request.DecodeBody(&body); err != nil {
			return proto.Response{}, err
		}
		attr, err := engine.GetAttr(body.Tree, body.Path)
		if err != nil {
			return proto.Response{}, err
		}
		return proto.OKResponse(op, proto.GetAttrResponse{Attr: proto.AttrFromVFS(attr)})

	case proto.OpMkdir:
		var body proto.MkdirRequest
		if err := request.DecodeBody(&body); err != nil {
			return proto.Response{}, err
		}
		if err := engine.Mkdir(body.Branch, body.Path, body.Mode); err != nil {
			return proto.Response{}, err
		}
		return proto.OKResponse(op, proto.Empty{})

	case proto.OpReadDir:
		var body proto.ReadDirRequest
		if err := request.DecodeBody(&body); err != nil {
			return proto.Response{}, err
		}
		entries, err := engine.ReadDir(body.Tree, body.Path)
		if err != nil {
			return proto.Response{}, err
		}
		wire := make([]proto.DirEntry, len(entries))
		for i, entry := range entries {
			wire[i] = proto.DirEntry{Name: entry.Name, Kind: uint8(entry.Kind), Size: entry.Size}
		}
		return proto.OKResponse(op, proto.ReadDirResponse{Entries: wire})

	case proto.OpUnlink:
		var body proto.UnlinkRequest
		if err := request.DecodeBody(&body); err != nil {
			return proto.Response{}, err
		}
		if err := engine.Unlink(body.Branch, body.Path); err != nil {
			return proto.Response{}, err
		}
		return proto.OKResponse(op, proto.Empty{})

	case proto.OpSymlink:
		var body proto.SymlinkRequest
		if err := request.DecodeBody(&body); err != nil {
			return proto.Response{}, err
		}
		if err := engine.Symlink(body.Branch, body.Path, body.Target); err != nil {
			return proto.Response{}, err
		}
		return proto.OKResponse(op, proto.Empty{})

	case proto.OpReadlink:
		var body proto.ReadlinkRequest
		if err := request.DecodeBody(&body); err != nil {
			return proto.Response{}, err
		}
		target, err := engine.Readlink(body.Tree, body.Path)
		if err != nil {
			return proto.Response{}, err
		}
		return proto.OKResponse(op, proto.ReadlinkResponse{Target: target})

	case proto.OpBranchCreate:
		var body proto.BranchCreateRequest
		if err := request.DecodeBody(&body); err != nil {
			return proto.Response{}, err
		}
		snapshot := body.Snapshot
		if snapshot.IsZero() {
			// Unset snapshot means the boot snapshot: the common
			// "give me a fresh empty workspace" case.
			snapshot = engine.RootSnapshot()
		}
		info, err := engine.CreateBranch(snapshot, body.Label)
		if err != nil {
			return proto.Response{}, err
		}
		return proto.OKResponse(op, proto.BranchCreateResponse{Branch: proto.BranchInfoFromVFS(info)})

	case proto.OpBranchBind:
		var body proto.BranchBindRequest
		if err := request.DecodeBody(&body); err != nil {
			return proto.Response{}, err
		}
		target := body.Target
		if target == "" {
			// Bind to the connection itself; released on disconnect.
			target = s.id
		}
		if err := engine.BindBranch(body.Branch, target); err != nil {
			return proto.Response{}, err
		}
		return proto.OKResponse(op, proto.BranchBindResponse{Target: target})

	case proto.OpBranchList:
		infos := engine.ListBranches()
		wire := make([]proto.BranchInfo, len(infos))
		for i, info := range infos {
			wire[i] = proto.BranchInfoFromVFS(info)
		}
		return proto.OKResponse(op, proto.BranchListResponse{Branches: wire})

	case proto.OpSnapshotCreate:
		var body proto.SnapshotCreateRequest
		if err := request.DecodeBody(&body); err != nil {
			return proto.Response{}, err
		}
		info, err := engine.CreateSnapshot(body.Branch, body.Label)
		if err != nil {
			return proto.Response{}, err
		}
		return proto.OKResponse(op, proto.SnapshotCreateResponse{Snapshot: proto.SnapshotInfoFromVFS(info)})

	case proto.OpSnapshotList:
		infos := engine.ListSnapshots()
		wire := make([]proto.SnapshotInfo, len(infos))
		for i, info := range infos {
			wire[i] = proto.SnapshotInfoFromVFS(info)
		}
		return proto.OKResponse(op, proto.SnapshotListResponse{Snapshots: wire})

	case proto.OpDaemonState:
		var body proto.DaemonStateRequest
		if err := request.DecodeBody(&body); err != nil {
			return proto.Response{}, err
		}
		state, err := s.daemonState(body)
		if err != nil {
			return proto.Response{}, err
		}
		return proto.OKResponse(op, state)

	default:
		return proto.Response{}, proto.Errf(proto.KindNotImplemented, "operation %s not implemented", op)
	}
}
