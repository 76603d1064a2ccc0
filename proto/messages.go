// Copyright 2026 The AgentFS Authors
// SPDX-License-Identifier: Apache-2.0

package proto

import (
	"fmt"
	"time"

	"github.com/agentfs-foundation/agentfs/lib/codec"
	"github.com/agentfs-foundation/agentfs/vfs"
)

// Version is the protocol version carried in the handshake. Bumped
// on any incompatible change to the message shapes below.
const Version uint32 = 1

// Op identifies a request's operation. The numeric values are wire
// constants; never renumber.
type Op uint16

const (
	OpHandshake      Op = 1
	OpOpen           Op = 2
	OpCreate         Op = 3
	OpRead           Op = 4
	OpWrite          Op = 5
	OpClose          Op = 6
	OpGetAttr        Op = 7
	OpMkdir          Op = 8
	OpReadDir        Op = 9
	OpUnlink         Op = 10
	OpSymlink        Op = 11
	OpReadlink       Op = 12
	OpBranchCreate   Op = 13
	OpBranchBind     Op = 14
	OpBranchList     Op = 15
	OpSnapshotCreate Op = 16
	OpSnapshotList   Op = 17
	OpDaemonState    Op = 18
)

var opNames = map[Op]string{
	OpHandshake:      "handshake",
	OpOpen:           "open",
	OpCreate:         "create",
	OpRead:           "read",
	OpWrite:          "write",
	OpClose:          "close",
	OpGetAttr:        "getattr",
	OpMkdir:          "mkdir",
	OpReadDir:        "readdir",
	OpUnlink:         "unlink",
	OpSymlink:        "symlink",
	OpReadlink:       "readlink",
	OpBranchCreate:   "branch_create",
	OpBranchBind:     "branch_bind",
	OpBranchList:     "branch_list",
	OpSnapshotCreate: "snapshot_create",
	OpSnapshotList:   "snapshot_list",
	OpDaemonState:    "daemon_state",
}

// String returns the op's lowercase wire name.
func (o Op) String() string {
	if name, ok := opNames[o]; ok {
		return name
	}
	return fmt.Sprintf("unknown(%d)", uint16(o))
}

// Known reports whether the op is defined in this protocol version.
func (o Op) Known() bool { _, ok := opNames[o]; return ok }

// Request is the envelope every client frame carries: an operation
// code and the op-specific body, kept opaque so the envelope decodes
// before the body's shape is known.
type Request struct {
	Op   Op               `cbor:"op"`
	Body codec.RawMessage `cbor:"body"`
}

// NewRequest encodes body into a request envelope.
func NewRequest(op Op, body any) (Request, error) {
	encoded, err := codec.Marshal(body)
	if err != nil {
		return Request{}, fmt.Errorf("encode %s body: %w", op, err)
	}
	return Request{Op: op, Body: encoded}, nil
}

// DecodeBody decodes the request body into the op's payload struct.
func (r Request) DecodeBody(into any) error {
	if err := codec.Unmarshal(r.Body, into); err != nil {
		return fmt.Errorf("decode %s body: %w", r.Op, err)
	}
	return nil
}

// Response is the envelope every daemon frame carries. Exactly one
// of Body (on success) or Err (on failure) is populated.
type Response struct {
	Op   Op               `cbor:"op"`
	OK   bool             `cbor:"ok"`
	Body codec.RawMessage `cbor:"body,omitempty"`
	Err  *WireError       `cbor:"error,omitempty"`
}

// OKResponse encodes body into a success response for op.
func OKResponse(op Op, body any) (Response, error) {
	encoded, err := codec.Marshal(body)
	if err != nil {
		return Response{}, fmt.Errorf("encode %s response: %w", op, err)
	}
	return Response{Op: op, OK: true, Body: encoded}, nil
}

// ErrorResponse wraps err into a failure response for op.
func ErrorResponse(op Op, err error) Response {
	if wired, ok := err.(*WireError); ok {
		return Response{Op: op, Err: wired}
	}
	return Response{Op: op, Err: NewWireError(err)}
}

// DecodeBody decodes a success response's body into the op's payload
// struct. A failure response returns its WireError instead.
func (r Response) DecodeBody(into any) error {
	if !r.OK {
		if r.Err != nil {
			return r.Err
		}
		return Errf(KindInternal, "%s failed without error detail", r.Op)
	}
	if err := codec.Unmarshal(r.Body, into); err != nil {
		return fmt.Errorf("decode %s response: %w", r.Op, err)
	}
	return nil
}

// Empty is the body of requests and responses that carry no payload.
type Empty struct{}

// OpenRequest opens a file and returns a handle.
type OpenRequest struct {
	Tree  vfs.TreeRef `cbor:"tree"`
	Path  string      `cbor:"path"`
	Flags uint32      `cbor:"flags"`
	Mode  uint32      `cbor:"mode"`
}

// OpenResponse carries the allocated handle.
type OpenResponse struct {
	Handle vfs.HandleID `cbor:"handle"`
}

// CreateRequest creates (or empties) a file and returns a write
// handle. Shorthand for Open with write+create+truncate.
type CreateRequest struct {
	Branch vfs.BranchID `cbor:"branch"`
	Path   string       `cbor:"path"`
	Mode   uint32       `cbor:"mode"`
}

// ReadRequest reads up to Length bytes at the handle's cursor.
type ReadRequest struct {
	Handle vfs.HandleID `cbor:"handle"`
	Length uint32       `cbor:"length"`
}

// ReadResponse carries the read bytes and the end-of-file flag.
type ReadResponse struct {
	Data []byte `cbor:"data"`
	EOF  bool   `cbor:"eof"`
}

// WriteRequest writes Data at the handle's cursor.
type WriteRequest struct {
	Handle vfs.HandleID `cbor:"handle"`
	Data   []byte       `cbor:"data"`
}

// WriteResponse reports the number of bytes written.
type WriteResponse struct {
	Written uint32 `cbor:"written"`
}

// CloseRequest releases a handle.
type CloseRequest struct {
	Handle vfs.HandleID `cbor:"handle"`
}

// GetAttrRequest stats the object at Path.
type GetAttrRequest struct {
	Tree vfs.TreeRef `cbor:"tree"`
	Path string      `cbor:"path"`
}

// Attr is the wire form of vfs.Attr. Timestamps travel as Unix
// milliseconds; the digest as its canonical hex form.
type Attr struct {
	Kind    uint8  `cbor:"kind"`
	Size    int64  `cbor:"size"`
	Mode    uint32 `cbor:"mode"`
	ModTime int64  `cbor:"mtime_ms"`
	Node    uint64 `cbor:"node"`
	Digest  string `cbor:"digest"`
}

// AttrFromVFS converts an engine Attr to its wire form.
func AttrFromVFS(a vfs.Attr) Attr {
	return Attr{
		Kind:    uint8(a.Kind),
		Size:    a.Size,
		Mode:    a.Mode,
		ModTime: a.ModTime.UnixMilli(),
		Node:    uint64(a.Node),
		Digest:  vfs.FormatDigest(a.Digest),
	}
}

// ModTimeAsTime returns the attr's modification time as time.Time.
func (a Attr) ModTimeAsTime() time.Time { return time.UnixMilli(a.ModTime).UTC() }

// GetAttrResponse carries the object's attributes.
type GetAttrResponse struct {
	Attr Attr `cbor:"attr"`
}

// MkdirRequest creates a directory.
type MkdirRequest struct {
	Branch vfs.BranchID `cbor:"branch"`
	Path   string       `cbor:"path"`
	Mode   uint32       `cbor:"mode"`
}

// ReadDirRequest lists a directory.
type ReadDirRequest struct {
	Tree vfs.TreeRef `cbor:"tree"`
	Path string      `cbor:"path"`
}

// DirEntry is the wire form of one directory entry.
type DirEntry struct {
	Name string `cbor:"name"`
	Kind uint8  `cbor:"kind"`
	Size int64  `cbor:"size"`
}

// ReadDirResponse carries the name-sorted listing.
type ReadDirResponse struct {
	Entries []DirEntry `cbor:"entries"`
}

// UnlinkRequest removes a file, symlink, or empty directory.
type UnlinkRequest struct {
	Branch vfs.BranchID `cbor:"branch"`
	Path   string       `cbor:"path"`
}

// SymlinkRequest creates a symbolic link at Path pointing at Target.
type SymlinkRequest struct {
	Branch vfs.BranchID `cbor:"branch"`
	Path   string       `cbor:"path"`
	Target string       `cbor:"target"`
}

// ReadlinkRequest reads a symlink's target.
type ReadlinkRequest struct {
	Tree vfs.TreeRef `cbor:"tree"`
	Path string      `cbor:"path"`
}

// ReadlinkResponse carries the symlink target.
type ReadlinkResponse struct {
	Target string `cbor:"target"`
}

// BranchInfo is the wire form of vfs.BranchInfo.
type BranchInfo struct {
	ID        vfs.BranchID   `cbor:"id"`
	Label     string         `cbor:"label"`
	Parent    vfs.SnapshotID `cbor:"parent"`
	BoundTo   string         `cbor:"bound_to,omitempty"`
	CreatedAt int64          `cbor:"created_ms"`
}

// BranchInfoFromVFS converts an engine BranchInfo to its wire form.
func BranchInfoFromVFS(info vfs.BranchInfo) BranchInfo {
	return BranchInfo{
		ID:        info.ID,
		Label:     info.Label,
		Parent:    info.Parent,
		BoundTo:   info.BoundTo,
		CreatedAt: info.CreatedAt.UnixMilli(),
	}
}

// SnapshotInfo is the wire form of vfs.SnapshotInfo.
type SnapshotInfo struct {
	ID        vfs.SnapshotID `cbor:"id"`
	Label     string         `cbor:"label"`
	Parent    vfs.BranchID   `cbor:"parent"`
	CreatedAt int64          `cbor:"created_ms"`
}

// SnapshotInfoFromVFS converts an engine SnapshotInfo to its wire
// form.
func SnapshotInfoFromVFS(info vfs.SnapshotInfo) SnapshotInfo {
	return SnapshotInfo{
		ID:        info.ID,
		Label:     info.Label,
		Parent:    info.Parent,
		CreatedAt: info.CreatedAt.UnixMilli(),
	}
}

// BranchCreateRequest forks a branch from a snapshot.
type BranchCreateRequest struct {
	Snapshot vfs.SnapshotID `cbor:"snapshot"`
	Label    string         `cbor:"label"`
}

// BranchCreateResponse carries the new branch's metadata.
type BranchCreateResponse struct {
	Branch BranchInfo `cbor:"branch"`
}

// BranchBindRequest binds a branch to a mount/session target. An
// empty Target binds the branch to the requesting connection's
// session, so the binding is released on disconnect.
type BranchBindRequest struct {
	Branch vfs.BranchID `cbor:"branch"`
	Target string       `cbor:"target,omitempty"`
}

// BranchBindResponse echoes the effective target.
type BranchBindResponse struct {
	Target string `cbor:"target"`
}

// BranchListResponse enumerates branches in creation order.
type BranchListResponse struct {
	Branches []BranchInfo `cbor:"branches"`
}

// SnapshotCreateRequest freezes a branch's current tree.
type SnapshotCreateRequest struct {
	Branch vfs.BranchID `cbor:"branch"`
	Label  string       `cbor:"label"`
}

// SnapshotCreateResponse carries the new snapshot's metadata.
type SnapshotCreateResponse struct {
	Snapshot SnapshotInfo `cbor:"snapshot"`
}

// SnapshotListResponse enumerates snapshots in creation order.
type SnapshotListResponse struct {
	Snapshots []SnapshotInfo `cbor:"snapshots"`
}

// DaemonStateRequest queries the daemon's introspection view. When
// Tree names a branch or snapshot, the response includes that tree's
// recursive listing with file content inlined up to MaxFileSize
// bytes per file (0 omits content).
type DaemonStateRequest struct {
	Tree        vfs.TreeRef `cbor:"tree"`
	MaxFileSize int64       `cbor:"max_file_size"`
}

// Stats mirrors vfs.Stats plus the daemon's session count.
type Stats struct {
	Sessions    int `cbor:"sessions"`
	OpenHandles int `cbor:"open_handles"`
	Branches    int `cbor:"branches"`
	Snapshots   int `cbor:"snapshots"`
	Nodes       int `cbor:"nodes"`
}

// PeerInfo is the requesting connection's kernel-verified identity
// (SO_PEERCRED on Linux).
type PeerInfo struct {
	PID int32  `cbor:"pid"`
	UID uint32 `cbor:"uid"`
	GID uint32 `cbor:"gid"`
}

// FilesystemEntry is one entry of a recursive tree listing.
type FilesystemEntry struct {
	Path    string `cbor:"path"`
	Kind    uint8  `cbor:"kind"`
	Size    int64  `cbor:"size"`
	Target  string `cbor:"target,omitempty"`
	Content []byte `cbor:"content,omitempty"`
}

// DaemonStateResponse is the introspection view: aggregate counters,
// the caller's peer identity, and (when a tree was named) its
// listing.
type DaemonStateResponse struct {
	Version string            `cbor:"version"`
	Stats   Stats             `cbor:"stats"`
	Peer    PeerInfo          `cbor:"peer"`
	Entries []FilesystemEntry `cbor:"entries,omitempty"`
}
