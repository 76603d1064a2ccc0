// Copyright 2026 The AgentFS Authors
// SPDX-License-Identifier: Apache-2.0

package vfs

// Filesystem is the operation surface a mount adapter drives.
// Kernel-facing adapters (FUSE on Linux, FSKit on macOS, WinFsp on
// Windows) translate their native callbacks into exactly these calls;
// nothing adapter-specific leaks below this line. *Engine is the one
// implementation.
//
// Sessions are adapter-chosen identifiers scoping handle visibility;
// an adapter typically uses one session per mount or per connected
// client process.
type Filesystem interface {
	Open(session string, ref TreeRef, path string, flags OpenFlags, mode uint32) (HandleID, error)
	Create(session string, branch BranchID, path string, mode uint32) (HandleID, error)
	Read(session string, id HandleID, length int) (data []byte, eof bool, err error)
	Write(session string, id HandleID, data []byte) (int, error)
	Close(session string, id HandleID) error
	CloseSession(session string)

	GetAttr(ref TreeRef, path string) (Attr, error)
	Mkdir(branch BranchID, path string, mode uint32) error
	ReadDir(ref TreeRef, path string) ([]DirEntry, error)
	Unlink(branch BranchID, path string) error
	Symlink(branch BranchID, path, target string) error
	Readlink(ref TreeRef, path string) (string, error)
}

var _ Filesystem = (*Engine)(nil)
