// Copyright 2026 The AgentFS Authors
// SPDX-License-Identifier: Apache-2.0

package vfs

import "errors"

// Engine error kinds. Every engine operation fails with exactly one
// of these sentinels (usually wrapped with path or id context via
// fmt.Errorf and %w); callers classify with errors.Is. The protocol
// layer maps each sentinel to a wire error code and back, so the
// kinds must stay in sync with proto.ErrorKind.
var (
	// ErrNotFound reports an unknown path, node, branch, or snapshot.
	ErrNotFound = errors.New("not found")

	// ErrExists reports a create of a path that already exists, or a
	// bind of a target that is already bound.
	ErrExists = errors.New("already exists")

	// ErrAccessDenied reports an operation the handle's access mode
	// does not permit (write on a read-only handle, or any write
	// through a snapshot).
	ErrAccessDenied = errors.New("access denied")

	// ErrInvalidArgument reports a structurally valid request whose
	// values make no sense for the operation (negative length,
	// unlink of a non-empty directory).
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrInvalidName reports a malformed path or name.
	ErrInvalidName = errors.New("invalid name")

	// ErrNotADirectory reports a path component that resolved to a
	// non-directory.
	ErrNotADirectory = errors.New("not a directory")

	// ErrIsADirectory reports a file operation applied to a
	// directory.
	ErrIsADirectory = errors.New("is a directory")

	// ErrBusy reports a resource held by another session, such as a
	// mount target already bound to a different branch.
	ErrBusy = errors.New("busy")

	// ErrTooManyOpenFiles reports the per-session open-handle cap.
	ErrTooManyOpenFiles = errors.New("too many open files")

	// ErrBadFileDescriptor reports an unknown or already-closed
	// handle id.
	ErrBadFileDescriptor = errors.New("bad file descriptor")

	// ErrNoSpace reports an exhausted engine limit (branches,
	// snapshots, stored bytes).
	ErrNoSpace = errors.New("no space")

	// ErrUnsupported reports an operation the platform or build does
	// not provide.
	ErrUnsupported = errors.New("unsupported")

	// ErrNotImplemented reports a protocol operation the engine does
	// not implement.
	ErrNotImplemented = errors.New("not implemented")

	// ErrIO is the catch-all for storage faults: compression or
	// digest failures, corrupt arena state. An ErrIO from a path
	// that previously resolved signals a store bug, not a caller
	// mistake.
	ErrIO = errors.New("i/o error")
)
