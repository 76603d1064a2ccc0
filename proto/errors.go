// Copyright 2026 The AgentFS Authors
// SPDX-License-Identifier: Apache-2.0

package proto

import (
	"errors"
	"fmt"

	"github.com/agentfs-foundation/agentfs/vfs"
)

// ErrorKind classifies a failure on the wire. Kinds map 1:1 onto the
// vfs sentinel errors so a client can reconstruct the sentinel and
// use errors.Is exactly as a local caller would.
type ErrorKind uint16

const (
	KindInternal         ErrorKind = 0 // unclassified daemon failure
	KindNotFound         ErrorKind = 1
	KindExists           ErrorKind = 2
	KindAccessDenied     ErrorKind = 3
	KindInvalidArgument  ErrorKind = 4
	KindInvalidName      ErrorKind = 5
	KindNotADirectory    ErrorKind = 6
	KindIsADirectory     ErrorKind = 7
	KindBusy             ErrorKind = 8
	KindTooManyOpenFiles ErrorKind = 9
	KindBadFileDescr     ErrorKind = 10
	KindNoSpace          ErrorKind = 11
	KindUnsupported      ErrorKind = 12
	KindNotImplemented   ErrorKind = 13
	KindIO               ErrorKind = 14
)

// kindSentinels orders the sentinel checks for classification. More
// specific sentinels would go first if any wrapped another; they are
// all distinct roots, so order does not matter here.
var kindSentinels = []struct {
	kind     ErrorKind
	sentinel error
}{
	{KindNotFound, vfs.ErrNotFound},
	{KindExists, vfs.ErrExists},
	{KindAccessDenied, vfs.ErrAccessDenied},
	{KindInvalidArgument, vfs.ErrInvalidArgument},
	{KindInvalidName, vfs.ErrInvalidName},
	{KindNotADirectory, vfs.ErrNotADirectory},
	{KindIsADirectory, vfs.ErrIsADirectory},
	{KindBusy, vfs.ErrBusy},
	{KindTooManyOpenFiles, vfs.ErrTooManyOpenFiles},
	{KindBadFileDescr, vfs.ErrBadFileDescriptor},
	{KindNoSpace, vfs.ErrNoSpace},
	{KindUnsupported, vfs.ErrUnsupported},
	{KindNotImplemented, vfs.ErrNotImplemented},
	{KindIO, vfs.ErrIO},
}

// ClassifyError maps an engine error to its wire kind. Errors that
// wrap no known sentinel classify as KindInternal.
func ClassifyError(err error) ErrorKind {
	for _, entry := range kindSentinels {
		if errors.Is(err, entry.sentinel) {
			return entry.kind
		}
	}
	return KindInternal
}

// Sentinel returns the vfs sentinel for a kind, or nil for
// KindInternal and unknown kinds.
func (k ErrorKind) Sentinel() error {
	for _, entry := range kindSentinels {
		if entry.kind == k {
			return entry.sentinel
		}
	}
	return nil
}

// WireError is the structured error carried in a failed Response.
type WireError struct {
	Kind    ErrorKind `cbor:"kind"`
	Message string    `cbor:"message"`
}

// NewWireError classifies err for transport.
func NewWireError(err error) *WireError {
	return &WireError{Kind: ClassifyError(err), Message: err.Error()}
}

// Error implements error with the daemon-side message.
func (e *WireError) Error() string { return e.Message }

// Unwrap exposes the reconstructed sentinel so errors.Is works on
// the client side: errors.Is(err, vfs.ErrNotFound) holds for a
// KindNotFound wire error.
func (e *WireError) Unwrap() error { return e.Kind.Sentinel() }

// Errf builds a WireError in place, for daemon-side failures that
// never existed as engine errors.
func Errf(kind ErrorKind, format string, args ...any) *WireError {
	return &WireError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}
