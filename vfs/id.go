// Copyright 2026 The AgentFS Authors
// SPDX-License-Identifier: Apache-2.0

package vfs

import (
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"time"
)

// SnapshotID is an opaque 16-byte snapshot identifier: 48-bit
// millisecond timestamp followed by 10 random bytes, so ids sort
// roughly by creation time while staying unguessable. The canonical
// textual form is 32 lowercase hex characters; the id crosses the
// wire in that form (it implements encoding.TextMarshaler, which the
// codec serializes as a CBOR text string).
type SnapshotID [16]byte

// BranchID is an opaque 16-byte branch identifier with the same
// layout and textual form as SnapshotID.
type BranchID [16]byte

// NodeID is a node version marker in the arena. Zero is never a
// valid id; it marks "no node".
type NodeID uint64

// HandleID identifies an open handle within the engine. Zero is
// never a valid id.
type HandleID uint64

// newRawID fills a 16-byte id with the 48-bit millisecond timestamp
// of now followed by 10 bytes from crypto/rand.
func newRawID(now time.Time) [16]byte {
	var id [16]byte
	var stamp [8]byte
	binary.BigEndian.PutUint64(stamp[:], uint64(now.UnixMilli()))
	copy(id[:6], stamp[2:])
	if _, err := rand.Read(id[6:]); err != nil {
		// crypto/rand never fails on supported platforms; a failure
		// means the process cannot generate identity at all.
		panic("vfs: reading random bytes for id: " + err.Error())
	}
	return id
}

// NewSnapshotID returns a fresh snapshot id stamped with now.
func NewSnapshotID(now time.Time) SnapshotID { return SnapshotID(newRawID(now)) }

// NewBranchID returns a fresh branch id stamped with now.
func NewBranchID(now time.Time) BranchID { return BranchID(newRawID(now)) }

// IsZero reports whether the id is the all-zero value, which marks
// "unset" in wire messages.
func (id SnapshotID) IsZero() bool { return id == SnapshotID{} }

// IsZero reports whether the id is the all-zero value.
func (id BranchID) IsZero() bool { return id == BranchID{} }

// String returns the canonical 32-character lowercase hex form.
func (id SnapshotID) String() string { return hex.EncodeToString(id[:]) }

// String returns the canonical 32-character lowercase hex form.
func (id BranchID) String() string { return hex.EncodeToString(id[:]) }

// MarshalText implements encoding.TextMarshaler.
func (id SnapshotID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *SnapshotID) UnmarshalText(text []byte) error {
	raw, err := parseRawID(text)
	if err != nil {
		return fmt.Errorf("parsing snapshot id: %w", err)
	}
	*id = SnapshotID(raw)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (id BranchID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *BranchID) UnmarshalText(text []byte) error {
	raw, err := parseRawID(text)
	if err != nil {
		return fmt.Errorf("parsing branch id: %w", err)
	}
	*id = BranchID(raw)
	return nil
}

// ParseSnapshotID parses the canonical hex form.
func ParseSnapshotID(s string) (SnapshotID, error) {
	var id SnapshotID
	if err := id.UnmarshalText([]byte(s)); err != nil {
		return SnapshotID{}, err
	}
	return id, nil
}

// ParseBranchID parses the canonical hex form.
func ParseBranchID(s string) (BranchID, error) {
	var id BranchID
	if err := id.UnmarshalText([]byte(s)); err != nil {
		return BranchID{}, err
	}
	return id, nil
}

func parseRawID(text []byte) ([16]byte, error) {
	var raw [16]byte
	if len(text) != 32 {
		return raw, fmt.Errorf("%w: id is %d characters, want 32", ErrInvalidName, len(text))
	}
	decoded, err := hex.DecodeString(string(text))
	if err != nil {
		return raw, fmt.Errorf("%w: %v", ErrInvalidName, err)
	}
	copy(raw[:], decoded)
	return raw, nil
}
