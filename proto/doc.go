// Copyright 2026 The AgentFS Authors
// SPDX-License-Identifier: Apache-2.0

// Package proto defines the control-plane wire protocol between the
// daemon and its clients (interposition shims, mount adapters, the
// CLI).
//
// Every message travels as one frame: a 4-byte big-endian length
// prefix followed by that many bytes of deterministically encoded
// CBOR (lib/codec). Requests are an envelope of operation code plus
// an opaque body; responses mirror the envelope and carry either a
// result body or a structured error whose kind maps 1:1 onto the vfs
// sentinel errors, so a caller can errors.Is across the wire.
//
// The encoding is deterministic: encoding the same message twice
// yields identical bytes, which keeps frames comparable and
// digestible.
package proto
