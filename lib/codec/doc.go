// Copyright 2026 The AgentFS Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides the canonical CBOR encoding used by the
// AgentFS control-plane protocol.
//
// Encoding uses RFC 8949 Core Deterministic Encoding: identical
// logical values always produce identical bytes. This is a protocol
// requirement — responses can be hashed, compared byte-for-byte in
// tests, and replayed deterministically.
//
// All protocol types are encoded through this package rather than
// importing fxamacker/cbor directly, so the encoder configuration has
// exactly one definition.
package codec
