// Copyright 2026 The AgentFS Authors
// SPDX-License-Identifier: Apache-2.0

package proto

// ShimInfo identifies the connecting shim build.
type ShimInfo struct {
	Name     string   `cbor:"name"`
	Version  string   `cbor:"version"`
	Features []string `cbor:"features,omitempty"`
}

// ProcessInfo is the connecting process as the shim sees itself. The
// daemon treats these fields as claims and cross-checks PID and UID
// against the socket's kernel-verified peer credentials.
type ProcessInfo struct {
	PID     int32  `cbor:"pid"`
	PPID    int32  `cbor:"ppid"`
	UID     uint32 `cbor:"uid"`
	GID     uint32 `cbor:"gid"`
	ExePath string `cbor:"exe_path"`
	ExeName string `cbor:"exe_name"`
}

// AllowlistInfo reports the shim-side allowlist evaluation: which
// configured entry admitted the process. The daemon re-evaluates
// against its own configuration; the shim's view is audit detail.
type AllowlistInfo struct {
	MatchedEntry      string   `cbor:"matched_entry"`
	ConfiguredEntries []string `cbor:"configured_entries,omitempty"`
}

// HandshakeRequest is the first (and mandatory) frame on a gated
// connection. Connections that send anything else first are closed.
type HandshakeRequest struct {
	Version   uint32        `cbor:"version"`
	Shim      ShimInfo      `cbor:"shim"`
	Process   ProcessInfo   `cbor:"process"`
	Allowlist AllowlistInfo `cbor:"allowlist"`
}

// HandshakeResponse accepts or rejects the connection. MatchedEntry
// names the daemon-side allowlist entry that admitted the process.
type HandshakeResponse struct {
	OK           bool   `cbor:"ok"`
	MatchedEntry string `cbor:"matched_entry,omitempty"`
	Error        string `cbor:"error,omitempty"`
}
