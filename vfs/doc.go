// Copyright 2026 The AgentFS Authors
// SPDX-License-Identifier: Apache-2.0

// Package vfs implements the AgentFS core engine: a branching,
// snapshot-capable virtual filesystem with copy-on-write sharing.
//
// The engine is built from three layers:
//
//   - node.go: an arena of immutable node versions (files,
//     directories, symlinks). Every mutation allocates a new version;
//     prior versions stay reachable from older snapshots and
//     branches. File content is digested with keyed BLAKE3 and
//     compressed above a size threshold.
//   - branch.go: immutable snapshots and mutable branches forked from
//     them. A write rewrites only the modified path's ancestor chain
//     (the copy-on-write split) and then atomically swaps the
//     branch's root pointer, so concurrent readers see either the
//     fully-pre-write or fully-post-write tree.
//   - handle.go: per-session tables of open handles binding
//     (branch, path) to a cursor.
//
// Engine (engine.go) is the façade over the three. It is
// transport-agnostic: the daemon dispatches protocol requests to it,
// and in-process mount adapters call it directly through the
// Filesystem capability in adapter.go.
//
// One Engine instance is process-wide state, created at daemon start
// and torn down at exit. All methods are safe for concurrent use;
// mutations to a branch serialize at that branch's lock, nothing
// else blocks globally.
package vfs
