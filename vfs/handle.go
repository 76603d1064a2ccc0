// Copyright 2026 The AgentFS Authors
// SPDX-License-Identifier: Apache-2.0

package vfs

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// OpenFlags selects a handle's access mode.
type OpenFlags uint32

const (
	// FlagRead permits Read.
	FlagRead OpenFlags = 1 << 0
	// FlagWrite permits Write.
	FlagWrite OpenFlags = 1 << 1
	// FlagCreate creates the file if it does not exist. Requires
	// FlagWrite.
	FlagCreate OpenFlags = 1 << 2
	// FlagTruncate empties the file on open. Requires FlagWrite.
	FlagTruncate OpenFlags = 1 << 3
	// FlagExclusive makes FlagCreate fail ErrExists when the path
	// already exists.
	FlagExclusive OpenFlags = 1 << 4
)

// knownFlags is the mask of all defined flag bits; anything outside
// it fails validation.
const knownFlags = FlagRead | FlagWrite | FlagCreate | FlagTruncate | FlagExclusive

// validate rejects flag combinations the engine cannot honor.
func (f OpenFlags) validate() error {
	if f&^knownFlags != 0 {
		return fmt.Errorf("unknown open flags %#x: %w", uint32(f&^knownFlags), ErrInvalidArgument)
	}
	if f&(FlagRead|FlagWrite) == 0 {
		return fmt.Errorf("open needs read or write access: %w", ErrInvalidArgument)
	}
	if f&(FlagCreate|FlagTruncate|FlagExclusive) != 0 && f&FlagWrite == 0 {
		return fmt.Errorf("create/truncate require write access: %w", ErrInvalidArgument)
	}
	return nil
}

// handle binds (tree, path) to a cursor for one session. A read-only
// handle pins the node version observed at open time, so its view
// stays valid however the branch advances. A write handle always
// targets the branch's current root: writers race at the branch's
// root pointer, not at the handle.
type handle struct {
	id      HandleID
	session string
	tree    TreeRef
	path    string
	flags   OpenFlags
	node    NodeID // version at open time; the read view for read-only handles

	mu     sync.Mutex
	cursor int64
}

// handleTable tracks open handles per session. The id allocator is
// shared (one id space across the daemon) but each session's
// namespace is independent: a handle is only visible to the session
// that opened it, and closing a session reclaims all of its handles.
type handleTable struct {
	maxPerSession int
	nextID        atomic.Uint64

	mu       sync.Mutex
	sessions map[string]map[HandleID]*handle
}

func newHandleTable(maxPerSession int) *handleTable {
	return &handleTable{
		maxPerSession: maxPerSession,
		sessions:      make(map[string]map[HandleID]*handle),
	}
}

// insert registers a new handle for the session, enforcing the
// per-session cap.
func (t *handleTable) insert(session string, h *handle) (HandleID, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	open := t.sessions[session]
	if open == nil {
		open = make(map[HandleID]*handle)
		t.sessions[session] = open
	}
	if len(open) >= t.maxPerSession {
		return 0, fmt.Errorf("session %q has %d open handles: %w", session, len(open), ErrTooManyOpenFiles)
	}

	h.id = HandleID(t.nextID.Add(1))
	h.session = session
	open[h.id] = h
	return h.id, nil
}

// get looks up a session's handle. Unknown or closed ids fail
// ErrBadFileDescriptor — including ids that belong to a different
// session, which must not be observable across the session boundary.
func (t *handleTable) get(session string, id HandleID) (*handle, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	h, ok := t.sessions[session][id]
	if !ok {
		return nil, fmt.Errorf("handle %d: %w", id, ErrBadFileDescriptor)
	}
	return h, nil
}

// remove closes one handle.
func (t *handleTable) remove(session string, id HandleID) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	open := t.sessions[session]
	if _, ok := open[id]; !ok {
		return fmt.Errorf("handle %d: %w", id, ErrBadFileDescriptor)
	}
	delete(open, id)
	return nil
}

// removeSession closes every handle the session holds. Called on
// connection teardown; safe for unknown sessions.
func (t *handleTable) removeSession(session string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.sessions, session)
}

// count returns the total number of open handles across sessions.
func (t *handleTable) count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	total := 0
	for _, open := range t.sessions {
		total += len(open)
	}
	return total
}
