// Copyright 2026 The AgentFS Authors
// SPDX-License-Identifier: Apache-2.0

package vfs

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/agentfs-foundation/agentfs/lib/clock"
)

// SnapshotInfo describes one immutable snapshot.
type SnapshotInfo struct {
	ID        SnapshotID
	Label     string
	Parent    BranchID // branch the snapshot froze; zero for the boot snapshot
	Root      NodeID
	CreatedAt time.Time
}

// BranchInfo describes one mutable branch.
type BranchInfo struct {
	ID        BranchID
	Label     string
	Parent    SnapshotID // snapshot the branch forked from
	Root      NodeID     // current root at the time of the call
	BoundTo   string     // mount/session target, empty when unbound
	CreatedAt time.Time
}

// snapshot is an immutable root pointer plus metadata. Never mutated
// after creation.
type snapshot struct {
	id      SnapshotID
	label   string
	parent  BranchID
	root    NodeID
	created time.Time
}

// branch is a mutable line of evolution rooted at a snapshot. The
// root pointer is atomic: readers load it once and walk an immutable
// tree, so they see either the fully-pre-write or fully-post-write
// root, never an intermediate state. mu serializes mutations — at
// most one in-flight copy-on-write split per branch.
type branch struct {
	id      BranchID
	label   string
	parent  SnapshotID
	created time.Time

	mu   sync.Mutex
	root atomic.Uint64
}

func (b *branch) loadRoot() NodeID      { return NodeID(b.root.Load()) }
func (b *branch) storeRoot(root NodeID) { b.root.Store(uint64(root)) }

// branchManager owns the snapshot and branch tables and the
// target-binding table. Table access is guarded by mu; per-branch
// mutation is guarded by each branch's own lock so writers on
// different branches never contend.
type branchManager struct {
	store  *nodeStore
	clk    clock.Clock
	limits Limits

	mu            sync.Mutex
	branches      map[BranchID]*branch
	branchOrder   []BranchID
	snapshots     map[SnapshotID]*snapshot
	snapshotOrder []SnapshotID
	bindings      map[string]BranchID // mount/session target -> bound branch

	rootSnapshot SnapshotID
}

// newBranchManager boots the manager with an empty directory tree
// frozen as the root snapshot, so CreateBranch always has a fork
// point.
func newBranchManager(store *nodeStore, clk clock.Clock, limits Limits) *branchManager {
	now := clk.Now()
	emptyRoot := store.putDirectory(nil, 0o755, now)
	boot := &snapshot{
		id:      NewSnapshotID(now),
		label:   "root",
		root:    emptyRoot,
		created: now,
	}
	m := &branchManager{
		store:         store,
		clk:           clk,
		limits:        limits,
		branches:      make(map[BranchID]*branch),
		snapshots:     map[SnapshotID]*snapshot{boot.id: boot},
		snapshotOrder: []SnapshotID{boot.id},
		bindings:      make(map[string]BranchID),
		rootSnapshot:  boot.id,
	}
	return m
}

// RootSnapshot returns the id of the boot snapshot (empty tree).
func (m *branchManager) RootSnapshot() SnapshotID {
	return m.rootSnapshot
}

// CreateBranch forks a mutable branch from a snapshot. No nodes are
// copied: the branch's root is the snapshot's root until the first
// write.
func (m *branchManager) CreateBranch(snapshotID SnapshotID, label string) (BranchInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap, ok := m.snapshots[snapshotID]
	if !ok {
		return BranchInfo{}, fmt.Errorf("snapshot %s: %w", snapshotID, ErrNotFound)
	}
	if len(m.branches) >= m.limits.MaxBranches {
		return BranchInfo{}, fmt.Errorf("branch limit %d reached: %w", m.limits.MaxBranches, ErrNoSpace)
	}

	now := m.clk.Now()
	b := &branch{
		id:      NewBranchID(now),
		label:   label,
		parent:  snapshotID,
		created: now,
	}
	b.storeRoot(snap.root)
	m.branches[b.id] = b
	m.branchOrder = append(m.branchOrder, b.id)
	return m.branchInfoLocked(b), nil
}

// CreateSnapshot freezes a branch's current root. Purely metadata:
// it captures the root pointer with a single atomic load and never
// blocks concurrent writers on the branch. Later writes on the
// branch do not affect the snapshot.
func (m *branchManager) CreateSnapshot(branchID BranchID, label string) (SnapshotInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.branches[branchID]
	if !ok {
		return SnapshotInfo{}, fmt.Errorf("branch %s: %w", branchID, ErrNotFound)
	}
	if len(m.snapshots) >= m.limits.MaxSnapshots {
		return SnapshotInfo{}, fmt.Errorf("snapshot limit %d reached: %w", m.limits.MaxSnapshots, ErrNoSpace)
	}

	now := m.clk.Now()
	snap := &snapshot{
		id:      NewSnapshotID(now),
		label:   label,
		parent:  branchID,
		root:    b.loadRoot(),
		created: now,
	}
	m.snapshots[snap.id] = snap
	m.snapshotOrder = append(m.snapshotOrder, snap.id)
	return snapshotInfo(snap), nil
}

// BindBranch marks a branch as the live view for a mount/session
// target. A target may be bound to at most one branch
// (single-writer-per-mount); rebinding the same branch is idempotent
// and binding a different branch fails ErrBusy.
func (m *branchManager) BindBranch(branchID BranchID, target string) error {
	if target == "" {
		return fmt.Errorf("bind target is empty: %w", ErrInvalidArgument)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.branches[branchID]; !ok {
		return fmt.Errorf("branch %s: %w", branchID, ErrNotFound)
	}
	if bound, ok := m.bindings[target]; ok && bound != branchID {
		return fmt.Errorf("target %q is bound to branch %s: %w", target, bound, ErrBusy)
	}
	m.bindings[target] = branchID
	return nil
}

// Unbind releases a target's binding. Unknown targets are a no-op —
// teardown paths call this unconditionally.
func (m *branchManager) Unbind(target string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.bindings, target)
}

// BoundBranch returns the branch bound to target.
func (m *branchManager) BoundBranch(target string) (BranchID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	branchID, ok := m.bindings[target]
	if !ok {
		return BranchID{}, fmt.Errorf("target %q has no bound branch: %w", target, ErrNotFound)
	}
	return branchID, nil
}

// ListSnapshots enumerates snapshots in creation order.
func (m *branchManager) ListSnapshots() []SnapshotInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	infos := make([]SnapshotInfo, 0, len(m.snapshotOrder))
	for _, id := range m.snapshotOrder {
		infos = append(infos, snapshotInfo(m.snapshots[id]))
	}
	return infos
}

// ListBranches enumerates branches in creation order.
func (m *branchManager) ListBranches() []BranchInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	infos := make([]BranchInfo, 0, len(m.branchOrder))
	for _, id := range m.branchOrder {
		infos = append(infos, m.branchInfoLocked(m.branches[id]))
	}
	return infos
}

// counts returns (branches, snapshots) for the stats query.
func (m *branchManager) counts() (int, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.branches), len(m.snapshots)
}

// branchRoot returns the branch's current root with a single atomic
// load. This is the read path: no branch lock is taken.
func (m *branchManager) branchRoot(branchID BranchID) (NodeID, error) {
	b, err := m.getBranch(branchID)
	if err != nil {
		return 0, err
	}
	return b.loadRoot(), nil
}

// snapshotRoot returns a snapshot's frozen root.
func (m *branchManager) snapshotRoot(snapshotID SnapshotID) (NodeID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap, ok := m.snapshots[snapshotID]
	if !ok {
		return 0, fmt.Errorf("snapshot %s: %w", snapshotID, ErrNotFound)
	}
	return snap.root, nil
}

// mutate is the write dispatch: it serializes on the branch's lock,
// hands the current root to fn (which runs the copy-on-write split
// and returns a new root), then publishes the new root with an
// atomic swap. Two writers racing on one branch linearize here; the
// second writer's split starts from the first writer's published
// root, so the policy is last-root-swap-wins, never a torn tree.
func (m *branchManager) mutate(branchID BranchID, fn func(root NodeID) (NodeID, error)) error {
	b, err := m.getBranch(branchID)
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	newRoot, err := fn(b.loadRoot())
	if err != nil {
		return err
	}
	b.storeRoot(newRoot)
	return nil
}

func (m *branchManager) getBranch(branchID BranchID) (*branch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.branches[branchID]
	if !ok {
		return nil, fmt.Errorf("branch %s: %w", branchID, ErrNotFound)
	}
	return b, nil
}

// branchInfoLocked snapshots a branch's metadata; caller holds m.mu.
func (m *branchManager) branchInfoLocked(b *branch) BranchInfo {
	info := BranchInfo{
		ID:        b.id,
		Label:     b.label,
		Parent:    b.parent,
		Root:      b.loadRoot(),
		CreatedAt: b.created,
	}
	for target, bound := range m.bindings {
		if bound == b.id {
			info.BoundTo = target
			break
		}
	}
	return info
}

func snapshotInfo(snap *snapshot) SnapshotInfo {
	return SnapshotInfo{
		ID:        snap.id,
		Label:     snap.label,
		Parent:    snap.parent,
		Root:      snap.root,
		CreatedAt: snap.created,
	}
}
