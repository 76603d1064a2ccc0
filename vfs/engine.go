// Copyright 2026 The AgentFS Authors
// SPDX-License-Identifier: Apache-2.0

package vfs

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/agentfs-foundation/agentfs/lib/clock"
)

// TreeRef identifies a resolvable root: a mutable branch or an
// immutable snapshot. Exactly one field is set; the zero id marks
// the unset side. Write operations require the branch side.
type TreeRef struct {
	Branch   BranchID   `cbor:"branch"`
	Snapshot SnapshotID `cbor:"snapshot"`
}

// BranchRef returns a TreeRef for a branch.
func BranchRef(id BranchID) TreeRef { return TreeRef{Branch: id} }

// SnapshotRef returns a TreeRef for a snapshot.
func SnapshotRef(id SnapshotID) TreeRef { return TreeRef{Snapshot: id} }

// Validate rejects refs that name both a branch and a snapshot, or
// neither.
func (r TreeRef) Validate() error {
	if r.Branch.IsZero() == r.Snapshot.IsZero() {
		return fmt.Errorf("tree ref must name exactly one of branch or snapshot: %w", ErrInvalidArgument)
	}
	return nil
}

// IsBranch reports whether the ref names a branch.
func (r TreeRef) IsBranch() bool { return !r.Branch.IsZero() }

// Attr describes one filesystem object.
type Attr struct {
	Kind    NodeKind
	Size    int64
	Mode    uint32
	ModTime time.Time
	// Node is the object's version marker. Two paths with equal Node
	// values share the identical stored object — the structural-
	// sharing property is observable here.
	Node NodeID
	// Digest is the keyed BLAKE3 digest of the object's logical
	// content.
	Digest Digest
}

// DirEntry is one directory listing entry. Listings are returned
// sorted by name.
type DirEntry struct {
	Name string
	Kind NodeKind
	Size int64
	Node NodeID
}

// Stats aggregates engine state for the introspection query.
type Stats struct {
	OpenHandles int
	Branches    int
	Snapshots   int
	Nodes       int
}

// TreeEntry is one entry of a recursive tree listing (introspection).
type TreeEntry struct {
	Path    string
	Kind    NodeKind
	Size    int64
	Target  string // symlink target
	Content []byte // file content, inlined when within the caller's size cap
}

// Engine is the core filesystem façade: node store, snapshot/branch
// manager, and handle table behind one API. One Engine is the
// process-wide state of a daemon; connections share it and pass
// their session id into handle-scoped operations.
type Engine struct {
	cfg      Config
	clk      clock.Clock
	store    *nodeStore
	branches *branchManager
	handles  *handleTable
}

// NewEngine creates an engine holding a single empty tree frozen as
// the root snapshot.
func NewEngine(cfg Config, clk clock.Clock) *Engine {
	cfg = cfg.withDefaults()
	store := newNodeStore()
	return &Engine{
		cfg:      cfg,
		clk:      clk,
		store:    store,
		branches: newBranchManager(store, clk, cfg.Limits),
		handles:  newHandleTable(cfg.Limits.MaxHandlesPerSession),
	}
}

// RootSnapshot returns the boot snapshot's id (the empty tree every
// first branch forks from).
func (e *Engine) RootSnapshot() SnapshotID { return e.branches.RootSnapshot() }

// CreateBranch forks a branch from a snapshot. See branchManager.
func (e *Engine) CreateBranch(snapshotID SnapshotID, label string) (BranchInfo, error) {
	return e.branches.CreateBranch(snapshotID, label)
}

// CreateSnapshot freezes a branch's current tree.
func (e *Engine) CreateSnapshot(branchID BranchID, label string) (SnapshotInfo, error) {
	return e.branches.CreateSnapshot(branchID, label)
}

// BindBranch marks a branch as the live view for a target.
func (e *Engine) BindBranch(branchID BranchID, target string) error {
	return e.branches.BindBranch(branchID, target)
}

// Unbind releases a target's branch binding.
func (e *Engine) Unbind(target string) { e.branches.Unbind(target) }

// BoundBranch returns the branch bound to a target.
func (e *Engine) BoundBranch(target string) (BranchID, error) {
	return e.branches.BoundBranch(target)
}

// ListSnapshots enumerates snapshots in creation order.
func (e *Engine) ListSnapshots() []SnapshotInfo { return e.branches.ListSnapshots() }

// ListBranches enumerates branches in creation order.
func (e *Engine) ListBranches() []BranchInfo { return e.branches.ListBranches() }

// Stats returns aggregate engine counters.
func (e *Engine) Stats() Stats {
	branches, snapshots := e.branches.counts()
	return Stats{
		OpenHandles: e.handles.count(),
		Branches:    branches,
		Snapshots:   snapshots,
		Nodes:       e.store.count(),
	}
}

// Open resolves path against the ref and returns a handle. Write
// access (and therefore create/truncate) requires a branch ref;
// snapshots are immutable and accept read-only opens. With
// FlagCreate a missing file is created (mode gives its permission
// bits); FlagExclusive additionally fails ErrExists when the path
// already exists. Directories cannot be opened as handles — listings
// go through ReadDir.
func (e *Engine) Open(session string, ref TreeRef, path string, flags OpenFlags, mode uint32) (HandleID, error) {
	if err := ref.Validate(); err != nil {
		return 0, err
	}
	if err := flags.validate(); err != nil {
		return 0, err
	}
	if !ref.IsBranch() && flags&FlagWrite != 0 {
		return 0, fmt.Errorf("snapshot %s is immutable: %w", ref.Snapshot, ErrAccessDenied)
	}
	segments, err := splitPath(path)
	if err != nil {
		return 0, err
	}
	if len(segments) == 0 {
		return 0, fmt.Errorf("/: %w", ErrIsADirectory)
	}

	// The handle slot is claimed before any tree work: an Open that
	// fails the per-session cap must leave the branch root unchanged,
	// not truncate or create on its way to the error.
	h := &handle{tree: ref, path: path, flags: flags}
	id, err := e.handles.insert(session, h)
	if err != nil {
		return 0, err
	}

	var opened NodeID
	if ref.IsBranch() && flags&(FlagCreate|FlagTruncate) != 0 {
		// Creation and truncation mutate the tree, so they run under
		// the branch lock like any other write.
		err = e.branches.mutate(ref.Branch, func(root NodeID) (NodeID, error) {
			fileMode := mode
			existing, resolveErr := e.store.resolve(root, segments)
			switch {
			case resolveErr == nil:
				if existing.kind == KindDirectory {
					return 0, fmt.Errorf("%s: %w", path, ErrIsADirectory)
				}
				if existing.kind != KindFile {
					return 0, fmt.Errorf("%s is a %s: %w", path, existing.kind, ErrInvalidArgument)
				}
				if flags&FlagExclusive != 0 {
					return 0, fmt.Errorf("%s: %w", path, ErrExists)
				}
				if flags&FlagTruncate == 0 {
					opened = existing.id
					return root, nil
				}
				// Truncation empties the file but keeps its mode.
				fileMode = existing.mode
			case !isNotFoundAtLeaf(resolveErr, segments, root, e.store):
				return 0, resolveErr
			default:
				if flags&FlagCreate == 0 {
					return 0, resolveErr
				}
			}
			leaf, putErr := e.store.putFile(nil, fileMode, e.clk.Now())
			if putErr != nil {
				return 0, putErr
			}
			newRoot, splitErr := e.store.split(root, segments, leaf, false, e.clk.Now())
			if splitErr != nil {
				return 0, splitErr
			}
			opened = leaf
			return newRoot, nil
		})
	} else {
		opened, err = e.openExisting(ref, segments, path)
	}
	if err != nil {
		// The reserved slot was never handed out; best effort only.
		_ = e.handles.remove(session, id)
		return 0, err
	}

	h.node = opened
	return id, nil
}

// openExisting resolves path for an open that does not create or
// truncate, on a branch or snapshot alike.
func (e *Engine) openExisting(ref TreeRef, segments []string, path string) (NodeID, error) {
	root, err := e.resolveRoot(ref)
	if err != nil {
		return 0, err
	}
	n, err := e.store.resolve(root, segments)
	if err != nil {
		return 0, err
	}
	if n.kind == KindDirectory {
		return 0, fmt.Errorf("%s: %w", path, ErrIsADirectory)
	}
	if n.kind != KindFile {
		return 0, fmt.Errorf("%s is a %s: %w", path, n.kind, ErrInvalidArgument)
	}
	return n.id, nil
}

// Create is Open with write+create+truncate: it creates (or empties)
// the file at path on the branch and returns a write handle.
func (e *Engine) Create(session string, branchID BranchID, path string, mode uint32) (HandleID, error) {
	return e.Open(session, BranchRef(branchID), path, FlagRead|FlagWrite|FlagCreate|FlagTruncate, mode)
}

// Read returns up to length bytes from the handle's cursor and
// advances it. The second result reports end-of-file. A read-only
// handle reads the node version pinned at open time; a handle with
// write access reads the branch's current tree.
func (e *Engine) Read(session string, id HandleID, length int) ([]byte, bool, error) {
	if length < 0 {
		return nil, false, fmt.Errorf("negative read length %d: %w", length, ErrInvalidArgument)
	}
	h, err := e.handles.get(session, id)
	if err != nil {
		return nil, false, err
	}
	if h.flags&FlagRead == 0 {
		return nil, false, fmt.Errorf("handle %d is write-only: %w", id, ErrAccessDenied)
	}

	n, err := e.handleNode(h)
	if err != nil {
		return nil, false, err
	}
	content, err := e.store.fileContent(n)
	if err != nil {
		return nil, false, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cursor >= int64(len(content)) {
		return nil, true, nil
	}
	end := h.cursor + int64(length)
	if end > int64(len(content)) {
		end = int64(len(content))
	}
	data := make([]byte, end-h.cursor)
	copy(data, content[h.cursor:end])
	h.cursor = end
	return data, h.cursor == int64(len(content)), nil
}

// Write stores data at the handle's cursor and advances it. The
// write runs the copy-on-write split against the branch's latest
// root — not the root at open time — so concurrent writers to one
// branch linearize at the root swap (last swap wins). Writing past
// the current end zero-fills the gap. If the path was unlinked since
// open, the write recreates it.
func (e *Engine) Write(session string, id HandleID, data []byte) (int, error) {
	h, err := e.handles.get(session, id)
	if err != nil {
		return 0, err
	}
	if h.flags&FlagWrite == 0 {
		return 0, fmt.Errorf("handle %d is read-only: %w", id, ErrAccessDenied)
	}
	segments, err := splitPath(h.path)
	if err != nil {
		return 0, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	err = e.branches.mutate(h.tree.Branch, func(root NodeID) (NodeID, error) {
		var existing []byte
		mode := uint32(0o644)
		if n, resolveErr := e.store.resolve(root, segments); resolveErr == nil {
			content, contentErr := e.store.fileContent(n)
			if contentErr != nil {
				return 0, contentErr
			}
			existing = content
			mode = n.mode
		} else if !isNotFoundAtLeaf(resolveErr, segments, root, e.store) {
			return 0, resolveErr
		}

		end := h.cursor + int64(len(data))
		updated := existing
		if end > int64(len(existing)) {
			updated = make([]byte, end)
			copy(updated, existing)
		} else {
			updated = make([]byte, len(existing))
			copy(updated, existing)
		}
		copy(updated[h.cursor:end], data)

		leaf, putErr := e.store.putFile(updated, mode, e.clk.Now())
		if putErr != nil {
			return 0, putErr
		}
		return e.store.split(root, segments, leaf, false, e.clk.Now())
	})
	if err != nil {
		return 0, err
	}
	h.cursor += int64(len(data))
	return len(data), nil
}

// Close releases a handle. Operations on the id afterwards fail
// ErrBadFileDescriptor.
func (e *Engine) Close(session string, id HandleID) error {
	return e.handles.remove(session, id)
}

// CloseSession reclaims everything a session holds: its open handles
// and any branch binding whose target is the session itself. Called
// by the daemon on connection teardown.
func (e *Engine) CloseSession(session string) {
	e.handles.removeSession(session)
	e.branches.Unbind(session)
}

// GetAttr returns the attributes of the object at path.
func (e *Engine) GetAttr(ref TreeRef, path string) (Attr, error) {
	n, err := e.resolveNode(ref, path)
	if err != nil {
		return Attr{}, err
	}
	return nodeAttr(n), nil
}

// Mkdir creates an empty directory at path on the branch. Fails
// ErrExists when the path already exists.
func (e *Engine) Mkdir(branchID BranchID, path string, mode uint32) error {
	segments, err := splitPath(path)
	if err != nil {
		return err
	}
	if len(segments) == 0 {
		return fmt.Errorf("/: %w", ErrExists)
	}
	return e.branches.mutate(branchID, func(root NodeID) (NodeID, error) {
		if _, resolveErr := e.store.resolve(root, segments); resolveErr == nil {
			return 0, fmt.Errorf("%s: %w", path, ErrExists)
		} else if !isNotFoundAtLeaf(resolveErr, segments, root, e.store) {
			return 0, resolveErr
		}
		leaf := e.store.putDirectory(nil, mode, e.clk.Now())
		return e.store.split(root, segments, leaf, false, e.clk.Now())
	})
}

// ReadDir returns the sorted listing of the directory at path.
func (e *Engine) ReadDir(ref TreeRef, path string) ([]DirEntry, error) {
	n, err := e.resolveNode(ref, path)
	if err != nil {
		return nil, err
	}
	if n.kind != KindDirectory {
		return nil, fmt.Errorf("%s: %w", path, ErrNotADirectory)
	}

	entries := make([]DirEntry, 0, len(n.children))
	for name, childID := range n.children {
		child, childErr := e.store.get(childID)
		if childErr != nil {
			return nil, fmt.Errorf("%w: entry %q points at missing node %d", ErrIO, name, childID)
		}
		entries = append(entries, DirEntry{
			Name: name,
			Kind: child.kind,
			Size: child.size,
			Node: child.id,
		})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

// Unlink removes the object at path on the branch. Files and
// symlinks are removed unconditionally; directories only when empty.
func (e *Engine) Unlink(branchID BranchID, path string) error {
	segments, err := splitPath(path)
	if err != nil {
		return err
	}
	if len(segments) == 0 {
		return fmt.Errorf("cannot unlink the root directory: %w", ErrInvalidArgument)
	}
	return e.branches.mutate(branchID, func(root NodeID) (NodeID, error) {
		n, resolveErr := e.store.resolve(root, segments)
		if resolveErr != nil {
			return 0, resolveErr
		}
		if n.kind == KindDirectory && len(n.children) > 0 {
			return 0, fmt.Errorf("%s: directory not empty: %w", path, ErrInvalidArgument)
		}
		return e.store.split(root, segments, 0, true, e.clk.Now())
	})
}

// Symlink creates a symbolic link at path pointing at target. Fails
// ErrExists when the path already exists.
func (e *Engine) Symlink(branchID BranchID, path, target string) error {
	segments, err := splitPath(path)
	if err != nil {
		return err
	}
	if len(segments) == 0 {
		return fmt.Errorf("/: %w", ErrExists)
	}
	if target == "" {
		return fmt.Errorf("symlink target is empty: %w", ErrInvalidArgument)
	}
	return e.branches.mutate(branchID, func(root NodeID) (NodeID, error) {
		if _, resolveErr := e.store.resolve(root, segments); resolveErr == nil {
			return 0, fmt.Errorf("%s: %w", path, ErrExists)
		} else if !isNotFoundAtLeaf(resolveErr, segments, root, e.store) {
			return 0, resolveErr
		}
		leaf := e.store.putSymlink(target, e.clk.Now())
		return e.store.split(root, segments, leaf, false, e.clk.Now())
	})
}

// Readlink returns the target of the symlink at path.
func (e *Engine) Readlink(ref TreeRef, path string) (string, error) {
	n, err := e.resolveNode(ref, path)
	if err != nil {
		return "", err
	}
	if n.kind != KindSymlink {
		return "", fmt.Errorf("%s is a %s, not a symlink: %w", path, n.kind, ErrInvalidArgument)
	}
	return n.target, nil
}

// ListTree returns a recursive, path-sorted listing of the tree.
// File content is inlined for files no larger than maxFileSize
// (pass 0 to omit all content). Serves the introspection query.
func (e *Engine) ListTree(ref TreeRef, maxFileSize int64) ([]TreeEntry, error) {
	root, err := e.resolveRoot(ref)
	if err != nil {
		return nil, err
	}
	rootNode, err := e.store.get(root)
	if err != nil {
		return nil, fmt.Errorf("%w: root %d missing from arena: %v", ErrIO, root, err)
	}
	var entries []TreeEntry
	if err := e.listTreeAt(rootNode, "", maxFileSize, &entries); err != nil {
		return nil, err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })
	return entries, nil
}

func (e *Engine) listTreeAt(dir *node, prefix string, maxFileSize int64, entries *[]TreeEntry) error {
	for name, childID := range dir.children {
		child, err := e.store.get(childID)
		if err != nil {
			return fmt.Errorf("%w: entry %q points at missing node %d", ErrIO, name, childID)
		}
		path := prefix + "/" + name
		entry := TreeEntry{Path: path, Kind: child.kind, Size: child.size}
		switch child.kind {
		case KindFile:
			if maxFileSize > 0 && child.size <= maxFileSize {
				content, contentErr := e.store.fileContent(child)
				if contentErr != nil {
					return contentErr
				}
				entry.Content = content
			}
		case KindSymlink:
			entry.Target = child.target
		case KindDirectory:
			if err := e.listTreeAt(child, path, maxFileSize, entries); err != nil {
				return err
			}
		}
		*entries = append(*entries, entry)
	}
	return nil
}

// resolveRoot maps a validated TreeRef to its current root node id.
func (e *Engine) resolveRoot(ref TreeRef) (NodeID, error) {
	if err := ref.Validate(); err != nil {
		return 0, err
	}
	if ref.IsBranch() {
		return e.branches.branchRoot(ref.Branch)
	}
	return e.branches.snapshotRoot(ref.Snapshot)
}

// resolveNode resolves path against the ref's current root.
func (e *Engine) resolveNode(ref TreeRef, path string) (*node, error) {
	segments, err := splitPath(path)
	if err != nil {
		return nil, err
	}
	root, err := e.resolveRoot(ref)
	if err != nil {
		return nil, err
	}
	return e.store.resolve(root, segments)
}

// handleNode returns the node a handle currently references: the
// pinned open-time version for read-only handles, the branch's
// latest version for write handles.
func (e *Engine) handleNode(h *handle) (*node, error) {
	if h.flags&FlagWrite == 0 {
		return e.store.get(h.node)
	}
	segments, err := splitPath(h.path)
	if err != nil {
		return nil, err
	}
	root, err := e.resolveRoot(h.tree)
	if err != nil {
		return nil, err
	}
	return e.store.resolve(root, segments)
}

// isNotFoundAtLeaf reports whether err is a NotFound produced by the
// path's final segment — meaning every ancestor directory exists and
// only the leaf is missing, the one NotFound that create-style
// operations may proceed past. A NotFound from a missing ancestor
// stays an error: Create("/a/b") must not invent "/a".
func isNotFoundAtLeaf(err error, segments []string, root NodeID, store *nodeStore) bool {
	if !errors.Is(err, ErrNotFound) {
		return false
	}
	if len(segments) == 0 {
		return false
	}
	parent, parentErr := store.resolve(root, segments[:len(segments)-1])
	if parentErr != nil {
		return false
	}
	if parent.kind != KindDirectory {
		return false
	}
	_, present := parent.children[segments[len(segments)-1]]
	return !present
}

func nodeAttr(n *node) Attr {
	return Attr{
		Kind:    n.kind,
		Size:    n.size,
		Mode:    n.mode,
		ModTime: n.modTime,
		Node:    n.id,
		Digest:  n.digest,
	}
}
