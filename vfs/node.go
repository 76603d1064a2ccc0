// Copyright 2026 The AgentFS Authors
// SPDX-License-Identifier: Apache-2.0

package vfs

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// NodeKind classifies a filesystem object. The numeric values are
// protocol constants shared with the wire encoding.
type NodeKind uint8

const (
	// KindFile is a regular file.
	KindFile NodeKind = 0
	// KindDirectory is a directory.
	KindDirectory NodeKind = 1
	// KindSymlink is a symbolic link.
	KindSymlink NodeKind = 2
)

// String returns the kind's lowercase name.
func (k NodeKind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindDirectory:
		return "directory"
	case KindSymlink:
		return "symlink"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(k))
	}
}

// node is one immutable filesystem object version. Once a node is
// published into the arena nothing mutates it: every write allocates
// a new version and leaves prior versions reachable from older
// snapshots and branches. Directory child tables map name to node
// id, never to pointers, so the node graph is a DAG of opaque ids.
type node struct {
	id      NodeID
	kind    NodeKind
	size    int64 // uncompressed content length; 0 for directories and symlinks
	mode    uint32
	modTime time.Time
	digest  Digest

	tag      compressionTag    // file payload compression
	stored   []byte            // file payload, compressed per tag
	children map[string]NodeID // directory listing; read-only after publish
	target   string            // symlink target
}

// nodeStore is the arena of node versions. put always allocates a
// fresh id and never overwrites; get dereferences an id. Reads take
// the read lock only to reach the map — the nodes themselves are
// immutable, so no lock is held while content is decompressed.
type nodeStore struct {
	mu     sync.RWMutex
	nodes  map[NodeID]*node
	nextID NodeID
}

func newNodeStore() *nodeStore {
	return &nodeStore{nodes: make(map[NodeID]*node)}
}

// get returns the node for id, or ErrNotFound.
func (s *nodeStore) get(id NodeID) (*node, error) {
	s.mu.RLock()
	n, ok := s.nodes[id]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("node %d: %w", id, ErrNotFound)
	}
	return n, nil
}

// count returns the number of node versions in the arena.
func (s *nodeStore) count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.nodes)
}

// publish assigns the next id and inserts n into the arena.
func (s *nodeStore) publish(n *node) NodeID {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	n.id = s.nextID
	s.nodes[n.id] = n
	return n.id
}

// putFile stores a new file version. Content is digested
// uncompressed and stored compressed when that shrinks it.
func (s *nodeStore) putFile(content []byte, mode uint32, modTime time.Time) (NodeID, error) {
	tag, stored, err := compressContent(content)
	if err != nil {
		return 0, fmt.Errorf("%w: storing file content: %v", ErrIO, err)
	}
	return s.publish(&node{
		kind:    KindFile,
		size:    int64(len(content)),
		mode:    mode,
		modTime: modTime,
		digest:  digestContent(content),
		tag:     tag,
		stored:  stored,
	}), nil
}

// putDirectory stores a new directory version. The child table is
// copied; the caller's map is not retained.
func (s *nodeStore) putDirectory(children map[string]NodeID, mode uint32, modTime time.Time) NodeID {
	table := make(map[string]NodeID, len(children))
	for name, id := range children {
		table[name] = id
	}
	return s.publish(&node{
		kind:     KindDirectory,
		mode:     mode,
		modTime:  modTime,
		digest:   digestListing(table),
		children: table,
	})
}

// putSymlink stores a new symlink version.
func (s *nodeStore) putSymlink(target string, modTime time.Time) NodeID {
	return s.publish(&node{
		kind:    KindSymlink,
		size:    int64(len(target)),
		mode:    0o777,
		modTime: modTime,
		digest:  digestSymlink(target),
		target:  target,
	})
}

// fileContent returns the uncompressed content of a file node.
func (s *nodeStore) fileContent(n *node) ([]byte, error) {
	if n.kind == KindDirectory {
		return nil, fmt.Errorf("node %d: %w", n.id, ErrIsADirectory)
	}
	if n.kind != KindFile {
		return nil, fmt.Errorf("node %d is a %s: %w", n.id, n.kind, ErrInvalidArgument)
	}
	content, err := decompressContent(n.tag, n.stored, n.size)
	if err != nil {
		return nil, fmt.Errorf("%w: node %d: %v", ErrIO, n.id, err)
	}
	return content, nil
}

// splitPath validates an absolute slash-separated path and returns
// its segments. "/" yields no segments. Rejects relative paths,
// empty segments, "." and "..", and NUL bytes.
func splitPath(path string) ([]string, error) {
	if path == "" || path[0] != '/' {
		return nil, fmt.Errorf("path %q is not absolute: %w", path, ErrInvalidName)
	}
	if strings.ContainsRune(path, 0) {
		return nil, fmt.Errorf("path contains NUL: %w", ErrInvalidName)
	}
	if path == "/" {
		return nil, nil
	}
	segments := strings.Split(path[1:], "/")
	for _, segment := range segments {
		switch segment {
		case "":
			return nil, fmt.Errorf("path %q has an empty segment: %w", path, ErrInvalidName)
		case ".", "..":
			return nil, fmt.Errorf("path %q has a relative segment: %w", path, ErrInvalidName)
		}
	}
	return segments, nil
}

// resolve walks from root to the node at the given segments.
// Ancestors must be directories; a missing entry fails ErrNotFound
// and a non-directory ancestor fails ErrNotADirectory.
func (s *nodeStore) resolve(root NodeID, segments []string) (*node, error) {
	current, err := s.get(root)
	if err != nil {
		// A branch or snapshot root that does not resolve is arena
		// corruption, not a caller mistake.
		return nil, fmt.Errorf("%w: root %d missing from arena: %v", ErrIO, root, err)
	}
	for i, segment := range segments {
		if current.kind != KindDirectory {
			return nil, fmt.Errorf("/%s: %w", strings.Join(segments[:i], "/"), ErrNotADirectory)
		}
		childID, ok := current.children[segment]
		if !ok {
			return nil, fmt.Errorf("/%s: %w", strings.Join(segments[:i+1], "/"), ErrNotFound)
		}
		current, err = s.get(childID)
		if err != nil {
			return nil, fmt.Errorf("%w: directory entry %q points at missing node %d", ErrIO, segment, childID)
		}
	}
	return current, nil
}

// split performs the copy-on-write split: starting from root, it
// rewrites the ancestor chain of the path so that the final segment
// maps to leaf (or is removed, when remove is set), and returns the
// new root id. Sibling entries keep their existing node ids — only
// the modified path's ancestors get new versions.
func (s *nodeStore) split(root NodeID, segments []string, leaf NodeID, remove bool, modTime time.Time) (NodeID, error) {
	if len(segments) == 0 {
		return 0, fmt.Errorf("cannot replace the root directory: %w", ErrInvalidArgument)
	}
	rootNode, err := s.get(root)
	if err != nil {
		return 0, fmt.Errorf("%w: root %d missing from arena: %v", ErrIO, root, err)
	}
	return s.splitAt(rootNode, segments, leaf, remove, modTime)
}

func (s *nodeStore) splitAt(dir *node, segments []string, leaf NodeID, remove bool, modTime time.Time) (NodeID, error) {
	if dir.kind != KindDirectory {
		return 0, fmt.Errorf("%w", ErrNotADirectory)
	}
	name := segments[0]

	if len(segments) == 1 {
		children := make(map[string]NodeID, len(dir.children)+1)
		for childName, childID := range dir.children {
			children[childName] = childID
		}
		if remove {
			if _, ok := children[name]; !ok {
				return 0, fmt.Errorf("%q: %w", name, ErrNotFound)
			}
			delete(children, name)
		} else {
			children[name] = leaf
		}
		return s.putDirectory(children, dir.mode, modTime), nil
	}

	childID, ok := dir.children[name]
	if !ok {
		return 0, fmt.Errorf("%q: %w", name, ErrNotFound)
	}
	child, err := s.get(childID)
	if err != nil {
		return 0, fmt.Errorf("%w: directory entry %q points at missing node %d", ErrIO, name, childID)
	}
	newChildID, err := s.splitAt(child, segments[1:], leaf, remove, modTime)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}

	children := make(map[string]NodeID, len(dir.children))
	for childName, id := range dir.children {
		children[childName] = id
	}
	children[name] = newChildID
	return s.putDirectory(children, dir.mode, modTime), nil
}
