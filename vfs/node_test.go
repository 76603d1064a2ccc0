// Copyright 2026 The AgentFS Authors
// SPDX-License-Identifier: Apache-2.0

package vfs

import (
	"bytes"
	"errors"
	"testing"
	"time"
)

func TestSplitPath(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		cases := []struct {
			path string
			want []string
		}{
			{"/", nil},
			{"/a", []string{"a"}},
			{"/a/b/c", []string{"a", "b", "c"}},
			{"/with space/x.txt", []string{"with space", "x.txt"}},
		}
		for _, tc := range cases {
			got, err := splitPath(tc.path)
			if err != nil {
				t.Fatalf("splitPath(%q): %v", tc.path, err)
			}
			if len(got) != len(tc.want) {
				t.Fatalf("splitPath(%q) = %v, want %v", tc.path, got, tc.want)
			}
			for i := range got {
				if got[i] != tc.want[i] {
					t.Fatalf("splitPath(%q) = %v, want %v", tc.path, got, tc.want)
				}
			}
		}
	})

	t.Run("invalid", func(t *testing.T) {
		for _, path := range []string{"", "relative", "relative/x", "//a", "/a//b", "/a/", "/./a", "/a/..", "/a/\x00b"} {
			if _, err := splitPath(path); !errors.Is(err, ErrInvalidName) {
				t.Errorf("splitPath(%q) = %v, want ErrInvalidName", path, err)
			}
		}
	})
}

func TestNodeStoreFiles(t *testing.T) {
	store := newNodeStore()
	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	content := []byte("hello, arena")

	id, err := store.putFile(content, 0o644, now)
	if err != nil {
		t.Fatalf("putFile: %v", err)
	}
	n, err := store.get(id)
	if err != nil {
		t.Fatalf("get(%d): %v", id, err)
	}
	if n.kind != KindFile || n.size != int64(len(content)) || n.mode != 0o644 {
		t.Fatalf("node = kind %s size %d mode %o", n.kind, n.size, n.mode)
	}

	got, err := store.fileContent(n)
	if err != nil {
		t.Fatalf("fileContent: %v", err)
	}
	if !bytes.Equal(got, content) {
		t.Fatalf("fileContent = %q, want %q", got, content)
	}

	if _, err := store.get(NodeID(9999)); !errors.Is(err, ErrNotFound) {
		t.Fatalf("get(unknown) = %v, want ErrNotFound", err)
	}

	dir := store.putDirectory(nil, 0o755, now)
	dirNode, _ := store.get(dir)
	if _, err := store.fileContent(dirNode); !errors.Is(err, ErrIsADirectory) {
		t.Fatalf("fileContent(directory) = %v, want ErrIsADirectory", err)
	}
}

func TestNodeDigestsDiffer(t *testing.T) {
	store := newNodeStore()
	now := time.Now()

	a, _ := store.putFile([]byte("same bytes"), 0o644, now)
	b, _ := store.putFile([]byte("same bytes"), 0o644, now)
	c, _ := store.putFile([]byte("other bytes"), 0o644, now)

	na, _ := store.get(a)
	nb, _ := store.get(b)
	nc, _ := store.get(c)
	if na.digest != nb.digest {
		t.Fatal("identical content must produce identical digests")
	}
	if na.digest == nc.digest {
		t.Fatal("different content must produce different digests")
	}

	// A symlink whose target equals some file's content must not
	// collide: the digests are domain-keyed.
	link := store.putSymlink("same bytes", now)
	nl, _ := store.get(link)
	if nl.digest == na.digest {
		t.Fatal("symlink digest must be domain-separated from file digest")
	}
}

// buildTree publishes /a/x, /a/y, /b/z under a fresh root and
// returns (store, root).
func buildTree(t *testing.T) (*nodeStore, NodeID) {
	t.Helper()
	store := newNodeStore()
	now := time.Now()

	x, err := store.putFile([]byte("x"), 0o644, now)
	if err != nil {
		t.Fatalf("putFile: %v", err)
	}
	y, err := store.putFile([]byte("y"), 0o644, now)
	if err != nil {
		t.Fatalf("putFile: %v", err)
	}
	z, err := store.putFile([]byte("z"), 0o644, now)
	if err != nil {
		t.Fatalf("putFile: %v", err)
	}
	a := store.putDirectory(map[string]NodeID{"x": x, "y": y}, 0o755, now)
	b := store.putDirectory(map[string]NodeID{"z": z}, 0o755, now)
	root := store.putDirectory(map[string]NodeID{"a": a, "b": b}, 0o755, now)
	return store, root
}

func TestResolve(t *testing.T) {
	store, root := buildTree(t)

	n, err := store.resolve(root, []string{"a", "x"})
	if err != nil {
		t.Fatalf("resolve(/a/x): %v", err)
	}
	if n.kind != KindFile {
		t.Fatalf("resolve(/a/x) kind = %s, want file", n.kind)
	}

	if _, err := store.resolve(root, []string{"a", "missing"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("resolve(/a/missing) = %v, want ErrNotFound", err)
	}
	if _, err := store.resolve(root, []string{"a", "x", "deeper"}); !errors.Is(err, ErrNotADirectory) {
		t.Fatalf("resolve(/a/x/deeper) = %v, want ErrNotADirectory", err)
	}

	rootNode, err := store.resolve(root, nil)
	if err != nil {
		t.Fatalf("resolve(/): %v", err)
	}
	if rootNode.id != root {
		t.Fatalf("resolve(/) = node %d, want %d", rootNode.id, root)
	}
}

func TestSplitPreservesSiblings(t *testing.T) {
	store, root := buildTree(t)
	now := time.Now()

	before := func(segments ...string) NodeID {
		n, err := store.resolve(root, segments)
		if err != nil {
			t.Fatalf("resolve(%v): %v", segments, err)
		}
		return n.id
	}
	oldA := before("a")
	oldY := before("a", "y")
	oldB := before("b")
	oldZ := before("b", "z")

	leaf, err := store.putFile([]byte("x2"), 0o644, now)
	if err != nil {
		t.Fatalf("putFile: %v", err)
	}
	newRoot, err := store.split(root, []string{"a", "x"}, leaf, false, now)
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	if newRoot == root {
		t.Fatal("split must allocate a new root version")
	}

	after := func(segments ...string) NodeID {
		n, err := store.resolve(newRoot, segments)
		if err != nil {
			t.Fatalf("resolve(%v) in new root: %v", segments, err)
		}
		return n.id
	}

	// The modified path's ancestors get new versions.
	if after("a") == oldA {
		t.Fatal("/a must be a new version after splitting /a/x")
	}
	if after("a", "x") != leaf {
		t.Fatalf("/a/x = node %d, want leaf %d", after("a", "x"), leaf)
	}
	// Everything off the modified path keeps its identity.
	if after("a", "y") != oldY {
		t.Fatal("/a/y must keep its node id")
	}
	if after("b") != oldB || after("b", "z") != oldZ {
		t.Fatal("/b subtree must keep its node ids")
	}

	// The old root still resolves the original content.
	orig, err := store.resolve(root, []string{"a", "x"})
	if err != nil {
		t.Fatalf("resolve old root: %v", err)
	}
	content, _ := store.fileContent(orig)
	if string(content) != "x" {
		t.Fatalf("old tree content = %q, want %q", content, "x")
	}
}

func TestSplitRemove(t *testing.T) {
	store, root := buildTree(t)
	now := time.Now()

	newRoot, err := store.split(root, []string{"a", "x"}, 0, true, now)
	if err != nil {
		t.Fatalf("split remove: %v", err)
	}
	if _, err := store.resolve(newRoot, []string{"a", "x"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("removed path resolves: %v", err)
	}
	if _, err := store.resolve(newRoot, []string{"a", "y"}); err != nil {
		t.Fatalf("sibling lost after remove: %v", err)
	}
	// The old root keeps the entry.
	if _, err := store.resolve(root, []string{"a", "x"}); err != nil {
		t.Fatalf("old root lost entry: %v", err)
	}

	if _, err := store.split(newRoot, []string{"a", "x"}, 0, true, now); !errors.Is(err, ErrNotFound) {
		t.Fatalf("removing missing entry = %v, want ErrNotFound", err)
	}
	if _, err := store.split(root, nil, 0, true, now); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("removing root = %v, want ErrInvalidArgument", err)
	}
}
