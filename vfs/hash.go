// Copyright 2026 The AgentFS Authors
// SPDX-License-Identifier: Apache-2.0

package vfs

import (
	"encoding/binary"
	"encoding/hex"
	"sort"

	"github.com/zeebo/blake3"
)

// Digest is a 32-byte BLAKE3 digest of a node's logical content.
// Digests are computed over uncompressed bytes, so they are stable
// across compression algorithm changes, and they feed the
// structural-sharing checks in tests and the introspection stats.
type Digest [32]byte

// domainKey is a 32-byte key for BLAKE3 keyed hashing. Domain
// separation ensures that the same input bytes produce different
// digests in different contexts, preventing cross-domain collisions.
type domainKey [32]byte

// Domain separation keys. These are fixed constants — changing them
// invalidates every stored digest in that domain. The byte values
// are the ASCII encoding of the domain name, zero-padded to 32
// bytes, so the keys are inspectable in hex dumps without
// sacrificing any cryptographic property.
var (
	contentDomainKey = domainKey{
		'a', 'g', 'e', 'n', 't', 'f', 's', '.', 'n', 'o', 'd', 'e', '.',
		'c', 'o', 'n', 't', 'e', 'n', 't', 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	}

	listingDomainKey = domainKey{
		'a', 'g', 'e', 'n', 't', 'f', 's', '.', 'n', 'o', 'd', 'e', '.',
		'l', 'i', 's', 't', 'i', 'n', 'g', 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	}

	symlinkDomainKey = domainKey{
		'a', 'g', 'e', 'n', 't', 'f', 's', '.', 'n', 'o', 'd', 'e', '.',
		's', 'y', 'm', 'l', 'i', 'n', 'k', 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	}
)

// digestContent computes the content-domain digest of a file's
// uncompressed bytes.
func digestContent(data []byte) Digest {
	return keyedHash(contentDomainKey, data)
}

// digestListing computes the listing-domain digest of a directory's
// child table. Entries are hashed in sorted name order (name bytes,
// then the child's node id big-endian), so two directories with the
// same entries digest identically regardless of insertion order.
func digestListing(children map[string]NodeID) Digest {
	names := make([]string, 0, len(children))
	for name := range children {
		names = append(names, name)
	}
	sort.Strings(names)

	hasher := newKeyedHasher(listingDomainKey)
	var idBytes [8]byte
	for _, name := range names {
		hasher.Write([]byte(name))
		hasher.Write([]byte{0}) // name terminator, names never contain NUL
		binary.BigEndian.PutUint64(idBytes[:], uint64(children[name]))
		hasher.Write(idBytes[:])
	}
	var digest Digest
	copy(digest[:], hasher.Sum(nil))
	return digest
}

// digestSymlink computes the symlink-domain digest of a link target.
func digestSymlink(target string) Digest {
	return keyedHash(symlinkDomainKey, []byte(target))
}

// FormatDigest returns the hex-encoded form used in logs and the
// introspection output.
func FormatDigest(digest Digest) string {
	return hex.EncodeToString(digest[:])
}

// keyedHash computes the BLAKE3 keyed hash of data under key.
func keyedHash(key domainKey, data []byte) Digest {
	hasher := newKeyedHasher(key)
	hasher.Write(data)
	var digest Digest
	copy(digest[:], hasher.Sum(nil))
	return digest
}

func newKeyedHasher(key domainKey) *blake3.Hasher {
	// NewKeyed requires exactly 32 bytes, which domainKey
	// guarantees, so the error branch is unreachable.
	hasher, err := blake3.NewKeyed(key[:])
	if err != nil {
		panic("vfs: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	return hasher
}
