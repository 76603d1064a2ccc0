// Copyright 2026 The AgentFS Authors
// SPDX-License-Identifier: Apache-2.0

package vfs

import (
	"bytes"
	"crypto/rand"
	"strings"
	"testing"
)

func roundtrip(t *testing.T, data []byte) compressionTag {
	t.Helper()
	tag, stored, err := compressContent(data)
	if err != nil {
		t.Fatalf("compressContent: %v", err)
	}
	got, err := decompressContent(tag, stored, int64(len(data)))
	if err != nil {
		t.Fatalf("decompressContent(%s): %v", tag, err)
	}
	if !bytes.Equal(got, data) {
		t.Fatalf("roundtrip mismatch: %d bytes in, %d bytes out", len(data), len(got))
	}
	return tag
}

func TestCompressRoundtrip(t *testing.T) {
	t.Run("small stays uncompressed", func(t *testing.T) {
		if tag := roundtrip(t, []byte("tiny")); tag != compressionNone {
			t.Fatalf("tag = %s, want none", tag)
		}
	})

	t.Run("empty", func(t *testing.T) {
		if tag := roundtrip(t, nil); tag != compressionNone {
			t.Fatalf("tag = %s, want none", tag)
		}
	})

	t.Run("textual uses zstd", func(t *testing.T) {
		data := []byte(strings.Repeat("package main // generated fixture\n", 200))
		if tag := roundtrip(t, data); tag != compressionZstd {
			t.Fatalf("tag = %s, want zstd", tag)
		}
	})

	t.Run("binary uses lz4", func(t *testing.T) {
		// Repetitive but non-printable, so the textual heuristic
		// routes it to lz4.
		block := make([]byte, 64)
		for i := range block {
			block[i] = byte(i)
		}
		data := bytes.Repeat(block, 100)
		if tag := roundtrip(t, data); tag != compressionLZ4 {
			t.Fatalf("tag = %s, want lz4", tag)
		}
	})

	t.Run("incompressible falls back to none", func(t *testing.T) {
		data := make([]byte, 4096)
		if _, err := rand.Read(data); err != nil {
			t.Fatalf("rand: %v", err)
		}
		if tag := roundtrip(t, data); tag != compressionNone {
			t.Fatalf("tag = %s, want none for random bytes", tag)
		}
	})
}

func TestDecompressRejectsUnknownTag(t *testing.T) {
	if _, err := decompressContent(compressionTag(9), []byte("x"), 1); err == nil {
		t.Fatal("unknown tag must fail")
	}
}

func TestCompressCopiesInput(t *testing.T) {
	data := []byte("short payload")
	_, stored, err := compressContent(data)
	if err != nil {
		t.Fatalf("compressContent: %v", err)
	}
	data[0] = 'X'
	if stored[0] == 'X' {
		t.Fatal("stored payload must not alias the caller's buffer")
	}
}
