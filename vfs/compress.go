// Copyright 2026 The AgentFS Authors
// SPDX-License-Identifier: Apache-2.0

package vfs

import (
	"fmt"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// compressionTag identifies the algorithm a stored payload was
// compressed with. The tag is kept alongside the payload in the node
// arena; it never crosses the wire (protocol reads always see
// uncompressed bytes).
type compressionTag uint8

const (
	// compressionNone stores bytes as-is. Used for payloads below
	// the size threshold and for payloads that do not shrink (PNG,
	// zlib packfiles, other already-compressed content).
	compressionNone compressionTag = 0

	// compressionLZ4 is LZ4 block compression. Fast default for
	// binary content where decode speed matters more than ratio.
	compressionLZ4 compressionTag = 1

	// compressionZstd is zstd at its default level. Better ratios
	// for text-like content (source code, JSON, logs), which is the
	// bulk of agent workspace writes.
	compressionZstd compressionTag = 2
)

// compressMinSize is the payload size below which compression is
// skipped: small payloads rarely shrink and the per-node CPU cost is
// pure waste.
const compressMinSize = 512

// String returns the human-readable name of a compression tag.
func (tag compressionTag) String() string {
	switch tag {
	case compressionNone:
		return "none"
	case compressionLZ4:
		return "lz4"
	case compressionZstd:
		return "zstd"
	default:
		return fmt.Sprintf("unknown(%d)", tag)
	}
}

// Encoders and decoders are stateless across blocks in the modes
// used here, so one of each is shared by the whole arena.
var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderConcurrency(1))
	if err != nil {
		panic("vfs: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
	if err != nil {
		panic("vfs: zstd decoder initialization failed: " + err.Error())
	}
}

// compressContent compresses data for arena storage, choosing the
// algorithm by content shape: zstd for mostly-printable payloads,
// LZ4 otherwise. Falls back to storing uncompressed when compression
// does not shrink the payload. The returned slice is always a copy —
// the arena must not alias caller memory.
func compressContent(data []byte) (compressionTag, []byte, error) {
	if len(data) < compressMinSize {
		stored := make([]byte, len(data))
		copy(stored, data)
		return compressionNone, stored, nil
	}

	tag := compressionLZ4
	if looksTextual(data) {
		tag = compressionZstd
	}

	var compressed []byte
	switch tag {
	case compressionZstd:
		compressed = zstdEncoder.EncodeAll(data, nil)
	case compressionLZ4:
		buffer := make([]byte, lz4.CompressBlockBound(len(data)))
		n, err := lz4.CompressBlock(data, buffer, nil)
		if err != nil {
			return 0, nil, fmt.Errorf("lz4 compression: %w", err)
		}
		if n == 0 {
			// Incompressible input; CompressBlock signals this with
			// a zero length rather than an error.
			compressed = nil
		} else {
			compressed = buffer[:n]
		}
	}

	if len(compressed) == 0 || len(compressed) >= len(data) {
		stored := make([]byte, len(data))
		copy(stored, data)
		return compressionNone, stored, nil
	}
	return tag, compressed, nil
}

// decompressContent reverses compressContent. size is the
// uncompressed payload length recorded on the node; LZ4 block
// decoding needs it to allocate the output buffer.
func decompressContent(tag compressionTag, stored []byte, size int64) ([]byte, error) {
	switch tag {
	case compressionNone:
		out := make([]byte, len(stored))
		copy(out, stored)
		return out, nil
	case compressionLZ4:
		out := make([]byte, size)
		n, err := lz4.UncompressBlock(stored, out)
		if err != nil {
			return nil, fmt.Errorf("lz4 decompression: %w", err)
		}
		return out[:n], nil
	case compressionZstd:
		out, err := zstdDecoder.DecodeAll(stored, nil)
		if err != nil {
			return nil, fmt.Errorf("zstd decompression: %w", err)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unknown compression tag %d", tag)
	}
}

// looksTextual samples the payload and reports whether it is mostly
// printable ASCII or UTF-8 continuation bytes. Cheap heuristic: the
// goal is only to route source code and logs to zstd, not to be a
// content-type detector.
func looksTextual(data []byte) bool {
	sample := data
	if len(sample) > 4096 {
		sample = sample[:4096]
	}
	var printable int
	for _, b := range sample {
		if b == '\n' || b == '\t' || b == '\r' || (b >= 0x20 && b < 0x7f) || b >= 0x80 {
			printable++
		}
	}
	return printable*10 >= len(sample)*9
}
