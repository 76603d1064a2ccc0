// Copyright 2026 The AgentFS Authors
// SPDX-License-Identifier: Apache-2.0

package proto

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/agentfs-foundation/agentfs/lib/codec"
)

// frameHeaderLength is the fixed size of a frame header: 4 bytes of
// big-endian payload length.
const frameHeaderLength = 4

// MaxFrameSize is the maximum allowed frame payload. 16 MB bounds a
// misbehaving peer's memory demand while leaving room for large file
// writes; bigger transfers split across Write calls.
const MaxFrameSize = 16 * 1024 * 1024

// WriteFrame writes a length-prefixed frame to w. The frame format
// is: [4 bytes payload length, big-endian uint32] [payload].
func WriteFrame(w io.Writer, payload []byte) error {
	if len(payload) > MaxFrameSize {
		return fmt.Errorf("frame payload %d bytes exceeds maximum %d", len(payload), MaxFrameSize)
	}
	var header [frameHeaderLength]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(payload)))
	if _, err := w.Write(header[:]); err != nil {
		return fmt.Errorf("write frame header: %w", err)
	}
	if len(payload) > 0 {
		if _, err := w.Write(payload); err != nil {
			return fmt.Errorf("write frame payload: %w", err)
		}
	}
	return nil
}

// ReadFrame reads one length-prefixed frame from r. Returns an error
// if the stream is malformed, truncated, or the payload exceeds
// MaxFrameSize.
func ReadFrame(r io.Reader) ([]byte, error) {
	var header [frameHeaderLength]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, fmt.Errorf("read frame header: %w", err)
	}
	payloadLength := binary.BigEndian.Uint32(header[:])
	if payloadLength > MaxFrameSize {
		return nil, fmt.Errorf("frame payload %d bytes exceeds maximum %d", payloadLength, MaxFrameSize)
	}
	payload := make([]byte, payloadLength)
	if payloadLength > 0 {
		if _, err := io.ReadFull(r, payload); err != nil {
			return nil, fmt.Errorf("read frame payload: %w", err)
		}
	}
	return payload, nil
}

// WriteMessage encodes msg deterministically and writes it as one
// frame.
func WriteMessage(w io.Writer, msg any) error {
	payload, err := codec.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	return WriteFrame(w, payload)
}

// ReadMessage reads one frame from r and decodes it into msg.
func ReadMessage(r io.Reader, msg any) error {
	payload, err := ReadFrame(r)
	if err != nil {
		return err
	}
	if err := codec.Unmarshal(payload, msg); err != nil {
		return fmt.Errorf("decode message: %w", err)
	}
	return nil
}
