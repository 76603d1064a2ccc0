// Copyright 2026 The AgentFS Authors
// SPDX-License-Identifier: Apache-2.0

package proto

import (
	"bytes"
	"encoding/binary"
	"strings"
	"testing"
)

func TestFrameRoundtrip(t *testing.T) {
	payloads := [][]byte{
		nil,
		{},
		[]byte("x"),
		bytes.Repeat([]byte("frame"), 1000),
	}
	var buf bytes.Buffer
	for _, payload := range payloads {
		if err := WriteFrame(&buf, payload); err != nil {
			t.Fatalf("WriteFrame(%d bytes): %v", len(payload), err)
		}
	}
	for _, payload := range payloads {
		got, err := ReadFrame(&buf)
		if err != nil {
			t.Fatalf("ReadFrame: %v", err)
		}
		if !bytes.Equal(got, payload) {
			t.Fatalf("frame = %d bytes, want %d", len(got), len(payload))
		}
	}
}

func TestFrameRejectsOversize(t *testing.T) {
	var header [frameHeaderLength]byte
	binary.BigEndian.PutUint32(header[:], MaxFrameSize+1)
	if _, err := ReadFrame(bytes.NewReader(header[:])); err == nil {
		t.Fatal("oversize frame accepted")
	}

	if err := WriteFrame(new(bytes.Buffer), make([]byte, MaxFrameSize+1)); err == nil {
		t.Fatal("oversize payload written")
	}
}

func TestFrameTruncated(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteFrame(&buf, []byte("0123456789")); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}
	full := buf.Bytes()

	// Every proper prefix must fail cleanly, never block on a short
	// read or return partial data.
	for cut := 0; cut < len(full); cut++ {
		if _, err := ReadFrame(bytes.NewReader(full[:cut])); err == nil {
			t.Fatalf("truncated frame of %d/%d bytes accepted", cut, len(full))
		}
	}
}

func TestMessageRoundtrip(t *testing.T) {
	req, err := NewRequest(OpMkdir, MkdirRequest{Path: "/d", Mode: 0o755})
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}

	var buf bytes.Buffer
	if err := WriteMessage(&buf, req); err != nil {
		t.Fatalf("WriteMessage: %v", err)
	}

	var got Request
	if err := ReadMessage(&buf, &got); err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	if got.Op != OpMkdir {
		t.Fatalf("op = %s, want mkdir", got.Op)
	}
	var body MkdirRequest
	if err := got.DecodeBody(&body); err != nil {
		t.Fatalf("DecodeBody: %v", err)
	}
	if body.Path != "/d" || body.Mode != 0o755 {
		t.Fatalf("body = %+v", body)
	}
}

func TestReadMessageRejectsGarbage(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteFrame(&buf, []byte("not cbor at all")); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}
	var req Request
	if err := ReadMessage(&buf, &req); err == nil || !strings.Contains(err.Error(), "decode message") {
		t.Fatalf("garbage frame decoded: %v", err)
	}
}
