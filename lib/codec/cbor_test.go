// Copyright 2026 The AgentFS Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"bytes"
	"strings"
	"testing"
)

// sampleMessage is a representative internal message using cbor
// struct tags (the convention for wire types).
type sampleMessage struct {
	Op     string `cbor:"op"`
	Path   string `cbor:"path,omitempty"`
	Handle uint64 `cbor:"handle"`
}

func TestMarshalUnmarshalRoundtrip(t *testing.T) {
	original := sampleMessage{
		Op:     "open",
		Path:   "/workspace/a.txt",
		Handle: 42,
	}

	data, err := Marshal(original)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	if len(data) == 0 {
		t.Fatal("Marshal produced empty output")
	}

	var decoded sampleMessage
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	if decoded != original {
		t.Errorf("roundtrip mismatch: got %+v, want %+v", decoded, original)
	}
}

func TestMarshalDeterministic(t *testing.T) {
	message := sampleMessage{
		Op:     "read",
		Path:   "/dir/x.txt",
		Handle: 7,
	}

	first, err := Marshal(message)
	if err != nil {
		t.Fatalf("first Marshal: %v", err)
	}

	second, err := Marshal(message)
	if err != nil {
		t.Fatalf("second Marshal: %v", err)
	}

	if !bytes.Equal(first, second) {
		t.Errorf("deterministic encoding violated: %x != %x", first, second)
	}
}

func TestMapKeysSorted(t *testing.T) {
	// Core Deterministic Encoding sorts map keys, so two maps with
	// the same entries inserted in different orders must encode to
	// identical bytes.
	a := map[string]int{"x": 1, "y": 2, "z": 3}
	b := map[string]int{"z": 3, "x": 1, "y": 2}

	encodedA, err := Marshal(a)
	if err != nil {
		t.Fatalf("Marshal a: %v", err)
	}
	encodedB, err := Marshal(b)
	if err != nil {
		t.Fatalf("Marshal b: %v", err)
	}

	if !bytes.Equal(encodedA, encodedB) {
		t.Errorf("map encoding depends on insertion order: %x != %x", encodedA, encodedB)
	}
}

func TestDefaultMapTypeIsStringKeyed(t *testing.T) {
	data, err := Marshal(map[string]any{"nested": map[string]any{"k": "v"}})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var decoded map[string]any
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	nested, ok := decoded["nested"].(map[string]any)
	if !ok {
		t.Fatalf("nested value decoded as %T, want map[string]any", decoded["nested"])
	}
	if nested["k"] != "v" {
		t.Errorf("nested value = %v, want %q", nested["k"], "v")
	}
}

func TestEncoderDecoderStreamRoundtrip(t *testing.T) {
	messages := []sampleMessage{
		{Op: "open", Path: "/a", Handle: 1},
		{Op: "write", Path: "/b", Handle: 2},
		{Op: "close", Handle: 2},
	}

	var buffer bytes.Buffer
	encoder := NewEncoder(&buffer)
	for i, message := range messages {
		if err := encoder.Encode(message); err != nil {
			t.Fatalf("Encode message %d: %v", i, err)
		}
	}

	decoder := NewDecoder(&buffer)
	for i, want := range messages {
		var got sampleMessage
		if err := decoder.Decode(&got); err != nil {
			t.Fatalf("Decode message %d: %v", i, err)
		}
		if got != want {
			t.Errorf("message %d: got %+v, want %+v", i, got, want)
		}
	}
}

func TestUnmarshalTruncatedInput(t *testing.T) {
	data, err := Marshal(sampleMessage{Op: "open", Path: "/a/b/c", Handle: 9})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	for cut := 1; cut < len(data); cut++ {
		var decoded sampleMessage
		if err := Unmarshal(data[:cut], &decoded); err == nil {
			t.Errorf("Unmarshal accepted input truncated to %d of %d bytes", cut, len(data))
		}
	}
}

func TestDiagnose(t *testing.T) {
	data, err := Marshal(map[string]string{"op": "mkdir"})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	diagnostic, err := Diagnose(data)
	if err != nil {
		t.Fatalf("Diagnose: %v", err)
	}
	if !strings.Contains(diagnostic, "mkdir") {
		t.Errorf("diagnostic %q does not mention the encoded value", diagnostic)
	}
}
