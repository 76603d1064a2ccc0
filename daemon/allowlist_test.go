// Copyright 2026 The AgentFS Authors
// SPDX-License-Identifier: Apache-2.0

package daemon

import (
	"testing"

	"github.com/agentfs-foundation/agentfs/proto"
)

func TestGateAdmit(t *testing.T) {
	python := proto.ProcessInfo{
		PID:     4242,
		ExePath: "/usr/local/bin/Python3.12",
		ExeName: "Python3.12",
	}

	cases := []struct {
		name    string
		entries []string
		process proto.ProcessInfo
		matched string
		admit   bool
	}{
		{"empty list admits nothing", nil, python, "", false},
		{"wildcard", []string{"*"}, python, "*", true},
		{"basename case-insensitive", []string{"python3.12"}, python, "python3.12", true},
		{"path substring", []string{"/usr/local/"}, python, "/usr/local/", true},
		{"pid match", []string{"4242"}, python, "4242", true},
		{"pid mismatch", []string{"9999"}, python, "", false},
		{"no match", []string{"node", "ruby"}, python, "", false},
		{"first match wins", []string{"node", "python3.12", "*"}, python, "python3.12", true},
		{"blank entries dropped", []string{"", "  "}, python, "", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			gate := NewGate(tc.entries)
			matched, ok := gate.Admit(tc.process)
			if ok != tc.admit || matched != tc.matched {
				t.Fatalf("Admit = (%q, %v), want (%q, %v)", matched, ok, tc.matched, tc.admit)
			}
		})
	}
}

func TestGateEmpty(t *testing.T) {
	if !NewGate(nil).Empty() {
		t.Fatal("nil entries must report empty")
	}
	if !NewGate([]string{" ", ""}).Empty() {
		t.Fatal("blank entries must report empty")
	}
	if NewGate([]string{"*"}).Empty() {
		t.Fatal("wildcard gate reported empty")
	}
}
