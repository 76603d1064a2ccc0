// Copyright 2026 The AgentFS Authors
// SPDX-License-Identifier: Apache-2.0

package vfs

// Limits bounds the engine's resource usage. Exceeding MaxHandles
// fails with ErrTooManyOpenFiles; exceeding the branch or snapshot
// limit fails with ErrNoSpace.
type Limits struct {
	// MaxHandlesPerSession caps open handles per connection.
	MaxHandlesPerSession int `yaml:"max_handles_per_session"`

	// MaxBranches caps live branches.
	MaxBranches int `yaml:"max_branches"`

	// MaxSnapshots caps live snapshots.
	MaxSnapshots int `yaml:"max_snapshots"`
}

// DefaultLimits returns the engine's default resource bounds.
func DefaultLimits() Limits {
	return Limits{
		MaxHandlesPerSession: 10000,
		MaxBranches:          1000,
		MaxSnapshots:         10000,
	}
}

// Config configures a new Engine.
type Config struct {
	// Limits bounds resource usage; zero-valued fields take their
	// defaults.
	Limits Limits
}

// withDefaults fills zero-valued limits.
func (c Config) withDefaults() Config {
	defaults := DefaultLimits()
	if c.Limits.MaxHandlesPerSession <= 0 {
		c.Limits.MaxHandlesPerSession = defaults.MaxHandlesPerSession
	}
	if c.Limits.MaxBranches <= 0 {
		c.Limits.MaxBranches = defaults.MaxBranches
	}
	if c.Limits.MaxSnapshots <= 0 {
		c.Limits.MaxSnapshots = defaults.MaxSnapshots
	}
	return c
}
