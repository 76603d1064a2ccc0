// Copyright 2026 The AgentFS Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable time source for testability.
//
// Production code accepts a Clock parameter instead of calling
// time.Now directly. In production, Real() provides standard library
// behavior. In tests, NewFake() provides a deterministic clock that
// advances only when Advance is called, so node modification times
// and snapshot creation times are reproducible.
//
//	engine := vfs.NewEngine(cfg, clock.Real())
//
//	fake := clock.NewFake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	engine := vfs.NewEngine(cfg, fake)
//	fake.Advance(5 * time.Second)
package clock
