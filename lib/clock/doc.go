// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable time source.
//
// Components that wait (the reconciliation loop between cycles, the
// order store between refreshes) take a Clock instead of calling the
// time package. Production wiring passes Real(). Tests pass Fake() and
// drive time explicitly:
//
//	c := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	go engine.Run(ctx)
//	c.WaitForTimers(1)          // the loop is now waiting
//	c.Advance(30 * time.Second) // release it
//
// WaitForTimers removes the race between a goroutine registering a wait
// and the test moving the clock.
package clock
