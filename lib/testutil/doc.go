// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides channel helpers for tests.
//
// [RequireReceive] and [RequireClosed] wrap the select-with-timeout
// pattern so that tests driven by clock.Fake still cannot hang forever
// when a goroutine fails to make progress. They are the only place in
// the test suite that uses real wall-clock timeouts.
package testutil
