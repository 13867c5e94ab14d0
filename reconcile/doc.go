// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package reconcile drives the canvas toward the desired order set one
// pixel at a time.
//
// Each cycle moves through five phases:
//
//	acquiring_snapshot → scanning → submitting → interpreting → sleeping
//
// A cycle takes a fresh snapshot, walks the orders tier by tier, and
// submits a correction for the first pixel that does not match. The
// service answers with the instant the next placement becomes
// possible; the engine sleeps until then plus a safety margin. Every
// failure maps to an [Outcome] with a fixed retry delay, so the loop
// never stops on its own: [Engine.Run] returns only when its context
// ends.
//
// At most one placement is in flight. The engine does not start the
// next cycle until the previous response has been interpreted and the
// delay it implies has elapsed on the injected clock.
package reconcile
