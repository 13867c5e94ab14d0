// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package process holds the binary entrypoint exit path: reporting the
// error returned by run() before the structured logger may exist, and
// choosing the exit status.
package process
