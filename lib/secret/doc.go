// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package secret holds the bearer token outside the Go heap.
//
// A Buffer is an anonymous mmap region, mlocked when the process is
// allowed to lock memory and marked MADV_DONTDUMP. Close zeroes and
// unmaps it. The token is converted to a string only at the point where
// an Authorization header or handshake payload is built.
package secret
