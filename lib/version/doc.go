// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package version reports build information for the placekeeper binary.
//
// Values are injected with -ldflags:
//
//	go build -ldflags "-X github.com/bureau-foundation/placekeeper/lib/version.GitCommit=$(git rev-parse --short HEAD)"
package version
