// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package credential obtains and holds the bearer token used by the
// realtime handshake and by placements.
//
// A [Source] produces a token: [PageSource] scrapes it from the canvas
// page, [BrowserSource] loads the page in a headless Chrome (useful
// when only a logged-in browser profile receives a token) and
// [FileSource] reads it from disk. The [Holder] keeps the current token
// in a [secret.Buffer] and replaces it when the service rejects it.
package credential
