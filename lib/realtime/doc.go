// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package realtime performs the subscription handshake that yields the
// URL of the current full canvas frame.
//
// The realtime service speaks the graphql-ws subprotocol over a
// websocket. A handshake is two outbound messages, connection_init
// carrying the bearer token and start carrying the subscription, then a
// filtered read: keep-alives, acknowledgements and diff frames are
// skipped until the first full frame arrives. The channel is closed as
// soon as the URL is known.
//
// [Client.FullFrameURL] is single-shot. It never keeps a subscription
// open between calls; each reconciliation cycle runs a fresh handshake.
package realtime
