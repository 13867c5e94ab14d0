// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package realtime

import (
	"errors"
	"fmt"
)

var (
	// ErrHandshakeTimeout is returned when no full frame arrives within
	// the handshake timeout.
	ErrHandshakeTimeout = errors.New("realtime: handshake timed out")

	// ErrClosedBeforeFrame is returned when the server ends the channel
	// or the subscription before sending a full frame.
	ErrClosedBeforeFrame = errors.New("realtime: channel closed before a full frame")
)

// ProtocolError is an error or connection_error envelope from the
// server.
type ProtocolError struct {
	Type    string
	Payload string
}

func (e *ProtocolError) Error() string {
	if e.Payload == "" {
		return fmt.Sprintf("realtime: server sent %s", e.Type)
	}
	return fmt.Sprintf("realtime: server sent %s: %s", e.Type, e.Payload)
}
