// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package canvas

import (
	"context"
	"fmt"
)

// Phase names the step of snapshot acquisition that failed.
type Phase string

const (
	PhaseHandshake Phase = "handshake"
	PhaseDecode    Phase = "decode"
)

// AcquireError reports a failed snapshot acquisition. Every
// AcquireError is retryable.
type AcquireError struct {
	Phase Phase
	Err   error
}

func (e *AcquireError) Error() string {
	return fmt.Sprintf("canvas: acquiring snapshot (%s): %v", e.Phase, e.Err)
}

func (e *AcquireError) Unwrap() error { return e.Err }

// FrameSource resolves the URL of the current full canvas frame.
// realtime.Client implements it.
type FrameSource interface {
	FullFrameURL(ctx context.Context) (string, error)
}

// Fetcher combines the frame handshake and the image decode.
type Fetcher struct {
	frames  FrameSource
	decoder *Decoder
}

// NewFetcher returns a Fetcher.
func NewFetcher(frames FrameSource, decoder *Decoder) *Fetcher {
	return &Fetcher{frames: frames, decoder: decoder}
}

// Snapshot acquires a fresh snapshot of the canvas.
func (f *Fetcher) Snapshot(ctx context.Context) (*Snapshot, error) {
	url, err := f.frames.FullFrameURL(ctx)
	if err != nil {
		return nil, &AcquireError{Phase: PhaseHandshake, Err: err}
	}
	snapshot, err := f.decoder.Decode(ctx, url)
	if err != nil {
		return nil, &AcquireError{Phase: PhaseDecode, Err: err}
	}
	return snapshot, nil
}
