// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package credential

import (
	"context"
	"log/slog"
	"sync"

	"github.com/bureau-foundation/placekeeper/lib/notify"
	"github.com/bureau-foundation/placekeeper/lib/secret"
)

// Holder owns the current token. Readers call Bearer on every request;
// Reauthenticate swaps in a new token and releases the old one.
type Holder struct {
	source   Source
	logger   *slog.Logger
	notifier notify.Notifier

	// acquiring serializes acquisitions.
	acquiring sync.Mutex

	// mu guards token. Bearer holds the read side while copying so a
	// swap never releases a buffer that is being read.
	mu    sync.RWMutex
	token *secret.Buffer
}

// NewHolder returns an empty Holder. Call Acquire before use.
func NewHolder(source Source, logger *slog.Logger, notifier notify.Notifier) *Holder {
	if logger == nil {
		logger = slog.Default()
	}
	if notifier == nil {
		notifier = notify.Discard
	}
	return &Holder{source: source, logger: logger, notifier: notifier}
}

// Acquire obtains the initial token.
func (h *Holder) Acquire(ctx context.Context) error {
	h.notifier.Notify(notify.Notification{Kind: notify.Info, Message: "Obtaining access token..."})
	if err := h.replace(ctx); err != nil {
		return err
	}
	h.notifier.Notify(notify.Notification{Kind: notify.Success, Message: "Obtained access token!"})
	return nil
}

// Reauthenticate obtains a new token after the service rejected the
// current one. On failure the current token stays in place.
func (h *Holder) Reauthenticate(ctx context.Context) error {
	h.logger.Info("re-acquiring access token")
	if err := h.replace(ctx); err != nil {
		h.logger.Warn("re-acquiring access token failed", "error", err)
		return err
	}
	h.notifier.Notify(notify.Notification{Kind: notify.Info, Message: "Refreshed access token"})
	return nil
}

func (h *Holder) replace(ctx context.Context) error {
	h.acquiring.Lock()
	defer h.acquiring.Unlock()

	token, err := h.source.Acquire(ctx)
	if err != nil {
		return err
	}

	h.mu.Lock()
	previous := h.token
	h.token = token
	h.mu.Unlock()

	if previous != nil {
		previous.Close()
	}
	h.logger.Debug("access token installed", "length", token.Len(), "mlocked", token.Locked())
	return nil
}

// Bearer returns the current token, or "" before the first Acquire.
func (h *Holder) Bearer() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.token == nil {
		return ""
	}
	return h.token.String()
}

// Close releases the token.
func (h *Holder) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.token == nil {
		return nil
	}
	err := h.token.Close()
	h.token = nil
	return err
}
