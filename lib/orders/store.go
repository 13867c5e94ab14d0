// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package orders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bureau-foundation/placekeeper/lib/clock"
	"github.com/bureau-foundation/placekeeper/lib/notify"
)

// Config configures a Store.
type Config struct {
	// Location is an http(s) URL, a file:// URL or a local path.
	Location string

	// Interval between refreshes in Run.
	Interval time.Duration

	// Client defaults to NewHTTPClient().
	Client    *http.Client
	UserAgent string

	Clock    clock.Clock
	Notifier notify.Notifier
	Logger   *slog.Logger
}

// Store holds the current order set. Current is lock-free; refreshes
// are serialized and publish by pointer swap.
type Store struct {
	config  Config
	current atomic.Pointer[Set]

	// refreshing serializes Refresh so an overlapping tick and manual
	// refresh cannot publish out of order.
	refreshing sync.Mutex
}

// NewStore returns a Store holding the empty set.
func NewStore(config Config) *Store {
	if config.Client == nil {
		config.Client = NewHTTPClient()
	}
	if config.Clock == nil {
		config.Clock = clock.Real()
	}
	if config.Notifier == nil {
		config.Notifier = notify.Discard
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.Interval <= 0 {
		config.Interval = 5 * time.Minute
	}
	s := &Store{config: config}
	s.current.Store(Empty())
	return s
}

// Current returns the set in effect. Never nil.
func (s *Store) Current() *Set {
	return s.current.Load()
}

// Refresh fetches and parses the document. A structurally different set
// replaces the current one and produces a notification; an identical
// set changes nothing. On any failure the current set is kept and the
// error is returned after being logged.
func (s *Store) Refresh(ctx context.Context) (changed bool, err error) {
	s.refreshing.Lock()
	defer s.refreshing.Unlock()

	logger := s.config.Logger.With("location", s.config.Location)

	data, err := fetch(ctx, s.config.Client, s.config.UserAgent, s.config.Location)
	if err != nil {
		var statusErr *StatusError
		if errors.As(err, &statusErr) {
			logger.Warn("couldn't get orders (error response code)", "status", statusErr.StatusCode)
		} else {
			logger.Warn("couldn't get orders", "error", err)
		}
		return false, err
	}

	set, err := Parse(data)
	if err != nil {
		logger.Warn("couldn't parse orders", "error", err)
		return false, err
	}

	previous := s.current.Load()
	if set.Equal(previous) {
		logger.Debug("orders unchanged", "fingerprint", set.Fingerprint())
		return false, nil
	}

	s.current.Store(set)
	logger.Info("obtained new orders",
		"pixels", set.Count(),
		"tiers", len(set.Tiers()),
		"fingerprint", set.Fingerprint(),
		"previous_fingerprint", previous.Fingerprint(),
	)
	s.config.Notifier.Notify(notify.Notification{
		Kind:    notify.Info,
		Message: fmt.Sprintf("Obtained new orders for a total of %d pixels", set.Count()),
	})
	return true, nil
}

// Run refreshes on every interval tick until ctx is done. It does not
// refresh immediately; callers run an initial Refresh before starting
// the engine.
func (s *Store) Run(ctx context.Context) {
	ticker := s.config.Clock.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Refresh(ctx)
		}
	}
}
