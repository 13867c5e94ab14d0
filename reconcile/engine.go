// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bureau-foundation/placekeeper/lib/canvas"
	"github.com/bureau-foundation/placekeeper/lib/clock"
	"github.com/bureau-foundation/placekeeper/lib/notify"
	"github.com/bureau-foundation/placekeeper/lib/orders"
	"github.com/bureau-foundation/placekeeper/lib/palette"
	"github.com/bureau-foundation/placekeeper/lib/placement"
)

// SnapshotSource produces a fresh canvas snapshot.
type SnapshotSource interface {
	Snapshot(ctx context.Context) (*canvas.Snapshot, error)
}

// OrderSource returns the order set in effect.
type OrderSource interface {
	Current() *orders.Set
}

// Submitter sends one placement.
type Submitter interface {
	SubmitPixel(ctx context.Context, x, y int, color palette.Index) (*placement.Response, error)
}

// Reauthenticator replaces a rejected credential.
type Reauthenticator interface {
	Reauthenticate(ctx context.Context) error
}

// Phase is the engine's position in a cycle.
type Phase string

const (
	PhaseAcquiring    Phase = "acquiring_snapshot"
	PhaseScanning     Phase = "scanning"
	PhaseSubmitting   Phase = "submitting"
	PhaseInterpreting Phase = "interpreting"
	PhaseSleeping     Phase = "sleeping"
)

// Outcome classifies how a cycle ended.
type Outcome string

const (
	OutcomeIdle          Outcome = "idle"
	OutcomePlaced        Outcome = "placed"
	OutcomeRateLimited   Outcome = "rate_limited"
	OutcomeMalformed     Outcome = "malformed_response"
	OutcomeAcquireFailed Outcome = "acquire_failed"
	OutcomeSubmitFailed  Outcome = "submit_failed"
	OutcomeUnauthorized  Outcome = "unauthorized"
)

// Decision is the result of one cycle.
type Decision struct {
	Outcome Outcome `json:"outcome"`

	// Order is the selected mismatch, nil when none was selected.
	Order *orders.Order `json:"order,omitempty"`

	// Found is the color the snapshot held at Order.
	Found palette.Index `json:"found"`

	// NextAttempt is when the next cycle starts; Delay is NextAttempt
	// minus the decision time, never negative.
	NextAttempt time.Time     `json:"next_attempt"`
	Delay       time.Duration `json:"delay"`

	Error string `json:"error,omitempty"`
}

// Report is a point-in-time view of the engine for status reporting.
type Report struct {
	Phase        Phase     `json:"phase"`
	Cycles       uint64    `json:"cycles"`
	Submissions  uint64    `json:"submissions"`
	LastDecision *Decision `json:"last_decision,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Config configures an Engine. Snapshots, Orders and Submitter are
// required.
type Config struct {
	Snapshots SnapshotSource
	Orders    OrderSource
	Submitter Submitter

	// Reauthenticator is asked for a new credential when a placement is
	// rejected with 401 or 403. Optional.
	Reauthenticator Reauthenticator

	Notifier notify.Notifier
	Clock    clock.Clock
	Logger   *slog.Logger

	// AcquireRetry is the delay after a failed snapshot.
	AcquireRetry time.Duration

	// ParseRetry is the delay after an uninterpretable response, a
	// failed submission or a rejected credential.
	ParseRetry time.Duration

	// IdleRecheck is the delay after a cycle that found nothing to fix.
	IdleRecheck time.Duration

	// CooldownMargin is added to every server-supplied cooldown end.
	CooldownMargin time.Duration
}

// Engine runs reconciliation cycles.
type Engine struct {
	config Config

	// cycle serializes RunCycle; cycles never overlap.
	cycle sync.Mutex

	cycles      uint64
	submissions uint64
	last        *Decision

	report atomic.Pointer[Report]
}

// New returns an Engine. Zero delays take the observed defaults.
func New(config Config) (*Engine, error) {
	if config.Snapshots == nil || config.Orders == nil || config.Submitter == nil {
		return nil, errors.New("reconcile: Snapshots, Orders and Submitter are required")
	}
	if config.Notifier == nil {
		config.Notifier = notify.Discard
	}
	if config.Clock == nil {
		config.Clock = clock.Real()
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.AcquireRetry <= 0 {
		config.AcquireRetry = 15 * time.Second
	}
	if config.ParseRetry <= 0 {
		config.ParseRetry = 15 * time.Second
	}
	if config.IdleRecheck <= 0 {
		config.IdleRecheck = 30 * time.Second
	}
	if config.CooldownMargin < 0 {
		config.CooldownMargin = 0
	}

	e := &Engine{config: config}
	e.report.Store(&Report{Phase: PhaseAcquiring, UpdatedAt: config.Clock.Now()})
	return e, nil
}

// Report returns the most recently published report.
func (e *Engine) Report() Report {
	return *e.report.Load()
}

// Run executes cycles until ctx is done, waiting on the clock between
// them.
func (e *Engine) Run(ctx context.Context) {
	for {
		decision := e.RunCycle(ctx)
		if ctx.Err() != nil {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-e.config.Clock.After(decision.Delay):
		}
	}
}

// RunCycle executes one cycle and returns its decision. It performs at
// most one submission.
func (e *Engine) RunCycle(ctx context.Context) Decision {
	e.cycle.Lock()
	defer e.cycle.Unlock()

	decision := e.runCycle(ctx)
	e.cycles++
	e.last = &decision
	e.publish(PhaseSleeping)

	logger := e.config.Logger.With("outcome", string(decision.Outcome), "delay", decision.Delay)
	if decision.Order != nil {
		logger = logger.With("x", decision.Order.X, "y", decision.Order.Y, "color", decision.Order.Color.Name())
	}
	if decision.Error != "" {
		logger.Warn("cycle finished", "error", decision.Error)
	} else {
		logger.Info("cycle finished")
	}
	return decision
}

func (e *Engine) runCycle(ctx context.Context) Decision {
	e.publish(PhaseAcquiring)
	snapshot, err := e.config.Snapshots.Snapshot(ctx)
	if err != nil {
		if ctx.Err() == nil {
			e.notify(notify.Failure, "Couldn't get map. Trying again in %s...", seconds(e.config.AcquireRetry))
		}
		return e.after(Decision{Outcome: OutcomeAcquireFailed, Error: err.Error()}, e.config.AcquireRetry)
	}

	e.publish(PhaseScanning)
	selection, found := selectMismatch(snapshot, e.config.Orders.Current(), e.config.Logger)
	if !found {
		e.notify(notify.Success, "Every pixel is correct! checking again in %s...", seconds(e.config.IdleRecheck))
		return e.after(Decision{Outcome: OutcomeIdle}, e.config.IdleRecheck)
	}
	order := selection.order
	decision := Decision{Order: &order, Found: selection.found}
	e.config.Logger.Debug("selected mismatch",
		"x", order.X, "y", order.Y, "tier", selection.tier, "position", selection.index)

	e.publish(PhaseSubmitting)
	e.notify(notify.Info, "Fixing wrong pixel on %d, %d. Changing from %s to %s",
		order.X, order.Y, selection.found.Name(), order.Color.Name())
	response, err := e.config.Submitter.SubmitPixel(ctx, order.X, order.Y, order.Color)
	e.submissions++
	if err != nil {
		decision.Outcome = OutcomeSubmitFailed
		decision.Error = err.Error()
		e.notify(notify.Failure, "Couldn't submit pixel. Trying again in %s...", seconds(e.config.ParseRetry))
		return e.after(decision, e.config.ParseRetry)
	}

	e.publish(PhaseInterpreting)
	if response.StatusCode == http.StatusUnauthorized || response.StatusCode == http.StatusForbidden {
		decision.Outcome = OutcomeUnauthorized
		decision.Error = fmt.Sprintf("placement rejected with HTTP %d", response.StatusCode)
		e.notify(notify.Failure, "Access token rejected. Trying again in %s...", seconds(e.config.ParseRetry))
		if e.config.Reauthenticator != nil {
			if err := e.config.Reauthenticator.Reauthenticate(ctx); err != nil {
				decision.Error += ": re-acquiring credential: " + err.Error()
			}
		}
		return e.after(decision, e.config.ParseRetry)
	}

	result, err := interpretResponse(response.Body)
	if err != nil {
		decision.Outcome = OutcomeMalformed
		decision.Error = err.Error()
		e.notify(notify.Failure, "Error parsing response after placing pixel. Trying again in %s...", seconds(e.config.ParseRetry))
		return e.after(decision, e.config.ParseRetry)
	}

	next := result.available.Add(e.config.CooldownMargin)
	decision.NextAttempt = next
	decision.Delay = clock.Until(e.config.Clock, next)
	if result.placed {
		decision.Outcome = OutcomePlaced
		e.notify(notify.Success, "Pixel placed on %d, %d! Next pixel at %s", order.X, order.Y, next.Format(time.TimeOnly))
	} else {
		decision.Outcome = OutcomeRateLimited
		e.notify(notify.Warning, "Too early to place pixel! Next pixel at %s", next.Format(time.TimeOnly))
	}
	return decision
}

// after fills in a fixed delay measured from now.
func (e *Engine) after(decision Decision, delay time.Duration) Decision {
	decision.Delay = delay
	decision.NextAttempt = e.config.Clock.Now().Add(delay)
	return decision
}

func (e *Engine) notify(kind notify.Kind, format string, args ...any) {
	e.config.Notifier.Notify(notify.Notification{Kind: kind, Message: fmt.Sprintf(format, args...)})
}

func (e *Engine) publish(phase Phase) {
	e.report.Store(&Report{
		Phase:        phase,
		Cycles:       e.cycles,
		Submissions:  e.submissions,
		LastDecision: e.last,
		UpdatedAt:    e.config.Clock.Now(),
	})
}

func seconds(d time.Duration) string {
	return fmt.Sprintf("%d seconds", int(d.Round(time.Second)/time.Second))
}
