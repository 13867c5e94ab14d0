// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package status serves a read-only HTTP view of a running agent:
//
//	GET /status   engine phase, counters, last decision, order set summary
//	GET /healthz  liveness
package status

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/bureau-foundation/placekeeper/lib/orders"
	"github.com/bureau-foundation/placekeeper/lib/version"
	"github.com/bureau-foundation/placekeeper/reconcile"
)

// ReportSource publishes the engine report.
type ReportSource interface {
	Report() reconcile.Report
}

// OrderSource returns the current order set.
type OrderSource interface {
	Current() *orders.Set
}

// Document is the /status response body.
type Document struct {
	Version string           `json:"version"`
	Engine  reconcile.Report `json:"engine"`
	Orders  OrdersSummary    `json:"orders"`
}

// OrdersSummary describes the order set in effect.
type OrdersSummary struct {
	Pixels      int    `json:"pixels"`
	Tiers       int    `json:"tiers"`
	Fingerprint string `json:"fingerprint"`
}

// NewHandler returns the status router.
func NewHandler(engine ReportSource, current OrderSource) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/status", func(w http.ResponseWriter, _ *http.Request) {
		set := current.Current()
		writeJSON(w, http.StatusOK, Document{
			Version: version.Info(),
			Engine:  engine.Report(),
			Orders: OrdersSummary{
				Pixels:      set.Count(),
				Tiers:       len(set.Tiers()),
				Fingerprint: set.Fingerprint(),
			},
		})
	})
	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// Serve runs handler on listener until ctx is done, then shuts down
// gracefully. It returns nil after a shutdown triggered by ctx.
func Serve(ctx context.Context, listener net.Listener, handler http.Handler, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	server := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		<-ctx.Done()
		shutdownContext, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownContext); err != nil {
			logger.Warn("status server shutdown", "error", err)
		}
	}()

	logger.Info("status endpoint listening", "address", listener.Addr().String())
	if err := server.Serve(listener); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	<-shutdownDone
	return nil
}
