// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package status

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bureau-foundation/placekeeper/lib/netutil"
	"github.com/bureau-foundation/placekeeper/lib/orders"
	"github.com/bureau-foundation/placekeeper/lib/testutil"
	"github.com/bureau-foundation/placekeeper/reconcile"
)

type fixedReport reconcile.Report

func (f fixedReport) Report() reconcile.Report { return reconcile.Report(f) }

type fixedOrders struct{ set *orders.Set }

func (f fixedOrders) Current() *orders.Set { return f.set }

func TestStatusDocument(t *testing.T) {
	set := orders.NewSet([]orders.Tier{{{X: 1, Y: 1, Color: 2}, {X: 2, Y: 2, Color: 3}}, {{X: 3, Y: 3, Color: 4}}})
	report := fixedReport{
		Phase:        reconcile.PhaseSleeping,
		Cycles:       7,
		Submissions:  3,
		LastDecision: &reconcile.Decision{Outcome: reconcile.OutcomeRateLimited, Delay: 63 * time.Second},
	}
	server := httptest.NewServer(NewHandler(report, fixedOrders{set}))
	defer server.Close()

	response, err := http.Get(server.URL + "/status")
	if err != nil {
		t.Fatalf("GET /status: %v", err)
	}
	defer response.Body.Close()
	if response.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", response.StatusCode)
	}
	if got := response.Header.Get("Content-Type"); got != "application/json" {
		t.Errorf("Content-Type = %q", got)
	}

	var document Document
	if err := netutil.DecodeResponse(response.Body, &document); err != nil {
		t.Fatalf("decoding: %v", err)
	}
	if document.Engine.Phase != reconcile.PhaseSleeping || document.Engine.Cycles != 7 || document.Engine.Submissions != 3 {
		t.Errorf("engine = %+v", document.Engine)
	}
	if document.Engine.LastDecision == nil || document.Engine.LastDecision.Outcome != reconcile.OutcomeRateLimited {
		t.Errorf("last decision = %+v", document.Engine.LastDecision)
	}
	want := OrdersSummary{Pixels: 3, Tiers: 2, Fingerprint: set.Fingerprint()}
	if document.Orders != want {
		t.Errorf("orders = %+v, want %+v", document.Orders, want)
	}
	if document.Version == "" {
		t.Error("version is empty")
	}
}

func TestHealthzAndUnknownRoutes(t *testing.T) {
	server := httptest.NewServer(NewHandler(fixedReport{}, fixedOrders{orders.Empty()}))
	defer server.Close()

	for path, want := range map[string]int{"/healthz": http.StatusOK, "/nope": http.StatusNotFound} {
		response, err := http.Get(server.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		response.Body.Close()
		if response.StatusCode != want {
			t.Errorf("GET %s = %d, want %d", path, response.StatusCode, want)
		}
	}

	response, err := http.Post(server.URL+"/status", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	response.Body.Close()
	if response.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("POST /status = %d, want 405", response.StatusCode)
	}
}

func TestServeStopsOnCancel(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	errs := make(chan error, 1)
	go func() {
		errs <- Serve(ctx, listener, NewHandler(fixedReport{}, fixedOrders{orders.Empty()}), nil)
	}()

	response, err := http.Get("http://" + listener.Addr().String() + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	response.Body.Close()

	cancel()
	if err := testutil.RequireReceive(t, errs, 5*time.Second, "Serve returning"); err != nil {
		t.Errorf("Serve = %v, want nil", err)
	}
}
