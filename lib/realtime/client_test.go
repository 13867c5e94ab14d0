// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/bureau-foundation/placekeeper/lib/clock"
	"github.com/bureau-foundation/placekeeper/lib/testutil"
)

type staticToken string

func (s staticToken) Bearer() string { return string(s) }

var testChannel = Channel{TeamOwner: "AFD2022", Category: "CANVAS", Tag: "0"}

// serve starts a graphql-ws server. script runs after the server has
// read and checked connection_init and start; it receives the
// subscription id.
func serve(t *testing.T, script func(conn *websocket.Conn, id string)) string {
	t.Helper()
	upgrader := websocket.Upgrader{
		Subprotocols: []string{Subprotocol},
		CheckOrigin:  func(r *http.Request) bool { return true },
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Origin"); got != "https://canvas.example" {
			t.Errorf("Origin = %q", got)
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()
		if conn.Subprotocol() != Subprotocol {
			t.Errorf("negotiated subprotocol %q", conn.Subprotocol())
		}

		var init envelope
		if err := conn.ReadJSON(&init); err != nil {
			t.Errorf("reading connection_init: %v", err)
			return
		}
		var auth initPayload
		json.Unmarshal(init.Payload, &auth)
		if init.Type != typeConnectionInit || auth.Authorization != "Bearer secret-token" {
			t.Errorf("connection_init = %s %s", init.Type, init.Payload)
		}

		var start envelope
		if err := conn.ReadJSON(&start); err != nil {
			t.Errorf("reading start: %v", err)
			return
		}
		var payload startPayload
		json.Unmarshal(start.Payload, &payload)
		if start.Type != typeStart || start.ID == "" {
			t.Errorf("start envelope = %+v", start)
		}
		if payload.Variables.Input.Channel != testChannel || payload.OperationName != "replace" {
			t.Errorf("start payload = %s", start.Payload)
		}

		script(conn, start.ID)
	}))
	t.Cleanup(server.Close)
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func newClient(url string, clk clock.Clock) *Client {
	return New(Config{
		URL:              url,
		Origin:           "https://canvas.example",
		Channel:          testChannel,
		HandshakeTimeout: 30 * time.Second,
		Clock:            clk,
	}, staticToken("secret-token"))
}

func send(t *testing.T, conn *websocket.Conn, message string) {
	t.Helper()
	if err := conn.WriteMessage(websocket.TextMessage, []byte(message)); err != nil {
		t.Errorf("writing %s: %v", message, err)
	}
}

// drain reads until the client closes the channel.
func drain(conn *websocket.Conn) {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func TestFullFrameURLSkipsUntilFullFrame(t *testing.T) {
	url := serve(t, func(conn *websocket.Conn, id string) {
		send(t, conn, `{"type":"connection_ack"}`)
		send(t, conn, `{"type":"ka"}`)
		send(t, conn, `{"id":"`+id+`","type":"data","payload":{"data":null}}`)
		send(t, conn, `{"id":"`+id+`","type":"data","payload":{"data":{"subscribe":{"id":"1","data":{"__typename":"DiffFrameMessageData","name":"https://img.example/diff.png"}}}}}`)
		send(t, conn, `{"id":"`+id+`","type":"data","payload":{"data":{"subscribe":{"id":"1","data":{"__typename":"FullFrameMessageData","name":"https://img.example/full.png","timestamp":1649000000000}}}}}`)
		drain(conn)
	})

	got, err := newClient(url, clock.Fake(time.Now())).FullFrameURL(context.Background())
	if err != nil {
		t.Fatalf("FullFrameURL: %v", err)
	}
	if got != "https://img.example/full.png" {
		t.Errorf("FullFrameURL = %q", got)
	}
}

func TestFullFrameURLAcceptsUntypedFrame(t *testing.T) {
	url := serve(t, func(conn *websocket.Conn, id string) {
		send(t, conn, `{"id":"`+id+`","type":"data","payload":{"data":{"subscribe":{"data":{"name":"https://img.example/untyped.png"}}}}}`)
		drain(conn)
	})

	got, err := newClient(url, clock.Fake(time.Now())).FullFrameURL(context.Background())
	if err != nil {
		t.Fatalf("FullFrameURL: %v", err)
	}
	if got != "https://img.example/untyped.png" {
		t.Errorf("FullFrameURL = %q", got)
	}
}

func TestFullFrameURLProtocolError(t *testing.T) {
	url := serve(t, func(conn *websocket.Conn, id string) {
		send(t, conn, `{"type":"connection_error","payload":{"message":"unauthorized"}}`)
		drain(conn)
	})

	_, err := newClient(url, clock.Fake(time.Now())).FullFrameURL(context.Background())
	var protocolErr *ProtocolError
	if !errors.As(err, &protocolErr) {
		t.Fatalf("error = %v, want *ProtocolError", err)
	}
	if protocolErr.Type != typeConnectionError || !strings.Contains(protocolErr.Payload, "unauthorized") {
		t.Errorf("ProtocolError = %+v", protocolErr)
	}
}

func TestFullFrameURLClosedBeforeFrame(t *testing.T) {
	url := serve(t, func(conn *websocket.Conn, id string) {
		send(t, conn, `{"type":"connection_ack"}`)
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "bye"))
	})

	_, err := newClient(url, clock.Fake(time.Now())).FullFrameURL(context.Background())
	if !errors.Is(err, ErrClosedBeforeFrame) {
		t.Fatalf("error = %v, want ErrClosedBeforeFrame", err)
	}
}

func TestFullFrameURLSubscriptionComplete(t *testing.T) {
	url := serve(t, func(conn *websocket.Conn, id string) {
		send(t, conn, `{"id":"`+id+`","type":"complete"}`)
		drain(conn)
	})

	_, err := newClient(url, clock.Fake(time.Now())).FullFrameURL(context.Background())
	if !errors.Is(err, ErrClosedBeforeFrame) {
		t.Fatalf("error = %v, want ErrClosedBeforeFrame", err)
	}
}

func TestFullFrameURLTimeout(t *testing.T) {
	url := serve(t, func(conn *websocket.Conn, id string) {
		send(t, conn, `{"type":"connection_ack"}`)
		drain(conn)
	})

	fake := clock.Fake(time.Now())
	client := newClient(url, fake)
	errs := make(chan error, 1)
	go func() {
		_, err := client.FullFrameURL(context.Background())
		errs <- err
	}()

	fake.WaitForTimers(1)
	fake.Advance(30 * time.Second)

	err := testutil.RequireReceive(t, errs, 5*time.Second, "waiting for handshake timeout")
	if !errors.Is(err, ErrHandshakeTimeout) {
		t.Fatalf("error = %v, want ErrHandshakeTimeout", err)
	}
}

func TestFullFrameURLCancelled(t *testing.T) {
	started := make(chan struct{})
	url := serve(t, func(conn *websocket.Conn, id string) {
		close(started)
		drain(conn)
	})

	ctx, cancel := context.WithCancel(context.Background())
	errs := make(chan error, 1)
	go func() {
		_, err := newClient(url, clock.Fake(time.Now())).FullFrameURL(ctx)
		errs <- err
	}()

	testutil.RequireClosed(t, started, 5*time.Second, "waiting for subscription")
	cancel()

	err := testutil.RequireReceive(t, errs, 5*time.Second, "waiting for cancellation")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
}

func TestFullFrameURLDialRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	}))
	defer server.Close()

	_, err := newClient("ws"+strings.TrimPrefix(server.URL, "http"), clock.Fake(time.Now())).
		FullFrameURL(context.Background())
	if err == nil || !strings.Contains(err.Error(), "HTTP 403") {
		t.Fatalf("error = %v, want dial failure with HTTP 403", err)
	}
}

func TestFullFrame(t *testing.T) {
	tests := []struct {
		frame frameData
		want  bool
	}{
		{frameData{TypeName: FullFrameType, Name: "u"}, true},
		{frameData{Name: "u"}, true},
		{frameData{TypeName: FullFrameType}, false},
		{frameData{TypeName: "DiffFrameMessageData", Name: "u"}, false},
		{frameData{}, false},
	}
	for _, test := range tests {
		if got := test.frame.fullFrame(); got != test.want {
			t.Errorf("fullFrame(%+v) = %v, want %v", test.frame, got, test.want)
		}
	}
}
