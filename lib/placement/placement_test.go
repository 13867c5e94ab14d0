// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package placement

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

type staticToken string

func (s staticToken) Bearer() string { return string(s) }

func TestSubmitPixelRequest(t *testing.T) {
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		headers := map[string]string{
			"Authorization":             "Bearer secret-token",
			"Content-Type":              "application/json",
			"Origin":                    "https://canvas.example",
			"Referer":                   "https://canvas.example/",
			"Apollographql-Client-Name": "mona-lisa",
		}
		for name, want := range headers {
			if got := r.Header.Get(name); got != want {
				t.Errorf("header %s = %q, want %q", name, got, want)
			}
		}
		data, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(data, &gotBody); err != nil {
			t.Errorf("request body is not JSON: %v", err)
		}
		w.Write([]byte(`{"data":{"act":{"data":[{"data":{"nextAvailablePixelTimestamp":1649000000000}}]}}}`))
	}))
	defer server.Close()

	client := New(Config{
		URL:         server.URL,
		CanvasIndex: 1,
		Origin:      "https://canvas.example",
		Referer:     "https://canvas.example/",
		ClientName:  "mona-lisa",
	}, staticToken("secret-token"))

	response, err := client.SubmitPixel(context.Background(), 12, 40, 27)
	if err != nil {
		t.Fatalf("SubmitPixel: %v", err)
	}
	if response.StatusCode != http.StatusOK {
		t.Errorf("StatusCode = %d", response.StatusCode)
	}
	if len(response.Body) == 0 {
		t.Error("response body not returned")
	}

	if gotBody["operationName"] != "setPixel" || gotBody["query"] != setPixelQuery {
		t.Errorf("operation = %v", gotBody["operationName"])
	}
	input := gotBody["variables"].(map[string]any)["input"].(map[string]any)
	if input["actionName"] != "r/replace:set_pixel" {
		t.Errorf("actionName = %v", input["actionName"])
	}
	pixel := input["PixelMessageData"].(map[string]any)
	coordinate := pixel["coordinate"].(map[string]any)
	if coordinate["x"] != 12.0 || coordinate["y"] != 40.0 {
		t.Errorf("coordinate = %v", coordinate)
	}
	if pixel["colorIndex"] != 27.0 || pixel["canvasIndex"] != 1.0 {
		t.Errorf("pixel data = %v", pixel)
	}
}

func TestSubmitPixelReturnsErrorStatuses(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"unauthorized"}`))
	}))
	defer server.Close()

	response, err := New(Config{URL: server.URL}, staticToken("t")).SubmitPixel(context.Background(), 0, 0, 2)
	if err != nil {
		t.Fatalf("SubmitPixel: %v", err)
	}
	if response.StatusCode != http.StatusUnauthorized || string(response.Body) != `{"error":"unauthorized"}` {
		t.Errorf("response = %d %s", response.StatusCode, response.Body)
	}
}

func TestSubmitPixelTransportError(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	if _, err := New(Config{URL: url}, staticToken("t")).SubmitPixel(context.Background(), 0, 0, 2); err == nil {
		t.Fatal("SubmitPixel to a closed server succeeded")
	}
}
