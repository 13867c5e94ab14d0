// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package placement submits pixel placements to the canvas service.
//
// The client sends exactly one request per call and returns the raw
// status and body. Deciding what a response means (placed, rate
// limited, malformed) belongs to the reconciliation engine.
package placement

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/bureau-foundation/placekeeper/lib/netutil"
	"github.com/bureau-foundation/placekeeper/lib/palette"
)

const (
	operationName = "setPixel"
	actionName    = "r/replace:set_pixel"

	setPixelQuery = "mutation setPixel($input: ActInput!) { act(input: $input) { data { ... on BasicMessage { id data { ... on GetUserCooldownResponseMessageData { nextAvailablePixelTimestamp __typename } ... on SetPixelResponseMessageData { timestamp __typename } __typename } __typename } __typename } __typename } }"
)

// TokenSource supplies the bearer token for each request.
type TokenSource interface {
	Bearer() string
}

// Config configures a Client.
type Config struct {
	// URL is the mutation endpoint.
	URL string

	// CanvasIndex selects the canvas quadrant the pixel belongs to.
	CanvasIndex int

	Origin     string
	Referer    string
	ClientName string
	UserAgent  string

	// HTTPClient defaults to http.DefaultClient.
	HTTPClient *http.Client
}

// Client submits placements.
type Client struct {
	config Config
	token  TokenSource
}

// New returns a Client.
func New(config Config, token TokenSource) *Client {
	if config.HTTPClient == nil {
		config.HTTPClient = http.DefaultClient
	}
	return &Client{config: config, token: token}
}

// Response is the unparsed outcome of a submission.
type Response struct {
	StatusCode int
	Body       []byte
}

type coordinate struct {
	X int `json:"x"`
	Y int `json:"y"`
}

type pixelMessageData struct {
	Coordinate  coordinate    `json:"coordinate"`
	ColorIndex  palette.Index `json:"colorIndex"`
	CanvasIndex int           `json:"canvasIndex"`
}

type actInput struct {
	ActionName       string           `json:"actionName"`
	PixelMessageData pixelMessageData `json:"PixelMessageData"`
}

type requestBody struct {
	OperationName string `json:"operationName"`
	Variables     struct {
		Input actInput `json:"input"`
	} `json:"variables"`
	Query string `json:"query"`
}

func newRequestBody(x, y int, color palette.Index, canvasIndex int) requestBody {
	body := requestBody{OperationName: operationName, Query: setPixelQuery}
	body.Variables.Input = actInput{
		ActionName: actionName,
		PixelMessageData: pixelMessageData{
			Coordinate:  coordinate{X: x, Y: y},
			ColorIndex:  color,
			CanvasIndex: canvasIndex,
		},
	}
	return body
}

// SubmitPixel requests that (x, y) be set to color. An error is returned
// only when no response was received; any HTTP status, including
// failures, comes back as a Response.
func (c *Client) SubmitPixel(ctx context.Context, x, y int, color palette.Index) (*Response, error) {
	payload, err := json.Marshal(newRequestBody(x, y, color, c.config.CanvasIndex))
	if err != nil {
		return nil, fmt.Errorf("placement: encoding request: %w", err)
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.URL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("placement: building request: %w", err)
	}
	request.Header.Set("Authorization", "Bearer "+c.token.Bearer())
	request.Header.Set("Content-Type", "application/json")
	if c.config.Origin != "" {
		request.Header.Set("Origin", c.config.Origin)
	}
	if c.config.Referer != "" {
		request.Header.Set("Referer", c.config.Referer)
	}
	if c.config.ClientName != "" {
		request.Header.Set("apollographql-client-name", c.config.ClientName)
	}
	if c.config.UserAgent != "" {
		request.Header.Set("User-Agent", c.config.UserAgent)
	}

	response, err := c.config.HTTPClient.Do(request)
	if err != nil {
		return nil, fmt.Errorf("placement: submitting (%d, %d): %w", x, y, err)
	}
	defer response.Body.Close()

	body, err := netutil.ReadResponse(response.Body)
	if err != nil {
		return nil, fmt.Errorf("placement: reading response: %w", err)
	}
	return &Response{StatusCode: response.StatusCode, Body: body}, nil
}
