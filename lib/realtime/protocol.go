// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package realtime

import "encoding/json"

// Subprotocol is the websocket subprotocol negotiated with the service.
const Subprotocol = "graphql-ws"

// Envelope types of the graphql-ws protocol.
const (
	typeConnectionInit  = "connection_init"
	typeConnectionAck   = "connection_ack"
	typeConnectionError = "connection_error"
	typeKeepAlive       = "ka"
	typeStart           = "start"
	typeData            = "data"
	typeError           = "error"
	typeComplete        = "complete"
)

// FullFrameType is the __typename of a full canvas frame.
const FullFrameType = "FullFrameMessageData"

const subscribeQuery = "subscription replace($input: SubscribeInput!) { subscribe(input: $input) { id ... on BasicMessage { data { __typename ... on FullFrameMessageData { __typename name timestamp } } __typename } __typename } }"

// Channel identifies the canvas stream to subscribe to.
type Channel struct {
	TeamOwner string `json:"teamOwner"`
	Category  string `json:"category"`
	Tag       string `json:"tag"`
}

type envelope struct {
	ID      string          `json:"id,omitempty"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type initPayload struct {
	Authorization string `json:"Authorization"`
}

type startPayload struct {
	Variables     startVariables `json:"variables"`
	Extensions    struct{}       `json:"extensions"`
	OperationName string         `json:"operationName"`
	Query         string         `json:"query"`
}

type startVariables struct {
	Input struct {
		Channel Channel `json:"channel"`
	} `json:"input"`
}

// dataPayload is the subset of a data envelope the handshake reads.
// Pointers distinguish absent levels from empty ones.
type dataPayload struct {
	Data *struct {
		Subscribe *struct {
			Data *frameData `json:"data"`
		} `json:"subscribe"`
	} `json:"data"`
}

type frameData struct {
	TypeName  string  `json:"__typename"`
	Name      string  `json:"name"`
	Timestamp float64 `json:"timestamp"`
}

// fullFrame reports whether the frame carries a complete canvas image.
// Untyped frames count when they name an image.
func (f *frameData) fullFrame() bool {
	if f.TypeName == "" {
		return f.Name != ""
	}
	return f.TypeName == FullFrameType && f.Name != ""
}

func newInit(bearer string) envelope {
	payload, _ := json.Marshal(initPayload{Authorization: "Bearer " + bearer})
	return envelope{Type: typeConnectionInit, Payload: payload}
}

func newStart(id string, channel Channel) envelope {
	start := startPayload{OperationName: "replace", Query: subscribeQuery}
	start.Variables.Input.Channel = channel
	payload, _ := json.Marshal(start)
	return envelope{ID: id, Type: typeStart, Payload: payload}
}
