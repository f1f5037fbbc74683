// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Courtside Contributors

package realtime

import (
	"context"
	"encoding/json"
)

// Pusher protocol event names.
const (
	EventConnectionEstablished = "pusher:connection_established"
	EventError                 = "pusher:error"
	EventPing                  = "pusher:ping"
	EventPong                  = "pusher:pong"
	EventSubscribe             = "pusher:subscribe"
	EventUnsubscribe           = "pusher:unsubscribe"
	EventSubscriptionSucceeded = "pusher_internal:subscription_succeeded"
	EventSubscriptionError     = "pusher:subscription_error"
)

// Frame is one protocol message.
type Frame struct {
	Event   string          `json:"event"`
	Channel string          `json:"channel,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Conn is an established realtime connection.
type Conn interface {
	// SocketID identifies the connection for private channel authorization.
	SocketID() string
	Send(ctx context.Context, f Frame) error
	// Receive blocks for the next application frame. It returns an error
	// once the connection is closed.
	Receive() (Frame, error)
	Close() error
}

// Transport opens connections.
type Transport interface {
	Dial(ctx context.Context) (Conn, error)
}

func subscribeFrame(channel, auth string) Frame {
	data, _ := json.Marshal(map[string]string{"channel": channel, "auth": auth})
	return Frame{Event: EventSubscribe, Data: data}
}

func unsubscribeFrame(channel string) Frame {
	data, _ := json.Marshal(map[string]string{"channel": channel})
	return Frame{Event: EventUnsubscribe, Data: data}
}
