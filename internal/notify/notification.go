// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Courtside Contributors

// Package notify registers this device for push delivery and presents
// local notifications.
package notify

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
)

// Notification is a remote push or a locally scheduled notification.
type Notification struct {
	ID         ulid.ULID
	Title      string
	Body       string
	Data       map[string]any
	Local      bool
	ReceivedAt time.Time
}

// Type returns the payload's "type" tag, or "" when absent.
func (n Notification) Type() string {
	t, _ := n.Data["type"].(string)
	return t
}

// Response records a user interacting with a presented notification.
type Response struct {
	NotificationID ulid.ULID
	Action         string
	At             time.Time
}

// Handlers receive notification traffic. Nil handlers are skipped.
type Handlers struct {
	OnReceived func(Notification)
	OnResponse func(Response)
	OnError    func(error)
}

// PushProvider obtains this device's push token. An empty token means the
// platform offers no remote push.
type PushProvider interface {
	DeviceToken(ctx context.Context) (string, error)
}

// StaticPushProvider returns a fixed token, typically from configuration.
type StaticPushProvider string

// DeviceToken returns the configured token.
func (p StaticPushProvider) DeviceToken(context.Context) (string, error) {
	return string(p), nil
}

// DeviceRegistrar associates push tokens with the signed-in user on the
// backend.
type DeviceRegistrar interface {
	RegisterDevice(ctx context.Context, token, platform string) error
	UnregisterDevice(ctx context.Context, token string) error
}
