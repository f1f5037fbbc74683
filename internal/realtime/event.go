// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Courtside Contributors

package realtime

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// Kind classifies server-pushed events.
type Kind string

// Event kinds delivered to Handlers.
const (
	KindGeneral  Kind = "general"
	KindSanction Kind = "sanction"
	KindPayment  Kind = "payment"
)

// Event is one server-pushed message on a subscribed channel.
type Event struct {
	ID         ulid.ULID
	Channel    string
	Name       string
	Data       map[string]any
	ReceivedAt time.Time
}

// String returns the field as a string, or "" when absent or not a string.
func (e Event) String(field string) string {
	s, _ := e.Data[field].(string)
	return s
}

// Handlers receive routed events for one channel.
type Handlers struct {
	OnNotification   func(Event)
	OnSanctionUpdate func(Event)
	OnPaymentUpdate  func(Event)
	// OnConnectionLost runs once when the connection fails under the
	// subscription. The service is disconnected by then and the next
	// Initialize dials again. It is not called for Disconnect.
	OnConnectionLost func(error)
}

func (h Handlers) forKind(k Kind) func(Event) {
	switch k {
	case KindGeneral:
		return h.OnNotification
	case KindSanction:
		return h.OnSanctionUpdate
	case KindPayment:
		return h.OnPaymentUpdate
	default:
		return nil
	}
}

// UserChannel is the private channel carrying a user's events.
func UserChannel(userID string) string {
	return "private-user." + userID
}

// normalizeName strips the leading dot broadcasters use for custom names.
func normalizeName(name string) string {
	return strings.ToLower(strings.TrimPrefix(name, "."))
}

// decodeData accepts event data as an embedded JSON string or an object.
func decodeData(raw json.RawMessage) (map[string]any, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return map[string]any{}, nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, err
		}
		if strings.TrimSpace(s) == "" {
			return map[string]any{}, nil
		}
		raw = []byte(s)
	}
	var data map[string]any
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, err
	}
	if data == nil {
		data = map[string]any{}
	}
	return data, nil
}
