// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Courtside Contributors

package session

import (
	"maps"

	"github.com/courtside/courtside/internal/notify"
	"github.com/courtside/courtside/internal/realtime"
	"github.com/courtside/courtside/pkg/errutil"
)

// Local notification copy for routed realtime events.
const (
	DefaultGeneralTitle = "New notification"
	SanctionTitle       = "Sanction Update"
	SanctionBody        = "A sanction on your account has been updated"
	PaymentTitle        = "Payment Update"
	PaymentBody         = "A payment on your account has been updated"
)

// LocalNotification converts a realtime event into the title, body and
// payload of a local notification. The payload carries every field of the
// event plus a "type" tag naming the kind.
func LocalNotification(kind realtime.Kind, e realtime.Event) (title, body string, data map[string]any) {
	data = maps.Clone(e.Data)
	if data == nil {
		data = make(map[string]any, 1)
	}
	data["type"] = string(kind)

	message := firstNonEmpty(e.String("message"), e.String("body"))
	switch kind {
	case realtime.KindSanction:
		return SanctionTitle, firstNonEmpty(message, SanctionBody), data
	case realtime.KindPayment:
		return PaymentTitle, firstNonEmpty(message, PaymentBody), data
	default:
		return firstNonEmpty(e.String("title"), DefaultGeneralTitle), message, data
	}
}

func (c *Coordinator) realtimeHandlers(b *binding) realtime.Handlers {
	route := func(kind realtime.Kind) func(realtime.Event) {
		return func(e realtime.Event) {
			title, body, data := LocalNotification(kind, e)
			c.notifier.ScheduleLocalNotification(title, body, data)
			c.metrics.recordRouted(string(kind))
			c.logger.Debug("realtime event routed",
				"kind", string(kind),
				"event", e.Name,
				"event_id", e.ID.String(),
			)
		}
	}
	return realtime.Handlers{
		OnNotification:   route(realtime.KindGeneral),
		OnSanctionUpdate: route(realtime.KindSanction),
		OnPaymentUpdate:  route(realtime.KindPayment),
		OnConnectionLost: func(err error) { c.realtimeLost(b, err) },
	}
}

func (c *Coordinator) notificationHandlers() notify.Handlers {
	host := c.hostHandlers
	return notify.Handlers{
		OnReceived: func(n notify.Notification) {
			c.logger.Debug("notification received",
				"notification_id", n.ID.String(),
				"type", n.Type(),
				"local", n.Local,
			)
			if host.OnReceived != nil {
				host.OnReceived(n)
			}
		},
		OnResponse: func(r notify.Response) {
			c.logger.Info("notification response",
				"notification_id", r.NotificationID.String(),
				"action", r.Action,
			)
			if host.OnResponse != nil {
				host.OnResponse(r)
			}
		},
		OnError: func(err error) {
			errutil.LogWarn(c.logger, "notification error", err)
			if host.OnError != nil {
				host.OnError(err)
			}
		},
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
