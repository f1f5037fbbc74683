// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Courtside Contributors

package session

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/courtside/courtside/internal/auth"
	"github.com/courtside/courtside/pkg/errutil"
)

// binding pairs a user with active notification and realtime services.
type binding struct {
	userID        string
	generation    uint64
	notifyReady   bool
	realtimeReady bool
	// realtimeLost is set when the connection drops under a subscription
	// that is still being set up.
	realtimeLost bool
}

// poke wakes the worker without blocking.
func (c *Coordinator) poke() {
	select {
	case c.kick <- struct{}{}:
	default:
	}
}

func (c *Coordinator) worker(ctx context.Context) {
	defer c.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.kick:
			c.reconcile(ctx)
		}
	}
}

// reconcile brings the actual binding in line with the desired one,
// repeating until no auth event arrived during the work.
func (c *Coordinator) reconcile(ctx context.Context) {
	for ctx.Err() == nil {
		c.mu.RLock()
		gen, want, cur := c.generation, c.desired, c.bound
		realtimeUp := cur != nil && cur.realtimeReady
		c.mu.RUnlock()

		switch {
		case want == nil:
			if cur != nil {
				c.unbind(ctx)
			}
		case cur != nil && cur.userID == want.ID.String():
			// Already bound to this user. Only a realtime side that failed
			// or was lost is set up again.
			if !realtimeUp {
				c.restoreRealtime(ctx, cur)
			}
		default:
			if cur != nil {
				c.unbind(ctx)
			}
			c.bind(ctx, want, gen)
		}

		c.mu.Lock()
		if c.generation == gen {
			c.applied = gen
			c.signalIdleLocked()
			c.mu.Unlock()
			return
		}
		c.mu.Unlock()
	}
}

// signalIdleLocked wakes WaitIdle callers. Callers hold mu.
func (c *Coordinator) signalIdleLocked() {
	close(c.idle)
	c.idle = make(chan struct{})
}

// bind sets up notification and realtime services for user. Failures are
// logged and never surface to the auth path. If the desired user changed
// while the setup was in flight, the new binding is released again.
func (c *Coordinator) bind(ctx context.Context, user *auth.User, gen uint64) {
	id := user.ID.String()
	ctx, cancel := context.WithTimeout(ctx, c.bindTimeout)
	defer cancel()
	ctx, span := c.span(ctx, "session.bind", id)
	span.SetAttributes(attribute.Int64("session.generation", int64(gen)))
	defer span.End()

	// Recorded before any I/O so a partial setup is still torn down.
	b := &binding{userID: id, generation: gen}
	c.mu.Lock()
	c.bound = b
	c.mu.Unlock()

	logger := c.logger.With("user_id", id, "generation", gen)

	notifyReady := true
	if _, err := c.notifier.Initialize(ctx, c.notificationHandlers()); err != nil {
		notifyReady = false
		span.RecordError(err)
		errutil.LogWarn(logger, "notification setup failed", err)
	}

	realtimeReady := c.subscribeRealtime(ctx, b, span, logger)

	c.mu.Lock()
	realtimeReady = realtimeReady && !b.realtimeLost
	b.notifyReady, b.realtimeReady = notifyReady, realtimeReady
	stale := c.generation != gen && (c.desired == nil || c.desired.ID.String() != id)
	c.mu.Unlock()

	if stale {
		logger.Info("releasing stale binding")
		span.SetAttributes(attribute.Bool("session.stale", true))
		c.unbind(ctx)
		c.metrics.recordBind(BindStale)
		return
	}

	result := BindOK
	switch {
	case !notifyReady && !realtimeReady:
		result = BindFailed
		span.SetStatus(codes.Error, "user services unavailable")
	case !notifyReady || !realtimeReady:
		result = BindPartial
	}
	c.metrics.recordBind(result)
	logger.Info("user services bound",
		"notifications", notifyReady,
		"realtime", realtimeReady,
	)
}

// subscribeRealtime connects and subscribes b's user channel. It reports
// whether the subscription was set up; failures are logged.
func (c *Coordinator) subscribeRealtime(ctx context.Context, b *binding, span trace.Span, logger *slog.Logger) bool {
	c.mu.Lock()
	b.realtimeLost = false
	c.mu.Unlock()

	if err := c.realtime.Initialize(ctx); err != nil {
		span.RecordError(err)
		errutil.LogWarn(logger, "realtime connect failed", err)
		return false
	}
	if err := c.realtime.SubscribeToUserChannel(ctx, b.userID, c.realtimeHandlers(b)); err != nil {
		span.RecordError(err)
		errutil.LogWarn(logger, "realtime subscribe failed", err)
		return false
	}
	return true
}

// restoreRealtime sets up the realtime side of an existing binding again.
// Notifications are left as they are.
func (c *Coordinator) restoreRealtime(ctx context.Context, b *binding) {
	ctx, cancel := context.WithTimeout(ctx, c.bindTimeout)
	defer cancel()
	ctx, span := c.span(ctx, "session.restore_realtime", b.userID)
	defer span.End()

	logger := c.logger.With("user_id", b.userID, "generation", b.generation)
	ok := c.subscribeRealtime(ctx, b, span, logger)

	c.mu.Lock()
	ok = ok && !b.realtimeLost
	if c.bound == b {
		b.realtimeReady = ok
	}
	c.mu.Unlock()

	if !ok {
		span.SetStatus(codes.Error, "realtime unavailable")
		return
	}
	c.metrics.recordBind(BindRestored)
	logger.Info("realtime subscription restored")
}

// realtimeLost marks b's realtime side down after its connection dropped
// and wakes the worker to set it up again. Losses reported for a binding
// that was already released are ignored.
func (c *Coordinator) realtimeLost(b *binding, err error) {
	c.mu.Lock()
	current := c.bound == b
	if current {
		b.realtimeReady = false
		b.realtimeLost = true
	}
	c.mu.Unlock()
	if !current {
		return
	}
	errutil.LogWarn(c.logger, "realtime connection lost", err, "user_id", b.userID)
	c.poke()
}

// unbind releases the current binding: realtime first, so no event can
// schedule a notification while notifications are being cleaned up.
// It is a no-op when nothing is bound.
func (c *Coordinator) unbind(ctx context.Context) {
	c.mu.RLock()
	b := c.bound
	c.mu.RUnlock()
	if b == nil {
		return
	}

	_, span := c.span(ctx, "session.unbind", b.userID)
	defer span.End()

	c.realtime.Disconnect()
	c.notifier.Cleanup()

	c.mu.Lock()
	if c.bound == b {
		c.bound = nil
	}
	c.mu.Unlock()

	c.metrics.recordUnbind()
	c.logger.Info("user services released", "user_id", b.userID, "generation", b.generation)
}
