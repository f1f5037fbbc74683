// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Courtside Contributors

package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/courtside/courtside/internal/auth"
	"github.com/courtside/courtside/internal/notify"
	"github.com/courtside/courtside/internal/realtime"
	"github.com/courtside/courtside/pkg/errutil"
)

const defaultBindTimeout = 30 * time.Second

// AuthService is the auth surface the coordinator drives.
// *auth.Service satisfies it.
type AuthService interface {
	Initialize(ctx context.Context) error
	Subscribe(fn auth.Listener) (unsubscribe func())
	Login(ctx context.Context, email, password string) error
	Logout(ctx context.Context) error
	UpdateUser(patch auth.UserPatch)
	CheckAuthStatus(ctx context.Context) error
	Token(ctx context.Context) (string, error)
	IsLoading() bool
	HasRole(role auth.Role) bool
	HasAnyRole(roles ...auth.Role) bool
	IsPlayer() bool
	IsCoach() bool
	IsReferee() bool
	IsAdmin() bool
	IsLeague() bool
}

// NotificationService is the push/local notification surface.
// *notify.Service satisfies it.
type NotificationService interface {
	Initialize(ctx context.Context, h notify.Handlers) (string, error)
	ScheduleLocalNotification(title, body string, data map[string]any)
	Cleanup()
}

// RealtimeService is the pub/sub surface. *realtime.Service satisfies it.
type RealtimeService interface {
	Initialize(ctx context.Context) error
	SubscribeToUserChannel(ctx context.Context, userID string, h realtime.Handlers) error
	Disconnect()
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMetrics records coordinator metrics into m.
func WithMetrics(m *Metrics) Option {
	return func(c *Coordinator) {
		c.metrics = m
	}
}

// WithTracer overrides the OpenTelemetry tracer.
func WithTracer(t trace.Tracer) Option {
	return func(c *Coordinator) {
		if t != nil {
			c.tracer = t
		}
	}
}

// WithBindTimeout bounds the I/O of a single bind.
func WithBindTimeout(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.bindTimeout = d
		}
	}
}

// WithNotificationHandlers forwards notification traffic to h after the
// coordinator has logged it.
func WithNotificationHandlers(h notify.Handlers) Option {
	return func(c *Coordinator) {
		c.hostHandlers = h
	}
}

type watcherEntry struct {
	id uint64
	fn func(State)
}

// Coordinator owns session state and keeps user services bound to the
// authenticated user.
type Coordinator struct {
	auth         AuthService
	notifier     NotificationService
	realtime     RealtimeService
	logger       *slog.Logger
	metrics      *Metrics
	tracer       trace.Tracer
	bindTimeout  time.Duration
	hostHandlers notify.Handlers

	mu          sync.RWMutex
	state       State
	watchers    []watcherEntry
	nextWatcher uint64

	// desired is the user services should be bound to; nil means none.
	// generation counts auth events; applied is the generation the worker
	// last fully reconciled.
	desired    *auth.User
	generation uint64
	applied    uint64
	idle       chan struct{}
	bound      *binding

	started     bool
	closed      bool
	unsubscribe func()
	stop        context.CancelFunc
	kick        chan struct{}
	wg          sync.WaitGroup
}

// New creates a coordinator. It does nothing until Start.
func New(authSvc AuthService, notifier NotificationService, rt RealtimeService, opts ...Option) *Coordinator {
	c := &Coordinator{
		auth:        authSvc,
		notifier:    notifier,
		realtime:    rt,
		logger:      slog.Default(),
		tracer:      otel.Tracer("courtside/session"),
		bindTimeout: defaultBindTimeout,
		state:       State{IsLoading: true},
		idle:        make(chan struct{}),
		kick:        make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start subscribes to auth events, starts the binding worker and
// initializes the auth service in the background. Initialization failure
// is logged; the session then settles unauthenticated. Calling Start more
// than once has no effect.
func (c *Coordinator) Start(ctx context.Context) {
	c.mu.Lock()
	if c.started || c.closed {
		c.mu.Unlock()
		return
	}
	c.started = true
	runCtx, stop := context.WithCancel(ctx)
	c.stop = stop
	// Subscribe before initializing so the first event cannot be missed.
	c.unsubscribe = c.auth.Subscribe(func(ch auth.StateChange) {
		c.OnAuthStateChanged(ch.User, ch.Authenticated)
	})
	c.wg.Add(2)
	c.mu.Unlock()

	go c.worker(runCtx)
	go c.boot(runCtx)
	c.poke()
}

func (c *Coordinator) boot(ctx context.Context) {
	defer c.wg.Done()

	if err := c.auth.Initialize(ctx); err != nil {
		errutil.LogError(c.logger, "auth initialization failed", err)
	}

	c.mu.Lock()
	if c.state.booted {
		c.mu.Unlock()
		return
	}
	c.state = State{booted: true}
	snapshot := c.state.clone()
	c.mu.Unlock()

	c.logger.Info("session settled without an auth event")
	c.metrics.recordTransition(snapshot.Phase())
	c.notifyWatchers(snapshot)
}

// OnAuthStateChanged applies an auth state change. State is updated before
// any binding work is scheduled, so readers see the new identity even
// while binding is slow or failing. Repeating an event is harmless.
func (c *Coordinator) OnAuthStateChanged(user *auth.User, authenticated bool) {
	loading := c.auth.IsLoading()

	c.mu.Lock()
	c.state = State{
		User:            user.Clone(),
		IsAuthenticated: authenticated,
		IsLoading:       loading,
		booted:          true,
	}
	c.generation++
	if authenticated && user != nil {
		c.desired = user.Clone()
	} else {
		c.desired = nil
	}
	gen := c.generation
	snapshot := c.state.clone()
	c.mu.Unlock()

	c.logger.Debug("auth state changed",
		"authenticated", authenticated,
		"user_id", userID(user),
		"generation", gen,
	)
	c.metrics.recordTransition(snapshot.Phase())
	c.notifyWatchers(snapshot)
	c.poke()
}

// Login signs in. The resulting auth event updates the session; on error
// the loading flag is cleared and the error returned.
func (c *Coordinator) Login(ctx context.Context, email, password string) (err error) {
	ctx, span := c.tracer.Start(ctx, "session.login")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	c.setLoading(true)
	if err = c.auth.Login(ctx, email, password); err != nil {
		c.setLoading(false)
		return err
	}
	c.setLoading(c.auth.IsLoading())
	return nil
}

// Logout signs out. It always succeeds from the caller's point of view;
// failures are logged.
func (c *Coordinator) Logout(ctx context.Context) {
	ctx, span := c.tracer.Start(ctx, "session.logout")
	defer span.End()

	c.setLoading(true)
	defer c.setLoading(false)
	if err := c.auth.Logout(ctx); err != nil {
		span.RecordError(err)
		errutil.LogWarn(c.logger, "logout failed", err)
	}
}

// UpdateUser forwards a profile patch. The session changes only when the
// auth service publishes the merged user.
func (c *Coordinator) UpdateUser(patch auth.UserPatch) {
	c.auth.UpdateUser(patch)
}

// CheckAuthStatus re-validates the session with the server.
func (c *Coordinator) CheckAuthStatus(ctx context.Context) error {
	return c.auth.CheckAuthStatus(ctx)
}

// Token returns an access token for API calls, or "" when signed out.
func (c *Coordinator) Token(ctx context.Context) (string, error) {
	return c.auth.Token(ctx)
}

func (c *Coordinator) HasRole(role auth.Role) bool        { return c.auth.HasRole(role) }
func (c *Coordinator) HasAnyRole(roles ...auth.Role) bool { return c.auth.HasAnyRole(roles...) }
func (c *Coordinator) IsPlayer() bool                     { return c.auth.IsPlayer() }
func (c *Coordinator) IsCoach() bool                      { return c.auth.IsCoach() }
func (c *Coordinator) IsReferee() bool                    { return c.auth.IsReferee() }
func (c *Coordinator) IsAdmin() bool                      { return c.auth.IsAdmin() }
func (c *Coordinator) IsLeague() bool                     { return c.auth.IsLeague() }

// State returns a snapshot of the session.
func (c *Coordinator) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state.clone()
}

// Ready reports whether the session has left the booting phase.
func (c *Coordinator) Ready() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state.booted
}

// Watch calls fn with a snapshot after every state change and returns a
// function that stops the calls. fn runs on the goroutine that caused the
// change and must not block.
func (c *Coordinator) Watch(fn func(State)) (stop func()) {
	c.mu.Lock()
	c.nextWatcher++
	id := c.nextWatcher
	c.watchers = append(c.watchers, watcherEntry{id: id, fn: fn})
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			for i, w := range c.watchers {
				if w.id == id {
					c.watchers = append(c.watchers[:i], c.watchers[i+1:]...)
					return
				}
			}
		})
	}
}

// Binding returns the user the services are currently bound to.
func (c *Coordinator) Binding() (userID string, ok bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.bound == nil {
		return "", false
	}
	return c.bound.userID, true
}

// WaitIdle blocks until binding work has caught up with the latest auth
// event, or ctx is done.
func (c *Coordinator) WaitIdle(ctx context.Context) error {
	for {
		c.mu.RLock()
		done := c.applied == c.generation || c.closed
		idle := c.idle
		c.mu.RUnlock()
		if done {
			return nil
		}
		select {
		case <-idle:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Close stops listening to auth events, stops the worker and releases any
// binding. It returns ctx's error if the worker does not stop in time.
func (c *Coordinator) Close(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	unsubscribe, stop := c.unsubscribe, c.stop
	c.unsubscribe, c.stop = nil, nil
	c.signalIdleLocked()
	c.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	if stop != nil {
		stop()
	}

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	if _, ok := c.Binding(); ok {
		c.unbind(context.WithoutCancel(ctx))
	}
	c.logger.Debug("session coordinator closed")
	return nil
}

func (c *Coordinator) setLoading(loading bool) {
	c.mu.Lock()
	if c.state.IsLoading == loading {
		c.mu.Unlock()
		return
	}
	c.state.IsLoading = loading
	snapshot := c.state.clone()
	c.mu.Unlock()

	c.metrics.recordTransition(snapshot.Phase())
	c.notifyWatchers(snapshot)
}

func (c *Coordinator) notifyWatchers(s State) {
	c.mu.RLock()
	fns := make([]func(State), 0, len(c.watchers))
	for _, w := range c.watchers {
		fns = append(fns, w.fn)
	}
	c.mu.RUnlock()

	for _, fn := range fns {
		fn(s.clone())
	}
}

func (c *Coordinator) span(ctx context.Context, name string, user string) (context.Context, trace.Span) {
	return c.tracer.Start(ctx, name, trace.WithAttributes(attribute.String("user.id", user)))
}

func userID(u *auth.User) string {
	if u == nil {
		return ""
	}
	return u.ID.String()
}

var _ Context = (*Coordinator)(nil)
