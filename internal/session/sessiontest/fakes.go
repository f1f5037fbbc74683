// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Courtside Contributors

// Package sessiontest provides in-memory collaborators for exercising a
// session.Coordinator.
package sessiontest

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/courtside/courtside/internal/auth"
	"github.com/courtside/courtside/internal/notify"
	"github.com/courtside/courtside/internal/realtime"
)

// Recorder keeps an ordered log of calls shared between fakes.
type Recorder struct {
	mu    sync.Mutex
	calls []string
}

// Record appends a call.
func (r *Recorder) Record(call string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, call)
}

// Calls returns a copy of the log.
func (r *Recorder) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.calls)
}

// Count returns how many calls start with prefix.
func (r *Recorder) Count(prefix string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.calls {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}
	return n
}

// Reset clears the log.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = nil
}

// Auth is a scriptable auth service. Login and Logout publish state
// changes synchronously, as the real service does.
type Auth struct {
	Rec *Recorder

	mu        sync.Mutex
	listeners map[int]auth.Listener
	nextID    int
	user      *auth.User
	loading   bool

	// InitializeFunc runs for Initialize. Nil publishes nothing.
	InitializeFunc func(ctx context.Context) error
	// LoginUser is signed in by a successful Login.
	LoginUser *auth.User
	LoginErr  error
	LogoutErr error
	CheckErr  error
	TokenVal  string
}

// NewAuth returns an auth fake recording into rec.
func NewAuth(rec *Recorder) *Auth {
	return &Auth{Rec: rec, listeners: make(map[int]auth.Listener), loading: true}
}

// Emit publishes a state change to every subscriber, settling loading.
func (a *Auth) Emit(user *auth.User, authenticated bool) {
	a.mu.Lock()
	a.user = user.Clone()
	a.loading = false
	ids := make([]int, 0, len(a.listeners))
	for id := range a.listeners {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	fns := make([]auth.Listener, 0, len(ids))
	for _, id := range ids {
		fns = append(fns, a.listeners[id])
	}
	a.mu.Unlock()

	for _, fn := range fns {
		fn(auth.StateChange{User: user.Clone(), Authenticated: authenticated})
	}
}

// Subscribers returns the number of live subscriptions.
func (a *Auth) Subscribers() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.listeners)
}

// SetLoading sets the value reported by IsLoading.
func (a *Auth) SetLoading(v bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.loading = v
}

func (a *Auth) Initialize(ctx context.Context) error {
	a.Rec.Record("auth.initialize")
	if a.InitializeFunc != nil {
		return a.InitializeFunc(ctx)
	}
	return nil
}

func (a *Auth) Subscribe(fn auth.Listener) func() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.Rec.Record("auth.subscribe")
	a.nextID++
	id := a.nextID
	a.listeners[id] = fn
	var once sync.Once
	return func() {
		once.Do(func() {
			a.mu.Lock()
			defer a.mu.Unlock()
			a.Rec.Record("auth.unsubscribe")
			delete(a.listeners, id)
		})
	}
}

func (a *Auth) Login(_ context.Context, email, _ string) error {
	a.Rec.Record("auth.login:" + email)
	if a.LoginErr != nil {
		a.SetLoading(false)
		return a.LoginErr
	}
	a.Emit(a.LoginUser, true)
	return nil
}

func (a *Auth) Logout(context.Context) error {
	a.Rec.Record("auth.logout")
	a.Emit(nil, false)
	return a.LogoutErr
}

func (a *Auth) UpdateUser(patch auth.UserPatch) {
	a.Rec.Record("auth.update_user")
	a.mu.Lock()
	user := a.user
	a.mu.Unlock()
	if user == nil {
		return
	}
	a.Emit(user.Apply(patch), true)
}

func (a *Auth) CheckAuthStatus(context.Context) error {
	a.Rec.Record("auth.check")
	return a.CheckErr
}

func (a *Auth) Token(context.Context) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.user == nil {
		return "", nil
	}
	return a.TokenVal, nil
}

func (a *Auth) IsLoading() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.loading
}

func (a *Auth) HasRole(role auth.Role) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.user.HasRole(role)
}

func (a *Auth) HasAnyRole(roles ...auth.Role) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.user.HasAnyRole(roles...)
}

func (a *Auth) IsPlayer() bool  { return a.HasRole(auth.RolePlayer) }
func (a *Auth) IsCoach() bool   { return a.HasRole(auth.RoleCoach) }
func (a *Auth) IsReferee() bool { return a.HasRole(auth.RoleReferee) }
func (a *Auth) IsAdmin() bool   { return a.HasRole(auth.RoleAdmin) }
func (a *Auth) IsLeague() bool  { return a.HasRole(auth.RoleLeague) }

// Scheduled is one ScheduleLocalNotification call.
type Scheduled struct {
	Title string
	Body  string
	Data  map[string]any
}

// Notifier is a notification service fake.
type Notifier struct {
	Rec *Recorder
	// Gate, when set, blocks Initialize until it is closed or receives.
	Gate    chan struct{}
	InitErr error

	mu        sync.Mutex
	handlers  notify.Handlers
	scheduled []Scheduled
	active    bool
}

// NewNotifier returns a notifier fake recording into rec.
func NewNotifier(rec *Recorder) *Notifier {
	return &Notifier{Rec: rec}
}

func (n *Notifier) Initialize(ctx context.Context, h notify.Handlers) (string, error) {
	n.Rec.Record("notify.initialize")
	if n.Gate != nil {
		select {
		case <-n.Gate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.handlers = h
	n.active = true
	if n.InitErr != nil {
		return "", n.InitErr
	}
	return "push-token", nil
}

func (n *Notifier) ScheduleLocalNotification(title, body string, data map[string]any) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Rec.Record("notify.schedule:" + title)
	n.scheduled = append(n.scheduled, Scheduled{Title: title, Body: body, Data: data})
}

func (n *Notifier) Cleanup() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Rec.Record("notify.cleanup")
	n.handlers = notify.Handlers{}
	n.active = false
}

// Scheduled returns the notifications scheduled so far.
func (n *Notifier) Scheduled() []Scheduled {
	n.mu.Lock()
	defer n.mu.Unlock()
	return slices.Clone(n.scheduled)
}

// Active reports whether Initialize ran without a later Cleanup.
func (n *Notifier) Active() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.active
}

// Handlers returns the handlers installed by the last Initialize.
func (n *Notifier) Handlers() notify.Handlers {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.handlers
}

// Realtime is a realtime service fake.
type Realtime struct {
	Rec          *Recorder
	InitErr      error
	SubscribeErr error
	// Gate, when set, blocks SubscribeToUserChannel until released.
	Gate chan struct{}

	mu       sync.Mutex
	userID   string
	handlers *realtime.Handlers
}

// NewRealtime returns a realtime fake recording into rec.
func NewRealtime(rec *Recorder) *Realtime {
	return &Realtime{Rec: rec}
}

func (r *Realtime) Initialize(context.Context) error {
	err := r.InitErr
	r.Rec.Record("realtime.initialize")
	return err
}

func (r *Realtime) SubscribeToUserChannel(ctx context.Context, userID string, h realtime.Handlers) error {
	r.Rec.Record("realtime.subscribe:" + userID)
	if r.Gate != nil {
		select {
		case <-r.Gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if r.SubscribeErr != nil {
		return r.SubscribeErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.userID = userID
	r.handlers = &h
	return nil
}

func (r *Realtime) Disconnect() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Rec.Record("realtime.disconnect")
	r.userID = ""
	r.handlers = nil
}

// Drop fails the connection under the current subscription: the
// subscription is cleared and its OnConnectionLost handler runs with err.
// It reports false when nothing is subscribed.
func (r *Realtime) Drop(err error) bool {
	r.mu.Lock()
	h := r.handlers
	r.userID, r.handlers = "", nil
	r.mu.Unlock()
	if h == nil {
		return false
	}
	r.Rec.Record("realtime.lost")
	if h.OnConnectionLost != nil {
		h.OnConnectionLost(err)
	}
	return true
}

// Subscribed returns the user whose channel is subscribed.
func (r *Realtime) Subscribed() (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.userID, r.handlers != nil
}

// Publish delivers e to the subscribed handlers as kind. It reports false
// when nothing is subscribed.
func (r *Realtime) Publish(kind realtime.Kind, e realtime.Event) bool {
	r.mu.Lock()
	h := r.handlers
	r.mu.Unlock()
	if h == nil {
		return false
	}
	var fn func(realtime.Event)
	switch kind {
	case realtime.KindGeneral:
		fn = h.OnNotification
	case realtime.KindSanction:
		fn = h.OnSanctionUpdate
	case realtime.KindPayment:
		fn = h.OnPaymentUpdate
	}
	if fn == nil {
		return false
	}
	fn(e)
	return true
}
