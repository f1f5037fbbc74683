// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Courtside Contributors

package session_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/courtside/courtside/internal/auth"
	"github.com/courtside/courtside/internal/notify"
	"github.com/courtside/courtside/internal/realtime"
	"github.com/courtside/courtside/internal/session"
	"github.com/courtside/courtside/internal/session/sessiontest"
)

var (
	userA = &auth.User{ID: "A", Name: "Alex", Type: auth.RolePlayer}
	userB = &auth.User{ID: "B", Name: "Blair", Type: auth.RoleCoach}
)

type harness struct {
	rec      *sessiontest.Recorder
	auth     *sessiontest.Auth
	notifier *sessiontest.Notifier
	rt       *sessiontest.Realtime
	coord    *session.Coordinator
}

func newHarness(t *testing.T, opts ...session.Option) *harness {
	t.Helper()
	rec := &sessiontest.Recorder{}
	h := &harness{
		rec:      rec,
		auth:     sessiontest.NewAuth(rec),
		notifier: sessiontest.NewNotifier(rec),
		rt:       sessiontest.NewRealtime(rec),
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	opts = append([]session.Option{session.WithLogger(logger)}, opts...)
	h.coord = session.New(h.auth, h.notifier, h.rt, opts...)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		assert.NoError(t, h.coord.Close(ctx))
	})
	return h
}

// started returns a harness whose coordinator has started and settled.
func started(t *testing.T, opts ...session.Option) *harness {
	t.Helper()
	h := newHarness(t, opts...)
	h.coord.Start(context.Background())
	require.Eventually(t, h.coord.Ready, time.Second, time.Millisecond)
	h.waitIdle(t)
	return h
}

func (h *harness) waitIdle(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, h.coord.WaitIdle(ctx))
}

func (h *harness) emit(t *testing.T, user *auth.User, authenticated bool) {
	t.Helper()
	h.auth.Emit(user, authenticated)
	h.waitIdle(t)
}

func indexOf(calls []string, call string) int {
	return slices.Index(calls, call)
}

func TestCoordinator_InitialState(t *testing.T) {
	h := newHarness(t)

	st := h.coord.State()
	assert.Nil(t, st.User)
	assert.False(t, st.IsAuthenticated)
	assert.True(t, st.IsLoading)
	assert.Equal(t, session.PhaseBooting, st.Phase())
	assert.False(t, h.coord.Ready())

	_, bound := h.coord.Binding()
	assert.False(t, bound)
}

func TestCoordinator_StartSubscribesBeforeInitialize(t *testing.T) {
	h := newHarness(t)
	h.coord.Start(context.Background())
	h.coord.Start(context.Background())

	require.Eventually(t, func() bool { return h.rec.Count("auth.initialize") == 1 }, time.Second, time.Millisecond)
	calls := h.rec.Calls()
	assert.Equal(t, []string{"auth.subscribe", "auth.initialize"}, calls[:2])
	assert.Equal(t, 1, h.auth.Subscribers())
}

func TestCoordinator_BootFailureSettlesUnauthenticated(t *testing.T) {
	h := newHarness(t)
	h.auth.InitializeFunc = func(context.Context) error { return errors.New("keychain unavailable") }

	h.coord.Start(context.Background())
	require.Eventually(t, h.coord.Ready, time.Second, time.Millisecond)

	st := h.coord.State()
	assert.Equal(t, session.PhaseUnauthenticated, st.Phase())
	assert.Nil(t, st.User)
	assert.False(t, st.IsAuthenticated)
	assert.False(t, st.IsLoading)
}

func TestCoordinator_BootRestoresSession(t *testing.T) {
	h := newHarness(t)
	h.auth.InitializeFunc = func(context.Context) error {
		h.auth.Emit(userA, true)
		return nil
	}

	h.coord.Start(context.Background())
	require.Eventually(t, h.coord.Ready, time.Second, time.Millisecond)
	h.waitIdle(t)

	st := h.coord.State()
	assert.Equal(t, session.PhaseAuthenticated, st.Phase())
	assert.Equal(t, userA.ID, st.User.ID)
	id, ok := h.coord.Binding()
	assert.True(t, ok)
	assert.Equal(t, "A", id)
}

func TestCoordinator_StateFollowsMostRecentEvent(t *testing.T) {
	h := started(t)

	events := []struct {
		user          *auth.User
		authenticated bool
	}{
		{nil, false},
		{userA, true},
		{userA, true},
		{nil, false},
		{userB, true},
		{userA, true},
		{nil, false},
		{nil, false},
		{userB, true},
	}
	for i, ev := range events {
		h.emit(t, ev.user, ev.authenticated)

		st := h.coord.State()
		assert.Equal(t, ev.authenticated, st.IsAuthenticated, "event %d", i)
		assert.Equal(t, ev.user, st.User, "event %d", i)
		assert.False(t, st.IsLoading, "event %d", i)

		id, bound := h.coord.Binding()
		assert.Equal(t, ev.authenticated, bound, "event %d", i)
		if ev.authenticated {
			assert.Equal(t, ev.user.ID.String(), id, "event %d", i)
			sub, ok := h.rt.Subscribed()
			assert.True(t, ok, "event %d", i)
			assert.Equal(t, ev.user.ID.String(), sub, "event %d", i)
		}
	}
}

func TestCoordinator_StateIsACopy(t *testing.T) {
	h := started(t)
	h.emit(t, userA, true)

	st := h.coord.State()
	st.User.Name = "changed"
	assert.Equal(t, "Alex", h.coord.State().User.Name)
}

func TestCoordinator_RepeatedEventsBindOnce(t *testing.T) {
	h := started(t)

	h.emit(t, userA, true)
	h.emit(t, userA, true)
	h.emit(t, userA, true)

	assert.Equal(t, 1, h.rec.Count("notify.initialize"))
	assert.Equal(t, 1, h.rec.Count("realtime.subscribe:A"))
}

func TestCoordinator_UnbindIsIdempotent(t *testing.T) {
	h := started(t)
	h.emit(t, userA, true)

	h.emit(t, nil, false)
	h.emit(t, nil, false)

	assert.Equal(t, 1, h.rec.Count("realtime.disconnect"))
	assert.Equal(t, 1, h.rec.Count("notify.cleanup"))
	_, bound := h.coord.Binding()
	assert.False(t, bound)
}

func TestCoordinator_UnbindWithoutBindingIsNoop(t *testing.T) {
	h := started(t)
	h.emit(t, nil, false)

	assert.Zero(t, h.rec.Count("realtime.disconnect"))
	assert.Zero(t, h.rec.Count("notify.cleanup"))
}

func TestCoordinator_TeardownDisconnectsRealtimeFirst(t *testing.T) {
	h := started(t)
	h.emit(t, userA, true)
	h.rec.Reset()

	h.emit(t, nil, false)

	calls := h.rec.Calls()
	disconnect := indexOf(calls, "realtime.disconnect")
	cleanup := indexOf(calls, "notify.cleanup")
	require.NotEqual(t, -1, disconnect)
	require.NotEqual(t, -1, cleanup)
	assert.Less(t, disconnect, cleanup)
}

func TestCoordinator_BindOrder(t *testing.T) {
	h := started(t)
	h.rec.Reset()
	h.emit(t, userA, true)

	assert.Equal(t, []string{
		"notify.initialize",
		"realtime.initialize",
		"realtime.subscribe:A",
	}, h.rec.Calls())
}

func TestCoordinator_AccountSwitchEndsBoundToLatestUser(t *testing.T) {
	h := started(t)
	gate := make(chan struct{})
	h.notifier.Gate = gate

	h.auth.Emit(userA, true)
	require.Eventually(t, func() bool { return h.rec.Count("notify.initialize") == 1 }, time.Second, time.Millisecond)

	// B arrives while A's bind is still in flight.
	h.auth.Emit(userB, true)
	assert.Equal(t, userB.ID, h.coord.State().User.ID, "state updates before binding")
	close(gate)
	h.waitIdle(t)

	id, bound := h.coord.Binding()
	require.True(t, bound)
	assert.Equal(t, "B", id)
	sub, ok := h.rt.Subscribed()
	require.True(t, ok)
	assert.Equal(t, "B", sub)
	assert.True(t, h.notifier.Active())

	calls := h.rec.Calls()
	subA := indexOf(calls, "realtime.subscribe:A")
	subB := indexOf(calls, "realtime.subscribe:B")
	release := indexOf(calls, "realtime.disconnect")
	require.NotEqual(t, -1, subA)
	require.NotEqual(t, -1, subB)
	assert.Less(t, subA, release, "A is released")
	assert.Less(t, release, subB, "before B is bound")
	assert.Equal(t, 1, h.rec.Count("realtime.disconnect"))
}

func TestCoordinator_LoginThenLogoutDuringBind(t *testing.T) {
	h := started(t)
	gate := make(chan struct{})
	h.rt.Gate = gate

	h.auth.Emit(userA, true)
	require.Eventually(t, func() bool { return h.rec.Count("realtime.subscribe:A") == 1 }, time.Second, time.Millisecond)
	h.auth.Emit(nil, false)
	close(gate)
	h.waitIdle(t)

	_, bound := h.coord.Binding()
	assert.False(t, bound)
	assert.False(t, h.notifier.Active())
	_, subscribed := h.rt.Subscribed()
	assert.False(t, subscribed)
}

func TestCoordinator_BindingFailureKeepsAuthentication(t *testing.T) {
	h := started(t)
	h.notifier.InitErr = errors.New("push permission denied")
	h.rt.InitErr = errors.New("dial tcp: i/o timeout")

	h.emit(t, userA, true)

	st := h.coord.State()
	assert.True(t, st.IsAuthenticated)
	assert.Equal(t, session.PhaseAuthenticated, st.Phase())

	h.emit(t, nil, false)
	assert.Equal(t, 1, h.rec.Count("realtime.disconnect"), "a failed bind is still released")
	assert.Equal(t, 1, h.rec.Count("notify.cleanup"))
}

func TestCoordinator_NotificationFailureStillSubscribesRealtime(t *testing.T) {
	h := started(t)
	h.notifier.InitErr = errors.New("push permission denied")

	h.emit(t, userA, true)

	sub, ok := h.rt.Subscribed()
	require.True(t, ok)
	assert.Equal(t, "A", sub)
}

func TestCoordinator_RoutesRealtimeEvents(t *testing.T) {
	h := started(t)
	h.emit(t, userA, true)

	require.True(t, h.rt.Publish(realtime.KindSanction, realtime.Event{
		Name: "sanction.updated",
		Data: map[string]any{"sanction_id": "s-7", "message": "Red card issued"},
	}))

	scheduled := h.notifier.Scheduled()
	require.Len(t, scheduled, 1)
	assert.Equal(t, session.SanctionTitle, scheduled[0].Title)
	assert.Equal(t, "Red card issued", scheduled[0].Body)
	assert.Equal(t, "sanction", scheduled[0].Data["type"])
	assert.Equal(t, "s-7", scheduled[0].Data["sanction_id"])

	h.emit(t, nil, false)
	assert.False(t, h.rt.Publish(realtime.KindSanction, realtime.Event{}), "no handlers after unbind")
	assert.Len(t, h.notifier.Scheduled(), 1)
}

func TestCoordinator_Login(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		h := started(t)
		h.auth.LoginUser = userA

		require.NoError(t, h.coord.Login(context.Background(), "alex@example.com", "pw"))
		st := h.coord.State()
		assert.False(t, st.IsLoading)
		assert.True(t, st.IsAuthenticated)
		assert.Equal(t, userA.ID, st.User.ID)
	})

	t.Run("failure resets loading and propagates", func(t *testing.T) {
		h := started(t)
		loginErr := errors.New("invalid credentials")
		h.auth.LoginErr = loginErr

		var phases []session.Phase
		var mu sync.Mutex
		stop := h.coord.Watch(func(s session.State) {
			mu.Lock()
			defer mu.Unlock()
			phases = append(phases, s.Phase())
		})
		defer stop()

		err := h.coord.Login(context.Background(), "alex@example.com", "bad")
		assert.ErrorIs(t, err, loginErr)
		assert.False(t, h.coord.State().IsLoading)
		assert.False(t, h.coord.State().IsAuthenticated)

		mu.Lock()
		defer mu.Unlock()
		assert.Equal(t, []session.Phase{session.PhaseAuthenticating, session.PhaseUnauthenticated}, phases)
	})
}

func TestCoordinator_LogoutNeverFails(t *testing.T) {
	h := started(t)
	h.auth.LoginUser = userA
	require.NoError(t, h.coord.Login(context.Background(), "alex@example.com", "pw"))
	h.waitIdle(t)

	h.auth.LogoutErr = errors.New("network down")
	h.coord.Logout(context.Background())
	h.waitIdle(t)

	st := h.coord.State()
	assert.False(t, st.IsLoading)
	assert.False(t, st.IsAuthenticated)
	_, bound := h.coord.Binding()
	assert.False(t, bound)
}

func TestCoordinator_UpdateUserDelegates(t *testing.T) {
	h := started(t)
	h.emit(t, userA, true)

	name := "Alexandra"
	h.coord.UpdateUser(auth.UserPatch{Name: &name})
	h.waitIdle(t)

	assert.Equal(t, "Alexandra", h.coord.State().User.Name)
	assert.Equal(t, 1, h.rec.Count("auth.update_user"))
	assert.Equal(t, 1, h.rec.Count("realtime.subscribe:A"), "profile edits keep the binding")
}

func TestCoordinator_Delegation(t *testing.T) {
	h := started(t)
	h.auth.TokenVal = "access"
	h.auth.CheckErr = errors.New("offline")

	token, err := h.coord.Token(context.Background())
	require.NoError(t, err)
	assert.Empty(t, token)
	assert.False(t, h.coord.IsPlayer())

	h.emit(t, &auth.User{ID: "R", Type: auth.RoleReferee, Roles: []auth.Role{auth.RoleAdmin}}, true)

	token, err = h.coord.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "access", token)
	assert.True(t, h.coord.IsReferee())
	assert.True(t, h.coord.IsAdmin())
	assert.False(t, h.coord.IsCoach())
	assert.False(t, h.coord.IsLeague())
	assert.True(t, h.coord.HasRole("referee"))
	assert.True(t, h.coord.HasAnyRole(auth.RoleLeague, auth.RoleAdmin))
	assert.EqualError(t, h.coord.CheckAuthStatus(context.Background()), "offline")
}

func TestCoordinator_Watch(t *testing.T) {
	h := started(t)

	var (
		mu   sync.Mutex
		seen []bool
	)
	stop := h.coord.Watch(func(s session.State) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, s.IsAuthenticated)
	})

	h.emit(t, userA, true)
	stop()
	stop()
	h.emit(t, nil, false)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []bool{true}, seen)
}

func TestCoordinator_Close(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	rec := &sessiontest.Recorder{}
	a := sessiontest.NewAuth(rec)
	n := sessiontest.NewNotifier(rec)
	rt := sessiontest.NewRealtime(rec)
	c := session.New(a, n, rt, session.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	c.Start(context.Background())
	require.Eventually(t, c.Ready, time.Second, time.Millisecond)

	a.Emit(userA, true)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, c.WaitIdle(ctx))

	require.NoError(t, c.Close(ctx))
	require.NoError(t, c.Close(ctx))

	assert.Zero(t, a.Subscribers())
	assert.Equal(t, 1, rec.Count("auth.unsubscribe"))
	assert.Equal(t, 1, rec.Count("realtime.disconnect"))
	assert.Equal(t, 1, rec.Count("notify.cleanup"))
	_, bound := c.Binding()
	assert.False(t, bound)
	assert.NoError(t, c.WaitIdle(ctx))

	c.Start(context.Background())
	assert.Zero(t, a.Subscribers(), "a closed coordinator does not restart")
}

func TestCoordinator_NotificationHandlersForwardToHost(t *testing.T) {
	var received []string
	var errs []error
	h := started(t, session.WithNotificationHandlers(notify.Handlers{
		OnReceived: func(n notify.Notification) { received = append(received, n.Title) },
		OnError:    func(err error) { errs = append(errs, err) },
	}))
	h.emit(t, userA, true)

	hs := h.notifier.Handlers()
	require.NotNil(t, hs.OnReceived)
	hs.OnReceived(notify.Notification{Title: "Match moved"})
	hs.OnResponse(notify.Response{Action: "open"})
	hs.OnError(errors.New("queue full"))

	assert.Equal(t, []string{"Match moved"}, received)
	require.Len(t, errs, 1)
}

func TestCoordinator_RealtimeLossIsRestored(t *testing.T) {
	h := started(t)
	h.emit(t, userA, true)

	require.True(t, h.rt.Drop(errors.New("connection reset by peer")))
	require.Eventually(t, func() bool {
		sub, ok := h.rt.Subscribed()
		return ok && sub == "A"
	}, 2*time.Second, time.Millisecond)

	assert.Equal(t, 2, h.rec.Count("realtime.subscribe:A"))
	assert.Equal(t, 1, h.rec.Count("notify.initialize"))
	assert.Zero(t, h.rec.Count("realtime.disconnect"), "the binding is kept")
	uid, ok := h.coord.Binding()
	require.True(t, ok)
	assert.Equal(t, "A", uid)
}

func TestCoordinator_RepeatedEventRestoresLostRealtime(t *testing.T) {
	h := started(t)
	h.emit(t, userA, true)

	h.rt.InitErr = errors.New("dial tcp: connection refused")
	require.True(t, h.rt.Drop(errors.New("connection reset by peer")))
	require.Eventually(t, func() bool { return h.rec.Count("realtime.initialize") == 2 },
		2*time.Second, time.Millisecond)
	_, subscribed := h.rt.Subscribed()
	assert.False(t, subscribed, "restoring fails while the server is unreachable")

	h.rt.InitErr = nil
	h.emit(t, userA, true)

	sub, ok := h.rt.Subscribed()
	require.True(t, ok)
	assert.Equal(t, "A", sub)
	assert.Equal(t, 1, h.rec.Count("notify.initialize"))
}
