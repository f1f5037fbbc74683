// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Courtside Contributors

package session_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/courtside/courtside/internal/auth"
	"github.com/courtside/courtside/internal/realtime"
	"github.com/courtside/courtside/internal/session"
	"github.com/courtside/courtside/internal/session/sessiontest"
)

// league is an in-memory auth backend keyed by email.
type league struct {
	mu       sync.Mutex
	accounts map[string]*auth.User
	logouts  int
}

func (l *league) Login(_ context.Context, email, password string) (*auth.Credentials, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	u, ok := l.accounts[email]
	if !ok || password != "secret" {
		return nil, auth.ErrUnauthorized
	}
	return &auth.Credentials{AccessToken: "token-" + u.ID.String(), User: u.Clone()}, nil
}

func (l *league) Logout(context.Context, string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.logouts++
	return nil
}

func (l *league) Profile(_ context.Context, token string) (*auth.User, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, u := range l.accounts {
		if "token-"+u.ID.String() == token {
			return u.Clone(), nil
		}
	}
	return nil, auth.ErrUnauthorized
}

func (l *league) Refresh(context.Context, string) (*auth.Credentials, error) {
	return nil, auth.ErrUnauthorized
}

var _ = Describe("Session lifecycle", func() {
	var (
		ctx      context.Context
		cancel   context.CancelFunc
		rec      *sessiontest.Recorder
		store    *auth.MemoryStore
		backend  *league
		notifier *sessiontest.Notifier
		rt       *sessiontest.Realtime
		coord    *session.Coordinator
	)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	start := func() {
		svc, err := auth.NewService(backend, store, auth.WithLogger(logger))
		Expect(err).NotTo(HaveOccurred())
		coord = session.New(svc, notifier, rt, session.WithLogger(logger))
		coord.Start(ctx)
		Eventually(coord.Ready).Should(BeTrue())
		Expect(coord.WaitIdle(ctx)).To(Succeed())
	}

	bound := func() string {
		id, _ := coord.Binding()
		return id
	}

	BeforeEach(func() {
		ctx, cancel = context.WithTimeout(context.Background(), 5*time.Second)
		rec = &sessiontest.Recorder{}
		store = auth.NewMemoryStore()
		backend = &league{accounts: map[string]*auth.User{
			"sam@example.com": {ID: "41", Name: "Sam", Type: auth.RolePlayer},
			"jo@example.com":  {ID: "42", Name: "Jo", Type: auth.RoleCoach},
			"ref@example.com": {ID: "43", Name: "Rene", Type: auth.RoleReferee},
		}}
		notifier = sessiontest.NewNotifier(rec)
		rt = sessiontest.NewRealtime(rec)
	})

	AfterEach(func() {
		if coord != nil {
			Expect(coord.Close(ctx)).To(Succeed())
		}
		cancel()
	})

	Context("on a fresh install", func() {
		BeforeEach(start)

		It("settles unauthenticated with nothing bound", func() {
			st := coord.State()
			Expect(st.Phase()).To(Equal(session.PhaseUnauthenticated))
			Expect(st.IsLoading).To(BeFalse())
			_, ok := coord.Binding()
			Expect(ok).To(BeFalse())
			Expect(rec.Calls()).To(BeEmpty())
		})

		It("binds after sign in and tears down realtime before notifications on sign out", func() {
			Expect(coord.Login(ctx, "Sam@Example.com ", "secret")).To(Succeed())
			Expect(coord.WaitIdle(ctx)).To(Succeed())
			Expect(coord.State().Phase()).To(Equal(session.PhaseAuthenticated))
			Expect(bound()).To(Equal("41"))
			Expect(coord.IsPlayer()).To(BeTrue())

			Expect(rt.Publish(realtime.KindSanction, realtime.Event{
				Name: "sanction.created",
				Data: map[string]any{"sanction_id": "s-3"},
			})).To(BeTrue())
			Expect(notifier.Scheduled()).To(HaveLen(1))
			Expect(notifier.Scheduled()[0].Data).To(HaveKeyWithValue("type", "sanction"))
			Expect(notifier.Scheduled()[0].Data).To(HaveKeyWithValue("sanction_id", "s-3"))

			rec.Reset()
			coord.Logout(ctx)
			Expect(coord.WaitIdle(ctx)).To(Succeed())

			Expect(rec.Calls()).To(Equal([]string{"realtime.disconnect", "notify.cleanup"}))
			Expect(coord.State().Phase()).To(Equal(session.PhaseUnauthenticated))
			Expect(backend.logouts).To(Equal(1))
		})

		It("rejects bad credentials without binding", func() {
			err := coord.Login(ctx, "sam@example.com", "wrong")
			Expect(err).To(MatchError(auth.ErrUnauthorized))
			Expect(coord.WaitIdle(ctx)).To(Succeed())

			st := coord.State()
			Expect(st.IsLoading).To(BeFalse())
			Expect(st.IsAuthenticated).To(BeFalse())
			Expect(rec.Count("notify.initialize")).To(BeZero())
		})

		It("ends bound to the last account after rapid switches", func() {
			gate := make(chan struct{})
			notifier.Gate = gate

			Expect(coord.Login(ctx, "sam@example.com", "secret")).To(Succeed())
			Eventually(func() int { return rec.Count("notify.initialize") }).Should(Equal(1))
			coord.Logout(ctx)
			Expect(coord.Login(ctx, "jo@example.com", "secret")).To(Succeed())
			Expect(coord.Login(ctx, "ref@example.com", "secret")).To(Succeed())
			close(gate)

			Expect(coord.WaitIdle(ctx)).To(Succeed())
			Expect(bound()).To(Equal("43"))
			sub, ok := rt.Subscribed()
			Expect(ok).To(BeTrue())
			Expect(sub).To(Equal("43"))
			Expect(coord.State().User.Name).To(Equal("Rene"))
			Expect(coord.IsReferee()).To(BeTrue())
		})
	})

	Context("with a stored session", func() {
		BeforeEach(func() {
			Expect(store.Save(ctx, &auth.Credentials{
				AccessToken: "token-42",
				User:        &auth.User{ID: "42", Name: "Jo (cached)"},
			})).To(Succeed())
			start()
		})

		It("restores and binds the stored user with the fresh profile", func() {
			st := coord.State()
			Expect(st.Phase()).To(Equal(session.PhaseAuthenticated))
			Expect(st.User.Name).To(Equal("Jo"))
			Expect(bound()).To(Equal("42"))
			Expect(rec.Calls()).To(Equal([]string{
				"notify.initialize",
				"realtime.initialize",
				"realtime.subscribe:42",
			}))
		})

		It("leaves the session unchanged on profile edits", func() {
			name := "Jordan"
			coord.UpdateUser(auth.UserPatch{Name: &name})
			Expect(coord.WaitIdle(ctx)).To(Succeed())

			Expect(coord.State().User.Name).To(Equal("Jordan"))
			Expect(rec.Count("realtime.subscribe")).To(Equal(1))
		})

		It("releases everything on close", func() {
			Expect(coord.Close(ctx)).To(Succeed())
			Expect(rec.Count("realtime.disconnect")).To(Equal(1))
			Expect(rec.Count("notify.cleanup")).To(Equal(1))
			Expect(notifier.Active()).To(BeFalse())
		})
	})
})
