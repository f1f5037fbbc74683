// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Courtside Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/samber/oops"

	"github.com/courtside/courtside/pkg/errutil"
)

// defaultRefreshSkew refreshes access tokens this long before they expire.
const defaultRefreshSkew = time.Minute

// Backend is the league API surface the auth service needs.
// Implementations wrap ErrUnauthorized when the server rejects a token or
// credentials.
type Backend interface {
	Login(ctx context.Context, email, password string) (*Credentials, error)
	Logout(ctx context.Context, accessToken string) error
	Profile(ctx context.Context, accessToken string) (*User, error)
	Refresh(ctx context.Context, refreshToken string) (*Credentials, error)
}

// StateChange is published after every authentication transition.
// User is nil when Authenticated is false.
type StateChange struct {
	User          *User
	Authenticated bool
}

// Listener receives state changes. It must not call Subscribe or the
// returned unsubscribe function.
type Listener func(StateChange)

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock overrides the time source used for token expiry checks.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithRefreshSkew sets how long before expiry an access token is refreshed.
func WithRefreshSkew(d time.Duration) Option {
	return func(s *Service) {
		if d >= 0 {
			s.refreshSkew = d
		}
	}
}

type listenerEntry struct {
	id uint64
	fn Listener
}

// Service holds the authentication state of this client.
type Service struct {
	backend     Backend
	store       Store
	logger      *slog.Logger
	now         func() time.Time
	refreshSkew time.Duration

	mu        sync.RWMutex
	creds     *Credentials // nil while unauthenticated
	loading   bool
	listeners []listenerEntry
	nextID    uint64

	// refreshMu serializes token refreshes so a rotated refresh token is
	// never spent twice.
	refreshMu sync.Mutex
}

// NewService creates an auth service. It starts in the loading state until
// Initialize settles.
func NewService(backend Backend, store Store, opts ...Option) (*Service, error) {
	if backend == nil {
		return nil, oops.Code(CodeInvalidInput).Errorf("backend is required")
	}
	if store == nil {
		return nil, oops.Code(CodeInvalidInput).Errorf("credential store is required")
	}
	s := &Service{
		backend:     backend,
		store:       store,
		logger:      slog.Default(),
		now:         time.Now,
		refreshSkew: defaultRefreshSkew,
		loading:     true,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Subscribe registers fn for state changes and returns its disposer.
// The disposer is safe to call more than once.
func (s *Service) Subscribe(fn Listener) (unsubscribe func()) {
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.listeners = append(s.listeners, listenerEntry{id: id, fn: fn})
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			for i, l := range s.listeners {
				if l.id == id {
					s.listeners = append(s.listeners[:i], s.listeners[i+1:]...)
					return
				}
			}
		})
	}
}

// Initialize restores the stored session, refreshing and re-validating it
// against the server. It always publishes exactly one state change.
func (s *Service) Initialize(ctx context.Context) error {
	s.setLoading(true)

	creds, err := s.store.Load(ctx)
	if errors.Is(err, ErrNoCredentials) {
		s.settle(nil)
		return nil
	}
	if err != nil {
		s.settle(nil)
		return err
	}

	fresh, err := s.ensureFresh(ctx, creds)
	switch {
	case errors.Is(err, ErrUnauthorized):
		s.logger.Info("stored session expired")
		s.clearStore(ctx)
		s.settle(nil)
		return nil
	case err != nil:
		errutil.LogWarn(s.logger, "token refresh failed, using stored session", err)
	default:
		creds = fresh
	}

	user, err := s.backend.Profile(ctx, creds.AccessToken)
	switch {
	case err == nil:
		creds.User = user
		s.saveStore(ctx, creds)
	case errors.Is(err, ErrUnauthorized):
		s.logger.Info("stored session rejected by server")
		s.clearStore(ctx)
		s.settle(nil)
		return nil
	case creds.User != nil:
		errutil.LogWarn(s.logger, "profile unavailable, resuming offline session", err,
			"user_id", creds.User.ID.String())
	default:
		s.settle(nil)
		return oops.Code(CodeProfileUnavailable).Wrapf(err, "no cached profile to resume")
	}

	s.settle(creds)
	return nil
}

// Login authenticates against the league API and stores the session.
func (s *Service) Login(ctx context.Context, email, password string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return oops.Code(CodeInvalidInput).Errorf("email and password are required")
	}

	s.setLoading(true)
	creds, err := s.backend.Login(ctx, email, password)
	if err != nil {
		s.setLoading(false)
		if errors.Is(err, ErrUnauthorized) {
			return oops.Code(CodeInvalidCredentials).With("email", email).Wrapf(err, "invalid email or password")
		}
		return oops.Code(CodeLoginFailed).With("email", email).Wrap(err)
	}
	if creds == nil || creds.AccessToken == "" || creds.User == nil {
		s.setLoading(false)
		return oops.Code(CodeLoginFailed).With("email", email).Errorf("login response missing token or user")
	}

	s.saveStore(ctx, creds)
	s.settle(creds)
	s.logger.Info("logged in", "user_id", creds.User.ID.String())
	return nil
}

// Logout ends the session locally. The server-side logout is best effort.
// The only error returned is a failure to clear the stored credentials,
// and the state change is published regardless.
func (s *Service) Logout(ctx context.Context) error {
	s.setLoading(true)

	if token := s.accessToken(); token != "" {
		if err := s.backend.Logout(ctx, token); err != nil {
			errutil.LogWarn(s.logger, "server logout failed", err)
		}
	}

	storeErr := s.store.Clear(ctx)
	s.settle(nil)
	if storeErr != nil {
		return oops.Code(CodeStoreFailed).Wrapf(storeErr, "clear credentials")
	}
	return nil
}

// UpdateUser merges patch into the current user and publishes the merged
// record. It does nothing while unauthenticated.
func (s *Service) UpdateUser(patch UserPatch) {
	s.mu.Lock()
	if s.creds == nil || s.creds.User == nil || patch.IsEmpty() {
		s.mu.Unlock()
		return
	}
	next := s.creds.Clone()
	next.User = next.User.Apply(patch)
	s.creds = next
	s.mu.Unlock()

	s.saveStore(context.Background(), next)
	s.emit()
}

// CheckAuthStatus re-validates the session with the server, as on app
// resume. A rejected session is cleared; transient failures are returned
// and leave the state untouched.
func (s *Service) CheckAuthStatus(ctx context.Context) error {
	creds := s.current()
	if creds == nil {
		s.settle(nil)
		return nil
	}

	creds, err := s.ensureFresh(ctx, creds)
	if errors.Is(err, ErrUnauthorized) {
		s.expire(ctx)
		return nil
	}
	if err != nil {
		return oops.Code(CodeCheckFailed).Wrap(err)
	}

	user, err := s.backend.Profile(ctx, creds.AccessToken)
	if errors.Is(err, ErrUnauthorized) {
		s.expire(ctx)
		return nil
	}
	if err != nil {
		return oops.Code(CodeCheckFailed).Wrap(err)
	}

	creds.User = user
	s.saveStore(ctx, creds)
	s.settle(creds)
	return nil
}

// Token returns a usable access token, refreshing it when close to expiry.
// It returns "" when unauthenticated or when the refresh invalidated the
// session.
func (s *Service) Token(ctx context.Context) (string, error) {
	creds := s.current()
	if creds == nil {
		return "", nil
	}
	fresh, err := s.ensureFresh(ctx, creds)
	if errors.Is(err, ErrUnauthorized) {
		s.expire(ctx)
		return "", nil
	}
	if err != nil {
		errutil.LogWarn(s.logger, "token refresh failed", err)
		return creds.AccessToken, nil
	}
	return fresh.AccessToken, nil
}

// IsLoading reports whether an operation that will publish a state change
// is in flight.
func (s *Service) IsLoading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// CurrentUser returns a copy of the authenticated user, or nil.
func (s *Service) CurrentUser() *User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.creds == nil {
		return nil
	}
	return s.creds.User.Clone()
}

// IsAuthenticated reports whether a session is active.
func (s *Service) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.creds != nil
}

// HasRole reports whether the current user holds role.
func (s *Service) HasRole(role Role) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.creds != nil && s.creds.User.HasRole(role)
}

// HasAnyRole reports whether the current user holds any of roles.
func (s *Service) HasAnyRole(roles ...Role) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.creds != nil && s.creds.User.HasAnyRole(roles...)
}

func (s *Service) IsPlayer() bool  { return s.HasRole(RolePlayer) }
func (s *Service) IsCoach() bool   { return s.HasRole(RoleCoach) }
func (s *Service) IsReferee() bool { return s.HasRole(RoleReferee) }
func (s *Service) IsAdmin() bool   { return s.HasRole(RoleAdmin) }
func (s *Service) IsLeague() bool  { return s.HasRole(RoleLeague) }

// ensureFresh refreshes creds when its access token is within the refresh
// skew of expiry. It returns ErrUnauthorized (possibly wrapped) when the
// token has expired and cannot be refreshed.
func (s *Service) ensureFresh(ctx context.Context, creds *Credentials) (*Credentials, error) {
	exp, ok := AccessTokenExpiry(creds.AccessToken)
	now := s.now()
	if !ok || now.Add(s.refreshSkew).Before(exp) {
		return creds, nil
	}
	if creds.RefreshToken == "" {
		if now.Before(exp) {
			return creds, nil
		}
		return nil, ErrUnauthorized
	}

	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	// Another caller may have refreshed while we waited.
	if cur := s.current(); cur != nil && cur.AccessToken != creds.AccessToken {
		return cur, nil
	}

	next, err := s.backend.Refresh(ctx, creds.RefreshToken)
	if err != nil {
		if now.Before(exp) && !errors.Is(err, ErrUnauthorized) {
			return creds, err
		}
		return nil, err
	}
	if next.User == nil {
		next.User = creds.User.Clone()
	}
	if next.RefreshToken == "" {
		next.RefreshToken = creds.RefreshToken
	}

	s.mu.Lock()
	if s.creds != nil && s.creds.AccessToken == creds.AccessToken {
		s.creds = next.Clone()
	}
	s.mu.Unlock()
	s.saveStore(ctx, next)

	s.logger.Debug("access token refreshed")
	return next, nil
}

// expire drops a session the server no longer accepts.
func (s *Service) expire(ctx context.Context) {
	s.logger.Info("session invalidated by server")
	s.clearStore(ctx)
	s.settle(nil)
}

func (s *Service) current() *Credentials {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.creds.Clone()
}

func (s *Service) accessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.creds == nil {
		return ""
	}
	return s.creds.AccessToken
}

func (s *Service) setLoading(v bool) {
	s.mu.Lock()
	s.loading = v
	s.mu.Unlock()
}

// settle installs creds, clears the loading flag and publishes.
func (s *Service) settle(creds *Credentials) {
	s.mu.Lock()
	s.creds = creds.Clone()
	s.loading = false
	s.mu.Unlock()
	s.emit()
}

func (s *Service) emit() {
	s.mu.RLock()
	listeners := make([]Listener, 0, len(s.listeners))
	for _, l := range s.listeners {
		listeners = append(listeners, l.fn)
	}
	var user *User
	authenticated := s.creds != nil
	if authenticated {
		user = s.creds.User
	}
	s.mu.RUnlock()

	for _, fn := range listeners {
		fn(StateChange{User: user.Clone(), Authenticated: authenticated})
	}
}

func (s *Service) saveStore(ctx context.Context, creds *Credentials) {
	if err := s.store.Save(ctx, creds); err != nil {
		errutil.LogWarn(s.logger, "failed to persist credentials", err)
	}
}

func (s *Service) clearStore(ctx context.Context) {
	if err := s.store.Clear(ctx); err != nil {
		errutil.LogWarn(s.logger, "failed to clear credentials", err)
	}
}
