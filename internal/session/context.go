// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Courtside Contributors

package session

import (
	"context"

	"github.com/samber/oops"

	"github.com/courtside/courtside/internal/auth"
)

// CodeContextMissing is the panic code of MustFromContext.
const CodeContextMissing = "SESSION_CONTEXT_MISSING"

// Context is what consumers see of the session: state plus actions.
type Context interface {
	State() State
	Login(ctx context.Context, email, password string) error
	Logout(ctx context.Context)
	UpdateUser(patch auth.UserPatch)
	CheckAuthStatus(ctx context.Context) error
	Token(ctx context.Context) (string, error)
	HasRole(role auth.Role) bool
	HasAnyRole(roles ...auth.Role) bool
	IsPlayer() bool
	IsCoach() bool
	IsReferee() bool
	IsAdmin() bool
	IsLeague() bool
}

type contextKey struct{}

// NewContext returns a copy of parent carrying sc.
func NewContext(parent context.Context, sc Context) context.Context {
	return context.WithValue(parent, contextKey{}, sc)
}

// FromContext returns the session attached by NewContext.
func FromContext(ctx context.Context) (Context, bool) {
	sc, ok := ctx.Value(contextKey{}).(Context)
	return sc, ok && sc != nil
}

// MustFromContext returns the session attached by NewContext. Reaching
// for the session where none was provided is a wiring bug, so it panics.
func MustFromContext(ctx context.Context) Context {
	sc, ok := FromContext(ctx)
	if !ok {
		panic(oops.Code(CodeContextMissing).Errorf("session context used outside of a session scope"))
	}
	return sc
}
