// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Courtside Contributors

package session

import "github.com/courtside/courtside/internal/auth"

// Phase is the session state machine position.
type Phase int

// Session phases.
const (
	// PhaseBooting is the initial phase, left on the first auth event.
	PhaseBooting Phase = iota
	PhaseUnauthenticated
	// PhaseAuthenticating is the loading overlay entered by Login and Logout.
	PhaseAuthenticating
	PhaseAuthenticated
)

func (p Phase) String() string {
	switch p {
	case PhaseBooting:
		return "booting"
	case PhaseUnauthenticated:
		return "unauthenticated"
	case PhaseAuthenticating:
		return "authenticating"
	case PhaseAuthenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

// State is a read-only snapshot of the session. User is a private copy.
type State struct {
	User            *auth.User
	IsAuthenticated bool
	IsLoading       bool

	booted bool
}

// Phase derives the state machine position.
func (s State) Phase() Phase {
	switch {
	case !s.booted:
		return PhaseBooting
	case s.IsLoading:
		return PhaseAuthenticating
	case s.IsAuthenticated:
		return PhaseAuthenticated
	default:
		return PhaseUnauthenticated
	}
}

func (s State) clone() State {
	s.User = s.User.Clone()
	return s
}
