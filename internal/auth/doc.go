// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Courtside Contributors

// Package auth owns the client side of a league account: stored
// credentials, token refresh, the current user record and role queries.
//
// # State changes
//
// Service is the only source of authentication state. Every transition
// (initialize settles, login, logout, profile update, re-validation or a
// refresh that invalidates the session) is published to listeners
// registered with Service.Subscribe as a StateChange. Listeners are called
// synchronously, in registration order, outside the service lock.
//
// # Collaborators
//
//   - Backend - the league API (login, logout, profile, refresh)
//   - Store - persistence for Credentials (FileStore, MemoryStore)
package auth
