// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Courtside Contributors

// Package session coordinates the lifecycle of a signed-in session.
//
// A Coordinator is the single writer of session State. It listens to the
// auth service for state changes and keeps the notification and realtime
// services bound to whichever user is currently authenticated: bound when
// a user signs in, released when the user signs out or is replaced.
//
// Binding work runs on one worker goroutine. Every auth event bumps a
// generation counter and records the desired binding; the worker brings
// the actual binding in line with the latest desired one, so a slow bind
// for a user that has since been replaced is released rather than left
// active. Teardown always disconnects realtime before cleaning up
// notifications so that no in-flight realtime event can schedule a local
// notification on a service being torn down.
//
// Consumers read State, observe changes with Watch, and act through the
// Context interface, usually retrieved with MustFromContext.
package session
