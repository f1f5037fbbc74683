// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Courtside Contributors

// Package api is the HTTP client for the league backend.
//
// Client implements auth.Backend, and with a TokenSource attached it also
// registers push devices and authorizes private realtime channels.
package api
