// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Courtside Contributors

package auth

import "errors"

// ErrUnauthorized is wrapped by Backend implementations when the server
// rejects a token or credentials. Match with errors.Is.
var ErrUnauthorized = errors.New("unauthorized")

// ErrNoCredentials is returned by Store.Load when nothing is stored.
var ErrNoCredentials = errors.New("no stored credentials")

// Error codes returned by Service.
const (
	CodeInvalidInput       = "AUTH_INVALID_INPUT"
	CodeInvalidCredentials = "AUTH_INVALID_CREDENTIALS"
	CodeLoginFailed        = "AUTH_LOGIN_FAILED"
	CodeStoreFailed        = "AUTH_STORE_FAILED"
	CodeCheckFailed        = "AUTH_CHECK_FAILED"
	CodeProfileUnavailable = "AUTH_PROFILE_UNAVAILABLE"
)
