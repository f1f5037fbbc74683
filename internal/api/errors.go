// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Courtside Contributors

package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/courtside/courtside/internal/auth"
	"github.com/courtside/courtside/pkg/errutil"
)

// Error codes.
const (
	CodeUnauthorized  = "API_UNAUTHORIZED"
	CodeValidation    = "API_VALIDATION"
	CodeRequestFailed = "API_REQUEST_FAILED"
	CodeServer        = "API_SERVER"
	CodeTransport     = "API_TRANSPORT"
	CodeIncompatible  = "API_INCOMPATIBLE"
	CodeInvalidConfig = "API_INVALID_CONFIG"
	CodeDecode        = "API_DECODE"
)

// StatusError is a non-2xx response.
type StatusError struct {
	Status  int
	Message string
	// Fields holds per-field validation messages from 422 responses.
	Fields map[string][]string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%d %s", e.Status, http.StatusText(e.Status))
	}
	return fmt.Sprintf("%d %s: %s", e.Status, http.StatusText(e.Status), e.Message)
}

// Unwrap lets errors.Is(err, auth.ErrUnauthorized) match 401 responses.
func (e *StatusError) Unwrap() error {
	if e.Status == http.StatusUnauthorized {
		return auth.ErrUnauthorized
	}
	return nil
}

// IsUnauthorized reports whether err is a rejected token or credentials.
func IsUnauthorized(err error) bool {
	return errors.Is(err, auth.ErrUnauthorized)
}

// retryable reports whether a failed idempotent request may be repeated.
func retryable(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Status >= http.StatusInternalServerError
	}
	return errutil.Code(err) == CodeTransport
}

func statusCode(status int) string {
	switch {
	case status == http.StatusUnauthorized:
		return CodeUnauthorized
	case status == http.StatusUnprocessableEntity:
		return CodeValidation
	case status >= http.StatusInternalServerError:
		return CodeServer
	default:
		return CodeRequestFailed
	}
}
