// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Courtside Contributors

package api

import (
	"context"
	"net/http"
	"net/url"
)

// RegisterDevice associates a push token with the signed-in user.
func (c *Client) RegisterDevice(ctx context.Context, token, platform string) error {
	return c.do(ctx, request{
		method:    http.MethodPost,
		path:      "/api/devices",
		json:      map[string]string{"token": token, "platform": platform},
		useSource: true,
	}, nil)
}

// UnregisterDevice removes a push token. Removing an unknown token is not an
// error on the backend.
func (c *Client) UnregisterDevice(ctx context.Context, token string) error {
	return c.do(ctx, request{
		method:     http.MethodDelete,
		path:       "/api/devices/" + url.PathEscape(token),
		useSource:  true,
		idempotent: true,
	}, nil)
}
