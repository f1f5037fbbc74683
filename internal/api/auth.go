// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Courtside Contributors

package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/samber/oops"

	"github.com/courtside/courtside/internal/auth"
)

var _ auth.Backend = (*Client)(nil)

type tokenResponse struct {
	AccessToken  string     `json:"access_token"`
	Token        string     `json:"token"`
	RefreshToken string     `json:"refresh_token"`
	User         *auth.User `json:"user"`
}

func (r *tokenResponse) credentials() *auth.Credentials {
	access := r.AccessToken
	if access == "" {
		access = r.Token
	}
	return &auth.Credentials{AccessToken: access, RefreshToken: r.RefreshToken, User: r.User}
}

// Login exchanges email and password for tokens. Rejected credentials,
// reported by the backend as 401 or 422, wrap auth.ErrUnauthorized.
func (c *Client) Login(ctx context.Context, email, password string) (*auth.Credentials, error) {
	var resp tokenResponse
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/api/auth/login",
		json:   map[string]string{"email": email, "password": password},
	}, &resp)

	var se *StatusError
	if errors.As(err, &se) && se.Status == http.StatusUnprocessableEntity {
		return nil, oops.Code(CodeUnauthorized).
			With("fields", se.Fields).
			Wrapf(errors.Join(auth.ErrUnauthorized, se), "credentials rejected")
	}
	if err != nil {
		return nil, err
	}

	creds := resp.credentials()
	if creds.AccessToken == "" {
		return nil, oops.Code(CodeDecode).Errorf("login response has no access token")
	}
	return creds, nil
}

// Logout revokes accessToken on the server.
func (c *Client) Logout(ctx context.Context, accessToken string) error {
	return c.do(ctx, request{
		method: http.MethodPost,
		path:   "/api/auth/logout",
		token:  accessToken,
	}, nil)
}

// Profile fetches the user that owns accessToken. The backend answers
// either with the bare user object or wrapped in "user" or "data".
func (c *Client) Profile(ctx context.Context, accessToken string) (*auth.User, error) {
	var raw json.RawMessage
	if err := c.do(ctx, request{
		method:     http.MethodGet,
		path:       "/api/auth/me",
		token:      accessToken,
		idempotent: true,
	}, &raw); err != nil {
		return nil, err
	}
	return decodeUser(raw)
}

// Refresh trades a refresh token for a new token pair. The response may
// omit the user and the refresh token; callers keep their previous values.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*auth.Credentials, error) {
	var resp tokenResponse
	if err := c.do(ctx, request{
		method:     http.MethodPost,
		path:       "/api/auth/refresh",
		json:       map[string]string{"refresh_token": refreshToken},
		idempotent: true,
	}, &resp); err != nil {
		return nil, err
	}
	creds := resp.credentials()
	if creds.AccessToken == "" {
		return nil, oops.Code(CodeDecode).Errorf("refresh response has no access token")
	}
	return creds, nil
}

func decodeUser(raw json.RawMessage) (*auth.User, error) {
	var envelope struct {
		User *auth.User `json:"user"`
		Data *auth.User `json:"data"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, oops.Code(CodeDecode).Wrap(err)
	}
	switch {
	case envelope.User != nil:
		return envelope.User, nil
	case envelope.Data != nil:
		return envelope.Data, nil
	}

	var user auth.User
	if err := json.Unmarshal(raw, &user); err != nil {
		return nil, oops.Code(CodeDecode).Wrap(err)
	}
	if user.ID == "" {
		return nil, oops.Code(CodeDecode).Errorf("profile response has no user id")
	}
	return &user, nil
}
