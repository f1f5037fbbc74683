// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Courtside Contributors

package api

import (
	"context"
	"net/http"
	"net/url"

	"github.com/samber/oops"
)

// AuthorizeChannel asks the backend to sign a private channel subscription
// for socketID. The returned value is sent verbatim in pusher:subscribe.
func (c *Client) AuthorizeChannel(ctx context.Context, socketID, channel string) (string, error) {
	var resp struct {
		Auth string `json:"auth"`
	}
	err := c.do(ctx, request{
		method:    http.MethodPost,
		path:      "/broadcasting/auth",
		form:      url.Values{"socket_id": {socketID}, "channel_name": {channel}},
		useSource: true,
	}, &resp)
	if err != nil {
		return "", err
	}
	if resp.Auth == "" {
		return "", oops.Code(CodeDecode).With("channel", channel).Errorf("channel authorization has no signature")
	}
	return resp.Auth, nil
}
