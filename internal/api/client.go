// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Courtside Contributors

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
)

// VersionHeader carries the backend API version on every response.
const VersionHeader = "X-API-Version"

const (
	defaultTimeout      = 15 * time.Second
	defaultRetryBackoff = 250 * time.Millisecond
	defaultUserAgent    = "courtside"
	maxErrorBody        = 64 << 10
)

// Config configures a Client.
type Config struct {
	// BaseURL is the backend origin, e.g. https://league.example.com.
	BaseURL string
	Timeout time.Duration
	// MaxRetries bounds retries of idempotent requests.
	MaxRetries   uint64
	RetryBackoff time.Duration
	// VersionConstraint is checked against the X-API-Version response
	// header. Empty disables the check.
	VersionConstraint string
	UserAgent         string
	HTTPClient        *http.Client
	Logger            *slog.Logger
}

// TokenSource supplies bearer tokens for calls made on behalf of the
// signed-in user. *auth.Service satisfies it.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Client talks to the league backend.
type Client struct {
	base        *url.URL
	http        *http.Client
	constraint  *semver.Constraints
	userAgent   string
	maxRetries  uint64
	backoffBase time.Duration
	tokens      TokenSource
	logger      *slog.Logger
}

// NewClient validates cfg and returns a client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, oops.Code(CodeInvalidConfig).Errorf("base URL is required")
	}
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, oops.Code(CodeInvalidConfig).With("base_url", cfg.BaseURL).Wrap(err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, oops.Code(CodeInvalidConfig).
			With("base_url", cfg.BaseURL).
			Errorf("base URL must be http or https")
	}

	c := &Client{
		base:        base,
		http:        cfg.HTTPClient,
		userAgent:   cfg.UserAgent,
		maxRetries:  cfg.MaxRetries,
		backoffBase: cfg.RetryBackoff,
		logger:      cfg.Logger,
	}
	if cfg.VersionConstraint != "" {
		c.constraint, err = semver.NewConstraint(cfg.VersionConstraint)
		if err != nil {
			return nil, oops.Code(CodeInvalidConfig).
				With("constraint", cfg.VersionConstraint).
				Wrapf(err, "invalid API version constraint")
		}
	}
	if c.http == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		c.http = &http.Client{Timeout: timeout}
	}
	if c.userAgent == "" {
		c.userAgent = defaultUserAgent
	}
	if c.backoffBase <= 0 {
		c.backoffBase = defaultRetryBackoff
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c, nil
}

// WithTokenSource returns a copy of c that authenticates user-scoped calls
// with tokens from ts.
func (c *Client) WithTokenSource(ts TokenSource) *Client {
	out := *c
	out.tokens = ts
	return &out
}

type request struct {
	method string
	path   string
	json   any
	form   url.Values
	// token is sent as the bearer credential. When empty and useSource is
	// set, the client's TokenSource supplies it.
	token      string
	useSource  bool
	idempotent bool
}

// do runs req, retrying idempotent requests on server and transport
// failures, and decodes a successful JSON body into out when out is non-nil.
func (c *Client) do(ctx context.Context, req request, out any) error {
	if req.useSource && req.token == "" {
		token, err := c.bearer(ctx)
		if err != nil {
			return err
		}
		req.token = token
	}

	if !req.idempotent || c.maxRetries == 0 {
		return c.once(ctx, req, out)
	}

	backoff := retry.WithMaxRetries(c.maxRetries,
		retry.WithJitterPercent(10, retry.NewExponential(c.backoffBase)))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := c.once(ctx, req, out)
		if err != nil && retryable(err) {
			c.logger.Debug("retrying request", "method", req.method, "path", req.path, "error", err)
			return retry.RetryableError(err)
		}
		return err
	})
}

func (c *Client) bearer(ctx context.Context) (string, error) {
	if c.tokens == nil {
		return "", oops.Code(CodeUnauthorized).Wrapf(&StatusError{Status: http.StatusUnauthorized}, "no token source")
	}
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return "", oops.Code(CodeUnauthorized).Wrap(err)
	}
	if token == "" {
		return "", oops.Code(CodeUnauthorized).Wrapf(&StatusError{Status: http.StatusUnauthorized}, "not signed in")
	}
	return token, nil
}

func (c *Client) once(ctx context.Context, req request, out any) error {
	httpReq, err := c.newRequest(ctx, req)
	if err != nil {
		return err
	}

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return oops.Code(CodeTransport).
			With("method", req.method).
			With("path", req.path).
			Wrap(err)
	}
	defer func() { _ = resp.Body.Close() }()

	c.logger.Debug("api request",
		"method", req.method,
		"path", req.path,
		"status", resp.StatusCode,
		"duration", time.Since(start),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		se := readStatusError(resp)
		return oops.Code(statusCode(resp.StatusCode)).
			With("method", req.method).
			With("path", req.path).
			With("status", resp.StatusCode).
			Wrap(se)
	}

	if err := c.checkVersion(resp.Header.Get(VersionHeader)); err != nil {
		return err
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return oops.Code(CodeDecode).With("path", req.path).Wrap(err)
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, req request) (*http.Request, error) {
	target := c.base.JoinPath(req.path)

	var body io.Reader
	contentType := ""
	switch {
	case req.json != nil:
		data, err := json.Marshal(req.json)
		if err != nil {
			return nil, oops.Code(CodeInvalidConfig).With("path", req.path).Wrap(err)
		}
		body = bytes.NewReader(data)
		contentType = "application/json"
	case req.form != nil:
		body = strings.NewReader(req.form.Encode())
		contentType = "application/x-www-form-urlencoded"
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, target.String(), body)
	if err != nil {
		return nil, oops.Code(CodeTransport).With("path", req.path).Wrap(err)
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", c.userAgent)
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	if req.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+req.token)
	}
	return httpReq, nil
}

// checkVersion rejects servers outside the configured version range.
// Responses without the header are accepted.
func (c *Client) checkVersion(raw string) error {
	if c.constraint == nil || raw == "" {
		return nil
	}
	v, err := semver.NewVersion(raw)
	if err != nil {
		return oops.Code(CodeIncompatible).With("version", raw).Wrapf(err, "unparseable server API version")
	}
	if !c.constraint.Check(v) {
		return oops.Code(CodeIncompatible).
			With("version", raw).
			With("constraint", c.constraint.String()).
			Errorf("server API version %s is not supported", raw)
	}
	return nil
}

func readStatusError(resp *http.Response) *StatusError {
	se := &StatusError{Status: resp.StatusCode}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil || len(data) == 0 {
		return se
	}
	var payload struct {
		Message string              `json:"message"`
		Error   string              `json:"error"`
		Errors  map[string][]string `json:"errors"`
	}
	if json.Unmarshal(data, &payload) != nil {
		se.Message = strings.TrimSpace(string(data))
		return se
	}
	se.Message = payload.Message
	if se.Message == "" {
		se.Message = payload.Error
	}
	se.Fields = payload.Errors
	return se
}
