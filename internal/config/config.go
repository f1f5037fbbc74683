// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Courtside Contributors

// Package config loads courtside settings from defaults, a YAML file and
// command-line flags, in increasing order of precedence.
package config

import (
	"net"
	"net/url"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/invopop/jsonschema"
	"github.com/samber/oops"

	"github.com/courtside/courtside/internal/logging"
)

// CodeInvalid is returned by Validate.
const CodeInvalid = "CONFIG_INVALID"

// Duration is a time.Duration written as "30s" in YAML and flags.
type Duration time.Duration

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// JSONSchema describes Duration as a Go duration string.
func (Duration) JSONSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type:        "string",
		Pattern:     `^([0-9]+(\.[0-9]+)?(ns|us|µs|ms|s|m|h))+$`,
		Description: "Go duration, e.g. 500ms or 1m30s",
	}
}

// Config is the complete agent configuration.
type Config struct {
	API           APIConfig           `koanf:"api" json:"api" yaml:"api"`
	Realtime      RealtimeConfig      `koanf:"realtime" json:"realtime" yaml:"realtime"`
	Notifications NotificationsConfig `koanf:"notifications" json:"notifications" yaml:"notifications"`
	Session       SessionConfig       `koanf:"session" json:"session" yaml:"session"`
	Credentials   CredentialsConfig   `koanf:"credentials" json:"credentials" yaml:"credentials"`
	Log           LogConfig           `koanf:"log" json:"log" yaml:"log"`
	Metrics       MetricsConfig       `koanf:"metrics" json:"metrics" yaml:"metrics"`
}

// APIConfig locates the league backend.
type APIConfig struct {
	BaseURL      string   `koanf:"base-url" json:"base-url" yaml:"base-url" jsonschema:"format=uri"`
	Timeout      Duration `koanf:"timeout" json:"timeout" yaml:"timeout"`
	MaxRetries   uint64   `koanf:"max-retries" json:"max-retries" yaml:"max-retries" jsonschema:"maximum=10"`
	RetryBackoff Duration `koanf:"retry-backoff" json:"retry-backoff" yaml:"retry-backoff"`
	// VersionConstraint is a semver constraint on the server's API version.
	VersionConstraint string `koanf:"version" json:"version" yaml:"version"`
}

// RealtimeConfig locates the Pusher-protocol websocket server.
type RealtimeConfig struct {
	// URL defaults to the API origin when empty.
	URL        string              `koanf:"url" json:"url,omitempty" yaml:"url,omitempty"`
	Key        string              `koanf:"key" json:"key" yaml:"key"`
	BufferSize int                 `koanf:"buffer-size" json:"buffer-size" yaml:"buffer-size" jsonschema:"minimum=1"`
	Routes     map[string][]string `koanf:"routes" json:"routes,omitempty" yaml:"routes,omitempty"`
}

// NotificationsConfig tunes local notification delivery.
type NotificationsConfig struct {
	Platform string `koanf:"platform" json:"platform" yaml:"platform"`
	// PushToken is the device token registered with the backend. Empty
	// disables push registration.
	PushToken string  `koanf:"push-token" json:"push-token,omitempty" yaml:"push-token,omitempty"`
	RateLimit float64 `koanf:"rate-limit" json:"rate-limit" yaml:"rate-limit" jsonschema:"minimum=0"`
	Burst     int     `koanf:"burst" json:"burst" yaml:"burst" jsonschema:"minimum=1"`
	QueueSize int     `koanf:"queue-size" json:"queue-size" yaml:"queue-size" jsonschema:"minimum=1"`
}

// SessionConfig tunes the session coordinator.
type SessionConfig struct {
	BindTimeout Duration `koanf:"bind-timeout" json:"bind-timeout" yaml:"bind-timeout"`
}

// CredentialsConfig locates stored credentials.
type CredentialsConfig struct {
	// Path defaults to $XDG_STATE_HOME/courtside/credentials.json.
	Path string `koanf:"path" json:"path,omitempty" yaml:"path,omitempty"`
}

// LogConfig selects log output.
type LogConfig struct {
	Format string `koanf:"format" json:"format" yaml:"format" jsonschema:"enum=json,enum=text"`
	Level  string `koanf:"level" json:"level" yaml:"level" jsonschema:"enum=debug,enum=info,enum=warn,enum=error"`
}

// Options converts to logging options.
func (l LogConfig) Options() logging.Options {
	return logging.Options{Format: l.Format, Level: l.Level}
}

// MetricsConfig controls the metrics and health endpoint.
type MetricsConfig struct {
	// Addr is the listen address. Empty disables the server.
	Addr string `koanf:"addr" json:"addr" yaml:"addr"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		API: APIConfig{
			BaseURL:           "https://api.courtside.app",
			Timeout:           Duration(15 * time.Second),
			MaxRetries:        3,
			RetryBackoff:      Duration(250 * time.Millisecond),
			VersionConstraint: ">= 1.0.0, < 2.0.0",
		},
		Realtime: RealtimeConfig{
			Key:        "courtside",
			BufferSize: 64,
		},
		Notifications: NotificationsConfig{
			Platform:  "linux",
			RateLimit: 2,
			Burst:     5,
			QueueSize: 32,
		},
		Session: SessionConfig{
			BindTimeout: Duration(30 * time.Second),
		},
		Log: LogConfig{
			Format: "json",
			Level:  "info",
		},
		Metrics: MetricsConfig{
			Addr: "127.0.0.1:9464",
		},
	}
}

// RealtimeURL returns the websocket origin, falling back to the API origin.
func (c *Config) RealtimeURL() string {
	if c.Realtime.URL != "" {
		return c.Realtime.URL
	}
	return c.API.BaseURL
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	invalid := func(field string, format string, args ...any) error {
		return oops.Code(CodeInvalid).With("field", field).Errorf(format, args...)
	}

	if err := validateURL(c.API.BaseURL, "http", "https"); err != nil {
		return invalid("api.base-url", "api.base-url: %v", err)
	}
	if c.API.Timeout <= 0 {
		return invalid("api.timeout", "api.timeout must be positive")
	}
	if c.API.VersionConstraint != "" {
		if _, err := semver.NewConstraint(c.API.VersionConstraint); err != nil {
			return invalid("api.version", "api.version: %v", err)
		}
	}
	if c.Realtime.URL != "" {
		if err := validateURL(c.Realtime.URL, "ws", "wss", "http", "https"); err != nil {
			return invalid("realtime.url", "realtime.url: %v", err)
		}
	}
	if c.Realtime.BufferSize <= 0 {
		return invalid("realtime.buffer-size", "realtime.buffer-size must be positive")
	}
	if c.Notifications.RateLimit < 0 {
		return invalid("notifications.rate-limit", "notifications.rate-limit must not be negative")
	}
	if c.Notifications.Burst <= 0 {
		return invalid("notifications.burst", "notifications.burst must be positive")
	}
	if c.Notifications.QueueSize <= 0 {
		return invalid("notifications.queue-size", "notifications.queue-size must be positive")
	}
	if c.Session.BindTimeout <= 0 {
		return invalid("session.bind-timeout", "session.bind-timeout must be positive")
	}
	if err := c.Log.Options().Validate(); err != nil {
		return invalid("log", "log: %v", err)
	}
	if c.Metrics.Addr != "" {
		if _, _, err := net.SplitHostPort(c.Metrics.Addr); err != nil {
			return invalid("metrics.addr", "metrics.addr: %v", err)
		}
	}
	return nil
}

func validateURL(raw string, schemes ...string) error {
	if raw == "" {
		return oops.Errorf("required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	for _, s := range schemes {
		if u.Scheme == s {
			if u.Host == "" {
				return oops.Errorf("missing host in %q", raw)
			}
			return nil
		}
	}
	return oops.Errorf("unsupported scheme %q", u.Scheme)
}
