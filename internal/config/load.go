// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Courtside Contributors

package config

import (
	"errors"
	"io/fs"
	"os"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/courtside/courtside/internal/xdg"
)

// CodeLoadFailed is returned when the file or flags cannot be read.
const CodeLoadFailed = "CONFIG_LOAD_FAILED"

// RegisterFlags adds a flag for every scalar setting, defaulted from
// Default(). Flag names are the dotted config keys.
func RegisterFlags(flags *pflag.FlagSet) {
	d := Default()
	flags.String("api.base-url", d.API.BaseURL, "league API origin")
	flags.Duration("api.timeout", d.API.Timeout.Std(), "API request timeout")
	flags.Uint64("api.max-retries", d.API.MaxRetries, "retries for idempotent API requests")
	flags.Duration("api.retry-backoff", d.API.RetryBackoff.Std(), "initial API retry backoff")
	flags.String("api.version", d.API.VersionConstraint, "accepted API version range (empty disables the check)")
	flags.String("realtime.url", d.Realtime.URL, "realtime websocket origin (default: API origin)")
	flags.String("realtime.key", d.Realtime.Key, "realtime application key")
	flags.Int("realtime.buffer-size", d.Realtime.BufferSize, "queued realtime events per subscription")
	flags.String("notifications.platform", d.Notifications.Platform, "device platform reported on push registration")
	flags.String("notifications.push-token", d.Notifications.PushToken, "device push token (empty disables push registration)")
	flags.Float64("notifications.rate-limit", d.Notifications.RateLimit, "local notifications presented per second (0 = unlimited)")
	flags.Int("notifications.burst", d.Notifications.Burst, "local notification burst")
	flags.Int("notifications.queue-size", d.Notifications.QueueSize, "pending local notifications before new ones are dropped")
	flags.Duration("session.bind-timeout", d.Session.BindTimeout.Std(), "timeout for binding user services after sign in")
	flags.String("credentials.path", d.Credentials.Path, "credentials file (default: XDG state dir)")
	flags.String("log.format", d.Log.Format, "log format (json or text)")
	flags.String("log.level", d.Log.Level, "log level (debug, info, warn, error)")
	flags.String("metrics.addr", d.Metrics.Addr, "metrics/health HTTP address (empty = disabled)")
}

// Load builds the effective configuration. An empty path reads the XDG
// config file when it exists. flags may be nil; otherwise only flags the
// user changed override the file.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	explicit := path != ""
	if !explicit {
		def, err := xdg.ConfigFile()
		if err == nil {
			path = def
		}
	}
	if path != "" {
		_, statErr := os.Stat(path)
		switch {
		case statErr == nil:
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return nil, oops.Code(CodeLoadFailed).With("path", path).Wrap(err)
			}
		case explicit || !errors.Is(statErr, fs.ErrNotExist):
			return nil, oops.Code(CodeLoadFailed).With("path", path).Wrap(statErr)
		}
	}

	if flags != nil {
		if err := k.Load(posflag.Provider(flags, ".", k), nil); err != nil {
			return nil, oops.Code(CodeLoadFailed).Wrapf(err, "read flags")
		}
	}

	cfg := Default()
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.TextUnmarshallerHookFunc(),
				mapstructure.StringToSliceHookFunc(","),
			),
			Result:           &cfg,
			TagName:          "koanf",
			WeaklyTypedInput: true,
		},
	}); err != nil {
		return nil, oops.Code(CodeLoadFailed).With("path", path).Wrapf(err, "decode config")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
