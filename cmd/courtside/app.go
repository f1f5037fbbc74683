// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Courtside Contributors

package main

import (
	"io"
	"log/slog"
	"maps"

	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/courtside/courtside/internal/api"
	"github.com/courtside/courtside/internal/auth"
	"github.com/courtside/courtside/internal/config"
	"github.com/courtside/courtside/internal/logging"
	"github.com/courtside/courtside/internal/notify"
	"github.com/courtside/courtside/internal/realtime"
	"github.com/courtside/courtside/internal/session"
)

const serviceName = "courtside"

// app holds the components shared by the commands.
type app struct {
	cfg    *config.Config
	deps   *Deps
	logger *slog.Logger
	// client authenticates user-scoped calls with tokens from auth.
	client *api.Client
	auth   *auth.Service
}

func newApp(cmd *cobra.Command, opts *rootOptions) (*app, error) {
	deps := opts.deps.withDefaults()

	cfg, err := config.Load(opts.configFile, cmd.Flags())
	if err != nil {
		return nil, err
	}

	logger := logging.Setup(serviceName, version, cfg.Log.Options(), cmd.ErrOrStderr())

	base, err := api.NewClient(api.Config{
		BaseURL:           cfg.API.BaseURL,
		Timeout:           cfg.API.Timeout.Std(),
		MaxRetries:        cfg.API.MaxRetries,
		RetryBackoff:      cfg.API.RetryBackoff.Std(),
		VersionConstraint: cfg.API.VersionConstraint,
		UserAgent:         serviceName + "/" + version,
		HTTPClient:        deps.HTTPClient,
		Logger:            logger,
	})
	if err != nil {
		return nil, err
	}

	store, err := deps.StoreFactory(cfg.Credentials.Path)
	if err != nil {
		return nil, err
	}

	authSvc, err := auth.NewService(base, store, auth.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	return &app{
		cfg:    cfg,
		deps:   deps,
		logger: logger,
		client: base.WithTokenSource(authSvc),
		auth:   authSvc,
	}, nil
}

// newCoordinator wires the notification and realtime services behind a
// session coordinator. Notifications are printed to out.
func (a *app) newCoordinator(out io.Writer, metrics *session.Metrics) (*session.Coordinator, error) {
	notifier := a.newNotifier(out)

	transport, err := a.deps.TransportFactory(realtime.WebSocketConfig{
		URL:     a.cfg.RealtimeURL(),
		Key:     a.cfg.Realtime.Key,
		Client:  serviceName,
		Version: version,
	})
	if err != nil {
		return nil, err
	}

	rt, err := realtime.NewService(transport, a.client,
		realtime.WithLogger(a.logger),
		realtime.WithBufferSize(a.cfg.Realtime.BufferSize),
		realtime.WithRoutes(routes(a.cfg.Realtime.Routes)),
	)
	if err != nil {
		return nil, err
	}

	return session.New(a.auth, notifier, rt,
		session.WithLogger(a.logger),
		session.WithMetrics(metrics),
		session.WithBindTimeout(a.cfg.Session.BindTimeout.Std()),
	), nil
}

func (a *app) newNotifier(out io.Writer) *notify.Service {
	var push notify.PushProvider
	if a.cfg.Notifications.PushToken != "" {
		push = notify.StaticPushProvider(a.cfg.Notifications.PushToken)
	}

	limit := rate.Limit(a.cfg.Notifications.RateLimit)
	if limit == 0 {
		limit = rate.Inf
	}

	return notify.NewService(push, a.client, notify.NewWriterPresenter(out),
		notify.WithLogger(a.logger),
		notify.WithRateLimit(limit, a.cfg.Notifications.Burst),
		notify.WithQueueSize(a.cfg.Notifications.QueueSize),
		notify.WithPlatform(a.cfg.Notifications.Platform),
	)
}

// routes overlays configured event patterns on the defaults, per kind.
func routes(configured map[string][]string) map[realtime.Kind][]string {
	out := maps.Clone(realtime.DefaultRoutes)
	for kind, patterns := range configured {
		out[realtime.Kind(kind)] = patterns
	}
	return out
}
