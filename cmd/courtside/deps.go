// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Courtside Contributors

package main

import (
	"context"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/courtside/courtside/internal/auth"
	"github.com/courtside/courtside/internal/observability"
	"github.com/courtside/courtside/internal/realtime"
)

// Deps contains injectable dependencies for the commands.
// All fields with nil values will use their default implementations.
type Deps struct {
	// StoreFactory opens the credential store at path.
	// Default: auth.NewFileStore
	StoreFactory func(path string) (auth.Store, error)

	// HTTPClient is used for league API calls.
	// Default: a client with the configured timeout
	HTTPClient *http.Client

	// TransportFactory creates the realtime transport.
	// Default: realtime.NewWebSocketTransport
	TransportFactory func(cfg realtime.WebSocketConfig) (realtime.Transport, error)

	// ObservabilityServerFactory creates the metrics and health server.
	// Default: observability.NewServer
	ObservabilityServerFactory func(addr string, ready observability.ReadinessChecker) ObservabilityServer

	// Getenv reads environment variables.
	// Default: os.Getenv
	Getenv func(key string) string
}

// ObservabilityServer is the subset of observability.Server the agent uses.
type ObservabilityServer interface {
	Start() (<-chan error, error)
	Stop(ctx context.Context) error
	Addr() string
	Registerer() prometheus.Registerer
}

func (d *Deps) withDefaults() *Deps {
	out := &Deps{}
	if d != nil {
		*out = *d
	}
	if out.StoreFactory == nil {
		out.StoreFactory = func(path string) (auth.Store, error) {
			return auth.NewFileStore(path)
		}
	}
	if out.TransportFactory == nil {
		out.TransportFactory = func(cfg realtime.WebSocketConfig) (realtime.Transport, error) {
			return realtime.NewWebSocketTransport(cfg)
		}
	}
	if out.ObservabilityServerFactory == nil {
		out.ObservabilityServerFactory = func(addr string, ready observability.ReadinessChecker) ObservabilityServer {
			return observability.NewServer(addr, ready)
		}
	}
	if out.Getenv == nil {
		out.Getenv = os.Getenv
	}
	return out
}
