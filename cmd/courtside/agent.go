// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Courtside Contributors

package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/courtside/courtside/internal/session"
	"github.com/courtside/courtside/pkg/errutil"
)

const (
	defaultPasswordEnv = "COURTSIDE_PASSWORD"
	shutdownTimeout    = 10 * time.Second
	readyPollInterval  = 20 * time.Millisecond
)

// credentialFlags are the sign-in flags shared by agent and login.
type credentialFlags struct {
	email       string
	passwordEnv string
}

func (f *credentialFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.email, "email", "", "account email")
	cmd.Flags().StringVar(&f.passwordEnv, "password-env", defaultPasswordEnv, "environment variable holding the password")
}

func (f *credentialFlags) password(deps *Deps) (string, error) {
	password := deps.Getenv(f.passwordEnv)
	if password == "" {
		return "", oops.Code("CLI_PASSWORD_MISSING").
			With("env", f.passwordEnv).
			Errorf("set the password in $%s", f.passwordEnv)
	}
	return password, nil
}

func newAgentCmd(opts *rootOptions) *cobra.Command {
	creds := &credentialFlags{}

	cmd := &cobra.Command{
		Use:   "agent",
		Short: "Run the session agent until interrupted",
		Long: `Run the session agent. It restores the stored session, keeps
notifications and the realtime channel bound to the signed-in user, and
serves metrics and health probes. With --email it signs in first.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runAgent(cmd, opts, creds)
		},
	}
	creds.register(cmd)
	return cmd
}

func runAgent(cmd *cobra.Command, opts *rootOptions, creds *credentialFlags) error {
	a, err := newApp(cmd, opts)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics := session.NewMetrics()
	coord, err := a.newCoordinator(cmd.OutOrStdout(), metrics)
	if err != nil {
		return err
	}

	if addr := a.cfg.Metrics.Addr; addr != "" {
		obs := a.deps.ObservabilityServerFactory(addr, coord.Ready)
		metrics.Register(obs.Registerer())
		errCh, err := obs.Start()
		if err != nil {
			return oops.With("addr", addr).Wrapf(err, "start observability server")
		}
		go monitorServerErrors(ctx, stop, errCh, a)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
			defer cancel()
			if err := obs.Stop(shutdownCtx); err != nil {
				errutil.LogWarn(a.logger, "failed to stop observability server", err)
			}
		}()
	}

	unwatch := coord.Watch(func(s session.State) {
		a.logger.Info("session state",
			"phase", s.Phase().String(),
			"user_id", userIDOf(s),
			"loading", s.IsLoading,
		)
	})
	defer unwatch()

	coord.Start(ctx)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := coord.Close(shutdownCtx); err != nil {
			errutil.LogWarn(a.logger, "session did not shut down cleanly", err)
		}
	}()

	if creds.email != "" {
		if err := waitReady(ctx, coord); err != nil {
			return err
		}
		if !coord.State().IsAuthenticated {
			password, err := creds.password(a.deps)
			if err != nil {
				return err
			}
			if err := coord.Login(ctx, creds.email, password); err != nil {
				return err
			}
		}
	}

	a.logger.Info("agent running")
	<-ctx.Done()
	a.logger.Info("agent stopping")
	return nil
}

// waitReady blocks until the coordinator has finished booting.
func waitReady(ctx context.Context, coord *session.Coordinator) error {
	ticker := time.NewTicker(readyPollInterval)
	defer ticker.Stop()
	for !coord.Ready() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}

func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, a *app) {
	select {
	case err, ok := <-errCh:
		if ok && err != nil {
			errutil.LogError(a.logger, "observability server failed", err)
			cancel()
		}
	case <-ctx.Done():
	}
}

func userIDOf(s session.State) string {
	if s.User == nil {
		return ""
	}
	return s.User.ID.String()
}
