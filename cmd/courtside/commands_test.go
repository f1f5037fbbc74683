// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Courtside Contributors

package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/courtside/courtside/internal/auth"
	"github.com/courtside/courtside/internal/config"
	"github.com/courtside/courtside/internal/realtime"
	"github.com/courtside/courtside/pkg/errutil"
)

func TestRoot_Help(t *testing.T) {
	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--help"})

	require.NoError(t, cmd.Execute())

	output := buf.String()
	for _, phrase := range []string{"agent", "login", "logout", "status", "config", "--api.base-url", "--metrics.addr"} {
		assert.Contains(t, output, phrase)
	}
}

func TestLogin(t *testing.T) {
	t.Run("stores credentials", func(t *testing.T) {
		env := newTestEnv(t)

		out, err := env.run(context.Background(), "login", "--email", "Sam@Example.com")
		require.NoError(t, err)
		assert.Contains(t, out, "signed in as Sam <sam@example.com> (id 42)")
		assert.Contains(t, out, "roles: player, coach")

		creds, err := env.store.Load(context.Background())
		require.NoError(t, err)
		assert.Equal(t, testToken, creds.AccessToken)
	})

	t.Run("rejected password", func(t *testing.T) {
		env := newTestEnv(t)
		env.password = "wrong"

		_, err := env.run(context.Background(), "login", "--email", "sam@example.com")
		require.Error(t, err)
		assert.ErrorIs(t, err, auth.ErrUnauthorized)
		assert.Contains(t, err.Error(), "invalid email or password")

		_, err = env.store.Load(context.Background())
		assert.ErrorIs(t, err, auth.ErrNoCredentials)
	})

	t.Run("missing password", func(t *testing.T) {
		env := newTestEnv(t)
		env.password = ""

		_, err := env.run(context.Background(), "login", "--email", "sam@example.com")
		errutil.AssertErrorCode(t, err, "CLI_PASSWORD_MISSING")
	})

	t.Run("email required", func(t *testing.T) {
		env := newTestEnv(t)

		_, err := env.run(context.Background(), "login")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "email")
	})
}

func TestStatus(t *testing.T) {
	t.Run("signed out", func(t *testing.T) {
		env := newTestEnv(t)

		out, err := env.run(context.Background(), "status")
		require.NoError(t, err)
		assert.Equal(t, "not signed in\n", out)
	})

	t.Run("stored session is revalidated", func(t *testing.T) {
		env := newTestEnv(t)
		env.storeSession(t)

		out, err := env.run(context.Background(), "status")
		require.NoError(t, err)
		assert.Contains(t, out, "signed in as Sam <sam@example.com>")
		assert.True(t, env.league.seen("GET /api/auth/me"))
	})
}

func TestLogout(t *testing.T) {
	env := newTestEnv(t)
	env.storeSession(t)

	out, err := env.run(context.Background(), "logout", "--notifications.push-token=push/1")
	require.NoError(t, err)
	assert.Equal(t, "signed out\n", out)

	assert.True(t, env.league.seen("DELETE /api/devices/push%2F1"))
	assert.False(t, env.league.seen("POST /api/devices"), "logout does not register the device first")
	assert.True(t, env.league.seen("POST /api/auth/logout"))
	_, err = env.store.Load(context.Background())
	assert.ErrorIs(t, err, auth.ErrNoCredentials)
}

func TestLogout_WithoutPushToken(t *testing.T) {
	env := newTestEnv(t)
	env.storeSession(t)

	out, err := env.run(context.Background(), "logout")
	require.NoError(t, err)
	assert.Equal(t, "signed out\n", out)
	assert.True(t, env.league.seen("POST /api/auth/logout"))

	env.league.mu.Lock()
	defer env.league.mu.Unlock()
	for _, r := range env.league.requests {
		assert.NotContains(t, r, "/api/devices")
	}
}

func TestConfigShow(t *testing.T) {
	env := newTestEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("realtime:\n  key: league-key\n"), 0o600))

	out, err := env.run(context.Background(), "config", "show", "--config", path, "--log.level=debug")
	require.NoError(t, err)

	assert.Contains(t, out, "base-url: "+env.league.URL)
	assert.Contains(t, out, "key: league-key")
	assert.Contains(t, out, "level: debug")
	assert.Contains(t, out, "bind-timeout: 30s")
}

func TestConfigValidate(t *testing.T) {
	env := newTestEnv(t)
	dir := t.TempDir()

	good := filepath.Join(dir, "good.yaml")
	require.NoError(t, os.WriteFile(good, []byte("api:\n  timeout: 5s\n"), 0o600))
	out, err := env.run(context.Background(), "config", "validate", good)
	require.NoError(t, err)
	assert.Equal(t, good+": ok\n", out)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("api:\n  timeout: soon\n"), 0o600))
	_, err = env.run(context.Background(), "config", "validate", bad)
	errutil.AssertErrorCode(t, err, config.CodeSchemaViolation)

	_, err = env.run(context.Background(), "config", "validate", filepath.Join(dir, "missing.yaml"))
	errutil.AssertErrorCode(t, err, config.CodeLoadFailed)
}

func TestAgent_BindsStoredSessionAndReleasesOnShutdown(t *testing.T) {
	env := newTestEnv(t)
	env.storeSession(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() {
		_, err := env.run(ctx, "agent")
		done <- err
	}()

	require.Eventually(t, func() bool {
		c := env.transport.last()
		return c != nil && c.sent(realtime.EventSubscribe, "private-user.42")
	}, 5*time.Second, 10*time.Millisecond)
	assert.True(t, env.league.seen("POST /broadcasting/auth"))

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("agent did not stop")
	}

	conn := env.transport.last()
	assert.True(t, conn.sent(realtime.EventUnsubscribe, "private-user.42"))
	select {
	case <-conn.closed:
	default:
		t.Error("realtime connection left open")
	}
}

func TestAgent_SignsInWithEmail(t *testing.T) {
	env := newTestEnv(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() {
		_, err := env.run(ctx, "agent", "--email", "sam@example.com", "--metrics.addr=127.0.0.1:0")
		done <- err
	}()

	require.Eventually(t, func() bool {
		c := env.transport.last()
		return c != nil && c.sent(realtime.EventSubscribe, "private-user.42")
	}, 5*time.Second, 10*time.Millisecond)
	assert.True(t, env.league.seen("POST /api/auth/login"))

	cancel()
	require.NoError(t, <-done)
}

func TestAgent_LoginFailureStopsAgent(t *testing.T) {
	env := newTestEnv(t)
	env.password = "wrong"

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := env.run(ctx, "agent", "--email", "sam@example.com")
	require.Error(t, err)
	assert.NotErrorIs(t, err, context.DeadlineExceeded)
	assert.ErrorIs(t, err, auth.ErrUnauthorized)
}
