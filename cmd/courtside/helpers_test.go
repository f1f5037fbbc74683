// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Courtside Contributors

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/courtside/courtside/internal/auth"
	"github.com/courtside/courtside/internal/realtime"
)

const testToken = "tok-42"

// leagueServer fakes the league API for a single account.
type leagueServer struct {
	*httptest.Server
	mu       sync.Mutex
	requests []string
}

func newLeagueServer(t *testing.T) *leagueServer {
	t.Helper()
	ls := &leagueServer{}
	user := map[string]any{
		"id":        42,
		"email":     "sam@example.com",
		"name":      "Sam",
		"user_type": "player",
		"roles":     []string{"coach"},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var body struct{ Email, Password string }
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body.Password != "secret" {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
				"message": "The provided credentials are incorrect.",
				"errors":  map[string][]string{"email": {"The provided credentials are incorrect."}},
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"access_token": testToken, "user": user})
	})
	mux.HandleFunc("GET /api/auth/me", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+testToken {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"message": "Unauthenticated."})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"data": user})
	})
	mux.HandleFunc("POST /api/auth/logout", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("POST /broadcasting/auth", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+testToken {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"message": "Unauthenticated."})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"auth": "courtside:" + r.FormValue("channel_name")})
	})
	mux.HandleFunc("DELETE /api/devices/{token}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	ls.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ls.mu.Lock()
		ls.requests = append(ls.requests, r.Method+" "+r.URL.EscapedPath())
		ls.mu.Unlock()
		w.Header().Set("X-API-Version", "1.4.0")
		mux.ServeHTTP(w, r)
	}))
	t.Cleanup(ls.Close)
	return ls
}

func (ls *leagueServer) seen(req string) bool {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	for _, r := range ls.requests {
		if r == req {
			return true
		}
	}
	return false
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// fakeConn records frames and blocks in Receive until closed.
type fakeConn struct {
	mu     sync.Mutex
	frames []realtime.Frame
	closed chan struct{}
	once   sync.Once
}

func (c *fakeConn) SocketID() string { return "1234.5678" }

func (c *fakeConn) Send(_ context.Context, f realtime.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = append(c.frames, f)
	return nil
}

func (c *fakeConn) Receive() (realtime.Frame, error) {
	<-c.closed
	return realtime.Frame{}, errors.New("connection closed")
}

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) sent(event, substr string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, f := range c.frames {
		if f.Event == event && strings.Contains(string(f.Data), substr) {
			return true
		}
	}
	return false
}

type fakeTransport struct {
	mu    sync.Mutex
	conns []*fakeConn
}

func (t *fakeTransport) Dial(context.Context) (realtime.Conn, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	c := &fakeConn{closed: make(chan struct{})}
	t.conns = append(t.conns, c)
	return c, nil
}

func (t *fakeTransport) last() *fakeConn {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.conns) == 0 {
		return nil
	}
	return t.conns[len(t.conns)-1]
}

type testEnv struct {
	league    *leagueServer
	store     *auth.MemoryStore
	transport *fakeTransport
	password  string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	return &testEnv{
		league:    newLeagueServer(t),
		store:     auth.NewMemoryStore(),
		transport: &fakeTransport{},
		password:  "secret",
	}
}

func (e *testEnv) deps() *Deps {
	return &Deps{
		StoreFactory: func(string) (auth.Store, error) { return e.store, nil },
		TransportFactory: func(realtime.WebSocketConfig) (realtime.Transport, error) {
			return e.transport, nil
		},
		Getenv: func(key string) string {
			if key == defaultPasswordEnv {
				return e.password
			}
			return ""
		},
	}
}

func (e *testEnv) storeSession(t *testing.T) {
	t.Helper()
	if err := e.store.Save(context.Background(), &auth.Credentials{
		AccessToken: testToken,
		User:        &auth.User{ID: "42", Name: "Sam"},
	}); err != nil {
		t.Fatalf("save credentials: %v", err)
	}
}

// run executes the CLI with args against the fake league.
func (e *testEnv) run(ctx context.Context, args ...string) (string, error) {
	cmd := newRootCmd(e.deps())
	out := new(bytes.Buffer)
	cmd.SetOut(out)
	cmd.SetErr(new(bytes.Buffer))
	// Later flags win, so args may override these.
	base := []string{"--api.base-url=" + e.league.URL, "--metrics.addr=", "--log.format=text"}
	cmd.SetArgs(append(base, args...))
	err := cmd.ExecuteContext(ctx)
	return out.String(), err
}
