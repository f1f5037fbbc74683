// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Courtside Contributors

package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/samber/oops"
)

const (
	protocolVersion  = "7"
	handshakeTimeout = 10 * time.Second
	writeTimeout     = 10 * time.Second
)

// WebSocketConfig locates a Pusher-protocol server.
type WebSocketConfig struct {
	// URL is the server origin, e.g. wss://ws.league.example.com.
	URL string
	// Key is the application key appended as /app/{key}.
	Key string
	// Client is reported in the connection query string.
	Client  string
	Version string
	Header  http.Header
	Dialer  *websocket.Dialer
}

// WebSocketTransport dials Pusher protocol 7 servers.
type WebSocketTransport struct {
	endpoint string
	header   http.Header
	dialer   *websocket.Dialer
}

// NewWebSocketTransport validates cfg.
func NewWebSocketTransport(cfg WebSocketConfig) (*WebSocketTransport, error) {
	if cfg.URL == "" || cfg.Key == "" {
		return nil, oops.Code(CodeInvalidConfig).Errorf("realtime URL and key are required")
	}
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, oops.Code(CodeInvalidConfig).With("url", cfg.URL).Wrap(err)
	}
	switch u.Scheme {
	case "ws", "wss":
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return nil, oops.Code(CodeInvalidConfig).With("url", cfg.URL).Errorf("unsupported realtime scheme %q", u.Scheme)
	}
	u = u.JoinPath("app", cfg.Key)
	q := u.Query()
	q.Set("protocol", protocolVersion)
	if cfg.Client != "" {
		q.Set("client", cfg.Client)
	}
	if cfg.Version != "" {
		q.Set("version", cfg.Version)
	}
	u.RawQuery = q.Encode()

	dialer := cfg.Dialer
	if dialer == nil {
		dialer = &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: handshakeTimeout,
		}
	}
	return &WebSocketTransport{endpoint: u.String(), header: cfg.Header, dialer: dialer}, nil
}

// Endpoint returns the URL dialed by the transport.
func (t *WebSocketTransport) Endpoint() string {
	return t.endpoint
}

// Dial connects and waits for pusher:connection_established.
func (t *WebSocketTransport) Dial(ctx context.Context) (Conn, error) {
	ws, _, err := t.dialer.DialContext(ctx, t.endpoint, t.header)
	if err != nil {
		return nil, oops.Code(CodeConnectFailed).With("endpoint", t.endpoint).Wrap(err)
	}

	if deadline, ok := ctx.Deadline(); ok {
		_ = ws.SetReadDeadline(deadline)
	} else {
		_ = ws.SetReadDeadline(time.Now().Add(handshakeTimeout))
	}
	var f Frame
	if err := ws.ReadJSON(&f); err != nil {
		_ = ws.Close()
		return nil, oops.Code(CodeConnectFailed).Wrapf(err, "read handshake")
	}
	_ = ws.SetReadDeadline(time.Time{})

	if f.Event == EventError {
		_ = ws.Close()
		return nil, oops.Code(CodeConnectFailed).With("data", string(f.Data)).Errorf("server refused connection")
	}
	if f.Event != EventConnectionEstablished {
		_ = ws.Close()
		return nil, oops.Code(CodeProtocol).With("event", f.Event).Errorf("expected %s", EventConnectionEstablished)
	}
	data, err := decodeData(f.Data)
	if err != nil {
		_ = ws.Close()
		return nil, oops.Code(CodeProtocol).Wrap(err)
	}
	socketID, _ := data["socket_id"].(string)
	if socketID == "" {
		_ = ws.Close()
		return nil, oops.Code(CodeProtocol).Errorf("handshake has no socket_id")
	}
	return &wsConn{ws: ws, socketID: socketID}, nil
}

type wsConn struct {
	ws       *websocket.Conn
	socketID string

	// writeMu serializes writes; gorilla allows one concurrent writer.
	writeMu sync.Mutex
}

func (c *wsConn) SocketID() string { return c.socketID }

func (c *wsConn) Send(ctx context.Context, f Frame) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	deadline := time.Now().Add(writeTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = c.ws.SetWriteDeadline(deadline)
	if err := c.ws.WriteJSON(f); err != nil {
		return oops.Code(CodeSendFailed).With("event", f.Event).Wrap(err)
	}
	return nil
}

// Receive answers server pings itself and returns the next other frame.
func (c *wsConn) Receive() (Frame, error) {
	for {
		_, msg, err := c.ws.ReadMessage()
		if err != nil {
			return Frame{}, err
		}
		var f Frame
		if err := json.Unmarshal(msg, &f); err != nil {
			return Frame{}, oops.Code(CodeProtocol).Wrapf(err, "malformed frame")
		}
		if f.Event == EventPing {
			if err := c.Send(context.Background(), Frame{Event: EventPong, Data: json.RawMessage("{}")}); err != nil {
				return Frame{}, err
			}
			continue
		}
		return f, nil
	}
}

func (c *wsConn) Close() error {
	c.writeMu.Lock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(time.Second))
	_ = c.ws.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	c.writeMu.Unlock()
	return c.ws.Close()
}
