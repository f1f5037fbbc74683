// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Courtside Contributors

// Package realtime maintains the pub/sub connection to the league backend
// and routes private-channel events to typed handlers.
package realtime

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/courtside/courtside/pkg/errutil"
)

const defaultBufferSize = 32

// ChannelAuthorizer signs private channel subscriptions.
type ChannelAuthorizer interface {
	AuthorizeChannel(ctx context.Context, socketID, channel string) (string, error)
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithBufferSize sets the per-subscription event queue length.
func WithBufferSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.bufferSize = n
		}
	}
}

// WithRoutes replaces DefaultRoutes.
func WithRoutes(routes map[Kind][]string) Option {
	return func(s *Service) {
		s.routes = routes
	}
}

// Service owns one realtime connection and its channel subscriptions.
type Service struct {
	transport  Transport
	authorizer ChannelAuthorizer
	logger     *slog.Logger
	bufferSize int
	routes     map[Kind][]string
	router     *Router
	validator  *payloadValidator

	mu       sync.Mutex
	conn     Conn
	hub      *hub
	stopCtx  context.Context
	stop     context.CancelFunc
	readDone chan struct{}
	channels map[string]Handlers
	wg       sync.WaitGroup
}

// NewService creates a realtime service.
func NewService(transport Transport, authorizer ChannelAuthorizer, opts ...Option) (*Service, error) {
	if transport == nil {
		return nil, oops.Code(CodeInvalidConfig).Errorf("transport is required")
	}
	if authorizer == nil {
		return nil, oops.Code(CodeInvalidConfig).Errorf("channel authorizer is required")
	}
	s := &Service{
		transport:  transport,
		authorizer: authorizer,
		logger:     slog.Default(),
		bufferSize: defaultBufferSize,
		routes:     DefaultRoutes,
	}
	for _, opt := range opts {
		opt(s)
	}

	router, err := NewRouter(s.routes)
	if err != nil {
		return nil, err
	}
	validator, err := newPayloadValidator()
	if err != nil {
		return nil, err
	}
	s.router, s.validator = router, validator
	return s, nil
}

// Initialize connects when not already connected.
func (s *Service) Initialize(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil {
		return nil
	}

	conn, err := s.transport.Dial(ctx)
	if err != nil {
		return err
	}
	stopCtx, stop := context.WithCancel(context.Background())
	s.conn = conn
	s.hub = newHub(s.bufferSize, s.logger)
	s.stopCtx, s.stop = stopCtx, stop
	s.readDone = make(chan struct{})
	s.channels = make(map[string]Handlers)

	go s.readLoop(stopCtx, conn, s.hub, s.readDone)
	s.logger.Info("realtime connected", "socket_id", conn.SocketID())
	return nil
}

// Connected reports whether a connection is open.
func (s *Service) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn != nil
}

// SubscribeToUserChannel subscribes to the user's private channel and
// routes its events to handlers. Subscribing to a channel that is already
// subscribed is a no-op.
func (s *Service) SubscribeToUserChannel(ctx context.Context, userID string, handlers Handlers) error {
	if userID == "" {
		return oops.Code(CodeSubscribeFailed).Errorf("user id is required")
	}
	channel := UserChannel(userID)

	s.mu.Lock()
	conn := s.conn
	_, already := s.channels[channel]
	s.mu.Unlock()
	if conn == nil {
		return oops.Code(CodeNotConnected).With("channel", channel).Errorf("realtime service is not connected")
	}
	if already {
		return nil
	}

	sig, err := s.authorizer.AuthorizeChannel(ctx, conn.SocketID(), channel)
	if err != nil {
		return oops.Code(CodeAuthorizeFailed).With("channel", channel).Wrap(err)
	}

	// The queue exists before the server confirms so no event is lost.
	s.mu.Lock()
	if s.conn != conn {
		s.mu.Unlock()
		return oops.Code(CodeNotConnected).With("channel", channel).Errorf("disconnected while subscribing")
	}
	if _, ok := s.channels[channel]; ok {
		s.mu.Unlock()
		return nil
	}
	h, queue := s.hub, s.hub.subscribe(channel)
	s.channels[channel] = handlers
	s.wg.Add(1)
	go s.dispatch(s.stopCtx, queue, handlers)
	s.mu.Unlock()

	if err := conn.Send(ctx, subscribeFrame(channel, sig)); err != nil {
		s.mu.Lock()
		if s.conn == conn {
			delete(s.channels, channel)
		}
		s.mu.Unlock()
		h.unsubscribe(channel, queue)
		return oops.Code(CodeSubscribeFailed).With("channel", channel).Wrap(err)
	}
	s.logger.Info("subscribed", "channel", channel)
	return nil
}

// Disconnect unsubscribes, closes the connection and waits for the
// reader and dispatchers to exit. No handler runs after it returns. It is
// idempotent and must not be called from a handler.
func (s *Service) Disconnect() {
	s.mu.Lock()
	conn, h, stop, readDone := s.conn, s.hub, s.stop, s.readDone
	channels := s.channels
	s.conn, s.hub, s.stopCtx, s.stop, s.readDone, s.channels = nil, nil, nil, nil, nil, nil
	s.mu.Unlock()

	if conn == nil {
		// A lost connection may still be draining its dispatchers.
		s.wg.Wait()
		return
	}

	stop()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	for channel := range channels {
		if err := conn.Send(ctx, unsubscribeFrame(channel)); err != nil {
			s.logger.Debug("unsubscribe failed", "channel", channel, "error", err)
		}
	}
	cancel()

	if err := conn.Close(); err != nil {
		s.logger.Debug("close realtime connection", "error", err)
	}
	<-readDone
	h.close()
	s.wg.Wait()
	s.logger.Info("realtime disconnected")
}

func (s *Service) readLoop(ctx context.Context, conn Conn, h *hub, done chan<- struct{}) {
	defer close(done)
	for {
		f, err := conn.Receive()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if errutil.Code(err) == CodeProtocol {
				errutil.LogWarn(s.logger, "skipping malformed realtime frame", err)
				continue
			}
			errutil.LogError(s.logger, "realtime connection lost", err)
			s.connectionLost(conn, err)
			return
		}
		s.handleFrame(f, h)
	}
}

// connectionLost releases a connection that failed under the reader and
// tells each subscription. Nothing happens if Disconnect already took it.
func (s *Service) connectionLost(conn Conn, cause error) {
	s.mu.Lock()
	if s.conn != conn {
		s.mu.Unlock()
		return
	}
	h, stop, channels := s.hub, s.stop, s.channels
	s.conn, s.hub, s.stopCtx, s.stop, s.readDone, s.channels = nil, nil, nil, nil, nil, nil
	s.mu.Unlock()

	stop()
	if err := conn.Close(); err != nil {
		s.logger.Debug("close realtime connection", "error", err)
	}
	h.close()
	s.wg.Wait()

	for channel, handlers := range channels {
		if handlers.OnConnectionLost != nil {
			handlers.OnConnectionLost(oops.Code(CodeConnectionLost).With("channel", channel).Wrap(cause))
		}
	}
}

func (s *Service) handleFrame(f Frame, h *hub) {
	switch f.Event {
	case EventSubscriptionSucceeded:
		s.logger.Debug("subscription confirmed", "channel", f.Channel)
		return
	case EventSubscriptionError, EventError:
		s.logger.Warn("realtime server error", "event", f.Event, "channel", f.Channel, "data", string(f.Data))
		return
	}
	if f.Channel == "" {
		s.logger.Debug("ignoring frame without channel", "event", f.Event)
		return
	}

	data, err := decodeData(f.Data)
	if err != nil {
		errutil.LogWarn(s.logger, "undecodable event data", err, "channel", f.Channel, "event", f.Event)
		return
	}
	h.broadcast(Event{
		ID:         ulid.Make(),
		Channel:    f.Channel,
		Name:       f.Event,
		Data:       data,
		ReceivedAt: time.Now(),
	})
}

func (s *Service) dispatch(ctx context.Context, queue <-chan Event, h Handlers) {
	defer s.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-queue:
			if !ok || ctx.Err() != nil {
				return
			}
			s.route(e, h)
		}
	}
}

func (s *Service) route(e Event, h Handlers) {
	kind, ok := s.router.Kind(e.Name)
	if !ok {
		s.logger.Debug("unrouted event", "channel", e.Channel, "event", e.Name)
		return
	}
	// A payload missing its identifier is still shown to the user.
	if err := s.validator.validate(kind, e.Data); err != nil {
		errutil.LogWarn(s.logger, "event payload does not match schema", err, "channel", e.Channel, "event", e.Name)
	}
	if fn := h.forKind(kind); fn != nil {
		fn(e)
	}
}
