// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Courtside Contributors

package notify

import (
	"context"
	"log/slog"
	"maps"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	"golang.org/x/time/rate"

	"github.com/courtside/courtside/pkg/errutil"
)

// Error codes.
const (
	CodeRegisterFailed = "NOTIFY_REGISTER_FAILED"
	CodeTokenFailed    = "NOTIFY_TOKEN_FAILED"
	CodeNotRunning     = "NOTIFY_NOT_RUNNING"
	CodeQueueFull      = "NOTIFY_QUEUE_FULL"
	CodePresentFailed  = "NOTIFY_PRESENT_FAILED"
)

const (
	defaultQueueSize = 64
	defaultRate      = rate.Limit(2)
	defaultBurst     = 5
	defaultPlatform  = "linux"
)

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

// WithRateLimit bounds how fast local notifications are presented.
func WithRateLimit(r rate.Limit, burst int) Option {
	return func(s *Service) {
		if burst > 0 {
			s.limit, s.burst = r, burst
		}
	}
}

// WithQueueSize sets how many local notifications may wait for
// presentation before new ones are dropped.
func WithQueueSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.queueSize = n
		}
	}
}

// WithPlatform sets the platform reported when registering the device.
func WithPlatform(platform string) Option {
	return func(s *Service) {
		if platform != "" {
			s.platform = platform
		}
	}
}

// Service manages push registration and local notification delivery.
//
// Local notifications are queued and presented by a single dispatcher
// goroutine that runs between Initialize and Cleanup.
type Service struct {
	push      PushProvider
	registrar DeviceRegistrar
	presenter Presenter
	logger    *slog.Logger
	limit     rate.Limit
	burst     int
	queueSize int
	platform  string

	mu       sync.Mutex
	handlers Handlers
	token    string
	queue    chan Notification
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewService creates a notification service. push and registrar may be nil
// when the host has no remote push; presenter defaults to LogPresenter.
func NewService(push PushProvider, registrar DeviceRegistrar, presenter Presenter, opts ...Option) *Service {
	s := &Service{
		push:      push,
		registrar: registrar,
		presenter: presenter,
		logger:    slog.Default(),
		limit:     defaultRate,
		burst:     defaultBurst,
		queueSize: defaultQueueSize,
		platform:  defaultPlatform,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.presenter == nil {
		s.presenter = LogPresenter{Logger: s.logger}
	}
	return s
}

// Initialize installs handlers, starts local delivery and registers the
// device for remote push. It returns the push token, or "" when the
// platform has none. A registration failure is returned but local
// notifications keep working.
func (s *Service) Initialize(ctx context.Context, h Handlers) (string, error) {
	s.mu.Lock()
	s.handlers = h
	if s.queue == nil {
		dctx, cancel := context.WithCancel(context.Background())
		s.queue = make(chan Notification, s.queueSize)
		s.cancel = cancel
		s.done = make(chan struct{})
		go s.dispatch(dctx, s.queue, s.done)
	}
	s.mu.Unlock()

	if s.push == nil {
		return "", nil
	}
	token, err := s.push.DeviceToken(ctx)
	if err != nil {
		return "", oops.Code(CodeTokenFailed).Wrap(err)
	}
	if token == "" {
		return "", nil
	}

	if s.registrar != nil {
		if err := s.registrar.RegisterDevice(ctx, token, s.platform); err != nil {
			return "", oops.Code(CodeRegisterFailed).With("platform", s.platform).Wrap(err)
		}
	}

	s.mu.Lock()
	s.token = token
	s.mu.Unlock()
	s.logger.Info("push registration complete", "platform", s.platform)
	return token, nil
}

// ScheduleLocalNotification queues a notification for presentation. It
// never blocks; when the service is not running or the queue is full the
// notification is dropped and reported to OnError.
func (s *Service) ScheduleLocalNotification(title, body string, data map[string]any) {
	n := Notification{
		ID:         ulid.Make(),
		Title:      title,
		Body:       body,
		Data:       maps.Clone(data),
		Local:      true,
		ReceivedAt: time.Now(),
	}

	s.mu.Lock()
	if s.queue == nil {
		s.mu.Unlock()
		s.report(oops.Code(CodeNotRunning).With("title", title).Errorf("notification service is not running"))
		return
	}
	select {
	case s.queue <- n:
		s.mu.Unlock()
	default:
		s.mu.Unlock()
		s.report(oops.Code(CodeQueueFull).With("title", title).Errorf("notification queue full"))
	}
}

// Deliver hands an inbound remote push to OnReceived.
func (s *Service) Deliver(n Notification) {
	if n.ID == (ulid.ULID{}) {
		n.ID = ulid.Make()
	}
	if n.ReceivedAt.IsZero() {
		n.ReceivedAt = time.Now()
	}
	if fn := s.currentHandlers().OnReceived; fn != nil {
		fn(n)
	}
}

// Respond reports a user interaction with a presented notification.
func (s *Service) Respond(id ulid.ULID, action string) {
	if fn := s.currentHandlers().OnResponse; fn != nil {
		fn(Response{NotificationID: id, Action: action, At: time.Now()})
	}
}

// Token returns the registered push token, or "".
func (s *Service) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

// Unregister removes this device's push token from the backend. When
// Initialize registered nothing in this process the push provider's token
// is used, so a registration from an earlier run is removed too.
func (s *Service) Unregister(ctx context.Context) error {
	s.mu.Lock()
	token := s.token
	s.token = ""
	s.mu.Unlock()

	if s.registrar == nil {
		return nil
	}
	if token == "" && s.push != nil {
		t, err := s.push.DeviceToken(ctx)
		if err != nil {
			return oops.Code(CodeTokenFailed).Wrap(err)
		}
		token = t
	}
	if token == "" {
		return nil
	}
	if err := s.registrar.UnregisterDevice(ctx, token); err != nil {
		return oops.Code(CodeRegisterFailed).Wrapf(err, "unregister device")
	}
	return nil
}

// Cleanup removes the handlers, stops the dispatcher and drops anything
// still queued. It is idempotent. It must not be called from a handler.
func (s *Service) Cleanup() {
	s.mu.Lock()
	s.handlers = Handlers{}
	cancel, done := s.cancel, s.done
	s.queue, s.cancel, s.done = nil, nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	s.logger.Debug("notification service stopped")
}

func (s *Service) dispatch(ctx context.Context, queue <-chan Notification, done chan<- struct{}) {
	defer close(done)
	limiter := rate.NewLimiter(s.limit, s.burst)

	for {
		select {
		case <-ctx.Done():
			return
		case n := <-queue:
			if err := limiter.Wait(ctx); err != nil {
				return
			}
			if err := s.presenter.Present(ctx, n); err != nil {
				s.report(oops.Code(CodePresentFailed).With("notification_id", n.ID.String()).Wrap(err))
				continue
			}
			if fn := s.currentHandlers().OnReceived; fn != nil && ctx.Err() == nil {
				fn(n)
			}
		}
	}
}

func (s *Service) currentHandlers() Handlers {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handlers
}

func (s *Service) report(err error) {
	if fn := s.currentHandlers().OnError; fn != nil {
		fn(err)
		return
	}
	errutil.LogWarn(s.logger, "notification dropped", err)
}
