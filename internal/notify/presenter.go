// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Courtside Contributors

package notify

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
)

// Presenter shows a notification to the user.
type Presenter interface {
	Present(ctx context.Context, n Notification) error
}

// LogPresenter writes notifications to a structured log.
type LogPresenter struct {
	Logger *slog.Logger
}

// Present logs n at info level.
func (p LogPresenter) Present(ctx context.Context, n Notification) error {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "notification",
		"notification_id", n.ID.String(),
		"type", n.Type(),
		"title", n.Title,
		"body", n.Body,
		"local", n.Local,
	)
	return nil
}

// WriterPresenter prints one line per notification, for terminals.
type WriterPresenter struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriterPresenter returns a presenter writing to w.
func NewWriterPresenter(w io.Writer) *WriterPresenter {
	return &WriterPresenter{w: w}
}

// Present writes "[type] title: body".
func (p *WriterPresenter) Present(_ context.Context, n Notification) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	kind := n.Type()
	if kind == "" {
		kind = "push"
	}
	_, err := fmt.Fprintf(p.w, "[%s] %s: %s\n", kind, n.Title, n.Body)
	return err
}
