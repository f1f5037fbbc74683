// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Courtside Contributors

// Package errutil holds helpers for logging and asserting oops errors.
package errutil

import (
	"context"
	"log/slog"

	"github.com/samber/oops"
)

// LogError logs err at error level. For oops errors the code and context map
// are emitted as separate attributes so they stay queryable.
func LogError(logger *slog.Logger, msg string, err error, attrs ...any) {
	LogErrorContext(context.Background(), logger, slog.LevelError, msg, err, attrs...)
}

// LogWarn is LogError at warn level, for failures the caller recovers from.
func LogWarn(logger *slog.Logger, msg string, err error, attrs ...any) {
	LogErrorContext(context.Background(), logger, slog.LevelWarn, msg, err, attrs...)
}

// LogErrorContext logs err with the given level, carrying ctx so trace ids
// reach the handler.
func LogErrorContext(ctx context.Context, logger *slog.Logger, level slog.Level, msg string, err error, attrs ...any) {
	if logger == nil {
		logger = slog.Default()
	}
	out := make([]any, 0, len(attrs)+6)
	out = append(out, attrs...)
	if oopsErr, ok := oops.AsOops(err); ok {
		out = append(out, "error", oopsErr.Error())
		if code := oopsErr.Code(); code != nil {
			out = append(out, "code", code)
		}
		if errCtx := oopsErr.Context(); len(errCtx) > 0 {
			out = append(out, "context", errCtx)
		}
	} else {
		out = append(out, "error", err)
	}
	logger.Log(ctx, level, msg, out...)
}

// Code returns the oops code of err, or "" when err carries none.
func Code(err error) string {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return ""
	}
	code, _ := oopsErr.Code().(string)
	return code
}
