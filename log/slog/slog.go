// Copyright 2022-2026 Sauce Labs Inc., all rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package slog implements log.StructuredLogger with the standard library slog handlers.
package slog

import (
	"context"
	"io"
	"log/slog"
	"os"

	flog "github.com/hainspector/clprelay/log"
)

var _ flog.StructuredLogger = &Logger{}

type Option func(*Logger)

// WithOnError sets a callback invoked with the logger name on every error record,
// it backs the errors_total metric.
func WithOnError(f func(name string)) Option {
	return func(l *Logger) {
		l.onError = f
	}
}

type Logger struct {
	log     *slog.Logger
	file    *os.File
	name    string
	onError func(name string)
}

// Default returns a text logger at info level writing to stdout.
func Default() *Logger {
	return New(flog.DefaultConfig())
}

func New(cfg *flog.Config, opts ...Option) *Logger {
	var w io.Writer = os.Stdout
	if cfg.File != nil {
		w = cfg.File
	}
	return NewWithWriter(w, cfg, opts...)
}

// NewWithWriter is like New but writes to w.
// The config file, if any, is still closed by Close.
func NewWithWriter(w io.Writer, cfg *flog.Config, opts ...Option) *Logger {
	hopts := &slog.HandlerOptions{
		Level:       slogLevel(cfg.Level),
		ReplaceAttr: renameAttr,
	}

	var h slog.Handler
	switch cfg.Format {
	case flog.JSONFormat:
		h = slog.NewJSONHandler(w, hopts)
	default:
		h = slog.NewTextHandler(w, hopts)
	}

	l := &Logger{
		log:  slog.New(h),
		file: cfg.File,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Logger) Error(msg string, args ...any) {
	l.ErrorContext(context.Background(), msg, args...)
}

func (l *Logger) ErrorContext(ctx context.Context, msg string, args ...any) {
	if l.onError != nil {
		l.onError(l.name)
	}
	l.log.ErrorContext(ctx, msg, args...)
}

func (l *Logger) Warn(msg string, args ...any) {
	l.log.Warn(msg, args...)
}

func (l *Logger) WarnContext(ctx context.Context, msg string, args ...any) {
	l.log.WarnContext(ctx, msg, args...)
}

func (l *Logger) Info(msg string, args ...any) {
	l.log.Info(msg, args...)
}

func (l *Logger) InfoContext(ctx context.Context, msg string, args ...any) {
	l.log.InfoContext(ctx, msg, args...)
}

func (l *Logger) Debug(msg string, args ...any) {
	l.log.Debug(msg, args...)
}

func (l *Logger) DebugContext(ctx context.Context, msg string, args ...any) {
	l.log.DebugContext(ctx, msg, args...)
}

func (l *Logger) With(args ...any) flog.StructuredLogger {
	c := *l
	c.log = c.log.With(args...)
	return &c
}

// Named returns a copy of the logger that adds the name attribute to every record.
// The name is also passed to the on error callback.
func (l *Logger) Named(name string) *Logger {
	c := *l
	c.name = name
	c.log = c.log.With("name", name)
	return &c
}

func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}

var slogLevels = map[flog.Level]slog.Level{
	flog.ErrorLevel: slog.LevelError,
	flog.WarnLevel:  slog.LevelWarn,
	flog.InfoLevel:  slog.LevelInfo,
	flog.DebugLevel: slog.LevelDebug,
}

func slogLevel(level flog.Level) slog.Level {
	if l, ok := slogLevels[level]; ok {
		return l
	}
	return slog.LevelInfo
}

// renameAttr uses the attribute names expected by log collectors.
func renameAttr(groups []string, a slog.Attr) slog.Attr {
	if len(groups) > 0 {
		return a
	}
	switch a.Key {
	case slog.TimeKey:
		a.Key = "timestamp"
	case slog.LevelKey:
		a.Key = "severity"
	case slog.MessageKey:
		a.Key = "message"
	}
	return a
}
