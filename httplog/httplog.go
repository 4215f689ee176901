// Copyright 2022-2026 Sauce Labs Inc., all rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package httplog logs HTTP requests served by the relay at a configurable verbosity.
package httplog

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/hainspector/clprelay/middleware"
)

// Mode defines the logging verbosity.
type Mode string

const (
	None     Mode = "none"
	ShortURL Mode = "short-url"
	URL      Mode = "url"
	Headers  Mode = "headers"
	Errors   Mode = "errors"
)

var DefaultMode = Errors

func (m Mode) String() string {
	if m == "" {
		return DefaultMode.String()
	}
	return string(m)
}

// modeSpec describes what a mode logs.
type modeSpec struct {
	errorsOnly bool
	fullURL    bool
	headers    bool
}

var modes = map[Mode]modeSpec{
	ShortURL: {},
	URL:      {fullURL: true},
	Headers:  {headers: true},
	Errors:   {errorsOnly: true, headers: true},
}

func (m Mode) valid() bool {
	_, ok := modes[m]
	return ok || m == None
}

// SplitNameMode parses "<name>:<mode>" or "<mode>", an unnamed mode has an empty name.
func SplitNameMode(val string) (name string, mode Mode, err error) {
	name, m, ok := strings.Cut(val, ":")
	if !ok {
		name, m = "", val
	}
	mode = Mode(m)
	if !mode.valid() {
		return "", "", fmt.Errorf("invalid mode %q", mode)
	}
	return name, mode, nil
}

// RedactedHeaders lists request headers whose values are never logged.
var RedactedHeaders = []string{ //nolint:gochecknoglobals // configuration
	"Ocp-Apim-Subscription-Key",
	"Authorization",
}

type Logger struct {
	log  func(msg string, args ...any)
	mode Mode
}

// NewLogger returns a logger that logs HTTP requests and responses in a structured way.
func NewLogger(logFunc func(msg string, args ...any), mode Mode) *Logger {
	if mode == "" {
		mode = DefaultMode
	}
	return &Logger{
		log:  logFunc,
		mode: mode,
	}
}

// LogFunc returns the middleware logger for the mode, server errors are the 5xx responses
// including relayed upstream failures.
func (l *Logger) LogFunc() middleware.Logger {
	if l.mode == None {
		return func(middleware.LogEntry) {}
	}
	spec, ok := modes[l.mode]
	if !ok {
		panic(fmt.Sprintf("unknown log mode %s", l.mode))
	}

	return func(e middleware.LogEntry) {
		if spec.errorsOnly && e.Status < http.StatusInternalServerError {
			return
		}

		var b structuredLogBuilder
		if spec.fullURL {
			b.WithURL(e)
		} else {
			b.WithShortURL(e)
		}
		if spec.headers {
			b.WithHeaders(e)
		}
		l.log("HTTP request", b.Args()...)
	}
}
