// Copyright 2022-2026 Sauce Labs Inc., all rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package handler holds the serverless entry points.
package handler

import (
	"net/http"

	"github.com/hainspector/clprelay/internal/serverless"
	"github.com/hainspector/clprelay/log/slog"
)

var defaultHandler http.Handler

func init() {
	h, err := newLogProcessorHandler()
	if err != nil {
		slog.Default().Named("relay").Error("invalid relay configuration", "error", err)
		h = serverless.ErrorHandler(err)
	}
	defaultHandler = h
}

func newLogProcessorHandler() (http.Handler, error) {
	cfg, err := serverless.LoadConfig()
	if err != nil {
		return nil, err
	}
	return serverless.NewLogProcessorHandler(cfg)
}

// LogProcessor is the entry point for Vercel's Go runtime.
func LogProcessor(w http.ResponseWriter, r *http.Request) {
	defaultHandler.ServeHTTP(w, r)
}
