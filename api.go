// Copyright 2022-2026 Sauce Labs Inc., all rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package clprelay

import (
	"encoding/json"
	"net/http"
	"net/http/pprof"

	"github.com/hainspector/clprelay/internal/version"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type server interface {
	Addr() string
}

// APIHandler serves the operational endpoints of the relay:
// liveness and readiness probes, Prometheus metrics, the effective configuration, version and pprof.
type APIHandler struct {
	mux    *http.ServeMux
	relay  server
	config string
}

// NewAPIHandler returns a handler reporting ready once relay is listening.
func NewAPIHandler(r prometheus.Gatherer, relay server, config string) *APIHandler {
	a := &APIHandler{
		mux:    http.NewServeMux(),
		relay:  relay,
		config: config,
	}

	routes := map[string]http.Handler{
		"/metrics": promhttp.HandlerFor(r, promhttp.HandlerOpts{}),
		"/healthz": http.HandlerFunc(a.healthz),
		"/readyz":  http.HandlerFunc(a.readyz),
		"/configz": http.HandlerFunc(a.configz),
		"/version": http.HandlerFunc(a.version),

		"/debug/pprof/":        http.HandlerFunc(pprof.Index),
		"/debug/pprof/profile": http.HandlerFunc(pprof.Profile),
		"/debug/pprof/symbol":  http.HandlerFunc(pprof.Symbol),
		"/debug/pprof/trace":   http.HandlerFunc(pprof.Trace),
	}
	for p, h := range routes {
		a.mux.Handle(p, h)
	}

	return a
}

func (a *APIHandler) healthz(w http.ResponseWriter, _ *http.Request) {
	writeText(w, http.StatusOK, "OK")
}

func (a *APIHandler) readyz(w http.ResponseWriter, _ *http.Request) {
	if a.relay.Addr() == "" {
		writeText(w, http.StatusServiceUnavailable, "Service Unavailable")
		return
	}
	writeText(w, http.StatusOK, "OK")
}

func (a *APIHandler) configz(w http.ResponseWriter, _ *http.Request) {
	writeText(w, http.StatusOK, a.config)
}

func (a *APIHandler) version(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", contentTypeJSON)
	json.NewEncoder(w).Encode(version.Get()) //nolint:errcheck // best effort
}

func (a *APIHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.mux.ServeHTTP(w, r)
}

func writeText(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(code)
	w.Write([]byte(msg)) //nolint:errcheck // best effort
}
