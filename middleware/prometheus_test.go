// Copyright 2022-2026 Sauce Labs Inc., all rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestPrometheusWrap(t *testing.T) {
	h := http.NewServeMux()
	h.HandleFunc("/ok", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	h.HandleFunc("/bad", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	r := prometheus.NewPedanticRegistry()
	p := NewPrometheus(r, "test", WithRoutes("/ok"))
	s := p.Wrap(h)

	var wg sync.WaitGroup
	for range [10]struct{}{} {
		for _, path := range []string{"/ok", "/bad"} {
			wg.Add(1)
			go func(path string) {
				defer wg.Done()
				req := httptest.NewRequest(http.MethodPost, path, http.NoBody)
				s.ServeHTTP(httptest.NewRecorder(), req)
			}(path)
		}
	}
	wg.Wait()

	if v := testutil.ToFloat64(p.requestsTotal.WithLabelValues("200", http.MethodPost, "/ok")); v != 10 {
		t.Fatalf("expected 10 OK requests, got %v", v)
	}
	if v := testutil.ToFloat64(p.requestsTotal.WithLabelValues("502", http.MethodPost, OtherRoute)); v != 10 {
		t.Fatalf("expected 10 bad gateway requests, got %v", v)
	}
	if v := testutil.ToFloat64(p.requestsInFlight.WithLabelValues(http.MethodPost, "/ok")); v != 0 {
		t.Fatalf("expected no requests in flight, got %v", v)
	}
	if v := testutil.ToFloat64(p.responseBytes.WithLabelValues(http.MethodPost, "/ok")); v != 0 {
		t.Fatalf("expected no response bytes, got %v", v)
	}
	problems, err := testutil.GatherAndLint(r)
	if err != nil {
		t.Fatal(err)
	}
	if len(problems) > 0 {
		t.Fatalf("metric lint problems: %v", problems)
	}

	const expected = `
# HELP test_http_requests_total Total number of HTTP requests processed.
# TYPE test_http_requests_total counter
test_http_requests_total{code="200",method="POST",route="/ok"} 10
test_http_requests_total{code="502",method="POST",route="other"} 10
`
	if err := testutil.GatherAndCompare(r, strings.NewReader(expected), "test_http_requests_total"); err != nil {
		t.Fatal(err)
	}
}

func TestPrometheusWrapWithoutRoutes(t *testing.T) {
	r := prometheus.NewPedanticRegistry()
	p := NewPrometheus(r, "test")
	s := p.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("hello"))
	}))
	s.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/anything", http.NoBody))

	if v := testutil.ToFloat64(p.requestsTotal.WithLabelValues("200", http.MethodGet)); v != 1 {
		t.Fatalf("expected 1 request, got %v", v)
	}
	if v := testutil.ToFloat64(p.responseBytes.WithLabelValues(http.MethodGet)); v != 5 {
		t.Fatalf("expected 5 response bytes, got %v", v)
	}
	if n := testutil.CollectAndCount(p.requestDuration); n != 1 {
		t.Fatalf("expected 1 duration series, got %d", n)
	}
}

func TestLoggerWrap(t *testing.T) {
	var entries []LogEntry
	l := Logger(func(e LogEntry) {
		entries = append(entries, e)
	})

	h := l.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTeapot)
		w.Write([]byte(`{"ok":false}`))
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/logprocessor", http.NoBody))

	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	e := entries[0]
	if e.Status != http.StatusTeapot {
		t.Errorf("expected status %d, got %d", http.StatusTeapot, e.Status)
	}
	if e.Written != int64(len(`{"ok":false}`)) {
		t.Errorf("unexpected written bytes %d", e.Written)
	}
	if ct := e.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("unexpected content type %q", ct)
	}
}
