// Copyright 2022-2026 Sauce Labs Inc., all rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// OtherRoute is the route label of requests to paths not registered with WithRoutes.
const OtherRoute = "other"

type PrometheusOpt func(*Prometheus)

// WithRoutes adds a route label with the request path if it is one of paths, or OtherRoute.
func WithRoutes(paths ...string) PrometheusOpt {
	return func(p *Prometheus) {
		p.routes = make(map[string]struct{}, len(paths))
		for _, path := range paths {
			p.routes[path] = struct{}{}
		}
	}
}

// Prometheus is a middleware that collects metrics about HTTP requests and responses.
// Unlike the promhttp.InstrumentHandler* chaining, it creates only one delegator per request.
type Prometheus struct {
	requestsInFlight *prometheus.GaugeVec
	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	responseBytes    *prometheus.CounterVec

	routes map[string]struct{}
}

func NewPrometheus(r prometheus.Registerer, namespace string, opts ...PrometheusOpt) *Prometheus {
	if r == nil {
		r = prometheus.NewRegistry() // This registry will be discarded.
	}
	f := promauto.With(r)

	p := &Prometheus{}
	for _, opt := range opts {
		opt(p)
	}

	labels := []string{"method"}
	if p.routes != nil {
		labels = append(labels, "route")
	}
	labelsWithStatus := append([]string{"code"}, labels...)

	p.requestsInFlight = f.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "http_requests_in_flight",
		Help:      "Current number of HTTP requests being served.",
	}, labels)
	p.requestsTotal = f.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests processed.",
	}, labelsWithStatus)
	p.requestDuration = f.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "The HTTP request latencies in seconds, including the upstream call.",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}, labelsWithStatus)
	p.responseBytes = f.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_response_bytes_total",
		Help:      "Total number of response body bytes written.",
	}, labels)

	return p
}

func (p *Prometheus) Wrap(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		labels := p.labels(r)

		inFlight := p.requestsInFlight.WithLabelValues(labels...)
		inFlight.Inc()
		defer inFlight.Dec()

		d := newDelegator(w)
		start := time.Now()
		h.ServeHTTP(d, r)
		elapsed := time.Since(start)

		labelsWithStatus := append([]string{strconv.Itoa(d.Status())}, labels...)
		p.requestsTotal.WithLabelValues(labelsWithStatus...).Inc()
		p.requestDuration.WithLabelValues(labelsWithStatus...).Observe(elapsed.Seconds())
		p.responseBytes.WithLabelValues(labels...).Add(float64(d.Written()))
	})
}

func (p *Prometheus) labels(r *http.Request) []string {
	if p.routes == nil {
		return []string{r.Method}
	}
	route := OtherRoute
	if _, ok := p.routes[r.URL.Path]; ok {
		route = r.URL.Path
	}
	return []string{r.Method, route}
}
