// Copyright 2022-2026 Sauce Labs Inc., all rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package clprelay

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type forwarderMetrics struct {
	upstreamResponses *prometheus.CounterVec
	upstreamDuration  prometheus.Histogram
	upstreamErrors    *prometheus.CounterVec
	rejectedRequests  *prometheus.CounterVec
}

func newForwarderMetrics(r prometheus.Registerer, namespace string) *forwarderMetrics {
	if r == nil {
		r = prometheus.NewRegistry() // This registry will be discarded.
	}
	f := promauto.With(r)

	return &forwarderMetrics{
		upstreamResponses: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_responses_total",
			Help:      "Number of responses received from upstream by status code",
		}, []string{"code"}),
		upstreamDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upstream_request_duration_seconds",
			Help:      "Time until upstream response headers were received",
			Buckets:   prometheus.DefBuckets,
		}),
		upstreamErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_errors_total",
			Help:      "Number of failures to reach upstream",
		}, []string{"reason"}),
		rejectedRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rejected_requests_total",
			Help:      "Number of requests rejected without contacting upstream",
		}, []string{"code"}),
	}
}

func (m *forwarderMetrics) upstreamResponse(code int, d time.Duration) {
	m.upstreamResponses.WithLabelValues(strconv.Itoa(code)).Inc()
	m.upstreamDuration.Observe(d.Seconds())
}

func (m *forwarderMetrics) upstreamError(reason string) {
	m.upstreamErrors.WithLabelValues(reason).Inc()
}

func (m *forwarderMetrics) rejected(code int) {
	m.rejectedRequests.WithLabelValues(strconv.Itoa(code)).Inc()
}
