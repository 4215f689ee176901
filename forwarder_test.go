// Copyright 2022-2026 Sauce Labs Inc., all rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package clprelay

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/gavv/httpexpect/v2"
	"github.com/google/go-cmp/cmp"
	"github.com/hainspector/clprelay/header"
	"github.com/hainspector/clprelay/log"
	"github.com/hainspector/clprelay/log/slog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

type upstreamRequest struct {
	Method   string
	RawQuery string
	Header   http.Header
	Body     string
}

type upstream struct {
	*httptest.Server

	mu       sync.Mutex
	requests []upstreamRequest

	status      int
	contentType string
	body        string
}

func newUpstream(t *testing.T, status int, contentType, body string) *upstream {
	t.Helper()

	u := &upstream{
		status:      status,
		contentType: contentType,
		body:        body,
	}
	u.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, err := io.ReadAll(r.Body)
		if err != nil {
			t.Errorf("read body: %v", err)
		}
		u.mu.Lock()
		u.requests = append(u.requests, upstreamRequest{
			Method:   r.Method,
			RawQuery: r.URL.RawQuery,
			Header:   r.Header.Clone(),
			Body:     string(b),
		})
		u.mu.Unlock()

		if u.contentType == "" {
			w.Header()["Content-Type"] = nil
		} else {
			w.Header().Set("Content-Type", u.contentType)
		}
		w.WriteHeader(u.status)
		io.WriteString(w, u.body) //nolint:errcheck // test
	}))
	t.Cleanup(u.Close)

	return u
}

func (u *upstream) Requests() []upstreamRequest {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]upstreamRequest(nil), u.requests...)
}

func newTestForwarder(t *testing.T, upstreamURL string, c HTTPClient, opts ...func(*ForwarderConfig)) *Forwarder {
	t.Helper()

	cfg := DefaultForwarderConfig()
	cfg.UpstreamURL = upstreamURL
	cfg.PromRegistry = prometheus.NewRegistry()
	for _, opt := range opts {
		opt(cfg)
	}
	if c == nil {
		c = http.DefaultClient
	}
	f, err := NewForwarder(cfg, c, nil)
	if err != nil {
		t.Fatal(err)
	}
	return f
}

func httptestServer(t *testing.T, h http.Handler) *httptest.Server {
	t.Helper()

	s := httptest.NewServer(h)
	t.Cleanup(s.Close)
	return s
}

func expectRelay(t *testing.T, f *Forwarder) *httpexpect.Expect {
	t.Helper()
	return httpexpect.Default(t, httptestServer(t, f).URL)
}

func TestForwarderMethodNotAllowed(t *testing.T) {
	u := newUpstream(t, http.StatusOK, contentTypeJSON, `["ok"]`)
	e := expectRelay(t, newTestForwarder(t, u.URL, nil))

	for _, m := range []string{
		http.MethodGet,
		http.MethodPut,
		http.MethodDelete,
		http.MethodPatch,
		http.MethodOptions,
	} {
		t.Run(m, func(t *testing.T) {
			r := e.Request(m, "/").WithQuery(FirmwareVersionParam, "1.0").Expect()
			r.Status(http.StatusMethodNotAllowed)
			r.Header("Allow").IsEqual(http.MethodPost)
			r.JSON().Object().IsEqual(map[string]any{"error": "Method not allowed"})
		})
	}

	if n := len(u.Requests()); n != 0 {
		t.Fatalf("expected no upstream requests, got %d", n)
	}
}

func TestForwarderMissingFirmwareVersion(t *testing.T) {
	u := newUpstream(t, http.StatusOK, contentTypeJSON, `["ok"]`)
	e := expectRelay(t, newTestForwarder(t, u.URL, nil))

	e.POST("/").WithBytes([]byte(`{"hex_strings":[]}`)).
		Expect().
		Status(http.StatusBadRequest).
		JSON().Object().IsEqual(map[string]any{"error": "firmwareVersion query parameter is required"})

	e.POST("/").WithQuery(FirmwareVersionParam, "").
		Expect().
		Status(http.StatusBadRequest).
		JSON().Object().Value("error").IsEqual("firmwareVersion query parameter is required")

	if n := len(u.Requests()); n != 0 {
		t.Fatalf("expected no upstream requests, got %d", n)
	}
}

func TestForwarderFirmwareVersionEncoding(t *testing.T) {
	tests := []struct {
		fw   string
		want string
	}{
		{fw: "3.1.0", want: "firmwareVersion=3.1.0"},
		{fw: "1.2 beta&x=y", want: "firmwareVersion=1.2%20beta%26x%3Dy"},
		{fw: "a/b%20c", want: "firmwareVersion=a%2Fb%2520c"},
		{fw: "1.2 beta(rc)!", want: "firmwareVersion=1.2%20beta(rc)!"},
		{fw: "it's*~_-.", want: "firmwareVersion=it's*~_-."},
		{fw: "1+2", want: "firmwareVersion=1%2B2"},
		{fw: "v1/ü", want: "firmwareVersion=v1%2F%C3%BC"},
	}

	for i := range tests {
		tc := tests[i]
		t.Run(tc.fw, func(t *testing.T) {
			u := newUpstream(t, http.StatusOK, contentTypeJSON, `[]`)
			e := expectRelay(t, newTestForwarder(t, u.URL, nil))

			e.POST("/").WithQuery(FirmwareVersionParam, tc.fw).Expect().Status(http.StatusOK)

			reqs := u.Requests()
			if len(reqs) != 1 {
				t.Fatalf("expected 1 upstream request, got %d", len(reqs))
			}
			if reqs[0].RawQuery != tc.want {
				t.Errorf("query: got %q want %q", reqs[0].RawQuery, tc.want)
			}
			if v, _ := url.ParseQuery(reqs[0].RawQuery); v.Get(FirmwareVersionParam) != tc.fw {
				t.Errorf("decoded firmware version: got %q want %q", v.Get(FirmwareVersionParam), tc.fw)
			}
		})
	}
}

func TestForwarderHeaders(t *testing.T) {
	tests := []struct {
		name    string
		header  map[string]string
		program string
		key     []string
	}{
		{
			name:    "defaults",
			program: DefaultClientProgram,
		},
		{
			name:    "client program lower case",
			header:  map[string]string{"x-clientprogram": "Tool/2.0"},
			program: "Tool/2.0",
		},
		{
			name:    "subscription key",
			header:  map[string]string{"ocp-apim-subscription-key": "secret"},
			program: DefaultClientProgram,
			key:     []string{"secret"},
		},
		{
			name:    "empty subscription key",
			header:  map[string]string{"Ocp-Apim-Subscription-Key": ""},
			program: DefaultClientProgram,
		},
		{
			name: "inbound headers are not forwarded",
			header: map[string]string{
				"Origin":        "https://example.com",
				"Referer":       "https://example.com/app",
				"Cookie":        "session=1",
				"Authorization": "Bearer x",
			},
			program: DefaultClientProgram,
		},
	}

	for i := range tests {
		tc := tests[i]
		t.Run(tc.name, func(t *testing.T) {
			u := newUpstream(t, http.StatusOK, contentTypeJSON, `[]`)
			e := expectRelay(t, newTestForwarder(t, u.URL, nil))

			req := e.POST("/").WithQuery(FirmwareVersionParam, "1.0").WithBytes([]byte(`{}`))
			for k, v := range tc.header {
				req = req.WithHeader(k, v)
			}
			req.Expect().Status(http.StatusOK)

			reqs := u.Requests()
			if len(reqs) != 1 {
				t.Fatalf("expected 1 upstream request, got %d", len(reqs))
			}
			h := reqs[0].Header

			if ct := h.Get("Content-Type"); ct != contentTypeJSON {
				t.Errorf("Content-Type: got %q", ct)
			}
			if p := h.Get(ClientProgramHeader); p != tc.program {
				t.Errorf("client program: got %q want %q", p, tc.program)
			}
			if diff := cmp.Diff(tc.key, h.Values(SubscriptionKeyHeader)); diff != "" {
				t.Errorf("subscription key (-want +got):\n%s", diff)
			}
			for _, k := range []string{"Origin", "Referer", "Cookie", "Authorization"} {
				if v := h.Get(k); v != "" {
					t.Errorf("unexpected upstream header %s: %q", k, v)
				}
			}
		})
	}
}

func TestForwarderBodyPassthrough(t *testing.T) {
	bodies := []string{
		`{"hex_strings":["0A1B","FF00"]}`,
		`{"hex_strings": [ "0a" ], "extra": true}`,
		"not json at all",
		"",
	}

	for _, b := range bodies {
		u := newUpstream(t, http.StatusOK, contentTypeJSON, `[]`)
		e := expectRelay(t, newTestForwarder(t, u.URL, nil))

		e.POST("/").WithQuery(FirmwareVersionParam, "1.0").WithBytes([]byte(b)).Expect().Status(http.StatusOK)

		reqs := u.Requests()
		if len(reqs) != 1 {
			t.Fatalf("expected 1 upstream request, got %d", len(reqs))
		}
		if reqs[0].Method != http.MethodPost {
			t.Errorf("method: got %s", reqs[0].Method)
		}
		if reqs[0].Body != b {
			t.Errorf("body: got %q want %q", reqs[0].Body, b)
		}
	}
}

func TestForwarderRelaysUpstreamResponse(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		contentType string
		body        string
		wantCT      string
	}{
		{
			name:        "ok",
			status:      http.StatusOK,
			contentType: contentTypeJSON,
			body:        `["line 1","line 2"]`,
			wantCT:      contentTypeJSON,
		},
		{
			name:        "unauthorized",
			status:      http.StatusUnauthorized,
			contentType: contentTypeJSON,
			body:        `{"statusCode":401,"message":"Access denied due to missing subscription key."}`,
			wantCT:      contentTypeJSON,
		},
		{
			name:        "server error text",
			status:      http.StatusInternalServerError,
			contentType: "text/plain; charset=utf-8",
			body:        "boom",
			wantCT:      "text/plain; charset=utf-8",
		},
		{
			name:   "missing content type",
			status: http.StatusOK,
			body:   `["x"]`,
			wantCT: contentTypeJSON,
		},
		{
			name:        "empty body",
			status:      http.StatusServiceUnavailable,
			contentType: contentTypeJSON,
			wantCT:      contentTypeJSON,
		},
	}

	for i := range tests {
		tc := tests[i]
		t.Run(tc.name, func(t *testing.T) {
			u := newUpstream(t, tc.status, tc.contentType, tc.body)
			e := expectRelay(t, newTestForwarder(t, u.URL, nil))

			r := e.POST("/").WithQuery(FirmwareVersionParam, "1.0").Expect()
			r.Status(tc.status)
			r.Header("Content-Type").IsEqual(tc.wantCT)
			r.Body().IsEqual(tc.body)

			if n := len(u.Requests()); n != 1 {
				t.Fatalf("expected exactly 1 upstream request, got %d", n)
			}
		})
	}
}

type clientFunc func(req *http.Request) (*http.Response, error)

func (f clientFunc) Do(req *http.Request) (*http.Response, error) {
	return f(req)
}

func TestForwarderUpstreamUnreachable(t *testing.T) {
	var calls atomic.Int32
	c := clientFunc(func(req *http.Request) (*http.Response, error) {
		calls.Add(1)
		return nil, errors.New("dial tcp: connection refused")
	})
	e := expectRelay(t, newTestForwarder(t, DefaultUpstreamURL, c))

	e.POST("/").WithQuery(FirmwareVersionParam, "1.0").WithBytes([]byte(`{}`)).
		Expect().
		Status(http.StatusBadGateway).
		JSON().Object().IsEqual(map[string]any{
		"error":   "Failed to reach WCloud API",
		"details": "dial tcp: connection refused",
	})

	if n := calls.Load(); n != 1 {
		t.Fatalf("expected exactly 1 call, got %d", n)
	}
}

func TestForwarderClosedUpstream(t *testing.T) {
	u := newUpstream(t, http.StatusOK, contentTypeJSON, `[]`)
	u.Close()

	e := expectRelay(t, newTestForwarder(t, u.URL, nil))
	obj := e.POST("/").WithQuery(FirmwareVersionParam, "1.0").
		Expect().
		Status(http.StatusBadGateway).
		JSON().Object()
	obj.Value("error").IsEqual(UpstreamErrorMessage)
	obj.Value("details").String().NotEmpty()
}

func TestForwarderResponseHeaders(t *testing.T) {
	var hs header.Headers
	for _, v := range []string{
		"Access-Control-Allow-Origin: *",
		"-X-Upstream*",
	} {
		h, err := header.ParseHeader(v)
		if err != nil {
			t.Fatal(err)
		}
		hs = append(hs, h)
	}

	u := newUpstream(t, http.StatusOK, contentTypeJSON, `[]`)
	e := expectRelay(t, newTestForwarder(t, u.URL, nil, func(cfg *ForwarderConfig) {
		cfg.ResponseHeaders = hs
	}))

	e.POST("/").WithQuery(FirmwareVersionParam, "1.0").
		Expect().
		Status(http.StatusOK).
		Header("Access-Control-Allow-Origin").IsEqual("*")

	e.GET("/").
		Expect().
		Status(http.StatusMethodNotAllowed).
		Header("Access-Control-Allow-Origin").IsEqual("*")
}

func TestForwardDirect(t *testing.T) {
	u := newUpstream(t, http.StatusOK, contentTypeJSON, `["decoded"]`)
	f := newTestForwarder(t, u.URL, nil)

	q := url.Values{FirmwareVersionParam: []string{"2.0"}}
	h := http.Header{}
	h.Set("X-ClientProgram", "Direct/1.0")

	resp, err := f.Forward(context.Background(), http.MethodPost, q, h, []byte(`{"hex_strings":["AA"]}`))
	if err != nil {
		t.Fatal(err)
	}
	want := &UpstreamResponse{
		StatusCode:  http.StatusOK,
		ContentType: contentTypeJSON,
		Body:        []byte(`["decoded"]`),
	}
	if diff := cmp.Diff(want, resp); diff != "" {
		t.Fatalf("unexpected response (-want +got):\n%s", diff)
	}

	_, err = f.Forward(context.Background(), http.MethodGet, q, h, nil)
	var ce *ClientError
	if !errors.As(err, &ce) || ce.Status != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405 client error, got %v", err)
	}
}

func TestForwarderMetrics(t *testing.T) {
	u := newUpstream(t, http.StatusTooManyRequests, contentTypeJSON, `{}`)
	f := newTestForwarder(t, u.URL, nil)
	e := expectRelay(t, f)

	e.POST("/").WithQuery(FirmwareVersionParam, "1.0").Expect().Status(http.StatusTooManyRequests)
	e.POST("/").WithQuery(FirmwareVersionParam, "1.0").Expect().Status(http.StatusTooManyRequests)
	e.POST("/").Expect().Status(http.StatusBadRequest)
	e.GET("/").Expect().Status(http.StatusMethodNotAllowed)

	if v := testutil.ToFloat64(f.metrics.upstreamResponses.WithLabelValues("429")); v != 2 {
		t.Errorf("upstream responses: got %v", v)
	}
	if v := testutil.ToFloat64(f.metrics.rejectedRequests.WithLabelValues("400")); v != 1 {
		t.Errorf("rejected 400: got %v", v)
	}
	if v := testutil.ToFloat64(f.metrics.rejectedRequests.WithLabelValues("405")); v != 1 {
		t.Errorf("rejected 405: got %v", v)
	}

	c := clientFunc(func(req *http.Request) (*http.Response, error) {
		return nil, context.DeadlineExceeded
	})
	f = newTestForwarder(t, DefaultUpstreamURL, c)
	expectRelay(t, f).POST("/").WithQuery(FirmwareVersionParam, "1.0").Expect().Status(http.StatusBadGateway)

	if v := testutil.ToFloat64(f.metrics.upstreamErrors.WithLabelValues("timeout")); v != 1 {
		t.Errorf("upstream errors: got %v", v)
	}
}

func TestForwarderConfigValidate(t *testing.T) {
	tests := []struct {
		url string
		err string
	}{
		{url: DefaultUpstreamURL},
		{url: "http://localhost:8080/api"},
		{url: "ftp://example.com", err: "unsupported scheme"},
		{url: "https://", err: "missing host"},
		{url: "://bad", err: "upstream URL"},
	}

	for _, tc := range tests {
		cfg := DefaultForwarderConfig()
		cfg.UpstreamURL = tc.url
		err := cfg.Validate()
		if tc.err == "" {
			if err != nil {
				t.Errorf("%s: unexpected error %v", tc.url, err)
			}
			continue
		}
		if err == nil || !strings.Contains(err.Error(), tc.err) {
			t.Errorf("%s: expected error containing %q, got %v", tc.url, tc.err, err)
		}
	}
}

func TestUpstreamURLKeepsBaseQuery(t *testing.T) {
	got, err := upstreamURL("https://example.com/api?code=abc", "1 2")
	if err != nil {
		t.Fatal(err)
	}
	if want := "https://example.com/api?code=abc&firmwareVersion=1%202"; got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestForwarderDebugLogRedactsSubscriptionKey(t *testing.T) {
	u := newUpstream(t, http.StatusOK, contentTypeJSON, `["ok"]`)

	var buf syncBuffer
	cfg := DefaultForwarderConfig()
	cfg.UpstreamURL = u.URL
	cfg.PromRegistry = prometheus.NewRegistry()
	f, err := NewForwarder(cfg, http.DefaultClient, slog.NewWithWriter(&buf, &log.Config{Level: log.DebugLevel, Format: log.TextFormat}))
	if err != nil {
		t.Fatal(err)
	}

	expectRelay(t, f).POST("/").
		WithQuery(FirmwareVersionParam, "1.0").
		WithHeader(SubscriptionKeyHeader, "0123456789abcdef").
		WithText(`{"hex_strings":[]}`).
		Expect().
		Status(http.StatusOK)

	out := buf.String()
	if strings.Contains(out, "0123456789abcdef") {
		t.Fatalf("subscription key leaked to logs:\n%s", out)
	}
	if !strings.Contains(out, "subscription_key=xxxxx") {
		t.Fatalf("expected redacted subscription key in logs:\n%s", out)
	}
}

type syncBuffer struct {
	mu sync.Mutex
	b  strings.Builder
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.String()
}

func TestForwardHeadersFromHeader(t *testing.T) {
	key := "0123456789abcdef"
	tests := []struct {
		name   string
		header http.Header
		want   ForwardHeaders
	}{
		{
			name:   "canonical",
			header: http.Header{"X-Clientprogram": {"App/1.0"}, "Ocp-Apim-Subscription-Key": {key}},
			want:   ForwardHeaders{ClientProgram: "App/1.0", SubscriptionKey: &key},
		},
		{
			name:   "lower case",
			header: http.Header{"x-clientprogram": {"App/1.0"}, "ocp-apim-subscription-key": {key}},
			want:   ForwardHeaders{ClientProgram: "App/1.0", SubscriptionKey: &key},
		},
		{
			name:   "raw",
			header: http.Header{"x-ClientProgram": {"App/1.0"}},
			want:   ForwardHeaders{ClientProgram: "App/1.0"},
		},
		{
			name:   "empty",
			header: http.Header{"x-clientprogram": {""}, "ocp-apim-subscription-key": {""}},
			want:   ForwardHeaders{ClientProgram: DefaultClientProgram},
		},
	}

	for i := range tests {
		tc := tests[i]
		t.Run(tc.name, func(t *testing.T) {
			got := ForwardHeadersFromHeader(tc.header, DefaultClientProgram)
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("unexpected headers (-want +got):\n%s", diff)
			}
		})
	}
}
