// Copyright 2022-2026 Sauce Labs Inc., all rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package clprelay

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/hainspector/clprelay/header"
	"github.com/hainspector/clprelay/log"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	// DefaultUpstreamURL is the WCloud CrashLogProcessor endpoint.
	DefaultUpstreamURL = "https://apimgmt.widex.com/clp/v1/api/CrashLogProcessor/processArrayOfStrings"

	// DefaultClientProgram is sent upstream when the client does not identify itself.
	DefaultClientProgram = "HAInspector/1.0"

	FirmwareVersionParam  = "firmwareVersion"
	ClientProgramHeader   = "x-ClientProgram"
	SubscriptionKeyHeader = "Ocp-Apim-Subscription-Key"

	contentTypeJSON = "application/json"
)

// Routes of the relay, they match the serverless deployment.
const (
	LogProcessorPath = "/api/logprocessor"
	GeoPath          = "/api/geo"
)

// HTTPClient represents the subset of *http.Client used to call upstream.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// ForwardHeaders is the client identity forwarded upstream.
type ForwardHeaders struct {
	ClientProgram string

	// SubscriptionKey is nil when the key must not be sent.
	// Upstream gateways treat an empty key header differently than a missing one.
	SubscriptionKey *string
}

// ForwardHeadersFromHeader extracts ForwardHeaders from inbound request headers.
// Header names are matched case-insensitively, h may have non-canonical keys.
func ForwardHeadersFromHeader(h http.Header, defaultClientProgram string) ForwardHeaders {
	fh := ForwardHeaders{
		ClientProgram: headerValue(h, ClientProgramHeader),
	}
	if fh.ClientProgram == "" {
		fh.ClientProgram = defaultClientProgram
	}
	if k := headerValue(h, SubscriptionKeyHeader); k != "" {
		fh.SubscriptionKey = &k
	}
	return fh
}

// headerValue returns the first value of name, falling back to a case-folded key scan.
func headerValue(h http.Header, name string) string {
	if v := h.Get(name); v != "" {
		return v
	}
	for k, vv := range h {
		if len(vv) > 0 && vv[0] != "" && strings.EqualFold(k, name) {
			return vv[0]
		}
	}
	return ""
}

func (fh ForwardHeaders) apply(h http.Header) {
	h.Set("Content-Type", contentTypeJSON)
	// Non-canonical keys are written to the wire as-is.
	h[ClientProgramHeader] = []string{fh.ClientProgram}
	if fh.SubscriptionKey != nil {
		h.Set(SubscriptionKeyHeader, *fh.SubscriptionKey)
	}
}

func (fh ForwardHeaders) secret() log.Secret {
	if fh.SubscriptionKey == nil {
		return ""
	}
	return log.Secret(*fh.SubscriptionKey)
}

// componentUnescaper reverts the url.QueryEscape output that differs from
// JavaScript encodeURIComponent: spaces are %20 and !'()* are kept literal.
var componentUnescaper = strings.NewReplacer(
	"+", "%20",
	"%21", "!",
	"%27", "'",
	"%28", "(",
	"%29", ")",
	"%2A", "*",
)

// escapeComponent percent-encodes s the way encodeURIComponent does.
func escapeComponent(s string) string {
	return componentUnescaper.Replace(url.QueryEscape(s))
}

// upstreamURL appends the firmware version query to base.
// The value is escaped exactly once, any query already present in base is kept.
func upstreamURL(base, firmwareVersion string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse upstream URL: %w", err)
	}
	q := FirmwareVersionParam + "=" + escapeComponent(firmwareVersion)
	if u.RawQuery != "" {
		u.RawQuery += "&" + q
	} else {
		u.RawQuery = q
	}
	return u.String(), nil
}

func newUpstreamRequest(ctx context.Context, base, firmwareVersion string, fh ForwardHeaders, body []byte) (*http.Request, error) {
	u, err := upstreamURL(base, firmwareVersion)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	fh.apply(req.Header)
	return req, nil
}

// UpstreamResponse is the upstream reply relayed to the client without reinterpretation.
type UpstreamResponse struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

type ForwarderConfig struct {
	// UpstreamURL is fixed for the lifetime of the Forwarder.
	UpstreamURL          string
	DefaultClientProgram string

	// ResponseHeaders are applied to every response written by ServeHTTP.
	ResponseHeaders header.Headers

	PromRegistry  prometheus.Registerer
	PromNamespace string
}

func DefaultForwarderConfig() *ForwarderConfig {
	return &ForwarderConfig{
		UpstreamURL:          DefaultUpstreamURL,
		DefaultClientProgram: DefaultClientProgram,
		PromNamespace:        "clprelay",
	}
}

func (c *ForwarderConfig) Validate() error {
	u, err := url.Parse(c.UpstreamURL)
	if err != nil {
		return fmt.Errorf("upstream URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("upstream URL: unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("upstream URL: missing host")
	}
	return nil
}

// Forwarder relays log processing requests to the upstream API.
// It holds no per-request state and is safe for concurrent use.
type Forwarder struct {
	config  ForwarderConfig
	client  HTTPClient
	log     log.StructuredLogger
	metrics *forwarderMetrics
}

func NewForwarder(cfg *ForwarderConfig, c HTTPClient, logger log.StructuredLogger) (*Forwarder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.NopLogger
	}
	if c == nil {
		tr, err := NewHTTPTransport(DefaultHTTPTransportConfig())
		if err != nil {
			return nil, err
		}
		c = &http.Client{Transport: tr}
	}

	f := &Forwarder{
		config:  *cfg,
		client:  c,
		log:     logger,
		metrics: newForwarderMetrics(cfg.PromRegistry, cfg.PromNamespace),
	}
	if f.config.DefaultClientProgram == "" {
		f.config.DefaultClientProgram = DefaultClientProgram
	}

	return f, nil
}

// Forward performs a single upstream call for the inbound request.
// It returns *ClientError for malformed requests, without contacting upstream,
// and *UpstreamError when upstream cannot be reached.
// Upstream error statuses are not errors, they are returned as UpstreamResponse.
func (f *Forwarder) Forward(ctx context.Context, method string, query url.Values, h http.Header, body []byte) (*UpstreamResponse, error) {
	if method != http.MethodPost {
		f.metrics.rejected(http.StatusMethodNotAllowed)
		return nil, ErrMethodNotAllowed
	}
	fw := query.Get(FirmwareVersionParam)
	if fw == "" {
		f.metrics.rejected(http.StatusBadRequest)
		return nil, ErrMissingFirmwareVersion
	}

	fh := ForwardHeadersFromHeader(h, f.config.DefaultClientProgram)
	req, err := newUpstreamRequest(ctx, f.config.UpstreamURL, fw, fh, body)
	if err != nil {
		return nil, f.upstreamError(ctx, err)
	}

	f.log.DebugContext(ctx, "upstream request",
		"url", req.URL.String(),
		"client_program", fh.ClientProgram,
		"subscription_key", fh.secret(),
		"body", truncate(body, 200),
	)

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, f.upstreamError(ctx, err)
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, f.upstreamError(ctx, fmt.Errorf("read upstream response: %w", err))
	}

	ur := &UpstreamResponse{
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        b,
	}
	if ur.ContentType == "" {
		ur.ContentType = contentTypeJSON
	}
	f.metrics.upstreamResponse(ur.StatusCode, time.Since(start))

	f.log.DebugContext(ctx, "upstream response",
		"status", ur.StatusCode,
		"content_type", resp.Header.Get("Content-Type"),
		"size", humanize.Bytes(uint64(len(b))),
		"duration", time.Since(start),
		"body", truncate(b, 300),
	)

	return ur, nil
}

func (f *Forwarder) upstreamError(ctx context.Context, err error) error {
	reason := classifyUpstreamError(err)
	f.metrics.upstreamError(reason)
	f.log.ErrorContext(ctx, "failed to reach upstream", "reason", reason, "error", err)
	return &UpstreamError{Err: err}
}

func (f *Forwarder) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	fl := *f
	fl.log = f.log.With("id", uuid.NewString())

	var body []byte
	if r.Method == http.MethodPost {
		var err error
		body, err = io.ReadAll(r.Body)
		if err != nil {
			fl.log.InfoContext(ctx, "failed to read request body", "error", err)
			fl.writeError(w, &ClientError{Status: http.StatusBadRequest, Message: "Failed to read request body"})
			return
		}
	}

	resp, err := fl.Forward(ctx, r.Method, r.URL.Query(), r.Header, body)
	if err != nil {
		fl.writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", resp.ContentType)
	f.config.ResponseHeaders.Apply(w.Header())
	w.WriteHeader(resp.StatusCode)
	if _, err := w.Write(resp.Body); err != nil {
		fl.log.DebugContext(ctx, "failed to write response", "error", err)
	}
}

func (f *Forwarder) writeError(w http.ResponseWriter, err error) {
	f.config.ResponseHeaders.Apply(w.Header())
	WriteError(w, err)
}

func truncate(b []byte, n int) string {
	if len(b) == 0 {
		return "(empty)"
	}
	if len(b) > n {
		b = b[:n]
	}
	return string(b)
}
