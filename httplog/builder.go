// Copyright 2022-2026 Sauce Labs Inc., all rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package httplog

import (
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/hainspector/clprelay/middleware"
	"golang.org/x/exp/maps"
)

const redacted = "[redacted]"

// request represents an HTTP request for structured logging.
type request struct {
	Method        string              `json:"method,omitempty"`
	URL           string              `json:"url,omitempty"`
	Protocol      string              `json:"protocol,omitempty"`
	Host          string              `json:"host,omitempty"`
	Headers       map[string][]string `json:"headers,omitempty"`
	ContentLength int64               `json:"content_length,omitempty"`
}

func (r request) String() string {
	var b strings.Builder

	b.WriteString(r.Method)
	b.WriteRune(' ')
	b.WriteString(r.URL)

	add := func(k, v string) {
		if v == "" {
			return
		}
		b.WriteString(", ")
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(v)
	}

	add("protocol", r.Protocol)
	add("host", r.Host)
	add("headers", formatMap(r.Headers))
	if r.ContentLength > 0 {
		add("content_length", strconv.FormatInt(r.ContentLength, 10))
	}

	return b.String()
}

// response represents an HTTP response for structured logging.
type response struct {
	StatusCode int                 `json:"status_code,omitempty"`
	Headers    map[string][]string `json:"headers,omitempty"`
	Written    int64               `json:"written,omitempty"`
}

func (r response) String() string {
	var b strings.Builder

	b.WriteString(strconv.Itoa(r.StatusCode))
	if h := formatMap(r.Headers); h != "" {
		b.WriteString(", headers=")
		b.WriteString(h)
	}
	if r.Written > 0 {
		b.WriteString(", written=")
		b.WriteString(strconv.FormatInt(r.Written, 10))
	}

	return b.String()
}

func formatMap(m map[string][]string) string {
	if len(m) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteByte('[')

	keys := maps.Keys(m)
	sort.Strings(keys) // Stable order.
	for i, k := range keys {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(formatSlice(m[k]))
	}

	b.WriteByte(']')
	return b.String()
}

func formatSlice(s []string) string {
	if len(s) == 0 {
		return ""
	}

	if len(s) == 1 {
		return s[0]
	}

	return "[" + strings.Join(s, ",") + "]"
}

func redactHeader(h http.Header) http.Header {
	c := h.Clone()
	for _, k := range RedactedHeaders {
		if _, ok := c[http.CanonicalHeaderKey(k)]; ok {
			c.Set(k, redacted)
		}
	}
	return c
}

type structuredLogBuilder struct {
	req      request
	res      response
	duration string
}

// WithShortURL sets the URL without the query along with basic fields.
func (b *structuredLogBuilder) WithShortURL(e middleware.LogEntry) {
	if e.Request == nil {
		return
	}
	b.initBasicFields(e, buildShortURL(e.Request.URL))
}

func buildShortURL(u *url.URL) string {
	scheme, host, path := u.Scheme, u.Host, u.Path
	if scheme != "" {
		scheme += "://"
	}
	if path != "" && path[0] != '/' {
		path = "/" + path
	}
	return scheme + host + path
}

// WithURL sets the URL using the redacted form along with basic fields.
func (b *structuredLogBuilder) WithURL(e middleware.LogEntry) {
	if e.Request == nil {
		return
	}
	b.initBasicFields(e, e.Request.URL.Redacted())
}

func (b *structuredLogBuilder) initBasicFields(e middleware.LogEntry, urlStr string) {
	b.req.Method = e.Request.Method
	b.req.URL = urlStr
	b.res.StatusCode = e.Status
	b.res.Written = e.Written
	b.duration = e.Duration.String()
}

// WithHeaders copies the request headers and the response headers with secrets redacted.
func (b *structuredLogBuilder) WithHeaders(e middleware.LogEntry) {
	req := e.Request
	if req == nil {
		return
	}

	b.req.Protocol = fmt.Sprintf("HTTP/%d.%d", req.ProtoMajor, req.ProtoMinor)
	b.req.Host = req.Host
	b.req.Headers = redactHeader(req.Header)
	if req.ContentLength >= 0 {
		b.req.ContentLength = req.ContentLength
	}

	if e.Header != nil {
		b.res.Headers = e.Header.Clone()
	}
}

// Args returns a slice of key-value pairs for logging purposes.
func (b *structuredLogBuilder) Args() []any {
	return []any{"request", b.req, "response", b.res, "duration", b.duration}
}
