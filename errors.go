// Copyright 2022-2026 Sauce Labs Inc., all rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package clprelay

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// ClientError is a malformed inbound request, it is rejected before contacting upstream.
type ClientError struct {
	Status  int
	Message string
	// Allow is set for 405 responses.
	Allow string
}

func (e *ClientError) Error() string {
	return e.Message
}

var (
	ErrMethodNotAllowed = &ClientError{
		Status:  http.StatusMethodNotAllowed,
		Message: "Method not allowed",
		Allow:   http.MethodPost,
	}
	ErrMissingFirmwareVersion = &ClientError{
		Status:  http.StatusBadRequest,
		Message: "firmwareVersion query parameter is required",
	}
)

// UpstreamErrorMessage is the error reported to clients when upstream cannot be reached.
const UpstreamErrorMessage = "Failed to reach WCloud API"

// UpstreamError is a transport level failure reaching upstream.
// It is not used for upstream responses with error status codes.
type UpstreamError struct {
	Err error
}

func (e *UpstreamError) Error() string {
	return UpstreamErrorMessage + ": " + e.Err.Error()
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// StatusError is returned by Client when upstream responds with a non-2xx status.
type StatusError struct {
	StatusCode int
	Body       []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status code %d: %s", e.StatusCode, truncate(e.Body, 300))
}

// errorEnvelope is the JSON error body, Details is set only for upstream failures.
type errorEnvelope struct {
	Error   string  `json:"error"`
	Details *string `json:"details,omitempty"`
}

// WriteError writes err as a JSON error envelope.
// Unknown errors are reported as 500 without details.
func WriteError(w http.ResponseWriter, err error) {
	var (
		code int
		env  errorEnvelope
	)

	var (
		ce *ClientError
		ue *UpstreamError
	)
	switch {
	case errors.As(err, &ce):
		code = ce.Status
		env.Error = ce.Message
		if ce.Allow != "" {
			w.Header().Set("Allow", ce.Allow)
		}
	case errors.As(err, &ue):
		code = http.StatusBadGateway
		env.Error = UpstreamErrorMessage
		details := ue.Err.Error()
		env.Details = &details
	default:
		code = http.StatusInternalServerError
		env.Error = "An unexpected error occurred"
	}

	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(env) //nolint:errcheck // best effort
}

type errorClassifier func(error) string

// classifyUpstreamError returns a metrics label for a transport failure.
func classifyUpstreamError(err error) string {
	classifiers := []errorClassifier{
		classifyCanceled,
		classifyTimeout,
		classifyDNSError,
		classifyTLSError,
		classifyNetError,
	}
	for _, c := range classifiers {
		if label := c(err); label != "" {
			return label
		}
	}
	return "unexpected"
}

func classifyCanceled(err error) string {
	if errors.Is(err, context.Canceled) {
		return "canceled"
	}
	return ""
}

//nolint:errorlint // net.Error is an interface
func classifyTimeout(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "timeout"
	}
	return ""
}

func classifyDNSError(err error) string {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return "dns"
	}
	return ""
}

func classifyTLSError(err error) string {
	var certErr *tls.CertificateVerificationError
	if errors.As(err, &certErr) {
		return "tls_certificate"
	}
	var headerErr tls.RecordHeaderError
	if errors.As(err, &headerErr) {
		return "tls_record_header"
	}
	return ""
}

func classifyNetError(err error) string {
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return "net_" + opErr.Op
	}
	return ""
}
