// Copyright 2022-2026 Sauce Labs Inc., all rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package clprelay

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/go-playground/validator/v10"
)

// LogRequest is the input of a single log processing call.
type LogRequest struct {
	FirmwareVersion string   `json:"-" validate:"required"`
	HexStrings      []string `json:"hex_strings" validate:"dive,required,hexadecimal"`
}

type ClientConfig struct {
	// ClientProgram identifies the calling application, e.g. "HAInspector/1.0".
	ClientProgram string

	// SubscriptionKey is issued by WCloud, empty means the header is not sent.
	SubscriptionKey string

	// AccessPoint overrides DefaultUpstreamURL, it may point to a relay.
	AccessPoint string
}

func DefaultClientConfig() *ClientConfig {
	return &ClientConfig{
		ClientProgram: DefaultClientProgram,
		AccessPoint:   DefaultUpstreamURL,
	}
}

// Client calls the log processor API directly or through a relay.
type Client struct {
	config   ClientConfig
	client   HTTPClient
	validate *validator.Validate
}

func NewClient(cfg *ClientConfig, c HTTPClient) *Client {
	if c == nil {
		c = http.DefaultClient
	}
	cl := &Client{
		config:   *cfg,
		client:   c,
		validate: validator.New(),
	}
	if cl.config.AccessPoint == "" {
		cl.config.AccessPoint = DefaultUpstreamURL
	}
	if cl.config.ClientProgram == "" {
		cl.config.ClientProgram = DefaultClientProgram
	}
	return cl
}

func (c *Client) forwardHeaders() ForwardHeaders {
	fh := ForwardHeaders{ClientProgram: c.config.ClientProgram}
	if c.config.SubscriptionKey != "" {
		k := c.config.SubscriptionKey
		fh.SubscriptionKey = &k
	}
	return fh
}

// ProcessLog sends hex encoded log lines for decoding and returns the decoded lines.
// Non-2xx responses are returned as *StatusError.
func (c *Client) ProcessLog(ctx context.Context, firmwareVersion string, hexStrings []string) ([]string, error) {
	lr := LogRequest{
		FirmwareVersion: firmwareVersion,
		HexStrings:      hexStrings,
	}
	if err := c.validate.Struct(lr); err != nil {
		return nil, fmt.Errorf("invalid log request: %w", err)
	}
	if lr.HexStrings == nil {
		lr.HexStrings = []string{}
	}

	body, err := json.Marshal(lr)
	if err != nil {
		return nil, err
	}
	req, err := newUpstreamRequest(ctx, c.config.AccessPoint, lr.FirmwareVersion, c.forwardHeaders(), body)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: b}
	}

	var lines []string
	if err := json.Unmarshal(b, &lines); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return lines, nil
}
