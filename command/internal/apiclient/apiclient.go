// Copyright 2022-2026 Sauce Labs Inc., all rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package apiclient queries the API server of a running relay.
package apiclient

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/spf13/pflag"
)

// StatusError is returned when the API server responds with a status other than 200 OK.
type StatusError struct {
	Code int
	Body []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status code: %d", e.Code)
}

type Client struct {
	Addr    string
	Timeout time.Duration
}

// Bind adds the API address and timeout flags.
func (c *Client) Bind(fs *pflag.FlagSet, addrUsage string) {
	fs.StringVar(&c.Addr,
		"api-address", c.Addr, "<host:port>"+addrUsage)
	fs.DurationVar(&c.Timeout,
		"timeout", c.Timeout,
		"Timeout of the request to the API server. ")
}

// URL returns the URL of path on the API server, an empty host means localhost.
func (c *Client) URL(path string) (string, error) {
	host, port, err := net.SplitHostPort(c.Addr)
	if err != nil {
		return "", err
	}
	if host == "" {
		host = "localhost"
	}
	return "http://" + net.JoinHostPort(host, port) + path, nil
}

// Get returns the response body of path.
func (c *Client) Get(ctx context.Context, path string) ([]byte, error) {
	u, err := c.URL(path)
	if err != nil {
		return nil, err
	}

	if ctx == nil {
		ctx = context.Background()
	}
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{Code: resp.StatusCode, Body: b}
	}
	return b, nil
}
