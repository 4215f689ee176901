// Copyright 2022-2026 Sauce Labs Inc., all rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package clprelay

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
)

// ReadInput reads log input from name.
// The name can be "-" or empty for r, a local path, a file URL,
// an http or https URL fetched with rt, or a data URI in the form data:base64,<encoded data>.
func ReadInput(ctx context.Context, name string, r io.Reader, rt http.RoundTripper) ([]byte, error) {
	if name == "" || name == "-" {
		return io.ReadAll(r)
	}
	if strings.HasPrefix(name, "data:") {
		return readData(name[len("data:"):])
	}

	u, err := url.Parse(name)
	if err != nil || u.Scheme == "" || len(u.Scheme) == 1 {
		return os.ReadFile(name)
	}

	switch u.Scheme {
	case "file":
		return readFile(u)
	case "http", "https":
		return readHTTP(ctx, u, rt)
	default:
		return nil, fmt.Errorf("unsupported scheme %q, supported schemes are: data, file, http and https", u.Scheme)
	}
}

func readData(v string) ([]byte, error) {
	v = strings.TrimPrefix(v, "//")

	idx := strings.IndexByte(v, ',')
	if idx != -1 {
		if v[:idx] != "base64" {
			return nil, fmt.Errorf("invalid data URI, the only supported format is: data:base64,<encoded data>")
		}
		v = v[idx+1:]
	}

	return base64.StdEncoding.DecodeString(v)
}

func readFile(u *url.URL) ([]byte, error) {
	if u.Host != "" {
		return nil, fmt.Errorf("invalid file URL %q, host is not allowed", u.String())
	}
	if u.User != nil {
		return nil, fmt.Errorf("invalid file URL %q, user is not allowed", u.String())
	}
	if u.RawQuery != "" {
		return nil, fmt.Errorf("invalid file URL %q, query is not allowed", u.String())
	}
	if u.Fragment != "" {
		return nil, fmt.Errorf("invalid file URL %q, fragment is not allowed", u.String())
	}
	if u.Path == "" {
		return nil, fmt.Errorf("invalid file URL %q, path is empty", u.String())
	}

	return os.ReadFile(u.Path)
}

func readHTTP(ctx context.Context, u *url.URL, rt http.RoundTripper) ([]byte, error) {
	c := http.Client{
		Transport: rt,
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), http.NoBody)
	if err != nil {
		return nil, err
	}
	resp, err := c.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code %d", resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}
