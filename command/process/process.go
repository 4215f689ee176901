// Copyright 2022-2026 Sauce Labs Inc., all rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package process

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/hainspector/clprelay"
	"github.com/hainspector/clprelay/bind"
	"github.com/spf13/cobra"
)

type command struct {
	clientConfig        *clprelay.ClientConfig
	httpTransportConfig *clprelay.HTTPTransportConfig
	firmwareVersion     string
	input               string
	timeout             time.Duration
}

func (c *command) runE(cmd *cobra.Command, args []string) error {
	if len(args) > 0 {
		c.input = args[0]
	}

	tr, err := clprelay.NewHTTPTransport(c.httpTransportConfig)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	b, err := clprelay.ReadInput(ctx, c.input, cmd.InOrStdin(), tr)
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}

	hexStrings, err := parseHexStrings(b)
	if err != nil {
		return err
	}

	cl := clprelay.NewClient(c.clientConfig, &http.Client{Transport: tr})

	lines, err := cl.ProcessLog(ctx, c.firmwareVersion, hexStrings)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	for _, l := range lines {
		if _, err := fmt.Fprintln(w, l); err != nil {
			return err
		}
	}
	return nil
}

// parseHexStrings accepts a JSON array of strings, a JSON log request object
// or whitespace separated hex strings.
func parseHexStrings(b []byte) ([]string, error) {
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return nil, nil
	}

	switch b[0] {
	case '[':
		var v []string
		if err := json.Unmarshal(b, &v); err != nil {
			return nil, fmt.Errorf("parse input: %w", err)
		}
		return v, nil
	case '{':
		var v clprelay.LogRequest
		if err := json.Unmarshal(b, &v); err != nil {
			return nil, fmt.Errorf("parse input: %w", err)
		}
		return v.HexStrings, nil
	default:
		return strings.Fields(string(b)), nil
	}
}

func Command() *cobra.Command {
	c := command{
		clientConfig:        clprelay.DefaultClientConfig(),
		httpTransportConfig: clprelay.DefaultHTTPTransportConfig(),
		timeout:             time.Minute,
	}

	cmd := &cobra.Command{
		Use:     "process --firmware-version <version> [<path>|<url>|-]",
		Short:   "Decode a hearing aid log using the log processor API",
		Long:    long,
		Example: example,
		Args:    cobra.MaximumNArgs(1),
		RunE:    c.runE,
	}

	fs := cmd.Flags()
	fs.StringVarP(&c.firmwareVersion,
		"firmware-version", "f", c.firmwareVersion, "<version>"+
			"Firmware version of the hearing aid the log was read from. ")
	fs.DurationVar(&c.timeout,
		"timeout", c.timeout,
		"Timeout of the whole call, zero means no timeout. ")
	bind.ClientConfig(fs, c.clientConfig)
	bind.HTTPTransportConfig(fs, c.httpTransportConfig)

	bind.MarkFlagRequired(cmd, "firmware-version")

	return cmd
}

const long = `Decode a hearing aid log using the log processor API.
The input is read from the path or URL given as argument, or from stdin.
Supported URL schemes are file, http, https and data (data:base64,<encoded data>).
It can be a JSON array of hex strings, a {"hex_strings": [...]} object, or whitespace separated hex strings.
Decoded lines are printed one per line.
The access point can be the log processor API or a running relay.`

const example = `  # Decode hex strings from a file using the API directly
  clprelay process -f 3.2.1 -k $SUBSCRIPTION_KEY log.txt

  # Decode a log published over HTTP
  clprelay process -f 3.2.1 -k $SUBSCRIPTION_KEY https://example.com/logs/1234.json

  # Decode through a local relay
  echo '["0A1B","FF00"]' | clprelay process -f 3.2.1 -a http://localhost:3000/api/logprocessor
`
