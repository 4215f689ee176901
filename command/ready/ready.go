// Copyright 2022-2026 Sauce Labs Inc., all rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package ready

import (
	"errors"
	"fmt"
	"time"

	"github.com/hainspector/clprelay/command/internal/apiclient"
	"github.com/spf13/cobra"
)

type Config struct {
	APIAddress string
	Timeout    time.Duration

	// Liveness checks /healthz instead of /readyz.
	Liveness bool
}

func DefaultConfig() Config {
	return Config{
		APIAddress: "localhost:10000",
		Timeout:    2 * time.Second,
	}
}

type command struct {
	apiclient.Client
	liveness bool
}

func (c *command) endpoint() string {
	if c.liveness {
		return "/healthz"
	}
	return "/readyz"
}

func (c *command) runE(cmd *cobra.Command, _ []string) error {
	_, err := c.Get(cmd.Context(), c.endpoint())

	var se *apiclient.StatusError
	if errors.As(err, &se) {
		fmt.Fprintf(cmd.ErrOrStderr(), "%s %d: %s\n", c.endpoint(), se.Code, se.Body)
	}
	return err
}

func Command() *cobra.Command {
	return CommandWithConfig(DefaultConfig())
}

func CommandWithConfig(cfg Config) *cobra.Command {
	c := command{
		Client: apiclient.Client{
			Addr:    cfg.APIAddress,
			Timeout: cfg.Timeout,
		},
		liveness: cfg.Liveness,
	}

	cmd := &cobra.Command{
		Use:   "ready [--api-address <host:port>] [--liveness]",
		Short: "Readiness probe for the relay",
		Long:  long,
		Args:  cobra.NoArgs,
		RunE:  c.runE,
	}

	fs := cmd.Flags()
	c.Bind(fs, "The API server address. ")
	fs.BoolVar(&c.liveness,
		"liveness", c.liveness,
		"Check the /healthz endpoint instead of /readyz. ")

	return cmd
}

const long = `Readiness probe for the relay.
This is equivalent to calling the /readyz endpoint on the relay API server,
it succeeds once the relay server is listening.
With --liveness the /healthz endpoint is checked, it succeeds while the process serves the API.`
