// Copyright 2022-2026 Sauce Labs Inc., all rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package metrics

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/hainspector/clprelay/command/internal/apiclient"
	"github.com/hainspector/clprelay/command/run"
	"github.com/hainspector/clprelay/utils/promutil"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

type command struct {
	apiclient.Client
	prefixes []string
}

func (c *command) runE(cmd *cobra.Command, _ []string) error {
	var (
		g   prometheus.Gatherer
		err error
	)
	if c.Addr == "" {
		g, err = run.Metrics()
	} else {
		g, err = c.scrape(cmd.Context())
	}
	if err != nil {
		return err
	}

	s, err := promutil.DumpPrometheusMetrics(g, promutil.NamePrefixFilter(c.prefixes...))
	if err != nil {
		return err
	}
	_, err = fmt.Fprint(cmd.OutOrStdout(), s)
	return err
}

func (c *command) scrape(ctx context.Context) (*promutil.Gatherer, error) {
	b, err := c.Get(ctx, "/metrics")
	if err != nil {
		return nil, err
	}
	return promutil.ParseMetricFamilies(bytes.NewReader(b))
}

func Command() *cobra.Command {
	c := command{
		Client: apiclient.Client{Timeout: 5 * time.Second},
	}

	cmd := &cobra.Command{
		Use:     "metrics [--api-address <host:port>] [--prefix <name-prefix>]...",
		Short:   "Print relay Prometheus metrics",
		Long:    long,
		Example: example,
		Args:    cobra.NoArgs,
		RunE:    c.runE,
	}

	fs := cmd.Flags()
	c.Bind(fs, "The API server address of a running relay. "+
		"If empty, the metrics registered by the run command are printed with their initial values. ")
	fs.StringSliceVar(&c.prefixes,
		"prefix", c.prefixes, "<name-prefix>"+
			"Only print metrics with names starting with the prefix. "+
			"Can be specified multiple times. ")

	return cmd
}

const long = `Print relay Prometheus metrics in the text exposition format.
Metrics are scraped from the /metrics endpoint of a running relay API server,
or, without an API address, taken from the run command registry.`

const example = `  # Print upstream metrics of a running relay
  clprelay metrics --api-address localhost:10000 --prefix clprelay_upstream

  # List metrics exposed by the relay
  clprelay metrics
`
