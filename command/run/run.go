// Copyright 2022-2026 Sauce Labs Inc., all rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package run

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"runtime"

	"github.com/hainspector/clprelay"
	"github.com/hainspector/clprelay/bind"
	"github.com/hainspector/clprelay/header"
	"github.com/hainspector/clprelay/httplog"
	"github.com/hainspector/clprelay/internal/version"
	"github.com/hainspector/clprelay/log"
	"github.com/hainspector/clprelay/log/slog"
	"github.com/hainspector/clprelay/runctx"
	"github.com/hainspector/clprelay/utils/cobrautil"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/goleak"
	"go.uber.org/multierr"
)

type command struct {
	promReg             *prometheus.Registry
	forwarderConfig     *clprelay.ForwarderConfig
	httpTransportConfig *clprelay.HTTPTransportConfig
	responseHeaders     []header.Header
	httpServerConfig    *clprelay.HTTPServerConfig
	apiServerConfig     *clprelay.HTTPServerConfig
	logConfig           *log.Config

	dryRun bool
	goleak bool
}

func (c *command) runE(cmd *cobra.Command, _ []string) (cmdErr error) {
	onError, err := c.registerErrorsMetric()
	if err != nil {
		return fmt.Errorf("register errors metric: %w", err)
	}
	logger := slog.New(c.logConfig, slog.WithOnError(onError))

	defer func() {
		if err := logger.Close(); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "close logger: %s\n", err)
		}
	}()

	defer func() {
		if cmdErr != nil {
			logger.Error("fatal error exiting", "error", cmdErr)
			cmd.SilenceErrors = true
		}
	}()

	logger.Info("clprelay", "version", version.Version, "commit", version.Commit)
	logger.Debug("resource limits", "GOMAXPROCS", runtime.GOMAXPROCS(0), "GOMEMLIMIT", os.Getenv("GOMEMLIMIT"))

	var cfg string
	{
		cfg, err = cobrautil.FlagsDescriber{
			Format:          cobrautil.Plain,
			ShowChangedOnly: true,
			ShowHidden:      true,
		}.DescribeFlags(cmd.Flags())
		if err != nil {
			return err
		}
		if len(cfg) > 0 {
			logger.Info("configuration\n" + cfg)
		} else {
			logger.Info("using default configuration")
		}

		cfg, err = cobrautil.FlagsDescriber{
			Format:     cobrautil.Plain,
			ShowHidden: true,
		}.DescribeFlags(cmd.Flags())
		if err != nil {
			return err
		}
		logger.Debug("all configuration\n" + cfg)
	}

	c.forwarderConfig.ResponseHeaders = c.responseHeaders

	g := runctx.NewGroup()

	var relay *clprelay.HTTPServer
	{
		tr, err := clprelay.NewHTTPTransport(c.httpTransportConfig)
		if err != nil {
			return err
		}
		f, err := clprelay.NewForwarder(c.forwarderConfig, &http.Client{Transport: tr}, logger.Named("relay"))
		if err != nil {
			return err
		}

		mux := http.NewServeMux()
		mux.Handle(clprelay.LogProcessorPath, f)
		mux.HandleFunc(clprelay.GeoPath, clprelay.GeoHandler)

		relay, err = clprelay.NewHTTPServer(c.httpServerConfig, mux, logger.Named("server"))
		if err != nil {
			return err
		}
		defer relay.Close()
		g.Add(relay.Run)

		logger.Info("relaying", "path", clprelay.LogProcessorPath, "upstream", bind.RedactURLString(c.forwarderConfig.UpstreamURL))
	}

	{
		if err := c.registerProcMetrics(); err != nil {
			return fmt.Errorf("register process metrics: %w", err)
		}
		if err := c.registerVersionMetric(); err != nil {
			return fmt.Errorf("register version metric: %w", err)
		}

		if c.apiServerConfig.Addr != "" {
			h := clprelay.NewAPIHandler(c.promReg, relay, cfg)
			a, err := clprelay.NewHTTPServer(c.apiServerConfig, h, logger.Named("api"))
			if err != nil {
				return err
			}
			defer a.Close()
			g.Add(a.Run)
		}
	}

	if c.goleak {
		defer func() {
			if err := goleak.Find(); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "goleak: %s", err)
				os.Exit(1)
			}
		}()
	}

	if c.dryRun {
		return nil
	}

	return g.Run()
}

func (c *command) registerErrorsMetric() (func(name string), error) {
	m := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: c.forwarderConfig.PromNamespace,
		Name:      "errors_total",
		Help:      "Number of errors",
	}, []string{"name"})

	if err := c.promReg.Register(m); err != nil {
		return nil, err
	}

	return func(name string) {
		m.WithLabelValues(name).Inc()
	}, nil
}

func (c *command) registerProcMetrics() error {
	return multierr.Combine(
		// Note that ProcessCollector is only available in Linux and Windows.
		c.promReg.Register(collectors.NewProcessCollector(
			collectors.ProcessCollectorOpts{Namespace: c.forwarderConfig.PromNamespace})),
		c.promReg.Register(collectors.NewGoCollector()),
	)
}

func (c *command) registerVersionMetric() error {
	return c.promReg.Register(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: c.forwarderConfig.PromNamespace,
		Name:      "version",
		Help:      "Relay version, value is always 1",
		ConstLabels: prometheus.Labels{
			"version": version.Version,
			"commit":  version.Commit,
			"time":    version.Time,
		},
	}, func() float64 {
		return 1
	}))
}

const promNs = "clprelay"

func makeCommand() command {
	r := prometheus.NewRegistry()

	c := command{
		promReg:             r,
		forwarderConfig:     clprelay.DefaultForwarderConfig(),
		httpTransportConfig: clprelay.DefaultHTTPTransportConfig(),
		httpServerConfig:    clprelay.DefaultHTTPServerConfig(),
		apiServerConfig:     clprelay.DefaultHTTPServerConfig(),
		logConfig:           log.DefaultConfig(),
	}
	c.forwarderConfig.PromRegistry = r
	c.forwarderConfig.PromNamespace = promNs
	c.httpServerConfig.PromRegistry = r
	c.httpServerConfig.PromNamespace = promNs
	c.httpServerConfig.PromRoutes = []string{clprelay.LogProcessorPath, clprelay.GeoPath}
	c.apiServerConfig.Addr = "localhost:10000"
	c.apiServerConfig.LogHTTPMode = httplog.Errors

	return c
}

func Command() *cobra.Command {
	c := makeCommand()

	cmd := &cobra.Command{
		Use:     "run [--address <host:port>] [--upstream-url <url>] [--response-header <header>]...",
		Short:   "Start the log processor relay server",
		Long:    long,
		Example: example,
		RunE:    c.runE,
	}

	fs := cmd.Flags()
	bind.ForwarderConfig(fs, c.forwarderConfig)
	bind.ResponseHeaders(fs, &c.responseHeaders)
	bind.HTTPTransportConfig(fs, c.httpTransportConfig)
	bind.HTTPServerConfig(fs, c.httpServerConfig, "")
	bind.HTTPServerConfig(fs, c.apiServerConfig, "api", clprelay.HTTPScheme)
	bind.HTTPLogConfig(fs, []bind.NamedParam[httplog.Mode]{
		{Name: "relay", Param: &c.httpServerConfig.LogHTTPMode},
		{Name: "api", Param: &c.apiServerConfig.LogHTTPMode},
	})
	bind.LogConfig(fs, c.logConfig)

	bind.AutoMarkFlagFilename(cmd)

	fs.BoolVar(&c.goleak, "goleak", false, "enable goleak")

	bind.MarkFlagHidden(cmd,
		"goleak",
	)

	return cmd
}

// Metrics returns the metrics registered by the run command.
func Metrics() (*prometheus.Registry, error) {
	c := makeCommand()
	c.logConfig = &log.Config{
		Level:  log.ErrorLevel,
		Format: log.TextFormat,
	}
	c.apiServerConfig.Addr = ""
	c.dryRun = true

	cmd := &cobra.Command{
		Use:                "run",
		RunE:               c.runE,
		DisableFlagParsing: true,
	}
	cmd.SetArgs([]string{})
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)

	if err := cmd.Execute(); err != nil {
		return nil, err
	}

	return c.promReg, nil
}

const long = `Start the log processor relay server.
The relay accepts POST requests at /api/logprocessor?firmwareVersion=<version>
and forwards them to the log processor API without browser headers.
Only the x-ClientProgram and Ocp-Apim-Subscription-Key headers are forwarded,
the request body is passed through unchanged,
and the upstream status, content type and body are relayed back to the client.
The /api/geo endpoint echoes the caller location reported by the edge network.

The API server exposes Prometheus metrics, health and readiness probes,
the effective configuration and version information.`

const example = `  # Start the relay on port 3000 with CORS enabled for all origins
  clprelay run --address :3000 -R "Access-Control-Allow-Origin: *"

  # Relay to a staging endpoint and log request and response headers
  clprelay run --upstream-url https://staging.example.com/clp/v1/api/CrashLogProcessor/processArrayOfStrings --log-http headers

  # Use HTTPS
  clprelay run --protocol https --tls-cert-file cert.pem --tls-key-file key.pem

  # Use HTTP/2 with a generated self-signed certificate
  clprelay run --protocol h2
`
