// Copyright 2022-2026 Sauce Labs Inc., all rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package dev

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/hainspector/clprelay"
	"github.com/hainspector/clprelay/bind"
	"github.com/hainspector/clprelay/header"
	"github.com/hainspector/clprelay/log"
	"github.com/hainspector/clprelay/log/slog"
	"github.com/hainspector/clprelay/runctx"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/spf13/cobra"
)

type command struct {
	addr            string
	staticDir       string
	forwarderConfig *clprelay.ForwarderConfig
	responseHeaders []header.Header
	logConfig       *log.Config
}

func (c *command) runE(cmd *cobra.Command, _ []string) (cmdErr error) {
	logger := slog.New(c.logConfig)
	defer logger.Close()

	defer func() {
		if cmdErr != nil {
			logger.Error("fatal error exiting", "error", cmdErr)
			cmd.SilenceErrors = true
		}
	}()

	c.forwarderConfig.ResponseHeaders = c.responseHeaders
	f, err := clprelay.NewForwarder(c.forwarderConfig, nil, logger.Named("relay"))
	if err != nil {
		return err
	}

	e := newEcho(f, c.staticDir)

	logger.Info("dev server listen", "address", c.addr, "static_dir", c.staticDir)

	return runctx.NewGroup(func(ctx context.Context) error {
		go func() {
			<-ctx.Done()
			if err := e.Shutdown(context.Background()); err != nil {
				logger.Error("failed to shutdown dev server", "error", err)
			}
		}()

		if err := e.Start(c.addr); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("dev server: %w", err)
		}
		return nil
	}).Run()
}

// newEcho mounts the relay and geo handlers at the serverless routes and
// serves static files from dir at the root.
func newEcho(f http.Handler, dir string) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())

	e.Any(clprelay.LogProcessorPath, echo.WrapHandler(f))
	e.GET(clprelay.GeoPath, echo.WrapHandler(http.HandlerFunc(clprelay.GeoHandler)))
	if dir != "" {
		e.Static("/", dir)
	}

	return e
}

func Command() *cobra.Command {
	c := command{
		addr:            "localhost:5173",
		staticDir:       ".",
		forwarderConfig: clprelay.DefaultForwarderConfig(),
		logConfig: &log.Config{
			Level:  log.DebugLevel,
			Format: log.TextFormat,
		},
	}
	c.forwarderConfig.PromRegistry = nil

	cmd := &cobra.Command{
		Use:   "dev [--address <host:port>] [--static-dir <path>]",
		Short: "Start a local development server with the relay mounted",
		Long:  long,
		RunE:  c.runE,
	}

	fs := cmd.Flags()
	fs.StringVar(&c.addr,
		"address", c.addr, "<host:port>"+
			"The server address to listen on. ")
	fs.StringVar(&c.staticDir,
		"static-dir", c.staticDir, "<path>"+
			"Directory with static files served at the root, empty disables static files. ")
	bind.ForwarderConfig(fs, c.forwarderConfig)
	bind.ResponseHeaders(fs, &c.responseHeaders)
	bind.LogConfig(fs, c.logConfig)

	bind.AutoMarkFlagFilename(cmd)

	return cmd
}

const long = `Start a local development server.
It serves static files and mounts the relay at /api/logprocessor and the geo echo at /api/geo,
the same routes as the serverless deployment.
By default it logs every relayed request and upstream response with truncated bodies,
the subscription key is never logged.`
