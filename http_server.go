// Copyright 2022-2026 Sauce Labs Inc., all rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package clprelay

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/hainspector/clprelay/httplog"
	"github.com/hainspector/clprelay/log"
	"github.com/hainspector/clprelay/middleware"
	"github.com/hainspector/clprelay/utils/certutil"
	"github.com/pires/go-proxyproto"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/net/http2"
)

type Scheme string

const (
	HTTPScheme  Scheme = "http"
	HTTPSScheme Scheme = "https"
	HTTP2Scheme Scheme = "h2"
)

func (s Scheme) String() string {
	return string(s)
}

type HTTPServerConfig struct {
	Protocol          Scheme
	Addr              string
	CertFile          string
	KeyFile           string
	ReadHeaderTimeout time.Duration
	LogHTTPMode       httplog.Mode

	// ShutdownTimeout bounds the graceful shutdown, in-flight requests are dropped after it.
	ShutdownTimeout time.Duration

	// ProxyProtocol enables reading PROXY protocol v1 and v2 headers sent by a load balancer.
	// Connections without the header are accepted as is.
	ProxyProtocol bool

	PromRegistry  prometheus.Registerer
	PromNamespace string

	// PromRoutes are the paths reported with their own route label, other paths share one.
	// If empty, metrics are not partitioned by path.
	PromRoutes []string
}

func DefaultHTTPServerConfig() *HTTPServerConfig {
	return &HTTPServerConfig{
		Protocol:          HTTPScheme,
		Addr:              ":3000",
		ReadHeaderTimeout: 1 * time.Minute,
		LogHTTPMode:       httplog.Errors,
		ShutdownTimeout:   30 * time.Second,
		PromNamespace:     "clprelay",
	}
}

func (c *HTTPServerConfig) Validate() error {
	switch c.Protocol {
	case HTTPScheme:
		return nil
	case HTTPSScheme, HTTP2Scheme:
	default:
		return fmt.Errorf("unsupported protocol %q", c.Protocol)
	}

	if c.CertFile == "" && c.KeyFile == "" {
		return nil
	}
	if c.CertFile == "" {
		return fmt.Errorf("cert file cannot be empty when key file is set")
	}
	if c.KeyFile == "" {
		return fmt.Errorf("key file cannot be empty when cert file is set")
	}
	if _, err := os.Stat(c.CertFile); err != nil {
		return fmt.Errorf("cert file: %w", err)
	}
	if _, err := os.Stat(c.KeyFile); err != nil {
		return fmt.Errorf("key file: %w", err)
	}

	return nil
}

type HTTPServer struct {
	config HTTPServerConfig
	log    log.StructuredLogger
	srv    *http.Server

	addr     string
	addrMu   sync.RWMutex
	listener net.Listener
}

// NewHTTPServer returns a server for h, it is wrapped with access logging and Prometheus metrics.
func NewHTTPServer(cfg *HTTPServerConfig, h http.Handler, logger log.StructuredLogger) (*HTTPServer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.NopLogger
	}

	hs := &HTTPServer{
		config: *cfg,
		log:    logger,
	}
	hs.srv = &http.Server{
		Addr:              cfg.Addr,
		Handler:           hs.middlewareStack(h),
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}

	switch cfg.Protocol {
	case HTTPSScheme:
		hs.configureHTTPS()
	case HTTP2Scheme:
		if err := hs.configureHTTP2(); err != nil {
			return nil, err
		}
	case HTTPScheme:
		// do nothing
	}
	if hs.srv.TLSConfig != nil && cfg.CertFile == "" {
		if err := hs.selfSignedCert(); err != nil {
			return nil, err
		}
	}

	return hs, nil
}

func (hs *HTTPServer) middlewareStack(h http.Handler) http.Handler {
	if hs.config.LogHTTPMode != httplog.None {
		h = httplog.NewLogger(hs.log.Info, hs.config.LogHTTPMode).LogFunc().Wrap(h)
	}
	var promOpts []middleware.PrometheusOpt
	if len(hs.config.PromRoutes) > 0 {
		promOpts = append(promOpts, middleware.WithRoutes(hs.config.PromRoutes...))
	}
	h = middleware.NewPrometheus(hs.config.PromRegistry, hs.config.PromNamespace, promOpts...).Wrap(h)
	return h
}

func (hs *HTTPServer) configureHTTPS() {
	hs.srv.TLSConfig = &tls.Config{
		MinVersion: tls.VersionTLS12,
	}
	hs.srv.TLSNextProto = make(map[string]func(*http.Server, *tls.Conn, http.Handler))
}

func (hs *HTTPServer) configureHTTP2() error {
	hs.srv.TLSConfig = &tls.Config{
		MinVersion: tls.VersionTLS12,
		NextProtos: []string{"h2", "http/1.1"},
	}
	return http2.ConfigureServer(hs.srv, &http2.Server{})
}

func (hs *HTTPServer) selfSignedCert() error {
	cert, err := certutil.RSASelfSignedCert().Gen()
	if err != nil {
		return fmt.Errorf("self-signed certificate: %w", err)
	}
	hs.srv.TLSConfig.Certificates = append(hs.srv.TLSConfig.Certificates, cert)
	hs.log.Warn("no TLS certificate configured, using self-signed certificate", "protocol", hs.config.Protocol)
	return nil
}

// Listen opens the listener, it is called by Run if not called before.
func (hs *HTTPServer) Listen() error {
	if hs.listener != nil {
		return nil
	}
	l, err := net.Listen("tcp", hs.srv.Addr)
	if err != nil {
		return fmt.Errorf("failed to open listener on address %s: %w", hs.srv.Addr, err)
	}
	if hs.config.ProxyProtocol {
		l = &proxyproto.Listener{
			Listener:          l,
			ReadHeaderTimeout: hs.config.ReadHeaderTimeout,
		}
	}
	hs.listener = l

	hs.addrMu.Lock()
	hs.addr = l.Addr().String()
	hs.addrMu.Unlock()

	return nil
}

func (hs *HTTPServer) Run(ctx context.Context) error {
	if err := hs.Listen(); err != nil {
		return err
	}

	hs.log.Info("HTTP server listen", "address", hs.Addr(), "protocol", hs.config.Protocol)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		<-ctx.Done()
		hs.log.Info("HTTP server shutdown", "address", hs.Addr(), "cause", context.Cause(ctx))

		sctx, cancel := shutdownContext(hs.config.ShutdownTimeout)
		defer cancel()
		if err := hs.srv.Shutdown(sctx); err != nil {
			hs.log.Error("failed to shutdown server", "error", err)
		}
	}()

	var err error
	switch hs.config.Protocol {
	case HTTPScheme:
		err = hs.srv.Serve(hs.listener)
	case HTTPSScheme, HTTP2Scheme:
		err = hs.srv.ServeTLS(hs.listener, hs.config.CertFile, hs.config.KeyFile)
	}
	if !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	wg.Wait()

	hs.log.Debug("server was shutdown gracefully")
	return nil
}

// Addr returns the address the server is listening on or an empty string if not listening.
func (hs *HTTPServer) Addr() string {
	hs.addrMu.RLock()
	defer hs.addrMu.RUnlock()
	return hs.addr
}

func (hs *HTTPServer) Close() error {
	return hs.srv.Close()
}

func shutdownContext(timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(context.Background())
	}
	return context.WithTimeout(context.Background(), timeout)
}
