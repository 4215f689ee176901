// Copyright 2022-2026 Sauce Labs Inc., all rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package serverless configures the relay for the serverless runtime from environment variables.
package serverless

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/hainspector/clprelay"
	"github.com/hainspector/clprelay/header"
	"github.com/hainspector/clprelay/log"
	"github.com/hainspector/clprelay/log/slog"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
	"github.com/mmatczuk/anyflag"
)

const EnvPrefix = "CLPRELAY_"

// Config is read from CLPRELAY_ prefixed environment variables,
// e.g. CLPRELAY_UPSTREAM_URL or CLPRELAY_LOG_LEVEL.
type Config struct {
	UpstreamURL     string   `koanf:"upstream_url" validate:"omitempty,url"`
	ClientProgram   string   `koanf:"client_program"`
	ResponseHeaders []string `koanf:"response_headers"`
	LogLevel        string   `koanf:"log_level" validate:"omitempty,oneof=error warn info debug"`
	LogFormat       string   `koanf:"log_format" validate:"omitempty,oneof=text json"`
}

// LoadConfig reads Config from the environment.
// Empty variables are ignored. Response headers are separated by newlines.
func LoadConfig() (*Config, error) {
	k := koanf.New(".")
	err := k.Load(env.ProviderWithValue(EnvPrefix, ".", func(key, value string) (string, any) {
		key = strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
		value = strings.TrimSpace(value)
		if value == "" {
			return "", nil
		}
		if key == "response_headers" {
			return key, strings.Split(value, "\n")
		}
		return key, value
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := new(Config)
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func (c *Config) logConfig() (*log.Config, error) {
	lc := log.DefaultConfig()
	if c.LogLevel != "" {
		l, err := anyflag.EnumParser[log.Level](log.Levels...)(c.LogLevel)
		if err != nil {
			return nil, err
		}
		lc.Level = l
	}
	if c.LogFormat != "" {
		f, err := anyflag.EnumParser[log.Format](log.Formats...)(c.LogFormat)
		if err != nil {
			return nil, err
		}
		lc.Format = f
	}
	return lc, nil
}

func (c *Config) forwarderConfig() (*clprelay.ForwarderConfig, error) {
	fc := clprelay.DefaultForwarderConfig()
	if c.UpstreamURL != "" {
		fc.UpstreamURL = c.UpstreamURL
	}
	if c.ClientProgram != "" {
		fc.DefaultClientProgram = c.ClientProgram
	}
	for _, s := range c.ResponseHeaders {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		h, err := header.ParseHeader(s)
		if err != nil {
			return nil, fmt.Errorf("response header %q: %w", s, err)
		}
		fc.ResponseHeaders = append(fc.ResponseHeaders, h)
	}
	return fc, nil
}

// NewLogProcessorHandler returns the relay handler for cfg.
func NewLogProcessorHandler(cfg *Config) (http.Handler, error) {
	lc, err := cfg.logConfig()
	if err != nil {
		return nil, err
	}
	fc, err := cfg.forwarderConfig()
	if err != nil {
		return nil, err
	}

	return clprelay.NewForwarder(fc, nil, slog.New(lc).Named("relay"))
}

// ErrorHandler responds to every request with err rendered as the relay error envelope.
func ErrorHandler(err error) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		clprelay.WriteError(w, err)
	})
}
