// Copyright 2022-2026 Sauce Labs Inc., all rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package bind

import (
	"strings"

	"github.com/hainspector/clprelay"
	"github.com/hainspector/clprelay/header"
	"github.com/hainspector/clprelay/log"
	"github.com/mmatczuk/anyflag"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

func ConfigFile(fs *pflag.FlagSet, configFile *string) {
	fs.StringVarP(configFile,
		"config-file", "c", *configFile, "<path>"+
			"Configuration file to load options from. "+
			"The file is read as YAML, keys are flag names. "+
			"The following precedence order of configuration sources is used: command flags, environment variables, config file, default values. ")
}

func EnvFile(fs *pflag.FlagSet, envFiles *[]string) {
	fs.StringSliceVar(envFiles,
		"env-file", *envFiles, "<path>"+
			"Dotenv file to load environment variables from before reading the configuration. "+
			"Variables already set in the environment take precedence. "+
			"Can be specified multiple times, earlier files take precedence. ")
}

func ForwarderConfig(fs *pflag.FlagSet, cfg *clprelay.ForwarderConfig) {
	fs.VarP(anyflag.NewValueWithRedact[string](cfg.UpstreamURL, &cfg.UpstreamURL, parseUpstreamURL, RedactURLString),
		"upstream-url", "u", "<url>"+
			"The log processor API endpoint requests are relayed to. "+
			"The firmware version query parameter is appended to it. ")

	fs.StringVar(&cfg.DefaultClientProgram,
		"client-program", cfg.DefaultClientProgram, "<name/version>"+
			"Value of the x-ClientProgram header sent upstream when the client does not send one. ")
}

func parseUpstreamURL(val string) (string, error) {
	cfg := clprelay.ForwarderConfig{UpstreamURL: val}
	if err := cfg.Validate(); err != nil {
		return "", err
	}
	return val, nil
}

// headersValue is a header slice flag whose Set does not split on commas,
// each flag occurrence is a single header and its value may contain commas.
type headersValue struct {
	*anyflag.SliceValue[header.Header]
	changed bool
}

func (v *headersValue) Set(val string) error {
	if !v.changed {
		v.changed = true
		return v.Replace([]string{val})
	}
	return v.Append(val)
}

func ResponseHeaders(fs *pflag.FlagSet, headers *[]header.Header) {
	fs.VarP(&headersValue{SliceValue: anyflag.NewSliceValueWithRedact[header.Header](*headers, headers, header.ParseHeader, RedactHeader)},
		"response-header", "R", "<header>"+
			"Add or remove HTTP headers on every response sent to the client, including errors. "+
			"Use the format \"name: value\" to add a header, "+
			"\"name;\" to set the header to empty value, "+
			"\"-name\" to remove the header, "+
			"\"-name*\" to remove headers by prefix. "+
			"The header name will be normalized to canonical form. "+
			"The flag can be specified multiple times. "+
			"Example: -R \"Access-Control-Allow-Origin: *\" -R \"-Server\". ")
}

func ClientConfig(fs *pflag.FlagSet, cfg *clprelay.ClientConfig) {
	fs.StringVarP(&cfg.AccessPoint,
		"access-point", "a", cfg.AccessPoint, "<url>"+
			"The log processor API endpoint or a relay endpoint. ")

	fs.StringVar(&cfg.ClientProgram,
		"client-program", cfg.ClientProgram, "<name/version>"+
			"Value of the x-ClientProgram header. ")

	fs.VarP(anyflag.NewValueWithRedact[string](cfg.SubscriptionKey, &cfg.SubscriptionKey, parseString, RedactSecret),
		"subscription-key", "k", "<key>"+
			"Value of the Ocp-Apim-Subscription-Key header, the header is not sent if empty. ")
}

func HTTPTransportConfig(fs *pflag.FlagSet, cfg *clprelay.HTTPTransportConfig) {
	fs.DurationVar(&cfg.DialTimeout,
		"http-dial-timeout", cfg.DialTimeout,
		"The maximum amount of time a dial will wait for a connect to complete. "+
			"With or without a timeout, the operating system may impose its own earlier timeout. For instance, TCP timeouts are often around 3 minutes. ")

	fs.DurationVar(&cfg.TLSHandshakeTimeout,
		"http-tls-handshake-timeout", cfg.TLSHandshakeTimeout,
		"The maximum amount of time waiting to wait for a TLS handshake. Zero means no limit.")

	fs.DurationVar(&cfg.IdleConnTimeout,
		"http-idle-conn-timeout", cfg.IdleConnTimeout,
		"The maximum amount of time an idle (keep-alive) connection will remain idle before closing itself. "+
			"Zero means no limit. ")

	fs.DurationVar(&cfg.ResponseHeaderTimeout,
		"http-response-header-timeout", cfg.ResponseHeaderTimeout,
		"The amount of time to wait for upstream response headers after fully writing the request. "+
			"This time does not include the time to read the response body. "+
			"Zero means no limit, the request is canceled only when the client goes away. ")

	fs.StringSliceVar(&cfg.CAFiles,
		"cacert-file", cfg.CAFiles, "<path>"+
			"Add your own CA certificates to verify the upstream TLS certificate against. "+
			"The flag can be specified multiple times. ")

	fs.BoolVar(&cfg.InsecureSkipVerify, "insecure", cfg.InsecureSkipVerify,
		"Don't verify the server's certificate chain and host name. "+
			"Enable to work with self-signed certificates. ")
}

func HTTPServerConfig(fs *pflag.FlagSet, cfg *clprelay.HTTPServerConfig, prefix string, schemes ...clprelay.Scheme) {
	namePrefix := prefix
	if namePrefix != "" {
		namePrefix += "-"
	}

	fs.StringVarP(&cfg.Addr,
		namePrefix+"address", "", cfg.Addr, "<host:port>"+
			"The server address to listen on. "+
			"If the host is empty, the server will listen on all available interfaces. ")

	if schemes == nil {
		schemes = []clprelay.Scheme{
			clprelay.HTTPScheme,
			clprelay.HTTPSScheme,
			clprelay.HTTP2Scheme,
		}
	}

	if len(schemes) > 1 {
		supportedSchemesStr := func(delim string) string {
			var sb strings.Builder
			for _, s := range schemes {
				if sb.Len() > 0 {
					sb.WriteString(delim)
				}
				sb.WriteString(string(s))
			}
			return sb.String()
		}

		fs.VarP(anyflag.NewValue[clprelay.Scheme](cfg.Protocol, &cfg.Protocol,
			anyflag.EnumParser[clprelay.Scheme](schemes...)),
			namePrefix+"protocol", "", "<"+supportedSchemesStr("|")+">"+
				"The server protocol. "+
				"For https and h2 protocols, if TLS certificate and key files are not set, a self-signed certificate is generated. ")

		fs.StringVar(&cfg.CertFile,
			namePrefix+"tls-cert-file", cfg.CertFile, "<path>"+
				"TLS certificate to use if the server protocol is https or h2. ")

		fs.StringVar(&cfg.KeyFile,
			namePrefix+"tls-key-file", cfg.KeyFile, "<path>"+
				"TLS private key to use if the server protocol is https or h2. ")
	}

	fs.DurationVar(&cfg.ReadHeaderTimeout,
		namePrefix+"read-header-timeout", cfg.ReadHeaderTimeout,
		"The amount of time allowed to read request headers.")

	fs.DurationVar(&cfg.ShutdownTimeout,
		namePrefix+"shutdown-timeout", cfg.ShutdownTimeout,
		"The maximum amount of time to wait for in-flight requests to finish on shutdown. "+
			"Zero means no limit.")

	fs.BoolVar(&cfg.ProxyProtocol,
		namePrefix+"proxy-protocol", cfg.ProxyProtocol,
		"Read PROXY protocol v1 and v2 headers on accepted connections, "+
			"so that logs report the client address seen by the load balancer. "+
			"Connections without the header are accepted. ")
}

func LogConfig(fs *pflag.FlagSet, cfg *log.Config) {
	fs.Var(NewFileFlag(&cfg.File, OpenFileParser(log.DefaultFileFlags, log.DefaultFileMode, log.DefaultDirMode)),
		"log-file", "<path>"+
			"Path to the log file, if empty, logs to stdout. ")

	fs.Var(anyflag.NewValue[log.Level](cfg.Level, &cfg.Level, anyflag.EnumParser[log.Level](log.Levels...)),
		"log-level", "<error|warn|info|debug>"+
			"Log level. "+
			"The debug level logs relayed requests and upstream responses with truncated bodies. ")

	fs.Var(anyflag.NewValue[log.Format](cfg.Format, &cfg.Format, anyflag.EnumParser[log.Format](log.Formats...)),
		"log-format", "<text|json>"+
			"Log format. ")
}

func MarkFlagHidden(cmd *cobra.Command, names ...string) {
	for _, name := range names {
		if err := cmd.Flags().MarkHidden(name); err != nil {
			panic(err)
		}
	}
}

func MarkFlagRequired(cmd *cobra.Command, names ...string) {
	for _, name := range names {
		if err := cmd.MarkFlagRequired(name); err != nil {
			panic(err)
		}
	}
}

func AutoMarkFlagFilename(cmd *cobra.Command) {
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if strings.HasPrefix(f.Usage, "<path") ||
			strings.HasSuffix(f.Name, "-file") ||
			strings.HasSuffix(f.Name, "-dir") {
			MarkFlagFilename(cmd, f.Name)
		}
	})
}

func MarkFlagFilename(cmd *cobra.Command, names ...string) {
	for _, name := range names {
		if err := cmd.MarkFlagFilename(name); err != nil {
			panic(err)
		}
	}
}

func parseString(val string) (string, error) {
	return val, nil
}
