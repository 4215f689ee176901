// Copyright 2022-2026 Sauce Labs Inc., all rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package bind

import (
	"fmt"
	"strings"

	"github.com/hainspector/clprelay/httplog"
	"github.com/mmatczuk/anyflag"
	"github.com/spf13/pflag"
)

// NamedParam binds a value to a named server, an empty name applies to all servers.
type NamedParam[T fmt.Stringer] struct {
	Name  string
	Param *T
}

func (p NamedParam[T]) String() string {
	if p.Name == "" {
		return (*p.Param).String()
	}
	return p.Name + ":" + (*p.Param).String()
}

// HTTPLogConfig binds a single --log-http flag to the access log modes of the named servers.
func HTTPLogConfig(fs *pflag.FlagSet, cfg []NamedParam[httplog.Mode]) {
	var src []NamedParam[httplog.Mode]
	f := httplogFlag{
		SliceValue: anyflag.NewSliceValue[NamedParam[httplog.Mode]](nil, &src, parseNamedHTTPLogMode),
		update: func() {
			httplogUpdate(cfg, src)
		},
	}

	names := httplogNames(cfg)
	fs.Var(f, "log-http", "<["+strings.Join(names, "|")+":]none|short-url|url|headers|errors>,..."+
		"HTTP request and response logging mode. "+
		"Setting this to none disables logging. "+
		"The short-url mode logs [scheme://]host[:port] instead of the full URL. "+
		"The errors mode logs request line and headers if status code is greater than or equal to 500. "+
		"Modes for different servers can be specified separated by commas, "+
		"e.g. \""+names[0]+":none,errors\" disables logging for the "+names[0]+" server and uses errors mode for the rest. "+
		"The subscription key header is always redacted. ")
}

func parseNamedHTTPLogMode(val string) (NamedParam[httplog.Mode], error) {
	name, mode, err := httplog.SplitNameMode(val)
	if err != nil {
		return NamedParam[httplog.Mode]{}, err
	}
	return NamedParam[httplog.Mode]{Name: name, Param: &mode}, nil
}

// httplogFlag propagates parsed values to the bound servers after every change.
type httplogFlag struct {
	*anyflag.SliceValue[NamedParam[httplog.Mode]]
	update func()
}

func (f httplogFlag) Set(val string) error {
	if err := f.SliceValue.Set(val); err != nil {
		return err
	}
	f.update()
	return nil
}

func (f httplogFlag) Replace(vals []string) error {
	if err := f.SliceValue.Replace(vals); err != nil {
		return err
	}
	f.update()
	return nil
}

// httplogUpdate sets every dst mode from src.
// A named value wins over an unnamed one, the last unnamed value is the default
// and servers not mentioned at all fall back to httplog.DefaultMode.
func httplogUpdate(dst, src []NamedParam[httplog.Mode]) {
	named := make(map[string]httplog.Mode, len(src))
	def := httplog.DefaultMode
	for _, p := range src {
		if p.Name == "" {
			def = *p.Param
		} else if _, ok := named[p.Name]; !ok {
			named[p.Name] = *p.Param
		}
	}

	for _, p := range dst {
		if m, ok := named[p.Name]; ok {
			*p.Param = m
		} else {
			*p.Param = def
		}
	}
}

func httplogNames(cfg []NamedParam[httplog.Mode]) []string {
	names := make([]string, 0, len(cfg))
	for _, c := range cfg {
		if c.Name != "" {
			names = append(names, c.Name)
		}
	}
	return names
}
