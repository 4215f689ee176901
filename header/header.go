// Copyright 2022-2026 Sauce Labs Inc., all rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package header implements response header modifiers configured with --response-header.
package header

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/net/http/httpguts"
)

type Action int

const (
	Remove Action = iota
	RemoveByPrefix
	Empty
	Add
)

// Header is a single header modification applied to responses written by the relay.
type Header struct {
	Name   string
	Action Action
	Value  *string
}

// ParseHeader supports the following syntax:
//   - "<name>: <value>" to add a header,
//   - "<name>;" to set a header to empty,
//   - "-<name>" to remove a header,
//   - "-<name>*" to remove all headers starting with name.
func ParseHeader(val string) (Header, error) {
	h, err := parse(strings.TrimRight(val, "\r\n"))
	if err != nil {
		return Header{}, err
	}
	if !httpguts.ValidHeaderFieldName(h.Name) {
		return Header{}, fmt.Errorf("invalid header name %q", h.Name)
	}
	if h.Value != nil && !httpguts.ValidHeaderFieldValue(*h.Value) {
		return Header{}, fmt.Errorf("invalid value of header %s", h.Name)
	}
	return h, nil
}

func parse(val string) (Header, error) {
	if name, ok := strings.CutPrefix(val, "-"); ok {
		if prefix, ok := strings.CutSuffix(name, "*"); ok {
			return Header{Name: prefix, Action: RemoveByPrefix}, nil
		}
		return Header{Name: name, Action: Remove}, nil
	}
	if name, ok := strings.CutSuffix(val, ";"); ok {
		return Header{Name: name, Action: Empty}, nil
	}

	name, value, ok := strings.Cut(val, ":")
	if !ok {
		return Header{}, errors.New("invalid header, expected <name>: <value>")
	}
	value = strings.TrimLeft(value, " \t")
	return Header{Name: name, Action: Add, Value: &value}, nil
}

func (h *Header) Apply(hh http.Header) {
	switch h.Action {
	case Remove:
		hh.Del(h.Name)
	case RemoveByPrefix:
		deletePrefix(hh, h.Name)
	case Empty:
		hh.Set(h.Name, "")
	case Add:
		hh.Add(h.Name, *h.Value)
	}
}

// deletePrefix deletes headers whose names start with prefix, ignoring case.
func deletePrefix(hh http.Header, prefix string) {
	prefix = strings.ToLower(prefix)
	for name := range hh {
		if strings.HasPrefix(strings.ToLower(name), prefix) {
			delete(hh, name)
		}
	}
}

func (h Header) String() string {
	switch h.Action {
	case Remove:
		return "-" + h.Name
	case RemoveByPrefix:
		return "-" + h.Name + "*"
	case Empty:
		return h.Name + ";"
	case Add:
		return h.Name + ": " + *h.Value
	}
	return ""
}

type Headers []Header

// Apply applies all modifications in order.
func (s Headers) Apply(hh http.Header) {
	for i := range s {
		s[i].Apply(hh)
	}
}
