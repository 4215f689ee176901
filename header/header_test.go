// Copyright 2022-2026 Sauce Labs Inc., all rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package header

import (
	"net/http"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func strPtr(s string) *string {
	return &s
}

func TestParseHeader(t *testing.T) {
	tests := map[string]Header{
		"-Server":                {Name: "Server", Action: Remove},
		"-X-Powered*":            {Name: "X-Powered", Action: RemoveByPrefix},
		"Cache-Control;":         {Name: "Cache-Control", Action: Empty},
		"X-Relay:clprelay":       {Name: "X-Relay", Action: Add, Value: strPtr("clprelay")},
		"X-Relay: clprelay":      {Name: "X-Relay", Action: Add, Value: strPtr("clprelay")},
		"X-Relay:":               {Name: "X-Relay", Action: Add, Value: strPtr("")},
		"X-Time: 12:00":          {Name: "X-Time", Action: Add, Value: strPtr("12:00")},
		"X-Relay: clprelay\r\n": {Name: "X-Relay", Action: Add, Value: strPtr("clprelay")},
		"Access-Control-Allow-Headers: Content-Type, x-ClientProgram": {
			Name:   "Access-Control-Allow-Headers",
			Action: Add,
			Value:  strPtr("Content-Type, x-ClientProgram"),
		},
	}

	for input, expected := range tests {
		t.Run(input, func(t *testing.T) {
			got, err := ParseHeader(input)
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(expected, got); diff != "" {
				t.Errorf("unexpected header (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseHeaderError(t *testing.T) {
	for _, input := range []string{
		"",
		"X-Relay",
		"-(@Me)",
		"-",
		"@Me: value",
		"X Relay: value",
		"X-Relay: one\ntwo",
		"X-Relay: \x00",
	} {
		if _, err := ParseHeader(input); err == nil {
			t.Errorf("%q: expected error", input)
		}
	}
}

func TestHeaderString(t *testing.T) {
	for _, input := range []string{
		"-Server",
		"-X-Powered*",
		"Cache-Control;",
		"X-Relay: clprelay",
	} {
		h, err := ParseHeader(input)
		if err != nil {
			t.Fatal(err)
		}
		if got := h.String(); got != input {
			t.Errorf("got %q, want %q", got, input)
		}
	}
}

func TestDeletePrefix(t *testing.T) {
	h := http.Header{
		"Remo":             nil,
		"Removemebyprefix": nil,
		"Removeme":         nil,
		"Dontremoveme":     nil,
	}
	deletePrefix(h, "RemoveMe")

	expected := http.Header{
		"Remo":         nil,
		"Dontremoveme": nil,
	}
	if diff := cmp.Diff(expected, h); diff != "" {
		t.Fatal(diff)
	}
}

func TestHeadersApply(t *testing.T) {
	var hs Headers
	for _, v := range []string{
		"Access-Control-Allow-Origin: *",
		"Access-Control-Allow-Headers: Content-Type, x-ClientProgram, Ocp-Apim-Subscription-Key",
		"-Server",
		"-X-Powered*",
		"Cache-Control;",
	} {
		h, err := ParseHeader(v)
		if err != nil {
			t.Fatal(err)
		}
		hs = append(hs, h)
	}

	h := http.Header{
		"Content-Type":      {"application/json"},
		"Server":            {"upstream"},
		"X-Powered-By":      {"ASP.NET"},
		"X-Poweredby-Extra": {"1"},
	}
	hs.Apply(h)

	expected := http.Header{
		"Content-Type":                 {"application/json"},
		"Access-Control-Allow-Origin":  {"*"},
		"Access-Control-Allow-Headers": {"Content-Type, x-ClientProgram, Ocp-Apim-Subscription-Key"},
		"Cache-Control":                {""},
	}
	if diff := cmp.Diff(expected, h); diff != "" {
		t.Fatal(diff)
	}
}
