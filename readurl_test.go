// Copyright 2022-2026 Sauce Labs Inc., all rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package clprelay

import (
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

var base64Tests = []struct {
	decoded, encoded string
}{
	{"", ""},
	{"f", "Zg=="},
	{"fo", "Zm8="},
	{"foo", "Zm9v"},
	{`["0A1B"]`, "WyIwQTFCIl0="},
}

func TestReadInputData(t *testing.T) {
	for i := range base64Tests {
		tc := base64Tests[i]
		for _, prefix := range []string{"data:", "data:base64,", "data://base64,"} {
			t.Run(prefix+tc.encoded, func(t *testing.T) {
				b, err := ReadInput(context.Background(), prefix+tc.encoded, nil, nil)
				if err != nil {
					t.Fatal(err)
				}
				if string(b) != tc.decoded {
					t.Fatalf("expected %q, got %q", tc.decoded, b)
				}
			})
		}
	}

	if _, err := ReadInput(context.Background(), "data:text,abc", nil, nil); err == nil {
		t.Fatal("expected error for non base64 data URI")
	}
}

func TestReadInputFile(t *testing.T) {
	p := filepath.Join(t.TempDir(), "log.txt")
	if err := os.WriteFile(p, []byte("0A1B FF00"), 0o600); err != nil {
		t.Fatal(err)
	}

	for _, name := range []string{p, "file://" + p} {
		b, err := ReadInput(context.Background(), name, nil, nil)
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if string(b) != "0A1B FF00" {
			t.Fatalf("%s: got %q", name, b)
		}
	}

	if _, err := ReadInput(context.Background(), "file://host"+p, nil, nil); err == nil {
		t.Fatal("expected error for file URL with host")
	}
}

func TestReadInputStdin(t *testing.T) {
	for _, name := range []string{"", "-"} {
		b, err := ReadInput(context.Background(), name, strings.NewReader("AA"), nil)
		if err != nil {
			t.Fatal(err)
		}
		if string(b) != "AA" {
			t.Fatalf("got %q", b)
		}
	}
}

func TestReadInputHTTP(t *testing.T) {
	s := httptestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/log" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		io.WriteString(w, `["0A"]`) //nolint:errcheck // test
	}))

	b, err := ReadInput(context.Background(), s.URL+"/log", nil, http.DefaultTransport)
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != `["0A"]` {
		t.Fatalf("got %q", b)
	}

	if _, err := ReadInput(context.Background(), s.URL+"/missing", nil, http.DefaultTransport); err == nil {
		t.Fatal("expected error for 404")
	}
}

func TestReadInputUnsupportedScheme(t *testing.T) {
	if _, err := ReadInput(context.Background(), "ftp://example.com/log", nil, nil); err == nil {
		t.Fatal("expected error")
	}
}
