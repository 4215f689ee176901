// Copyright 2022-2026 Sauce Labs Inc., all rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package version holds build information set at link time.
package version

import (
	"runtime"
)

var (
	Version = "devel"
	Time    = "now"
	Commit  = "HEAD"
)

// Info describes the running binary.
type Info struct {
	Version string `json:"version"`
	Time    string `json:"time"`
	Commit  string `json:"commit"`

	GoArch    string `json:"go_arch"`
	GoOS      string `json:"go_os"`
	GoVersion string `json:"go_version"`
}

func Get() Info {
	return Info{
		Version:   Version,
		Time:      Time,
		Commit:    Commit,
		GoArch:    runtime.GOARCH,
		GoOS:      runtime.GOOS,
		GoVersion: runtime.Version(),
	}
}
