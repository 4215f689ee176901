// Copyright 2022-2026 Sauce Labs Inc., all rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package handler

import (
	"net/http"

	"github.com/hainspector/clprelay"
)

// Geo is the entry point for Vercel's Go runtime.
func Geo(w http.ResponseWriter, r *http.Request) {
	clprelay.GeoHandler(w, r)
}
