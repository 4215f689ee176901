// Copyright 2022-2026 Sauce Labs Inc., all rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package clprelay

import (
	"encoding/json"
	"net/http"
	"net/url"
)

const unknownGeo = "unknown"

// Geo is the caller location reported by the Vercel edge network.
type Geo struct {
	Country string `json:"country"`
	City    string `json:"city"`
	Region  string `json:"region"`
}

func GeoFromHeader(h http.Header) Geo {
	g := Geo{
		Country: h.Get("X-Vercel-Ip-Country"),
		City:    h.Get("X-Vercel-Ip-City"),
		Region:  h.Get("X-Vercel-Ip-Country-Region"),
	}
	if g.Country == "" {
		g.Country = unknownGeo
	}
	if g.City == "" {
		g.City = unknownGeo
	} else if c, err := url.PathUnescape(g.City); err == nil {
		g.City = c
	}
	if g.Region == "" {
		g.Region = unknownGeo
	}
	return g
}

// GeoHandler echoes the caller location as JSON.
func GeoHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", contentTypeJSON)
	json.NewEncoder(w).Encode(GeoFromHeader(r.Header)) //nolint:errchkjson // best effort
}
