// Copyright 2022-2026 Sauce Labs Inc., all rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package bind

import (
	"net/http"
	"net/url"

	"github.com/hainspector/clprelay/header"
	"github.com/hainspector/clprelay/log"
)

// sensitiveHeaders are headers whose values are credentials.
var sensitiveHeaders = map[string]struct{}{
	"Authorization":             {},
	"Ocp-Apim-Subscription-Key": {},
	"Proxy-Authorization":       {},
}

// RedactHeader renders h for help and configuration output, credential values are masked.
func RedactHeader(h header.Header) string {
	if h.Action == header.Add {
		if _, ok := sensitiveHeaders[http.CanonicalHeaderKey(h.Name)]; ok {
			v := log.Secret(*h.Value).String()
			h.Value = &v
		}
	}
	return h.String()
}

// RedactURLString hides the password of URLs with user info.
func RedactURLString(s string) string {
	u, err := url.Parse(s)
	if err != nil {
		return s
	}
	return u.Redacted()
}

func RedactSecret(s string) string {
	return log.Secret(s).String()
}
