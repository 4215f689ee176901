// Copyright 2022-2026 Sauce Labs Inc., all rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package clprelay relays crash log processing requests to the WCloud CrashLogProcessor API.
// The upstream API has no CORS support, it was designed for native applications,
// so browser clients talk to the relay which forwards the request and relays the response verbatim.
//
// The package provides the Forwarder http.Handler, a native Client for the same API,
// and the supporting HTTP server, transport, and API handler used by the clprelay commands.
package clprelay
