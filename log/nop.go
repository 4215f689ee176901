// Copyright 2022-2026 Sauce Labs Inc., all rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package log

import (
	"context"
)

// NopLogger discards everything, it is used when no logger is configured.
var NopLogger = nopLogger{} //nolint:gochecknoglobals // nop implementation

var _ StructuredLogger = nopLogger{}

type nopLogger struct{}

func (nopLogger) Error(_ string, _ ...any) {}
func (nopLogger) Warn(_ string, _ ...any)  {}
func (nopLogger) Info(_ string, _ ...any)  {}
func (nopLogger) Debug(_ string, _ ...any) {}

func (nopLogger) ErrorContext(_ context.Context, _ string, _ ...any) {}
func (nopLogger) WarnContext(_ context.Context, _ string, _ ...any)  {}
func (nopLogger) InfoContext(_ context.Context, _ string, _ ...any)  {}
func (nopLogger) DebugContext(_ context.Context, _ string, _ ...any) {}

func (l nopLogger) With(_ ...any) StructuredLogger { return l }
