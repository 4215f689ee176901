// Copyright 2022-2026 Sauce Labs Inc., all rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package cobrautil

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/pflag"
	"golang.org/x/exp/maps"
)

type DescribeFormat int

const (
	Plain DescribeFormat = iota
	JSON
)

// FlagsDescriber renders flag values, it is used to log the effective configuration.
// Plain output uses the flag String methods, so values bound with a redact function are masked.
type FlagsDescriber struct {
	Format          DescribeFormat
	ShowChangedOnly bool
	ShowHidden      bool
}

func (d FlagsDescriber) DescribeFlags(fs *pflag.FlagSet) (string, error) {
	args := make(map[string]any, fs.NFlag())
	fs.VisitAll(func(f *pflag.Flag) {
		if d.skip(f) {
			return
		}
		args[f.Name] = d.value(f)
	})

	switch d.Format {
	case Plain:
		keys := maps.Keys(args)
		sort.Strings(keys)
		var sb strings.Builder
		for _, name := range keys {
			fmt.Fprintf(&sb, "%s=%v\n", name, args[name])
		}
		return sb.String(), nil
	case JSON:
		b, err := json.Marshal(args)
		return string(b), err
	default:
		return "", errors.New("unknown format")
	}
}

func (d FlagsDescriber) skip(f *pflag.Flag) bool {
	return f.Name == "help" ||
		(f.Hidden && !d.ShowHidden) ||
		(!f.Changed && d.ShowChangedOnly)
}

func (d FlagsDescriber) value(f *pflag.Flag) any {
	if f.Value.Type() == "bool" {
		return f.Value
	}

	sv, ok := f.Value.(pflag.SliceValue)
	if !ok {
		return f.Value.String()
	}
	if d.Format == Plain {
		return strings.TrimSuffix(strings.TrimPrefix(f.Value.String(), "["), "]")
	}
	return sv.GetSlice()
}
