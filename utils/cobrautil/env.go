// Copyright 2022-2026 Sauce Labs Inc., all rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package cobrautil

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// AppendEnvToUsage documents the environment variable bound by BindAll in the usage of every flag.
func AppendEnvToUsage(cmd *cobra.Command, envPrefix string) {
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if f.Name == "help" {
			return
		}
		f.Usage += " (env " + EnvName(envPrefix, f.Name) + ")"
	})
}

// EnvName returns the environment variable name BindAll reads for flagName.
func EnvName(envPrefix, flagName string) string {
	return fmt.Sprintf("%s_%s",
		strings.ToUpper(envReplacer.Replace(envPrefix)),
		strings.ToUpper(envReplacer.Replace(flagName)))
}
