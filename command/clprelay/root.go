// Copyright 2022-2026 Sauce Labs Inc., all rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package clprelay

import (
	"fmt"

	"github.com/hainspector/clprelay/bind"
	"github.com/hainspector/clprelay/command/dev"
	"github.com/hainspector/clprelay/command/metrics"
	"github.com/hainspector/clprelay/command/process"
	"github.com/hainspector/clprelay/command/ready"
	"github.com/hainspector/clprelay/command/run"
	"github.com/hainspector/clprelay/command/version"
	"github.com/hainspector/clprelay/utils/cobrautil"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

const (
	EnvPrefix          = "CLPRELAY"
	ConfigFileFlagName = "config-file"
)

func Command() *cobra.Command {
	var envFiles []string

	cmd := &cobra.Command{
		Use:           "clprelay",
		Short:         "Relay for the hearing aid crash log processor API",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if len(envFiles) > 0 {
				if err := godotenv.Load(envFiles...); err != nil {
					return fmt.Errorf("load env file: %w", err)
				}
			}
			return cobrautil.BindAll(cmd, EnvPrefix, ConfigFileFlagName)
		},
	}
	bind.ConfigFile(cmd.PersistentFlags(), new(string))
	bind.EnvFile(cmd.PersistentFlags(), &envFiles)

	cmd.AddCommand(
		run.Command(),
		dev.Command(),
		process.Command(),
		ready.Command(),
		metrics.Command(),
		version.Command(),
	)

	cobrautil.WalkCommands(cmd, func(c *cobra.Command) {
		cobrautil.AppendEnvToUsage(c, EnvPrefix)
	})
	cobrautil.NoHelpSubcommand(cmd)

	return cmd
}
