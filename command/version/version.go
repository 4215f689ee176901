// Copyright 2022-2026 Sauce Labs Inc., all rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package version

import (
	"fmt"
	"text/tabwriter"

	"github.com/hainspector/clprelay/internal/version"
	"github.com/spf13/cobra"
)

func Command() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			v := version.Get()

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 8, 1, ' ', 0)
			fmt.Fprintf(w, "Version:\t%s\n", v.Version)
			fmt.Fprintf(w, "Built time:\t%s\n", v.Time)
			fmt.Fprintf(w, "Git commit:\t%s\n", v.Commit)
			fmt.Fprintf(w, "Go Arch:\t%s\n", v.GoArch)
			fmt.Fprintf(w, "Go OS:\t%s\n", v.GoOS)
			fmt.Fprintf(w, "Go Version:\t%s\n", v.GoVersion)
			return w.Flush()
		},
	}
}
