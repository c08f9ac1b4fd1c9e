// Copyright 2025 go-highway Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"fmt"

	"github.com/ajroetker/go-tileplan/tiling"
	"github.com/spf13/cobra"
)

func newHostCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "host",
		Short: "Show the detected host level and the selected target's limits",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			caps, err := o.target.capabilities()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			heading(out, "host")
			tw := newTable(out)
			fmt.Fprintf(tw, "  level\t%s\n", tiling.CurrentHostLevel())
			fmt.Fprintf(tw, "  no simd\t%v\n", tiling.NoSimdEnv())
			fmt.Fprintf(tw, "  host target\t%s\n", tiling.HostCapabilities())
			fmt.Fprintf(tw, "  selected target\t%s\n", caps)
			tw.Flush()

			heading(out, "dtype limits")
			tw = newTable(out)
			fmt.Fprintln(tw, "  DTYPE\tSIZE\tLANES/INSTR\tLANES/BLOCK")
			for _, d := range caps.Dtypes() {
				l, _ := caps.Limits(d)
				fmt.Fprintf(tw, "  %s\t%d\t%d\t%d\n", d, d.Size(), l.MaxElementsPerInstr, l.BlockAlignmentElements)
			}
			return tw.Flush()
		},
	}
}

func newOpsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ops",
		Short: "List the elementwise ops steps can be emitted as",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tw := newTable(cmd.OutOrStdout())
			fmt.Fprintln(tw, "NAME\tINTRINSIC\tINPUTS\tSCALAR")
			for _, op := range tiling.AllOps() {
				info := op.Info()
				fmt.Fprintf(tw, "%s\t%s\t%d\t%v\n", info.Name, info.Intrinsic, info.Arity, info.Scalar)
			}
			return tw.Flush()
		},
	}
}
