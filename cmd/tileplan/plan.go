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
	"errors"
	"fmt"

	"github.com/ajroetker/go-tileplan/tiling"
	"github.com/spf13/cobra"
)

func newPlanCmd(o *options) *cobra.Command {
	var (
		wf        workloadFlags
		pf        planFlags
		showTiles bool
		opName    string
	)
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Resolve a workload into a fully unrolled plan",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var op *tiling.Op
			if opName != "" {
				parsed, err := tiling.ParseOp(opName)
				if err != nil {
					return err
				}
				op = &parsed
			}
			w, err := wf.workload()
			if err != nil {
				return err
			}
			p, err := o.planner(cmd, &pf)
			if err != nil {
				return err
			}
			plan, err := p.Plan(w)
			if errors.Is(err, tiling.ErrPlanTooLarge) {
				return fmt.Errorf("%w; use tileplan loop for a compact plan", err)
			}
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			writeSummary(out, p.Capabilities(), plan)
			writeCores(out, plan, showTiles, op)
			return nil
		},
	}
	wf.register(cmd.Flags())
	pf.register(cmd.Flags())
	cmd.Flags().BoolVar(&showTiles, "tiles", false, "list every tile with its data move and steps")
	cmd.Flags().StringVar(&opName, "op", "", "render steps as calls to this op's intrinsic")
	return cmd
}

func newLoopCmd(o *options) *cobra.Command {
	var (
		wf workloadFlags
		pf planFlags
	)
	cmd := &cobra.Command{
		Use:   "loop",
		Short: "Resolve a workload into a compact loop plan",
		Long: "Resolve a workload into per-core loop nests whose size does not grow with\n" +
			"the workload. Loop plans always use exact tails.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w, err := wf.workload()
			if err != nil {
				return err
			}
			p, err := o.planner(cmd, &pf)
			if err != nil {
				return err
			}
			lp, err := p.PlanLoop(w)
			if err != nil {
				return err
			}
			writeLoop(cmd.OutOrStdout(), p.Capabilities(), lp)
			return nil
		},
	}
	wf.register(cmd.Flags())
	pf.register(cmd.Flags())
	return cmd
}
