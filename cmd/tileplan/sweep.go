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
	"io"
	"runtime"

	"github.com/ajroetker/go-tileplan/tiling"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// outcome is one row of a sweep or batch report.
type outcome struct {
	name         string
	w            tiling.WorkloadDescriptor
	strategy     string
	mode         tiling.TileMode
	cores        int
	tiles        uint64
	instructions int
	status       string
}

// resolve plans w and reports the outcome. Expected planning failures become
// a status; only a plan that fails validation is returned as an error.
// Workloads too large to unroll are reported through their loop plan.
func resolve(p *tiling.Planner, name string, w tiling.WorkloadDescriptor) (outcome, error) {
	o := outcome{name: name, w: w, status: "ok"}
	plan, err := p.Plan(w)
	switch {
	case err == nil:
		o.strategy, o.mode = plan.Strategy, plan.Mode
		o.cores, o.tiles, o.instructions = len(plan.Cores), uint64(plan.TileCount()), plan.InstructionCount()
	case errors.Is(err, tiling.ErrAlignmentViolation):
		return o, fmt.Errorf("%s: %w", name, err)
	case errors.Is(err, tiling.ErrPlanTooLarge):
		lp, lerr := p.PlanLoop(w)
		if lerr != nil {
			o.status = lerr.Error()
			break
		}
		o.strategy, o.mode, o.cores = "loop", lp.Mode, len(lp.Cores)
		for _, c := range lp.Cores {
			o.tiles += c.Iterations()
		}
		o.status = "too large to unroll"
	default:
		o.status = err.Error()
	}
	return o, nil
}

// resolveAll plans every workload concurrently and returns the outcomes in
// input order.
func resolveAll(cmd *cobra.Command, p *tiling.Planner, names []string, ws []tiling.WorkloadDescriptor) ([]outcome, error) {
	out := make([]outcome, len(ws))
	g, ctx := errgroup.WithContext(cmd.Context())
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i := range ws {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			o, err := resolve(p, names[i], ws[i])
			out[i] = o
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func writeOutcomes(w io.Writer, title string, outs []outcome) error {
	heading(w, title)
	tw := newTable(w)
	fmt.Fprintln(tw, "  WORKLOAD\tELEMENTS\tRECORD\tDTYPE\tSTRATEGY\tMODE\tCORES\tTILES\tINSTRUCTIONS\tSTATUS")
	for _, o := range outs {
		mode := "-"
		if o.strategy != "" {
			mode = o.mode.String()
		}
		fmt.Fprintf(tw, "  %s\t%d\t%d\t%s\t%s\t%s\t%d\t%d\t%d\t%s\n",
			o.name, o.w.TotalElements, o.w.RecordSizeBytes, o.w.Dtype, o.strategy, mode, o.cores, o.tiles, o.instructions, o.status)
	}
	return tw.Flush()
}

func newSweepCmd(o *options) *cobra.Command {
	var (
		pf       planFlags
		dtype    string
		records  []string
		elements []string
		operands uint32
	)
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Plan every combination of record sizes and element counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := tiling.ParseDtype(dtype)
			if err != nil {
				return err
			}
			rs, err := parseUints(records, 32)
			if err != nil {
				return fmt.Errorf("records: %w", err)
			}
			es, err := parseUints(elements, 64)
			if err != nil {
				return fmt.Errorf("elements: %w", err)
			}
			p, err := o.planner(cmd, &pf)
			if err != nil {
				return err
			}

			var names []string
			var ws []tiling.WorkloadDescriptor
			for _, r := range rs {
				for _, e := range es {
					names = append(names, fmt.Sprintf("%dx%d", e, r))
					ws = append(ws, tiling.WorkloadDescriptor{
						TotalElements:   e,
						RecordSizeBytes: uint32(r),
						Dtype:           d,
						Operands:        operands,
					})
				}
			}
			outs, err := resolveAll(cmd, p, names, ws)
			if err != nil {
				return err
			}
			return writeOutcomes(cmd.OutOrStdout(), "sweep on "+p.Capabilities().Name(), outs)
		},
	}
	pf.register(cmd.Flags())
	cmd.Flags().StringVarP(&dtype, "dtype", "d", "float16", "lane type")
	cmd.Flags().StringSliceVar(&records, "records", []string{"2", "64", "4096", "65536"}, "record sizes in bytes")
	cmd.Flags().StringSliceVar(&elements, "elements", []string{"1", "1000", "1000000"}, "record counts")
	cmd.Flags().Uint32Var(&operands, "operands", 1, "buffer regions live per tile")
	return cmd
}
