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
	"math/rand/v2"

	"github.com/ajroetker/go-tileplan/tiling"
	"github.com/ajroetker/go-tileplan/tiling/contrib/sim"
	"github.com/spf13/cobra"
	"github.com/x448/float16"
)

func newSimulateCmd(o *options) *cobra.Command {
	var (
		wf     workloadFlags
		pf     planFlags
		opName string
		scalar float32
		seed   uint64
	)
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Execute a plan on the host and check it against a direct computation",
		Long: "Plan the workload, run the plan on a host model of the target with random\n" +
			"inputs, and compare every output lane with the op applied directly.\n" +
			"Supported dtypes are float32 and float16.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			op, err := tiling.ParseOp(opName)
			if err != nil {
				return err
			}
			w, err := wf.workload()
			if err != nil {
				return err
			}
			w.Operands = max(w.Operands, uint32(op.Arity()))
			p, err := o.planner(cmd, &pf)
			if err != nil {
				return err
			}
			plan, err := p.Plan(w)
			if err != nil {
				return err
			}

			n := int(w.TotalElements * w.LanesPerRecord())
			rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
			raw := make([][]float32, op.Arity())
			for i := range raw {
				raw[i] = make([]float32, n)
				for j := range raw[i] {
					raw[i][j] = 0.5 + 2*rng.Float32()
				}
			}

			m := sim.New(p.Capabilities(), sim.WithLogger(o.logger(cmd)))
			defer m.Close()

			var (
				in   []sim.Lanes
				out  sim.Lanes
				got  func() []float32
				want []float32
			)
			switch w.Dtype {
			case tiling.Float32:
				for _, r := range raw {
					in = append(in, sim.Float32Lanes(r))
				}
				res := make(sim.Float32Lanes, n)
				out, got = res, func() []float32 { return []float32(res) }
				if want, err = m.Reference(op, scalar, raw...); err != nil {
					return err
				}
			case tiling.Float16:
				var widened [][]float32
				for _, r := range raw {
					l := sim.NewFloat16Lanes(r)
					in = append(in, l)
					widened = append(widened, l.Float32s())
				}
				res := sim.NewFloat16Lanes(make([]float32, n))
				out, got = res, res.Float32s
				if want, err = m.Reference(op, scalar, widened...); err != nil {
					return err
				}
				for i, v := range want {
					want[i] = float16.Fromfloat32(v).Float32()
				}
			default:
				return fmt.Errorf("simulate supports float32 and float16, not %s", w.Dtype)
			}

			stats, err := m.Execute(cmd.Context(), plan, sim.Kernel{Op: op, Scalar: scalar}, out, in...)
			if err != nil {
				return err
			}

			var mismatches int
			first := -1
			for i, v := range got() {
				if v != want[i] {
					if first < 0 {
						first = i
					}
					mismatches++
				}
			}

			outw := cmd.OutOrStdout()
			heading(outw, "simulation")
			tw := newTable(outw)
			fmt.Fprintf(tw, "  op\t%s (%s)\n", op, op.Intrinsic())
			fmt.Fprintf(tw, "  lanes\t%d\n", n)
			fmt.Fprintf(tw, "  cores\t%d\n", stats.Cores)
			fmt.Fprintf(tw, "  tiles\t%d\n", stats.Tiles)
			fmt.Fprintf(tw, "  instructions\t%d (%d repeats)\n", stats.Instructions, stats.Repeats)
			fmt.Fprintf(tw, "  bytes in\t%d\n", stats.BytesIn)
			fmt.Fprintf(tw, "  bytes out\t%d\n", stats.BytesOut)
			if err := tw.Flush(); err != nil {
				return err
			}
			if mismatches > 0 {
				return fmt.Errorf("%d of %d lanes differ, first at lane %d: got %v, want %v",
					mismatches, n, first, got()[first], want[first])
			}
			fmt.Fprintln(outw, "ok")
			return nil
		},
	}
	wf.register(cmd.Flags())
	pf.register(cmd.Flags())
	cmd.Flags().StringVar(&opName, "op", "add", "op to execute")
	cmd.Flags().Float32Var(&scalar, "scalar", 1.5, "scalar operand for adds and muls")
	cmd.Flags().Uint64Var(&seed, "seed", 1, "random seed for the inputs")
	return cmd
}
