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
	"io"
	"strings"
	"text/tabwriter"

	"github.com/ajroetker/go-tileplan/tiling"
	"github.com/samber/lo"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// heading prints a title-cased section heading.
func heading(w io.Writer, s string) {
	fmt.Fprintln(w, cases.Title(language.English).String(s))
}

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
}

// formatSteps renders steps like 0:128x255, or as intrinsic
// calls when op is set.
func formatSteps(steps []tiling.InstructionStep, op *tiling.Op) string {
	return strings.Join(lo.Map(steps, func(s tiling.InstructionStep, _ int) string {
		if op != nil {
			return fmt.Sprintf("%s(%d,%d,%d)", op.Intrinsic(), s.Offset, s.Elements, s.Repeat)
		}
		return fmt.Sprintf("%d:%dx%d", s.Offset, s.Elements, s.Repeat)
	}), " ")
}

func writeSummary(w io.Writer, caps tiling.HardwareCapabilities, plan *tiling.Plan) {
	heading(w, "plan summary")
	tw := newTable(w)
	wl := plan.Workload
	fmt.Fprintf(tw, "  target\t%s\n", caps)
	fmt.Fprintf(tw, "  workload\t%d x %d B %s records, %d lanes each\n", wl.TotalElements, wl.RecordSizeBytes, wl.Dtype, wl.LanesPerRecord())
	fmt.Fprintf(tw, "  strategy\t%s\n", plan.Strategy)
	fmt.Fprintf(tw, "  mode\t%s\n", plan.Mode)
	fmt.Fprintf(tw, "  elements per tile\t%d\n", plan.ElementsPerTile)
	fmt.Fprintf(tw, "  buffer\t%d slot(s) x %d operand(s) of %d B\n", plan.Slots(), len(plan.Regions)/int(plan.Slots()), plan.Regions[0].SizeBytes)
	fmt.Fprintf(tw, "  write\t%s\n", plan.WriteMode)
	fmt.Fprintf(tw, "  tails\t%s\n", plan.TailPolicy)
	fmt.Fprintf(tw, "  cores\t%d\n", len(plan.Cores))
	fmt.Fprintf(tw, "  tiles\t%d\n", plan.TileCount())
	fmt.Fprintf(tw, "  instructions\t%d\n", plan.InstructionCount())
	tw.Flush()
}

func writeCores(w io.Writer, plan *tiling.Plan, showTiles bool, op *tiling.Op) {
	heading(w, "cores")
	tw := newTable(w)
	fmt.Fprintln(tw, "  CORE\tOFFSET\tCOUNT\tTILES\tINSTRUCTIONS")
	for _, c := range plan.Cores {
		steps := lo.SumBy(c.Tiles, func(t tiling.Tile) int { return len(t.Steps) })
		fmt.Fprintf(tw, "  %d\t%d\t%d\t%d\t%d\n", c.CoreIndex, c.ElementOffset, c.ElementCount, len(c.Tiles), steps)
	}
	tw.Flush()
	if !showTiles {
		return
	}

	heading(w, "tiles")
	tw = newTable(w)
	fmt.Fprintln(tw, "  CORE\tTILE\tRECORD\tOFFSET\tCOUNT\tTAIL\tSLOT\tWAIT\tMOVE\tSTEPS")
	for _, c := range plan.Cores {
		for _, t := range c.Tiles {
			record := "-"
			if t.Mode == tiling.SubRowTiled {
				record = fmt.Sprint(t.Record)
			}
			move := fmt.Sprintf("%d+%dB/%d blk", t.Move.OffsetBytes, t.Move.Bytes, t.Move.Blocks)
			if t.Move.LeadBytes > 0 {
				move += fmt.Sprintf(" lead %dB", t.Move.LeadBytes)
			}
			fmt.Fprintf(tw, "  %d\t%d\t%s\t%d\t%d\t%v\t%d\t%d\t%s\t%s\n",
				c.CoreIndex, t.Index, record, t.Offset, t.ElementCount, t.IsTail, t.Buffer, t.WaitFor, move, formatSteps(t.Steps, op))
		}
	}
	tw.Flush()
}

func writeLoop(w io.Writer, caps tiling.HardwareCapabilities, lp *tiling.LoopPlan) {
	heading(w, "loop plan")
	tw := newTable(w)
	fmt.Fprintf(tw, "  target\t%s\n", caps)
	fmt.Fprintf(tw, "  mode\t%s\n", lp.Mode)
	fmt.Fprintf(tw, "  elements per tile\t%d\n", lp.ElementsPerTile)
	fmt.Fprintf(tw, "  double buffered\t%v\n", lp.DoubleBuffered)
	fmt.Fprintf(tw, "  write\t%s\n", lp.WriteMode)
	fmt.Fprintf(tw, "  iterations\t%d\n", lo.SumBy(lp.Cores, func(c tiling.LoopCore) uint64 { return c.Iterations() }))
	tw.Flush()

	heading(w, "cores")
	tw = newTable(w)
	fmt.Fprintln(tw, "  CORE\tOFFSET\tCOUNT\tFULL\tTAIL\tITERATIONS\tFULL STEPS\tTAIL STEPS")
	for _, c := range lp.Cores {
		fmt.Fprintf(tw, "  %d\t%d\t%d\t%d\t%d\t%d\t%s\t%s\n",
			c.CoreIndex, c.ElementOffset, c.ElementCount, c.Tiling.FullTileCount, c.Tiling.TailElements,
			c.Iterations(), formatSteps(c.FullSteps, nil), formatSteps(c.TailSteps, nil))
	}
	tw.Flush()
}
