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

package tiling

import "fmt"

// LoopPlan is the compact, loop-form counterpart of Plan. Instead of listing
// every tile it gives, per core, the tile counts and the instruction steps
// of one full tile and of the tail tile. Its size does not grow with the
// workload, so it is the fallback when Plan fails with ErrPlanTooLarge.
//
// Loop plans always use exact tails.
//
// In SubRowTiled mode with records that are not a whole number of blocks,
// each record's moves start at the block boundary below it (see
// RecordLeadBytes) and its tiles' steps also cover those lead lanes.
// FullSteps and TailSteps are the steps of a record with no lead.
type LoopPlan struct {
	Workload        WorkloadDescriptor
	Mode            TileMode
	ElementsPerTile uint64
	DoubleBuffered  bool
	Regions         []BufferRegion
	WriteMode       WriteMode
	BlockBytes      uint64
	Cores           []LoopCore
}

// RecordLeadBytes returns the lead carried by every sub-row move of record
// rec. It is zero in RowTiled mode.
func (lp *LoopPlan) RecordLeadBytes(rec uint64) uint64 {
	if lp.Mode != SubRowTiled || lp.BlockBytes == 0 {
		return 0
	}
	return (rec * uint64(lp.Workload.RecordSizeBytes)) % lp.BlockBytes
}

// LoopCore is one core's loop nest.
//
// In RowTiled mode the core runs Tiling.FullTileCount full tiles of
// ElementsPerTile records followed by one tail tile of Tiling.TailElements
// records. In SubRowTiled mode it repeats that sequence, over lanes, once
// for each of its ElementCount records.
type LoopCore struct {
	CoreIndex     uint32
	ElementOffset uint64
	ElementCount  uint64
	Tiling        Tiling
	FullSteps     []InstructionStep
	TailSteps     []InstructionStep
}

// Iterations returns the number of tiles the core executes.
func (c LoopCore) Iterations() uint64 {
	if c.Tiling.Mode == SubRowTiled {
		return c.Tiling.TileCount() * c.ElementCount
	}
	return c.Tiling.TileCount()
}

// PlanLoop produces a loop-form plan for w. Degenerate shapes are pinned to
// a single core, as with the default degenerate strategy.
func (p *Planner) PlanLoop(w WorkloadDescriptor) (*LoopPlan, error) {
	r := p.resolver
	if err := r.CheckWorkload(w); err != nil {
		return nil, err
	}
	if r.IsDegenerate(w.OutputShape) {
		r = r.WithCoreCount(1)
	}
	g, err := r.geometry(w)
	if err != nil {
		return nil, err
	}
	cores, err := SplitAligned(w.TotalElements, r.caps.CoreCount(), g.recordAlign)
	if err != nil {
		return nil, err
	}

	maxElems, maxRepeat := g.limits.MaxElementsPerInstr, r.caps.MaxRepeat()
	out := make([]LoopCore, len(cores))
	for i, c := range cores {
		var t Tiling
		var lanesPerUnit uint64
		if g.mode == RowTiled {
			t, err = TileRecords(c.ElementCount, g.recordSize, g.layout.RegionBytes, g.recordAlign)
			lanesPerUnit = g.lanesPerRec
		} else {
			t, err = TileSubRow(g.recordSize, g.laneSize, g.subRowBytes, uint64(g.limits.BlockAlignmentElements))
			lanesPerUnit = 1
		}
		if err != nil {
			return nil, err
		}
		lc := LoopCore{
			CoreIndex:     c.CoreIndex,
			ElementOffset: c.ElementOffset,
			ElementCount:  c.ElementCount,
			Tiling:        t,
		}
		if t.FullTileCount > 0 {
			if lc.FullSteps, err = Schedule(t.ElementsPerTile*lanesPerUnit, maxElems, maxRepeat); err != nil {
				return nil, err
			}
		}
		if lc.TailSteps, err = Schedule(t.TailElements*lanesPerUnit, maxElems, maxRepeat); err != nil {
			return nil, err
		}
		out[i] = lc
	}

	writeMode := WriteOverwrite
	if w.Accumulate {
		writeMode = WriteAtomicAdd
	}
	return &LoopPlan{
		Workload:        w,
		Mode:            g.mode,
		ElementsPerTile: g.perTile,
		DoubleBuffered:  g.layout.Slots == 2,
		Regions:         g.layout.Regions,
		WriteMode:       writeMode,
		BlockBytes:      uint64(r.caps.BlockAlignmentBytes()),
		Cores:           out,
	}, nil
}

// Expand unrolls the loop plan into the equivalent list of tiles for core i,
// with exact tails. It is mainly useful to check a LoopPlan against a Plan.
func (lp *LoopPlan) Expand(i int, caps HardwareCapabilities) ([]Tile, error) {
	c := lp.Cores[i]
	w := lp.Workload
	limits, ok := caps.Limits(w.Dtype)
	if !ok {
		return nil, fmt.Errorf("%w: %s is not supported by %s", ErrInvalidWorkload, w.Dtype, caps.Name())
	}
	laneSize := uint64(w.Dtype.Size())
	record := uint64(w.RecordSizeBytes)
	block := uint64(caps.BlockAlignmentBytes())
	slots := uint32(1)
	if lp.DoubleBuffered {
		slots = 2
	}
	layout := BufferLayout{Slots: slots}

	var tiles []Tile
	add := func(t Tile, steps []InstructionStep, byteOffset, bytes uint64) error {
		t.Index = uint32(len(tiles))
		t.Buffer, t.WaitFor = layout.slotFor(t.Index)
		t.Move = alignedMove(byteOffset, bytes, block)
		if t.Move.LeadBytes > 0 {
			var err error
			steps, err = Schedule((t.Move.LeadBytes+bytes)/laneSize, limits.MaxElementsPerInstr, caps.MaxRepeat())
			if err != nil {
				return err
			}
		}
		t.Steps = append([]InstructionStep(nil), steps...)
		t.Mode = c.Tiling.Mode
		tiles = append(tiles, t)
		return nil
	}

	units := []uint64{0}
	if c.Tiling.Mode == SubRowTiled {
		units = make([]uint64, 0, c.ElementCount)
		for rec := c.ElementOffset; rec < c.ElementOffset+c.ElementCount; rec++ {
			units = append(units, rec)
		}
	}
	for _, rec := range units {
		for j := range c.Tiling.TileCount() {
			isTail := j == c.Tiling.FullTileCount
			count, steps := c.Tiling.ElementsPerTile, c.FullSteps
			if isTail {
				count, steps = c.Tiling.TailElements, c.TailSteps
			}
			t := Tile{IsTail: isTail, ElementCount: count}
			var err error
			if c.Tiling.Mode == RowTiled {
				t.Offset = c.ElementOffset + j*c.Tiling.ElementsPerTile
				err = add(t, steps, t.Offset*record, count*record)
			} else {
				t.Record = rec
				t.Offset = j * c.Tiling.ElementsPerTile
				err = add(t, steps, rec*record+t.Offset*laneSize, count*laneSize)
			}
			if err != nil {
				return nil, err
			}
		}
	}
	return tiles, nil
}
