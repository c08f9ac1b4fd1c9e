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

import (
	"fmt"

	"github.com/samber/lo"
)

// Validate checks every structural invariant of p against caps and returns
// an *AlignmentError describing the first violation. A plan produced by a
// Planner always validates; a failure indicates a defect in the planner or
// in a custom Strategy.
func (p *Plan) Validate(caps HardwareCapabilities) error {
	w := p.Workload
	limits, ok := caps.Limits(w.Dtype)
	if !ok {
		return fmt.Errorf("%w: %s is not supported by %s", ErrInvalidWorkload, w.Dtype, caps.Name())
	}
	lanesPerRec := w.LanesPerRecord()
	laneSize := uint64(w.Dtype.Size())
	block := uint64(caps.BlockAlignmentBytes())
	slots := p.Slots()

	if len(p.Cores) == 0 || len(p.Cores) > int(caps.CoreCount()) {
		return &AlignmentError{Check: "core count", Core: -1, Tile: -1, Requested: w.TotalElements, Offset: uint64(len(p.Cores)), Alignment: uint64(caps.CoreCount())}
	}
	total := lo.SumBy(p.Cores, func(c CoreAssignment) uint64 { return c.ElementCount })
	if total != w.TotalElements {
		return &AlignmentError{Check: "core shares do not sum to the workload", Core: -1, Tile: -1, Requested: w.TotalElements, Offset: total}
	}

	var regionBytes uint64
	if len(p.Regions) > 0 {
		regionBytes = p.Regions[0].SizeBytes
	}

	var next uint64
	for ci, c := range p.Cores {
		fail := func(check string, tile int, requested, offset, align uint64) error {
			return &AlignmentError{Check: check, Core: ci, Tile: tile, Requested: requested, Offset: offset, Alignment: align}
		}
		if c.ElementCount == 0 {
			return fail("empty core assignment", -1, 0, c.ElementOffset, 0)
		}
		if c.ElementOffset != next {
			return fail("core shares are not contiguous", -1, c.ElementCount, c.ElementOffset, next)
		}
		next += c.ElementCount

		var covered uint64
		perRecord := make(map[uint64]uint64)
		for ti, t := range c.Tiles {
			lanes := t.ElementCount
			if t.Mode == RowTiled {
				lanes *= lanesPerRec
				if t.Offset != c.ElementOffset+covered {
					return fail("row tiles are not contiguous", ti, t.ElementCount, t.Offset, c.ElementOffset+covered)
				}
				covered += t.ElementCount
				if !t.IsTail && (t.Offset*uint64(w.RecordSizeBytes))%block != 0 {
					return fail("tile start is not block aligned", ti, t.ElementCount, t.Offset*uint64(w.RecordSizeBytes), block)
				}
			} else {
				if t.Record < c.ElementOffset || t.Record >= c.ElementOffset+c.ElementCount {
					return fail("sub-row tile outside its core", ti, t.ElementCount, t.Record, 0)
				}
				if t.Offset != perRecord[t.Record] {
					return fail("sub-row tiles are not contiguous", ti, t.ElementCount, t.Offset, perRecord[t.Record])
				}
				perRecord[t.Record] += t.ElementCount
			}
			if t.Mode != p.Mode {
				return fail("tile mode differs from plan mode", ti, t.ElementCount, t.Offset, 0)
			}
			if t.Buffer >= slots {
				return fail("tile uses a buffer slot that does not exist", ti, t.ElementCount, uint64(t.Buffer), uint64(slots))
			}
			if t.Buffer != uint32(ti)%slots {
				return fail("buffer slots do not alternate", ti, t.ElementCount, uint64(t.Buffer), uint64(slots))
			}
			if want := int32(ti) - int32(slots); t.WaitFor != max(want, -1) {
				return fail("slot reuse does not wait for the previous occupant", ti, t.ElementCount, uint64(t.WaitFor), uint64(slots))
			}

			m := t.Move
			start := t.Offset * uint64(w.RecordSizeBytes)
			if t.Mode == SubRowTiled {
				start = t.Record*uint64(w.RecordSizeBytes) + t.Offset*laneSize
			}
			if m.OffsetBytes+m.LeadBytes != start {
				return fail("data move does not start at the tile", ti, lanes, m.OffsetBytes+m.LeadBytes, start)
			}
			overlapTail := t.IsTail && p.TailPolicy == TailOverlap && p.WriteMode == WriteOverwrite
			if m.OffsetBytes%block != 0 && !overlapTail {
				return fail("data move is not block aligned", ti, m.Bytes, m.OffsetBytes, block)
			}
			if m.LeadBytes >= block {
				return fail("data move lead exceeds one block", ti, m.Bytes, m.LeadBytes, block)
			}
			if m.Bytes != lanes*laneSize {
				return fail("data move size differs from tile size", ti, lanes, m.Bytes, laneSize)
			}
			if m.Blocks*block < m.LeadBytes+m.Bytes {
				return fail("data move does not cover the tile", ti, m.LeadBytes+m.Bytes, m.Blocks*block, block)
			}
			if regionBytes > 0 && m.Blocks*block > regionBytes {
				return fail("data move overflows its buffer region", ti, m.Blocks*block, regionBytes, block)
			}

			var stepLanes uint64
			for _, s := range t.Steps {
				if s.Elements == 0 || s.Elements > limits.MaxElementsPerInstr {
					return fail("step width exceeds the instruction cap", ti, uint64(s.Elements), s.Offset, uint64(limits.MaxElementsPerInstr))
				}
				if s.Repeat == 0 || s.Repeat > caps.MaxRepeat() {
					return fail("step repeat exceeds the repeat cap", ti, uint64(s.Repeat), s.Offset, uint64(caps.MaxRepeat()))
				}
				if s.Offset != stepLanes {
					return fail("steps are not contiguous", ti, s.Lanes(), s.Offset, stepLanes)
				}
				if (s.Offset*laneSize)%block != 0 {
					return fail("step offset is not block aligned", ti, s.Lanes(), s.Offset*laneSize, block)
				}
				stepLanes += s.Lanes()
			}
			if want := (m.LeadBytes + m.Bytes) / laneSize; stepLanes != want {
				return fail("steps do not cover the tile", ti, want, stepLanes, laneSize)
			}
		}

		if p.Mode == RowTiled && covered != c.ElementCount {
			return fail("tiles do not cover the core share", -1, c.ElementCount, covered, 0)
		}
		if p.Mode == SubRowTiled {
			if uint64(len(perRecord)) != c.ElementCount {
				return fail("sub-row tiles do not cover every record", -1, c.ElementCount, uint64(len(perRecord)), 0)
			}
			for rec, n := range perRecord {
				if n != lanesPerRec {
					return fail("sub-row tiles do not cover the record", -1, lanesPerRec, rec, n)
				}
			}
		}
	}
	return nil
}
