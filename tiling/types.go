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

// Package tiling plans how a large tensor-shaped workload runs on a small,
// fixed array of accelerator cores with a tiny on-chip buffer.
//
// Planning happens in three levels, each with its own tail:
//
//   - Split distributes records across cores.
//   - TileRecords (or TileSubRow) cuts one core's share into buffer-sized tiles.
//   - Schedule decomposes one tile into legal vector-instruction steps.
//
// A Planner composes the levels into a Plan that a code emitter can walk
// without making further decisions:
//
//	caps := tiling.DefaultCapabilities()
//	p := tiling.NewPlanner(caps, tiling.WithDoubleBuffering())
//	w := tiling.WorkloadDescriptor{
//	    TotalElements:   1 << 20,
//	    RecordSizeBytes: 4,
//	    Dtype:           tiling.Float32,
//	}
//	plan, err := p.Plan(w)
//	if errors.Is(err, tiling.ErrPlanTooLarge) {
//	    loop, _ := p.PlanLoop(w) // emit loops instead of an unrolled plan
//	}
//
// Planning is pure: no I/O, no shared state, and identical inputs give
// identical plans.
package tiling

import (
	"fmt"
	"strings"
)

// Dtype identifies the element type held in each vector lane.
type Dtype uint8

const (
	Float16 Dtype = iota
	BFloat16
	Float32
	Float64
	Int8
	UInt8
	Int16
	Int32
	Int64

	numDtypes
)

var dtypeNames = [numDtypes]string{
	Float16:  "float16",
	BFloat16: "bfloat16",
	Float32:  "float32",
	Float64:  "float64",
	Int8:     "int8",
	UInt8:    "uint8",
	Int16:    "int16",
	Int32:    "int32",
	Int64:    "int64",
}

var dtypeSizes = [numDtypes]uint32{
	Float16:  2,
	BFloat16: 2,
	Float32:  4,
	Float64:  8,
	Int8:     1,
	UInt8:    1,
	Int16:    2,
	Int32:    4,
	Int64:    8,
}

// Valid reports whether d is one of the declared dtypes.
func (d Dtype) Valid() bool {
	return d < numDtypes
}

// Size returns the size of one lane in bytes, or 0 for an unknown dtype.
func (d Dtype) Size() uint32 {
	if !d.Valid() {
		return 0
	}
	return dtypeSizes[d]
}

// String returns the lower-case dtype name.
func (d Dtype) String() string {
	if !d.Valid() {
		return fmt.Sprintf("dtype(%d)", uint8(d))
	}
	return dtypeNames[d]
}

// ParseDtype accepts the names returned by Dtype.String plus the common
// short forms fp16, bf16, fp32 and fp64.
func ParseDtype(s string) (Dtype, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "fp16", "half":
		return Float16, nil
	case "bf16":
		return BFloat16, nil
	case "fp32", "float":
		return Float32, nil
	case "fp64", "double":
		return Float64, nil
	}
	for d := range numDtypes {
		if dtypeNames[d] == s {
			return d, nil
		}
	}
	return 0, fmt.Errorf("unknown dtype %q", s)
}

// AllDtypes returns every declared dtype in declaration order.
func AllDtypes() []Dtype {
	out := make([]Dtype, 0, numDtypes)
	for d := range numDtypes {
		out = append(out, d)
	}
	return out
}

// TileMode tells the consumer how a tile relates to records.
type TileMode uint8

const (
	// RowTiled tiles hold whole records. Tile.Offset is the first global
	// record and Tile.ElementCount counts records.
	RowTiled TileMode = iota

	// SubRowTiled is used when a single record does not fit the buffer.
	// Tile.Record is the global record, Tile.Offset the first lane inside it
	// and Tile.ElementCount counts lanes.
	SubRowTiled
)

// String returns "row" or "subrow".
func (m TileMode) String() string {
	switch m {
	case RowTiled:
		return "row"
	case SubRowTiled:
		return "subrow"
	default:
		return "unknown"
	}
}

// WriteMode selects how tiles are written back to the output.
type WriteMode uint8

const (
	// WriteOverwrite stores results directly; cores own disjoint outputs.
	WriteOverwrite WriteMode = iota

	// WriteAtomicAdd brackets write-back with atomic accumulation so several
	// cores can add into the same output region.
	WriteAtomicAdd
)

// String returns "overwrite" or "atomic-add".
func (m WriteMode) String() string {
	switch m {
	case WriteOverwrite:
		return "overwrite"
	case WriteAtomicAdd:
		return "atomic-add"
	default:
		return "unknown"
	}
}

// TailPolicy selects how a tile whose byte length is not block aligned is
// moved.
type TailPolicy uint8

const (
	// TailExact moves the tail from its own start, padding the last block.
	TailExact TailPolicy = iota

	// TailOverlap moves whole blocks ending exactly at the tail's end,
	// re-reading data already covered by the previous tile. Only valid for
	// WriteOverwrite.
	TailOverlap
)

// String returns "exact" or "overlap".
func (p TailPolicy) String() string {
	switch p {
	case TailExact:
		return "exact"
	case TailOverlap:
		return "overlap"
	default:
		return "unknown"
	}
}

// ParseTailPolicy parses the names returned by TailPolicy.String.
func ParseTailPolicy(s string) (TailPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "exact", "":
		return TailExact, nil
	case "overlap":
		return TailOverlap, nil
	}
	return 0, fmt.Errorf("unknown tail policy %q", s)
}

// WorkloadDescriptor describes one kernel invocation. Shapes and dtypes are
// assumed to be validated by the caller; the planner only checks that the
// numbers are usable.
type WorkloadDescriptor struct {
	// TotalElements is the number of records to process.
	TotalElements uint64

	// RecordSizeBytes is the size of one record. It must be a multiple of
	// Dtype.Size(); a record holds RecordSizeBytes/Dtype.Size() lanes.
	RecordSizeBytes uint32

	Dtype Dtype

	// OutputShape is only inspected for degenerate-shape routing.
	OutputShape []uint64

	// Operands is the number of buffers live per tile (inputs, output,
	// scratch). Zero means 1.
	Operands uint32

	// Accumulate requests atomic-add write-back into a shared output.
	Accumulate bool
}

// LanesPerRecord returns RecordSizeBytes / Dtype.Size(), or 0 when the
// dtype is unknown.
func (w WorkloadDescriptor) LanesPerRecord() uint64 {
	size := w.Dtype.Size()
	if size == 0 {
		return 0
	}
	return uint64(w.RecordSizeBytes / size)
}

func (w WorkloadDescriptor) operands() uint64 {
	if w.Operands == 0 {
		return 1
	}
	return uint64(w.Operands)
}

// CoreAssignment is the share of records given to one core.
type CoreAssignment struct {
	CoreIndex     uint32
	ElementOffset uint64
	ElementCount  uint64
	Tiles         []Tile
}

// Tile is one buffer-sized chunk of a core's share. See TileMode for how
// Offset and ElementCount are interpreted.
type Tile struct {
	Index        uint32
	Offset       uint64
	ElementCount uint64
	IsTail       bool
	Mode         TileMode

	// Record is the global record index in SubRowTiled mode.
	Record uint64

	// Buffer is the buffer slot the tile is loaded into.
	Buffer uint32

	// WaitFor is the index of the tile whose compute must be fully emitted
	// before this tile's load may reuse Buffer, or -1.
	WaitFor int32

	Move  DataMove
	Steps []InstructionStep
}

// DataMove is the block-granular transfer between backing memory and the
// on-chip buffer for one tile.
type DataMove struct {
	// OffsetBytes is the global byte offset the transfer starts at. It is
	// block aligned, except for TailOverlap tails, which are placed to end
	// with their payload.
	OffsetBytes uint64

	// Bytes is the payload owned by the tile.
	Bytes uint64

	// Blocks is the number of whole blocks transferred.
	Blocks uint64

	// LeadBytes is the data read ahead of the tile's own payload: the bytes
	// between a block boundary and a sub-row tile that starts mid-block, or
	// the overlap of a TailOverlap tail. Lead lanes are computed but never
	// written back.
	LeadBytes uint64
}

// InstructionStep is one vector instruction: Repeat consecutive operations of
// Elements lanes each, starting at lane Offset of the tile's buffer region.
type InstructionStep struct {
	Offset   uint64
	Elements uint32
	Repeat   uint32
}

// Lanes returns Elements*Repeat.
func (s InstructionStep) Lanes() uint64 {
	return uint64(s.Elements) * uint64(s.Repeat)
}

// BufferRegion is one physical region of the on-chip buffer.
type BufferRegion struct {
	Slot        uint32
	Operand     uint32
	OffsetBytes uint64
	SizeBytes   uint64
}

// Plan is the finished result of planning. It is a plain value: it owns no
// resources and must not be modified after it is returned.
type Plan struct {
	Workload        WorkloadDescriptor
	Mode            TileMode
	ElementsPerTile uint64
	DoubleBuffered  bool
	Regions         []BufferRegion
	WriteMode       WriteMode
	TailPolicy      TailPolicy

	// Strategy names the strategy that produced the plan.
	Strategy string

	Cores []CoreAssignment
}

// LanesPerRecord returns the number of lanes in one record of the workload.
func (p *Plan) LanesPerRecord() uint64 {
	return p.Workload.LanesPerRecord()
}

// TileCount returns the number of tiles over all cores.
func (p *Plan) TileCount() int {
	n := 0
	for _, c := range p.Cores {
		n += len(c.Tiles)
	}
	return n
}

// InstructionCount returns the number of instruction steps over all tiles.
func (p *Plan) InstructionCount() int {
	n := 0
	for _, c := range p.Cores {
		for _, t := range c.Tiles {
			n += len(t.Steps)
		}
	}
	return n
}

// Slots returns the number of buffer slots tiles alternate between.
func (p *Plan) Slots() uint32 {
	if p.DoubleBuffered {
		return 2
	}
	return 1
}
