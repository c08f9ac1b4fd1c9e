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
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"
)

// DefaultMaxInstructions is the instruction ceiling used when none is set.
const DefaultMaxInstructions = 1 << 16

// ResolverOptions configures a Resolver. The zero value is usable.
type ResolverOptions struct {
	// MaxInstructions is the ceiling on steps in one plan. Zero means
	// DefaultMaxInstructions.
	MaxInstructions int

	TailPolicy   TailPolicy
	DoubleBuffer bool

	// SubRowFallback retries in sub-row mode when whole records cannot be
	// tiled at the required alignment. It is off in the zero value, while
	// NewPlanner turns it on unless WithSubRowFallback(false) is given.
	SubRowFallback bool

	// Degenerate handles shapes reported by IsDegenerate. Nil means
	// SingleCoreStrategy.
	Degenerate Strategy

	// IsDegenerate overrides the default degenerate-shape predicate.
	IsDegenerate func(shape []uint64) bool

	Logger *slog.Logger
}

// Resolver composes the split, tile and schedule levels and their tails.
// Every core share goes through the tiler and every tile, tail included,
// goes through the scheduler.
type Resolver struct {
	caps HardwareCapabilities
	opts ResolverOptions
	log  *slog.Logger
}

// NewResolver returns a Resolver for caps.
func NewResolver(caps HardwareCapabilities, opts ResolverOptions) *Resolver {
	if opts.MaxInstructions <= 0 {
		opts.MaxInstructions = DefaultMaxInstructions
	}
	if opts.Degenerate == nil {
		opts.Degenerate = SingleCoreStrategy{}
	}
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Resolver{caps: caps, opts: opts, log: log}
}

// Capabilities returns the target the resolver plans for.
func (r *Resolver) Capabilities() HardwareCapabilities {
	return r.caps
}

// WithCoreCount returns a copy of r that plans for n cores.
func (r *Resolver) WithCoreCount(n uint32) *Resolver {
	c := *r
	c.caps = r.caps.WithCoreCount(n)
	return &c
}

// IsDegenerate reports whether shape needs the alternate strategy. By
// default a shape is degenerate when it is non-empty and every extent is 1,
// such as a (1,1) output.
func (r *Resolver) IsDegenerate(shape []uint64) bool {
	if r.opts.IsDegenerate != nil {
		return r.opts.IsDegenerate(shape)
	}
	return IsDegenerateShape(shape)
}

// IsDegenerateShape is the default degenerate-shape predicate.
func IsDegenerateShape(shape []uint64) bool {
	if len(shape) == 0 {
		return false
	}
	for _, d := range shape {
		if d != 1 {
			return false
		}
	}
	return true
}

// Resolve checks w and produces a plan, dispatching degenerate shapes to the
// configured strategy.
func (r *Resolver) Resolve(w WorkloadDescriptor) (*Plan, error) {
	if err := r.CheckWorkload(w); err != nil {
		return nil, err
	}
	if r.IsDegenerate(w.OutputShape) {
		r.log.Debug("degenerate output shape", "shape", w.OutputShape, "strategy", r.opts.Degenerate.Name())
		return r.opts.Degenerate.Plan(r, w)
	}
	return r.resolveStandard(w)
}

// Standard runs the split, tile and schedule pipeline on w, skipping the
// degenerate-shape dispatch. Custom strategies build on it.
func (r *Resolver) Standard(w WorkloadDescriptor) (*Plan, error) {
	if err := r.CheckWorkload(w); err != nil {
		return nil, err
	}
	return r.resolveStandard(w)
}

// CheckWorkload validates w against the target.
func (r *Resolver) CheckWorkload(w WorkloadDescriptor) error {
	if w.TotalElements == 0 {
		return fmt.Errorf("%w: zero elements", ErrInvalidWorkload)
	}
	if w.RecordSizeBytes == 0 {
		return fmt.Errorf("%w: zero record size", ErrInvalidWorkload)
	}
	if !w.Dtype.Valid() {
		return fmt.Errorf("%w: unknown %s", ErrInvalidWorkload, w.Dtype)
	}
	if _, ok := r.caps.Limits(w.Dtype); !ok {
		return fmt.Errorf("%w: %s is not supported by %s", ErrInvalidWorkload, w.Dtype, r.caps.Name())
	}
	if w.TotalElements > math.MaxUint64/uint64(w.RecordSizeBytes) {
		return fmt.Errorf("%w: %d records of %d B overflow a 64-bit byte offset",
			ErrInvalidWorkload, w.TotalElements, w.RecordSizeBytes)
	}
	if w.RecordSizeBytes%w.Dtype.Size() != 0 {
		return fmt.Errorf("%w: record of %d B is not a whole number of %s lanes",
			ErrInvalidWorkload, w.RecordSizeBytes, w.Dtype)
	}
	for i, d := range w.OutputShape {
		if d == 0 {
			return fmt.Errorf("%w: output extent %d is zero", ErrInvalidWorkload, i)
		}
	}
	if w.Accumulate && r.opts.TailPolicy == TailOverlap {
		return fmt.Errorf("%w: overlapping tails would accumulate twice; use exact tails with atomic-add output",
			ErrInvalidWorkload)
	}
	return nil
}

// geometry is the per-workload tiling decision shared by every core.
type geometry struct {
	mode        TileMode
	perTile     uint64 // records (row) or lanes (sub-row)
	layout      BufferLayout
	limits      DtypeLimits
	recordAlign uint64
	subRowBytes uint64 // lane budget of one sub-row tile
	laneSize    uint64
	recordSize  uint64
	lanesPerRec uint64
}

func (r *Resolver) geometry(w WorkloadDescriptor) (geometry, error) {
	limits, _ := r.caps.Limits(w.Dtype)
	layout, err := NewBufferLayout(r.caps.BufferBudgetBytes(), r.caps.BlockAlignmentBytes(), w.Operands, r.opts.DoubleBuffer)
	if err != nil {
		return geometry{}, err
	}
	g := geometry{
		layout:      layout,
		limits:      limits,
		recordAlign: r.caps.RecordAlignment(w.RecordSizeBytes),
		laneSize:    uint64(w.Dtype.Size()),
		recordSize:  uint64(w.RecordSizeBytes),
		lanesPerRec: w.LanesPerRecord(),
	}

	probe, err := TileRecords(w.TotalElements, g.recordSize, layout.RegionBytes, g.recordAlign)
	switch {
	case err == nil && probe.Mode == RowTiled:
		g.mode = RowTiled
		g.perTile = probe.ElementsPerTile
		return g, nil
	case err == nil:
		r.log.Debug("record exceeds buffer region, tiling within records",
			"record_bytes", g.recordSize, "region_bytes", layout.RegionBytes)
	case errors.Is(err, ErrBufferTooSmall) && r.opts.SubRowFallback:
		r.log.Debug("aligned records do not fit, falling back to sub-row tiling", "err", err)
	default:
		return geometry{}, err
	}

	// Records that are not a whole number of blocks start mid-block, so each
	// sub-row move may carry up to one block of lead.
	g.subRowBytes = layout.RegionBytes
	if block := uint64(r.caps.BlockAlignmentBytes()); g.recordSize%block != 0 {
		g.subRowBytes -= block
	}
	sub, err := TileSubRow(g.recordSize, g.laneSize, g.subRowBytes, uint64(limits.BlockAlignmentElements))
	if err != nil {
		return geometry{}, err
	}
	g.mode = SubRowTiled
	g.perTile = sub.ElementsPerTile
	return g, nil
}

// stepBudget tracks the instruction ceiling while a plan is built.
type stepBudget struct {
	used, max int
}

func (b *stepBudget) take(n uint64) error {
	b.used += int(n)
	if b.used > b.max {
		return fmt.Errorf("%w: more than %d instructions", ErrPlanTooLarge, b.max)
	}
	return nil
}

func (r *Resolver) resolveStandard(w WorkloadDescriptor) (*Plan, error) {
	g, err := r.geometry(w)
	if err != nil {
		return nil, err
	}
	cores, err := SplitAligned(w.TotalElements, r.caps.CoreCount(), g.recordAlign)
	if err != nil {
		return nil, err
	}

	budget := &stepBudget{max: r.opts.MaxInstructions}
	for i := range cores {
		var tiles []Tile
		if g.mode == RowTiled {
			tiles, err = r.rowTiles(g, cores[i], budget)
		} else {
			tiles, err = r.subRowTiles(g, cores[i], budget)
		}
		if err != nil {
			return nil, err
		}
		cores[i].Tiles = tiles
	}

	writeMode := WriteOverwrite
	if w.Accumulate {
		writeMode = WriteAtomicAdd
	}
	w.OutputShape = slices.Clone(w.OutputShape)
	return &Plan{
		Workload:        w,
		Mode:            g.mode,
		ElementsPerTile: g.perTile,
		DoubleBuffered:  g.layout.Slots == 2,
		Regions:         g.layout.Regions,
		WriteMode:       writeMode,
		TailPolicy:      r.opts.TailPolicy,
		Strategy:        "standard",
		Cores:           cores,
	}, nil
}

func (r *Resolver) rowTiles(g geometry, core CoreAssignment, budget *stepBudget) ([]Tile, error) {
	t, err := TileRecords(core.ElementCount, g.recordSize, g.layout.RegionBytes, g.recordAlign)
	if err != nil {
		return nil, err
	}
	tiles := make([]Tile, 0, min(t.TileCount(), uint64(budget.max)))
	for i := range t.TileCount() {
		count := t.ElementsPerTile
		isTail := i == t.FullTileCount
		if isTail {
			count = t.TailElements
		}
		offset := core.ElementOffset + i*t.ElementsPerTile
		tile, err := r.buildTile(g, uint32(i), count*g.lanesPerRec, offset*g.recordSize, isTail, budget)
		if err != nil {
			return nil, err
		}
		tile.Offset = offset
		tile.ElementCount = count
		tile.Mode = RowTiled
		tiles = append(tiles, tile)
	}
	return tiles, nil
}

func (r *Resolver) subRowTiles(g geometry, core CoreAssignment, budget *stepBudget) ([]Tile, error) {
	t, err := TileSubRow(g.recordSize, g.laneSize, g.subRowBytes, uint64(g.limits.BlockAlignmentElements))
	if err != nil {
		return nil, err
	}
	perRecord := t.TileCount()
	tiles := make([]Tile, 0, min(perRecord*core.ElementCount, uint64(budget.max)))
	var index uint32
	for rec := core.ElementOffset; rec < core.ElementOffset+core.ElementCount; rec++ {
		for j := range perRecord {
			lanes := t.ElementsPerTile
			isTail := j == t.FullTileCount
			if isTail {
				lanes = t.TailElements
			}
			laneOffset := j * t.ElementsPerTile
			tile, err := r.buildTile(g, index, lanes, rec*g.recordSize+laneOffset*g.laneSize, isTail, budget)
			if err != nil {
				return nil, err
			}
			tile.Record = rec
			tile.Offset = laneOffset
			tile.ElementCount = lanes
			tile.Mode = SubRowTiled
			tiles = append(tiles, tile)
			index++
		}
	}
	return tiles, nil
}

// buildTile computes the data move, buffer slot and steps of one tile
// holding lanes lanes that start at byteOffset in backing memory.
func (r *Resolver) buildTile(g geometry, index uint32, lanes, byteOffset uint64, isTail bool, budget *stepBudget) (Tile, error) {
	block := uint64(r.caps.BlockAlignmentBytes())
	move := alignedMove(byteOffset, lanes*g.laneSize, block)
	if r.opts.TailPolicy == TailOverlap && isTail && move.LeadBytes == 0 && move.Bytes%block != 0 {
		lead := move.Blocks*block - move.Bytes
		if byteOffset >= lead {
			move.OffsetBytes = byteOffset - lead
			move.LeadBytes = lead
		}
	}
	scheduled := (move.LeadBytes + move.Bytes) / g.laneSize

	maxElems, maxRepeat := g.limits.MaxElementsPerInstr, r.caps.MaxRepeat()
	if err := budget.take(StepCount(scheduled, maxElems, maxRepeat)); err != nil {
		return Tile{}, err
	}
	steps, err := Schedule(scheduled, maxElems, maxRepeat)
	if err != nil {
		return Tile{}, err
	}
	slot, wait := g.layout.slotFor(index)
	return Tile{
		Index:   index,
		IsTail:  isTail,
		Buffer:  slot,
		WaitFor: wait,
		Move:    move,
		Steps:   steps,
	}, nil
}
