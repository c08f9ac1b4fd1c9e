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

// Package sim executes tiling plans on the host. It walks a plan exactly as
// generated device code would: each core loads a tile's data move into its
// buffer slot, runs the tile's instruction steps repeat by repeat and writes
// the payload back, overwriting or atomically adding. Comparing the result
// with Reference checks that a plan covers every lane once and only once.
package sim

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/ajroetker/go-tileplan/tiling"
	"github.com/ajroetker/go-tileplan/tiling/contrib/workerpool"
)

// Kernel is the elementwise operation a plan's steps are emitted as.
type Kernel struct {
	Op     tiling.Op
	Scalar float32
}

// Stats counts the work done by one execution.
type Stats struct {
	Cores        int
	Tiles        uint64
	Instructions uint64
	Repeats      uint64
	BytesIn      uint64
	BytesOut     uint64
}

// Option configures a Machine.
type Option func(*Machine)

// WithLogger reports execution progress at debug level.
func WithLogger(l *slog.Logger) Option {
	return func(m *Machine) { m.log = l }
}

// Machine is a host model of the target described by its capabilities,
// with one pool worker per core.
type Machine struct {
	caps tiling.HardwareCapabilities
	pool *workerpool.Pool
	log  *slog.Logger
}

// New starts a machine for caps. Call Close when done.
func New(caps tiling.HardwareCapabilities, opts ...Option) *Machine {
	m := &Machine{
		caps: caps,
		pool: workerpool.New(int(caps.CoreCount())),
		log:  slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Close stops the machine's workers.
func (m *Machine) Close() {
	m.pool.Close()
}

// counters accumulates Stats across cores.
type counters struct {
	tiles, instructions, repeats, bytesIn, bytesOut atomic.Uint64
}

func (c *counters) stats(cores int) Stats {
	return Stats{
		Cores:        cores,
		Tiles:        c.tiles.Load(),
		Instructions: c.instructions.Load(),
		Repeats:      c.repeats.Load(),
		BytesIn:      c.bytesIn.Load(),
		BytesOut:     c.bytesOut.Load(),
	}
}

// check verifies that plan can run on m over lanes of the given length.
func (m *Machine) check(plan *tiling.Plan, lanes ...Lanes) error {
	if err := plan.Validate(m.caps); err != nil {
		return err
	}
	w := plan.Workload
	total := w.TotalElements * w.LanesPerRecord()
	for _, l := range lanes {
		if l.Dtype() != w.Dtype {
			return fmt.Errorf("sim: %s lanes for a %s plan", l.Dtype(), w.Dtype)
		}
		if uint64(l.Len()) != total {
			return fmt.Errorf("sim: %d lanes for a plan covering %d", l.Len(), total)
		}
	}
	if len(plan.Regions) == 0 {
		return fmt.Errorf("sim: plan has no buffer regions")
	}
	return nil
}

// slotBuffers holds one core's on-chip buffer: slots × operands regions.
type slotBuffers struct {
	regions  [][][]float32
	occupant []int32
}

func newSlotBuffers(plan *tiling.Plan, operands int) *slotBuffers {
	regionLanes := plan.Regions[0].SizeBytes / uint64(plan.Workload.Dtype.Size())
	slots := plan.Slots()
	b := &slotBuffers{
		regions:  make([][][]float32, slots),
		occupant: make([]int32, slots),
	}
	for s := range b.regions {
		b.regions[s] = make([][]float32, operands)
		for o := range b.regions[s] {
			b.regions[s][o] = make([]float32, regionLanes)
		}
		b.occupant[s] = -1
	}
	return b
}

// acquire checks that t may load into its slot: the slot's previous
// occupant must be the tile t waits for.
func (b *slotBuffers) acquire(t tiling.Tile) error {
	if got := b.occupant[t.Buffer]; got != t.WaitFor {
		return fmt.Errorf("sim: tile %d loads into slot %d still held by tile %d, expected %d",
			t.Index, t.Buffer, got, t.WaitFor)
	}
	b.occupant[t.Buffer] = int32(t.Index)
	return nil
}

// span is the lane range of a tile's data move.
type span struct {
	start, lanes, lead int
}

func moveSpan(t tiling.Tile, laneSize uint64) span {
	return span{
		start: int(t.Move.OffsetBytes / laneSize),
		lanes: int((t.Move.LeadBytes + t.Move.Bytes) / laneSize),
		lead:  int(t.Move.LeadBytes / laneSize),
	}
}

// runSteps executes t's steps over the loaded operands.
func runSteps(t tiling.Tile, k Kernel, a, b []float32, c *counters) error {
	for _, s := range t.Steps {
		c.instructions.Add(1)
		for r := range s.Repeat {
			lo := int(s.Offset) + int(r)*int(s.Elements)
			hi := lo + int(s.Elements)
			var src []float32
			if b != nil {
				src = b[lo:hi]
			}
			if err := apply(k.Op, a[lo:hi], src, k.Scalar); err != nil {
				return err
			}
			c.repeats.Add(1)
		}
	}
	return nil
}

// Execute runs plan with kernel k, reading the inputs and writing out. The
// number of inputs must match the op's arity and the plan must reserve at
// least that many operand regions.
func (m *Machine) Execute(ctx context.Context, plan *tiling.Plan, k Kernel, out Lanes, in ...Lanes) (Stats, error) {
	arity := k.Op.Arity()
	if !k.Op.Valid() || len(in) != arity {
		return Stats{}, fmt.Errorf("sim: %s takes %d inputs, got %d", k.Op, arity, len(in))
	}
	if operands := max(int(plan.Workload.Operands), 1); operands < arity {
		return Stats{}, fmt.Errorf("sim: plan reserves %d operand regions, %s needs %d", operands, k.Op, arity)
	}
	if err := m.check(plan, append([]Lanes{out}, in...)...); err != nil {
		return Stats{}, err
	}

	laneSize := uint64(plan.Workload.Dtype.Size())
	block := uint64(m.caps.BlockAlignmentBytes())
	var c counters
	m.log.Debug("executing plan", "op", k.Op, "cores", len(plan.Cores), "tiles", plan.TileCount(), "write", plan.WriteMode)

	err := m.pool.Run(ctx, len(plan.Cores), func(core int) error {
		buf := newSlotBuffers(plan, arity)
		for _, t := range plan.Cores[core].Tiles {
			if err := buf.acquire(t); err != nil {
				return err
			}
			sp := moveSpan(t, laneSize)
			regs := buf.regions[t.Buffer]
			for j, l := range in {
				l.Load(regs[j][:sp.lanes], sp.start)
				c.bytesIn.Add(t.Move.Blocks * block)
			}
			a := regs[0][:sp.lanes]
			var b []float32
			if arity == 2 {
				b = regs[1][:sp.lanes]
			}
			if err := runSteps(t, k, a, b, &c); err != nil {
				return err
			}

			// Lead lanes lie before the payload and are not written back.
			payload := a[sp.lead:]
			if plan.WriteMode == tiling.WriteAtomicAdd {
				out.AtomicAdd(payload, sp.start+sp.lead)
			} else {
				out.Store(payload, sp.start+sp.lead)
			}
			c.bytesOut.Add(t.Move.Bytes)
			c.tiles.Add(1)
		}
		return nil
	})
	if err != nil {
		return Stats{}, err
	}
	return c.stats(len(plan.Cores)), nil
}

// Reduce sums every lane of in following plan. Each core reduces its tiles
// with vector adds and folds its partial sum into a single output lane, so
// a plan spread over more than one core must use atomic-add write mode.
func (m *Machine) Reduce(ctx context.Context, plan *tiling.Plan, in Lanes) (float32, Stats, error) {
	if err := m.check(plan, in); err != nil {
		return 0, Stats{}, err
	}
	if len(plan.Cores) > 1 && plan.WriteMode != tiling.WriteAtomicAdd {
		return 0, Stats{}, fmt.Errorf("sim: reducing over %d cores needs atomic-add output, plan uses %s",
			len(plan.Cores), plan.WriteMode)
	}

	laneSize := uint64(plan.Workload.Dtype.Size())
	block := uint64(m.caps.BlockAlignmentBytes())
	out := make(Float32Lanes, 1)
	var c counters

	err := m.pool.Run(ctx, len(plan.Cores), func(core int) error {
		buf := newSlotBuffers(plan, 1)
		var acc []float32
		for _, t := range plan.Cores[core].Tiles {
			if err := buf.acquire(t); err != nil {
				return err
			}
			sp := moveSpan(t, laneSize)
			a := buf.regions[t.Buffer][0][:sp.lanes]
			in.Load(a, sp.start)
			c.bytesIn.Add(t.Move.Blocks * block)
			clear(a[:sp.lead])

			for _, s := range t.Steps {
				if len(acc) < int(s.Elements) {
					acc = append(acc, make([]float32, int(s.Elements)-len(acc))...)
				}
				c.instructions.Add(1)
				for r := range s.Repeat {
					lo := int(s.Offset) + int(r)*int(s.Elements)
					if err := apply(tiling.OpAdd, acc[:s.Elements], a[lo:lo+int(s.Elements)], 0); err != nil {
						return err
					}
					c.repeats.Add(1)
				}
			}
			c.tiles.Add(1)
		}
		var partial float32
		for _, v := range acc {
			partial += v
		}
		out.AtomicAdd([]float32{partial}, 0)
		c.bytesOut.Add(laneSize)
		return nil
	})
	if err != nil {
		return 0, Stats{}, err
	}
	return out[0], c.stats(len(plan.Cores)), nil
}
