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
	"math"
	"math/rand/v2"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func testCaps(cores uint32, budget uint64) HardwareCapabilities {
	return MustCapabilities(Config{Name: "test", CoreCount: cores, BufferBudgetBytes: budget})
}

func mustPlan(t *testing.T, p *Planner, w WorkloadDescriptor) *Plan {
	t.Helper()
	plan, err := p.Plan(w)
	if err != nil {
		t.Fatalf("Plan(%+v): %v", w, err)
	}
	return plan
}

func TestPlanTailTile(t *testing.T) {
	p := NewPlanner(testCaps(1, 256))
	plan := mustPlan(t, p, WorkloadDescriptor{TotalElements: 1000, RecordSizeBytes: 2, Dtype: Float16})

	if plan.ElementsPerTile != 128 {
		t.Errorf("ElementsPerTile = %d, want 128", plan.ElementsPerTile)
	}
	if plan.Strategy != "standard" || plan.Mode != RowTiled || plan.WriteMode != WriteOverwrite {
		t.Errorf("plan = %s/%s/%s, want standard/row/overwrite", plan.Strategy, plan.Mode, plan.WriteMode)
	}
	tiles := plan.Cores[0].Tiles
	if len(tiles) != 8 {
		t.Fatalf("%d tiles, want 8", len(tiles))
	}
	for i, tile := range tiles[:7] {
		if tile.IsTail || tile.ElementCount != 128 {
			t.Errorf("tile %d = {tail %v, count %d}, want a full tile of 128", i, tile.IsTail, tile.ElementCount)
		}
		if want := []InstructionStep{{Offset: 0, Elements: 128, Repeat: 1}}; !cmp.Equal(tile.Steps, want) {
			t.Errorf("tile %d steps = %v, want %v", i, tile.Steps, want)
		}
	}
	tail := tiles[7]
	if !tail.IsTail || tail.ElementCount != 104 || tail.Offset != 896 {
		t.Errorf("tail = {tail %v, offset %d, count %d}, want {true, 896, 104}", tail.IsTail, tail.Offset, tail.ElementCount)
	}
	if diff := cmp.Diff(DataMove{OffsetBytes: 1792, Bytes: 208, Blocks: 7}, tail.Move); diff != "" {
		t.Errorf("tail move mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]InstructionStep{{Offset: 0, Elements: 104, Repeat: 1}}, tail.Steps); diff != "" {
		t.Errorf("tail steps mismatch (-want +got):\n%s", diff)
	}
	if plan.TileCount() != 8 || plan.InstructionCount() != 8 {
		t.Errorf("TileCount, InstructionCount = %d, %d; want 8, 8", plan.TileCount(), plan.InstructionCount())
	}
}

func TestPlanDoubleBuffering(t *testing.T) {
	w := WorkloadDescriptor{TotalElements: 300, RecordSizeBytes: 4, Dtype: Float32}

	single := mustPlan(t, NewPlanner(testCaps(1, 512)), w)
	checkSlots(t, "single", single, []uint32{0, 0, 0}, []int32{-1, 0, 1})
	if single.DoubleBuffered || single.Slots() != 1 {
		t.Errorf("single buffered plan reports %d slots", single.Slots())
	}

	double := mustPlan(t, NewPlanner(testCaps(1, 512), WithDoubleBuffering()), w)
	checkSlots(t, "double", double, []uint32{0, 1, 0, 1, 0}, []int32{-1, -1, 0, 1, 2})
	if !double.DoubleBuffered || double.ElementsPerTile != 64 {
		t.Errorf("double buffered plan: DoubleBuffered %v, ElementsPerTile %d", double.DoubleBuffered, double.ElementsPerTile)
	}
	if len(double.Regions) != 2 || double.Regions[1].OffsetBytes != 256 {
		t.Errorf("regions = %+v, want two 256 B regions", double.Regions)
	}
}

func checkSlots(t *testing.T, name string, plan *Plan, buffers []uint32, waits []int32) {
	t.Helper()
	tiles := plan.Cores[0].Tiles
	if len(tiles) != len(buffers) {
		t.Fatalf("%s: %d tiles, want %d", name, len(tiles), len(buffers))
	}
	for i, tile := range tiles {
		if tile.Buffer != buffers[i] || tile.WaitFor != waits[i] {
			t.Errorf("%s: tile %d = {buffer %d, wait %d}, want {%d, %d}", name, i, tile.Buffer, tile.WaitFor, buffers[i], waits[i])
		}
	}
}

func TestPlanDegenerateShape(t *testing.T) {
	w := WorkloadDescriptor{TotalElements: 1000, RecordSizeBytes: 4, Dtype: Float32}

	p := NewPlanner(DefaultCapabilities())
	w.OutputShape = []uint64{4, 250}
	if plan := mustPlan(t, p, w); len(plan.Cores) != 32 || plan.Strategy != "standard" {
		t.Errorf("(4,250): %d cores with %s, want 32 with standard", len(plan.Cores), plan.Strategy)
	}

	w.OutputShape = []uint64{1, 1}
	plan := mustPlan(t, p, w)
	if len(plan.Cores) != 1 || plan.Strategy != "single-core" {
		t.Errorf("(1,1): %d cores with %s, want 1 with single-core", len(plan.Cores), plan.Strategy)
	}
	if plan.Cores[0].ElementCount != 1000 {
		t.Errorf("(1,1): core 0 owns %d records, want 1000", plan.Cores[0].ElementCount)
	}

	var calls int
	custom := StrategyFunc{Label: "pair", Fn: func(r *Resolver, w WorkloadDescriptor) (*Plan, error) {
		calls++
		plan, err := r.WithCoreCount(2).Standard(w)
		if err != nil {
			return nil, err
		}
		plan.Strategy = "pair"
		return plan, nil
	}}
	p = NewPlanner(DefaultCapabilities(), WithDegenerateStrategy(custom))
	plan = mustPlan(t, p, w)
	if calls != 1 || plan.Strategy != "pair" || len(plan.Cores) != 2 {
		t.Errorf("custom strategy: %d calls, %s, %d cores; want 1, pair, 2", calls, plan.Strategy, len(plan.Cores))
	}
	if plan.Cores[0].ElementCount != 504 || plan.Cores[1].ElementCount != 496 {
		t.Errorf("custom strategy split = %d+%d, want 504+496", plan.Cores[0].ElementCount, plan.Cores[1].ElementCount)
	}

	p = NewPlanner(DefaultCapabilities(), WithDegeneratePredicate(func(shape []uint64) bool { return len(shape) == 1 }))
	w.OutputShape = []uint64{1000}
	if plan := mustPlan(t, p, w); len(plan.Cores) != 1 {
		t.Errorf("custom predicate: %d cores, want 1", len(plan.Cores))
	}
}

func TestIsDegenerateShape(t *testing.T) {
	tests := []struct {
		shape []uint64
		want  bool
	}{
		{nil, false},
		{[]uint64{1}, true},
		{[]uint64{1, 1}, true},
		{[]uint64{1, 1, 1}, true},
		{[]uint64{1, 2}, false},
		{[]uint64{64, 64}, false},
	}
	for _, tt := range tests {
		if got := IsDegenerateShape(tt.shape); got != tt.want {
			t.Errorf("IsDegenerateShape(%v) = %v, want %v", tt.shape, got, tt.want)
		}
	}
}

func TestPlanTooLarge(t *testing.T) {
	w := WorkloadDescriptor{TotalElements: 10_000_000, RecordSizeBytes: 4, Dtype: Float32}
	_, err := NewPlanner(testCaps(1, 256)).Plan(w)
	if !errors.Is(err, ErrPlanTooLarge) {
		t.Fatalf("err = %v, want ErrPlanTooLarge", err)
	}

	w.TotalElements = 300
	if _, err := NewPlanner(testCaps(1, 256), WithMaxInstructions(4)).Plan(w); !errors.Is(err, ErrPlanTooLarge) {
		t.Errorf("ceiling 4: err = %v, want ErrPlanTooLarge", err)
	}
	if _, err := NewPlanner(testCaps(1, 256), WithMaxInstructions(5)).Plan(w); err != nil {
		t.Errorf("ceiling 5: %v", err)
	}
}

func TestPlanHugeWorkloads(t *testing.T) {
	p := NewPlanner(DefaultCapabilities())
	tests := []struct {
		name string
		w    WorkloadDescriptor
		want error
	}{
		{"2^52 float32", WorkloadDescriptor{TotalElements: 1 << 52, RecordSizeBytes: 4, Dtype: Float32}, ErrPlanTooLarge},
		{"MaxUint64 int8", WorkloadDescriptor{TotalElements: math.MaxUint64, RecordSizeBytes: 1, Dtype: Int8}, ErrPlanTooLarge},
		{"MaxUint64 float32", WorkloadDescriptor{TotalElements: math.MaxUint64, RecordSizeBytes: 4, Dtype: Float32}, ErrInvalidWorkload},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan, err := p.Plan(tt.w)
			if !errors.Is(err, tt.want) || plan != nil {
				t.Fatalf("Plan() = %v, %v, want no plan and %v", plan, err, tt.want)
			}
			loop, err := p.PlanLoop(tt.w)
			if tt.want == ErrInvalidWorkload {
				if !errors.Is(err, ErrInvalidWorkload) {
					t.Errorf("PlanLoop() err = %v, want ErrInvalidWorkload", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("PlanLoop(): %v", err)
			}
			var covered uint64
			for _, c := range loop.Cores {
				covered += c.ElementCount
			}
			if covered != tt.w.TotalElements {
				t.Errorf("loop plan covers %d records, want %d", covered, tt.w.TotalElements)
			}
		})
	}
}

func TestPlanExactDivisionHasNoTail(t *testing.T) {
	// 4096 records over 4 cores is 1024 per core, four 256-record tiles each.
	plan := mustPlan(t, NewPlanner(testCaps(4, 1024)), WorkloadDescriptor{TotalElements: 4096, RecordSizeBytes: 4, Dtype: Float32})
	if plan.ElementsPerTile != 256 || len(plan.Cores) != 4 {
		t.Fatalf("plan = %d cores with %d per tile, want 4 cores with 256", len(plan.Cores), plan.ElementsPerTile)
	}
	for ci, c := range plan.Cores {
		tl, err := TileRecords(c.ElementCount, 4, 1024, 8)
		if err != nil {
			t.Fatal(err)
		}
		if tl.TailElements != 0 || uint64(len(c.Tiles)) != tl.FullTileCount || len(c.Tiles) != 4 {
			t.Errorf("core %d: %d tiles, tiling %+v, want 4 full tiles and no tail", ci, len(c.Tiles), tl)
		}
		for ti, tile := range c.Tiles {
			if tile.IsTail {
				t.Errorf("core %d tile %d is a tail", ci, ti)
			}
			if want := []InstructionStep{{Offset: 0, Elements: 64, Repeat: 4}}; !cmp.Equal(tile.Steps, want) {
				t.Errorf("core %d tile %d steps = %v, want %v", ci, ti, tile.Steps, want)
			}
		}
	}
}

func TestPlanSubRow(t *testing.T) {
	p := NewPlanner(testCaps(2, 1024))
	plan := mustPlan(t, p, WorkloadDescriptor{TotalElements: 3, RecordSizeBytes: 4096, Dtype: Float32})

	if plan.Mode != SubRowTiled || plan.ElementsPerTile != 256 {
		t.Fatalf("plan = %s with %d per tile, want subrow with 256", plan.Mode, plan.ElementsPerTile)
	}
	if len(plan.Cores) != 2 || len(plan.Cores[0].Tiles) != 8 || len(plan.Cores[1].Tiles) != 4 {
		t.Fatalf("unexpected tile layout: %d cores", len(plan.Cores))
	}
	for i, tile := range plan.Cores[0].Tiles {
		rec, lane := uint64(i/4), uint64(i%4)*256
		if tile.Record != rec || tile.Offset != lane || tile.ElementCount != 256 {
			t.Errorf("tile %d = {record %d, lane %d, count %d}, want {%d, %d, 256}", i, tile.Record, tile.Offset, tile.ElementCount, rec, lane)
		}
		if tile.Move.OffsetBytes != rec*4096+lane*4 {
			t.Errorf("tile %d move offset = %d, want %d", i, tile.Move.OffsetBytes, rec*4096+lane*4)
		}
		if want := []InstructionStep{{Offset: 0, Elements: 64, Repeat: 4}}; !cmp.Equal(tile.Steps, want) {
			t.Errorf("tile %d steps = %v, want %v", i, tile.Steps, want)
		}
	}
	if got := plan.Cores[1].Tiles[0].Record; got != 2 {
		t.Errorf("core 1 starts at record %d, want 2", got)
	}
}

func TestPlanSubRowFallback(t *testing.T) {
	w := WorkloadDescriptor{TotalElements: 3, RecordSizeBytes: 100, Dtype: Float32}

	plan := mustPlan(t, NewPlanner(testCaps(1, 300)), w)
	if plan.Mode != SubRowTiled {
		t.Fatalf("mode = %s, want subrow", plan.Mode)
	}
	// 100 B records start mid-block: one block of the 288 B region is kept
	// for the lead, so a tile holds at most 64 lanes.
	if plan.ElementsPerTile != 64 {
		t.Errorf("ElementsPerTile = %d, want 64", plan.ElementsPerTile)
	}
	tiles := plan.Cores[0].Tiles
	if len(tiles) != 3 {
		t.Fatalf("%d tiles, want 3", len(tiles))
	}
	wantMoves := []DataMove{
		{OffsetBytes: 0, Bytes: 100, Blocks: 4},
		{OffsetBytes: 96, Bytes: 100, Blocks: 4, LeadBytes: 4},
		{OffsetBytes: 192, Bytes: 100, Blocks: 4, LeadBytes: 8},
	}
	for i, tile := range tiles {
		if !tile.IsTail || tile.ElementCount != 25 || tile.Record != uint64(i) {
			t.Errorf("tile %d = {tail %v, count %d, record %d}, want the 25-lane tail of record %d",
				i, tile.IsTail, tile.ElementCount, tile.Record, i)
		}
		if diff := cmp.Diff(wantMoves[i], tile.Move); diff != "" {
			t.Errorf("tile %d move mismatch (-want +got):\n%s", i, diff)
		}
		if tile.Move.OffsetBytes%32 != 0 {
			t.Errorf("tile %d move starts at %d, not a multiple of 32", i, tile.Move.OffsetBytes)
		}
		lanes := uint32(25 + i)
		if diff := cmp.Diff([]InstructionStep{{Offset: 0, Elements: lanes, Repeat: 1}}, tile.Steps); diff != "" {
			t.Errorf("tile %d steps mismatch (-want +got):\n%s", i, diff)
		}
	}

	_, err := NewPlanner(testCaps(1, 300), WithSubRowFallback(false)).Plan(w)
	if !errors.Is(err, ErrBufferTooSmall) {
		t.Errorf("without fallback: err = %v, want ErrBufferTooSmall", err)
	}

	// A bare resolver leaves the fallback off.
	if _, err := NewResolver(testCaps(1, 300), ResolverOptions{}).Resolve(w); !errors.Is(err, ErrBufferTooSmall) {
		t.Errorf("zero ResolverOptions: err = %v, want ErrBufferTooSmall", err)
	}
	if _, err := NewResolver(testCaps(1, 300), ResolverOptions{SubRowFallback: true}).Resolve(w); err != nil {
		t.Errorf("ResolverOptions with fallback: %v", err)
	}
}

func TestPlanTailOverlap(t *testing.T) {
	p := NewPlanner(testCaps(1, 256), WithTailPolicy(TailOverlap))
	plan := mustPlan(t, p, WorkloadDescriptor{TotalElements: 70, RecordSizeBytes: 4, Dtype: Float32})

	tail := plan.Cores[0].Tiles[1]
	if diff := cmp.Diff(DataMove{OffsetBytes: 248, Bytes: 24, Blocks: 1, LeadBytes: 8}, tail.Move); diff != "" {
		t.Errorf("overlapping tail move mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]InstructionStep{{Offset: 0, Elements: 8, Repeat: 1}}, tail.Steps); diff != "" {
		t.Errorf("overlapping tail steps mismatch (-want +got):\n%s", diff)
	}

	// A tail with nothing before it has nothing to overlap.
	plan = mustPlan(t, p, WorkloadDescriptor{TotalElements: 6, RecordSizeBytes: 4, Dtype: Float32})
	if m := plan.Cores[0].Tiles[0].Move; m.LeadBytes != 0 || m.OffsetBytes != 0 {
		t.Errorf("lone tail move = %+v, want no lead", m)
	}

	exact := mustPlan(t, NewPlanner(testCaps(1, 256)), WorkloadDescriptor{TotalElements: 70, RecordSizeBytes: 4, Dtype: Float32})
	if m := exact.Cores[0].Tiles[1].Move; m != (DataMove{OffsetBytes: 256, Bytes: 24, Blocks: 1}) {
		t.Errorf("exact tail move = %+v", m)
	}
}

func TestPlanAccumulate(t *testing.T) {
	w := WorkloadDescriptor{TotalElements: 4096, RecordSizeBytes: 8, Dtype: Float16, Accumulate: true}
	plan := mustPlan(t, NewPlanner(DefaultCapabilities()), w)
	if plan.WriteMode != WriteAtomicAdd {
		t.Errorf("WriteMode = %s, want atomic-add", plan.WriteMode)
	}

	_, err := NewPlanner(DefaultCapabilities(), WithTailPolicy(TailOverlap)).Plan(w)
	if !errors.Is(err, ErrInvalidWorkload) {
		t.Errorf("accumulate with overlapping tails: err = %v, want ErrInvalidWorkload", err)
	}
}

func TestPlanInvalidWorkload(t *testing.T) {
	noFloat64 := MustCapabilities(Config{Name: "narrow", CoreCount: 1, BufferBudgetBytes: 1024, BlockAlignmentBytes: 4})
	tests := []struct {
		name string
		caps HardwareCapabilities
		w    WorkloadDescriptor
		want error
	}{
		{"zero elements", DefaultCapabilities(), WorkloadDescriptor{RecordSizeBytes: 4, Dtype: Float32}, ErrInvalidWorkload},
		{"zero record", DefaultCapabilities(), WorkloadDescriptor{TotalElements: 4, Dtype: Float32}, ErrInvalidWorkload},
		{"ragged record", DefaultCapabilities(), WorkloadDescriptor{TotalElements: 4, RecordSizeBytes: 6, Dtype: Float32}, ErrInvalidWorkload},
		{"unknown dtype", DefaultCapabilities(), WorkloadDescriptor{TotalElements: 4, RecordSizeBytes: 4, Dtype: Dtype(99)}, ErrInvalidWorkload},
		{"zero extent", DefaultCapabilities(), WorkloadDescriptor{TotalElements: 4, RecordSizeBytes: 4, Dtype: Float32, OutputShape: []uint64{0, 4}}, ErrInvalidWorkload},
		{"unsupported dtype", noFloat64, WorkloadDescriptor{TotalElements: 4, RecordSizeBytes: 8, Dtype: Float64}, ErrInvalidWorkload},
		{"too many operands", testCaps(1, 64), WorkloadDescriptor{TotalElements: 4, RecordSizeBytes: 4, Dtype: Float32, Operands: 4}, ErrBufferTooSmall},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan, err := NewPlanner(tt.caps).Plan(tt.w)
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
			if plan != nil {
				t.Errorf("got a plan alongside an error")
			}
		})
	}
}

func TestPlanIdempotent(t *testing.T) {
	p := NewPlanner(DefaultCapabilities(), WithDoubleBuffering())
	w := WorkloadDescriptor{TotalElements: 1 << 20, RecordSizeBytes: 4, Dtype: Float32, OutputShape: []uint64{1024, 1024}}
	first := mustPlan(t, p, w)
	second := mustPlan(t, p, w)
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("plans differ (-first +second):\n%s", diff)
	}
}

func TestPlanRejectsInvalidStrategyOutput(t *testing.T) {
	broken := StrategyFunc{Label: "broken", Fn: func(r *Resolver, w WorkloadDescriptor) (*Plan, error) {
		plan, err := r.Standard(w)
		if err != nil {
			return nil, err
		}
		plan.Cores[0].Tiles[0].Steps[0].Repeat = 300
		return plan, nil
	}}
	p := NewPlanner(DefaultCapabilities(), WithDegenerateStrategy(broken))
	_, err := p.Plan(WorkloadDescriptor{TotalElements: 1 << 16, RecordSizeBytes: 4, Dtype: Float32, OutputShape: []uint64{1}})
	if !errors.Is(err, ErrAlignmentViolation) {
		t.Fatalf("err = %v, want ErrAlignmentViolation", err)
	}
	var ae *AlignmentError
	if !errors.As(err, &ae) || ae.Check != "step repeat exceeds the repeat cap" {
		t.Errorf("err = %#v, want a repeat cap violation", err)
	}
}

func TestValidateDetectsCoverageGaps(t *testing.T) {
	caps := testCaps(4, 1024)
	plan := mustPlan(t, NewPlanner(caps), WorkloadDescriptor{TotalElements: 1000, RecordSizeBytes: 4, Dtype: Float32})

	last := &plan.Cores[len(plan.Cores)-1]
	last.Tiles = last.Tiles[:len(last.Tiles)-1]
	err := plan.Validate(caps)
	var ae *AlignmentError
	if !errors.As(err, &ae) || ae.Check != "tiles do not cover the core share" {
		t.Errorf("err = %v, want a coverage violation", err)
	}
}

func TestValidateRejectsUnalignedMoves(t *testing.T) {
	caps := testCaps(1, 300)
	plan := mustPlan(t, NewPlanner(caps), WorkloadDescriptor{TotalElements: 3, RecordSizeBytes: 100, Dtype: Float32})
	if err := plan.Validate(caps); err != nil {
		t.Fatalf("Validate() = %v on a planned workload", err)
	}

	// Record 1 starts at byte 100; moving it from there skips the block
	// boundary at 96.
	tile := &plan.Cores[0].Tiles[1]
	tile.Move = DataMove{OffsetBytes: 100, Bytes: 100, Blocks: 4}
	tile.Steps = []InstructionStep{{Offset: 0, Elements: 25, Repeat: 1}}
	err := plan.Validate(caps)
	var ae *AlignmentError
	if !errors.As(err, &ae) || ae.Check != "data move is not block aligned" {
		t.Errorf("err = %v, want an unaligned move violation", err)
	}
}

// TestPlanProperties plans random workloads on a few targets and checks the
// lane totals that Validate does not see directly.
func TestPlanProperties(t *testing.T) {
	targets := []HardwareCapabilities{DefaultCapabilities(), SmallCapabilities(), testCaps(3, 4096), testCaps(7, 1000)}
	rng := rand.New(rand.NewPCG(7, 11))
	var planned int
	for range 400 {
		caps := targets[rng.IntN(len(targets))]
		d := AllDtypes()[rng.IntN(len(AllDtypes()))]
		w := WorkloadDescriptor{
			TotalElements:   1 + rng.Uint64N(200_000),
			RecordSizeBytes: d.Size() * (1 + rng.Uint32N(300)),
			Dtype:           d,
			Operands:        1 + rng.Uint32N(3),
		}
		opts := []Option{WithMaxInstructions(4096)}
		if rng.IntN(2) == 0 {
			opts = append(opts, WithDoubleBuffering())
		}
		if rng.IntN(3) == 0 {
			opts = append(opts, WithTailPolicy(TailOverlap))
		}
		plan, err := NewPlanner(caps, opts...).Plan(w)
		if errors.Is(err, ErrPlanTooLarge) || errors.Is(err, ErrBufferTooSmall) {
			continue
		}
		if err != nil {
			t.Fatalf("Plan(%+v) on %s: %v", w, caps.Name(), err)
		}
		planned++

		limits, _ := caps.Limits(d)
		var lanes uint64
		for _, c := range plan.Cores {
			for _, tile := range c.Tiles {
				lanes += tile.Move.Bytes / uint64(d.Size())
				for _, s := range tile.Steps {
					if s.Elements > limits.MaxElementsPerInstr || s.Repeat > caps.MaxRepeat() {
						t.Fatalf("step %+v exceeds caps", s)
					}
				}
			}
		}
		if want := w.TotalElements * w.LanesPerRecord(); lanes != want {
			t.Fatalf("Plan(%+v) moves %d lanes, want %d", w, lanes, want)
		}
	}
	if planned == 0 {
		t.Fatal("no workload could be planned")
	}
}

func BenchmarkPlan(b *testing.B) {
	p := NewPlanner(DefaultCapabilities(), WithDoubleBuffering())
	w := WorkloadDescriptor{TotalElements: 1 << 20, RecordSizeBytes: 256, Dtype: Float16}
	for i := 0; i < b.N; i++ {
		if _, err := p.Plan(w); err != nil {
			b.Fatal(err)
		}
	}
}
