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
	"cmp"
	"fmt"
	"strconv"
	"strings"

	"github.com/ajroetker/go-tileplan/tiling"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// targetFlags selects the hardware the plan is made for.
type targetFlags struct {
	name        string
	cores       uint32
	budget      uint64
	block       uint32
	maxRepeat   uint32
	vectorWidth uint32
}

func (f *targetFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&f.name, "target", "default", "target preset: default, small or host")
	fs.Uint32Var(&f.cores, "cores", 0, "override the core count")
	fs.Uint64Var(&f.budget, "budget", 0, "override the per-core buffer budget in bytes")
	fs.Uint32Var(&f.block, "block", 0, "override the data-move block size in bytes")
	fs.Uint32Var(&f.maxRepeat, "max-repeat", 0, "override the instruction repeat cap")
	fs.Uint32Var(&f.vectorWidth, "vector-width", 0, "override the vector width in bytes")
}

func (f *targetFlags) capabilities() (tiling.HardwareCapabilities, error) {
	var base tiling.HardwareCapabilities
	switch strings.ToLower(f.name) {
	case "default":
		base = tiling.DefaultCapabilities()
	case "small":
		base = tiling.SmallCapabilities()
	case "host":
		base = tiling.HostCapabilities()
	default:
		return tiling.HardwareCapabilities{}, fmt.Errorf("unknown target %q (want default, small or host)", f.name)
	}
	if f.cores == 0 && f.budget == 0 && f.block == 0 && f.maxRepeat == 0 && f.vectorWidth == 0 {
		return base, nil
	}
	return tiling.NewCapabilities(tiling.Config{
		Name:                base.Name() + "*",
		CoreCount:           cmp.Or(f.cores, base.CoreCount()),
		BufferBudgetBytes:   cmp.Or(f.budget, base.BufferBudgetBytes()),
		BlockAlignmentBytes: cmp.Or(f.block, base.BlockAlignmentBytes()),
		MaxRepeat:           cmp.Or(f.maxRepeat, base.MaxRepeat()),
		VectorWidthBytes:    cmp.Or(f.vectorWidth, base.VectorWidthBytes()),
	})
}

// workloadFlags describe a single workload on the command line.
type workloadFlags struct {
	elements   uint64
	record     uint32
	dtype      string
	shape      []string
	operands   uint32
	accumulate bool
}

func (f *workloadFlags) register(fs *pflag.FlagSet) {
	fs.Uint64VarP(&f.elements, "elements", "n", 1<<20, "number of records")
	fs.Uint32VarP(&f.record, "record", "r", 4, "record size in bytes")
	fs.StringVarP(&f.dtype, "dtype", "d", "float32", "lane type")
	fs.StringSliceVar(&f.shape, "shape", nil, "output shape, e.g. 1,1")
	fs.Uint32Var(&f.operands, "operands", 1, "buffer regions live per tile")
	fs.BoolVar(&f.accumulate, "accumulate", false, "accumulate into a shared output with atomic adds")
}

func (f *workloadFlags) workload() (tiling.WorkloadDescriptor, error) {
	d, err := tiling.ParseDtype(f.dtype)
	if err != nil {
		return tiling.WorkloadDescriptor{}, err
	}
	shape, err := parseUints(f.shape, 64)
	if err != nil {
		return tiling.WorkloadDescriptor{}, fmt.Errorf("shape: %w", err)
	}
	return tiling.WorkloadDescriptor{
		TotalElements:   f.elements,
		RecordSizeBytes: f.record,
		Dtype:           d,
		OutputShape:     shape,
		Operands:        f.operands,
		Accumulate:      f.accumulate,
	}, nil
}

// planFlags are the planner options.
type planFlags struct {
	doubleBuffer    bool
	tail            string
	maxInstructions int
	noSubRow        bool
}

func (f *planFlags) register(fs *pflag.FlagSet) {
	fs.BoolVar(&f.doubleBuffer, "double-buffer", false, "split the buffer into two slots so loads overlap compute")
	fs.StringVar(&f.tail, "tail", "exact", "tail policy: exact or overlap")
	fs.IntVar(&f.maxInstructions, "max-instructions", tiling.DefaultMaxInstructions, "instruction ceiling for unrolled plans")
	fs.BoolVar(&f.noSubRow, "no-subrow-fallback", false, "fail instead of tiling within records when aligned records do not fit")
}

func (o *options) planner(cmd *cobra.Command, f *planFlags) (*tiling.Planner, error) {
	caps, err := o.target.capabilities()
	if err != nil {
		return nil, err
	}
	tail, err := tiling.ParseTailPolicy(f.tail)
	if err != nil {
		return nil, err
	}
	opts := []tiling.Option{
		tiling.WithTailPolicy(tail),
		tiling.WithMaxInstructions(f.maxInstructions),
		tiling.WithSubRowFallback(!f.noSubRow),
		tiling.WithLogger(o.logger(cmd)),
	}
	if f.doubleBuffer {
		opts = append(opts, tiling.WithDoubleBuffering())
	}
	return tiling.NewPlanner(caps, opts...), nil
}

// parseUints parses a list of unsigned integers that must fit in bitSize
// bits.
func parseUints(ss []string, bitSize int) ([]uint64, error) {
	if len(ss) == 0 {
		return nil, nil
	}
	out := make([]uint64, 0, len(ss))
	for _, s := range ss {
		v, err := strconv.ParseUint(strings.TrimSpace(s), 10, bitSize)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
