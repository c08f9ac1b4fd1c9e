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
	"maps"
	"slices"
)

const (
	// MaxRepeatLimit is the width of the hardware repeat field.
	MaxRepeatLimit = 255

	// DefaultMaskLanes caps the lanes a single instruction can address
	// through its lane mask.
	DefaultMaskLanes = 128
)

// DtypeLimits is the per-dtype instruction geometry.
type DtypeLimits struct {
	// MaxElementsPerInstr is the number of lanes one repeat of a vector
	// instruction processes.
	MaxElementsPerInstr uint32

	// BlockAlignmentElements is the number of lanes in one aligned block.
	BlockAlignmentElements uint32
}

// Config describes a target. Zero fields take the defaults noted below.
type Config struct {
	Name string

	// CoreCount is the number of independent cores. Required.
	CoreCount uint32

	// BufferBudgetBytes is the on-chip buffer available to one core. Required.
	BufferBudgetBytes uint64

	// BlockAlignmentBytes is the data-move granularity. Default 32.
	BlockAlignmentBytes uint32

	// MaxRepeat is the repeat-field cap, 1..255. Default 255.
	MaxRepeat uint32

	// VectorWidthBytes derives MaxElementsPerInstr = width/size for every
	// dtype. Default 256.
	VectorWidthBytes uint32

	// MaskLanes caps derived MaxElementsPerInstr. Default DefaultMaskLanes.
	MaskLanes uint32

	// MaxElements overrides the derived MaxElementsPerInstr per dtype.
	MaxElements map[Dtype]uint32
}

// HardwareCapabilities is the immutable description of a target. Build one
// with NewCapabilities or a preset and pass it to NewPlanner.
type HardwareCapabilities struct {
	name       string
	coreCount  uint32
	budget     uint64
	block      uint32
	maxRepeat  uint32
	vectorSize uint32
	limits     map[Dtype]DtypeLimits
}

// NewCapabilities validates cfg and builds the per-dtype limit table.
func NewCapabilities(cfg Config) (HardwareCapabilities, error) {
	if cfg.CoreCount == 0 {
		return HardwareCapabilities{}, fmt.Errorf("%w: core count must be positive", ErrInvalidWorkload)
	}
	if cfg.BufferBudgetBytes == 0 {
		return HardwareCapabilities{}, fmt.Errorf("%w: buffer budget must be positive", ErrInvalidWorkload)
	}
	block := cfg.BlockAlignmentBytes
	if block == 0 {
		block = 32
	}
	maxRepeat := cfg.MaxRepeat
	if maxRepeat == 0 {
		maxRepeat = MaxRepeatLimit
	}
	if maxRepeat > MaxRepeatLimit {
		return HardwareCapabilities{}, fmt.Errorf("%w: max repeat %d exceeds %d", ErrInvalidWorkload, maxRepeat, MaxRepeatLimit)
	}
	width := cfg.VectorWidthBytes
	if width == 0 {
		width = 256
	}
	maskLanes := cfg.MaskLanes
	if maskLanes == 0 {
		maskLanes = DefaultMaskLanes
	}

	limits := make(map[Dtype]DtypeLimits, numDtypes)
	for _, d := range AllDtypes() {
		size := d.Size()
		maxElems := min(width/size, maskLanes)
		if v, ok := cfg.MaxElements[d]; ok {
			maxElems = v
		}
		if maxElems == 0 {
			return HardwareCapabilities{}, fmt.Errorf("%w: %s has zero lanes per instruction", ErrInvalidWorkload, d)
		}
		// A block must hold a whole number of lanes, otherwise the dtype is
		// not addressable on this target and is left out of the table.
		if block%size != 0 {
			continue
		}
		// Step offsets advance in whole instructions, which must stay block
		// aligned in the buffer.
		if (maxElems*size)%block != 0 {
			return HardwareCapabilities{}, fmt.Errorf("%w: %s instruction of %d lanes is %d B, not a multiple of the %d B block",
				ErrInvalidWorkload, d, maxElems, maxElems*size, block)
		}
		limits[d] = DtypeLimits{
			MaxElementsPerInstr:    maxElems,
			BlockAlignmentElements: block / size,
		}
	}
	for d := range cfg.MaxElements {
		if !d.Valid() {
			return HardwareCapabilities{}, fmt.Errorf("%w: override for unknown %s", ErrInvalidWorkload, d)
		}
	}

	name := cfg.Name
	if name == "" {
		name = "custom"
	}
	return HardwareCapabilities{
		name:       name,
		coreCount:  cfg.CoreCount,
		budget:     cfg.BufferBudgetBytes,
		block:      block,
		maxRepeat:  maxRepeat,
		vectorSize: width,
		limits:     limits,
	}, nil
}

// MustCapabilities is like NewCapabilities but panics on error. It is meant
// for presets and tests.
func MustCapabilities(cfg Config) HardwareCapabilities {
	c, err := NewCapabilities(cfg)
	if err != nil {
		panic(err)
	}
	return c
}

// DefaultCapabilities returns the reference accelerator: 32 cores with a
// 248 KiB buffer each, 32-byte blocks and 256-byte vectors, giving 128 lanes
// for 16-bit types and 64 lanes for 32-bit types.
func DefaultCapabilities() HardwareCapabilities {
	return MustCapabilities(Config{
		Name:                "default",
		CoreCount:           32,
		BufferBudgetBytes:   248 * 1024,
		BlockAlignmentBytes: 32,
		MaxRepeat:           MaxRepeatLimit,
		VectorWidthBytes:    256,
	})
}

// SmallCapabilities returns a two-core target with a 192 KiB buffer, the
// low end the planner is tuned for.
func SmallCapabilities() HardwareCapabilities {
	return MustCapabilities(Config{
		Name:                "small",
		CoreCount:           2,
		BufferBudgetBytes:   192 * 1024,
		BlockAlignmentBytes: 32,
		MaxRepeat:           MaxRepeatLimit,
		VectorWidthBytes:    256,
	})
}

// Name returns the target name.
func (c HardwareCapabilities) Name() string { return c.name }

// CoreCount returns the number of cores.
func (c HardwareCapabilities) CoreCount() uint32 { return c.coreCount }

// BufferBudgetBytes returns the per-core on-chip buffer budget.
func (c HardwareCapabilities) BufferBudgetBytes() uint64 { return c.budget }

// BlockAlignmentBytes returns the data-move block size.
func (c HardwareCapabilities) BlockAlignmentBytes() uint32 { return c.block }

// MaxRepeat returns the repeat-field cap.
func (c HardwareCapabilities) MaxRepeat() uint32 { return c.maxRepeat }

// VectorWidthBytes returns the vector width used to derive lane counts.
func (c HardwareCapabilities) VectorWidthBytes() uint32 { return c.vectorSize }

// Limits returns the instruction geometry for d.
func (c HardwareCapabilities) Limits(d Dtype) (DtypeLimits, bool) {
	l, ok := c.limits[d]
	return l, ok
}

// Dtypes returns the supported dtypes in declaration order.
func (c HardwareCapabilities) Dtypes() []Dtype {
	ds := slices.Collect(maps.Keys(c.limits))
	slices.Sort(ds)
	return ds
}

// WithCoreCount returns a copy of c using n cores. The limit table is shared
// since it is never written after construction.
func (c HardwareCapabilities) WithCoreCount(n uint32) HardwareCapabilities {
	c.coreCount = n
	return c
}

// RecordAlignment returns the smallest number of records whose total size
// is a multiple of the block size.
func (c HardwareCapabilities) RecordAlignment(recordSizeBytes uint32) uint64 {
	if recordSizeBytes == 0 {
		return 0
	}
	block := uint64(c.block)
	return block / gcd(block, uint64(recordSizeBytes))
}

// String summarizes the target.
func (c HardwareCapabilities) String() string {
	return fmt.Sprintf("%s: %d cores, %d B buffer, %d B blocks, repeat<=%d, %d B vectors",
		c.name, c.coreCount, c.budget, c.block, c.maxRepeat, c.vectorSize)
}

func gcd(a, b uint64) uint64 {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

// ceilDiv does not overflow for n near MaxUint64.
func ceilDiv(n, d uint64) uint64 {
	q := n / d
	if n%d != 0 {
		q++
	}
	return q
}

func alignDown(n, align uint64) uint64 {
	if align == 0 {
		return n
	}
	return n - n%align
}
