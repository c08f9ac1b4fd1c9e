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

// Tiling is the result of cutting one core's share into buffer-sized tiles.
type Tiling struct {
	ElementsPerTile uint64
	FullTileCount   uint64
	TailElements    uint64
	Mode            TileMode
}

// TileCount returns the number of tiles including the tail.
func (t Tiling) TileCount() uint64 {
	if t.TailElements > 0 {
		return t.FullTileCount + 1
	}
	return t.FullTileCount
}

// TileRecords cuts elementCount records into tiles of whole records.
//
// ElementsPerTile is floor(budgetBytes/recordSizeBytes) rounded down to a
// multiple of alignmentElements. When a single record is larger than the
// budget the result has Mode SubRowTiled and zero counts; the caller must
// switch to TileSubRow. If rounding leaves no records per tile,
// ErrBufferTooSmall is returned.
func TileRecords(elementCount, recordSizeBytes, budgetBytes, alignmentElements uint64) (Tiling, error) {
	if recordSizeBytes == 0 {
		return Tiling{}, fmt.Errorf("%w: zero record size", ErrInvalidWorkload)
	}
	if recordSizeBytes > budgetBytes {
		return Tiling{Mode: SubRowTiled}, nil
	}
	if alignmentElements == 0 {
		alignmentElements = 1
	}

	perTile := alignDown(budgetBytes/recordSizeBytes, alignmentElements)
	if perTile == 0 {
		return Tiling{}, fmt.Errorf("%w: %d B budget holds %d records of %d B, alignment needs %d",
			ErrBufferTooSmall, budgetBytes, budgetBytes/recordSizeBytes, recordSizeBytes, alignmentElements)
	}
	return Tiling{
		ElementsPerTile: perTile,
		FullTileCount:   elementCount / perTile,
		TailElements:    elementCount % perTile,
		Mode:            RowTiled,
	}, nil
}

// TileSubRow cuts one record into tiles of lanes. The lanes per tile are
// floor(budgetBytes/laneSizeBytes) rounded down to laneAlignment.
func TileSubRow(recordSizeBytes, laneSizeBytes, budgetBytes, laneAlignment uint64) (Tiling, error) {
	if laneSizeBytes == 0 || recordSizeBytes == 0 || recordSizeBytes%laneSizeBytes != 0 {
		return Tiling{}, fmt.Errorf("%w: record of %d B is not a whole number of %d B lanes",
			ErrInvalidWorkload, recordSizeBytes, laneSizeBytes)
	}
	if laneAlignment == 0 {
		laneAlignment = 1
	}
	lanes := recordSizeBytes / laneSizeBytes
	perTile := alignDown(budgetBytes/laneSizeBytes, laneAlignment)
	if perTile == 0 {
		return Tiling{}, fmt.Errorf("%w: %d B budget is below one aligned block of %d lanes",
			ErrBufferTooSmall, budgetBytes, laneAlignment)
	}
	return Tiling{
		ElementsPerTile: perTile,
		FullTileCount:   lanes / perTile,
		TailElements:    lanes % perTile,
		Mode:            SubRowTiled,
	}, nil
}

// BufferLayout splits the on-chip buffer into slots × operands regions.
type BufferLayout struct {
	Slots       uint32
	Operands    uint32
	RegionBytes uint64
	Regions     []BufferRegion
}

// NewBufferLayout divides budgetBytes into one region per operand, doubled
// when doubleBuffer is set. Region sizes are rounded down to blockBytes.
func NewBufferLayout(budgetBytes uint64, blockBytes uint32, operands uint32, doubleBuffer bool) (BufferLayout, error) {
	if operands == 0 {
		operands = 1
	}
	slots := uint32(1)
	if doubleBuffer {
		slots = 2
	}
	region := alignDown(budgetBytes/uint64(slots*operands), uint64(blockBytes))
	if region == 0 {
		return BufferLayout{}, fmt.Errorf("%w: %d B budget split %d ways is below one %d B block",
			ErrBufferTooSmall, budgetBytes, slots*operands, blockBytes)
	}
	regions := make([]BufferRegion, 0, slots*operands)
	for s := range slots {
		for o := range operands {
			regions = append(regions, BufferRegion{
				Slot:        s,
				Operand:     o,
				OffsetBytes: uint64(s*operands+o) * region,
				SizeBytes:   region,
			})
		}
	}
	return BufferLayout{
		Slots:       slots,
		Operands:    operands,
		RegionBytes: region,
		Regions:     regions,
	}, nil
}

// alignedMove returns the move of bytes bytes at byteOffset in backing
// memory. The move starts at the block boundary at or below byteOffset and
// the bytes in between are carried as LeadBytes.
func alignedMove(byteOffset, bytes, block uint64) DataMove {
	lead := byteOffset % block
	return DataMove{
		OffsetBytes: byteOffset - lead,
		LeadBytes:   lead,
		Bytes:       bytes,
		Blocks:      ceilDiv(lead+bytes, block),
	}
}

// slotFor returns the buffer slot and the reuse dependency of tile index.
func (l BufferLayout) slotFor(index uint32) (uint32, int32) {
	slot := index % l.Slots
	wait := int32(index) - int32(l.Slots)
	if wait < 0 {
		wait = -1
	}
	return slot, wait
}
