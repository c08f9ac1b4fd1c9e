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
	"math"
)

// Split distributes total records over at most coreCount cores.
//
// Every core but the last used one gets ceil(total/coreCount) records and the
// last used core gets the remainder. Fewer than coreCount cores are used when
// spreading further would leave a core empty, so no returned assignment is
// empty. The result is deterministic.
func Split(total uint64, coreCount uint32) ([]CoreAssignment, error) {
	return SplitAligned(total, coreCount, 1)
}

// SplitAligned is Split with the per-core share rounded up to a multiple of
// granule, so that every core boundary except the end falls on a granule
// boundary. The planner passes the record alignment so core offsets stay
// block aligned in backing memory.
func SplitAligned(total uint64, coreCount uint32, granule uint64) ([]CoreAssignment, error) {
	if total == 0 {
		return nil, fmt.Errorf("%w: zero elements to split", ErrInvalidWorkload)
	}
	if coreCount == 0 {
		return nil, fmt.Errorf("%w: zero cores to split across", ErrInvalidWorkload)
	}
	if granule == 0 {
		granule = 1
	}

	base := ceilDiv(total, uint64(coreCount))
	if r := base % granule; r != 0 {
		if base > math.MaxUint64-(granule-r) {
			// Rounding up would wrap; one core takes everything.
			base = total
		} else {
			base += granule - r
		}
	}
	used := ceilDiv(total, base)

	out := make([]CoreAssignment, used)
	for i := range used {
		count := base
		if i == used-1 {
			count = total - base*(used-1)
		}
		out[i] = CoreAssignment{
			CoreIndex:     uint32(i),
			ElementOffset: i * base,
			ElementCount:  count,
		}
	}
	return out, nil
}
