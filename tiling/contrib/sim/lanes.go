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

package sim

import (
	"math"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/ajroetker/go-tileplan/tiling"
	"github.com/x448/float16"
)

// Lanes is backing memory the machine moves tiles in and out of. Offsets and
// lengths are in lanes. Computation always happens in float32.
type Lanes interface {
	Dtype() tiling.Dtype
	Len() int
	Load(dst []float32, offset int)
	Store(src []float32, offset int)
	AtomicAdd(src []float32, offset int)
}

// Float32Lanes is float32 backing memory.
type Float32Lanes []float32

// Dtype returns tiling.Float32.
func (Float32Lanes) Dtype() tiling.Dtype { return tiling.Float32 }

// Len returns the number of lanes.
func (l Float32Lanes) Len() int { return len(l) }

// Load copies len(dst) lanes starting at offset.
func (l Float32Lanes) Load(dst []float32, offset int) {
	copy(dst, l[offset:offset+len(dst)])
}

// Store overwrites len(src) lanes starting at offset.
func (l Float32Lanes) Store(src []float32, offset int) {
	copy(l[offset:offset+len(src)], src)
}

// AtomicAdd adds src into the lanes starting at offset. Each lane is updated
// with a compare-and-swap loop, so concurrent adds from several cores are
// never lost.
func (l Float32Lanes) AtomicAdd(src []float32, offset int) {
	for i, v := range src {
		addFloat32(&l[offset+i], v)
	}
}

func addFloat32(p *float32, v float32) {
	bits := (*uint32)(unsafe.Pointer(p))
	for {
		old := atomic.LoadUint32(bits)
		sum := math.Float32bits(math.Float32frombits(old) + v)
		if atomic.CompareAndSwapUint32(bits, old, sum) {
			return
		}
	}
}

// Float16Lanes is IEEE half-precision backing memory. There is no 16-bit
// compare-and-swap, so atomic adds are serialized on a mutex.
type Float16Lanes struct {
	mu   sync.Mutex
	data []float16.Float16
}

// NewFloat16Lanes rounds vals to half precision.
func NewFloat16Lanes(vals []float32) *Float16Lanes {
	data := make([]float16.Float16, len(vals))
	for i, v := range vals {
		data[i] = float16.Fromfloat32(v)
	}
	return &Float16Lanes{data: data}
}

// Dtype returns tiling.Float16.
func (*Float16Lanes) Dtype() tiling.Dtype { return tiling.Float16 }

// Len returns the number of lanes.
func (l *Float16Lanes) Len() int { return len(l.data) }

// Load widens len(dst) lanes starting at offset.
func (l *Float16Lanes) Load(dst []float32, offset int) {
	for i := range dst {
		dst[i] = l.data[offset+i].Float32()
	}
}

// Store rounds src to half precision and overwrites the lanes at offset.
func (l *Float16Lanes) Store(src []float32, offset int) {
	for i, v := range src {
		l.data[offset+i] = float16.Fromfloat32(v)
	}
}

// AtomicAdd adds src into the lanes starting at offset.
func (l *Float16Lanes) AtomicAdd(src []float32, offset int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, v := range src {
		j := offset + i
		l.data[j] = float16.Fromfloat32(l.data[j].Float32() + v)
	}
}

// Float32s returns a widened copy of the lanes.
func (l *Float16Lanes) Float32s() []float32 {
	out := make([]float32, len(l.data))
	l.Load(out, 0)
	return out
}
