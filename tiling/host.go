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
	"os"
	"runtime"
	"strconv"
)

// HostLevel is the vector instruction set detected on the machine running
// the planner.
type HostLevel int

const (
	HostScalar HostLevel = iota
	HostSSE2
	HostAVX2
	HostAVX512
	HostNEON
	HostSVE
)

// String returns a human-readable name for the level.
func (l HostLevel) String() string {
	switch l {
	case HostScalar:
		return "scalar"
	case HostSSE2:
		return "sse2"
	case HostAVX2:
		return "avx2"
	case HostAVX512:
		return "avx512"
	case HostNEON:
		return "neon"
	case HostSVE:
		return "sve"
	default:
		return "unknown"
	}
}

// hostL1Bytes is the per-core buffer budget assumed for the host: a typical
// L1 data cache.
const hostL1Bytes = 32 * 1024

// hostLevel and hostWidth are set by init() in host_*.go files.
var (
	hostLevel HostLevel
	hostWidth uint32
)

// NoSimdEnv reports whether TILEPLAN_NO_SIMD is set. When set, host
// detection reports the scalar level with 16-byte vectors.
func NoSimdEnv() bool {
	val := os.Getenv("TILEPLAN_NO_SIMD")
	if val == "" {
		return false
	}
	if b, err := strconv.ParseBool(val); err == nil {
		return b
	}
	return true
}

// CurrentHostLevel returns the detected host vector level.
func CurrentHostLevel() HostLevel {
	return hostLevel
}

// HostCapabilities describes the machine running the planner as a target:
// one core per logical CPU, an L1-sized buffer, and blocks and vectors of
// the detected SIMD width. It is what the sim executor models.
func HostCapabilities() HardwareCapabilities {
	width := hostWidth
	if width == 0 {
		width = 16
	}
	return MustCapabilities(Config{
		Name:                "host-" + hostLevel.String(),
		CoreCount:           uint32(max(runtime.NumCPU(), 1)),
		BufferBudgetBytes:   hostL1Bytes,
		BlockAlignmentBytes: width,
		MaxRepeat:           MaxRepeatLimit,
		VectorWidthBytes:    width,
	})
}
