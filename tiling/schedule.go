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

// Schedule decomposes elements lanes into vector-instruction steps.
//
// It emits, in order:
//   - saturated steps {maxElementsPerInstr, maxRepeat} while more than one
//     saturated step's worth remains,
//   - at most one step {maxElementsPerInstr, r} covering the remaining whole
//     vectors,
//   - at most one tail step {remaining, 1}, since a reduced-width mask is only
//     honoured on a single final repeat.
//
// The steps cover exactly elements lanes and never exceed either cap.
//
// Example:
//
//	steps, _ := tiling.Schedule(255*128*3+50, 128, 255)
//	// [{0 128 255} {32640 128 255} {65280 128 255} {97920 50 1}]
func Schedule(elements uint64, maxElementsPerInstr, maxRepeat uint32) ([]InstructionStep, error) {
	return ScheduleFrom(0, elements, maxElementsPerInstr, maxRepeat)
}

// ScheduleFrom is Schedule with the first step starting at lane offset.
func ScheduleFrom(offset, elements uint64, maxElementsPerInstr, maxRepeat uint32) ([]InstructionStep, error) {
	if maxElementsPerInstr == 0 || maxRepeat == 0 {
		return nil, fmt.Errorf("%w: instruction caps must be positive (elements %d, repeat %d)",
			ErrInvalidWorkload, maxElementsPerInstr, maxRepeat)
	}
	if elements == 0 {
		return nil, nil
	}

	width := uint64(maxElementsPerInstr)
	saturated := width * uint64(maxRepeat)
	steps := make([]InstructionStep, 0, StepCount(elements, maxElementsPerInstr, maxRepeat))
	remaining := elements

	for remaining > saturated {
		steps = append(steps, InstructionStep{Offset: offset, Elements: maxElementsPerInstr, Repeat: maxRepeat})
		offset += saturated
		remaining -= saturated
	}

	if remaining > width {
		r := remaining / width
		steps = append(steps, InstructionStep{Offset: offset, Elements: maxElementsPerInstr, Repeat: uint32(r)})
		offset += r * width
		remaining -= r * width
	}

	if remaining > 0 {
		steps = append(steps, InstructionStep{Offset: offset, Elements: uint32(remaining), Repeat: 1})
	}
	return steps, nil
}

// StepCount returns len(Schedule(elements, ...)) without building the steps.
// It returns 0 when either cap is zero.
func StepCount(elements uint64, maxElementsPerInstr, maxRepeat uint32) uint64 {
	if maxElementsPerInstr == 0 || maxRepeat == 0 || elements == 0 {
		return 0
	}
	width := uint64(maxElementsPerInstr)
	saturated := width * uint64(maxRepeat)

	var n uint64
	remaining := elements
	if remaining > saturated {
		// The saturated loop runs while remaining > saturated, so it stops
		// with 1..saturated lanes left.
		full := (remaining - 1) / saturated
		n += full
		remaining -= full * saturated
	}
	if remaining > width {
		n++
		remaining %= width
	}
	if remaining > 0 {
		n++
	}
	return n
}
