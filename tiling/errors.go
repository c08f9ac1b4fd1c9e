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
)

var (
	// ErrInvalidWorkload reports a zero-sized or malformed workload or
	// capability description.
	ErrInvalidWorkload = errors.New("invalid workload")

	// ErrBufferTooSmall reports that no tile size fits the buffer budget at
	// the required alignment. Callers may retry with sub-row tiling.
	ErrBufferTooSmall = errors.New("buffer too small")

	// ErrPlanTooLarge reports that the unrolled plan would exceed the
	// configured instruction ceiling. Callers should fall back to PlanLoop.
	ErrPlanTooLarge = errors.New("plan too large")

	// ErrAlignmentViolation reports a failed internal invariant. It indicates
	// a planner defect, never a bad input.
	ErrAlignmentViolation = errors.New("alignment violation")
)

// AlignmentError carries the context of a failed plan invariant.
type AlignmentError struct {
	Check     string
	Core      int
	Tile      int
	Requested uint64
	Offset    uint64
	Alignment uint64
}

func (e *AlignmentError) Error() string {
	return fmt.Sprintf("%v: %s (core %d, tile %d, requested %d, offset %d, alignment %d)",
		ErrAlignmentViolation, e.Check, e.Core, e.Tile, e.Requested, e.Offset, e.Alignment)
}

// Unwrap returns ErrAlignmentViolation.
func (e *AlignmentError) Unwrap() error {
	return ErrAlignmentViolation
}
