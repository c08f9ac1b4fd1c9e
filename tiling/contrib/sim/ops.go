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
	"fmt"
	"math"
	"slices"

	"github.com/ajroetker/go-tileplan/tiling"
)

// apply runs one repeat of op over dst, reading the second vector operand
// from src when the op is binary. dst holds the first operand on entry.
func apply(op tiling.Op, dst, src []float32, scalar float32) error {
	switch op {
	case tiling.OpAdd:
		for i := range dst {
			dst[i] += src[i]
		}
	case tiling.OpSub:
		for i := range dst {
			dst[i] -= src[i]
		}
	case tiling.OpMul:
		for i := range dst {
			dst[i] *= src[i]
		}
	case tiling.OpDiv:
		for i := range dst {
			dst[i] /= src[i]
		}
	case tiling.OpMin:
		for i := range dst {
			dst[i] = min(dst[i], src[i])
		}
	case tiling.OpMax:
		for i := range dst {
			dst[i] = max(dst[i], src[i])
		}
	case tiling.OpAdds:
		for i := range dst {
			dst[i] += scalar
		}
	case tiling.OpMuls:
		for i := range dst {
			dst[i] *= scalar
		}
	case tiling.OpAbs:
		for i := range dst {
			dst[i] = float32(math.Abs(float64(dst[i])))
		}
	case tiling.OpRelu:
		for i := range dst {
			dst[i] = max(dst[i], 0)
		}
	case tiling.OpExp:
		for i := range dst {
			dst[i] = float32(math.Exp(float64(dst[i])))
		}
	case tiling.OpCopy:
	default:
		return fmt.Errorf("sim: unsupported %s", op)
	}
	return nil
}

// Reference computes op lane by lane over whole inputs, without a plan. It
// is the result a correct plan execution must reproduce.
func Reference(op tiling.Op, scalar float32, in ...[]float32) ([]float32, error) {
	out, src, err := referenceOperands(op, in)
	if err != nil {
		return nil, err
	}
	if err := apply(op, out, src, scalar); err != nil {
		return nil, err
	}
	return out, nil
}

// Reference is the package-level Reference spread over the machine's
// workers, one contiguous lane range per core.
func (m *Machine) Reference(op tiling.Op, scalar float32, in ...[]float32) ([]float32, error) {
	out, src, err := referenceOperands(op, in)
	if err != nil {
		return nil, err
	}
	// An empty range still reports an unsupported op.
	if err := apply(op, nil, nil, scalar); err != nil {
		return nil, err
	}
	m.pool.ParallelFor(len(out), func(start, end int) {
		var s []float32
		if src != nil {
			s = src[start:end]
		}
		_ = apply(op, out[start:end], s, scalar)
	})
	return out, nil
}

// referenceOperands checks in against op's arity and returns a copy of the
// first input and the second input, if any.
func referenceOperands(op tiling.Op, in [][]float32) (out, src []float32, err error) {
	if !op.Valid() {
		return nil, nil, fmt.Errorf("sim: unsupported %s", op)
	}
	if len(in) != op.Arity() {
		return nil, nil, fmt.Errorf("sim: %s takes %d inputs, got %d", op, op.Arity(), len(in))
	}
	out = slices.Clone(in[0])
	if op.Arity() == 2 {
		src = in[1]
		if len(src) != len(out) {
			return nil, nil, fmt.Errorf("sim: %s inputs have %d and %d lanes", op, len(out), len(src))
		}
	}
	return out, src, nil
}
