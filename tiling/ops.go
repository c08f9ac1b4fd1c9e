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
	"strings"
)

// Op is an elementwise vector operation a step can be emitted as.
type Op uint8

const (
	OpAdd Op = iota
	OpSub
	OpMul
	OpDiv
	OpMin
	OpMax
	OpAdds
	OpMuls
	OpAbs
	OpRelu
	OpExp
	OpCopy

	numOps
)

// OpInfo describes how an Op maps onto the hardware.
type OpInfo struct {
	Name      string
	Intrinsic string

	// Arity is the number of vector inputs.
	Arity int

	// Scalar is set when the op takes one extra scalar operand.
	Scalar bool
}

// opTable is indexed by Op and must have an entry for every Op.
var opTable = [numOps]OpInfo{
	OpAdd:  {Name: "add", Intrinsic: "vadd", Arity: 2},
	OpSub:  {Name: "sub", Intrinsic: "vsub", Arity: 2},
	OpMul:  {Name: "mul", Intrinsic: "vmul", Arity: 2},
	OpDiv:  {Name: "div", Intrinsic: "vdiv", Arity: 2},
	OpMin:  {Name: "min", Intrinsic: "vmin", Arity: 2},
	OpMax:  {Name: "max", Intrinsic: "vmax", Arity: 2},
	OpAdds: {Name: "adds", Intrinsic: "vadds", Arity: 1, Scalar: true},
	OpMuls: {Name: "muls", Intrinsic: "vmuls", Arity: 1, Scalar: true},
	OpAbs:  {Name: "abs", Intrinsic: "vabs", Arity: 1},
	OpRelu: {Name: "relu", Intrinsic: "vrelu", Arity: 1},
	OpExp:  {Name: "exp", Intrinsic: "vexp", Arity: 1},
	OpCopy: {Name: "copy", Intrinsic: "vcopy", Arity: 1},
}

// Valid reports whether o is a declared op.
func (o Op) Valid() bool {
	return o < numOps
}

// Info returns the table entry for o.
func (o Op) Info() OpInfo {
	if !o.Valid() {
		return OpInfo{}
	}
	return opTable[o]
}

// String returns the op name.
func (o Op) String() string {
	if !o.Valid() {
		return fmt.Sprintf("op(%d)", uint8(o))
	}
	return opTable[o].Name
}

// Intrinsic returns the hardware intrinsic the op is emitted as.
func (o Op) Intrinsic() string {
	return o.Info().Intrinsic
}

// Arity returns the number of vector inputs.
func (o Op) Arity() int {
	return o.Info().Arity
}

// AllOps returns every op in declaration order.
func AllOps() []Op {
	out := make([]Op, 0, numOps)
	for o := range numOps {
		out = append(out, o)
	}
	return out
}

// ParseOp accepts an op name ("min") or its intrinsic ("vmin").
func ParseOp(s string) (Op, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for o := range numOps {
		if opTable[o].Name == s || opTable[o].Intrinsic == s {
			return o, nil
		}
	}
	return 0, fmt.Errorf("unknown op %q", s)
}
