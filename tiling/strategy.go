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

// Strategy produces a plan for workloads the standard split/tile/schedule
// pipeline should not handle, such as degenerate output shapes.
type Strategy interface {
	Name() string
	Plan(r *Resolver, w WorkloadDescriptor) (*Plan, error)
}

// StrategyFunc adapts a function to Strategy.
type StrategyFunc struct {
	Label string
	Fn    func(r *Resolver, w WorkloadDescriptor) (*Plan, error)
}

// Name returns the label.
func (s StrategyFunc) Name() string { return s.Label }

// Plan calls Fn.
func (s StrategyFunc) Plan(r *Resolver, w WorkloadDescriptor) (*Plan, error) {
	return s.Fn(r, w)
}

// SingleCoreStrategy runs the standard pipeline pinned to one core. It is
// the default for degenerate shapes: a (1,1) output is produced by a single
// core instead of being spread over cores that would each own almost nothing.
type SingleCoreStrategy struct{}

// Name returns "single-core".
func (SingleCoreStrategy) Name() string { return "single-core" }

// Plan resolves w on core 0 only.
func (SingleCoreStrategy) Plan(r *Resolver, w WorkloadDescriptor) (*Plan, error) {
	plan, err := r.WithCoreCount(1).resolveStandard(w)
	if err != nil {
		return nil, err
	}
	plan.Strategy = SingleCoreStrategy{}.Name()
	return plan, nil
}
