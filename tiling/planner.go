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
	"log/slog"
)

// Option configures a Planner.
type Option func(*ResolverOptions)

// WithMaxInstructions sets the instruction ceiling above which Plan fails
// with ErrPlanTooLarge.
func WithMaxInstructions(n int) Option {
	return func(o *ResolverOptions) { o.MaxInstructions = n }
}

// WithDoubleBuffering splits the buffer into two slots so tile N+1 can load
// while tile N computes.
func WithDoubleBuffering() Option {
	return func(o *ResolverOptions) { o.DoubleBuffer = true }
}

// WithTailPolicy selects how unaligned tails are moved.
func WithTailPolicy(p TailPolicy) Option {
	return func(o *ResolverOptions) { o.TailPolicy = p }
}

// WithDegenerateStrategy sets the strategy used for degenerate shapes.
func WithDegenerateStrategy(s Strategy) Option {
	return func(o *ResolverOptions) { o.Degenerate = s }
}

// WithDegeneratePredicate replaces IsDegenerateShape.
func WithDegeneratePredicate(fn func(shape []uint64) bool) Option {
	return func(o *ResolverOptions) { o.IsDegenerate = fn }
}

// WithSubRowFallback enables or disables retrying in sub-row mode when
// whole records cannot be tiled. It is enabled by default.
func WithSubRowFallback(enabled bool) Option {
	return func(o *ResolverOptions) { o.SubRowFallback = enabled }
}

// WithLogger sets the logger planning decisions are reported to at debug
// level. By default nothing is logged.
func WithLogger(l *slog.Logger) Option {
	return func(o *ResolverOptions) { o.Logger = l }
}

// Planner turns workloads into plans for one target. It holds no mutable
// state and may be shared between goroutines.
type Planner struct {
	resolver *Resolver
	log      *slog.Logger
}

// NewPlanner returns a Planner for caps.
func NewPlanner(caps HardwareCapabilities, opts ...Option) *Planner {
	o := ResolverOptions{SubRowFallback: true}
	for _, opt := range opts {
		opt(&o)
	}
	r := NewResolver(caps, o)
	return &Planner{resolver: r, log: r.log}
}

// Capabilities returns the target the planner plans for.
func (p *Planner) Capabilities() HardwareCapabilities {
	return p.resolver.caps
}

// Resolver returns the planner's resolver, for use by strategies and tests.
func (p *Planner) Resolver() *Resolver {
	return p.resolver
}

// Plan produces a fully resolved, validated plan for w, or an error and no
// plan. Expected errors are ErrInvalidWorkload, ErrBufferTooSmall and
// ErrPlanTooLarge; ErrAlignmentViolation indicates a defect.
func (p *Planner) Plan(w WorkloadDescriptor) (*Plan, error) {
	plan, err := p.resolver.Resolve(w)
	if err != nil {
		p.log.Debug("planning failed", "elements", w.TotalElements, "record_bytes", w.RecordSizeBytes,
			"dtype", w.Dtype, "err", err)
		return nil, err
	}
	if n := plan.InstructionCount(); n > p.resolver.opts.MaxInstructions {
		return nil, fmt.Errorf("%w: strategy %s produced %d instructions, ceiling is %d",
			ErrPlanTooLarge, plan.Strategy, n, p.resolver.opts.MaxInstructions)
	}
	if err := plan.Validate(p.resolver.caps); err != nil {
		p.log.Error("plan failed validation", "strategy", plan.Strategy, "err", err)
		return nil, err
	}
	p.log.Debug("planned",
		"strategy", plan.Strategy,
		"mode", plan.Mode,
		"cores", len(plan.Cores),
		"elements_per_tile", plan.ElementsPerTile,
		"tiles", plan.TileCount(),
		"instructions", plan.InstructionCount(),
		"write", plan.WriteMode)
	return plan, nil
}
