// Copyright 2025 The go-highway Authors. SPDX-License-Identifier: Apache-2.0

// Package workerpool runs per-core work of a tiling plan on a fixed set of
// persistent goroutines. Each goroutine stands in for one accelerator core;
// a Pool is created once and reused for every plan executed against it.
//
// Usage:
//
//	pool := workerpool.New(int(caps.CoreCount()))
//	defer pool.Close()
//
//	err := pool.Run(ctx, len(plan.Cores), func(core int) error {
//	    return execute(plan.Cores[core])
//	})
package workerpool

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
)

// Pool is a fixed array of worker goroutines.
type Pool struct {
	cores     int
	workC     chan task
	closeOnce sync.Once
	closed    atomic.Bool
}

// task is one core's share of a Run or ParallelFor call.
type task struct {
	fn      func()
	barrier *sync.WaitGroup
}

// New starts a pool with the given number of cores. If cores <= 0, it uses
// GOMAXPROCS.
func New(cores int) *Pool {
	if cores <= 0 {
		cores = runtime.GOMAXPROCS(0)
	}
	p := &Pool{
		cores: cores,
		workC: make(chan task, cores*2),
	}
	for range cores {
		go p.worker()
	}
	return p
}

func (p *Pool) worker() {
	for t := range p.workC {
		t.fn()
		t.barrier.Done()
	}
}

// NumCores returns the number of worker goroutines.
func (p *Pool) NumCores() int {
	return p.cores
}

// Close stops the workers after pending work completes. It is safe to call
// more than once. A closed pool runs everything on the caller's goroutine.
func (p *Pool) Close() {
	p.closeOnce.Do(func() {
		p.closed.Store(true)
		close(p.workC)
	})
}

// Run calls fn once for every core index in [0, n) and waits for all of
// them. n may exceed NumCores, in which case the extra cores queue behind
// the busy ones, as on hardware with fewer physical cores than the plan.
//
// Errors are wrapped with their core index and joined. Once ctx is done,
// cores that have not started yet are skipped and report ctx.Err().
func (p *Pool) Run(ctx context.Context, n int, fn func(core int) error) error {
	if n <= 0 {
		return nil
	}
	errs := make([]error, n)
	call := func(core int) {
		if err := ctx.Err(); err != nil {
			errs[core] = fmt.Errorf("core %d: %w", core, err)
			return
		}
		if err := fn(core); err != nil {
			errs[core] = fmt.Errorf("core %d: %w", core, err)
		}
	}

	if p.closed.Load() || n == 1 {
		for core := range n {
			call(core)
		}
		return errors.Join(errs...)
	}

	var wg sync.WaitGroup
	wg.Add(n)
	for core := range n {
		p.workC <- task{fn: func() { call(core) }, barrier: &wg}
	}
	wg.Wait()
	return errors.Join(errs...)
}

// ParallelFor splits [0, n) into one contiguous chunk per core and calls fn
// on each chunk. It blocks until all chunks are done.
func (p *Pool) ParallelFor(n int, fn func(start, end int)) {
	if n <= 0 {
		return
	}
	workers := min(p.cores, n)
	if p.closed.Load() || workers == 1 {
		fn(0, n)
		return
	}

	chunk := (n + workers - 1) / workers
	var wg sync.WaitGroup
	for start := 0; start < n; start += chunk {
		end := min(start+chunk, n)
		wg.Add(1)
		p.workC <- task{fn: func() { fn(start, end) }, barrier: &wg}
	}
	wg.Wait()
}
