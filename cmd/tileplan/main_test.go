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

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ajroetker/go-tileplan/tiling"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestPlanCommand(t *testing.T) {
	out, err := run(t, "plan", "--cores", "1", "--budget", "256", "--elements", "1000", "--record", "2", "--dtype", "float16", "--tiles")
	require.NoError(t, err)
	assert.Contains(t, out, "Plan Summary")
	assert.Contains(t, out, "standard")
	assert.Contains(t, out, "0:128x1")
	assert.Contains(t, out, "0:104x1")
	assert.Regexp(t, `instructions\s+8\n`, out)

	out, err = run(t, "plan", "--cores", "1", "--budget", "256", "--elements", "1000", "--record", "2", "--dtype", "fp16", "--tiles", "--op", "min")
	require.NoError(t, err)
	assert.Contains(t, out, "vmin(0,104,1)")
}

func TestPlanCommandDegenerate(t *testing.T) {
	out, err := run(t, "plan", "--elements", "1000", "--shape", "1,1")
	require.NoError(t, err)
	assert.Contains(t, out, "single-core")
	assert.Regexp(t, `cores\s+1\n`, out)
}

func TestPlanCommandErrors(t *testing.T) {
	_, err := run(t, "plan", "--cores", "1", "--budget", "256", "--elements", "10000000")
	require.ErrorIs(t, err, tiling.ErrPlanTooLarge)
	assert.Contains(t, err.Error(), "tileplan loop")

	_, err = run(t, "plan", "--record", "6")
	assert.ErrorIs(t, err, tiling.ErrInvalidWorkload)

	_, err = run(t, "plan", "--target", "gpu")
	assert.ErrorContains(t, err, "unknown target")

	_, err = run(t, "plan", "--tail", "sideways")
	assert.ErrorContains(t, err, "unknown tail policy")

	_, err = run(t, "plan", "--op", "vfma")
	assert.ErrorContains(t, err, "unknown op")
}

func TestLoopCommand(t *testing.T) {
	out, err := run(t, "loop", "--cores", "1", "--budget", "256", "--elements", "10000000")
	require.NoError(t, err)
	assert.Contains(t, out, "Loop Plan")
	assert.Regexp(t, `iterations\s+156250\n`, out)
	assert.Contains(t, out, "0:64x1")
}

func TestInfoCommands(t *testing.T) {
	out, err := run(t, "ops")
	require.NoError(t, err)
	for _, op := range tiling.AllOps() {
		assert.Contains(t, out, op.Intrinsic())
	}

	out, err = run(t, "host", "--target", "small")
	require.NoError(t, err)
	assert.Contains(t, out, "host-")
	assert.Contains(t, out, "small: 2 cores")
	assert.Regexp(t, `float32\s+4\s+64\s+8\n`, out)
}

func TestSweepCommand(t *testing.T) {
	out, err := run(t, "sweep", "--dtype", "float32", "--records", "4,4096", "--elements", "10,100000")
	require.NoError(t, err)
	for _, name := range []string{"10x4", "100000x4", "10x4096", "100000x4096"} {
		assert.Contains(t, out, name)
	}
	assert.Equal(t, 4, strings.Count(out, " ok\n"))

	_, err = run(t, "sweep", "--records", "four")
	assert.ErrorContains(t, err, "records")

	_, err = run(t, "sweep", "--records", "4294967300")
	assert.ErrorContains(t, err, "records")
	assert.ErrorContains(t, err, "value out of range")
}

const archive = `Workloads for the batch test.
-- tiny.workload --
elements=1000
record=2
dtype=float16
-- scalar.workload --
# a (1,1) output reduced with atomic adds
elements=64
record=4
shape=1,1
accumulate=true
-- huge.workload --
elements=100000000
record=4
`

func TestBatchCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "workloads.txtar")
	require.NoError(t, os.WriteFile(path, []byte(archive), 0o644))

	out, err := run(t, "batch", path, "--max-instructions", "100")
	require.NoError(t, err)
	assert.Contains(t, out, "tiny.workload")
	assert.Contains(t, out, "single-core")
	assert.Contains(t, out, "too large to unroll")

	_, err = run(t, "batch", path, "--max-instructions", "100", "--strict")
	assert.ErrorContains(t, err, "huge.workload")

	bad := filepath.Join(t.TempDir(), "bad.txtar")
	require.NoError(t, os.WriteFile(bad, []byte("-- bad --\nbogus=1\n"), 0o644))
	_, err = run(t, "batch", bad)
	assert.ErrorContains(t, err, "unknown key")
}

func TestParseWorkload(t *testing.T) {
	w, err := parseWorkload([]byte("# comment\n\nelements = 64\nrecord=8\ndtype=bf16\nshape=2,3\noperands=2\naccumulate=true\n"))
	require.NoError(t, err)
	assert.Equal(t, tiling.WorkloadDescriptor{
		TotalElements:   64,
		RecordSizeBytes: 8,
		Dtype:           tiling.BFloat16,
		OutputShape:     []uint64{2, 3},
		Operands:        2,
		Accumulate:      true,
	}, w)

	_, err = parseWorkload([]byte("elements"))
	assert.ErrorContains(t, err, "key=value")
	_, err = parseWorkload([]byte("elements=-1"))
	assert.ErrorContains(t, err, "line 1: elements")
}

func TestSimulateCommand(t *testing.T) {
	tests := [][]string{
		{"--op", "mul", "--elements", "4096", "--record", "16", "--double-buffer"},
		{"--op", "exp", "--elements", "3000", "--record", "8", "--dtype", "float16"},
		{"--op", "adds", "--elements", "1003", "--record", "4", "--tail", "overlap"},
		{"--op", "copy", "--elements", "64", "--record", "4", "--accumulate", "--shape", "1,1"},
		{"--op", "max", "--elements", "3", "--record", "300000", "--budget", "4096"},
		{"--op", "sub", "--elements", "5", "--record", "4100", "--dtype", "float32", "--budget", "1024"},
	}
	for _, args := range tests {
		out, err := run(t, append([]string{"simulate", "--target", "small"}, args...)...)
		require.NoError(t, err, "simulate %v", args)
		assert.True(t, strings.HasSuffix(out, "ok\n"), "simulate %v:\n%s", args, out)
	}

	_, err := run(t, "simulate", "--dtype", "int8", "--record", "1", "--elements", "10")
	assert.ErrorContains(t, err, "float32 and float16")
}
