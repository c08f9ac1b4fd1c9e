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

// Command tileplan inspects tiling plans for accelerator workloads.
//
// Usage:
//
//	tileplan plan --elements 1000000 --record 4 --dtype float32
//	tileplan plan --target small --elements 64 --shape 1,1 --tiles --op vadd
//	tileplan loop --elements 100000000 --record 4096 --dtype float16
//	tileplan sweep --dtype float16 --records 2,64,4096 --elements 1000,1000000
//	tileplan batch workloads.txtar
//	tileplan simulate --op mul --elements 4096 --record 16 --double-buffer
//	tileplan host
//	tileplan ops
//
// The target is one of the presets (default, small, host) with optional
// overrides such as --cores and --budget. Pass -v to log planning decisions
// to stderr.
package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// options holds the flags shared by every subcommand.
type options struct {
	target  targetFlags
	verbose bool
}

func newRootCmd() *cobra.Command {
	o := &options{}
	cmd := &cobra.Command{
		Use:          "tileplan",
		Short:        "Plan core splits, buffer tiles and vector steps for accelerator workloads",
		SilenceUsage: true,
	}
	o.target.register(cmd.PersistentFlags())
	cmd.PersistentFlags().BoolVarP(&o.verbose, "verbose", "v", false, "log planning decisions to stderr")

	cmd.AddCommand(
		newPlanCmd(o),
		newLoopCmd(o),
		newSweepCmd(o),
		newBatchCmd(o),
		newSimulateCmd(o),
		newHostCmd(o),
		newOpsCmd(),
	)
	return cmd
}

// logger writes to the command's stderr. Only warnings are shown unless -v
// is set.
func (o *options) logger(cmd *cobra.Command) *slog.Logger {
	level := slog.LevelWarn
	if o.verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
