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
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/ajroetker/go-tileplan/tiling"
	"github.com/spf13/cobra"
	"golang.org/x/tools/txtar"
)

// parseWorkload reads a workload file: one key=value per line, with blank
// lines and lines starting with # ignored.
//
//	elements=1000000
//	record=64
//	dtype=float16
//	shape=1,1
//	operands=2
//	accumulate=true
func parseWorkload(data []byte) (tiling.WorkloadDescriptor, error) {
	w := tiling.WorkloadDescriptor{Dtype: tiling.Float32}
	sc := bufio.NewScanner(bytes.NewReader(data))
	for line := 1; sc.Scan(); line++ {
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		key, value, ok := strings.Cut(text, "=")
		if !ok {
			return w, fmt.Errorf("line %d: want key=value, got %q", line, text)
		}
		key, value = strings.TrimSpace(key), strings.TrimSpace(value)
		var err error
		switch key {
		case "elements":
			w.TotalElements, err = strconv.ParseUint(value, 10, 64)
		case "record":
			var v uint64
			v, err = strconv.ParseUint(value, 10, 32)
			w.RecordSizeBytes = uint32(v)
		case "dtype":
			w.Dtype, err = tiling.ParseDtype(value)
		case "shape":
			w.OutputShape, err = parseUints(strings.Split(value, ","), 64)
		case "operands":
			var v uint64
			v, err = strconv.ParseUint(value, 10, 32)
			w.Operands = uint32(v)
		case "accumulate":
			w.Accumulate, err = strconv.ParseBool(value)
		default:
			err = errors.New("unknown key")
		}
		if err != nil {
			return w, fmt.Errorf("line %d: %s: %w", line, key, err)
		}
	}
	return w, sc.Err()
}

func newBatchCmd(o *options) *cobra.Command {
	var (
		pf     planFlags
		strict bool
	)
	cmd := &cobra.Command{
		Use:   "batch ARCHIVE",
		Short: "Plan every workload in a txtar archive",
		Long: "Plan every workload in a txtar archive. Each file in the archive is a\n" +
			"workload of key=value lines (elements, record, dtype, shape, operands,\n" +
			"accumulate). Use - to read the archive from stdin.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var data []byte
			var err error
			if args[0] == "-" {
				data, err = io.ReadAll(cmd.InOrStdin())
			} else {
				data, err = os.ReadFile(args[0])
			}
			if err != nil {
				return err
			}
			ar := txtar.Parse(data)
			if len(ar.Files) == 0 {
				return fmt.Errorf("%s: no workload files in archive", args[0])
			}

			names := make([]string, len(ar.Files))
			ws := make([]tiling.WorkloadDescriptor, len(ar.Files))
			for i, f := range ar.Files {
				if ws[i], err = parseWorkload(f.Data); err != nil {
					return fmt.Errorf("%s: %w", f.Name, err)
				}
				names[i] = f.Name
			}

			p, err := o.planner(cmd, &pf)
			if err != nil {
				return err
			}
			outs, err := resolveAll(cmd, p, names, ws)
			if err != nil {
				return err
			}
			if err := writeOutcomes(cmd.OutOrStdout(), "batch on "+p.Capabilities().Name(), outs); err != nil {
				return err
			}
			if strict {
				for _, out := range outs {
					if out.status != "ok" {
						return fmt.Errorf("%s: %s", out.name, out.status)
					}
				}
			}
			return nil
		},
	}
	pf.register(cmd.Flags())
	cmd.Flags().BoolVar(&strict, "strict", false, "fail if any workload cannot be unrolled into a plan")
	return cmd
}
