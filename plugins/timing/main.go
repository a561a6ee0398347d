// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package main is the timing example plugin: it prints a per-phase
// timing report to stderr after the script finishes. Build as a Go
// plugin with:
//
//	go build -buildmode=plugin -o timing.so ./plugins/timing
package main

import (
	"fmt"
	"os"

	crispyplugin "github.com/crispyrun/crispy/pkg/plugin"
)

// Info is the mandatory metadata symbol every plugin exports.
var Info = crispyplugin.Info{
	Name:        "timing",
	Description: "Reports per-phase execution timing to stderr",
	Version:     "0.1.0",
	Author:      "Crispy Project",
	License:     "AGPLv3",
}

// OnPostExecute prints the report ported from examples/plugins/plugin-timing.c.
func OnPostExecute(ctx *crispyplugin.HookContext) crispyplugin.HookResult {
	source := ctx.SourcePath
	if source == "" {
		source = "(inline/stdin)"
	}
	hit := "no"
	if ctx.CacheHit {
		hit = "yes"
	}

	fmt.Fprintln(os.Stderr, "\n--- Crispy Timing Report ---")
	fmt.Fprintf(os.Stderr, "  Source:     %s\n", source)
	fmt.Fprintf(os.Stderr, "  Cache hit:  %s\n", hit)
	fmt.Fprintf(os.Stderr, "  Params:     %.3f ms\n", ms(ctx.Timing.ParamExpand))
	fmt.Fprintf(os.Stderr, "  Hash:       %.3f ms\n", ms(ctx.Timing.Hash))
	fmt.Fprintf(os.Stderr, "  Cache chk:  %.3f ms\n", ms(ctx.Timing.CacheCheck))
	fmt.Fprintf(os.Stderr, "  Compile:    %.3f ms\n", ms(ctx.Timing.Compile))
	fmt.Fprintf(os.Stderr, "  Module ld:  %.3f ms\n", ms(ctx.Timing.ModuleLoad))
	fmt.Fprintf(os.Stderr, "  Execute:    %.3f ms\n", ms(ctx.Timing.Execute))
	fmt.Fprintf(os.Stderr, "  Total:      %.3f ms\n", ms(ctx.Timing.Total))
	fmt.Fprintf(os.Stderr, "  Exit code:  %d\n", ctx.ExitCode)
	fmt.Fprintln(os.Stderr, "----------------------------")

	return crispyplugin.Continue
}

func ms(d interface{ Seconds() float64 }) float64 {
	return d.Seconds() * 1000
}

func main() {}
