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
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package main implements the crispy CLI: a compile-on-demand runner that
// builds a Go source script into a plugin, caches the result by content
// hash, and invokes its exported entry point.
//
// Usage:
//
//	crispy script.go [args...]          Run a script file
//	crispy -i 'package main...'         Run inline source
//	crispy -                            Run source read from stdin
//	crispy cache purge                  Remove every cached artifact
//	crispy cache stats [--json]         Show cache hit/miss counters
package main

import (
	"fmt"
	"os"

	flag "github.com/spf13/pflag"

	"github.com/crispyrun/crispy/internal/ui"
)

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// GlobalFlags holds the flags shared by every crispy invocation.
type GlobalFlags struct {
	JSON    bool
	NoColor bool
	Verbose int
	Quiet   bool
}

func logInfo(globals GlobalFlags, format string, args ...interface{}) {
	if !globals.Quiet && globals.Verbose >= 1 {
		fmt.Fprintf(os.Stderr, "[INFO] "+format+"\n", args...)
	}
}

func logDebug(globals GlobalFlags, format string, args ...interface{}) {
	if globals.Verbose >= 2 {
		fmt.Fprintf(os.Stderr, "[DEBUG] "+format+"\n", args...)
	}
}

func main() {
	var (
		showVersion   = flag.BoolP("version", "V", false, "Show version and exit")
		inline        = flag.StringP("inline", "i", "", "Run the given source directly instead of a file")
		forceRecomp   = flag.BoolP("force", "n", false, "Force recompilation, ignoring any cached artifact")
		preserveSrc   = flag.BoolP("preserve-source", "S", false, "Keep the temp source file used for compilation")
		dryRun        = flag.Bool("dry-run", false, "Print the compiler command that would run, without running it")
		debugger      = flag.Bool("gdb", false, "Compile a debuggable executable and launch it under dlv")
		pluginPaths   = flag.StringP("plugins", "P", "", "Colon- or comma-separated list of plugin .so paths")
		configPath    = flag.StringP("config", "c", "", "Path to a config script to compile and run first")
		cacheDir      = flag.String("cache-dir", "", "Override the cache directory")
		jsonOutput    = flag.Bool("json", false, "Output in JSON format (for applicable commands)")
		noColor       = flag.Bool("no-color", false, "Disable color output")
		verbose       = flag.CountP("verbose", "v", "Increase verbosity (-v for info, -vv for debug)")
		quiet         = flag.BoolP("quiet", "q", false, "Suppress non-essential output")
	)

	flag.SetInterspersed(false)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `crispy - compile-on-demand script runner

Compiles a Go source file into a plugin on first run, caches the
compiled artifact by content hash, and re-uses it on subsequent runs
until the source, flags, or compiler version change.

Usage:
  crispy <script.go> [args...]
  crispy -i '<source>' [args...]
  crispy - [args...]
  crispy cache purge
  crispy cache stats [--json]

Options:
  -i, --inline           Run the given source directly instead of a file
  -n, --force             Force recompilation, ignoring the cache
  -S, --preserve-source   Keep the temp source file used for compilation
      --dry-run           Print the compiler command without running it
      --gdb               Compile a debug executable and run it under dlv
  -P, --plugins           Colon- or comma-separated plugin .so paths
  -c, --config            Path to a config script to run before the script
      --cache-dir         Override the cache directory
      --json              Output in JSON format
      --no-color          Disable color output (respects NO_COLOR)
  -v, --verbose           Increase verbosity (-v info, -vv debug)
  -q, --quiet             Suppress non-essential output
  -V, --version           Show version and exit

Environment Variables:
  CRISPY_CONFIG     Path to a config script, highest precedence
  CRISPY_NO_CONFIG  When set, skip config loading entirely
  CRISPY_CACHE_DIR  Default cache directory (default: ~/.cache/crispy)

Examples:
  crispy hello.go
  crispy hello.go -- --flag value
  crispy -i 'package main

func Main(argc int, argv []string) int { return 0 }'
  crispy cache stats --json

`)
	}

	flag.Parse()

	if *showVersion {
		fmt.Printf("crispy version %s\n", version)
		fmt.Printf("commit: %s\n", commit)
		fmt.Printf("built: %s\n", date)
		os.Exit(0)
	}

	if os.Getenv("NO_COLOR") != "" {
		*noColor = true
	}

	if *quiet && *verbose > 0 {
		fmt.Fprintln(os.Stderr, "Error: cannot use --quiet and --verbose together")
		os.Exit(1)
	}

	if *jsonOutput {
		*quiet = true
	}

	globals := GlobalFlags{JSON: *jsonOutput, NoColor: *noColor, Verbose: *verbose, Quiet: *quiet}
	ui.InitColors(globals.NoColor)

	args := flag.Args()
	if len(args) == 0 && *inline == "" {
		flag.Usage()
		os.Exit(1)
	}

	if len(args) > 0 && args[0] == "cache" {
		os.Exit(runCache(args[1:], globals, *cacheDir))
	}

	opts := runOptions{
		inline:       *inline,
		forceRecomp:  *forceRecomp,
		preserveSrc:  *preserveSrc,
		dryRun:       *dryRun,
		debugger:     *debugger,
		pluginPaths:  *pluginPaths,
		configPath:   *configPath,
		cacheDir:     *cacheDir,
	}
	logDebug(globals, "run options: %+v", opts)
	os.Exit(runScript(args, globals, opts))
}
