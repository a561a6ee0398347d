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

package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	goplugin "plugin"
	"strings"
	"syscall"
	"time"

	crispyerrors "github.com/crispyrun/crispy/internal/errors"
	"github.com/crispyrun/crispy/pkg/cache"
	"github.com/crispyrun/crispy/pkg/compiler"
	"github.com/crispyrun/crispy/pkg/config"
	"github.com/crispyrun/crispy/pkg/metrics"
	"github.com/crispyrun/crispy/pkg/plugin"
	"github.com/crispyrun/crispy/pkg/source"
)

// entryPointSymbol is the well-known exported symbol a compiled script
// must provide -- the Go analogue of a lowercase C `main`, adapted per
// the module's language note since Go plugin symbols must be exported.
const entryPointSymbol = "Main"

// EntryPoint is the signature every compiled script must export.
type EntryPoint func(argc int, argv []string) int

// Pipeline wires a compiler, a cache provider, and an optional plugin
// engine together to run scripts end to end.
type Pipeline struct {
	Compiler compiler.Compiler
	Cache    cache.Provider
	Engine   *plugin.Engine // nil if no plugins were requested
	Logger   *slog.Logger

	// ConfigDefaultFlags and ConfigOverrideFlags come from a loaded
	// config.Context, if any -- the lowest and highest precedence flag
	// tiers respectively.
	ConfigDefaultFlags  string
	ConfigOverrideFlags string
}

// New returns a Pipeline. logger defaults to slog.Default() when nil.
func New(c compiler.Compiler, cacheProvider cache.Provider, engine *plugin.Engine, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{Compiler: c, Cache: cacheProvider, Engine: engine, Logger: logger}
}

// ApplyConfig copies the relevant fields out of a loaded config.Context.
func (pl *Pipeline) ApplyConfig(cfg *config.Context) {
	if cfg == nil {
		return
	}
	pl.ConfigDefaultFlags = cfg.DefaultFlags
	pl.ConfigOverrideFlags = cfg.OverrideFlags
}

// dispatch calls the engine if attached, recording a metric for the
// result, and returns Continue (recording nothing) when no engine is
// attached.
func (pl *Pipeline) dispatch(point plugin.HookPoint, hctx *plugin.HookContext) plugin.HookResult {
	if pl.Engine == nil {
		return plugin.Continue
	}
	result := pl.Engine.Dispatch(point, hctx)
	label := "continue"
	switch result {
	case plugin.Abort:
		label = "abort"
	case plugin.ForceRecompile:
		label = "force-recompile"
	}
	metrics.RecordPluginDispatch(point.String(), label)
	return result
}

// composeFlags implements the four-tier compiler flag precedence: config
// defaults, then expanded CRISPY_PARAMS, then plugin-injected extra
// flags, then config overrides -- each tier appended after the last, so
// a later tier's flags win when they conflict.
func (pl *Pipeline) composeFlags(expandedParams, pluginExtraFlags string) string {
	return joinTiers(pl.ConfigDefaultFlags, expandedParams, pluginExtraFlags, pl.ConfigOverrideFlags)
}

// hashFlagString builds the "flag string for hashing" per spec.md §4.7
// phase 3: only the three tiers known before compilation starts (config
// defaults, expanded params, config overrides). The plugin-injected extra
// flags tier is deliberately excluded -- it is only populated by the
// pre-compile hook, which runs after hashing.
func (pl *Pipeline) hashFlagString(expandedParams string) string {
	return joinTiers(pl.ConfigDefaultFlags, expandedParams, pl.ConfigOverrideFlags)
}

func joinTiers(tiers ...string) string {
	nonEmpty := tiers[:0]
	for _, t := range tiers {
		if t != "" {
			nonEmpty = append(nonEmpty, t)
		}
	}
	return strings.Join(nonEmpty, " ")
}

// Execute runs script through the full nine-phase pipeline and returns
// its entry point's exit code.
func (pl *Pipeline) Execute(ctx context.Context, script *Script, argv []string) (int, error) {
	start := time.Now()
	hctx := &plugin.HookContext{Argv: argv}

	if err := pl.loadSource(script); err != nil {
		return 0, err
	}
	// Per spec.md §4.7 phase 1, stripping and extraction only apply to
	// file/stdin origins -- for inline origin the stripped form equals
	// the source verbatim and the parameter is absent.
	if script.Origin == OriginInline {
		script.Stripped = script.Original
		script.CrispyParams, script.HasParams = "", false
	} else {
		script.Stripped = source.StripHeader(script.Original)
		script.CrispyParams, script.HasParams = source.ExtractParams(script.Original)
	}
	hctx.SourcePath = script.Path
	hctx.SourceContent = script.Original
	hctx.CrispyParams = script.CrispyParams
	if pl.dispatch(plugin.OnSourceLoaded, hctx) != plugin.Continue {
		return 0, abortErr(hctx)
	}
	// The hook may replace the *preprocessed* source in place; the
	// original bytes stay untouched so phase 3's fingerprint is always
	// computed over what was actually read, not what a plugin rewrote.
	if len(hctx.ModifiedSource) > 0 {
		script.Stripped = hctx.ModifiedSource
	}

	phaseStart := time.Now()
	expanded, err := source.ShellExpand(ctx, script.CrispyParams)
	if err != nil {
		return 0, crispyerrors.NewParamsError("Failed to expand CRISPY_PARAMS", err.Error(), "", err)
	}
	script.ExpandedParams = expanded
	hctx.ExpandedParams = expanded
	hctx.Timing.ParamExpand = time.Since(phaseStart)
	metrics.ObservePipelinePhase("params-expanded", hctx.Timing.ParamExpand.Seconds())
	if pl.dispatch(plugin.OnParamsExpanded, hctx) != plugin.Continue {
		return 0, abortErr(hctx)
	}

	phaseStart = time.Now()
	version, err := pl.Compiler.Version(ctx)
	if err != nil {
		return 0, err
	}
	// Per spec.md §4.7 phase 3, the fingerprint is computed over the
	// *original* source bytes (not the preprocessed/stripped form) and a
	// flag string built from only the three tiers known at this point.
	hashFlags := pl.hashFlagString(script.ExpandedParams)
	script.Hash = pl.Cache.ComputeHash(script.Original, hashFlags, version)
	script.ArtifactPath = pl.Cache.ArtifactPath(script.Hash)
	hctx.Hash = script.Hash
	hctx.CompilerVersion = version
	hctx.Timing.Hash = time.Since(phaseStart)
	metrics.ObservePipelinePhase("hash-computed", hctx.Timing.Hash.Seconds())
	if pl.dispatch(plugin.OnHashComputed, hctx) != plugin.Continue {
		return 0, abortErr(hctx)
	}

	phaseStart = time.Now()
	// Debugger mode always rebuilds: the cached artifact at this
	// fingerprint, if any, is a release-mode shared library, never the
	// debug-symbol executable debugger mode needs.
	script.CacheHit = !script.Has(Debugger) && pl.Cache.HasValid(script.Hash, script.Path) && !script.Has(ForceRecompile)
	hctx.CacheHit = script.CacheHit
	hctx.CachedArtifact = script.ArtifactPath
	hctx.Timing.CacheCheck = time.Since(phaseStart)
	metrics.ObservePipelinePhase("cache-checked", hctx.Timing.CacheCheck.Seconds())
	metrics.RecordCacheLookup(script.CacheHit)
	switch pl.dispatch(plugin.OnCacheChecked, hctx) {
	case plugin.Abort:
		return 0, abortErr(hctx)
	case plugin.ForceRecompile:
		script.CacheHit = false
	}
	if hctx.ForceRecompile {
		script.CacheHit = false
	}

	if !script.CacheHit {
		// Recompute flags in case a plugin injected extra ones while
		// handling OnCacheChecked.
		flags := pl.composeFlags(script.ExpandedParams, hctx.ExtraFlags)

		if script.Has(DryRun) {
			pl.printDryRunPlan(script, flags)
			return 0, nil
		}

		if err := pl.compile(ctx, script, hctx, flags); err != nil {
			return 0, err
		}

		if script.Has(Debugger) {
			// launchDebugger replaces this process on success and never
			// returns; it only returns here on failure to exec.
			return 0, pl.launchDebugger(script, argv)
		}
	}

	phaseStart = time.Now()
	mod, err := goplugin.Open(script.ArtifactPath)
	if err != nil {
		return 0, crispyerrors.NewLoadError(
			"Failed to load compiled script module",
			err.Error(),
			"Retry with -n to force recompilation of a possibly stale artifact",
			err,
		)
	}
	entrySym, err := mod.Lookup(entryPointSymbol)
	if err != nil {
		return 0, crispyerrors.NewNoMainError(
			"Script does not export an entry point",
			err.Error(),
			fmt.Sprintf("Export `func %s(argc int, argv []string) int` from the script", entryPointSymbol),
			err,
		)
	}
	entry, ok := entrySym.(func(int, []string) int)
	if !ok {
		return 0, crispyerrors.NewNoMainError(
			"Entry point has the wrong signature",
			fmt.Sprintf("expected func(int, []string) int, got %T", entrySym),
			fmt.Sprintf("Export `func %s(argc int, argv []string) int` from the script", entryPointSymbol),
			nil,
		)
	}
	hctx.Timing.ModuleLoad = time.Since(phaseStart)
	metrics.ObservePipelinePhase("module-loaded", hctx.Timing.ModuleLoad.Seconds())
	if pl.dispatch(plugin.OnModuleLoaded, hctx) != plugin.Continue {
		return 0, abortErr(hctx)
	}

	if pl.dispatch(plugin.OnPreExecute, hctx) != plugin.Continue {
		return 0, abortErr(hctx)
	}
	execArgv := argv
	if len(hctx.Argv) > 0 {
		execArgv = hctx.Argv
	}

	phaseStart = time.Now()
	script.ExitCode = entry(len(execArgv), execArgv)
	hctx.Timing.Execute = time.Since(phaseStart)
	hctx.ExitCode = script.ExitCode
	metrics.ObservePipelinePhase("execute", hctx.Timing.Execute.Seconds())
	status := "ok"
	if script.ExitCode != 0 {
		status = "error"
	}
	metrics.RecordScriptExecution(status)

	hctx.Timing.Total = time.Since(start)
	if pl.dispatch(plugin.OnPostExecute, hctx) != plugin.Continue {
		// Per spec.md §4.7 phase 9, an abort here does not unroll the
		// already-completed invocation -- it only yields a -1 driver exit
		// status in place of the script's own exit code.
		return -1, nil
	}

	return script.ExitCode, nil
}

// compile builds the stripped source (writing it to a temp file that is
// removed afterwards unless PreserveSource is set), dispatching
// OnPreCompile and OnPostCompile around the subprocess call.
func (pl *Pipeline) compile(ctx context.Context, script *Script, hctx *plugin.HookContext, flags string) error {
	if pl.dispatch(plugin.OnPreCompile, hctx) != plugin.Continue {
		return abortErr(hctx)
	}
	if hctx.ExtraFlags != "" {
		flags = pl.composeFlags(script.ExpandedParams, hctx.ExtraFlags)
	}

	tmp, err := os.CreateTemp("", "crispy-script-*.go")
	if err != nil {
		return crispyerrors.NewIOError("Could not create temp source file", err.Error(), "", err)
	}
	if !script.Has(PreserveSource) {
		defer os.Remove(tmp.Name())
	}
	if _, err := tmp.Write(script.Stripped); err != nil {
		tmp.Close()
		return crispyerrors.NewIOError("Could not write temp source file", err.Error(), "", err)
	}
	tmp.Close()
	script.TempSourcePath = tmp.Name()
	hctx.TempSourcePath = tmp.Name()

	outputPath := script.ArtifactPath
	if script.Has(Debugger) {
		// A debug executable is a different artifact shape than the
		// cached shared library at this fingerprint; build it alongside
		// the temp source instead of overwriting the cache entry.
		outputPath = script.TempSourcePath + ".debug"
		script.DebugExecutablePath = outputPath
	}

	compileStart := time.Now()
	var compileErr error
	if script.Has(Debugger) {
		compileErr = pl.Compiler.CompileExecutable(ctx, tmp.Name(), outputPath, flags)
	} else {
		compileErr = pl.Compiler.CompileShared(ctx, tmp.Name(), outputPath, flags)
	}
	target := "shared"
	if script.Has(Debugger) {
		target = "executable"
	}
	metrics.ObserveCompile(target, time.Since(compileStart).Seconds(), compileErr == nil)
	hctx.Timing.Compile = time.Since(compileStart)
	metrics.ObservePipelinePhase("compile", hctx.Timing.Compile.Seconds())
	if compileErr != nil {
		return compileErr
	}

	if pl.dispatch(plugin.OnPostCompile, hctx) != plugin.Continue {
		return abortErr(hctx)
	}
	return nil
}

// printDryRunPlan implements --dry-run: print the command(s) that would
// be run on a cache miss and leave the artifact unbuilt. Per spec.md §4.7
// phase 5, this replaces compilation entirely -- the script is never
// executed and the driver exits 0.
func (pl *Pipeline) printDryRunPlan(script *Script, flags string) {
	tempName := "<tmp-source>"
	if script.Path != "" {
		tempName = script.Path
	}
	if script.Has(Debugger) {
		fmt.Fprintf(os.Stdout, "dry-run: would compile %s\n", pl.Compiler.DescribeExecutable(tempName, script.ArtifactPath+".debug", flags))
		fmt.Fprintf(os.Stdout, "dry-run: would then exec: dlv exec %s.debug -- <script-argv...>\n", script.ArtifactPath)
		return
	}
	fmt.Fprintf(os.Stdout, "dry-run: would compile %s\n", pl.Compiler.DescribeShared(tempName, script.ArtifactPath, flags))
}

// launchDebugger replaces the current process with a debugger attached to
// the just-compiled standalone executable, running
// `dlv exec <executable> -- <script-argv...>` (delve's counterpart of
// `gdb --args`). It only returns on failure to exec; on success the
// process image is gone.
func (pl *Pipeline) launchDebugger(script *Script, scriptArgv []string) error {
	dlvPath, err := exec.LookPath("dlv")
	if err != nil {
		return crispyerrors.NewIOError(
			"Debugger not found",
			err.Error(),
			"Install delve (`go install github.com/go-delve/delve/cmd/dlv@latest`)",
			err,
		)
	}
	args := append([]string{"dlv", "exec", script.DebugExecutablePath, "--"}, scriptArgv...)
	if err := syscall.Exec(dlvPath, args, os.Environ()); err != nil {
		return crispyerrors.NewIOError(
			"Failed to launch debugger",
			err.Error(),
			"",
			err,
		)
	}
	return nil // unreachable: syscall.Exec only returns on error
}

// loadSource populates script.Original from its Origin.
func (pl *Pipeline) loadSource(script *Script) error {
	switch script.Origin {
	case OriginInline:
		return nil
	case OriginStdin:
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return crispyerrors.NewIOError("Could not read script from stdin", err.Error(), "", err)
		}
		script.Original = data
		return nil
	default:
		data, err := os.ReadFile(script.Path)
		if err != nil {
			return crispyerrors.NewIOError(
				"Could not read script file",
				err.Error(),
				"Check that the path exists and is readable",
				err,
			)
		}
		script.Original = data
		return nil
	}
}

func abortErr(hctx *plugin.HookContext) error {
	if hctx.Err != nil {
		return hctx.Err
	}
	return crispyerrors.NewPluginError(
		"A plugin aborted the pipeline",
		fmt.Sprintf("hook %s returned Abort without setting an error", hctx.HookPoint),
		"",
		nil,
	)
}
