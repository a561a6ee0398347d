// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/crispyrun/crispy/internal/errors"
	"github.com/crispyrun/crispy/pkg/cache"
	"github.com/crispyrun/crispy/pkg/compiler"
	"github.com/crispyrun/crispy/pkg/config"
	"github.com/crispyrun/crispy/pkg/pipeline"
	"github.com/crispyrun/crispy/pkg/plugin"
)

// runOptions collects the CLI flags relevant to running a script.
type runOptions struct {
	inline      string
	forceRecomp bool
	preserveSrc bool
	dryRun      bool
	debugger    bool
	pluginPaths string
	configPath  string
	cacheDir    string
}

func defaultCacheDir() string {
	if dir := os.Getenv("CRISPY_CACHE_DIR"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "crispy-cache")
	}
	return filepath.Join(home, ".cache", "crispy")
}

// resolveConfigPath applies the precedence in spec.md §6: CRISPY_CONFIG
// is highest precedence, then -c/--config, then nothing; CRISPY_NO_CONFIG
// disables config loading outright regardless of the other two.
func resolveConfigPath(flagValue string) string {
	if os.Getenv("CRISPY_NO_CONFIG") != "" {
		return ""
	}
	if envPath := os.Getenv("CRISPY_CONFIG"); envPath != "" {
		return envPath
	}
	return flagValue
}

func runScript(args []string, globals GlobalFlags, opts runOptions) int {
	logger := newLogger(globals)
	ctx := context.Background()

	var script *pipeline.Script
	var scriptArgv []string

	switch {
	case opts.inline != "":
		script = pipeline.NewFromInline(opts.inline)
		scriptArgv = args
		logInfo(globals, "running inline script")
	case args[0] == "-":
		script = pipeline.NewFromStdin()
		scriptArgv = args[1:]
		logInfo(globals, "running script from stdin")
	default:
		script = pipeline.NewFromFile(args[0])
		scriptArgv = args[1:]
		logInfo(globals, "running %s", args[0])
	}

	// cliFlagsSet tracks which behavior-flag bits were explicitly named on
	// the command line, so a config script's SetFlags/OrFlags calls (see
	// config.Context.FlagsSet) only ever fill in bits the CLI left
	// untouched rather than clobbering an explicit -n/-S/--dry-run/--gdb.
	var cliFlagsSet uint
	if opts.forceRecomp {
		script.Flags |= pipeline.ForceRecompile
		cliFlagsSet |= uint(pipeline.ForceRecompile)
	}
	if opts.preserveSrc {
		script.Flags |= pipeline.PreserveSource
		cliFlagsSet |= uint(pipeline.PreserveSource)
	}
	if opts.dryRun {
		script.Flags |= pipeline.DryRun
		cliFlagsSet |= uint(pipeline.DryRun)
	}
	if opts.debugger {
		script.Flags |= pipeline.Debugger
		cliFlagsSet |= uint(pipeline.Debugger)
	}

	cacheDir := opts.cacheDir
	if cacheDir == "" {
		cacheDir = defaultCacheDir()
	}
	cacheProvider := cache.NewFileCache(cacheDir, logger)
	defer func() {
		if err := cacheProvider.Flush(); err != nil {
			logDebug(globals, "failed to flush cache stats: %v", err)
		}
	}()

	goCompiler := compiler.NewGoToolchainCompiler("go", logger)

	engine := plugin.NewEngine(logger)
	defer engine.Close()

	pl := pipeline.New(goCompiler, cacheProvider, engine, logger)

	// The configuration script runs to completion, and every plugin it
	// declares loads, before any plugin named on the driver's own command
	// line: spec.md §5's ordering guarantee and the "config-declared
	// plugins' hooks run before CLI-declared plugins' hooks" testable
	// property both follow from load order alone, since the engine
	// dispatches in insertion order.
	configPath := resolveConfigPath(opts.configPath)
	if configPath != "" {
		loader := config.NewLoader(goCompiler, cacheProvider, logger)
		scriptPath := script.Path
		cfg, err := loader.Load(ctx, configPath, os.Args, scriptArgv, scriptPath)
		if err != nil {
			// spec.md §7: "Errors inside the configuration load are not
			// fatal: a failing configuration is warned-about and ignored
			// (defaults stand)." Unlike every other pipeline error, this
			// one never reaches errors.FatalError.
			errors.Warning("config script failed, falling back to defaults: %v", errors.AsUserError(err).Format(false))
		} else {
			logInfo(globals, "loaded config %s", configPath)
			pl.ApplyConfig(cfg)
			// Seed the shared store before any config-declared plugin's Init
			// runs, so an Init that reads a config-supplied key sees it
			// (spec.md §4.5: plugin-data is "injected into the engine's
			// shared store as owned strings with a string destructor").
			for key, value := range cfg.PluginData {
				engine.SetData(key, value, func(any) {})
			}
			for _, p := range cfg.PluginPaths {
				if err := engine.Load(p); err != nil {
					errors.FatalError(err, globals.JSON)
				}
			}
			if cfg.CacheDir != "" {
				cacheProvider = cache.NewFileCache(cfg.CacheDir, logger)
				pl.Cache = cacheProvider
			}
			if cfg.ScriptArgvOwned {
				scriptArgv = cfg.ScriptArgv
			}
			// Config-set behavior flags fill in only the bits the CLI left
			// untouched (spec.md §4.5's "user said zero" vs "user said
			// nothing" distinction via FlagsSet).
			for _, bit := range []uint{config.FlagForceRecompile, config.FlagPreserveSource, config.FlagDryRun, config.FlagDebugger} {
				if cfg.FlagsSet&bit != 0 && cliFlagsSet&bit == 0 && cfg.Flags&bit != 0 {
					script.Flags |= pipeline.Flags(bit)
				}
			}
		}
	}

	if opts.pluginPaths != "" {
		if err := engine.LoadList(opts.pluginPaths); err != nil {
			errors.FatalError(err, globals.JSON)
		}
	}

	exitCode, err := pl.Execute(ctx, script, scriptArgv)
	if err != nil {
		errors.FatalError(err, globals.JSON)
	}
	// spec.md §7: "The preserved-source notice is printed at the end of a
	// successful run when the preserve flag is set."
	if script.Has(pipeline.PreserveSource) && script.TempSourcePath != "" && !globals.Quiet {
		fmt.Fprintf(os.Stderr, "Preserved source: %s\n", script.TempSourcePath)
	}
	return exitCode
}

func newLogger(globals GlobalFlags) *slog.Logger {
	level := slog.LevelWarn
	switch {
	case globals.Verbose >= 2:
		level = slog.LevelDebug
	case globals.Verbose >= 1:
		level = slog.LevelInfo
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	return slog.New(handler)
}
