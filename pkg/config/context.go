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

// Package config defines the short-lived configuration context passed
// to a user-compiled config script's entry point, and the loader that
// compiles, loads, and invokes that entry point once per process.
package config

// Context is handed to a config script's ConfigInit entry point. It
// exposes the driver's own invocation (read-only) and a set of mutable
// fields the config script can use to change how every subsequent script
// run behaves: default and override compiler flags, extra plugins to
// load, a cache directory override, and -- if it takes ownership -- a
// replacement argument vector for the script being run.
type Context struct {
	// DriverArgv is the crispy binary's own argv, read-only.
	DriverArgv []string

	// InitialScriptArgv is the script's argument vector as the driver
	// parsed it, before any config-script replacement -- read-only;
	// config scripts that want to change it call SetScriptArgv instead.
	InitialScriptArgv []string

	// ScriptPath is the path to the script about to run, or empty for
	// inline/stdin origins.
	ScriptPath string

	// DefaultFlags are compiler flags applied before any script-supplied
	// CRISPY_PARAMS (lowest precedence tier).
	DefaultFlags string

	// OverrideFlags are compiler flags applied after every other tier
	// (highest precedence), letting the config script force flags a
	// script or plugin cannot override.
	OverrideFlags string

	// PluginPaths accumulates additional plugin .so paths to load,
	// ahead of any -P paths given on the CLI.
	PluginPaths []string

	// PluginData lets a config script seed the plugin engine's shared
	// data store before any plugin's Init runs.
	PluginData map[string]string

	// Flags/FlagsSet are the run's behavior flags (ForceRecompile,
	// PreserveSource, DryRun, Debugger) and a bitmask of which of those
	// bits this config script wants to set. The driver applies a config
	// bit only where the CLI left that bit untouched, so an explicit CLI
	// flag always wins.
	Flags    uint
	FlagsSet uint

	// CacheDir overrides the cache directory when non-empty.
	CacheDir string

	// ScriptArgv, when ScriptArgvOwned is true, replaces the argument
	// vector passed to the script's entry point.
	ScriptArgv      []string
	ScriptArgvOwned bool
}

// NewContext returns a Context seeded with the driver's own argv, the
// script's initial (pre-config) argv, and the script path about to run.
func NewContext(driverArgv, initialScriptArgv []string, scriptPath string) *Context {
	return &Context{
		DriverArgv:        driverArgv,
		InitialScriptArgv: initialScriptArgv,
		ScriptPath:        scriptPath,
		PluginData:        make(map[string]string),
	}
}

// SetDefaultFlags replaces the default-flags tier outright.
func (c *Context) SetDefaultFlags(flags string) { c.DefaultFlags = flags }

// AppendDefaultFlags appends to the default-flags tier, space-separated.
func (c *Context) AppendDefaultFlags(flags string) {
	c.DefaultFlags = appendFlags(c.DefaultFlags, flags)
}

// SetOverrideFlags replaces the override-flags tier outright.
func (c *Context) SetOverrideFlags(flags string) { c.OverrideFlags = flags }

// AppendOverrideFlags appends to the override-flags tier, space-separated.
func (c *Context) AppendOverrideFlags(flags string) {
	c.OverrideFlags = appendFlags(c.OverrideFlags, flags)
}

// SetFlags replaces the behavior-flags bitmask outright and marks every
// bit as explicitly set, so the driver knows not to layer its own CLI
// defaults on top (spec.md §4.5: "distinguish 'user said zero' from 'user
// said nothing'").
func (c *Context) SetFlags(flags uint) {
	c.Flags = flags
	c.FlagsSet = FlagForceRecompile | FlagPreserveSource | FlagDryRun | FlagDebugger
}

// OrFlags logical-ORs additional bits into the behavior-flags mask and
// marks exactly those bits as explicitly set.
func (c *Context) OrFlags(flags uint) {
	c.Flags |= flags
	c.FlagsSet |= flags
}

// AddPlugin registers an additional plugin path to load.
func (c *Context) AddPlugin(path string) {
	c.PluginPaths = append(c.PluginPaths, path)
}

// SetPluginData records a key/value pair to seed the plugin engine's
// shared data store once the engine exists, replacing any prior value
// for the same key (spec.md §4.5: "replace semantics").
func (c *Context) SetPluginData(key, value string) {
	c.PluginData[key] = value
}

// SetScriptArgv replaces the script's argument vector and takes
// ownership of it, so the pipeline does not fall back to the CLI's argv.
func (c *Context) SetScriptArgv(argv []string) {
	c.ScriptArgv = argv
	c.ScriptArgvOwned = true
}

func appendFlags(existing, addition string) string {
	if addition == "" {
		return existing
	}
	if existing == "" {
		return addition
	}
	return existing + " " + addition
}

// Behavior flag bits, matching spec.md's Flags bitmask.
const (
	FlagForceRecompile uint = 1 << iota
	FlagPreserveSource
	FlagDryRun
	FlagDebugger
)

// InitFunc is the signature a config script's exported ConfigInit symbol
// must satisfy. It returns false to signal that configuration failed; the
// driver then warns and runs the script with default settings.
type InitFunc func(ctx *Context) bool
