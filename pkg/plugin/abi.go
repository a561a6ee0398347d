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

// Package plugin defines the contract extension authors build against and
// the engine that loads and dispatches them. A plugin is a Go plugin
// (.so) built with `go build -buildmode=plugin` and opened with the
// standard library's plugin package -- the idiomatic-Go analogue of
// dlopen/dlsym via GModule in the original implementation.
package plugin

import "time"

// HookPoint identifies a point in the script execution pipeline at which
// plugins are dispatched. Values and ordering mirror the nine-phase
// pipeline: source is loaded, its CRISPY_PARAMS directive is expanded,
// a cache fingerprint is computed, the cache is checked, the script is
// compiled on a miss, the resulting module is loaded, and finally it is
// executed.
type HookPoint int

const (
	OnSourceLoaded HookPoint = iota
	OnParamsExpanded
	OnHashComputed
	OnCacheChecked
	OnPreCompile
	OnPostCompile
	OnModuleLoaded
	OnPreExecute
	OnPostExecute

	// HookPointCount is the number of valid hook points; not itself a
	// valid value to dispatch.
	HookPointCount
)

// String renders a hook point by name, for logging.
func (h HookPoint) String() string {
	switch h {
	case OnSourceLoaded:
		return "source-loaded"
	case OnParamsExpanded:
		return "params-expanded"
	case OnHashComputed:
		return "hash-computed"
	case OnCacheChecked:
		return "cache-checked"
	case OnPreCompile:
		return "pre-compile"
	case OnPostCompile:
		return "post-compile"
	case OnModuleLoaded:
		return "module-loaded"
	case OnPreExecute:
		return "pre-execute"
	case OnPostExecute:
		return "post-execute"
	default:
		return "unknown"
	}
}

// HookResult is returned by a hook function to tell the pipeline how to
// proceed.
type HookResult int

const (
	// Continue proceeds normally to the next phase.
	Continue HookResult = iota
	// Abort stops the pipeline. The plugin is expected to have set
	// HookContext.Err.
	Abort
	// ForceRecompile forces recompilation even on a cache hit. Only
	// meaningful when returned from OnCacheChecked.
	ForceRecompile
)

// Info is the metadata every plugin must export as a package-level
// variable named Info.
type Info struct {
	Name        string
	Description string
	Version     string
	Author      string
	License     string
}

// HookContext is passed to every hook invocation. It carries both
// read-only pipeline state and fields a plugin may mutate to influence
// how execution proceeds -- each mutable field is read back by the
// pipeline after the hook point(s) its comment names.
type HookContext struct {
	HookPoint HookPoint

	// Read-only pipeline state.
	SourcePath      string // empty for inline/stdin origins
	SourceContent   []byte
	CrispyParams    string // raw, pre-expansion
	ExpandedParams  string
	Hash            string
	CachedArtifact  string
	CompilerVersion string
	TempSourcePath  string
	CacheHit        bool

	// Mutable: a plugin may replace the preprocessed source handed to the
	// compiler. Read back only after OnSourceLoaded.
	ModifiedSource []byte

	// Mutable: additional compiler flags injected ahead of the
	// config-override tier. Read back after OnCacheChecked and
	// OnPreCompile.
	ExtraFlags string

	// Mutable: the argument vector passed to the script's entry point.
	// Read back after OnPreExecute.
	Argv []string

	// Mutable: set true to force recompilation from OnCacheChecked.
	ForceRecompile bool

	// Result, populated by the time OnPostExecute fires.
	ExitCode int

	// Per-phase timings, populated as the pipeline progresses.
	Timing PhaseTiming

	// PluginData is this plugin's own state, as returned by its Init
	// function. Set by the engine before every dispatch to that plugin.
	PluginData any

	// Shared lets a hook read or write the engine's shared keyed data
	// store, for communication between plugins.
	Shared *SharedData

	// Err is set by a plugin when it returns Abort, to explain why.
	Err error
}

// PhaseTiming records how long each pipeline phase took.
type PhaseTiming struct {
	ParamExpand time.Duration
	Hash        time.Duration
	CacheCheck  time.Duration
	Compile     time.Duration
	ModuleLoad  time.Duration
	Execute     time.Duration
	Total       time.Duration
}

// InitFunc is an optional plugin entry point called once at load time.
// Its return value is stored and handed back on every subsequent hook
// dispatch and to Shutdown.
type InitFunc func() any

// ShutdownFunc is an optional plugin entry point called once when the
// engine is closed.
type ShutdownFunc func(pluginData any)

// HookFunc is the signature every exported hook handler must satisfy.
type HookFunc func(ctx *HookContext) HookResult
