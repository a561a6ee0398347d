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

package plugin

import (
	"fmt"
	"log/slog"
	goplugin "plugin"
	"strings"

	crispyerrors "github.com/crispyrun/crispy/internal/errors"
)

// hookSymbols maps each hook point to the exported symbol name a plugin
// .so may provide for it. A plugin need not export all nine; absent
// symbols are simply skipped during dispatch.
var hookSymbols = map[HookPoint]string{
	OnSourceLoaded:   "OnSourceLoaded",
	OnParamsExpanded: "OnParamsExpanded",
	OnHashComputed:   "OnHashComputed",
	OnCacheChecked:   "OnCacheChecked",
	OnPreCompile:     "OnPreCompile",
	OnPostCompile:    "OnPostCompile",
	OnModuleLoaded:   "OnModuleLoaded",
	OnPreExecute:     "OnPreExecute",
	OnPostExecute:    "OnPostExecute",
}

// loadedPlugin is one plugin registered with the engine, in load order.
type loadedPlugin struct {
	path     string
	info     Info
	hooks    map[HookPoint]HookFunc
	data     any
	shutdown ShutdownFunc
}

// Engine loads plugins and dispatches hook points to them in load order.
// It is the Go analogue of CrispyPluginEngine: an ordered plugin list
// plus a shared keyed data store for inter-plugin communication.
type Engine struct {
	logger  *slog.Logger
	plugins []*loadedPlugin
	shared  *SharedData
}

// NewEngine returns an empty engine with no plugins loaded.
func NewEngine(logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{logger: logger, shared: NewSharedData()}
}

// Load opens a single plugin .so at path, reads its exported Info, calls
// its Init function if present, and resolves whichever hook symbols it
// exports.
func (e *Engine) Load(path string) error {
	p, err := goplugin.Open(path)
	if err != nil {
		return crispyerrors.NewPluginError(
			"Plugin failed to load",
			err.Error(),
			"Verify the plugin was built with `go build -buildmode=plugin` against this crispy binary's exact Go toolchain version",
			err,
		)
	}

	infoSym, err := p.Lookup("Info")
	if err != nil {
		return crispyerrors.NewPluginError(
			"Plugin missing required Info symbol",
			path+": "+err.Error(),
			"Export a package-level `var Info = plugin.Info{...}` from the plugin",
			err,
		)
	}
	info, ok := infoSym.(*Info)
	if !ok {
		return crispyerrors.NewPluginError(
			"Plugin Info symbol has the wrong type",
			fmt.Sprintf("%s: expected *plugin.Info, got %T", path, infoSym),
			"",
			nil,
		)
	}

	lp := &loadedPlugin{path: path, info: *info, hooks: make(map[HookPoint]HookFunc)}

	if initSym, err := p.Lookup("Init"); err == nil {
		if initFn, ok := initSym.(func() any); ok {
			lp.data = initFn()
		}
	}
	if shutdownSym, err := p.Lookup("Shutdown"); err == nil {
		if shutdownFn, ok := shutdownSym.(func(any)); ok {
			lp.shutdown = shutdownFn
		}
	}

	for point, symbolName := range hookSymbols {
		sym, err := p.Lookup(symbolName)
		if err != nil {
			continue
		}
		hookFn, ok := sym.(func(*HookContext) HookResult)
		if !ok {
			e.logger.Warn("plugin.hook_signature_mismatch", "plugin", info.Name, "hook", point.String())
			continue
		}
		lp.hooks[point] = hookFn
	}

	e.plugins = append(e.plugins, lp)
	e.logger.Info("plugin.loaded", "name", info.Name, "version", info.Version, "path", path)
	return nil
}

// LoadList splits paths on ':' and ',' and loads each in order, stopping
// at the first failure -- mirroring crispy_plugin_engine_load_paths.
func (e *Engine) LoadList(paths string) error {
	for _, path := range strings.FieldsFunc(paths, func(r rune) bool { return r == ':' || r == ',' }) {
		path = strings.TrimSpace(path)
		if path == "" {
			continue
		}
		if err := e.Load(path); err != nil {
			return err
		}
	}
	return nil
}

// Count returns the number of currently loaded plugins.
func (e *Engine) Count() int { return len(e.plugins) }

// SetData stores data in the engine's shared data store.
func (e *Engine) SetData(key string, data any, destroy func(any)) {
	e.shared.Set(key, data, destroy)
}

// GetData retrieves data from the engine's shared data store.
func (e *Engine) GetData(key string) any {
	return e.shared.Get(key)
}

// Dispatch calls every loaded plugin's handler for the given hook point,
// in load order, feeding each plugin's own PluginData and the shared
// store into the context before invoking it. After each call the
// (possibly swapped) PluginData is written back to the plugin's saved
// state. Dispatch stops at the first plugin that returns Abort or
// ForceRecompile and returns that result immediately; Continue falls
// through to the next plugin.
func (e *Engine) Dispatch(point HookPoint, ctx *HookContext) HookResult {
	ctx.HookPoint = point
	ctx.Shared = e.shared

	for _, lp := range e.plugins {
		hookFn, ok := lp.hooks[point]
		if !ok {
			continue
		}
		ctx.PluginData = lp.data
		result := hookFn(ctx)
		lp.data = ctx.PluginData
		switch result {
		case Abort:
			e.logger.Warn("plugin.abort", "plugin", lp.info.Name, "hook", point.String())
			return Abort
		case ForceRecompile:
			return ForceRecompile
		}
	}
	return Continue
}

// Close calls every loaded plugin's Shutdown function in load order and
// destroys the shared data store.
func (e *Engine) Close() {
	for _, lp := range e.plugins {
		if lp.shutdown != nil {
			lp.shutdown(lp.data)
		}
	}
	e.shared.Close()
}
