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

package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	goplugin "plugin"

	crispyerrors "github.com/crispyrun/crispy/internal/errors"
	"github.com/crispyrun/crispy/pkg/cache"
	"github.com/crispyrun/crispy/pkg/compiler"
	"github.com/crispyrun/crispy/pkg/source"
)

// Loader compiles a config script exactly once per process, loads it as
// a Go plugin, and invokes its ConfigInit entry point.
type Loader struct {
	compiler compiler.Compiler
	cache    cache.Provider
	logger   *slog.Logger
}

// NewLoader returns a loader that uses the given compiler and cache
// provider to build and cache the compiled config plugin.
func NewLoader(c compiler.Compiler, cacheProvider cache.Provider, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{compiler: c, cache: cacheProvider, logger: logger}
}

// Load reads configPath, compiles it (reusing the cache on a hit), opens
// the resulting plugin, and calls its ConfigInit with a fresh Context
// seeded from driverArgv and scriptPath. The loaded module is
// intentionally left open for the remainder of the process -- matching
// the original driver's choice to leak the config module rather than
// risk unloading code whose symbols might still be referenced by a
// running plugin.
func (l *Loader) Load(ctx context.Context, configPath string, driverArgv, initialScriptArgv []string, scriptPath string) (*Context, error) {
	raw, err := os.ReadFile(configPath)
	if err != nil {
		return nil, crispyerrors.NewIOError(
			"Could not read config script",
			err.Error(),
			"Check that the path given to -c exists and is readable",
			err,
		)
	}

	params, _ := source.ExtractParams(raw)
	expanded, err := source.ShellExpand(ctx, params)
	if err != nil {
		return nil, crispyerrors.NewParamsError(
			"Failed to expand CRISPY_PARAMS in config script",
			err.Error(),
			"",
			err,
		)
	}
	stripped := source.StripHeader(raw)

	version, err := l.compiler.Version(ctx)
	if err != nil {
		return nil, err
	}
	// Compiler.BaseFlags is not prepended here: `go build` already applies
	// GOFLAGS from the environment on its own, so passing it back as an
	// explicit argument would be redundant (see DESIGN.md).
	flags := expanded

	// Fingerprint over the original source bytes, exactly as the script
	// pipeline does (spec.md §4.7 phase 3) -- not the preprocessed form.
	hash := l.cache.ComputeHash(raw, flags, version)
	artifactPath := l.cache.ArtifactPath(hash)

	if !l.cache.HasValid(hash, configPath) {
		tmp, err := os.CreateTemp("", "crispy-config-*.go")
		if err != nil {
			return nil, crispyerrors.NewIOError("Could not create temp source for config compile", err.Error(), "", err)
		}
		defer os.Remove(tmp.Name())
		if _, err := tmp.Write(stripped); err != nil {
			tmp.Close()
			return nil, crispyerrors.NewIOError("Could not write temp source for config compile", err.Error(), "", err)
		}
		tmp.Close()

		if err := l.compiler.CompileShared(ctx, tmp.Name(), artifactPath, flags); err != nil {
			return nil, err
		}
		l.logger.Info("config.compiled", "path", configPath, "hash", hash)
	} else {
		l.logger.Debug("config.cache_hit", "path", configPath, "hash", hash)
	}

	p, err := goplugin.Open(artifactPath)
	if err != nil {
		return nil, crispyerrors.NewLoadError(
			"Failed to load compiled config module",
			err.Error(),
			"The cached artifact may be stale; retry with -n to force recompilation",
			err,
		)
	}

	sym, err := p.Lookup("ConfigInit")
	if err != nil {
		return nil, crispyerrors.NewLoadError(
			"Config script does not export ConfigInit",
			err.Error(),
			"Export `func ConfigInit(ctx *config.Context) bool` from the config script",
			err,
		)
	}
	initFn, ok := sym.(func(*Context) bool)
	if !ok {
		return nil, crispyerrors.NewLoadError(
			"ConfigInit has the wrong signature",
			fmt.Sprintf("expected func(*config.Context) bool, got %T", sym),
			"",
			nil,
		)
	}

	cfgCtx := NewContext(driverArgv, initialScriptArgv, scriptPath)
	if !initFn(cfgCtx) {
		return nil, crispyerrors.NewConfigError(
			"Config script reported initialization failure",
			fmt.Sprintf("ConfigInit(%s) returned false", configPath),
			"",
			nil,
		)
	}
	return cfgCtx, nil
}
