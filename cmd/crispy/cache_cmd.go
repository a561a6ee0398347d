// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/crispyrun/crispy/internal/errors"
	"github.com/crispyrun/crispy/pkg/cache"
	"github.com/crispyrun/crispy/pkg/metrics"
)

// runCache dispatches `crispy cache <subcommand>`.
func runCache(args []string, globals GlobalFlags, cacheDir string) int {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "Usage: crispy cache <purge|stats>")
		return 1
	}
	// Global flag parsing stops at "cache", so accept --json after the
	// subcommand as well (`crispy cache stats --json`).
	for _, a := range args[1:] {
		if a == "--json" {
			globals.JSON = true
			globals.Quiet = true
		}
	}
	if cacheDir == "" {
		cacheDir = defaultCacheDir()
	}
	logger := newLogger(globals)
	cacheProvider := cache.NewFileCache(cacheDir, logger)

	switch args[0] {
	case "purge":
		return runCachePurge(cacheProvider, globals)
	case "stats":
		return runCacheStats(cacheProvider, globals)
	default:
		fmt.Fprintf(os.Stderr, "Unknown cache subcommand: %s\n", args[0])
		return 1
	}
}

func runCachePurge(cacheProvider *cache.FileCache, globals GlobalFlags) int {
	var bar *progressbar.ProgressBar
	if !globals.Quiet {
		bar = progressbar.NewOptions(-1,
			progressbar.OptionSetDescription("purging cache"),
			progressbar.OptionSpinnerType(14),
			progressbar.OptionSetWriter(os.Stderr),
		)
		done := make(chan struct{})
		defer close(done)
		go func() {
			ticker := time.NewTicker(80 * time.Millisecond)
			defer ticker.Stop()
			for {
				select {
				case <-done:
					return
				case <-ticker.C:
					_ = bar.Add(1)
				}
			}
		}()
	}

	removed, err := cacheProvider.Purge()
	if bar != nil {
		_ = bar.Finish()
	}
	if err != nil {
		errors.FatalError(err, globals.JSON)
	}
	metrics.RecordCachePurge(removed)
	if err := cacheProvider.Flush(); err != nil {
		errors.Warning("failed to persist cache stats: %v", err)
	}

	if globals.JSON {
		out, _ := json.Marshal(map[string]int{"removed": removed})
		fmt.Println(string(out))
		return 0
	}
	fmt.Printf("Removed %d cached artifact(s) from %s\n", removed, cacheProvider.Dir())
	return 0
}

func runCacheStats(cacheProvider *cache.FileCache, globals GlobalFlags) int {
	stats := cacheProvider.Stats()
	if globals.JSON {
		out, _ := json.Marshal(stats)
		fmt.Println(string(out))
		return 0
	}
	fmt.Printf("Cache directory: %s\n", cacheProvider.Dir())
	fmt.Printf("  hits:    %d\n", stats.Hits)
	fmt.Printf("  misses:  %d\n", stats.Misses)
	fmt.Printf("  purges:  %d\n", stats.Purges)
	fmt.Printf("  last purge removed: %d\n", stats.LastPurgeArtifacts)
	return 0
}
