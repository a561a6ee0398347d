// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package cache

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeHashDeterministicAndSensitive(t *testing.T) {
	c := NewFileCache(t.TempDir(), nil)

	h1 := c.ComputeHash([]byte("package main"), "-lm", "go1.23")
	h2 := c.ComputeHash([]byte("package main"), "-lm", "go1.23")
	assert.Equal(t, h1, h2, "fingerprint must be deterministic")

	assert.NotEqual(t, h1, c.ComputeHash([]byte("package main2"), "-lm", "go1.23"))
	assert.NotEqual(t, h1, c.ComputeHash([]byte("package main"), "-lpthread", "go1.23"))
	assert.NotEqual(t, h1, c.ComputeHash([]byte("package main"), "-lm", "go1.24"))
}

func TestHasValidInlineOriginExistenceOnly(t *testing.T) {
	dir := t.TempDir()
	c := NewFileCache(dir, nil)

	hash := c.ComputeHash([]byte("x"), "", "go1.23")
	assert.False(t, c.HasValid(hash, ""))

	require.NoError(t, os.WriteFile(c.ArtifactPath(hash), []byte("fake-so"), 0o644))
	assert.True(t, c.HasValid(hash, ""))
}

func TestHasValidFreshnessAgainstSource(t *testing.T) {
	dir := t.TempDir()
	c := NewFileCache(dir, nil)

	srcPath := filepath.Join(dir, "script.go")
	require.NoError(t, os.WriteFile(srcPath, []byte("package main"), 0o644))

	hash := c.ComputeHash([]byte("package main"), "", "go1.23")
	require.NoError(t, os.WriteFile(c.ArtifactPath(hash), []byte("fake-so"), 0o644))
	assert.True(t, c.HasValid(hash, srcPath))

	// Touch the source to a time strictly after the artifact's mtime.
	future := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(srcPath, future, future))
	assert.False(t, c.HasValid(hash, srcPath), "a newer source must invalidate the cache entry")
}

func TestPurgeOnlyRemovesArtifacts(t *testing.T) {
	dir := t.TempDir()
	c := NewFileCache(dir, nil)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.so"), []byte("1"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.so"), []byte("2"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "keep.txt"), []byte("3"), 0o644))

	n, err := c.Purge()
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = os.Stat(filepath.Join(dir, "keep.txt"))
	assert.NoError(t, err, "non-artifact files must be left alone")
}

func TestStatsRoundTrip(t *testing.T) {
	dir := t.TempDir()
	c := NewFileCache(dir, nil)

	hash := c.ComputeHash([]byte("x"), "", "go1.23")
	c.HasValid(hash, "") // miss
	require.NoError(t, os.WriteFile(c.ArtifactPath(hash), []byte("fake"), 0o644))
	c.HasValid(hash, "") // hit

	require.NoError(t, c.Flush())

	reopened := NewFileCache(dir, nil)
	stats := reopened.Stats()
	assert.Equal(t, 1, stats.Hits)
	assert.Equal(t, 1, stats.Misses)
}
