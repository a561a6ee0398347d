// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeCompiler avoids invoking the real Go toolchain in tests: it just
// writes a marker file to outputPath.
type fakeCompiler struct {
	version      string
	compileErr   error
	compileCalls int
}

func (f *fakeCompiler) Version(ctx context.Context) (string, error) { return f.version, nil }
func (f *fakeCompiler) BaseFlags(ctx context.Context) (string, error) { return "", nil }

func (f *fakeCompiler) CompileShared(ctx context.Context, sourcePath, outputPath, extraFlags string) error {
	f.compileCalls++
	if f.compileErr != nil {
		return f.compileErr
	}
	return os.WriteFile(outputPath, []byte("fake-plugin"), 0o644)
}

func (f *fakeCompiler) CompileExecutable(ctx context.Context, sourcePath, outputPath, extraFlags string) error {
	return f.CompileShared(ctx, sourcePath, outputPath, extraFlags)
}

func (f *fakeCompiler) DescribeShared(sourcePath, outputPath, extraFlags string) string {
	return "fake-go build -buildmode=plugin " + extraFlags + " -o " + outputPath + " " + sourcePath
}

func (f *fakeCompiler) DescribeExecutable(sourcePath, outputPath, extraFlags string) string {
	return "fake-go build -gcflags=all=-N -l " + extraFlags + " -o " + outputPath + " " + sourcePath
}

// fakeCache is a minimal in-memory Provider double.
type fakeCache struct {
	dir   string
	valid map[string]bool
}

func newFakeCache(dir string) *fakeCache {
	return &fakeCache{dir: dir, valid: make(map[string]bool)}
}

func (f *fakeCache) ComputeHash(source []byte, flags, version string) string {
	return "hash-" + flags + "-" + version
}
func (f *fakeCache) ArtifactPath(hash string) string { return filepath.Join(f.dir, hash+".so") }
func (f *fakeCache) HasValid(hash, sourcePath string) bool { return f.valid[hash] }
func (f *fakeCache) Purge() (int, error)                   { return 0, nil }

func TestExecuteCacheMissCompilesOnce(t *testing.T) {
	dir := t.TempDir()
	compiler := &fakeCompiler{version: "go1.23"}
	cacheProvider := newFakeCache(dir)
	pl := New(compiler, cacheProvider, nil, nil)

	script := NewFromInline("package main\n\nfunc Main(argc int, argv []string) int { return 0 }\n")
	_, err := pl.Execute(context.Background(), script, nil)
	require.Error(t, err, "fake compiled artifact is not a real Go plugin and cannot be opened")
	assert.Equal(t, 1, compiler.compileCalls)
}

func TestExecuteCacheHitSkipsCompile(t *testing.T) {
	dir := t.TempDir()
	compiler := &fakeCompiler{version: "go1.23"}
	cacheProvider := newFakeCache(dir)

	pl := New(compiler, cacheProvider, nil, nil)
	script := NewFromInline("package main\n")
	hash := cacheProvider.ComputeHash(nil, "", "go1.23")
	cacheProvider.valid[hash] = true
	require.NoError(t, os.WriteFile(cacheProvider.ArtifactPath(hash), []byte("not a real plugin"), 0o644))

	_, err := pl.Execute(context.Background(), script, nil)
	require.Error(t, err, "the planted artifact is not a real Go plugin")
	assert.Equal(t, 0, compiler.compileCalls, "a cache hit must not invoke the compiler")
}

func TestComposeFlagsOrdersTiersDefaultsFirstOverridesLast(t *testing.T) {
	pl := &Pipeline{ConfigDefaultFlags: "-default", ConfigOverrideFlags: "-override"}
	flags := pl.composeFlags("-params", "-plugin")
	assert.Equal(t, "-default -params -plugin -override", flags)
}

func TestComposeFlagsSkipsEmptyTiers(t *testing.T) {
	pl := &Pipeline{}
	assert.Equal(t, "", pl.composeFlags("", ""))
	assert.Equal(t, "-params", pl.composeFlags("-params", ""))
}

func TestExecuteDryRunOnCacheMissSkipsCompileAndReturnsZero(t *testing.T) {
	dir := t.TempDir()
	compiler := &fakeCompiler{version: "go1.23"}
	cacheProvider := newFakeCache(dir)
	pl := New(compiler, cacheProvider, nil, nil)

	script := NewFromInline("package main\n")
	script.Flags |= DryRun
	code, err := pl.Execute(context.Background(), script, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, code)
	assert.Equal(t, 0, compiler.compileCalls, "dry-run must not invoke the compiler")
}

func TestExecuteDryRunOnCacheHitStillExecutes(t *testing.T) {
	dir := t.TempDir()
	compiler := &fakeCompiler{version: "go1.23"}
	cacheProvider := newFakeCache(dir)

	pl := New(compiler, cacheProvider, nil, nil)
	script := NewFromInline("package main\n")
	script.Flags |= DryRun
	hash := cacheProvider.ComputeHash(nil, "", "go1.23")
	cacheProvider.valid[hash] = true
	require.NoError(t, os.WriteFile(cacheProvider.ArtifactPath(hash), []byte("not a real plugin"), 0o644))

	_, err := pl.Execute(context.Background(), script, nil)
	require.Error(t, err, "a cache hit bypasses dry-run and tries to load the (fake) artifact")
	assert.Equal(t, 0, compiler.compileCalls)
}
