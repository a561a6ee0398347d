// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package compiler

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	crispyerrors "github.com/crispyrun/crispy/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersionReportsGoVersion(t *testing.T) {
	c := NewGoToolchainCompiler("go", nil)
	v, err := c.Version(context.Background())
	require.NoError(t, err)
	assert.Contains(t, v, "go version")
}

func TestVersionOnMissingBinaryIsCompilerNotFound(t *testing.T) {
	c := NewGoToolchainCompiler("crispy-go-binary-does-not-exist", nil)
	_, err := c.Version(context.Background())
	require.Error(t, err)
	ue := crispyerrors.AsUserError(err)
	require.NotNil(t, ue)
	assert.Equal(t, crispyerrors.KindCompilerNotFound, ue.Kind)
}

func TestCompileSharedInvalidSourceSurfacesCompileError(t *testing.T) {
	dir := t.TempDir()
	srcPath := filepath.Join(dir, "broken.go")
	require.NoError(t, os.WriteFile(srcPath, []byte("this is not valid go"), 0o644))
	outPath := filepath.Join(dir, "broken.so")

	c := NewGoToolchainCompiler("go", nil)
	err := c.CompileShared(context.Background(), srcPath, outPath, "")
	require.Error(t, err)
	ue := crispyerrors.AsUserError(err)
	require.NotNil(t, ue)
	assert.Equal(t, crispyerrors.KindCompile, ue.Kind)
	assert.NotEmpty(t, ue.Detail)
}

func TestCompileExecutableValidSourceProducesArtifact(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("executable mode test assumes a POSIX-style temp layout")
	}
	dir := t.TempDir()
	srcPath := filepath.Join(dir, "main.go")
	require.NoError(t, os.WriteFile(srcPath, []byte("package main\n\nfunc main() {}\n"), 0o644))
	outPath := filepath.Join(dir, "main.bin")

	c := NewGoToolchainCompiler("go", nil)
	err := c.CompileExecutable(context.Background(), srcPath, outPath, "")
	require.NoError(t, err)

	info, err := os.Stat(outPath)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}
