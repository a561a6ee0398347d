// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"context"
	"testing"

	crispyerrors "github.com/crispyrun/crispy/internal/errors"
	"github.com/crispyrun/crispy/pkg/cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeCompiler lets loader tests avoid invoking the real Go toolchain.
type fakeCompiler struct{}

func (fakeCompiler) Version(ctx context.Context) (string, error)    { return "go1.23", nil }
func (fakeCompiler) BaseFlags(ctx context.Context) (string, error)  { return "", nil }
func (fakeCompiler) CompileShared(ctx context.Context, sourcePath, outputPath, extraFlags string) error {
	return nil
}
func (fakeCompiler) CompileExecutable(ctx context.Context, sourcePath, outputPath, extraFlags string) error {
	return nil
}
func (fakeCompiler) DescribeShared(sourcePath, outputPath, extraFlags string) string     { return "" }
func (fakeCompiler) DescribeExecutable(sourcePath, outputPath, extraFlags string) string { return "" }

func TestLoadMissingConfigFileIsIOError(t *testing.T) {
	l := NewLoader(fakeCompiler{}, cache.NewFileCache(t.TempDir(), nil), nil)
	_, err := l.Load(context.Background(), "/nonexistent/config.go", nil, nil, "")
	require.Error(t, err)
	ue := crispyerrors.AsUserError(err)
	require.NotNil(t, ue)
	assert.Equal(t, crispyerrors.KindIO, ue.Kind)
}
