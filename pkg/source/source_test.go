// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package source

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractParams(t *testing.T) {
	t.Run("present", func(t *testing.T) {
		src := []byte("#!/usr/bin/crispy\n\npackage main\n\n#define CRISPY_PARAMS \"-lm -lpthread\"\n\nfunc Main() {}\n")
		val, ok := ExtractParams(src)
		require.True(t, ok)
		assert.Equal(t, "-lm -lpthread", val)
	})

	t.Run("absent", func(t *testing.T) {
		src := []byte("package main\n\nfunc Main() {}\n")
		_, ok := ExtractParams(src)
		assert.False(t, ok)
	})

	t.Run("indented", func(t *testing.T) {
		src := []byte("package main\n\t#define CRISPY_PARAMS \"-ldflags=-s\"\n")
		val, ok := ExtractParams(src)
		require.True(t, ok)
		assert.Equal(t, "-ldflags=-s", val)
	})
}

func TestStripHeader(t *testing.T) {
	t.Run("shebang and params", func(t *testing.T) {
		src := []byte("#!/usr/bin/crispy\npackage main\n#define CRISPY_PARAMS \"-lm\"\nfunc Main() int { return 0 }\n")
		out := StripHeader(src)
		assert.Equal(t, "package main\nfunc Main() int { return 0 }\n", string(out))
	})

	t.Run("no header", func(t *testing.T) {
		src := []byte("package main\nfunc Main() int { return 0 }\n")
		out := StripHeader(src)
		assert.Equal(t, string(src), string(out))
	})

	t.Run("preserves trailing newlines and order", func(t *testing.T) {
		src := []byte("#!/usr/bin/crispy\nline1\n\nline2\n#define CRISPY_PARAMS \"x\"\nline3\n")
		out := StripHeader(src)
		assert.Equal(t, "line1\n\nline2\nline3\n", string(out))
	})
}

func TestExtractAfterStripIsAbsent(t *testing.T) {
	src := []byte("#!/usr/bin/crispy\npackage main\n#define CRISPY_PARAMS \"-lm\"\nfunc Main() int { return 0 }\n")
	_, ok := ExtractParams(src)
	require.True(t, ok)

	stripped := StripHeader(src)
	_, ok = ExtractParams(stripped)
	assert.False(t, ok, "extraction should find nothing once the directive line is stripped")
}

func TestShellExpand(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		out, err := ShellExpand(context.Background(), "")
		require.NoError(t, err)
		assert.Equal(t, "", out)
	})

	t.Run("literal", func(t *testing.T) {
		out, err := ShellExpand(context.Background(), "-lm -lpthread")
		require.NoError(t, err)
		assert.Equal(t, "-lm -lpthread", out)
	})

	t.Run("command substitution word splitting", func(t *testing.T) {
		out, err := ShellExpand(context.Background(), "$(echo -la -lb)")
		require.NoError(t, err)
		assert.Equal(t, "-la -lb", out)
	})
}
