// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppendFlagsJoinsWithSpace(t *testing.T) {
	ctx := NewContext(nil, nil, "script.go")
	ctx.AppendDefaultFlags("-a")
	ctx.AppendDefaultFlags("-b")
	assert.Equal(t, "-a -b", ctx.DefaultFlags)
}

func TestAppendFlagsIgnoresEmptyAddition(t *testing.T) {
	ctx := NewContext(nil, nil, "script.go")
	ctx.AppendOverrideFlags("-x")
	ctx.AppendOverrideFlags("")
	assert.Equal(t, "-x", ctx.OverrideFlags)
}

func TestAddPluginAccumulatesInOrder(t *testing.T) {
	ctx := NewContext(nil, nil, "script.go")
	ctx.AddPlugin("/a.so")
	ctx.AddPlugin("/b.so")
	assert.Equal(t, []string{"/a.so", "/b.so"}, ctx.PluginPaths)
}

func TestSetScriptArgvTakesOwnership(t *testing.T) {
	ctx := NewContext(nil, nil, "script.go")
	assert.False(t, ctx.ScriptArgvOwned)
	ctx.SetScriptArgv([]string{"a", "b"})
	assert.True(t, ctx.ScriptArgvOwned)
	assert.Equal(t, []string{"a", "b"}, ctx.ScriptArgv)
}
