// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package plugin

import (
	"testing"

	crispyerrors "github.com/crispyrun/crispy/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileIsPluginError(t *testing.T) {
	e := NewEngine(nil)
	err := e.Load("/nonexistent/plugin.so")
	require.Error(t, err)
	assert.Equal(t, crispyerrors.KindPlugin, crispyerrors.AsUserError(err).Kind)
}

func TestLoadListStopsAtFirstFailure(t *testing.T) {
	e := NewEngine(nil)
	err := e.LoadList("/nonexistent/a.so,/nonexistent/b.so")
	require.Error(t, err)
	assert.Equal(t, 0, e.Count())
}

func TestDispatchWithNoPluginsReturnsContinue(t *testing.T) {
	e := NewEngine(nil)
	ctx := &HookContext{}
	result := e.Dispatch(OnSourceLoaded, ctx)
	assert.Equal(t, Continue, result)
	assert.Equal(t, OnSourceLoaded, ctx.HookPoint)
	assert.NotNil(t, ctx.Shared)
}

func TestSharedDataSetGetAndDestroy(t *testing.T) {
	e := NewEngine(nil)
	destroyed := false
	e.SetData("k", "v1", func(any) { destroyed = true })
	assert.Equal(t, "v1", e.GetData("k"))

	e.SetData("k", "v2", nil)
	assert.True(t, destroyed, "replacing a value must invoke its destructor")
	assert.Equal(t, "v2", e.GetData("k"))

	assert.Nil(t, e.GetData("missing"))
}

func TestDispatchStopsAtFirstAbortAndSkipsLaterPlugins(t *testing.T) {
	e := NewEngine(nil)
	var called []string
	e.plugins = []*loadedPlugin{
		{info: Info{Name: "a"}, hooks: map[HookPoint]HookFunc{
			OnPreExecute: func(ctx *HookContext) HookResult {
				called = append(called, "a")
				return Abort
			},
		}},
		{info: Info{Name: "b"}, hooks: map[HookPoint]HookFunc{
			OnPreExecute: func(ctx *HookContext) HookResult {
				called = append(called, "b")
				return Continue
			},
		}},
	}
	result := e.Dispatch(OnPreExecute, &HookContext{})
	assert.Equal(t, Abort, result)
	assert.Equal(t, []string{"a"}, called, "a plugin after an abort must never run")
}

func TestDispatchWritesPluginDataBackAfterEachCall(t *testing.T) {
	e := NewEngine(nil)
	e.plugins = []*loadedPlugin{
		{info: Info{Name: "a"}, data: "initial", hooks: map[HookPoint]HookFunc{
			OnPreExecute: func(ctx *HookContext) HookResult {
				ctx.PluginData = "swapped"
				return Continue
			},
		}},
	}
	e.Dispatch(OnPreExecute, &HookContext{})
	assert.Equal(t, "swapped", e.plugins[0].data)
}

func TestCloseCallsShutdownInLoadOrder(t *testing.T) {
	e := NewEngine(nil)
	var order []string
	e.plugins = []*loadedPlugin{
		{info: Info{Name: "a"}, data: "a", shutdown: func(d any) { order = append(order, d.(string)) }},
		{info: Info{Name: "b"}, data: "b", shutdown: func(d any) { order = append(order, d.(string)) }},
	}
	e.Close()
	assert.Equal(t, []string{"a", "b"}, order)
}
