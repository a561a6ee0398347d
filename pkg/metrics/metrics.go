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

// Package metrics exposes the Prometheus instrumentation for the script
// execution pipeline, the cache, and the plugin engine. Recording is
// pure observation -- it never changes pipeline control flow. Counters
// accumulate in the default registry; scraping them over HTTP is left to
// whatever wraps this package into a long-running process.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// CacheLookups counts cache lookups by outcome ("hit" or "miss").
	CacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crispy_cache_lookups_total",
			Help: "Total number of cache lookups by outcome",
		},
		[]string{"outcome"},
	)

	// CachePurgedArtifacts counts how many artifacts were removed by cache purges.
	CachePurgedArtifacts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "crispy_cache_purged_artifacts_total",
			Help: "Total number of cached artifacts removed by purges",
		},
	)

	// CompileDuration observes how long each compile invocation takes,
	// split by target ("shared" or "executable") and outcome.
	CompileDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "crispy_compile_duration_seconds",
			Help:    "Duration of compiler invocations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"target", "outcome"},
	)

	// PipelinePhaseDuration observes how long each pipeline phase takes.
	PipelinePhaseDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "crispy_pipeline_phase_duration_seconds",
			Help:    "Duration of each script execution pipeline phase in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"phase"},
	)

	// PluginDispatches counts hook dispatches by hook point and result.
	PluginDispatches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crispy_plugin_dispatches_total",
			Help: "Total number of plugin hook dispatches by hook point and result",
		},
		[]string{"hook", "result"},
	)

	// ScriptExecutions counts completed script runs by exit status.
	ScriptExecutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crispy_script_executions_total",
			Help: "Total number of script executions by exit status",
		},
		[]string{"status"},
	)
)

func init() {
	prometheus.MustRegister(
		CacheLookups,
		CachePurgedArtifacts,
		CompileDuration,
		PipelinePhaseDuration,
		PluginDispatches,
		ScriptExecutions,
	)
}

// RecordCacheLookup increments the lookup counter for the given outcome.
func RecordCacheLookup(hit bool) {
	if hit {
		CacheLookups.WithLabelValues("hit").Inc()
		return
	}
	CacheLookups.WithLabelValues("miss").Inc()
}

// RecordCachePurge accumulates the number of artifacts a purge removed.
func RecordCachePurge(removed int) {
	CachePurgedArtifacts.Add(float64(removed))
}

// ObserveCompile records a compile invocation's duration and outcome.
func ObserveCompile(target string, seconds float64, ok bool) {
	outcome := "success"
	if !ok {
		outcome = "failure"
	}
	CompileDuration.WithLabelValues(target, outcome).Observe(seconds)
}

// ObservePipelinePhase records a pipeline phase's duration.
func ObservePipelinePhase(phase string, seconds float64) {
	PipelinePhaseDuration.WithLabelValues(phase).Observe(seconds)
}

// RecordPluginDispatch increments the dispatch counter for a hook point
// and result.
func RecordPluginDispatch(hook, result string) {
	PluginDispatches.WithLabelValues(hook, result).Inc()
}

// RecordScriptExecution increments the execution counter for an exit
// status ("ok" or "error").
func RecordScriptExecution(status string) {
	ScriptExecutions.WithLabelValues(status).Inc()
}
