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

// Package pipeline runs a script through the nine-phase compile-on-demand
// execution pipeline: load, expand, hash, check cache, compile on a miss,
// load the resulting module, and invoke its entry point.
package pipeline

// Origin identifies where a script's source came from.
type Origin int

const (
	// OriginFile means the script was read from a path on disk.
	OriginFile Origin = iota
	// OriginInline means the script text was supplied directly (-i).
	OriginInline
	// OriginStdin means the script text was read from standard input.
	OriginStdin
)

// Flags is a bitmask of behavior switches carried on a Script, set by
// CLI flags and possibly amended by a config script.
type Flags uint

const (
	ForceRecompile Flags = 1 << iota
	PreserveSource
	DryRun
	Debugger
)

// Script holds all state accumulated for one run of the pipeline, from
// the raw source bytes through to the exit code of the invoked entry
// point.
type Script struct {
	Origin Origin
	// Path is the script's file path; empty for inline/stdin origins.
	Path string

	// Original is the raw, unmodified source as read.
	Original []byte

	// CrispyParams is the raw, pre-expansion CRISPY_PARAMS directive
	// value, if any was present.
	CrispyParams string
	HasParams    bool

	// Stripped is Original with the shebang line and CRISPY_PARAMS line
	// removed, ready to hand to the compiler.
	Stripped []byte

	// ExpandedParams is CrispyParams after shell expansion.
	ExpandedParams string

	// Hash is the cache fingerprint computed over Original, the
	// resolved flags, and the compiler version.
	Hash string

	// ArtifactPath is where the compiled plugin is (or will be) cached.
	ArtifactPath string

	// TempSourcePath is the temp file the stripped source was written
	// to for compilation, if a compile happened.
	TempSourcePath string

	// DebugExecutablePath is where the standalone debug executable was
	// built, set only when Debugger is in Flags.
	DebugExecutablePath string

	// CacheHit records whether the cache already had a valid artifact.
	CacheHit bool

	// Flags are this run's behavior switches.
	Flags Flags

	// ExitCode is the script entry point's return value, valid once
	// Execute completes without error.
	ExitCode int
}

// Has reports whether f is set on the script's Flags.
func (s *Script) Has(f Flags) bool { return s.Flags&f != 0 }

// NewFromFile returns a Script whose source will be read from path.
func NewFromFile(path string) *Script {
	return &Script{Origin: OriginFile, Path: path}
}

// NewFromInline returns a Script whose source is the given text.
func NewFromInline(source string) *Script {
	return &Script{Origin: OriginInline, Original: []byte(source)}
}

// NewFromStdin returns a Script whose source will be read from standard
// input.
func NewFromStdin() *Script {
	return &Script{Origin: OriginStdin}
}
