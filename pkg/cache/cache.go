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

// Package cache implements content-addressed storage for compiled script
// artifacts.
package cache

// Provider is the cache contract: content-addressed lookup of compiled
// artifacts, keyed by a hex fingerprint over (source, flags, compiler
// version). Implementations own the physical storage; FileCache is the
// only one shipped here, but the pipeline depends only on this interface.
type Provider interface {
	// ComputeHash returns the hex digest identifying the (source, flags,
	// version) triple. flags may be empty.
	ComputeHash(source []byte, flags, compilerVersion string) string

	// ArtifactPath returns the canonical path an artifact with the given
	// hash would live at, whether or not it currently exists.
	ArtifactPath(hash string) string

	// HasValid reports whether a valid artifact exists for hash. When
	// sourcePath is non-empty, the artifact must also not be older than
	// the source file.
	HasValid(hash, sourcePath string) bool

	// Purge removes every cached artifact and returns the count removed.
	Purge() (int, error)
}
