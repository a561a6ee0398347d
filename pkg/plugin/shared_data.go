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

package plugin

import "sync"

// entry pairs a stored value with the destructor to call when it is
// replaced or the store is closed -- the Go analogue of GDestroyNotify.
type entry struct {
	value   any
	destroy func(any)
}

// SharedData is the plugin engine's keyed data store, used for
// communication between plugins loaded in the same run. Setting a key
// that already holds a value invokes that value's destructor before
// the new value is stored.
type SharedData struct {
	mu      sync.Mutex
	entries map[string]entry
}

// NewSharedData returns an empty store.
func NewSharedData() *SharedData {
	return &SharedData{entries: make(map[string]entry)}
}

// Set stores data under key, replacing (and destroying) any prior value.
// destroy may be nil if the value needs no cleanup.
func (s *SharedData) Set(key string, data any, destroy func(any)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.entries[key]; ok && old.destroy != nil {
		old.destroy(old.value)
	}
	s.entries[key] = entry{value: data, destroy: destroy}
}

// Get retrieves the value stored under key, or nil if absent.
func (s *SharedData) Get(key string) any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entries[key].value
}

// Close destroys every remaining entry. Called when the engine shuts
// down.
func (s *SharedData) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.entries {
		if e.destroy != nil {
			e.destroy(e.value)
		}
	}
	s.entries = make(map[string]entry)
}
