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

package cache

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const statsFileName = "stats.yaml"

// Stats is a small persisted record of cache behavior over time. The
// original C cache only logs purge counts transiently (see
// crispy-file-cache.c); this supplements that with counters a user can
// inspect later via `crispy cache stats`.
type Stats struct {
	Hits               int `yaml:"hits" json:"hits"`
	Misses             int `yaml:"misses" json:"misses"`
	Purges             int `yaml:"purges" json:"purges"`
	LastPurgeArtifacts int `yaml:"last_purge_artifacts" json:"last_purge_artifacts"`
}

func loadStats(dir string) (*Stats, error) {
	data, err := os.ReadFile(filepath.Join(dir, statsFileName))
	if os.IsNotExist(err) {
		return &Stats{}, nil
	}
	if err != nil {
		return nil, err
	}
	var s Stats
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (s *Stats) save(dir string) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, statsFileName), data, 0o640)
}
