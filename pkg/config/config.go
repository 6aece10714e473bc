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
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config holds analyzer configuration: resource budgets, the IR
// source and output path, and the per-contract concurrency level: a
// single versioned YAML document with defaults layered underneath and
// CLI-flag overrides layered on top.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/yangzq12/contract-abstract/pkg/pathwalker"
)

// Budget holds the resource ceilings handed to each pkg/pathwalker.PathWalker.
// Zero fields fall back to the pathwalker package's own defaults.
type Budget struct {
	MaxPaths      int `yaml:"max_paths"`
	MaxWorklist   int `yaml:"max_worklist"`
	MaxLoopVisits int `yaml:"max_loop_visits"`
	MaxCallDepth  int `yaml:"max_call_depth"`
}

// Concurrency controls the per-contract worker pool. Contracts share no
// analyzer state, so independent contracts in one IR dump can run
// concurrently while each contract's own walk stays single-threaded.
type Concurrency struct {
	ContractWorkers int `yaml:"contract_workers"`
}

// Config is the full analyzer configuration, loadable from YAML or built
// up from CLI flags.
type Config struct {
	Version string `yaml:"version"`

	// IRPath is the IR dump to load. "-" reads stdin.
	IRPath string `yaml:"ir_path"`

	// Address is the on-chain address to stamp on each contract's meta.
	Address string `yaml:"address"`

	// OutputPath is the file the resulting meta.Document is written to.
	// Empty means stdout.
	OutputPath string `yaml:"output_path"`

	Budget      Budget      `yaml:"budget"`
	Concurrency Concurrency `yaml:"concurrency"`

	// Watch re-runs analysis whenever IRPath changes (cmd/contract-abstract --watch).
	Watch bool `yaml:"watch"`

	// JSONDiagnostics switches the CLI's fatal-error envelope to JSON,
	// for tool-to-tool piping instead of a human terminal.
	JSONDiagnostics bool `yaml:"json_diagnostics"`

	// NoColor disables internal/uilog's colored terminal output even when
	// stdout is a TTY.
	NoColor bool `yaml:"no_color"`
}

const configVersion = "1"

// Default returns a Config with the pathwalker package's own defaults and
// four contract workers, suitable for a first run with no config file.
func Default() *Config {
	return &Config{
		Version: configVersion,
		Budget: Budget{
			MaxPaths:      pathwalker.DefaultMaxPaths,
			MaxWorklist:   pathwalker.DefaultMaxWorklist,
			MaxLoopVisits: pathwalker.DefaultMaxLoopVisits,
			MaxCallDepth:  pathwalker.DefaultMaxCallDepth,
		},
		Concurrency: Concurrency{ContractWorkers: 4},
	}
}

// Load reads a YAML config file at path, layering it over Default(). An
// empty path returns Default() unchanged; a config file is optional.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path) //nolint:gosec // path is operator-supplied via --config
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	cfg.fillDefaults()
	return cfg, nil
}

// fillDefaults restores any budget/concurrency field left zero by a
// partial YAML document, so a config file only needs the fields it
// overrides.
func (c *Config) fillDefaults() {
	d := Default()
	if c.Version == "" {
		c.Version = d.Version
	}
	if c.Budget.MaxPaths == 0 {
		c.Budget.MaxPaths = d.Budget.MaxPaths
	}
	if c.Budget.MaxWorklist == 0 {
		c.Budget.MaxWorklist = d.Budget.MaxWorklist
	}
	if c.Budget.MaxLoopVisits == 0 {
		c.Budget.MaxLoopVisits = d.Budget.MaxLoopVisits
	}
	if c.Budget.MaxCallDepth == 0 {
		c.Budget.MaxCallDepth = d.Budget.MaxCallDepth
	}
	if c.Concurrency.ContractWorkers <= 0 {
		c.Concurrency.ContractWorkers = d.Concurrency.ContractWorkers
	}
}

// Save writes cfg to path as YAML. 0600: the file is operator-private,
// not shared.
func Save(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	return os.WriteFile(path, data, 0o600)
}
