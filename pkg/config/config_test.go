// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yangzq12/contract-abstract/pkg/pathwalker"
)

func TestLoadEmptyPathReturnsDefault(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, pathwalker.DefaultMaxPaths, cfg.Budget.MaxPaths)
	assert.Equal(t, 4, cfg.Concurrency.ContractWorkers)
}

func TestSaveThenLoadRoundTrips(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	cfg := Default()
	cfg.Budget.MaxPaths = 128
	cfg.Concurrency.ContractWorkers = 8
	require.NoError(t, Save(cfg, path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 128, loaded.Budget.MaxPaths)
	assert.Equal(t, 8, loaded.Concurrency.ContractWorkers)
}

func TestLoadPartialYAMLFillsDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("ir_path: dump.json\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "dump.json", cfg.IRPath)
	assert.NotZero(t, cfg.Budget.MaxPaths)
	assert.NotZero(t, cfg.Concurrency.ContractWorkers)
}

func TestLoadMissingFileErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
