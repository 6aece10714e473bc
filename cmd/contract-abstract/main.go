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

// Package main implements the contract-abstract CLI: it reads an
// SSA-style IR dump for one or more contracts, reconstructs their
// semantic storage schema and business-logic summary, and writes the
// resulting meta document as JSON.
//
// Usage:
//
//	contract-abstract <ir-file>             Analyze and print to stdout
//	contract-abstract <ir-file> -o out.json Write to a file
//	contract-abstract --watch <ir-file>     Re-run on every change to ir-file
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	flag "github.com/spf13/pflag"

	"github.com/yangzq12/contract-abstract/internal/diag"
	"github.com/yangzq12/contract-abstract/internal/uilog"
	"github.com/yangzq12/contract-abstract/pkg/analyzer"
	"github.com/yangzq12/contract-abstract/pkg/config"
	"github.com/yangzq12/contract-abstract/pkg/ir"
)

var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	var (
		showVersion = flag.BoolP("version", "V", false, "Show version and exit")
		configPath  = flag.StringP("config", "c", "", "Path to a YAML config file")
		outputPath  = flag.StringP("output", "o", "", "Write the meta document here instead of stdout")
		address     = flag.String("address", "", "On-chain address to stamp on each contract's meta")
		maxPaths    = flag.Int("max-paths", 0, "Override the per-function path budget")
		maxWorklist = flag.Int("max-worklist", 0, "Override the per-function worklist budget")
		workers     = flag.Int("contract-workers", 0, "Number of contracts to analyze concurrently")
		watch       = flag.Bool("watch", false, "Re-run whenever the IR file changes")
		metricsAddr = flag.String("metrics-addr", "", "HTTP listen address for Prometheus metrics (empty to disable)")
		jsonDiag    = flag.Bool("json-diagnostics", false, "Emit fatal errors as a JSON envelope")
		noColor     = flag.Bool("no-color", false, "Disable color output")
		quiet       = flag.BoolP("quiet", "q", false, "Suppress progress/info logging")
		debug       = flag.BoolP("debug", "d", false, "Verbose debug logging")
	)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `contract-abstract - semantic storage schema recovery for contract IR

Usage:
  contract-abstract <ir-file> [options]

Options:
`)
		flag.PrintDefaults()
	}
	flag.Parse()

	if *showVersion {
		fmt.Printf("contract-abstract version %s (commit %s)\n", version, commit)
		os.Exit(0)
	}

	logger := uilog.NewLogger(*debug, *quiet)

	cfg, err := config.Load(*configPath)
	if err != nil {
		diag.Fatal(err, *jsonDiag)
	}
	applyFlagOverrides(cfg, *outputPath, *address, *maxPaths, *maxWorklist, *workers, *watch, *jsonDiag, *noColor)
	uilog.InitColors(cfg.NoColor)

	args := flag.Args()
	if len(args) != 1 {
		flag.Usage()
		os.Exit(1)
	}
	cfg.IRPath = args[0]

	if *metricsAddr != "" {
		go serveMetrics(*metricsAddr, logger)
	}

	if cfg.Watch {
		runWatch(cfg, logger)
		return
	}

	if err := runOnce(cfg, logger); err != nil {
		diag.Fatal(err, cfg.JSONDiagnostics)
	}
}

func applyFlagOverrides(cfg *config.Config, outputPath, address string, maxPaths, maxWorklist, workers int, watch, jsonDiag, noColor bool) {
	if outputPath != "" {
		cfg.OutputPath = outputPath
	}
	if maxPaths > 0 {
		cfg.Budget.MaxPaths = maxPaths
	}
	if maxWorklist > 0 {
		cfg.Budget.MaxWorklist = maxWorklist
	}
	if workers > 0 {
		cfg.Concurrency.ContractWorkers = workers
	}
	if watch {
		cfg.Watch = true
	}
	if jsonDiag {
		cfg.JSONDiagnostics = true
	}
	if noColor {
		cfg.NoColor = true
	}
	if address != "" {
		cfg.Address = address
	}
}

// runOnce loads the IR file named by cfg.IRPath, runs the analyzer, and
// writes the resulting document to cfg.OutputPath (stdout if empty).
func runOnce(cfg *config.Config, logger *slog.Logger) error {
	doc, err := loadIR(cfg.IRPath)
	if err != nil {
		return err
	}

	a := analyzer.New(analyzer.Options{
		Address: cfg.Address,
		Budget: analyzer.Budget{
			MaxPaths:      cfg.Budget.MaxPaths,
			MaxWorklist:   cfg.Budget.MaxWorklist,
			MaxLoopVisits: cfg.Budget.MaxLoopVisits,
			MaxCallDepth:  cfg.Budget.MaxCallDepth,
		},
		ContractWorkers: cfg.Concurrency.ContractWorkers,
		Logger:          logger,
	})

	bar := newProgressBar(int64(len(doc.Contracts)), "Analyzing contracts")
	if bar != nil {
		a.SetProgressCallback(func(current, _ int64, _ string) {
			_ = bar.Set64(current)
		})
	}
	result, diags := a.Analyze(doc)
	if bar != nil {
		_ = bar.Finish()
	}

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding meta document: %w", err)
	}

	if err := writeOutput(cfg.OutputPath, out); err != nil {
		return err
	}
	if diags.HasResourceBudgetExceeded() {
		uilog.Warningf("analysis truncated by a resource budget; see diagnostics in the output document")
	}
	return nil
}

func loadIR(path string) (*ir.Document, error) {
	var r io.Reader
	if path == "-" {
		r = os.Stdin
	} else {
		f, err := os.Open(path) //nolint:gosec // operator-supplied IR file path
		if err != nil {
			return nil, fmt.Errorf("opening IR file %s: %w", path, err)
		}
		defer f.Close()
		r = f
	}
	return ir.Decode(r)
}

func writeOutput(path string, data []byte) error {
	if path == "" {
		_, err := os.Stdout.Write(append(data, '\n'))
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644) //nolint:gosec // output meta doc isn't sensitive
}
