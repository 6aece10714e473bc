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

// Package analyzer implements ContractAnalyzer: it drives
// pkg/pathwalker over every entry function of a contract, then runs the
// post-processing passes (bitmap recognition, read-flag propagation,
// utility extraction, write-storage table, final document assembly).
// Contracts within one IR document are independent — no shared mutable
// state crosses a contract boundary — so a fixed-size worker pool
// processes them concurrently.
package analyzer

import (
	"fmt"
	"log/slog"
	"runtime"
	"sort"
	"sync"

	"github.com/yangzq12/contract-abstract/internal/diag"
	"github.com/yangzq12/contract-abstract/pkg/evaluator"
	"github.com/yangzq12/contract-abstract/pkg/ir"
	"github.com/yangzq12/contract-abstract/pkg/layout"
	"github.com/yangzq12/contract-abstract/pkg/meta"
	"github.com/yangzq12/contract-abstract/pkg/pathwalker"
)

// Budget mirrors pkg/config.Budget without importing it, keeping this
// package usable independent of the CLI's config file shape.
type Budget struct {
	MaxPaths      int
	MaxWorklist   int
	MaxLoopVisits int
	MaxCallDepth  int
}

// Options configures one analyzer run.
type Options struct {
	Address         string // on-chain address to stamp on each ContractMeta; may be empty
	Budget          Budget
	ContractWorkers int
	Logger          *slog.Logger
}

// softMemoryWarnMB is the heap-allocation threshold (runtime
// MemStats.Alloc, in MiB) past which the analyzer
// logs a warning. Advisory only: the hard ceiling is the path/worklist
// budgets already enforced by pkg/pathwalker.
const softMemoryWarnMB = 1024

// ProgressCallback is called as contracts complete, for CLI progress
// reporting. current counts finished contracts, total is the contract
// count, phase is a short machine-readable phase name.
type ProgressCallback func(current, total int64, phase string)

// ContractAnalyzer runs the analysis pipeline for one IR document.
type ContractAnalyzer struct {
	opts       Options
	onProgress ProgressCallback
}

// SetProgressCallback sets an optional callback for progress reporting.
func (a *ContractAnalyzer) SetProgressCallback(cb ProgressCallback) {
	a.onProgress = cb
}

// New builds a ContractAnalyzer. A nil Logger falls back to slog.Default().
func New(opts Options) *ContractAnalyzer {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.ContractWorkers <= 0 {
		opts.ContractWorkers = 1
	}
	return &ContractAnalyzer{opts: opts}
}

// Analyze runs every contract in doc through the full pipeline and
// assembles the output document. Diagnostics from every contract are
// merged into the single collector returned alongside the document, so a
// resource-budget truncation in one contract never suppresses another
// contract's results.
func (a *ContractAnalyzer) Analyze(doc *ir.Document) (*meta.Document, *diag.Collector) {
	out := meta.NewDocument()
	diags := &diag.Collector{}

	type job struct {
		idx      int
		contract *ir.Contract
	}
	type result struct {
		idx      int
		name     string
		cm       *meta.ContractMeta
		diags    []diag.Diagnostic
	}

	jobs := make(chan job, len(doc.Contracts))
	results := make(chan result, len(doc.Contracts))

	workers := a.opts.ContractWorkers
	if workers > len(doc.Contracts) && len(doc.Contracts) > 0 {
		workers = len(doc.Contracts)
	}
	if workers <= 0 {
		workers = 1
	}

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				cm, cdiags := a.analyzeContract(j.contract)
				results <- result{idx: j.idx, name: j.contract.Name, cm: cm, diags: cdiags}
			}
		}()
	}

	for i, c := range doc.Contracts {
		jobs <- job{idx: i, contract: c}
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(results)
	}()

	ordered := make([]result, len(doc.Contracts))
	var done int64
	for r := range results {
		ordered[r.idx] = r
		done++
		if a.onProgress != nil {
			a.onProgress(done, int64(len(doc.Contracts)), "analyzing")
		}
	}

	for _, r := range ordered {
		if r.cm == nil {
			continue
		}
		out.SetContract(r.name, r.cm)
		for _, d := range r.diags {
			diags.Add(d)
		}
	}
	out.AddDiagnostics(diags.All())
	return out, diags
}

// analyzeContract runs the walk-then-postprocess pipeline for one
// contract, isolated from every other contract's Evaluator/ContextTable.
func (a *ContractAnalyzer) analyzeContract(c *ir.Contract) (*meta.ContractMeta, []diag.Diagnostic) {
	diags := &diag.Collector{}
	eval := evaluator.New(diags)
	entityLayout := layout.New(c.StorageVariablesOrdered)

	pw := pathwalker.New(eval, diags,
		a.opts.Budget.MaxPaths, a.opts.Budget.MaxWorklist,
		a.opts.Budget.MaxLoopVisits, a.opts.Budget.MaxCallDepth)

	entries := c.EntryFunctions()
	for _, fn := range entries {
		// State-variable values re-seed lazily (their canonical symbolic
		// selves, or a constant's literal) the first time the next path
		// touches them.
		eval.Ctx.Clear()
		if fn.Entry == nil {
			eval.RecordGetterReturn(fn) // auto-generated getter: no CFG to walk
			continue
		}
		_, truncated := pw.WalkFunction(fn)
		if truncated {
			a.opts.Logger.Warn("analyzer.walk.truncated", "contract", c.Name, "function", fn.FullName)
		}
		a.warnIfMemoryHigh(c.Name, fn.FullName)
	}

	cm := meta.NewContractMeta(a.opts.Address)
	a.attachEntities(cm, entityLayout, eval, diags)
	a.attachConstants(cm, eval)
	a.attachUtilities(cm, entries, eval)
	a.attachWriteStorage(cm, c.Functions, eval)

	return cm, diags.All()
}

// attachEntities copies every declared storage entity into cm, merging
// in any bitmap sub-tree the BitPatternEngine recognized and setting
// Read when a scalar entity appeared in a read-set.
func (a *ContractAnalyzer) attachEntities(cm *meta.ContractMeta, el *layout.EntityLayout, eval *evaluator.Evaluator, diags *diag.Collector) {
	// A recognized bitmap is keyed by the full canonical expression of the
	// packed word (e.g. "reserves[k].configuration"); FindMeta navigates to
	// the nested type node inside the owning entity's tree, so the
	// annotation lands on the packed word itself, not the top-level root.
	for expr, bm := range eval.Bitmaps.RecognizeLayouts(diags) {
		target, err := el.FindMeta(expr)
		if err != nil || target == nil {
			diags.Addf(diag.UnsupportedConstruct, "analyzer",
				"bitmap layout for %s: expression does not resolve to a storage node: %v", expr, err)
			continue
		}
		target.Bitmap = bm
	}

	readRoots := readEntityRoots(eval.ReadSets)
	for _, ent := range el.Entities() {
		m := ent.Meta
		if readRoots[ent.Name] && isScalarKind(m.Kind) {
			m.Read = true
		}
		cm.SetEntity(ent.Name, m)
	}
}

// isScalarKind reports whether a storage entity is a plain word rather
// than a container; only scalars get the read flag.
func isScalarKind(k ir.TypeKind) bool {
	switch k {
	case ir.KindElementary, ir.KindContract, ir.KindEnum:
		return true
	default:
		return false
	}
}

// readEntityRoots reduces every recorded read expression down to its
// root storage-entity name (the part before the first '.' or '[').
func readEntityRoots(readSets map[string]map[string]bool) map[string]bool {
	roots := map[string]bool{}
	for _, set := range readSets {
		for expr := range set {
			roots[rootOf(expr)] = true
		}
	}
	return roots
}

func rootOf(expr string) string {
	for i := 0; i < len(expr); i++ {
		if expr[i] == '.' || expr[i] == '[' {
			return expr[:i]
		}
	}
	return expr
}

// attachConstants copies the evaluator's constants table into cm's
// output shape. A constant with no declared interface signatures that was
// observed as a HighLevelCall destination gets the set of function names
// called on it instead, so downstream consumers still learn the callable
// surface of the target.
func (a *ContractAnalyzer) attachConstants(cm *meta.ContractMeta, eval *evaluator.Evaluator) {
	for _, rec := range eval.Constants {
		iface := rec.Interface
		if len(iface) == 0 {
			if calls, ok := eval.CrossCalls[rec.Name]; ok {
				for name := range calls {
					iface = append(iface, name)
				}
				sort.Strings(iface)
			}
		}
		ct := meta.ConstantType{Interface: iface}
		if len(iface) > 0 {
			ct.DataType = "address"
			ct.SizeBits = 160
		} else if rec.Type != nil {
			ct.DataType = rec.Type.ElementaryName
			ct.SizeBits = rec.Type.SizeBits
		}
		cm.Constants = append(cm.Constants, meta.Constant{Name: rec.Name, Value: rec.Value, Type: ct})
	}
}

// attachUtilities lists every pure/view entry function as a Utility:
// its parameters by name/type
// and the storage expressions (or literal constants) it returns.
func (a *ContractAnalyzer) attachUtilities(cm *meta.ContractMeta, entries []*ir.Function, eval *evaluator.Evaluator) {
	for _, fn := range entries {
		if !fn.Pure && !fn.View {
			continue
		}
		params := map[string]string{}
		for _, p := range fn.Parameters {
			params[p.Name] = typeString(p.Type)
		}
		var returns []meta.ReturnValue
		for _, rt := range fn.ReturnTypes {
			returns = append(returns, meta.ReturnValue{Type: typeString(rt)})
		}
		for i, s := range eval.ReturnStorages[fn.FullName] {
			if i < len(returns) {
				returns[i].Value = s
			} else {
				returns = append(returns, meta.ReturnValue{Value: s})
			}
		}
		cm.Utilities = append(cm.Utilities, meta.Utility{
			Function: fn.FullName, Parameters: params, Returns: returns,
		})
	}
}

// typeString renders a declared type as a short printable name for the
// utilities table's parameter/return listing.
func typeString(t *ir.Type) string {
	if t == nil {
		return ""
	}
	switch t.Kind {
	case ir.KindElementary:
		return t.ElementaryName
	case ir.KindStruct:
		return t.StructName
	case ir.KindContract:
		return t.ContractName
	case ir.KindEnum:
		return t.EnumName
	case ir.KindArrayFixed:
		return fmt.Sprintf("%s[%d]", typeString(t.ElementType), t.ArrayLength)
	case ir.KindArrayDynamic:
		return typeString(t.ElementType) + "[]"
	case ir.KindMapping:
		return fmt.Sprintf("mapping(%s => %s)", typeString(t.KeyType), typeString(t.ValueType))
	default:
		return ""
	}
}

// attachWriteStorage builds the function_write_storage table from the
// evaluator's write-sets, sorting each function's
// write expressions for deterministic output.
func (a *ContractAnalyzer) attachWriteStorage(cm *meta.ContractMeta, functions []*ir.Function, eval *evaluator.Evaluator) {
	byName := make(map[string]*ir.Function, len(functions))
	for _, fn := range functions {
		byName[fn.FullName] = fn
	}

	for fnName, set := range eval.WriteSets {
		writes := make([]string, 0, len(set))
		for expr := range set {
			writes = append(writes, expr)
		}
		sort.Strings(writes)

		var params []string
		if fn, ok := byName[fnName]; ok {
			for _, p := range fn.Parameters {
				params = append(params, p.Name)
			}
		}
		cm.FunctionWriteStorage[fnName] = meta.FunctionWrites{
			Parameters:    params,
			WriteStorages: writes,
		}
	}
}

// warnIfMemoryHigh logs a one-line warning when allocated heap memory has
// crossed the soft ceiling. Log-only: pkg/pathwalker's own path/worklist
// budgets are the hard ceiling.
func (a *ContractAnalyzer) warnIfMemoryHigh(contract, function string) {
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)
	mb := stats.Alloc / (1024 * 1024)
	if mb > softMemoryWarnMB {
		a.opts.Logger.Warn("analyzer.memory.high", "contract", contract, "function", function, "alloc_mb", mb)
	}
}
