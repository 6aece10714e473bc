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

// Package pathwalker implements inter-procedural, path-
// sensitive enumeration of a function's CFG, splicing callee bodies inline
// at internal/library call sites and driving pkg/evaluator over every
// operation in program order. The walk is a queue of partial paths with a
// per-search visited set and depth/node-count budgets: resolve what a
// call reaches, walk outward, bounded.
package pathwalker

import (
	"github.com/yangzq12/contract-abstract/internal/diag"
	"github.com/yangzq12/contract-abstract/pkg/abstractvalue"
	"github.com/yangzq12/contract-abstract/pkg/evaluator"
	"github.com/yangzq12/contract-abstract/pkg/ir"
)

// frame is one suspended caller continuation, pushed when a call is
// spliced and popped when the callee's path reaches a Return (or falls off
// the end of its CFG without one). memo marks a revisited call site: while
// its callee runs, branch forking is suppressed so only one representative
// callee path is walked. visited and escapeLoop snapshot the caller's
// back-edge state so the callee's own CFG is tracked from scratch — a
// second call to the same function must not look like a loop.
type frame struct {
	node       *ir.CFGNode
	irIndex    int
	fn         *ir.Function
	bindTo     *ir.Value
	memo       bool
	visited    map[string]int
	escapeLoop bool
}

// WorkItem is one in-flight path walk: a cursor into a CFG, a private
// side-table of AbstractValue/bitmap annotations (forked on branch, so
// sibling paths stay independent), a call-return stack, and a per-path
// node-visit map that detects back-edges and backstops loop unrolling.
type WorkItem struct {
	node    *ir.CFGNode
	irIndex int
	fn      *ir.Function
	ctx     *evaluator.ContextTable
	stack   []frame
	visited map[string]int
	// memoDepth counts how many enclosing spliced calls were revisits of an
	// already-walked call site; while non-zero, conditional nodes follow only
	// their first successor instead of forking.
	memoDepth int
	// escapeLoop is set when the current node was entered through a
	// back-edge: on leaving it, the walk follows only the false-edge
	// successor (index 1) to exit the loop.
	escapeLoop bool
}

func (w *WorkItem) clone() *WorkItem {
	stack := make([]frame, len(w.stack))
	copy(stack, w.stack)
	for i := range stack {
		stack[i].visited = cloneVisited(stack[i].visited)
	}
	return &WorkItem{
		node:       w.node,
		irIndex:    w.irIndex,
		fn:         w.fn,
		ctx:        w.ctx.Clone(),
		stack:      stack,
		visited:    cloneVisited(w.visited),
		memoDepth:  w.memoDepth,
		escapeLoop: w.escapeLoop,
	}
}

func cloneVisited(m map[string]int) map[string]int {
	out := make(map[string]int, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Defaults for the resource budgets, overridden by pkg/config.
const (
	DefaultMaxPaths      = 4096
	DefaultMaxWorklist   = 2048
	DefaultMaxLoopVisits = 2
	DefaultMaxCallDepth  = 64
)

// PathWalker drives one function's CFG to completion, in every branch
// combination up to the configured budgets, feeding each operation to the
// shared Evaluator.
type PathWalker struct {
	Eval *evaluator.Evaluator
	Diags *diag.Collector

	MaxPaths      int
	MaxWorklist   int
	MaxLoopVisits int
	MaxCallDepth  int

	pending []*WorkItem
	// seenCalls memoizes call sites by IR-op identity across all paths of
	// one WalkFunction: a revisited call expands a single representative
	// callee path instead of the full branch product.
	seenCalls map[*ir.Operation]bool
}

// New builds a PathWalker with the given resource budgets; a zero value for
// any of them falls back to its Default.
func New(eval *evaluator.Evaluator, diags *diag.Collector, maxPaths, maxWorklist, maxLoopVisits, maxCallDepth int) *PathWalker {
	if maxPaths <= 0 {
		maxPaths = DefaultMaxPaths
	}
	if maxWorklist <= 0 {
		maxWorklist = DefaultMaxWorklist
	}
	if maxLoopVisits <= 0 {
		maxLoopVisits = DefaultMaxLoopVisits
	}
	if maxCallDepth <= 0 {
		maxCallDepth = DefaultMaxCallDepth
	}
	return &PathWalker{
		Eval: eval, Diags: diags,
		MaxPaths: maxPaths, MaxWorklist: maxWorklist,
		MaxLoopVisits: maxLoopVisits, MaxCallDepth: maxCallDepth,
	}
}

// WalkFunction enumerates every feasible path through fn's CFG (nil for an
// auto-generated getter, which has no body to walk — the evaluator handles
// that case directly where it's referenced). Bookkeeping accumulates as a
// side effect on pw.Eval; the return values are only for progress
// reporting. truncated reports whether a resource budget cut the walk
// short (a ResourceBudget diagnostic is also recorded in that case).
func (pw *PathWalker) WalkFunction(fn *ir.Function) (pathCount int, truncated bool) {
	if fn.Entry == nil {
		return 0, false
	}

	root := &WorkItem{
		node:    fn.Entry,
		fn:      fn,
		ctx:     evaluator.NewContextTable(),
		visited: map[string]int{fn.Entry.ID: 1},
	}
	pw.pending = []*WorkItem{root}
	pw.seenCalls = map[*ir.Operation]bool{}

	for len(pw.pending) > 0 {
		if len(pw.pending) > pw.MaxWorklist {
			pw.Diags.Addf(diag.ResourceBudget, "pathwalker",
				"%s: worklist exceeded %d items; %d path(s) completed before truncation",
				fn.FullName, pw.MaxWorklist, pathCount)
			truncated = true
			break
		}
		if pathCount >= pw.MaxPaths {
			pw.Diags.Addf(diag.ResourceBudget, "pathwalker",
				"%s: path count reached the %d-path budget; truncating remaining paths",
				fn.FullName, pw.MaxPaths)
			truncated = true
			break
		}

		item := pw.pending[0]
		pw.pending = pw.pending[1:]

		pw.Eval.Ctx = item.ctx
		if pw.runItem(item) {
			pathCount++
		}
	}
	return pathCount, truncated
}

// runItem drives one WorkItem to completion, returning true when it
// reaches a genuine path end (a top-level return, or falling off the end
// of the entry function's CFG). Forked sibling branches are pushed onto
// pw.pending and complete independently later.
func (pw *PathWalker) runItem(item *WorkItem) bool {
walk:
	for {
		node := item.node
		for item.irIndex < len(node.IRs) {
			op := node.IRs[item.irIndex]

			if pw.isInlineable(item, op) {
				pw.spliceCall(item, op)
				continue walk
			}
			if pw.isOpaqueGetterCall(op) {
				pw.evalOpaqueGetterCall(item, op)
				item.irIndex++
				continue
			}

			if err := pw.Eval.Eval(item.fn, op); err != nil {
				pw.Diags.Addf(diag.MalformedIR, "pathwalker", "%s: %v", item.fn.FullName, err)
			}

			if op.Kind == ir.OpReturn {
				if pw.popFrame(item, op) {
					continue walk
				}
				return true
			}
			item.irIndex++
		}

		switch sons := node.Sons; len(sons) {
		case 0:
			if pw.popFrameImplicit(item) {
				continue walk
			}
			return true
		case 1:
			if !pw.enterNode(item, sons[0]) {
				return false
			}
			continue walk
		default:
			if item.escapeLoop {
				// Back-edge: the loop head ran once more; take only the
				// false edge to leave the loop.
				if !pw.enterNode(item, sons[1]) {
					return false
				}
				continue walk
			}
			if item.memoDepth > 0 {
				if !pw.enterNode(item, sons[0]) {
					return false
				}
				continue walk
			}
			for i := 0; i < len(sons)-1; i++ {
				child := item.clone()
				if pw.enterNode(child, sons[i]) {
					pw.pending = append(pw.pending, child)
				}
			}
			if !pw.enterNode(item, sons[len(sons)-1]) {
				return false
			}
			continue walk
		}
	}
}

// enterNode moves item onto next. A successor already on the current path
// is a back-edge: the loop head runs once more and the walk then continues
// exclusively down its false-edge successor (escapeLoop). The visit
// counter doubles as a termination backstop for loop heads with no false
// edge to escape through; past MaxLoopVisits the branch is abandoned
// (returns false).
func (pw *PathWalker) enterNode(item *WorkItem, next *ir.CFGNode) bool {
	revisit := item.visited[next.ID] > 0
	item.visited[next.ID]++
	if item.visited[next.ID] > pw.MaxLoopVisits {
		return false
	}
	item.node = next
	item.irIndex = 0
	item.escapeLoop = revisit
	return true
}

func (pw *PathWalker) isInlineable(item *WorkItem, op *ir.Operation) bool {
	if op.Kind != ir.OpInternalCall && op.Kind != ir.OpLibraryCall {
		return false
	}
	return op.Callee != nil && op.Callee.Entry != nil && len(item.stack) < pw.MaxCallDepth
}

// spliceCall binds the call's arguments to the callee's parameters, pushes
// a continuation frame for the caller, and redirects item onto the
// callee's entry node.
func (pw *PathWalker) spliceCall(item *WorkItem, op *ir.Operation) {
	callee := op.Callee
	for i, param := range callee.Parameters {
		var arg abstractvalue.Value
		if i < len(op.Args) {
			arg = pw.Eval.Resolve(op.Args[i])
		} else {
			arg = abstractvalue.Unset()
		}
		item.ctx.SetAbstract(param.ID, arg.DeepCopy())
	}

	memo := pw.seenCalls[op]
	pw.seenCalls[op] = true
	item.stack = append(item.stack, frame{
		node: item.node, irIndex: item.irIndex + 1, fn: item.fn, bindTo: op.LValue, memo: memo,
		visited: item.visited, escapeLoop: item.escapeLoop,
	})
	if memo {
		item.memoDepth++
	}
	item.node = callee.Entry
	item.irIndex = 0
	item.fn = callee
	item.visited = map[string]int{callee.Entry.ID: 1}
	item.escapeLoop = false
}

// popFrame resumes the caller continuation after an explicit Return,
// binding the call's lvalue (if any) to the first returned value.
func (pw *PathWalker) popFrame(item *WorkItem, returnOp *ir.Operation) bool {
	if len(item.stack) == 0 {
		return false
	}
	f := item.stack[len(item.stack)-1]
	item.stack = item.stack[:len(item.stack)-1]
	if f.memo {
		item.memoDepth--
	}

	if f.bindTo != nil {
		var result abstractvalue.Value
		if len(returnOp.Values) > 0 {
			result = pw.Eval.Resolve(returnOp.Values[0]).DeepCopy()
		} else {
			result = abstractvalue.Unset()
		}
		item.ctx.SetAbstract(f.bindTo.ID, result)
	}
	item.node, item.irIndex, item.fn = f.node, f.irIndex, f.fn
	item.visited, item.escapeLoop = f.visited, f.escapeLoop
	return true
}

// popFrameImplicit resumes the caller continuation when a callee's CFG
// falls off its last node without an explicit Return (a void function).
func (pw *PathWalker) popFrameImplicit(item *WorkItem) bool {
	if len(item.stack) == 0 {
		return false
	}
	f := item.stack[len(item.stack)-1]
	item.stack = item.stack[:len(item.stack)-1]
	if f.memo {
		item.memoDepth--
	}
	if f.bindTo != nil {
		item.ctx.SetAbstract(f.bindTo.ID, abstractvalue.Unset())
	}
	item.node, item.irIndex, item.fn = f.node, f.irIndex, f.fn
	item.visited, item.escapeLoop = f.visited, f.escapeLoop
	return true
}

// isOpaqueGetterCall reports whether op calls an auto-generated public
// state-variable getter (Entry == nil) — there is no CFG to splice, but
// the call still reads storage and must be attributed accordingly.
func (pw *PathWalker) isOpaqueGetterCall(op *ir.Operation) bool {
	if op.Kind != ir.OpInternalCall && op.Kind != ir.OpLibraryCall {
		return false
	}
	return op.Callee != nil && op.Callee.Entry == nil && op.Callee.BackingStateVar != nil
}

func (pw *PathWalker) evalOpaqueGetterCall(item *WorkItem, op *ir.Operation) {
	sv := op.Callee.BackingStateVar
	result := abstractvalue.FromStorage(sv.Name, abstractvalue.NewTaintSet(sv.Name), sv.Name)
	if op.LValue != nil {
		item.ctx.SetAbstract(op.LValue.ID, result)
	}
	if f := item.fn; f != nil {
		pw.Eval.RecordRead(f, sv.Name)
	}
}
