// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package pathwalker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yangzq12/contract-abstract/internal/diag"
	"github.com/yangzq12/contract-abstract/pkg/evaluator"
	"github.com/yangzq12/contract-abstract/pkg/ir"
)

// buildBranchingFunction models:
//
//	function pick(bool c) external returns (uint256) {
//	  if (c) { return 1; } else { return 2; }
//	}
//
// as two CFG successors off a single condition node, each ending in its
// own Return — WalkFunction should enumerate both as separate paths.
func buildBranchingFunction() *ir.Function {
	cParam := ir.NewParam("v0", "c", ir.Elementary("bool", 8))
	condOp := &ir.Operation{Kind: ir.OpCondition, RValue: cParam}

	one := ir.NewConstant("v1", "1", ir.Elementary("uint256", 256))
	two := ir.NewConstant("v2", "2", ir.Elementary("uint256", 256))
	thenNode := ir.Node("then", []*ir.Operation{{Kind: ir.OpReturn, Values: []*ir.Value{one}}})
	elseNode := ir.Node("else", []*ir.Operation{{Kind: ir.OpReturn, Values: []*ir.Value{two}}})

	entry := ir.Node("entry", []*ir.Operation{condOp}, thenNode, elseNode)
	fn := &ir.Function{
		Name: "pick", FullName: "C.pick(bool)", Parameters: []*ir.Value{cParam},
		ReturnTypes: []*ir.Type{ir.Elementary("uint256", 256)}, EntryPoint: true, Entry: entry,
	}
	for _, n := range []*ir.CFGNode{entry, thenNode, elseNode} {
		for _, op := range n.IRs {
			op.Function = fn
		}
	}
	return fn
}

// buildSelfLoopingFunction models an unconditional self-loop with no exit,
// so WalkFunction abandons the path once MaxLoopVisits is hit.
func buildSelfLoopingFunction() *ir.Function {
	loop := &ir.CFGNode{ID: "loop"}
	loop.Sons = []*ir.CFGNode{loop}
	fn := &ir.Function{Name: "spin", FullName: "C.spin()", EntryPoint: true, Entry: loop}
	return fn
}

func TestWalkFunctionForksOnePathPerBranch(t *testing.T) {
	fn := buildBranchingFunction()
	diags := &diag.Collector{}
	eval := evaluator.New(diags)
	pw := New(eval, diags, 0, 0, 0, 0)

	pathCount, truncated := pw.WalkFunction(fn)

	assert.Equal(t, 2, pathCount)
	assert.False(t, truncated)
	assert.Empty(t, diags.All())
}

// buildCountingLoopFunction models:
//
//	function tally(uint256 n) external {
//	  for (uint256 i; i < n; i++) { total = 1; }
//	}
//
// as a two-successor condition node (true edge into the body, false edge
// to the exit) whose body loops back to the condition.
func buildCountingLoopFunction(totalVar *ir.StateVariable) *ir.Function {
	nParam := ir.NewParam("p0", "n", ir.Elementary("uint256", 256))
	one := ir.NewConstant("c0", "1", ir.Elementary("uint256", 256))
	totalLV := ir.NewStateValue("sv0", totalVar)

	exit := ir.Node("exit", nil)
	cond := ir.Node("cond", []*ir.Operation{{Kind: ir.OpCondition, RValue: nParam}})
	body := ir.Node("body", []*ir.Operation{{Kind: ir.OpAssignment, LValue: totalLV, RValue: one}}, cond)
	cond.Sons = []*ir.CFGNode{body, exit}

	fn := &ir.Function{
		Name: "tally", FullName: "C.tally(uint256)", Parameters: []*ir.Value{nParam},
		EntryPoint: true, Entry: cond,
	}
	for _, n := range []*ir.CFGNode{cond, body} {
		for _, op := range n.IRs {
			op.Function = fn
		}
	}
	return fn
}

// A back-edge enumerates the loop body exactly once, then leaves through
// the condition's false edge: one zero-iteration path and one
// single-iteration path, never a second unrolling.
func TestWalkFunctionLoopBodyRunsOncePerPath(t *testing.T) {
	totalVar := &ir.StateVariable{Name: "total", Type: ir.Elementary("uint256", 256)}
	fn := buildCountingLoopFunction(totalVar)
	diags := &diag.Collector{}
	eval := evaluator.New(diags)
	pw := New(eval, diags, 0, 0, 0, 0)

	pathCount, truncated := pw.WalkFunction(fn)

	assert.Equal(t, 2, pathCount)
	assert.False(t, truncated)
	assert.Empty(t, diags.All())
	assert.True(t, eval.WriteSets[fn.FullName]["total"])
}

// buildMemoizedCallFixture models:
//
//	function helper(bool c) internal returns (uint256) {
//	  if (c) { return 1; } return 2;
//	}
//	function outer(bool a, bool c) external {
//	  if (a) {} else {}
//	  helper(c);
//	}
//
// Both branches of outer converge on the same call site, so the second
// path to reach it must splice only one representative helper path.
func buildMemoizedCallFixture() *ir.Function {
	helper := buildBranchingFunction()
	helper.Name, helper.FullName, helper.EntryPoint = "helper", "C.helper(bool)", false

	aParam := ir.NewParam("p0", "a", ir.Elementary("bool", 8))
	cParam := ir.NewParam("p1", "c", ir.Elementary("bool", 8))

	callOp := &ir.Operation{Kind: ir.OpInternalCall, Callee: helper, CalleeName: "helper", Args: []*ir.Value{cParam}}
	join := ir.Node("join", []*ir.Operation{callOp})
	left := ir.Node("left", nil, join)
	right := ir.Node("right", nil, join)
	entry := ir.Node("entry", []*ir.Operation{{Kind: ir.OpCondition, RValue: aParam}}, left, right)

	fn := &ir.Function{
		Name: "outer", FullName: "C.outer(bool,bool)",
		Parameters: []*ir.Value{aParam, cParam}, EntryPoint: true, Entry: entry,
	}
	callOp.Function = fn
	return fn
}

func TestWalkFunctionMemoizesRevisitedCallSite(t *testing.T) {
	fn := buildMemoizedCallFixture()
	diags := &diag.Collector{}
	eval := evaluator.New(diags)
	pw := New(eval, diags, 0, 0, 0, 0)

	pathCount, truncated := pw.WalkFunction(fn)

	// First arrival at the call site expands both helper branches (2 paths);
	// the second arrival is memoized down to one representative path.
	assert.Equal(t, 3, pathCount)
	assert.False(t, truncated)
	assert.Empty(t, diags.All())
}

func TestWalkFunctionAbandonsUnboundedLoop(t *testing.T) {
	fn := buildSelfLoopingFunction()
	diags := &diag.Collector{}
	eval := evaluator.New(diags)
	pw := New(eval, diags, 0, 0, 0, 0)

	_, truncated := pw.WalkFunction(fn)

	// The self-loop never reaches a Return; enterNode abandons the branch
	// once MaxLoopVisits is hit, so the worklist drains to nothing without
	// ever popping the MaxPaths/MaxWorklist guard itself.
	assert.False(t, truncated)
	require.Empty(t, diags.All())
}
