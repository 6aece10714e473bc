// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package evaluator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yangzq12/contract-abstract/internal/diag"
	"github.com/yangzq12/contract-abstract/pkg/abstractvalue"
	"github.com/yangzq12/contract-abstract/pkg/ir"
)

func newTestEvaluator() (*Evaluator, *diag.Collector) {
	diags := &diag.Collector{}
	return New(diags), diags
}

func TestEvalAssignmentToScalarStateVariableRecordsWrite(t *testing.T) {
	e, _ := newTestEvaluator()
	balance := &ir.StateVariable{Name: "balance", Type: ir.Elementary("uint256", 256)}
	fn := &ir.Function{FullName: "C.setBalance(uint256)"}

	lv := ir.NewStateValue("sv0", balance)
	rv := ir.NewParam("v0", "v", ir.Elementary("uint256", 256))
	op := &ir.Operation{Kind: ir.OpAssignment, LValue: lv, RValue: rv}

	require.NoError(t, e.Eval(fn, op))

	writes := e.WriteSets[fn.FullName]
	require.NotNil(t, writes)
	assert.True(t, writes["balance"])
}

func TestEvalIndexThenAssignmentRecordsMappingWriteThroughReference(t *testing.T) {
	e, _ := newTestEvaluator()
	balances := &ir.StateVariable{
		Name: "balances",
		Type: ir.MappingType(ir.Elementary("address", 160), ir.Elementary("uint256", 256)),
	}
	fn := &ir.Function{FullName: "C.setBalance(address,uint256)"}

	base := ir.NewStateValue("sv0", balances)
	who := ir.NewParam("p0", "who", ir.Elementary("address", 160))
	slot := &ir.Value{ID: "t0", Name: "t0", Type: ir.Elementary("uint256", 256), IsReference: true}
	indexOp := &ir.Operation{Kind: ir.OpIndex, LValue: slot, Base: base, IndexVal: who}
	require.NoError(t, e.Eval(fn, indexOp))

	amount := ir.NewParam("p1", "amount", ir.Elementary("uint256", 256))
	assignOp := &ir.Operation{Kind: ir.OpAssignment, LValue: slot, RValue: amount}
	require.NoError(t, e.Eval(fn, assignOp))

	writes := e.WriteSets[fn.FullName]
	require.NotNil(t, writes)
	assert.True(t, writes["balances[who]"])
}

// TestAssignmentThroughFieldReferenceWritesBackToReferent models:
//
//	MyStruct storage s = m[k];
//	s.x = 1;
//
// The write must be attributed to m[k].x, and the referent's AbstractValue
// must explode into per-field precision with the untouched field keeping
// its derived canonical name.
func TestAssignmentThroughFieldReferenceWritesBackToReferent(t *testing.T) {
	e, _ := newTestEvaluator()
	structT := ir.Struct("MyStruct",
		ir.Field("x", ir.Elementary("uint256", 256)),
		ir.Field("y", ir.Elementary("uint256", 256)))
	m := &ir.StateVariable{Name: "m", Type: ir.MappingType(ir.Elementary("bytes32", 256), structT)}
	fn := &ir.Function{FullName: "C.poke(bytes32)"}

	base := ir.NewStateValue("sv0", m)
	k := ir.NewParam("p0", "k", ir.Elementary("bytes32", 256))
	sRef := &ir.Value{ID: "r0", Name: "s", Type: structT, IsReference: true}
	require.NoError(t, e.Eval(fn, &ir.Operation{Kind: ir.OpIndex, LValue: sRef, Base: base, IndexVal: k}))

	fieldRef := &ir.Value{ID: "r1", Name: "REF_0", Type: ir.Elementary("uint256", 256), IsReference: true}
	require.NoError(t, e.Eval(fn, &ir.Operation{Kind: ir.OpMember, LValue: fieldRef, Base: sRef, FieldName: "x"}))

	one := ir.NewConstant("c0", "1", ir.Elementary("uint256", 256))
	require.NoError(t, e.Eval(fn, &ir.Operation{Kind: ir.OpAssignment, LValue: fieldRef, RValue: one}))

	assert.True(t, e.WriteSets[fn.FullName]["m[k].x"])

	referent, ok := e.Ctx.Abstract(sRef.ID)
	require.True(t, ok)
	require.True(t, referent.IsVector())
	require.Len(t, referent.Vector, 2)
	assert.Equal(t, "m[k].x", referent.Vector[0].OriginName())
	assert.Equal(t, "m[k].y", referent.Vector[1].OriginName())
}

func TestHighLevelCallRecordsDestinationCrossCall(t *testing.T) {
	e, _ := newTestEvaluator()
	oracle := &ir.StateVariable{Name: "oracle", Type: ir.Elementary("address", 160)}
	fn := &ir.Function{FullName: "C.price(address)"}

	dest := ir.NewStateValue("sv0", oracle)
	asset := ir.NewParam("p0", "asset", ir.Elementary("address", 160))
	lv := ir.NewTemp("t0", "t0", ir.Elementary("uint256", 256))
	op := &ir.Operation{
		Kind: ir.OpHighLevelCall, LValue: lv, Destination: dest,
		CalleeName: "latestAnswer", Args: []*ir.Value{asset},
	}
	require.NoError(t, e.Eval(fn, op))

	assert.True(t, e.CrossCalls["oracle"]["latestAnswer"])

	av, ok := e.Ctx.Abstract(lv.ID)
	require.True(t, ok)
	assert.Equal(t, "oracle.latestAnswer()", av.PrintedValue())

	// The result is opaque on input/storage but keeps the two taint
	// categories apart: argument parameters taint the input side, the
	// destination taints the storage side.
	assert.False(t, av.IsInputRooted())
	assert.False(t, av.IsStorageRooted())
	inT, stT := av.Taints()
	assert.Equal(t, []string{"asset"}, inT.Sorted())
	assert.Equal(t, []string{"oracle"}, stT.Sorted())
}

// A compound assignment through a storage reference (`self.data &= mask`)
// must keep the reference's storage identity on the result and land in
// the function's write-set under its canonical name.
func TestEvalBinarySelfUpdatePreservesStorageAndRecordsWrite(t *testing.T) {
	e, _ := newTestEvaluator()
	fn := &ir.Function{FullName: "C.setLtv(uint256)"}

	ref := &ir.Value{ID: "r0", Name: "REF_0", Type: ir.Elementary("uint256", 256), IsReference: true}
	e.Ctx.SetAbstract(ref.ID, abstractvalue.FromStorage(
		"reserves[rid].configuration",
		abstractvalue.NewTaintSet("reserves[rid].configuration"),
		"reserves[rid].configuration"))

	mask := ir.NewConstant("c0", "0xFFFF", ir.Elementary("uint256", 256))
	op := &ir.Operation{Kind: ir.OpBinary, LValue: ref, Left: ref, Right: mask, BinOp: ir.BinAnd}
	require.NoError(t, e.Eval(fn, op))

	assert.True(t, e.WriteSets[fn.FullName]["reserves[rid].configuration"])

	av, ok := e.Ctx.Abstract(ref.ID)
	require.True(t, ok)
	assert.True(t, av.IsStorageRooted())
	assert.Equal(t, "reserves[rid].configuration", av.OriginName())
}

// A constant state variable read mid-path must land in the constants table
// and seed the bitmap engine with its literal, not a fresh symbolic word.
func TestConstantStateVariableReadSeedsLiteral(t *testing.T) {
	e, _ := newTestEvaluator()
	fee := &ir.StateVariable{
		Name: "FEE", Type: ir.Elementary("uint256", 256), IsConstant: true,
		Initializer: &ir.Operation{RValue: ir.NewConstant("k0", "100", ir.Elementary("uint256", 256))},
	}
	fn := &ir.Function{FullName: "C.charge(uint256)"}

	rv := ir.NewStateValue("sv0", fee)
	lv := ir.NewTemp("t0", "t0", ir.Elementary("uint256", 256))
	require.NoError(t, e.Eval(fn, &ir.Operation{Kind: ir.OpAssignment, LValue: lv, RValue: rv}))

	require.Len(t, e.Constants, 1)
	assert.Equal(t, "FEE", e.Constants[0].Name)
	assert.Equal(t, "100", e.Constants[0].Value)
	assert.NotNil(t, e.Ctx.Bitmap(rv.ID))

	// Constants aren't persistent storage; the read must not show up in the
	// function's storage read-set.
	assert.Empty(t, e.ReadSets[fn.FullName])
}

func TestEvalReturnRecordsStorageExpression(t *testing.T) {
	e, _ := newTestEvaluator()
	balance := &ir.StateVariable{Name: "balance", Type: ir.Elementary("uint256", 256)}
	fn := &ir.Function{FullName: "C.getBalance()", ReturnTypes: []*ir.Type{ir.Elementary("uint256", 256)}}

	rv := ir.NewStateValue("sv0", balance)
	op := &ir.Operation{Kind: ir.OpReturn, Values: []*ir.Value{rv}}
	require.NoError(t, e.Eval(fn, op))

	require.Len(t, e.ReturnStorages[fn.FullName], 1)
	assert.Equal(t, "balance", e.ReturnStorages[fn.FullName][0])
}
