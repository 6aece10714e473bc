// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package bitpattern

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yangzq12/contract-abstract/internal/diag"
	"github.com/yangzq12/contract-abstract/pkg/ir"
)

func TestSimplifyFoldsConstants(t *testing.T) {
	e := And(ConstU64(0xff), ConstU64(0x0f))
	s := Simplify(e)
	require.Equal(t, OpConst, s.Op)
	assert.Equal(t, uint64(0x0f), s.Const.Uint64())
}

func TestSimplifyRecognizesMaskedShiftAsExtract(t *testing.T) {
	// (data >> 16) & 0xFFFF == EXTRACT(data, 31, 16)
	e := And(Shr(Var("data"), ConstU64(16)), ConstU64(0xFFFF))
	s := Simplify(e)
	require.Equal(t, OpExtract, s.Op)
	assert.Equal(t, 31, s.Hi)
	assert.Equal(t, 16, s.Lo)
}

func TestSimplifyMaskAloneIsExtractFromZero(t *testing.T) {
	e := And(Var("data"), ConstU64(0xFF))
	s := Simplify(e)
	require.Equal(t, OpExtract, s.Op)
	assert.Equal(t, 7, s.Hi)
	assert.Equal(t, 0, s.Lo)
}

func TestCollectFreeVarsDedupesAndOrders(t *testing.T) {
	e := Or(And(Var("a"), Var("b")), Var("a"))
	assert.Equal(t, []string{"a", "b"}, CollectFreeVars(e))
}

func TestSubstituteReplacesLeaves(t *testing.T) {
	e := And(Var("a"), Var("b"))
	s := Substitute(e, "a", ConstU64(1))
	require.Equal(t, OpConst, s.A.Op)
	assert.Equal(t, OpVar, s.B.Op)
}

func TestRecognizeSingleVarBitmap(t *testing.T) {
	engine := NewEngine()
	bitmapExpr := And(Shr(Var("reserves[rid].configuration"), ConstU64(0)), ConstU64(0xFFFF))
	engine.Record("setLtv(uint256,uint256)", "reserves[rid].configuration", bitmapExpr)

	diags := &diag.Collector{}
	metas := engine.RecognizeLayouts(diags)
	require.Contains(t, metas, "reserves[rid].configuration")
	meta := metas["reserves[rid].configuration"]
	require.Equal(t, ir.KindStruct, meta.Kind)
	require.Len(t, meta.Fields, 1)
	assert.Equal(t, "Ltv", meta.Fields[0].Name)
	assert.Equal(t, 0, meta.Fields[0].BitOffset)
	assert.Equal(t, 16, meta.Fields[0].Type.SizeBits)
}

func TestRecognizeTwoVarBooleanPairArray(t *testing.T) {
	// setActive clears bit rid*2, setFrozen clears bit rid*2+1:
	//
	//	flags & ~(1 << (rid + rid))
	//	flags & ~(1 << (rid + rid + 1))
	//
	// Probing every shift with all-ones data forces a lone zero at bit
	// shift*2 (resp. shift*2+1) — the two packed-pair patterns, read out
	// as a 128-element array of boolean pairs.
	engine := NewEngine()
	activeExpr := And(Var("flags"), Not(Shl(ConstU64(1), Add(Var("rid"), Var("rid")))))
	frozenExpr := And(Var("flags"), Not(Shl(ConstU64(1), Add(Add(Var("rid"), Var("rid")), ConstU64(1)))))
	engine.Record("setActive(uint256)", "flags", activeExpr)
	engine.Record("setFrozen(uint256)", "flags", frozenExpr)

	diags := &diag.Collector{}
	metas := engine.RecognizeLayouts(diags)
	require.Empty(t, diags.All())
	require.Contains(t, metas, "flags")

	meta := metas["flags"]
	assert.Equal(t, ir.KindArrayFixed, meta.Kind)
	assert.Equal(t, 128, meta.Length)
	require.NotNil(t, meta.ElementType)
	require.Equal(t, ir.KindStruct, meta.ElementType.Kind)
	require.Len(t, meta.ElementType.Fields, 2)
	assert.Equal(t, "Active", meta.ElementType.Fields[0].Name)
	assert.Equal(t, 0, meta.ElementType.Fields[0].BitOffset)
	assert.Equal(t, "bool", meta.ElementType.Fields[0].Type.DataType)
	assert.Equal(t, "Frozen", meta.ElementType.Fields[1].Name)
	assert.Equal(t, 1, meta.ElementType.Fields[1].BitOffset)
	assert.Equal(t, "bool", meta.ElementType.Fields[1].Type.DataType)
}

func TestThreeVarBitmapIsUnsupported(t *testing.T) {
	engine := NewEngine()
	expr := And(And(Var("a"), Var("b")), Var("c"))
	engine.Record("f()", "x", expr)

	diags := &diag.Collector{}
	metas := engine.RecognizeLayouts(diags)
	assert.Empty(t, metas)
	require.NotEmpty(t, diags.All())
	assert.Equal(t, diag.UnsupportedConstruct, diags.All()[0].Kind)
}

func TestNormalizeAccessorName(t *testing.T) {
	assert.Equal(t, "Ltv", NormalizeAccessorName("setLtv"))
	assert.Equal(t, "fooBar", NormalizeAccessorName("FOO_BAR_"))
	assert.Equal(t, "treasury", NormalizeAccessorName("Contract.treasury()"))
}

func TestContiguousWidth(t *testing.T) {
	w, ok := contiguousWidth(uint256.NewInt(0xFF))
	require.True(t, ok)
	assert.Equal(t, 8, w)

	_, ok = contiguousWidth(uint256.NewInt(0x0A))
	assert.False(t, ok)
}
