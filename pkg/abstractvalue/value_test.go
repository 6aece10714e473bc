// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package abstractvalue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnsetIsUnknown(t *testing.T) {
	v := Unset()
	assert.Equal(t, Unknown, v.PrintedValue())
	assert.False(t, v.IsInputRooted())
	assert.False(t, v.IsStorageRooted())
}

func TestNeverBothInputAndStorage(t *testing.T) {
	v := FromStorage("bal[addr]", NewTaintSet("addr"), "bal[addr]")
	require.True(t, v.IsStorageRooted())
	assert.False(t, v.IsInputRooted())
}

func TestDeepCopyIsIndependent(t *testing.T) {
	v := FromInput("amount", NewTaintSet("amount"), "amount")
	cp := v.DeepCopy()
	require.True(t, v.Equal(cp))

	// Mutating the copy's taint set must not affect the original.
	cp.Scalar.InputTaints["extra"] = struct{}{}
	assert.False(t, v.Equal(cp))
	_, ok := v.Scalar.InputTaints["extra"]
	assert.False(t, ok)
}

func TestAppendOriginOnStorageRooted(t *testing.T) {
	v := FromStorage("bal", NewTaintSet(), "bal")
	idx := v.AppendOrigin("[addr]")
	assert.Equal(t, "bal[addr]", idx.OriginName())
}

func TestExplodeFillsFieldNamesAndTargetSlot(t *testing.T) {
	v := FromStorage("reserves[rid].configuration", NewTaintSet(), "reserves[rid].configuration")
	newVal := FromInput("ltv", NewTaintSet("ltv"), "ltv")

	exploded := v.Explode(2, []string{"ltv", "data"}, 0, newVal)
	require.True(t, exploded.IsVector())
	require.Len(t, exploded.Vector, 2)

	assert.True(t, exploded.Field(0).Equal(newVal))
	assert.Equal(t, "reserves[rid].configuration.data", exploded.Field(1).OriginName())
}

func TestEqualityIsStructural(t *testing.T) {
	a := FromStorage("x", NewTaintSet("p"), "x")
	b := FromStorage("x", NewTaintSet("p"), "x")
	assert.True(t, a.Equal(b))

	c := FromStorage("x", NewTaintSet("q"), "x")
	assert.False(t, a.Equal(c))
}

func TestTaintSetWithSuffix(t *testing.T) {
	s := NewTaintSet("bal", "allowance")
	suffixed := s.WithSuffix("[to]")
	assert.ElementsMatch(t, []string{"bal[to]", "allowance[to]"}, suffixed.Sorted())
}
