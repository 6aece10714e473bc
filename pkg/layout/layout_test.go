// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package layout

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yangzq12/contract-abstract/pkg/ir"
)

func uintType(bits int) *ir.Type {
	return &ir.Type{Kind: ir.KindElementary, ElementaryName: "uint", SizeBits: bits}
}

func addrType() *ir.Type {
	return &ir.Type{Kind: ir.KindElementary, ElementaryName: "address", SizeBits: 160}
}

func boolType() *ir.Type {
	return &ir.Type{Kind: ir.KindElementary, ElementaryName: "bool", SizeBits: 8}
}

func TestLayoutOfPackedStructField(t *testing.T) {
	// struct S { uint128 a; uint128 b; address c; }
	structType := &ir.Type{
		Kind:       ir.KindStruct,
		StructName: "S",
		StructFields: []ir.StructField{
			{Name: "a", Type: uintType(128)},
			{Name: "b", Type: uintType(128)},
			{Name: "c", Type: addrType()},
		},
	}
	vars := []*ir.StateVariable{{Name: "s", Type: structType, Slot: 0, Offset: 0}}
	el := New(vars)

	info, meta, err := el.LayoutOf("s.c")
	require.NoError(t, err)
	assert.True(t, info.Known)
	assert.Equal(t, uint64(1), info.Slot.Uint64())
	assert.Equal(t, 0, info.Offset)
	assert.Equal(t, ir.KindElementary, meta.Kind)
}

func TestLayoutOfMappingWithSymbolicKeyIsUnknown(t *testing.T) {
	mappingType := &ir.Type{Kind: ir.KindMapping, KeyType: addrType(), ValueType: uintType(256)}
	vars := []*ir.StateVariable{{Name: "bal", Type: mappingType, Slot: 3}}
	el := New(vars)

	info, meta, err := el.LayoutOf("bal[msg_sender]")
	require.NoError(t, err)
	assert.False(t, info.Known)
	assert.Equal(t, ir.KindElementary, meta.Kind)
}

func TestLayoutOfMappingWithLiteralKeyHashes(t *testing.T) {
	mappingType := &ir.Type{Kind: ir.KindMapping, KeyType: uintType(256), ValueType: uintType(256)}
	vars := []*ir.StateVariable{{Name: "bal", Type: mappingType, Slot: 3}}
	el := New(vars)

	info, _, err := el.LayoutOf("bal[1]")
	require.NoError(t, err)
	assert.True(t, info.Known)
	assert.NotEqual(t, uint64(0), info.Slot.Uint64())
}

func TestLayoutOfFixedArrayLiteralIndexInBounds(t *testing.T) {
	arrType := &ir.Type{Kind: ir.KindArrayFixed, ArrayLength: 4, ElementType: uintType(256)}
	vars := []*ir.StateVariable{{Name: "arr", Type: arrType, Slot: 7}}
	el := New(vars)

	info, _, err := el.LayoutOf("arr[2]")
	require.NoError(t, err)
	assert.True(t, info.Known)
}

func TestLayoutOfFixedArrayOutOfRange(t *testing.T) {
	arrType := &ir.Type{Kind: ir.KindArrayFixed, ArrayLength: 4, ElementType: uintType(256)}
	vars := []*ir.StateVariable{{Name: "arr", Type: arrType, Slot: 7}}
	el := New(vars)

	_, _, err := el.LayoutOf("arr[9]")
	require.Error(t, err)
	var le *LayoutError
	require.ErrorAs(t, err, &le)
}

func TestLayoutOfUnknownEntity(t *testing.T) {
	el := New(nil)
	_, _, err := el.LayoutOf("nope")
	require.Error(t, err)
}

func TestLayoutOfFieldOnNonStruct(t *testing.T) {
	vars := []*ir.StateVariable{{Name: "x", Type: uintType(256), Slot: 0}}
	el := New(vars)
	_, _, err := el.LayoutOf("x.field")
	require.Error(t, err)
}

func TestLayoutOfNestedDynamicArrayRejected(t *testing.T) {
	innerDyn := &ir.Type{Kind: ir.KindArrayDynamic, ElementType: uintType(256)}
	outerDyn := &ir.Type{Kind: ir.KindArrayDynamic, ElementType: innerDyn}
	vars := []*ir.StateVariable{{Name: "grid", Type: outerDyn, Slot: 0}}
	el := New(vars)

	_, _, err := el.LayoutOf("grid[0][0]")
	require.Error(t, err)
}

func TestReadValueBoolAndAddressAndSignedInt(t *testing.T) {
	var word [32]byte
	word[31] = 1 // true at offset 0

	boolMeta := &TypeMeta{Kind: ir.KindElementary, DataType: "bool", SizeBits: 8}
	s, err := ReadValue(word, &SlotInfo{Offset: 0, Known: true}, boolMeta)
	require.NoError(t, err)
	assert.Equal(t, "true", s)

	negOne := make([]byte, 32)
	for i := range negOne {
		negOne[i] = 0xff
	}
	var word2 [32]byte
	copy(word2[:], negOne)
	intMeta := &TypeMeta{Kind: ir.KindElementary, DataType: "int256", SizeBits: 256}
	s2, err := ReadValue(word2, &SlotInfo{Offset: 0, Known: true}, intMeta)
	require.NoError(t, err)
	assert.Equal(t, "-1", s2)
}

func TestEntitiesPreservesDeclarationOrder(t *testing.T) {
	vars := []*ir.StateVariable{
		{Name: "first", Type: uintType(256)},
		{Name: "second", Type: boolType()},
	}
	el := New(vars)
	entities := el.Entities()
	require.Len(t, entities, 2)
	assert.Equal(t, "first", entities[0].Name)
	assert.Equal(t, "second", entities[1].Name)
}
