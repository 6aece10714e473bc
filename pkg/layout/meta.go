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

// Package layout implements EntityLayout, the canonical contract
// storage-layout rules that turn a declared storage type into concrete
// slot+offset tuples.
package layout

import (
	"math/big"

	"github.com/yangzq12/contract-abstract/pkg/ir"
)

// SlotInfo addresses a 32-byte storage word plus a bit offset within it.
// Slot is a full 256-bit word number — declared state variables start
// near zero, but mapping/dynamic-array element slots are keccak256
// digests and need the full range. Known is false when the expression
// indexes a mapping or a dynamic array by a value that is not a
// compile-time literal — the type is still resolvable (see FindMeta) but
// no concrete slot number exists without a live key.
type SlotInfo struct {
	Slot   *big.Int
	Offset int // bit offset within Slot
	Known  bool
}

// SlotFromUint64 builds a known SlotInfo for a declared state variable.
func SlotFromUint64(slot uint64, offset int) *SlotInfo {
	return &SlotInfo{Slot: new(big.Int).SetUint64(slot), Offset: offset, Known: true}
}

// TypeMeta is the recursive storage-meta tree, with StorageInfo/Bitmap/
// Read annotations layered on for the output document.
type TypeMeta struct {
	Kind ir.TypeKind

	// Elementary
	DataType string
	SizeBits int

	// StaticArray / DynamicArray
	Length      int
	ElementType *TypeMeta
	// slotsPerElement is precomputed at build time: 1 for elementary and
	// for container element types (mapping/array have their own hashed
	// base slot), the struct's own relative slot count otherwise.
	slotsPerElement int

	// Mapping
	KeyType   *TypeMeta
	ValueType *TypeMeta

	// Struct
	StructName string
	Fields     []TypeMetaField

	// StorageInfo is set on top-level entities, and filled in by LayoutOf
	// for any sub-expression it resolves.
	StorageInfo *SlotInfo

	// Bitmap is attached post-hoc by the BitPatternEngine's layout
	// recognizer when this word packs sub-fields.
	Bitmap *TypeMeta

	// Read marks a scalar entity observed read by some walked function.
	Read bool
}

// TypeMetaField is one struct field, with its precomputed relative slot
// offset (in whole slots from the struct's base) and bit offset within
// that relative slot.
type TypeMetaField struct {
	Name       string
	Type       *TypeMeta
	SlotOffset int
	BitOffset  int
}

func isReferenceKind(k ir.TypeKind) bool {
	switch k {
	case ir.KindMapping, ir.KindArrayFixed, ir.KindArrayDynamic, ir.KindStruct:
		return true
	default:
		return false
	}
}

// BuildTypeMeta converts a declared ir.Type into the layout engine's
// TypeMeta tree. Struct packing: a field starts at offset 0 of a new
// slot if it is a reference type, or if its bit-width plus the running
// offset exceeds 256; otherwise it packs in the current slot.
func BuildTypeMeta(t *ir.Type) *TypeMeta {
	if t == nil {
		return nil
	}
	switch t.Kind {
	case ir.KindElementary:
		return &TypeMeta{Kind: ir.KindElementary, DataType: t.ElementaryName, SizeBits: t.SizeBits}
	case ir.KindContract:
		return &TypeMeta{Kind: ir.KindContract, DataType: t.ContractName, SizeBits: 160}
	case ir.KindEnum:
		return &TypeMeta{Kind: ir.KindEnum, DataType: t.EnumName, SizeBits: 8}
	case ir.KindArrayFixed:
		elem := BuildTypeMeta(t.ElementType)
		return &TypeMeta{Kind: ir.KindArrayFixed, Length: t.ArrayLength, ElementType: elem, slotsPerElement: slotsOccupiedBy(elem)}
	case ir.KindArrayDynamic:
		elem := BuildTypeMeta(t.ElementType)
		return &TypeMeta{Kind: ir.KindArrayDynamic, ElementType: elem, slotsPerElement: slotsOccupiedBy(elem)}
	case ir.KindMapping:
		return &TypeMeta{Kind: ir.KindMapping, KeyType: BuildTypeMeta(t.KeyType), ValueType: BuildTypeMeta(t.ValueType)}
	case ir.KindStruct:
		m := &TypeMeta{Kind: ir.KindStruct, StructName: t.StructName}
		slotIdx, bitOffset := 0, 0
		for _, f := range t.StructFields {
			fieldMeta := BuildTypeMeta(f.Type)
			width := fieldMeta.SizeBits
			if (isReferenceKind(fieldMeta.Kind) || bitOffset+width > 256) && bitOffset > 0 {
				slotIdx++
				bitOffset = 0
			}
			m.Fields = append(m.Fields, TypeMetaField{
				Name: f.Name, Type: fieldMeta, SlotOffset: slotIdx, BitOffset: bitOffset,
			})
			if isReferenceKind(fieldMeta.Kind) {
				slotIdx++
				bitOffset = 0
			} else {
				bitOffset += width
			}
		}
		return m
	default:
		return &TypeMeta{Kind: t.Kind}
	}
}

// slotsOccupiedBy returns how many consecutive slots one element of this
// type occupies when laid out inline; elementary elements take one slot
// each. Reference-typed elements
// (nested mapping/array) always occupy exactly one base slot — their
// contents live at a hashed location, not inline.
func slotsOccupiedBy(m *TypeMeta) int {
	if m == nil {
		return 1
	}
	if m.Kind == ir.KindStruct {
		max := 0
		for _, f := range m.Fields {
			if f.SlotOffset+1 > max {
				max = f.SlotOffset + 1
			}
		}
		if max == 0 {
			max = 1
		}
		return max
	}
	return 1
}
