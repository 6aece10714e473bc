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

package layout

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/yangzq12/contract-abstract/pkg/exprparser"
	"github.com/yangzq12/contract-abstract/pkg/ir"
)

// LayoutError reports a storage-layout rule violation. It fails the
// current entity's slot resolution; storageInfo stays absent on the
// affected node.
type LayoutError struct {
	Expr string
	Msg  string
}

func (e *LayoutError) Error() string {
	return fmt.Sprintf("layout: %s: %s", e.Expr, e.Msg)
}

// EntityLayout holds the declared storage shape of one
// contract's state variables and answers LayoutOf/FindMeta queries
// against canonical storage-access expressions.
type EntityLayout struct {
	entities map[string]*TypeMeta
	order    []string
}

// New builds an EntityLayout from a contract's ordered state variables.
func New(vars []*ir.StateVariable) *EntityLayout {
	e := &EntityLayout{entities: make(map[string]*TypeMeta, len(vars))}
	for _, v := range vars {
		m := BuildTypeMeta(v.Type)
		m.StorageInfo = SlotFromUint64(v.Slot, v.Offset)
		e.entities[v.Name] = m
		e.order = append(e.order, v.Name)
	}
	return e
}

// Entity is one top-level declared storage variable and its resolved meta.
type Entity struct {
	Name string
	Meta *TypeMeta
}

// Entities returns the top-level entity metas in declaration order.
func (e *EntityLayout) Entities() []Entity {
	out := make([]Entity, 0, len(e.order))
	for _, name := range e.order {
		out = append(out, Entity{Name: name, Meta: e.entities[name]})
	}
	return out
}

// LayoutOf resolves a canonical storage-access expression to its slot and
// type. The returned SlotInfo.Known is false when resolution passed
// through a mapping key or array index that was not a compile-time
// literal; the TypeMeta is still valid in that case.
func (e *EntityLayout) LayoutOf(expr string) (*SlotInfo, *TypeMeta, error) {
	node, err := exprparser.Parse(expr)
	if err != nil {
		return nil, nil, err
	}
	return e.walk(expr, node)
}

// FindMeta resolves only the TypeMeta at expr, without requiring a
// concrete slot (useful for mapping/array element types addressed by a
// symbolic key, where no numeric slot exists).
func (e *EntityLayout) FindMeta(expr string) (*TypeMeta, error) {
	_, m, err := e.LayoutOf(expr)
	return m, err
}

// walk resolves node by recursing to its base first, then applying one
// step (root lookup, field access, or index access).
func (e *EntityLayout) walk(expr string, node *exprparser.Node) (*SlotInfo, *TypeMeta, error) {
	if node.Base == nil {
		meta, ok := e.entities[node.Name]
		if !ok {
			return nil, nil, &LayoutError{Expr: expr, Msg: fmt.Sprintf("unknown storage entity %q", node.Name)}
		}
		return meta.StorageInfo, meta, nil
	}

	baseSlot, baseMeta, err := e.walk(expr, node.Base)
	if err != nil {
		return nil, nil, err
	}

	if node.Field != "" {
		return stepField(expr, baseSlot, baseMeta, node.Field)
	}
	return e.stepIndex(expr, baseSlot, baseMeta, node.Index)
}

func stepField(expr string, baseSlot *SlotInfo, baseMeta *TypeMeta, field string) (*SlotInfo, *TypeMeta, error) {
	if baseMeta.Kind != ir.KindStruct {
		return nil, nil, &LayoutError{Expr: expr, Msg: fmt.Sprintf("field access %q on non-struct type", field)}
	}
	for _, f := range baseMeta.Fields {
		if f.Name != field {
			continue
		}
		info := &SlotInfo{Offset: f.BitOffset, Known: baseSlot != nil && baseSlot.Known}
		if info.Known {
			info.Slot = new(big.Int).Add(baseSlot.Slot, big.NewInt(int64(f.SlotOffset)))
		} else {
			info.Slot = big.NewInt(0)
		}
		meta := f.Type
		meta.StorageInfo = info
		return info, meta, nil
	}
	return nil, nil, &LayoutError{Expr: expr, Msg: fmt.Sprintf("struct %s has no field %q", baseMeta.StructName, field)}
}

func (e *EntityLayout) stepIndex(expr string, baseSlot *SlotInfo, baseMeta *TypeMeta, indexNode *exprparser.Node) (*SlotInfo, *TypeMeta, error) {
	switch baseMeta.Kind {
	case ir.KindArrayFixed, ir.KindArrayDynamic:
		if baseMeta.ElementType != nil && baseMeta.ElementType.Kind == ir.KindArrayDynamic {
			return nil, nil, &LayoutError{Expr: expr, Msg: "dynamic multi-dimensional arrays inside arrays are unsupported"}
		}
		elemMeta := baseMeta.ElementType
		lit, isLit := literalIndex(indexNode)
		if baseMeta.Kind == ir.KindArrayFixed && isLit && (lit < 0 || lit >= int64(baseMeta.Length)) {
			return nil, nil, &LayoutError{Expr: expr, Msg: fmt.Sprintf("array index %d out of range [0,%d)", lit, baseMeta.Length)}
		}
		if !isLit || baseSlot == nil || !baseSlot.Known {
			meta := elemMeta
			info := &SlotInfo{Slot: big.NewInt(0), Known: false}
			meta.StorageInfo = info
			return info, meta, nil
		}
		base := keccakOfSlot(baseSlot.Slot)
		elemSlots := big.NewInt(int64(baseMeta.slotsPerElement))
		offset := new(big.Int).Mul(big.NewInt(lit), elemSlots)
		slot := new(big.Int).Add(base, offset)
		info := &SlotInfo{Slot: slot, Offset: 0, Known: true}
		meta := elemMeta
		meta.StorageInfo = info
		return info, meta, nil

	case ir.KindMapping:
		if baseMeta.KeyType == nil || baseMeta.KeyType.Kind != ir.KindElementary {
			return nil, nil, &LayoutError{Expr: expr, Msg: "mapping key type must be elementary"}
		}
		keyLit, isLit := literalKey(indexNode)
		meta := baseMeta.ValueType
		if !isLit || baseSlot == nil || !baseSlot.Known {
			info := &SlotInfo{Slot: big.NewInt(0), Known: false}
			meta.StorageInfo = info
			return info, meta, nil
		}
		encoded, err := encodeElementaryKey(keyLit, baseMeta.KeyType)
		if err != nil {
			return nil, nil, &LayoutError{Expr: expr, Msg: err.Error()}
		}
		slot := keccakOfKeyAndSlot(encoded, baseSlot.Slot)
		info := &SlotInfo{Slot: slot, Offset: 0, Known: true}
		meta.StorageInfo = info
		return info, meta, nil

	default:
		return nil, nil, &LayoutError{Expr: expr, Msg: "index access on a non-container type"}
	}
}

// literalIndex extracts a compile-time integer literal from an index
// expression, when the expression is a bare numeric identifier (the
// parser does not distinguish identifiers from literals; any root name
// strconv.ParseInt accepts with base 0 is treated as one, including a sign
// and 0x/0o/0b prefixes).
func literalIndex(n *exprparser.Node) (int64, bool) {
	if n == nil || n.Base != nil {
		return 0, false
	}
	v, err := strconv.ParseInt(n.Name, 0, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// literalKey extracts a compile-time mapping-key literal: a decimal
// integer, a "0x..." hex literal, or "true"/"false".
func literalKey(n *exprparser.Node) (string, bool) {
	if n == nil || n.Base != nil {
		return "", false
	}
	name := n.Name
	if name == "true" || name == "false" {
		return name, true
	}
	if strings.HasPrefix(name, "0x") || strings.HasPrefix(name, "0X") {
		return name, true
	}
	if _, err := strconv.ParseInt(name, 10, 64); err == nil {
		return name, true
	}
	if _, ok := new(big.Int).SetString(name, 10); ok {
		return name, true
	}
	return "", false
}

// encodeElementaryKey left-pads an elementary literal to 32 bytes,
// mirroring Solidity's abi.encode rule for mapping key hashing.
func encodeElementaryKey(lit string, keyType *TypeMeta) ([]byte, error) {
	switch {
	case lit == "true":
		return common.LeftPadBytes([]byte{1}, 32), nil
	case lit == "false":
		return common.LeftPadBytes([]byte{0}, 32), nil
	case strings.HasPrefix(lit, "0x") || strings.HasPrefix(lit, "0X"):
		b := common.FromHex(lit)
		if len(b) > 32 {
			return nil, fmt.Errorf("key literal %q wider than 32 bytes", lit)
		}
		return common.LeftPadBytes(b, 32), nil
	default:
		n, ok := new(big.Int).SetString(lit, 10)
		if !ok {
			return nil, fmt.Errorf("key literal %q is not a recognized elementary value for type %s", lit, keyType.DataType)
		}
		return common.LeftPadBytes(n.Bytes(), 32), nil
	}
}

// keccakOfSlot computes the base slot of an array's elements: keccak256 of
// the parent slot encoded as a big-endian 32-byte word (Solidity's rule
// for dynamic arrays, reused here for fixed arrays whose elements are
// reference types too).
func keccakOfSlot(parent *big.Int) *big.Int {
	word := common.LeftPadBytes(parent.Bytes(), 32)
	digest := crypto.Keccak256(word)
	return new(big.Int).SetBytes(digest)
}

// keccakOfKeyAndSlot computes a mapping element's slot: keccak256(key ++
// parent_slot), each 32 bytes big-endian (Solidity's mapping storage rule).
func keccakOfKeyAndSlot(encodedKey []byte, parent *big.Int) *big.Int {
	word := common.LeftPadBytes(parent.Bytes(), 32)
	digest := crypto.Keccak256(encodedKey, word)
	return new(big.Int).SetBytes(digest)
}

// ReadValue decodes a 32-byte storage word already fetched by an external
// StorageReader (pkg/onchain) into a printable value, per info/meta.
// This package only decodes; it never performs I/O.
func ReadValue(word [32]byte, info *SlotInfo, meta *TypeMeta) (string, error) {
	if meta == nil {
		return "", fmt.Errorf("read_value: nil type meta")
	}
	switch meta.Kind {
	case ir.KindElementary, ir.KindEnum, ir.KindContract:
		return readElementary(word, info.Offset, meta)
	default:
		return "", fmt.Errorf("read_value: unsupported kind for direct decode")
	}
}

func readElementary(word [32]byte, bitOffset int, meta *TypeMeta) (string, error) {
	size := meta.SizeBits
	if size <= 0 || size > 256 {
		size = 256
	}
	full := new(big.Int).SetBytes(word[:])
	shifted := new(big.Int).Rsh(full, uint(bitOffset))
	mask := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), uint(size)), big.NewInt(1))
	v := new(big.Int).And(shifted, mask)

	switch {
	case meta.DataType == "bool":
		if v.Sign() != 0 {
			return "true", nil
		}
		return "false", nil
	case meta.DataType == "address" || meta.Kind == ir.KindContract:
		return common.BigToAddress(v).Hex(), nil
	case strings.HasPrefix(meta.DataType, "int"):
		signed := toSigned(v, size)
		return signed.String(), nil
	default:
		return v.String(), nil
	}
}

// toSigned reinterprets an unsigned bit-pattern of the given width as a
// two's-complement signed integer.
func toSigned(v *big.Int, bits int) *big.Int {
	signBit := new(big.Int).Lsh(big.NewInt(1), uint(bits-1))
	if v.Cmp(signBit) < 0 {
		return v
	}
	full := new(big.Int).Lsh(big.NewInt(1), uint(bits))
	return new(big.Int).Sub(v, full)
}
