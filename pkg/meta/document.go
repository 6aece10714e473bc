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

// Package meta is the analyzer's output document: one object per
// contract, keyed by contract name, describing its storage entities,
// symbolic constants, pure/view utilities and per-function write sets.
package meta

import (
	"encoding/json"

	"github.com/yangzq12/contract-abstract/internal/diag"
	"github.com/yangzq12/contract-abstract/pkg/ir"
	"github.com/yangzq12/contract-abstract/pkg/layout"
)

// ConstantType is a constant's {dataType, dataMeta{size, interface}}
// shape. size here is bit-width (160 for an interface-typed constant),
// unlike an entity's dataMeta.size which is byte-width; downstream
// consumers rely on both conventions.
type ConstantType struct {
	DataType  string   `json:"dataType"`
	SizeBits  int      `json:"size"`
	Interface []string `json:"interface,omitempty"`
}

// MarshalJSON nests size and interface under dataMeta.
func (t ConstantType) MarshalJSON() ([]byte, error) {
	type dataMeta struct {
		Size      int      `json:"size"`
		Interface []string `json:"interface,omitempty"`
	}
	return json.Marshal(struct {
		DataType string   `json:"dataType"`
		DataMeta dataMeta `json:"dataMeta"`
	}{t.DataType, dataMeta{t.SizeBits, t.Interface}})
}

// Constant is one constant/immutable state variable surfaced for a contract.
type Constant struct {
	Name  string       `json:"name"`
	Value string       `json:"value"`
	Type  ConstantType `json:"type"`
}

// ReturnValue is one return slot of a utility function: either a constant
// value or a storage expression, plus its resolved type string.
type ReturnValue struct {
	Value string `json:"value"`
	Type  string `json:"type"`
}

// Utility is a pure/view function surfaced for downstream storage
// readers.
type Utility struct {
	Function   string            `json:"function"`
	Parameters map[string]string `json:"parameters"`
	Returns    []ReturnValue     `json:"returns"`
}

// FunctionWrites is one entry of the function_write_storage table.
type FunctionWrites struct {
	Parameters    []string `json:"parameters"`
	WriteStorages []string `json:"write_storages"`
}

// ContractMeta is the per-contract object of the output document.
type ContractMeta struct {
	Address              string                      `json:"address"`
	Entities             map[string]*layout.TypeMeta `json:"-"`
	entityOrder          []string
	Constants            []Constant                `json:"-"`
	Utilities            []Utility                 `json:"utilities"`
	FunctionWriteStorage map[string]FunctionWrites `json:"function_write_storage"`
}

// NewContractMeta builds an empty ContractMeta for the given address
// (the on-chain address string supplied to the CLI, or "" when unknown).
func NewContractMeta(address string) *ContractMeta {
	return &ContractMeta{
		Address:              address,
		Entities:              map[string]*layout.TypeMeta{},
		FunctionWriteStorage: map[string]FunctionWrites{},
	}
}

// SetEntity records one top-level storage entity, preserving declaration order.
func (c *ContractMeta) SetEntity(name string, m *layout.TypeMeta) {
	if _, exists := c.Entities[name]; !exists {
		c.entityOrder = append(c.entityOrder, name)
	}
	c.Entities[name] = m
}

// MarshalJSON emits entities and constants as plain JSON objects (not
// arrays) via an ordered-keys encoding: entities in declaration order,
// constants in the order they were first recorded.
func (c *ContractMeta) MarshalJSON() ([]byte, error) {
	entities := orderedObject{}
	for _, name := range c.entityOrder {
		entities = append(entities, keyedValue{name, typeMetaJSON(c.Entities[name], false)})
	}

	constantsByFunc := map[string][]Constant{}
	var constFuncOrder []string
	for _, cst := range c.Constants {
		key := cst.Name
		if idx := indexOfDot(cst.Name); idx >= 0 {
			key = cst.Name[:idx]
		}
		if _, ok := constantsByFunc[key]; !ok {
			constFuncOrder = append(constFuncOrder, key)
		}
		constantsByFunc[key] = append(constantsByFunc[key], cst)
	}
	constants := orderedObject{}
	for _, key := range constFuncOrder {
		constants = append(constants, keyedValue{key, constantsByFunc[key]})
	}

	out := map[string]json.RawMessage{}
	var err error
	if out["address"], err = json.Marshal(c.Address); err != nil {
		return nil, err
	}
	if out["entities"], err = json.Marshal(entities); err != nil {
		return nil, err
	}
	if out["constants"], err = json.Marshal(constants); err != nil {
		return nil, err
	}
	if out["utilities"], err = json.Marshal(c.Utilities); err != nil {
		return nil, err
	}
	if out["function_write_storage"], err = json.Marshal(c.FunctionWriteStorage); err != nil {
		return nil, err
	}
	return json.Marshal(out)
}

func indexOfDot(s string) int {
	for i := 0; i < len(s); i++ {
		if s[i] == '.' {
			return i
		}
	}
	return -1
}

// keyedValue is one ordered (key, value) pair; orderedObject marshals as a
// JSON object preserving insertion order, since Go's map marshaling does
// not — entities/constants must stay in declaration order so repeated
// runs emit byte-identical documents.
type keyedValue struct {
	Key   string
	Value any
}

type orderedObject []keyedValue

func (o orderedObject) MarshalJSON() ([]byte, error) {
	var b []byte
	b = append(b, '{')
	for i, kv := range o {
		if i > 0 {
			b = append(b, ',')
		}
		k, err := json.Marshal(kv.Key)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(kv.Value)
		if err != nil {
			return nil, err
		}
		b = append(b, k...)
		b = append(b, ':')
		b = append(b, v...)
	}
	b = append(b, '}')
	return b, nil
}

// typeMetaJSON converts a layout.TypeMeta into the {dataType, dataMeta}
// output shape, attaching storageInfo/bitmap/read where present.
// withFieldOffsets is true only while descending into a recognized
// Bitmap sub-tree, whose fields carry bit offsets inside dataMeta.
func typeMetaJSON(m *layout.TypeMeta, withFieldOffsets bool) map[string]any {
	if m == nil {
		return nil
	}
	out := map[string]any{}
	switch m.Kind {
	case ir.KindElementary:
		out["dataType"] = m.DataType
		out["dataMeta"] = map[string]any{"size": bytesOf(m.SizeBits)}
	case ir.KindEnum:
		out["dataType"] = "enum"
		out["dataMeta"] = map[string]any{"name": m.DataType, "size": bytesOf(m.SizeBits)}
	case ir.KindContract:
		out["dataType"] = "address"
		out["dataMeta"] = map[string]any{"size": bytesOf(m.SizeBits)}
	case ir.KindArrayFixed:
		out["dataType"] = "staticArray"
		out["dataMeta"] = map[string]any{
			"length": m.Length, "elementType": typeMetaJSON(m.ElementType, withFieldOffsets),
		}
	case ir.KindArrayDynamic:
		out["dataType"] = "dynamicArray"
		out["dataMeta"] = map[string]any{"elementType": typeMetaJSON(m.ElementType, withFieldOffsets)}
	case ir.KindMapping:
		out["dataType"] = "mapping"
		out["dataMeta"] = map[string]any{
			"key": typeMetaJSON(m.KeyType, withFieldOffsets), "value": typeMetaJSON(m.ValueType, withFieldOffsets),
		}
	case ir.KindStruct:
		out["dataType"] = "struct"
		fields := make([]map[string]any, 0, len(m.Fields))
		for _, f := range m.Fields {
			ft := typeMetaJSON(f.Type, withFieldOffsets)
			if withFieldOffsets {
				if dm, ok := ft["dataMeta"].(map[string]any); ok {
					dm["offset"] = f.BitOffset
				}
			}
			fields = append(fields, map[string]any{"name": f.Name, "type": ft})
		}
		out["dataMeta"] = map[string]any{"name": m.StructName, "fields": fields}
	default:
		out["dataType"] = "unknown"
	}

	if m.StorageInfo != nil {
		out["storageInfo"] = map[string]any{
			"slot": m.StorageInfo.Slot.String(), "offset": m.StorageInfo.Offset, "known": m.StorageInfo.Known,
		}
	}
	if m.Bitmap != nil {
		out["bitmap"] = typeMetaJSON(m.Bitmap, true)
	}
	if m.Read {
		out["read"] = true
	}
	return out
}

// bytesOf converts a bit-width to byte-width, rounding up for sub-byte
// widths (a bool's 1 bit still occupies a whole byte).
func bytesOf(bits int) int {
	if bits <= 0 {
		return 0
	}
	return (bits + 7) / 8
}

// Document is the top-level output: one ContractMeta per analyzed
// contract, plus every diagnostic recorded across all of them.
type Document struct {
	contracts     map[string]*ContractMeta
	contractOrder []string
	Diagnostics   []diag.Diagnostic
}

// NewDocument builds an empty Document.
func NewDocument() *Document {
	return &Document{contracts: map[string]*ContractMeta{}}
}

// SetContract records one contract's meta, preserving insertion order.
func (d *Document) SetContract(name string, c *ContractMeta) {
	if _, exists := d.contracts[name]; !exists {
		d.contractOrder = append(d.contractOrder, name)
	}
	d.contracts[name] = c
}

// Contract returns the named contract's meta, or nil if absent.
func (d *Document) Contract(name string) *ContractMeta { return d.contracts[name] }

// AddDiagnostics appends every diagnostic from a collector.
func (d *Document) AddDiagnostics(diags []diag.Diagnostic) {
	d.Diagnostics = append(d.Diagnostics, diags...)
}

// MarshalJSON emits the document as a flat object keyed by contract name,
// with a sibling "diagnostics" key when any were recorded.
func (d *Document) MarshalJSON() ([]byte, error) {
	obj := orderedObject{}
	for _, name := range d.contractOrder {
		obj = append(obj, keyedValue{name, d.contracts[name]})
	}
	if len(d.Diagnostics) > 0 {
		obj = append(obj, keyedValue{"diagnostics", d.Diagnostics})
	}
	return json.Marshal(obj)
}
