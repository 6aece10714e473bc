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

package ir

import (
	"encoding/json"
	"fmt"
	"io"
)

// Decode reads a JSON-encoded IR document produced by an upstream
// front-end. The wire format uses string IDs for cross references
// (state variables by name, CFG nodes by ID, functions by full name);
// Decode resolves those into the pointer graph described in ir.go.
func Decode(r io.Reader) (*Document, error) {
	var dto documentDTO
	if err := json.NewDecoder(r).Decode(&dto); err != nil {
		return nil, fmt.Errorf("ir: decode json: %w", err)
	}
	return build(&dto)
}

type typeDTO struct {
	Kind           string     `json:"kind"`
	ElementaryName string     `json:"elementaryName,omitempty"`
	SizeBits       int        `json:"sizeBits,omitempty"`
	StructName     string     `json:"structName,omitempty"`
	StructFields   []fieldDTO `json:"structFields,omitempty"`
	ContractName   string     `json:"contractName,omitempty"`
	Interface      []string   `json:"interface,omitempty"`
	EnumName       string     `json:"enumName,omitempty"`
	ArrayLength    int        `json:"arrayLength,omitempty"`
	ElementType    *typeDTO   `json:"elementType,omitempty"`
	KeyType        *typeDTO   `json:"keyType,omitempty"`
	ValueType      *typeDTO   `json:"valueType,omitempty"`
}

type fieldDTO struct {
	Name string   `json:"name"`
	Type *typeDTO `json:"type"`
}

type valueDTO struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	Type            *typeDTO `json:"type"`
	Origin          string   `json:"origin"`
	IsReference     bool     `json:"isReference,omitempty"`
	StateVar        string   `json:"stateVar,omitempty"`
	ConstantLiteral string   `json:"constantLiteral,omitempty"`
}

type stateVarDTO struct {
	Name        string        `json:"name"`
	Type        *typeDTO      `json:"type"`
	Slot        uint64        `json:"slot"`
	Offset      int           `json:"offset"`
	IsConstant  bool          `json:"isConstant,omitempty"`
	IsImmutable bool          `json:"isImmutable,omitempty"`
	Initializer *operationDTO `json:"initializer,omitempty"`
}

type operationDTO struct {
	Kind            string        `json:"kind"`
	LValue          *valueDTO     `json:"lvalue,omitempty"`
	Base            *valueDTO     `json:"base,omitempty"`
	IndexVal        *valueDTO     `json:"indexVal,omitempty"`
	FieldName       string        `json:"fieldName,omitempty"`
	FieldIndex      int           `json:"fieldIndex,omitempty"`
	RValue          *valueDTO     `json:"rvalue,omitempty"`
	Left            *valueDTO     `json:"left,omitempty"`
	Right           *valueDTO     `json:"right,omitempty"`
	BinOp           string        `json:"binOp,omitempty"`
	UnOp            string        `json:"unOp,omitempty"`
	TargetType      *typeDTO      `json:"targetType,omitempty"`
	CalleeName      string        `json:"calleeName,omitempty"`
	CalleeFullName  string        `json:"calleeFullName,omitempty"`
	Destination     *valueDTO     `json:"destination,omitempty"`
	Args            []*valueDTO   `json:"args,omitempty"`
	Values          []*valueDTO   `json:"values,omitempty"`
	TupleIndex      int           `json:"tupleIndex,omitempty"`
	NewStructType   *typeDTO      `json:"newStructType,omitempty"`
	NewElemType     *typeDTO      `json:"newElemType,omitempty"`
	NewContractName string        `json:"newContractName,omitempty"`
	NewElemLiteral  string        `json:"newElemLiteral,omitempty"`
}

type nodeDTO struct {
	ID   string          `json:"id"`
	IRs  []*operationDTO `json:"irs"`
	Sons []string        `json:"sons,omitempty"`
}

type functionDTO struct {
	Name            string       `json:"name"`
	FullName        string       `json:"fullName"`
	Signature       string       `json:"signature"`
	Parameters      []*valueDTO  `json:"parameters,omitempty"`
	ReturnTypes     []*typeDTO   `json:"returnTypes,omitempty"`
	Pure            bool         `json:"pure,omitempty"`
	View            bool         `json:"view,omitempty"`
	EntryPoint      bool         `json:"entryPoint,omitempty"`
	Entry           string       `json:"entry,omitempty"`
	BackingStateVar string       `json:"backingStateVar,omitempty"`
	Nodes           []*nodeDTO   `json:"nodes,omitempty"`
}

type contractDTO struct {
	Name                    string         `json:"name"`
	StorageVariablesOrdered []*stateVarDTO `json:"storageVariablesOrdered,omitempty"`
	Functions               []*functionDTO `json:"functions,omitempty"`
}

type documentDTO struct {
	Contracts []*contractDTO `json:"contracts"`
}

var opKindByName = map[string]OpKind{
	"Index": OpIndex, "Member": OpMember, "Assignment": OpAssignment,
	"Binary": OpBinary, "Unary": OpUnary, "TypeConversion": OpTypeConversion,
	"InternalCall": OpInternalCall, "LibraryCall": OpLibraryCall,
	"HighLevelCall": OpHighLevelCall, "LowLevelCall": OpLowLevelCall,
	"SolidityCall": OpSolidityCall, "Return": OpReturn, "Condition": OpCondition,
	"NewStructure": OpNewStructure, "NewArray": OpNewArray,
	"NewContract": OpNewContract, "NewElementaryType": OpNewElementaryType,
	"InitArray": OpInitArray, "Unpack": OpUnpack, "EventCall": OpEventCall,
	"Length": OpLength, "CodeSize": OpCodeSize, "Delete": OpDelete,
}

var typeKindByName = map[string]TypeKind{
	"elementary": KindElementary, "struct": KindStruct, "contract": KindContract,
	"enum": KindEnum, "array_fixed": KindArrayFixed, "array_dynamic": KindArrayDynamic,
	"mapping": KindMapping,
}

var originByName = map[string]ValueOrigin{
	"temporary": OriginTemporary, "local": OriginLocal, "parameter": OriginParameter,
	"state": OriginStateVariable, "constant": OriginConstant,
}

// builder resolves cross references while decoding a single document.
type builder struct {
	values    map[string]*Value
	stateVars map[string]*StateVariable // name -> state var, across all contracts
	functions map[string]*Function      // full name -> function
	nodes     map[string]*CFGNode
}

func build(dto *documentDTO) (*Document, error) {
	b := &builder{
		values:    make(map[string]*Value),
		stateVars: make(map[string]*StateVariable),
		functions: make(map[string]*Function),
		nodes:     make(map[string]*CFGNode),
	}

	doc := &Document{}
	// Pass 1: state variables and function shells, so forward references
	// (a call to a function defined later, a state var read before its
	// declaration in the dump) resolve correctly.
	for _, cdto := range dto.Contracts {
		contract := &Contract{Name: cdto.Name}
		for _, svdto := range cdto.StorageVariablesOrdered {
			sv := &StateVariable{
				Name:        svdto.Name,
				Type:        buildType(svdto.Type),
				Slot:        svdto.Slot,
				Offset:      svdto.Offset,
				IsConstant:  svdto.IsConstant,
				IsImmutable: svdto.IsImmutable,
			}
			contract.StorageVariablesOrdered = append(contract.StorageVariablesOrdered, sv)
			b.stateVars[sv.Name] = sv
		}
		for _, fdto := range cdto.Functions {
			fn := &Function{
				Name: fdto.Name, FullName: fdto.FullName, Signature: fdto.Signature,
				Pure: fdto.Pure, View: fdto.View, EntryPoint: fdto.EntryPoint,
			}
			contract.Functions = append(contract.Functions, fn)
			b.functions[fn.FullName] = fn
		}
		doc.Contracts = append(doc.Contracts, contract)
	}

	// Pass 2: fill in bodies now that state vars and function shells exist.
	for ci, cdto := range dto.Contracts {
		contract := doc.Contracts[ci]
		for i, svdto := range cdto.StorageVariablesOrdered {
			if svdto.Initializer != nil {
				op, err := b.buildOperation(svdto.Initializer, nil)
				if err != nil {
					return nil, fmt.Errorf("ir: state var %s initializer: %w", svdto.Name, err)
				}
				contract.StorageVariablesOrdered[i].Initializer = op
			}
		}
		for fi, fdto := range cdto.Functions {
			fn := contract.Functions[fi]
			for _, pdto := range fdto.Parameters {
				fn.Parameters = append(fn.Parameters, b.buildValue(pdto))
			}
			for _, tdto := range fdto.ReturnTypes {
				fn.ReturnTypes = append(fn.ReturnTypes, buildType(tdto))
			}
			if fdto.BackingStateVar != "" {
				fn.BackingStateVar = b.stateVars[fdto.BackingStateVar]
			}

			nodeByID := make(map[string]*CFGNode, len(fdto.Nodes))
			for _, ndto := range fdto.Nodes {
				n := &CFGNode{ID: ndto.ID}
				nodeByID[ndto.ID] = n
				b.nodes[ndto.ID] = n
			}
			for _, ndto := range fdto.Nodes {
				n := nodeByID[ndto.ID]
				for _, opdto := range ndto.IRs {
					op, err := b.buildOperation(opdto, fn)
					if err != nil {
						return nil, fmt.Errorf("ir: function %s node %s: %w", fn.FullName, ndto.ID, err)
					}
					n.IRs = append(n.IRs, op)
				}
				for _, sonID := range ndto.Sons {
					son, ok := nodeByID[sonID]
					if !ok {
						return nil, fmt.Errorf("ir: function %s: unknown successor node %q", fn.FullName, sonID)
					}
					n.Sons = append(n.Sons, son)
				}
			}
			if fdto.Entry != "" {
				entry, ok := nodeByID[fdto.Entry]
				if !ok {
					return nil, fmt.Errorf("ir: function %s: unknown entry node %q", fn.FullName, fdto.Entry)
				}
				fn.Entry = entry
			}
		}
	}

	return doc, nil
}

func buildType(dto *typeDTO) *Type {
	if dto == nil {
		return nil
	}
	k, ok := typeKindByName[dto.Kind]
	if !ok {
		k = KindElementary
	}
	t := &Type{
		Kind: k, ElementaryName: dto.ElementaryName, SizeBits: dto.SizeBits,
		StructName: dto.StructName, ContractName: dto.ContractName,
		Interface: dto.Interface, EnumName: dto.EnumName, ArrayLength: dto.ArrayLength,
		ElementType: buildType(dto.ElementType),
		KeyType:     buildType(dto.KeyType),
		ValueType:   buildType(dto.ValueType),
	}
	for _, f := range dto.StructFields {
		t.StructFields = append(t.StructFields, StructField{Name: f.Name, Type: buildType(f.Type)})
	}
	return t
}

func (b *builder) buildValue(dto *valueDTO) *Value {
	if dto == nil {
		return nil
	}
	if dto.ID != "" {
		if existing, ok := b.values[dto.ID]; ok {
			return existing
		}
	}
	v := &Value{
		ID: ValueID(dto.ID), Name: dto.Name, Type: buildType(dto.Type),
		Origin: originByName[dto.Origin], IsReference: dto.IsReference,
		ConstantLiteral: dto.ConstantLiteral,
	}
	if dto.StateVar != "" {
		v.StateVar = b.stateVars[dto.StateVar]
	}
	if dto.ID != "" {
		b.values[dto.ID] = v
	}
	return v
}

func (b *builder) buildOperation(dto *operationDTO, fn *Function) (*Operation, error) {
	kind, ok := opKindByName[dto.Kind]
	if !ok {
		return nil, fmt.Errorf("unknown op kind %q", dto.Kind)
	}
	op := &Operation{
		Kind: kind, Function: fn,
		LValue: b.buildValue(dto.LValue), Base: b.buildValue(dto.Base),
		IndexVal: b.buildValue(dto.IndexVal), FieldName: dto.FieldName, FieldIndex: dto.FieldIndex,
		RValue: b.buildValue(dto.RValue), Left: b.buildValue(dto.Left), Right: b.buildValue(dto.Right),
		BinOp: BinaryOp(dto.BinOp), UnOp: UnaryOp(dto.UnOp), TargetType: buildType(dto.TargetType),
		CalleeName: dto.CalleeName, Destination: b.buildValue(dto.Destination),
		TupleIndex: dto.TupleIndex, NewStructType: buildType(dto.NewStructType),
		NewElemType: buildType(dto.NewElemType), NewContractName: dto.NewContractName,
		NewElemLiteral: dto.NewElemLiteral,
	}
	if op.FieldIndex == 0 && dto.FieldIndex == 0 && dto.FieldName != "" {
		op.FieldIndex = -1 // resolved later against the base's struct type
	}
	for _, a := range dto.Args {
		op.Args = append(op.Args, b.buildValue(a))
	}
	for _, v := range dto.Values {
		op.Values = append(op.Values, b.buildValue(v))
	}
	if dto.CalleeFullName != "" {
		op.Callee = b.functions[dto.CalleeFullName]
		if op.Callee == nil {
			return nil, fmt.Errorf("call to unknown function %q", dto.CalleeFullName)
		}
	}
	return op, nil
}
