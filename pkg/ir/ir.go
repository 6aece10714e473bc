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

// Package ir models the read-only SSA-style intermediate representation
// consumed by the contract analyzer. The IR itself is produced by an
// upstream front-end (not part of this module); this package only
// describes the shape that front-end must hand us, plus a JSON decoder
// for it.
package ir

// TypeKind discriminates the declared-type tree used for storage variables,
// parameters and return types.
type TypeKind int

const (
	KindElementary TypeKind = iota
	KindStruct
	KindContract
	KindEnum
	KindArrayFixed
	KindArrayDynamic
	KindMapping
)

// Type is a recursive declared-type descriptor.
type Type struct {
	Kind TypeKind

	// Elementary: "uint256", "int128", "bool", "address", "bytes32", ...
	ElementaryName string
	// SizeBits is the declared bit width for elementary types (e.g. 256 for
	// uint256, 160 for address, 8 for bool).
	SizeBits int

	// Struct
	StructName   string
	StructFields []StructField

	// Contract (interface dispatch target)
	ContractName string
	// Interface is the set of externally callable signatures on the
	// contract type, captured when a constant/immutable holds this type.
	Interface []string

	// Enum
	EnumName string

	// ArrayFixed / ArrayDynamic
	ArrayLength  int // only meaningful for ArrayFixed
	ElementType  *Type

	// Mapping
	KeyType   *Type
	ValueType *Type
}

// StructField is one declared field of a struct type, in declaration order.
type StructField struct {
	Name string
	Type *Type
}

// ValueOrigin classifies where an IR value comes from.
type ValueOrigin int

const (
	OriginTemporary ValueOrigin = iota
	OriginLocal
	OriginParameter
	OriginStateVariable
	OriginConstant
)

// ValueID uniquely identifies a Value within one IR document. It is the key
// into the analyzer's per-value context side-table (see pkg/evaluator),
// never into a map carried on the Value itself.
type ValueID string

// Value is one SSA value: an operand or an lvalue result.
type Value struct {
	ID     ValueID
	Name   string
	Type   *Type
	Origin ValueOrigin

	// IsReference marks a reference-typed local (e.g. `Foo storage s = ...`).
	// References alias a state variable or a field of one; PathWalker and
	// the evaluator track the aliasing target out-of-band.
	IsReference bool

	// StateVar is set when Origin == OriginStateVariable.
	StateVar *StateVariable

	// ConstantLiteral is set when Origin == OriginConstant: the literal's
	// printed value (e.g. "0x00ffff", "1000000000000000000").
	ConstantLiteral string
}

// StateVariable is a contract-level persistent storage variable.
type StateVariable struct {
	Name        string
	Type        *Type
	Slot        uint64
	Offset      int // bit offset within Slot
	IsConstant  bool
	IsImmutable bool
	// Initializer is non-nil when the variable has a constant/immutable
	// direct-assignment initializer (§4.D seeding rule).
	Initializer *Operation
}

// OpKind discriminates an IR operation.
type OpKind int

const (
	OpIndex OpKind = iota
	OpMember
	OpAssignment
	OpBinary
	OpUnary
	OpTypeConversion
	OpInternalCall
	OpLibraryCall
	OpHighLevelCall
	OpLowLevelCall
	OpSolidityCall
	OpReturn
	OpCondition
	OpNewStructure
	OpNewArray
	OpNewContract
	OpNewElementaryType
	OpInitArray
	OpUnpack
	OpEventCall
	OpLength
	OpCodeSize
	OpDelete
)

// BinaryOp is the operator of an OpBinary operation.
type BinaryOp string

const (
	BinAnd BinaryOp = "AND"
	BinOr  BinaryOp = "OR"
	BinXor BinaryOp = "XOR"
	BinShl BinaryOp = "SHL"
	BinShr BinaryOp = "SHR"
	BinAdd BinaryOp = "+"
	BinSub BinaryOp = "-"
	BinMul BinaryOp = "*"
	BinDiv BinaryOp = "/"
	BinMod BinaryOp = "%"
	BinEq  BinaryOp = "=="
	BinNeq BinaryOp = "!="
	BinLt  BinaryOp = "<"
	BinLte BinaryOp = "<="
	BinGt  BinaryOp = ">"
	BinGte BinaryOp = ">="
)

// UnaryOp is the operator of an OpUnary operation.
type UnaryOp string

const (
	UnaryNot    UnaryOp = "!"
	UnaryBitNot UnaryOp = "~"
	UnaryNeg    UnaryOp = "-"
)

// Operation is one IR instruction. Only the fields relevant to Kind are
// populated; the rest stay at their zero value, mirroring the flat
// instruction object the upstream IR producer hands us: a discriminant
// plus a grab-bag of operand slots.
type Operation struct {
	Kind     OpKind
	LValue   *Value // nil when the op has no result
	Function *Function

	// Index
	Base     *Value
	IndexVal *Value

	// Member
	FieldName  string
	FieldIndex int // -1 if unknown/unresolved

	// Assignment / TypeConversion / Unary / Length / CodeSize / Delete / Condition
	RValue *Value

	// Binary
	Left, Right *Value
	BinOp       BinaryOp

	// Unary
	UnOp UnaryOp

	// TypeConversion
	TargetType *Type

	// InternalCall / LibraryCall / HighLevelCall / LowLevelCall / SolidityCall / EventCall
	Callee       *Function // nil for HighLevelCall/LowLevelCall/SolidityCall
	CalleeName   string    // printable name, always set
	Destination  *Value    // HighLevelCall/LowLevelCall target contract/address
	Args         []*Value

	// Return / InitArray / Unpack source
	Values []*Value

	// Unpack
	TupleIndex int

	// NewStructure
	NewStructType *Type

	// NewArray
	NewElemType *Type

	// NewContract
	NewContractName string

	// NewElementaryType
	NewElemLiteral string
}

// CFGNode is one basic block: an ordered instruction list plus up to two
// successors (Sons[1], if non-nil, is the false edge of a conditional).
type CFGNode struct {
	ID       string
	IRs      []*Operation
	Sons     []*CFGNode
}

// Function is a contract function/method.
type Function struct {
	Name        string
	FullName    string
	Signature   string
	Parameters  []*Value
	ReturnTypes []*Type
	Pure        bool
	View        bool
	EntryPoint  bool
	// Entry is nil for an auto-generated public-state-variable getter.
	Entry *CFGNode
	// BackingStateVar is set only for auto-generated getters (Entry == nil).
	BackingStateVar *StateVariable
}

// Contract is one deployed contract's IR.
type Contract struct {
	Name                   string
	StorageVariablesOrdered []*StateVariable
	Functions              []*Function
}

// EntryFunctions returns the functions the analyzer should drive a walk
// from: externally callable entry points and pure/view utilities.
func (c *Contract) EntryFunctions() []*Function {
	var out []*Function
	for _, f := range c.Functions {
		if f.EntryPoint || f.Pure || f.View {
			out = append(out, f)
		}
	}
	return out
}

// Document is the top-level parsed IR: one or more contracts.
type Document struct {
	Contracts []*Contract
}
