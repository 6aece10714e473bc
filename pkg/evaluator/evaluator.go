// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package evaluator

import (
	"fmt"
	"strings"

	"github.com/holiman/uint256"

	"github.com/yangzq12/contract-abstract/internal/diag"
	"github.com/yangzq12/contract-abstract/pkg/abstractvalue"
	"github.com/yangzq12/contract-abstract/pkg/bitpattern"
	"github.com/yangzq12/contract-abstract/pkg/ir"
)

// ConstantRecord is one entry of the per-contract constants table: a
// constant/immutable state variable observed read by some walked path.
type ConstantRecord struct {
	Name      string
	Value     string
	Type      *ir.Type
	Interface []string
}

// Evaluator is the dispatch table from ir.OpKind to
// AbstractValue/bitmap transfer functions, plus the per-function
// read/write sets and the constants table.
type Evaluator struct {
	Ctx     *ContextTable
	Bitmaps *bitpattern.Engine
	Diags   *diag.Collector

	WriteSets      map[string]map[string]bool // function full name -> canonical write expressions
	ReadSets       map[string]map[string]bool
	ReturnStorages map[string][]string // function full name -> returned storage/printed expressions
	Constants      []ConstantRecord

	// CrossCalls maps a HighLevelCall destination (the canonical name of the
	// storage variable or constant holding the target contract) to the set
	// of function names called on it.
	CrossCalls map[string]map[string]bool

	seenConstants map[string]bool
}

// New builds an Evaluator with fresh bookkeeping tables.
func New(diags *diag.Collector) *Evaluator {
	return &Evaluator{
		Ctx:            NewContextTable(),
		Bitmaps:        bitpattern.NewEngine(),
		Diags:          diags,
		WriteSets:      map[string]map[string]bool{},
		ReadSets:       map[string]map[string]bool{},
		ReturnStorages: map[string][]string{},
		CrossCalls:     map[string]map[string]bool{},
		seenConstants:  map[string]bool{},
	}
}

// initializerLiteral returns the literal of a constant/immutable state
// variable's direct-assignment initializer, or "" when there is none.
func initializerLiteral(sv *ir.StateVariable) string {
	if sv.Initializer == nil || sv.Initializer.RValue == nil {
		return ""
	}
	if sv.Initializer.RValue.Origin != ir.OriginConstant {
		return ""
	}
	return sv.Initializer.RValue.ConstantLiteral
}

// interfaceOf returns the externally callable signatures of a
// contract-reference type, nil for every other kind.
func interfaceOf(t *ir.Type) []string {
	if t == nil || t.Kind != ir.KindContract {
		return nil
	}
	return t.Interface
}

// seedIfNeeded returns the current AbstractValue for v, seeding a fresh
// canonical value on first access within this path.
func (e *Evaluator) seedIfNeeded(v *ir.Value) abstractvalue.Value {
	if existing, ok := e.Ctx.Abstract(v.ID); ok {
		return existing
	}
	var av abstractvalue.Value
	switch v.Origin {
	case ir.OriginStateVariable:
		name := v.Name
		if v.StateVar != nil {
			name = v.StateVar.Name
		}
		if sv := v.StateVar; sv != nil && (sv.IsConstant || sv.IsImmutable) {
			// Constants and immutables aren't persistent storage: the value
			// is origin-less, recorded in the constants table, and seeds a
			// concrete bitmap literal when the initializer is a direct
			// constant assignment.
			lit := initializerLiteral(sv)
			printed := lit
			if printed == "" {
				printed = name
			}
			av = abstractvalue.FromValue(nil, nil, printed)
			if litVal, ok := parseUint(lit); ok {
				e.Ctx.SetBitmap(v.ID, bitpattern.Const(litVal))
			}
			e.recordConstant(name, lit, sv.Type, interfaceOf(sv.Type))
			break
		}
		av = abstractvalue.FromStorage(name, abstractvalue.NewTaintSet(name), name)
		e.Ctx.SetBitmap(v.ID, bitpattern.Var(name))
	case ir.OriginParameter:
		av = abstractvalue.FromInput(v.Name, abstractvalue.NewTaintSet(v.Name), v.Name)
	case ir.OriginConstant:
		av = abstractvalue.FromValue(nil, nil, v.ConstantLiteral)
		if lit, ok := parseUint(v.ConstantLiteral); ok {
			e.Ctx.SetBitmap(v.ID, bitpattern.Const(lit))
		}
	default:
		av = abstractvalue.Unset()
	}
	e.Ctx.SetAbstract(v.ID, av)
	return av
}

func parseUint(lit string) (*uint256.Int, bool) {
	lit = strings.TrimSpace(lit)
	if lit == "" {
		return nil, false
	}
	if strings.HasPrefix(lit, "0x") || strings.HasPrefix(lit, "0X") {
		if v, err := uint256.FromHex(lit); err == nil {
			return v, true
		}
		return nil, false
	}
	if v, err := uint256.FromDecimal(lit); err == nil {
		return v, true
	}
	return nil, false
}

func (e *Evaluator) resolve(v *ir.Value) abstractvalue.Value {
	if v == nil {
		return abstractvalue.Unset()
	}
	return e.seedIfNeeded(v)
}

// Resolve is the exported form of resolve, used by pkg/pathwalker to bind
// call arguments and return values across a spliced call.
func (e *Evaluator) Resolve(v *ir.Value) abstractvalue.Value {
	return e.resolve(v)
}

// recordConstant adds a constant/immutable read to the constants table,
// skipping bitmap artifacts (names containing MASK or BIT_POSITION).
func (e *Evaluator) recordConstant(name, value string, t *ir.Type, iface []string) {
	if strings.Contains(name, "MASK") || strings.Contains(name, "BIT_POSITION") {
		return
	}
	if e.seenConstants[name] {
		return
	}
	e.seenConstants[name] = true
	e.Constants = append(e.Constants, ConstantRecord{Name: name, Value: value, Type: t, Interface: iface})
}

func (e *Evaluator) addWrite(fn *ir.Function, expr string) {
	if fn == nil || expr == "" {
		return
	}
	set, ok := e.WriteSets[fn.FullName]
	if !ok {
		set = map[string]bool{}
		e.WriteSets[fn.FullName] = set
	}
	set[expr] = true
}

// RecordRead is the exported form of addRead, used by pkg/pathwalker to
// attribute a read through an opaque (non-inlineable) getter call.
func (e *Evaluator) RecordRead(fn *ir.Function, expr string) {
	e.addRead(fn, expr)
}

func (e *Evaluator) addRead(fn *ir.Function, expr string) {
	if fn == nil || expr == "" {
		return
	}
	set, ok := e.ReadSets[fn.FullName]
	if !ok {
		set = map[string]bool{}
		e.ReadSets[fn.FullName] = set
	}
	set[expr] = true
}

// recordStorageAccess adds lv's resolved storage expression (if any) to
// the function's write-set, and any operand's storage expression to its
// read-set.
func (e *Evaluator) recordStorageAccess(fn *ir.Function, lv *abstractvalue.Value, operands ...abstractvalue.Value) {
	if lv != nil && lv.IsStorageRooted() {
		e.addWrite(fn, lv.OriginName())
	}
	for _, op := range operands {
		if op.IsStorageRooted() {
			e.addRead(fn, op.OriginName())
		}
	}
}

// Eval dispatches one IR operation, producing AbstractValue/bitmap
// annotations for its lvalue (when it has one) and updating bookkeeping.
func (e *Evaluator) Eval(fn *ir.Function, op *ir.Operation) error {
	switch op.Kind {
	case ir.OpIndex:
		return e.evalIndex(fn, op)
	case ir.OpMember:
		return e.evalMember(fn, op)
	case ir.OpAssignment:
		return e.evalAssignment(fn, op)
	case ir.OpBinary:
		return e.evalBinary(fn, op)
	case ir.OpUnary:
		return e.evalUnary(fn, op)
	case ir.OpTypeConversion:
		return e.evalTypeConversion(fn, op)
	case ir.OpInternalCall, ir.OpLibraryCall:
		return nil // PathWalker splices the callee; the lvalue binds on return
	case ir.OpHighLevelCall:
		return e.evalHighLevelCall(fn, op)
	case ir.OpLowLevelCall:
		return e.evalHighLevelCall(fn, op)
	case ir.OpSolidityCall:
		return e.evalSolidityCall(fn, op)
	case ir.OpReturn:
		return e.evalReturn(fn, op)
	case ir.OpUnpack:
		return e.evalUnpack(fn, op)
	case ir.OpNewStructure, ir.OpInitArray, ir.OpNewArray:
		return e.evalAggregate(fn, op)
	case ir.OpLength:
		return e.evalLength(fn, op)
	case ir.OpCodeSize:
		return e.evalCodeSize(fn, op)
	case ir.OpDelete:
		return e.evalDelete(fn, op)
	case ir.OpNewContract:
		return e.evalNewContract(fn, op)
	case ir.OpNewElementaryType:
		return e.evalNewElementaryType(fn, op)
	case ir.OpCondition, ir.OpEventCall:
		return nil // structural only; no AbstractValue contract defined
	default:
		return nil
	}
}

func (e *Evaluator) evalIndex(fn *ir.Function, op *ir.Operation) error {
	base := e.resolve(op.Base)
	idx := e.resolve(op.IndexVal)
	suffix := fmt.Sprintf("[%s]", idx.PrintedValue())

	inT, stT := base.Taints()
	if base.IsStorageRooted() {
		stT = stT.WithSuffix(suffix)
	}
	idxIn, idxSt := idx.Taints()
	inT, stT = inT.Union(idxIn), stT.Union(idxSt)

	result := abstractvalue.Value{Scalar: &abstractvalue.Scalar{
		InputTaints: inT, StorageTaints: stT, ValueStr: base.PrintedValue() + suffix,
	}}
	switch {
	case base.IsInputRooted():
		name := base.OriginName() + suffix
		result.Scalar.Input = &name
	case base.IsStorageRooted():
		name := base.OriginName() + suffix
		result.Scalar.Storage = &name
	}

	if op.LValue != nil {
		e.Ctx.SetAbstract(op.LValue.ID, result)
		e.recordStorageAccess(fn, &result, base, idx)
	}
	return nil
}

func (e *Evaluator) evalMember(fn *ir.Function, op *ir.Operation) error {
	base := e.resolve(op.Base)
	fieldIdx := fieldIndexOf(op)

	var result abstractvalue.Value
	if base.IsVector() && fieldIdx >= 0 {
		result = base.Field(fieldIdx).DeepCopy()
	} else {
		suffix := "." + op.FieldName
		result = base.AppendOrigin(suffix)
		if result.Scalar != nil {
			result.Scalar.ValueStr = base.PrintedValue() + suffix
		}
	}

	if op.LValue != nil {
		e.Ctx.SetAbstract(op.LValue.ID, result)
		if op.LValue.IsReference && fieldIdx >= 0 {
			i := fieldIdx
			ann := e.Ctx.Get(op.LValue.ID)
			ann.PointsTo = &i
			ann.RefBase = op.Base
		}
		e.recordStorageAccess(fn, nil, base)
	}
	return nil
}

func fieldIndexOf(op *ir.Operation) int {
	if op.FieldIndex > 0 {
		return op.FieldIndex
	}
	if op.Base != nil && op.Base.Type != nil && op.Base.Type.Kind == ir.KindStruct {
		for i, f := range op.Base.Type.StructFields {
			if f.Name == op.FieldName {
				return i
			}
		}
	}
	return -1
}

func (e *Evaluator) evalAssignment(fn *ir.Function, op *ir.Operation) error {
	rv := e.resolve(op.RValue)
	result := rv.DeepCopy()

	if op.LValue != nil {
		existing, seeded := e.Ctx.Abstract(op.LValue.ID)
		if !seeded && op.LValue.Origin == ir.OriginStateVariable {
			existing = e.resolve(op.LValue)
			seeded = true
		}
		if seeded && existing.IsStorageRooted() && result.Scalar != nil {
			name := existing.OriginName()
			result.Scalar.Input = nil
			result.Scalar.Storage = &name
		}
		e.Ctx.SetAbstract(op.LValue.ID, result)
		if bm := e.Ctx.Bitmap(valueID(op.RValue)); bm != nil {
			e.Ctx.SetBitmap(op.LValue.ID, bm)
		}

		if op.LValue.IsReference {
			e.writeBackReference(fn, op.LValue, result)
		}
		e.recordStorageAccess(fn, &result, rv)
	}
	return nil
}

// writeBackReference propagates an assignment through a reference value to
// its referent: writes through a reference are attributed to the
// referent's canonical storage expression,
// not the reference's own local name. When the reference targets one field
// of a struct (PointsTo set), the assigned value is also folded back into
// the referent's AbstractValue, exploding it from scalar to per-field
// precision on first touch.
func (e *Evaluator) writeBackReference(fn *ir.Function, ref *ir.Value, assigned abstractvalue.Value) {
	refVal, ok := e.Ctx.Abstract(ref.ID)
	if ok && refVal.IsStorageRooted() {
		e.addWrite(fn, refVal.OriginName())
	}

	ann := e.Ctx.Get(ref.ID)
	if ann.PointsTo == nil || ann.RefBase == nil {
		return
	}
	i := *ann.PointsTo
	referent, ok := e.Ctx.Abstract(ann.RefBase.ID)
	if !ok {
		return
	}
	if referent.IsVector() {
		if i >= 0 && i < len(referent.Vector) {
			referent.Vector[i] = assigned.DeepCopy()
			e.Ctx.SetAbstract(ann.RefBase.ID, referent)
		}
		return
	}
	st := structTypeOf(ann.RefBase.Type)
	if st == nil || i < 0 || i >= len(st.StructFields) {
		return
	}
	names := make([]string, len(st.StructFields))
	for j, f := range st.StructFields {
		names[j] = f.Name
	}
	exploded := referent.Explode(len(names), names, i, assigned.DeepCopy())
	e.Ctx.SetAbstract(ann.RefBase.ID, exploded)
}

// structTypeOf unwraps a declared type down to the struct a reference can
// point into: the type itself, a mapping's value type, or an array's
// element type.
func structTypeOf(t *ir.Type) *ir.Type {
	for t != nil {
		switch t.Kind {
		case ir.KindStruct:
			return t
		case ir.KindMapping:
			t = t.ValueType
		case ir.KindArrayFixed, ir.KindArrayDynamic:
			t = t.ElementType
		default:
			return nil
		}
	}
	return nil
}

func (e *Evaluator) evalBinary(fn *ir.Function, op *ir.Operation) error {
	l := e.resolve(op.Left)
	r := e.resolve(op.Right)

	lIn, lSt := l.Taints()
	rIn, rSt := r.Taints()
	result := abstractvalue.Value{Scalar: &abstractvalue.Scalar{
		InputTaints:   lIn.Union(rIn),
		StorageTaints: lSt.Union(rSt),
		ValueStr:      printBinaryLike(l.PrintedValue(), string(op.BinOp), r.PrintedValue()),
	}}

	// Self-update (`lv` is a reference equal to one operand, e.g.
	// `self.data &= ~mask`): the result keeps that operand's origin so the
	// compound write lands in the write-set under its canonical name.
	if src := selfUpdateOperand(op, l, r); src != nil && src.Scalar != nil {
		if n := src.Scalar.Storage; n != nil {
			name := *n
			result.Scalar.Storage = &name
		} else if n := src.Scalar.Input; n != nil {
			name := *n
			result.Scalar.Input = &name
		}
	}

	if op.LValue != nil {
		e.Ctx.SetAbstract(op.LValue.ID, result)
		lb, rb := e.Ctx.Bitmap(valueID(op.Left)), e.Ctx.Bitmap(valueID(op.Right))
		if lb != nil && rb != nil {
			if bm := binaryBitmap(op.BinOp, lb, rb); bm != nil {
				e.Ctx.SetBitmap(op.LValue.ID, bm)
			}
		}
		e.recordStorageAccess(fn, &result, l, r)
	}
	return nil
}

// selfUpdateOperand returns the resolved value of whichever operand the
// lvalue reference aliases, or nil when the op is not a self-update.
func selfUpdateOperand(op *ir.Operation, l, r abstractvalue.Value) *abstractvalue.Value {
	if op.LValue == nil || !op.LValue.IsReference {
		return nil
	}
	if sameValue(op.LValue, op.Left) {
		return &l
	}
	if sameValue(op.LValue, op.Right) {
		return &r
	}
	return nil
}

func sameValue(a, b *ir.Value) bool {
	if a == nil || b == nil {
		return false
	}
	return a == b || (a.ID != "" && a.ID == b.ID)
}

func binaryBitmap(op ir.BinaryOp, l, r *bitpattern.Expr) *bitpattern.Expr {
	switch op {
	case ir.BinAnd:
		return bitpattern.And(l, r)
	case ir.BinOr:
		return bitpattern.Or(l, r)
	case ir.BinXor:
		return bitpattern.Xor(l, r)
	case ir.BinShl:
		return bitpattern.Shl(l, r)
	case ir.BinShr:
		return bitpattern.Shr(l, r)
	case ir.BinAdd:
		return bitpattern.Add(l, r)
	case ir.BinEq:
		return bitpattern.Eq(l, r)
	case ir.BinNeq:
		return bitpattern.Neq(l, r)
	default:
		return nil
	}
}

func (e *Evaluator) evalUnary(fn *ir.Function, op *ir.Operation) error {
	rv := e.resolve(op.RValue)
	inT, stT := rv.Taints()
	result := abstractvalue.Value{Scalar: &abstractvalue.Scalar{
		InputTaints: inT, StorageTaints: stT,
		ValueStr: string(op.UnOp) + "(" + rv.PrintedValue() + ")",
	}}

	if op.LValue != nil {
		e.Ctx.SetAbstract(op.LValue.ID, result)
		if op.UnOp == ir.UnaryBitNot {
			if b := e.Ctx.Bitmap(valueID(op.RValue)); b != nil {
				e.Ctx.SetBitmap(op.LValue.ID, bitpattern.Not(b))
			}
		}
		e.recordStorageAccess(fn, nil, rv)
	}
	return nil
}

func (e *Evaluator) evalTypeConversion(fn *ir.Function, op *ir.Operation) error {
	rv := e.resolve(op.RValue)
	if op.LValue != nil {
		e.Ctx.SetAbstract(op.LValue.ID, rv.DeepCopy())
		if b := e.Ctx.Bitmap(valueID(op.RValue)); b != nil {
			e.Ctx.SetBitmap(op.LValue.ID, b)
		}
	}
	return nil
}

// ArgsOf returns the resolved AbstractValues of a call's arguments, for
// PathWalker to bind against the callee's parameters.
func (e *Evaluator) ArgsOf(op *ir.Operation) []abstractvalue.Value {
	out := make([]abstractvalue.Value, 0, len(op.Args))
	for _, a := range op.Args {
		out = append(out, e.resolve(a))
	}
	return out
}

func (e *Evaluator) evalHighLevelCall(fn *ir.Function, op *ir.Operation) error {
	dest := e.resolve(op.Destination)
	inT, stT := dest.Taints()
	for _, a := range e.ArgsOf(op) {
		aIn, aSt := a.Taints()
		inT, stT = inT.Union(aIn), stT.Union(aSt)
	}
	result := abstractvalue.FromValue(inT, stT, dest.PrintedValue()+"."+op.CalleeName+"()")

	if op.LValue != nil {
		e.Ctx.SetAbstract(op.LValue.ID, result)
	}
	if dest.IsStorageRooted() {
		e.addRead(fn, dest.OriginName())
	}
	if key := crossCallKey(dest, op.Destination); key != "" {
		set, ok := e.CrossCalls[key]
		if !ok {
			set = map[string]bool{}
			e.CrossCalls[key] = set
		}
		set[op.CalleeName] = true
	}
	return nil
}

// crossCallKey names the destination of a cross-contract call: the
// canonical storage expression when the target lives in storage, or the
// constant/immutable state variable's name otherwise.
func crossCallKey(dest abstractvalue.Value, destVal *ir.Value) string {
	if dest.IsStorageRooted() {
		return dest.OriginName()
	}
	if destVal != nil && destVal.StateVar != nil &&
		(destVal.StateVar.IsConstant || destVal.StateVar.IsImmutable) {
		return destVal.StateVar.Name
	}
	return ""
}

func (e *Evaluator) evalSolidityCall(fn *ir.Function, op *ir.Operation) error {
	if op.LValue == nil {
		return nil
	}
	result := abstractvalue.Value{Scalar: &abstractvalue.Scalar{ValueStr: op.CalleeName + "()"}}
	e.Ctx.SetAbstract(op.LValue.ID, result)
	return nil
}

func (e *Evaluator) evalUnpack(fn *ir.Function, op *ir.Operation) error {
	if op.LValue == nil || len(op.Values) == 0 {
		return nil
	}
	src := e.resolve(op.Values[0])
	result := src.Field(op.TupleIndex)
	e.Ctx.SetAbstract(op.LValue.ID, result)
	e.recordStorageAccess(fn, &result)
	return nil
}

func (e *Evaluator) evalAggregate(fn *ir.Function, op *ir.Operation) error {
	if op.LValue == nil {
		return nil
	}
	elems := make([]abstractvalue.Value, 0, len(op.Values))
	for _, v := range op.Values {
		elems = append(elems, e.resolve(v))
	}
	e.Ctx.SetAbstract(op.LValue.ID, abstractvalue.Value{Vector: elems})
	return nil
}

func (e *Evaluator) evalReturn(fn *ir.Function, op *ir.Operation) error {
	for _, v := range op.Values {
		av := e.resolve(v)
		for _, s := range flattenStorage(av) {
			e.ReturnStorages[fn.FullName] = append(e.ReturnStorages[fn.FullName], s)
		}
		if av.IsStorageRooted() {
			e.addRead(fn, av.OriginName())
			// A bare symbolic word (an unmasked storage read) carries no
			// bit-field, so only manipulated bitmaps are recorded.
			if bm := e.Ctx.Bitmap(v.ID); bm != nil && bm.Op != bitpattern.OpVar {
				e.Bitmaps.Record(fn.FullName, av.OriginName(), bm)
			}
		}
		if strings.Contains(av.PrintedValue(), "MASK") {
			if name, ok := maskName(av.PrintedValue()); ok {
				if bm := e.Ctx.Bitmap(v.ID); bm != nil {
					e.Bitmaps.Record(fn.FullName, name, bm)
				}
			}
		}
	}
	return nil
}

// RecordGetterReturn synthesizes the pseudo-return of an auto-generated
// public state-variable getter. Such a function has no CFG to walk, so no
// Return op ever reaches evalReturn; the utilities table still needs a
// named return for it.
func (e *Evaluator) RecordGetterReturn(fn *ir.Function) {
	if fn.BackingStateVar == nil {
		return
	}
	pseudo := fmt.Sprintf("$%s$%s$", fn.BackingStateVar.Name, elementaryNameOf(fn.BackingStateVar.Type))
	e.ReturnStorages[fn.FullName] = append(e.ReturnStorages[fn.FullName], pseudo)
	e.addRead(fn, fn.BackingStateVar.Name)
}

func elementaryNameOf(t *ir.Type) string {
	if t == nil {
		return ""
	}
	if t.Kind == ir.KindElementary {
		return t.ElementaryName
	}
	return t.StructName
}

func flattenStorage(av abstractvalue.Value) []string {
	if av.IsVector() {
		var out []string
		for _, e := range av.Vector {
			out = append(out, flattenStorage(e)...)
		}
		return out
	}
	if av.IsStorageRooted() {
		return []string{av.OriginName()}
	}
	return nil
}

func maskName(printed string) (string, bool) {
	idx := strings.Index(printed, "MASK")
	if idx < 0 {
		return "", false
	}
	rest := printed[idx+len("MASK"):]
	end := 0
	for end < len(rest) && isIdentByte(rest[end]) {
		end++
	}
	if end == 0 {
		return "", false
	}
	return rest[:end], true
}

func isIdentByte(b byte) bool {
	return b == '_' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}

func (e *Evaluator) evalLength(fn *ir.Function, op *ir.Operation) error {
	rv := e.resolve(op.RValue)
	result := rv.AppendOrigin(".length")
	if op.LValue != nil {
		e.Ctx.SetAbstract(op.LValue.ID, result)
		e.recordStorageAccess(fn, &result, rv)
	}
	return nil
}

func (e *Evaluator) evalCodeSize(fn *ir.Function, op *ir.Operation) error {
	rv := e.resolve(op.RValue)
	result := rv.AppendOrigin(".codesize")
	if op.LValue != nil {
		e.Ctx.SetAbstract(op.LValue.ID, result)
	}
	return nil
}

func (e *Evaluator) evalDelete(fn *ir.Function, op *ir.Operation) error {
	rv := e.resolve(op.RValue)
	if rv.IsStorageRooted() {
		e.addWrite(fn, rv.OriginName())
	}
	return nil
}

func (e *Evaluator) evalNewContract(fn *ir.Function, op *ir.Operation) error {
	if op.LValue == nil {
		return nil
	}
	result := abstractvalue.Value{Scalar: &abstractvalue.Scalar{ValueStr: "new " + op.NewContractName + "()"}}
	e.Ctx.SetAbstract(op.LValue.ID, result)
	return nil
}

func (e *Evaluator) evalNewElementaryType(fn *ir.Function, op *ir.Operation) error {
	if op.LValue == nil {
		return nil
	}
	e.Ctx.SetAbstract(op.LValue.ID, abstractvalue.FromValue(nil, nil, op.NewElemLiteral))
	return nil
}

func printBinaryLike(l, op, r string) string {
	if op == "" {
		return l
	}
	if r == "" {
		return fmt.Sprintf("(%s)%s", l, op)
	}
	return fmt.Sprintf("(%s) %s (%s)", l, op, r)
}

func valueID(v *ir.Value) ir.ValueID {
	if v == nil {
		return ""
	}
	return v.ID
}
