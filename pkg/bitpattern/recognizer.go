// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package bitpattern

import (
	"sort"
	"strings"

	"github.com/holiman/uint256"

	"github.com/yangzq12/contract-abstract/internal/diag"
	"github.com/yangzq12/contract-abstract/pkg/ir"
	"github.com/yangzq12/contract-abstract/pkg/layout"
)

// Record is one (function, storage entity, simplified bitvector) triple.
// pkg/evaluator records one only at a Return op: for a returned
// storage-rooted value whose bitmap is more than its own bare symbolic
// word, and for a returned value whose printed form names a MASK
// constant. Other IR results (assignments, binary ops) are not recorded,
// even when they carry both a storage reference and a bitmap.
type Record struct {
	FunctionFullName string
	Entity           string // canonical storage expression the bitmap is rooted in
	Expr             *Expr
}

// Engine accumulates bitmap records for one contract and recognizes packed
// storage layouts from them once all paths have been walked.
type Engine struct {
	records []Record
}

// NewEngine builds an empty Engine.
func NewEngine() *Engine { return &Engine{} }

// Record appends one observed bitmap expression.
func (e *Engine) Record(functionFullName, entity string, expr *Expr) {
	e.records = append(e.records, Record{FunctionFullName: functionFullName, Entity: entity, Expr: Simplify(expr)})
}

// Records returns every recorded triple, in recording order.
func (e *Engine) Records() []Record { return e.records }

// RecognizeLayouts runs the layout recognizer over every recorded entry,
// grouped by storage entity, and returns the bitmap
// TypeMeta to attach to each entity that yielded a recognized layout.
func (e *Engine) RecognizeLayouts(diags *diag.Collector) map[string]*layout.TypeMeta {
	byEntity := map[string][]Record{}
	for _, r := range e.records {
		byEntity[r.Entity] = append(byEntity[r.Entity], r)
	}

	out := map[string]*layout.TypeMeta{}
	for entity, recs := range byEntity {
		meta := recognizeEntity(entity, recs, diags)
		if meta != nil {
			out[entity] = meta
		}
	}
	return out
}

func recognizeEntity(entity string, recs []Record, diags *diag.Collector) *layout.TypeMeta {
	var singleFields []layout.TypeMetaField
	var pairFields []layout.TypeMetaField

	for _, r := range recs {
		vars := CollectFreeVars(r.Expr)
		switch len(vars) {
		case 1:
			f, ok := recognizeSingleVar(r, diags)
			if ok {
				singleFields = append(singleFields, f)
			}
		case 2:
			f, ok := recognizeTwoVar(r, diags)
			if ok {
				pairFields = append(pairFields, f...)
			}
		default:
			diags.Addf(diag.UnsupportedConstruct, "bitpattern",
				"%s: bitmap expression with %d free variables is unsupported", r.FunctionFullName, len(vars))
		}
	}

	if len(pairFields) > 0 {
		elem := &layout.TypeMeta{Kind: ir.KindStruct, StructName: "pair", Fields: dedupeFields(pairFields)}
		return &layout.TypeMeta{Kind: ir.KindArrayFixed, Length: 128, ElementType: elem}
	}

	if len(singleFields) > 0 {
		return &layout.TypeMeta{Kind: ir.KindStruct, StructName: entity + "_bitmap", Fields: dedupeFields(singleFields)}
	}

	return nil
}

// recognizeSingleVar handles the one-free-variable case: the expression
// must simplify to EXTRACT(hi, lo) of that variable.
func recognizeSingleVar(r Record, diags *diag.Collector) (layout.TypeMetaField, bool) {
	if r.Expr.Op != OpExtract {
		diags.Addf(diag.UnsupportedConstruct, "bitpattern",
			"%s: single-variable bitmap did not simplify to an extract", r.FunctionFullName)
		return layout.TypeMetaField{}, false
	}
	width := r.Expr.Hi - r.Expr.Lo + 1
	name := NormalizeAccessorName(r.FunctionFullName)
	return layout.TypeMetaField{
		Name:      name,
		BitOffset: r.Expr.Lo,
		Type:      &layout.TypeMeta{Kind: ir.KindElementary, DataType: "uint", SizeBits: width},
	}, true
}

// recognizeTwoVar brute-forces the shift variable, substitutes the data
// variable with all-ones, and classifies the resulting family of
// forced-zero bit positions into one of the packed-pair patterns.
func recognizeTwoVar(r Record, diags *diag.Collector) ([]layout.TypeMetaField, bool) {
	vars := CollectFreeVars(r.Expr)
	dataVar, shiftVar := identifyDataAndShift(r.Expr, vars)

	type shape struct {
		shift int
		zeros []int
	}
	var shapes []shape
	for shift := 0; shift < 128; shift++ {
		substituted := Substitute(r.Expr, shiftVar, ConstU64(uint64(shift)))
		substituted = Substitute(substituted, dataVar, Const(new(uint256.Int).Set(maxUint256)))
		simplified := Simplify(substituted)
		if simplified.Op != OpConst {
			diags.Addf(diag.UnsupportedConstruct, "bitpattern",
				"%s: two-variable bitmap did not reduce to a constant at shift=%d", r.FunctionFullName, shift)
			return nil, false
		}
		shapes = append(shapes, shape{shift: shift, zeros: zeroBitPositions(simplified.Const)})
	}

	isPattern := func(bitIndex func(shift int) int) bool {
		for _, s := range shapes {
			if len(s.zeros) != 1 || s.zeros[0] != bitIndex(s.shift) {
				return false
			}
		}
		return true
	}

	name := NormalizeAccessorName(r.FunctionFullName)
	switch {
	case isPattern(func(shift int) int { return shift * 2 }):
		return []layout.TypeMetaField{{Name: name, BitOffset: 0, Type: boolMeta()}}, true
	case isPattern(func(shift int) int { return shift*2 + 1 }):
		return []layout.TypeMetaField{{Name: name, BitOffset: 1, Type: boolMeta()}}, true
	default:
		diags.Addf(diag.UnsupportedConstruct, "bitpattern",
			"%s: two-variable bitmap family did not match a recognized packed-array pattern", r.FunctionFullName)
		return nil, false
	}
}

func identifyDataAndShift(e *Expr, vars []string) (data, shift string) {
	// The shift variable is the one used as a shift amount (operand B of an
	// OpShl/OpShr) somewhere in the tree; the other is the data variable.
	var shiftVar string
	var walk func(*Expr)
	walk = func(n *Expr) {
		if n == nil || shiftVar != "" {
			return
		}
		if (n.Op == OpShl || n.Op == OpShr) && n.B != nil && n.B.Op == OpVar {
			shiftVar = n.B.Name
			return
		}
		walk(n.A)
		walk(n.B)
	}
	walk(e)
	if shiftVar == "" && len(vars) == 2 {
		shiftVar = vars[1]
	}
	for _, v := range vars {
		if v != shiftVar {
			data = v
		}
	}
	return data, shiftVar
}

func zeroBitPositions(v *uint256.Int) []int {
	var out []int
	for i := 0; i < 256; i++ {
		bit := new(uint256.Int).Rsh(v, uint(i))
		bit.And(bit, uint256.NewInt(1))
		if bit.IsZero() {
			out = append(out, i)
		}
	}
	sort.Ints(out)
	return out
}

func dedupeFields(fields []layout.TypeMetaField) []layout.TypeMetaField {
	seen := map[string]bool{}
	var out []layout.TypeMetaField
	for _, f := range fields {
		key := f.Name
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, f)
	}
	return out
}

// NormalizeAccessorName derives a bit-field's sub-name from its accessor:
// a "setX…" accessor yields "X…" with the leading "set" stripped; a
// trailing-underscore SCREAMING_CASE name yields lowerCamel.
func NormalizeAccessorName(functionFullName string) string {
	name := functionFullName
	if idx := strings.LastIndex(name, "."); idx >= 0 {
		name = name[idx+1:]
	}
	if idx := strings.Index(name, "("); idx >= 0 {
		name = name[:idx]
	}
	if strings.HasPrefix(name, "set") && len(name) > 3 {
		return name[3:]
	}
	if strings.HasSuffix(name, "_") {
		return toLowerCamel(name)
	}
	return name
}

func toLowerCamel(name string) string {
	trimmed := strings.Trim(name, "_")
	parts := strings.Split(trimmed, "_")
	var b strings.Builder
	for i, p := range parts {
		if p == "" {
			continue
		}
		lower := strings.ToLower(p)
		if i == 0 {
			b.WriteString(lower)
			continue
		}
		b.WriteString(strings.ToUpper(lower[:1]))
		b.WriteString(lower[1:])
	}
	return b.String()
}

func boolMeta() *layout.TypeMeta {
	return &layout.TypeMeta{Kind: ir.KindElementary, DataType: "bool", SizeBits: 1}
}
