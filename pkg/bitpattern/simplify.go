// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package bitpattern

import "github.com/holiman/uint256"

var maxUint256 = func() *uint256.Int {
	v := new(uint256.Int)
	for i := range v {
		v[i] = ^uint64(0)
	}
	return v
}()

// Simplify folds constant subtrees and recognizes the AND/SHR combination
// that denotes a contiguous bitfield extraction, returning an equivalent
// (generally smaller) expression.
func Simplify(e *Expr) *Expr {
	if e == nil {
		return nil
	}
	switch e.Op {
	case OpVar, OpConst:
		return e
	case OpNot:
		a := Simplify(e.A)
		if a.Op == OpConst {
			v := new(uint256.Int).Not(a.Const)
			return Const(v)
		}
		return Not(a)
	case OpExtract:
		a := Simplify(e.A)
		if a.Op == OpConst {
			return Const(extractConst(a.Const, e.Hi, e.Lo))
		}
		if extracted, ok := reduceExtract(a); ok {
			return extracted
		}
		return Extract(a, e.Hi, e.Lo)
	default:
		a := Simplify(e.A)
		b := Simplify(e.B)
		if a.Op == OpConst && b.Op == OpConst {
			if v, ok := foldConst(e.Op, a.Const, b.Const); ok {
				return Const(v)
			}
		}
		merged := &Expr{Op: e.Op, A: a, B: b}
		if e.Op == OpAnd {
			if extracted, ok := reduceExtract(merged); ok {
				return extracted
			}
		}
		return merged
	}
}

func foldConst(op Op, a, b *uint256.Int) (*uint256.Int, bool) {
	v := new(uint256.Int)
	switch op {
	case OpAnd:
		return v.And(a, b), true
	case OpOr:
		return v.Or(a, b), true
	case OpXor:
		return v.Xor(a, b), true
	case OpAdd:
		return v.Add(a, b), true
	case OpShl:
		return v.Lsh(a, uint(b.Uint64()%256)), true
	case OpShr:
		return v.Rsh(a, uint(b.Uint64()%256)), true
	case OpEq:
		if a.Eq(b) {
			return uint256.NewInt(1), true
		}
		return uint256.NewInt(0), true
	case OpNeq:
		if !a.Eq(b) {
			return uint256.NewInt(1), true
		}
		return uint256.NewInt(0), true
	default:
		return nil, false
	}
}

func extractConst(v *uint256.Int, hi, lo int) *uint256.Int {
	shifted := new(uint256.Int).Rsh(v, uint(lo))
	mask := maskOfWidth(hi - lo + 1)
	return new(uint256.Int).And(shifted, mask)
}

func maskOfWidth(width int) *uint256.Int {
	if width <= 0 {
		return uint256.NewInt(0)
	}
	if width >= 256 {
		return new(uint256.Int).Set(maxUint256)
	}
	one := uint256.NewInt(1)
	shifted := new(uint256.Int).Lsh(one, uint(width))
	return new(uint256.Int).Sub(shifted, uint256.NewInt(1))
}

// reduceExtract recognizes `(x >> lo) & mask` or `x & mask` where mask is a
// contiguous run of ones, and rewrites it as Extract(x, hi, lo). Returns
// (nil, false) when the shape does not match. Only called for OpAnd nodes;
// a bare Shr is left alone so an enclosing AND can still recognize it.
func reduceExtract(e *Expr) (*Expr, bool) {
	if e.Op != OpAnd {
		return nil, false
	}
	var inner, maskExpr *Expr
	switch {
	case e.A.Op == OpConst:
		maskExpr, inner = e.A, e.B
	case e.B.Op == OpConst:
		maskExpr, inner = e.B, e.A
	default:
		return nil, false
	}
	width, ok := contiguousWidth(maskExpr.Const)
	if !ok {
		return nil, false
	}
	if inner.Op == OpShr && inner.B.Op == OpConst {
		lo := int(inner.B.Const.Uint64())
		return Extract(inner.A, lo+width-1, lo), true
	}
	return Extract(inner, width-1, 0), true
}

// contiguousWidth reports whether mask is a run of 1-bits starting at bit 0
// (i.e. 2^n - 1), returning n.
func contiguousWidth(mask *uint256.Int) (int, bool) {
	if mask.IsZero() {
		return 0, false
	}
	plusOne := new(uint256.Int).Add(mask, uint256.NewInt(1))
	// mask+1 must be a power of two: (mask+1) & mask == 0
	and := new(uint256.Int).And(plusOne, mask)
	if !and.IsZero() {
		return 0, false
	}
	width := 0
	for i := 0; i < 256; i++ {
		bit := new(uint256.Int).Rsh(mask, uint(i))
		if bit.IsZero() {
			break
		}
		width++
	}
	return width, true
}
