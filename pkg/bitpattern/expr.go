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

// Package bitpattern implements a symbolic 256-bit bitvector
// interpreter that tracks the `bitmap` context annotation
// through Binary/Unary/Assignment ops, plus the layout recognizer that
// turns a simplified bitvector expression back into a packed storage
// sub-schema. 256-bit literal arithmetic is github.com/holiman/uint256,
// so concrete folds match EVM word semantics exactly; the symbolic tree
// only needs algebraic rewriting, never a satisfiability query, so a
// full SMT solver would be dead weight here.
package bitpattern

import "github.com/holiman/uint256"

// Op discriminates one bitvector expression node.
type Op int

const (
	OpVar Op = iota
	OpConst
	OpAnd
	OpOr
	OpXor
	OpShl
	OpShr
	OpNot
	OpEq
	OpNeq
	OpAdd
	OpExtract
)

// Expr is a symbolic 256-bit bitvector expression. The operations the
// recognizer needs are Simplify, Substitute, CollectFreeVars and an
// Extract(hi,lo) introspector.
type Expr struct {
	Op    Op
	Name  string        // OpVar
	Const *uint256.Int  // OpConst
	A, B  *Expr         // operand(s); A is the sole operand for Not/Extract
	Hi    int           // OpExtract
	Lo    int           // OpExtract
}

func Var(name string) *Expr        { return &Expr{Op: OpVar, Name: name} }
func Const(v *uint256.Int) *Expr   { return &Expr{Op: OpConst, Const: v} }
func ConstU64(v uint64) *Expr      { return Const(uint256.NewInt(v)) }
func And(a, b *Expr) *Expr         { return &Expr{Op: OpAnd, A: a, B: b} }
func Or(a, b *Expr) *Expr          { return &Expr{Op: OpOr, A: a, B: b} }
func Xor(a, b *Expr) *Expr         { return &Expr{Op: OpXor, A: a, B: b} }
func Shl(a, b *Expr) *Expr         { return &Expr{Op: OpShl, A: a, B: b} }
func Shr(a, b *Expr) *Expr         { return &Expr{Op: OpShr, A: a, B: b} }
func Not(a *Expr) *Expr            { return &Expr{Op: OpNot, A: a} }
func Eq(a, b *Expr) *Expr          { return &Expr{Op: OpEq, A: a, B: b} }
func Neq(a, b *Expr) *Expr         { return &Expr{Op: OpNeq, A: a, B: b} }
func Add(a, b *Expr) *Expr         { return &Expr{Op: OpAdd, A: a, B: b} }
func Extract(a *Expr, hi, lo int) *Expr {
	return &Expr{Op: OpExtract, A: a, Hi: hi, Lo: lo}
}

// CollectFreeVars returns the distinct variable names occurring in e, in
// first-occurrence order.
func CollectFreeVars(e *Expr) []string {
	seen := map[string]bool{}
	var out []string
	var walk func(*Expr)
	walk = func(n *Expr) {
		if n == nil {
			return
		}
		if n.Op == OpVar {
			if !seen[n.Name] {
				seen[n.Name] = true
				out = append(out, n.Name)
			}
			return
		}
		walk(n.A)
		walk(n.B)
	}
	walk(e)
	return out
}

// Substitute replaces every OpVar leaf named name with value throughout e,
// returning a new tree (e is not mutated).
func Substitute(e *Expr, name string, value *Expr) *Expr {
	if e == nil {
		return nil
	}
	switch e.Op {
	case OpVar:
		if e.Name == name {
			return value
		}
		return e
	case OpConst:
		return e
	case OpNot, OpExtract:
		return &Expr{Op: e.Op, A: Substitute(e.A, name, value), Hi: e.Hi, Lo: e.Lo}
	default:
		return &Expr{Op: e.Op, A: Substitute(e.A, name, value), B: Substitute(e.B, name, value)}
	}
}
