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

// Package evaluator implements the per-IR-kind transfer
// function that produces AbstractValue and bitmap annotations, dispatched
// from a side-table keyed by ir.ValueID rather than a context map
// carried on the mutable IR value itself, so the IR stays read-only.
package evaluator

import (
	"github.com/yangzq12/contract-abstract/pkg/abstractvalue"
	"github.com/yangzq12/contract-abstract/pkg/bitpattern"
	"github.com/yangzq12/contract-abstract/pkg/ir"
)

// Annotation is the tagged bundle of analyzer state attached to one IR
// value: an AbstractValue, an optional symbolic bitmap, and an optional
// points-to field index for reference locals. RefBase is the
// IR value the reference was projected from (the struct whose field it
// aliases), kept so an assignment through the reference can write back
// into the referent's AbstractValue.
type Annotation struct {
	Abstract    abstractvalue.Value
	HasAbstract bool
	Bitmap      *bitpattern.Expr
	PointsTo    *int
	RefBase     *ir.Value
}

func (a *Annotation) clone() *Annotation {
	if a == nil {
		return nil
	}
	cp := *a
	if a.HasAbstract {
		cp.Abstract = a.Abstract.DeepCopy()
	}
	if a.PointsTo != nil {
		i := *a.PointsTo
		cp.PointsTo = &i
	}
	return &cp
}

// ContextTable is the per-path side-table: ir.ValueID -> *Annotation.
type ContextTable struct {
	entries map[ir.ValueID]*Annotation
}

// NewContextTable builds an empty table.
func NewContextTable() *ContextTable {
	return &ContextTable{entries: make(map[ir.ValueID]*Annotation)}
}

// Get returns the annotation for id, creating an empty one on first access.
func (t *ContextTable) Get(id ir.ValueID) *Annotation {
	a, ok := t.entries[id]
	if !ok {
		a = &Annotation{}
		t.entries[id] = a
	}
	return a
}

// Set overwrites the annotation for id.
func (t *ContextTable) Set(id ir.ValueID, a *Annotation) {
	t.entries[id] = a
}

// Abstract returns the stored AbstractValue for id and whether one has ever
// been set; the zero Value is returned otherwise.
func (t *ContextTable) Abstract(id ir.ValueID) (abstractvalue.Value, bool) {
	a, ok := t.entries[id]
	if !ok || !a.HasAbstract {
		return abstractvalue.Value{}, false
	}
	return a.Abstract, true
}

// SetAbstract stores v's AbstractValue, preserving any existing Bitmap/PointsTo.
func (t *ContextTable) SetAbstract(id ir.ValueID, v abstractvalue.Value) {
	a := t.Get(id)
	a.Abstract = v
	a.HasAbstract = true
}

// SetBitmap stores e's symbolic bitmap expression.
func (t *ContextTable) SetBitmap(id ir.ValueID, e *bitpattern.Expr) {
	t.Get(id).Bitmap = e
}

// Bitmap returns the (possibly nil) bitmap expression for id.
func (t *ContextTable) Bitmap(id ir.ValueID) *bitpattern.Expr {
	a, ok := t.entries[id]
	if !ok {
		return nil
	}
	return a.Bitmap
}

// Clear wipes every entry. Called between path walks; state-variable
// values are re-seeded lazily the next time each one is resolved.
func (t *ContextTable) Clear() {
	t.entries = make(map[ir.ValueID]*Annotation)
}

// Clone deep-copies the table, for forking independent per-branch state
// when PathWalker splits a worklist item at a conditional CFG node.
func (t *ContextTable) Clone() *ContextTable {
	out := make(map[ir.ValueID]*Annotation, len(t.entries))
	for id, a := range t.entries {
		out[id] = a.clone()
	}
	return &ContextTable{entries: out}
}
