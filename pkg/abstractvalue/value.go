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

// Package abstractvalue implements the five-field semantic lattice
// element propagated through the symbolic interpreter, one per IR value:
// input/storage origin names, the two taint sets, and a printable value.
package abstractvalue

import "sort"

// Unknown is the printable placeholder for a value the interpreter could
// not pretty-print.
const Unknown = "$unknown$"

// TaintSet is a set of parameter names or storage-expression strings.
type TaintSet map[string]struct{}

// NewTaintSet builds a TaintSet from the given members.
func NewTaintSet(members ...string) TaintSet {
	s := make(TaintSet, len(members))
	for _, m := range members {
		s[m] = struct{}{}
	}
	return s
}

// Union returns a new set containing every member of a and b.
func (a TaintSet) Union(b TaintSet) TaintSet {
	out := make(TaintSet, len(a)+len(b))
	for k := range a {
		out[k] = struct{}{}
	}
	for k := range b {
		out[k] = struct{}{}
	}
	return out
}

// WithSuffix returns a new set where every member has suffix appended,
// used when an index or field access narrows every storage taint to the
// accessed element ("bal" tainting becomes "bal[k]" tainting).
func (a TaintSet) WithSuffix(suffix string) TaintSet {
	out := make(TaintSet, len(a))
	for k := range a {
		out[k+suffix] = struct{}{}
	}
	return out
}

// Sorted returns the set's members in a deterministic order, for printing
// and for tests.
func (a TaintSet) Sorted() []string {
	out := make([]string, 0, len(a))
	for k := range a {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (a TaintSet) equal(b TaintSet) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if _, ok := b[k]; !ok {
			return false
		}
	}
	return true
}

func (a TaintSet) deepCopy() TaintSet {
	out := make(TaintSet, len(a))
	for k := range a {
		out[k] = struct{}{}
	}
	return out
}

// Scalar is one leaf of the AbstractValue lattice: a single origin/value
// record, as opposed to the exploded per-field Vector shape.
type Scalar struct {
	// Input and Storage are mutually exclusive canonical names: an
	// aliased slot is one or the other, never both.
	Input   *string
	Storage *string

	InputTaints   TaintSet
	StorageTaints TaintSet

	// ValueStr is the best-effort pretty expression, or Unknown.
	ValueStr string
}

// Value is the AbstractValue lattice element. It is either a Scalar (Vector
// == nil) or an exploded aggregate: one Value per declared field, in
// declaration order (Scalar's zero value, Vector non-nil).
type Value struct {
	Scalar *Scalar
	Vector []Value
}

// IsVector reports whether v is exploded into per-field precision.
func (v Value) IsVector() bool { return v.Vector != nil }

// Unset is the zero AbstractValue: origin-less, value Unknown.
func Unset() Value {
	return Value{Scalar: &Scalar{ValueStr: Unknown}}
}

// FromInput builds a scalar AbstractValue rooted in a parameter name.
func FromInput(name string, taints TaintSet, value string) Value {
	if value == "" {
		value = Unknown
	}
	return Value{Scalar: &Scalar{Input: &name, InputTaints: taints, ValueStr: value}}
}

// FromStorage builds a scalar AbstractValue rooted in a canonical storage
// expression.
func FromStorage(name string, taints TaintSet, value string) Value {
	if value == "" {
		value = Unknown
	}
	return Value{Scalar: &Scalar{Storage: &name, StorageTaints: taints, ValueStr: value}}
}

// FromValue builds an opaque scalar AbstractValue carrying only taints and
// a printed value (used for HighLevelCall results and constants, §4.E).
func FromValue(inputTaints, storageTaints TaintSet, value string) Value {
	if value == "" {
		value = Unknown
	}
	return Value{Scalar: &Scalar{InputTaints: inputTaints, StorageTaints: storageTaints, ValueStr: value}}
}

// DeepCopy duplicates v and every nested set/list.
func (v Value) DeepCopy() Value {
	if v.Vector != nil {
		out := make([]Value, len(v.Vector))
		for i, e := range v.Vector {
			out[i] = e.DeepCopy()
		}
		return Value{Vector: out}
	}
	if v.Scalar == nil {
		return Value{}
	}
	s := *v.Scalar
	if v.Scalar.Input != nil {
		in := *v.Scalar.Input
		s.Input = &in
	}
	if v.Scalar.Storage != nil {
		st := *v.Scalar.Storage
		s.Storage = &st
	}
	s.InputTaints = v.Scalar.InputTaints.deepCopy()
	s.StorageTaints = v.Scalar.StorageTaints.deepCopy()
	return Value{Scalar: &s}
}

// Equal is structural equality.
func (v Value) Equal(o Value) bool {
	if v.IsVector() != o.IsVector() {
		return false
	}
	if v.IsVector() {
		if len(v.Vector) != len(o.Vector) {
			return false
		}
		for i := range v.Vector {
			if !v.Vector[i].Equal(o.Vector[i]) {
				return false
			}
		}
		return true
	}
	a, b := v.Scalar, o.Scalar
	if a == nil || b == nil {
		return a == b
	}
	if !strPtrEqual(a.Input, b.Input) || !strPtrEqual(a.Storage, b.Storage) {
		return false
	}
	if !a.InputTaints.equal(b.InputTaints) || !a.StorageTaints.equal(b.StorageTaints) {
		return false
	}
	return a.ValueStr == b.ValueStr
}

func strPtrEqual(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// AppendOrigin appends suffix to whichever of Input/Storage is non-nil
// (exactly one must be, per the invariant), used by Index ("[idx]") and
// Member (".field") to extend a canonical name.
func (v Value) AppendOrigin(suffix string) Value {
	if !v.IsVector() {
		s := *v.Scalar
		if s.Input != nil {
			n := *s.Input + suffix
			s.Input = &n
		}
		if s.Storage != nil {
			n := *s.Storage + suffix
			s.Storage = &n
		}
		return Value{Scalar: &s}
	}
	out := make([]Value, len(v.Vector))
	for i, e := range v.Vector {
		out[i] = e.AppendOrigin(suffix)
	}
	return Value{Vector: out}
}

// OriginName returns the non-nil canonical name (Input xor Storage) of a
// scalar AbstractValue, or "" if neither is set.
func (v Value) OriginName() string {
	if v.IsVector() || v.Scalar == nil {
		return ""
	}
	if v.Scalar.Storage != nil {
		return *v.Scalar.Storage
	}
	if v.Scalar.Input != nil {
		return *v.Scalar.Input
	}
	return ""
}

// IsStorageRooted reports whether v (scalar) is rooted in storage.
func (v Value) IsStorageRooted() bool {
	return !v.IsVector() && v.Scalar != nil && v.Scalar.Storage != nil
}

// IsInputRooted reports whether v (scalar) is rooted in a parameter.
func (v Value) IsInputRooted() bool {
	return !v.IsVector() && v.Scalar != nil && v.Scalar.Input != nil
}

// Field projects element i out of a vector-shaped value, or returns v
// itself if already scalar (defensive: callers should check IsVector first
// when the distinction matters).
func (v Value) Field(i int) Value {
	if v.IsVector() && i >= 0 && i < len(v.Vector) {
		return v.Vector[i]
	}
	return v
}

// Explode turns a scalar AbstractValue into a Vector of length
// fieldCount. newValue is written at index i; every other index j gets
// v's own name extended with "."+fieldNames[j], so untouched fields keep
// a canonical name derived from the whole-struct identity.
func (v Value) Explode(fieldCount int, fieldNames []string, i int, newValue Value) Value {
	out := make([]Value, fieldCount)
	for j := 0; j < fieldCount; j++ {
		if j == i {
			out[j] = newValue
			continue
		}
		out[j] = v.AppendOrigin("." + fieldNames[j])
	}
	return Value{Vector: out}
}

// Taints returns a scalar value's input and storage taint sets as two
// separate results (nil, nil for a vector or an unset value).
func (v Value) Taints() (input, storage TaintSet) {
	if v.IsVector() || v.Scalar == nil {
		return nil, nil
	}
	return v.Scalar.InputTaints, v.Scalar.StorageTaints
}

// PrintedValue returns the best-effort value string, or Unknown for
// vectors — display always falls back to Unknown, never an empty string.
func (v Value) PrintedValue() string {
	if v.IsVector() {
		return Unknown
	}
	if v.Scalar == nil {
		return Unknown
	}
	return v.Scalar.ValueStr
}
