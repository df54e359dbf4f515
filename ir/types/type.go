// Package types implements the union-find type lattice of spec.md §4.8: one
// Type node per term, unioned together wherever a term flows its value into
// another (assignment, argument passing, return), converging on the
// smallest consistent size and the most specific set of boolean traits.
//
// Grounded on _examples/original_source/src/nc/core/ir/types/Type.h/.cpp
// (the DisjointSet<Type>-based union-find, the join() trait-merge rules,
// and the GCD-based factor tracker) and TypeAnalyzer.cpp (the propagation
// rules that drive unionSet calls, reproduced as TypeAnalyzer.Analyze).
package types

// Type is one node of the union-find type lattice (spec.md §3 invariant
// "disjoint-set... monotone size-shrink... changed flag for fixed-point
// detection"). Unlike the original's intrusive DisjointSet<Type>, union-find
// parent links are plain *Type pointers managed entirely within this
// package.
type Type struct {
	parent *Type

	size int

	isInteger bool
	isFloat   bool
	isPointer bool
	pointee   *Type

	isSigned   bool
	isUnsigned bool

	factor int64

	changed bool
}

// New creates a fresh, maximally unconstrained Type node.
func New() *Type {
	t := &Type{}
	t.parent = t
	return t
}

// Find returns the representative of t's set, path-compressing.
func (t *Type) Find() *Type {
	root := t
	for root.parent != root {
		root = root.parent
	}
	for t.parent != root {
		t.parent, t = root, t.parent
	}
	return root
}

// Size returns the current (monotonically shrinking, once known) size in
// bits, or 0 if no term of this type has reported a size yet.
func (t *Type) Size() int { return t.Find().size }

// UpdateSize narrows the set's size to the smaller of its current value
// (if any) and size (spec.md §3 "monotone size-shrink"): a later, tighter
// constraint always wins, a larger one is ignored, and a size of 0 leaves
// the set unchanged.
func (t *Type) UpdateSize(size int) {
	r := t.Find()
	if size != 0 && (r.size == 0 || size < r.size) {
		r.size = size
		r.changed = true
	}
}

// IsInteger reports the set's integer-kind flag.
func (t *Type) IsInteger() bool { return t.Find().isInteger }

// MakeInteger marks the set as holding integer values.
func (t *Type) MakeInteger() {
	r := t.Find()
	if !r.isInteger {
		r.isInteger = true
		r.changed = true
	}
}

// IsFloat reports the set's float-kind flag.
func (t *Type) IsFloat() bool { return t.Find().isFloat }

// MakeFloat marks the set as holding floating-point values.
func (t *Type) MakeFloat() {
	r := t.Find()
	if !r.isFloat {
		r.isFloat = true
		r.changed = true
	}
}

// IsPointer reports the set's pointer-kind flag.
func (t *Type) IsPointer() bool { return t.Find().isPointer }

// Pointee returns the type this one points to, or nil.
func (t *Type) Pointee() *Type {
	r := t.Find()
	if r.pointee == nil {
		return nil
	}
	return r.pointee.Find()
}

// MakePointer marks the set as holding pointer values, optionally unioning
// its pointee set with pointee (spec.md §4.8's pointee-linkage rule: two
// pointers observed to point into the same aggregate unify their pointees
// too).
func (t *Type) MakePointer(pointee *Type) {
	r := t.Find()
	if !r.isPointer {
		r.isPointer = true
		r.changed = true
	}
	if pointee == nil {
		return
	}
	if r.pointee == nil {
		r.pointee = pointee
		r.changed = true
	} else {
		r.pointee.Unify(pointee)
	}
}

// IsSigned reports the set's signedness flag.
func (t *Type) IsSigned() bool { return t.Find().isSigned }

// MakeSigned marks the set as holding signed values.
func (t *Type) MakeSigned() {
	r := t.Find()
	if !r.isSigned {
		r.isSigned = true
		r.changed = true
	}
}

// IsUnsigned reports the set's unsignedness flag.
func (t *Type) IsUnsigned() bool { return t.Find().isUnsigned }

// MakeUnsigned marks the set as holding unsigned values.
func (t *Type) MakeUnsigned() {
	r := t.Find()
	if !r.isUnsigned {
		r.isUnsigned = true
		r.changed = true
	}
}

// Factor returns the GCD of every increment/decrement observed against
// variables of this type (a stride hint for pointer arithmetic recovery).
func (t *Type) Factor() int64 { return t.Find().factor }

func gcd(a, b int64) int64 {
	if a < 0 {
		a = -a
	}
	if b < 0 {
		b = -b
	}
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

// UpdateFactor folds increment into the set's factor via GCD.
func (t *Type) UpdateFactor(increment int64) {
	r := t.Find()
	newFactor := gcd(increment, r.factor)
	if newFactor != r.factor {
		r.factor = newFactor
		r.changed = true
	}
}

// Changed reports whether this set's representative has changed since the
// last call to Changed, clearing the flag (spec.md §3 "changed flag for
// fixed-point detection" — the type analyzer's driving loop polls this to
// know when to stop).
func (t *Type) Changed() bool {
	r := t.Find()
	if r.changed {
		r.changed = false
		return true
	}
	return false
}

// Unify merges t's and that's sets, folding that's traits into the
// surviving representative (spec.md §4.8, grounded on Type::unionSet +
// Type::join).
func (t *Type) Unify(that *Type) {
	a, b := t.Find(), that.Find()
	if a == b {
		return
	}
	// Union by attaching b under a; a then absorbs b's traits so either
	// pointer remains a valid query handle via Find().
	b.parent = a
	a.join(b)
}

func (a *Type) join(b *Type) {
	a.UpdateSize(b.size)
	if b.isInteger {
		a.MakeInteger()
	}
	if b.isFloat {
		a.MakeFloat()
	}
	if b.isPointer {
		a.MakePointer(b.pointee)
	}
	if b.isSigned {
		a.MakeSigned()
	}
	if b.isUnsigned {
		a.MakeUnsigned()
	}
	a.UpdateFactor(b.factor)
}
