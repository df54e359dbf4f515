package vars

import (
	"testing"

	"github.com/Urethramancer/decompiler/ir"
)

func loc(offset int64, size int) ir.MemoryLocation {
	return ir.MemoryLocation{Domain: 0, Offset: offset, Size: size}
}

func TestUnionFindMergesOverlappingAccesses(t *testing.T) {
	v := New()
	a := loc(0, 32)
	b := loc(0, 8) // al inside eax

	v.Union(a, b)
	if v.Find(a) != v.Find(b) {
		t.Fatalf("expected overlapping locations to share a representative after Union")
	}
}

func TestUnionFindKeepsDisjointLocationsApart(t *testing.T) {
	v := New()
	a := loc(0, 32)
	c := loc(64, 32)
	if v.Find(a) == v.Find(c) {
		t.Fatalf("expected untouched locations to remain in separate sets")
	}
}

func TestVariableIDStableAfterUnion(t *testing.T) {
	v := New()
	a := loc(0, 32)
	b := loc(0, 8)
	c := loc(8, 8)

	v.Union(a, b)
	v.Union(b, c)

	if v.VariableID(a) != v.VariableID(c) {
		t.Fatalf("expected transitively unioned locations to share a variable id")
	}
}
