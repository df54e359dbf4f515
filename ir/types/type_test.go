package types

import "testing"

func TestUpdateSizeShrinksMonotonically(t *testing.T) {
	ty := New()
	ty.UpdateSize(32)
	if ty.Size() != 32 {
		t.Fatalf("Size() = %d, want 32", ty.Size())
	}
	ty.UpdateSize(64)
	if ty.Size() != 32 {
		t.Fatalf("UpdateSize should never grow the size, got %d", ty.Size())
	}
	ty.UpdateSize(8)
	if ty.Size() != 8 {
		t.Fatalf("UpdateSize should shrink to the tighter constraint, got %d", ty.Size())
	}
}

func TestUnifyMergesTraits(t *testing.T) {
	a := New()
	a.MakeInteger()
	b := New()
	b.MakeSigned()

	a.Unify(b)
	if !a.IsInteger() || !a.IsSigned() {
		t.Fatalf("expected unified set to carry both traits, got integer=%v signed=%v", a.IsInteger(), a.IsSigned())
	}
	if !b.IsInteger() || !b.IsSigned() {
		t.Fatalf("expected Find()-normalized access through b to see merged traits")
	}
}

func TestChangedClearsAfterRead(t *testing.T) {
	ty := New()
	ty.MakeInteger()
	if !ty.Changed() {
		t.Fatalf("expected Changed() to report true once after MakeInteger")
	}
	if ty.Changed() {
		t.Fatalf("expected Changed() to clear after being read")
	}
}

func TestUpdateFactorGCD(t *testing.T) {
	ty := New()
	ty.UpdateFactor(8)
	ty.UpdateFactor(12)
	if got := ty.Factor(); got != 4 {
		t.Fatalf("Factor() = %d, want gcd(8,12)=4", got)
	}
}

func TestMakePointerUnifiesPointees(t *testing.T) {
	p1 := New()
	pointee1 := New()
	pointee1.UpdateSize(8)
	p1.MakePointer(pointee1)

	pointee2 := New()
	pointee2.UpdateSize(32)
	p1.MakePointer(pointee2)

	if p1.Pointee().Find() != pointee1.Find() {
		t.Fatalf("expected repeated MakePointer calls to unify pointees under the first one")
	}
	if pointee1.Find() != pointee2.Find() {
		t.Fatalf("expected pointee1 and pointee2 to end up in the same set")
	}
}
