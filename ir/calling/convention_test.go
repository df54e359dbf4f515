package calling

import (
	"testing"

	"github.com/Urethramancer/decompiler/ir"
)

func reg(offset, size int) ir.MemoryLocation {
	return ir.MemoryLocation{Domain: 0, Offset: int64(offset), Size: size}
}

func TestConventionArgumentLocationsFlattensGroups(t *testing.T) {
	c := NewConvention("cdecl-ish").
		AddArgumentGroup(reg(0, 32), reg(32, 32)).
		AddArgumentGroup(reg(64, 32))

	got := c.ArgumentLocations()
	if len(got) != 3 {
		t.Fatalf("expected 3 flattened argument locations, got %d", len(got))
	}
}

func TestAnalyzeSignatureArguments(t *testing.T) {
	c := NewConvention("test").AddArgumentGroup(reg(0, 32), reg(32, 32))
	readLocs := map[ir.MemoryLocation]bool{reg(0, 32): true}

	sig := AnalyzeSignature(nil, c,
		func(l ir.MemoryLocation) bool { return readLocs[l] },
		func(l ir.MemoryLocation) bool { return false },
	)
	if len(sig.Arguments) != 1 || !sig.Arguments[0].Equal(reg(0, 32)) {
		t.Fatalf("expected exactly the read-before-write argument, got %+v", sig.Arguments)
	}
}

func TestActualArgumentsIntersectsLiveWritesWithFormalSet(t *testing.T) {
	c := NewConvention("test").AddArgumentGroup(reg(0, 32), reg(32, 32), reg(64, 32))
	callee := &Signature{Arguments: []ir.MemoryLocation{reg(0, 32), reg(32, 32)}}
	live := map[ir.MemoryLocation]bool{reg(0, 32): true, reg(64, 32): true}

	got := ActualArguments(callee, c, func(l ir.MemoryLocation) bool { return live[l] })
	if len(got) != 1 || !got[0].Equal(reg(0, 32)) {
		t.Fatalf("expected intersection to contain only reg(0,32), got %+v", got)
	}
}

func TestActualArgumentsFallsBackToConventionDefault(t *testing.T) {
	c := NewConvention("test").AddArgumentGroup(reg(0, 32), reg(32, 32))
	live := map[ir.MemoryLocation]bool{reg(32, 32): true}

	got := ActualArguments(nil, c, func(l ir.MemoryLocation) bool { return live[l] })
	if len(got) != 1 || !got[0].Equal(reg(32, 32)) {
		t.Fatalf("expected default-convention fallback to intersect with live writes, got %+v", got)
	}
}
