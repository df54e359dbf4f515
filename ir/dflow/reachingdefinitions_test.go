package dflow

import (
	"testing"

	"github.com/Urethramancer/decompiler/ir"
)

func loc(domain ir.Domain, offset int64, size int) ir.MemoryLocation {
	return ir.MemoryLocation{Domain: domain, Offset: offset, Size: size}
}

func TestAddDefinitionKillsOverlap(t *testing.T) {
	var rd ReachingDefinitions
	t1 := ir.NewConstant(1, 32)
	t2 := ir.NewConstant(2, 32)

	eax := loc(0, 0, 32)
	al := loc(0, 0, 8)

	rd.AddDefinition(eax, t1)
	rd.AddDefinition(al, t2)

	chunks := rd.Chunks()
	if len(chunks) != 1 {
		t.Fatalf("expected overlapping write to kill the prior chunk, got %d chunks", len(chunks))
	}
	if chunks[0].Definitions[0] != t2 {
		t.Fatalf("expected surviving definition to be the most recent write")
	}
}

func TestKillDefinitionsRemovesOverlapping(t *testing.T) {
	var rd ReachingDefinitions
	rd.AddDefinition(loc(0, 0, 32), ir.NewConstant(1, 32))
	rd.KillDefinitions(loc(0, 0, 8))
	if !rd.Empty() {
		t.Fatalf("expected kill of an overlapping sub-range to remove the whole chunk")
	}
}

func TestProjectReturnsOverlappingOnly(t *testing.T) {
	var rd ReachingDefinitions
	rd.AddDefinition(loc(0, 0, 32), ir.NewConstant(1, 32))
	rd.AddDefinition(loc(1, 0, 32), ir.NewConstant(2, 32))

	got := rd.Project(loc(0, 0, 8))
	if len(got.Chunks()) != 1 {
		t.Fatalf("Project should return only the overlapping domain-0 chunk, got %d", len(got.Chunks()))
	}
}

func TestMergeUnionsDefinitionsAtSameLocation(t *testing.T) {
	var a, b ReachingDefinitions
	t1 := ir.NewConstant(1, 32)
	t2 := ir.NewConstant(2, 32)
	a.AddDefinition(loc(0, 0, 32), t1)
	b.AddDefinition(loc(0, 0, 32), t2)

	a.Merge(b)
	chunks := a.Chunks()
	if len(chunks) != 1 || len(chunks[0].Definitions) != 2 {
		t.Fatalf("Merge should union definitions for the same location, got %+v", chunks)
	}
}

func TestMergeKeepsDisjointLocations(t *testing.T) {
	var a, b ReachingDefinitions
	a.AddDefinition(loc(0, 0, 32), ir.NewConstant(1, 32))
	b.AddDefinition(loc(1, 0, 32), ir.NewConstant(2, 32))

	a.Merge(b)
	if len(a.Chunks()) != 2 {
		t.Fatalf("Merge should keep disjoint locations as separate chunks, got %d", len(a.Chunks()))
	}
}

func TestEqual(t *testing.T) {
	var a, b ReachingDefinitions
	term := ir.NewConstant(1, 32)
	a.AddDefinition(loc(0, 0, 32), term)
	b.AddDefinition(loc(0, 0, 32), term)
	if !a.Equal(b) {
		t.Fatalf("expected equivalent reaching-definitions sets to compare equal")
	}
	b.AddDefinition(loc(1, 0, 8), ir.NewConstant(9, 8))
	if a.Equal(b) {
		t.Fatalf("expected extra chunk to break equality")
	}
}

func TestFilterOutDropsEmptyChunks(t *testing.T) {
	var rd ReachingDefinitions
	dead := ir.NewConstant(1, 32)
	rd.AddDefinition(loc(0, 0, 32), dead)

	rd.FilterOut(func(l ir.MemoryLocation, term *ir.Term) bool {
		return term == dead
	})
	if !rd.Empty() {
		t.Fatalf("expected FilterOut to remove the chunk once its only definition is filtered")
	}
}

func TestGetDefinedMemoryLocationsWithin(t *testing.T) {
	var rd ReachingDefinitions
	rd.AddDefinition(loc(0, 0, 32), ir.NewConstant(1, 32))
	rd.AddDefinition(loc(1, 0, 32), ir.NewConstant(2, 32))

	got := rd.GetDefinedMemoryLocationsWithin(0)
	if len(got) != 1 || got[0].Domain != 0 {
		t.Fatalf("expected exactly one domain-0 location, got %+v", got)
	}
}
