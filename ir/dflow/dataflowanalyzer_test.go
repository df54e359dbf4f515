package dflow

import (
	"testing"

	"github.com/Urethramancer/decompiler/ir"
)

// buildAssignFunction constructs: eax := 5; ebx := eax + 1; ret
func buildAssignFunction() *ir.Function {
	prog := ir.NewProgram()
	b := ir.NewControlPoint(0x1000)

	eax := loc(0, 0, 32)
	ebx := loc(0, 32, 32)

	assign1 := ir.NewAssignment(ir.NewMemoryLocationAccess(eax), ir.NewConstant(5, 32))
	readEax := ir.NewMemoryLocationAccess(eax)
	sum := ir.NewBinary(ir.Add, readEax, ir.NewConstant(1, 32), 32)
	assign2 := ir.NewAssignment(ir.NewMemoryLocationAccess(ebx), sum)
	ret := ir.NewReturn()

	if err := b.PushStatement(assign1); err != nil {
		panic(err)
	}
	if err := b.PushStatement(assign2); err != nil {
		panic(err)
	}
	if err := b.PushStatement(ret); err != nil {
		panic(err)
	}

	prog.AddBlock(b)
	return ir.NewFunction(prog, b)
}

func TestDataflowAnalyzerConstantPropagation(t *testing.T) {
	fn := buildAssignFunction()
	df := NewDataflow()
	analyzer := NewDataflowAnalyzer(df, nil, ir.MemoryLocation{})
	analyzer.Analyze(fn)

	block := fn.Entry
	stmts := block.Statements()
	assign2 := stmts[1]
	sum := assign2.RHS

	v := df.Value(sum)
	if !v.IsConcrete() {
		t.Fatalf("expected eax+1 to fold to a concrete value once eax's definition is known, got %+v", v)
	}
	if v.Value() != 6 {
		t.Fatalf("expected eax+1 == 6, got %d", v.Value())
	}
}

func TestDataflowAnalyzerTracksReachingDefinitions(t *testing.T) {
	fn := buildAssignFunction()
	df := NewDataflow()
	analyzer := NewDataflowAnalyzer(df, nil, ir.MemoryLocation{})
	analyzer.Analyze(fn)

	stmts := fn.Entry.Statements()
	readEax := stmts[1].RHS.Left // the BinaryOp's left operand is the read of eax
	assign1 := stmts[0]

	defs := df.Definitions(readEax)
	if defs.Empty() {
		t.Fatalf("expected the read of eax to see assign1's write as a reaching definition")
	}
	found := false
	for _, c := range defs.Chunks() {
		for _, d := range c.Definitions {
			if d == assign1.LHS {
				found = true
			}
		}
	}
	if !found {
		t.Fatalf("expected reaching definitions to include assign1's LHS term")
	}
}

func TestDataflowAnalyzerKillOnOverlappingWrite(t *testing.T) {
	prog := ir.NewProgram()
	b := ir.NewControlPoint(0x2000)

	eax := loc(0, 0, 32)
	al := loc(0, 0, 8)

	assign1 := ir.NewAssignment(ir.NewMemoryLocationAccess(eax), ir.NewConstant(0x12345678, 32))
	assign2 := ir.NewAssignment(ir.NewMemoryLocationAccess(al), ir.NewConstant(0xFF, 8))
	readEax := ir.NewMemoryLocationAccess(eax)
	touch := ir.NewTouch(readEax, ir.TouchRead)
	ret := ir.NewReturn()

	must(b.PushStatement(assign1))
	must(b.PushStatement(assign2))
	must(b.PushStatement(touch))
	must(b.PushStatement(ret))
	prog.AddBlock(b)
	fn := ir.NewFunction(prog, b)

	df := NewDataflow()
	analyzer := NewDataflowAnalyzer(df, nil, ir.MemoryLocation{})
	analyzer.Analyze(fn)

	v := df.Value(readEax)
	if v.IsConcrete() {
		t.Fatalf("expected eax to become unknown after al is overwritten independently, got concrete %#x", v.Value())
	}
}

func must(err error) {
	if err != nil {
		panic(err)
	}
}
