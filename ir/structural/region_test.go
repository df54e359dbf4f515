package structural

import (
	"testing"

	"github.com/Urethramancer/decompiler/ir"
)

// buildLinearChain builds: 0x100 -> 0x200 -> 0x300 (ret), each block with a
// single predecessor/successor.
func buildLinearChain() *ir.Function {
	prog := ir.NewProgram()
	b1 := ir.NewControlPoint(0x100)
	b2 := ir.NewControlPoint(0x200)
	b3 := ir.NewControlPoint(0x300)

	must(b1.PushStatement(ir.NewJump(nil, &ir.JumpTarget{Block: b2}, nil)))
	must(b2.PushStatement(ir.NewJump(nil, &ir.JumpTarget{Block: b3}, nil)))
	must(b3.PushStatement(ir.NewReturn()))

	prog.AddBlock(b1)
	prog.AddBlock(b2)
	prog.AddBlock(b3)
	return ir.NewFunction(prog, b1)
}

func must(err error) {
	if err != nil {
		panic(err)
	}
}

func TestReduceCollapsesLinearChain(t *testing.T) {
	fn := buildLinearChain()
	g := NewGraph(fn)
	g.Reduce()

	regions := g.Regions()
	if len(regions) != 1 {
		t.Fatalf("expected the whole linear chain to collapse into one region, got %d top-level regions", len(regions))
	}
}

// buildIfThenElse builds a diamond: header branches to thenB/elseB, both of
// which flow to merge.
func buildIfThenElse() *ir.Function {
	prog := ir.NewProgram()
	header := ir.NewControlPoint(0x100)
	thenB := ir.NewControlPoint(0x200)
	elseB := ir.NewControlPoint(0x300)
	merge := ir.NewControlPoint(0x400)

	cond := ir.NewConstant(1, 1)
	must(header.PushStatement(ir.NewJump(cond, &ir.JumpTarget{Block: thenB}, &ir.JumpTarget{Block: elseB})))
	must(thenB.PushStatement(ir.NewJump(nil, &ir.JumpTarget{Block: merge}, nil)))
	must(elseB.PushStatement(ir.NewJump(nil, &ir.JumpTarget{Block: merge}, nil)))
	must(merge.PushStatement(ir.NewReturn()))

	prog.AddBlock(header)
	prog.AddBlock(thenB)
	prog.AddBlock(elseB)
	prog.AddBlock(merge)
	return ir.NewFunction(prog, header)
}

func TestReduceCollapsesIfThenElse(t *testing.T) {
	fn := buildIfThenElse()
	g := NewGraph(fn)
	g.Reduce()

	regions := g.Regions()
	if len(regions) != 1 {
		t.Fatalf("expected the diamond to collapse into one region, got %d", len(regions))
	}
	if regions[0].Kind == RegionUnstructured {
		t.Fatalf("expected a structured region, got unstructured")
	}
}
