package likec

import (
	"testing"

	"github.com/Urethramancer/decompiler/ir"
	"github.com/Urethramancer/decompiler/ir/calling"
	"github.com/Urethramancer/decompiler/ir/dflow"
	"github.com/Urethramancer/decompiler/ir/structural"
	"github.com/Urethramancer/decompiler/ir/types"
	"github.com/Urethramancer/decompiler/ir/vars"
)

func loc(domain ir.Domain, offset int64, size int) ir.MemoryLocation {
	return ir.MemoryLocation{Domain: domain, Offset: offset, Size: size}
}

// straightLineFunction builds: local = 5; return local; across two blocks
// joined by an unconditional fall-through jump.
func straightLineFunction(t *testing.T) (*ir.Function, *dflow.Dataflow) {
	t.Helper()
	prog := ir.NewProgram()

	b1 := ir.NewControlPoint(0x1000)
	b1.SetSuccessorAddr(0x1001)
	localLoc := loc(ir.Stack, 0, 32)
	lhs := ir.NewMemoryLocationAccess(localLoc)
	rhs := ir.NewConstant(5, 32)
	_ = b1.PushStatement(ir.NewAssignment(lhs, rhs))
	fallThrough := &ir.JumpTarget{}
	_ = b1.PushStatement(ir.NewJump(nil, fallThrough, nil))
	prog.AddBlock(b1)

	b2 := ir.NewControlPoint(0x1001)
	retValRead := ir.NewMemoryLocationAccess(localLoc)
	_ = b2.PushStatement(ir.NewTouch(retValRead, ir.TouchRead))
	_ = b2.PushStatement(ir.NewReturn())
	prog.AddBlock(b2)

	fallThrough.Block = b2

	fn := ir.NewFunction(prog, b1)

	df := dflow.NewDataflow()
	df.SetLocation(lhs, localLoc)
	df.SetLocation(retValRead, localLoc)
	return fn, df
}

func TestGenerateStraightLineAssignmentAndReturn(t *testing.T) {
	fn, df := straightLineFunction(t)
	variables := vars.New()
	variables.Union(loc(ir.Stack, 0, 32), loc(ir.Stack, 0, 32))
	ta := types.NewTypeAnalyzer(df)
	ta.Analyze(fn)

	graph := structural.NewGraph(fn)
	graph.Reduce()

	sig := &calling.Signature{}
	cg := New(df, variables, ta)
	f := cg.Generate(fn, sig, graph, "sub_1000")

	if f.Name != "sub_1000" || f.EntryAddr != 0x1000 {
		t.Fatalf("unexpected function header: %+v", f)
	}
	if len(f.Locals) != 1 {
		t.Fatalf("expected one recovered local, got %d: %+v", len(f.Locals), f.Locals)
	}

	var sawAssign, sawReturn bool
	for _, s := range f.Body {
		switch s.Kind {
		case StmtAssign:
			sawAssign = true
			if s.RHS == nil || s.RHS.Kind != ExprConst || s.RHS.Value != 5 {
				t.Fatalf("expected assignment of constant 5, got %+v", s.RHS)
			}
		case StmtReturn:
			sawReturn = true
		}
	}
	if !sawAssign {
		t.Fatalf("expected an assignment statement in body, got %+v", f.Body)
	}
	if !sawReturn {
		t.Fatalf("expected a return statement in body, got %+v", f.Body)
	}
}

// ifThenElseFunction builds a diamond: if (a == 0) x = 1; else x = 2; then a
// common merge block returns.
func ifThenElseFunction(t *testing.T) (*ir.Function, *dflow.Dataflow) {
	t.Helper()
	prog := ir.NewProgram()
	argLoc := loc(0, 0, 32)
	xLoc := loc(ir.Stack, 0, 32)

	header := ir.NewControlPoint(0x2000)
	cond := ir.NewBinary(ir.Eq, ir.NewMemoryLocationAccess(argLoc), ir.NewConstant(0, 32), 1)
	thenTarget := &ir.JumpTarget{}
	elseTarget := &ir.JumpTarget{}
	_ = header.PushStatement(ir.NewJump(cond, thenTarget, elseTarget))
	prog.AddBlock(header)

	thenBlock := ir.NewControlPoint(0x2010)
	thenBlock.SetSuccessorAddr(0x2030)
	_ = thenBlock.PushStatement(ir.NewAssignment(ir.NewMemoryLocationAccess(xLoc), ir.NewConstant(1, 32)))
	thenJump := &ir.JumpTarget{}
	_ = thenBlock.PushStatement(ir.NewJump(nil, thenJump, nil))
	prog.AddBlock(thenBlock)

	elseBlock := ir.NewControlPoint(0x2020)
	elseBlock.SetSuccessorAddr(0x2030)
	_ = elseBlock.PushStatement(ir.NewAssignment(ir.NewMemoryLocationAccess(xLoc), ir.NewConstant(2, 32)))
	elseJump := &ir.JumpTarget{}
	_ = elseBlock.PushStatement(ir.NewJump(nil, elseJump, nil))
	prog.AddBlock(elseBlock)

	merge := ir.NewControlPoint(0x2030)
	_ = merge.PushStatement(ir.NewReturn())
	prog.AddBlock(merge)

	thenTarget.Block = thenBlock
	elseTarget.Block = elseBlock
	thenJump.Block = merge
	elseJump.Block = merge

	fn := ir.NewFunction(prog, header)
	df := dflow.NewDataflow()
	return fn, df
}

func TestGenerateIfThenElse(t *testing.T) {
	fn, df := ifThenElseFunction(t)
	variables := vars.New()
	ta := types.NewTypeAnalyzer(df)
	ta.Analyze(fn)

	graph := structural.NewGraph(fn)
	graph.Reduce()

	sig := &calling.Signature{Arguments: []ir.MemoryLocation{loc(0, 0, 32)}}
	cg := New(df, variables, ta)
	f := cg.Generate(fn, sig, graph, "sub_2000")

	if len(f.Params) != 1 || f.Params[0].Name != "a1" {
		t.Fatalf("expected one parameter named a1, got %+v", f.Params)
	}
	if len(f.Body) == 0 || f.Body[0].Kind != StmtIf {
		t.Fatalf("expected the if/else diamond first in body, got %+v", f.Body)
	}
	ifStmt := f.Body[0]
	if ifStmt.Cond == nil || ifStmt.Cond.Kind != ExprBinary || ifStmt.Cond.Op != "==" {
		t.Fatalf("expected an == condition, got %+v", ifStmt.Cond)
	}
	if len(ifStmt.Then) == 0 || len(ifStmt.Else) == 0 {
		t.Fatalf("expected both branches populated, got then=%+v else=%+v", ifStmt.Then, ifStmt.Else)
	}

	var sawMergeReturn bool
	for _, s := range f.Body {
		if s.Kind == StmtReturn {
			sawMergeReturn = true
		}
	}
	if !sawMergeReturn {
		t.Fatalf("expected the merge block's return after the if, got %+v", f.Body)
	}
}

func TestDeriveTypeMapsPointerAndFloat(t *testing.T) {
	pointee := types.New()
	pointee.MakeInteger()
	pointee.UpdateSize(8)

	ptr := types.New()
	ptr.MakePointer(pointee)
	ptr.UpdateSize(32)

	got := deriveType(ptr)
	if got.Kind != TypePointer {
		t.Fatalf("expected TypePointer, got %v", got.Kind)
	}
	if got.Pointee.Kind != TypeInt || got.Pointee.Size != 8 {
		t.Fatalf("expected int8 pointee, got %+v", got.Pointee)
	}

	f := types.New()
	f.MakeFloat()
	f.UpdateSize(64)
	if gotF := deriveType(f); gotF.Kind != TypeFloat || gotF.Size != 64 {
		t.Fatalf("expected float64, got %+v", gotF)
	}
}

func TestUnTruncationSkipsRedundantZeroExtend(t *testing.T) {
	df := dflow.NewDataflow()
	variables := vars.New()
	ta := types.NewTypeAnalyzer(df)
	cg := New(df, variables, ta)

	operand := ir.NewConstant(7, 32)
	extend := ir.NewUnary(ir.ZeroExtend, operand, 32)

	// Force the operand's recovered type to already be as wide as the
	// extend's result, so the extend is a provable no-op.
	ta.TypeOf(operand).UpdateSize(32)
	ta.TypeOf(extend).UpdateSize(32)

	got := cg.buildExpr(extend)
	if got.Kind != ExprConst || got.Value != 7 {
		t.Fatalf("expected the redundant zero-extend to be skipped, got %+v", got)
	}
}
