package likec

import (
	"fmt"

	"github.com/Urethramancer/decompiler/ir"
	"github.com/Urethramancer/decompiler/ir/calling"
	"github.com/Urethramancer/decompiler/ir/dflow"
	"github.com/Urethramancer/decompiler/ir/structural"
	"github.com/Urethramancer/decompiler/ir/types"
	"github.com/Urethramancer/decompiler/ir/vars"
)

// CodeGenerator walks a function's region graph and emits a LikeC AST
// (spec.md §4.9), using the dataflow result table for term values and
// locations, the variable-reconstruction union-find for grouping, the
// type analyzer for recovered C types, and the signature for the
// function's parameter/return list.
//
// Grounded on spec.md §4.9's own description ("Walk each function's region
// graph in structural order and emit LikeC AST") — no file in
// original_source implements this stage for the retrieved subset; region
// traversal mirrors ir/structural's own Region shape.
type CodeGenerator struct {
	dataflow  *dflow.Dataflow
	variables *vars.Variables
	types     *types.TypeAnalyzer

	// RegisterName, if set, supplies a friendly name for a register-domain
	// location (e.g. x86's "ecx"); falls back to a synthetic name.
	RegisterName func(domain ir.Domain, offset, size int) (string, bool)

	sampleTerm map[ir.MemoryLocation]*ir.Term
	varsByID   map[ir.MemoryLocation]*Var
	locals     []*Var
	nextLocal  int
	nextGlobal int
	nextReg    int
	returnVar  *Var
}

// New creates a CodeGenerator reading term values/locations from df,
// variable groupings from variables, and recovered types from ta.
func New(df *dflow.Dataflow, variables *vars.Variables, ta *types.TypeAnalyzer) *CodeGenerator {
	return &CodeGenerator{
		dataflow:   df,
		variables:  variables,
		types:      ta,
		sampleTerm: make(map[ir.MemoryLocation]*ir.Term),
		varsByID:   make(map[ir.MemoryLocation]*Var),
	}
}

// Generate emits the LikeC Function for fn, using sig for its
// parameter/return locations and graph for its structural region tree
// (already reduced via structural.Graph.Reduce).
func (cg *CodeGenerator) Generate(fn *ir.Function, sig *calling.Signature, graph *structural.Graph, name string) *Function {
	cg.collectSamples(fn)

	f := &Function{Name: name, EntryAddr: fn.EntryAddr(), ReturnType: Void}

	for _, loc := range sig.Arguments {
		id := cg.variables.VariableID(loc)
		cg.nextLocal++ // keep local numbering disjoint from argument numbering
		v := &Var{Name: fmt.Sprintf("a%d", len(f.Params)+1), Type: cg.typeForLocation(id)}
		cg.varsByID[id] = v
		f.Params = append(f.Params, v)
	}
	if len(sig.ReturnValues) > 0 {
		id := cg.variables.VariableID(sig.ReturnValues[0])
		f.ReturnType = cg.typeForLocation(id)
		cg.returnVar = &Var{Name: "result", Type: f.ReturnType}
		cg.varsByID[id] = cg.returnVar
	}

	gotoTargets := cg.collectGotoTargets(fn)
	f.Body = cg.walkRegions(graph.Regions(), fn, gotoTargets)

	for _, v := range cg.locals {
		f.Locals = append(f.Locals, v)
	}
	return f
}

// collectSamples records, for every memory location observed in fn, one
// representative term naming it, used afterwards to look up its recovered
// type (ir/types.TypeAnalyzer is keyed by *ir.Term, not by location).
func (cg *CodeGenerator) collectSamples(fn *ir.Function) {
	for _, b := range fn.Blocks() {
		for _, s := range b.Statements() {
			for _, t := range s.Terms() {
				ir.Walk(t, func(term *ir.Term) {
					if term.Kind != ir.TermMemoryLocationAccess && term.Kind != ir.TermDereference {
						return
					}
					loc := cg.dataflow.Location(term)
					if loc.IsNil() {
						return
					}
					id := cg.variables.VariableID(loc)
					if _, ok := cg.sampleTerm[id]; !ok {
						cg.sampleTerm[id] = term
					}
				})
			}
		}
	}
}

// collectGotoTargets finds every block address that an unconditional jump
// reaches without it being that jump's block's natural fall-through
// successor — the set of labels the structural reduction left as genuine
// goto edges (spec.md §4.7 "Remaining unstructured edges become goto").
func (cg *CodeGenerator) collectGotoTargets(fn *ir.Function) map[uint64]bool {
	targets := make(map[uint64]bool)
	for _, b := range fn.Blocks() {
		term := b.Terminator()
		if term == nil || term.Kind != ir.StmtJump || term.Condition != nil {
			continue
		}
		if term.Then == nil || term.Then.Block == nil {
			continue
		}
		if isNaturalNext(b, term.Then.Block) {
			continue
		}
		targets[term.Then.Block.StartAddr] = true
	}
	return targets
}

// switchIndex recovers the dispatch expression of a switch region's jump
// table by picking out the non-constant operand of the ArrayAccess pattern
// irgen's switch recognizer matched (base + index*stride), falling back to
// the whole table-address expression if the shape isn't the usual one.
func (cg *CodeGenerator) switchIndex(header *structural.Region) *Expr {
	if header == nil || header.Block == nil {
		return nil
	}
	term := header.Block.Terminator()
	if term == nil || term.Then == nil || term.Then.Address == nil {
		return nil
	}
	addr := term.Then.Address
	if addr.Kind != ir.TermDereference {
		return cg.buildExpr(addr)
	}
	if idx := indexTerm(addr.Address); idx != nil {
		return cg.buildExpr(idx)
	}
	return cg.buildExpr(addr.Address)
}

// indexTerm picks the non-constant side out of `constant + (index * constant)`
// or a bare `index * constant`, in either operand order.
func indexTerm(t *ir.Term) *ir.Term {
	if t == nil {
		return nil
	}
	if t.Kind == ir.TermBinary && t.BOp == ir.Mul {
		if t.Left.Kind != ir.TermConstant {
			return t.Left
		}
		if t.Right.Kind != ir.TermConstant {
			return t.Right
		}
		return nil
	}
	if t.Kind != ir.TermBinary || t.BOp != ir.Add {
		return nil
	}
	for _, pair := range [][2]*ir.Term{{t.Left, t.Right}, {t.Right, t.Left}} {
		constSide, otherSide := pair[0], pair[1]
		if constSide.Kind != ir.TermConstant {
			continue
		}
		if idx := indexTerm(otherSide); idx != nil {
			return idx
		}
	}
	return nil
}

func isNaturalNext(b *ir.BasicBlock, target *ir.BasicBlock) bool {
	return b.HasSuccessor && target.HasStartAddr && b.SuccessorAddr == target.StartAddr
}

func labelFor(b *ir.BasicBlock) string {
	return fmt.Sprintf("L_%x", b.StartAddr)
}

// walkRegions concatenates the statements of every top-level region, in
// structural order.
func (cg *CodeGenerator) walkRegions(regions []*structural.Region, fn *ir.Function, gotoTargets map[uint64]bool) []*Stmt {
	var out []*Stmt
	for _, r := range regions {
		out = append(out, cg.regionStmts(r, fn, gotoTargets, false)...)
	}
	return out
}

// regionStmts converts one region into its statement sequence. header
// suppresses re-emitting a block's own terminating Jump, used when that
// Jump's condition was already lifted into the enclosing compound region.
func (cg *CodeGenerator) regionStmts(r *structural.Region, fn *ir.Function, gotoTargets map[uint64]bool, header bool) []*Stmt {
	if r == nil {
		return nil
	}
	switch r.Kind {
	case structural.RegionBlock:
		if r.Block != nil {
			return cg.blockBody(r.Block, fn, gotoTargets, header)
		}
		var out []*Stmt
		out = append(out, cg.regionStmts(r.Body, fn, gotoTargets, false)...)
		out = append(out, cg.regionStmts(r.Then, fn, gotoTargets, false)...)
		return out

	case structural.RegionIfThenElse:
		out := cg.regionStmts(r.Header, fn, gotoTargets, true)
		return append(out, &Stmt{
			Kind: StmtIf,
			Cond: cg.buildExpr(r.Condition),
			Then: cg.regionStmts(r.Then, fn, gotoTargets, false),
			Else: cg.regionStmts(r.Else, fn, gotoTargets, false),
		})

	case structural.RegionIfThen:
		out := cg.regionStmts(r.Header, fn, gotoTargets, true)
		return append(out, &Stmt{
			Kind: StmtIf,
			Cond: cg.buildExpr(r.Condition),
			Then: cg.regionStmts(r.Then, fn, gotoTargets, false),
		})

	case structural.RegionWhile:
		out := cg.regionStmts(r.Header, fn, gotoTargets, true)
		return append(out, &Stmt{
			Kind: StmtWhile,
			Cond: cg.buildExpr(r.Condition),
			Then: cg.regionStmts(r.Body, fn, gotoTargets, false),
		})

	case structural.RegionDoWhile:
		return []*Stmt{{
			Kind: StmtDoWhile,
			Cond: cg.buildExpr(r.Condition),
			Then: cg.regionStmts(r.Body, fn, gotoTargets, true),
		}}

	case structural.RegionSwitch:
		out := cg.regionStmts(r.Header, fn, gotoTargets, true)
		sw := &Stmt{Kind: StmtSwitch, Cond: cg.switchIndex(r.Header)}
		for i, c := range r.Cases {
			sw.Cases = append(sw.Cases, &SwitchCase{
				Value: uint64(i),
				Body:  cg.regionStmts(c, fn, gotoTargets, false),
			})
		}
		return append(out, sw)

	default:
		return nil
	}
}

// blockBody translates one basic block's statements. When header is true,
// the block's own terminating Jump (already lifted into an enclosing
// region's Condition) is suppressed.
func (cg *CodeGenerator) blockBody(b *ir.BasicBlock, fn *ir.Function, gotoTargets map[uint64]bool, header bool) []*Stmt {
	var out []*Stmt
	if b.HasStartAddr && gotoTargets[b.StartAddr] {
		out = append(out, &Stmt{Kind: StmtLabel, Label: labelFor(b)})
	}
	term := b.Terminator()
	for _, s := range b.Statements() {
		if header && s == term && s.Kind == ir.StmtJump {
			continue
		}
		out = append(out, cg.statementStmts(s, b)...)
	}
	return out
}

func (cg *CodeGenerator) statementStmts(s *ir.Statement, b *ir.BasicBlock) []*Stmt {
	switch s.Kind {
	case ir.StmtComment:
		return []*Stmt{{Kind: StmtComment, Text: s.Text}}
	case ir.StmtInlineAssembly:
		return []*Stmt{{Kind: StmtComment, Text: "asm: " + s.Text}}
	case ir.StmtAssignment:
		return []*Stmt{{Kind: StmtAssign, LHS: cg.buildExpr(s.LHS), RHS: cg.buildExpr(s.RHS)}}
	case ir.StmtTouch:
		return nil
	case ir.StmtJump:
		if s.Condition != nil || s.Then == nil || s.Then.Block == nil {
			return nil
		}
		if isNaturalNext(b, s.Then.Block) {
			return nil
		}
		return []*Stmt{{Kind: StmtGoto, Label: labelFor(s.Then.Block)}}
	case ir.StmtCall:
		return []*Stmt{{Kind: StmtExpr, Expr: cg.buildCall(s)}}
	case ir.StmtReturn:
		return []*Stmt{{Kind: StmtReturn, Value: cg.returnValueExpr()}}
	case ir.StmtHalt:
		return []*Stmt{{Kind: StmtExpr, Expr: NewCall("__halt", nil, Void)}}
	default:
		return nil
	}
}

// returnValueExpr names the recovered return-value variable, if the
// function's signature carries one (spec.md §4.9; the actual source
// expression living in that variable at each return site was already
// lifted into ordinary assignments by the statement walk above).
func (cg *CodeGenerator) returnValueExpr() *Expr {
	if cg.returnVar == nil {
		return nil
	}
	return NewVarExpr(cg.returnVar)
}

func (cg *CodeGenerator) buildCall(s *ir.Statement) *Expr {
	target := s.CallTarget
	if target.Kind == ir.TermConstant {
		return NewCall(fmt.Sprintf("sub_%x", target.Value), nil, Void)
	}
	return NewCall("", []*Expr{cg.buildExpr(target)}, Void)
}

// buildExpr recursively translates an ir.Term into an Expr, un-truncating
// redundant extend/truncate chains the type analyzer proved were no-ops
// (spec.md §4.9 "un-truncation of extend chains").
func (cg *CodeGenerator) buildExpr(t *ir.Term) *Expr {
	if t == nil {
		return nil
	}
	switch t.Kind {
	case ir.TermConstant:
		return NewConst(t.Value, cg.intType(t.Size))

	case ir.TermIntrinsic:
		return NewUnknown(intrinsicText(t.Intrinsic))

	case ir.TermMemoryLocationAccess:
		return cg.varExprFor(t)

	case ir.TermDereference:
		addr := cg.buildExpr(t.Address)
		return NewDeref(addr, cg.typeFromDataflow(t))

	case ir.TermUnary:
		operand := cg.buildExpr(t.Operand)
		if (t.UOp == ir.ZeroExtend || t.UOp == ir.SignExtend) && operand.Type != nil && operand.Type.Size >= t.Size {
			return operand
		}
		if t.UOp == ir.Truncate && operand.Type != nil && operand.Type.Size <= t.Size {
			return operand
		}
		return NewUnary(unaryOpSymbol(t.UOp), operand, cg.typeFromDataflow(t))

	case ir.TermBinary:
		left := cg.buildExpr(t.Left)
		right := cg.buildExpr(t.Right)
		return NewBinary(binaryOpSymbol(t.BOp), left, right, cg.typeFromDataflow(t))

	case ir.TermChoice:
		defs := cg.dataflow.Definitions(t.Preferred)
		if !defs.Empty() {
			return cg.buildExpr(t.Preferred)
		}
		return cg.buildExpr(t.Default)

	default:
		return NewUnknown("?")
	}
}

func intrinsicText(k ir.IntrinsicKind) string {
	switch k {
	case ir.IntrinsicReturnAddress:
		return "__return_address()"
	case ir.IntrinsicUndefined:
		return "__undefined"
	case ir.IntrinsicStackFrame:
		return "__stack_frame()"
	default:
		return "__unknown"
	}
}

func (cg *CodeGenerator) varExprFor(t *ir.Term) *Expr {
	loc := cg.dataflow.Location(t)
	if loc.IsNil() {
		loc = t.Location
	}
	return NewVarExpr(cg.varFor(loc))
}

func (cg *CodeGenerator) varFor(loc ir.MemoryLocation) *Var {
	id := cg.variables.VariableID(loc)
	if v, ok := cg.varsByID[id]; ok {
		return v
	}
	v := &Var{Name: cg.nameFor(id), Type: cg.typeForLocation(id)}
	cg.varsByID[id] = v
	if id.Domain == ir.Stack {
		cg.locals = append(cg.locals, v)
	}
	return v
}

func (cg *CodeGenerator) nameFor(id ir.MemoryLocation) string {
	switch {
	case id.Domain == ir.Stack:
		cg.nextLocal++
		return fmt.Sprintf("local_%d", cg.nextLocal)
	case id.Domain == ir.Memory:
		cg.nextGlobal++
		return fmt.Sprintf("dat_%x", id.Offset/8)
	default:
		if cg.RegisterName != nil {
			if name, ok := cg.RegisterName(id.Domain, int(id.Offset), id.Size); ok {
				return name
			}
		}
		cg.nextReg++
		return fmt.Sprintf("reg%d", cg.nextReg)
	}
}

func (cg *CodeGenerator) typeForLocation(id ir.MemoryLocation) *Type {
	if sample, ok := cg.sampleTerm[id]; ok {
		return deriveType(cg.types.TypeOf(sample))
	}
	return cg.intType(id.Size)
}

func (cg *CodeGenerator) typeFromDataflow(t *ir.Term) *Type {
	return deriveType(cg.types.TypeOf(t))
}

func (cg *CodeGenerator) intType(size int) *Type {
	if size <= 0 {
		size = 32
	}
	return Int(size, true)
}

// deriveType maps a recovered ir/types.Type onto a LikeC Type.
func deriveType(t *types.Type) *Type {
	if t == nil {
		return Int(32, true)
	}
	size := t.Size()
	if size == 0 {
		size = 32
	}
	switch {
	case t.IsFloat():
		return Float(size)
	case t.IsPointer():
		return Pointer(deriveType(t.Pointee()))
	default:
		return Int(size, !t.IsUnsigned())
	}
}

func unaryOpSymbol(op ir.UnaryOp) string {
	switch op {
	case ir.Not:
		return "!"
	case ir.Neg:
		return "-"
	case ir.SignExtend, ir.ZeroExtend, ir.Truncate:
		return "(cast)"
	default:
		return "?"
	}
}

func binaryOpSymbol(op ir.BinaryOp) string {
	switch op {
	case ir.Add:
		return "+"
	case ir.Sub:
		return "-"
	case ir.Mul:
		return "*"
	case ir.UDiv, ir.SDiv:
		return "/"
	case ir.URem, ir.SRem:
		return "%"
	case ir.And:
		return "&"
	case ir.Or:
		return "|"
	case ir.Xor:
		return "^"
	case ir.Shl:
		return "<<"
	case ir.Shr, ir.Sar:
		return ">>"
	case ir.Eq:
		return "=="
	case ir.ULt, ir.SLt:
		return "<"
	case ir.ULe, ir.SLe:
		return "<="
	default:
		return "?"
	}
}
