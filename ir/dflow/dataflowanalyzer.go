package dflow

import (
	"log"

	"github.com/Urethramancer/decompiler/arch"
	"github.com/Urethramancer/decompiler/ir"
)

// maxIterations bounds the fixed-point loop; exceeding it is a "Budget
// exhaustion" condition: non-fatal, logged, analysis continues with
// whatever partial results were computed (spec.md §7 "Budget exhaustion").
const maxIterations = 30

// DataflowAnalyzer runs the iterated abstract-interpretation pass described
// in spec.md §4.3, filling in a Dataflow result table for one function.
// Grounded on
// _examples/original_source/src/nc/core/ir/dflow/DataflowAnalyzer.cpp, with
// the teacher's dispatch-by-switch style from cpu/execute.go.
type DataflowAnalyzer struct {
	dataflow     *Dataflow
	registers    *arch.Registers
	stackPointer ir.MemoryLocation
}

// NewDataflowAnalyzer creates an analyzer writing results into dataflow.
// registers lets future term-evaluation rules resolve register-domain
// memory locations back to named registers for diagnostics. stackPointer
// names the convention's stack-pointer register, the location whose
// reaching definitions a Call must leave untouched (spec.md §4.2) and whose
// IntrinsicStackFrame seed the Dereference case below resolves against.
func NewDataflowAnalyzer(dataflow *Dataflow, registers *arch.Registers, stackPointer ir.MemoryLocation) *DataflowAnalyzer {
	return &DataflowAnalyzer{dataflow: dataflow, registers: registers, stackPointer: stackPointer}
}

// Dataflow returns the result table this analyzer populates.
func (a *DataflowAnalyzer) Dataflow() *Dataflow { return a.dataflow }

// Analyze runs the fixed-point loop over fn's blocks: joins the reaching
// definitions of each block's predecessors, executes its statements, and
// repeats until no block's outgoing definitions change across an entire
// pass, or the iteration budget is exhausted.
func (a *DataflowAnalyzer) Analyze(fn *ir.Function) {
	blocks := fn.Blocks()
	preds := fn.Predecessors()
	out := make(map[uint64]ReachingDefinitions, len(blocks))

	for iter := 0; iter < maxIterations; iter++ {
		changed := false
		for _, b := range blocks {
			if !b.HasStartAddr {
				continue
			}
			entry := a.joinPredecessors(b, preds, out)
			exit := entry
			a.executeBlock(b, &exit)
			prev, had := out[b.StartAddr]
			if !had || !prev.Equal(exit) {
				changed = true
			}
			out[b.StartAddr] = exit
		}
		if !changed && iter > 0 {
			return
		}
	}
	log.Printf("dflow: fixed-point did not converge for function at entry %#x within %d iterations", fn.EntryAddr(), maxIterations)
}

func (a *DataflowAnalyzer) joinPredecessors(b *ir.BasicBlock, preds map[uint64][]*ir.BasicBlock, out map[uint64]ReachingDefinitions) ReachingDefinitions {
	var merged ReachingDefinitions
	for _, p := range preds[b.StartAddr] {
		if !p.HasStartAddr {
			continue
		}
		if defs, ok := out[p.StartAddr]; ok {
			merged.Merge(defs)
		}
	}
	return merged
}

func (a *DataflowAnalyzer) executeBlock(b *ir.BasicBlock, defs *ReachingDefinitions) {
	for _, s := range b.Statements() {
		a.Execute(s, defs)
	}
}

// Execute evaluates one statement against the reaching definitions visible
// on entry, updating them in place to reflect the statement's writes/kills,
// and recording the statement's entry snapshot in the result table.
func (a *DataflowAnalyzer) Execute(s *ir.Statement, defs *ReachingDefinitions) {
	a.dataflow.SetStatementDefinitions(s, *defs)

	switch s.Kind {
	case ir.StmtAssignment:
		rhsValue := a.computeValue(s.RHS, defs)
		loc := a.computeLocation(s.LHS, defs)
		// The LHS term itself is never read; it is the Definition other
		// reads join through, so it carries the RHS's value rather than
		// one computed from its own (nonexistent) children.
		a.dataflow.SetValue(s.LHS, rhsValue)
		if !loc.IsNil() {
			a.handleWrite(s.LHS, loc, defs)
		}
	case ir.StmtTouch:
		if s.TouchKind == ir.TouchKill {
			loc := a.computeLocation(s.TouchTerm, defs)
			if !loc.IsNil() {
				a.handleKill(loc, defs)
			}
		} else {
			a.computeValue(s.TouchTerm, defs)
		}
	case ir.StmtJump:
		if s.Condition != nil {
			a.computeValue(s.Condition, defs)
		}
		if s.Then != nil && s.Then.Address != nil {
			a.computeValue(s.Then.Address, defs)
		}
		if s.Else != nil && s.Else.Address != nil {
			a.computeValue(s.Else.Address, defs)
		}
	case ir.StmtCall:
		a.computeValue(s.CallTarget, defs)
		a.handleCallEffects(defs)
	case ir.StmtReturn, ir.StmtHalt, ir.StmtComment, ir.StmtInlineAssembly:
		// no terms to evaluate
	}
}

// handleCallEffects approximates a call's effect on the caller's dataflow
// state conservatively: everything is unknown after a call, since the
// callee's writes are unknown at this point in the pipeline (the signature
// analyzer refines this later, spec.md §4.5) — except the convention's
// stack pointer, which a well-behaved callee restores, so its pre-call
// reaching definitions are replayed rather than dropped.
func (a *DataflowAnalyzer) handleCallEffects(defs *ReachingDefinitions) {
	spDefs := defs.Project(a.stackPointer)
	defs.Clear()
	defs.Merge(spDefs)
}

// isTracked reports whether reaching definitions should be maintained for
// loc: every concrete, non-nil location is tracked (spec.md §4.3 tracks
// registers, stack slots, and flat memory uniformly).
func (a *DataflowAnalyzer) isTracked(loc ir.MemoryLocation) bool {
	return !loc.IsNil()
}

func (a *DataflowAnalyzer) handleWrite(term *ir.Term, loc ir.MemoryLocation, defs *ReachingDefinitions) {
	if !a.isTracked(loc) {
		return
	}
	defs.AddDefinition(loc, term)
}

func (a *DataflowAnalyzer) handleKill(loc ir.MemoryLocation, defs *ReachingDefinitions) {
	if !a.isTracked(loc) {
		return
	}
	defs.KillDefinitions(loc)
}

// computeLocation resolves the memory location a term reads or writes, if
// it has one (MemoryLocationAccess and Dereference terms do; everything
// else does not).
func (a *DataflowAnalyzer) computeLocation(term *ir.Term, defs *ReachingDefinitions) ir.MemoryLocation {
	var loc ir.MemoryLocation
	switch term.Kind {
	case ir.TermMemoryLocationAccess:
		loc = term.Location
	case ir.TermDereference:
		addrValue := a.computeValue(term.Address, defs)
		if off, ok := addrValue.StackOffsetValue(); ok {
			loc = ir.MemoryLocation{Domain: ir.Stack, Offset: off * 8, Size: term.Size}
		} else if addrValue.IsConcrete() {
			loc = ir.MemoryLocation{Domain: term.DerefDomain, Offset: int64(addrValue.Value()) * 8, Size: term.Size}
		}
	}
	a.dataflow.SetLocation(term, loc)
	return loc
}

// computeValue evaluates term's abstract value under the given reaching
// definitions, recording it (and the term's reaching-definitions set, for
// read terms) in the result table, and recursing into subterms first
// (spec.md §4.3 "bottom-up evaluation").
func (a *DataflowAnalyzer) computeValue(term *ir.Term, defs *ReachingDefinitions) AbstractValue {
	var v AbstractValue
	switch term.Kind {
	case ir.TermConstant:
		v = Concrete(term.Size, term.Value)
	case ir.TermIntrinsic:
		if term.Intrinsic == ir.IntrinsicStackFrame {
			v = StackOffset(term.Size, 0)
		} else {
			v = Top(term.Size)
		}
	case ir.TermMemoryLocationAccess:
		loc := a.computeLocation(term, defs)
		v = a.valueFromDefinitions(term, loc, defs)
	case ir.TermDereference:
		loc := a.computeLocation(term, defs)
		if loc.IsNil() {
			v = Top(term.Size)
		} else {
			v = a.valueFromDefinitions(term, loc, defs)
		}
	case ir.TermUnary:
		operand := a.computeValue(term.Operand, defs)
		v = EvalUnary(term.UOp, operand, term.Size)
	case ir.TermBinary:
		left := a.computeValue(term.Left, defs)
		right := a.computeValue(term.Right, defs)
		v = Eval(term.BOp, left, right)
	case ir.TermChoice:
		preferredDefs := a.termDefinitions(term.Preferred, defs)
		if !preferredDefs.Empty() {
			v = a.computeValue(term.Preferred, defs)
		} else {
			v = a.computeValue(term.Default, defs)
		}
	default:
		v = Top(term.Size)
	}
	a.dataflow.SetValue(term, v)
	return v
}

// termDefinitions computes the reaching definitions relevant to a read
// term without overwriting its recorded value, used by Choice evaluation
// to probe "does the preferred alternative have any reaching definition
// here" (spec.md §3 "Choice").
func (a *DataflowAnalyzer) termDefinitions(term *ir.Term, defs *ReachingDefinitions) ReachingDefinitions {
	switch term.Kind {
	case ir.TermMemoryLocationAccess, ir.TermDereference:
		loc := a.computeLocation(term, defs)
		if loc.IsNil() {
			return ReachingDefinitions{}
		}
		return defs.Project(loc)
	default:
		return ReachingDefinitions{}
	}
}

// valueFromDefinitions merges the values recorded at every definition
// reaching loc, recording the projected reaching-definitions set for term
// (the per-term "which writes could this read be seeing" table used by
// liveness, signature, and variable reconstruction analyses).
func (a *DataflowAnalyzer) valueFromDefinitions(term *ir.Term, loc ir.MemoryLocation, defs *ReachingDefinitions) AbstractValue {
	projected := defs.Project(loc)
	a.dataflow.SetDefinitions(term, projected)
	if projected.Empty() {
		return Top(term.Size)
	}
	v := AbstractValue{size: term.Size}
	first := true
	for _, c := range projected.Chunks() {
		for _, def := range c.Definitions {
			dv := a.dataflow.Value(def)
			if !c.Location.Equal(loc) {
				dv = a.realign(dv, c.Location, loc)
			}
			if first {
				v = dv.Resize(term.Size)
				first = false
			} else {
				v = Join(v, dv.Resize(term.Size))
			}
		}
	}
	return v
}

// realign projects a value known at definedLoc onto the differently
// positioned useLoc being read, sliding definedLoc's bit pattern by the
// signed difference between the two base offsets rather than assuming the
// definition always sits below the use: a companion zero-extension write
// above the use's base (irgen's ZeroExtend64Pass) needs shifting up just as
// much as a narrower sub-register write below it needs shifting down. Uses
// the raw, non-filling shiftLeft/shiftRight (not Shl/ShrLogical) because
// bits vacated by the shift are genuinely unknown here, not "definitely
// zero" — valueFromDefinitions OR-composes the result with whatever other
// chunk owns those bit positions, and marking them zero would corrupt that
// composition.
func (a *DataflowAnalyzer) realign(v AbstractValue, definedLoc, useLoc ir.MemoryLocation) AbstractValue {
	diff := definedLoc.Offset - useLoc.Offset
	var zero, one uint64
	if diff >= 0 {
		zero = shiftLeft(v.zeroBits, int(diff))
		one = shiftLeft(v.oneBits, int(diff))
	} else {
		zero = shiftRight(v.zeroBits, int(-diff))
		one = shiftRight(v.oneBits, int(-diff))
	}
	mask := bitMask(useLoc.Size)
	return AbstractValue{size: useLoc.Size, zeroBits: zero & mask, oneBits: one & mask}
}
