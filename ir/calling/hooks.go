package calling

import "github.com/Urethramancer/decompiler/ir"

// InjectEnterHooks splices convention's entry-effect statements (spec.md
// §4.2 "Per function entry, inject a synthesized Assignment for each
// convention-defined 'enter' effect") ahead of fn's own first instruction,
// so later passes see them as ordinary statements rather than special
// cases. Statements are cloned per call so the same Convention value can
// be reused across every function that selects it.
func InjectEnterHooks(fn *ir.Function, convention *Convention) {
	if fn.Entry == nil || len(convention.EnterStatements) == 0 {
		return
	}
	clones := make([]*ir.Statement, len(convention.EnterStatements))
	for i, s := range convention.EnterStatements {
		clones[i] = cloneEnterStatement(s)
	}
	fn.Entry.Prepend(clones...)
}

// cloneEnterStatement deep-copies an Assignment template so repeated
// injection across functions doesn't share term identity (term identity is
// load-bearing for dataflow's per-term result tables, spec.md §9 "Cyclic
// IR graphs").
func cloneEnterStatement(s *ir.Statement) *ir.Statement {
	switch s.Kind {
	case ir.StmtAssignment:
		return ir.NewAssignment(cloneTerm(s.LHS), cloneTerm(s.RHS))
	case ir.StmtTouch:
		return ir.NewTouch(cloneTerm(s.TouchTerm), s.TouchKind)
	default:
		return s
	}
}

func cloneTerm(t *ir.Term) *ir.Term {
	if t == nil {
		return nil
	}
	switch t.Kind {
	case ir.TermConstant:
		return ir.NewConstant(t.Value, t.Size)
	case ir.TermIntrinsic:
		return ir.NewIntrinsic(t.Intrinsic, t.Size)
	case ir.TermMemoryLocationAccess:
		return ir.NewMemoryLocationAccess(t.Location)
	case ir.TermDereference:
		return ir.NewDereference(cloneTerm(t.Address), t.DerefDomain, t.Size)
	case ir.TermUnary:
		return ir.NewUnary(t.UOp, cloneTerm(t.Operand), t.Size)
	case ir.TermBinary:
		return ir.NewBinary(t.BOp, cloneTerm(t.Left), cloneTerm(t.Right), t.Size)
	case ir.TermChoice:
		return ir.NewChoice(cloneTerm(t.Preferred), cloneTerm(t.Default), t.Size)
	default:
		return t
	}
}
