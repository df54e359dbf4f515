// Package liveness implements the backwards liveness analysis of spec.md
// §4.4: seeding terms that are observably consumed, then propagating
// liveness to every term that reaches one of them, so later passes (code
// generation, variable reconstruction) can ignore provably dead writes
// without the IR generator ever deleting them (spec.md §4.4 "Prune dead
// terms from later analyses but not from the IR").
package liveness

import (
	"github.com/Urethramancer/decompiler/ir"
	"github.com/Urethramancer/decompiler/ir/dflow"
)

// Liveness records, for each term, whether it is live: consumed by some
// observable effect or by another live term via a reaching definition.
type Liveness struct {
	live map[*ir.Term]bool
}

// IsLive reports whether term was found to be live. Terms never visited
// (including ones pruned from the dataflow's own bookkeeping) are dead.
func (l *Liveness) IsLive(term *ir.Term) bool {
	return l.live[term]
}

// Analyzer runs the backwards fixed-point over one function's terms using a
// function's Dataflow results for the reaching-definitions links between
// uses and their defining writes.
type Analyzer struct {
	dataflow *dflow.Dataflow
}

// NewAnalyzer creates an Analyzer reading reaching-definitions from df.
func NewAnalyzer(df *dflow.Dataflow) *Analyzer {
	return &Analyzer{dataflow: df}
}

// Analyze computes liveness for every term in fn.
//
// Seeds (spec.md §4.4 "Seed live terms"): (a) jump conditions and jump/call
// target address terms, (b) every Dereference on either side of an
// Assignment (a value observably written to or read from memory), (c) every
// term read by a Touch statement, whatever its domain. Return statements
// seed nothing. Propagation: a term is live iff seeded or some live
// term's reaching definitions include it (spec.md §4.4 "user... consuming
// its value via a reaching definition").
func (a *Analyzer) Analyze(fn *ir.Function) *Liveness {
	l := &Liveness{live: make(map[*ir.Term]bool)}
	var worklist []*ir.Term

	seed := func(t *ir.Term) {
		if t == nil || l.live[t] {
			return
		}
		l.live[t] = true
		worklist = append(worklist, t)
	}

	for _, b := range fn.Blocks() {
		for _, s := range b.Statements() {
			switch s.Kind {
			case ir.StmtJump:
				if s.Condition != nil {
					seed(s.Condition)
				}
				if s.Then != nil && s.Then.Address != nil {
					seed(s.Then.Address)
				}
				if s.Else != nil && s.Else.Address != nil {
					seed(s.Else.Address)
				}
			case ir.StmtCall:
				seed(s.CallTarget)
			case ir.StmtTouch:
				if s.TouchKind == ir.TouchRead {
					seed(s.TouchTerm)
				}
			case ir.StmtAssignment:
				ir.Walk(s.RHS, func(t *ir.Term) {
					if t.Kind == ir.TermDereference {
						seed(t)
					}
				})
				if s.LHS.Kind == ir.TermDereference {
					seed(s.LHS)
				}
			}
		}
	}

	for len(worklist) > 0 {
		t := worklist[len(worklist)-1]
		worklist = worklist[:len(worklist)-1]

		defs := a.dataflow.Definitions(t)
		for _, c := range defs.Chunks() {
			for _, def := range c.Definitions {
				seed(def)
				if stmt := def.Statement(); stmt != nil && stmt.Kind == ir.StmtAssignment {
					seed(stmt.RHS)
				}
			}
		}
		for _, child := range t.Children() {
			seed(child)
		}
	}

	return l
}

// Prune removes from defs every (location, term) pair whose defining term
// is dead, using ReachingDefinitions.FilterOut (spec.md §6 supplemented
// feature: liveness-driven pruning reuses the same predicate-based removal
// dataflow already needed for kill semantics, rather than a bespoke
// traversal).
func (l *Liveness) Prune(defs *dflow.ReachingDefinitions) {
	defs.FilterOut(func(_ ir.MemoryLocation, term *ir.Term) bool {
		return !l.IsLive(term)
	})
}
