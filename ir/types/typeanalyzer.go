package types

import (
	"github.com/Urethramancer/decompiler/ir"
	"github.com/Urethramancer/decompiler/ir/dflow"
)

// TypeAnalyzer drives the union-find type lattice to a fixed point over one
// function's terms (spec.md §4.8), grounded on
// _examples/original_source/src/nc/core/ir/types/TypeAnalyzer.cpp's
// analyze(Function*) / analyze(Term*) / analyze(UnaryOperator*) /
// analyze(BinaryOperator*) overload set, condensed to the operator rules
// spec.md actually names.
type TypeAnalyzer struct {
	dataflow *dflow.Dataflow
	types    map[*ir.Term]*Type
}

// NewTypeAnalyzer creates an analyzer reading term values/definitions from
// df.
func NewTypeAnalyzer(df *dflow.Dataflow) *TypeAnalyzer {
	return &TypeAnalyzer{dataflow: df, types: make(map[*ir.Term]*Type)}
}

// TypeOf returns (creating if necessary) the Type node for term.
func (a *TypeAnalyzer) TypeOf(term *ir.Term) *Type {
	t, ok := a.types[term]
	if !ok {
		t = New()
		t.UpdateSize(term.Size)
		a.types[term] = t
	}
	return t
}

const maxTypeIterations = 64

// Analyze runs the fixed-point loop over every term in fn: first unions
// each read term's type with the types of its reaching definitions (spec.md
// §4.8 "union-find over Type nodes... one per term"), then alternates
// forward and backward sweeps applying each term's operator-specific rule
// until no Type node reports a change (mirrors the original's "forward then
// reverse pass converges faster" comment).
func (a *TypeAnalyzer) Analyze(fn *ir.Function) {
	var terms []*ir.Term
	for _, b := range fn.Blocks() {
		for _, s := range b.Statements() {
			for _, t := range s.Terms() {
				ir.Walk(t, func(term *ir.Term) {
					terms = append(terms, term)
					a.TypeOf(term)
				})
			}
		}
	}

	for _, term := range terms {
		if !term.Access.Has(ir.AccessRead) {
			continue
		}
		defs := a.dataflow.Definitions(term)
		for _, c := range defs.Chunks() {
			for _, def := range c.Definitions {
				a.TypeOf(term).Unify(a.TypeOf(def))
			}
		}
	}

	for iter := 0; iter < maxTypeIterations; iter++ {
		for _, term := range terms {
			a.analyzeTerm(term)
		}
		for i := len(terms) - 1; i >= 0; i-- {
			a.analyzeTerm(terms[i])
		}
		changed := false
		for _, t := range a.types {
			if t.Changed() {
				changed = true
			}
		}
		if !changed {
			return
		}
	}
}

func (a *TypeAnalyzer) analyzeTerm(term *ir.Term) {
	switch term.Kind {
	case ir.TermDereference:
		a.TypeOf(term.Address).MakePointer(a.TypeOf(term))
	case ir.TermUnary:
		a.analyzeUnary(term)
	case ir.TermBinary:
		a.analyzeBinary(term)
	}
}

func (a *TypeAnalyzer) analyzeUnary(term *ir.Term) {
	t := a.TypeOf(term)
	operand := a.TypeOf(term.Operand)

	switch term.UOp {
	case ir.Not:
		operand.MakeInteger()
		t.MakeInteger()
	case ir.Neg:
		operand.MakeInteger()
		t.MakeInteger()
		operand.MakeSigned()
		t.MakeSigned()
	case ir.SignExtend:
		operand.MakeSigned()
	case ir.ZeroExtend:
		if operand.IsSigned() {
			t.MakeUnsigned()
		}
	case ir.Truncate:
		// no constraint
	}
}

func (a *TypeAnalyzer) analyzeBinary(term *ir.Term) {
	t := a.TypeOf(term)
	left := a.TypeOf(term.Left)
	right := a.TypeOf(term.Right)

	if term.BOp.IsComparison() {
		t.MakeInteger()
		if left.IsSigned() || right.IsSigned() {
			left.MakeSigned()
			right.MakeSigned()
		}
		return
	}

	switch term.BOp {
	case ir.Add, ir.Sub:
		a.analyzeAddLike(t, left, right, term)
	default:
		t.MakeInteger()
		left.MakeInteger()
		right.MakeInteger()
	}

	if left.IsUnsigned() || right.IsUnsigned() {
		t.MakeUnsigned()
	}
	if left.IsSigned() && right.IsSigned() {
		t.MakeSigned()
	}
	if t.IsSigned() {
		left.MakeSigned()
		right.MakeSigned()
	}
}

// analyzeAddLike implements spec.md §4.8's pointer-arithmetic inference for
// `+`/`-`: integer+integer stays integer, integer+pointer (either order)
// produces a pointer, and for a pointer result an integer operand makes
// the other operand a pointer while a pointer operand makes the other an
// integer — condensed from
// TypeAnalyzer::analyze(const BinaryOperator*)'s ADD case.
func (a *TypeAnalyzer) analyzeAddLike(t, left, right *Type, term *ir.Term) {
	if left.IsInteger() && right.IsInteger() {
		t.MakeInteger()
	}
	if (left.IsInteger() && right.IsPointer()) || (left.IsPointer() && right.IsInteger()) {
		t.MakePointer(nil)
	}
	if t.IsInteger() {
		left.MakeInteger()
		right.MakeInteger()
	}
	if t.IsPointer() {
		if left.IsInteger() {
			right.MakePointer(nil)
		}
		if right.IsInteger() {
			left.MakePointer(nil)
		}
		if left.IsPointer() {
			right.MakeInteger()
		}
		if right.IsPointer() {
			left.MakeInteger()
		}
		if !left.IsPointer() && !right.IsPointer() {
			rv := a.dataflow.Value(term.Right)
			lv := a.dataflow.Value(term.Left)
			switch {
			case lv.IsConcrete() && lv.Value() >= 4096:
				left.MakePointer(nil)
			case lv.IsConcrete():
				left.MakeInteger()
			case rv.IsConcrete() && rv.Value() >= 4096:
				right.MakePointer(nil)
			case rv.IsConcrete():
				right.MakeInteger()
			}
		}
	}
}
