package dflow

import "github.com/Urethramancer/decompiler/ir"

// Dataflow holds the results of dataflow analysis for one function: every
// read term's abstract value, its associated memory location (if any), the
// reaching definitions visible at each read term, and the reaching
// definitions visible on entry to each statement (spec.md §3 "Dataflow").
// Grounded on
// _examples/original_source/src/nc/core/ir/dflow/Dataflow.h.
type Dataflow struct {
	termValue     map[*ir.Term]AbstractValue
	termLocation  map[*ir.Term]ir.MemoryLocation
	termDefs      map[*ir.Term]ReachingDefinitions
	statementDefs map[*ir.Statement]ReachingDefinitions
}

// NewDataflow creates an empty results table.
func NewDataflow() *Dataflow {
	return &Dataflow{
		termValue:     make(map[*ir.Term]AbstractValue),
		termLocation:  make(map[*ir.Term]ir.MemoryLocation),
		termDefs:      make(map[*ir.Term]ReachingDefinitions),
		statementDefs: make(map[*ir.Statement]ReachingDefinitions),
	}
}

// Value returns the abstract value computed for term, or the fully unknown
// value of term's size if none was recorded.
func (d *Dataflow) Value(term *ir.Term) AbstractValue {
	if v, ok := d.termValue[term]; ok {
		return v
	}
	return Top(term.Size)
}

// SetValue records term's abstract value.
func (d *Dataflow) SetValue(term *ir.Term, v AbstractValue) {
	d.termValue[term] = v
}

// Location returns the memory location term resolves to, or the nil
// location if term names no trackable storage cell (e.g. a Constant).
func (d *Dataflow) Location(term *ir.Term) ir.MemoryLocation {
	return d.termLocation[term]
}

// SetLocation records the memory location term resolves to.
func (d *Dataflow) SetLocation(term *ir.Term, loc ir.MemoryLocation) {
	d.termLocation[term] = loc
}

// Definitions returns the reaching definitions visible at a read term: the
// set of writes that may be the source of the value term observes.
func (d *Dataflow) Definitions(term *ir.Term) ReachingDefinitions {
	return d.termDefs[term]
}

// SetDefinitions records the reaching definitions visible at a read term.
func (d *Dataflow) SetDefinitions(term *ir.Term, defs ReachingDefinitions) {
	d.termDefs[term] = defs
}

// StatementDefinitions returns the reaching definitions visible on entry to
// stmt, the snapshot the fixed-point iteration joins across predecessors.
func (d *Dataflow) StatementDefinitions(stmt *ir.Statement) ReachingDefinitions {
	return d.statementDefs[stmt]
}

// SetStatementDefinitions records the reaching definitions visible on entry
// to stmt.
func (d *Dataflow) SetStatementDefinitions(stmt *ir.Statement, defs ReachingDefinitions) {
	d.statementDefs[stmt] = defs
}
