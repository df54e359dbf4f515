package calling

import "github.com/Urethramancer/decompiler/ir"

// Signature is the recovered calling convention for a single function:
// which of the convention's candidate argument locations are actually read
// before being written (formal arguments), and which return-value
// locations are written on every return path (spec.md §4.5).
type Signature struct {
	Arguments    []ir.MemoryLocation
	ReturnValues []ir.MemoryLocation
}

// entryReads reports whether loc's incoming value is read before any write
// to it, making it a formal argument candidate. It returns
// wasReadBeforeWrite(loc) as is; fn is not inspected. The predicate comes
// from the caller's dataflow results, which keeps this package free of a
// dependency on ir/dflow.
func entryReads(fn *ir.Function, loc ir.MemoryLocation, wasReadBeforeWrite func(ir.MemoryLocation) bool) bool {
	return wasReadBeforeWrite(loc)
}

// AnalyzeSignature computes fn's Signature against convention, using
// wasReadBeforeWrite (memory location -> bool) to decide whether a
// candidate argument location's value reaches some use before any write in
// the function, and writtenOnEveryReturn (memory location -> bool) to
// decide whether a candidate return-value location holds a value written
// on every one of fn's return paths (spec.md §4.5: "determine which
// calling-convention-defined argument registers are read by the entry
// without being written first... and which return-value registers are
// written on every return path").
func AnalyzeSignature(fn *ir.Function, convention *Convention, wasReadBeforeWrite, writtenOnEveryReturn func(ir.MemoryLocation) bool) *Signature {
	sig := &Signature{}
	for _, loc := range convention.ArgumentLocations() {
		if entryReads(fn, loc, wasReadBeforeWrite) {
			sig.Arguments = append(sig.Arguments, loc)
		}
	}
	for _, loc := range convention.ReturnValues {
		if writtenOnEveryReturn(loc) {
			sig.ReturnValues = append(sig.ReturnValues, loc)
		}
	}
	return sig
}

// ActualArguments computes the actual-argument set observed at one call
// site: the intersection of locations with a live write reaching the call
// (liveWritesBeforeCall) and the callee's formal argument set (or the
// convention's default set if callee is nil), per spec.md §4.5 "For each
// call site, the actual argument set is the intersection of live writes
// before the call with the callee's formal set".
func ActualArguments(callee *Signature, convention *Convention, liveWritesBeforeCall func(ir.MemoryLocation) bool) []ir.MemoryLocation {
	candidates := convention.ArgumentLocations()
	if callee != nil {
		candidates = callee.Arguments
	}
	var out []ir.MemoryLocation
	for _, loc := range candidates {
		if liveWritesBeforeCall(loc) {
			out = append(out, loc)
		}
	}
	return out
}
