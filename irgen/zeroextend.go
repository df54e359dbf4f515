package irgen

import "github.com/Urethramancer/decompiler/ir"

// ZeroExtend64Pass implements the x86-64 "writing a 32-bit general-purpose
// register zeroes the upper 32 bits of its 64-bit parent" rule as a
// post-IRGen pass over the whole Program, per the open-question decision
// recorded in SPEC_FULL.md §8: the rule is a property of the 64-bit
// register file's encoding, not of any one instruction, so it runs between
// IR generation and dataflow rather than inside the x86 instruction
// analyzer (spec.md §9, §8 end-to-end scenario 6).
//
// For every Assignment whose LHS is a MemoryLocationAccess naming a
// 32-bit-wide general-purpose register at domain-bit-offset 0 within its
// 64-bit family (spec.md §9 "writes to 32-bit register locations at
// domain-bit-offset 0 with size 32"), a companion Assignment writing the
// constant zero into the upper 32 bits (offset+32, size 32) is inserted
// immediately after.
func ZeroExtend64Pass(prog *ir.Program, is64BitRegister func(ir.MemoryLocation) bool) {
	for _, b := range prog.Blocks() {
		b.RewriteStatements(func(s *ir.Statement) []*ir.Statement {
			if s.Kind != ir.StmtAssignment {
				return nil
			}
			if s.LHS.Kind != ir.TermMemoryLocationAccess {
				return nil
			}
			loc := s.LHS.Location
			if loc.Size != 32 || loc.Offset%64 != 0 {
				return nil
			}
			if !is64BitRegister(loc) {
				return nil
			}
			upper := loc
			upper.Offset += 32
			extend := ir.NewAssignment(ir.NewMemoryLocationAccess(upper).AsWrite(), ir.NewConstant(0, 32))
			return []*ir.Statement{s, extend}
		})
	}
}
