// Package arch defines the core's view of an architecture back-end: the
// Instruction type produced by disassembly, register-domain tables, calling
// conventions, and the Architecture/Registry abstraction tying them
// together. Concrete decoders (disassemblers, instruction analyzers) are
// external collaborators per spec.md §6; arch/x86 is the one fully wired
// plug shipped here for testability.
package arch

// Instruction is a decoded machine instruction: its address, size, and the
// raw encoded bytes. Immutable after disassembly (spec.md §3).
type Instruction struct {
	Addr  uint64
	Size  uint8
	Bytes []byte

	// Mnemonic and a human-readable operand string, purely for diagnostics
	// (InlineAssembly statements, logging); the IR generator does not parse
	// these back out, it works from the architecture-specific decoded form
	// the instruction analyzer retains internally.
	Mnemonic string
	Operands string
}

// End returns the address immediately following this instruction, used to
// materialize fall-through successor blocks (spec.md §4.1 step 4).
func (i *Instruction) End() uint64 {
	return i.Addr + uint64(i.Size)
}

// Disassembler produces a single Instruction at a given address, or reports
// that the bytes do not decode to a valid instruction. This is the
// out-of-scope "disassembler front-end" of spec.md §6, consumed by IR
// generation; arch/x86 supplies one concrete implementation.
type Disassembler interface {
	// DisassembleOne decodes one instruction starting at addr, reading from
	// buf (which must contain at least the architecture's maximum
	// instruction length, or the remaining image bytes if shorter).
	DisassembleOne(addr uint64, buf []byte) (*Instruction, bool)
}

// DisassembleRange repeatedly calls d.DisassembleOne across [begin, end),
// resyncing on decode failure by advancing one byte, matching spec.md §6's
// batch disassembly contract ("advancing pc by one byte on failure to
// resync"). cancel is polled once per instruction.
func DisassembleRange(d Disassembler, read func(addr uint64, out []byte), begin, end uint64, cancel func() bool, yield func(*Instruction)) {
	const maxInstrLen = 16
	pc := begin
	for pc < end {
		if cancel != nil && cancel() {
			return
		}
		buf := make([]byte, maxInstrLen)
		n := end - pc
		if n > maxInstrLen {
			n = maxInstrLen
		}
		read(pc, buf[:n])
		inst, ok := d.DisassembleOne(pc, buf[:n])
		if !ok {
			pc++
			continue
		}
		yield(inst)
		pc = inst.End()
	}
}
