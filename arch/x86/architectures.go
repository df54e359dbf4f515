package x86

import "github.com/Urethramancer/decompiler/arch"

// RegisterArchitectures wires the three x86 processor modes spec.md §6
// names ("8086", "i386", "x86-64") into reg, each sharing the same
// overlapping register table (NewRegisters) and producing a
// mode-appropriate Disassembler. core.Driver looks architectures up by
// image.Platform.Arch.String(), which spells these names identically.
func RegisterArchitectures(reg *arch.Registry) {
	regs := NewRegisters()
	reg.Register(&arch.Architecture{
		Name: "8086", Registers: regs, Bits: 16,
		NewDisassembler: func() arch.Disassembler { return NewDisassembler(16) },
	})
	reg.Register(&arch.Architecture{
		Name: "i386", Registers: regs, Bits: 32,
		NewDisassembler: func() arch.Disassembler { return NewDisassembler(32) },
	})
	reg.Register(&arch.Architecture{
		Name: "x86-64", Registers: regs, Bits: 64,
		NewDisassembler: func() arch.Disassembler { return NewDisassembler(64) },
	})
}
