package x86

import (
	"fmt"

	"golang.org/x/arch/x86/x86asm"

	"github.com/Urethramancer/decompiler/arch"
)

// Disassembler decodes x86/x86-64 machine code via x86asm.Decode,
// implementing arch.Disassembler (spec.md §6 "disassembler front-end").
type Disassembler struct {
	// Mode is the processor mode in bits: 16, 32, or 64.
	Mode int
}

// NewDisassembler creates a Disassembler for the given processor mode.
func NewDisassembler(mode int) *Disassembler {
	return &Disassembler{Mode: mode}
}

// DisassembleOne implements arch.Disassembler.
func (d *Disassembler) DisassembleOne(addr uint64, buf []byte) (*arch.Instruction, bool) {
	inst, err := x86asm.Decode(buf, d.Mode)
	if err != nil || inst.Len == 0 {
		return nil, false
	}
	return &arch.Instruction{
		Addr:     addr,
		Size:     uint8(inst.Len),
		Bytes:    append([]byte(nil), buf[:inst.Len]...),
		Mnemonic: inst.Op.String(),
		Operands: fmt.Sprintf("%v", inst.Args),
	}, true
}

// Decode re-decodes the instruction at inst.Addr from its stored bytes,
// returning the full x86asm.Inst the InstructionAnalyzer needs (arch's own
// Instruction type keeps the raw bytes and diagnostic strings, not the
// decoded operands).
func Decode(inst *arch.Instruction, mode int) (x86asm.Inst, error) {
	return x86asm.Decode(inst.Bytes, mode)
}
