// Package x86 wires golang.org/x/arch/x86/x86asm into the arch.Disassembler
// interface and provides an instruction analyzer translating the decoded
// opcode subset spec.md §8's end-to-end scenarios exercise into IR,
// register tables for 8086/i386/x86-64, and calling-convention selection
// for stdcall/cdecl/SysV/Microsoft64.
//
// Grounded on _examples/golint-fixer-exp/cmd/bin2ll/ll.go and
// cmd/bin2asm/header.go's use of an x86asm fork, and on
// _examples/original_source/src/nc/arch/x86/X86Registers.h/.cpp,
// X86InstructionAnalyzer.cpp, and X86CallingConventions.cpp.
package x86

import "github.com/Urethramancer/decompiler/arch"

// GeneralPurposeDomain is the register-domain id for x86's integer general
// purpose registers (RAX/EAX/AX/AL and family all alias into this one
// domain with overlapping offset ranges, mirroring MemoryLocation overlap).
const GeneralPurposeDomain arch.RegisterDomain = 0

// FlagsDomain is the register-domain id for the EFLAGS/RFLAGS bit register.
const FlagsDomain arch.RegisterDomain = 1

// gpr64 names the 64-bit integer registers in x86asm.Reg enumeration order
// (RAX, RCX, RDX, RBX, RSP, RBP, RSI, RDI, R8..R15).
var gpr64 = []string{
	"RAX", "RCX", "RDX", "RBX", "RSP", "RBP", "RSI", "RDI",
	"R8", "R9", "R10", "R11", "R12", "R13", "R14", "R15",
}

// NewRegisters builds the overlapping x86 register table: for each of the
// 16 integer register families it registers the 64-, 32- and 16-bit views
// as overlapping Register entries sharing one domain and base offset, plus
// an 8-bit (low byte) view for the first four families only (AL/CL/DL/BL),
// plus EFLAGS in its own single-bit-resolution
// domain. 32-bit-only builds simply never resolve the upper 8 families'
// names; the table itself is architecture-width-agnostic.
func NewRegisters() *arch.Registers {
	r := arch.NewRegisters()
	for i, name64 := range gpr64 {
		offset := i * 64
		r.Add(&arch.Register{Domain: GeneralPurposeDomain, Name: name64, Offset: offset, Size: 64})
		r.Add(&arch.Register{Domain: GeneralPurposeDomain, Name: "E" + name64[1:], Offset: offset, Size: 32})
		r.Add(&arch.Register{Domain: GeneralPurposeDomain, Name: name64[1:], Offset: offset, Size: 16})
		if i < 4 {
			// AL/CL/DL/BL: low byte of AX/CX/DX/BX.
			r.Add(&arch.Register{Domain: GeneralPurposeDomain, Name: name64[1:2] + "L", Offset: offset, Size: 8})
		}
	}
	r.Add(&arch.Register{Domain: FlagsDomain, Name: "RFLAGS", Offset: 0, Size: 64})
	r.Add(&arch.Register{Domain: FlagsDomain, Name: "EFLAGS", Offset: 0, Size: 32})
	// Individual status flags, named bits within EFLAGS/RFLAGS (standard
	// x86 bit positions), used by the instruction analyzer's condition-code
	// emission and by Jcc condition-term construction.
	r.Add(&arch.Register{Domain: FlagsDomain, Name: "CF", Offset: 0, Size: 1})
	r.Add(&arch.Register{Domain: FlagsDomain, Name: "PF", Offset: 2, Size: 1})
	r.Add(&arch.Register{Domain: FlagsDomain, Name: "AF", Offset: 4, Size: 1})
	r.Add(&arch.Register{Domain: FlagsDomain, Name: "ZF", Offset: 6, Size: 1})
	r.Add(&arch.Register{Domain: FlagsDomain, Name: "SF", Offset: 7, Size: 1})
	r.Add(&arch.Register{Domain: FlagsDomain, Name: "OF", Offset: 11, Size: 1})
	return r
}

// StackPointerLocation returns the general-purpose-domain memory location
// for the stack pointer register at the given operand size (32 for
// ESP/x86-32, 64 for RSP/x86-64).
func StackPointerLocation(size int) arch.Register {
	return arch.Register{Domain: GeneralPurposeDomain, Name: spName(size), Offset: 4 * 64, Size: size}
}

func spName(size int) string {
	switch size {
	case 64:
		return "RSP"
	case 16:
		return "SP"
	default:
		return "ESP"
	}
}

// Flag memory locations, exported for the instruction analyzer and calling
// convention code.
var (
	CF = arch.Register{Domain: FlagsDomain, Name: "CF", Offset: 0, Size: 1}
	PF = arch.Register{Domain: FlagsDomain, Name: "PF", Offset: 2, Size: 1}
	AF = arch.Register{Domain: FlagsDomain, Name: "AF", Offset: 4, Size: 1}
	ZF = arch.Register{Domain: FlagsDomain, Name: "ZF", Offset: 6, Size: 1}
	SF = arch.Register{Domain: FlagsDomain, Name: "SF", Offset: 7, Size: 1}
	OF = arch.Register{Domain: FlagsDomain, Name: "OF", Offset: 11, Size: 1}
)
