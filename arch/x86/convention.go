// Convention selection for x86/x86-64 (spec.md §4.2): cdecl32/stdcall32 for
// 32-bit, System V/Microsoft64 for 64-bit, cdecl16 for 16-bit real mode.
//
// Grounded on
// _examples/original_source/src/nc/arch/x86/CallingConventions.cpp's
// convention table and X86ArchitectureFactory's OS-based convention
// selection.
package x86

import (
	"strconv"
	"strings"

	"github.com/Urethramancer/decompiler/ir"
	"github.com/Urethramancer/decompiler/ir/calling"
)

func regLoc(domain ir.Domain, offset, size int) ir.MemoryLocation {
	return ir.MemoryLocation{Domain: domain, Offset: int64(offset), Size: size}
}

// gpr32/gpr64loc index into the gpr64 family order (RAX, RCX, RDX, RBX,
// RSP, RBP, RSI, RDI, R8..R15); each family is 64 bits wide starting at
// index*64.
func gpr32(index int) ir.MemoryLocation {
	return regLoc(ir.RegisterDomain(GeneralPurposeDomain), index*64, 32)
}

func gpr64loc(index int) ir.MemoryLocation {
	return regLoc(ir.RegisterDomain(GeneralPurposeDomain), index*64, 64)
}

// Cdecl32Convention builds the x86-32 cdecl convention: all arguments on
// the stack, caller cleans up, EAX/EDX:EAX return value.
func Cdecl32Convention() *calling.Convention {
	c := calling.NewConvention("cdecl32").
		SetStackPointer(gpr32(4)).
		SetFirstArgumentOffset(32). // return address occupies the first 32 bits
		SetArgumentAlignment(32).
		AddArgumentGroup(stackSlot(32, 0)).
		AddArgumentGroup(stackSlot(32, 32)).
		AddArgumentGroup(stackSlot(32, 64)).
		AddReturnValueLocation(gpr32(0)). // EAX
		AddReturnValueLocation(gpr32(2))  // EDX (high half of 64-bit results)
	c.AddEnterStatement(stackFrameEnter(c.StackPointer))
	return c
}

// Stdcall32Convention builds the x86-32 stdcall convention: same argument
// passing as cdecl32, but the callee cleans argCleanupBytes off the stack
// on return. The count is recorded in CleanupBytes only; the instruction
// analyzer's RET handling emits a plain Return and does not adjust the
// stack pointer by an immediate operand.
func Stdcall32Convention(argCleanupBytes int) *calling.Convention {
	c := Cdecl32Convention()
	c.Name = "stdcall32"
	c.CleanupBytes = argCleanupBytes
	return c
}

// AMD64Convention builds the System V AMD64 convention: integer arguments
// in RDI, RSI, RDX, RCX, R8, R9 then the stack; RAX return value.
func AMD64Convention() *calling.Convention {
	c := calling.NewConvention("amd64-sysv").
		SetStackPointer(gpr64loc(4)).
		SetFirstArgumentOffset(64).
		SetArgumentAlignment(64).
		AddArgumentGroup(gpr64loc(7)).  // RDI
		AddArgumentGroup(gpr64loc(6)).  // RSI
		AddArgumentGroup(gpr64loc(2)).  // RDX
		AddArgumentGroup(gpr64loc(1)).  // RCX
		AddArgumentGroup(gpr64loc(8)).  // R8
		AddArgumentGroup(gpr64loc(9)).  // R9
		AddReturnValueLocation(gpr64loc(0)). // RAX
		AddReturnValueLocation(gpr64loc(2))  // RDX
	c.AddEnterStatement(stackFrameEnter(c.StackPointer))
	return c
}

// Microsoft64Convention builds the Microsoft x64 convention: integer
// arguments in RCX, RDX, R8, R9, then the stack; RAX return value.
func Microsoft64Convention() *calling.Convention {
	c := calling.NewConvention("microsoft64").
		SetStackPointer(gpr64loc(4)).
		SetFirstArgumentOffset(64 + 4*64). // shadow space for the 4 register args
		SetArgumentAlignment(64).
		AddArgumentGroup(gpr64loc(1)). // RCX
		AddArgumentGroup(gpr64loc(2)). // RDX
		AddArgumentGroup(gpr64loc(8)). // R8
		AddArgumentGroup(gpr64loc(9)). // R9
		AddReturnValueLocation(gpr64loc(0))
	c.AddEnterStatement(stackFrameEnter(c.StackPointer))
	return c
}

// Cdecl16Convention builds the 16-bit real-mode cdecl convention used for
// 8086 targets (AAPCS-equivalent default per spec.md §4.2 "For 16-bit:
// cdecl16").
func Cdecl16Convention() *calling.Convention {
	c := calling.NewConvention("cdecl16").
		SetStackPointer(regLoc(ir.RegisterDomain(GeneralPurposeDomain), 4*64, 16)).
		SetFirstArgumentOffset(16).
		SetArgumentAlignment(16).
		AddArgumentGroup(stackSlot(16, 0)).
		AddArgumentGroup(stackSlot(16, 16)).
		AddReturnValueLocation(regLoc(ir.RegisterDomain(GeneralPurposeDomain), 0, 16))
	c.AddEnterStatement(stackFrameEnter(c.StackPointer))
	return c
}

// stackFrameEnter builds the entry-hook assignment that seeds sp with the
// stack-offset-0 intrinsic, the concrete base the dataflow analyzer's
// stack-offset tracking walks pushes, pops, and esp/rsp arithmetic from
// (spec.md §4.3).
func stackFrameEnter(sp ir.MemoryLocation) *ir.Statement {
	return ir.NewAssignment(ir.NewMemoryLocationAccess(sp), ir.NewIntrinsic(ir.IntrinsicStackFrame, sp.Size))
}

// stackSlot names a STACK-domain memory location offsetBits past the
// return address, the uniform representation the dataflow analyzer's
// stack-offset tracking resolves actual call-site arguments to.
func stackSlot(size int, offsetBits int64) ir.MemoryLocation {
	return ir.MemoryLocation{Domain: ir.Stack, Offset: offsetBits, Size: size}
}

// SelectConvention implements spec.md §4.2's convention-selection rule:
// for x86-32, a symbol name suffix "@N" or a `ret imm16` terminator selects
// stdcall32 with the named cleanup size; otherwise cdecl32. For x86-64,
// the caller supplies isWindows (Microsoft64 vs AMD64 SysV). For 16-bit,
// cdecl16 unconditionally.
func SelectConvention(bits int, symbolName string, retImm16 int, hasRetImm bool, isWindows bool) *calling.Convention {
	switch bits {
	case 16:
		return Cdecl16Convention()
	case 64:
		if isWindows {
			return Microsoft64Convention()
		}
		return AMD64Convention()
	default: // 32
		if n, ok := stdcallSuffix(symbolName); ok {
			return Stdcall32Convention(n)
		}
		if hasRetImm {
			return Stdcall32Convention(retImm16)
		}
		return Cdecl32Convention()
	}
}

// stdcallSuffix extracts N from a PE stdcall-decorated symbol name of the
// form "_foo@N" (spec.md §4.2, §8 scenario 4).
func stdcallSuffix(name string) (int, bool) {
	idx := strings.LastIndexByte(name, '@')
	if idx < 0 || idx == len(name)-1 {
		return 0, false
	}
	n, err := strconv.Atoi(name[idx+1:])
	if err != nil {
		return 0, false
	}
	return n, true
}
