// Package calling implements calling-convention hooks and the signature
// analyzer of spec.md §4.2 ("Calling-Convention Hooks") and §4.5
// ("Signature Analyzer"). A Convention names the registers and stack slots
// a platform's ABI uses for arguments and return values; concrete
// architectures (arch/x86) register one or more.
//
// Grounded on
// _examples/original_source/src/nc/arch/arm/CallingConventions.cpp and
// _examples/original_source/src/nc/arch/x86/CallingConventions.cpp.
package calling

import "github.com/Urethramancer/decompiler/ir"

// ArgumentGroup is one alternative set of locations an argument may occupy
// (e.g. "the Nth integer argument is in a register, or on the stack if all
// integer-argument registers are exhausted" — modeled here as a single flat
// group per convention; conventions needing per-slot alternatives register
// multiple groups in order).
type ArgumentGroup struct {
	Locations []ir.MemoryLocation
}

// Convention describes one platform ABI: where the stack pointer lives,
// where arguments and return values are passed, and the IR statements to
// splice in at function entry/exit to make implicit ABI effects explicit
// (e.g. ARM's link register capturing the return address).
type Convention struct {
	Name string

	StackPointer      ir.MemoryLocation
	FirstArgOffset    int64
	ArgumentAlignment int

	ArgumentGroups []ArgumentGroup
	ReturnValues   []ir.MemoryLocation

	EnterStatements []*ir.Statement

	// CleanupBytes is the number of stack bytes the callee pops on return
	// (a `ret imm16` operand), 0 for caller-cleans-up conventions like
	// cdecl (spec.md §4.2, §8 scenario 4 "stack-arguments-size = 8 bytes").
	CleanupBytes int
}

// NewConvention creates an empty, named Convention.
func NewConvention(name string) *Convention {
	return &Convention{Name: name}
}

// SetStackPointer records the location of the stack-pointer register.
func (c *Convention) SetStackPointer(loc ir.MemoryLocation) *Convention {
	c.StackPointer = loc
	return c
}

// SetFirstArgumentOffset records the stack offset (in bits) of the first
// stack-passed argument, relative to the stack pointer at function entry.
func (c *Convention) SetFirstArgumentOffset(offset int64) *Convention {
	c.FirstArgOffset = offset
	return c
}

// SetArgumentAlignment records the bit alignment of stack-passed arguments.
func (c *Convention) SetArgumentAlignment(bits int) *Convention {
	c.ArgumentAlignment = bits
	return c
}

// AddArgumentGroup appends one argument-register group, in calling order.
func (c *Convention) AddArgumentGroup(locs ...ir.MemoryLocation) *Convention {
	c.ArgumentGroups = append(c.ArgumentGroups, ArgumentGroup{Locations: locs})
	return c
}

// AddReturnValueLocation appends a location that may carry a return value.
func (c *Convention) AddReturnValueLocation(loc ir.MemoryLocation) *Convention {
	c.ReturnValues = append(c.ReturnValues, loc)
	return c
}

// AddEnterStatement appends a statement materializing an implicit ABI
// effect at function entry (e.g. "lr := return-address intrinsic").
func (c *Convention) AddEnterStatement(s *ir.Statement) *Convention {
	c.EnterStatements = append(c.EnterStatements, s)
	return c
}

// ArgumentLocations flattens every registered argument group into a single
// ordered list, the default argument set used when a callee's actual
// signature has not yet been recovered (spec.md §4.5 "or the default
// convention set if callee unknown").
func (c *Convention) ArgumentLocations() []ir.MemoryLocation {
	var out []ir.MemoryLocation
	for _, g := range c.ArgumentGroups {
		out = append(out, g.Locations...)
	}
	return out
}
