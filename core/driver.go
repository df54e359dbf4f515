package core

import (
	"fmt"

	"github.com/Urethramancer/decompiler/arch"
	"github.com/Urethramancer/decompiler/arch/x86"
	"github.com/Urethramancer/decompiler/image"
	"github.com/Urethramancer/decompiler/ir/calling"
	"github.com/Urethramancer/decompiler/irgen"
)

// Driver selects the architecture back-end for an Image and drives IR
// generation over it (spec.md §2 stage 1 "IR Generator"). Back-ends are
// looked up by architecture name in an arch.Registry rather than hardwired.
type Driver struct {
	Registry *arch.Registry
}

// NewDriver builds a Driver with every architecture back-end the corpus
// supports registered (spec.md §6's {8086, i386, x86-64} set; no ARM
// back-end is registered).
func NewDriver() *Driver {
	reg := arch.NewRegistry()
	x86.RegisterArchitectures(reg)
	return &Driver{Registry: reg}
}

// GenerateProgram looks up the back-end for img's architecture and runs IR
// generation over [begin, end). logf receives diagnostics; cancel is
// polled at instruction granularity (spec.md §5 "Cancellation").
func (d *Driver) GenerateProgram(img *image.Image, begin, end uint64, logf func(string, ...any), cancel *CancellationToken) (*irgen.Generator, error) {
	a, ok := d.Registry.Lookup(img.Platform.Arch.String())
	if !ok {
		return nil, fmt.Errorf("core: no architecture back-end registered for %q", img.Platform.Arch)
	}
	dis := a.NewDisassembler()
	analyzer := x86.NewAnalyzer(a.Bits, a.Registers)
	pollFn := func() bool { return cancel.Poll() }
	gen := irgen.New(img, dis, analyzer, logf)
	gen.Cancel = pollFn
	return gen, nil
}

// SelectConvention picks the calling convention for a function by its
// symbol name (for the stdcall "@N" suffix) and the image's platform. It
// passes no ret-imm16 information to x86.SelectConvention, so a function
// is never classified as stdcall from a `ret imm16` terminator (spec.md
// §4.2 "calling convention... selected
// per function from a small fixed set keyed by architecture bit-width and
// decorated symbol name").
func (d *Driver) SelectConvention(img *image.Image, symbolName string) *calling.Convention {
	bits := 32
	if a, ok := d.Registry.Lookup(img.Platform.Arch.String()); ok {
		bits = a.Bits
	}
	retImm16, hasRetImm := 0, false
	isWindows := img.Platform.OS == image.OSWindows
	return x86.SelectConvention(bits, symbolName, retImm16, hasRetImm, isWindows)
}
