package core_test

import (
	"testing"

	"github.com/Urethramancer/decompiler/arch/x86"
	"github.com/Urethramancer/decompiler/core"
	"github.com/Urethramancer/decompiler/image"
	"github.com/Urethramancer/decompiler/ir"
)

const codeBase = 0x1000

// newImage builds a minimal single-section image.Image containing code at
// codeBase, for the given architecture/OS, with optional symbols.
func newImage(t *testing.T, arch image.Architecture, os image.OperatingSystem, code []byte, symbols []*image.Symbol) *image.Image {
	t.Helper()
	platform := image.NewPlatform(arch, os, image.LittleEndian)
	section := image.NewSection(".text", codeBase, image.PermRead|image.PermExecute, image.KindCode, code)
	return image.New(platform, []*image.Section{section}, symbols, nil, codeBase)
}

// decompileOne runs the full pipeline over the whole code range and returns
// the FunctionResult for the entry.
func decompileOne(t *testing.T, img *image.Image) *core.FunctionResult {
	t.Helper()
	driver := core.NewDriver()
	ctx := core.NewContext(img, nil, nil)
	analyzer := core.NewMasterAnalyzer(driver)
	end := codeBase + img.Sections().Find(codeBase).Size
	if _, err := analyzer.Decompile(ctx, codeBase, end, codeBase); err != nil {
		t.Fatalf("Decompile: %v (last stage %s)", err, ctx.LastStage)
	}
	fr, ok := ctx.FunctionResultFor(codeBase)
	if !ok {
		t.Fatalf("no function result recorded for entry %#x", codeBase)
	}
	return fr
}

func eaxLocation() ir.MemoryLocation {
	return ir.MemoryLocation{Domain: ir.RegisterDomain(x86.GeneralPurposeDomain), Offset: 0, Size: 32}
}

func raxLocation() ir.MemoryLocation {
	return ir.MemoryLocation{Domain: ir.RegisterDomain(x86.GeneralPurposeDomain), Offset: 0, Size: 64}
}

func rdxLocation() ir.MemoryLocation {
	return ir.MemoryLocation{Domain: ir.RegisterDomain(x86.GeneralPurposeDomain), Offset: 128, Size: 64}
}

// firstAssignment finds the first Assignment statement in fn whose LHS
// overlaps loc, the IR surgery a "read this register's recovered value"
// test needs without hardcoding block addresses.
func firstAssignment(fn *ir.Function, loc ir.MemoryLocation) *ir.Statement {
	for _, b := range fn.Blocks() {
		for _, s := range b.Statements() {
			if s.Kind == ir.StmtAssignment && s.LHS.Kind == ir.TermMemoryLocationAccess && s.LHS.Location.Overlaps(loc) {
				return s
			}
		}
	}
	return nil
}

// Scenario 1 (spec.md §8): push 0x1234; pop eax; ret. Dataflow should give
// eax concrete 0x1234 at ret, and the cdecl32 signature should report eax
// as a return value.
func TestConstantPropagationThroughPushPop(t *testing.T) {
	code := []byte{
		0x68, 0x34, 0x12, 0x00, 0x00, // push 0x1234
		0x58, // pop eax
		0xC3, // ret
	}
	img := newImage(t, image.ArchI386, image.OSWindows, code, nil)
	fr := decompileOne(t, img)

	eax := eaxLocation()
	assign := firstAssignment(fr.Function, eax)
	if assign == nil {
		t.Fatal("no assignment to eax found")
	}
	v := fr.Dataflow.Value(assign.LHS)
	got, ok := v.ConcreteValue()
	if !ok {
		t.Fatalf("eax value not concrete: %+v", v)
	}
	if got != 0x1234 {
		t.Fatalf("eax = %#x, want 0x1234", got)
	}

	found := false
	for _, loc := range fr.Signature.ReturnValues {
		if loc.Overlaps(eax) {
			found = true
		}
	}
	if !found {
		t.Fatalf("signature return values %+v do not include eax", fr.Signature.ReturnValues)
	}
}

// Scenario 3 (spec.md §8): sub esp, 0x10; mov [esp+4], ecx; add esp, 0x10;
// ret. Dataflow should resolve the store's target to the STACK domain.
func TestStackFrameTracking(t *testing.T) {
	code := []byte{
		0x83, 0xEC, 0x10, // sub esp, 0x10
		0x89, 0x4C, 0x24, 0x04, // mov [esp+4], ecx
		0x83, 0xC4, 0x10, // add esp, 0x10
		0xC3, // ret
	}
	img := newImage(t, image.ArchI386, image.OSWindows, code, nil)
	fr := decompileOne(t, img)

	var storeStmt *ir.Statement
	for _, b := range fr.Function.Blocks() {
		for _, s := range b.Statements() {
			if s.Kind == ir.StmtAssignment && s.LHS.Kind == ir.TermDereference && s.LHS.DerefDomain == ir.Stack {
				storeStmt = s
			}
		}
	}
	if storeStmt == nil {
		t.Fatal("no store to a stack-domain dereference found")
	}
	loc := fr.Dataflow.Location(storeStmt.LHS)
	if loc.IsNil() || loc.Domain != ir.Stack {
		t.Fatalf("store location = %+v, want resolved STACK domain", loc)
	}
}

// Scenario 4 (spec.md §8): a PE symbol named "_foo@8" selects stdcall32
// with an 8-byte stack cleanup.
func TestCallingConventionInferenceFromDecoratedSymbol(t *testing.T) {
	img := newImage(t, image.ArchI386, image.OSWindows, []byte{0xC3}, []*image.Symbol{
		{Kind: image.SymbolFunction, Name: "_foo@8", Value: codeBase, HasValue: true},
	})
	driver := core.NewDriver()
	convention := driver.SelectConvention(img, img.Symbols().At(codeBase)[0].Name)
	if convention.Name != "stdcall32" {
		t.Fatalf("convention = %q, want stdcall32", convention.Name)
	}
	if convention.CleanupBytes != 8 {
		t.Fatalf("cleanup bytes = %d, want 8", convention.CleanupBytes)
	}
}

// Scenario 6 (spec.md §8): mov eax, 5 in 64-bit mode implicitly zeroes the
// upper 32 bits of rax, so a subsequent mov rdx, rax yields concrete 5.
func TestX8664ImplicitZeroExtend(t *testing.T) {
	code := []byte{
		0xB8, 0x05, 0x00, 0x00, 0x00, // mov eax, 5
		0x48, 0x89, 0xC2, // mov rdx, rax
		0xC3, // ret
	}
	img := newImage(t, image.ArchX8664, image.OSWindows, code, nil)
	fr := decompileOne(t, img)

	assign := firstAssignment(fr.Function, rdxLocation())
	if assign == nil {
		t.Fatal("no assignment to rdx found")
	}
	v := fr.Dataflow.Value(assign.RHS)
	got, ok := v.ConcreteValue()
	if !ok {
		t.Fatalf("rdx value not concrete: %+v", v)
	}
	if got != 5 {
		t.Fatalf("rdx = %#x, want 5", got)
	}
}
