// MasterAnalyzer drives the fixed pipeline of spec.md §2 / SPEC_FULL.md §4
// over a Context, one stage per method, grounded on
// _examples/original_source/src/nc/core/MasterAnalyzer.h's virtual-method
// stage split (CreateProgram, CreateFunctions, ..., GenerateTree), adapted
// here to one Go method per stage and explicit error returns instead of
// exceptions.
package core

import (
	"errors"
	"fmt"

	"github.com/Urethramancer/decompiler/arch"
	"github.com/Urethramancer/decompiler/ir"
	"github.com/Urethramancer/decompiler/ir/calling"
	"github.com/Urethramancer/decompiler/ir/dflow"
	"github.com/Urethramancer/decompiler/ir/liveness"
	"github.com/Urethramancer/decompiler/ir/structural"
	"github.com/Urethramancer/decompiler/ir/types"
	"github.com/Urethramancer/decompiler/ir/vars"
	"github.com/Urethramancer/decompiler/irgen"
	"github.com/Urethramancer/decompiler/likec"
)

// ErrCancelled is returned when a CancellationToken fires mid-pipeline
// (spec.md §5 "Cancellation"; §7 "Cancelled").
var ErrCancelled = errors.New("core: decompilation cancelled")

// MasterAnalyzer runs the pipeline stages over a Context in the fixed order
// spec.md §2 mandates.
type MasterAnalyzer struct {
	Driver *Driver
}

// NewMasterAnalyzer builds a MasterAnalyzer over d.
func NewMasterAnalyzer(d *Driver) *MasterAnalyzer {
	return &MasterAnalyzer{Driver: d}
}

// Decompile runs every stage over ctx for the single function entered at
// entryAddr, within the image address range [begin, end) used to seed IR
// generation. Returns the recovered likec.Function, or an error (including
// ErrCancelled, leaving ctx.LastStage at the last stage that completed).
func (m *MasterAnalyzer) Decompile(ctx *Context, begin, end, entryAddr uint64) (*likec.Function, error) {
	if err := m.createProgram(ctx, begin, end); err != nil {
		return nil, err
	}
	fn, err := m.createFunction(ctx, entryAddr)
	if err != nil {
		return nil, err
	}
	if ctx.Cancel.Poll() {
		return nil, ErrCancelled
	}

	convention := m.Driver.SelectConvention(ctx.Image, ctx.FunctionName(entryAddr))
	m.createHooks(fn, convention)
	ctx.LastStage = StageHooks

	df := m.dataflowAnalysis(ctx, fn, convention)
	ctx.LastStage = StageDataflow
	if ctx.Cancel.Poll() {
		return nil, ErrCancelled
	}

	live := m.livenessAnalysis(fn, df)
	ctx.LastStage = StageLiveness

	sig := m.reconstructSignature(fn, convention, df)
	ctx.LastStage = StageSignatures
	if ctx.Cancel.Poll() {
		return nil, ErrCancelled
	}

	variables := m.reconstructVariables(fn, df)
	ctx.LastStage = StageVariables

	graph := m.structuralAnalysis(fn)
	ctx.LastStage = StageStructural

	ta := m.reconstructTypes(fn, df)
	ctx.LastStage = StageTypes
	if ctx.Cancel.Poll() {
		return nil, ErrCancelled
	}

	name := ctx.FunctionName(entryAddr)
	astFn := m.generateTree(fn, sig, graph, df, variables, ta, name)
	ctx.LastStage = StageCodeGen

	ctx.Functions = append(ctx.Functions, &FunctionResult{
		Function: fn, Name: name, Dataflow: df, Liveness: live,
		Signature: sig, Variables: variables, Regions: graph, Types: ta, AST: astFn,
	})
	return astFn, nil
}

// createProgram is stage 1: IR generation over [begin, end) (spec.md §2,
// §4.1).
func (m *MasterAnalyzer) createProgram(ctx *Context, begin, end uint64) error {
	logf := func(format string, args ...any) { ctx.Logger.Printf(format, args...) }
	gen, err := m.Driver.GenerateProgram(ctx.Image, begin, end, logf, ctx.Cancel)
	if err != nil {
		return fmt.Errorf("core: create program: %w", err)
	}
	ctx.Program = gen.Generate(begin, end)
	irgen.ZeroExtend64Pass(ctx.Program, m.is64BitGPR(ctx))
	ctx.LastStage = StageProgram
	return nil
}

// is64BitGPR reports whether loc names a 32-bit write into a 64-bit
// general-purpose register family, the predicate irgen.ZeroExtend64Pass
// needs to decide where to inject the companion high-half zeroing write
// (SPEC_FULL.md §8 "x86-64 implicit zero-extend placement").
func (m *MasterAnalyzer) is64BitGPR(ctx *Context) func(ir.MemoryLocation) bool {
	is64 := ctx.Image.Platform.Is64Bit()
	return func(loc ir.MemoryLocation) bool {
		return is64 && loc.Domain.IsRegister()
	}
}

// createFunction is stage 2: isolate the function reachable from entryAddr
// (spec.md §4.1 "Function Isolator").
func (m *MasterAnalyzer) createFunction(ctx *Context, entryAddr uint64) (*ir.Function, error) {
	entry, ok := ctx.Program.BlockAt(entryAddr)
	if !ok {
		return nil, fmt.Errorf("core: no block discovered at entry address %#x", entryAddr)
	}
	fn := ir.NewFunction(ctx.Program, entry)
	ctx.LastStage = StageFunctions
	return fn, nil
}

// createHooks is stage 3a: inject the selected convention's entry-effect
// statements (spec.md §4.2).
func (m *MasterAnalyzer) createHooks(fn *ir.Function, convention *calling.Convention) {
	calling.InjectEnterHooks(fn, convention)
}

// dataflowAnalysis is stage 4 (spec.md §4.3).
func (m *MasterAnalyzer) dataflowAnalysis(ctx *Context, fn *ir.Function, convention *calling.Convention) *dflow.Dataflow {
	var regs *arch.Registers
	if a, ok := m.Driver.Registry.Lookup(ctx.Image.Platform.Arch.String()); ok {
		regs = a.Registers
	}
	df := dflow.NewDataflow()
	analyzer := dflow.NewDataflowAnalyzer(df, regs, convention.StackPointer)
	analyzer.Analyze(fn)
	return analyzer.Dataflow()
}

// livenessAnalysis is stage 5 (spec.md §4.4).
func (m *MasterAnalyzer) livenessAnalysis(fn *ir.Function, df *dflow.Dataflow) *liveness.Liveness {
	return liveness.NewAnalyzer(df).Analyze(fn)
}

// reconstructSignature is stage 6 (spec.md §4.5): the formal argument set is
// every convention-candidate location read before any write reaches it
// within fn; the formal return set is every candidate location with a live
// write reaching every return site.
func (m *MasterAnalyzer) reconstructSignature(fn *ir.Function, convention *calling.Convention, df *dflow.Dataflow) *calling.Signature {
	wasReadBeforeWrite := func(loc ir.MemoryLocation) bool {
		for _, b := range fn.Blocks() {
			for _, s := range b.Statements() {
				for _, t := range s.Terms() {
					found := false
					ir.Walk(t, func(term *ir.Term) {
						if found || term.Access == ir.AccessWrite {
							return
						}
						if df.Location(term).Equal(loc) && df.Definitions(term).Empty() {
							found = true
						}
					})
					if found {
						return true
					}
				}
			}
		}
		return false
	}
	writtenOnEveryReturn := func(loc ir.MemoryLocation) bool {
		rets := fn.ReturnSites()
		if len(rets) == 0 {
			return false
		}
		for _, ret := range rets {
			defs := df.StatementDefinitions(ret)
			if defs.Project(loc).Empty() {
				return false
			}
		}
		return true
	}
	return calling.AnalyzeSignature(fn, convention, wasReadBeforeWrite, writtenOnEveryReturn)
}

// reconstructVariables is stage 7 (spec.md §4.6): two locations are unioned
// whenever some term's resolved location overlaps both (a term observed at
// one bit-range that a dereference or register access crosses).
func (m *MasterAnalyzer) reconstructVariables(fn *ir.Function, df *dflow.Dataflow) *vars.Variables {
	crossingTerms := func(term *ir.Term) []ir.MemoryLocation {
		loc := df.Location(term)
		if loc.IsNil() {
			return nil
		}
		locs := []ir.MemoryLocation{loc}
		for _, c := range df.Definitions(term).Chunks() {
			if !c.Location.Equal(loc) {
				locs = append(locs, c.Location)
			}
		}
		return locs
	}
	return vars.Reconstruct(fn, crossingTerms)
}

// structuralAnalysis is stage 8 (spec.md §4.7).
func (m *MasterAnalyzer) structuralAnalysis(fn *ir.Function) *structural.Graph {
	g := structural.NewGraph(fn)
	g.Reduce()
	return g
}

// reconstructTypes is stage 9 (spec.md §4.8).
func (m *MasterAnalyzer) reconstructTypes(fn *ir.Function, df *dflow.Dataflow) *types.TypeAnalyzer {
	ta := types.NewTypeAnalyzer(df)
	ta.Analyze(fn)
	return ta
}

// generateTree is stage 10, the final pass (spec.md §4.9).
func (m *MasterAnalyzer) generateTree(fn *ir.Function, sig *calling.Signature, graph *structural.Graph, df *dflow.Dataflow, variables *vars.Variables, ta *types.TypeAnalyzer, name string) *likec.Function {
	cg := likec.New(df, variables, ta)
	return cg.Generate(fn, sig, graph, name)
}
