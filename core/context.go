// Package core owns the Context every pass mutates, the Driver that wires
// an architecture, a parsed Image, and the pipeline together, and the
// MasterAnalyzer that runs the fixed stage order of spec.md §2/SPEC_FULL.md
// §4. Grounded on
// _examples/original_source/src/nc/core/Context.h/.cpp and MasterAnalyzer.h
// (the per-analysis-result optional-member / virtual-stage-method shape),
// translated to Go as explicit maps keyed by *ir.Function plus a Stage enum
// a caller can introspect after a Cancelled error (SPEC_FULL.md §6 item 6).
package core

import (
	"log"

	"github.com/Urethramancer/decompiler/image"
	"github.com/Urethramancer/decompiler/ir"
	"github.com/Urethramancer/decompiler/ir/calling"
	"github.com/Urethramancer/decompiler/ir/dflow"
	"github.com/Urethramancer/decompiler/ir/liveness"
	"github.com/Urethramancer/decompiler/ir/structural"
	"github.com/Urethramancer/decompiler/ir/types"
	"github.com/Urethramancer/decompiler/ir/vars"
	"github.com/Urethramancer/decompiler/likec"
)

// Stage names the last pipeline stage to have completed successfully,
// surfaced so a caller can tell how far decompilation got after a
// Cancelled error (spec.md §5 "the Context is left with whatever the
// previous pass produced"; SPEC_FULL.md §6 item 6).
type Stage int

// Recognized stages, in pipeline order (spec.md §2).
const (
	StageNone Stage = iota
	StageProgram
	StageFunctions
	StageHooks
	StageDataflow
	StageLiveness
	StageSignatures
	StageVariables
	StageStructural
	StageTypes
	StageCodeGen
)

func (s Stage) String() string {
	names := [...]string{
		"none", "program", "functions", "hooks", "dataflow", "liveness",
		"signatures", "variables", "structural", "types", "codegen",
	}
	if int(s) < len(names) {
		return names[s]
	}
	return "unknown-stage"
}

// FunctionResult bundles every per-function analysis result the pipeline
// produces, addressed by the function's entry address so results survive a
// Context being queried after the fact.
type FunctionResult struct {
	Function  *ir.Function
	Name      string
	Dataflow  *dflow.Dataflow
	Liveness  *liveness.Liveness
	Signature *calling.Signature
	Variables *vars.Variables
	Regions   *structural.Graph
	Types     *types.TypeAnalyzer
	AST       *likec.Function
}

// Context owns every entity produced during one decompilation job, tree-
// shaped ownership with stable handles for cross-references (spec.md §3
// "All entities are owned by the Context for the duration of
// decompilation"). It is built once per job and is never shared across
// concurrently-running jobs (spec.md §5 "the data graph of a single Context
// is mutated by exactly one thread at a time").
type Context struct {
	Image  *image.Image
	Logger *log.Logger

	Program   *ir.Program
	Functions []*FunctionResult

	LastStage Stage

	Cancel *CancellationToken
}

// NewContext constructs a Context over a parsed Image. A nil logger
// discards diagnostics (invalid instructions, budget exhaustion); a nil
// cancel token never cancels.
func NewContext(img *image.Image, logger *log.Logger, cancel *CancellationToken) *Context {
	if logger == nil {
		logger = log.New(discard{}, "", 0)
	}
	return &Context{Image: img, Logger: logger, Cancel: cancel}
}

// discard is an io.Writer that drops everything written to it, used as the
// default Logger sink when the caller doesn't want diagnostics (mirrors the
// teacher's pattern of defaulting to a harmless no-op rather than nil-
// checking at every call site).
type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

// FunctionResultFor returns the FunctionResult for the function whose entry
// is at addr, if one has been computed.
func (c *Context) FunctionResultFor(addr uint64) (*FunctionResult, bool) {
	for _, fr := range c.Functions {
		if fr.Function.EntryAddr() == addr {
			return fr, true
		}
	}
	return nil, false
}

// FunctionName implements MasterAnalyzer::getFunctionName's naming seam
// (SPEC_FULL.md §6 item 4): the symbol covering the entry address if one
// exists, else a synthetic "sub_<address>" name.
func (c *Context) FunctionName(addr uint64) string {
	if sym, ok := c.Image.Symbols().FunctionAt(addr); ok && sym.Name != "" {
		return sym.Name
	}
	return subName(addr)
}

func subName(addr uint64) string {
	const hexDigits = "0123456789abcdef"
	if addr == 0 {
		return "sub_0"
	}
	var buf [16]byte
	i := len(buf)
	for addr > 0 {
		i--
		buf[i] = hexDigits[addr&0xf]
		addr >>= 4
	}
	return "sub_" + string(buf[i:])
}
