package ir

// Program is the whole-binary control-flow graph: every basic block
// discovered during IR generation, keyed by start address, plus the set of
// addresses observed as call targets (spec.md §3 "Program"). It is built
// once by the IR generator and is stable thereafter, though statements
// inside blocks may still be edited by later passes (spec.md §3
// "Lifecycles").
type Program struct {
	blocks        map[uint64]*BasicBlock
	order         []uint64 // insertion order, for deterministic iteration
	calledAddrs   map[uint64]bool
}

// NewProgram creates an empty Program.
func NewProgram() *Program {
	return &Program{
		blocks:      make(map[uint64]*BasicBlock),
		calledAddrs: make(map[uint64]bool),
	}
}

// AddBlock registers a control-point block, keyed by its start address.
// Replacing an existing block at the same address is allowed (the IR
// generator's jump-target resolution pass may split or refine blocks).
func (p *Program) AddBlock(b *BasicBlock) {
	if !b.HasStartAddr {
		return
	}
	if _, exists := p.blocks[b.StartAddr]; !exists {
		p.order = append(p.order, b.StartAddr)
	}
	p.blocks[b.StartAddr] = b
}

// BlockAt returns the block starting at addr, if one has been discovered.
func (p *Program) BlockAt(addr uint64) (*BasicBlock, bool) {
	b, ok := p.blocks[addr]
	return b, ok
}

// Blocks returns every block, in discovery order.
func (p *Program) Blocks() []*BasicBlock {
	out := make([]*BasicBlock, 0, len(p.order))
	for _, addr := range p.order {
		out = append(out, p.blocks[addr])
	}
	return out
}

// MarkCalled records addr as a discovered called address, the entry-point
// seed set for function isolation (spec.md §4.1, §2 stage 2).
func (p *Program) MarkCalled(addr uint64) {
	p.calledAddrs[addr] = true
}

// CalledAddresses returns every address discovered as a call target.
func (p *Program) CalledAddresses() []uint64 {
	out := make([]uint64, 0, len(p.calledAddrs))
	for addr := range p.calledAddrs {
		out = append(out, addr)
	}
	return out
}

// IsCalled reports whether addr was observed as a call target.
func (p *Program) IsCalled(addr uint64) bool {
	return p.calledAddrs[addr]
}
