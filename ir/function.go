package ir

// Function is a subgraph of the Program rooted at a single entry block,
// containing every block reachable from the entry without crossing a Call
// statement (spec.md §3 "Function").
type Function struct {
	Entry *BasicBlock
	Name  string

	blocks map[uint64]*BasicBlock
	order  []uint64
}

// NewFunction builds a Function by traversing prog starting at entry,
// following Jump targets but not Call targets (the isolation rule of
// spec.md §4.1 "Function Isolator").
func NewFunction(prog *Program, entry *BasicBlock) *Function {
	f := &Function{Entry: entry, blocks: make(map[uint64]*BasicBlock)}
	if entry == nil {
		return f
	}
	visited := make(map[uint64]bool)
	var stack []*BasicBlock
	stack = append(stack, entry)
	for len(stack) > 0 {
		b := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if b.HasStartAddr {
			if visited[b.StartAddr] {
				continue
			}
			visited[b.StartAddr] = true
			f.order = append(f.order, b.StartAddr)
			f.blocks[b.StartAddr] = b
		}
		for _, succ := range successorBlocks(b) {
			if succ.HasStartAddr && visited[succ.StartAddr] {
				continue
			}
			stack = append(stack, succ)
		}
	}
	return f
}

// successorBlocks returns the resolved block successors of b's terminator,
// excluding Call targets (a call transfers to another function, not a
// region of this one).
func successorBlocks(b *BasicBlock) []*BasicBlock {
	term := b.Terminator()
	if term == nil {
		return nil
	}
	var out []*BasicBlock
	switch term.Kind {
	case StmtJump:
		if term.Then != nil {
			if term.Then.Block != nil {
				out = append(out, term.Then.Block)
			}
			if term.Then.Table != nil {
				for _, e := range term.Then.Table.Entries {
					if e.Block != nil {
						out = append(out, e.Block)
					}
				}
			}
		}
		if term.Else != nil && term.Else.Block != nil {
			out = append(out, term.Else.Block)
		}
	case StmtReturn, StmtHalt:
		// no successors
	}
	return out
}

// Blocks returns every block in this function, in discovery order.
func (f *Function) Blocks() []*BasicBlock {
	out := make([]*BasicBlock, 0, len(f.order))
	for _, addr := range f.order {
		out = append(out, f.blocks[addr])
	}
	return out
}

// Contains reports whether addr names a block belonging to this function.
func (f *Function) Contains(addr uint64) bool {
	_, ok := f.blocks[addr]
	return ok
}

// EntryAddr returns the function's entry address, or 0 if the entry block
// is synthetic (should not happen for isolated functions).
func (f *Function) EntryAddr() uint64 {
	if f.Entry != nil && f.Entry.HasStartAddr {
		return f.Entry.StartAddr
	}
	return 0
}

// CallSites returns every Call statement reachable within this function,
// used by the signature analyzer to inspect actual-argument sets at each
// site (spec.md §4.5).
func (f *Function) CallSites() []*Statement {
	var calls []*Statement
	for _, b := range f.Blocks() {
		for _, s := range b.Statements() {
			if s.Kind == StmtCall {
				calls = append(calls, s)
			}
		}
	}
	return calls
}

// ReturnSites returns every Return statement reachable within this
// function, used by the signature analyzer to intersect return-value
// writes across all exits (spec.md §4.5).
func (f *Function) ReturnSites() []*Statement {
	var rets []*Statement
	for _, b := range f.Blocks() {
		if term := b.Terminator(); term != nil && term.Kind == StmtReturn {
			rets = append(rets, term)
		}
	}
	return rets
}

// Predecessors computes, for every block in the function, its direct
// predecessor blocks. Used by dataflow's join-of-predecessors and by
// structural analysis's region matching.
func (f *Function) Predecessors() map[uint64][]*BasicBlock {
	preds := make(map[uint64][]*BasicBlock)
	for _, b := range f.Blocks() {
		for _, succ := range successorBlocks(b) {
			if succ.HasStartAddr {
				preds[succ.StartAddr] = append(preds[succ.StartAddr], b)
			}
		}
	}
	return preds
}

// Successors returns the resolved successor blocks of b within this
// function's graph (exported wrapper over successorBlocks).
func (f *Function) Successors(b *BasicBlock) []*BasicBlock {
	return successorBlocks(b)
}
