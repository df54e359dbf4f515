package ir

import "fmt"

// BasicBlock is an ordered sequence of statements with an optional start
// address and successor address (spec.md §3). A block with a start address
// is a control point that may be the target of a jump.
type BasicBlock struct {
	StartAddr     uint64
	HasStartAddr  bool
	SuccessorAddr uint64
	HasSuccessor  bool

	statements []*Statement
}

// NewBasicBlock creates an empty block with no start address (a synthetic
// block, e.g. one built purely to hold hook-injected statements).
func NewBasicBlock() *BasicBlock {
	return &BasicBlock{}
}

// NewControlPoint creates a block that is a valid jump target.
func NewControlPoint(addr uint64) *BasicBlock {
	return &BasicBlock{StartAddr: addr, HasStartAddr: true}
}

// SetSuccessorAddr records the address of the instruction following this
// block's last one, used to materialize fall-through successors (spec.md
// §4.1 step 4).
func (b *BasicBlock) SetSuccessorAddr(addr uint64) {
	b.SuccessorAddr = addr
	b.HasSuccessor = true
}

// Statements returns the block's statements in order.
func (b *BasicBlock) Statements() []*Statement {
	return b.statements
}

// PushStatement appends a statement, enforcing the "at most one terminator,
// and if present it is last" invariant (spec.md §3).
func (b *BasicBlock) PushStatement(s *Statement) error {
	if len(b.statements) > 0 {
		last := b.statements[len(b.statements)-1]
		if last.IsTerminator() {
			return fmt.Errorf("basic block %s: cannot append statement after terminator %s", b.Label(), last.Kind)
		}
	}
	s.block = b
	b.statements = append(b.statements, s)
	return nil
}

// Prepend inserts statements at the front of the block, before any existing
// ones, without disturbing the "terminator is last" invariant (used by
// calling-convention entry hooks to splice implicit ABI effects ahead of
// the function's own first instruction, spec.md §4.2).
func (b *BasicBlock) Prepend(stmts ...*Statement) {
	for _, s := range stmts {
		s.block = b
	}
	b.statements = append(append([]*Statement{}, stmts...), b.statements...)
}

// RewriteStatements replaces each statement s with rewrite(s), or leaves it
// in place if rewrite returns nil. Used by post-IRGen passes (e.g.
// irgen.ZeroExtend64Pass) that splice extra statements after an existing
// one without otherwise disturbing block order.
func (b *BasicBlock) RewriteStatements(rewrite func(*Statement) []*Statement) {
	var out []*Statement
	changed := false
	for _, s := range b.statements {
		if repl := rewrite(s); repl != nil {
			changed = true
			for _, r := range repl {
				r.block = b
			}
			out = append(out, repl...)
		} else {
			out = append(out, s)
		}
	}
	if changed {
		b.statements = out
	}
}

// Terminator returns the block's terminating statement, if it has one.
func (b *BasicBlock) Terminator() *Statement {
	if len(b.statements) == 0 {
		return nil
	}
	last := b.statements[len(b.statements)-1]
	if last.IsTerminator() {
		return last
	}
	return nil
}

// Label returns a human-readable identifier for diagnostics.
func (b *BasicBlock) Label() string {
	if b.HasStartAddr {
		return fmt.Sprintf("0x%x", b.StartAddr)
	}
	return "<synthetic>"
}

// IsEmpty reports whether the block has no statements.
func (b *BasicBlock) IsEmpty() bool {
	return len(b.statements) == 0
}
