package irgen

import (
	"testing"

	"github.com/Urethramancer/decompiler/arch"
	"github.com/Urethramancer/decompiler/image"
	"github.com/Urethramancer/decompiler/ir"
)

// fakeDisassembler decodes one-byte instructions: 0x90 = NOP, 0xC3 = RET
// (terminator), anything else fails to decode.
type fakeDisassembler struct{}

func (fakeDisassembler) DisassembleOne(addr uint64, buf []byte) (*arch.Instruction, bool) {
	if len(buf) == 0 {
		return nil, false
	}
	switch buf[0] {
	case 0x90, 0xC3:
		return &arch.Instruction{Addr: addr, Size: 1, Bytes: buf[:1]}, true
	default:
		return nil, false
	}
}

// fakeAnalyzer emits a Return statement for RET (0xC3) and nothing for NOP.
type fakeAnalyzer struct{}

func (fakeAnalyzer) Analyze(inst *arch.Instruction, block *ir.BasicBlock) error {
	if inst.Bytes[0] == 0xC3 {
		return block.PushStatement(ir.NewReturn())
	}
	return nil
}

func newTestImage(code []byte) *image.Image {
	plat := image.NewPlatform(image.ArchI386, image.OSUnknown, image.LittleEndian)
	sec := image.NewSection(".text", 0x1000, image.PermRead|image.PermExecute, image.KindCode, code)
	return image.New(plat, []*image.Section{sec}, nil, nil, 0x1000)
}

func TestGenerateMaterializesFallThrough(t *testing.T) {
	img := newTestImage([]byte{0x90, 0x90, 0xC3})
	g := New(img, fakeDisassembler{}, fakeAnalyzer{}, nil)
	prog := g.Generate(0x1000, 0x1003)

	first, ok := prog.BlockAt(0x1000)
	if !ok {
		t.Fatalf("expected a block at 0x1000")
	}
	term := first.Terminator()
	if term == nil || term.Kind != ir.StmtJump {
		t.Fatalf("expected a synthetic fall-through jump, got %v", term)
	}
	if term.Then.Block == nil || term.Then.Block.StartAddr != 0x1001 {
		t.Fatalf("expected fall-through to 0x1001, got %+v", term.Then)
	}

	last, ok := prog.BlockAt(0x1002)
	if !ok {
		t.Fatalf("expected a block at 0x1002")
	}
	if term := last.Terminator(); term == nil || term.Kind != ir.StmtReturn {
		t.Fatalf("expected the RET block's own terminator to be Return, got %v", term)
	}
}

func TestMatchArrayAccessFindsBaseAndStride(t *testing.T) {
	index := ir.NewMemoryLocationAccess(ir.MemoryLocation{Domain: 0, Offset: 0, Size: 32})
	scaled := ir.NewBinary(ir.Mul, index, ir.NewConstant(4, 32), 32)
	addr := ir.NewBinary(ir.Add, ir.NewConstant(0x2000, 32), scaled, 32)

	base, stride, ok := matchArrayAccess(addr)
	if !ok || base != 0x2000 || stride != 4 {
		t.Fatalf("expected base=0x2000 stride=4, got base=%#x stride=%d ok=%v", base, stride, ok)
	}
}
