// Package image describes the input binary: its sections, symbols,
// relocations, and target platform. It is the core's abstraction over a
// parsed executable, consumed (not produced) by the decompilation pipeline;
// concrete parsers live under input/.
package image

// Image is an immutable description of the input binary, built once by a
// Parser and read-only for the rest of decompilation (spec.md §3
// "Lifecycles").
type Image struct {
	Platform    *Platform
	sections    *Sections
	symbols     *Symbols
	relocations *Relocations
	EntryPoint  uint64
}

// New constructs an Image.
func New(platform *Platform, sections []*Section, symbols []*Symbol, relocations []*Relocation, entry uint64) *Image {
	return &Image{
		Platform:    platform,
		sections:    NewSections(sections),
		symbols:     NewSymbols(symbols),
		relocations: NewRelocations(relocations),
		EntryPoint:  entry,
	}
}

// Sections returns the image's sections.
func (im *Image) Sections() *Sections { return im.sections }

// Symbols returns the image's symbols.
func (im *Image) Symbols() *Symbols { return im.symbols }

// Relocations returns the image's relocations.
func (im *Image) Relocations() *Relocations { return im.relocations }

// ReadByte reads a single byte at addr using the fallback chain: relocation
// override → section bytes → zero (spec.md §3 "Image", §7 "degrade to
// conservative defaults"). A relocation's presence at addr does not change
// the byte value returned here (relocations describe reference targets, not
// literal bytes); it exists so callers distinguish "this byte is really
// data" from "this byte is a relocated reference" via HasRelocation.
func (im *Image) ReadByte(addr uint64) byte {
	if s := im.sections.Find(addr); s != nil {
		if b, ok := s.ReadByte(addr); ok {
			return b
		}
	}
	return 0
}

// HasRelocation reports whether addr carries a relocation of the given
// target size, and returns it.
func (im *Image) HasRelocation(addr uint64, size int) (*Relocation, bool) {
	reloc, ok := im.relocations.At(addr)
	if !ok || reloc.Size != size {
		return nil, false
	}
	return reloc, true
}

// ReadBytes fills out with bytes starting at addr, using the same fallback
// chain as ReadByte per-byte (section bytes, zero past end-of-section or
// outside any section entirely).
func (im *Image) ReadBytes(addr uint64, out []byte) {
	for i := range out {
		out[i] = 0
	}
	if s := im.sections.Find(addr); s != nil {
		s.ReadBytes(addr, out)
		return
	}
	// addr may straddle a section boundary; fall back to per-byte reads.
	for i := range out {
		out[i] = im.ReadByte(addr + uint64(i))
	}
}

// ReadUint16 reads a little/big-endian 16-bit value per the platform's
// memory-domain byte order.
func (im *Image) ReadUint16(addr uint64) uint16 {
	var b [2]byte
	im.ReadBytes(addr, b[:])
	if im.Platform.ByteOrder(DomainMemory) == BigEndian {
		return uint16(b[0])<<8 | uint16(b[1])
	}
	return uint16(b[1])<<8 | uint16(b[0])
}

// ReadUint32 reads a 32-bit value per the platform's memory byte order.
func (im *Image) ReadUint32(addr uint64) uint32 {
	var b [4]byte
	im.ReadBytes(addr, b[:])
	if im.Platform.ByteOrder(DomainMemory) == BigEndian {
		return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
	}
	return uint32(b[3])<<24 | uint32(b[2])<<16 | uint32(b[1])<<8 | uint32(b[0])
}

// ReadUint64 reads a 64-bit value per the platform's memory byte order.
func (im *Image) ReadUint64(addr uint64) uint64 {
	lo := im.ReadUint32(addr)
	hi := im.ReadUint32(addr + 4)
	if im.Platform.ByteOrder(DomainMemory) == BigEndian {
		return uint64(lo)<<32 | uint64(hi)
	}
	return uint64(hi)<<32 | uint64(lo)
}

// ReadPointer reads an address-sized value (4 or 8 bytes depending on the
// platform) at addr.
func (im *Image) ReadPointer(addr uint64) uint64 {
	if im.Platform.Is64Bit() {
		return im.ReadUint64(addr)
	}
	return uint64(im.ReadUint32(addr))
}

// PointerSize returns the width in bytes of an address-sized value on this
// platform.
func (im *Image) PointerSize() int {
	if im.Platform.Is64Bit() {
		return 8
	}
	return 4
}
