package image

// ByteOrder is the ordering of bytes within a multi-byte value.
type ByteOrder int

// Recognized byte orders.
const (
	LittleEndian ByteOrder = iota
	BigEndian
)

// Domain names the memory domain. It mirrors ir.Domain but is declared here
// too so that image can describe per-domain endianness without importing ir
// (image is a leaf package; ir depends on it, not the other way around).
type Domain int

// Recognized domains. MEMORY is flat addressable RAM; STACK is the
// frame-relative domain; Register is one domain per architectural register
// family (e.g. general purpose, flags, floating point).
const (
	DomainMemory Domain = iota
	DomainStack
	DomainRegister
)

// Architecture identifies the instruction set of an Image.
type Architecture int

// Recognized architectures (spec.md §6).
const (
	Arch8086 Architecture = iota
	ArchI386
	ArchX8664
	ArchArmLE
	ArchArmBE
)

func (a Architecture) String() string {
	switch a {
	case Arch8086:
		return "8086"
	case ArchI386:
		return "i386"
	case ArchX8664:
		return "x86-64"
	case ArchArmLE:
		return "arm-le"
	case ArchArmBE:
		return "arm-be"
	default:
		return "unknown"
	}
}

// OperatingSystem identifies the target OS, used by the core to pick a
// calling convention (e.g. AMD64 System V vs Microsoft64) and a demangler.
type OperatingSystem int

// Recognized operating systems.
const (
	OSUnknown OperatingSystem = iota
	OSWindows
	OSLinux
	OSMacOS
)

// Platform describes the architecture, OS, and per-domain byte order of an
// Image. Endianness is per-domain rather than a single flag so that a
// mixed-endian target (code in one order, data in another) is representable;
// see SPEC_FULL.md §6.3.
type Platform struct {
	Arch Architecture
	OS   OperatingSystem

	order map[Domain]ByteOrder
}

// NewPlatform constructs a Platform with a uniform byte order across all
// domains, the common case for every architecture in spec.md §6.
func NewPlatform(arch Architecture, os OperatingSystem, order ByteOrder) *Platform {
	return &Platform{
		Arch: arch,
		OS:   os,
		order: map[Domain]ByteOrder{
			DomainMemory:   order,
			DomainStack:    order,
			DomainRegister: order,
		},
	}
}

// SetByteOrder overrides the byte order of a single domain.
func (p *Platform) SetByteOrder(domain Domain, order ByteOrder) {
	if p.order == nil {
		p.order = make(map[Domain]ByteOrder)
	}
	p.order[domain] = order
}

// ByteOrder returns the byte order used to interpret multi-byte values in
// the given domain. Defaults to LittleEndian if never set.
func (p *Platform) ByteOrder(domain Domain) ByteOrder {
	if p.order == nil {
		return LittleEndian
	}
	order, ok := p.order[domain]
	if !ok {
		return LittleEndian
	}
	return order
}

// Is64Bit reports whether pointers on this platform are 64 bits wide.
func (p *Platform) Is64Bit() bool {
	return p.Arch == ArchX8664
}
