// Package pe parses a Windows Portable Executable image into image.Image:
// DOS header → NT headers → optional header (32/64) → section headers.
// The COFF symbol table and string table are not read, so the resulting
// image carries no symbols. Built on github.com/mewrev/pe, the
// header-parsing library the retrieved corpus exercises directly.
//
// Grounded on
// _examples/golint-fixer-exp/cmd/bin2asm/header.go's pe.Open/.DOSHeader/
// .FileHeader/.OptHeader/.SectHeaders call sequence; section raw-data
// extraction reads directly from the caller-supplied file bytes (the
// header library describes layout, not loaded bytes), keyed by each
// section header's file offset and raw size, the same two fields
// IMAGE_SECTION_HEADER itself carries for this purpose.
package pe

import (
	"bytes"
	"fmt"
	"io/ioutil"
	"os"

	mewpe "github.com/mewrev/pe"

	"github.com/Urethramancer/decompiler/image"
)

// Raw IMAGE_SECTION_HEADER.Characteristics bits (Microsoft PE/COFF spec,
// stable across any Go PE header library's field naming).
const (
	imageSCNCntCode               = 0x00000020
	imageSCNCntInitializedData    = 0x00000040
	imageSCNCntUninitializedData  = 0x00000080
	imageSCNMemExecute            = 0x20000000
	imageSCNMemRead               = 0x40000000
	imageSCNMemWrite              = 0x80000000
)

// Raw IMAGE_FILE_HEADER.Machine constants used to pick the Platform
// architecture (spec.md §6's {8086, i386, x86-64, arm-le, arm-be} set).
const (
	machineI386  = 0x014c
	machineAMD64 = 0x8664
	machineARM   = 0x01c0
	machineARM64 = 0xaa64
)

// Parser implements input.Parser for the PE format.
type Parser struct{}

// New constructs a PE Parser.
func New() *Parser { return &Parser{} }

// Name identifies this parser (spec.md §6).
func (*Parser) Name() string { return "PE" }

// Sniff reports whether data begins with the "MZ" DOS stub signature.
func (*Parser) Sniff(data []byte) bool {
	return len(data) >= 2 && data[0] == 'M' && data[1] == 'Z'
}

// Parse builds an Image from a PE file's raw bytes.
func (*Parser) Parse(data []byte) (*image.Image, error) {
	tmp, err := ioutil.TempFile("", "decompile-*.exe")
	if err != nil {
		return nil, fmt.Errorf("pe: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("pe: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("pe: %w", err)
	}

	file, err := mewpe.Open(tmp.Name())
	if err != nil {
		return nil, fmt.Errorf("pe: %w", err)
	}
	defer file.Close()

	fileHdr, err := file.FileHeader()
	if err != nil {
		return nil, fmt.Errorf("pe: file header: %w", err)
	}
	optHdr, err := file.OptHeader()
	if err != nil {
		return nil, fmt.Errorf("pe: optional header: %w", err)
	}
	sectHdrs, err := file.SectHeaders()
	if err != nil {
		return nil, fmt.Errorf("pe: section headers: %w", err)
	}

	platform := platformFor(fileHdr)
	imageBase := uint64(optHdr.ImageBase)

	var sections []*image.Section
	for _, sh := range sectHdrs {
		perm := permissionFor(sh.Flags)
		kind := kindFor(sh.Flags)
		addr := imageBase + uint64(sh.RelAddr)
		if kind == image.KindBSS {
			sections = append(sections, image.NewBSSSection(sh.Name, addr, uint64(sh.VirtSize), perm))
			continue
		}
		raw := sliceSafely(data, sh.Offset, sh.Size)
		sections = append(sections, image.NewSection(sh.Name, addr, perm, kind, raw))
	}

	entry := imageBase + uint64(optHdr.EntryRelAddr)
	return image.New(platform, sections, nil, nil, entry), nil
}

// sliceSafely returns data[offset:offset+size], clamped to data's bounds,
// degrading to a conservative empty slice rather than panicking (spec.md
// §7 "degrade to conservative defaults... rather than raising").
func sliceSafely(data []byte, offset, size uint32) []byte {
	start := int(offset)
	if start < 0 || start > len(data) {
		return nil
	}
	end := start + int(size)
	if end > len(data) {
		end = len(data)
	}
	return bytes.Clone(data[start:end])
}

func platformFor(fileHdr *mewpe.FileHeader) *image.Platform {
	switch uint16(fileHdr.Arch) {
	case machineAMD64, machineARM64:
		arch := image.ArchX8664
		if uint16(fileHdr.Arch) == machineARM64 {
			arch = image.ArchArmLE
		}
		return image.NewPlatform(arch, image.OSWindows, image.LittleEndian)
	case machineARM:
		return image.NewPlatform(image.ArchArmLE, image.OSWindows, image.LittleEndian)
	default: // machineI386 and anything else defaults to i386
		return image.NewPlatform(image.ArchI386, image.OSWindows, image.LittleEndian)
	}
}

func permissionFor(flag mewpe.SectFlag) image.Permission {
	f := uint32(flag)
	var perm image.Permission
	if f&imageSCNMemRead != 0 {
		perm |= image.PermRead
	}
	if f&imageSCNMemWrite != 0 {
		perm |= image.PermWrite
	}
	if f&imageSCNMemExecute != 0 {
		perm |= image.PermExecute
	}
	return perm
}

func kindFor(flag mewpe.SectFlag) image.Kind {
	f := uint32(flag)
	switch {
	case f&imageSCNCntCode != 0:
		return image.KindCode
	case f&imageSCNCntUninitializedData != 0:
		return image.KindBSS
	case f&imageSCNCntInitializedData != 0:
		return image.KindData
	default:
		return image.KindData
	}
}
