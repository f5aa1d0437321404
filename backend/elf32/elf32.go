// Package elf32 implements the ELF32 backend: detection, a header+
// section+symbol+relocation reader, and a writer that emits a minimal
// static executable. Unlike elf64, this backend never builds a PLT/GOT
// pair — the C source it descends from only ever dynamically links on
// x86-64, so 32-bit objects here are always statically laid out.
package elf32

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"

	"github.com/xyproto/objfile"
)

const (
	magic0, magic1, magic2, magic3 = 0x7f, 'E', 'L', 'F'
	classELF32                     = 1
	dataLE                         = 1
	evCurrent                      = 1

	etExec = 2

	emX86 = 3
	emARM = 40

	ptLoad = 1

	shtProgbit = 1
	shtSymtab  = 2
	shtStrtab  = 3
	shtRel     = 9
	shtNobits  = 8

	shfWrite     = 0x1
	shfAlloc     = 0x2
	shfExecinstr = 0x4

	pageSize = 0x1000
	baseAddr = 0x08048000

	ehdrSize = 52
	phdrSize = 32
	shdrSize = 40
	symSize  = 16
	relSize  = 8
)

func name() string         { return "elf32" }
func format() objfile.Type { return objfile.TypeELF32 }

// Register installs the elf32 backend into r.
func Register(r *objfile.Registry) error {
	return r.Register(objfile.Backend{
		Name:   name,
		Format: format,
		Read:   read,
		Write:  write,
	})
}

type fileHeader struct {
	Ident     [16]byte
	Type      uint16
	Machine   uint16
	Version   uint32
	Entry     uint32
	Phoff     uint32
	Shoff     uint32
	Flags     uint32
	Ehsize    uint16
	Phentsize uint16
	Phnum     uint16
	Shentsize uint16
	Shnum     uint16
	Shstrndx  uint16
}

type progHeader struct {
	Type   uint32
	Offset uint32
	Vaddr  uint32
	Paddr  uint32
	Filesz uint32
	Memsz  uint32
	Flags  uint32
	Align  uint32
}

type sectionHeader struct {
	Name      uint32
	Type      uint32
	Flags     uint32
	Addr      uint32
	Offset    uint32
	Size      uint32
	Link      uint32
	Info      uint32
	Addralign uint32
	Entsize   uint32
}

// symEntry is Elf32_Sym; note the field order differs from Elf64_Sym.
type symEntry struct {
	Name  uint32
	Value uint32
	Size  uint32
	Info  uint8
	Other uint8
	Shndx uint16
}

type relEntry struct {
	Offset uint32
	Info   uint32
}

func read(filename string) (*objfile.Object, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	if len(data) < ehdrSize {
		return nil, fmt.Errorf("elf32: file too short for an ELF header")
	}
	if data[0] != magic0 || data[1] != magic1 || data[2] != magic2 || data[3] != magic3 {
		return nil, fmt.Errorf("elf32: missing ELF magic")
	}
	if data[4] != classELF32 {
		return nil, fmt.Errorf("elf32: not a 32-bit ELF")
	}

	var hdr fileHeader
	if err := binary.Read(bytes.NewReader(data), binary.LittleEndian, &hdr); err != nil {
		return nil, fmt.Errorf("elf32: reading header: %w", err)
	}

	obj := objfile.NewObject()
	obj.SetName(filename)
	obj.SetType(objfile.TypeELF32)
	obj.SetEntry(uint64(hdr.Entry))
	switch hdr.Machine {
	case emX86:
		obj.SetArch(objfile.ArchI386)
	case emARM:
		obj.SetArch(objfile.ArchARM)
	}

	if hdr.Shnum == 0 {
		return obj, nil
	}

	shdrs := make([]sectionHeader, hdr.Shnum)
	r := bytes.NewReader(data[hdr.Shoff:])
	for i := range shdrs {
		if err := binary.Read(r, binary.LittleEndian, &shdrs[i]); err != nil {
			return nil, fmt.Errorf("elf32: reading section header %d: %w", i, err)
		}
	}

	if int(hdr.Shstrndx) >= len(shdrs) {
		return nil, fmt.Errorf("elf32: shstrndx out of range")
	}
	shstrtab := sectionBytes(data, shdrs[hdr.Shstrndx])

	sections := make([]*objfile.Section, len(shdrs))
	var symtabIdx, strtabIdx = -1, -1
	for i, sh := range shdrs {
		secName := cstr(shstrtab, sh.Name)
		var sd []byte
		if sh.Type != shtNobits {
			sd = sectionBytes(data, sh)
		}
		sec := obj.AddSection(secName, uint64(sh.Size), uint64(sh.Addr), sd, uint(sh.Entsize), uint(sh.Addralign), sectionFlagsFromELF(sh.Flags))
		sec.Type = sectionTypeFromELF(sh.Type)
		sections[i] = sec
		if sh.Type == shtSymtab {
			symtabIdx = i
		}
		if secName == ".strtab" {
			strtabIdx = i
		}
	}
	for i, sh := range shdrs {
		if sh.Type == shtSymtab || sh.Type == shtRel {
			if int(sh.Link) < len(sections) {
				sections[i].Strtab = sections[sh.Link]
			}
		}
	}

	var strtab []byte
	if strtabIdx >= 0 {
		strtab = sectionBytes(data, shdrs[strtabIdx])
	}

	var syms []*objfile.Symbol
	if symtabIdx >= 0 {
		raw := sectionBytes(data, shdrs[symtabIdx])
		count := len(raw) / symSize
		sr := bytes.NewReader(raw)
		for i := 0; i < count; i++ {
			var se symEntry
			if err := binary.Read(sr, binary.LittleEndian, &se); err != nil {
				break
			}
			var sec *objfile.Section
			if int(se.Shndx) > 0 && int(se.Shndx) < len(sections) {
				sec = sections[se.Shndx]
			}
			sym := obj.AddSymbol(cstr(strtab, se.Name), uint64(se.Value), symbolTypeFromELF(se.Info), uint64(se.Size), symbolFlagsFromELF(se.Info), sec)
			syms = append(syms, sym)
		}
	}

	for i, sh := range shdrs {
		if sh.Type != shtRel {
			continue
		}
		raw := sectionBytes(data, shdrs[i])
		count := len(raw) / relSize
		rr := bytes.NewReader(raw)
		for j := 0; j < count; j++ {
			var re relEntry
			if err := binary.Read(rr, binary.LittleEndian, &re); err != nil {
				break
			}
			symIdx := re.Info >> 8
			var sym *objfile.Symbol
			if int(symIdx) < len(syms) {
				sym = syms[symIdx]
			}
			obj.AddRelocation(uint64(re.Offset), relocTypeFromELF(re.Info&0xff), 0, sym)
		}
	}

	return obj, nil
}

func sectionBytes(data []byte, sh sectionHeader) []byte {
	start, end := uint64(sh.Offset), uint64(sh.Offset)+uint64(sh.Size)
	if start > uint64(len(data)) || end > uint64(len(data)) || start > end {
		return nil
	}
	return append([]byte(nil), data[start:end]...)
}

func cstr(table []byte, off uint32) string {
	if table == nil || int(off) >= len(table) {
		return ""
	}
	end := int(off)
	for end < len(table) && table[end] != 0 {
		end++
	}
	return string(table[off:end])
}

func sectionFlagsFromELF(f uint32) objfile.SectionFlag {
	var out objfile.SectionFlag
	if f&shfWrite != 0 {
		out |= objfile.SectionFlagWrite
	}
	if f&shfAlloc != 0 {
		out |= objfile.SectionFlagAlloc
	}
	if f&shfExecinstr != 0 {
		out |= objfile.SectionFlagExec
	}
	return out
}

func sectionTypeFromELF(t uint32) objfile.SectionType {
	switch t {
	case shtProgbit:
		return objfile.SectionCode
	case shtNobits:
		return objfile.SectionBSS
	case shtStrtab:
		return objfile.SectionStrtab
	case shtSymtab:
		return objfile.SectionSymtab
	case shtRel:
		return objfile.SectionReloc
	default:
		return objfile.SectionNone
	}
}

func symbolTypeFromELF(info uint8) objfile.SymbolType {
	switch info & 0xf {
	case 1:
		return objfile.SymbolObject
	case 2:
		return objfile.SymbolFunction
	case 3:
		return objfile.SymbolSection
	case 4:
		return objfile.SymbolFile
	default:
		return objfile.SymbolNone
	}
}

func symbolFlagsFromELF(info uint8) objfile.SymbolFlag {
	if info>>4 == 0 {
		return objfile.SymbolFlagLocal
	}
	return objfile.SymbolFlagGlobal
}

func relocTypeFromELF(t uint32) objfile.RelocType {
	switch t {
	case 1: // R_386_32
		return objfile.RelocOffset
	case 2: // R_386_PC32
		return objfile.RelocPCRelative
	case 7: // R_386_JMP_SLOT
		return objfile.RelocPLT
	default:
		return objfile.RelocNone
	}
}

func align(v, to uint32) uint32 {
	return (v + to - 1) &^ (to - 1)
}

// write lays out a minimal static executable: one PT_LOAD segment
// covering headers, code and data, matching elf64's writeStatic but at
// 32-bit widths and the i386 base address convention.
func write(obj *objfile.Object, filename string) error {
	var text, data []byte
	var bssSize uint64
	for s := obj.FirstSectionByType(objfile.SectionCode); s != nil; s = obj.NextSectionByType(objfile.SectionCode) {
		text = append(text, s.Data...)
	}
	for s := obj.FirstSectionByType(objfile.SectionData); s != nil; s = obj.NextSectionByType(objfile.SectionData) {
		data = append(data, s.Data...)
	}
	for s := obj.FirstSectionByType(objfile.SectionBSS); s != nil; s = obj.NextSectionByType(objfile.SectionBSS) {
		bssSize += s.Size
	}

	headersSize := uint32(ehdrSize + phdrSize)
	textOff := align(headersSize, 16)
	textAddr := baseAddr + textOff
	dataOff := align(textOff+uint32(len(text)), 16)

	entry := uint32(obj.Entry())
	if entry == 0 {
		entry = textAddr
	}

	hdr := fileHeader{
		Type: etExec, Machine: machineFor(obj.Arch()), Version: evCurrent,
		Entry: entry, Phoff: ehdrSize, Shoff: 0,
		Ehsize: ehdrSize, Phentsize: phdrSize, Phnum: 1,
	}
	copy(hdr.Ident[:], []byte{magic0, magic1, magic2, magic3, classELF32, dataLE, evCurrent})

	ph := progHeader{
		Type: ptLoad, Flags: 5,
		Offset: 0, Vaddr: baseAddr, Paddr: baseAddr,
		Filesz: dataOff + uint32(len(data)), Memsz: dataOff + uint32(len(data)) + uint32(bssSize),
		Align: pageSize,
	}

	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, hdr); err != nil {
		return err
	}
	if err := binary.Write(&buf, binary.LittleEndian, ph); err != nil {
		return err
	}
	padTo(&buf, uint64(textOff))
	buf.Write(text)
	padTo(&buf, uint64(dataOff))
	buf.Write(data)

	if objfile.Verbose {
		fmt.Fprintf(os.Stderr, "elf32: writing %d bytes to %s\n", buf.Len(), filename)
	}
	return os.WriteFile(filename, buf.Bytes(), 0o755)
}

func machineFor(a objfile.Arch) uint16 {
	if a == objfile.ArchARM {
		return emARM
	}
	return emX86
}

func padTo(buf *bytes.Buffer, offset uint64) {
	for uint64(buf.Len()) < offset {
		buf.WriteByte(0)
	}
}
